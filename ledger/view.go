// Copyright 2025 Zintix Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ledger

import (
	"slices"

	"github.com/zintix-labs/spinpool/sdk/amount"
)

type StakeView struct {
	ID         uint64
	Amount     amount.Amount
	Profit     amount.Amount
	Loss       amount.Amount
	Since      int64
	Multiplier uint64 // 目前的分級權重百分比
	UnlockAt   int64  // 可提領時間
}

type AccountView struct {
	ID      string
	Balance amount.Amount
	Wagers  []Wager
	Stakes  []StakeView
	LastBet int64
}

type RoundView struct {
	Index        uint64
	Start        uint64
	Next         uint64 // 可結算的最低高度
	Height       uint64
	Outcome      uint8
	HasOutcome   bool
	Spinning     bool
	Wagered      amount.Amount
	Ceiling      amount.Amount
	Participants int
}

type PoolView struct {
	Balance amount.Amount // 宿主餘額
	Ceiling amount.Amount
	Stake   amount.Amount
	Profit  amount.Amount
	Loss    amount.Amount
	Stakers int
	Stakes  int
}

type TreasuryView struct {
	Amount    amount.Amount
	Threshold amount.Amount
	LastSweep int64
	NextSweep int64
}

// Account 查詢帳號；不存在時回傳 false，且不會建立帳號。
func (l *Ledger) Account(id string) (AccountView, bool) {
	acc, ok := l.lookup(id)
	if !ok {
		return AccountView{}, false
	}
	now := l.now()
	v := AccountView{
		ID:      acc.ID,
		Balance: acc.Balance,
		Wagers:  slices.Clone(acc.Wagers),
		Stakes:  make([]StakeView, 0, len(acc.Stakes)),
		LastBet: acc.LastBet,
	}
	for _, s := range acc.Stakes {
		v.Stakes = append(v.Stakes, StakeView{
			ID:         s.ID,
			Amount:     s.Amount,
			Profit:     s.Profit,
			Loss:       s.Loss,
			Since:      s.Since,
			Multiplier: l.cfg.TierMultiplier(now - s.Since),
			UnlockAt:   s.Since + l.cfg.MinLock,
		})
	}
	return v, true
}

func (l *Ledger) Round() RoundView {
	return RoundView{
		Index:        l.round.Index,
		Start:        l.round.Start,
		Next:         l.round.Start + l.cfg.RoundDelay,
		Height:       l.env.BlockHeight(),
		Outcome:      l.round.Outcome,
		HasOutcome:   l.round.HasOutcome,
		Spinning:     l.round.Spinning,
		Wagered:      l.round.Wagered,
		Ceiling:      l.round.Ceiling,
		Participants: len(l.players),
	}
}

func (l *Ledger) Pool() PoolView {
	v := PoolView{
		Balance: l.env.PoolBalance(),
		Ceiling: l.round.Ceiling,
		Stake:   l.round.PoolStake,
		Profit:  l.round.PoolProfit,
		Loss:    l.round.PoolLoss,
	}
	for _, acc := range l.order {
		if len(acc.Stakes) > 0 {
			v.Stakers++
			v.Stakes += len(acc.Stakes)
		}
	}
	return v
}

func (l *Ledger) Treasury() TreasuryView {
	v := TreasuryView{
		Amount:    l.treasury.Amount,
		Threshold: l.cfg.Threshold,
		LastSweep: l.treasury.LastSweep,
	}
	if l.treasury.LastSweep != 0 {
		v.NextSweep = l.treasury.LastSweep + l.cfg.TreasuryInterval
	}
	return v
}

// Totals 回傳全域回合狀態副本。
func (l *Ledger) Totals() RoundState { return l.round }

// Accounts 依建立順序回傳全部帳號 ID。
func (l *Ledger) Accounts() []string {
	out := make([]string, 0, len(l.order))
	for _, acc := range l.order {
		out = append(out, acc.ID)
	}
	return out
}

// Liabilities 帳本內記帳的全部價值：餘額 + 未結算注單 + 質押淨值 + 國庫。
// 池子的宿主餘額扣掉這個值，就是未分配的零頭與莊家盈餘。
func (l *Ledger) Liabilities() amount.Amount {
	var total, loss amount.Amount
	for _, acc := range l.order {
		total, _ = amount.Add(total, acc.Balance)
		total, _ = amount.Add(total, acc.pendingTotal())
		for _, s := range acc.Stakes {
			total, _ = amount.Add(total, s.Amount)
			total, _ = amount.Add(total, s.Profit)
			loss, _ = amount.Add(loss, s.Loss)
		}
	}
	total, _ = amount.Add(total, l.treasury.Amount)
	return amount.SatSub(total, loss)
}
