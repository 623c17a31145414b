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
	"github.com/zintix-labs/spinpool/errs"
	"github.com/zintix-labs/spinpool/sdk/amount"
)

// SweepResult 一次國庫分配的摘要。
type SweepResult struct {
	Time        int64
	Amount      amount.Amount // 分配前國庫
	PlayersPot  amount.Amount
	StakersPot  amount.Amount
	OperatorPot amount.Amount
	PerPlayer   amount.Amount
	Players     int // 分到玩家池的帳號數
	Stakes      int // 分到質押池的質押筆數
	Distributed amount.Amount
	Remainder   amount.Amount // 留在國庫的零頭與無人可分的池
}

// Sweep 分配國庫：玩家池平分給上次分配後下過注的帳號，質押池依權重加到各質押的 profit，
// 營運方池直接轉給 operator。分不出去的部分留在國庫。
func (l *Ledger) Sweep() (*SweepResult, error) {
	now := l.now()
	if l.treasury.LastSweep != 0 && now-l.treasury.LastSweep < l.cfg.TreasuryInterval {
		return nil, errs.Conflict("treasury sweep available at %d, now %d", l.treasury.LastSweep+l.cfg.TreasuryInterval, now)
	}
	total := l.treasury.Amount
	if amount.Less(total, l.cfg.Threshold) {
		return nil, errs.Conflict("treasury %s below threshold %s", amount.String(total), amount.String(l.cfg.Threshold))
	}

	res := &SweepResult{
		Time:        now,
		Amount:      total,
		PlayersPot:  amount.Percent(total, l.cfg.Split.Players),
		StakersPot:  amount.Percent(total, l.cfg.Split.Stakers),
		OperatorPot: amount.Percent(total, l.cfg.Split.Operator),
	}

	// 玩家池
	var eligible []*Account
	for _, acc := range l.order {
		if acc.BetEpoch > l.treasury.Sweeps {
			eligible = append(eligible, acc)
		}
	}
	var playersPaid amount.Amount
	if len(eligible) > 0 {
		res.PerPlayer, _ = amount.MulDiv(res.PlayersPot, amount.New(1), amount.New(uint64(len(eligible))))
		if !res.PerPlayer.IsZero() {
			res.Players = len(eligible)
			playersPaid, _ = amount.Mul(res.PerPlayer, amount.New(uint64(len(eligible))))
		}
		for _, acc := range eligible {
			if _, overflow := amount.Add(acc.Balance, res.PerPlayer); overflow {
				return nil, errs.Fatalf("balance overflow for %s", acc.ID)
			}
		}
	}

	// 質押池
	shares, stakersPaid, err := l.allocate(res.StakersPot, now)
	if err != nil {
		return nil, err
	}
	res.Stakes = len(shares)

	// 營運方
	if !res.OperatorPot.IsZero() {
		if pool := l.env.PoolBalance(); amount.Less(pool, res.OperatorPot) {
			return nil, errs.Funds("pool balance %s < operator pot %s", amount.String(pool), amount.String(res.OperatorPot))
		}
		if err := l.env.Transfer(l.cfg.Operator, res.OperatorPot); err != nil {
			return nil, errs.Wrap(err, "operator transfer")
		}
	}

	res.Distributed, _ = amount.Sum(playersPaid, stakersPaid, res.OperatorPot)
	res.Remainder = amount.SatSub(total, res.Distributed)

	if res.Players > 0 {
		for _, acc := range eligible {
			acc.Balance, _ = amount.Add(acc.Balance, res.PerPlayer)
			l.record(Entry{Kind: EntryPlayersPot, Account: acc.ID, Amount: res.PerPlayer})
		}
	}
	creditProfit(shares)
	l.addProfit(stakersPaid)
	l.treasury.Amount = res.Remainder
	l.treasury.LastSweep = now
	l.treasury.Sweeps++
	l.recalcCeiling()
	if !res.OperatorPot.IsZero() {
		l.record(Entry{Kind: EntryOperator, Account: l.cfg.Operator, Amount: res.OperatorPot})
	}
	l.record(Entry{Kind: EntrySweep, Amount: res.Distributed})
	return res, nil
}
