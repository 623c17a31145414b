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
	"github.com/zintix-labs/spinpool/host"
	"github.com/zintix-labs/spinpool/sdk/amount"
	"github.com/zintix-labs/spinpool/sdk/draw"
	"github.com/zintix-labs/spinpool/sdk/wheel"
	"github.com/zintix-labs/spinpool/setting"
)

// State 帳本的可序列化快照。金額一律為十進位字串（最小單位）。
type State struct {
	Round        RoundSnapshot     `json:"round"`
	Treasury     TreasurySnapshot  `json:"treasury"`
	Accounts     []AccountSnapshot `json:"accounts"`
	Participants []string          `json:"participants"`
}

type RoundSnapshot struct {
	Index      uint64 `json:"index"`
	Start      uint64 `json:"start"`
	Outcome    uint8  `json:"outcome"`
	HasOutcome bool   `json:"has_outcome"`
	Spinning   bool   `json:"spinning"`
	Wagered    string `json:"wagered"`
	PoolStake  string `json:"pool_stake"`
	PoolProfit string `json:"pool_profit"`
	PoolLoss   string `json:"pool_loss"`
}

type TreasurySnapshot struct {
	Amount    string `json:"amount"`
	LastSweep int64  `json:"last_sweep"`
	Sweeps    uint64 `json:"sweeps"`
}

type AccountSnapshot struct {
	ID        string          `json:"id"`
	Balance   string          `json:"balance"`
	Wagers    []WagerSnapshot `json:"wagers,omitempty"`
	Stakes    []StakeSnapshot `json:"stakes,omitempty"`
	LastBet   int64           `json:"last_bet"`
	BetEpoch  uint64          `json:"bet_epoch,omitempty"`
	NextStake uint64          `json:"next_stake"`
}

type WagerSnapshot struct {
	Category uint8  `json:"category"`
	Selector uint8  `json:"selector"`
	Amount   string `json:"amount"`
}

type StakeSnapshot struct {
	ID     uint64 `json:"id"`
	Amount string `json:"amount"`
	Since  int64  `json:"since"`
	Profit string `json:"profit"`
	Loss   string `json:"loss"`
}

// Snapshot 匯出完整狀態。
func (l *Ledger) Snapshot() State {
	st := State{
		Round: RoundSnapshot{
			Index:      l.round.Index,
			Start:      l.round.Start,
			Outcome:    l.round.Outcome,
			HasOutcome: l.round.HasOutcome,
			Spinning:   l.round.Spinning,
			Wagered:    amount.String(l.round.Wagered),
			PoolStake:  amount.String(l.round.PoolStake),
			PoolProfit: amount.String(l.round.PoolProfit),
			PoolLoss:   amount.String(l.round.PoolLoss),
		},
		Treasury: TreasurySnapshot{
			Amount:    amount.String(l.treasury.Amount),
			LastSweep: l.treasury.LastSweep,
			Sweeps:    l.treasury.Sweeps,
		},
		Accounts:     make([]AccountSnapshot, 0, len(l.order)),
		Participants: make([]string, 0, len(l.players)),
	}
	for _, acc := range l.order {
		as := AccountSnapshot{
			ID:        acc.ID,
			Balance:   amount.String(acc.Balance),
			LastBet:   acc.LastBet,
			BetEpoch:  acc.BetEpoch,
			NextStake: acc.nextStake,
		}
		for _, w := range acc.Wagers {
			as.Wagers = append(as.Wagers, WagerSnapshot{Category: uint8(w.Category), Selector: w.Selector, Amount: amount.String(w.Amount)})
		}
		for _, s := range acc.Stakes {
			as.Stakes = append(as.Stakes, StakeSnapshot{
				ID:     s.ID,
				Amount: amount.String(s.Amount),
				Since:  s.Since,
				Profit: amount.String(s.Profit),
				Loss:   amount.String(s.Loss),
			})
		}
		st.Accounts = append(st.Accounts, as)
	}
	for _, acc := range l.players {
		st.Participants = append(st.Participants, acc.ID)
	}
	return st
}

// Restore 由快照重建帳本，並檢查不變量。
func Restore(cfg *setting.PoolSetting, env host.Env, drawer draw.Drawer, st State) (*Ledger, error) {
	l := New(cfg, env, drawer)
	var err error
	parse := func(s string) amount.Amount {
		if err != nil {
			return amount.Zero()
		}
		var a amount.Amount
		a, err = amount.ParseOrZero(s)
		return a
	}
	l.round = RoundState{
		Index:      st.Round.Index,
		Start:      st.Round.Start,
		Outcome:    st.Round.Outcome,
		HasOutcome: st.Round.HasOutcome,
		Spinning:   st.Round.Spinning,
		Wagered:    parse(st.Round.Wagered),
		PoolStake:  parse(st.Round.PoolStake),
		PoolProfit: parse(st.Round.PoolProfit),
		PoolLoss:   parse(st.Round.PoolLoss),
	}
	l.treasury = TreasuryState{Amount: parse(st.Treasury.Amount), LastSweep: st.Treasury.LastSweep, Sweeps: st.Treasury.Sweeps}
	for _, as := range st.Accounts {
		if _, dup := l.accounts[as.ID]; dup || as.ID == "" {
			return nil, errs.Fatalf("restore: bad account id %q", as.ID)
		}
		acc := l.touch(as.ID)
		acc.Balance = parse(as.Balance)
		acc.LastBet = as.LastBet
		acc.BetEpoch = as.BetEpoch
		if acc.BetEpoch > l.treasury.Sweeps+1 {
			return nil, errs.Fatalf("restore: account %s bet epoch %d ahead of sweeps %d", as.ID, acc.BetEpoch, l.treasury.Sweeps)
		}
		acc.nextStake = max(as.NextStake, 1)
		for _, w := range as.Wagers {
			acc.Wagers = append(acc.Wagers, Wager{Category: wheel.Category(w.Category), Selector: w.Selector, Amount: parse(w.Amount)})
		}
		for _, s := range as.Stakes {
			if s.ID >= acc.nextStake {
				acc.nextStake = s.ID + 1
			}
			acc.Stakes = append(acc.Stakes, Stake{
				ID:     s.ID,
				Amount: parse(s.Amount),
				Since:  s.Since,
				Profit: parse(s.Profit),
				Loss:   parse(s.Loss),
			})
		}
	}
	if err != nil {
		return nil, errs.Wrap(err, "restore: bad amount")
	}
	for _, id := range st.Participants {
		acc, ok := l.lookup(id)
		if !ok || len(acc.Wagers) == 0 {
			return nil, errs.Fatalf("restore: participant %q has no wagers", id)
		}
		l.players = append(l.players, acc)
	}
	l.recalcCeiling()
	if err := l.Audit(); err != nil {
		return nil, errs.Wrap(err, "restore")
	}
	return l, nil
}

// Audit 檢查帳本不變量：質押本金加總、池子與各質押的軋差、下注上限、注單與參與者一致。
func (l *Ledger) Audit() error {
	var stakeSum, pending amount.Amount
	participants := 0
	for _, acc := range l.order {
		for _, s := range acc.Stakes {
			stakeSum, _ = amount.Add(stakeSum, s.Amount)
			if !s.Profit.IsZero() && !s.Loss.IsZero() {
				return errs.Fatalf("stake %s#%d has both profit and loss", acc.ID, s.ID)
			}
			if s.Amount.IsZero() {
				return errs.Fatalf("stake %s#%d has zero principal", acc.ID, s.ID)
			}
		}
		if len(acc.Wagers) > 0 {
			participants++
			pending, _ = amount.Add(pending, acc.pendingTotal())
		}
	}
	if !amount.Equal(stakeSum, l.round.PoolStake) {
		return errs.Fatalf("pool stake %s != sum of stakes %s", amount.String(l.round.PoolStake), amount.String(stakeSum))
	}
	if !l.round.PoolProfit.IsZero() && !l.round.PoolLoss.IsZero() {
		return errs.Fatalf("pool has both profit and loss")
	}
	if want := amount.Bps(l.equity(), l.cfg.AllowedRateBps); !amount.Equal(want, l.round.Ceiling) {
		return errs.Fatalf("ceiling %s != %s", amount.String(l.round.Ceiling), amount.String(want))
	}
	if participants != len(l.players) || !amount.Equal(pending, l.round.Wagered) {
		return errs.Fatalf("round wagered %s with %d participants, accounts hold %s in %d",
			amount.String(l.round.Wagered), len(l.players), amount.String(pending), participants)
	}
	return nil
}
