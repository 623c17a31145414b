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
	"strconv"

	"github.com/zintix-labs/spinpool/errs"
	"github.com/zintix-labs/spinpool/sdk/amount"
	"github.com/zintix-labs/spinpool/sdk/draw"
	"github.com/zintix-labs/spinpool/sdk/wheel"
)

// WagerResult 單注的結算結果。
type WagerResult struct {
	Wager
	Paid amount.Amount // 0 代表未中
}

// PlayerResult 單一參與者的結算結果。
type PlayerResult struct {
	Account string
	Wagered amount.Amount
	Paid    amount.Amount
	Wagers  []WagerResult
}

// Settlement 一回合的結算摘要。
type Settlement struct {
	Round       uint64
	Outcome     uint8
	Height      uint64
	Time        int64
	Wagered     amount.Amount
	Paid        amount.Amount
	Direction   Direction
	Delta       amount.Amount
	TreasuryCut amount.Amount
	Distributed amount.Amount // 實際分到各質押的總額（含零頭誤差）
	Stakes      int           // 分到份額的質押筆數
	Players     []PlayerResult
}

// PlaceBet 以 caller 身分下注。attached 為本次呼叫附帶、已入池的金額，成功時先記入餘額再扣款。
func (l *Ledger) PlaceBet(caller string, attached amount.Amount, wagers []Wager, expectedRound uint64) error {
	if caller == "" {
		return errs.Invalid("empty account id")
	}
	if l.round.Spinning {
		return errs.Conflict("round %d is spinning", l.round.Index)
	}
	if expectedRound != l.round.Index {
		return errs.Conflict("round mismatch: expected %d, live %d", expectedRound, l.round.Index)
	}
	if len(wagers) == 0 {
		return errs.Invalid("empty wager list")
	}
	if len(wagers) > l.cfg.MaxWagers {
		return errs.Invalid("too many wagers: %d > %d", len(wagers), l.cfg.MaxWagers)
	}
	var total amount.Amount
	for i, w := range wagers {
		if err := wheel.Validate(w.Category, w.Selector); err != nil {
			return errs.Wrap(err, "wager "+strconv.Itoa(i))
		}
		if w.Amount.IsZero() {
			return errs.Invalid("wager %d has zero amount", i)
		}
		var overflow bool
		total, overflow = amount.Add(total, w.Amount)
		if overflow {
			return errs.Invalid("wager total overflows")
		}
	}

	acc, exists := l.lookup(caller)
	var balance amount.Amount
	if exists {
		if len(acc.Wagers) > 0 {
			return errs.Conflict("account %s already has wagers in round %d", caller, l.round.Index)
		}
		balance = acc.Balance
	}
	available, overflow := amount.Add(balance, attached)
	if overflow {
		return errs.Invalid("balance overflows")
	}
	rest, under := amount.Sub(available, total)
	if under {
		return errs.Funds("balance %s < wagered %s", amount.String(available), amount.String(total))
	}
	newTotal, overflow := amount.Add(l.round.Wagered, total)
	if overflow || amount.Less(l.round.Ceiling, newTotal) {
		return errs.Policy("round total %s would exceed ceiling %s", amount.String(newTotal), amount.String(l.round.Ceiling))
	}

	now := l.now()
	acc = l.touch(caller)
	acc.Balance = rest
	acc.Wagers = slices.Clone(wagers)
	acc.LastBet = now
	acc.BetEpoch = l.treasury.Sweeps + 1
	l.players = append(l.players, acc)
	l.round.Wagered = newTotal
	l.record(Entry{Kind: EntryBet, Account: caller, Round: l.round.Index, Amount: total})
	return nil
}

// SettleRound 開獎並結算本回合全部注單，再把盈虧分配給質押。
func (l *Ledger) SettleRound(expectedRound uint64) (*Settlement, error) {
	if expectedRound != l.round.Index {
		return nil, errs.Conflict("round mismatch: expected %d, live %d", expectedRound, l.round.Index)
	}
	if l.round.Spinning {
		return nil, errs.Conflict("round %d is already spinning", l.round.Index)
	}
	height := l.env.BlockHeight()
	if height < l.round.Start+l.cfg.RoundDelay {
		return nil, errs.Conflict("round %d settles at height %d, now %d", l.round.Index, l.round.Start+l.cfg.RoundDelay, height)
	}
	if len(l.players) == 0 {
		return nil, errs.Conflict("round %d has no participants", l.round.Index)
	}

	last := l.players[len(l.players)-1]
	lw := last.Wagers[len(last.Wagers)-1]
	outcome, err := l.drawer.Draw(draw.Input{
		Seed:     l.env.RandomSeed(),
		Selector: lw.Selector,
		Category: uint8(lw.Category),
		Account:  last.ID,
	})
	if err != nil {
		return nil, errs.Wrap(err, "draw outcome")
	}
	if outcome >= wheel.Slots {
		return nil, errs.Fatalf("drawer returned %d", outcome)
	}

	// 計畫：每位參與者的派彩
	now := l.now()
	st := &Settlement{
		Round:   l.round.Index,
		Outcome: outcome,
		Height:  height,
		Time:    now,
		Players: make([]PlayerResult, 0, len(l.players)),
	}
	var overflow bool
	for _, acc := range l.players {
		pr := PlayerResult{Account: acc.ID, Wagers: make([]WagerResult, 0, len(acc.Wagers))}
		for _, w := range acc.Wagers {
			won, ovf := amount.Mul(w.Amount, amount.New(wheel.Multiplier(w.Category, w.Selector, outcome)))
			if ovf {
				return nil, errs.Fatalf("payout overflow for %s", acc.ID)
			}
			pr.Wagered, _ = amount.Add(pr.Wagered, w.Amount)
			if pr.Paid, overflow = amount.Add(pr.Paid, won); overflow {
				return nil, errs.Fatalf("payout overflow for %s", acc.ID)
			}
			pr.Wagers = append(pr.Wagers, WagerResult{Wager: w, Paid: won})
		}
		if _, overflow = amount.Add(acc.Balance, pr.Paid); overflow {
			return nil, errs.Fatalf("balance overflow for %s", acc.ID)
		}
		st.Wagered, _ = amount.Add(st.Wagered, pr.Wagered)
		if st.Paid, overflow = amount.Add(st.Paid, pr.Paid); overflow {
			return nil, errs.Fatalf("round payout overflow")
		}
		st.Players = append(st.Players, pr)
	}
	d, err := l.planDistribution(st.Wagered, st.Paid, now)
	if err != nil {
		return nil, err
	}
	st.Direction, st.Delta, st.TreasuryCut = d.direction, d.delta, d.cut
	st.Distributed, st.Stakes = d.distributed, len(d.shares)

	// 提交
	l.round.Spinning = true
	for i, acc := range l.players {
		pr := st.Players[i]
		acc.Balance, _ = amount.Add(acc.Balance, pr.Paid)
		acc.Wagers = nil
		if !pr.Paid.IsZero() {
			l.record(Entry{Kind: EntryPayout, Account: acc.ID, Round: st.Round, Amount: pr.Paid, Outcome: outcome})
		}
	}
	l.applyDistribution(d)
	l.players = nil
	l.round.Wagered = amount.Zero()
	l.round.Index++
	l.round.Start = height
	l.round.Outcome, l.round.HasOutcome = outcome, true
	l.round.Spinning = false
	l.record(Entry{Kind: EntrySettle, Round: st.Round, Amount: st.Delta, Outcome: outcome})
	return st, nil
}
