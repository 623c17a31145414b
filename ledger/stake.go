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

	"github.com/zintix-labs/spinpool/errs"
	"github.com/zintix-labs/spinpool/sdk/amount"
)

// AddStake 以附帶金額新增一筆質押；附帶超過 amt 的部分記入餘額。回傳新質押的 ID。
func (l *Ledger) AddStake(caller string, attached, amt amount.Amount) (uint64, error) {
	if caller == "" {
		return 0, errs.Invalid("empty account id")
	}
	if amt.IsZero() {
		return 0, errs.Invalid("stake amount must be positive")
	}
	excess, under := amount.Sub(attached, amt)
	if under {
		return 0, errs.Funds("attached %s < stake %s", amount.String(attached), amount.String(amt))
	}
	poolStake, overflow := amount.Add(l.round.PoolStake, amt)
	if overflow {
		return 0, errs.Invalid("pool stake overflows")
	}
	if acc, ok := l.lookup(caller); ok {
		if _, overflow := amount.Add(acc.Balance, excess); overflow {
			return 0, errs.Invalid("balance overflows")
		}
	}

	acc := l.touch(caller)
	acc.Balance, _ = amount.Add(acc.Balance, excess)
	id := acc.nextStake
	acc.nextStake++
	acc.Stakes = append(acc.Stakes, Stake{ID: id, Amount: amt, Since: l.now()})
	l.round.PoolStake = poolStake
	l.recalcCeiling()
	l.record(Entry{Kind: EntryStake, Account: caller, StakeID: id, Amount: amt})
	if !excess.IsZero() {
		l.record(Entry{Kind: EntryDeposit, Account: caller, Amount: excess})
	}
	return id, nil
}

// RemoveStake 從質押 id 提領 amt（0 代表全部淨值）。
//
// 提領前先把該筆的 profit/loss 併入本金（淨值 N = amount + profit - loss），
// 剩餘 N - amt 成為新本金並重置時間；剩餘為 0 時刪除該筆質押。回傳實際支付金額。
func (l *Ledger) RemoveStake(caller string, id uint64, amt amount.Amount) (amount.Amount, error) {
	acc, ok := l.lookup(caller)
	if !ok {
		return amount.Zero(), errs.Invalid("account %s has no stake #%d", caller, id)
	}
	idx, err := acc.findStake(id)
	if err != nil {
		return amount.Zero(), err
	}
	s := &acc.Stakes[idx]
	now := l.now()
	if elapsed := now - s.Since; elapsed < l.cfg.MinLock {
		return amount.Zero(), errs.Policy("stake #%d is locked for another %ds", id, l.cfg.MinLock-elapsed)
	}
	n, positive := s.net()
	if !positive {
		return amount.Zero(), errs.Funds("stake #%d has no withdrawable value", id)
	}
	x := amt
	if x.IsZero() {
		x = n
	}
	remain, under := amount.Sub(n, x)
	if under {
		return amount.Zero(), errs.Funds("withdraw %s exceeds stake value %s", amount.String(x), amount.String(n))
	}
	if pool := l.env.PoolBalance(); amount.Less(pool, x) {
		return amount.Zero(), errs.Funds("pool balance %s < %s", amount.String(pool), amount.String(x))
	}
	if err := l.env.Transfer(caller, x); err != nil {
		return amount.Zero(), errs.Wrap(err, "unstake transfer")
	}

	l.addLoss(s.Profit)
	l.addProfit(s.Loss)
	l.round.PoolStake = amount.SatSub(l.round.PoolStake, s.Amount)
	l.round.PoolStake, _ = amount.Add(l.round.PoolStake, remain)
	if remain.IsZero() {
		acc.Stakes = slices.Delete(acc.Stakes, idx, idx+1)
	} else {
		s.Amount = remain
		s.Profit, s.Loss = amount.Zero(), amount.Zero()
		s.Since = now
	}
	l.recalcCeiling()
	l.record(Entry{Kind: EntryUnstake, Account: caller, StakeID: id, Amount: x})
	return x, nil
}

// Harvest 只提領質押 id 的累計獲利，本金不動。獲利為 0 時視為成功但不做任何事。
func (l *Ledger) Harvest(caller string, id uint64) (amount.Amount, error) {
	acc, ok := l.lookup(caller)
	if !ok {
		return amount.Zero(), errs.Invalid("account %s has no stake #%d", caller, id)
	}
	idx, err := acc.findStake(id)
	if err != nil {
		return amount.Zero(), err
	}
	s := &acc.Stakes[idx]
	p := s.Profit
	if p.IsZero() {
		return p, nil
	}
	if pool := l.env.PoolBalance(); amount.Less(pool, p) {
		return amount.Zero(), errs.Funds("pool balance %s < profit %s", amount.String(pool), amount.String(p))
	}
	if err := l.env.Transfer(caller, p); err != nil {
		return amount.Zero(), errs.Wrap(err, "harvest transfer")
	}
	s.Profit = amount.Zero()
	l.addLoss(p)
	l.recalcCeiling()
	l.record(Entry{Kind: EntryHarvest, Account: caller, StakeID: id, Amount: p})
	return p, nil
}
