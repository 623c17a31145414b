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

// Deposit 把附帶金額記入 caller 的餘額。
func (l *Ledger) Deposit(caller string, attached amount.Amount) (amount.Amount, error) {
	if caller == "" {
		return amount.Zero(), errs.Invalid("empty account id")
	}
	if attached.IsZero() {
		return amount.Zero(), errs.Invalid("deposit requires attached value")
	}
	var balance amount.Amount
	if acc, ok := l.lookup(caller); ok {
		balance = acc.Balance
	}
	next, overflow := amount.Add(balance, attached)
	if overflow {
		return amount.Zero(), errs.Invalid("balance overflows")
	}
	acc := l.touch(caller)
	acc.Balance = next
	l.record(Entry{Kind: EntryDeposit, Account: caller, Amount: attached})
	return next, nil
}

// Withdraw 從 caller 的餘額提領 amt 到其宿主錢包。回傳提領後餘額。
func (l *Ledger) Withdraw(caller string, amt amount.Amount) (amount.Amount, error) {
	if amt.IsZero() {
		return amount.Zero(), errs.Invalid("withdraw amount must be positive")
	}
	acc, ok := l.lookup(caller)
	if !ok {
		return amount.Zero(), errs.Funds("account %s has no balance", caller)
	}
	rest, under := amount.Sub(acc.Balance, amt)
	if under {
		return amount.Zero(), errs.Funds("balance %s < %s", amount.String(acc.Balance), amount.String(amt))
	}
	if pool := l.env.PoolBalance(); amount.Less(pool, amt) {
		return amount.Zero(), errs.Funds("pool balance %s < %s", amount.String(pool), amount.String(amt))
	}
	if err := l.env.Transfer(caller, amt); err != nil {
		return amount.Zero(), errs.Wrap(err, "withdraw transfer")
	}
	acc.Balance = rest
	l.record(Entry{Kind: EntryWithdraw, Account: caller, Amount: amt})
	return rest, nil
}
