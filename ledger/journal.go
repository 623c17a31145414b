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
	"github.com/google/uuid"
	"github.com/zintix-labs/spinpool/sdk/amount"
)

// EntryKind 帳務紀錄種類。
type EntryKind string

const (
	EntryBet        EntryKind = "bet"
	EntryPayout     EntryKind = "payout"
	EntrySettle     EntryKind = "settle"
	EntryStake      EntryKind = "stake"
	EntryUnstake    EntryKind = "unstake"
	EntryHarvest    EntryKind = "harvest"
	EntryDeposit    EntryKind = "deposit"
	EntryWithdraw   EntryKind = "withdraw"
	EntrySweep      EntryKind = "sweep"
	EntryPlayersPot EntryKind = "players_pot"
	EntryOperator   EntryKind = "operator_payout"
)

// Entry 一筆已提交的帳務紀錄。
type Entry struct {
	ID      uuid.UUID
	Kind    EntryKind
	Account string
	StakeID uint64
	Round   uint64
	Amount  amount.Amount
	Outcome uint8
	Height  uint64
	Time    int64
}

func (l *Ledger) record(e Entry) {
	e.ID = uuid.New()
	e.Height = l.env.BlockHeight()
	e.Time = l.env.BlockTime()
	l.journal = append(l.journal, e)
}

// Drain 取出並清空尚未持久化的紀錄。
func (l *Ledger) Drain() []Entry {
	out := l.journal
	l.journal = nil
	return out
}

// Pending 尚未 Drain 的紀錄筆數。
func (l *Ledger) Pending() int { return len(l.journal) }
