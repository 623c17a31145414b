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
	"github.com/zintix-labs/spinpool/sdk/wheel"
)

// Wager 單注。
type Wager struct {
	Category wheel.Category
	Selector uint8
	Amount   amount.Amount
}

// Stake 單筆質押。ID 在帳號內唯一且永不重用。
type Stake struct {
	ID     uint64
	Amount amount.Amount
	Since  int64 // 存入或最後一次部分提領的時間（unix 秒）
	Profit amount.Amount
	Loss   amount.Amount
}

// Account 玩家/質押者帳號。
type Account struct {
	ID      string
	Balance amount.Amount
	Wagers  []Wager // 本回合未結算的注單
	Stakes  []Stake // 依 ID 遞增
	LastBet int64   // 最後一次下注時間，0 代表從未下注

	// BetEpoch 為最後一次下注時的 Sweeps+1，0 代表從未下注。
	// 大於 Sweeps 即代表上次分配後下過注，不受同一秒內先後順序影響。
	BetEpoch uint64

	nextStake uint64
}

// findStake 回傳 stake 在 Stakes 中的位置。
func (a *Account) findStake(id uint64) (int, error) {
	for i := range a.Stakes {
		if a.Stakes[i].ID == id {
			return i, nil
		}
	}
	return -1, errs.Invalid("account %s has no stake #%d", a.ID, id)
}

// net 回傳 (amount + profit - loss)，負值回傳 (0, false)。
func (s *Stake) net() (amount.Amount, bool) {
	gross, _ := amount.Add(s.Amount, s.Profit)
	v, under := amount.Sub(gross, s.Loss)
	if under || v.IsZero() {
		return amount.Zero(), false
	}
	return v, true
}

// settle 讓單筆質押自身的 profit/loss 軋差。
func (s *Stake) settle() {
	s.Profit, s.Loss = amount.Net(s.Profit, s.Loss)
}

// pendingTotal 本回合注單總額。
func (a *Account) pendingTotal() amount.Amount {
	var total amount.Amount
	for _, w := range a.Wagers {
		total, _ = amount.Add(total, w.Amount)
	}
	return total
}
