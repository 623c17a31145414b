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

package dto

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/zintix-labs/spinpool/errs"
	"github.com/zintix-labs/spinpool/ledger"
	"github.com/zintix-labs/spinpool/sdk/amount"
	"github.com/zintix-labs/spinpool/sdk/wheel"
)

// 防止 body 過大（預設 1MiB）
const maxBody = 1 << 20

// WagerRequest 單注；category 可用名稱（color/column/dozen/eighteen/parity/number）或數字。
type WagerRequest struct {
	Category string `json:"category"`
	Selector uint8  `json:"selector"`
	Amount   string `json:"amount"`
}

// BetRequest 下注。attached 為隨呼叫附帶的金額（可省略，代表只用餘額）。
type BetRequest struct {
	Round    uint64         `json:"round"`
	Attached string         `json:"attached,omitempty"`
	Wagers   []WagerRequest `json:"wagers"`
}

type SettleRequest struct {
	Round uint64 `json:"round"`
}

// StakeRequest 新增質押；attached 省略時等於 amount。
type StakeRequest struct {
	Amount   string `json:"amount"`
	Attached string `json:"attached,omitempty"`
}

// UnstakeRequest 提領質押；amount 省略或為 0 代表全部提領。
type UnstakeRequest struct {
	StakeID uint64 `json:"stake_id"`
	Amount  string `json:"amount,omitempty"`
}

type HarvestRequest struct {
	StakeID uint64 `json:"stake_id"`
}

type DepositRequest struct {
	Attached string `json:"attached"`
}

type WithdrawRequest struct {
	Amount string `json:"amount"`
}

// AdvanceRequest 開發用：推進模擬鏈的區塊。
type AdvanceRequest struct {
	Blocks uint64 `json:"blocks"`
}

// MintRequest 開發用：給錢包加值。
type MintRequest struct {
	Account string `json:"account"`
	Amount  string `json:"amount"`
}

// TokenRequest 開發用：簽發存取 token。ttl 單位為秒，0 代表預設值。
type TokenRequest struct {
	Account string `json:"account"`
	TTL     int64  `json:"ttl,omitempty"`
}

// Decode 會把 POST 的 JSON body 解碼到 dst。
//
// 注意：
//   - 這裡只負責「解碼（decode）」與基本型別轉換，業務合法性由帳本決定。
//   - body 會做大小限制，並開啟 DisallowUnknownFields()，對未知欄位採用嚴格拒絕。
//   - 空 body 視為全部欄位皆為零值。
func Decode[T any](r *http.Request, dst *T) error {
	if r == nil {
		return errs.NewWarn("nil request")
	}
	if r.Method != http.MethodPost {
		return errs.Invalid("method %s not allowed", r.Method)
	}
	if r.Body == nil {
		return nil
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return errs.Invalid("invalid json: %v", err)
	}
	return nil
}

// QueryLimit 讀取 query string 的 limit，預設 def，上限 ceil。
func QueryLimit(r *http.Request, def, ceil int) (int, error) {
	s := r.URL.Query().Get("limit")
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil || v <= 0 {
		return 0, errs.Invalid("invalid limit %q", s)
	}
	return min(v, ceil), nil
}

// Parse 轉成帳本的注單與附帶金額。
func (b *BetRequest) Parse() ([]ledger.Wager, amount.Amount, error) {
	attached, err := amount.ParseOrZero(b.Attached)
	if err != nil {
		return nil, amount.Zero(), errs.Wrap(err, "attached")
	}
	ws := make([]ledger.Wager, 0, len(b.Wagers))
	for i, w := range b.Wagers {
		c, err := wheel.ParseCategory(w.Category)
		if err != nil {
			return nil, amount.Zero(), errs.Wrap(err, fmt.Sprintf("wager %d", i))
		}
		a, err := amount.Parse(w.Amount)
		if err != nil {
			return nil, amount.Zero(), errs.Wrap(err, fmt.Sprintf("wager %d amount", i))
		}
		ws = append(ws, ledger.Wager{Category: c, Selector: w.Selector, Amount: a})
	}
	return ws, attached, nil
}

// Parse 回傳 (attached, amount)。
func (s *StakeRequest) Parse() (amount.Amount, amount.Amount, error) {
	amt, err := amount.Parse(s.Amount)
	if err != nil {
		return amount.Zero(), amount.Zero(), errs.Wrap(err, "amount")
	}
	if s.Attached == "" {
		return amt, amt, nil
	}
	attached, err := amount.Parse(s.Attached)
	if err != nil {
		return amount.Zero(), amount.Zero(), errs.Wrap(err, "attached")
	}
	return attached, amt, nil
}

func (u *UnstakeRequest) Parse() (amount.Amount, error) {
	a, err := amount.ParseOrZero(u.Amount)
	if err != nil {
		return amount.Zero(), errs.Wrap(err, "amount")
	}
	return a, nil
}

func (d *DepositRequest) Parse() (amount.Amount, error) {
	a, err := amount.Parse(d.Attached)
	if err != nil {
		return amount.Zero(), errs.Wrap(err, "attached")
	}
	return a, nil
}

func (w *WithdrawRequest) Parse() (amount.Amount, error) {
	a, err := amount.Parse(w.Amount)
	if err != nil {
		return amount.Zero(), errs.Wrap(err, "amount")
	}
	return a, nil
}

func (m *MintRequest) Parse() (amount.Amount, error) {
	if m.Account == "" {
		return amount.Zero(), errs.Invalid("empty account")
	}
	a, err := amount.Parse(m.Amount)
	if err != nil {
		return amount.Zero(), errs.Wrap(err, "amount")
	}
	return a, nil
}
