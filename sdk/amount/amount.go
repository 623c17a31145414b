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

// Package amount 提供帳本使用的金額型別與整數運算。
//
// 所有金額都是最小貨幣單位的非負整數，以 256-bit 無號整數（holiman/uint256）表示。
// 乘後除一律走 MulDiv：中間值為 512-bit，不會因為先乘溢位，也不會因為先除而截斷。
// 帳本內不使用任何浮點數；浮點只出現在統計報表與顯示層。
package amount

import (
	"math/big"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
	"github.com/zintix-labs/spinpool/errs"
)

// Amount 為值型別（[4]uint64），可直接放在結構體內複製。
type Amount = uint256.Int

const (
	Hundred     uint64 = 100
	BasisPoints uint64 = 10_000
)

func Zero() Amount { return Amount{} }

func New(v uint64) Amount {
	var a Amount
	a.SetUint64(v)
	return a
}

// Parse 解析十進位整數字串（最小單位）。
func Parse(s string) (Amount, error) {
	if s == "" {
		return Amount{}, errs.Invalid("empty amount")
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return Amount{}, errs.Invalid("invalid amount %q: %v", s, err)
	}
	return *v, nil
}

// ParseOrZero 與 Parse 相同，但空字串視為 0（選填欄位）。
func ParseOrZero(s string) (Amount, error) {
	if s == "" {
		return Amount{}, nil
	}
	return Parse(s)
}

func MustParse(s string) Amount {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// ParseUnits 把人類可讀的小數（例如 "1.5"）依 decimals 轉成最小單位。
// 小數位超過 decimals 視為錯誤，不做四捨五入。
func ParseUnits(s string, decimals int32) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, errs.Invalid("invalid decimal %q: %v", s, err)
	}
	if d.IsNegative() {
		return Amount{}, errs.Invalid("negative amount %q", s)
	}
	shifted := d.Shift(decimals)
	if !shifted.Equal(shifted.Truncate(0)) {
		return Amount{}, errs.Invalid("amount %q has more than %d decimals", s, decimals)
	}
	v, overflow := uint256.FromBig(shifted.BigInt())
	if overflow {
		return Amount{}, errs.Invalid("amount %q overflows 256 bits", s)
	}
	return *v, nil
}

// String 回傳十進位字串（最小單位），用於 DTO 與持久化。
func String(a Amount) string {
	return a.Dec()
}

// Format 以 decimals 位小數輸出（顯示用）。
func Format(a Amount, decimals int32) string {
	return decimal.NewFromBigInt(a.ToBig(), -decimals).String()
}

// Float 轉成 float64（僅統計/顯示使用，會失去精度）。
func Float(a Amount, decimals int32) float64 {
	return decimal.NewFromBigInt(a.ToBig(), -decimals).InexactFloat64()
}

func FromBig(b *big.Int) (Amount, bool) {
	if b == nil || b.Sign() < 0 {
		return Amount{}, true
	}
	v, overflow := uint256.FromBig(b)
	return *v, overflow
}

// Add 回傳 a+b 與是否溢位。
func Add(a, b Amount) (Amount, bool) {
	var z Amount
	_, overflow := z.AddOverflow(&a, &b)
	return z, overflow
}

// Sub 回傳 a-b 與是否下溢。
func Sub(a, b Amount) (Amount, bool) {
	var z Amount
	_, underflow := z.SubOverflow(&a, &b)
	return z, underflow
}

// Mul 回傳 a*b 與是否溢位。
func Mul(a, b Amount) (Amount, bool) {
	var z Amount
	_, overflow := z.MulOverflow(&a, &b)
	return z, overflow
}

// SatSub a-b，下溢時回傳 0。
func SatSub(a, b Amount) Amount {
	z, underflow := Sub(a, b)
	if underflow {
		return Amount{}
	}
	return z
}

// MulDiv 計算 floor(x*y/d)，中間值 512-bit。d 為 0 或結果超過 256-bit 時 ok=false。
func MulDiv(x, y, d Amount) (Amount, bool) {
	if d.IsZero() {
		return Amount{}, false
	}
	var z Amount
	_, overflow := z.MulDivOverflow(&x, &y, &d)
	return z, !overflow
}

// Percent 計算 floor(x*pct/100)。
func Percent(x Amount, pct uint64) Amount {
	z, _ := MulDiv(x, New(pct), New(Hundred))
	return z
}

// Bps 計算 floor(x*bps/10000)。
func Bps(x Amount, bps uint64) Amount {
	z, _ := MulDiv(x, New(bps), New(BasisPoints))
	return z
}

// Net 軋差：profit 與 loss 互抵，回傳後至多一方非零。
func Net(profit, loss Amount) (Amount, Amount) {
	if profit.Cmp(&loss) >= 0 {
		p, _ := Sub(profit, loss)
		return p, Amount{}
	}
	l, _ := Sub(loss, profit)
	return Amount{}, l
}

// Sum 加總；溢位時 ok=false。
func Sum(xs ...Amount) (Amount, bool) {
	var total Amount
	for _, x := range xs {
		var overflow bool
		total, overflow = Add(total, x)
		if overflow {
			return Amount{}, false
		}
	}
	return total, true
}

func Min(a, b Amount) Amount {
	if a.Lt(&b) {
		return a
	}
	return b
}

// IsZero 值版本，方便直接作用在函數回傳值上。
func IsZero(a Amount) bool { return a.IsZero() }

// Cmp 回傳 -1/0/1。
func Cmp(a, b Amount) int { return a.Cmp(&b) }

func Less(a, b Amount) bool { return a.Lt(&b) }

func Equal(a, b Amount) bool { return a.Eq(&b) }
