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

// Package wheel 是輪盤的判獎純函數：給定下注（類別 + 選項）與開出的號碼，回傳輸贏與派彩倍數。
//
// 號碼範圍 [0, 36]，共 37 格。0 只有「單號 0」會中，其他類別遇到 0 一律輸。
package wheel

import (
	"fmt"
	"strconv"

	"github.com/zintix-labs/spinpool/errs"
)

// Slots 輪盤格數（0 + 1..36）。
const Slots uint8 = 37

// Category 下注類別，六類互斥。
type Category uint8

const (
	Color Category = iota
	Column
	Dozen
	Eighteen
	Parity
	Number
	categoryCount
)

var categoryName = [categoryCount]string{"color", "column", "dozen", "eighteen", "parity", "number"}

// payouts 為總返還倍數（含本金）。
var payouts = [categoryCount]uint64{2, 3, 3, 2, 2, 36}

// selectorMax 為各類別選項上限（含）。
var selectorMax = [categoryCount]uint8{1, 2, 2, 1, 1, 36}

func (c Category) String() string {
	if c < categoryCount {
		return categoryName[c]
	}
	return fmt.Sprintf("category(%d)", uint8(c))
}

// Valid 類別是否存在。
func (c Category) Valid() bool { return c < categoryCount }

// Payout 回傳類別派彩倍數；未知類別回傳 0。
func (c Category) Payout() uint64 {
	if !c.Valid() {
		return 0
	}
	return payouts[c]
}

// MaxSelector 回傳類別可選的最大選項；未知類別回傳 0。
func (c Category) MaxSelector() uint8 {
	if !c.Valid() {
		return 0
	}
	return selectorMax[c]
}

// ParseCategory 由名稱或數字字串解析類別。
func ParseCategory(s string) (Category, error) {
	for i, n := range categoryName {
		if n == s {
			return Category(i), nil
		}
	}
	if v, err := strconv.ParseUint(s, 10, 8); err == nil && Category(v).Valid() {
		return Category(v), nil
	}
	return 0, errs.Invalid("unknown category %q", s)
}

// Categories 依序回傳全部類別。
func Categories() []Category {
	out := make([]Category, 0, categoryCount)
	for c := Color; c < categoryCount; c++ {
		out = append(out, c)
	}
	return out
}

// Validate 檢查 (類別, 選項) 是否合法。
func Validate(c Category, selector uint8) error {
	if !c.Valid() {
		return errs.Invalid("unknown category %d", uint8(c))
	}
	if selector > selectorMax[c] {
		return errs.Invalid("selector %d out of range for %s (max %d)", selector, c, selectorMax[c])
	}
	return nil
}

// Check 判斷 (類別, 選項) 在 outcome 下是否中獎。
// 非法的組合與超出範圍的 outcome 一律視為未中獎。
func Check(c Category, selector uint8, outcome uint8) bool {
	if Validate(c, selector) != nil || outcome >= Slots {
		return false
	}
	if outcome == 0 {
		return c == Number && selector == 0
	}
	n := outcome
	switch c {
	case Number:
		return selector == n
	case Parity:
		if selector == 0 {
			return n%2 == 0
		}
		return n%2 == 1
	case Eighteen:
		if selector == 0 {
			return n <= 18
		}
		return n >= 19
	case Dozen:
		switch selector {
		case 0:
			return n <= 12
		case 1:
			return n > 12 && n <= 24
		default:
			return n > 24
		}
	case Column:
		switch selector {
		case 0:
			return n%3 == 1
		case 1:
			return n%3 == 2
		default:
			return n%3 == 0
		}
	case Color:
		// 1-10 與 20-28 偶數為黑；11-19 與 29-36 奇數為黑
		band := n <= 10 || (n >= 20 && n <= 28)
		black := (band && n%2 == 0) || (!band && n%2 == 1)
		if selector == 0 {
			return black
		}
		return !black
	}
	return false
}

// Multiplier 回傳中獎時的派彩倍數，未中獎為 0。
func Multiplier(c Category, selector uint8, outcome uint8) uint64 {
	if Check(c, selector, outcome) {
		return payouts[c]
	}
	return 0
}
