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

// Package sampler 提供 O(1) 的加權抽樣（整數版 Vose Alias Method）。
//
// 模擬器用它決定背景下注者偏好的下注類別。
package sampler

import (
	"math"
	"math/bits"

	"github.com/zintix-labs/spinpool/errs"
	"github.com/zintix-labs/spinpool/sdk/core"
)

// Integers 定義所有底層實現為整數型別的集合
type Integers interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 | ~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64
}

// AliasTable 整數版 alias table：每個槽位只放「自己」與「別名」兩個選項。
//
//   - 建表 O(N)，抽樣 O(1)，固定兩次 IntN。
//   - Prob[i] 為 weight[i] * Size 的整數 scaling，與 Total 比較，不經過浮點數。
type AliasTable struct {
	Prob    []int
	Aliases []int
	Size    int
	Total   int
}

// BuildAliasTable 以非負權重建表，權重不需正規化。
// 空表、負權重、全為零或 total*n 溢位都回 InvalidInput。
func BuildAliasTable[T Integers](weights []T) (*AliasTable, error) {
	n := len(weights)
	if n == 0 {
		return nil, errs.Invalid("alias table: no weights")
	}
	var total uint64
	for i, w := range weights {
		if w < 0 {
			return nil, errs.Invalid("alias table: negative weight at %d", i)
		}
		if uint64(w) > math.MaxInt64-total {
			return nil, errs.Invalid("alias table: total weight overflows")
		}
		total += uint64(w)
	}
	if total == 0 {
		return nil, errs.Invalid("alias table: all weights are zero")
	}
	if hi, lo := bits.Mul64(total, uint64(n)); hi != 0 || lo > math.MaxInt64 {
		return nil, errs.Invalid("alias table: weights too large")
	}

	t := int(total)
	prob := make([]int, n)
	aliases := make([]int, n)
	small := make([]int, 0, n)
	large := make([]int, 0, n)
	for i, w := range weights {
		aliases[i] = i
		prob[i] = int(w) * n
		if prob[i] < t {
			small = append(small, i)
		} else {
			large = append(large, i)
		}
	}
	for len(small) > 0 && len(large) > 0 {
		s := small[len(small)-1]
		small = small[:len(small)-1]
		l := large[len(large)-1]
		large = large[:len(large)-1]

		// s 不足的部分由 l 補上；sum(prob) = total * n 不變
		aliases[s] = l
		prob[l] = prob[l] + prob[s] - t
		if prob[l] < t {
			small = append(small, l)
		} else {
			large = append(large, l)
		}
	}
	// 剩下的槽位機率視為滿格
	for _, i := range large {
		prob[i] = t
	}
	for _, i := range small {
		prob[i] = t
	}
	return &AliasTable{Prob: prob, Aliases: aliases, Size: n, Total: t}, nil
}

// Pick 抽出一個索引。
func (at *AliasTable) Pick(c *core.Core) int {
	idx := c.IntN(at.Size)
	if c.IntN(at.Total) < at.Prob[idx] {
		return idx
	}
	return at.Aliases[idx]
}
