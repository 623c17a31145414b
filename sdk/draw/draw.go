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

// Package draw 把宿主提供的亂數信標轉成 [0, 36] 的開獎號碼。
//
// 預設的 HashDrawer 對 (信標 ‖ 選項 ‖ 類別 ‖ 帳號) 做 sha3-256，把 32 bytes 視為 256-bit
// 整數後取模 37，偏差 < 2^-250。信標若可被結算呼叫者預知，結果即可被預測；
// 需要更強保證時，以 commit-reveal 或 VRF 實作 Drawer 替換即可。
package draw

import (
	"github.com/holiman/uint256"
	"github.com/zintix-labs/spinpool/errs"
	"github.com/zintix-labs/spinpool/sdk/wheel"
	"golang.org/x/crypto/sha3"
)

// Input 為一次開獎所需的全部材料。
type Input struct {
	Seed     []byte // 宿主亂數信標
	Selector uint8  // 最後一位參與者最後一注的選項
	Category uint8  // 最後一位參與者最後一注的類別
	Account  string // 最後一位參與者
}

// Drawer 產生開獎號碼。實作必須是純函數：相同 Input 得到相同結果。
type Drawer interface {
	Draw(in Input) (uint8, error)
}

// DrawerFunc 讓一般函數滿足 Drawer。
type DrawerFunc func(in Input) (uint8, error)

func (f DrawerFunc) Draw(in Input) (uint8, error) { return f(in) }

// HashDrawer 為預設 Drawer。
type HashDrawer struct{}

func (HashDrawer) Draw(in Input) (uint8, error) {
	if len(in.Seed) == 0 {
		return 0, errs.NewFatal("draw: empty randomness seed")
	}
	return Outcome(Digest(in)), nil
}

// Digest 回傳 sha3-256(seed ‖ selector ‖ category ‖ account)。
func Digest(in Input) [32]byte {
	h := sha3.New256()
	h.Write(in.Seed)
	h.Write([]byte{in.Selector, in.Category})
	h.Write([]byte(in.Account))
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// Outcome 把 digest 視為 big-endian 256-bit 整數並取模 37。
func Outcome(digest [32]byte) uint8 {
	var v, m, r uint256.Int
	v.SetBytes32(digest[:])
	m.SetUint64(uint64(wheel.Slots))
	r.Mod(&v, &m)
	return uint8(r.Uint64())
}

// Fixed 永遠開出同一號碼，供測試與重播使用。
func Fixed(n uint8) Drawer {
	return DrawerFunc(func(Input) (uint8, error) {
		if n >= wheel.Slots {
			return 0, errs.Invalid("fixed outcome %d out of range", n)
		}
		return n, nil
	})
}

// Sequence 依序開出 ns 中的號碼，用完後循環。
func Sequence(ns ...uint8) Drawer {
	i := 0
	return DrawerFunc(func(Input) (uint8, error) {
		if len(ns) == 0 {
			return 0, errs.NewFatal("draw: empty sequence")
		}
		n := ns[i%len(ns)]
		i++
		if n >= wheel.Slots {
			return 0, errs.Invalid("sequence outcome %d out of range", n)
		}
		return n, nil
	})
}
