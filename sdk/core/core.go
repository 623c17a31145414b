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

// Package core 是模擬鏈與模擬器共用的決定性亂數核心。
//
// 帳本本身不使用這裡的亂數：開獎由 sdk/draw 對宿主提供的亂數信標做雜湊。
// Core 只負責「可重現」的部分：模擬鏈的信標、模擬器的玩家行為。
package core

import (
	"crypto/rand"
	"encoding/binary"
	"math"
	"math/big"
)

// PRNG 定義 Core 所需的亂數來源，需同時支援取樣與狀態保存/還原。
type PRNG interface {
	RAND
	Restorable
}

// Restorable 定義可快照與還原的狀態介面。
type Restorable interface {
	// Snapshot 回傳可用於還原的序列化狀態。
	Snapshot() ([]byte, error)
	// Restore 依序列化狀態還原 PRNG 內部狀態。
	Restore([]byte) error
}

// RAND 定義核心亂數取樣能力。
// Uint64 同時滿足 math/rand/v2 的 Source，因此 Core 可直接當作 gonum distuv 的 Src。
type RAND interface {
	// Uint64 回傳非負 uint64 亂數。
	Uint64() uint64
	// Float64 回傳 [0,1) 的浮點亂數。
	Float64() float64
	// UintN 回傳 [0,max) 的 uint 亂數，若 max == 0 回傳 0。
	UintN(uint) uint
	// IntN 回傳 [0,max) 的 int 亂數，若 max <= 0 回傳 -1。
	IntN(int) int
}

type PRNGFactory interface {
	// New 以指定 seed 建立新的 PRNG。相同 seed 必須產生相同的輸出序列。
	New(int64) PRNG
}

// DefaultPRNG 實作預設的 PRNGFactory（PCG64）。
type DefaultPRNG struct{}

func (d *DefaultPRNG) New(seed int64) PRNG {
	return NewPCG64(seed)
}

func Default() *DefaultPRNG {
	return &DefaultPRNG{}
}

// Core 封裝 PRNG，並提供常用取樣與工具方法。
type Core struct {
	PRNG
}

// New 允許使用外部自實現的 PRNG 建立 Core。
func New(rng PRNG) *Core {
	return &Core{rng}
}

// NewSeeded 以預設 PRNG 與 seed 建立 Core。
func NewSeeded(seed int64) *Core {
	return &Core{Default().New(seed)}
}

// Pick 從列表中隨機選取一個元素，若列表為空回傳 -1
func (c *Core) Pick(src []int) int {
	if len(src) == 0 {
		return -1
	}
	return src[c.IntN(len(src))]
}

// Bool 回傳公平的布林值。
func (c *Core) Bool() bool {
	return c.Uint64()&1 == 1
}

// Fill 以亂數填滿 dst（每 8 bytes 取一次 Uint64）。
func (c *Core) Fill(dst []byte) {
	var buf [8]byte
	for i := 0; i < len(dst); i += 8 {
		binary.LittleEndian.PutUint64(buf[:], c.Uint64())
		copy(dst[i:], buf[:])
	}
}

// Bytes 回傳 n 個亂數 bytes。
func (c *Core) Bytes(n int) []byte {
	if n <= 0 {
		return nil
	}
	out := make([]byte, n)
	c.Fill(out)
	return out
}

// CryptoSeed 以加密亂數產生非負 int64 seed（外部未指定 seed 時使用）。
func CryptoSeed() int64 {
	n, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
	if err != nil {
		return 0
	}
	return n.Int64()
}
