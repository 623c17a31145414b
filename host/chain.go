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

package host

import (
	"slices"
	"sync"
	"time"

	"github.com/zintix-labs/spinpool/errs"
	"github.com/zintix-labs/spinpool/sdk/amount"
	"github.com/zintix-labs/spinpool/sdk/core"
)

// PoolAccount 模擬鏈上池子本身的帳號名稱（僅用於轉帳紀錄）。
const PoolAccount = "@pool"

// Transfer 一筆宿主層級的轉帳紀錄。
type Transfer struct {
	Height uint64        `json:"height"`
	Time   int64         `json:"time"`
	From   string        `json:"from"`
	To     string        `json:"to"`
	Amount amount.Amount `json:"amount"`
}

type ChainOptions struct {
	Seed         int64         // 信標 PRNG seed
	Genesis      time.Time     // 起始區塊時間
	BlockTime    time.Duration // 每個區塊的時間間隔
	StartHeight  uint64
	KeepTransfer int // 轉帳紀錄保留筆數，0 代表不保留
}

// Chain 為記憶體內的模擬宿主，可安全地被多個 goroutine 使用。
type Chain struct {
	mu        sync.Mutex
	height    uint64
	now       int64
	step      int64
	beacon    []byte
	core      *core.Core
	wallets   map[string]amount.Amount
	pool      amount.Amount
	transfers []Transfer
	keep      int
	failNext  error
}

var _ Host = (*Chain)(nil)

func NewChain(opt ChainOptions) *Chain {
	if opt.BlockTime <= 0 {
		opt.BlockTime = time.Second
	}
	if opt.Genesis.IsZero() {
		opt.Genesis = time.Unix(1_700_000_000, 0)
	}
	c := &Chain{
		height:  opt.StartHeight,
		now:     opt.Genesis.Unix(),
		step:    int64(opt.BlockTime / time.Second),
		core:    core.NewSeeded(opt.Seed),
		wallets: make(map[string]amount.Amount),
		keep:    opt.KeepTransfer,
	}
	if c.step <= 0 {
		c.step = 1
	}
	c.beacon = c.core.Bytes(32)
	return c
}

func (c *Chain) BlockHeight() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.height
}

func (c *Chain) BlockTime() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Chain) RandomSeed() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.beacon)
}

func (c *Chain) PoolBalance() amount.Amount {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pool
}

func (c *Chain) Transfer(to string, amt amount.Amount) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.takeFailure(); err != nil {
		return err
	}
	if to == "" {
		return errs.Invalid("transfer: empty receiver")
	}
	rest, under := amount.Sub(c.pool, amt)
	if under {
		return errs.Funds("transfer: pool balance %s < %s", amount.String(c.pool), amount.String(amt))
	}
	w, overflow := amount.Add(c.wallets[to], amt)
	if overflow {
		return errs.Fatalf("transfer: wallet %s overflow", to)
	}
	c.pool = rest
	c.wallets[to] = w
	c.record(PoolAccount, to, amt)
	return nil
}

func (c *Chain) Attach(from string, amt amount.Amount) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if amt.IsZero() {
		return nil
	}
	rest, under := amount.Sub(c.wallets[from], amt)
	if under {
		return errs.Funds("attach: wallet %s holds %s < %s", from, amount.String(c.wallets[from]), amount.String(amt))
	}
	p, overflow := amount.Add(c.pool, amt)
	if overflow {
		return errs.Fatalf("attach: pool overflow")
	}
	c.wallets[from] = rest
	c.pool = p
	c.record(from, PoolAccount, amt)
	return nil
}

func (c *Chain) Refund(to string, amt amount.Amount) error {
	if amt.IsZero() {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	rest, under := amount.Sub(c.pool, amt)
	if under {
		return errs.Fatalf("refund: pool balance %s < %s", amount.String(c.pool), amount.String(amt))
	}
	w, _ := amount.Add(c.wallets[to], amt)
	c.pool = rest
	c.wallets[to] = w
	c.record(PoolAccount, to, amt)
	return nil
}

// Advance 前進 blocks 個區塊，時間與信標一起更新。
func (c *Chain) Advance(blocks uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := uint64(0); i < blocks; i++ {
		c.height++
		c.now += c.step
		c.core.Fill(c.beacon)
	}
}

// Sleep 時間前進 d（不產生區塊），用於跨越質押鎖定期與國庫間隔。
func (c *Chain) Sleep(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += int64(d / time.Second)
}

// Mint 憑空發幣到錢包（模擬外部入金）。
func (c *Chain) Mint(to string, amt amount.Amount) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	w, overflow := amount.Add(c.wallets[to], amt)
	if overflow {
		return errs.Invalid("mint: wallet %s overflow", to)
	}
	c.wallets[to] = w
	return nil
}

// FundPool 直接增加池子餘額（模擬合約初始資金或儲存押金）。
func (c *Chain) FundPool(amt amount.Amount) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pool, _ = amount.Add(c.pool, amt)
}

// Wallet 查詢錢包餘額。
func (c *Chain) Wallet(acc string) amount.Amount {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.wallets[acc]
}

// Transfers 回傳轉帳紀錄副本。
func (c *Chain) Transfers() []Transfer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.transfers)
}

// FailNextTransfer 讓下一次 Transfer 失敗（測試宿主失敗時帳本不變）。
func (c *Chain) FailNextTransfer(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failNext = err
}

func (c *Chain) takeFailure() error {
	err := c.failNext
	c.failNext = nil
	return err
}

func (c *Chain) record(from, to string, amt amount.Amount) {
	if c.keep <= 0 {
		return
	}
	if len(c.transfers) >= c.keep {
		c.transfers = c.transfers[1:]
	}
	c.transfers = append(c.transfers, Transfer{Height: c.height, Time: c.now, From: from, To: to, Amount: amt})
}
