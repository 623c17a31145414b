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

// Package ledger 是資金池的結算引擎：下注與回合狀態、質押、盈虧分配與國庫分配。
//
// 每個操作都遵循同一個順序：先檢查全部前置條件，再執行宿主轉帳（可能失敗，失敗時不留任何變更），
// 最後才修改狀態（不會失敗）。結算與國庫分配先在區域變數裡算出完整計畫，再一次提交。
//
// Ledger 不是 goroutine-safe；併發呼叫由上層（PoolRuntime）以互斥鎖序列化。
package ledger

import (
	"github.com/zintix-labs/spinpool/host"
	"github.com/zintix-labs/spinpool/sdk/amount"
	"github.com/zintix-labs/spinpool/sdk/draw"
	"github.com/zintix-labs/spinpool/setting"
)

// RoundState 全域回合與資金池彙總，只有一份。
type RoundState struct {
	Index      uint64        // 回合序號（單調遞增）
	Start      uint64        // 本回合開局的區塊高度
	Outcome    uint8         // 上一回合開出的號碼
	HasOutcome bool          // 是否已開過獎
	Spinning   bool          // 結算中
	Wagered    amount.Amount // 本回合累計下注
	PoolStake  amount.Amount // 全部質押本金
	PoolProfit amount.Amount // 池子累計獲利
	PoolLoss   amount.Amount // 池子累計虧損（與 PoolProfit 至多一方非零）
	Ceiling    amount.Amount // 單回合下注總額上限
}

// TreasuryState 國庫。
type TreasuryState struct {
	Amount    amount.Amount
	LastSweep int64  // unix 秒，0 代表尚未分配過
	Sweeps    uint64 // 已完成的分配次數
}

type Ledger struct {
	cfg    *setting.PoolSetting
	env    host.Env
	drawer draw.Drawer

	accounts map[string]*Account
	order    []*Account // 建立順序；所有全體掃描依此順序，結果可重現
	players  []*Account // 本回合參與者，依下注順序

	round    RoundState
	treasury TreasuryState
	journal  []Entry
}

// New 建立空帳本。drawer 為 nil 時使用 draw.HashDrawer。
func New(cfg *setting.PoolSetting, env host.Env, drawer draw.Drawer) *Ledger {
	if drawer == nil {
		drawer = draw.HashDrawer{}
	}
	l := &Ledger{
		cfg:      cfg,
		env:      env,
		drawer:   drawer,
		accounts: make(map[string]*Account),
	}
	l.round.Start = env.BlockHeight()
	return l
}

func (l *Ledger) Setting() *setting.PoolSetting { return l.cfg }

// SetDrawer 替換開獎來源。
func (l *Ledger) SetDrawer(d draw.Drawer) {
	if d != nil {
		l.drawer = d
	}
}

// lookup 只讀查詢，不會建立帳號。
func (l *Ledger) lookup(id string) (*Account, bool) {
	acc, ok := l.accounts[id]
	return acc, ok
}

// touch 取得或建立帳號；只在確定要寫入時呼叫。
func (l *Ledger) touch(id string) *Account {
	if acc, ok := l.accounts[id]; ok {
		return acc
	}
	acc := &Account{ID: id, nextStake: 1}
	l.accounts[id] = acc
	l.order = append(l.order, acc)
	return acc
}

// addProfit 池子獲利增加 x 後軋差。
func (l *Ledger) addProfit(x amount.Amount) {
	p, _ := amount.Add(l.round.PoolProfit, x)
	l.round.PoolProfit, l.round.PoolLoss = amount.Net(p, l.round.PoolLoss)
}

// addLoss 池子虧損增加 x 後軋差。
func (l *Ledger) addLoss(x amount.Amount) {
	s, _ := amount.Add(l.round.PoolLoss, x)
	l.round.PoolProfit, l.round.PoolLoss = amount.Net(l.round.PoolProfit, s)
}

// equity = PoolStake + PoolProfit - PoolLoss，飽和於 0。
func (l *Ledger) equity() amount.Amount {
	gross, _ := amount.Add(l.round.PoolStake, l.round.PoolProfit)
	return amount.SatSub(gross, l.round.PoolLoss)
}

// recalcCeiling 依目前池子淨值重算下注上限。
func (l *Ledger) recalcCeiling() {
	l.round.Ceiling = amount.Bps(l.equity(), l.cfg.AllowedRateBps)
}

func (l *Ledger) now() int64 { return l.env.BlockTime() }
