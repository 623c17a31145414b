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

// Package spinpool 提供資金池引擎的「組裝入口（assembler）」與「運行入口（runtime entry）」。
//
// Spinpool 把下列地基組裝在一起：
//  1. PoolSetting：部署期參數（分級、國庫、回合延遲、上限比例），來源一律以 fs.FS 或已解析的設定注入。
//  2. Drawer：開獎方式，預設為對宿主亂數信標做雜湊。
//  3. PRNGFactory：決定性亂數核心工廠，供模擬器與模擬鏈使用。
//
// 典型使用情境：
//   - 後端服務（HTTP）：由 Spinpool 建立 PoolRuntime，PoolRuntime 序列化所有帳本呼叫並負責持久化。
//   - 模擬器（sim）：由 Spinpool 建立 Simulator，在模擬鏈上跑大量回合並輸出統計。
package spinpool

import (
	"context"
	"io/fs"
	"log/slog"

	"github.com/zintix-labs/spinpool/errs"
	"github.com/zintix-labs/spinpool/host"
	"github.com/zintix-labs/spinpool/ledger"
	"github.com/zintix-labs/spinpool/sdk/core"
	"github.com/zintix-labs/spinpool/sdk/draw"
	"github.com/zintix-labs/spinpool/setting"
	"github.com/zintix-labs/spinpool/store"
)

// Spinpool 是組裝器：持有一份唯讀的 PoolSetting 與建立帳本所需的元件。
type Spinpool struct {
	cfg    *setting.PoolSetting
	cf     core.PRNGFactory
	drawer draw.Drawer
}

// New 建立一個 Spinpool instance。drawer 為 nil 時使用雜湊開獎。
func New(cf core.PRNGFactory, ps *setting.PoolSetting, drawer draw.Drawer) (*Spinpool, error) {
	if cf == nil {
		return nil, errs.NewFatal("core factory required")
	}
	if ps == nil {
		return nil, errs.NewFatal("pool setting required")
	}
	if drawer == nil {
		drawer = draw.HashDrawer{}
	}
	return &Spinpool{cfg: ps.Clone(), cf: cf, drawer: drawer}, nil
}

// NewFromFS 從 fsys 讀取設定檔後建立。
func NewFromFS(cf core.PRNGFactory, fsys fs.FS, name string) (*Spinpool, error) {
	ps, err := setting.FromFS(fsys, name)
	if err != nil {
		return nil, err
	}
	return New(cf, ps, nil)
}

// NewDefault 以內嵌的預設設定建立。
func NewDefault() (*Spinpool, error) {
	ps, err := setting.Default()
	if err != nil {
		return nil, err
	}
	return New(core.Default(), ps, nil)
}

// Setting 回傳設定副本。
func (p *Spinpool) Setting() *setting.PoolSetting { return p.cfg.Clone() }

// NewLedger 在 env 上建立全新的帳本（不持久化，供工具與測試使用）。
func (p *Spinpool) NewLedger(env host.Env) *ledger.Ledger {
	return ledger.New(p.cfg, env, p.drawer)
}

// RuntimeOptions BuildRuntime 的選用元件。
type RuntimeOptions struct {
	Store     store.Store  // nil 時使用記憶體
	Log       *slog.Logger // nil 時丟棄
	Observers []Observer
}

// BuildRuntime 建立運行入口。
//
// 若 Store 內已有快照則從快照還原帳本並先做一次 Audit；否則建立全新帳本並立即寫入初始快照。
func (p *Spinpool) BuildRuntime(ctx context.Context, h host.Host, opt RuntimeOptions) (*PoolRuntime, error) {
	if h == nil {
		return nil, errs.NewFatal("host required")
	}
	st := opt.Store
	if st == nil {
		st = store.NewMemory()
	}
	log := opt.Log
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	snap, ok, err := st.Load(ctx)
	if err != nil {
		return nil, errs.Wrap(err, "load snapshot")
	}
	var l *ledger.Ledger
	if ok {
		l, err = ledger.Restore(p.cfg, h, p.drawer, snap)
		if err != nil {
			return nil, errs.Wrap(err, "restore ledger")
		}
		if err := l.Audit(); err != nil {
			return nil, errs.Wrap(err, "audit restored ledger")
		}
		log.Info("ledger restored", slog.Uint64("round", l.Round().Index), slog.Int("accounts", len(l.Accounts())))
	} else {
		l = ledger.New(p.cfg, h, p.drawer)
		if err := st.Save(ctx, l.Snapshot(), l.Drain()); err != nil {
			return nil, errs.Wrap(err, "save initial snapshot")
		}
		log.Info("ledger created", slog.String("pool", p.cfg.Name))
	}
	return newPoolRuntime(l, h, st, log, opt.Observers), nil
}

// NewSimulator 以加密亂數 seed 建立模擬器。
func (p *Spinpool) NewSimulator() (*Simulator, error) {
	return p.NewSimulatorWithSeed(core.CryptoSeed())
}

// NewSimulatorWithSeed 建立可重現的模擬器：同一份設定 + 同一個 seed，結果一致。
func (p *Spinpool) NewSimulatorWithSeed(seed int64) (*Simulator, error) {
	return newSimulatorWithSeed(p.cfg, p.cf, p.drawer, seed)
}
