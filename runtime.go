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

package spinpool

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zintix-labs/spinpool/errs"
	"github.com/zintix-labs/spinpool/host"
	"github.com/zintix-labs/spinpool/ledger"
	"github.com/zintix-labs/spinpool/sdk/amount"
	"github.com/zintix-labs/spinpool/setting"
	"github.com/zintix-labs/spinpool/store"
)

// Observer 接收 runtime 的事件（指標、稽核）。實作不得阻塞，也不得呼叫回 runtime。
type Observer interface {
	ObserveOp(op string, d time.Duration, err error)
	ObserveSettlement(st *ledger.Settlement, pool ledger.PoolView)
	ObserveSweep(r *ledger.SweepResult)
}

// PoolRuntime 是帳本的運行入口：所有呼叫在同一把鎖下依序執行，
// 成功後把新增紀錄與快照寫入 Store，確保「寫入成功才算提交」。
type PoolRuntime struct {
	mu    sync.Mutex
	l     *ledger.Ledger
	h     host.Host
	store store.Store
	log   *slog.Logger
	obs   []Observer

	// lifecycle
	done      chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool
	reason    atomic.Value // string
}

func newPoolRuntime(l *ledger.Ledger, h host.Host, st store.Store, log *slog.Logger, obs []Observer) *PoolRuntime {
	return &PoolRuntime{
		l:     l,
		h:     h,
		store: st,
		log:   log,
		obs:   obs,
		done:  make(chan struct{}),
	}
}

// exec 執行一次會改變狀態的呼叫。
//
// 流程：檢查 ctx/done → 上鎖 → 附帶金額入池 → 帳本操作 → 失敗時退回附帶金額 → 成功時持久化。
// 持久化失敗代表記憶體與 Store 已不一致，runtime 直接關閉。
func (rt *PoolRuntime) exec(ctx context.Context, op string, caller string, attached amount.Amount, fn func(l *ledger.Ledger) error) (err error) {
	select {
	case <-ctx.Done():
		e := errs.NewWarn(op + " canceled/timeout: " + ctx.Err().Error())
		e.Cause = ctx.Err()
		return e
	case <-rt.done:
		rt.closed.Store(true)
		return errs.NewFatal("pool runtime closed: " + rt.ClosedReason())
	default:
	}

	start := time.Now()
	defer func() { rt.observeOp(op, time.Since(start), err) }()

	rt.mu.Lock()
	defer rt.mu.Unlock()

	// 拿到鎖後再確認一次：等鎖期間可能已被關閉
	if rt.Closed() {
		return errs.NewFatal("pool runtime closed: " + rt.ClosedReason())
	}

	if !amount.IsZero(attached) {
		if err = rt.h.Attach(caller, attached); err != nil {
			return errs.Wrap(err, op+": attach")
		}
	}
	if err = fn(rt.l); err != nil {
		if !amount.IsZero(attached) {
			if rerr := rt.h.Refund(caller, attached); rerr != nil {
				rt.log.Error("refund failed", slog.String("op", op), slog.String("account", caller),
					slog.String("amount", amount.String(attached)), slog.Any("err", rerr))
				rt.closeWithReason("refund failed: " + rerr.Error())
				return errs.Wrap(rerr, op+": refund")
			}
		}
		rt.log.Debug(op+" rejected", slog.String("account", caller), slog.String("kind", errs.KindOf(err).String()), slog.Any("err", err))
		return err
	}
	if err = rt.persist(ctx); err != nil {
		rt.log.Error("persist failed", slog.String("op", op), slog.Any("err", err))
		rt.closeWithReason("persist failed: " + err.Error())
		return err
	}
	rt.log.Debug(op, slog.String("account", caller))
	return nil
}

// persist 在鎖內呼叫。使用 WithoutCancel：已提交到記憶體的狀態不能因為請求取消而漏寫。
func (rt *PoolRuntime) persist(ctx context.Context) error {
	entries := rt.l.Drain()
	if err := rt.store.Save(context.WithoutCancel(ctx), rt.l.Snapshot(), entries); err != nil {
		return errs.Wrap(err, "save ledger state")
	}
	return nil
}

func (rt *PoolRuntime) observeOp(op string, d time.Duration, err error) {
	for _, o := range rt.obs {
		o.ObserveOp(op, d, err)
	}
}

// PlaceBet 以 caller 身分對 round 下注；attached 為本次附帶金額。
func (rt *PoolRuntime) PlaceBet(ctx context.Context, caller string, attached amount.Amount, wagers []ledger.Wager, round uint64) (ledger.AccountView, error) {
	var view ledger.AccountView
	err := rt.exec(ctx, "place_bet", caller, attached, func(l *ledger.Ledger) error {
		if err := l.PlaceBet(caller, attached, wagers, round); err != nil {
			return err
		}
		view, _ = l.Account(caller)
		return nil
	})
	return view, err
}

// SettleRound 結算 round。任何人都可以觸發。
func (rt *PoolRuntime) SettleRound(ctx context.Context, round uint64) (*ledger.Settlement, error) {
	var (
		st   *ledger.Settlement
		pool ledger.PoolView
	)
	err := rt.exec(ctx, "settle_round", "", amount.Zero(), func(l *ledger.Ledger) error {
		var err error
		if st, err = l.SettleRound(round); err != nil {
			return err
		}
		pool = l.Pool()
		return nil
	})
	if err != nil {
		return nil, err
	}
	rt.log.Info("round settled",
		slog.Uint64("round", st.Round),
		slog.Int("outcome", int(st.Outcome)),
		slog.String("wagered", amount.String(st.Wagered)),
		slog.String("paid", amount.String(st.Paid)),
		slog.String("direction", st.Direction.String()),
		slog.String("treasury_cut", amount.String(st.TreasuryCut)),
		slog.Int("players", len(st.Players)),
	)
	for _, o := range rt.obs {
		o.ObserveSettlement(st, pool)
	}
	return st, nil
}

// AddStake 新增質押，回傳質押 ID。
func (rt *PoolRuntime) AddStake(ctx context.Context, caller string, attached, amt amount.Amount) (uint64, error) {
	var id uint64
	err := rt.exec(ctx, "add_stake", caller, attached, func(l *ledger.Ledger) error {
		var err error
		id, err = l.AddStake(caller, attached, amt)
		return err
	})
	return id, err
}

// RemoveStake 從質押 id 提領 amt（0 代表全部），回傳實際支付金額。
func (rt *PoolRuntime) RemoveStake(ctx context.Context, caller string, id uint64, amt amount.Amount) (amount.Amount, error) {
	var paid amount.Amount
	err := rt.exec(ctx, "remove_stake", caller, amount.Zero(), func(l *ledger.Ledger) error {
		var err error
		paid, err = l.RemoveStake(caller, id, amt)
		return err
	})
	return paid, err
}

// Harvest 領出質押 id 的淨收益。
func (rt *PoolRuntime) Harvest(ctx context.Context, caller string, id uint64) (amount.Amount, error) {
	var paid amount.Amount
	err := rt.exec(ctx, "harvest", caller, amount.Zero(), func(l *ledger.Ledger) error {
		var err error
		paid, err = l.Harvest(caller, id)
		return err
	})
	return paid, err
}

// Sweep 分配國庫。
func (rt *PoolRuntime) Sweep(ctx context.Context) (*ledger.SweepResult, error) {
	var r *ledger.SweepResult
	err := rt.exec(ctx, "sweep", "", amount.Zero(), func(l *ledger.Ledger) error {
		var err error
		r, err = l.Sweep()
		return err
	})
	if err != nil {
		return nil, err
	}
	rt.log.Info("treasury swept",
		slog.String("amount", amount.String(r.Amount)),
		slog.Int("players", r.Players),
		slog.Int("stakes", r.Stakes),
		slog.String("remainder", amount.String(r.Remainder)),
	)
	for _, o := range rt.obs {
		o.ObserveSweep(r)
	}
	return r, nil
}

// Deposit 附帶金額記入餘額，回傳新餘額。
func (rt *PoolRuntime) Deposit(ctx context.Context, caller string, attached amount.Amount) (amount.Amount, error) {
	var bal amount.Amount
	err := rt.exec(ctx, "deposit", caller, attached, func(l *ledger.Ledger) error {
		var err error
		bal, err = l.Deposit(caller, attached)
		return err
	})
	return bal, err
}

// Withdraw 從餘額提領到宿主錢包，回傳剩餘餘額。
func (rt *PoolRuntime) Withdraw(ctx context.Context, caller string, amt amount.Amount) (amount.Amount, error) {
	var bal amount.Amount
	err := rt.exec(ctx, "withdraw", caller, amount.Zero(), func(l *ledger.Ledger) error {
		var err error
		bal, err = l.Withdraw(caller, amt)
		return err
	})
	return bal, err
}

// read 在鎖內執行唯讀查詢。
func (rt *PoolRuntime) read(fn func(l *ledger.Ledger)) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	fn(rt.l)
}

// Account 查詢帳號；不存在時回傳 NotFound。
func (rt *PoolRuntime) Account(id string) (ledger.AccountView, error) {
	var (
		v  ledger.AccountView
		ok bool
	)
	rt.read(func(l *ledger.Ledger) { v, ok = l.Account(id) })
	if !ok {
		return v, errs.Missing("account %s not found", id)
	}
	return v, nil
}

func (rt *PoolRuntime) Round() ledger.RoundView {
	var v ledger.RoundView
	rt.read(func(l *ledger.Ledger) { v = l.Round() })
	return v
}

func (rt *PoolRuntime) Pool() ledger.PoolView {
	var v ledger.PoolView
	rt.read(func(l *ledger.Ledger) { v = l.Pool() })
	return v
}

func (rt *PoolRuntime) Treasury() ledger.TreasuryView {
	var v ledger.TreasuryView
	rt.read(func(l *ledger.Ledger) { v = l.Treasury() })
	return v
}

// Liabilities 帳本記帳的全部價值。
func (rt *PoolRuntime) Liabilities() amount.Amount {
	var v amount.Amount
	rt.read(func(l *ledger.Ledger) { v = l.Liabilities() })
	return v
}

// Audit 在鎖內重新檢查帳本不變量。
func (rt *PoolRuntime) Audit() error {
	var err error
	rt.read(func(l *ledger.Ledger) { err = l.Audit() })
	return err
}

func (rt *PoolRuntime) Setting() *setting.PoolSetting {
	return rt.l.Setting().Clone()
}

// Journal 回傳 account 最近 limit 筆已持久化的紀錄；account 為空代表全部。
func (rt *PoolRuntime) Journal(ctx context.Context, account string, limit int) ([]ledger.Entry, error) {
	if limit <= 0 {
		return nil, errs.Invalid("limit must be positive")
	}
	return rt.store.Entries(ctx, account, limit)
}

// Close transitions the runtime into a closed state. It is safe to call multiple times.
// Store 的關閉由建立者負責。
func (rt *PoolRuntime) Close() {
	rt.closeWithReason("closed")
}

// closeWithReason closes the runtime and records the reason (written once).
func (rt *PoolRuntime) closeWithReason(reason string) {
	rt.closeOnce.Do(func() {
		if reason == "" {
			reason = "closed"
		}
		rt.reason.Store(reason)
		rt.closed.Store(true)
		close(rt.done)
	})
}

// Closed reports whether the runtime has been closed.
func (rt *PoolRuntime) Closed() bool {
	return rt.closed.Load()
}

func (rt *PoolRuntime) ClosedReason() string {
	if v := rt.reason.Load(); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
