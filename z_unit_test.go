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
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/zintix-labs/spinpool/errs"
	"github.com/zintix-labs/spinpool/host"
	"github.com/zintix-labs/spinpool/ledger"
	"github.com/zintix-labs/spinpool/sdk/amount"
	"github.com/zintix-labs/spinpool/sdk/core"
	"github.com/zintix-labs/spinpool/sdk/draw"
	"github.com/zintix-labs/spinpool/sdk/wheel"
	"github.com/zintix-labs/spinpool/setting"
	"github.com/zintix-labs/spinpool/store"
)

type countObserver struct {
	mu      sync.Mutex
	ops     map[string]int
	failed  int
	settled []*ledger.Settlement
	sweeps  int
}

func (o *countObserver) ObserveOp(op string, _ time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.ops == nil {
		o.ops = make(map[string]int)
	}
	o.ops[op]++
	if err != nil {
		o.failed++
	}
}

func (o *countObserver) ObserveSettlement(st *ledger.Settlement, _ ledger.PoolView) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.settled = append(o.settled, st)
}

func (o *countObserver) ObserveSweep(*ledger.SweepResult) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sweeps++
}

type rtFixture struct {
	t     *testing.T
	chain *host.Chain
	st    *store.Memory
	obs   *countObserver
	sp    *Spinpool
	rt    *PoolRuntime
}

func newRtFixture(t *testing.T, d draw.Drawer) *rtFixture {
	t.Helper()
	sp, err := New(core.Default(), setting.MustDefault(), d)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	f := &rtFixture{
		t:     t,
		chain: host.NewChain(host.ChainOptions{Seed: 1}),
		st:    store.NewMemory(),
		obs:   &countObserver{},
		sp:    sp,
	}
	f.rt = f.build()
	return f
}

func (f *rtFixture) build() *PoolRuntime {
	f.t.Helper()
	rt, err := f.sp.BuildRuntime(context.Background(), f.chain, RuntimeOptions{Store: f.st, Observers: []Observer{f.obs}})
	if err != nil {
		f.t.Fatalf("build runtime: %v", err)
	}
	return rt
}

func (f *rtFixture) mint(acc string, v uint64) amount.Amount {
	f.t.Helper()
	a := amount.New(v)
	if err := f.chain.Mint(acc, a); err != nil {
		f.t.Fatalf("mint: %v", err)
	}
	return a
}

func TestRuntimeBetSettleAndJournal(t *testing.T) {
	f := newRtFixture(t, draw.Fixed(7))
	ctx := context.Background()

	stake := f.mint("bob", 1000)
	if _, err := f.rt.AddStake(ctx, "bob", stake, stake); err != nil {
		t.Fatalf("stake: %v", err)
	}
	round := f.rt.Round().Index
	bet := f.mint("alice", 10)
	w := []ledger.Wager{{Category: wheel.Number, Selector: 7, Amount: bet}}
	if _, err := f.rt.PlaceBet(ctx, "alice", bet, w, round); err != nil {
		t.Fatalf("bet: %v", err)
	}
	if !amount.IsZero(f.chain.Wallet("alice")) {
		t.Fatalf("attached value must leave the wallet")
	}

	if _, err := f.rt.SettleRound(ctx, round); !errs.IsKind(err, errs.StateConflict) {
		t.Fatalf("settle before delay must conflict, got %v", err)
	}
	f.chain.Advance(f.rt.Setting().RoundDelay)
	st, err := f.rt.SettleRound(ctx, round)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if st.Outcome != 7 || !amount.Equal(st.Paid, amount.New(360)) || st.Direction != ledger.PoolLoses {
		t.Fatalf("unexpected settlement %+v", st)
	}
	if f.rt.Round().Index != round+1 {
		t.Fatalf("round must advance")
	}
	acc, err := f.rt.Account("alice")
	if err != nil {
		t.Fatalf("account: %v", err)
	}
	if !amount.Equal(acc.Balance, amount.New(360)) {
		t.Fatalf("alice balance got %s", amount.String(acc.Balance))
	}
	if err := f.rt.Audit(); err != nil {
		t.Fatalf("audit: %v", err)
	}

	entries, err := f.rt.Journal(ctx, "alice", 10)
	if err != nil {
		t.Fatalf("journal: %v", err)
	}
	kinds := map[ledger.EntryKind]bool{}
	for _, e := range entries {
		kinds[e.Kind] = true
	}
	if !kinds[ledger.EntryBet] || !kinds[ledger.EntryPayout] {
		t.Fatalf("journal kinds got %v", kinds)
	}
	if len(f.obs.settled) != 1 || f.obs.ops["settle_round"] != 2 || f.obs.failed != 1 {
		t.Fatalf("observer got ops %v failed %d settled %d", f.obs.ops, f.obs.failed, len(f.obs.settled))
	}
}

func TestRuntimeRefundsAttachedOnRejection(t *testing.T) {
	f := newRtFixture(t, draw.Fixed(0))
	ctx := context.Background()
	round := f.rt.Round().Index

	// 沒有質押時上限為 0
	bet := f.mint("alice", 10)
	w := []ledger.Wager{{Category: wheel.Color, Selector: 0, Amount: bet}}
	if _, err := f.rt.PlaceBet(ctx, "alice", bet, w, round); !errs.IsKind(err, errs.PolicyViolation) {
		t.Fatalf("bet over ceiling must be a policy violation, got %v", err)
	}
	if !amount.Equal(f.chain.Wallet("alice"), bet) {
		t.Fatalf("attached value must be refunded, wallet %s", amount.String(f.chain.Wallet("alice")))
	}
	if !amount.IsZero(f.chain.PoolBalance()) {
		t.Fatalf("pool must stay empty")
	}
	if _, err := f.rt.Account("alice"); !errs.IsKind(err, errs.NotFound) {
		t.Fatalf("rejected bet must not create account, got %v", err)
	}

	// 錢包不足：入池失敗，什麼都不變
	if _, err := f.rt.Deposit(ctx, "carol", amount.New(5)); !errs.IsKind(err, errs.InsufficientFunds) {
		t.Fatalf("attach without funds must fail, got %v", err)
	}
	if _, err := f.rt.AddStake(ctx, "alice", bet, amount.New(11)); !errs.IsKind(err, errs.InsufficientFunds) {
		t.Fatalf("stake above attached must fail, got %v", err)
	}
	if !amount.Equal(f.chain.Wallet("alice"), bet) {
		t.Fatalf("failed stake must refund")
	}
}

func TestRuntimeDepositWithdraw(t *testing.T) {
	f := newRtFixture(t, nil)
	ctx := context.Background()
	bal, err := f.rt.Deposit(ctx, "alice", f.mint("alice", 50))
	if err != nil || !amount.Equal(bal, amount.New(50)) {
		t.Fatalf("deposit got %s %v", amount.String(bal), err)
	}
	bal, err = f.rt.Withdraw(ctx, "alice", amount.New(20))
	if err != nil || !amount.Equal(bal, amount.New(30)) {
		t.Fatalf("withdraw got %s %v", amount.String(bal), err)
	}
	if !amount.Equal(f.chain.Wallet("alice"), amount.New(20)) {
		t.Fatalf("wallet got %s", amount.String(f.chain.Wallet("alice")))
	}
	if !amount.Equal(f.rt.Liabilities(), amount.New(30)) {
		t.Fatalf("liabilities got %s", amount.String(f.rt.Liabilities()))
	}
	if _, err := f.rt.Withdraw(ctx, "alice", amount.New(31)); !errs.IsKind(err, errs.InsufficientFunds) {
		t.Fatalf("overdraw must fail, got %v", err)
	}
}

func TestRuntimeRestoresFromStore(t *testing.T) {
	f := newRtFixture(t, nil)
	ctx := context.Background()
	stake := f.mint("bob", 1000)
	id, err := f.rt.AddStake(ctx, "bob", stake, stake)
	if err != nil {
		t.Fatalf("stake: %v", err)
	}
	f.rt.Close()

	rt := f.build()
	if !amount.Equal(rt.Pool().Stake, stake) {
		t.Fatalf("restored pool stake got %s", amount.String(rt.Pool().Stake))
	}
	acc, err := rt.Account("bob")
	if err != nil || len(acc.Stakes) != 1 || acc.Stakes[0].ID != id {
		t.Fatalf("restored account got %+v %v", acc, err)
	}
	if !amount.Equal(rt.Round().Ceiling, amount.New(100)) {
		t.Fatalf("restored ceiling got %s", amount.String(rt.Round().Ceiling))
	}
}

func TestRuntimeLifecycle(t *testing.T) {
	f := newRtFixture(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	dep := f.mint("alice", 5)
	if _, err := f.rt.Deposit(ctx, "alice", dep); err == nil {
		t.Fatalf("canceled context must fail")
	}
	if !amount.Equal(f.chain.Wallet("alice"), dep) {
		t.Fatalf("canceled call must not attach")
	}

	f.rt.Close()
	f.rt.Close()
	if !f.rt.Closed() || f.rt.ClosedReason() != "closed" {
		t.Fatalf("closed state got %v %q", f.rt.Closed(), f.rt.ClosedReason())
	}
	_, err := f.rt.Deposit(context.Background(), "alice", dep)
	e, ok := errs.AsErr(err)
	if !ok || e.ErrLv != errs.Fatal {
		t.Fatalf("closed runtime must return fatal, got %v", err)
	}
}

func TestRuntimeClosesWhenPersistFails(t *testing.T) {
	f := newRtFixture(t, nil)
	if err := f.st.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}
	if _, err := f.rt.Deposit(context.Background(), "alice", f.mint("alice", 5)); err == nil {
		t.Fatalf("persist failure must surface")
	}
	if !f.rt.Closed() || !strings.Contains(f.rt.ClosedReason(), "persist") {
		t.Fatalf("runtime must close on persist failure, reason %q", f.rt.ClosedReason())
	}
}

func TestRuntimeSettlesManyWinnersOnSQLite(t *testing.T) {
	const players = 4000
	f := newRtFixture(t, draw.Fixed(7))
	ctx := context.Background()

	stake := f.mint("bob", 100000)
	if _, err := f.rt.AddStake(ctx, "bob", stake, stake); err != nil {
		t.Fatalf("stake: %v", err)
	}
	round := f.rt.Round().Index
	one := amount.New(1)
	w := []ledger.Wager{{Category: wheel.Parity, Selector: 1, Amount: one}}
	for i := 0; i < players; i++ {
		acc := fmt.Sprintf("p%04d", i)
		if _, err := f.rt.PlaceBet(ctx, acc, f.mint(acc, 1), w, round); err != nil {
			t.Fatalf("bet %s: %v", acc, err)
		}
	}
	f.rt.Close()

	// 下注後的快照搬到 SQLite，再由 SQLite 還原並結算
	state, ok, err := f.st.Load(ctx)
	if err != nil || !ok {
		t.Fatalf("load memory state: ok=%v err=%v", ok, err)
	}
	db, err := store.OpenSQLite(ctx, filepath.Join(t.TempDir(), "pool.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer db.Close()
	if err := db.Save(ctx, state, nil); err != nil {
		t.Fatalf("seed sqlite: %v", err)
	}
	rt, err := f.sp.BuildRuntime(ctx, f.chain, RuntimeOptions{Store: db})
	if err != nil {
		t.Fatalf("build runtime: %v", err)
	}
	defer rt.Close()

	f.chain.Advance(rt.Setting().RoundDelay)
	st, err := rt.SettleRound(ctx, round)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if !amount.Equal(st.Paid, amount.New(2*players)) {
		t.Fatalf("paid got %s", amount.String(st.Paid))
	}
	entries, err := db.Entries(ctx, "", 0)
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	n := 0
	for _, e := range entries {
		if e.Kind == ledger.EntryPayout {
			n++
		}
	}
	if n != players {
		t.Fatalf("payout entries got %d want %d", n, players)
	}
	if _, err := rt.Withdraw(ctx, "p0000", amount.New(2)); err != nil {
		t.Fatalf("withdraw after settlement: %v", err)
	}
	if rt.Closed() {
		t.Fatalf("runtime closed: %s", rt.ClosedReason())
	}
}

func TestRuntimeJournalLimit(t *testing.T) {
	f := newRtFixture(t, nil)
	if _, err := f.rt.Journal(context.Background(), "", 0); !errs.IsKind(err, errs.InvalidInput) {
		t.Fatalf("zero limit must be invalid, got %v", err)
	}
}

func newTestSimulator(t *testing.T, seed int64) *Simulator {
	t.Helper()
	sp, err := NewDefault()
	if err != nil {
		t.Fatalf("new default: %v", err)
	}
	s, err := sp.NewSimulatorWithSeed(seed)
	if err != nil {
		t.Fatalf("simulator: %v", err)
	}
	return s
}

func TestSimRtpNearTheoretical(t *testing.T) {
	s := newTestSimulator(t, 42)
	s.Lambda = 6
	r, _, err := s.Sim(20_000, false)
	if err != nil {
		t.Fatalf("sim: %v", err)
	}
	if r.Summary.Rounds != 20_000 {
		t.Fatalf("rounds got %d", r.Summary.Rounds)
	}
	want := 36.0 / 37.0
	if math.Abs(r.Summary.RTP-want) > 0.08 {
		t.Fatalf("rtp got %f want about %f", r.Summary.RTP, want)
	}
	if r.Dist.PValue < 1e-6 {
		t.Fatalf("outcome distribution looks skewed, p=%g", r.Dist.PValue)
	}
	if r.Pool.PoolWins+r.Pool.PoolLoses > r.Summary.Rounds {
		t.Fatalf("pool direction counts exceed rounds")
	}
}

func TestSimDeterministicPerSeed(t *testing.T) {
	a, _, err := newTestSimulator(t, 7).Sim(500, false)
	if err != nil {
		t.Fatalf("sim a: %v", err)
	}
	b, _, err := newTestSimulator(t, 7).Sim(500, false)
	if err != nil {
		t.Fatalf("sim b: %v", err)
	}
	if a.Summary.TotalBet != b.Summary.TotalBet || a.Summary.TotalWin != b.Summary.TotalWin {
		t.Fatalf("same seed must reproduce: %v/%v vs %v/%v", a.Summary.TotalBet, a.Summary.TotalWin, b.Summary.TotalBet, b.Summary.TotalWin)
	}
}

func TestSimMPMergesWorkers(t *testing.T) {
	s := newTestSimulator(t, 3)
	r, _, err := s.SimMP(300, 4, false)
	if err != nil {
		t.Fatalf("simmp: %v", err)
	}
	if r.Summary.Rounds != 1200 {
		t.Fatalf("rounds got %d", r.Summary.Rounds)
	}
	if r.Pool.Staked <= 0 {
		t.Fatalf("staked must be reported")
	}
	if _, _, err := s.SimMP(10, 0, false); err == nil {
		t.Fatalf("zero workers must fail")
	}
}

func TestSimPlayers(t *testing.T) {
	s := newTestSimulator(t, 11)
	r, est, _, err := s.SimPlayers(2, 20, 10, 200, false)
	if err != nil {
		t.Fatalf("sim players: %v", err)
	}
	if r == nil || est == nil {
		t.Fatalf("reports must not be nil")
	}
	if est.Players != 20 {
		t.Fatalf("players got %d", est.Players)
	}
	if r.Summary.Rounds < 20 {
		t.Fatalf("every player plays at least one round, got %d", r.Summary.Rounds)
	}
	if _, _, _, err := s.SimPlayers(1, 0, 10, 10, false); err == nil {
		t.Fatalf("zero players must fail")
	}
}

func TestSeedMakerDistinct(t *testing.T) {
	sm := newSeedMaker(1)
	seen := map[int64]bool{}
	for i := 0; i < 1000; i++ {
		v := sm.next()
		if v < 0 || seen[v] {
			t.Fatalf("seed %d repeated or negative", v)
		}
		seen[v] = true
	}
}

func TestSimRejectsBadCategoryWeights(t *testing.T) {
	s := newTestSimulator(t, 5)
	s.CategoryWeights = []int{1, 2}
	if _, _, err := s.Sim(10, false); err == nil {
		t.Fatalf("short weights must fail")
	}
	s.CategoryWeights = []int{0, 0, 0, 0, 0, 0}
	if _, _, err := s.Sim(10, false); !errs.IsKind(err, errs.InvalidInput) {
		t.Fatalf("zero weights must be invalid, got %v", err)
	}
}
