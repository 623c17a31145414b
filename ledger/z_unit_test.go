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

package ledger

import (
	"encoding/json"
	"reflect"
	"slices"
	"testing"
	"time"

	"github.com/zintix-labs/spinpool/errs"
	"github.com/zintix-labs/spinpool/host"
	"github.com/zintix-labs/spinpool/sdk/amount"
	"github.com/zintix-labs/spinpool/sdk/draw"
	"github.com/zintix-labs/spinpool/sdk/wheel"
	"github.com/zintix-labs/spinpool/setting"
)

const testPool = `
name: test
token: {symbol: T, decimals: 0}
tiers:
  - {min_seconds: 2592000, bonus: 20}
  - {min_seconds: 604800, bonus: 5}
treasury_cut: 10
split: {players: 40, stakers: 40, operator: 20}
treasury_threshold: "10"
treasury_interval: 86400
round_delay: 10
allowed_rate_bps: 1000
max_wagers: 4
min_lock: 0
operator: op
`

func testSetting(t *testing.T, edit func(ps *setting.PoolSetting)) *setting.PoolSetting {
	t.Helper()
	ps, err := setting.FromYAML([]byte(testPool))
	if err != nil {
		t.Fatalf("setting: %v", err)
	}
	if edit != nil {
		edit(ps)
	}
	return ps
}

type fixture struct {
	t     *testing.T
	chain *host.Chain
	l     *Ledger
}

func newFixture(t *testing.T, ps *setting.PoolSetting, d draw.Drawer) *fixture {
	t.Helper()
	c := host.NewChain(host.ChainOptions{Seed: 1})
	return &fixture{t: t, chain: c, l: New(ps, c, d)}
}

// attach 模擬呼叫附帶金額：先發幣再入池。
func (f *fixture) attach(acc string, v uint64) amount.Amount {
	f.t.Helper()
	a := amount.New(v)
	if err := f.chain.Mint(acc, a); err != nil {
		f.t.Fatalf("mint: %v", err)
	}
	if err := f.chain.Attach(acc, a); err != nil {
		f.t.Fatalf("attach: %v", err)
	}
	return a
}

func (f *fixture) stake(acc string, v uint64) uint64 {
	f.t.Helper()
	id, err := f.l.AddStake(acc, f.attach(acc, v), amount.New(v))
	if err != nil {
		f.t.Fatalf("stake: %v", err)
	}
	f.audit()
	return id
}

func (f *fixture) bet(acc string, c wheel.Category, sel uint8, v uint64) {
	f.t.Helper()
	w := []Wager{{Category: c, Selector: sel, Amount: amount.New(v)}}
	if err := f.l.PlaceBet(acc, f.attach(acc, v), w, f.l.Round().Index); err != nil {
		f.t.Fatalf("bet: %v", err)
	}
	f.audit()
}

func (f *fixture) settle() *Settlement {
	f.t.Helper()
	f.chain.Advance(f.l.cfg.RoundDelay)
	st, err := f.l.SettleRound(f.l.Round().Index)
	if err != nil {
		f.t.Fatalf("settle: %v", err)
	}
	f.audit()
	return st
}

func (f *fixture) audit() {
	f.t.Helper()
	if err := f.l.Audit(); err != nil {
		f.t.Fatalf("audit: %v", err)
	}
}

func (f *fixture) stakeOf(acc string, id uint64) Stake {
	f.t.Helper()
	a, ok := f.l.lookup(acc)
	if !ok {
		f.t.Fatalf("no account %s", acc)
	}
	i, err := a.findStake(id)
	if err != nil {
		f.t.Fatalf("find stake: %v", err)
	}
	return a.Stakes[i]
}

// conserved 宿主池子餘額與帳本負債的差距不超過 dust。
func (f *fixture) conserved(dust uint64) {
	f.t.Helper()
	pool, liab := f.chain.PoolBalance(), f.l.Liabilities()
	diff := amount.SatSub(pool, liab)
	if amount.Less(pool, liab) {
		diff = amount.SatSub(liab, pool)
	}
	if amount.Less(amount.New(dust), diff) {
		f.t.Fatalf("conservation broken: pool=%s liabilities=%s", amount.String(pool), amount.String(liab))
	}
}

func eq(t *testing.T, what string, got amount.Amount, want string) {
	t.Helper()
	if amount.String(got) != want {
		t.Fatalf("%s got %s want %s", what, amount.String(got), want)
	}
}

func nearSetting(t *testing.T) *setting.PoolSetting {
	return testSetting(t, func(ps *setting.PoolSetting) {
		ps.Token.Decimals = 24
	})
}

const near = "000000000000000000000000"

func units(t *testing.T, s string) amount.Amount {
	t.Helper()
	a, err := amount.ParseUnits(s, 24)
	if err != nil {
		t.Fatalf("units: %v", err)
	}
	return a
}

func TestScenarioLosingBetAccruesProfit(t *testing.T) {
	f := newFixture(t, nearSetting(t), draw.Fixed(8))
	ids := map[string]uint64{}
	for _, s := range []string{"s1", "s2", "s3"} {
		id, err := f.l.AddStake(s, units(t, "100"), units(t, "100"))
		if err != nil {
			t.Fatalf("stake: %v", err)
		}
		ids[s] = id
	}
	one := units(t, "1")
	if err := f.l.PlaceBet("p", one, []Wager{{Category: wheel.Number, Selector: 7, Amount: one}}, 0); err != nil {
		t.Fatalf("bet: %v", err)
	}
	f.chain.Advance(10)
	st, err := f.l.SettleRound(0)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if st.Direction != PoolWins || st.Outcome != 8 {
		t.Fatalf("settlement %+v", st)
	}
	tot := f.l.Totals()
	if !tot.PoolLoss.IsZero() {
		t.Fatalf("pool loss must be zero")
	}
	eq(t, "pool profit", tot.PoolProfit, "9"+near[1:])
	eq(t, "treasury", f.l.Treasury().Amount, "1"+near[1:])
	for s, id := range ids {
		eq(t, s+" profit", f.stakeOf(s, id).Profit, "3"+near[1:])
	}
	eq(t, "ceiling", tot.Ceiling, "30090000000000000000000000")
	f.audit()
}

func TestScenarioWinningBetChargesStakers(t *testing.T) {
	f := newFixture(t, nearSetting(t), draw.Fixed(7))
	for _, s := range []string{"s1", "s2", "s3"} {
		if _, err := f.l.AddStake(s, units(t, "100"), units(t, "100")); err != nil {
			t.Fatalf("stake: %v", err)
		}
	}
	before := f.l.Totals().Ceiling
	one := units(t, "1")
	if err := f.l.PlaceBet("p", one, []Wager{{Category: wheel.Number, Selector: 7, Amount: one}}, 0); err != nil {
		t.Fatalf("bet: %v", err)
	}
	f.chain.Advance(10)
	st, err := f.l.SettleRound(0)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if st.Direction != PoolLoses || !st.TreasuryCut.IsZero() {
		t.Fatalf("losing round must not cut treasury: %+v", st)
	}
	tot := f.l.Totals()
	eq(t, "pool loss", tot.PoolLoss, "35"+near)
	if !tot.PoolProfit.IsZero() || !amount.IsZero(f.l.Treasury().Amount) {
		t.Fatalf("no profit, no treasury on a losing round")
	}
	for _, s := range []string{"s1", "s2", "s3"} {
		eq(t, s+" loss", f.stakeOf(s, 1).Loss, "11666666666666666666666666")
	}
	eq(t, "player balance", f.l.accounts["p"].Balance, "36"+near)
	if !amount.Less(tot.Ceiling, before) {
		t.Fatalf("ceiling must drop after a loss")
	}
	eq(t, "ceiling", tot.Ceiling, "26500000000000000000000000")
	f.audit()
}

func TestScenarioLockedStakeCannotBeRemoved(t *testing.T) {
	ps := testSetting(t, func(ps *setting.PoolSetting) { ps.MinLock = 3600 })
	f := newFixture(t, ps, draw.Fixed(0))
	id := f.stake("s", 1000)
	before := f.stakeOf("s", id)
	_, err := f.l.RemoveStake("s", id, amount.Zero())
	if !errs.IsKind(err, errs.PolicyViolation) {
		t.Fatalf("expected policy violation, got %v", err)
	}
	if !reflect.DeepEqual(before, f.stakeOf("s", id)) {
		t.Fatalf("stake changed on failed removal")
	}
	f.chain.Sleep(time.Hour)
	paid, err := f.l.RemoveStake("s", id, amount.Zero())
	if err != nil {
		t.Fatalf("remove after lock: %v", err)
	}
	eq(t, "paid", paid, "1000")
	eq(t, "wallet", f.chain.Wallet("s"), "1000")
	if len(f.l.accounts["s"].Stakes) != 0 || !amount.IsZero(f.l.Totals().PoolStake) {
		t.Fatalf("full removal must delete the stake")
	}
	f.audit()
}

func TestScenarioSweepBelowThreshold(t *testing.T) {
	f := newFixture(t, testSetting(t, nil), draw.Fixed(8))
	f.stake("s", 3000)
	f.bet("p", wheel.Number, 7, 50) // 5 進國庫，門檻 10
	f.settle()
	before := f.l.Treasury()
	_, err := f.l.Sweep()
	if !errs.IsKind(err, errs.StateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}
	if !reflect.DeepEqual(before, f.l.Treasury()) {
		t.Fatalf("treasury changed on failed sweep")
	}
}

func TestSweepSplitsThreeWays(t *testing.T) {
	f := newFixture(t, testSetting(t, nil), draw.Fixed(8))
	s1 := f.stake("s1", 1500)
	s2 := f.stake("s2", 1500)
	f.bet("p", wheel.Number, 7, 100)
	f.settle() // 國庫 10，質押各 +45
	f.audit()
	res, err := f.l.Sweep()
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	eq(t, "players pot", res.PlayersPot, "4")
	eq(t, "stakers pot", res.StakersPot, "4")
	eq(t, "operator pot", res.OperatorPot, "2")
	if res.Players != 1 || res.Stakes != 2 {
		t.Fatalf("sweep counts %+v", res)
	}
	eq(t, "player balance", f.l.accounts["p"].Balance, "4")
	eq(t, "s1 profit", f.stakeOf("s1", s1).Profit, "47")
	eq(t, "s2 profit", f.stakeOf("s2", s2).Profit, "47")
	eq(t, "operator wallet", f.chain.Wallet("op"), "2")
	eq(t, "remainder", f.l.Treasury().Amount, "0")
	eq(t, "pool profit", f.l.Totals().PoolProfit, "94")
	f.audit()
	f.conserved(2)

	if _, err := f.l.Sweep(); !errs.IsKind(err, errs.StateConflict) {
		t.Fatalf("second sweep must be too soon, got %v", err)
	}
}

func TestSweepWithoutEligiblePlayersKeepsPot(t *testing.T) {
	f := newFixture(t, testSetting(t, func(ps *setting.PoolSetting) { ps.TreasuryInterval = 0 }), draw.Fixed(8))
	f.stake("s", 3000)
	f.bet("p", wheel.Number, 7, 100)
	f.settle()
	if _, err := f.l.Sweep(); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	f.chain.Sleep(time.Second)
	f.bet("p", wheel.Number, 7, 100)
	f.settle()
	// p 在上次分配後又下注，這次仍有資格
	f.chain.Sleep(time.Second)
	if _, err := f.l.Sweep(); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	// 之後沒有人下注
	f.l.treasury.Amount = amount.New(100)
	f.chain.Sleep(time.Second)
	res, err := f.l.Sweep()
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if res.Players != 0 {
		t.Fatalf("no one bet since last sweep, got %d players", res.Players)
	}
	eq(t, "remainder keeps players pot", res.Remainder, "40")
	eq(t, "treasury", f.l.Treasury().Amount, "40")
}

func TestBetAfterSweepInSameSecondQualifies(t *testing.T) {
	f := newFixture(t, testSetting(t, nil), draw.Fixed(8))
	f.stake("s", 3000)
	f.bet("p", wheel.Number, 7, 100)
	f.settle()
	if _, err := f.l.Sweep(); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	swept := f.l.Treasury().LastSweep
	// 不推進時間，q 與分配落在同一秒
	f.bet("q", wheel.Number, 7, 100)
	if f.l.accounts["q"].LastBet != swept {
		t.Fatalf("bet must share the sweep's second: %d vs %d", f.l.accounts["q"].LastBet, swept)
	}
	f.settle()
	f.chain.Sleep(24 * time.Hour)
	res, err := f.l.Sweep()
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if res.Players != 1 {
		t.Fatalf("only q bet since the last sweep, got %d players", res.Players)
	}
	eq(t, "q balance", f.l.accounts["q"].Balance, amount.String(res.PerPlayer))
	eq(t, "p balance", f.l.accounts["p"].Balance, "4")

	back, err := Restore(f.l.cfg, f.chain, draw.Fixed(8), f.l.Snapshot())
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if back.treasury.Sweeps != 2 || back.accounts["q"].BetEpoch != 2 {
		t.Fatalf("sweep epoch lost on restore: %d %d", back.treasury.Sweeps, back.accounts["q"].BetEpoch)
	}
}

func TestTierBonusWeightsOlderStake(t *testing.T) {
	f := newFixture(t, testSetting(t, nil), draw.Fixed(8))
	old := f.stake("old", 1000)
	f.chain.Sleep(8 * 24 * time.Hour)
	young := f.stake("young", 1000)
	v, _ := f.l.Account("old")
	if v.Stakes[0].Multiplier != 105 {
		t.Fatalf("old stake multiplier got %d", v.Stakes[0].Multiplier)
	}
	f.bet("p", wheel.Number, 7, 100)
	f.settle()
	eq(t, "old profit", f.stakeOf("old", old).Profit, "46")
	eq(t, "young profit", f.stakeOf("young", young).Profit, "43")
	eq(t, "pool profit", f.l.Totals().PoolProfit, "90")
	f.conserved(2)
}

func TestMixedTierSharesNeverExceedDelta(t *testing.T) {
	cases := []struct {
		name    string
		outcome uint8
		bet     uint64
		dir     Direction
	}{
		{"pool wins", 8, 150, PoolWins},
		{"pool loses", 7, 5, PoolLoses},
	}
	for _, c := range cases {
		f := newFixture(t, testSetting(t, nil), draw.Fixed(c.outcome))
		ids := map[string]uint64{}
		ids["a"] = f.stake("a", 1000)
		f.chain.Sleep(23 * 24 * time.Hour)
		ids["b"] = f.stake("b", 700)
		f.chain.Sleep(8 * 24 * time.Hour)
		ids["c"] = f.stake("c", 300)
		f.bet("p", wheel.Number, 7, c.bet)
		st := f.settle()
		if st.Direction != c.dir {
			t.Fatalf("%s: direction got %s", c.name, st.Direction)
		}
		want := st.Delta
		if c.dir == PoolWins {
			want = amount.SatSub(st.Delta, st.TreasuryCut)
		}
		var sum amount.Amount
		mults := map[uint64]bool{}
		for acc, id := range ids {
			s := f.stakeOf(acc, id)
			if c.dir == PoolWins {
				sum, _ = amount.Add(sum, s.Profit)
			} else {
				sum, _ = amount.Add(sum, s.Loss)
			}
			v, _ := f.l.Account(acc)
			mults[v.Stakes[0].Multiplier] = true
		}
		if len(mults) != 3 {
			t.Fatalf("%s: expected three distinct tiers, got %v", c.name, mults)
		}
		if amount.Less(want, sum) {
			t.Fatalf("%s: shares %s exceed delta %s", c.name, amount.String(sum), amount.String(want))
		}
		if amount.Less(amount.New(uint64(len(ids))), amount.SatSub(want, sum)) {
			t.Fatalf("%s: dust %s too large", c.name, amount.String(amount.SatSub(want, sum)))
		}
		if !amount.Equal(sum, st.Distributed) {
			t.Fatalf("%s: distributed got %s want %s", c.name, amount.String(st.Distributed), amount.String(sum))
		}
		f.conserved(uint64(len(ids)))
	}
}

func TestEqualStakesShareLossEvenly(t *testing.T) {
	f := newFixture(t, testSetting(t, nil), draw.Fixed(7))
	a := f.stake("a", 1000)
	b := f.stake("b", 1000)
	f.bet("p", wheel.Number, 7, 10)
	st := f.settle()
	eq(t, "delta", st.Delta, "350")
	la, lb := f.stakeOf("a", a).Loss, f.stakeOf("b", b).Loss
	if !amount.Equal(la, lb) {
		t.Fatalf("equal stakes must lose equally: %s vs %s", amount.String(la), amount.String(lb))
	}
	eq(t, "a loss", la, "175")
	f.conserved(2)
}

func TestNettingOnStakeAndPool(t *testing.T) {
	f := newFixture(t, testSetting(t, nil), draw.Sequence(8, 7))
	id := f.stake("s", 1000)
	f.bet("p", wheel.Number, 7, 10) // 輸：池子 +9
	f.settle()
	eq(t, "profit", f.stakeOf("s", id).Profit, "9")
	f.bet("p", wheel.Number, 7, 10) // 贏：池子 -350
	f.settle()
	s := f.stakeOf("s", id)
	if !s.Profit.IsZero() {
		t.Fatalf("stake profit must be netted to zero")
	}
	eq(t, "stake loss", s.Loss, "341")
	tot := f.l.Totals()
	if !tot.PoolProfit.IsZero() {
		t.Fatalf("pool profit must be netted to zero")
	}
	eq(t, "pool loss", tot.PoolLoss, "341")
	eq(t, "ceiling", tot.Ceiling, "65")
}

func TestPlaceBetPreconditions(t *testing.T) {
	f := newFixture(t, testSetting(t, nil), draw.Fixed(8))
	f.stake("s", 1000) // 上限 100
	ten := amount.New(10)
	w := func(c wheel.Category, sel uint8, v uint64) []Wager {
		return []Wager{{Category: c, Selector: sel, Amount: amount.New(v)}}
	}
	cases := []struct {
		name     string
		attached amount.Amount
		wagers   []Wager
		round    uint64
		kind     errs.Kind
	}{
		{"empty", ten, nil, 0, errs.InvalidInput},
		{"selector", ten, w(wheel.Dozen, 3, 10), 0, errs.InvalidInput},
		{"category", ten, w(wheel.Category(9), 0, 10), 0, errs.InvalidInput},
		{"zero", ten, w(wheel.Parity, 0, 0), 0, errs.InvalidInput},
		{"stale", ten, w(wheel.Parity, 0, 10), 1, errs.StateConflict},
		{"funds", amount.New(9), w(wheel.Parity, 0, 10), 0, errs.InsufficientFunds},
		{"ceiling", amount.New(101), w(wheel.Parity, 0, 101), 0, errs.PolicyViolation},
		{"too many", amount.New(50), slices.Repeat(w(wheel.Parity, 0, 10), 5), 0, errs.InvalidInput},
	}
	for _, c := range cases {
		err := f.l.PlaceBet("ghost", c.attached, c.wagers, c.round)
		if !errs.IsKind(err, c.kind) {
			t.Fatalf("%s: expected %s, got %v", c.name, c.kind, err)
		}
	}
	if _, ok := f.l.Account("ghost"); ok {
		t.Fatalf("failed bets must not create the account")
	}
	f.bet("p", wheel.Parity, 0, 10)
	if err := f.l.PlaceBet("p", ten, w(wheel.Parity, 1, 10), 0); !errs.IsKind(err, errs.StateConflict) {
		t.Fatalf("second bet in a round must conflict, got %v", err)
	}
	f.audit()
}

func TestSettlePreconditionsAndRoundIsolation(t *testing.T) {
	f := newFixture(t, testSetting(t, nil), draw.Fixed(8))
	f.stake("s", 1000)
	if _, err := f.l.SettleRound(0); !errs.IsKind(err, errs.StateConflict) {
		t.Fatalf("settle before delay must conflict, got %v", err)
	}
	f.chain.Advance(10)
	if _, err := f.l.SettleRound(0); !errs.IsKind(err, errs.StateConflict) {
		t.Fatalf("settle with no participants must conflict, got %v", err)
	}
	f.bet("p", wheel.Color, 0, 10)
	if _, err := f.l.SettleRound(1); !errs.IsKind(err, errs.StateConflict) {
		t.Fatalf("settle with wrong index must conflict, got %v", err)
	}
	st, err := f.l.SettleRound(0)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	r := f.l.Round()
	if r.Index != 1 || r.Participants != 0 || !r.Wagered.IsZero() || r.Start != st.Height || r.Outcome != 8 || !r.HasOutcome {
		t.Fatalf("round not reset: %+v", r)
	}
	err = f.l.PlaceBet("p", amount.New(10), []Wager{{Category: wheel.Color, Selector: 0, Amount: amount.New(10)}}, 0)
	if !errs.IsKind(err, errs.StateConflict) {
		t.Fatalf("bet on previous round must conflict, got %v", err)
	}
	if _, err := f.l.SettleRound(1); !errs.IsKind(err, errs.StateConflict) {
		t.Fatalf("new round must wait for delay, got %v", err)
	}
}

func TestDrawerSeesLastParticipantsLastWager(t *testing.T) {
	var got draw.Input
	d := draw.DrawerFunc(func(in draw.Input) (uint8, error) {
		got = in
		return 1, nil
	})
	f := newFixture(t, testSetting(t, nil), d)
	f.stake("s", 10000)
	f.bet("a", wheel.Parity, 0, 10)
	ws := []Wager{
		{Category: wheel.Color, Selector: 1, Amount: amount.New(5)},
		{Category: wheel.Dozen, Selector: 2, Amount: amount.New(5)},
	}
	if err := f.l.PlaceBet("b", f.attach("b", 10), ws, 0); err != nil {
		t.Fatalf("bet: %v", err)
	}
	f.settle()
	if got.Account != "b" || got.Category != uint8(wheel.Dozen) || got.Selector != 2 || len(got.Seed) == 0 {
		t.Fatalf("drawer input %+v", got)
	}
}

func TestPartialRemoveFoldsProfit(t *testing.T) {
	f := newFixture(t, testSetting(t, nil), draw.Fixed(8))
	id := f.stake("s", 1000)
	f.bet("p", wheel.Number, 7, 100)
	f.settle() // profit 90
	paid, err := f.l.RemoveStake("s", id, amount.New(500))
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	eq(t, "paid", paid, "500")
	s := f.stakeOf("s", id)
	eq(t, "remaining principal", s.Amount, "590")
	if !s.Profit.IsZero() || s.Since != f.chain.BlockTime() {
		t.Fatalf("fold must reset profit and clock: %+v", s)
	}
	tot := f.l.Totals()
	eq(t, "pool stake", tot.PoolStake, "590")
	if !tot.PoolProfit.IsZero() {
		t.Fatalf("folded profit must leave pool profit")
	}
	if _, err := f.l.RemoveStake("s", id, amount.New(591)); !errs.IsKind(err, errs.InsufficientFunds) {
		t.Fatalf("over-withdraw must fail, got %v", err)
	}
	if _, err := f.l.RemoveStake("s", 99, amount.Zero()); !errs.IsKind(err, errs.InvalidInput) {
		t.Fatalf("unknown id must be invalid, got %v", err)
	}
	f.audit()
	f.conserved(1)
}

func TestStakeIDsAreStable(t *testing.T) {
	f := newFixture(t, testSetting(t, nil), nil)
	a := f.stake("s", 10)
	b := f.stake("s", 20)
	c := f.stake("s", 30)
	if _, err := f.l.RemoveStake("s", a, amount.Zero()); err != nil {
		t.Fatalf("remove: %v", err)
	}
	eq(t, "b", f.stakeOf("s", b).Amount, "20")
	eq(t, "c", f.stakeOf("s", c).Amount, "30")
	d := f.stake("s", 40)
	if d != 4 {
		t.Fatalf("ids must never be reused, got %d", d)
	}
}

func TestHarvest(t *testing.T) {
	f := newFixture(t, testSetting(t, nil), draw.Fixed(8))
	id := f.stake("s", 1000)
	f.bet("p", wheel.Number, 7, 100)
	f.settle()
	got, err := f.l.Harvest("s", id)
	if err != nil {
		t.Fatalf("harvest: %v", err)
	}
	eq(t, "harvested", got, "90")
	eq(t, "wallet", f.chain.Wallet("s"), "90")
	eq(t, "principal untouched", f.stakeOf("s", id).Amount, "1000")
	if !amount.IsZero(f.l.Totals().PoolProfit) {
		t.Fatalf("harvest must reduce pool profit")
	}
	again, err := f.l.Harvest("s", id)
	if err != nil || !again.IsZero() {
		t.Fatalf("zero harvest is a no-op success: %v %s", err, amount.String(again))
	}
	if _, err := f.l.Harvest("nobody", 1); !errs.IsKind(err, errs.InvalidInput) {
		t.Fatalf("unknown stake must be invalid, got %v", err)
	}
	f.audit()
	f.conserved(1)
}

func TestAddStakeRules(t *testing.T) {
	f := newFixture(t, testSetting(t, nil), nil)
	if _, err := f.l.AddStake("s", amount.New(5), amount.Zero()); !errs.IsKind(err, errs.InvalidInput) {
		t.Fatalf("zero stake must be invalid, got %v", err)
	}
	if _, err := f.l.AddStake("s", amount.New(5), amount.New(6)); !errs.IsKind(err, errs.InsufficientFunds) {
		t.Fatalf("short attachment must fail, got %v", err)
	}
	if _, err := f.l.AddStake("s", f.attach("s", 15), amount.New(10)); err != nil {
		t.Fatalf("stake: %v", err)
	}
	v, _ := f.l.Account("s")
	eq(t, "excess to balance", v.Balance, "5")
	eq(t, "ceiling", f.l.Totals().Ceiling, "1")
}

func TestDepositWithdrawAndHostFailure(t *testing.T) {
	f := newFixture(t, testSetting(t, nil), nil)
	if _, err := f.l.Deposit("a", amount.Zero()); !errs.IsKind(err, errs.InvalidInput) {
		t.Fatalf("zero deposit must be invalid")
	}
	if _, err := f.l.Deposit("a", f.attach("a", 50)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if _, err := f.l.Withdraw("a", amount.New(51)); !errs.IsKind(err, errs.InsufficientFunds) {
		t.Fatalf("over-withdraw must fail")
	}
	if _, err := f.l.Withdraw("nobody", amount.New(1)); !errs.IsKind(err, errs.InsufficientFunds) {
		t.Fatalf("unknown account must fail")
	}
	pending := f.l.Pending()
	f.chain.FailNextTransfer(errs.NewFatal("host down"))
	if _, err := f.l.Withdraw("a", amount.New(20)); err == nil {
		t.Fatalf("host failure must surface")
	}
	v, _ := f.l.Account("a")
	eq(t, "balance after failed transfer", v.Balance, "50")
	if f.l.Pending() != pending {
		t.Fatalf("failed op must not journal")
	}
	rest, err := f.l.Withdraw("a", amount.New(20))
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	eq(t, "rest", rest, "30")
	eq(t, "wallet", f.chain.Wallet("a"), "20")
	f.conserved(0)
}

func TestJournalDrain(t *testing.T) {
	f := newFixture(t, testSetting(t, nil), draw.Fixed(7))
	f.stake("s", 1000)
	f.bet("p", wheel.Number, 7, 1)
	f.settle()
	es := f.l.Drain()
	kinds := []EntryKind{}
	for _, e := range es {
		kinds = append(kinds, e.Kind)
	}
	want := []EntryKind{EntryStake, EntryBet, EntryPayout, EntrySettle}
	if !reflect.DeepEqual(kinds, want) {
		t.Fatalf("journal kinds got %v want %v", kinds, want)
	}
	if es[0].ID == es[1].ID {
		t.Fatalf("entry ids must be unique")
	}
	if f.l.Pending() != 0 || len(f.l.Drain()) != 0 {
		t.Fatalf("drain must clear")
	}
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	ps := testSetting(t, nil)
	f := newFixture(t, ps, draw.Fixed(8))
	f.stake("s1", 1000)
	f.stake("s2", 2000)
	f.bet("p", wheel.Number, 7, 100)
	f.settle()
	f.bet("q", wheel.Dozen, 1, 20) // 留一筆未結算
	snap := f.l.Snapshot()
	raw, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back State
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	l2, err := Restore(ps, f.chain, draw.Fixed(8), back)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if !reflect.DeepEqual(snap, l2.Snapshot()) {
		t.Fatalf("snapshot mismatch after restore")
	}
	if l2.Round().Participants != 1 {
		t.Fatalf("participants lost")
	}
	id, err := l2.AddStake("s1", f.attach("s1", 5), amount.New(5))
	if err != nil || id != 2 {
		t.Fatalf("stake counter lost: id=%d err=%v", id, err)
	}

	back.Round.PoolStake = "1"
	if _, err := Restore(ps, f.chain, nil, back); err == nil {
		t.Fatalf("inconsistent snapshot must fail")
	}
}
