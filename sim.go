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
	"io"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/cheggaaa/pb/v3"
	"github.com/zintix-labs/spinpool/errs"
	"github.com/zintix-labs/spinpool/host"
	"github.com/zintix-labs/spinpool/ledger"
	"github.com/zintix-labs/spinpool/recorder"
	"github.com/zintix-labs/spinpool/sdk/amount"
	"github.com/zintix-labs/spinpool/sdk/core"
	"github.com/zintix-labs/spinpool/sdk/draw"
	"github.com/zintix-labs/spinpool/sdk/sampler"
	"github.com/zintix-labs/spinpool/sdk/wheel"
	"github.com/zintix-labs/spinpool/setting"
	"github.com/zintix-labs/spinpool/stats"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat/distuv"
)

const capPrepare int = 100

// 背景下注者的預設類別偏好：color, column, dozen, eighteen, parity, number
var defaultCategoryWeights = [...]int{30, 10, 10, 15, 20, 15}

// Simulator 在模擬鏈上跑大量回合，可建立多個獨立資金池並平行紀錄統計。
//
// 每個資金池有自己的 Chain、Ledger 與亂數核心；每回合下注人數服從 Poisson(Lambda)，
// 每位下注者依 CategoryWeights 選一個類別、均勻選一個選項，押一個 BetUnit。
type Simulator struct {
	Name       string        // 資金池名稱
	BetUnit    amount.Amount // 單注金額（最小單位），預設為 1 token
	Stakers    int           // 每個資金池的質押人數
	StakeUnits int           // 每位質押人質押的押注單位數
	Lambda     float64       // 每回合平均下注人數

	// CategoryWeights 依 wheel.Category 順序的類別偏好權重
	CategoryWeights []int

	initBets  int                       // 玩家帶的錢(以押注單位設定)
	ps        *setting.PoolSetting      // 方便重用建立 RoundRecorder
	cf        core.PRNGFactory          // 亂數生成器
	drawer    draw.Drawer               // 開獎方式
	initSeed  int64                     // 初始下的種子
	seedmaker *seedMaker                // 種子生成器
	pBuf      []*simPool                // 併發執行資金池實例
	rBuf      []*recorder.RoundRecorder // 併發回合紀錄員
	sBuf      []*stats.PoolReport       // 併發統計結果報表(僅Players需要)
}

func newSimulatorWithSeed(ps *setting.PoolSetting, cf core.PRNGFactory, drawer draw.Drawer, seed int64) (*Simulator, error) {
	unit, err := amount.ParseUnits("1", ps.Token.Decimals)
	if err != nil {
		return nil, err
	}
	s := &Simulator{
		Name:       ps.Name,
		BetUnit:    unit,
		Stakers:    10,
		StakeUnits: 10_000,
		Lambda:     8,
		ps:         ps,
		cf:         cf,
		drawer:     drawer,
		initSeed:   seed,
		seedmaker:  newSeedMaker(seed),
		pBuf:       make([]*simPool, 0, capPrepare),
		rBuf:       make([]*recorder.RoundRecorder, 0, capPrepare),
		sBuf:       make([]*stats.PoolReport, 0, capPrepare),
	}
	s.CategoryWeights = append([]int(nil), defaultCategoryWeights[:]...)
	return s, nil
}

// Sim 單線模擬器：以一個資金池連續結算指定 round 並回傳統計結果與用時
func (s *Simulator) Sim(round int, showpb bool) (*stats.PoolReport, time.Duration, error) {
	defer s.reset()
	if round < 1 {
		return nil, 0, errs.NewWarn("round must > 0")
	}
	if err := s.preparePools(1); err != nil {
		return nil, 0, err
	}
	p := s.pBuf[0]
	r, err := recorder.NewRoundRecorder(s.ps, s.BetUnit, p.staked, s.initBets)
	if err != nil {
		return nil, 0, err
	}
	s.rBuf = append(s.rBuf, r)

	bar := pb.StartNew(round)
	if !showpb {
		bar.SetWriter(io.Discard)
	}
	for i := 0; i < round; i++ {
		st, err := p.spin(s.BetUnit, "")
		if err != nil {
			bar.Finish()
			return nil, 0, err
		}
		r.Record(st)
		bar.Increment()
	}
	used := time.Since(bar.StartTime())
	bar.Finish()
	return r.Done(), used, nil
}

// SimMP 平行執行多個資金池，總計 rounds*mp 次結算，合併統計結果後 回傳統計結果與用時
func (s *Simulator) SimMP(rounds int, mp int, showpb bool) (*stats.PoolReport, time.Duration, error) {
	defer s.reset()
	if mp <= 0 {
		return nil, 0, errs.NewWarn("workers must > 0")
	}
	if rounds < 1 {
		return nil, 0, errs.NewWarn("round must > 0")
	}
	if err := s.preparePools(mp); err != nil {
		return nil, 0, err
	}
	for i := 0; i < mp; i++ {
		r, err := recorder.NewRoundRecorder(s.ps, s.BetUnit, s.pBuf[i].staked, s.initBets)
		if err != nil {
			return nil, 0, err
		}
		s.rBuf = append(s.rBuf, r)
	}

	bar := pb.StartNew(rounds * mp)
	if !showpb {
		bar.SetWriter(io.Discard)
	}
	var g errgroup.Group
	for i := 0; i < mp; i++ {
		p := s.pBuf[i]
		rec := s.rBuf[i]
		g.Go(func() error {
			for r := 0; r < rounds; r++ {
				st, err := p.spin(s.BetUnit, "")
				if err != nil {
					return err
				}
				rec.Record(st)
				bar.Increment()
			}
			return nil
		})
	}
	err := g.Wait()
	used := time.Since(bar.StartTime())
	bar.Finish()
	if err != nil {
		return nil, 0, err
	}

	st, err := recorder.MergeRoundRecorder(s.rBuf)
	if err != nil {
		return nil, 0, err
	}
	return st.Done(), used, nil
}

// playerJob 一位玩家的模擬任務
type playerJob struct {
	account string
	rec     *recorder.RoundRecorder
}

// SimPlayers 模擬多個玩家各自帶入初始籌碼、在背景下注者之間每回合押一注的歷程，
// 並產出資金池報表與玩家報表。玩家在破產或達到 3 倍本金時離場。
func (s *Simulator) SimPlayers(mp int, players int, initBets int, rounds int, showpb bool) (*stats.PoolReport, *stats.PlayerEstimate, time.Duration, error) {
	defer s.reset()
	if players < 1 || initBets < 1 || rounds < 1 || mp < 1 {
		return nil, nil, 0, errs.NewWarn("invalid param")
	}
	s.initBets = initBets // 賦值

	// 準備並行資金池
	if err := s.preparePools(mp); err != nil {
		return nil, nil, 0, err
	}

	// 準備玩家
	jobsBuf := make([]playerJob, 0, players)
	for i := 0; i < players; i++ {
		r, err := recorder.NewRoundRecorder(s.ps, s.BetUnit, s.pBuf[i%mp].staked, s.initBets)
		if err != nil {
			return nil, nil, 0, err
		}
		s.rBuf = append(s.rBuf, r)
		jobsBuf = append(jobsBuf, playerJob{account: "hero-" + strconv.Itoa(i), rec: r})
	}
	// 作一個2048大小的緩衝channel 使player依序處理
	jobs := make(chan playerJob, 2048)

	bar := pb.StartNew(players)
	if !showpb {
		bar.SetWriter(io.Discard)
	}
	var g errgroup.Group // 併發資金池
	for w := 0; w < mp; w++ {
		p := s.pBuf[w]
		g.Go(func() error { return sim(p, jobs, s.BetUnit, initBets, rounds, bar) })
	}

	// 塞進玩家，開始模擬
	for _, j := range jobsBuf {
		jobs <- j
	}
	close(jobs) // 玩家送完關閉通道 通知所有資金池不會再有新資料
	err := g.Wait()
	used := time.Since(bar.StartTime())
	bar.Finish()
	if err != nil {
		return nil, nil, 0, err
	}

	// 資金池基準報表
	record, err := recorder.MergeRoundRecorder(s.rBuf)
	if err != nil {
		return nil, nil, 0, err
	}
	st := record.Done()

	// 玩家分析報表
	for _, r := range s.rBuf {
		s.sBuf = append(s.sBuf, r.Done())
	}
	est := stats.EstimatePlayers(s.sBuf)
	return st, est, used, nil
}

// sim 依序處理玩家任務。發生錯誤後仍把通道讀完，避免送件端阻塞。
func sim(p *simPool, jobs chan playerJob, unit amount.Amount, initBets int, rounds int, bar *pb.ProgressBar) error {
	var first error
	for j := range jobs {
		bar.Increment()
		if first != nil {
			continue
		}
		first = play(p, j, unit, initBets, rounds)
	}
	return first
}

func play(p *simPool, j playerJob, unit amount.Amount, initBets int, rounds int) error {
	if err := p.seat(j.account, unit, initBets); err != nil {
		return err
	}
	for range rounds {
		st, err := p.spin(unit, j.account)
		if err != nil {
			return err
		}
		j.rec.Record(st)
		if pr, ok := findPlayer(st, j.account); ok && j.rec.RecordPlayer(pr) {
			return nil
		}
	}
	return nil
}

func findPlayer(st *ledger.Settlement, account string) (ledger.PlayerResult, bool) {
	for _, pr := range st.Players {
		if pr.Account == account {
			return pr, true
		}
	}
	return ledger.PlayerResult{}, false
}

// preparePools 確保至少有 n 個資金池；第一個資金池使用初始種子。
func (s *Simulator) preparePools(n int) error {
	if amount.IsZero(s.BetUnit) {
		return errs.NewWarn("bet unit must > 0")
	}
	if s.Stakers < 1 || s.StakeUnits < 1 {
		return errs.NewWarn("stakers and stake units must > 0")
	}
	if s.Lambda <= 0 {
		return errs.NewWarn("lambda must > 0")
	}
	if len(s.CategoryWeights) != len(wheel.Categories()) {
		return errs.NewWarn("category weights must cover every category")
	}
	cats, err := sampler.BuildAliasTable(s.CategoryWeights)
	if err != nil {
		return err
	}
	for _, p := range s.pBuf {
		p.cats = cats
	}
	for len(s.pBuf) < n {
		seed := s.initSeed
		if len(s.pBuf) > 0 {
			seed = s.seedmaker.next()
		}
		p, err := newSimPool(s, seed)
		if err != nil {
			return err
		}
		p.cats = cats
		s.pBuf = append(s.pBuf, p)
	}
	return nil
}

func (s *Simulator) reset() {
	s.rBuf = s.rBuf[:0]
	s.sBuf = s.sBuf[:0]
	s.initBets = 0
}

// simPool 一個獨立的模擬資金池，只在單一 goroutine 內使用。
type simPool struct {
	chain   *host.Chain
	l       *ledger.Ledger
	core    *core.Core
	bettors distuv.Poisson
	cats    *sampler.AliasTable
	delay   uint64
	staked  amount.Amount
	names   []string // 背景下注者帳號，依需要延長
}

func newSimPool(s *Simulator, seed int64) (*simPool, error) {
	c := core.New(s.cf.New(seed))
	chain := host.NewChain(host.ChainOptions{Seed: seed, BlockTime: time.Second})
	p := &simPool{
		chain:   chain,
		l:       ledger.New(s.ps, chain, s.drawer),
		core:    c,
		bettors: distuv.Poisson{Lambda: s.Lambda, Src: c},
		delay:   s.ps.RoundDelay,
	}
	each, overflow := amount.Mul(s.BetUnit, amount.New(uint64(s.StakeUnits)))
	if overflow {
		return nil, errs.NewWarn("stake amount overflows")
	}
	for i := 0; i < s.Stakers; i++ {
		acc := "staker-" + strconv.Itoa(i)
		if err := p.fund(acc, each); err != nil {
			return nil, err
		}
		if _, err := p.l.AddStake(acc, each, each); err != nil {
			return nil, err
		}
		p.staked, _ = amount.Add(p.staked, each)
	}
	p.l.Drain()
	return p, nil
}

// fund 發幣到 acc 的錢包並附帶入池。
func (p *simPool) fund(acc string, amt amount.Amount) error {
	if err := p.chain.Mint(acc, amt); err != nil {
		return err
	}
	return p.chain.Attach(acc, amt)
}

// seat 讓玩家帶 initBets 個押注單位入座。
func (p *simPool) seat(acc string, unit amount.Amount, initBets int) error {
	bankroll, overflow := amount.Mul(unit, amount.New(uint64(initBets)))
	if overflow {
		return errs.NewWarn("bankroll overflows")
	}
	if err := p.fund(acc, bankroll); err != nil {
		return err
	}
	if _, err := p.l.Deposit(acc, bankroll); err != nil {
		return err
	}
	return nil
}

// spin 開一回合：hero（可為空）以餘額押一注，背景下注者人數取 Poisson，至少一人；
// 推進區塊後結算，國庫達標時順便分配。
func (p *simPool) spin(unit amount.Amount, hero string) (*ledger.Settlement, error) {
	idx := p.l.Round().Index
	if hero != "" {
		if err := p.bet(hero, unit, idx, false); err != nil {
			return nil, err
		}
	}
	n := int(p.bettors.Rand())
	if n < 1 && hero == "" {
		n = 1
	}
	for len(p.names) < n {
		p.names = append(p.names, "player-"+strconv.Itoa(len(p.names)))
	}
	for _, acc := range p.names[:n] {
		if err := p.bet(acc, unit, idx, true); err != nil {
			return nil, err
		}
	}

	p.chain.Advance(p.delay)
	st, err := p.l.SettleRound(idx)
	if err != nil {
		return nil, err
	}
	p.trySweep()
	p.l.Drain()
	return st, nil
}

// bet 隨機選一個類別與選項押 unit。mint 為 true 時，餘額不足的部分由錢包補足；
// 上限被擋（PolicyViolation）時放棄本注，不視為錯誤。
func (p *simPool) bet(acc string, unit amount.Amount, idx uint64, mint bool) error {
	c := wheel.Category(p.cats.Pick(p.core))
	sel := uint8(p.core.IntN(int(c.MaxSelector()) + 1))
	wagers := []ledger.Wager{{Category: c, Selector: sel, Amount: unit}}

	var attached amount.Amount
	if mint {
		if v, ok := p.l.Account(acc); !ok || amount.Less(v.Balance, unit) {
			attached = unit
			if err := p.fund(acc, attached); err != nil {
				return err
			}
		}
	}
	err := p.l.PlaceBet(acc, attached, wagers, idx)
	if err == nil {
		return nil
	}
	if !amount.IsZero(attached) {
		if rerr := p.chain.Refund(acc, attached); rerr != nil {
			return rerr
		}
	}
	if errs.IsKind(err, errs.PolicyViolation) {
		return nil
	}
	return err
}

func (p *simPool) trySweep() {
	tv := p.l.Treasury()
	if amount.Less(tv.Amount, tv.Threshold) {
		return
	}
	if tv.LastSweep != 0 && p.chain.BlockTime() < tv.NextSweep {
		return
	}
	_, _ = p.l.Sweep()
}

const mask63 = uint64(1<<63) - 1

type seedMaker struct {
	state atomic.Uint64 // always in [0, 2^63)
}

func newSeedMaker(seed int64) *seedMaker {
	s := &seedMaker{}
	s.state.Store(uint64(seed) & mask63)
	return s
}

// next 走全週期（不重複）的 LCG，再用可逆 mix63 打散。
// 可能被多個 goroutine 同時呼叫，state 以 CAS 推進。
func (s *seedMaker) next() int64 {
	for {
		old := s.state.Load()
		next := (old*6364136223846793005 + 1442695040888963407) & mask63 // full-period LCG mod 2^63
		if s.state.CompareAndSwap(old, next) {
			return int64(mix63(next)) // 一定非負
		}
	}
}

// mix63：只用「可逆」的 bit 操作 + 乘奇數（mod 2^63）
func mix63(x uint64) uint64 {
	x &= mask63
	x ^= x >> 30
	x = (x * 0xBF58476D1CE4E5B9) & mask63
	x ^= x >> 27
	x = (x * 0x94D049BB133111EB) & mask63
	x ^= x >> 31
	return x & mask63
}
