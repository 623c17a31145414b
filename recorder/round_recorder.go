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

package recorder

import (
	"fmt"

	"github.com/zintix-labs/spinpool/errs"
	"github.com/zintix-labs/spinpool/ledger"
	"github.com/zintix-labs/spinpool/sdk/amount"
	"github.com/zintix-labs/spinpool/sdk/wheel"
	"github.com/zintix-labs/spinpool/setting"
	"github.com/zintix-labs/spinpool/stats"
)

// RoundRecorder 回合紀錄員
//
// RoundRecorder 逐回合累積結算結果，並透過 Done 輸出統計報表
type RoundRecorder struct {
	Name     string
	Symbol   string
	Decimals int32
	BetUnit  amount.Amount
	Staked   amount.Amount
	InitBets int
	Basic    *BasicRecord
	Dist     *DistRecord
	Player   *PlayerRecord
}

// BasicRecord 基本資料紀錄
type BasicRecord struct {
	TotalBet     amount.Amount
	TotalWin     amount.Amount
	WinMultSum   uint64 // 單注倍數和
	WinMultSqSum uint64 // 平方和
	Hits         int
	Wagers       int
	Rounds       int
	PoolWins     int
	PoolLoses    int
	TreasuryCut  amount.Amount
	StakersGain  amount.Amount
	StakersLoss  amount.Amount
}

// DistRecord 開出號碼與各類別命中次數
type DistRecord struct {
	Outcomes     []int
	CategoryBets []int
	CategoryHits []int
}

// PlayerRecord 玩家資金歷程，以押注單位計
type PlayerRecord struct {
	leaveLine   int
	InitBalance int
	Balance     int
	MaxBalance  int
	MinBalance  int
	Wagered     int
	Won         int
	NumberHits  int
	Bust        bool
	Cashout     bool
}

func NewRoundRecorder(ps *setting.PoolSetting, betUnit amount.Amount, staked amount.Amount, initBets int) (*RoundRecorder, error) {
	s := new(RoundRecorder)
	if ps == nil {
		return s, errs.NewFatal("pool setting is required")
	}
	if amount.IsZero(betUnit) {
		return s, errs.NewFatal("bet unit must be positive")
	}
	if initBets < 0 {
		return s, errs.NewFatal(fmt.Sprintf("init bets must not negative integer, got: %d", initBets))
	}
	s.Name = ps.Name
	s.Symbol = ps.Token.Symbol
	s.Decimals = ps.Token.Decimals
	s.BetUnit = betUnit
	s.Staked = staked
	s.InitBets = initBets
	s.Basic = new(BasicRecord)
	s.Dist = newDistRecord()
	s.Player = newPlayerRecord(initBets)
	return s, nil
}

// MergeRoundRecorder 合併多個獨立資金池的紀錄（玩家紀錄不合併）。
func MergeRoundRecorder(r []*RoundRecorder) (*RoundRecorder, error) {
	if len(r) == 0 {
		return nil, errs.NewFatal("merge round record err : empty input")
	}
	r0 := r[0]
	s := &RoundRecorder{
		Name:     r0.Name,
		Symbol:   r0.Symbol,
		Decimals: r0.Decimals,
		BetUnit:  r0.BetUnit,
		InitBets: r0.InitBets,
		Basic:    new(BasicRecord),
		Dist:     newDistRecord(),
		Player:   newPlayerRecord(r0.InitBets),
	}
	for _, v := range r {
		if v.Name != r0.Name {
			return s, errs.NewFatal("merge round record err : different pool name")
		}
		if !amount.Equal(v.BetUnit, r0.BetUnit) || v.Decimals != r0.Decimals {
			return s, errs.NewFatal("merge round record err : different bet unit")
		}
		s.Staked = add(s.Staked, v.Staked)
		b := s.Basic
		b.TotalBet = add(b.TotalBet, v.Basic.TotalBet)
		b.TotalWin = add(b.TotalWin, v.Basic.TotalWin)
		b.WinMultSum += v.Basic.WinMultSum
		b.WinMultSqSum += v.Basic.WinMultSqSum
		b.Hits += v.Basic.Hits
		b.Wagers += v.Basic.Wagers
		b.Rounds += v.Basic.Rounds
		b.PoolWins += v.Basic.PoolWins
		b.PoolLoses += v.Basic.PoolLoses
		b.TreasuryCut = add(b.TreasuryCut, v.Basic.TreasuryCut)
		b.StakersGain = add(b.StakersGain, v.Basic.StakersGain)
		b.StakersLoss = add(b.StakersLoss, v.Basic.StakersLoss)

		for i := range s.Dist.Outcomes {
			s.Dist.Outcomes[i] += v.Dist.Outcomes[i]
		}
		for i := range s.Dist.CategoryBets {
			s.Dist.CategoryBets[i] += v.Dist.CategoryBets[i]
			s.Dist.CategoryHits[i] += v.Dist.CategoryHits[i]
		}
	}
	return s, nil
}

// Record 以單回合結算更新資金池統計
func (s *RoundRecorder) Record(st *ledger.Settlement) {
	b := s.Basic
	d := s.Dist
	b.Rounds++
	b.TotalBet = add(b.TotalBet, st.Wagered)
	b.TotalWin = add(b.TotalWin, st.Paid)
	d.Outcomes[st.Outcome]++
	for _, pr := range st.Players {
		for _, w := range pr.Wagers {
			m := wheel.Multiplier(w.Category, w.Selector, st.Outcome)
			b.Wagers++
			b.WinMultSum += m
			b.WinMultSqSum += m * m
			d.CategoryBets[w.Category]++
			if m > 0 {
				b.Hits++
				d.CategoryHits[w.Category]++
			}
		}
	}
	b.TreasuryCut = add(b.TreasuryCut, st.TreasuryCut)
	switch st.Direction {
	case ledger.PoolWins:
		b.PoolWins++
		b.StakersGain = add(b.StakersGain, st.Distributed)
	case ledger.PoolLoses:
		b.PoolLoses++
		b.StakersLoss = add(b.StakersLoss, st.Distributed)
	}
}

// RecordPlayer 以玩家本回合結果更新資金歷程，回傳玩家是否停止遊戲。
func (s *RoundRecorder) RecordPlayer(pr ledger.PlayerResult) bool {
	p := s.Player
	if p.Balance < 1 {
		return true
	}
	bet := s.units(pr.Wagered)
	won := s.units(pr.Paid)
	p.Balance += won - bet
	p.Wagered += bet
	p.Won += won
	for _, w := range pr.Wagers {
		if w.Category == wheel.Number && !amount.IsZero(w.Paid) {
			p.NumberHits++
		}
	}

	if p.Balance > p.MaxBalance {
		p.MaxBalance = p.Balance
	}
	if p.Balance < p.MinBalance {
		p.MinBalance = p.Balance
	}

	leave := false
	if p.Balance < 1 {
		p.Bust = true
		leave = true
	}
	if p.Balance >= p.leaveLine {
		p.Cashout = true
		leave = true
	}
	return leave
}

// Done 輸出統計報表
func (s *RoundRecorder) Done() *stats.PoolReport {
	unit := amount.Float(s.BetUnit, 0)
	f := func(a amount.Amount) float64 { return amount.Float(a, 0) / unit }

	names := make([]string, 0, len(s.Dist.CategoryBets))
	expected := make([]float64, 0, len(s.Dist.CategoryBets))
	for _, c := range wheel.Categories() {
		names = append(names, c.String())
		expected = append(expected, stats.ExpectedHitRate(c))
	}
	net := amount.Float(s.Basic.StakersGain, 0) - amount.Float(s.Basic.StakersLoss, 0)

	report := &stats.PoolReport{
		Summary: &stats.SummaryReport{
			Name:     s.Name,
			Symbol:   s.Symbol,
			BetUnit:  amount.Format(s.BetUnit, s.Decimals),
			TotalBet: f(s.Basic.TotalBet),
			TotalWin: f(s.Basic.TotalWin),
			Hits:     s.Basic.Hits,
			Wagers:   s.Basic.Wagers,
			Rounds:   s.Basic.Rounds,
		},
		Mult: &stats.MultReport{
			WinMultSum:   float64(s.Basic.WinMultSum),
			WinMultSqSum: float64(s.Basic.WinMultSqSum),
		},
		Category: &stats.CategoryReport{
			Names:    names,
			Bets:     append([]int(nil), s.Dist.CategoryBets...),
			Hits:     append([]int(nil), s.Dist.CategoryHits...),
			Expected: expected,
		},
		Dist: &stats.DistReport{
			Outcomes: append([]int(nil), s.Dist.Outcomes...),
		},
		Pool: &stats.StakeReport{
			Staked:          f(s.Staked),
			StakersNet:      net / unit,
			TreasuryAccrued: f(s.Basic.TreasuryCut),
			PoolWins:        s.Basic.PoolWins,
			PoolLoses:       s.Basic.PoolLoses,
		},
		Player: &stats.PlayerReport{
			InitBalance: s.Player.InitBalance,
			Balance:     s.Player.Balance,
			MaxBalance:  s.Player.MaxBalance,
			MinBalance:  s.Player.MinBalance,
			Wagered:     s.Player.Wagered,
			Won:         s.Player.Won,
			NumberHits:  s.Player.NumberHits,
			Bust:        s.Player.Bust,
			Cashout:     s.Player.Cashout,
		},
	}
	report.Done()
	return report
}

// units 把金額換成押注單位（無條件捨去）。
func (s *RoundRecorder) units(a amount.Amount) int {
	q, ok := amount.MulDiv(a, amount.New(1), s.BetUnit)
	if !ok || !q.IsUint64() {
		return 0
	}
	return int(q.Uint64())
}

// add 統計用加法，溢位時保留原值。
func add(a, b amount.Amount) amount.Amount {
	if r, overflow := amount.Add(a, b); !overflow {
		return r
	}
	return a
}

func newDistRecord() *DistRecord {
	n := len(wheel.Categories())
	return &DistRecord{
		Outcomes:     make([]int, wheel.Slots),
		CategoryBets: make([]int, n),
		CategoryHits: make([]int, n),
	}
}

func newPlayerRecord(initBets int) *PlayerRecord {
	p := new(PlayerRecord)
	p.InitBalance = initBets
	p.Balance = initBets
	p.MaxBalance = initBets
	p.MinBalance = initBets
	p.leaveLine = 3 * initBets // 設定離場條件(3倍本金)
	return p
}
