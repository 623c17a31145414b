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

package stats_test

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/zintix-labs/spinpool/sdk/wheel"
	"github.com/zintix-labs/spinpool/stats"
)

// buildPoolReport 以單注倍數清單建立報告（每注 1 單位）。
func buildPoolReport(mults []int) *stats.PoolReport {
	var sum, sq, win float64
	hits := 0
	for _, m := range mults {
		sum += float64(m)
		sq += float64(m * m)
		win += float64(m)
		if m > 0 {
			hits++
		}
	}
	n := len(wheel.Categories())
	return &stats.PoolReport{
		Summary: &stats.SummaryReport{
			Name:     "TestPool",
			Symbol:   "X",
			BetUnit:  "1",
			TotalBet: float64(len(mults)),
			TotalWin: win,
			Hits:     hits,
			Wagers:   len(mults),
			Rounds:   len(mults),
		},
		Mult: &stats.MultReport{WinMultSum: sum, WinMultSqSum: sq},
		Category: &stats.CategoryReport{
			Names:    []string{"color", "column", "dozen", "eighteen", "parity", "number"},
			Bets:     make([]int, n),
			Hits:     make([]int, n),
			Expected: make([]float64, n),
		},
		Dist:   &stats.DistReport{Outcomes: make([]int, wheel.Slots)},
		Pool:   &stats.StakeReport{},
		Player: &stats.PlayerReport{},
	}
}

func TestPoolReportCoreMetrics(t *testing.T) {
	rep := buildPoolReport([]int{0, 2})
	rep.Done()

	if got := rep.Rtp(); got != 1 {
		t.Fatalf("RTP got %.12f want 1", got)
	}
	if rep.Summary.HouseEdge != 0 {
		t.Fatalf("house edge got %f", rep.Summary.HouseEdge)
	}
	wantStd := math.Sqrt(2)
	if got := rep.Std(); math.Abs(got-wantStd) > 1e-12 {
		t.Fatalf("Std got %.12f want %.12f", got, wantStd)
	}
	if got := rep.Cv(); math.Abs(got-wantStd) > 1e-12 {
		t.Fatalf("CV got %.12f want %.12f", got, wantStd)
	}
	if rep.Summary.HitRate != 0.5 {
		t.Fatalf("hit rate got %f", rep.Summary.HitRate)
	}
	ci := rep.Ci()
	if ci.Lo != 0 || ci.Hi <= 1 {
		t.Fatalf("ci got %+v", ci)
	}

	rep.Done() // idempotent
	if rep.Rtp() != 1 {
		t.Fatalf("RTP changed after second Done")
	}
}

func TestEmptyReportIsZero(t *testing.T) {
	rep := buildPoolReport(nil)
	rep.Done()
	if rep.Rtp() != 0 || rep.Std() != 0 || rep.Cv() != 0 {
		t.Fatalf("empty report must be zero: %+v", rep.Summary)
	}
	if rep.Dist.PValue != 1 {
		t.Fatalf("empty histogram p-value got %f", rep.Dist.PValue)
	}
}

func TestOutcomeUniformity(t *testing.T) {
	flat := buildPoolReport(nil)
	for i := range flat.Dist.Outcomes {
		flat.Dist.Outcomes[i] = 10
	}
	flat.Done()
	if flat.Dist.ChiSq != 0 || math.Abs(flat.Dist.PValue-1) > 1e-9 {
		t.Fatalf("flat histogram chi %f p %f", flat.Dist.ChiSq, flat.Dist.PValue)
	}
	if math.Abs(flat.Dist.Freq[5]-1.0/37.0) > 1e-12 {
		t.Fatalf("freq got %f", flat.Dist.Freq[5])
	}

	skew := buildPoolReport(nil)
	skew.Dist.Outcomes[7] = 370
	skew.Done()
	if skew.Dist.PValue > 1e-6 {
		t.Fatalf("skewed histogram should reject uniformity, p=%g", skew.Dist.PValue)
	}
}

func TestCategoryHitRates(t *testing.T) {
	rep := buildPoolReport(nil)
	rep.Category.Bets[0] = 100
	rep.Category.Hits[0] = 50
	rep.Done()
	if rep.Category.HitRate[0] != 0.5 {
		t.Fatalf("hit rate got %f", rep.Category.HitRate[0])
	}
	ci := rep.Category.HitCI[0]
	if ci.Lo >= 0.5 || ci.Hi <= 0.5 || ci.Lo <= 0.3 || ci.Hi >= 0.7 {
		t.Fatalf("ci got %+v", ci)
	}
	// 沒下注的類別：CI 為 [0,1]
	if rep.Category.HitCI[5].Lo != 0 || rep.Category.HitCI[5].Hi != 1 {
		t.Fatalf("empty category ci got %+v", rep.Category.HitCI[5])
	}
}

func TestExpectedHitRate(t *testing.T) {
	cases := map[wheel.Category]float64{
		wheel.Color:    18.0 / 37.0,
		wheel.Column:   12.0 / 37.0,
		wheel.Dozen:    12.0 / 37.0,
		wheel.Eighteen: 18.0 / 37.0,
		wheel.Parity:   18.0 / 37.0,
		wheel.Number:   1.0 / 37.0,
	}
	for c, want := range cases {
		if got := stats.ExpectedHitRate(c); math.Abs(got-want) > 1e-12 {
			t.Fatalf("%s got %f want %f", c, got, want)
		}
	}
}

func TestStakeReport(t *testing.T) {
	rep := buildPoolReport([]int{0})
	rep.Pool.Staked = 1000
	rep.Pool.StakersNet = 50
	rep.Pool.PoolWins = 3
	rep.Pool.PoolLoses = 1
	rep.Done()
	if rep.Pool.StakersROI != 0.05 || rep.Pool.PoolWinRate != 0.75 {
		t.Fatalf("stake report got %+v", rep.Pool)
	}
}

func TestEstimatePlayers(t *testing.T) {
	reports := make([]*stats.PoolReport, 0, 100)
	for i := 0; i < 100; i++ {
		r := buildPoolReport(nil)
		r.Player.Wagered = 100
		r.Player.Won = i
		r.Player.NumberHits = i % 4
		reports = append(reports, r)
	}
	est := stats.EstimatePlayers(reports)
	if est.Players != 100 {
		t.Fatalf("players got %d", est.Players)
	}
	if math.Abs(est.RtpStat.ExpMedian.Hat-0.5) > 0.05 {
		t.Fatalf("median RTP expected ~0.5, got %.3f", est.RtpStat.ExpMedian.Hat)
	}
	if math.Abs(est.RtpStat.ExpPerc.ExpP90.Hat-0.9) > 0.05 {
		t.Fatalf("P90 RTP expected ~0.9, got %.3f", est.RtpStat.ExpPerc.ExpP90.Hat)
	}
	if est.RtpStat.RtpPerc.Rtp100.Hat != 1 {
		t.Fatalf("every player is at or below 100%% RTP, got %f", est.RtpStat.RtpPerc.Rtp100.Hat)
	}
	if est.EventStat.NumberHits.Zero.Hat != 0.25 || est.EventStat.NumberHits.More.Hat != 0.25 {
		t.Fatalf("number hits got %+v", est.EventStat.NumberHits)
	}

	sessions := make([]*stats.PoolReport, 10)
	for i := range sessions {
		r := buildPoolReport(nil)
		switch {
		case i < 3:
			r.Player.Bust = true
		case i < 5:
			r.Player.Cashout = true
		}
		sessions[i] = r
	}
	est2 := stats.EstimatePlayers(sessions)
	if est2.SessionStat.Bust.Hat != 0.3 {
		t.Fatalf("Bust rate got %.2f want 0.30", est2.SessionStat.Bust.Hat)
	}
	if est2.SessionStat.Cashout.Hat != 0.2 {
		t.Fatalf("Cashout rate got %.2f want 0.20", est2.SessionStat.Cashout.Hat)
	}
	if est2.SessionStat.Alive.Hat != 0.5 {
		t.Fatalf("Alive rate got %.2f want 0.50", est2.SessionStat.Alive.Hat)
	}
	if !sessions[9].Player.Alive || sessions[0].Player.Alive {
		t.Fatalf("alive flag must be derived on Done")
	}

	if empty := stats.EstimatePlayers(nil); empty.Players != 0 {
		t.Fatalf("empty estimate got %+v", empty)
	}
}

func TestRenders(t *testing.T) {
	rep := buildPoolReport([]int{0, 2, 36})

	var jb bytes.Buffer
	if err := rep.WriteWith(&jb, &stats.JsonPoolReportRender{}); err != nil {
		t.Fatalf("json: %v", err)
	}
	var back stats.PoolReport
	if err := json.Unmarshal(jb.Bytes(), &back); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if back.Summary == nil || back.Summary.Wagers != 3 {
		t.Fatalf("json round trip lost summary: %s", jb.String())
	}

	var yb bytes.Buffer
	if err := rep.WriteWith(&yb, &stats.YAMLPoolReportRender{}); err != nil {
		t.Fatalf("yaml: %v", err)
	}
	if !strings.Contains(yb.String(), "outcomes: [") {
		t.Fatalf("innermost lists should be flow style:\n%s", yb.String())
	}

	var tb bytes.Buffer
	if err := rep.WriteWith(&tb, &stats.TablePoolReportRender{}); err != nil {
		t.Fatalf("table: %v", err)
	}
	if !strings.Contains(tb.String(), "Total RTP") || !strings.Contains(tb.String(), "TestPool") {
		t.Fatalf("table output:\n%s", tb.String())
	}

	var eb bytes.Buffer
	est := stats.EstimatePlayers([]*stats.PoolReport{rep, buildPoolReport([]int{1})})
	if err := (&stats.JsonEstimatorRender{}).Write(&eb, est); err != nil {
		t.Fatalf("estimate json: %v", err)
	}
	eb.Reset()
	est.Out(&eb)
	if !strings.Contains(eb.String(), "Session Outcome") {
		t.Fatalf("estimate table:\n%s", eb.String())
	}
}
