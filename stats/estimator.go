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

package stats

import (
	"fmt"
	"io"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"
)

// ============================================================
// ** 結構宣告 **
// ============================================================

// PlayerEstimate 玩家體驗評估
type PlayerEstimate struct {
	Players     int
	RtpStat     RtpStat
	EventStat   EventStat
	SessionStat SessionStat
}

// Rtp敘事
type RtpStat struct {
	ExpMedian PointStat // 描述體驗的中位數
	ExpPerc   ExpPerc   // 描述玩家的分布(對應RTP)
	RtpPerc   RtpPerc   // 描述Rtp的分布(對應多少比例的玩家)
}

// 用玩家體驗分位數視角看: 最差10％玩家的RTP 最差33%玩家的RTP ...
type ExpPerc struct {
	ExpP10 PointStat
	ExpP33 PointStat
	ExpP67 PointStat
	ExpP90 PointStat
}

// 用Rtp分位數視角看玩家: 有多少玩家體驗到了30%RTP 有多少玩家體驗到了50%RTP ...
type RtpPerc struct {
	Rtp30  PointStat
	Rtp50  PointStat
	Rtp70  PointStat
	Rtp100 PointStat
}

// PointStat 點估計 回傳 估計值 以及信賴區間
type PointStat struct {
	Hat float64
	CI  CI
}

// 事件敘事：玩家中過幾次單號
type EventStat struct {
	NumberHits EventCount
}

// 事件點估計
type EventCount struct {
	Zero PointStat
	One  PointStat
	Two  PointStat
	More PointStat
}

// 對應結果敘事
type SessionStat struct {
	Bust    PointStat // 破產
	Cashout PointStat // 贏滿離場
	Alive   PointStat // 活到最後
}

// ============================================================
// ** 對外 : 用戶體驗評估 **
// ============================================================

// EstimatePlayers 由每位玩家一份的報告（需含 Player）估計玩家體驗。
//
// 1. RTP 敘事 : 玩家個人 RTP（Won / Wagered）的分位數與門檻比例
//
// 2. Event 敘事 : 玩家中單號 0/1/2/3+ 次的比例
//
// 3. Session 敘事 : 破產離場、贏滿離場、活到最後的比例
func EstimatePlayers(sts []*PoolReport) *PlayerEstimate {
	out := &PlayerEstimate{}
	players := make([]*PlayerReport, 0, len(sts))
	for _, s := range sts {
		if s == nil || s.Player == nil {
			continue
		}
		s.Done()
		players = append(players, s.Player)
	}
	n := len(players)
	out.Players = n
	if n == 0 {
		return out
	}

	rtp := make([]float64, n)
	for i, p := range players {
		if p.Wagered > 0 {
			rtp[i] = float64(p.Won) / float64(p.Wagered)
		}
	}

	point := func(q float64) PointStat {
		lo, hi := quantileCI(rtp, q, 0.95)
		return PointStat{Hat: quantilePoint(rtp, q), CI: CI{Lo: lo, Hi: hi}}
	}
	under := func(x0 float64) PointStat {
		hat, ci := percentileCIForValue(rtp, x0, 0.95)
		return PointStat{Hat: hat, CI: ci}
	}
	out.RtpStat = RtpStat{
		ExpMedian: point(0.5),
		ExpPerc: ExpPerc{
			ExpP10: point(0.10),
			ExpP33: point(1.0 / 3.0),
			ExpP67: point(2.0 / 3.0),
			ExpP90: point(0.90),
		},
		RtpPerc: RtpPerc{
			Rtp30:  under(0.30),
			Rtp50:  under(0.50),
			Rtp70:  under(0.70),
			Rtp100: under(1.00),
		},
	}

	var c0, c1, c2, c3p int
	for _, p := range players {
		switch h := p.NumberHits; {
		case h == 0:
			c0++
		case h == 1:
			c1++
		case h == 2:
			c2++
		default:
			c3p++
		}
	}
	out.EventStat.NumberHits = EventCount{
		Zero: ratio(c0, n),
		One:  ratio(c1, n),
		Two:  ratio(c2, n),
		More: ratio(c3p, n),
	}

	var bust, cash, alive int
	for _, p := range players {
		switch {
		case p.Bust:
			bust++
		case p.Cashout:
			cash++
		default:
			alive++
		}
	}
	out.SessionStat = SessionStat{
		Bust:    ratio(bust, n),
		Cashout: ratio(cash, n),
		Alive:   ratio(alive, n),
	}
	return out
}

func ratio(k, n int) PointStat {
	hat, ci := proportionCICP(k, n, 0.95)
	return PointStat{Hat: hat, CI: ci}
}

// ============================================================
// ** 內部統計函數 **
// ============================================================

// Clopper–Pearson exact CI for binomial proportion (k successes out of n)
func proportionCICP(k int, n int, confidence float64) (pHat float64, ci CI) {
	if n == 0 {
		return 0, CI{0, 1}
	}
	alpha := 1 - confidence
	pHat = float64(k) / float64(n)

	// Beta PPF 映射，處理邊界
	if k == 0 {
		ci.Lo = 0
	} else {
		b := distuv.Beta{Alpha: float64(k), Beta: float64(n - k + 1)}
		ci.Lo = b.Quantile(alpha / 2)
	}
	if k == n {
		ci.Hi = 1
	} else {
		b := distuv.Beta{Alpha: float64(k + 1), Beta: float64(n - k)}
		ci.Hi = b.Quantile(1 - alpha/2)
	}
	return
}

// 問題：給定樣本 data 與門檻 x0，估計 p = P(X ≤ x0) 的點估計與 CI 區間
// 回傳 (pHat, CI)
func percentileCIForValue(data []float64, x0 float64, confidence float64) (pHat float64, ci CI) {
	n := len(data)
	if n == 0 {
		return 0, CI{Lo: 0, Hi: 0}
	}
	// k = 數到 <= x0 的個數
	k := 0
	for _, v := range data {
		if v <= x0 {
			k++
		}
	}
	return proportionCICP(k, n, confidence)
}

// 想估「第 q 分位」的上下界。做法：把 order statistic 的秩視為二項→Beta 反推 p 範圍，再把 p 轉回樣本索引。
// 回傳 (loValue, hiValue)
func quantileCI(data []float64, q, confidence float64) (float64, float64) {
	n := len(data)
	if n == 0 {
		return 0, 0
	}
	cp := make([]float64, n)
	copy(cp, data)
	sort.Float64s(cp)
	if n < 2 {
		return cp[0], cp[0]
	}

	alpha := 1 - confidence
	k := int(q * float64(n))
	if k < 1 {
		k = 1
	} else if k > n-1 {
		k = n - 1
	}

	// 以 CP 思想反推 p 範圍
	bLo := distuv.Beta{Alpha: float64(k), Beta: float64(n - k + 1)}
	bHi := distuv.Beta{Alpha: float64(k + 1), Beta: float64(n - k)}
	pLo := bLo.Quantile(alpha / 2)
	pHi := bHi.Quantile(1 - alpha/2)

	li := int(pLo * float64(n))
	ui := int(pHi * float64(n))
	if ui > 0 {
		ui -= 1
	}
	if li < 0 {
		li = 0
	}
	if li > n-1 {
		li = n - 1
	}
	if ui < 0 {
		ui = 0
	}
	if ui > n-1 {
		ui = n - 1
	}
	return cp[li], cp[ui]
}

// quantilePoint returns the empirical quantile point estimate at q.
func quantilePoint(data []float64, q float64) float64 {
	n := len(data)
	if n == 0 {
		return 0
	}
	cp := make([]float64, n)
	copy(cp, data)
	sort.Float64s(cp)
	// 最近秩法
	idx := int(q * float64(n))
	if idx < 0 {
		idx = 0
	}
	if idx > n-1 {
		idx = n - 1
	}
	return cp[idx]
}

// ============================================================
// ** 輸出函數 **
// ============================================================

// Out 以表格輸出到 w。
func (est *PlayerEstimate) Out(w io.Writer) {
	rtpKeys := []string{
		"Median RTP",
		"P10 RTP",
		"P33 RTP",
		"P67 RTP",
		"P90 RTP",
		"≤30% RTP (players)",
		"≤50% RTP (players)",
		"≤70% RTP (players)",
		"≤100% RTP (players)",
	}
	rtpMsg := map[string]string{
		"Median RTP":          fmtHatCIpct01(est.RtpStat.ExpMedian),
		"P10 RTP":             fmtHatCIpct01(est.RtpStat.ExpPerc.ExpP10),
		"P33 RTP":             fmtHatCIpct01(est.RtpStat.ExpPerc.ExpP33),
		"P67 RTP":             fmtHatCIpct01(est.RtpStat.ExpPerc.ExpP67),
		"P90 RTP":             fmtHatCIpct01(est.RtpStat.ExpPerc.ExpP90),
		"≤30% RTP (players)":  fmtHatCIpct01(est.RtpStat.RtpPerc.Rtp30),
		"≤50% RTP (players)":  fmtHatCIpct01(est.RtpStat.RtpPerc.Rtp50),
		"≤70% RTP (players)":  fmtHatCIpct01(est.RtpStat.RtpPerc.Rtp70),
		"≤100% RTP (players)": fmtHatCIpct01(est.RtpStat.RtpPerc.Rtp100),
	}
	fmt.Fprintln(w, fmtTable(fmt.Sprintf("RTP (%d players)", est.Players), rtpKeys, rtpMsg))

	hitKeys := []string{"0 times", "1 time", "2 times", "3+ times"}
	hitMsg := map[string]string{
		"0 times":  fmtHatCIpct01(est.EventStat.NumberHits.Zero),
		"1 time":   fmtHatCIpct01(est.EventStat.NumberHits.One),
		"2 times":  fmtHatCIpct01(est.EventStat.NumberHits.Two),
		"3+ times": fmtHatCIpct01(est.EventStat.NumberHits.More),
	}
	fmt.Fprintln(w, fmtTable("Number hits per player", hitKeys, hitMsg))

	sessionKeys := []string{"Bust", "Cashout", "Alive"}
	sessionMsg := map[string]string{
		"Bust":    fmtHatCIpct01(est.SessionStat.Bust),
		"Cashout": fmtHatCIpct01(est.SessionStat.Cashout),
		"Alive":   fmtHatCIpct01(est.SessionStat.Alive),
	}
	fmt.Fprintln(w, fmtTable("Session Outcome", sessionKeys, sessionMsg))
}

func fmtPct01(x float64) string {
	return fmt.Sprintf("%.2f%%", x*100)
}

func fmtHatCIpct01(ps PointStat) string {
	return fmt.Sprintf("%s [%s, %s]", fmtPct01(ps.Hat), fmtPct01(ps.CI.Lo), fmtPct01(ps.CI.Hi))
}
