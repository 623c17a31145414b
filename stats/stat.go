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
	"math"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/zintix-labs/spinpool/sdk/wheel"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gonum.org/v1/gonum/stat/distuv"
)

var lang language.Tag = language.English

// 信賴區間
type CI struct {
	Lo float64 `json:"Lo"`
	Hi float64 `json:"Hi"`
}

// PoolReport 資金池統計報告
type PoolReport struct {
	Summary  *SummaryReport  `json:"Summary"`
	Mult     *MultReport     `json:"Mult"`
	Category *CategoryReport `json:"Category"`
	Dist     *DistReport     `json:"Dist"`
	Pool     *StakeReport    `json:"Pool"`
	Player   *PlayerReport   `json:"Player,omitzero"`
	isDone   bool
}

// SummaryReport 金額一律以押注單位（BetUnit）計，方便跨幣別比較。
type SummaryReport struct {
	Name      string  `json:"Name"`
	Symbol    string  `json:"Symbol"`
	BetUnit   string  `json:"BetUnit"`
	TotalBet  float64 `json:"TotalBet"`
	TotalWin  float64 `json:"TotalWin"`
	RTP       float64 `json:"RTP"`
	RtpCI     CI      `json:"RtpCI"`
	HouseEdge float64 `json:"HouseEdge"`
	Std       float64 `json:"Std"`
	Cv        float64 `json:"Cv"`
	Hits      int     `json:"Hits"`
	HitRate   float64 `json:"HitRate"`
	Wagers    int     `json:"Wagers"`
	Rounds    int     `json:"Rounds"`
}

// MultReport 單注派彩倍數（含本金）的累積量
type MultReport struct {
	WinMultSum   float64 `json:"WinMultSum"`
	WinMultSqSum float64 `json:"WinMultSqSum"` // 平方和
}

// CategoryReport 各下注類別的命中統計，Expected 為理論命中率。
type CategoryReport struct {
	Names    []string  `json:"Names"`
	Bets     []int     `json:"Bets"`
	Hits     []int     `json:"Hits"`
	HitRate  []float64 `json:"HitRate"`
	HitCI    []CI      `json:"HitCI"`
	Expected []float64 `json:"Expected"`
}

// DistReport 開出號碼分布與均勻度檢定
type DistReport struct {
	Outcomes []int     `json:"Outcomes"`
	Freq     []float64 `json:"Freq"`
	ChiSq    float64   `json:"ChiSq"`
	PValue   float64   `json:"PValue"`
}

// StakeReport 質押方與國庫
type StakeReport struct {
	Staked          float64 `json:"Staked"`
	StakersNet      float64 `json:"StakersNet"`
	StakersROI      float64 `json:"StakersROI"`
	TreasuryAccrued float64 `json:"TreasuryAccrued"`
	PoolWins        int     `json:"PoolWins"`
	PoolLoses       int     `json:"PoolLoses"`
	PoolWinRate     float64 `json:"PoolWinRate"`
}

// PlayerReport 玩家資金歷程（以押注單位計）
//
// 需使用 PlayerRecord 才會統計
type PlayerReport struct {
	InitBalance int  `json:"InitBalance"`
	Balance     int  `json:"Balance"`
	MaxBalance  int  `json:"MaxBalance"`
	MinBalance  int  `json:"MinBalance"`
	Wagered     int  `json:"Wagered"`
	Won         int  `json:"Won"`
	NumberHits  int  `json:"NumberHits"`
	Bust        bool `json:"Bust"`
	Cashout     bool `json:"Cashout"`
	Alive       bool `json:"Alive"`
}

// ============================================================
// ** 公開方法 **
// ============================================================

// Done 將累積計數轉換為最終統計結果並鎖定 isDone 標記，重複呼叫無作用。
func (s *PoolReport) Done() {
	if s.isDone {
		return
	}
	s.Summary.RTP = s.Rtp()
	s.Summary.HouseEdge = 1 - s.Summary.RTP
	s.Summary.RtpCI = s.Ci()
	s.Summary.Std = s.Std()
	s.Summary.Cv = s.Cv()
	if s.Summary.Wagers > 0 {
		s.Summary.HitRate = float64(s.Summary.Hits) / float64(s.Summary.Wagers)
	}

	if c := s.Category; c != nil {
		n := len(c.Names)
		c.HitRate = make([]float64, n)
		c.HitCI = make([]CI, n)
		for i := range n {
			c.HitRate[i], c.HitCI[i] = proportionCICP(c.Hits[i], c.Bets[i], 0.95)
		}
	}
	if d := s.Dist; d != nil {
		d.Freq, d.ChiSq, d.PValue = uniformity(d.Outcomes)
	}
	if p := s.Pool; p != nil {
		if p.Staked > 0 {
			p.StakersROI = p.StakersNet / p.Staked
		}
		if r := p.PoolWins + p.PoolLoses; r > 0 {
			p.PoolWinRate = float64(p.PoolWins) / float64(r)
		}
	}
	if s.Player != nil {
		s.Player.Alive = !(s.Player.Bust || s.Player.Cashout)
	}
	s.isDone = true
}

// Rtp 回傳整體 RTP（總派彩 / 總押注）
func (s *PoolReport) Rtp() float64 {
	if s.Summary.TotalBet <= 0 {
		return 0
	}
	return s.Summary.TotalWin / s.Summary.TotalBet
}

// Std 回傳單注派彩倍數的樣本標準差
func (s *PoolReport) Std() float64 {
	if s.Summary.Wagers < 2 || s.Mult == nil {
		return 0
	}
	n := float64(s.Summary.Wagers)
	variance := (s.Mult.WinMultSqSum - s.Mult.WinMultSum*s.Mult.WinMultSum/n) / (n - 1)
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance)
}

// Cv 回傳變異係數
func (s *PoolReport) Cv() float64 {
	rtp := s.Rtp()
	if rtp <= 0 {
		return 0
	}
	return s.Std() / rtp
}

// Ci 回傳(95% Rtp)信賴區間
func (s *PoolReport) Ci() CI {
	rtp := s.Rtp()
	se := float64(0)
	if s.Summary.Wagers > 1 {
		se = s.Std() / math.Sqrt(float64(s.Summary.Wagers))
	}
	return CI{Lo: max(rtp-1.96*se, 0.0), Hi: rtp + 1.96*se}
}

func (s *PoolReport) WriteWith(w io.Writer, rep PoolReportRender) error {
	s.Done()
	return rep.Write(w, s)
}

// StdOut 把摘要表格印到 w。
func (s *PoolReport) StdOut(w io.Writer, ut time.Duration) {
	s.Done()
	if ut > 0 {
		fmt.Fprint(w, formatDuration(ut, s.Summary.Rounds))
	}
	sk, sm := s.fmtBasic()
	fmt.Fprintln(w, fmtTable(s.Summary.Name, sk, sm))
	if s.Category != nil {
		ck, cm := s.fmtCategory()
		fmt.Fprintln(w, fmtTable("Category", ck, cm))
	}
	if s.Pool != nil {
		pk, pm := s.fmtPool()
		fmt.Fprintln(w, fmtTable("Pool", pk, pm))
	}
}

// ExpectedHitRate 回傳類別的理論命中率（以選項 0 計，各選項相同）。
func ExpectedHitRate(c wheel.Category) float64 {
	hit := 0
	for n := uint8(0); n < wheel.Slots; n++ {
		if wheel.Check(c, 0, n) {
			hit++
		}
	}
	return float64(hit) / float64(wheel.Slots)
}

// ============================================================
// ** 內部方法 **
// ============================================================

// uniformity 對號碼分布做卡方均勻度檢定，回傳頻率、統計量與 p 值。
func uniformity(obs []int) ([]float64, float64, float64) {
	k := len(obs)
	total := 0
	for _, o := range obs {
		total += o
	}
	freq := make([]float64, k)
	if total == 0 || k < 2 {
		return freq, 0, 1
	}
	e := float64(total) / float64(k)
	chi := 0.0
	for i, o := range obs {
		freq[i] = float64(o) / float64(total)
		d := float64(o) - e
		chi += d * d / e
	}
	dist := distuv.ChiSquared{K: float64(k - 1)}
	return freq, chi, dist.Survival(chi)
}

func formatDuration(d time.Duration, rounds int) string {
	p := message.NewPrinter(lang)
	if d < 0 {
		d = -d
	}
	sec := d.Seconds()
	if sec <= 0 {
		sec = 1e-9
	}
	rps := int(float64(rounds) / sec)
	if sec < 60.0 {
		return p.Sprintf("used: %.2f seconds\nrps : %d rounds/sec\n", sec, rps)
	}
	s := int(d.Seconds()) % 60
	m := int(d.Minutes()) % 60
	h := int(d.Hours())
	if h == 0 {
		return p.Sprintf("used: %dm %ds\nrps : %d rounds/sec\n", m, s, rps)
	}
	return p.Sprintf("used: %dh:%dm:%ds\nrps : %d rounds/sec\n", h, m, s, rps)
}

func (s *PoolReport) fmtBasic() ([]string, map[string]string) {
	p := message.NewPrinter(lang)
	basic := map[string]string{
		"Pool Name":    p.Sprintf("%s", s.Summary.Name),
		"Bet Unit":     p.Sprintf("%s %s", s.Summary.BetUnit, s.Summary.Symbol),
		"Total Rounds": p.Sprintf("%d", s.Summary.Rounds),
		"Total Wagers": p.Sprintf("%d", s.Summary.Wagers),
		"Total RTP":    p.Sprintf("%.2f %%", 100.0*s.Summary.RTP),
		"RTP 95% CI":   p.Sprintf("[%.2f%%,%.2f%%]", 100.0*s.Summary.RtpCI.Lo, 100.0*s.Summary.RtpCI.Hi),
		"House Edge":   p.Sprintf("%.2f %%", 100.0*s.Summary.HouseEdge),
		"Total Bet":    p.Sprintf("%.0f", s.Summary.TotalBet),
		"Total Win":    p.Sprintf("%.0f", s.Summary.TotalWin),
		"Hit Rate":     p.Sprintf("%.2f %%", 100.0*s.Summary.HitRate),
		"STD":          p.Sprintf("%.3f", s.Summary.Std),
		"CV":           p.Sprintf("%.3f", s.Summary.Cv),
	}
	keys := []string{"Pool Name", "Bet Unit", "Total Rounds", "Total Wagers", "Total RTP", "RTP 95% CI", "House Edge", "Total Bet", "Total Win", "Hit Rate", "STD", "CV"}
	if s.Dist != nil {
		basic["Outcome χ² p"] = p.Sprintf("%.4f", s.Dist.PValue)
		keys = append(keys, "Outcome χ² p")
	}
	return keys, basic
}

func (s *PoolReport) fmtCategory() ([]string, map[string]string) {
	p := message.NewPrinter(lang)
	c := s.Category
	msg := make(map[string]string, len(c.Names))
	for i, n := range c.Names {
		msg[n] = p.Sprintf("%d bets, hit %.2f%% [%.2f%%,%.2f%%] exp %.2f%%",
			c.Bets[i], 100*c.HitRate[i], 100*c.HitCI[i].Lo, 100*c.HitCI[i].Hi, 100*c.Expected[i])
	}
	return c.Names, msg
}

func (s *PoolReport) fmtPool() ([]string, map[string]string) {
	p := message.NewPrinter(lang)
	msg := map[string]string{
		"Staked":           p.Sprintf("%.0f", s.Pool.Staked),
		"Stakers Net":      p.Sprintf("%.2f", s.Pool.StakersNet),
		"Stakers ROI":      p.Sprintf("%.4f %%", 100*s.Pool.StakersROI),
		"Treasury Accrued": p.Sprintf("%.2f", s.Pool.TreasuryAccrued),
		"Pool Win Rate":    p.Sprintf("%.2f %%", 100*s.Pool.PoolWinRate),
	}
	keys := []string{"Staked", "Stakers Net", "Stakers ROI", "Treasury Accrued", "Pool Win Rate"}
	return keys, msg
}

func fmtTable(title string, keys []string, msg map[string]string) string {
	p := message.NewPrinter(lang)
	maxKeyLen := 0
	maxValLen := 0
	for k, m := range msg {
		if w := runewidth.StringWidth(k); w > maxKeyLen {
			maxKeyLen = w
		}
		if w := runewidth.StringWidth(m); w > maxValLen {
			maxValLen = w
		}
	}
	maxKeyLen += 2
	maxValLen += 2

	divider := "+" + strings.Repeat("-", maxKeyLen) + "+" + strings.Repeat("-", maxValLen) + "+\n"
	top := "+" + strings.Repeat("-", maxKeyLen+1+maxValLen) + "+\n"

	totalInner := maxKeyLen + maxValLen + 1
	titleW := runewidth.StringWidth(title)

	left := (totalInner - titleW) / 2
	right := totalInner - titleW - left

	var sb strings.Builder
	sb.WriteString(top)
	sb.WriteString(p.Sprintf("|%s%s%s|\n", blank(left), title, blank(right)))
	sb.WriteString(divider)
	for _, k := range keys {
		sb.WriteString(p.Sprintf("| %s%s | %s%s |\n", k, blank(maxKeyLen-2-runewidth.StringWidth(k)), msg[k], blank(maxValLen-2-runewidth.StringWidth(msg[k]))))
	}
	sb.WriteString(divider)
	return sb.String()
}

func blank(w int) string {
	if w < 1 {
		return ""
	}
	return strings.Repeat(" ", w)
}
