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

// Package dto 是 HTTP 邊界的請求與回應結構。
//
// 金額在線上一律以十進位字串傳遞（最小單位），避免 JSON 數字的精度問題。
package dto

import (
	"encoding/json"
	"net/http"

	"github.com/zintix-labs/spinpool/ledger"
	"github.com/zintix-labs/spinpool/sdk/amount"
	"github.com/zintix-labs/spinpool/setting"
)

type WagerDTO struct {
	Category string `json:"category"`
	Selector uint8  `json:"selector"`
	Amount   string `json:"amount"`
	Paid     string `json:"paid,omitempty"`
}

type PlayerResultDTO struct {
	Account string     `json:"account"`
	Wagered string     `json:"wagered"`
	Paid    string     `json:"paid"`
	Wagers  []WagerDTO `json:"wagers"`
}

type SettlementDTO struct {
	Round       uint64            `json:"round"`
	Outcome     uint8             `json:"outcome"`
	Height      uint64            `json:"height"`
	Time        int64             `json:"time"`
	Wagered     string            `json:"wagered"`
	Paid        string            `json:"paid"`
	Direction   string            `json:"direction"`
	Delta       string            `json:"delta"`
	TreasuryCut string            `json:"treasury_cut"`
	Distributed string            `json:"distributed"`
	Stakes      int               `json:"stakes"`
	Players     []PlayerResultDTO `json:"players"`
}

type SweepDTO struct {
	Time        int64  `json:"time"`
	Amount      string `json:"amount"`
	PlayersPot  string `json:"players_pot"`
	StakersPot  string `json:"stakers_pot"`
	OperatorPot string `json:"operator_pot"`
	PerPlayer   string `json:"per_player"`
	Players     int    `json:"players"`
	Stakes      int    `json:"stakes"`
	Distributed string `json:"distributed"`
	Remainder   string `json:"remainder"`
}

type StakeDTO struct {
	ID         uint64 `json:"id"`
	Amount     string `json:"amount"`
	Profit     string `json:"profit"`
	Loss       string `json:"loss"`
	Since      int64  `json:"since"`
	Multiplier uint64 `json:"multiplier"`
	UnlockAt   int64  `json:"unlock_at"`
}

type AccountDTO struct {
	ID      string     `json:"id"`
	Balance string     `json:"balance"`
	Wagers  []WagerDTO `json:"wagers"`
	Stakes  []StakeDTO `json:"stakes"`
	LastBet int64      `json:"last_bet"`
}

type RoundDTO struct {
	Index        uint64 `json:"index"`
	Start        uint64 `json:"start"`
	Next         uint64 `json:"next"`
	Height       uint64 `json:"height"`
	Outcome      *uint8 `json:"outcome,omitempty"`
	Spinning     bool   `json:"spinning"`
	Wagered      string `json:"wagered"`
	Ceiling      string `json:"ceiling"`
	Participants int    `json:"participants"`
}

type PoolDTO struct {
	Balance string `json:"balance"`
	Ceiling string `json:"ceiling"`
	Stake   string `json:"stake"`
	Profit  string `json:"profit"`
	Loss    string `json:"loss"`
	Stakers int    `json:"stakers"`
	Stakes  int    `json:"stakes"`
}

type TreasuryDTO struct {
	Amount    string `json:"amount"`
	Threshold string `json:"threshold"`
	LastSweep int64  `json:"last_sweep"`
	NextSweep int64  `json:"next_sweep,omitempty"`
}

type EntryDTO struct {
	ID      string `json:"id"`
	Kind    string `json:"kind"`
	Account string `json:"account,omitempty"`
	StakeID uint64 `json:"stake_id,omitempty"`
	Round   uint64 `json:"round"`
	Amount  string `json:"amount"`
	Outcome uint8  `json:"outcome"`
	Height  uint64 `json:"height"`
	Time    int64  `json:"time"`
}

// AmountDTO 單一金額回應（unstake/harvest/deposit/withdraw）。
type AmountDTO struct {
	Amount string `json:"amount"`
}

// BetDTO 下注成功後的回應。
type BetDTO struct {
	Round   uint64 `json:"round"`
	Balance string `json:"balance"`
}

type StakeIDDTO struct {
	StakeID uint64 `json:"stake_id"`
}

type TokenDTO struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"`
}

type WalletDTO struct {
	Account string `json:"account"`
	Balance string `json:"balance"`
}

type HeightDTO struct {
	Height uint64 `json:"height"`
	Time   int64  `json:"time"`
}

// ConfigDTO 對外公開的資金池參數。
type ConfigDTO struct {
	Name              string                `json:"name"`
	Token             setting.TokenSetting  `json:"token"`
	Tiers             []setting.TierSetting `json:"tiers"`
	TreasuryCut       uint64                `json:"treasury_cut"`
	Split             setting.SplitSetting  `json:"split"`
	TreasuryThreshold string                `json:"treasury_threshold"`
	TreasuryInterval  int64                 `json:"treasury_interval"`
	RoundDelay        uint64                `json:"round_delay"`
	AllowedRateBps    uint64                `json:"allowed_rate_bps"`
	MaxWagers         int                   `json:"max_wagers"`
	MinLock           int64                 `json:"min_lock"`
	Operator          string                `json:"operator"`
}

func str(a amount.Amount) string { return amount.String(a) }

func newWagerDTO(w ledger.Wager) WagerDTO {
	return WagerDTO{Category: w.Category.String(), Selector: w.Selector, Amount: str(w.Amount)}
}

func NewSettlementDTO(st *ledger.Settlement) SettlementDTO {
	out := SettlementDTO{
		Round:       st.Round,
		Outcome:     st.Outcome,
		Height:      st.Height,
		Time:        st.Time,
		Wagered:     str(st.Wagered),
		Paid:        str(st.Paid),
		Direction:   st.Direction.String(),
		Delta:       str(st.Delta),
		TreasuryCut: str(st.TreasuryCut),
		Distributed: str(st.Distributed),
		Stakes:      st.Stakes,
		Players:     make([]PlayerResultDTO, 0, len(st.Players)),
	}
	for _, pr := range st.Players {
		p := PlayerResultDTO{
			Account: pr.Account,
			Wagered: str(pr.Wagered),
			Paid:    str(pr.Paid),
			Wagers:  make([]WagerDTO, 0, len(pr.Wagers)),
		}
		for _, w := range pr.Wagers {
			d := newWagerDTO(w.Wager)
			d.Paid = str(w.Paid)
			p.Wagers = append(p.Wagers, d)
		}
		out.Players = append(out.Players, p)
	}
	return out
}

func NewSweepDTO(r *ledger.SweepResult) SweepDTO {
	return SweepDTO{
		Time:        r.Time,
		Amount:      str(r.Amount),
		PlayersPot:  str(r.PlayersPot),
		StakersPot:  str(r.StakersPot),
		OperatorPot: str(r.OperatorPot),
		PerPlayer:   str(r.PerPlayer),
		Players:     r.Players,
		Stakes:      r.Stakes,
		Distributed: str(r.Distributed),
		Remainder:   str(r.Remainder),
	}
}

func NewAccountDTO(v ledger.AccountView) AccountDTO {
	out := AccountDTO{
		ID:      v.ID,
		Balance: str(v.Balance),
		Wagers:  make([]WagerDTO, 0, len(v.Wagers)),
		Stakes:  make([]StakeDTO, 0, len(v.Stakes)),
		LastBet: v.LastBet,
	}
	for _, w := range v.Wagers {
		out.Wagers = append(out.Wagers, newWagerDTO(w))
	}
	for _, s := range v.Stakes {
		out.Stakes = append(out.Stakes, StakeDTO{
			ID:         s.ID,
			Amount:     str(s.Amount),
			Profit:     str(s.Profit),
			Loss:       str(s.Loss),
			Since:      s.Since,
			Multiplier: s.Multiplier,
			UnlockAt:   s.UnlockAt,
		})
	}
	return out
}

func NewRoundDTO(v ledger.RoundView) RoundDTO {
	out := RoundDTO{
		Index:        v.Index,
		Start:        v.Start,
		Next:         v.Next,
		Height:       v.Height,
		Spinning:     v.Spinning,
		Wagered:      str(v.Wagered),
		Ceiling:      str(v.Ceiling),
		Participants: v.Participants,
	}
	if v.HasOutcome {
		o := v.Outcome
		out.Outcome = &o
	}
	return out
}

func NewPoolDTO(v ledger.PoolView) PoolDTO {
	return PoolDTO{
		Balance: str(v.Balance),
		Ceiling: str(v.Ceiling),
		Stake:   str(v.Stake),
		Profit:  str(v.Profit),
		Loss:    str(v.Loss),
		Stakers: v.Stakers,
		Stakes:  v.Stakes,
	}
}

func NewTreasuryDTO(v ledger.TreasuryView) TreasuryDTO {
	return TreasuryDTO{
		Amount:    str(v.Amount),
		Threshold: str(v.Threshold),
		LastSweep: v.LastSweep,
		NextSweep: v.NextSweep,
	}
}

func NewEntryDTOs(es []ledger.Entry) []EntryDTO {
	out := make([]EntryDTO, 0, len(es))
	for _, e := range es {
		out = append(out, EntryDTO{
			ID:      e.ID.String(),
			Kind:    string(e.Kind),
			Account: e.Account,
			StakeID: e.StakeID,
			Round:   e.Round,
			Amount:  str(e.Amount),
			Outcome: e.Outcome,
			Height:  e.Height,
			Time:    e.Time,
		})
	}
	return out
}

func NewConfigDTO(ps *setting.PoolSetting) ConfigDTO {
	return ConfigDTO{
		Name:              ps.Name,
		Token:             ps.Token,
		Tiers:             ps.Tiers,
		TreasuryCut:       ps.TreasuryCut,
		Split:             ps.Split,
		TreasuryThreshold: str(ps.Threshold),
		TreasuryInterval:  ps.TreasuryInterval,
		RoundDelay:        ps.RoundDelay,
		AllowedRateBps:    ps.AllowedRateBps,
		MaxWagers:         ps.MaxWagers,
		MinLock:           ps.MinLock,
		Operator:          ps.Operator,
	}
}

func NewAmountDTO(a amount.Amount) AmountDTO { return AmountDTO{Amount: str(a)} }

// Write 以 JSON 寫回 v。
func Write(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
