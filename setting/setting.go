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

// Package setting 定義資金池的部署期參數（PoolSetting）。
//
// 設定檔讀入後一律經過 init()：排序分級、解析金額，再執行 valid() 做基本檢查。
// 建立完成後視為唯讀，帳本只讀不寫。
package setting

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"slices"

	"github.com/zintix-labs/spinpool/configs"
	"github.com/zintix-labs/spinpool/errs"
	"github.com/zintix-labs/spinpool/sdk/amount"
	"gopkg.in/yaml.v3"
)

// TokenSetting 顯示用的幣別資訊；帳本內一律是最小單位整數。
type TokenSetting struct {
	Symbol   string `yaml:"symbol"   json:"symbol"`
	Decimals int32  `yaml:"decimals" json:"decimals"`
}

// TierSetting 質押時間分級：質押滿 MinSeconds 秒後，權重乘上 (100 + Bonus)%。
type TierSetting struct {
	MinSeconds int64  `yaml:"min_seconds" json:"min_seconds"`
	Bonus      uint64 `yaml:"bonus"       json:"bonus"`
}

// SplitSetting 國庫三方分配百分比，總和必須為 100。
type SplitSetting struct {
	Players  uint64 `yaml:"players"  json:"players"`
	Stakers  uint64 `yaml:"stakers"  json:"stakers"`
	Operator uint64 `yaml:"operator" json:"operator"`
}

type PoolSetting struct {
	Name              string        `yaml:"name"               json:"name"`
	Token             TokenSetting  `yaml:"token"              json:"token"`
	Tiers             []TierSetting `yaml:"tiers"              json:"tiers"`
	TreasuryCut       uint64        `yaml:"treasury_cut"       json:"treasury_cut"`
	Split             SplitSetting  `yaml:"split"              json:"split"`
	TreasuryThreshold string        `yaml:"treasury_threshold" json:"treasury_threshold"`
	TreasuryInterval  int64         `yaml:"treasury_interval"  json:"treasury_interval"`
	RoundDelay        uint64        `yaml:"round_delay"        json:"round_delay"`
	AllowedRateBps    uint64        `yaml:"allowed_rate_bps"   json:"allowed_rate_bps"`
	MaxWagers         int           `yaml:"max_wagers"         json:"max_wagers"`
	MinLock           int64         `yaml:"min_lock"           json:"min_lock"`
	Operator          string        `yaml:"operator"           json:"operator"`

	// 以下由 init() 產生
	Threshold amount.Amount `yaml:"-" json:"-"`
}

// TierMultiplier 回傳質押經過 elapsed 秒後的權重百分比（100 = 無加成）。
// Tiers 已在 init() 由長到短排序，命中第一個即回傳。
func (ps *PoolSetting) TierMultiplier(elapsed int64) uint64 {
	for _, t := range ps.Tiers {
		if elapsed >= t.MinSeconds {
			return amount.Hundred + t.Bonus
		}
	}
	return amount.Hundred
}

// FormatAmount 以 token 小數位輸出金額（顯示用）。
func (ps *PoolSetting) FormatAmount(a amount.Amount) string {
	return amount.Format(a, ps.Token.Decimals)
}

// Clone 深拷貝（Tiers 為 slice）。
func (ps *PoolSetting) Clone() *PoolSetting {
	c := *ps
	c.Tiers = slices.Clone(ps.Tiers)
	return &c
}

func (ps *PoolSetting) init() error {
	slices.SortStableFunc(ps.Tiers, func(a, b TierSetting) int {
		switch {
		case a.MinSeconds > b.MinSeconds:
			return -1
		case a.MinSeconds < b.MinSeconds:
			return 1
		}
		return 0
	})
	if ps.Token.Decimals < 0 || ps.Token.Decimals > 77 {
		return errs.NewFatal(fmt.Sprintf("pool: %s err:token decimals %d out of range", ps.Name, ps.Token.Decimals))
	}
	th, err := amount.ParseUnits(ps.TreasuryThreshold, ps.Token.Decimals)
	if err != nil {
		return errs.Wrap(err, "pool: invalid treasury_threshold")
	}
	ps.Threshold = th
	return ps.valid()
}

// valid 執行最基本的設定檔檢查。
func (ps *PoolSetting) valid() error {
	if ps.Name == "" {
		return errs.NewFatal("pool: empty name")
	}
	if ps.TreasuryCut > amount.Hundred {
		return errs.NewFatal(fmt.Sprintf("pool: %s err:treasury_cut %d > 100", ps.Name, ps.TreasuryCut))
	}
	if ps.Split.Players+ps.Split.Stakers+ps.Split.Operator != amount.Hundred {
		return errs.NewFatal(fmt.Sprintf("pool: %s err:split must sum to 100, got %d/%d/%d",
			ps.Name, ps.Split.Players, ps.Split.Stakers, ps.Split.Operator))
	}
	if ps.AllowedRateBps == 0 || ps.AllowedRateBps > amount.BasisPoints {
		return errs.NewFatal(fmt.Sprintf("pool: %s err:allowed_rate_bps %d not in (0, 10000]", ps.Name, ps.AllowedRateBps))
	}
	if ps.MaxWagers <= 0 {
		return errs.NewFatal(fmt.Sprintf("pool: %s err:max_wagers must be positive", ps.Name))
	}
	if ps.TreasuryInterval < 0 || ps.MinLock < 0 {
		return errs.NewFatal(fmt.Sprintf("pool: %s err:negative interval", ps.Name))
	}
	if ps.Operator == "" {
		return errs.NewFatal(fmt.Sprintf("pool: %s err:empty operator", ps.Name))
	}
	for i, t := range ps.Tiers {
		if t.MinSeconds <= 0 {
			return errs.NewFatal(fmt.Sprintf("pool: %s err:tier %d min_seconds must be positive", ps.Name, i))
		}
		if i > 0 && t.MinSeconds == ps.Tiers[i-1].MinSeconds {
			return errs.NewFatal(fmt.Sprintf("pool: %s err:duplicate tier %d", ps.Name, t.MinSeconds))
		}
	}
	return nil
}

// FromYAML 讀取 YAML 設定、初始化並檢查後回傳。
func FromYAML(data []byte) (*PoolSetting, error) {
	ps := &PoolSetting{}
	if err := yaml.Unmarshal(data, ps); err != nil {
		return nil, errs.Wrap(err, "failed to unmarshall yaml")
	}
	if err := ps.init(); err != nil {
		return nil, errs.Wrap(err, "pool setting initialized err")
	}
	return ps, nil
}

// FromJSON 讀取 JSON 設定、初始化並檢查後回傳。
func FromJSON(data []byte) (*PoolSetting, error) {
	ps := &PoolSetting{}
	if err := json.Unmarshal(data, ps); err != nil {
		return nil, errs.Wrap(err, "can not unmarshall json byte")
	}
	if err := ps.init(); err != nil {
		return nil, errs.Wrap(err, "pool setting initialized err")
	}
	return ps, nil
}

// FromFS 依副檔名（.yaml/.yml/.json）從 fsys 讀取設定。
func FromFS(fsys fs.FS, name string) (*PoolSetting, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, errs.Wrap(err, "read pool setting "+name)
	}
	switch path.Ext(name) {
	case ".yaml", ".yml":
		return FromYAML(data)
	case ".json":
		return FromJSON(data)
	}
	return nil, errs.NewFatal("unsupported pool setting format: " + name)
}

// Default 回傳內嵌的預設設定。
func Default() (*PoolSetting, error) {
	return FromFS(configs.FS, configs.DefaultPool)
}

// MustDefault 同 Default，失敗時 panic（僅供測試與工具使用）。
func MustDefault() *PoolSetting {
	ps, err := Default()
	if err != nil {
		panic(err)
	}
	return ps
}
