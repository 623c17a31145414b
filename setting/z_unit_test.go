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

package setting

import (
	"testing"
	"testing/fstest"

	"github.com/zintix-labs/spinpool/sdk/amount"
)

func TestDefaultSetting(t *testing.T) {
	ps, err := Default()
	if err != nil {
		t.Fatalf("default: %v", err)
	}
	if ps.TreasuryCut != 10 || ps.Split.Players != 40 || ps.Split.Stakers != 40 || ps.Split.Operator != 20 {
		t.Fatalf("unexpected treasury params: %+v", ps)
	}
	want := amount.MustParse("10000000000000000000000000000")
	if !amount.Equal(ps.Threshold, want) {
		t.Fatalf("threshold got %s", amount.String(ps.Threshold))
	}
	if ps.RoundDelay != 60 || ps.AllowedRateBps != 1000 {
		t.Fatalf("round params: %+v", ps)
	}
}

func TestTierMultiplierLongestFirst(t *testing.T) {
	data := []byte(`
name: t
token: {symbol: X, decimals: 0}
tiers:
  - {min_seconds: 100, bonus: 5}
  - {min_seconds: 1000, bonus: 20}
treasury_cut: 10
split: {players: 40, stakers: 40, operator: 20}
treasury_threshold: "1"
allowed_rate_bps: 1000
max_wagers: 8
operator: op
`)
	ps, err := FromYAML(data)
	if err != nil {
		t.Fatalf("yaml: %v", err)
	}
	if ps.Tiers[0].MinSeconds != 1000 {
		t.Fatalf("tiers must be sorted longest-first: %+v", ps.Tiers)
	}
	cases := []struct {
		elapsed int64
		want    uint64
	}{{0, 100}, {99, 100}, {100, 105}, {999, 105}, {1000, 120}, {1 << 40, 120}}
	for _, c := range cases {
		if got := ps.TierMultiplier(c.elapsed); got != c.want {
			t.Fatalf("elapsed %d got %d want %d", c.elapsed, got, c.want)
		}
	}
}

func TestInvalidSettings(t *testing.T) {
	bad := []string{
		`{"name":"a","split":{"players":50,"stakers":40,"operator":20},"treasury_threshold":"1","allowed_rate_bps":1,"max_wagers":1,"operator":"o"}`,
		`{"name":"a","treasury_cut":101,"split":{"players":40,"stakers":40,"operator":20},"treasury_threshold":"1","allowed_rate_bps":1,"max_wagers":1,"operator":"o"}`,
		`{"name":"a","split":{"players":40,"stakers":40,"operator":20},"treasury_threshold":"1","allowed_rate_bps":0,"max_wagers":1,"operator":"o"}`,
		`{"name":"a","split":{"players":40,"stakers":40,"operator":20},"treasury_threshold":"x","allowed_rate_bps":1,"max_wagers":1,"operator":"o"}`,
		`{"name":"a","split":{"players":40,"stakers":40,"operator":20},"treasury_threshold":"1","allowed_rate_bps":1,"max_wagers":1}`,
	}
	for i, b := range bad {
		if _, err := FromJSON([]byte(b)); err == nil {
			t.Fatalf("case %d should fail", i)
		}
	}
}

func TestFromFSByExtension(t *testing.T) {
	fsys := fstest.MapFS{
		"p.json": {Data: []byte(`{"name":"a","split":{"players":40,"stakers":40,"operator":20},"treasury_threshold":"1","allowed_rate_bps":1,"max_wagers":1,"operator":"o"}`)},
		"p.toml": {Data: []byte("x")},
	}
	if _, err := FromFS(fsys, "p.json"); err != nil {
		t.Fatalf("json: %v", err)
	}
	if _, err := FromFS(fsys, "p.toml"); err == nil {
		t.Fatalf("unsupported ext must fail")
	}
	if _, err := FromFS(fsys, "missing.yaml"); err == nil {
		t.Fatalf("missing file must fail")
	}
}
