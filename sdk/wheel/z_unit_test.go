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

package wheel

import (
	"testing"

	"github.com/zintix-labs/spinpool/errs"
)

func TestZeroOnlyPaysNumberZero(t *testing.T) {
	for _, c := range Categories() {
		for s := uint8(0); s <= c.MaxSelector(); s++ {
			won := Check(c, s, 0)
			want := c == Number && s == 0
			if won != want {
				t.Fatalf("outcome 0 %s/%d got %v want %v", c, s, won, want)
			}
		}
	}
}

func TestCategoryTables(t *testing.T) {
	cases := []struct {
		c       Category
		sel     uint8
		outcome uint8
		want    bool
	}{
		{Parity, 0, 2, true},
		{Parity, 0, 3, false},
		{Parity, 1, 35, true},
		{Eighteen, 0, 18, true},
		{Eighteen, 0, 19, false},
		{Eighteen, 1, 19, true},
		{Dozen, 0, 12, true},
		{Dozen, 1, 13, true},
		{Dozen, 1, 24, true},
		{Dozen, 2, 25, true},
		{Dozen, 2, 24, false},
		{Column, 0, 1, true},
		{Column, 0, 34, true},
		{Column, 1, 2, true},
		{Column, 2, 36, true},
		{Column, 2, 35, false},
		{Color, 0, 2, true},   // band, even
		{Color, 0, 11, true},  // off band, odd
		{Color, 0, 19, true},  // off band, odd
		{Color, 0, 20, true},  // band, even
		{Color, 0, 29, true},  // off band, odd
		{Color, 1, 1, true},   // band, odd
		{Color, 1, 12, true},  // off band, even
		{Color, 1, 28, false}, // band, even is black
		{Number, 17, 17, true},
		{Number, 17, 18, false},
	}
	for _, tc := range cases {
		if got := Check(tc.c, tc.sel, tc.outcome); got != tc.want {
			t.Fatalf("%s/%d on %d got %v want %v", tc.c, tc.sel, tc.outcome, got, tc.want)
		}
	}
}

func TestEveryNonZeroOutcomeHitsExactlyOneSelectorPerCategory(t *testing.T) {
	for n := uint8(1); n < Slots; n++ {
		for _, c := range Categories() {
			hits := 0
			for s := uint8(0); s <= c.MaxSelector(); s++ {
				if Check(c, s, n) {
					hits++
				}
			}
			if c == Number {
				if hits != 1 {
					t.Fatalf("number on %d hits %d", n, hits)
				}
				continue
			}
			if hits != 1 {
				t.Fatalf("%s on %d hits %d selectors", c, n, hits)
			}
		}
	}
}

func TestColorSplitsEighteenEighteen(t *testing.T) {
	black := 0
	for n := uint8(1); n < Slots; n++ {
		if Check(Color, 0, n) {
			black++
		}
	}
	if black != 18 {
		t.Fatalf("black count got %d want 18", black)
	}
}

func TestPayoutAndValidate(t *testing.T) {
	want := []uint64{2, 3, 3, 2, 2, 36}
	for i, c := range Categories() {
		if c.Payout() != want[i] {
			t.Fatalf("%s payout got %d", c, c.Payout())
		}
	}
	if err := Validate(Dozen, 3); !errs.IsKind(err, errs.InvalidInput) {
		t.Fatalf("dozen 3 must be invalid, got %v", err)
	}
	if err := Validate(Category(6), 0); !errs.IsKind(err, errs.InvalidInput) {
		t.Fatalf("unknown category must be invalid")
	}
	if Check(Dozen, 3, 30) {
		t.Fatalf("invalid selector never wins")
	}
	if Multiplier(Number, 7, 7) != 36 || Multiplier(Number, 7, 8) != 0 {
		t.Fatalf("multiplier")
	}
	if Check(Number, 5, 40) {
		t.Fatalf("out of range outcome never wins")
	}
}

func TestParseCategory(t *testing.T) {
	c, err := ParseCategory("dozen")
	if err != nil || c != Dozen {
		t.Fatalf("parse name got %v %v", c, err)
	}
	c, err = ParseCategory("5")
	if err != nil || c != Number {
		t.Fatalf("parse digit got %v %v", c, err)
	}
	if _, err := ParseCategory("split"); err == nil {
		t.Fatalf("unknown name must fail")
	}
	for _, bad := range []string{"5abc", "5 ", " 5", "-1", "6", "256", ""} {
		if _, err := ParseCategory(bad); !errs.IsKind(err, errs.InvalidInput) {
			t.Fatalf("%q must be invalid, got %v", bad, err)
		}
	}
}
