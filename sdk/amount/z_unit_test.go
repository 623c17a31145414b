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

package amount

import (
	"testing"

	"github.com/zintix-labs/spinpool/errs"
)

func TestParseAndString(t *testing.T) {
	a, err := Parse("10000000000000000000000000000")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if String(a) != "10000000000000000000000000000" {
		t.Fatalf("round trip got %s", String(a))
	}
	if _, err := Parse("-1"); !errs.IsKind(err, errs.InvalidInput) {
		t.Fatalf("negative must be invalid input, got %v", err)
	}
	if _, err := Parse(""); err == nil {
		t.Fatalf("empty must fail")
	}
	z, err := ParseOrZero("")
	if err != nil || !z.IsZero() {
		t.Fatalf("ParseOrZero empty should be zero")
	}
}

func TestParseUnitsAndFormat(t *testing.T) {
	a, err := ParseUnits("1.5", 24)
	if err != nil {
		t.Fatalf("parse units: %v", err)
	}
	if String(a) != "1500000000000000000000000" {
		t.Fatalf("units got %s", String(a))
	}
	if got := Format(a, 24); got != "1.5" {
		t.Fatalf("format got %s", got)
	}
	if _, err := ParseUnits("0.001", 2); err == nil {
		t.Fatalf("too many decimals must fail")
	}
	if _, err := ParseUnits("-3", 2); err == nil {
		t.Fatalf("negative must fail")
	}
}

func TestMulDivWidePrecision(t *testing.T) {
	// x*y 超過 256-bit，但結果在範圍內
	x := MustParse("115792089237316195423570985008687907853269984665640564039457584007913129639935") // 2^256-1
	y := New(3)
	d := New(6)
	got, ok := MulDiv(x, y, d)
	if !ok {
		t.Fatalf("muldiv should not overflow")
	}
	want := MustParse("57896044618658097711785492504343953926634992332820282019728792003956564819967")
	if !Equal(got, want) {
		t.Fatalf("muldiv got %s want %s", String(got), String(want))
	}
	if _, ok := MulDiv(x, y, Zero()); ok {
		t.Fatalf("zero denominator must report !ok")
	}
}

func TestPercentAndBps(t *testing.T) {
	if got := Percent(New(1000), 10); !Equal(got, New(100)) {
		t.Fatalf("percent got %s", String(got))
	}
	if got := Bps(New(12345), 1000); !Equal(got, New(1234)) {
		t.Fatalf("bps got %s", String(got))
	}
}

func TestNet(t *testing.T) {
	p, l := Net(New(7), New(3))
	if !Equal(p, New(4)) || !l.IsZero() {
		t.Fatalf("net profit side got %s/%s", String(p), String(l))
	}
	p, l = Net(New(3), New(7))
	if !p.IsZero() || !Equal(l, New(4)) {
		t.Fatalf("net loss side got %s/%s", String(p), String(l))
	}
	p, l = Net(New(5), New(5))
	if !p.IsZero() || !l.IsZero() {
		t.Fatalf("equal sides must both be zero")
	}
}

func TestSubAndSum(t *testing.T) {
	if _, under := Sub(New(1), New(2)); !under {
		t.Fatalf("expected underflow")
	}
	if got := SatSub(New(1), New(2)); !got.IsZero() {
		t.Fatalf("saturating sub should clamp to zero")
	}
	s, ok := Sum(New(1), New(2), New(3))
	if !ok || !Equal(s, New(6)) {
		t.Fatalf("sum got %s", String(s))
	}
	if !Less(New(1), New(2)) || !Equal(Min(New(4), New(2)), New(2)) {
		t.Fatalf("compare helpers")
	}
}
