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

package errs

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestKindConstructors(t *testing.T) {
	cases := []struct {
		err  *E
		kind Kind
	}{
		{Invalid("bad selector %d", 3), InvalidInput},
		{Conflict("stale round"), StateConflict},
		{Funds("short by %d", 1), InsufficientFunds},
		{Policy("locked"), PolicyViolation},
		{Missing("no account"), NotFound},
	}
	for _, c := range cases {
		if c.err.Kind != c.kind {
			t.Fatalf("kind got %v want %v", c.err.Kind, c.kind)
		}
		if c.err.ErrLv != Warn {
			t.Fatalf("ledger errors must be warn level, got %v", c.err.ErrLv)
		}
		if !strings.Contains(c.err.Error(), c.kind.String()) {
			t.Fatalf("error string %q should contain kind %q", c.err.Error(), c.kind)
		}
	}
}

func TestWrapKeepsLevelAndKind(t *testing.T) {
	base := Policy("lock period active")
	w := Wrap(fmt.Errorf("ctx: %w", base), "remove stake")
	if w.ErrLv != Warn || w.Kind != PolicyViolation {
		t.Fatalf("wrap lost classification: %+v", w)
	}
	if !errors.Is(w, base) {
		t.Fatalf("errors.Is should reach the cause")
	}

	std := Wrap(errors.New("disk full"), "save")
	if std.ErrLv != Fatal || std.Kind != Internal {
		t.Fatalf("foreign errors should be fatal/internal: %+v", std)
	}
}

func TestKindOf(t *testing.T) {
	if KindOf(nil) != KindNone {
		t.Fatalf("nil error has no kind")
	}
	if KindOf(errors.New("x")) != KindNone {
		t.Fatalf("foreign error has no kind")
	}
	if !IsKind(WrapWithExtra(Funds("x"), "y", "z"), InsufficientFunds) {
		t.Fatalf("IsKind through wrap")
	}
	if IsKind(nil, InsufficientFunds) {
		t.Fatalf("nil is never a kind")
	}
}
