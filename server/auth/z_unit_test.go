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

package auth

import (
	"context"
	"testing"
	"time"

	"github.com/zintix-labs/spinpool/errs"
)

func TestIssueAndParse(t *testing.T) {
	i := NewIssuer("secret")
	tok, exp, err := i.Issue("alice", time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if time.Until(exp) <= 0 {
		t.Fatalf("expiry must be in the future")
	}
	sub, err := i.Parse(tok)
	if err != nil || sub != "alice" {
		t.Fatalf("parse got %q %v", sub, err)
	}
	if _, err := NewIssuer("other").Parse(tok); !errs.IsKind(err, errs.InvalidInput) {
		t.Fatalf("wrong secret must fail, got %v", err)
	}
}

func TestExpiredToken(t *testing.T) {
	i := NewIssuer("secret")
	base := time.Unix(1_700_000_000, 0)
	i.now = func() time.Time { return base }
	tok, _, err := i.Issue("alice", time.Second)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	i.now = func() time.Time { return base.Add(time.Hour) }
	if _, err := i.Parse(tok); err == nil {
		t.Fatalf("expired token must fail")
	}
}

func TestDisabledIssuer(t *testing.T) {
	i := NewIssuer("")
	if i.Enabled() {
		t.Fatalf("empty secret must disable auth")
	}
	if _, _, err := i.Issue("alice", 0); err == nil {
		t.Fatalf("disabled issuer must not sign")
	}
	var nilIssuer *Issuer
	if nilIssuer.Enabled() {
		t.Fatalf("nil issuer is disabled")
	}
}

func TestAccountContext(t *testing.T) {
	if _, ok := Account(context.Background()); ok {
		t.Fatalf("empty ctx has no account")
	}
	acc, ok := Account(WithAccount(context.Background(), "bob"))
	if !ok || acc != "bob" {
		t.Fatalf("got %q %v", acc, ok)
	}
}
