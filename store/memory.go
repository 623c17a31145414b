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

package store

import (
	"context"
	"encoding/json"
	"slices"
	"sync"

	"github.com/zintix-labs/spinpool/errs"
	"github.com/zintix-labs/spinpool/ledger"
)

// Memory 記憶體內的 Store，重啟即遺失，用於測試與模擬。
type Memory struct {
	mu      sync.RWMutex
	state   []byte
	entries []ledger.Entry
	closed  bool
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Load(ctx context.Context) (ledger.State, bool, error) {
	if err := ctx.Err(); err != nil {
		return ledger.State{}, false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state == nil {
		return ledger.State{}, false, nil
	}
	var st ledger.State
	if err := json.Unmarshal(m.state, &st); err != nil {
		return ledger.State{}, false, errs.Wrap(err, "memory store: decode state")
	}
	return st, true, nil
}

func (m *Memory) Save(ctx context.Context, st ledger.State, entries []ledger.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := json.Marshal(st)
	if err != nil {
		return errs.Wrap(err, "memory store: encode state")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errs.NewFatal("memory store: closed")
	}
	m.state = raw
	m.entries = append(m.entries, entries...)
	return nil
}

func (m *Memory) Entries(ctx context.Context, account string, limit int) ([]ledger.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []ledger.Entry
	for i := len(m.entries) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if account == "" || m.entries[i].Account == account {
			out = append(out, m.entries[i])
		}
	}
	slices.Reverse(out)
	return out, nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
