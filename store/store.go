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

// Package store 持久化帳本快照與帳務紀錄。
//
// 每次提交都把「完整快照 + 本次新增的紀錄」寫在同一個交易裡：
// 快照與紀錄要嘛一起成功，要嘛一起失敗。
package store

import (
	"context"

	"github.com/zintix-labs/spinpool/ledger"
)

// Store 帳本的持久化後端。實作必須可被多個 goroutine 同時使用。
type Store interface {
	// Load 讀取最後一次儲存的快照；尚未儲存過時 ok=false。
	Load(ctx context.Context) (st ledger.State, ok bool, err error)
	// Save 原子地寫入快照與新增紀錄。
	Save(ctx context.Context, st ledger.State, entries []ledger.Entry) error
	// Entries 回傳 account 最近 limit 筆紀錄（舊到新）；account 為空代表全部帳號。
	Entries(ctx context.Context, account string, limit int) ([]ledger.Entry, error)
	Close() error
}
