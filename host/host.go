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

// Package host 定義帳本對宿主環境（鏈）的依賴，並提供一個記憶體內的模擬鏈。
//
// 帳本只透過 Env 取得區塊高度、時間、亂數信標與池子餘額，並透過 Transfer 付款；
// 呼叫附帶的金額（attached value）由 Escrow 在進入帳本前入池，失敗時退回。
package host

import "github.com/zintix-labs/spinpool/sdk/amount"

// Env 為帳本可見的宿主能力。同一次呼叫內，高度、時間與信標保持不變。
type Env interface {
	// BlockHeight 目前區塊高度（單調遞增）。
	BlockHeight() uint64
	// BlockTime 目前區塊時間（unix 秒，單調遞增）。
	BlockTime() int64
	// RandomSeed 本區塊的亂數信標。
	RandomSeed() []byte
	// PoolBalance 池子可支配的宿主餘額。
	PoolBalance() amount.Amount
	// Transfer 從池子原子地轉出 amt 給 to；失敗時不得有任何變更。
	Transfer(to string, amt amount.Amount) error
}

// Escrow 處理呼叫附帶的金額。
type Escrow interface {
	// Attach 把 from 附帶的 amt 轉入池子。
	Attach(from string, amt amount.Amount) error
	// Refund 把 amt 退回 to（呼叫失敗時使用）。
	Refund(to string, amt amount.Amount) error
}

// Host 同時提供 Env 與 Escrow。
type Host interface {
	Env
	Escrow
}
