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

package ledger

import (
	"github.com/zintix-labs/spinpool/errs"
	"github.com/zintix-labs/spinpool/sdk/amount"
)

// share 一次分配中單筆質押應得的份額。
// idx 在提交前後都有效：分配只改 profit/loss，不增刪質押。
type share struct {
	acc   *Account
	idx   int
	value amount.Amount
}

// weight = max(0, amount + profit - loss) * (100 + 分級 bonus)。
func (l *Ledger) weight(s *Stake, now int64) (amount.Amount, error) {
	n, ok := s.net()
	if !ok {
		return amount.Zero(), nil
	}
	w, overflow := amount.Mul(n, amount.New(l.cfg.TierMultiplier(now-s.Since)))
	if overflow {
		return amount.Zero(), errs.Fatalf("stake weight overflow")
	}
	return w, nil
}

// allocate 依權重把 delta 切給所有質押，回傳份額與實際分出的總額。
// 每份 floor(delta * w / Σw)；沒分出去的零頭不會轉給任何人。Σw 為 0 時不分配。
func (l *Ledger) allocate(delta amount.Amount, now int64) ([]share, amount.Amount, error) {
	if delta.IsZero() {
		return nil, amount.Zero(), nil
	}
	type weighted struct {
		acc *Account
		idx int
		w   amount.Amount
	}
	var (
		items []weighted
		total amount.Amount
	)
	for _, acc := range l.order {
		for i := range acc.Stakes {
			w, err := l.weight(&acc.Stakes[i], now)
			if err != nil {
				return nil, amount.Zero(), err
			}
			if w.IsZero() {
				continue
			}
			var overflow bool
			total, overflow = amount.Add(total, w)
			if overflow {
				return nil, amount.Zero(), errs.Fatalf("total stake weight overflow")
			}
			items = append(items, weighted{acc: acc, idx: i, w: w})
		}
	}
	if total.IsZero() {
		return nil, amount.Zero(), nil
	}
	shares := make([]share, 0, len(items))
	var distributed amount.Amount
	for _, it := range items {
		v, ok := amount.MulDiv(delta, it.w, total)
		if !ok {
			return nil, amount.Zero(), errs.Fatalf("share overflow")
		}
		if v.IsZero() {
			continue
		}
		distributed, _ = amount.Add(distributed, v)
		shares = append(shares, share{acc: it.acc, idx: it.idx, value: v})
	}
	return shares, distributed, nil
}

// creditProfit 把份額加到各質押的 profit 並軋差。
func creditProfit(shares []share) {
	for _, sh := range shares {
		s := &sh.acc.Stakes[sh.idx]
		s.Profit, _ = amount.Add(s.Profit, sh.value)
		s.settle()
	}
}

// chargeLoss 把份額加到各質押的 loss 並軋差。
func chargeLoss(shares []share) {
	for _, sh := range shares {
		s := &sh.acc.Stakes[sh.idx]
		s.Loss, _ = amount.Add(s.Loss, sh.value)
		s.settle()
	}
}

// Direction 回合淨結果方向。
type Direction uint8

const (
	PoolWins Direction = iota
	PoolLoses
)

func (d Direction) String() string {
	if d == PoolLoses {
		return "pool_loses"
	}
	return "pool_wins"
}

// distribution 一回合結果的分配計畫。
type distribution struct {
	direction   Direction
	delta       amount.Amount // |wagered - paid|
	cut         amount.Amount // 進國庫
	remainder   amount.Amount // 分給質押的基數
	shares      []share
	distributed amount.Amount
}

// planDistribution 計算 (wagered, paid) 的分配計畫，不修改任何狀態。
func (l *Ledger) planDistribution(wagered, paid amount.Amount, now int64) (distribution, error) {
	var d distribution
	if amount.Less(wagered, paid) {
		d.direction = PoolLoses
		d.delta, _ = amount.Sub(paid, wagered)
		d.remainder = d.delta
	} else {
		d.direction = PoolWins
		d.delta, _ = amount.Sub(wagered, paid)
		d.cut = amount.Percent(d.delta, l.cfg.TreasuryCut)
		d.remainder, _ = amount.Sub(d.delta, d.cut)
	}
	shares, distributed, err := l.allocate(d.remainder, now)
	if err != nil {
		return distribution{}, err
	}
	d.shares, d.distributed = shares, distributed
	if _, overflow := amount.Add(l.treasury.Amount, d.cut); overflow {
		return distribution{}, errs.Fatalf("treasury overflow")
	}
	return d, nil
}

// applyDistribution 提交分配計畫（不會失敗）。
func (l *Ledger) applyDistribution(d distribution) {
	switch d.direction {
	case PoolWins:
		l.treasury.Amount, _ = amount.Add(l.treasury.Amount, d.cut)
		l.addProfit(d.remainder)
		creditProfit(d.shares)
	case PoolLoses:
		l.addLoss(d.remainder)
		chargeLoss(d.shares)
	}
	l.recalcCeiling()
}
