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

// Package v1 是資金池對外的 HTTP API。
//
// 每個寫入類 handler 的流程相同：取出呼叫者、解碼請求、轉成帳本型別、帶逾時呼叫 PoolRuntime、寫回 DTO。
// 錯誤一律交給 httperr 決定狀態碼。
package v1

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/zintix-labs/spinpool"
	"github.com/zintix-labs/spinpool/dto"
	"github.com/zintix-labs/spinpool/errs"
	"github.com/zintix-labs/spinpool/sdk/amount"
	"github.com/zintix-labs/spinpool/server/auth"
	"github.com/zintix-labs/spinpool/server/httperr"
	"github.com/zintix-labs/spinpool/server/svrcfg"
)

const (
	opTimeout    = 5 * time.Second
	journalLimit = 50
	journalCeil  = 500
)

// ============================================================
// ** PoolHandler **
// ============================================================

type PoolHandler struct {
	rt  *spinpool.PoolRuntime
	log *slog.Logger
}

func NewPoolHandler(sCfg *svrcfg.SvrCfg) (*PoolHandler, error) {
	if sCfg == nil || sCfg.Runtime == nil {
		return nil, errs.NewFatal("pool handler requires a runtime")
	}
	return &PoolHandler{rt: sCfg.Runtime, log: sCfg.Log}, nil
}

// fail 記錄並寫回錯誤。
func (h *PoolHandler) fail(w http.ResponseWriter, op string, err error) {
	httperr.Log(h.log, "v1 "+op, err)
	httperr.Errs(w, err)
}

// caller 取出呼叫者；沒有身分時直接寫回 401。
func caller(w http.ResponseWriter, r *http.Request) (string, bool) {
	acc, ok := auth.Account(r.Context())
	if !ok {
		httperr.Unauthorized(w, errs.Invalid("caller identity required"))
		return "", false
	}
	return acc, true
}

func (h *PoolHandler) Bet(w http.ResponseWriter, r *http.Request) {
	acc, ok := caller(w, r)
	if !ok {
		return
	}
	req := new(dto.BetRequest)
	if err := dto.Decode(r, req); err != nil {
		h.fail(w, "bet", err)
		return
	}
	wagers, attached, err := req.Parse()
	if err != nil {
		h.fail(w, "bet", err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), opTimeout)
	defer cancel()

	v, err := h.rt.PlaceBet(ctx, acc, attached, wagers, req.Round)
	if err != nil {
		h.fail(w, "bet", err)
		return
	}
	dto.Write(w, http.StatusOK, dto.BetDTO{Round: req.Round, Balance: amount.String(v.Balance)})
}

func (h *PoolHandler) Settle(w http.ResponseWriter, r *http.Request) {
	req := new(dto.SettleRequest)
	if err := dto.Decode(r, req); err != nil {
		h.fail(w, "settle", err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), opTimeout)
	defer cancel()

	st, err := h.rt.SettleRound(ctx, req.Round)
	if err != nil {
		h.fail(w, "settle", err)
		return
	}
	dto.Write(w, http.StatusOK, dto.NewSettlementDTO(st))
}

func (h *PoolHandler) Stake(w http.ResponseWriter, r *http.Request) {
	acc, ok := caller(w, r)
	if !ok {
		return
	}
	req := new(dto.StakeRequest)
	if err := dto.Decode(r, req); err != nil {
		h.fail(w, "stake", err)
		return
	}
	attached, amt, err := req.Parse()
	if err != nil {
		h.fail(w, "stake", err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), opTimeout)
	defer cancel()

	id, err := h.rt.AddStake(ctx, acc, attached, amt)
	if err != nil {
		h.fail(w, "stake", err)
		return
	}
	dto.Write(w, http.StatusOK, dto.StakeIDDTO{StakeID: id})
}

func (h *PoolHandler) Unstake(w http.ResponseWriter, r *http.Request) {
	acc, ok := caller(w, r)
	if !ok {
		return
	}
	req := new(dto.UnstakeRequest)
	if err := dto.Decode(r, req); err != nil {
		h.fail(w, "unstake", err)
		return
	}
	amt, err := req.Parse()
	if err != nil {
		h.fail(w, "unstake", err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), opTimeout)
	defer cancel()

	paid, err := h.rt.RemoveStake(ctx, acc, req.StakeID, amt)
	if err != nil {
		h.fail(w, "unstake", err)
		return
	}
	dto.Write(w, http.StatusOK, dto.NewAmountDTO(paid))
}

func (h *PoolHandler) Harvest(w http.ResponseWriter, r *http.Request) {
	acc, ok := caller(w, r)
	if !ok {
		return
	}
	req := new(dto.HarvestRequest)
	if err := dto.Decode(r, req); err != nil {
		h.fail(w, "harvest", err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), opTimeout)
	defer cancel()

	paid, err := h.rt.Harvest(ctx, acc, req.StakeID)
	if err != nil {
		h.fail(w, "harvest", err)
		return
	}
	dto.Write(w, http.StatusOK, dto.NewAmountDTO(paid))
}

func (h *PoolHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), opTimeout)
	defer cancel()

	res, err := h.rt.Sweep(ctx)
	if err != nil {
		h.fail(w, "sweep", err)
		return
	}
	dto.Write(w, http.StatusOK, dto.NewSweepDTO(res))
}

func (h *PoolHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	acc, ok := caller(w, r)
	if !ok {
		return
	}
	req := new(dto.DepositRequest)
	if err := dto.Decode(r, req); err != nil {
		h.fail(w, "deposit", err)
		return
	}
	attached, err := req.Parse()
	if err != nil {
		h.fail(w, "deposit", err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), opTimeout)
	defer cancel()

	bal, err := h.rt.Deposit(ctx, acc, attached)
	if err != nil {
		h.fail(w, "deposit", err)
		return
	}
	dto.Write(w, http.StatusOK, dto.NewAmountDTO(bal))
}

func (h *PoolHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	acc, ok := caller(w, r)
	if !ok {
		return
	}
	req := new(dto.WithdrawRequest)
	if err := dto.Decode(r, req); err != nil {
		h.fail(w, "withdraw", err)
		return
	}
	amt, err := req.Parse()
	if err != nil {
		h.fail(w, "withdraw", err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), opTimeout)
	defer cancel()

	paid, err := h.rt.Withdraw(ctx, acc, amt)
	if err != nil {
		h.fail(w, "withdraw", err)
		return
	}
	dto.Write(w, http.StatusOK, dto.NewAmountDTO(paid))
}

// ============================================================
// ** Views **
// ============================================================

func (h *PoolHandler) Account(w http.ResponseWriter, r *http.Request) {
	v, err := h.rt.Account(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "account", err)
		return
	}
	dto.Write(w, http.StatusOK, dto.NewAccountDTO(v))
}

func (h *PoolHandler) Journal(w http.ResponseWriter, r *http.Request) {
	limit, err := dto.QueryLimit(r, journalLimit, journalCeil)
	if err != nil {
		h.fail(w, "journal", err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), opTimeout)
	defer cancel()

	es, err := h.rt.Journal(ctx, chi.URLParam(r, "id"), limit)
	if err != nil {
		h.fail(w, "journal", err)
		return
	}
	dto.Write(w, http.StatusOK, dto.NewEntryDTOs(es))
}

func (h *PoolHandler) Round(w http.ResponseWriter, _ *http.Request) {
	dto.Write(w, http.StatusOK, dto.NewRoundDTO(h.rt.Round()))
}

func (h *PoolHandler) Pool(w http.ResponseWriter, _ *http.Request) {
	dto.Write(w, http.StatusOK, dto.NewPoolDTO(h.rt.Pool()))
}

func (h *PoolHandler) Treasury(w http.ResponseWriter, _ *http.Request) {
	dto.Write(w, http.StatusOK, dto.NewTreasuryDTO(h.rt.Treasury()))
}

func (h *PoolHandler) Config(w http.ResponseWriter, _ *http.Request) {
	dto.Write(w, http.StatusOK, dto.NewConfigDTO(h.rt.Setting()))
}
