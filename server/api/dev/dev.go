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

// Package dev 提供模擬鏈的開發用 routes：推進區塊、加值錢包、查詢錢包、簽發 token。
//
// 只在 svrcfg.DevRoutes 開啟時註冊，且需要上層注入 *host.Chain。
package dev

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/zintix-labs/spinpool/dto"
	"github.com/zintix-labs/spinpool/errs"
	"github.com/zintix-labs/spinpool/host"
	"github.com/zintix-labs/spinpool/sdk/amount"
	"github.com/zintix-labs/spinpool/server/auth"
	"github.com/zintix-labs/spinpool/server/httperr"
	"github.com/zintix-labs/spinpool/server/netsvr"
	"github.com/zintix-labs/spinpool/server/svrcfg"
)

// 單次推進的區塊上限
const maxAdvance = 1_000_000

// Register 註冊 dev routes（掛在 /v1 之下）。
//
// Routes：
//   - POST /dev/advance      ：推進 blocks 個區塊（0 視為 1）。
//   - POST /dev/mint         ：給錢包加值。
//   - GET  /dev/wallets/{id} ：查詢錢包餘額。
//   - POST /dev/token        ：簽發存取 token；未設定 secret 時回 403。
func Register(r netsvr.NetRouter, cfg *svrcfg.SvrCfg, iss *auth.Issuer) error {
	if cfg == nil || cfg.Chain == nil {
		return errs.NewFatal("dev routes require the simulated chain")
	}
	c := cfg.Chain
	r.Post("/dev/advance", advance(c))
	r.Post("/dev/mint", mint(c))
	r.Get("/dev/wallets/{id}", wallet(c))
	r.Post("/dev/token", token(iss))
	return nil
}

func advance(c *host.Chain) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := new(dto.AdvanceRequest)
		if err := dto.Decode(r, req); err != nil {
			httperr.Errs(w, err)
			return
		}
		if req.Blocks > maxAdvance {
			httperr.Errs(w, errs.Invalid("blocks %d exceeds %d", req.Blocks, maxAdvance))
			return
		}
		c.Advance(max(req.Blocks, 1))
		dto.Write(w, http.StatusOK, dto.HeightDTO{Height: c.BlockHeight(), Time: c.BlockTime()})
	}
}

func mint(c *host.Chain) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := new(dto.MintRequest)
		if err := dto.Decode(r, req); err != nil {
			httperr.Errs(w, err)
			return
		}
		amt, err := req.Parse()
		if err != nil {
			httperr.Errs(w, err)
			return
		}
		if err := c.Mint(req.Account, amt); err != nil {
			httperr.Errs(w, err)
			return
		}
		dto.Write(w, http.StatusOK, dto.WalletDTO{Account: req.Account, Balance: amount.String(c.Wallet(req.Account))})
	}
}

func wallet(c *host.Chain) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		dto.Write(w, http.StatusOK, dto.WalletDTO{Account: id, Balance: amount.String(c.Wallet(id))})
	}
}

func token(iss *auth.Issuer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !iss.Enabled() {
			httperr.Errs(w, errs.Policy("auth is disabled: set a jwt secret to issue tokens"))
			return
		}
		req := new(dto.TokenRequest)
		if err := dto.Decode(r, req); err != nil {
			httperr.Errs(w, err)
			return
		}
		if req.TTL < 0 {
			httperr.Errs(w, errs.Invalid("negative ttl"))
			return
		}
		tok, exp, err := iss.Issue(req.Account, time.Duration(req.TTL)*time.Second)
		if err != nil {
			httperr.Errs(w, err)
			return
		}
		dto.Write(w, http.StatusOK, dto.TokenDTO{Token: tok, ExpiresAt: exp.Unix()})
	}
}
