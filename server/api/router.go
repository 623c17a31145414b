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

package api

import (
	"net/http"

	"github.com/zintix-labs/spinpool/dto"
	"github.com/zintix-labs/spinpool/errs"
	"github.com/zintix-labs/spinpool/server/api/dev"
	v1 "github.com/zintix-labs/spinpool/server/api/v1"
	"github.com/zintix-labs/spinpool/server/auth"
	"github.com/zintix-labs/spinpool/server/netsvr"
	"github.com/zintix-labs/spinpool/server/netsvr/middleware"
	"github.com/zintix-labs/spinpool/server/svrcfg"
)

// RegisterRoutes 註冊；sCfg 需先通過 Vaild()。
func RegisterRoutes(svr netsvr.NetSvr, sCfg *svrcfg.SvrCfg) error {
	iss := auth.NewIssuer(sCfg.AuthSecret)
	registerMiddleware(svr, sCfg, iss)             // 1. 註冊 middleware
	svr.Handle("/metrics", sCfg.Monitor.Handler()) // 2. metrics
	svr.Get("/healthz", healthz(sCfg))             // 3. 健康檢查
	return registerV1API(svr, sCfg, iss)           // 4. 註冊 v1 api（含 dev）
}

// 註冊 middleware；Auth 放最後，身分只在 handler 前解析。
func registerMiddleware(svr netsvr.NetSvr, sCfg *svrcfg.SvrCfg, iss *auth.Issuer) {
	svr.Use(middleware.RequestID)
	svr.Use(middleware.AccessLog(sCfg.Log))
	svr.Use(middleware.Recover(sCfg.Log))
	svr.Use(sCfg.Monitor.Middleware)
	svr.Use(middleware.CORS(sCfg.CORSOrigins...))
	svr.Use(middleware.Compression)
	svr.Use(middleware.Auth(iss))
}

// runtime 關閉後回 503，讓上游負載平衡摘除。
func healthz(sCfg *svrcfg.SvrCfg) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if sCfg.Runtime.Closed() {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"closed"}`))
			return
		}
		dto.Write(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// 註冊 v1 api
func registerV1API(svr netsvr.NetSvr, sCfg *svrcfg.SvrCfg, iss *auth.Issuer) error {
	p, err := v1.NewPoolHandler(sCfg)
	if err != nil {
		return err
	}
	var devErr error
	svr.Group("/v1", func(vOne netsvr.NetRouter) {
		vOne.Post("/bet", p.Bet)
		vOne.Post("/settle", p.Settle)
		vOne.Post("/stake", p.Stake)
		vOne.Post("/unstake", p.Unstake)
		vOne.Post("/harvest", p.Harvest)
		vOne.Post("/sweep", p.Sweep)
		vOne.Post("/deposit", p.Deposit)
		vOne.Post("/withdraw", p.Withdraw)

		vOne.Get("/accounts/{id}", p.Account)
		vOne.Get("/accounts/{id}/journal", p.Journal)
		vOne.Get("/round", p.Round)
		vOne.Get("/pool", p.Pool)
		vOne.Get("/treasury", p.Treasury)
		vOne.Get("/config", p.Config)

		if sCfg.DevRoutes {
			devErr = dev.Register(vOne, sCfg, iss)
		}
	})
	if devErr != nil {
		return errs.Wrap(devErr, "register dev routes")
	}
	return nil
}
