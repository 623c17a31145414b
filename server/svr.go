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

package server

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/zintix-labs/spinpool/errs"
	"github.com/zintix-labs/spinpool/server/api"
	"github.com/zintix-labs/spinpool/server/app"
	"github.com/zintix-labs/spinpool/server/netsvr"
	"github.com/zintix-labs/spinpool/server/svrcfg"
)

// Run 是 server 套件的「組裝器（assembler）」與「啟動入口（runtime entry）」。
//
// 它負責：
//  1. 驗證輸入的 SvrCfg（logger、PoolRuntime 等必要依賴）。
//  2. 以 sCfg.Addr 建立 HTTP server（netsvr）。
//  3. 註冊路由與 middleware（api.RegisterRoutes）。
//  4. 啟動 app.Run() 並在結束時關閉 PoolRuntime。
//
// 注意：
//   - Run 不讀檔案也不讀環境變數；所有依賴都透過 SvrCfg 注入（見 cmd/svr）。
//   - Store 由建立者關閉，Run 只關閉 runtime。
func Run(sCfg *svrcfg.SvrCfg) {
	if err := sCfg.Vaild(); err != nil {
		// 防止外層傳入的logger不可用
		fmt.Fprintln(os.Stderr, err)
		return
	}
	svr := netsvr.NewChiServer(sCfg.Addr)
	serve(sCfg, svr, "[spinpool] listening on http://localhost"+svr.Address())
}

// RunWithSvr 與 Run() 相同，差別在於允許呼叫端注入自訂的 NetSvr
// （例如自己包裝的 adapter、額外的 server option，或把 routes 掛進既有服務）。
//
// svr 必須非 nil；若是 ChiAdapter 會要求 Ready() 為 true。
func RunWithSvr(sCfg *svrcfg.SvrCfg, svr netsvr.NetSvr) {
	if err := sCfg.Vaild(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	if svr == nil {
		sCfg.Log.Error(errs.NewFatal("svr is required").Error())
		return
	}
	if s, ok := svr.(*netsvr.ChiAdapter); ok && !s.Ready() {
		sCfg.Log.Error(errs.NewFatal("default server is not ready").Error())
		return
	}
	serve(sCfg, svr, "[spinpool] listening")
}

func serve(sCfg *svrcfg.SvrCfg, svr netsvr.NetSvr, banner string) {
	// 註冊 Api
	if err := api.RegisterRoutes(svr, sCfg); err != nil {
		sCfg.Log.Error("register routes failed", slog.Any("err", err))
		sCfg.Runtime.Close()
		return
	}
	sCfg.Monitor.SetPool(sCfg.Runtime.Pool())

	// 運行
	app := app.NewWith(svr)
	app.OnStop(sCfg.Runtime.Close)
	sCfg.Log.Info(banner, slog.String("pool", sCfg.Runtime.Setting().Name))
	if err := app.Run(); err != nil {
		sCfg.Log.Error("app stopped:", slog.Any("err", err))
	}
}
