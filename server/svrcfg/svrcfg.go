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

package svrcfg

import (
	"log/slog"

	"github.com/zintix-labs/spinpool"
	"github.com/zintix-labs/spinpool/errs"
	"github.com/zintix-labs/spinpool/host"
	"github.com/zintix-labs/spinpool/server/logger"
	"github.com/zintix-labs/spinpool/server/monitor"
)

type SvrCfg struct {
	Log         *slog.Logger
	Addr        string                // 監聽位址，空字串為預設
	Runtime     *spinpool.PoolRuntime // 必填
	Chain       *host.Chain           // 模擬鏈；DevRoutes 需要
	Monitor     *monitor.Monitor      // 空值時自動建立（只收 HTTP 指標）
	AuthSecret  string                // HS256 金鑰；空字串代表以 X-Account 標頭識別（開發用）
	DevRoutes   bool                  // 開放 /v1/dev/*
	CORSOrigins []string
}

func (sc *SvrCfg) Vaild() error {
	if sc.Log != nil {
		if ah, ok := sc.Log.Handler().(*logger.AsyncHandler); ok && !ah.Ready() {
			return errs.NewFatal("nil default log handler: async handler is nil")
		}
	} else {
		sc.Log, _ = logger.NewAsync(1024, logger.ModeDev)
	}
	if sc.Runtime == nil {
		return errs.NewFatal("pool runtime is required")
	}
	if sc.Runtime.Closed() {
		return errs.NewFatal("pool runtime is closed: " + sc.Runtime.ClosedReason())
	}
	if sc.DevRoutes && sc.Chain == nil {
		return errs.NewFatal("dev routes require the simulated chain")
	}
	if sc.Monitor == nil {
		sc.Monitor = monitor.New(sc.Runtime.Setting().Token.Decimals)
	}
	return nil
}
