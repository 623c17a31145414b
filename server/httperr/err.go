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

package httperr

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/zintix-labs/spinpool/errs"
)

// StatusCode 將錯誤映射成 HTTP status code。
//
// 規則（邊界層最小映射、可預期）：
//   - ctx timeout/cancel → 504/408（請求生命週期問題）
//   - errs.Kind          → 帳本語意（400/409/402/403/404）
//   - 其餘依 errs.ErrLv  → Warn 400、Fatal 500
//
// 注意：本函數屬於 HTTP 邊界層，因此放在 server/*（而不是 core errs）。
// 這樣可以避免讓核心錯誤包依賴 net/http 等傳輸層細節。
func StatusCode(err error) int {
	// 1) 先處理 context 取消/超時（即使被 wrap 也能被 errors.Is 命中）
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout // 504
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout // 408
	}

	// 2) 帳本語意
	switch errs.KindOf(err) {
	case errs.InvalidInput:
		return http.StatusBadRequest // 400
	case errs.StateConflict:
		return http.StatusConflict // 409
	case errs.InsufficientFunds:
		return http.StatusPaymentRequired // 402
	case errs.PolicyViolation:
		return http.StatusForbidden // 403
	case errs.NotFound:
		return http.StatusNotFound // 404
	case errs.Internal:
		return http.StatusInternalServerError
	}

	// 3) 再處理內部錯誤分級（errs.E/Wrap）
	var e *errs.E
	if errors.As(err, &e) && e.ErrLv == errs.Warn {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// Errs 寫回 JSON 錯誤：{"error": 訊息, "kind": 帳本錯誤種類}。
func Errs(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	status := StatusCode(err)
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Body{Error: err.Error(), Kind: errs.KindOf(err).String()})
}

// Unauthorized 寫回 401；身分缺失或 token 無效時使用。
func Unauthorized(w http.ResponseWriter, err error) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(Body{Error: err.Error(), Kind: "unauthorized"})
}

// Body 錯誤回應格式。
type Body struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// Log 依狀態碼決定是否記錄：請求生命週期與衝突記 Warn，5xx 記 Error，其餘屬於呼叫端問題不記。
func Log(log *slog.Logger, msg string, err error) {
	if err == nil {
		return
	}
	status := StatusCode(err)
	if (status == 408) || (status == 409) || (status == 429) {
		log.Warn(msg, slog.Any("err", err))
	} else if (status >= 500) && (status < 600) {
		log.Error(msg, slog.Any("err", err))
	}
}
