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

package middleware

import (
	"net/http"
	"strings"

	"github.com/zintix-labs/spinpool/errs"
	"github.com/zintix-labs/spinpool/server/auth"
	"github.com/zintix-labs/spinpool/server/httperr"
)

// AccountHeader 未啟用驗證時，呼叫者以此標頭宣告帳號（僅限開發）。
const AccountHeader = "X-Account"

// Auth 解析呼叫者身分並放進 context：
//   - 啟用驗證時只接受 Authorization: Bearer <jwt>，sub 即帳號；token 無效回 401。
//   - 未啟用時讀取 X-Account。
//
// 沒有帶身分的請求照常放行，需要身分的 handler 自行以 auth.Account 檢查。
func Auth(iss *auth.Issuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !iss.Enabled() {
				if acc := strings.TrimSpace(r.Header.Get(AccountHeader)); acc != "" {
					r = r.WithContext(auth.WithAccount(r.Context(), acc))
				}
				next.ServeHTTP(w, r)
				return
			}
			h := r.Header.Get("Authorization")
			if h == "" {
				next.ServeHTTP(w, r)
				return
			}
			token, ok := strings.CutPrefix(h, "Bearer ")
			if !ok {
				httperr.Unauthorized(w, errs.Invalid("authorization must be a bearer token"))
				return
			}
			acc, err := iss.Parse(strings.TrimSpace(token))
			if err != nil {
				httperr.Unauthorized(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithAccount(r.Context(), acc)))
		})
	}
}
