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

// Package auth 簽發與驗證呼叫者身分（HS256 JWT，sub 即帳號）。
package auth

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/zintix-labs/spinpool/errs"
)

// DefaultTTL token 預設有效期。
const DefaultTTL = time.Hour

const issuer = "spinpool"

// Issuer 持有簽章金鑰。secret 為空時代表不驗證（開發模式）。
type Issuer struct {
	secret []byte
	now    func() time.Time
}

func NewIssuer(secret string) *Issuer {
	return &Issuer{secret: []byte(secret), now: time.Now}
}

// Enabled 是否啟用驗證。
func (i *Issuer) Enabled() bool {
	return i != nil && len(i.secret) > 0
}

// Issue 為 account 簽發 token，ttl <= 0 時使用 DefaultTTL。
func (i *Issuer) Issue(account string, ttl time.Duration) (string, time.Time, error) {
	if !i.Enabled() {
		return "", time.Time{}, errs.Invalid("auth is disabled")
	}
	if account == "" {
		return "", time.Time{}, errs.Invalid("empty account")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := i.now()
	exp := now.Add(ttl)
	claims := jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   account,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, errs.Wrap(err, "sign token")
	}
	return token, exp, nil
}

// Parse 驗證 token 並回傳帳號（sub）。
func (i *Issuer) Parse(token string) (string, error) {
	if !i.Enabled() {
		return "", errs.Invalid("auth is disabled")
	}
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errs.Invalid("unexpected signing method %v", t.Header["alg"])
		}
		return i.secret, nil
	},
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return "", errs.Invalid("invalid token: %v", err)
	}
	if claims.Subject == "" {
		return "", errs.Invalid("token without subject")
	}
	return claims.Subject, nil
}

type ctxKey struct{}

// WithAccount 把呼叫者帳號放進 ctx。
func WithAccount(ctx context.Context, account string) context.Context {
	return context.WithValue(ctx, ctxKey{}, account)
}

// Account 取出呼叫者帳號。
func Account(ctx context.Context) (string, bool) {
	s, ok := ctx.Value(ctxKey{}).(string)
	return s, ok && s != ""
}
