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

package errs

import (
	"errors"
	"fmt"
)

// ErrLevel : Error 分級，使最上層理解問題嚴重程度
type ErrLevel uint8

const (
	None ErrLevel = iota
	Fatal
	Warn
	Log
)

var errLvMap = map[ErrLevel]string{
	None:  "",
	Fatal: "fatal",
	Warn:  "warn",
	Log:   "log",
}

func ErrLv(errlv ErrLevel) string {
	if str, ok := errLvMap[errlv]; ok {
		return str
	}
	return ""
}

// Kind 描述「為什麼」失敗（帳本語意），ErrLevel 描述「多嚴重」。
//
// 所有帳本前置條件失敗都會整筆中止、不留下任何狀態變更；Kind 讓邊界層（HTTP/CLI）
// 能決定回應方式，而不必解析訊息字串。
type Kind uint8

const (
	KindNone Kind = iota
	InvalidInput
	StateConflict
	InsufficientFunds
	PolicyViolation
	NotFound
	Internal
)

var kindMap = map[Kind]string{
	KindNone:          "",
	InvalidInput:      "invalid_input",
	StateConflict:     "state_conflict",
	InsufficientFunds: "insufficient_funds",
	PolicyViolation:   "policy_violation",
	NotFound:          "not_found",
	Internal:          "internal",
}

func (k Kind) String() string {
	if str, ok := kindMap[k]; ok {
		return str
	}
	return ""
}

// E 是統一的錯誤型別。
// Message 為主訊息；Extra 為呼叫端可追加的額外上下文；
// Cause 可串接下層錯誤（wrap）；ErrLv 為嚴重度；Kind 為帳本失敗分類。
type E struct {
	Message string
	Extra   string
	Cause   error
	ErrLv   ErrLevel
	Kind    Kind
}

// Error 實作 error 介面並回傳格式化後的錯誤訊息。
func (e *E) Error() string {
	base := fmt.Sprintf("errlv=%s %s", ErrLv(e.ErrLv), e.Message)
	if e.Kind != KindNone {
		base = fmt.Sprintf("errlv=%s kind=%s %s", ErrLv(e.ErrLv), e.Kind, e.Message)
	}
	if e.Extra != "" {
		base += " | extra: " + e.Extra
	}
	if e.Cause != nil {
		base += fmt.Sprintf(" (cause: %v)", e.Cause)
	}
	return base
}

// Unwrap 讓 errors.Is / errors.As 能夠向下展開。
func (e *E) Unwrap() error { return e.Cause }

// New 依錯誤等級與訊息建立錯誤
func New(errLv ErrLevel, msg string) *E {
	return &E{Message: msg, ErrLv: errLv}
}

func NewFatal(msg string) *E {
	return &E{Message: msg, ErrLv: Fatal, Kind: Internal}
}

func NewWarn(msg string) *E {
	return &E{Message: msg, ErrLv: Warn}
}

func NewLog(msg string) *E {
	return &E{Message: msg, ErrLv: Log}
}

func Fatalf(format string, a ...any) *E {
	return NewFatal(fmt.Sprintf(format, a...))
}

func Warnf(format string, a ...any) *E {
	return NewWarn(fmt.Sprintf(format, a...))
}

// NewWithExtra 與 New 相同，但可附加額外上下文字串（不影響主訊息）。
func NewWithExtra(errLv ErrLevel, msg string, extra string) *E {
	e := New(errLv, msg)
	e.Extra = extra
	return e
}

// ---- 帳本分類建構子：一律為 Warn（呼叫端修正輸入或等待條件解除即可重送） ----

func Invalid(format string, a ...any) *E {
	return &E{Message: fmt.Sprintf(format, a...), ErrLv: Warn, Kind: InvalidInput}
}

func Conflict(format string, a ...any) *E {
	return &E{Message: fmt.Sprintf(format, a...), ErrLv: Warn, Kind: StateConflict}
}

func Funds(format string, a ...any) *E {
	return &E{Message: fmt.Sprintf(format, a...), ErrLv: Warn, Kind: InsufficientFunds}
}

func Policy(format string, a ...any) *E {
	return &E{Message: fmt.Sprintf(format, a...), ErrLv: Warn, Kind: PolicyViolation}
}

func Missing(format string, a ...any) *E {
	return &E{Message: fmt.Sprintf(format, a...), ErrLv: Warn, Kind: NotFound}
}

// Wrap 使用給定的訊息包裝底層錯誤，建立一個 *E。
//
// ErrLevel / Kind 規則：
//   - 若 cause 已經是 *E，則沿用其 ErrLv 與 Kind（保持原本嚴重度與分類）。
//   - 若 cause 不是本包定義的 *E（多半是標準庫或三方依賴錯誤），則視為 Fatal / Internal。
func Wrap(cause error, msg string) *E {
	var e *E
	errLv, kind := Fatal, Internal
	if errors.As(cause, &e) {
		errLv, kind = e.ErrLv, e.Kind
	}
	r := New(errLv, msg)
	r.Kind = kind
	r.Cause = cause
	return r
}

// WrapWithExtra 與 Wrap 相同，並附加上下文。
func WrapWithExtra(cause error, msg string, extra string) *E {
	r := Wrap(cause, msg)
	r.Extra = extra
	return r
}

func AsErr(err error) (*E, bool) {
	var e *E
	if errors.As(err, &e) {
		return e, true
	}
	return e, false
}

// KindOf 回傳錯誤鏈中第一個 *E 的 Kind；非本包錯誤回傳 KindNone。
func KindOf(err error) Kind {
	if e, ok := AsErr(err); ok {
		return e.Kind
	}
	return KindNone
}

// IsKind 判斷錯誤是否屬於指定分類。
func IsKind(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}
