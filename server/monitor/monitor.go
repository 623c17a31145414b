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

// Package monitor 以 prometheus 輸出資金池與 HTTP 指標。
//
// Monitor 同時實作 spinpool.Observer（由 runtime 回報帳本事件）與 HTTP middleware。
// 每個 Monitor 使用自己的 Registry，不碰全域的 DefaultRegisterer。
package monitor

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/zintix-labs/spinpool/errs"
	"github.com/zintix-labs/spinpool/ledger"
	"github.com/zintix-labs/spinpool/sdk/amount"
)

const namespace = "spinpool"

type Monitor struct {
	decimals int32
	reg      *prometheus.Registry

	ops         *prometheus.CounterVec
	opLatency   *prometheus.HistogramVec
	rounds      *prometheus.CounterVec
	outcomes    *prometheus.CounterVec
	wagered     prometheus.Counter
	paid        prometheus.Counter
	treasury    prometheus.Counter
	sweeps      prometheus.Counter
	poolStake   prometheus.Gauge
	poolNet     prometheus.Gauge
	ceiling     prometheus.Gauge
	httpReqs    *prometheus.CounterVec
	httpLatency *prometheus.HistogramVec
}

// New 建立 Monitor；decimals 為 token 小數位，金額指標以 token 為單位。
func New(decimals int32) *Monitor {
	m := &Monitor{
		decimals: decimals,
		reg:      prometheus.NewRegistry(),
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ops_total",
			Help:      "Ledger operations by result kind.",
		}, []string{"op", "result"}),
		opLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "op_duration_seconds",
			Help:      "Ledger operation latency including persistence.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}, []string{"op"}),
		rounds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rounds_settled_total",
			Help:      "Settled rounds by pool direction.",
		}, []string{"direction"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outcomes_total",
			Help:      "Drawn outcomes.",
		}, []string{"outcome"}),
		wagered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wagered_tokens_total",
			Help:      "Total wagered value.",
		}),
		paid: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "paid_tokens_total",
			Help:      "Total paid out to players.",
		}),
		treasury: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "treasury_cut_tokens_total",
			Help:      "House profit routed to the treasury.",
		}),
		sweeps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "treasury_sweeps_total",
			Help:      "Treasury distributions.",
		}),
		poolStake: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pool_stake_tokens",
			Help:      "Total staked principal.",
		}),
		poolNet: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pool_net_tokens",
			Help:      "Pool profit minus loss.",
		}),
		ceiling: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "round_ceiling_tokens",
			Help:      "Maximum total wagered per round.",
		}),
		httpReqs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests.",
		}, []string{"method", "route", "status"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	m.reg.MustRegister(
		m.ops, m.opLatency, m.rounds, m.outcomes, m.wagered, m.paid, m.treasury, m.sweeps,
		m.poolStake, m.poolNet, m.ceiling, m.httpReqs, m.httpLatency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Monitor) tokens(a amount.Amount) float64 {
	return amount.Float(a, m.decimals)
}

// Registry 供測試與外部收集使用。
func (m *Monitor) Registry() *prometheus.Registry { return m.reg }

// ObserveOp 記錄一次帳本操作。result 為 "ok" 或錯誤種類。
func (m *Monitor) ObserveOp(op string, d time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = errs.KindOf(err).String()
		if result == "" {
			result = "error"
		}
	}
	m.ops.WithLabelValues(op, result).Inc()
	m.opLatency.WithLabelValues(op).Observe(d.Seconds())
}

func (m *Monitor) ObserveSettlement(st *ledger.Settlement, pool ledger.PoolView) {
	m.rounds.WithLabelValues(st.Direction.String()).Inc()
	m.outcomes.WithLabelValues(strconv.Itoa(int(st.Outcome))).Inc()
	m.wagered.Add(m.tokens(st.Wagered))
	m.paid.Add(m.tokens(st.Paid))
	m.treasury.Add(m.tokens(st.TreasuryCut))
	m.SetPool(pool)
}

func (m *Monitor) ObserveSweep(*ledger.SweepResult) {
	m.sweeps.Inc()
}

// SetPool 更新資金池 gauge（啟動時與每次結算後）。
func (m *Monitor) SetPool(pool ledger.PoolView) {
	m.poolStake.Set(m.tokens(pool.Stake))
	m.poolNet.Set(m.tokens(pool.Profit) - m.tokens(pool.Loss))
	m.ceiling.Set(m.tokens(pool.Ceiling))
}

// Handler 回傳 /metrics 的 exposition handler。
func (m *Monitor) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Middleware 記錄每個請求；route 取 chi 的路由樣板，避免把帳號 ID 變成 label。
func (m *Monitor) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		m.httpReqs.WithLabelValues(r.Method, route, strconv.Itoa(sw.status)).Inc()
		m.httpLatency.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
