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

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/zintix-labs/spinpool"
	"github.com/zintix-labs/spinpool/host"
	"github.com/zintix-labs/spinpool/sdk/amount"
	"github.com/zintix-labs/spinpool/sdk/core"
	"github.com/zintix-labs/spinpool/server"
	"github.com/zintix-labs/spinpool/server/logger"
	"github.com/zintix-labs/spinpool/server/monitor"
	"github.com/zintix-labs/spinpool/server/svrcfg"
	"github.com/zintix-labs/spinpool/store"
)

// 本指令跑在模擬鏈（host.Chain）上，預設開啟 dev routes。
// 旗標優先，其次是環境變數（可放在 .env）。
func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "load .env:", err)
	}
	cfg := loadConfigFromFlags()
	if err := run(cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type config struct {
	Addr      string
	Secret    string
	DB        string
	LogMode   string
	Pool      string
	Seed      int64
	BlockTime time.Duration
	NoDev     bool
	CORS      string
}

func loadConfigFromFlags() *config {
	cfg := new(config)
	flag.StringVar(&cfg.Addr, "addr", env("SPINPOOL_ADDR", ""), "listen address (default :5808)")
	flag.StringVar(&cfg.Secret, "jwt-secret", env("SPINPOOL_JWT_SECRET", ""), "HS256 secret; empty means X-Account header identity")
	flag.StringVar(&cfg.DB, "db", env("SPINPOOL_DB", ""), "sqlite path; empty keeps state in memory")
	flag.StringVar(&cfg.LogMode, "log-mode", env("SPINPOOL_LOG_MODE", "dev"), "log mode: dev|prod|silence")
	flag.StringVar(&cfg.Pool, "pool", env("SPINPOOL_POOL", ""), "pool setting file (.yaml/.json); empty uses the embedded default")
	flag.Int64Var(&cfg.Seed, "seed", 0, "chain beacon seed; 0 draws one from crypto/rand")
	flag.DurationVar(&cfg.BlockTime, "block-time", time.Second, "simulated block interval")
	flag.BoolVar(&cfg.NoDev, "no-dev", false, "disable /v1/dev routes")
	flag.StringVar(&cfg.CORS, "cors", env("SPINPOOL_CORS", ""), "comma separated allowed origins")
	flag.Parse()
	return cfg
}

func env(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func run(cfg *config) error {
	mode, err := logger.ParseMode(cfg.LogMode)
	if err != nil {
		return err
	}
	log, ah := logger.NewAsync(4096, mode)
	defer ah.Close()

	sp, err := newSpinpool(cfg.Pool)
	if err != nil {
		return err
	}

	ctx := context.Background()
	st, err := openStore(ctx, cfg.DB)
	if err != nil {
		return err
	}
	defer st.Close()

	seed := cfg.Seed
	if seed == 0 {
		seed = core.CryptoSeed()
	}
	chain := host.NewChain(host.ChainOptions{Seed: seed, BlockTime: cfg.BlockTime})
	mon := monitor.New(sp.Setting().Token.Decimals)

	rt, err := sp.BuildRuntime(ctx, chain, spinpool.RuntimeOptions{
		Store:     st,
		Log:       log,
		Observers: []spinpool.Observer{mon},
	})
	if err != nil {
		return err
	}
	syncChain(chain, rt, log)

	server.Run(&svrcfg.SvrCfg{
		Log:         log,
		Addr:        cfg.Addr,
		Runtime:     rt,
		Chain:       chain,
		Monitor:     mon,
		AuthSecret:  cfg.Secret,
		DevRoutes:   !cfg.NoDev,
		CORSOrigins: splitList(cfg.CORS),
	})
	return nil
}

func newSpinpool(path string) (*spinpool.Spinpool, error) {
	if path == "" {
		return spinpool.NewDefault()
	}
	return spinpool.NewFromFS(core.Default(), os.DirFS(filepath.Dir(path)), filepath.Base(path))
}

func openStore(ctx context.Context, path string) (store.Store, error) {
	if path == "" {
		return store.NewMemory(), nil
	}
	return store.OpenSQLite(ctx, path)
}

// syncChain 讓新啟動的模擬鏈追上還原的帳本：補足池子餘額並推進到回合起點。
func syncChain(chain *host.Chain, rt *spinpool.PoolRuntime, log *slog.Logger) {
	owed := rt.Liabilities()
	if bal := chain.PoolBalance(); amount.Less(bal, owed) {
		gap, _ := amount.Sub(owed, bal)
		chain.FundPool(gap)
		log.Info("pool funded from restored ledger", slog.String("amount", amount.String(gap)))
	}
	if r := rt.Round(); r.Start > chain.BlockHeight() {
		chain.Advance(r.Start - chain.BlockHeight())
	}
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
