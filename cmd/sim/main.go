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
	"flag"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/zintix-labs/spinpool"
	"github.com/zintix-labs/spinpool/errs"
	"github.com/zintix-labs/spinpool/sdk/amount"
	"github.com/zintix-labs/spinpool/sdk/core"
	"github.com/zintix-labs/spinpool/sdk/perf"
	"github.com/zintix-labs/spinpool/stats"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var cfg *config = new(config)

type config struct {
	pool      string
	worker    int
	player    int
	bets      int
	rounds    int
	lambda    float64
	stakers   int
	unit      string
	seed      int64
	out       string
	pprofmode string
	pprofdir  string
}

func bindVar() {
	flag.StringVar(&cfg.pool, "pool", "", "pool setting file (.yaml/.json); empty uses the embedded default")
	flag.IntVar(&cfg.worker, "worker", 1, "number of workers (independent pools)")
	flag.IntVar(&cfg.player, "player", 1, "number of tracked players; 1 runs the pool-only simulation")
	flag.IntVar(&cfg.bets, "bets", 200, "initial bankroll per player in bet units")
	flag.IntVar(&cfg.rounds, "rounds", 100000, "rounds per worker (per player when player > 1)")
	flag.Float64Var(&cfg.lambda, "lambda", 8, "mean bettors per round")
	flag.IntVar(&cfg.stakers, "stakers", 10, "stakers per pool")
	flag.StringVar(&cfg.unit, "unit", "1", "bet unit in tokens")
	flag.Int64Var(&cfg.seed, "seed", -1, "int64 seed; < 1 draws one from crypto/rand")
	flag.StringVar(&cfg.out, "out", "table", "report format: table|json|yaml")
	flag.StringVar(&cfg.pprofmode, "p", "", "pprof: '', cpu, heap, allocs")
	flag.StringVar(&cfg.pprofdir, "pprof-dir", perf.DefaultDir, "pprof output dir")

	flag.Parse()

	if cfg.seed < 1 {
		cfg.seed = core.CryptoSeed()
	}
}

func main() {
	bindVar()
	if err := perf.RunPProf(executeSimulator, cfg.pprofmode, cfg.pprofdir); err != nil {
		log.Fatal(err)
	}
}

// 這裡解析並分支要執行的模擬器
func executeSimulator() error {
	if err := cfg.valid(); err != nil {
		return err
	}
	sp, err := newSpinpool(cfg.pool)
	if err != nil {
		return err
	}
	s, err := sp.NewSimulatorWithSeed(cfg.seed)
	if err != nil {
		return err
	}
	ps := sp.Setting()
	unit, err := amount.ParseUnits(cfg.unit, ps.Token.Decimals)
	if err != nil {
		return err
	}
	s.BetUnit = unit
	s.Lambda = cfg.lambda
	s.Stakers = cfg.stakers

	// 至此確保可執行
	green := "\033[1;32m"
	reset := "\033[0m"
	p := message.NewPrinter(language.English)
	showpb := cfg.out == "table"
	w := os.Stdout

	if cfg.player == 1 { // 純資金池模擬
		var (
			st   *stats.PoolReport
			used time.Duration
		)
		if cfg.worker == 1 {
			p.Fprintf(os.Stderr, "%s[POOL:%s] [ROUNDS:%d] [LAMBDA:%.2f] [SEED:%d]%s\n", green, s.Name, cfg.rounds, cfg.lambda, cfg.seed, reset)
			st, used, err = s.Sim(cfg.rounds, showpb)
		} else {
			p.Fprintf(os.Stderr, "%s[WORKERS:%d] [POOL:%s] [ROUNDS:%d] [LAMBDA:%.2f] [SEED:%d]%s\n", green, cfg.worker, s.Name, cfg.worker*cfg.rounds, cfg.lambda, cfg.seed, reset)
			st, used, err = s.SimMP(cfg.rounds, cfg.worker, showpb)
		}
		if err != nil {
			return err
		}
		return writeReport(w, st, nil, used)
	}
	// 模擬多玩家體驗
	p.Fprintf(os.Stderr, "%s[WORKERS:%d] [POOL:%s] [PLAYERS:%d BANKROLL:%d ROUNDS:%d] [SEED:%d]%s\n", green, cfg.worker, s.Name, cfg.player, cfg.bets, cfg.rounds, cfg.seed, reset)
	st, est, used, err := s.SimPlayers(cfg.worker, cfg.player, cfg.bets, cfg.rounds, showpb)
	if err != nil {
		return err
	}
	return writeReport(w, st, est, used)
}

func writeReport(w io.Writer, st *stats.PoolReport, est *stats.PlayerEstimate, used time.Duration) error {
	switch cfg.out {
	case "json":
		if err := st.WriteWith(w, &stats.JsonPoolReportRender{}); err != nil {
			return err
		}
		if est != nil {
			return (&stats.JsonEstimatorRender{}).Write(w, est)
		}
	case "yaml":
		if err := st.WriteWith(w, &stats.YAMLPoolReportRender{}); err != nil {
			return err
		}
		if est != nil {
			return (&stats.YAMLEstimatorRender{}).Write(w, est)
		}
	default:
		st.StdOut(w, used)
		if est != nil {
			est.Out(w)
		}
	}
	return nil
}

func newSpinpool(path string) (*spinpool.Spinpool, error) {
	if path == "" {
		return spinpool.NewDefault()
	}
	return spinpool.NewFromFS(core.Default(), os.DirFS(filepath.Dir(path)), filepath.Base(path))
}

func (cfg *config) valid() error {
	p := message.NewPrinter(language.English)

	if cfg.worker < 1 {
		return errs.Invalid("workers must > 0")
	}
	if cfg.player < 1 {
		return errs.Invalid("player must > 0")
	}
	if cfg.player > 100000 {
		p.Fprintf(os.Stderr, "too many players: %d resized to 100k players\n", cfg.player)
		cfg.player = 100000
	}
	if cfg.player > 1 && cfg.bets < 1 {
		return errs.Invalid("bankroll must >= 1 bet unit")
	}
	if cfg.rounds < 1 {
		return errs.Invalid("rounds must > 0")
	}
	if cfg.lambda <= 0 {
		return errs.Invalid("lambda must > 0")
	}
	if cfg.stakers < 1 {
		return errs.Invalid("stakers must > 0")
	}
	// 單一玩家超過 15k 回合已是長期體驗，直接跑資金池模擬即可
	if cfg.player > 1 && cfg.rounds > 15000 {
		p.Fprintf(os.Stderr, "too many rounds for each player: %d resized to 15k\n", cfg.rounds)
		cfg.rounds = 15000
	}
	switch cfg.out {
	case "table", "json", "yaml":
	default:
		return errs.Invalid("unknown output format %q", cfg.out)
	}
	return nil
}
