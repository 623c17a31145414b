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

// Package perf 包裝 runtime/pprof，讓命令列工具以一個旗標切換 profiling。
package perf

import (
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"

	"github.com/zintix-labs/spinpool/errs"
)

// DefaultDir pprof 檔案寫入路徑
const DefaultDir = "build/profiling"

// Modes 支援的 profiling 模式；空字串代表不量測。
var Modes = []string{"", "cpu", "heap", "allocs"}

// RunPProf 依 mode 執行 exe 並把 profile 寫到 dir/<mode>.pprof。
//
// exe 的錯誤原樣回傳；profile 寫入失敗回 Fatal。
func RunPProf(exe func() error, mode string, dir string) error {
	switch mode {
	case "":
		return exe()
	case "cpu":
		return cpu(exe, dir)
	case "heap", "allocs":
		if err := exe(); err != nil {
			return err
		}
		return snapshot(mode, dir)
	}
	return errs.Invalid("unknown pprof mode %q", mode)
}

func create(dir, mode string) (*os.File, error) {
	if dir == "" {
		dir = DefaultDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errs.Wrap(err, "create pprof dir")
	}
	f, err := os.Create(filepath.Join(dir, mode+".pprof"))
	if err != nil {
		return nil, errs.Wrap(err, "create "+mode+".pprof")
	}
	return f, nil
}

// cpu 量測 exe 全程；產出也可作為 PGO 的 default.pgo。
func cpu(exe func() error, dir string) error {
	f, err := create(dir, "cpu")
	if err != nil {
		return err
	}
	defer f.Close()
	if err := pprof.StartCPUProfile(f); err != nil {
		return errs.Wrap(err, "start cpu profile")
	}
	defer pprof.StopCPUProfile()
	return exe()
}

// snapshot 在 exe 之後寫出 heap（in-use）或 allocs（累積配置）。
// heap 前先 GC，讓快照貼近存活物件。
func snapshot(mode, dir string) error {
	f, err := create(dir, mode)
	if err != nil {
		return err
	}
	defer f.Close()
	if mode == "heap" {
		runtime.GC()
		if err := pprof.WriteHeapProfile(f); err != nil {
			return errs.Wrap(err, "write heap profile")
		}
		return nil
	}
	if prof := pprof.Lookup("allocs"); prof != nil {
		if err := prof.WriteTo(f, 0); err != nil {
			return errs.Wrap(err, "write allocs profile")
		}
	}
	return nil
}
