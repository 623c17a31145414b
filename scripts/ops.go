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

// ops 是開發用的任務腳本：go run ./scripts <task>
package main

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

type task struct {
	desc string
	run  func() error
}

var tasks = map[string]task{
	"test":        {"go test ./... -cover, only ok/FAIL lines", runTest},
	"test-detail": {"go test ./... -v, hide packages without tests", runTestDetail},
	"sim":         {"quick pool simulation (4 workers x 50k rounds)", runSim},
	"pgo":         {"cpu-profile a simulation and install it as cmd/sim/default.pgo", runPGO},
	"serve":       {"start the dev server with sqlite state under build/", runServe},
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	t, ok := tasks[os.Args[1]]
	if !ok {
		PrintYellow(fmt.Sprintf("Unknown task: %s", os.Args[1]))
		usage()
		os.Exit(1)
	}
	if err := t.run(); err != nil {
		PrintRed(err.Error())
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("Usage: go run ./scripts [task]")
	for name, t := range tasks {
		fmt.Printf("  %-12s %s\n", name, t.desc)
	}
}

func runTest() error {
	PrintGreen("running tests")
	_ = exec.Command("go", "clean", "-testcache").Run()
	return stream(exec.Command("go", "test", "./...", "-cover", "-count=1"), func(line string) {
		switch {
		case strings.HasPrefix(line, "ok"):
			PrintGreen(line)
		case strings.HasPrefix(line, "FAIL"),
			strings.Contains(line, "build failed"),
			strings.Contains(line, "setup failed"):
			PrintRed(line)
		}
	})
}

func runTestDetail() error {
	PrintGreen("running tests (detail)")
	_ = exec.Command("go", "clean", "-testcache").Run()
	return stream(exec.Command("go", "test", "./...", "-v", "-count=1"), func(line string) {
		switch {
		case strings.Contains(line, "[no test files]"):
		case strings.HasPrefix(line, "ok"):
			PrintGreen(line)
		case strings.HasPrefix(line, "FAIL"):
			PrintRed(line)
		default:
			fmt.Println(line)
		}
	})
}

func runSim() error {
	PrintGreen("running simulation")
	return attach(exec.Command("go", "run", "./cmd/sim", "-worker", "4", "-rounds", "50000"))
}

func runPGO() error {
	dir := filepath.Join("build", "profiling")
	PrintGreen("profiling simulation into " + dir)
	if err := attach(exec.Command("go", "run", "./cmd/sim", "-rounds", "200000", "-p", "cpu", "-pprof-dir", dir)); err != nil {
		return err
	}
	b, err := os.ReadFile(filepath.Join(dir, "cpu.pprof"))
	if err != nil {
		return err
	}
	PrintBlue("writing cmd/sim/default.pgo")
	return os.WriteFile(filepath.Join("cmd", "sim", "default.pgo"), b, 0o644)
}

func runServe() error {
	if err := os.MkdirAll("build", 0o755); err != nil {
		return err
	}
	PrintGreen("starting dev server")
	return attach(exec.Command("go", "run", "./cmd/svr", "-db", filepath.Join("build", "spinpool.db")))
}

// attach 直接把子行程的輸出接到終端。
func attach(cmd *exec.Cmd) error {
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Stdin = os.Stdin
	return cmd.Run()
}

// stream 合併 stdout/stderr（等同 2>&1），逐行交給 fn。
func stream(cmd *exec.Cmd, fn func(line string)) error {
	out, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	cmd.Stderr = cmd.Stdout
	if err := cmd.Start(); err != nil {
		return err
	}
	sc := bufio.NewScanner(out)
	for sc.Scan() {
		fn(sc.Text())
	}
	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("%s: %w", strings.Join(cmd.Args, " "), err)
	}
	return nil
}
