/*
 * vmux - Process-Report.txt formatter.
 *
 * Copyright 2024, Richard Cornwell
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

// Package report formats Process-Report.txt and the process-smi/vmstat
// text the shell prints, both built from a Supervisor snapshot.
package report

import (
	"fmt"
	"os"
	"strings"

	"github.com/vmux-emu/vmux/emu/process"
	"github.com/vmux-emu/vmux/emu/supervisor"
)

// ProcessSMI renders per-core utilization and the names of currently
// running processes, in the style of the original's commandInterpreter.
func ProcessSMI(cores []supervisor.CoreStats, processes []supervisor.Snapshot) string {
	var b strings.Builder
	fmt.Fprintln(&b, "core  utilization  ready  running")
	for _, c := range cores {
		running := runningNames(processes, c.ID)
		fmt.Fprintf(&b, "%-4d  %9.1f%%  %5d  %s\n", c.ID, c.Utilization, c.ReadyLen, strings.Join(running, ","))
	}
	return b.String()
}

func runningNames(processes []supervisor.Snapshot, coreID int) []string {
	var names []string
	for _, p := range processes {
		if p.Core == coreID && p.State == process.StateRunning {
			names = append(names, p.Name)
		}
	}
	return names
}

// Vmstat renders the MMU's demand-paging counters.
func Vmstat(mem supervisor.MemoryStats) string {
	return fmt.Sprintf("pagesIn=%d pagesOut=%d availableBytes=%d\n", mem.PagesIn, mem.PagesOut, mem.AvailableBytes)
}

// ScreenLS splits the master list into running/ready/waiting vs
// terminated, matching the original's printProcess grouping.
func ScreenLS(processes []supervisor.Snapshot) string {
	var b strings.Builder
	fmt.Fprintln(&b, "Running processes:")
	for _, p := range processes {
		if p.State != process.StateTerminated {
			fmt.Fprintf(&b, "  %s  core %d  pc %d/%d  %s\n", p.Name, p.Core, p.ProgramCounter, p.TextLength, p.State)
		}
	}
	fmt.Fprintln(&b, "Finished processes:")
	for _, p := range processes {
		if p.State == process.StateTerminated {
			fmt.Fprintf(&b, "  %s  core %d\n", p.Name, p.Core)
		}
	}
	return b.String()
}

// Generate builds the full Process-Report.txt body.
func Generate(cores []supervisor.CoreStats, mem supervisor.MemoryStats, processes []supervisor.Snapshot) string {
	var b strings.Builder
	fmt.Fprintln(&b, "=== Process-Report ===")
	b.WriteString(ProcessSMI(cores, processes))
	fmt.Fprintln(&b)
	b.WriteString(Vmstat(mem))
	fmt.Fprintln(&b)
	b.WriteString(ScreenLS(processes))
	return b.String()
}

// WriteFile renders Generate's output and writes it to path.
func WriteFile(path string, cores []supervisor.CoreStats, mem supervisor.MemoryStats, processes []supervisor.Snapshot) error {
	return os.WriteFile(path, []byte(Generate(cores, mem, processes)), 0o644)
}
