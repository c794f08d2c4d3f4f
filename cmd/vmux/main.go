/*
 * vmux - Main process.
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

package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	getopt "github.com/pborman/getopt/v2"

	"github.com/vmux-emu/vmux/config/configparser"
	"github.com/vmux-emu/vmux/emu/clock"
	"github.com/vmux-emu/vmux/emu/core"
	"github.com/vmux-emu/vmux/emu/memory"
	"github.com/vmux-emu/vmux/emu/mmu"
	"github.com/vmux-emu/vmux/emu/supervisor"
	logger "github.com/vmux-emu/vmux/internal/telemetry/logwriter"
	"github.com/vmux-emu/vmux/report"
	"github.com/vmux-emu/vmux/shell/parser"
	"github.com/vmux-emu/vmux/shell/reader"
)

func main() {
	optConfig := getopt.StringLong("config", 'c', "config.txt", "Configuration file")
	optLogFile := getopt.StringLong("log", 'l', "", "Log file")
	optReport := getopt.StringLong("report", 'r', "", "Write Process-Report.txt to this path on exit")
	optDebug := getopt.BoolLong("debug", 'd', "Enable debug-level logging")
	optHelp := getopt.BoolLong("help", 'h', "Help")
	getopt.Parse()

	if *optHelp {
		getopt.Usage()
		os.Exit(0)
	}

	var file *os.File
	if *optLogFile != "" {
		var err error
		file, err = os.Create(*optLogFile)
		if err != nil {
			fmt.Fprintln(os.Stderr, "vmux: cannot open log file: "+err.Error())
			os.Exit(1)
		}
	}
	programLevel := new(slog.LevelVar)
	if *optDebug {
		programLevel.Set(slog.LevelDebug)
	}
	log := slog.New(logger.NewHandler(file, &slog.HandlerOptions{Level: programLevel}, *optDebug))
	slog.SetDefault(log)

	log.Info("vmux started")

	if _, err := os.Stat(*optConfig); os.IsNotExist(err) {
		log.Error("configuration file not found", "path", *optConfig)
		os.Exit(1)
	}

	settings, err := configparser.LoadConfigFile(*optConfig)
	if err != nil {
		log.Error(err.Error())
		os.Exit(1)
	}

	store, err := memory.NewBackingStore(filepath.Join(filepath.Dir(*optConfig), "backing-store.txt"), settings.MemoryPerFrame)
	if err != nil {
		log.Error(err.Error())
		os.Exit(1)
	}
	numSlots := settings.MaxOverallMemory / settings.MemoryPerFrame
	phys := memory.NewPhysicalMemory(numSlots, settings.MemoryPerFrame, store)
	m := mmu.New(phys, store, settings.MemoryPerFrame, log)

	clk := clock.New(time.Millisecond)

	var algorithm core.Algorithm
	if settings.SchedulingAlgorithm == configparser.RoundRobin {
		algorithm = core.RoundRobin
	} else {
		algorithm = core.FCFS
	}

	gen := supervisor.GeneratorConfig{
		BatchProcessFrequency: clock.Tick(settings.BatchProcessFrequency),
		MinInstructions:       int(settings.MinInstructions),
		MaxInstructions:       int(settings.MaxInstructions),
		MinMemoryPerProcess:   settings.MinMemoryPerProcess,
		MaxMemoryPerProcess:   settings.MaxMemoryPerProcess,
	}
	sup := supervisor.New(settings.NumCores, algorithm, int(settings.QuantumCycles), clock.Tick(settings.DelayPerExecution), clk, m, gen, log)

	d := parser.NewDispatcher(sup)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		reader.ConsoleReader(d, os.Stdout)
		close(done)
	}()

	select {
	case <-sigChan:
		log.Info("got quit signal")
	case <-done:
		log.Info("shell exited")
	}

	if d.Supervisor != nil {
		_ = d.Supervisor.Stop()
	}

	if *optReport != "" {
		if err := report.WriteFile(*optReport, sup.CoreStats(), sup.MemoryStats(), sup.Processes()); err != nil {
			log.Error("writing report", "error", err.Error())
		}
	}

	log.Info("vmux stopped")
}
