/*
 * vmux - Supervisor: admission, routing, the PCB arena, and the random
 * process generator.
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

// Package supervisor owns every Core and the shared MMU, admits processes,
// routes them to a Core by processID mod coreCount, and is the single
// owner of every PCB: Cores and the master list both refer to a PCB only
// by its processID, resolving through the Supervisor's arena.
package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/vmux-emu/vmux/emu/clock"
	"github.com/vmux-emu/vmux/emu/core"
	"github.com/vmux-emu/vmux/emu/instr"
	"github.com/vmux-emu/vmux/emu/mmu"
	"github.com/vmux-emu/vmux/emu/process"
)

// GeneratorConfig bounds the random process generator's synthetic
// programs, sourced from config.txt's batch-process-frequency/
// min-instructions/max-instructions/min-memory-per-process/
// max-memory-per-process keys.
type GeneratorConfig struct {
	BatchProcessFrequency clock.Tick
	MinInstructions       int
	MaxInstructions       int
	MinMemoryPerProcess   int // already expanded from its config exponent
	MaxMemoryPerProcess   int // already expanded from its config exponent
}

// Supervisor is the single owner of every PCB (the arena), the admission
// router, and the optional random-process generator.
type Supervisor struct {
	clock *clock.Clock
	mmu   *mmu.MMU
	log   *slog.Logger
	gen   GeneratorConfig
	rng   *rand.Rand

	cores []*core.Core

	mu               sync.Mutex
	arena            map[uint64]*process.PCB
	order            []uint64 // admission order, for screen -ls and the master list
	nextID           uint64
	coreOf           map[uint64]int
	generator        bool
	generatorStarted bool

	eg     *errgroup.Group
	egCtx  context.Context
	cancel context.CancelFunc
}

// New builds a Supervisor over numCores Cores sharing m, all driven by clk.
// algorithm/quantum/execDelay are forwarded to every Core identically.
func New(numCores int, algorithm core.Algorithm, quantum int, execDelay clock.Tick, clk *clock.Clock, m *mmu.MMU, gen GeneratorConfig, log *slog.Logger) *Supervisor {
	if log == nil {
		log = slog.Default()
	}
	s := &Supervisor{
		clock:  clk,
		mmu:    m,
		log:    log.With("component", "supervisor"),
		gen:    gen,
		rng:    rand.New(rand.NewSource(1)),
		arena:  map[uint64]*process.PCB{},
		coreOf: map[uint64]int{},
	}
	s.cores = make([]*core.Core, numCores)
	for i := 0; i < numCores; i++ {
		s.cores[i] = core.New(i, algorithm, quantum, execDelay, clk, m, s.lookup, log)
	}
	return s
}

// lookup is the Lookup every Core was built with: resolve a processID
// against the Supervisor's arena, the PCB's single owner.
func (s *Supervisor) lookup(processID uint64) (*process.PCB, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pcb, ok := s.arena[processID]
	return pcb, ok
}

// Admit assigns the next monotonic processID, builds the PCB, routes it to
// core processID mod coreCount, and records it in the arena and master
// list.
func (s *Supervisor) Admit(name string, memoryRequired int, text []instr.Instruction) (*process.PCB, error) {
	if len(s.cores) == 0 {
		return nil, fmt.Errorf("supervisor: no cores configured")
	}
	s.mu.Lock()
	processID := s.nextID
	s.nextID++
	targetCore := int(processID % uint64(len(s.cores)))
	s.mu.Unlock()

	proc := &process.Process{ID: processID, TextSection: text}
	pcb := process.New(processID, name, memoryRequired, proc)

	s.mu.Lock()
	s.arena[processID] = pcb
	s.order = append(s.order, processID)
	s.coreOf[processID] = targetCore
	s.mu.Unlock()

	if err := s.cores[targetCore].Assign(pcb); err != nil {
		return nil, fmt.Errorf("supervisor: admit %s: %w", name, err)
	}
	s.log.Info("admitted process", "process", name, "process_id", processID, "core", targetCore)
	return pcb, nil
}

// IsContained reports whether a process with name was ever admitted.
func (s *Supervisor) IsContained(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.order {
		if s.arena[id].Name == name {
			return true
		}
	}
	return false
}

// IsRunning reports whether the named process is currently Running.
func (s *Supervisor) IsRunning(name string) bool {
	s.mu.Lock()
	pcb := s.findLocked(name)
	s.mu.Unlock()
	return pcb != nil && pcb.State() == process.StateRunning
}

func (s *Supervisor) findLocked(name string) *process.PCB {
	for _, id := range s.order {
		if pcb := s.arena[id]; pcb.Name == name {
			return pcb
		}
	}
	return nil
}

// AverageUtilization returns the mean of every Core's sliding-window
// utilization.
func (s *Supervisor) AverageUtilization() float64 {
	if len(s.cores) == 0 {
		return 0
	}
	total := 0.0
	for _, c := range s.cores {
		total += c.Utilization()
	}
	return total / float64(len(s.cores))
}

// MemoryStats reports the MMU's demand-paging counters: pagesIn, pagesOut
// and availableBytes, for vmstat and Process-Report.txt.
type MemoryStats struct {
	PagesIn        uint64
	PagesOut       uint64
	AvailableBytes int
}

// MemoryStats snapshots the shared MMU's accounting.
func (s *Supervisor) MemoryStats() MemoryStats {
	return MemoryStats{
		PagesIn:        s.mmu.PagesIn(),
		PagesOut:       s.mmu.PagesOut(),
		AvailableBytes: s.mmu.AvailableBytes(),
	}
}

// CoreStats is one Core's point-in-time status, for process-smi.
type CoreStats struct {
	ID          int
	Utilization float64
	ReadyLen    int
}

// CoreStats snapshots every Core's status.
func (s *Supervisor) CoreStats() []CoreStats {
	out := make([]CoreStats, len(s.cores))
	for i, c := range s.cores {
		out[i] = CoreStats{ID: i, Utilization: c.Utilization(), ReadyLen: c.ReadyLen()}
	}
	return out
}

// Snapshot is one PCB's observable state for the master list (screen -ls,
// Process-Report.txt): the processID plus a copy of what's safe to read
// without holding the PCB's own lock indefinitely.
type Snapshot struct {
	ProcessID      uint64
	Name           string
	State          process.State
	ProgramCounter int
	TextLength     int
	Core           int
}

// Processes returns a Snapshot of every admitted process, in admission
// order.
func (s *Supervisor) Processes() []Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Snapshot, 0, len(s.order))
	for _, id := range s.order {
		pcb := s.arena[id]
		out = append(out, Snapshot{
			ProcessID:      id,
			Name:           pcb.Name,
			State:          pcb.State(),
			ProgramCounter: pcb.ProgramCounterValue(),
			TextLength:     len(pcb.Process.TextSection),
			Core:           s.coreOf[id],
		})
	}
	return out
}

// Run starts the Clock, every Core's scheduler loop, and -- if
// startGenerator is true -- the random process generator, all under one
// errgroup.Group that Stop cancels and waits on. Replaces a hand-rolled
// WaitGroup plus one done channel per worker. Each Core's scheduler loop
// runs on a plain goroutine started by its errgroup worker, every worker
// returns nil, and panics are not recovered, so Stop's error is always nil.
func (s *Supervisor) Run(ctx context.Context, startGenerator bool) {
	egCtx, cancel := context.WithCancel(ctx)
	eg, egCtx := errgroup.WithContext(egCtx)
	s.eg = eg
	s.egCtx = egCtx
	s.cancel = cancel

	eg.Go(func() error {
		s.clock.Run()
		<-egCtx.Done()
		s.clock.Stop()
		return nil
	})

	for _, c := range s.cores {
		c := c
		eg.Go(func() error {
			go c.Run()
			<-egCtx.Done()
			c.Stop()
			return nil
		})
	}

	if startGenerator {
		s.mu.Lock()
		s.startGeneratorLocked()
		s.mu.Unlock()
	}
}

// StartGenerator enables the random process generator (scheduler-test).
// It lazily starts the generator goroutine on first use; later calls
// after StopGenerator just flip generation back on, since the goroutine
// itself is cheap to leave parked on the Clock between admissions.
func (s *Supervisor) StartGenerator() error {
	if s.eg == nil {
		return fmt.Errorf("supervisor: Run must be called before StartGenerator")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generator {
		return fmt.Errorf("supervisor: generator already running")
	}
	s.startGeneratorLocked()
	return nil
}

func (s *Supervisor) startGeneratorLocked() {
	s.generator = true
	if s.generatorStarted {
		return
	}
	s.generatorStarted = true
	s.eg.Go(func() error {
		return s.generatorLoop(s.egCtx)
	})
}

// StopGenerator disables admission of new synthetic processes
// (scheduler-stop) without tearing down the emulator itself.
func (s *Supervisor) StopGenerator() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.generator {
		return fmt.Errorf("supervisor: generator is not running")
	}
	s.generator = false
	return nil
}

func (s *Supervisor) generatorEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generator
}

// generatorLoop admits a random synthetic process named Process_<n> every
// BatchProcessFrequency ticks, with a random instruction sequence and a
// random power-of-two memoryRequired in [MinMemoryPerProcess,
// MaxMemoryPerProcess], while the generator is enabled.
func (s *Supervisor) generatorLoop(ctx context.Context) error {
	n := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		s.clock.Wait(s.gen.BatchProcessFrequency)
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		if !s.generatorEnabled() {
			continue
		}
		n++
		name := fmt.Sprintf("Process_%d", n)
		mem := s.randomMemorySize()
		text := s.randomProgram()
		if _, err := s.Admit(name, mem, text); err != nil {
			s.log.Error("generator admit failed", "process", name, "err", err)
		}
	}
}

func (s *Supervisor) randomMemorySize() int {
	lo, hi := s.gen.MinMemoryPerProcess, s.gen.MaxMemoryPerProcess
	if lo <= 0 {
		lo = 1
	}
	if hi < lo {
		hi = lo
	}
	// both bounds are already powers of two; pick uniformly among the
	// powers of two in [lo, hi].
	var choices []int
	for v := lo; v <= hi; v *= 2 {
		choices = append(choices, v)
	}
	return choices[s.rng.Intn(len(choices))]
}

func (s *Supervisor) randomProgram() []instr.Instruction {
	lo, hi := s.gen.MinInstructions, s.gen.MaxInstructions
	if hi < lo {
		hi = lo
	}
	count := lo
	if hi > lo {
		count = lo + s.rng.Intn(hi-lo+1)
	}
	program := make([]instr.Instruction, 0, count+1)
	program = append(program, instr.DeclareWith("X", 0))
	for i := 0; i < count; i++ {
		switch s.rng.Intn(3) {
		case 0:
			program = append(program, instr.Add("X", instr.Var("X"), instr.Lit(1)))
		case 1:
			program = append(program, instr.Sub("X", instr.Var("X"), instr.Lit(1)))
		default:
			program = append(program, instr.PrintVar("x=", "X"))
		}
	}
	return program
}

// Stop cancels every worker started by Run and waits for them to exit.
func (s *Supervisor) Stop() error {
	if s.cancel == nil {
		return nil
	}
	s.cancel()
	return s.eg.Wait()
}
