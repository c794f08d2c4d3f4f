/*
   Core scheduler loop.

   Copyright (c) 2024, Richard Cornwell

   Permission is hereby granted, free of charge, to any person obtaining a
   copy of this software and associated documentation files (the "Software"),
   to deal in the Software without restriction, including without limitation
   the rights to use, copy, modify, merge, publish, distribute, sublicense,
   and/or sell copies of the Software, and to permit persons to whom the
   Software is furnished to do so, subject to the following conditions:

   The above copyright notice and this permission notice shall be included in
   all copies or substantial portions of the Software.

   THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
   IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
   FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT.  IN NO EVENT SHALL
   ROBERT M SUPNIK BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
   IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
   CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.

*/

// Package core implements one scheduling unit: a FIFO ready queue of PCBs,
// an FCFS or round-robin loop driven by the shared Clock, and the
// instruction executor that evaluates a process's text section against
// its logical store and the shared MMU.
//
// The goroutine lifecycle (wg/done/select, a running flag checked between
// units of work) follows this codebase's CPU core loop; what changed is
// what a "unit of work" is -- there it was a CPU cycle, here it is one
// instruction.
package core

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/vmux-emu/vmux/config/debugconfig"
	"github.com/vmux-emu/vmux/emu/clock"
	"github.com/vmux-emu/vmux/emu/instr"
	"github.com/vmux-emu/vmux/emu/mmu"
	"github.com/vmux-emu/vmux/emu/process"
)

// DebugLevel is this package's registered debugconfig level, adjustable at
// runtime from a "debug CORE,<level>" config.txt line.
var DebugLevel = new(slog.LevelVar)

func init() {
	debugconfig.Register("CORE", DebugLevel)
}

// Algorithm selects the scheduling discipline a Core runs.
type Algorithm int

const (
	FCFS Algorithm = iota
	RoundRobin
)

// utilizationWindowSize is the fixed sliding-window length over which a
// Core reports utilization(), per spec.md section 4.5.
const utilizationWindowSize = 10

// Lookup resolves a processID to its PCB. A Core never owns a PCB; it asks
// its Lookup (backed by the Supervisor's arena) each time it needs one, so
// the PCB has exactly one owner instead of being reference-shared between
// a Core's ready queue and the Supervisor's master list.
type Lookup func(processID uint64) (*process.PCB, bool)

// Core owns a ready queue of process IDs, a reference to the shared MMU,
// and a per-core utilization window. One Core runs on one dedicated
// goroutine.
type Core struct {
	id        int
	algorithm Algorithm
	quantum   int
	execDelay clock.Tick

	clock  *clock.Clock
	mmu    *mmu.MMU
	lookup Lookup
	log    *slog.Logger

	qmu   sync.Mutex
	ready []uint64

	wmu    sync.Mutex
	window [utilizationWindowSize]bool
	filled int
	cursor int

	wg      sync.WaitGroup
	done    chan struct{}
	running atomic.Bool
}

// New builds a Core. quantum is ignored under FCFS. lookup resolves a
// processID enqueued by Assign back to its PCB; it is almost always a
// Supervisor's arena lookup, injected rather than owned by the Core.
func New(id int, algorithm Algorithm, quantum int, execDelay clock.Tick, clk *clock.Clock, m *mmu.MMU, lookup Lookup, log *slog.Logger) *Core {
	if log == nil {
		log = slog.Default()
	}
	c := &Core{
		id:        id,
		algorithm: algorithm,
		quantum:   quantum,
		execDelay: execDelay,
		clock:     clk,
		mmu:       m,
		lookup:    lookup,
		log:       log.With("component", "core", "core_id", id),
		done:      make(chan struct{}),
	}
	c.running.Store(true)
	return c
}

// Assign admits pcb to this Core: marks it Ready, asks the MMU to create
// its page table, and enqueues its processID. The Core retains no pointer
// to pcb itself -- only the caller's arena does.
func (c *Core) Assign(pcb *process.PCB) error {
	pcb.SetState(process.StateReady)
	if err := c.mmu.CreateTable(pcb.ProcessID, pcb.MemoryRequired); err != nil {
		return fmt.Errorf("core %d: assign %s: %w", c.id, pcb.Name, err)
	}
	c.qmu.Lock()
	c.ready = append(c.ready, pcb.ProcessID)
	c.qmu.Unlock()
	return nil
}

func (c *Core) dequeue() (*process.PCB, bool) {
	c.qmu.Lock()
	if len(c.ready) == 0 {
		c.qmu.Unlock()
		return nil, false
	}
	id := c.ready[0]
	c.ready = c.ready[1:]
	c.qmu.Unlock()
	return c.lookup(id)
}

func (c *Core) enqueue(processID uint64) {
	c.qmu.Lock()
	c.ready = append(c.ready, processID)
	c.qmu.Unlock()
}

// ReadyLen reports the current ready-queue depth, for process-smi/vmstat.
func (c *Core) ReadyLen() int {
	c.qmu.Lock()
	defer c.qmu.Unlock()
	return len(c.ready)
}

// recordTick pushes one busy/idle bit into the sliding utilization window.
func (c *Core) recordTick(busy bool) {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	c.window[c.cursor] = busy
	c.cursor = (c.cursor + 1) % utilizationWindowSize
	if c.filled < utilizationWindowSize {
		c.filled++
	}
}

// Utilization returns busy/total*100 over the sliding window.
func (c *Core) Utilization() float64 {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if c.filled == 0 {
		return 0
	}
	busy := 0
	for i := 0; i < c.filled; i++ {
		if c.window[i] {
			busy++
		}
	}
	return float64(busy) / float64(c.filled) * 100
}

// Run is the scheduler loop; call it on its own goroutine. It returns once
// Stop is called.
func (c *Core) Run() {
	c.wg.Add(1)
	defer c.wg.Done()
	for {
		select {
		case <-c.done:
			return
		default:
		}
		if !c.step() {
			return
		}
	}
}

// step executes one scheduling decision: dequeue-and-idle, or run one PCB
// according to the configured algorithm. Returns false once done has
// fired mid-wait.
func (c *Core) step() bool {
	pcb, ok := c.dequeue()
	if !ok {
		select {
		case <-c.done:
			return false
		default:
		}
		c.clock.Wait(10)
		c.recordTick(false)
		return true
	}
	if pcb == nil {
		// The id was dequeued but the arena no longer knows it; nothing to run.
		return true
	}

	loaded, err := c.mmu.LoadProcess(pcb.ProcessID)
	if err != nil {
		c.log.Error("load process failed", "process", pcb.Name, "err", err)
		return true
	}
	if !loaded {
		pcb.SetState(process.StateReady)
		c.enqueue(pcb.ProcessID)
		return true
	}
	pcb.SetState(process.StateRunning)

	switch c.algorithm {
	case RoundRobin:
		c.runQuantum(pcb)
	default:
		c.runToCompletion(pcb)
	}
	return true
}

func (c *Core) runToCompletion(pcb *process.PCB) {
	for !pcb.AtEnd() {
		if !c.running.Load() {
			break
		}
		c.executeOne(pcb)
	}
	if err := c.mmu.Release(pcb.ProcessID); err != nil {
		c.log.Error("release failed", "process", pcb.Name, "err", err)
	}
	pcb.SetState(process.StateTerminated)
}

func (c *Core) runQuantum(pcb *process.PCB) {
	for i := 0; i < c.quantum && !pcb.AtEnd(); i++ {
		if !c.running.Load() {
			break
		}
		c.executeOne(pcb)
	}
	if pcb.AtEnd() {
		if err := c.mmu.Release(pcb.ProcessID); err != nil {
			c.log.Error("release failed", "process", pcb.Name, "err", err)
		}
		pcb.SetState(process.StateTerminated)
		return
	}
	pcb.SetState(process.StateReady)
	c.enqueue(pcb.ProcessID)
}

// executeOne runs the instruction at pcb.ProgramCounter, waits the
// per-instruction delay (+1 so delay=0 still makes forward progress), and
// advances the program counter.
func (c *Core) executeOne(pcb *process.PCB) {
	ins := pcb.CurrentInstruction()
	c.execute(pcb, ins)
	delay := c.execDelay + 1
	c.clock.Wait(delay)
	for i := clock.Tick(0); i < delay; i++ {
		c.recordTick(true)
	}
	pcb.AdvanceProgramCounter()
}

// execute dispatches a single instruction. For recurses inline without
// advancing pcb.ProgramCounter, so a FOR body is atomic with respect to
// round-robin preemption between its own iterations (documented deviation
// carried over unchanged from the original, per spec.md section 9).
func (c *Core) execute(pcb *process.PCB, ins instr.Instruction) {
	store := &pcb.Process.LogicalStore
	switch ins.Kind {
	case instr.KindDeclare:
		if ins.HasInit {
			store.InsertWithValue(ins.DeclareName, ins.DeclareInit)
		} else {
			store.Declare(ins.DeclareName)
		}

	case instr.KindAdd:
		c.arith(pcb, ins, func(a, b uint16) uint16 { return a + b })

	case instr.KindSub:
		c.arith(pcb, ins, func(a, b uint16) uint16 { return a - b })

	case instr.KindPrint:
		if !ins.HasVar {
			pcb.Log(ins.Message)
			return
		}
		v, ok := store.GetValue(ins.PrintVar)
		if !ok {
			pcb.Logf("%s<error: undeclared variable %s>", ins.Message, ins.PrintVar)
			return
		}
		pcb.Logf("%s%d", ins.Message, v)

	case instr.KindRead:
		hexVal, err := c.mmu.Read(pcb.ProcessID, hexToInt(ins.Address), 2)
		if err != nil {
			pcb.Logf("read %s failed: %v", ins.Address, err)
			return
		}
		v := hexToUint16(hexVal)
		if store.InsertWithValue(ins.ReadDst, v) == instr.AlreadyPresent {
			store.SetValue(ins.ReadDst, v)
		}

	case instr.KindWrite:
		data := []byte{byte(ins.WriteValue >> 8), byte(ins.WriteValue)}
		if err := c.mmu.Write(pcb.ProcessID, hexToInt(ins.Address), data); err != nil {
			pcb.Logf("write %s failed: %v", ins.Address, err)
		}

	case instr.KindSleep:
		c.clock.Wait(clock.Tick(ins.SleepTicks))
		for i := uint8(0); i < ins.SleepTicks; i++ {
			c.recordTick(false)
		}

	case instr.KindFor:
		for i := uint32(0); i < ins.Count; i++ {
			for _, body := range ins.Body {
				c.execute(pcb, body)
			}
		}
	}
}

// arith resolves two operands (literal as-is, variable auto-declared at 0
// if absent), applies op with 16-bit wraparound, and stores into dest.
// setValue on an undeclared dest changes nothing and logs an error line to
// the process log.
func (c *Core) arith(pcb *process.PCB, ins instr.Instruction, op func(a, b uint16) uint16) {
	store := &pcb.Process.LogicalStore
	a, ok := c.resolve(store, ins.A)
	if !ok {
		pcb.Log("arithmetic failed: logical store full")
		return
	}
	b, ok := c.resolve(store, ins.B)
	if !ok {
		pcb.Log("arithmetic failed: logical store full")
		return
	}
	if !store.SetValue(ins.Dest, op(a, b)) {
		pcb.Logf("arithmetic failed: undeclared destination %s", ins.Dest)
	}
}

func (c *Core) resolve(store *instr.LogicalStore, operand instr.Operand) (uint16, bool) {
	if operand.IsLit {
		return operand.Literal, true
	}
	if v, ok := store.GetValue(operand.Variable); ok {
		return v, true
	}
	if store.InsertWithValue(operand.Variable, 0) == instr.Full {
		return 0, false
	}
	return 0, true
}

// Stop signals the scheduler loop to exit and waits for it to finish.
func (c *Core) Stop() {
	c.running.Store(false)
	select {
	case <-c.done:
	default:
		close(c.done)
	}
	c.wg.Wait()
}

func hexToInt(hexAddr string) int {
	var v int
	fmt.Sscanf(hexAddr, "%x", &v)
	return v
}

func hexToUint16(hexVal string) uint16 {
	var v uint
	fmt.Sscanf(hexVal, "%x", &v)
	return uint16(v)
}
