/*
 * vmux - Process control block and process identity.
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

// Package process holds the PCB and Process types: the identity, state
// machine, and per-process log that the scheduler and execution engine
// operate on.
package process

import (
	"fmt"
	"sync"

	"github.com/vmux-emu/vmux/emu/instr"
)

// State is one point in a PCB's lifecycle.
type State int

const (
	StateNew State = iota
	StateReady
	StateRunning
	StateWaiting
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "New"
	case StateReady:
		return "Ready"
	case StateRunning:
		return "Running"
	case StateWaiting:
		return "Waiting"
	case StateTerminated:
		return "Terminated"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Process is the unit of execution: its identity, logical variable store,
// and parsed text section.
type Process struct {
	ID           uint64
	LogicalStore instr.LogicalStore
	TextSection  []instr.Instruction
}

// PCB is the process control block the scheduler and executor mutate.
// Its mutable fields (state, ProgramCounter, log) are guarded by mu and,
// once the PCB is admitted, advanced only by the Core goroutine that
// currently holds it -- no PCB is ever run by two cores at once.
type PCB struct {
	mu sync.Mutex

	ProcessID      uint64
	Name           string
	state          State
	ProgramCounter int
	Priority       int
	MemoryRequired int

	log []string

	Process *Process
}

// New builds a fresh PCB in state New for the given process identity.
func New(processID uint64, name string, memoryRequired int, proc *Process) *PCB {
	return &PCB{
		ProcessID:      processID,
		Name:           name,
		state:          StateNew,
		MemoryRequired: memoryRequired,
		Process:        proc,
	}
}

// State returns the PCB's current lifecycle state.
func (p *PCB) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// SetState transitions the PCB to s.
func (p *PCB) SetState(s State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = s
}

// Log appends a line to the process's log.
func (p *PCB) Log(line string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.log = append(p.log, line)
}

// Logf appends a formatted line to the process's log.
func (p *PCB) Logf(format string, args ...any) {
	p.Log(fmt.Sprintf(format, args...))
}

// LogLines returns a copy of the accumulated log.
func (p *PCB) LogLines() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.log))
	copy(out, p.log)
	return out
}

// ProgramCounterValue returns a snapshot of the program counter, safe to
// call from a goroutine other than the Core that currently owns this PCB
// (e.g. a report or vmstat query).
func (p *PCB) ProgramCounterValue() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ProgramCounter
}

// CurrentInstruction returns the instruction at the program counter, for
// the Core that currently owns this PCB to execute.
func (p *PCB) CurrentInstruction() instr.Instruction {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Process.TextSection[p.ProgramCounter]
}

// AdvanceProgramCounter moves the program counter forward by one
// instruction. Only the Core that currently owns this PCB calls it, but it
// still takes the lock so concurrent readers (ProgramCounterValue, AtEnd)
// never observe a torn update.
func (p *PCB) AdvanceProgramCounter() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ProgramCounter++
}

// AtEnd reports whether the program counter has run off the end of the
// process's text section.
func (p *PCB) AtEnd() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ProgramCounter >= len(p.Process.TextSection)
}
