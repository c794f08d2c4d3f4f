package process

import (
	"testing"

	"github.com/vmux-emu/vmux/emu/instr"
)

func TestStateTransitions(t *testing.T) {
	proc := &Process{ID: 1}
	pcb := New(1, "Process_1", 64, proc)

	if got := pcb.State(); got != StateNew {
		t.Fatalf("new PCB should start in StateNew, got %v", got)
	}

	pcb.SetState(StateReady)
	pcb.SetState(StateRunning)
	if pcb.State() != StateRunning {
		t.Fatalf("expected StateRunning, got %v", pcb.State())
	}
	pcb.SetState(StateTerminated)
	if pcb.State() != StateTerminated {
		t.Fatalf("expected StateTerminated, got %v", pcb.State())
	}
}

func TestLogAccumulates(t *testing.T) {
	proc := &Process{ID: 2}
	pcb := New(2, "Process_2", 32, proc)

	pcb.Log("started")
	pcb.Logf("v=%d", 42)

	lines := pcb.LogLines()
	if len(lines) != 2 || lines[0] != "started" || lines[1] != "v=42" {
		t.Fatalf("unexpected log lines: %v", lines)
	}
}

func TestAtEnd(t *testing.T) {
	proc := &Process{
		ID:          3,
		TextSection: []instr.Instruction{instr.Declare("X")},
	}
	pcb := New(3, "Process_3", 16, proc)

	if pcb.AtEnd() {
		t.Fatal("should not be at end before executing the single instruction")
	}
	pcb.ProgramCounter = 1
	if !pcb.AtEnd() {
		t.Fatal("should be at end once program counter reaches len(textSection)")
	}
}
