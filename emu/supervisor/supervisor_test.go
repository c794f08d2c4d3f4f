package supervisor

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vmux-emu/vmux/emu/clock"
	"github.com/vmux-emu/vmux/emu/core"
	"github.com/vmux-emu/vmux/emu/instr"
	"github.com/vmux-emu/vmux/emu/memory"
	"github.com/vmux-emu/vmux/emu/mmu"
	"github.com/vmux-emu/vmux/emu/process"
)

func newTestSupervisor(t *testing.T, numCores int, algo core.Algorithm, quantum int) *Supervisor {
	t.Helper()
	store, err := memory.NewBackingStore(filepath.Join(t.TempDir(), "backing-store.txt"), 16)
	require.NoError(t, err)
	phys := memory.NewPhysicalMemory(8, 16, store)
	m := mmu.New(phys, store, 16, nil)

	// A virtual (period-0) clock, pumped by a tight Advance() loop instead
	// of a wall-clock ticker, so scenarios run deterministically without
	// real sleeps. Supervisor.Run's own clk.Run() is a no-op against a
	// period-0 clock (its clk.Stop() only releases parked waiters); this
	// pump is the only tick source.
	clk := clock.New(0)
	pumpDone := make(chan struct{})
	go func() {
		for {
			select {
			case <-pumpDone:
				return
			default:
				clk.Advance()
			}
		}
	}()
	t.Cleanup(func() { close(pumpDone) })

	gen := GeneratorConfig{
		BatchProcessFrequency: 5,
		MinInstructions:       1,
		MaxInstructions:       3,
		MinMemoryPerProcess:   16,
		MaxMemoryPerProcess:   16,
	}
	return New(numCores, algo, quantum, 0, clk, m, gen, nil)
}

func TestAdmitRoutesByProcessIDModCoreCount(t *testing.T) {
	s := newTestSupervisor(t, 3, core.FCFS, 0)

	p0, err := s.Admit("Process_0", 16, []instr.Instruction{instr.Print("a")})
	require.NoError(t, err)
	p1, err := s.Admit("Process_1", 16, []instr.Instruction{instr.Print("b")})
	require.NoError(t, err)
	p2, err := s.Admit("Process_2", 16, []instr.Instruction{instr.Print("c")})
	require.NoError(t, err)
	p3, err := s.Admit("Process_3", 16, []instr.Instruction{instr.Print("d")})
	require.NoError(t, err)

	require.Equal(t, uint64(0), p0.ProcessID)
	require.Equal(t, uint64(1), p1.ProcessID)
	require.Equal(t, uint64(2), p2.ProcessID)
	require.Equal(t, uint64(3), p3.ProcessID)

	snaps := s.Processes()
	require.Len(t, snaps, 4)
	require.Equal(t, 0, snaps[0].Core)
	require.Equal(t, 1, snaps[1].Core)
	require.Equal(t, 2, snaps[2].Core)
	require.Equal(t, 0, snaps[3].Core) // processID 3 mod 3 cores == 0
}

func TestIsContainedAndIsRunning(t *testing.T) {
	s := newTestSupervisor(t, 1, core.FCFS, 0)
	require.False(t, s.IsContained("Process_0"))

	_, err := s.Admit("Process_0", 16, []instr.Instruction{instr.Sleep(50)})
	require.NoError(t, err)
	require.True(t, s.IsContained("Process_0"))
	require.False(t, s.IsContained("Process_99"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Run(ctx, false)

	require.Eventually(t, func() bool {
		return s.IsRunning("Process_0")
	}, time.Second, time.Millisecond)

	require.NoError(t, s.Stop())
}

func TestAverageUtilizationAndMemoryStats(t *testing.T) {
	s := newTestSupervisor(t, 2, core.FCFS, 0)
	require.Equal(t, float64(0), s.AverageUtilization())

	_, err := s.Admit("Process_0", 16, []instr.Instruction{
		instr.DeclareWith("X", 0),
		instr.Add("X", instr.Var("X"), instr.Lit(1)),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Run(ctx, false)

	require.Eventually(t, func() bool {
		snaps := s.Processes()
		return len(snaps) == 1 && snaps[0].Name == "Process_0" && snaps[0].State == process.StateTerminated
	}, time.Second, time.Millisecond)

	require.NoError(t, s.Stop())

	stats := s.MemoryStats()
	require.GreaterOrEqual(t, stats.PagesIn, uint64(1))
}

func TestGeneratorAdmitsSyntheticProcesses(t *testing.T) {
	s := newTestSupervisor(t, 1, core.FCFS, 0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Run(ctx, true)

	require.Eventually(t, func() bool {
		return s.IsContained("Process_1")
	}, 2*time.Second, time.Millisecond)

	require.NoError(t, s.Stop())
}
