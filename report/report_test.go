package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vmux-emu/vmux/emu/process"
	"github.com/vmux-emu/vmux/emu/supervisor"
)

func sampleSnapshots() []supervisor.Snapshot {
	return []supervisor.Snapshot{
		{ProcessID: 0, Name: "Process_0", State: process.StateRunning, ProgramCounter: 2, TextLength: 10, Core: 0},
		{ProcessID: 1, Name: "Process_1", State: process.StateTerminated, ProgramCounter: 10, TextLength: 10, Core: 1},
	}
}

func TestProcessSMIListsRunningByCore(t *testing.T) {
	cores := []supervisor.CoreStats{{ID: 0, Utilization: 50, ReadyLen: 1}, {ID: 1, Utilization: 0, ReadyLen: 0}}
	out := ProcessSMI(cores, sampleSnapshots())
	require.Contains(t, out, "Process_0")
	require.NotContains(t, strings.SplitN(out, "\n", 3)[2], "Process_1")
}

func TestVmstatFormatsCounters(t *testing.T) {
	out := Vmstat(supervisor.MemoryStats{PagesIn: 4, PagesOut: 1, AvailableBytes: 32})
	require.Equal(t, "pagesIn=4 pagesOut=1 availableBytes=32\n", out)
}

func TestScreenLSSplitsRunningAndFinished(t *testing.T) {
	out := ScreenLS(sampleSnapshots())
	running := strings.Index(out, "Process_0")
	finished := strings.Index(out, "Process_1")
	require.True(t, running >= 0 && finished >= 0 && running < finished)
}

func TestWriteFileProducesReadableFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Process-Report.txt")
	cores := []supervisor.CoreStats{{ID: 0, Utilization: 100, ReadyLen: 0}}
	mem := supervisor.MemoryStats{PagesIn: 1, PagesOut: 0, AvailableBytes: 16}

	require.NoError(t, WriteFile(path, cores, mem, sampleSnapshots()))

	body, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(body), "Process-Report")
}
