/*
 * vmux - Configuration file parser test set.
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

package configparser

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vmux-emu/vmux/emu/mmu"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.txt")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadConfigFileDefaults(t *testing.T) {
	path := writeConfig(t, "# empty config, defaults apply\n")
	settings, err := LoadConfigFile(path)
	require.NoError(t, err)
	require.Equal(t, 1, settings.NumCores)
	require.Equal(t, FCFS, settings.SchedulingAlgorithm)
}

func TestLoadConfigFileParsesAllKeys(t *testing.T) {
	path := writeConfig(t, `
num-cores 4
scheduling-algorithm RR
quantum-cycles 10
batch-process-frequency 50
min-instructions 5
max-instructions 20
delay-per-execution 0
memory-per-frame 16
min-memory-per-process 4
max-memory-per-process 8
max-overall-memory 2048
`)
	settings, err := LoadConfigFile(path)
	require.NoError(t, err)

	require.Equal(t, 4, settings.NumCores)
	require.Equal(t, RoundRobin, settings.SchedulingAlgorithm)
	require.Equal(t, uint32(10), settings.QuantumCycles)
	require.Equal(t, uint32(50), settings.BatchProcessFrequency)
	require.Equal(t, uint32(5), settings.MinInstructions)
	require.Equal(t, uint32(20), settings.MaxInstructions)
	require.Equal(t, 16, settings.MemoryPerFrame)
	require.Equal(t, 16, settings.MinMemoryPerProcess)  // 2^4
	require.Equal(t, 256, settings.MaxMemoryPerProcess) // 2^8
	require.Equal(t, 2048, settings.MaxOverallMemory)
}

func TestNumCoresClampedToRange(t *testing.T) {
	path := writeConfig(t, "num-cores 9999\n")
	settings, err := LoadConfigFile(path)
	require.NoError(t, err)
	require.Equal(t, 128, settings.NumCores)

	path = writeConfig(t, "num-cores 0\n")
	settings, err = LoadConfigFile(path)
	require.NoError(t, err)
	require.Equal(t, 1, settings.NumCores)
}

func TestMemoryPerFrameRejectsNonPowerOfTwo(t *testing.T) {
	path := writeConfig(t, "memory-per-frame 17\n")
	_, err := LoadConfigFile(path)
	require.Error(t, err)
}

func TestUnknownKeyIsAnError(t *testing.T) {
	path := writeConfig(t, "not-a-real-key 1\n")
	_, err := LoadConfigFile(path)
	require.Error(t, err)
}

func TestCommentsAndBlankLinesIgnored(t *testing.T) {
	path := writeConfig(t, "\n# a comment\n   \nnum-cores 2 # inline comment\n")
	settings, err := LoadConfigFile(path)
	require.NoError(t, err)
	require.Equal(t, 2, settings.NumCores)
}

func TestDebugDirectiveAdjustsRegisteredComponent(t *testing.T) {
	mmu.DebugLevel.Set(slog.LevelInfo)
	path := writeConfig(t, "debug MMU,DEBUG\n")
	_, err := LoadConfigFile(path)
	require.NoError(t, err)
	require.Equal(t, slog.LevelDebug, mmu.DebugLevel.Level())
}

func TestDebugDirectiveRejectsUnknownComponent(t *testing.T) {
	path := writeConfig(t, "debug NOSUCHTHING,DEBUG\n")
	_, err := LoadConfigFile(path)
	require.Error(t, err)
}

func TestMissingFileIsConfigError(t *testing.T) {
	_, err := LoadConfigFile(filepath.Join(t.TempDir(), "does-not-exist.txt"))
	require.Error(t, err)
}
