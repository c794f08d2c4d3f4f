/*
 * vmux - Configuration file parser
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

// Package configparser reads the emulator's config.txt: a line-oriented,
// whitespace-delimited key-value file, '#' starting a comment to end of
// line. Every key is validated and, where spec.md calls for it, clamped
// rather than rejected.
package configparser

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode"

	"github.com/vmux-emu/vmux/config/debugconfig"
	"github.com/vmux-emu/vmux/internal/vmerrors"
)

// Algorithm is the scheduling discipline named by scheduling-algorithm.
type Algorithm string

const (
	FCFS       Algorithm = "FCFS"
	RoundRobin Algorithm = "RR"
)

// Settings is the fully validated result of loading config.txt.
type Settings struct {
	NumCores              int
	SchedulingAlgorithm   Algorithm
	QuantumCycles         uint32
	BatchProcessFrequency uint32
	MinInstructions       uint32
	MaxInstructions       uint32
	DelayPerExecution     uint32
	MemoryPerFrame        int
	MinMemoryPerProcess   int // bytes, already expanded from its exponent
	MaxMemoryPerProcess   int
	MaxOverallMemory      int
}

func defaultSettings() *Settings {
	return &Settings{
		NumCores:            1,
		SchedulingAlgorithm: FCFS,
		QuantumCycles:       1,
		MemoryPerFrame:      16,
		MaxOverallMemory:    64,
	}
}

// LoadConfigFile reads and validates path, returning a ready-to-use
// Settings or a wrapped vmerrors.ErrConfig.
func LoadConfigFile(path string) (*Settings, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", vmerrors.ErrConfig, err)
	}
	defer file.Close()

	settings := defaultSettings()
	reader := bufio.NewReader(file)
	lineNumber := 0
	for {
		raw, err := reader.ReadString('\n')
		lineNumber++
		if len(raw) == 0 && err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("%w: reading %s: %v", vmerrors.ErrConfig, path, err)
		}
		if parseErr := applyLine(settings, raw); parseErr != nil {
			return nil, fmt.Errorf("%w: %s line %d: %v", vmerrors.ErrConfig, path, lineNumber, parseErr)
		}
		if err == io.EOF {
			break
		}
	}
	return settings, nil
}

// cursor scans one line, in the style of this codebase's other
// hand-rolled line parsers: a position index plus skipSpace/isEOL
// primitives instead of a regexp or split-based approach.
type cursor struct {
	line string
	pos  int
}

func (c *cursor) skipSpace() {
	for c.pos < len(c.line) && unicode.IsSpace(rune(c.line[c.pos])) {
		c.pos++
	}
}

func (c *cursor) isEOL() bool {
	return c.pos >= len(c.line) || c.line[c.pos] == '#'
}

func (c *cursor) token() string {
	c.skipSpace()
	start := c.pos
	for c.pos < len(c.line) && !unicode.IsSpace(rune(c.line[c.pos])) && c.line[c.pos] != '#' {
		c.pos++
	}
	return c.line[start:c.pos]
}

func applyLine(s *Settings, raw string) error {
	c := &cursor{line: strings.TrimRight(raw, "\r\n")}
	c.skipSpace()
	if c.isEOL() {
		return nil
	}
	key := c.token()
	value := c.token()
	if value == "" {
		return fmt.Errorf("key %q has no value", key)
	}

	switch key {
	case "num-cores":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		s.NumCores = clamp(n, 1, 128)

	case "scheduling-algorithm":
		switch strings.ToUpper(value) {
		case "RR":
			s.SchedulingAlgorithm = RoundRobin
		default:
			s.SchedulingAlgorithm = FCFS
		}

	case "quantum-cycles":
		v, err := parseUint32Range(value, 1, 1<<32-1)
		if err != nil {
			return err
		}
		s.QuantumCycles = v

	case "batch-process-frequency":
		v, err := parseUint32Range(value, 1, 1<<32-1)
		if err != nil {
			return err
		}
		s.BatchProcessFrequency = v

	case "min-instructions":
		v, err := parseUint32Range(value, 0, 1<<32-1)
		if err != nil {
			return err
		}
		s.MinInstructions = v

	case "max-instructions":
		v, err := parseUint32Range(value, 0, 1<<32-1)
		if err != nil {
			return err
		}
		s.MaxInstructions = v

	case "delay-per-execution":
		v, err := parseUint32Range(value, 0, 1<<32-1)
		if err != nil {
			return err
		}
		s.DelayPerExecution = v

	case "memory-per-frame":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		if !isPowerOfTwo(n) {
			return fmt.Errorf("memory-per-frame must be a power of two, got %d", n)
		}
		s.MemoryPerFrame = n

	case "min-memory-per-process":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		s.MinMemoryPerProcess = 1 << uint(n)

	case "max-memory-per-process":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		s.MaxMemoryPerProcess = 1 << uint(n)

	case "max-overall-memory":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		if !isPowerOfTwo(n) {
			return fmt.Errorf("max-overall-memory must be a power of two, got %d", n)
		}
		s.MaxOverallMemory = n

	case "debug":
		if err := debugconfig.ApplySpec(value); err != nil {
			return err
		}

	default:
		return fmt.Errorf("unknown config key %q", key)
	}
	return nil
}

func parseUint32Range(value string, lo, hi uint64) (uint32, error) {
	v, err := strconv.ParseUint(value, 10, 32)
	if err != nil {
		return 0, err
	}
	if v < lo {
		v = lo
	}
	if v > hi {
		v = hi
	}
	return uint32(v), nil
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}
