/*
 * vmux - Command parser for the interactive shell.
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

// Package parser tokenizes the shell's command lines (initialize,
// scheduler-test/scheduler-stop, screen -ls/-s/-c/-r, process-smi,
// vmstat, exit) and dispatches them against a Dispatcher. It follows the
// teacher's command/parser idiom: a minimum-length prefix match against a
// command table, built on a cursor struct (pos/skipSpace/isEOL/getWord)
// rather than a regexp or full grammar -- this shell has no device/option
// grammar to parse, so only the line-scanning mechanics are kept.
package parser

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"unicode"

	"github.com/vmux-emu/vmux/emu/instr"
	"github.com/vmux-emu/vmux/emu/supervisor"
	"github.com/vmux-emu/vmux/report"
)

// Fixture is a small named, in-process program body for "screen -c": the
// real program-text tokenizer is out of scope (spec.md section 1), so
// screen -c can only launch one of these canned fixtures, named by its
// key in Fixtures.
type Fixture struct {
	Memory int
	Text   []instr.Instruction
}

// Fixtures is the set of canned programs screen -c may launch.
var Fixtures = map[string]Fixture{
	"sample": {
		Memory: 16,
		Text: []instr.Instruction{
			instr.DeclareWith("X", 0),
			instr.Add("X", instr.Var("X"), instr.Lit(1)),
			instr.PrintVar("x=", "X"),
		},
	},
}

// Dispatcher is the shell's view of the running emulator: the Supervisor
// plus the generator on/off switch scheduler-test/scheduler-stop flip.
type Dispatcher struct {
	Supervisor *supervisor.Supervisor

	ctx    context.Context
	cancel context.CancelFunc
}

// NewDispatcher wraps sup for command dispatch.
func NewDispatcher(sup *supervisor.Supervisor) *Dispatcher {
	return &Dispatcher{Supervisor: sup}
}

type cmd struct {
	name    string
	min     int
	process func(*cmdLine, *Dispatcher) (string, bool, error)
}

type cmdLine struct {
	line string
	pos  int
}

var cmdList = []cmd{
	{name: "initialize", min: 4, process: initialize},
	{name: "scheduler-test", min: 10, process: schedulerTest},
	{name: "scheduler-stop", min: 10, process: schedulerStop},
	{name: "screen", min: 2, process: screen},
	{name: "process-smi", min: 8, process: processSMI},
	{name: "vmstat", min: 2, process: vmstat},
	{name: "exit", min: 4, process: exit},
}

// ProcessCommand parses and executes one command line. It returns any
// text the command produced, whether the shell should exit, and an error.
func ProcessCommand(commandLine string, d *Dispatcher) (string, bool, error) {
	line := &cmdLine{line: commandLine}
	name := line.getWord()

	match := matchList(name)
	if len(match) == 0 {
		return "", false, fmt.Errorf("command not found: %s", name)
	}
	if len(match) > 1 {
		return "", false, fmt.Errorf("ambiguous command: %s", name)
	}
	return match[0].process(line, d)
}

// CompleteCmd lists the top-level commands matching the line so far, for
// the shell's tab completion.
func CompleteCmd(commandLine string) []string {
	line := &cmdLine{line: commandLine}
	name := line.getWord()
	matches := matchList(name)
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.name
	}
	return out
}

func matchList(name string) []cmd {
	if name == "" {
		return nil
	}
	var match []cmd
	for _, c := range cmdList {
		if matchCommand(c, name) {
			match = append(match, c)
		}
	}
	return match
}

func matchCommand(c cmd, name string) bool {
	if len(name) > len(c.name) {
		return false
	}
	if name != c.name[:len(name)] {
		return false
	}
	return len(name) >= c.min
}

func (l *cmdLine) skipSpace() {
	for l.pos < len(l.line) && unicode.IsSpace(rune(l.line[l.pos])) {
		l.pos++
	}
}

func (l *cmdLine) isEOL() bool {
	return l.pos >= len(l.line)
}

func (l *cmdLine) getWord() string {
	l.skipSpace()
	start := l.pos
	for l.pos < len(l.line) && !unicode.IsSpace(rune(l.line[l.pos])) {
		l.pos++
	}
	return l.line[start:l.pos]
}

func initialize(_ *cmdLine, d *Dispatcher) (string, bool, error) {
	if d.ctx != nil {
		return "", false, errors.New("already initialized")
	}
	d.ctx, d.cancel = context.WithCancel(context.Background())
	d.Supervisor.Run(d.ctx, false)
	return "initialized", false, nil
}

func schedulerTest(_ *cmdLine, d *Dispatcher) (string, bool, error) {
	if d.ctx == nil {
		return "", false, errors.New("run initialize first")
	}
	if err := d.Supervisor.StartGenerator(); err != nil {
		return "", false, err
	}
	return "scheduler-test started", false, nil
}

func schedulerStop(_ *cmdLine, d *Dispatcher) (string, bool, error) {
	if err := d.Supervisor.StopGenerator(); err != nil {
		return "", false, err
	}
	return "scheduler-test stopped", false, nil
}

func screen(line *cmdLine, d *Dispatcher) (string, bool, error) {
	flag := line.getWord()
	switch flag {
	case "-ls":
		return report.ScreenLS(d.Supervisor.Processes()), false, nil

	case "-s":
		name := line.getWord()
		mem, err := strconv.Atoi(line.getWord())
		if err != nil {
			return "", false, fmt.Errorf("screen -s: invalid memory size: %w", err)
		}
		if _, err := d.Supervisor.Admit(name, mem, nil); err != nil {
			return "", false, err
		}
		return fmt.Sprintf("created %s", name), false, nil

	case "-c":
		name := line.getWord()
		mem, err := strconv.Atoi(line.getWord())
		if err != nil {
			return "", false, fmt.Errorf("screen -c: invalid memory size: %w", err)
		}
		fixtureName := line.getWord()
		fixture, ok := Fixtures[fixtureName]
		if !ok {
			return "", false, fmt.Errorf("screen -c: unknown fixture %q", fixtureName)
		}
		if mem <= 0 {
			mem = fixture.Memory
		}
		if _, err := d.Supervisor.Admit(name, mem, fixture.Text); err != nil {
			return "", false, err
		}
		return fmt.Sprintf("created and started %s", name), false, nil

	case "-r":
		name := line.getWord()
		if !d.Supervisor.IsContained(name) {
			return "", false, fmt.Errorf("screen -r: no such process %q", name)
		}
		return screenLog(d, name), false, nil

	default:
		return "", false, fmt.Errorf("screen: unknown flag %q", flag)
	}
}

func screenLog(d *Dispatcher, name string) string {
	for _, snap := range d.Supervisor.Processes() {
		if snap.Name == name {
			return fmt.Sprintf("%s: %s, pc %d/%d, core %d\n", snap.Name, snap.State, snap.ProgramCounter, snap.TextLength, snap.Core)
		}
	}
	return ""
}

func processSMI(_ *cmdLine, d *Dispatcher) (string, bool, error) {
	return report.ProcessSMI(d.Supervisor.CoreStats(), d.Supervisor.Processes()), false, nil
}

func vmstat(_ *cmdLine, d *Dispatcher) (string, bool, error) {
	return report.Vmstat(d.Supervisor.MemoryStats()), false, nil
}

func exit(_ *cmdLine, d *Dispatcher) (string, bool, error) {
	if d.cancel != nil {
		d.cancel()
		_ = d.Supervisor.Stop()
	}
	return "goodbye", true, nil
}
