/*
 * vmux - Per-component debug level configuration.
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

// Package debugconfig lets components register a named slog.LevelVar at
// init time, then have config.txt's "debug <component>,<level>" lines
// adjust it without the component and the config loader importing each
// other.
package debugconfig

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

var (
	mu       sync.Mutex
	registry = map[string]*slog.LevelVar{}
)

// Register associates component with level, so later Apply calls naming
// component can raise or lower it. Intended to be called from a package
// init() function, mirroring the teacher's RegisterModel idiom.
func Register(component string, level *slog.LevelVar) {
	mu.Lock()
	defer mu.Unlock()
	registry[strings.ToUpper(component)] = level
}

// Apply sets component's registered level. Returns an error if component
// was never registered or levelName doesn't parse.
func Apply(component, levelName string) error {
	mu.Lock()
	level, ok := registry[strings.ToUpper(component)]
	mu.Unlock()
	if !ok {
		return fmt.Errorf("debugconfig: unknown component %q", component)
	}

	var lv slog.Level
	if err := lv.UnmarshalText([]byte(levelName)); err != nil {
		return fmt.Errorf("debugconfig: bad level %q for %s: %w", levelName, component, err)
	}
	level.Set(lv)
	return nil
}

// ApplySpec parses one "component,level" directive, as it appears as the
// value of a config.txt "debug" key.
func ApplySpec(spec string) error {
	parts := strings.SplitN(spec, ",", 2)
	if len(parts) != 2 {
		return fmt.Errorf("debugconfig: malformed debug directive %q, want component,level", spec)
	}
	return Apply(strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]))
}
