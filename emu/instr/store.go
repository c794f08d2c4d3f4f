/*
 * vmux - Per-process logical variable store.
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

package instr

import "fmt"

// StoreSlots is the fixed capacity of a LogicalStore: exactly 32 entries.
const StoreSlots = 32

// DeclareResult reports the outcome of a LogicalStore.Declare call.
type DeclareResult int

const (
	Inserted DeclareResult = iota
	AlreadyPresent
	Full
)

type slot struct {
	occupied bool
	name     string
	value    uint16
}

// LogicalStore is the fixed 32-slot variable table of one process. Each
// occupied slot has a hex-encoded 5-digit address 00000, 00002, 00004, ...
// derived from its position (2 bytes per slot).
type LogicalStore struct {
	slots [StoreSlots]slot
}

// Declare inserts name into the lowest free slot with value 0. Declaring an
// already-present name is a no-op failure (policy decision, spec.md Open
// Question: pick silent, not loud).
func (s *LogicalStore) Declare(name string) DeclareResult {
	for i := range s.slots {
		if s.slots[i].occupied && s.slots[i].name == name {
			return AlreadyPresent
		}
	}
	for i := range s.slots {
		if !s.slots[i].occupied {
			s.slots[i] = slot{occupied: true, name: name, value: 0}
			return Inserted
		}
	}
	return Full
}

// GetAddress returns the hex-encoded address of name, or false if absent.
func (s *LogicalStore) GetAddress(name string) (string, bool) {
	for i := range s.slots {
		if s.slots[i].occupied && s.slots[i].name == name {
			return fmt.Sprintf("%05X", i*2), true
		}
	}
	return "", false
}

// GetValue returns the current value of name, or false if absent.
func (s *LogicalStore) GetValue(name string) (uint16, bool) {
	for i := range s.slots {
		if s.slots[i].occupied && s.slots[i].name == name {
			return s.slots[i].value, true
		}
	}
	return 0, false
}

// SetValue stores value into name's slot. Fails if name is not present.
func (s *LogicalStore) SetValue(name string, value uint16) bool {
	for i := range s.slots {
		if s.slots[i].occupied && s.slots[i].name == name {
			s.slots[i].value = value
			return true
		}
	}
	return false
}

// InsertWithValue declares name and, only when that inserted a new slot,
// sets its value. An already-present name keeps its current value, so a
// repeated DECLARE with an initial value is a silent no-op. Used by
// DECLARE with an initial value.
func (s *LogicalStore) InsertWithValue(name string, value uint16) DeclareResult {
	result := s.Declare(name)
	if result == Inserted {
		s.SetValue(name, value)
	}
	return result
}
