/*
 * vmux - Error taxonomy for the emulator core.
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

// Package vmerrors defines the error kinds the core distinguishes between:
// fatal configuration/corruption errors versus quiet program-level failures
// that the scheduler logs and continues past.
package vmerrors

import "errors"

// Sentinel kinds. Use errors.Is against these, wrap with fmt.Errorf("%w: ...", Kind).
var (
	// ErrConfig marks a malformed config.txt entry. Fatal at load time.
	ErrConfig = errors.New("config error")

	// ErrOutOfBounds marks a virtual address beyond a page table's limit,
	// or a multi-byte write that would cross a frame boundary. The MMU
	// returns no value; the Core logs and moves to the next instruction.
	ErrOutOfBounds = errors.New("address out of bounds")

	// ErrOutOfMemory marks a logical store insertion that found no free
	// slot. The instruction fails silently; the Core logs a warning.
	ErrOutOfMemory = errors.New("logical store full")

	// ErrInsufficientFrames marks a loadProcess that could not fault in
	// every page of a process. The Core re-enqueues the PCB.
	ErrInsufficientFrames = errors.New("insufficient physical frames")

	// ErrCorruption marks a broken data-model invariant: a malformed
	// backing-store line or frame id (fatal when the store is opened at
	// startup), or a frame with no backing-store record (the Core logs it
	// and does not reschedule the affected process; the emulator keeps
	// running). Records of the wrong length are padded or truncated rather
	// than reported, and non-hex record data surfaces as the hex decoder's
	// own error, not as ErrCorruption.
	ErrCorruption = errors.New("backing store corruption")
)
