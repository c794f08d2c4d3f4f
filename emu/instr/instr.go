/*
 * vmux - Instruction set.
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

// Package instr defines the emulator's tiny imperative instruction set as a
// tagged sum type (a Kind tag plus one struct carrying every variant's
// fields) instead of the base-class-plus-downcast design the original
// implementation used. Execution is a switch on Kind; the Go compiler does
// not check that switch for exhaustiveness.
package instr

// Kind tags which variant an Instruction carries.
type Kind int

const (
	KindDeclare Kind = iota
	KindAdd
	KindSub
	KindPrint
	KindRead
	KindWrite
	KindSleep
	KindFor
)

// Operand is either a 16-bit literal or the name of a variable to resolve
// against the LogicalStore at execution time.
type Operand struct {
	Literal  uint16
	Variable string
	IsLit    bool
}

// Lit builds a literal operand.
func Lit(v uint16) Operand { return Operand{Literal: v, IsLit: true} }

// Var builds a variable-name operand.
func Var(name string) Operand { return Operand{Variable: name} }

// Instruction is one instance of the instruction set. Only the fields
// relevant to Kind are populated; For additionally carries a nested body.
type Instruction struct {
	Kind Kind

	// Declare
	DeclareName string
	DeclareInit uint16
	HasInit     bool

	// Add / Sub
	Dest string
	A    Operand
	B    Operand

	// Print
	Message  string
	PrintVar string
	HasVar   bool

	// Read
	Address string
	ReadDst string

	// Write
	WriteValue uint16

	// Sleep
	SleepTicks uint8

	// For
	Body  []Instruction
	Count uint32
}

// Declare builds a DECLARE instruction with no initial value.
func Declare(name string) Instruction {
	return Instruction{Kind: KindDeclare, DeclareName: name}
}

// DeclareWith builds a DECLARE instruction carrying an initial value.
func DeclareWith(name string, value uint16) Instruction {
	return Instruction{Kind: KindDeclare, DeclareName: name, DeclareInit: value, HasInit: true}
}

// Add builds an ADD instruction: dest = a + b.
func Add(dest string, a, b Operand) Instruction {
	return Instruction{Kind: KindAdd, Dest: dest, A: a, B: b}
}

// Sub builds a SUB instruction: dest = a - b.
func Sub(dest string, a, b Operand) Instruction {
	return Instruction{Kind: KindSub, Dest: dest, A: a, B: b}
}

// Print builds a PRINT instruction; variable is optional.
func Print(message string) Instruction {
	return Instruction{Kind: KindPrint, Message: message}
}

// PrintVar builds a PRINT instruction that appends a variable's value.
func PrintVar(message, variable string) Instruction {
	return Instruction{Kind: KindPrint, Message: message, PrintVar: variable, HasVar: true}
}

// Read builds a READ instruction loading 2 bytes from address into dst.
func Read(address, dst string) Instruction {
	return Instruction{Kind: KindRead, Address: address, ReadDst: dst}
}

// Write builds a WRITE instruction storing a 16-bit value at address.
func Write(address string, value uint16) Instruction {
	return Instruction{Kind: KindWrite, Address: address, WriteValue: value}
}

// Sleep builds a SLEEP instruction releasing the core for n ticks.
func Sleep(n uint8) Instruction {
	return Instruction{Kind: KindSleep, SleepTicks: n}
}

// For builds a FOR instruction executing body count times.
func For(body []Instruction, count uint32) Instruction {
	return Instruction{Kind: KindFor, Body: body, Count: count}
}
