// Package alu implements the control unit's combinational arithmetic
// unit: two inputs, a selected operation, one result, nothing latched.
package alu

import "github.com/anovikov/forthvm/pkg/isa"

// Opcode selects which operation Calc performs.
type Opcode int

const (
	IncA Opcode = iota
	IncB
	DecA
	DecB
	Add
	Eq
)

// ALU holds the inputs and operation selected for the current tick, and
// the result of the last Calc call.
type ALU struct {
	SrcA, SrcB int
	Operation  Opcode
	Result     int
}

// SetDetails loads the operands and operation for the next Calc call.
func (a *ALU) SetDetails(srcA, srcB int, op Opcode) {
	a.SrcA, a.SrcB, a.Operation = srcA, srcB, op
}

// Calc evaluates the currently selected operation and stores it in Result.
func (a *ALU) Calc() {
	switch a.Operation {
	case IncA:
		a.Result = a.SrcA + 1
	case IncB:
		a.Result = a.SrcB + 1
	case DecA:
		a.Result = a.SrcA - 1
	case DecB:
		a.Result = a.SrcB - 1
	case Add:
		a.Result = a.SrcA + a.SrcB
	case Eq:
		if a.SrcA == a.SrcB {
			a.Result = 1
		} else {
			a.Result = 0
		}
	}
}

// FromOpcodeType reports the ALU operation a machine opcode routes
// through, if any. Only ADD and EQ compute through the ALU; every other
// opcode is dispatched directly by the control unit.
func FromOpcodeType(op isa.OpcodeType) (Opcode, bool) {
	switch op {
	case isa.ADD:
		return Add, true
	case isa.EQ:
		return Eq, true
	default:
		return 0, false
	}
}
