// Package codegen lowers an analyzed Terminal stream into a linked
// instruction stream and the initial data memory image.
package codegen

import (
	"fmt"
	"strconv"

	"github.com/anovikov/forthvm/pkg/isa"
)

// Generate lowers terms (already run through analyzer.Analyze) into a
// linked instruction stream plus the data memory image string literals
// were written into.
func Generate(terms []*isa.Terminal) ([]isa.Instruction, []int, error) {
	ordered := handleInterruptionVectors(terms)

	memory := make([]int, isa.MemorySize)
	stringAddr := 0

	termOpcodes := make([][]isa.Opcode, len(ordered))
	for i, term := range ordered {
		ops, newAddr, err := lowerTerm(term, stringAddr, memory)
		if err != nil {
			return nil, nil, err
		}
		termOpcodes[i] = ops
		stringAddr = newAddr
	}

	linked, err := fetchOpcodeAddresses(termOpcodes)
	if err != nil {
		return nil, nil, err
	}
	linked = append(linked, isa.Opcode{Type: isa.HALT})

	code := make([]isa.Instruction, len(linked))
	for i, op := range linked {
		instr := isa.Instruction{Index: i, Command: op.Type}
		if param, ok := op.HasParam(); ok {
			v := param.Value
			instr.Arg = &v
		}
		code[i] = instr
	}

	return code, memory, nil
}

// handleInterruptionVectors partitions terms into the interrupt handler
// body (if any) and ordinary code, placing the interrupt body right
// after the synthetic entrypoint term so it lands at the fixed interrupt
// vector address (1) once linked. The entrypoint's own operand is set to
// jump straight past the interrupt body into ordinary code.
func handleInterruptionVectors(terms []*isa.Terminal) []*isa.Terminal {
	isInterrupt := false
	interruptRet := 1
	var interruptProc []*isa.Terminal
	var ordinaryProc []*isa.Terminal

	for _, term := range terms[1:] {
		if term.IsType(isa.TermDEFINTR) {
			isInterrupt = true
		}
		if term.IsType(isa.TermRET) {
			if isInterrupt {
				interruptProc = append(interruptProc, term)
				interruptRet = len(interruptProc) + 1
			} else {
				ordinaryProc = append(ordinaryProc, term)
			}
			isInterrupt = false
		}

		if isInterrupt {
			interruptProc = append(interruptProc, term)
		} else if !term.IsType(isa.TermRET) {
			ordinaryProc = append(ordinaryProc, term)
		}
	}

	terms[0].SetOperand(interruptRet)

	result := make([]*isa.Terminal, 0, len(terms))
	result = append(result, terms[0])
	result = append(result, interruptProc...)
	result = append(result, ordinaryProc...)
	return result
}

// lowerTerm produces the pre-link opcode list for one term.
func lowerTerm(term *isa.Terminal, stringAddr int, memory []int) ([]isa.Opcode, int, error) {
	if term.TermType == nil {
		return lowerLiteralOrPrint(term, stringAddr, memory)
	}

	undefined := func(op isa.OpcodeType) []isa.Opcode {
		return []isa.Opcode{{Type: op, Params: []isa.Param{{Type: isa.Undefined}}}}
	}

	var ops []isa.Opcode
	switch *term.TermType {
	case isa.TermADD:
		ops = []isa.Opcode{{Type: isa.ADD}}
	case isa.TermDI:
		ops = []isa.Opcode{{Type: isa.DI}}
	case isa.TermEI:
		ops = []isa.Opcode{{Type: isa.EI}}
	case isa.TermDUP:
		ops = []isa.Opcode{{Type: isa.DUP}}
	case isa.TermOMIT:
		ops = []isa.Opcode{{Type: isa.OMIT}}
	case isa.TermEQ:
		ops = []isa.Opcode{{Type: isa.EQ}}
	case isa.TermREAD:
		ops = []isa.Opcode{{Type: isa.READ}}
	case isa.TermVARIABLE, isa.TermALLOT, isa.TermTHEN, isa.TermDEFINTR, isa.TermWHILE:
		ops = nil
	case isa.TermSTORE:
		ops = []isa.Opcode{{Type: isa.STORE}}
	case isa.TermLOAD:
		ops = []isa.Opcode{{Type: isa.LOAD}}
	case isa.TermIF:
		ops = undefined(isa.ZJMP)
	case isa.TermELSE:
		ops = undefined(isa.JMP)
	case isa.TermDEF:
		ops = undefined(isa.JMP)
	case isa.TermRET:
		ops = []isa.Opcode{{Type: isa.RET}}
	case isa.TermENDWHILE:
		ops = undefined(isa.ZJMP)
	case isa.TermCALL:
		ops = undefined(isa.CALL)
	case isa.TermENTRYPOINT:
		ops = undefined(isa.JMP)
	default:
		return lowerLiteralOrPrint(term, stringAddr, memory)
	}

	if term.HasOperand {
		for i, op := range ops {
			for pi, param := range op.Params {
				if param.Type == isa.Undefined {
					ops[i].Params[pi] = isa.Param{Type: isa.Addr, Value: term.Operand}
				}
			}
		}
	}

	return ops, stringAddr, nil
}

// lowerLiteralOrPrint handles terms with no resolved TermType: already
// consumed (Converted) terms emit nothing, STRING terms materialize their
// content into memory and emit the print loop, and anything else must be
// a numeric literal emitted as a PUSH constant.
func lowerLiteralOrPrint(term *isa.Terminal, stringAddr int, memory []int) ([]isa.Opcode, int, error) {
	if term.Converted {
		return nil, stringAddr, nil
	}
	if !term.IsType(isa.TermSTRING) {
		n, err := strconv.Atoi(term.Word)
		if err != nil {
			return nil, stringAddr, fmt.Errorf("codegen: unknown identifier %q at word %d", term.Word, term.WordNumber)
		}
		return []isa.Opcode{{Type: isa.PUSH, Params: []isa.Param{{Type: isa.Const, Value: n}}}}, stringAddr, nil
	}
	return lowerString(term, stringAddr, memory)
}

// lowerString materializes a STRING term's content into memory (each
// byte, then a zero terminator) and emits the 13-opcode print loop. The
// loop's relative back-jump of -11 lands on the loop's first DUP (not the
// LOAD right after it) once fetchOpcodeAddresses resolves it: the
// fix-up counts already-appended opcodes of *this* term too, so by the
// time the trailing ZJMP is reached 12 of this term's 13 opcodes are
// already in the output, and 12-11=1 is the DUP at local index 1. The loop
// reads "dup @ dup omit = 0 until": the body starts at the DUP, not the
// LOAD.
func lowerString(term *isa.Terminal, stringAddr int, memory []int) ([]isa.Opcode, int, error) {
	start := stringAddr
	content := term.Word[2 : len(term.Word)-1]
	for i := 0; i < len(content); i++ {
		memory[stringAddr] = int(content[i])
		stringAddr++
	}
	memory[stringAddr] = 0
	stringAddr++

	ops := []isa.Opcode{
		{Type: isa.PUSH, Params: []isa.Param{{Type: isa.Const, Value: start}}},
		{Type: isa.DUP},
		{Type: isa.LOAD},
		{Type: isa.DUP},
		{Type: isa.PUSH, Params: []isa.Param{{Type: isa.Const, Value: 0}}},
		{Type: isa.OMIT},
		{Type: isa.PUSH, Params: []isa.Param{{Type: isa.Const, Value: 0}}},
		{Type: isa.EQ},
		{Type: isa.SWAP},
		{Type: isa.PUSH, Params: []isa.Param{{Type: isa.Const, Value: 1}}},
		{Type: isa.ADD},
		{Type: isa.SWAP},
		{Type: isa.ZJMP, Params: []isa.Param{{Type: isa.AddrRel, Value: -11}}},
	}
	return ops, stringAddr, nil
}

// fetchOpcodeAddresses flattens the per-term opcode lists into one
// stream, resolving ADDR params (term-number based) through a prefix sum
// of per-term opcode counts, and ADDR_REL params relative to the output
// position at the moment each opcode is appended.
func fetchOpcodeAddresses(termOpcodes [][]isa.Opcode) ([]isa.Opcode, error) {
	prefSum := make([]int, len(termOpcodes)+1)
	for i, ops := range termOpcodes {
		prefSum[i+1] = prefSum[i] + len(ops)
	}

	var result []isa.Opcode
	for _, ops := range termOpcodes {
		for _, op := range ops {
			for pi, param := range op.Params {
				switch param.Type {
				case isa.Addr:
					if param.Value < 0 || param.Value >= len(prefSum) {
						return nil, fmt.Errorf("codegen: address target %d out of range", param.Value)
					}
					op.Params[pi] = isa.Param{Type: isa.Const, Value: prefSum[param.Value]}
				case isa.AddrRel:
					op.Params[pi] = isa.Param{Type: isa.Const, Value: len(result) + param.Value}
				}
			}
			result = append(result, op)
		}
	}
	return result, nil
}
