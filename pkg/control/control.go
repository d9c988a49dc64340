// Package control implements the stack machine's control unit: the
// fetch-decode-execute loop, one micro-op (one DataPath latch or write)
// at a time, each producing one line of the trace journal.
package control

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/anovikov/forthvm/pkg/alu"
	"github.com/anovikov/forthvm/pkg/datapath"
	"github.com/anovikov/forthvm/pkg/isa"
)

// ErrHalt is returned by FetchSingleCommand when the program executes a
// HALT instruction. It is not a failure; callers use errors.Is to detect
// normal termination and stop their run loop.
var ErrHalt = errors.New("control: halt")

// pcSelector distinguishes the three ways the program counter advances.
type pcSelector int

const (
	pcInc pcSelector = iota
	pcRet
	pcImmediate
)

// Token is one scheduled interrupt: at tick DueTick or later, Char is
// latched into IO and an interrupt fires if interrupts are enabled.
type Token struct {
	DueTick int
	Char    byte
}

// PS holds the two one-bit interrupt status flags.
type PS struct {
	IRQRequest bool
	IRQOn      bool
}

// ControlUnit drives a DataPath through a loaded program.
type ControlUnit struct {
	DataPath *datapath.DataPath

	ProgramMemory []isa.Instruction

	TickNumber        int
	InstructionNumber int

	OutBuffer strings.Builder
	Journal   []string

	IO byte
	PS PS

	tokens         []Token
	alreadyFetched []bool
}

// New builds a ControlUnit over dp with a program memory of the given
// size and the interrupt tokens it should service during the run.
func New(dp *datapath.DataPath, programMemorySize int, tokens []Token) *ControlUnit {
	return &ControlUnit{
		DataPath:       dp,
		ProgramMemory:  make([]isa.Instruction, programMemorySize),
		PS:             PS{IRQOn: true},
		tokens:         tokens,
		alreadyFetched: make([]bool, len(tokens)),
	}
}

// InitInstructions loads a linked instruction stream into program memory
// at the addresses its Index fields name.
func (c *ControlUnit) InitInstructions(code []isa.Instruction) error {
	for _, instr := range code {
		if instr.Index < 0 || instr.Index >= len(c.ProgramMemory) {
			return fmt.Errorf("control: instruction index %d out of program memory size %d", instr.Index, len(c.ProgramMemory))
		}
		c.ProgramMemory[instr.Index] = instr
	}
	return nil
}

// tick runs one micro-op, counts it, and appends its trace line.
func (c *ControlUnit) tick(op func() error) error {
	c.TickNumber++
	if op != nil {
		if err := op(); err != nil {
			return err
		}
	}
	c.appendTraceLine()
	return nil
}

// latchPC advances the program counter. Every fetch unconditionally
// increments PC immediately after decode (see FetchSingleCommand), so
// pcImmediate lands PC one below the target address on purpose.
func (c *ControlUnit) latchPC(sel pcSelector, value int) error {
	switch sel {
	case pcInc:
		c.DataPath.PC++
	case pcRet:
		if c.DataPath.RSP < 0 || c.DataPath.RSP >= len(c.DataPath.ReturnStack) {
			return fmt.Errorf("control: return stack pointer %d out of range", c.DataPath.RSP)
		}
		c.DataPath.PC = c.DataPath.ReturnStack[c.DataPath.RSP]
	case pcImmediate:
		c.DataPath.PC = value - 1
	}
	return nil
}

// signalLatchPS sets the interrupt-enable flag and records whether
// enabling interrupts caused a pending one to fire immediately.
func (c *ControlUnit) signalLatchPS(irqOn bool) error {
	c.PS.IRQOn = irqOn
	fired, err := c.handleIRQ()
	if err != nil {
		return err
	}
	c.PS.IRQRequest = fired
	return nil
}

// handleIRQ scans for the first not-yet-fetched token whose due tick has
// arrived and, if interrupts are enabled, dispatches it: the return
// address is pushed and PC redirected to the interrupt vector at address
// 1. Returns whether an interrupt fired.
func (c *ControlUnit) handleIRQ() (bool, error) {
	if !c.PS.IRQOn {
		return false, nil
	}
	for i, tok := range c.tokens {
		if c.alreadyFetched[i] || tok.DueTick > c.TickNumber {
			continue
		}
		c.alreadyFetched[i] = true
		c.IO = tok.Char
		c.PS.IRQOn = false
		c.PS.IRQRequest = true

		if err := c.tick(func() error { return c.DataPath.RetWrite(datapath.RetStackPC) }); err != nil {
			return false, err
		}
		if err := c.tick(func() error { return c.latchPC(pcImmediate, 1) }); err != nil {
			return false, err
		}
		if err := c.tick(func() error { c.DataPath.LatchRSP(datapath.RSPInc); return nil }); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

// FetchSingleCommand fetches, decodes and executes one instruction. It
// returns ErrHalt (via errors.Is) on a HALT instruction.
func (c *ControlUnit) FetchSingleCommand() error {
	c.InstructionNumber++
	if err := c.decodeInstruction(); err != nil {
		return err
	}
	if _, err := c.handleIRQ(); err != nil {
		return err
	}
	return c.latchPC(pcInc, 0)
}

func (c *ControlUnit) currentInstruction() (isa.Instruction, error) {
	if c.DataPath.PC < 0 || c.DataPath.PC >= len(c.ProgramMemory) {
		return isa.Instruction{}, fmt.Errorf("control: program counter %d out of program memory range", c.DataPath.PC)
	}
	return c.ProgramMemory[c.DataPath.PC], nil
}

// decodeInstruction dispatches the instruction at PC. Opcodes that route
// through the ALU (ADD, EQ) take that path; everything else is matched
// directly.
func (c *ControlUnit) decodeInstruction() error {
	instr, err := c.currentInstruction()
	if err != nil {
		return err
	}

	if aluOp, ok := alu.FromOpcodeType(instr.Command); ok {
		return c.executeALU(aluOp)
	}

	switch instr.Command {
	case isa.PUSH:
		return c.executePush(argOf(instr))
	case isa.OMIT:
		return c.executeOmit()
	case isa.READ:
		return c.executeRead()
	case isa.SWAP:
		return c.executeSwap()
	case isa.DUP:
		return c.executeDup()
	case isa.LOAD:
		return c.executeLoad()
	case isa.STORE:
		return c.executeStore()
	case isa.ZJMP:
		return c.executeZjmp(argOf(instr))
	case isa.JMP:
		return c.tick(func() error { return c.latchPC(pcImmediate, argOf(instr)) })
	case isa.CALL:
		return c.executeCall(argOf(instr))
	case isa.DI:
		return c.tick(func() error { return c.signalLatchPS(false) })
	case isa.EI:
		return c.tick(func() error { return c.signalLatchPS(true) })
	case isa.RET:
		return c.executeRet()
	case isa.HALT:
		return ErrHalt
	default:
		// NOP, MOD, and any other undispatched opcode are silent no-ops,
		// matching the original's match-statement-with-no-wildcard-arm
		// behavior exactly.
		return nil
	}
}

func argOf(instr isa.Instruction) int {
	if instr.Arg == nil {
		return 0
	}
	return *instr.Arg
}

func (c *ControlUnit) executeALU(op alu.Opcode) error {
	if err := c.tick(func() error { c.DataPath.ALUOperation(op); return nil }); err != nil {
		return err
	}
	if err := c.tick(func() error { return c.DataPath.LatchTop(datapath.TopALU, 0) }); err != nil {
		return err
	}
	if err := c.tick(func() error { c.DataPath.LatchSP(datapath.SPDec); return nil }); err != nil {
		return err
	}
	return c.tick(func() error { return c.DataPath.LatchNext(datapath.NextMem) })
}

func (c *ControlUnit) executePush(arg int) error {
	if err := c.tick(func() error { return c.DataPath.DataWrite() }); err != nil {
		return err
	}
	if err := c.tick(func() error { c.DataPath.LatchSP(datapath.SPInc); return nil }); err != nil {
		return err
	}
	if err := c.tick(func() error { return c.DataPath.LatchNext(datapath.NextTop) }); err != nil {
		return err
	}
	return c.tick(func() error { return c.DataPath.LatchTop(datapath.TopImmediate, arg) })
}

func (c *ControlUnit) executeOmit() error {
	c.OutBuffer.WriteByte(byte(c.DataPath.Next))
	for i := 0; i < 2; i++ {
		if err := c.tick(func() error { return c.DataPath.LatchTop(datapath.TopNext, 0) }); err != nil {
			return err
		}
		if err := c.tick(func() error { c.DataPath.LatchSP(datapath.SPDec); return nil }); err != nil {
			return err
		}
		if err := c.tick(func() error { return c.DataPath.LatchNext(datapath.NextMem) }); err != nil {
			return err
		}
	}
	return nil
}

func (c *ControlUnit) executeRead() error {
	if err := c.tick(func() error { return c.DataPath.LatchTop(datapath.TopNext, 0) }); err != nil {
		return err
	}
	if err := c.tick(func() error { c.DataPath.LatchSP(datapath.SPDec); return nil }); err != nil {
		return err
	}
	if err := c.tick(func() error { return c.DataPath.DataWrite() }); err != nil {
		return err
	}
	if err := c.tick(func() error { c.DataPath.LatchSP(datapath.SPInc); return nil }); err != nil {
		return err
	}
	if err := c.tick(func() error { return c.DataPath.LatchNext(datapath.NextTop) }); err != nil {
		return err
	}
	return c.tick(func() error { return c.DataPath.LatchTop(datapath.TopInput, int(c.IO)) })
}

func (c *ControlUnit) executeSwap() error {
	if err := c.tick(func() error { return c.DataPath.LatchTemp(datapath.TempTop) }); err != nil {
		return err
	}
	if err := c.tick(func() error { return c.DataPath.LatchTop(datapath.TopNext, 0) }); err != nil {
		return err
	}
	return c.tick(func() error { return c.DataPath.LatchNext(datapath.NextTemp) })
}

func (c *ControlUnit) executeDup() error {
	if err := c.tick(func() error { return c.DataPath.DataWrite() }); err != nil {
		return err
	}
	if err := c.tick(func() error { return c.DataPath.LatchNext(datapath.NextTop) }); err != nil {
		return err
	}
	return c.tick(func() error { c.DataPath.LatchSP(datapath.SPInc); return nil })
}

func (c *ControlUnit) executeLoad() error {
	return c.tick(func() error { return c.DataPath.LatchTop(datapath.TopMem, 0) })
}

func (c *ControlUnit) executeStore() error {
	if err := c.tick(func() error { return c.DataPath.MemWrite() }); err != nil {
		return err
	}
	if err := c.tick(func() error { c.DataPath.LatchSP(datapath.SPDec); return nil }); err != nil {
		return err
	}
	if err := c.tick(func() error { return c.DataPath.LatchNext(datapath.NextMem) }); err != nil {
		return err
	}
	if err := c.tick(func() error { return c.DataPath.LatchTop(datapath.TopNext, 0) }); err != nil {
		return err
	}
	if err := c.tick(func() error { c.DataPath.LatchSP(datapath.SPDec); return nil }); err != nil {
		return err
	}
	return c.tick(func() error { return c.DataPath.LatchNext(datapath.NextMem) })
}

func (c *ControlUnit) executeZjmp(arg int) error {
	zero := c.DataPath.Top == 0
	if zero {
		if err := c.tick(func() error { return c.latchPC(pcImmediate, arg) }); err != nil {
			return err
		}
	}
	if err := c.tick(func() error { return c.DataPath.LatchTop(datapath.TopNext, 0) }); err != nil {
		return err
	}
	if err := c.tick(func() error { c.DataPath.LatchSP(datapath.SPDec); return nil }); err != nil {
		return err
	}
	return c.tick(func() error { return c.DataPath.LatchNext(datapath.NextMem) })
}

func (c *ControlUnit) executeCall(arg int) error {
	if err := c.tick(func() error { return c.DataPath.RetWrite(datapath.RetStackPC) }); err != nil {
		return err
	}
	if err := c.tick(func() error { c.DataPath.LatchRSP(datapath.RSPInc); return nil }); err != nil {
		return err
	}
	return c.tick(func() error { return c.latchPC(pcImmediate, arg) })
}

func (c *ControlUnit) executeRet() error {
	if err := c.tick(func() error { c.DataPath.LatchRSP(datapath.RSPDec); return nil }); err != nil {
		return err
	}
	return c.tick(func() error { return c.latchPC(pcRet, 0) })
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func formatIntList(vals []int) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = strconv.Itoa(v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func dataHeadString(top int, memory []int) string {
	if top >= 0 && top < len(memory) {
		return fmt.Sprintf("%3d", memory[top])
	}
	return fmt.Sprintf("%-3s", "?")
}

func (c *ControlUnit) appendTraceLine() {
	dp := c.DataPath
	sp, rsp := dp.SP, dp.RSP

	dsTail := 0
	if sp-1 >= 0 && sp-1 < len(dp.DataStack) {
		dsTail = dp.DataStack[sp-1]
	}
	sHead := []int{dp.Top, dp.Next, dsTail}

	rsTail := make([]int, 3)
	for i := 0; i < 3; i++ {
		idx := rsp - 1 - i
		if idx >= 0 && idx < len(dp.ReturnStack) {
			rsTail[i] = dp.ReturnStack[idx]
		}
	}

	line := fmt.Sprintf(
		"TICK: %4d | PC: %4d | SP: %3d | RSP: %3d | IRQ_R %2d | IRQ_ON: %3d | S_HEAD : %s | RS_HEAD : %s | DATA_HEAD %s",
		c.TickNumber, dp.PC, sp, rsp,
		boolToInt(c.PS.IRQRequest), boolToInt(c.PS.IRQOn),
		formatIntList(sHead), formatIntList(rsTail),
		dataHeadString(dp.Top, dp.Memory),
	)
	c.Journal = append(c.Journal, line)
}
