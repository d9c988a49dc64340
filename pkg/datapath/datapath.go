// Package datapath implements the stack machine's register file, data
// stack, return stack, and memory, plus the fine-grained latch/write
// signals the control unit drives one micro-op at a time.
package datapath

import (
	"fmt"

	"github.com/anovikov/forthvm/pkg/alu"
)

// StackPtrOffset is the initial value of sp and rsp. It exists purely so
// that the trace journal can read one slot below the pointer without
// going negative on an empty stack; it does not represent pre-existing
// stack contents.
const StackPtrOffset = 4

// Selector names the source latched into a register by one micro-op.
type Selector int

const (
	SPInc Selector = iota
	SPDec
	RSPInc
	RSPDec
	NextMem
	NextTop
	NextTemp
	TempReturn
	TempTop
	TempNext
	TopNext
	TopALU
	TopTemp
	TopMem
	TopImmediate
	TopInput
	RetStackPC
)

// DataPath holds every piece of architectural state the control unit
// reads and writes one signal at a time.
type DataPath struct {
	Memory      []int
	DataStack   []int
	ReturnStack []int

	PC, SP, RSP     int
	Top, Next, Temp int

	ALU *alu.ALU

	memorySize      int
	dataStackSize   int
	returnStackSize int
}

// New builds a DataPath with the given memory image and stack sizes. If
// memory is shorter than memorySize it is zero-padded; it must not be
// longer.
func New(memorySize int, memory []int, dataStackSize, returnStackSize int) (*DataPath, error) {
	if len(memory) > memorySize {
		return nil, fmt.Errorf("datapath: memory image length %d exceeds memory size %d", len(memory), memorySize)
	}
	mem := make([]int, memorySize)
	copy(mem, memory)

	return &DataPath{
		Memory:          mem,
		DataStack:       make([]int, dataStackSize),
		ReturnStack:     make([]int, returnStackSize),
		PC:              0,
		SP:              StackPtrOffset,
		RSP:             StackPtrOffset,
		ALU:             &alu.ALU{},
		memorySize:      memorySize,
		dataStackSize:   dataStackSize,
		returnStackSize: returnStackSize,
	}, nil
}

// MemorySize returns the size of the data memory image.
func (d *DataPath) MemorySize() int { return d.memorySize }

func (d *DataPath) checkDataStack(idx int) error {
	if idx < 0 || idx >= d.dataStackSize {
		return fmt.Errorf("datapath: data stack index %d out of range [0,%d)", idx, d.dataStackSize)
	}
	return nil
}

func (d *DataPath) checkReturnStack(idx int) error {
	if idx < 0 || idx >= d.returnStackSize {
		return fmt.Errorf("datapath: return stack index %d out of range [0,%d)", idx, d.returnStackSize)
	}
	return nil
}

func (d *DataPath) checkMemory(idx int) error {
	if idx < 0 || idx >= d.memorySize {
		return fmt.Errorf("datapath: memory address %d out of range [0,%d)", idx, d.memorySize)
	}
	return nil
}

// LatchSP moves the data stack pointer.
func (d *DataPath) LatchSP(sel Selector) {
	switch sel {
	case SPInc:
		d.SP++
	case SPDec:
		d.SP--
	}
}

// LatchRSP moves the return stack pointer.
func (d *DataPath) LatchRSP(sel Selector) {
	switch sel {
	case RSPInc:
		d.RSP++
	case RSPDec:
		d.RSP--
	}
}

// LatchNext loads the "next" register (the second-from-top cache cell).
func (d *DataPath) LatchNext(sel Selector) error {
	switch sel {
	case NextMem:
		if err := d.checkDataStack(d.SP); err != nil {
			return err
		}
		d.Next = d.DataStack[d.SP]
	case NextTop:
		d.Next = d.Top
	case NextTemp:
		d.Next = d.Temp
	default:
		return fmt.Errorf("datapath: invalid selector for next latch: %d", sel)
	}
	return nil
}

// LatchTemp loads the scratch "temp" register.
func (d *DataPath) LatchTemp(sel Selector) error {
	switch sel {
	case TempReturn:
		if err := d.checkReturnStack(d.RSP - 1); err != nil {
			return err
		}
		d.Temp = d.ReturnStack[d.RSP-1]
	case TempTop:
		d.Temp = d.Top
	case TempNext:
		d.Temp = d.Next
	default:
		return fmt.Errorf("datapath: invalid selector for temp latch: %d", sel)
	}
	return nil
}

// LatchTop loads the top-of-stack cache register. immediate is only
// consulted when sel is TopImmediate or TopInput.
func (d *DataPath) LatchTop(sel Selector, immediate int) error {
	switch sel {
	case TopNext:
		d.Top = d.Next
	case TopALU:
		d.Top = d.ALU.Result
	case TopTemp:
		d.Top = d.Temp
	case TopMem:
		if err := d.checkMemory(d.Top); err != nil {
			return err
		}
		d.Top = d.Memory[d.Top]
	case TopImmediate:
		d.Top = immediate
	case TopInput:
		d.Top = immediate
	default:
		return fmt.Errorf("datapath: invalid selector for top latch: %d", sel)
	}
	return nil
}

// MemWrite stores Next into memory at the address held in Top.
func (d *DataPath) MemWrite() error {
	if err := d.checkMemory(d.Top); err != nil {
		return err
	}
	d.Memory[d.Top] = d.Next
	return nil
}

// DataWrite spills the current Next register into the data stack at SP.
func (d *DataPath) DataWrite() error {
	if err := d.checkDataStack(d.SP); err != nil {
		return err
	}
	d.DataStack[d.SP] = d.Next
	return nil
}

// RetWrite stores a value into the return stack at RSP. sel selects the
// value source; only RetStackPC (store PC) is used by the control unit.
func (d *DataPath) RetWrite(sel Selector) error {
	if err := d.checkReturnStack(d.RSP); err != nil {
		return err
	}
	switch sel {
	case RetStackPC:
		d.ReturnStack[d.RSP] = d.PC
	default:
		return fmt.Errorf("datapath: invalid selector for return-stack write: %d", sel)
	}
	return nil
}

// ALUOperation runs the ALU combinationally over Top/Next and leaves the
// result in d.ALU.Result for a subsequent LatchTop(TopALU, 0) call.
func (d *DataPath) ALUOperation(op alu.Opcode) {
	d.ALU.SetDetails(d.Top, d.Next, op)
	d.ALU.Calc()
}
