package datapath

import (
	"testing"

	"github.com/anovikov/forthvm/pkg/alu"
)

func newTestDataPath(t *testing.T, memory []int) *DataPath {
	t.Helper()
	dp, err := New(16, memory, 8, 8)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return dp
}

func TestNewZeroPadsMemory(t *testing.T) {
	dp := newTestDataPath(t, []int{1, 2, 3})
	if len(dp.Memory) != 16 {
		t.Fatalf("len(Memory) = %d, want 16", len(dp.Memory))
	}
	if dp.Memory[0] != 1 || dp.Memory[2] != 3 || dp.Memory[3] != 0 {
		t.Errorf("Memory = %v", dp.Memory)
	}
	if dp.SP != StackPtrOffset || dp.RSP != StackPtrOffset {
		t.Errorf("SP=%d RSP=%d, want both %d", dp.SP, dp.RSP, StackPtrOffset)
	}
}

func TestNewRejectsOversizedMemory(t *testing.T) {
	if _, err := New(4, []int{1, 2, 3, 4, 5}, 4, 4); err == nil {
		t.Fatal("expected error for memory image longer than memorySize")
	}
}

func TestMemWriteUsesTopAsAddress(t *testing.T) {
	dp := newTestDataPath(t, nil)
	dp.Top = 5
	dp.Next = 99
	if err := dp.MemWrite(); err != nil {
		t.Fatalf("MemWrite: %v", err)
	}
	if dp.Memory[5] != 99 {
		t.Errorf("Memory[5] = %d, want 99", dp.Memory[5])
	}
}

func TestMemWriteOutOfRange(t *testing.T) {
	dp := newTestDataPath(t, nil)
	dp.Top = 100
	if err := dp.MemWrite(); err == nil {
		t.Fatal("expected out-of-range error")
	}
}

func TestDataWriteAndLatchNextMem(t *testing.T) {
	dp := newTestDataPath(t, nil)
	dp.Next = 42
	if err := dp.DataWrite(); err != nil {
		t.Fatalf("DataWrite: %v", err)
	}
	if dp.DataStack[dp.SP] != 42 {
		t.Errorf("DataStack[SP] = %d, want 42", dp.DataStack[dp.SP])
	}
	dp.Next = 0
	if err := dp.LatchNext(NextMem); err != nil {
		t.Fatalf("LatchNext: %v", err)
	}
	if dp.Next != 42 {
		t.Errorf("Next = %d, want 42", dp.Next)
	}
}

func TestLatchTopSelectors(t *testing.T) {
	dp := newTestDataPath(t, []int{7, 8, 9})
	dp.Next, dp.Temp = 1, 2
	dp.ALU.SetDetails(3, 4, alu.Add)
	dp.ALU.Calc()

	if err := dp.LatchTop(TopNext, 0); err != nil || dp.Top != 1 {
		t.Errorf("TopNext: Top=%d err=%v", dp.Top, err)
	}
	if err := dp.LatchTop(TopALU, 0); err != nil || dp.Top != 7 {
		t.Errorf("TopALU: Top=%d err=%v", dp.Top, err)
	}
	if err := dp.LatchTop(TopTemp, 0); err != nil || dp.Top != 2 {
		t.Errorf("TopTemp: Top=%d err=%v", dp.Top, err)
	}
	if err := dp.LatchTop(TopImmediate, 55); err != nil || dp.Top != 55 {
		t.Errorf("TopImmediate: Top=%d err=%v", dp.Top, err)
	}
	if err := dp.LatchTop(TopInput, 66); err != nil || dp.Top != 66 {
		t.Errorf("TopInput: Top=%d err=%v", dp.Top, err)
	}
	dp.Top = 1
	if err := dp.LatchTop(TopMem, 0); err != nil || dp.Top != 8 {
		t.Errorf("TopMem: Top=%d err=%v", dp.Top, err)
	}
}

func TestRetWritePC(t *testing.T) {
	dp := newTestDataPath(t, nil)
	dp.PC = 17
	if err := dp.RetWrite(RetStackPC); err != nil {
		t.Fatalf("RetWrite: %v", err)
	}
	if dp.ReturnStack[dp.RSP] != 17 {
		t.Errorf("ReturnStack[RSP] = %d, want 17", dp.ReturnStack[dp.RSP])
	}
}

func TestLatchSPRSP(t *testing.T) {
	dp := newTestDataPath(t, nil)
	start := dp.SP
	dp.LatchSP(SPInc)
	if dp.SP != start+1 {
		t.Errorf("SP after SPInc = %d, want %d", dp.SP, start+1)
	}
	dp.LatchSP(SPDec)
	if dp.SP != start {
		t.Errorf("SP after SPDec = %d, want %d", dp.SP, start)
	}

	startR := dp.RSP
	dp.LatchRSP(RSPInc)
	if dp.RSP != startR+1 {
		t.Errorf("RSP after RSPInc = %d, want %d", dp.RSP, startR+1)
	}
	dp.LatchRSP(RSPDec)
	if dp.RSP != startR {
		t.Errorf("RSP after RSPDec = %d, want %d", dp.RSP, startR)
	}
}

func TestALUOperation(t *testing.T) {
	dp := newTestDataPath(t, nil)
	dp.Top, dp.Next = 10, 20
	dp.ALUOperation(alu.Add)
	if dp.ALU.Result != 30 {
		t.Errorf("ALU.Result = %d, want 30", dp.ALU.Result)
	}
}
