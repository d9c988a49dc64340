package isa

import (
	"os"
	"path/filepath"
	"testing"
)

func TestInstructionJSONRoundTrip(t *testing.T) {
	arg := 5
	instr := Instruction{Index: 2, Command: PUSH, Arg: &arg}
	b, err := instr.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}
	want := `{"index":2,"command":"PUSH","arg":5}`
	if string(b) != want {
		t.Errorf("MarshalJSON = %s, want %s", b, want)
	}

	var decoded Instruction
	if err := decoded.UnmarshalJSON(b); err != nil {
		t.Fatalf("UnmarshalJSON: %v", err)
	}
	if decoded.Index != instr.Index || decoded.Command != instr.Command || *decoded.Arg != *instr.Arg {
		t.Errorf("decoded = %+v, want %+v", decoded, instr)
	}
}

func TestInstructionJSONNoArg(t *testing.T) {
	instr := Instruction{Index: 0, Command: HALT}
	b, err := instr.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}
	want := `{"index":0,"command":"HALT"}`
	if string(b) != want {
		t.Errorf("MarshalJSON = %s, want %s", b, want)
	}
}

func TestWriteReadCode(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "code.json")
	arg := 3
	code := []Instruction{
		{Index: 0, Command: PUSH, Arg: &arg},
		{Index: 1, Command: HALT},
	}
	if err := WriteCode(path, code); err != nil {
		t.Fatalf("WriteCode: %v", err)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if content[0] != '[' || content[len(content)-1] != ']' {
		t.Errorf("WriteCode content not bracketed: %s", content)
	}

	read, err := ReadCode(path)
	if err != nil {
		t.Fatalf("ReadCode: %v", err)
	}
	if len(read) != 2 || read[0].Command != PUSH || read[1].Command != HALT {
		t.Errorf("ReadCode = %+v", read)
	}
}

func TestWriteReadMemory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "memory.json")
	memory := []int{0, 1, 2, 104, 105, 0}
	if err := WriteMemory(path, memory); err != nil {
		t.Fatalf("WriteMemory: %v", err)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	want := "[0, 1, 2, 104, 105, 0]"
	if string(content) != want {
		t.Errorf("WriteMemory content = %s, want %s", content, want)
	}

	read, err := ReadMemory(path)
	if err != nil {
		t.Fatalf("ReadMemory: %v", err)
	}
	if len(read) != len(memory) {
		t.Fatalf("ReadMemory len = %d, want %d", len(read), len(memory))
	}
	for i := range memory {
		if read[i] != memory[i] {
			t.Errorf("ReadMemory[%d] = %d, want %d", i, read[i], memory[i])
		}
	}
}
