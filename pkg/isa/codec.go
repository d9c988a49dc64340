package isa

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Instruction is the serialized form of one lowered, linked Opcode: the
// record written to and read from the code file.
type Instruction struct {
	Index   int
	Command OpcodeType
	Arg     *int
}

type jsonInstruction struct {
	Index   int    `json:"index"`
	Command string `json:"command"`
	Arg     *int   `json:"arg,omitempty"`
}

// MarshalJSON renders the instruction the way the original writes it:
// the command name upper-cased, arg omitted entirely when absent.
func (i Instruction) MarshalJSON() ([]byte, error) {
	return json.Marshal(jsonInstruction{Index: i.Index, Command: i.Command.String(), Arg: i.Arg})
}

// UnmarshalJSON accepts any case for the command name.
func (i *Instruction) UnmarshalJSON(b []byte) error {
	var j jsonInstruction
	if err := json.Unmarshal(b, &j); err != nil {
		return err
	}
	op, err := ParseOpcodeType(j.Command)
	if err != nil {
		return err
	}
	i.Index = j.Index
	i.Command = op
	i.Arg = j.Arg
	return nil
}

// WriteCode writes the instruction stream to path as a JSON array, one
// record per line with a single leading space of continuation indent,
// matching the original's write_code framing.
func WriteCode(path string, code []Instruction) error {
	lines := make([]string, len(code))
	for idx, instr := range code {
		b, err := json.Marshal(instr)
		if err != nil {
			return fmt.Errorf("isa: encode instruction %d: %w", idx, err)
		}
		lines[idx] = string(b)
	}
	content := "[" + strings.Join(lines, ",\n ") + "]"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("isa: write code file %s: %w", path, err)
	}
	return nil
}

// ReadCode reads a code file written by WriteCode (or any JSON array of
// equivalent instruction records).
func ReadCode(path string) ([]Instruction, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("isa: read code file %s: %w", path, err)
	}
	var code []Instruction
	if err := json.Unmarshal(b, &code); err != nil {
		return nil, fmt.Errorf("isa: decode code file %s: %w", path, err)
	}
	return code, nil
}

// WriteMemory writes the data memory image as a single bracketed,
// comma-space-separated line of integers, matching the original's
// write_memory framing.
func WriteMemory(path string, memory []int) error {
	parts := make([]string, len(memory))
	for i, v := range memory {
		parts[i] = strconv.Itoa(v)
	}
	content := "[" + strings.Join(parts, ", ") + "]"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("isa: write memory file %s: %w", path, err)
	}
	return nil
}

// ReadMemory reads a memory file written by WriteMemory.
func ReadMemory(path string) ([]int, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("isa: read memory file %s: %w", path, err)
	}
	var memory []int
	if err := json.Unmarshal(b, &memory); err != nil {
		return nil, fmt.Errorf("isa: decode memory file %s: %w", path, err)
	}
	return memory, nil
}
