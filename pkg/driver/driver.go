// Package driver wires the DataPath and ControlUnit behind a single Run
// call: load a linked program and a memory image, execute it for up to
// limit instructions, and return its output, tick count, and trace
// journal.
package driver

import (
	"errors"
	"fmt"
	"strings"

	"github.com/anovikov/forthvm/pkg/control"
	"github.com/anovikov/forthvm/pkg/datapath"
	"github.com/anovikov/forthvm/pkg/isa"
)

// Result is the outcome of one Run call.
type Result struct {
	Output  string
	Ticks   int
	Journal []string
}

// Run loads code and memory into a fresh DataPath/ControlUnit pair sized
// to isa.MemorySize and executes at most limit instructions, stopping
// early on HALT.
func Run(code []isa.Instruction, memory []int, limit int, tokens []control.Token) (Result, error) {
	dp, err := datapath.New(isa.MemorySize, memory, isa.MemorySize, isa.MemorySize)
	if err != nil {
		return Result{}, fmt.Errorf("driver: %w", err)
	}

	cu := control.New(dp, isa.MemorySize, tokens)
	if err := cu.InitInstructions(code); err != nil {
		return Result{}, fmt.Errorf("driver: %w", err)
	}

	for cu.InstructionNumber < limit {
		err := cu.FetchSingleCommand()
		if err != nil {
			if errors.Is(err, control.ErrHalt) {
				break
			}
			return Result{Output: cu.OutBuffer.String(), Ticks: cu.TickNumber, Journal: cu.Journal}, fmt.Errorf("driver: %w", err)
		}
	}

	return Result{Output: cu.OutBuffer.String(), Ticks: cu.TickNumber, Journal: cu.Journal}, nil
}

// FramedJournal renders a Result the way the original's CLI driver does:
// a "Number of ticks" line and an "Output buffer" line prepended ahead of
// the per-tick trace lines.
func (r Result) FramedJournal() []string {
	framed := make([]string, 0, len(r.Journal)+2)
	framed = append(framed, fmt.Sprintf("Number of ticks: %d", r.Ticks-1))
	framed = append(framed, fmt.Sprintf("Output buffer: %s", r.Output))
	framed = append(framed, r.Journal...)
	return framed
}

// FramedJournalString joins FramedJournal with newlines.
func (r Result) FramedJournalString() string {
	return strings.Join(r.FramedJournal(), "\n")
}
