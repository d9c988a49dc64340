// Command machine executes a linked instruction stream against a memory
// image, optionally feeding it timed interrupt tokens from an input file.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"

	"golang.org/x/term"

	"github.com/atotto/clipboard"

	"github.com/anovikov/forthvm/pkg/control"
	"github.com/anovikov/forthvm/pkg/datapath"
	"github.com/anovikov/forthvm/pkg/driver"
	"github.com/anovikov/forthvm/pkg/isa"
)

var (
	limitFlag      = flag.Int("limit", 1000, "Maximum number of instructions to execute")
	traceFlag      = flag.Bool("trace", false, "Print the per-tick trace journal")
	stepFlag       = flag.Bool("step", false, "Single-step the control unit, one instruction per keypress")
	copyOutputFlag = flag.Bool("copy-output", false, "Copy the finished run's output buffer to the system clipboard")
)

func main() {
	flag.Parse()

	if len(flag.Args()) < 2 {
		fmt.Println("Usage: machine [options] <code_file> <memory_file> [<input_file>]")
		fmt.Println("\nOptions:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	codePath := flag.Args()[0]
	memoryPath := flag.Args()[1]

	code, err := isa.ReadCode(codePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading code: %v\n", err)
		os.Exit(1)
	}
	memory, err := isa.ReadMemory(memoryPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading memory: %v\n", err)
		os.Exit(1)
	}

	var tokens []control.Token
	if len(flag.Args()) > 2 {
		tokens, err = readTokens(flag.Args()[2])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
			os.Exit(1)
		}
	}

	var result driver.Result
	if *stepFlag {
		result, err = runStep(code, memory, *limitFlag, tokens)
	} else {
		result, err = driver.Run(code, memory, *limitFlag, tokens)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "---Runtime error---\n")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}

	if *traceFlag {
		fmt.Println(result.FramedJournalString())
	} else {
		fmt.Printf("Number of ticks: %d\n", result.Ticks-1)
		fmt.Printf("Output buffer: %s\n", result.Output)
	}

	if *copyOutputFlag {
		if err := clipboard.WriteAll(result.Output); err != nil {
			fmt.Fprintf(os.Stderr, "Error copying output to clipboard: %v\n", err)
		}
	}

	if err != nil {
		os.Exit(1)
	}
}

// readTokens parses an input file holding a literal list of (tick, char)
// pairs, accepted as `[[n,"c"], ...]` JSON.
func readTokens(path string) ([]control.Token, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var pairs [][]json.RawMessage
	if err := json.Unmarshal(raw, &pairs); err != nil {
		return nil, fmt.Errorf("malformed token list: %w", err)
	}
	tokens := make([]control.Token, 0, len(pairs))
	for i, pair := range pairs {
		if len(pair) != 2 {
			return nil, fmt.Errorf("token %d: expected a [tick, char] pair", i)
		}
		var tick int
		if err := json.Unmarshal(pair[0], &tick); err != nil {
			return nil, fmt.Errorf("token %d: bad tick: %w", i, err)
		}
		var ch string
		if err := json.Unmarshal(pair[1], &ch); err != nil {
			return nil, fmt.Errorf("token %d: bad char: %w", i, err)
		}
		if len(ch) != 1 {
			return nil, fmt.Errorf("token %d: char must be a single byte, got %q", i, ch)
		}
		tokens = append(tokens, control.Token{DueTick: tick, Char: ch[0]})
	}
	return tokens, nil
}

// runStep drives the control unit one FetchSingleCommand per keypress,
// with the terminal in raw mode so no Enter is needed between steps.
func runStep(code []isa.Instruction, memory []int, limit int, tokens []control.Token) (driver.Result, error) {
	dp, err := datapath.New(isa.MemorySize, memory, isa.MemorySize, isa.MemorySize)
	if err != nil {
		return driver.Result{}, err
	}
	cu := control.New(dp, isa.MemorySize, tokens)
	if err := cu.InitInstructions(code); err != nil {
		return driver.Result{}, err
	}

	fd := int(os.Stdin.Fd())
	oldState, rawErr := term.MakeRaw(fd)
	interactive := rawErr == nil
	if interactive {
		defer term.Restore(fd, oldState)
	} else {
		fmt.Fprintf(os.Stderr, "warning: could not enter raw terminal mode (%v); press Enter to step\n", rawErr)
	}

	buf := make([]byte, 1)
	for cu.InstructionNumber < limit {
		fmt.Printf("\rTICK: %4d PC: %4d > ", cu.TickNumber, cu.DataPath.PC)
		if interactive {
			os.Stdin.Read(buf)
		} else {
			fmt.Scanln()
		}
		if err := cu.FetchSingleCommand(); err != nil {
			fmt.Println()
			if errors.Is(err, control.ErrHalt) {
				break
			}
			return driver.Result{Output: cu.OutBuffer.String(), Ticks: cu.TickNumber, Journal: cu.Journal}, err
		}
	}
	fmt.Println()

	return driver.Result{Output: cu.OutBuffer.String(), Ticks: cu.TickNumber, Journal: cu.Journal}, nil
}
