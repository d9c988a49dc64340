// Command translator compiles a source program into a linked instruction
// stream and a data memory image.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/anovikov/forthvm/pkg/compiler"
	"github.com/anovikov/forthvm/pkg/isa"
)

var traceFlag = flag.Bool("trace", false, "Print compiler trace to stderr")

func main() {
	flag.Parse()

	if len(flag.Args()) < 3 {
		fmt.Println("Usage: translator [options] <source> <target_code> <target_memory>")
		fmt.Println("\nOptions:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	sourcePath := flag.Args()[0]
	codePath := flag.Args()[1]
	memoryPath := flag.Args()[2]

	source, err := os.ReadFile(sourcePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading source: %v\n", err)
		os.Exit(1)
	}

	code, memory, err := compiler.Translate(string(source), *traceFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := isa.WriteCode(codePath, code); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing code: %v\n", err)
		os.Exit(1)
	}
	if err := isa.WriteMemory(memoryPath, memory); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing memory: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Compiled: %s, %s (%d instructions)\n", codePath, memoryPath, len(code))
}
