// Package compiler wires the lexer, semantic analyzer, and code
// generator behind a single entry point.
package compiler

import (
	"fmt"

	"github.com/anovikov/forthvm/pkg/analyzer"
	"github.com/anovikov/forthvm/pkg/codegen"
	"github.com/anovikov/forthvm/pkg/isa"
	"github.com/anovikov/forthvm/pkg/lexer"
)

// Translate compiles source into a linked instruction stream and the
// initial data memory image. Each call runs against its own freshly
// built term stream; no state is shared across calls, unlike the
// original's module-level globals.
func Translate(source string, trace ...bool) ([]isa.Instruction, []int, error) {
	terms, err := lexer.StreamToTerms(source, trace...)
	if err != nil {
		return nil, nil, fmt.Errorf("compiler: %w", err)
	}
	if err := analyzer.Analyze(terms); err != nil {
		return nil, nil, fmt.Errorf("compiler: %w", err)
	}
	code, memory, err := codegen.Generate(terms)
	if err != nil {
		return nil, nil, fmt.Errorf("compiler: %w", err)
	}
	return code, memory, nil
}
