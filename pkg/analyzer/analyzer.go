// Package analyzer runs the semantic analysis passes that turn a raw
// Terminal stream into one with every identifier, loop, and conditional
// resolved, ready for the code generator.
package analyzer

import (
	"fmt"
	"strconv"

	"github.com/anovikov/forthvm/pkg/isa"
)

// Analyze mutates terms in place, running the passes in the exact order
// the original requires: loop balance, then return addresses, then
// variables, then identifier bindings, then if/else/then targets.
func Analyze(terms []*isa.Terminal) error {
	if err := validateLoops(terms, isa.TermWHILE, isa.TermENDWHILE, "unmatched while/endwhile"); err != nil {
		return err
	}
	functions, err := fetchRetAddresses(terms)
	if err != nil {
		return err
	}
	variables := fetchVars(terms)
	createBindings(terms, variables, functions)
	if err := fetchIfStatement(terms); err != nil {
		return err
	}
	return nil
}

// validateLoops checks begin/end balance and, for every end term, records
// the matching begin term's word number as its operand (the code
// generator turns this into a backward jump target for ENDWHILE).
func validateLoops(terms []*isa.Terminal, begin, end isa.TermType, errMsg string) error {
	var nested []int
	for _, term := range terms {
		if term.IsType(begin) {
			nested = append(nested, term.WordNumber)
		}
		if term.IsType(end) {
			if len(nested) == 0 {
				return fmt.Errorf("analyzer: %s", errMsg)
			}
			target := nested[len(nested)-1]
			nested = nested[:len(nested)-1]
			term.SetOperand(target)
		}
	}
	if len(nested) != 0 {
		return fmt.Errorf("analyzer: %s", errMsg)
	}
	return nil
}

// fetchRetAddresses pairs every DEF/DEF_INTR with its closing RET,
// records each function's entry address, and marks the function-name
// term (the word right after the definer) as already consumed.
func fetchRetAddresses(terms []*isa.Terminal) (map[string]int, error) {
	var funcIndexes []int
	functions := make(map[string]int)

	for _, term := range terms {
		if term.IsType(isa.TermDEF) || term.IsType(isa.TermDEFINTR) {
			funcIndexes = append(funcIndexes, term.WordNumber)
			if term.WordNumber+1 >= len(terms) {
				return nil, fmt.Errorf("analyzer: definition at word %d has no name", term.WordNumber)
			}
			nameTerm := terms[term.WordNumber+1]
			functions[nameTerm.Word] = term.WordNumber + 1
			nameTerm.Converted = true
		}
		if term.IsType(isa.TermRET) {
			if len(funcIndexes) == 0 {
				return nil, fmt.Errorf("analyzer: unmatched ';' at word %d", term.WordNumber)
			}
			defWordNumber := funcIndexes[len(funcIndexes)-1]
			funcIndexes = funcIndexes[:len(funcIndexes)-1]
			terms[defWordNumber].SetOperand(term.WordNumber + 1)
		}
	}
	if len(funcIndexes) != 0 {
		return nil, fmt.Errorf("analyzer: unmatched ':'/interrupt definition")
	}
	return functions, nil
}

// fetchVars records each variable's assigned data address and advances
// the allocator for any immediately following `allot` clause.
func fetchVars(terms []*isa.Terminal) map[string]int {
	variables := make(map[string]int)
	currentAddress := 0

	for i, term := range terms {
		if !term.IsType(isa.TermVARIABLE) {
			continue
		}
		if i+1 >= len(terms) {
			continue
		}
		nameTerm := terms[i+1]
		variables[nameTerm.Word] = currentAddress
		nameTerm.Converted = true
		currentAddress++

		if i+3 < len(terms) && terms[i+3].IsType(isa.TermALLOT) {
			currentAddress = fetchAllocates(terms, i+3, currentAddress)
		}
	}
	return variables
}

// fetchAllocates consumes the numeric literal immediately before an
// ALLOT term and advances the allocator by that many cells.
func fetchAllocates(terms []*isa.Terminal, termIndex, currentAddress int) int {
	sizeTerm := terms[termIndex-1]
	allotSize, err := strconv.Atoi(sizeTerm.Word)
	if err != nil {
		allotSize = 0
	}
	sizeTerm.Converted = true
	terms[termIndex].Converted = true
	return currentAddress + allotSize
}

// createBindings resolves every still-unresolved identifier term in two
// full passes: first every variable reference (rewriting the term's word
// to its numeric address), then every function call (rewriting the term
// into a CALL with the function's entry address as operand). Variables
// resolve first so a function whose name happens to collide with a
// variable never shadows it.
func createBindings(terms []*isa.Terminal, variables map[string]int, functions map[string]int) {
	for _, term := range terms {
		if term.TermType != nil || term.Converted {
			continue
		}
		if addr, ok := variables[term.Word]; ok {
			term.Word = strconv.Itoa(addr)
		}
	}
	for _, term := range terms {
		if term.TermType != nil || term.Converted {
			continue
		}
		if addr, ok := functions[term.Word]; ok {
			callType := isa.TermCALL
			term.TermType = &callType
			term.SetOperand(addr)
			term.Word = "call"
		}
	}
}

// fetchIfStatement resolves if/else/then into jump targets: an IF
// without an ELSE jumps straight to THEN+1 when false, while an
// IF/ELSE/THEN triple makes IF jump to ELSE+1 and ELSE jump to THEN+1.
func fetchIfStatement(terms []*isa.Terminal) error {
	var stack []*isa.Terminal
	for _, term := range terms {
		switch {
		case term.IsType(isa.TermIF), term.IsType(isa.TermELSE):
			stack = append(stack, term)
		case term.IsType(isa.TermTHEN):
			if len(stack) == 0 {
				return fmt.Errorf("analyzer: unmatched 'then' at word %d", term.WordNumber)
			}
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if top.IsType(isa.TermELSE) {
				if len(stack) == 0 {
					return fmt.Errorf("analyzer: 'else' without matching 'if' at word %d", top.WordNumber)
				}
				ifTerm := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				top.SetOperand(term.WordNumber + 1)
				ifTerm.SetOperand(top.WordNumber + 1)
			} else {
				top.SetOperand(term.WordNumber + 1)
			}
		}
	}
	if len(stack) != 0 {
		return fmt.Errorf("analyzer: unmatched 'if'/'else'")
	}
	return nil
}
