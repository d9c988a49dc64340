// Package lexer turns source text into a stream of isa.Terminal records:
// shell-style word splitting followed by reserved-word and string-literal
// classification.
package lexer

import (
	"fmt"
	"os"
	"strings"

	"github.com/anovikov/forthvm/pkg/isa"
)

// Lexer scans source text into raw words using POSIX-shell-like quoting
// rules: single quotes are literal, double quotes honor backslash escapes
// for '"' and '\\', and a quoted segment abutting an unquoted one joins
// into a single word. Unterminated quotes are reported as errors.
type Lexer struct {
	src    []rune
	pos    int
	line   int
	column int
	trace  bool
}

// New builds a Lexer over source. Pass trace=true to have Tokenize print
// each word it emits to stderr as it scans.
func New(source string, trace ...bool) *Lexer {
	t := false
	if len(trace) > 0 {
		t = trace[0]
	}
	return &Lexer{src: []rune(source), line: 1, column: 1, trace: t}
}

func (l *Lexer) peek() (rune, bool) {
	if l.pos >= len(l.src) {
		return 0, false
	}
	return l.src[l.pos], true
}

func (l *Lexer) advance() (rune, bool) {
	r, ok := l.peek()
	if !ok {
		return 0, false
	}
	l.pos++
	if r == '\n' {
		l.line++
		l.column = 1
	} else {
		l.column++
	}
	return r, true
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

// Tokenize splits source into shell-quoted words.
func (l *Lexer) Tokenize() ([]string, error) {
	var words []string
	for {
		for {
			r, ok := l.peek()
			if !ok || !isSpace(r) {
				break
			}
			l.advance()
		}
		if _, ok := l.peek(); !ok {
			break
		}
		word, err := l.readWord()
		if err != nil {
			return nil, err
		}
		words = append(words, word)
		if l.trace {
			fmt.Fprintf(os.Stderr, "lexer: word %q at line %d\n", word, l.line)
		}
	}
	return words, nil
}

func (l *Lexer) readWord() (string, error) {
	var b strings.Builder
	for {
		r, ok := l.peek()
		if !ok || isSpace(r) {
			break
		}
		switch r {
		case '\'':
			seg, err := l.readSingleQuoted()
			if err != nil {
				return "", err
			}
			b.WriteString(seg)
		case '"':
			seg, err := l.readDoubleQuoted()
			if err != nil {
				return "", err
			}
			b.WriteString(seg)
		case '\\':
			l.advance()
			if esc, ok := l.advance(); ok {
				b.WriteRune(esc)
			}
		default:
			l.advance()
			b.WriteRune(r)
		}
	}
	return b.String(), nil
}

func (l *Lexer) readSingleQuoted() (string, error) {
	startLine := l.line
	l.advance() // consume opening '
	var b strings.Builder
	for {
		r, ok := l.advance()
		if !ok {
			return "", fmt.Errorf("lexer: unterminated quote starting at line %d", startLine)
		}
		if r == '\'' {
			return b.String(), nil
		}
		b.WriteRune(r)
	}
}

func (l *Lexer) readDoubleQuoted() (string, error) {
	startLine := l.line
	l.advance() // consume opening "
	var b strings.Builder
	for {
		r, ok := l.advance()
		if !ok {
			return "", fmt.Errorf("lexer: unterminated quote starting at line %d", startLine)
		}
		if r == '"' {
			return b.String(), nil
		}
		if r == '\\' {
			next, ok := l.advance()
			if !ok {
				return "", fmt.Errorf("lexer: unterminated quote starting at line %d", startLine)
			}
			switch next {
			case '"', '\\':
				b.WriteRune(next)
			default:
				b.WriteRune('\\')
				b.WriteRune(next)
			}
			continue
		}
		b.WriteRune(r)
	}
}

// StreamToTerms tokenizes source and builds the Terminal stream: a
// synthetic ENTRYPOINT term at word number 0, then one term per word,
// reserved words resolved against isa.ReservedWords, and words beginning
// with the literal two-character prefix ". " reformatted into STRING
// terms.
func StreamToTerms(source string, trace ...bool) ([]*isa.Terminal, error) {
	words, err := New(source, trace...).Tokenize()
	if err != nil {
		return nil, err
	}

	entrypoint := isa.TermENTRYPOINT
	terms := []*isa.Terminal{{WordNumber: 0, TermType: &entrypoint, Word: ""}}

	for i, w := range words {
		term := &isa.Terminal{WordNumber: i + 1, Word: w}
		if strings.HasPrefix(w, ". ") {
			str := isa.TermSTRING
			term.TermType = &str
			term.Word = fmt.Sprintf(".\"%s\"", w[2:])
		} else if tt, ok := isa.ReservedWords[w]; ok {
			ttCopy := tt
			term.TermType = &ttCopy
		}
		terms = append(terms, term)
	}
	return terms, nil
}
