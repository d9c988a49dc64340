package lexer

import (
	"testing"

	"github.com/anovikov/forthvm/pkg/isa"
)

func TestTokenizeSplitsOnWhitespace(t *testing.T) {
	words, err := New("1 2 +  dup").Tokenize()
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	want := []string{"1", "2", "+", "dup"}
	if len(words) != len(want) {
		t.Fatalf("words = %v, want %v", words, want)
	}
	for i := range want {
		if words[i] != want[i] {
			t.Errorf("words[%d] = %q, want %q", i, words[i], want[i])
		}
	}
}

func TestTokenizeDoubleQuotedSpacePreserved(t *testing.T) {
	words, err := New(`". hi there"`).Tokenize()
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	if len(words) != 1 || words[0] != ". hi there" {
		t.Errorf("words = %v, want single word %q", words, ". hi there")
	}
}

func TestTokenizeSingleQuoteNoEscapes(t *testing.T) {
	words, err := New(`'a\b'`).Tokenize()
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	if len(words) != 1 || words[0] != `a\b` {
		t.Errorf("words = %v, want [%q]", words, `a\b`)
	}
}

func TestTokenizeUnterminatedQuoteErrors(t *testing.T) {
	if _, err := New(`"unterminated`).Tokenize(); err == nil {
		t.Fatal("expected an error for an unterminated double quote")
	}
	if _, err := New(`'unterminated`).Tokenize(); err == nil {
		t.Fatal("expected an error for an unterminated single quote")
	}
}

func TestStreamToTermsEntrypointFirst(t *testing.T) {
	terms, err := StreamToTerms("1 2 +")
	if err != nil {
		t.Fatalf("StreamToTerms: %v", err)
	}
	if len(terms) != 4 {
		t.Fatalf("len(terms) = %d, want 4", len(terms))
	}
	if !terms[0].IsType(isa.TermENTRYPOINT) {
		t.Errorf("terms[0] should be ENTRYPOINT, got %+v", terms[0])
	}
	if terms[0].WordNumber != 0 {
		t.Errorf("terms[0].WordNumber = %d, want 0", terms[0].WordNumber)
	}
	if terms[3].WordNumber != 3 || !terms[3].IsType(isa.TermADD) {
		t.Errorf("terms[3] = %+v, want word 3 / TermADD", terms[3])
	}
}

func TestStreamToTermsReservedWordCaseSensitive(t *testing.T) {
	terms, err := StreamToTerms("DI di")
	if err != nil {
		t.Fatalf("StreamToTerms: %v", err)
	}
	if terms[1].TermType != nil {
		t.Errorf("uppercase DI should not resolve to a reserved word, got %v", *terms[1].TermType)
	}
	if !terms[2].IsType(isa.TermDI) {
		t.Errorf("lowercase di should resolve to TermDI, got %+v", terms[2])
	}
}

func TestStreamToTermsStringLiteral(t *testing.T) {
	terms, err := StreamToTerms(`". hi"`)
	if err != nil {
		t.Fatalf("StreamToTerms: %v", err)
	}
	if len(terms) != 2 {
		t.Fatalf("len(terms) = %d, want 2", len(terms))
	}
	if !terms[1].IsType(isa.TermSTRING) {
		t.Fatalf("terms[1] should be a STRING term, got %+v", terms[1])
	}
	if terms[1].Word != `."hi"` {
		t.Errorf("terms[1].Word = %q, want %q", terms[1].Word, `."hi"`)
	}
}

func TestStreamToTermsLiteralNumberUnresolved(t *testing.T) {
	terms, err := StreamToTerms("42")
	if err != nil {
		t.Fatalf("StreamToTerms: %v", err)
	}
	if terms[1].TermType != nil {
		t.Errorf("numeric literal should have nil TermType, got %v", *terms[1].TermType)
	}
	if terms[1].Word != "42" {
		t.Errorf("terms[1].Word = %q, want %q", terms[1].Word, "42")
	}
}
