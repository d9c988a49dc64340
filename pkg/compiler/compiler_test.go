package compiler

import (
	"testing"

	"github.com/anovikov/forthvm/pkg/isa"
)

func TestTranslatePushAdd(t *testing.T) {
	code, _, err := Translate("1 2 +")
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if code[len(code)-1].Command != isa.HALT {
		t.Errorf("last instruction = %v, want HALT", code[len(code)-1].Command)
	}
}

func TestTranslateUnknownWordErrors(t *testing.T) {
	if _, _, err := Translate("bogus"); err == nil {
		t.Fatal("expected an error translating an unresolved identifier")
	}
}

func TestTranslateIsStatelessAcrossCalls(t *testing.T) {
	// A variable named "x" in one call must not leak into a second,
	// independent call that also defines (and resolves) an "x".
	code1, _, err := Translate("variable x 5 x !")
	if err != nil {
		t.Fatalf("Translate (first): %v", err)
	}
	code2, _, err := Translate("variable x 9 x !")
	if err != nil {
		t.Fatalf("Translate (second): %v", err)
	}
	if len(code1) != len(code2) {
		t.Errorf("len(code1)=%d len(code2)=%d, want equal for structurally identical programs", len(code1), len(code2))
	}
}
