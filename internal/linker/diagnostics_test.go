package linker

import (
	"errors"
	"strings"
	"testing"
)

func TestDiagnosticsHasErrorsIgnoresWarnings(t *testing.T) {
	d := NewDiagnostics()
	d.Warnf("a.o", 0, "just a warning")
	if d.HasErrors() {
		t.Fatal("a warning-only Diagnostics must not report HasErrors")
	}
	if d.Err() != nil {
		t.Fatal("Err() must be nil when only warnings were recorded")
	}
}

func TestDiagnosticsErrorfAccumulates(t *testing.T) {
	d := NewDiagnostics()
	d.Errorf("a.o", 0, ErrUndefinedSymbol, "undefined symbol: %s", "_foo")
	d.Errorf("b.o", 0, ErrDuplicateSymbol, "duplicate symbol: %s", "_bar")

	if !d.HasErrors() {
		t.Fatal("Diagnostics with two Errorf calls must report HasErrors")
	}
	err := d.Err()
	if err == nil {
		t.Fatal("Err() must be non-nil")
	}
	if !errors.Is(err, ErrUndefinedSymbol) || !errors.Is(err, ErrDuplicateSymbol) {
		t.Error("Err() must join all recorded errors so errors.Is matches either sentinel")
	}
}

func TestDiagnosticsAllIncludesWarningsAndErrors(t *testing.T) {
	d := NewDiagnostics()
	d.Warnf("a.o", 0, "warning text")
	d.Errorf("b.o", 0, ErrBadRelocation, "error text")
	all := d.All()
	if len(all) != 2 {
		t.Fatalf("All() returned %d entries, want 2", len(all))
	}
}

func TestLinkErrorFormatting(t *testing.T) {
	e := &LinkError{Level: levelError, File: "x.o", Offset: 0x10, Message: "bad thing"}
	s := e.Error()
	if !strings.Contains(s, "x.o") || !strings.Contains(s, "bad thing") || !strings.Contains(s, "error") {
		t.Errorf("Error() = %q, missing expected components", s)
	}
}

func TestLinkErrorFormattingNoOffset(t *testing.T) {
	e := &LinkError{Level: levelWarning, File: "y.o", Message: "hmm"}
	s := e.Error()
	if strings.Contains(s, "0x") {
		t.Errorf("Error() with zero offset should not print a hex offset marker: %q", s)
	}
	if !strings.Contains(s, "warning") {
		t.Errorf("Error() should mention warning level: %q", s)
	}
}

func TestLinkErrorUnwrap(t *testing.T) {
	e := &LinkError{Wrapped: ErrArchMismatch}
	if !errors.Is(e, ErrArchMismatch) {
		t.Error("LinkError must unwrap to its Wrapped sentinel")
	}
}
