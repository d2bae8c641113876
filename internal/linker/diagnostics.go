package linker

import (
	"errors"
	"fmt"
	"sync"
)

// Sentinel errors callers can errors.Is against without parsing messages.
var (
	ErrUndefinedSymbol = errors.New("undefined symbol")
	ErrDuplicateSymbol = errors.New("duplicate symbol")
	ErrBadRelocation   = errors.New("unsupported relocation")
	ErrArchMismatch    = errors.New("input file architecture mismatch")
)

type diagLevel int

const (
	levelWarning diagLevel = iota
	levelError
)

// LinkError is one accumulated diagnostic, attributable to a specific
// input file and, where known, a byte offset within it.
type LinkError struct {
	Level   diagLevel
	File    string
	Offset  int64
	Message string
	Wrapped error
}

func (e *LinkError) Error() string {
	loc := e.File
	if e.Offset != 0 {
		loc = fmt.Sprintf("%s:%#x", e.File, e.Offset)
	}
	lvl := "warning"
	if e.Level == levelError {
		lvl = "error"
	}
	if loc == "" {
		return fmt.Sprintf("%s: %s", lvl, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", loc, lvl, e.Message)
}

func (e *LinkError) Unwrap() error { return e.Wrapped }

// Diagnostics accumulates every warning/error raised during a link so the
// run can report all of them instead of aborting on the first, matching
// how a production linker batches diagnostics across its concurrent
// file-processing phases.
type Diagnostics struct {
	mu     sync.Mutex
	errors []*LinkError
}

func NewDiagnostics() *Diagnostics { return &Diagnostics{} }

func (d *Diagnostics) Errorf(file string, offset int64, wrapped error, format string, args ...any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.errors = append(d.errors, &LinkError{
		Level: levelError, File: file, Offset: offset,
		Message: fmt.Sprintf(format, args...), Wrapped: wrapped,
	})
}

func (d *Diagnostics) Warnf(file string, offset int64, format string, args ...any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.errors = append(d.errors, &LinkError{
		Level: levelWarning, File: file, Offset: offset,
		Message: fmt.Sprintf(format, args...),
	})
}

// HasErrors reports whether any error-level diagnostic was recorded; a
// link with only warnings still produces output.
func (d *Diagnostics) HasErrors() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, e := range d.errors {
		if e.Level == levelError {
			return true
		}
	}
	return false
}

// Err joins every error-level diagnostic into one error for the caller of
// Link to report; it returns nil if none were recorded.
func (d *Diagnostics) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	var errs []error
	for _, e := range d.errors {
		if e.Level == levelError {
			errs = append(errs, e)
		}
	}
	return errors.Join(errs...)
}

func (d *Diagnostics) All() []*LinkError {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*LinkError(nil), d.errors...)
}
