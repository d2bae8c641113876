package linker

import "testing"

func TestSymbolMarkAliveOnce(t *testing.T) {
	s := &Symbol{Name: "_x"}
	if s.IsAlive() {
		t.Fatal("fresh symbol reports alive")
	}
	if !s.MarkAlive() {
		t.Fatal("first MarkAlive call should report the transition")
	}
	if !s.IsAlive() {
		t.Fatal("symbol not alive after MarkAlive")
	}
	if s.MarkAlive() {
		t.Fatal("second MarkAlive call should report no transition")
	}
}

func TestSymbolNeedsFlags(t *testing.T) {
	s := &Symbol{Name: "_y"}
	if s.NeedsGot() || s.NeedsStub() || s.NeedsThreadPtr() || s.NeedsRangeThunk() {
		t.Fatal("fresh symbol should need nothing")
	}
	s.setFlag(needsGot)
	if !s.NeedsGot() {
		t.Error("NeedsGot false after setFlag(needsGot)")
	}
	if s.NeedsStub() {
		t.Error("NeedsStub true after only needsGot was set")
	}
	s.setFlag(needsStub)
	if !s.NeedsGot() || !s.NeedsStub() {
		t.Error("setting a second flag must not clear the first")
	}
}

func TestSymbolIsUndefined(t *testing.T) {
	s := &Symbol{Name: "_u"}
	if !s.IsUndefined() {
		t.Error("symbol with no File and no DylibOrdinal should be undefined")
	}
	s.DylibOrdinal = 1
	if s.IsUndefined() {
		t.Error("symbol resolved to a dylib ordinal should not be undefined")
	}
}

func TestSymbolIsDylibImport(t *testing.T) {
	s := &Symbol{Name: "_d"}
	if s.IsDylibImport() {
		t.Error("DylibOrdinal 0 must not count as a dylib import")
	}
	s.DylibOrdinal = 2
	if !s.IsDylibImport() {
		t.Error("DylibOrdinal > 0 must count as a dylib import")
	}
}

func TestSymbolIsTentative(t *testing.T) {
	s := &Symbol{Name: "_c"}
	if s.IsTentative() {
		t.Error("zero CommonSize must not be tentative")
	}
	s.CommonSize = 8
	if !s.IsTentative() {
		t.Error("nonzero CommonSize must be tentative")
	}
}
