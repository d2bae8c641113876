package linker

import "testing"

func TestDeadStripDisabledKeepsEverything(t *testing.T) {
	ss1 := &Subsection{Isec: &InputSection{}}
	ss2 := &Subsection{Isec: &InputSection{}}
	obj := &ObjectFile{Subsections: []*Subsection{ss1, ss2}}
	ctx := &Context{Config: &Config{DeadStrip: false}, Objects: []*ObjectFile{obj}}

	DeadStrip(ctx)

	if !ss1.IsAlive() || !ss2.IsAlive() {
		t.Fatal("without -dead_strip every subsection must be marked alive")
	}
	if len(obj.Subsections) != 2 {
		t.Fatalf("obj.Subsections shrank with dead-strip disabled: got %d, want 2", len(obj.Subsections))
	}
}

func TestDeadStripMarksReachableAndSweepsUnreachable(t *testing.T) {
	mainSS := &Subsection{Isec: &InputSection{}}
	helperSS := &Subsection{Isec: &InputSection{}}
	deadSS := &Subsection{Isec: &InputSection{}}

	helperSym := &Symbol{Name: "_helper", Subsec: helperSS}
	mainSS.Relocs = []Relocation{{Target: helperSym}}
	// helperSS itself has no outgoing relocations, so deadSS is never reached

	obj := &ObjectFile{Subsections: []*Subsection{mainSS, helperSS, deadSS}}

	ctx := &Context{
		Config: &Config{DeadStrip: true, Kind: OutputExecute, Entry: "_main"},
		Symtab: NewSymbolTable(),
		Objects: []*ObjectFile{obj},
	}
	mainSym := ctx.Symtab.Intern("_main")
	mainSym.Subsec = mainSS

	DeadStrip(ctx)

	if !mainSS.IsAlive() {
		t.Error("entry point's subsection must survive dead-strip")
	}
	if !helperSS.IsAlive() {
		t.Error("subsection reachable via a relocation must survive dead-strip")
	}
	if deadSS.IsAlive() {
		t.Error("unreachable subsection must not survive dead-strip")
	}
	if len(obj.Subsections) != 2 {
		t.Fatalf("sweep left %d subsections, want 2 (main+helper)", len(obj.Subsections))
	}
	for _, ss := range obj.Subsections {
		if ss == deadSS {
			t.Fatal("swept subsection still present in obj.Subsections")
		}
	}
}

func TestDeadStripForceUndefinedIsRoot(t *testing.T) {
	forcedSS := &Subsection{Isec: &InputSection{}}
	obj := &ObjectFile{Subsections: []*Subsection{forcedSS}}
	ctx := &Context{
		Config: &Config{DeadStrip: true, Kind: OutputExecute, Entry: "_main", ForceUndefined: []string{"_keepme"}},
		Symtab: NewSymbolTable(),
		Objects: []*ObjectFile{obj},
	}
	keepSym := ctx.Symtab.Intern("_keepme")
	keepSym.Subsec = forcedSS
	ctx.Symtab.Intern("_main") // entry symbol with no subsection attached

	DeadStrip(ctx)

	if !forcedSS.IsAlive() {
		t.Fatal("a -u (ForceUndefined) symbol's subsection must survive dead-strip even if unreachable from main")
	}
}
