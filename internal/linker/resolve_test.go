package linker

import (
	"errors"
	"testing"
)

func TestRankOrdering(t *testing.T) {
	undefined := &Symbol{}
	dylibSym := &Symbol{DylibOrdinal: 1}
	tentative := &Symbol{CommonSize: 8}
	weak := &Symbol{File: &ObjectFile{}, Weak: true}
	regular := &Symbol{File: &ObjectFile{}}

	if !(rank(undefined) < rank(dylibSym)) {
		t.Error("undefined must rank below a dylib import")
	}
	if !(rank(dylibSym) < rank(tentative)) {
		t.Error("a dylib import must rank below a tentative definition")
	}
	if !(rank(tentative) < rank(weak)) {
		t.Error("a tentative definition must rank below a weak definition")
	}
	if !(rank(weak) < rank(regular)) {
		t.Error("a weak definition must rank below a regular definition")
	}
}

func TestResolveOneFirstDefinitionWins(t *testing.T) {
	ctx := &Context{Symtab: NewSymbolTable(), Diags: NewDiagnostics()}
	obj := &ObjectFile{Path: "a.o"}
	candidate := &Symbol{Name: "_foo", Scope: ScopeExtern, File: obj}

	if err := resolveOne(ctx, obj, candidate); err != nil {
		t.Fatalf("resolveOne: %v", err)
	}
	canonical, _ := ctx.Symtab.Lookup("_foo")
	if canonical.File != obj {
		t.Error("first definition should be adopted")
	}
}

func TestResolveOneWeakLosesToRegular(t *testing.T) {
	ctx := &Context{Symtab: NewSymbolTable(), Diags: NewDiagnostics()}
	weakObj := &ObjectFile{Path: "weak.o"}
	strongObj := &ObjectFile{Path: "strong.o"}

	weakCandidate := &Symbol{Name: "_f", Scope: ScopeExtern, File: weakObj, Weak: true}
	resolveOne(ctx, weakObj, weakCandidate)

	strongCandidate := &Symbol{Name: "_f", Scope: ScopeExtern, File: strongObj}
	resolveOne(ctx, strongObj, strongCandidate)

	canonical, _ := ctx.Symtab.Lookup("_f")
	if canonical.File != strongObj {
		t.Error("a later regular definition should replace an earlier weak one")
	}
	if ctx.Diags.HasErrors() {
		t.Error("weak-then-regular should not be reported as a duplicate symbol")
	}
}

func TestResolveOneDuplicateRegularIsError(t *testing.T) {
	ctx := &Context{Symtab: NewSymbolTable(), Diags: NewDiagnostics()}
	obj1 := &ObjectFile{Path: "one.o"}
	obj2 := &ObjectFile{Path: "two.o"}

	resolveOne(ctx, obj1, &Symbol{Name: "_dup", Scope: ScopeExtern, File: obj1})
	resolveOne(ctx, obj2, &Symbol{Name: "_dup", Scope: ScopeExtern, File: obj2})

	if !ctx.Diags.HasErrors() {
		t.Fatal("two regular definitions of the same symbol must report a duplicate-symbol error")
	}
	if !errors.Is(ctx.Diags.Err(), ErrDuplicateSymbol) {
		t.Error("the reported error must wrap ErrDuplicateSymbol")
	}
}

func TestResolveOneTentativeMergesToLargestSize(t *testing.T) {
	ctx := &Context{Symtab: NewSymbolTable(), Diags: NewDiagnostics()}
	obj1 := &ObjectFile{Path: "one.o"}
	obj2 := &ObjectFile{Path: "two.o"}

	resolveOne(ctx, obj1, &Symbol{Name: "_common", Scope: ScopeExtern, File: obj1, CommonSize: 4})
	resolveOne(ctx, obj2, &Symbol{Name: "_common", Scope: ScopeExtern, File: obj2, CommonSize: 16})

	canonical, _ := ctx.Symtab.Lookup("_common")
	if canonical.CommonSize != 16 {
		t.Errorf("CommonSize = %d, want the larger tentative size 16", canonical.CommonSize)
	}
}

func TestResolveUndefinedAgainstDylibsBindsOrdinal(t *testing.T) {
	ctx := &Context{Symtab: NewSymbolTable(), Diags: NewDiagnostics()}
	dylib := &DylibFile{Ordinal: 1, Exports: []DylibExport{{Name: "_printf"}}}
	ctx.Dylibs = []*DylibFile{dylib}

	ctx.Symtab.Intern("_printf")
	obj := &ObjectFile{Symbols: []*Symbol{{Name: "_printf"}}}

	resolveUndefinedAgainstDylibs(ctx, obj)

	sym, _ := ctx.Symtab.Lookup("_printf")
	if sym.DylibOrdinal != 1 {
		t.Errorf("DylibOrdinal = %d, want 1", sym.DylibOrdinal)
	}
	if dylib.IsNeeded == 0 {
		t.Error("resolving against a dylib must flag it as needed")
	}
}

func TestResolveUndefinedAgainstDylibsReportsUndefined(t *testing.T) {
	ctx := &Context{Symtab: NewSymbolTable(), Diags: NewDiagnostics(), Config: &Config{}}
	ctx.Symtab.Intern("_missing")
	obj := &ObjectFile{Path: "a.o", Symbols: []*Symbol{{Name: "_missing"}}}

	resolveUndefinedAgainstDylibs(ctx, obj)

	if !ctx.Diags.HasErrors() {
		t.Fatal("an undefined symbol resolved against no dylib must be reported")
	}
	if !errors.Is(ctx.Diags.Err(), ErrUndefinedSymbol) {
		t.Error("the reported error must wrap ErrUndefinedSymbol")
	}
}

func TestResolveUndefinedAgainstDylibsAllowsMustBeUndefined(t *testing.T) {
	ctx := &Context{
		Symtab: NewSymbolTable(),
		Diags:  NewDiagnostics(),
		Config: &Config{MustBeUndefined: []string{"_weak_import"}},
	}
	ctx.Symtab.Intern("_weak_import")
	obj := &ObjectFile{Path: "a.o", Symbols: []*Symbol{{Name: "_weak_import"}}}

	resolveUndefinedAgainstDylibs(ctx, obj)

	if ctx.Diags.HasErrors() {
		t.Error("a name listed in MustBeUndefined (-U) must not be reported as undefined")
	}
}

func TestContains(t *testing.T) {
	if contains(nil, "x") {
		t.Error("contains(nil, ...) must be false")
	}
	if !contains([]string{"a", "b"}, "b") {
		t.Error("contains should find a present element")
	}
	if contains([]string{"a", "b"}, "c") {
		t.Error("contains should not find an absent element")
	}
}
