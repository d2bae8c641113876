package linker

import (
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSymbolTableInternIdentity(t *testing.T) {
	st := NewSymbolTable()
	a := st.Intern("_foo")
	b := st.Intern("_foo")
	if a != b {
		t.Fatal("Intern returned two distinct *Symbol for the same name")
	}
	c := st.Intern("_bar")
	if a == c {
		t.Fatal("Intern returned the same *Symbol for two different names")
	}
}

func TestSymbolTableLookup(t *testing.T) {
	st := NewSymbolTable()
	if _, ok := st.Lookup("_missing"); ok {
		t.Fatal("Lookup found a name that was never interned")
	}
	want := st.Intern("_present")
	got, ok := st.Lookup("_present")
	if !ok || got != want {
		t.Fatal("Lookup did not return the interned symbol")
	}
}

func TestSymbolTableAll(t *testing.T) {
	st := NewSymbolTable()
	st.Intern("_a")
	st.Intern("_b")
	st.Intern("_a") // duplicate, must not appear twice
	all := st.All()
	if len(all) != 2 {
		t.Fatalf("All() returned %d symbols, want 2", len(all))
	}
}

func TestSymbolTableAllRows(t *testing.T) {
	st := NewSymbolTable()
	for _, n := range []string{"_c", "_a", "_b", "_a"} {
		st.Intern(n)
	}
	all := st.All()
	names := make([]string, len(all))
	for i, s := range all {
		names[i] = s.Name
	}
	sort.Strings(names)
	if diff := cmp.Diff([]string{"_a", "_b", "_c"}, names); diff != "" {
		t.Errorf("symbol table rows differ (-want +got):\n%s", diff)
	}
}

func TestStringPoolDedup(t *testing.T) {
	p := NewStringPool()
	off1 := p.Add("_main")
	off2 := p.Add("_main")
	if off1 != off2 {
		t.Fatalf("Add returned different offsets for the same string: %d vs %d", off1, off2)
	}
	off3 := p.Add("_other")
	if off3 == off1 {
		t.Fatalf("Add returned the same offset for two different strings")
	}
}

func TestStringPoolReservedZeroOffset(t *testing.T) {
	p := NewStringPool()
	if len(p.Bytes()) != 1 || p.Bytes()[0] != 0 {
		t.Fatalf("a fresh StringPool must start with a single reserved NUL byte at offset 0")
	}
	off := p.Add("_first")
	if off == 0 {
		t.Fatalf("Add assigned offset 0, which is reserved for \"no name\"")
	}
}

func TestStringPoolBytesAreNULTerminated(t *testing.T) {
	p := NewStringPool()
	off := p.Add("abc")
	buf := p.Bytes()
	if buf[off] != 'a' || buf[off+1] != 'b' || buf[off+2] != 'c' || buf[off+3] != 0 {
		t.Fatalf("string not stored NUL-terminated at its offset: %v", buf[off:off+4])
	}
}
