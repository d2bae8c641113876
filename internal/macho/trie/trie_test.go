package trie

import (
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/appsworld/machold/internal/macho/types"
)

// exportShape projects the fields that survive an encode/decode round
// trip, so cmp.Diff can compare a whole export list in one shot instead
// of field-by-field assertions.
type exportShape struct {
	Name       string
	Address    uint64
	Weak       bool
	ThreadLocal bool
}

func shapesOf(exports []Export) []exportShape {
	out := make([]exportShape, len(exports))
	for i, e := range exports {
		out[i] = exportShape{
			Name:        e.Name,
			Address:     e.Address,
			Weak:        e.Flags.WeakDefinition(),
			ThreadLocal: e.Flags.ThreadLocal(),
		}
	}
	return out
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	exports := []Export{
		{Name: "_main", Flags: types.ExportSymbolFlagsKindRegular, Address: 0x1000},
		{Name: "_main_helper", Flags: types.ExportSymbolFlagsKindRegular, Address: 0x1010},
		{Name: "_global_var", Flags: types.ExportSymbolFlagsKindRegular | types.ExportSymbolFlagsWeakDefinition, Address: 0x2000},
		{Name: "_tlv_thing", Flags: types.ExportSymbolFlagsKindThreadLocal, Address: 0x3000},
	}

	enc := NewEncoder(exports)
	data := enc.Encode()
	if len(data)%4 != 0 {
		t.Fatalf("encoded trie length %d is not 4-byte aligned", len(data))
	}

	got, err := Parse(data, 0)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(got) != len(exports) {
		t.Fatalf("got %d entries, want %d", len(got), len(exports))
	}

	sort.Slice(got, func(i, j int) bool { return got[i].Name < got[j].Name })
	want := append([]Export(nil), exports...)
	sort.Slice(want, func(i, j int) bool { return want[i].Name < want[j].Name })

	if diff := cmp.Diff(shapesOf(want), shapesOf(got)); diff != "" {
		t.Errorf("round-tripped exports differ (-want +got):\n%s", diff)
	}
}

func TestEncodeReExport(t *testing.T) {
	exports := []Export{
		{Name: "_reexported", Flags: types.ExportSymbolFlagsReexport, Ordinal: 2, ReExport: "_original"},
	}
	data := NewEncoder(exports).Encode()
	got, err := Parse(data, 0)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d entries, want 1", len(got))
	}
	if !got[0].Flags.ReExport() {
		t.Fatalf("entry not marked as re-export")
	}
	if got[0].ReExport != "_original" {
		t.Errorf("ReExport = %q, want _original", got[0].ReExport)
	}
	if got[0].Other != 2 {
		t.Errorf("Other (ordinal) = %d, want 2", got[0].Other)
	}
}

func TestEncodeEmpty(t *testing.T) {
	data := NewEncoder(nil).Encode()
	got, err := Parse(data, 0)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("got %d entries from an empty export list, want 0", len(got))
	}
}

func TestCommonPrefixSplitting(t *testing.T) {
	// "_foo" and "_foobar" share a prefix that must be split into an
	// intermediate non-terminal node; this exercises that path directly.
	exports := []Export{
		{Name: "_foo", Address: 0x10},
		{Name: "_foobar", Address: 0x20},
		{Name: "_foobaz", Address: 0x30},
	}
	data := NewEncoder(exports).Encode()
	got, err := Parse(data, 0)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	byName := map[string]uint64{}
	for _, e := range got {
		byName[e.Name] = e.Address
	}
	for _, e := range exports {
		if byName[e.Name] != e.Address {
			t.Errorf("%s: got address %#x, want %#x", e.Name, byName[e.Name], e.Address)
		}
	}
}
