package linker

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestAppendULEB128SmallValues(t *testing.T) {
	cases := []struct {
		v    uint64
		want []byte
	}{
		{0, []byte{0x00}},
		{1, []byte{0x01}},
		{0x7f, []byte{0x7f}},
		{0x80, []byte{0x80, 0x01}},
		{0x3fff, []byte{0xff, 0x7f}},
		{0x4000, []byte{0x80, 0x80, 0x01}},
	}
	for _, c := range cases {
		got := appendULEB128(nil, c.v)
		if !bytes.Equal(got, c.want) {
			t.Errorf("appendULEB128(%#x) = % x, want % x", c.v, got, c.want)
		}
	}
}

func TestAppendULEB128Appends(t *testing.T) {
	// appendULEB128 must extend an existing slice, not replace it.
	base := []byte{0xaa, 0xbb}
	got := appendULEB128(base, 1)
	want := []byte{0xaa, 0xbb, 0x01}
	if !bytes.Equal(got, want) {
		t.Errorf("appendULEB128(base, 1) = % x, want % x", got, want)
	}
}

func TestEncodeRebaseOpcodesTerminator(t *testing.T) {
	entries := []rebaseEntry{{segIndex: 1, segOff: 0x100}, {segIndex: 1, segOff: 0x108}}
	out := encodeRebaseOpcodes(entries)
	if len(out) == 0 {
		t.Fatal("encodeRebaseOpcodes produced no bytes for non-empty input")
	}
	if out[len(out)-1] != 0x00 {
		t.Errorf("encodeRebaseOpcodes must terminate with REBASE_OPCODE_DONE (0x00), got %#x", out[len(out)-1])
	}
}

func TestEncodeRebaseOpcodesEmpty(t *testing.T) {
	out := encodeRebaseOpcodes(nil)
	if len(out) != 1 || out[0] != 0x00 {
		t.Fatalf("encodeRebaseOpcodes(nil) = % x, want just the DONE opcode", out)
	}
}

func TestEncodeRebaseOpcodesExactBytes(t *testing.T) {
	// Two pointers in segment 1, 8 bytes apart: SET_SEGMENT_AND_OFFSET_ULEB
	// to the first, then a single ADD_ADDR_ULEB-rebase covering the stride
	// to the second, then a plain one-shot rebase and DONE. cmp.Diff gives
	// a readable byte-by-byte diff if the opcode stream ever drifts.
	entries := []rebaseEntry{{segIndex: 1, segOff: 0x100}, {segIndex: 1, segOff: 0x108}}
	got := encodeRebaseOpcodes(entries)
	want := []byte{
		0x10 | 1, // SET_TYPE_IMM | REBASE_TYPE_POINTER
		0x20 | 1, // SET_SEGMENT_AND_OFFSET_ULEB, segment 1
		0x80, 0x02, // ULEB128(0x100)
		0x70,       // DO_REBASE_ADD_ADDR_ULEB
		0x08,       // ULEB128(0x108-0x100)
		0x50 | 1,   // DO_REBASE_IMM_TIMES, times=1
		0x00,       // REBASE_OPCODE_DONE
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("encodeRebaseOpcodes output mismatch (-want +got):\n%s", diff)
	}
}

func TestEncodeBindOpcodesContainsSymbolName(t *testing.T) {
	entries := []bindEntry{{segIndex: 2, segOff: 0x40, ordinal: 3, name: "_imported", weak: false}}
	out := encodeBindOpcodes(entries)
	if !bytes.Contains(out, []byte("_imported\x00")) {
		t.Errorf("encodeBindOpcodes output does not contain the NUL-terminated symbol name: % x", out)
	}
	if out[len(out)-1] != 0x00 {
		t.Errorf("encodeBindOpcodes must terminate with BIND_OPCODE_DONE, got %#x", out[len(out)-1])
	}
}

func TestEncodeBindOpcodesWeakFlag(t *testing.T) {
	weak := encodeBindOpcodes([]bindEntry{{segIndex: 0, segOff: 0, ordinal: 1, name: "_w", weak: true}})
	plain := encodeBindOpcodes([]bindEntry{{segIndex: 0, segOff: 0, ordinal: 1, name: "_w", weak: false}})
	if bytes.Equal(weak, plain) {
		t.Error("weak and non-weak bind entries encoded identically")
	}
}
