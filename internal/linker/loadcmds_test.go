package linker

import "testing"

func TestDylibCmdSizeAlignment(t *testing.T) {
	names := []string{"", "a", "/usr/lib/libSystem.B.dylib", "/usr/local/lib/libabcdefg.dylib"}
	for _, name := range names {
		got := dylibCmdSize(name)
		if got%8 != 0 {
			t.Errorf("%q: size %d not 8-byte aligned", name, got)
		}
		minSize := uint32(24 + len(name) + 1)
		if got < minSize {
			t.Errorf("%q: size %d smaller than unaligned minimum %d", name, got, minSize)
		}
		if got-minSize >= 8 {
			t.Errorf("%q: size %d over-padded past minimum %d", name, got, minSize)
		}
	}
}

func TestDylibCmdSizeMatchesWriterOutput(t *testing.T) {
	// The header through the embedded, NUL-terminated name must fit inside
	// the size dylibCmdSize reports, with only padding bytes left over.
	name := "/usr/lib/libfoo.dylib"
	size := dylibCmdSize(name)
	used := uint32(24 + len(name) + 1)
	if size < used {
		t.Fatalf("dylibCmdSize(%q) = %d, too small to hold header+name+NUL (%d)", name, size, used)
	}
	if pad := size - used; pad > 7 {
		t.Fatalf("dylibCmdSize(%q) padding %d exceeds one alignment unit", name, pad)
	}
}

func TestSectionAlignExp(t *testing.T) {
	got := &GotSection{}
	got.ComputeSize(nil)
	if exp := sectionAlignExp(got); exp != 3 {
		t.Errorf("__got: align exponent = %d, want 3 (8-byte)", exp)
	}

	tp := &ThreadPtrsSection{}
	tp.ComputeSize(&Context{})
	if exp := sectionAlignExp(tp); exp != 3 {
		t.Errorf("__thread_ptrs: align exponent = %d, want 3 (8-byte)", exp)
	}

	tdc := &TextDataChunk{baseChunk: baseChunk{sectname: "__text"}}
	if exp := sectionAlignExp(tdc); exp != 4 {
		t.Errorf("__text: align exponent = %d, want 4 (16-byte)", exp)
	}
}

func TestSegChunkSectionsFiltersLinkedit(t *testing.T) {
	seg := &OutputSegment{
		Name: "__LINKEDIT",
		Chunks: []Chunk{
			&MachHeaderChunk{},
			&SymtabSection{},
			&TextDataChunk{baseChunk: baseChunk{sectname: "__text"}},
		},
	}
	sects := segChunkSections(seg)
	if len(sects) != 1 {
		t.Fatalf("got %d sectioned chunks, want 1 (only __text has a SectName)", len(sects))
	}
	if sects[0].SectName() != "__text" {
		t.Errorf("kept chunk SectName = %q, want __text", sects[0].SectName())
	}
}
