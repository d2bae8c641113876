package linker

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSplitSubsectionsBasic(t *testing.T) {
	isec := &InputSection{Segname: "__TEXT", Sectname: "__text", Data: make([]byte, 100)}
	subs := SplitSubsections(isec, []uint64{20, 50})
	if len(subs) != 3 {
		t.Fatalf("got %d subsections, want 3", len(subs))
	}
	want := [][2]uint64{{0, 20}, {20, 30}, {50, 50}}
	for i, s := range subs {
		if s.Offset != want[i][0] || s.Size != want[i][1] {
			t.Errorf("subsection %d: offset=%d size=%d, want offset=%d size=%d", i, s.Offset, s.Size, want[i][0], want[i][1])
		}
	}
}

func TestSplitSubsectionsNoBoundaries(t *testing.T) {
	isec := &InputSection{Data: make([]byte, 40)}
	subs := SplitSubsections(isec, nil)
	if len(subs) != 1 {
		t.Fatalf("got %d subsections, want 1 (whole section)", len(subs))
	}
	if subs[0].Offset != 0 || subs[0].Size != 40 {
		t.Errorf("sole subsection = {%d,%d}, want {0,40}", subs[0].Offset, subs[0].Size)
	}
}

func TestSplitSubsectionsDedupesAndSortsBoundaries(t *testing.T) {
	isec := &InputSection{Data: make([]byte, 30)}
	subs := SplitSubsections(isec, []uint64{20, 10, 10, 20})
	if len(subs) != 3 {
		t.Fatalf("got %d subsections, want 3 (duplicate boundaries must collapse)", len(subs))
	}
	offsets := []uint64{subs[0].Offset, subs[1].Offset, subs[2].Offset}
	if diff := cmp.Diff([]uint64{0, 10, 20}, offsets); diff != "" {
		t.Errorf("boundaries not sorted/deduped (-want +got):\n%s", diff)
	}
}

func TestSplitSubsectionsCarriesSectionAttrs(t *testing.T) {
	isec := &InputSection{Data: make([]byte, 10), Segname: "__TEXT", Sectname: "__text"}
	subs := SplitSubsections(isec, nil)
	if subs[0].SegName() != "__TEXT" || subs[0].SectName() != "__text" {
		t.Errorf("subsection did not carry segname/sectname from its InputSection")
	}
}

func TestSubsectionData(t *testing.T) {
	isec := &InputSection{Data: []byte("0123456789")}
	ss := &Subsection{Isec: isec, Offset: 3, Size: 4}
	if string(ss.Data()) != "3456" {
		t.Errorf("Data() = %q, want %q", ss.Data(), "3456")
	}
}
