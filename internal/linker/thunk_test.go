package linker

import "testing"

func TestThunkSectionNeedsThunk(t *testing.T) {
	th := &ThunkSection{}
	if th.NeedsThunk(0x1000, 0x2000) {
		t.Error("a nearby branch target must not need a thunk")
	}
	if !th.NeedsThunk(0, arm64BranchReach+0x1000) {
		t.Error("a forward branch past +128MiB must need a thunk")
	}
	if !th.NeedsThunk(arm64BranchReach+0x1000, 0) {
		t.Error("a backward branch past -128MiB must need a thunk")
	}
}

func TestThunkSectionAddDedupes(t *testing.T) {
	th := &ThunkSection{}
	sym := &Symbol{Name: "_far"}
	addr1 := th.Add(sym)
	addr2 := th.Add(sym)
	if addr1 != addr2 {
		t.Errorf("Add returned different addresses for the same symbol: %#x vs %#x", addr1, addr2)
	}
	if len(th.entries) != 1 {
		t.Fatalf("got %d thunk entries, want 1 after adding the same symbol twice", len(th.entries))
	}
	if !sym.NeedsRangeThunk() {
		t.Error("Add must flag the symbol as needing a range thunk")
	}
}

func TestThunkSectionAddAssignsSequentialSlots(t *testing.T) {
	th := &ThunkSection{}
	th.SetAddr(0x1000)
	a := th.Add(&Symbol{Name: "_a"})
	b := th.Add(&Symbol{Name: "_b"})
	if b-a != arm64ThunkEntrySize {
		t.Errorf("second thunk slot = %#x, first = %#x, want exactly one entry size apart", b, a)
	}
}

func TestThunkSectionComputeSize(t *testing.T) {
	th := &ThunkSection{}
	th.Add(&Symbol{Name: "_a"})
	th.Add(&Symbol{Name: "_b"})
	th.ComputeSize(nil)
	if th.Size() != 2*arm64ThunkEntrySize {
		t.Errorf("Size() = %d, want %d", th.Size(), 2*arm64ThunkEntrySize)
	}
	if th.SegName() != "__TEXT" || th.SectName() != "__thunks" {
		t.Errorf("ComputeSize set segname/sectname = %s/%s, want __TEXT/__thunks", th.SegName(), th.SectName())
	}
}
