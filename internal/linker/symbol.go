package linker

import "sync/atomic"

// Scope is a symbol's visibility outside its defining file, matching
// N_PEXT/N_EXT in the on-disk nlist.
type Scope uint8

const (
	ScopeLocal Scope = iota
	ScopePrivateExtern
	ScopeExtern
)

// symbolFlag bits record the synthetic resources a symbol's relocations
// demand; they are set during the relocation scan and consumed during
// layout to size the GOT/stubs/TLV-pointer/thunk sections.
type symbolFlag uint32

const (
	needsGot symbolFlag = 1 << iota
	needsStub
	needsThreadPtr
	needsRangeExtnThunk
	needsWeakBind
)

// Symbol is the linker's single global identity for one name: every file
// that defines or references it resolves to the same *Symbol, found by
// interning its name through SymbolTable.Intern (ctx.Symtab).
type Symbol struct {
	Name string

	mu resolveMu

	File  *ObjectFile // nil until resolved; the file whose definition won
	Subsec *Subsection // defining subsection, nil for undefined/dylib symbols
	Value  uint64      // subsection-relative offset of the definition

	Scope  Scope
	Weak    bool
	WeakDef bool
	TLV     bool
	CommonSize  uint64 // nonzero for a tentative (common) definition
	CommonAlign uint64

	DylibOrdinal int // >0 when resolved to an imported dylib symbol
	ReExportOf   string

	flags    uint32 // atomic symbolFlag bitset
	isAlive  uint32 // atomic bool, dead-strip liveness

	gotIndex  int32
	tlvIndex  int32
	stubIndex int32
}

func (s *Symbol) setFlag(f symbolFlag) { atomicOr32(&s.flags, uint32(f)) }
func (s *Symbol) hasFlag(f symbolFlag) bool { return atomic.LoadUint32(&s.flags)&uint32(f) != 0 }

func (s *Symbol) NeedsGot() bool         { return s.hasFlag(needsGot) }
func (s *Symbol) NeedsStub() bool        { return s.hasFlag(needsStub) }
func (s *Symbol) NeedsThreadPtr() bool   { return s.hasFlag(needsThreadPtr) }
func (s *Symbol) NeedsRangeThunk() bool  { return s.hasFlag(needsRangeExtnThunk) }

func (s *Symbol) IsAlive() bool { return atomic.LoadUint32(&s.isAlive) != 0 }

// MarkAlive sets the symbol (and, through the caller, its defining
// subsection) alive exactly once; it reports whether this call was the one
// that made the transition, mirroring the atomic CAS used to drive
// dead-strip's worklist without double-visiting a node.
func (s *Symbol) MarkAlive() bool {
	return atomic.CompareAndSwapUint32(&s.isAlive, 0, 1)
}

func (s *Symbol) IsUndefined() bool {
	return s.File == nil && s.DylibOrdinal == 0
}

func (s *Symbol) IsDylibImport() bool { return s.DylibOrdinal > 0 }

func (s *Symbol) IsTentative() bool { return s.CommonSize > 0 }

// resolveMu is a one-symbol-wide lock used only while resolution is
// racing; once resolution finishes no further writes to the Symbol happen
// outside dead-strip's atomic fields, so this is not embedded as a full
// sync.Mutex to keep Symbol small and copy-unsafe-but-small.
type resolveMu struct{ locked uint32 }

func (m *resolveMu) Lock() {
	for !atomic.CompareAndSwapUint32(&m.locked, 0, 1) {
	}
}
func (m *resolveMu) Unlock() { atomic.StoreUint32(&m.locked, 0) }

func atomicOr32(addr *uint32, bits uint32) {
	for {
		old := atomic.LoadUint32(addr)
		if atomic.CompareAndSwapUint32(addr, old, old|bits) {
			return
		}
	}
}
