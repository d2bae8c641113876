package linker

import "github.com/appsworld/machold/internal/macho/types"

// ObjectFile is one parsed relocatable input (.o, or a member pulled from
// a static archive). Its subsections are the unit everything downstream —
// dead-strip, layout, relocation application — operates on.
type ObjectFile struct {
	Path     string
	Priority int // input order; output ordering is stable by (Priority, subsection offset)

	Header      types.FileHeader
	Subsections []*Subsection
	Symbols     []*Symbol // symbols defined in this file, in nlist order

	AltEntry map[uint64]bool // N_ALT_ENTRY-style offsets that should not begin a new subsection

	NoDeadStrip bool // object pulled in via -u/force-load should not be stripped away as a whole

	parseSyms []objSym // parse-time nlist order, incl. undefined entries Symbols omits; see object.go

	// DataInCode and CompactUnwind carry forward two LINKEDIT-adjacent
	// input tables whose entries still reference unresolved addresses: the
	// address field of each is in this object's own address space until
	// datacode.go/unwind.go translate it through the owning subsection's
	// OutputAddr once layout has run.
	DataInCode    []rawDiceEntry
	CompactUnwind []rawUnwindEntry
}

// rawDiceEntry mirrors types.DataInCodeEntry but with Addr left in the
// input file's own address space rather than translated to an output one.
type rawDiceEntry struct {
	Addr   uint64
	Length uint16
	Kind   uint16
}

// rawUnwindEntry is one 32-byte __LD,__compact_unwind record as read
// straight from an input object, with its two pointer-sized fields
// resolved through that section's own relocations rather than left as
// raw zero/placeholder bytes.
type rawUnwindEntry struct {
	FuncAddr    uint64
	Length      uint32
	Encoding    uint32
	Personality *Symbol
	LSDA        *Symbol
}

// DylibFile is one parsed dynamic library dependency (.dylib, a
// MH_EXECUTE/MH_BUNDLE for -bundle_loader, or the synthetic file produced
// by parsing a TBD stub).
type DylibFile struct {
	Path        string
	InstallName string
	Ordinal     int // 1-based two-level-namespace library ordinal

	CurrentVersion       types.Version
	CompatibilityVersion types.Version

	Exports    []DylibExport
	ReExports  []*DylibFile

	IsNeeded uint32 // atomic bool: at least one undefined symbol resolved here; link.go's filterDeadDylibs drops anything left at 0 under -dead_strip_dylibs
	Weak     bool
}

type DylibExport struct {
	Name     string
	WeakDef  bool
	TLV      bool
	ReExport string // nonempty if this is a re-export of another dylib's symbol
}

// Context is the whole state of one link: every parsed input, the interned
// symbol table, the architecture-specific codec, and (once layout has run)
// the output segment/chunk list. One Context serves exactly one Link call.
type Context struct {
	Config *Config
	Arch   Arch

	Diags *Diagnostics

	Symtab *SymbolTable
	Strtab *StringPool

	Objects []*ObjectFile
	Dylibs  []*DylibFile

	// PendingArchives holds every static-library input not yet fully
	// extracted: link.go's archive pull-in pass repeatedly scans each
	// one's SymbolIndex against still-undefined canonical symbols and
	// parses in only the members that resolve something, instead of the
	// eager whole-archive load loadArchive implements (which has no caller).
	PendingArchives []*Archive

	Segments []*OutputSegment

	// Synthetic chunks, held individually because layout.go needs to
	// address each by name when assigning fixed segment order, and later
	// passes (relocation application, symtab emission) need to reach
	// them directly rather than search Segments.
	MachHeader   *MachHeaderChunk
	Stubs        *StubsSection
	StubHelper   *StubHelperSection
	Got          *GotSection
	LazyPtr      *LazySymbolPtrSection
	ThreadPtrs   *ThreadPtrsSection
	Thunks       *ThunkSection
	Rebase       *RebaseSection
	Bind         *BindSection
	LazyBind     *LazyBindSection
	Export       *ExportSection
	FuncStarts   *FunctionStartsSection
	DataInCode   *DataInCodeSection
	UnwindInfo   *UnwindInfoSection
	Symtab64     *SymtabSection
	Strtab64     *StrtabSection
	CodeSig      *CodeSignatureSection

	EntryAddr uint64
}

func NewContext(cfg *Config) *Context {
	return &Context{
		Config: cfg,
		Arch:   NewArch(cfg.Arch),
		Diags:  NewDiagnostics(),
		Symtab: NewSymbolTable(),
		Strtab: NewStringPool(),
	}
}
