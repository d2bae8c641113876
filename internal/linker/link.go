package linker

import (
	"fmt"
	"os"

	"github.com/appsworld/machold/internal/codesign"
)

// Link runs one complete static link: load every input, resolve symbols
// (pulling in archive members on demand), scan relocations to size the
// synthetic sections they require, dead-strip, lay out the output file,
// patch in every relocation, and finally render the result to cfg.Output.
// It returns the populated Context (useful for -map reporting) even when
// it also returns an error, so a caller can still inspect what diagnostics
// were attached to which file.
func Link(cfg *Config) (*Context, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ctx := NewContext(cfg)

	if err := loadInputs(ctx); err != nil {
		return ctx, err
	}
	if err := Resolve(ctx); err != nil {
		return ctx, ctx.Diags.Err()
	}
	if err := pullInArchives(ctx); err != nil {
		return ctx, err
	}
	resolveUndefinedAgainstDylibsAll(ctx)
	if ctx.Diags.HasErrors() {
		return ctx, ctx.Diags.Err()
	}
	if ctx.Config.DeadStrippableDylib {
		filterDeadDylibs(ctx)
	}

	scanAllRelocations(ctx)
	DeadStrip(ctx)

	allocateSyntheticChunks(ctx)
	populateSyntheticEntries(ctx)

	if err := runLayout(ctx); err != nil {
		return ctx, err
	}

	image := make([]byte, outputFileLength(ctx))
	renderLoadCommands(ctx, image)
	renderChunks(ctx, image)
	if err := applyRelocations(ctx, image); err != nil {
		return ctx, err
	}
	if ctx.Config.AdhocCodesign && ctx.CodeSig != nil {
		signImage(ctx, image)
	}

	if ctx.Diags.HasErrors() {
		return ctx, ctx.Diags.Err()
	}
	if err := os.WriteFile(ctx.Config.Output, image, 0755); err != nil {
		return ctx, fmt.Errorf("writing %s: %w", ctx.Config.Output, err)
	}
	return ctx, nil
}

// loadInputs parses every command-line input in order, assigning each a
// priority equal to its position so resolve.go's first-definition-wins
// tie-break matches -filelist/argv order.
func loadInputs(ctx *Context) error {
	dylibOrdinal := 0
	for i, path := range ctx.Config.Inputs {
		if err := LoadInput(ctx, path, i, &dylibOrdinal); err != nil {
			return err
		}
	}
	return nil
}

// pullInArchives repeatedly scans every still-pending archive's symbol
// index against the canonical symbol table, extracting and resolving
// exactly the members that define something nothing has defined yet,
// until a full pass over every archive pulls in nothing new. -u (-force)
// names are seeded into the symbol table first so a name nothing in any
// regular object references can still trigger a pull-in purely from
// being forced undefined.
func pullInArchives(ctx *Context) error {
	for _, name := range ctx.Config.ForceUndefined {
		ctx.Symtab.Intern(name)
	}

	for {
		progressed := false
		for _, ar := range ctx.PendingArchives {
			for name, idx := range ar.SymbolIndex {
				canonical, ok := ctx.Symtab.Lookup(name)
				if !ok || canonical.File != nil || canonical.IsTentative() || canonical.DylibOrdinal != 0 {
					continue
				}
				obj, err := ar.Pull(ctx, idx)
				if err != nil {
					return err
				}
				if obj == nil {
					continue // already pulled by an earlier iteration/name
				}
				ctx.Objects = append(ctx.Objects, obj)
				if err := resolveObject(ctx, obj); err != nil {
					return err
				}
				progressed = true
			}
		}
		if !progressed {
			break
		}
	}
	return nil
}

// filterDeadDylibs drops every dependency -dead_strip_dylibs asked to
// reconsider that nothing actually resolved against: resolve.go's
// setNeeded already flags a DylibFile the moment an undefined symbol
// binds to one of its exports, so a dylib left unflagged here contributed
// nothing to this link and gets no LC_LOAD_DYLIB in the output.
func filterDeadDylibs(ctx *Context) {
	kept := ctx.Dylibs[:0]
	for _, d := range ctx.Dylibs {
		if d.IsNeeded != 0 {
			kept = append(kept, d)
		}
	}
	ctx.Dylibs = kept
}

func resolveUndefinedAgainstDylibsAll(ctx *Context) {
	for _, obj := range ctx.Objects {
		resolveUndefinedAgainstDylibs(ctx, obj)
	}
}

// scanAllRelocations runs the relocation scan over every live object's
// subsections (dead-strip hasn't run yet, so this still walks every
// subsection unconditionally; a subsection that dead-strip later removes
// simply leaves its flagged symbols' synthetic-section slots unused,
// which registerSyntheticChunks's zero-length sizing already tolerates).
func scanAllRelocations(ctx *Context) {
	for _, obj := range ctx.Objects {
		scanRelocations(ctx.Arch, obj.Subsections)
	}
}

// allocateSyntheticChunks instantiates every synthetic chunk up front
// (even ones that may end up empty), since registerSyntheticChunks
// (layout.go) and ComputeSize (got.go/stubs.go/dyldinfo.go/...) assume
// each Context field is non-nil by the time Layout runs.
func allocateSyntheticChunks(ctx *Context) {
	ctx.MachHeader = &MachHeaderChunk{}
	ctx.Got = &GotSection{}
	ctx.Stubs = &StubsSection{}
	ctx.StubHelper = &StubHelperSection{}
	ctx.LazyPtr = &LazySymbolPtrSection{}
	ctx.ThreadPtrs = &ThreadPtrsSection{}
	ctx.Rebase = &RebaseSection{}
	ctx.Bind = &BindSection{}
	ctx.LazyBind = &LazyBindSection{}
	ctx.Export = &ExportSection{}
	ctx.FuncStarts = &FunctionStartsSection{}
	ctx.DataInCode = &DataInCodeSection{}
	ctx.UnwindInfo = &UnwindInfoSection{}
	ctx.Symtab64 = &SymtabSection{}
	ctx.Strtab64 = &StrtabSection{}
	if ctx.Arch.CPU() == CPUArm64 {
		ctx.Thunks = &ThunkSection{}
	}
	if ctx.Config.AdhocCodesign {
		ctx.CodeSig = &CodeSignatureSection{}
	}
}

// populateSyntheticEntries walks every surviving symbol's scan-phase flags
// and registers it with the section its relocations demanded; this must
// happen before Layout, since each section's ComputeSize only sizes
// whatever entries already exist rather than discovering them itself.
func populateSyntheticEntries(ctx *Context) {
	for _, sym := range ctx.Symtab.All() {
		if !sym.IsAlive() {
			continue
		}
		if sym.NeedsGot() {
			ctx.Got.Add(sym)
		}
		if sym.NeedsThreadPtr() {
			ctx.ThreadPtrs.Add(sym)
		}
		if sym.NeedsStub() {
			ctx.Stubs.Add(sym)
		}
	}
}

// runLayout assigns every chunk's address, re-running Layout whenever
// ARM64 branch-reach checking discovers a BRANCH26 site needing a range
// thunk that the previous pass didn't know to size in, up to a small fixed
// number of rounds (adding a thunk only ever grows __TEXT, so this
// converges quickly; a hard cap guards against an unexpected oscillation).
func runLayout(ctx *Context) error {
	const maxRounds = 4
	for round := 0; round < maxRounds; round++ {
		Layout(ctx)
		if ctx.Arch.CPU() != CPUArm64 || ctx.Thunks == nil {
			return nil
		}
		if !addNeededThunks(ctx) {
			return nil
		}
	}
	return nil
}

// addNeededThunks checks every live ARM64_RELOC_BRANCH26 fixup site
// against its (now laid-out) target address and registers a range-
// extension thunk for any that falls outside the instruction's ±128MiB
// reach, reporting whether it added at least one (the caller re-lays-out
// to size __thunks before trusting any address computed this round).
func addNeededThunks(ctx *Context) bool {
	added := false
	for _, obj := range ctx.Objects {
		for _, ss := range obj.Subsections {
			if !ss.IsAlive() {
				continue
			}
			for i := range ss.Relocs {
				r := &ss.Relocs[i]
				if !isBranch26(ctx, r.Type) || r.Target == nil {
					continue
				}
				if r.Target.IsDylibImport() {
					continue // already routed through a __stubs trampoline
				}
				fromAddr := ss.OutputAddr + r.Offset
				toAddr := symbolOutputAddr(r.Target)
				if !ctx.Thunks.NeedsThunk(fromAddr, toAddr) {
					continue
				}
				if _, already := ctx.Thunks.index[r.Target]; already {
					continue
				}
				ctx.Thunks.Add(r.Target)
				added = true
			}
		}
	}
	return added
}

func isBranch26(ctx *Context, t uint8) bool {
	return ctx.Arch.CPU() == CPUArm64 && t == uint8(2) // ARM64RelocBranch26
}

func outputFileLength(ctx *Context) uint64 {
	var max uint64
	for _, seg := range ctx.Segments {
		if end := seg.Offset + seg.Filesize; end > max {
			max = end
		}
		if seg.Name == "__PAGEZERO" {
			continue
		}
	}
	return max
}

func renderChunks(ctx *Context, image []byte) {
	for _, seg := range ctx.Segments {
		if seg.Name == "__PAGEZERO" {
			continue
		}
		for _, c := range seg.Chunks {
			if c.Size() == 0 {
				continue
			}
			end := c.Offset() + c.Size()
			if end > uint64(len(image)) {
				continue // a chunk with nothing file-backed (pure zerofill) past EOF
			}
			c.CopyBuf(ctx, image[c.Offset():end])
		}
	}
}

// applyRelocations patches every live subsection's fixups into image now
// that every chunk's final address is fixed. x86-64's baked-in
// SIGNED_1/2/4 addends and ARM64's folded ARM64_RELOC_ADDEND value are
// both recovered through Arch.ReadAddend, reading the pre-fixup bytes
// still sitting in image before ApplyReloc overwrites them.
func applyRelocations(ctx *Context, image []byte) error {
	for _, obj := range ctx.Objects {
		for _, ss := range obj.Subsections {
			if !ss.IsAlive() {
				continue
			}
			for i := range ss.Relocs {
				r := ss.Relocs[i]
				fileOff := ss.OutputOffset + r.Offset
				if fileOff+8 > uint64(len(image)) {
					continue
				}
				rc := &RelocContext{
					PC:     ss.OutputAddr + r.Offset,
					Addend: ctx.Arch.ReadAddend(image[fileOff:], r.Type, r.Addend, r.Addend != 0),
				}
				if r.Target != nil {
					rc.SymbolAddr = symbolOutputAddr(r.Target)
					rc.GotAddr = ctx.Got.AddrOf(r.Target)
					rc.TlvAddr = ctx.ThreadPtrs.AddrOf(r.Target)
					if r.Target.NeedsRangeThunk() {
						rc.StubAddr = ctx.Thunks.Add(r.Target)
					} else if r.Target.NeedsStub() {
						rc.StubAddr = ctx.Stubs.baseChunk.addr + uint64(r.Target.stubIndex-1)*uint64(ctx.Arch.StubSize())
					}
				}
				if r.Subtractor != nil {
					rc.HasSubtractor = true
					rc.SubtractorAddr = symbolOutputAddr(r.Subtractor)
				}
				if err := ctx.Arch.ApplyReloc(image, fileOff, r, rc); err != nil {
					ctx.Diags.Errorf(obj.Path, 0, err, "%s,%s+%#x: %v", ss.SegName(), ss.SectName(), r.Offset, err)
				}
			}
		}
	}
	return nil
}

func signImage(ctx *Context, image []byte) {
	identifier := identifierFor(ctx)
	unsigned := image[:ctx.CodeSig.Offset()]
	blob := codesign.Sign(identifier, unsigned, 0, 0)
	copy(image[ctx.CodeSig.Offset():], blob)
}
