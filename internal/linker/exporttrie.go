package linker

import (
	"github.com/appsworld/machold/internal/macho/trie"
	"github.com/appsworld/machold/internal/macho/types"
)

// ExportSection is LC_DYLD_INFO_ONLY's export trie: the ABI surface of a
// -dylib/-bundle output, or empty for a plain executable. Built from every
// live, extern, non-private symbol this image defines.
type ExportSection struct {
	baseChunk
	encoded []byte
}

func (e *ExportSection) ComputeSize(ctx *Context) {
	e.segname = "__LINKEDIT"
	if ctx.Config.Kind == OutputExecute {
		e.size = 0
		return
	}

	var exports []trie.Export
	for _, sym := range ctx.Symtab.All() {
		if !symbolIsExported(ctx, sym) {
			continue
		}
		flags := types.ExportSymbolFlagsKindRegular
		if sym.WeakDef {
			flags |= types.ExportSymbolFlagsWeakDefinition
		}
		exports = append(exports, trie.Export{
			Name:    sym.Name,
			Flags:   flags,
			Address: symbolOutputAddr(sym) - imageBaseAddr(ctx),
		})
	}
	enc := trie.NewEncoder(exports)
	e.encoded = enc.Encode()
	e.size = uint64(len(e.encoded))
}

func (e *ExportSection) CopyBuf(ctx *Context, buf []byte) { copy(buf, e.encoded) }

func symbolIsExported(ctx *Context, sym *Symbol) bool {
	if sym.File == nil || sym.Scope != ScopeExtern || !sym.IsAlive() {
		return false
	}
	if len(ctx.Config.ExportedSymbols) > 0 {
		return contains(ctx.Config.ExportedSymbols, sym.Name)
	}
	return !contains(ctx.Config.UnexportedSymbols, sym.Name)
}

func symbolOutputAddr(sym *Symbol) uint64 {
	if sym.Subsec == nil {
		return 0
	}
	return sym.Subsec.OutputAddr + sym.Value
}

func imageBaseAddr(ctx *Context) uint64 {
	if t := ctx.SegmentByName("__TEXT"); t != nil {
		return t.Addr
	}
	return 0
}
