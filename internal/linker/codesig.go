package linker

import "github.com/appsworld/machold/internal/codesign"

// CodeSignatureSection is LC_CODE_SIGNATURE: reserved space for an ad-hoc
// signature computed over every byte of the output file that precedes it.
// Sizing only needs the length of those bytes, i.e. this chunk's own file
// offset, which is known once the __LINKEDIT chunks placed before it are
// sized (it is always the last __LINKEDIT chunk); the actual hash is
// computed by link.go's final pass once every other byte of the output is
// final.
type CodeSignatureSection struct {
	baseChunk
	identifier string
}

func (c *CodeSignatureSection) ComputeSize(ctx *Context) {
	c.segname = "__LINKEDIT"
	c.identifier = identifierFor(ctx)
	// Sized against the length of the bytes the signature covers; link.go
	// computes the signature bytes over that same span once layout is
	// frozen, and the two must match exactly since LC_CODE_SIGNATURE's
	// size is fixed by the time load commands are written.
	c.size = codesign.SuperBlobSize(c.identifier, estimateFileLength(ctx))
}

func (c *CodeSignatureSection) CopyBuf(ctx *Context, buf []byte) {
	// Left zeroed here; link.go overwrites this span after the rest of
	// the file is rendered, since the signature covers those bytes too.
}

func identifierFor(ctx *Context) string {
	if ctx.Config.InstallName != "" {
		return ctx.Config.InstallName
	}
	return ctx.Config.Output
}

// estimateFileLength returns the file offset at which the signature begins,
// which is the length of the prefix Sign hashes: __LINKEDIT's offset plus
// the sizes of the __LINKEDIT chunks placed before this one, all of which
// Layout has already sized.
func estimateFileLength(ctx *Context) uint64 {
	linkedit := ctx.SegmentByName("__LINKEDIT")
	if linkedit == nil {
		return 0
	}
	off := linkedit.Offset
	for _, c := range linkedit.Chunks {
		if c == Chunk(ctx.CodeSig) {
			break
		}
		off += c.Size()
	}
	return off
}
