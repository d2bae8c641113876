package linker

// Chunk is anything that occupies a contiguous, sized span of the output
// file: an input subsection's owning section, or one of the synthetic
// sections built in got.go/stubs.go/dyldinfo.go/etc. Layout asks every
// chunk to size itself once (after dead-strip and relocation scanning have
// determined what it needs to hold) and then to render its final bytes
// once every chunk's address is fixed.
type Chunk interface {
	SegName() string
	SectName() string

	// ComputeSize is called once addresses aren't needed yet, sizing the
	// chunk so layout can place it.
	ComputeSize(ctx *Context)
	Size() uint64

	// SetAddr/SetOffset are called once layout has decided where this
	// chunk lands.
	SetAddr(addr uint64)
	SetOffset(off uint64)
	Addr() uint64
	Offset() uint64

	// CopyBuf renders the chunk's final on-disk bytes into buf, which is
	// exactly Size() bytes long; by the time this runs every chunk's
	// address is final so cross-chunk references (a stub's jump to its
	// GOT slot, a bind opcode's segment/offset pair) can be resolved.
	CopyBuf(ctx *Context, buf []byte)
}

// baseChunk implements the address/offset bookkeeping shared by every
// synthetic chunk, so each one only has to implement sizing and rendering.
type baseChunk struct {
	segname, sectname string
	size, addr, off   uint64
}

func (c *baseChunk) SegName() string    { return c.segname }
func (c *baseChunk) SectName() string   { return c.sectname }
func (c *baseChunk) Size() uint64       { return c.size }
func (c *baseChunk) SetAddr(a uint64)   { c.addr = a }
func (c *baseChunk) SetOffset(o uint64) { c.off = o }
func (c *baseChunk) Addr() uint64       { return c.addr }
func (c *baseChunk) Offset() uint64     { return c.off }
