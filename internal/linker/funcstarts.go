package linker

// FunctionStartsSection is LC_FUNCTION_STARTS: every live function's
// address, delta-encoded as ULEB128 from the previous one (and from
// __TEXT's base for the first), letting tools reconstruct function
// boundaries without a full symbol table.
type FunctionStartsSection struct {
	baseChunk
	encoded []byte
}

func (f *FunctionStartsSection) ComputeSize(ctx *Context) {
	f.segname = "__LINKEDIT"

	var addrs []uint64
	for _, obj := range ctx.Objects {
		for _, ss := range obj.Subsections {
			if ss.SegName() == "__TEXT" && ss.SectName() == "__text" && ss.IsAlive() {
				addrs = append(addrs, ss.OutputAddr)
			}
		}
	}
	sortUint64(addrs)

	var out []byte
	prev := imageBaseAddr(ctx)
	for _, a := range addrs {
		out = appendULEB128(out, a-prev)
		prev = a
	}
	out = append(out, 0) // terminator
	f.encoded = out
	f.size = uint64(len(out))
}

func (f *FunctionStartsSection) CopyBuf(ctx *Context, buf []byte) { copy(buf, f.encoded) }

func sortUint64(a []uint64) {
	for i := 1; i < len(a); i++ {
		for j := i; j > 0 && a[j-1] > a[j]; j-- {
			a[j-1], a[j] = a[j], a[j-1]
		}
	}
}
