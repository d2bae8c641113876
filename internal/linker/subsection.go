package linker

import "github.com/appsworld/machold/internal/macho/types"

// InputSection is one section_64 of an input object file before it has
// been split at its symbol boundaries. Once MH_SUBSECTIONS_VIA_SYMBOLS
// splitting runs, all further linker logic operates on Subsections; a
// section whose owning file lacks that flag becomes a single Subsection
// spanning the whole section.
type InputSection struct {
	File     *ObjectFile
	Segname  string
	Sectname string
	Addr     uint64 // original input-file virtual address, used only to compute relative relocation targets
	Data     []byte
	Flags    types.SecFlag
	Align    uint32
}

// Subsection is the atom of dead-stripping, relocation and output layout:
// the span of one input section between two symbol boundaries (or the
// whole section, when subsections-via-symbols isn't in effect).
type Subsection struct {
	Isec   *InputSection
	Offset uint64 // byte offset into Isec.Data
	Size   uint64

	Relocs []Relocation

	// OutputAddr/OutputOffset are assigned during layout; zero until then.
	OutputAddr   uint64
	OutputOffset uint64

	isAlive uint32 // atomic; see deadstrip.go

	NoDeadStrip bool // S_ATTR_NO_DEAD_STRIP on the owning section
	LiveSupport bool // S_ATTR_LIVE_SUPPORT: alive only if it refers to something already alive
}

func (s *Subsection) Data() []byte {
	return s.Isec.Data[s.Offset : s.Offset+s.Size]
}

func (s *Subsection) SegName() string  { return s.Isec.Segname }
func (s *Subsection) SectName() string { return s.Isec.Sectname }

// SplitSubsections partitions isec at each symbol-defined offset strictly
// inside it, producing one Subsection per contiguous run, the Go
// equivalent of the MH_SUBSECTIONS_VIA_SYMBOLS splitting pass every other
// linker stage assumes has already happened.
func SplitSubsections(isec *InputSection, boundaries []uint64) []*Subsection {
	bounds := append([]uint64{0}, boundaries...)
	bounds = append(bounds, uint64(len(isec.Data)))

	// dedupe + sort defensively; callers pass symbol values which may
	// repeat (aliases) or arrive unordered.
	bounds = sortedUniqueUint64(bounds)

	out := make([]*Subsection, 0, len(bounds)-1)
	for i := 0; i+1 < len(bounds); i++ {
		out = append(out, &Subsection{
			Isec:        isec,
			Offset:      bounds[i],
			Size:        bounds[i+1] - bounds[i],
			NoDeadStrip: isec.Flags.NoDeadStrip(),
			LiveSupport: isec.Flags.LiveSupport(),
		})
	}
	return out
}

func sortedUniqueUint64(in []uint64) []uint64 {
	// insertion sort is fine: boundaries per section are few
	for i := 1; i < len(in); i++ {
		for j := i; j > 0 && in[j-1] > in[j]; j-- {
			in[j-1], in[j] = in[j], in[j-1]
		}
	}
	out := in[:0:0]
	for i, v := range in {
		if i == 0 || v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}
