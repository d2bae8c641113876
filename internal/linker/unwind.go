package linker

import "sort"

// UnwindRecord is one function's compact-unwind entry, carried forward
// from the input object's __LD,__compact_unwind section (or synthesized
// as a DWARF-only record when an object has no compact form).
type UnwindRecord struct {
	FuncAddr   uint64
	Length     uint32
	Encoding   uint32
	Personality *Symbol // nil if this function has no personality routine
	LSDA        *Symbol
}

// UnwindInfoSection is __TEXT,__unwind_info: the second-level-paged,
// personality-deduplicated compact unwind table __unwind_info's consumers
// (the system unwinder, not dyld) read during exception propagation.
//
// Pages are split so that every record's function address stays within
// 24 bits of its page's first address (the format's page-local encoding
// width) and no page holds more than the 4096-entry per-page maximum a
// regular second-level page can index.
type UnwindInfoSection struct {
	baseChunk
	records      []UnwindRecord
	personalities []*Symbol
	pages        []unwindPage
	lsdas        []lsdaEntry
}

type unwindPage struct {
	firstAddr uint64
	records   []UnwindRecord
}

// lsdaEntry is one row of the LSDA index array: the function address and
// the address of its Language-Specific Data Area, read off by the system
// unwinder while walking a personality routine's exception table.
type lsdaEntry struct {
	funcAddr uint64
	lsdaAddr uint64
}

// collectLSDAEntries pulls out one entry per record carrying an LSDA
// symbol, in the same function-address order as records itself so the
// array stays sorted for unwindPage's binary-search lookup at runtime.
func collectLSDAEntries(records []UnwindRecord) []lsdaEntry {
	var out []lsdaEntry
	for _, r := range records {
		if r.LSDA == nil {
			continue
		}
		var addr uint64
		if r.LSDA.Subsec != nil {
			addr = r.LSDA.Subsec.OutputAddr + r.LSDA.Value
		}
		out = append(out, lsdaEntry{funcAddr: r.FuncAddr, lsdaAddr: addr})
	}
	return out
}

const (
	unwindPageMaxEntries = 4096
	unwindPageReach      = 1 << 24
)

func (u *UnwindInfoSection) ComputeSize(ctx *Context) {
	u.segname, u.sectname = "__TEXT", "__unwind_info"
	u.records = collectUnwindRecords(ctx)
	u.personalities = dedupePersonalities(u.records)
	if len(u.personalities) > 3 {
		ctx.Diags.Warnf("", 0, "more than 3 distinct personality routines; only the first 3 get a compact slot")
		u.personalities = u.personalities[:3]
	}
	u.pages = splitPages(u.records)
	u.lsdas = collectLSDAEntries(u.records)

	header := uint64(4*4 + 4) // version+offsets header, no common-encodings table (0 entries) for this minimal form
	personalityTable := uint64(len(u.personalities) * 4)
	// one first-level index entry per page + terminal sentinel; each entry
	// is (functionOffset, secondLevelPagesOffset, lsdaIndexArrayOffset)
	indexTable := uint64((len(u.pages) + 1) * 12)
	lsdaTable := uint64(len(u.lsdas) * 8) // (functionOffset, lsdaOffset) per entry
	var pagesSize uint64
	for _, p := range u.pages {
		pagesSize += 8 + uint64(len(p.records))*8 // second-level page header + (func-offset,encoding) per entry
	}
	u.size = header + personalityTable + indexTable + lsdaTable + pagesSize
}

// collectUnwindRecords gathers every live object's parsed __compact_unwind
// entries, translating each function address from the input file's own
// address space into its final output address (dropping any record whose
// function was dead-stripped away) and sorting the result so splitPages's
// greedy packing can assume monotonically increasing addresses.
func collectUnwindRecords(ctx *Context) []UnwindRecord {
	var out []UnwindRecord
	for _, obj := range ctx.Objects {
		for _, e := range obj.CompactUnwind {
			ss := funcSubsection(obj, e.FuncAddr)
			if ss == nil || !ss.IsAlive() {
				continue
			}
			out = append(out, UnwindRecord{
				FuncAddr:    ss.OutputAddr + (e.FuncAddr - subOffset(ss)),
				Length:      e.Length,
				Encoding:    e.Encoding,
				Personality: e.Personality,
				LSDA:        e.LSDA,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FuncAddr < out[j].FuncAddr })
	return out
}

func funcSubsection(obj *ObjectFile, addr uint64) *Subsection {
	for _, ss := range obj.Subsections {
		if ss.SegName() == "__TEXT" && addr >= subOffset(ss) && addr < subOffset(ss)+ss.Size {
			return ss
		}
	}
	return nil
}

func dedupePersonalities(records []UnwindRecord) []*Symbol {
	var out []*Symbol
	seen := map[*Symbol]bool{}
	for _, r := range records {
		if r.Personality != nil && !seen[r.Personality] {
			seen[r.Personality] = true
			out = append(out, r.Personality)
		}
	}
	return out
}

// splitPages greedily packs consecutive records into a page while the
// function-address delta from the page's first record stays under
// unwindPageReach and the page has fewer than unwindPageMaxEntries
// records, matching the split_records bound every unwind-info writer
// enforces so the compact per-entry function offset still fits.
func splitPages(records []UnwindRecord) []unwindPage {
	var pages []unwindPage
	var cur unwindPage
	for _, r := range records {
		if len(cur.records) == 0 {
			cur.firstAddr = r.FuncAddr
		}
		if len(cur.records) >= unwindPageMaxEntries || r.FuncAddr-cur.firstAddr >= unwindPageReach {
			pages = append(pages, cur)
			cur = unwindPage{firstAddr: r.FuncAddr}
		}
		cur.records = append(cur.records, r)
	}
	if len(cur.records) > 0 {
		pages = append(pages, cur)
	}
	return pages
}

func (u *UnwindInfoSection) CopyBuf(ctx *Context, buf []byte) {
	o := 0
	putU32At := func(v uint32) { putU32(buf[o:], v); o += 4 }

	putU32At(1) // version
	putU32At(uint32(5 * 4)) // commonEncodingsArraySectionOffset (empty table follows header)
	putU32At(0)             // commonEncodingsArrayCount
	putU32At(uint32(5 * 4)) // personalityArraySectionOffset
	putU32At(uint32(len(u.personalities)))

	for _, p := range u.personalities {
		var addr uint32
		if p.Subsec != nil {
			addr = uint32(p.Subsec.OutputAddr + p.Value)
		}
		putU32At(addr)
	}

	lsdaTableOff := o + (len(u.pages)+1)*12
	pageOff := lsdaTableOff + len(u.lsdas)*8

	// lsdaIdx tracks, per page, the first LSDA entry whose function lies at
	// or after that page's first address: records and lsdas are both sorted
	// by function address, so a single forward-advancing cursor suffices.
	lsdaIdx := 0
	for _, p := range u.pages {
		for lsdaIdx < len(u.lsdas) && u.lsdas[lsdaIdx].funcAddr < p.firstAddr {
			lsdaIdx++
		}
		putU32At(uint32(p.firstAddr))
		putU32At(uint32(pageOff))
		putU32At(uint32(lsdaTableOff + lsdaIdx*8))
		pageOff += 8 + len(p.records)*8
	}
	putU32At(uint32(lastAddr(u.records))) // terminal sentinel: one-past-the-end function address
	putU32At(uint32(pageOff))             // one-past the last second-level page
	putU32At(uint32(lsdaTableOff + len(u.lsdas)*8))

	for _, e := range u.lsdas {
		putU32At(uint32(e.funcAddr))
		putU32At(uint32(e.lsdaAddr))
	}

	for _, p := range u.pages {
		putU32At(2) // second-level regular page kind
		putU32At(uint32(len(p.records)))
		for _, r := range p.records {
			putU32At(uint32(r.FuncAddr - p.firstAddr))
			putU32At(r.Encoding)
		}
	}
}

func lastAddr(records []UnwindRecord) uint64 {
	if len(records) == 0 {
		return 0
	}
	last := records[len(records)-1]
	return last.FuncAddr + uint64(last.Length)
}
