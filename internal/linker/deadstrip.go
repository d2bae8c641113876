package linker

import "sync/atomic"

func (s *Subsection) IsAlive() bool { return atomic.LoadUint32(&s.isAlive) != 0 }

// MarkAlive reports whether this call transitioned the subsection from
// dead to alive, so the caller knows whether to push it onto the
// mark-phase worklist.
func (s *Subsection) MarkAlive() bool {
	return atomic.CompareAndSwapUint32(&s.isAlive, 0, 1)
}

// DeadStrip runs mark-and-sweep over every live object's subsections,
// starting from the root set (entry point, all extern definitions in a
// dylib/bundle output, -u forced-undefined symbols, and anything flagged
// S_ATTR_NO_DEAD_STRIP) and following relocation edges until no new
// subsection is marked. S_ATTR_LIVE_SUPPORT sections additionally require
// a fixed-point re-scan: they only become live once something they point
// to is already live, so one pass can under-mark them.
func DeadStrip(ctx *Context) {
	if !ctx.Config.DeadStrip {
		for _, obj := range ctx.Objects {
			for _, ss := range obj.Subsections {
				ss.MarkAlive()
			}
		}
		return
	}

	var worklist []*Subsection
	visit := func(ss *Subsection) {
		if ss != nil && ss.MarkAlive() {
			worklist = append(worklist, ss)
		}
	}

	for _, root := range collectRootSymbols(ctx) {
		if root.Subsec != nil {
			visit(root.Subsec)
		}
		root.MarkAlive()
	}
	for _, obj := range ctx.Objects {
		for _, ss := range obj.Subsections {
			if ss.NoDeadStrip {
				visit(ss)
			}
		}
	}

	for len(worklist) > 0 {
		ss := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]
		for i := range ss.Relocs {
			r := &ss.Relocs[i]
			if r.Target == nil {
				continue
			}
			r.Target.MarkAlive()
			if r.Target.Subsec != nil {
				visit(r.Target.Subsec)
			}
		}
	}

	// S_ATTR_LIVE_SUPPORT fixed point: keep re-scanning until a full pass
	// marks nothing new.
	for {
		progressed := false
		for _, obj := range ctx.Objects {
			for _, ss := range obj.Subsections {
				if !ss.LiveSupport || ss.IsAlive() {
					continue
				}
				if refersLiveSubsection(ss) {
					ss.MarkAlive()
					progressed = true
				}
			}
		}
		if !progressed {
			break
		}
	}

	sweep(ctx)
}

func refersLiveSubsection(ss *Subsection) bool {
	for i := range ss.Relocs {
		if t := ss.Relocs[i].Target; t != nil && t.Subsec != nil && t.Subsec.IsAlive() {
			return true
		}
	}
	return false
}

// collectRootSymbols returns the symbols that must survive dead-strip
// regardless of reachability: the entry point for an executable, every
// extern definition for a dylib/bundle (its ABI surface) or for an
// executable linked with -export_dynamic, and anything named by -u.
// Symbols are not rooted by their nlist desc bits: N_NO_DEAD_STRIP and
// N_REFERENCED_DYNAMICALLY are not recorded on Symbol and have no effect
// here.
func collectRootSymbols(ctx *Context) []*Symbol {
	var roots []*Symbol
	if ctx.Config.Kind == OutputExecute {
		if e, ok := ctx.Symtab.Lookup(ctx.Config.Entry); ok {
			roots = append(roots, e)
		}
	}
	if ctx.Config.Kind != OutputExecute || ctx.Config.ExportDynamic {
		for _, obj := range ctx.Objects {
			for _, sym := range obj.Symbols {
				if sym.Scope == ScopeExtern && sym.File == obj {
					roots = append(roots, sym)
				}
			}
		}
	}
	for _, name := range ctx.Config.ForceUndefined {
		if s, ok := ctx.Symtab.Lookup(name); ok {
			roots = append(roots, s)
		}
	}
	return roots
}

// sweep erases dead subsections from each object's list and drops from
// obj.Symbols every symbol whose defining subsection didn't survive, so
// later passes never see a dangling reference.
func sweep(ctx *Context) {
	for _, obj := range ctx.Objects {
		live := obj.Subsections[:0]
		for _, ss := range obj.Subsections {
			if ss.IsAlive() {
				live = append(live, ss)
			}
		}
		obj.Subsections = live
		syms := obj.Symbols[:0]
		for _, s := range obj.Symbols {
			if s.Subsec == nil || s.Subsec.IsAlive() {
				syms = append(syms, s)
			}
		}
		obj.Symbols = syms
	}
}
