package linker

// Resolve assigns every interned symbol its winning definition: the
// strongest of all the candidates offered by the input objects and
// dylibs, applying the usual static-linker precedence — a regular
// (non-weak, non-common) definition beats a weak one, which beats a
// tentative (common) definition, which beats an import from a dylib. Two
// regular definitions of the same extern symbol in different objects is
// an error (P2 in the testable-properties sense: one external symbol,
// one winner).
func Resolve(ctx *Context) error {
	for _, obj := range ctx.Objects {
		if err := resolveObject(ctx, obj); err != nil {
			return err
		}
	}

	for _, obj := range ctx.Objects {
		resolveUndefinedAgainstDylibs(ctx, obj)
	}

	return nil
}

// resolveObject merges every extern/private-extern definition one object
// file offers into the canonical symbol table. It is also called directly
// by link.go's archive pull-in loop for each member pulled in after the
// initial full Resolve pass, since re-running Resolve itself would
// re-offer every already-adopted definition as if it were a fresh
// duplicate.
func resolveObject(ctx *Context, obj *ObjectFile) error {
	for _, sym := range obj.Symbols {
		if sym.Scope != ScopeExtern && sym.Scope != ScopePrivateExtern {
			continue // locals never enter cross-file resolution
		}
		if err := resolveOne(ctx, obj, sym); err != nil {
			return err
		}
	}
	return nil
}

// resolveOne merges one file's candidate definition of sym's name into the
// canonical symbol table entry, keeping whichever of the two candidates
// outranks the other.
func resolveOne(ctx *Context, obj *ObjectFile, candidate *Symbol) error {
	canonical := ctx.Symtab.Intern(candidate.Name)
	canonical.mu.Lock()
	defer canonical.mu.Unlock()

	if canonical.File == nil {
		adopt(canonical, obj, candidate)
		return nil
	}
	if rank(candidate) > rank(canonical) {
		adopt(canonical, obj, candidate)
		return nil
	}
	if rank(candidate) == rank(canonical) && rank(candidate) == rankRegular {
		ctx.Diags.Errorf(obj.Path, 0, ErrDuplicateSymbol, "duplicate symbol %s, also defined in %s", candidate.Name, canonical.File.Path)
	}
	// candidate loses; nothing to do. Tentative definitions merge their
	// size upward so the largest common wins the final allocation size.
	if canonical.IsTentative() && candidate.IsTentative() && candidate.CommonSize > canonical.CommonSize {
		canonical.CommonSize = candidate.CommonSize
		canonical.CommonAlign = candidate.CommonAlign
	}
	return nil
}

const (
	rankUndefined = iota
	rankDylib
	rankTentative
	rankWeak
	rankRegular
)

func rank(s *Symbol) int {
	switch {
	case s.File == nil && s.DylibOrdinal == 0 && !s.IsTentative():
		return rankUndefined
	case s.File == nil && !s.IsTentative():
		return rankDylib
	case s.IsTentative():
		return rankTentative
	case s.Weak || s.WeakDef:
		return rankWeak
	default:
		return rankRegular
	}
}

func adopt(canonical *Symbol, obj *ObjectFile, candidate *Symbol) {
	canonical.File = obj
	canonical.Subsec = candidate.Subsec
	canonical.Value = candidate.Value
	canonical.Scope = candidate.Scope
	canonical.Weak = candidate.Weak
	canonical.WeakDef = candidate.WeakDef
	canonical.TLV = candidate.TLV
	canonical.CommonSize = candidate.CommonSize
	canonical.CommonAlign = candidate.CommonAlign
}

// resolveUndefinedAgainstDylibs fills in DylibOrdinal for every symbol
// that no object file defined, searching dependency dylibs in load order
// (first dylib to export the name wins, matching two-level namespace
// lookup order).
func resolveUndefinedAgainstDylibs(ctx *Context, obj *ObjectFile) {
	for _, sym := range obj.Symbols {
		canonical, _ := ctx.Symtab.Lookup(sym.Name)
		if canonical == nil || canonical.File != nil || canonical.IsTentative() || canonical.DylibOrdinal != 0 {
			continue
		}
		for _, dylib := range ctx.Dylibs {
			for _, exp := range dylib.Exports {
				if exp.Name != canonical.Name {
					continue
				}
				canonical.DylibOrdinal = dylib.Ordinal
				canonical.WeakDef = canonical.WeakDef || exp.WeakDef
				canonical.TLV = canonical.TLV || exp.TLV
				setNeeded(dylib)
				goto next
			}
		}
		if !contains(ctx.Config.MustBeUndefined, canonical.Name) {
			ctx.Diags.Errorf(obj.Path, 0, ErrUndefinedSymbol, "undefined symbol: %s", canonical.Name)
		}
	next:
	}
}

func setNeeded(d *DylibFile) { d.IsNeeded = 1 }

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
