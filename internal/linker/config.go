package linker

import (
	"errors"

	"github.com/appsworld/machold/internal/macho/types"
)

// OutputKind selects the Mach-O file type this run produces, chosen by
// -dylib or -bundle; an executable is produced when neither is given.
type OutputKind int

const (
	OutputExecute OutputKind = iota
	OutputDylib
	OutputBundle
)

// Config is the fully-resolved set of link options for one run, built by
// cmd/machold from command-line flags. It never changes once Link starts.
type Config struct {
	Arch CPU

	Kind         OutputKind
	Output       string
	Inputs       []string // object files, archives, and dylibs/TBDs in link order
	LibraryPaths []string
	Syslibroot   string
	RpathList    []string

	Entry            string // -e, default "_main"
	InstallName      string // -install_name, LC_ID_DYLIB for dylib outputs
	CompatVersion    types.Version
	CurrentVersion   types.Version
	BundleLoader     string

	Platform         types.Platform
	PlatformMinOS    types.Version
	PlatformSDK      types.Version

	PageZeroSize uint64
	StackSize    uint64
	Headerpad    uint64

	DeadStrip           bool
	DeadStrippableDylib bool
	ExportDynamic       bool
	TwoLevelNamespace   bool
	ApplicationExtension bool
	AdhocCodesign       bool
	ForceUndefined      []string // -u
	MustBeUndefined     []string // -U (allowed to stay undefined even with -dead_strip roots)
	ExportedSymbols     []string // -exported_symbols_list, empty means export everything non-hidden
	UnexportedSymbols   []string // -unexported_symbols_list
	ObjCARCFlag         bool     // -ObjC: recorded only; no pass reads it, so no archive member is force-loaded

	// SectCreate, SectAlign and AddEmptySection are not set from any
	// command-line flag, and no layout or chunk code reads them.
	SectCreate  []SectCreateSpec // -sectcreate segname,sectname,file
	SectAlign   map[string]uint64 // "segname,sectname" -> alignment
	AddEmptySection []SegSectName

	MapFile string // -map: write a link map describing the final layout

	ThreadCount int // -threads; recorded only: every link pass runs sequentially
}

// SegSectName identifies an (segment, section) pair, the unit -sectalign
// and -add_empty_section operate on.
type SegSectName struct {
	Segment string
	Section string
}

// SectCreateSpec is one -sectcreate request: inject the contents of a file
// as a new section with no symbols and no relocations.
type SectCreateSpec struct {
	SegSectName
	Path string
}

func (c *Config) Validate() error {
	if len(c.Inputs) == 0 {
		return errors.New("linker: no input files")
	}
	if c.Kind == OutputExecute && c.Entry == "" {
		c.Entry = "_main"
	}
	if c.Output == "" {
		c.Output = "a.out"
	}
	if c.Headerpad == 0 {
		c.Headerpad = 256
	}
	if c.StackSize == 0 {
		c.StackSize = 8 << 20
	}
	return nil
}
