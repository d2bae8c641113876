// Command machold is a static linker for 64-bit Mach-O object files,
// archives and dylibs: it accepts a subset of ld64/ld-classic's flags and
// produces an executable, dylib or bundle the same way `cc -fuse-ld=...`
// would invoke the real thing.
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/appsworld/machold/internal/linker"
	"github.com/appsworld/machold/internal/macho/types"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "machold: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("machold", flag.ContinueOnError)

	var (
		arch          = fs.String("arch", "arm64", "target architecture: arm64 or x86_64")
		output        = fs.String("o", "a.out", "output file path")
		dylib         = fs.Bool("dylib", false, "produce a dylib instead of an executable")
		bundle        = fs.Bool("bundle", false, "produce a loadable bundle instead of an executable")
		bundleLoader  = fs.String("bundle_loader", "", "executable a -bundle output resolves undefined symbols against")
		entry         = fs.String("e", "_main", "entry point symbol")
		installName   = fs.String("install_name", "", "-install_name for a -dylib output (LC_ID_DYLIB)")
		compatVersion = fs.String("compatibility_version", "1.0.0", "dylib compatibility version, x.y.z")
		currentVersion = fs.String("current_version", "1.0.0", "dylib current version, x.y.z")
		platform      = fs.String("platform", "macos", "target platform: macos, ios, tvos, watchos")
		minOS         = fs.String("platform_version_min", "11.0.0", "minimum OS version, x.y.z")
		sdkVersion    = fs.String("platform_sdk_version", "11.0.0", "SDK version, x.y.z")
		pagezeroSize  = fs.Uint64("pagezero_size", 1<<32, "__PAGEZERO segment size, executables only")
		stackSize     = fs.Uint64("stack_size", 8<<20, "main thread stack size")
		headerpad     = fs.Uint64("headerpad", 256, "extra space reserved after the load commands")
		deadStrip     = fs.Bool("dead_strip", false, "remove subsections unreachable from any root symbol")
		deadStripDylibs = fs.Bool("dead_strip_dylibs", false, "remove unreferenced dylib dependencies from the output")
		exportDynamic = fs.Bool("export_dynamic", false, "preserve every defined extern symbol even under -dead_strip")
		appExt        = fs.Bool("application_extension", false, "set MH_APP_EXTENSION_SAFE")
		adhocSign     = fs.Bool("adhoc_codesign", true, "apply an ad-hoc code signature to the output")
		objcARC       = fs.Bool("ObjC", false, "accepted and recorded; archive members are not force-loaded by it")
		syslibroot    = fs.String("syslibroot", "", "SDK root prepended to -l/-framework search paths")
		mapFile       = fs.String("map", "", "write a link map describing the final layout to this path")
		threads       = fs.Int("threads", 0, "accepted and recorded; every link pass runs sequentially")

		libPaths   stringList
		rpaths     stringList
		libs       stringList
		frameworks stringList
		forceUndef stringList
		mustBeUndef stringList
		exportedSyms stringList
		unexportedSyms stringList
	)
	fs.Var(&libPaths, "L", "add a library search path (repeatable)")
	fs.Var(&rpaths, "rpath", "add an LC_RPATH entry (repeatable)")
	fs.Var(&libs, "l", "link against libNAME.dylib/.a, searched in -L order (repeatable)")
	fs.Var(&frameworks, "framework", "link against NAME.framework (repeatable)")
	fs.Var(&forceUndef, "u", "force NAME to be treated as undefined, pulling in archive members that define it (repeatable)")
	fs.Var(&mustBeUndef, "U", "allow NAME to remain undefined even under -dead_strip (repeatable)")
	fs.Var(&exportedSyms, "exported_symbol", "export exactly the named symbols from a -dylib/-bundle output (repeatable)")
	fs.Var(&unexportedSyms, "unexported_symbol", "hide the named symbol from a -dylib/-bundle output's export trie (repeatable)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cpu, err := linker.ParseCPU(*arch)
	if err != nil {
		return err
	}
	plat, err := parsePlatform(*platform)
	if err != nil {
		return err
	}
	compat, err := parseVersion(*compatVersion)
	if err != nil {
		return fmt.Errorf("-compatibility_version: %w", err)
	}
	current, err := parseVersion(*currentVersion)
	if err != nil {
		return fmt.Errorf("-current_version: %w", err)
	}
	minOSVer, err := parseVersion(*minOS)
	if err != nil {
		return fmt.Errorf("-platform_version_min: %w", err)
	}
	sdkVer, err := parseVersion(*sdkVersion)
	if err != nil {
		return fmt.Errorf("-platform_sdk_version: %w", err)
	}

	kind := linker.OutputExecute
	switch {
	case *dylib:
		kind = linker.OutputDylib
	case *bundle:
		kind = linker.OutputBundle
	}

	inputs, err := resolveInputs(fs.Args(), libs, frameworks, libPaths, *syslibroot)
	if err != nil {
		return err
	}

	cfg := &linker.Config{
		Arch:                 cpu,
		Kind:                 kind,
		Output:               *output,
		Inputs:               inputs,
		LibraryPaths:         libPaths,
		Syslibroot:           *syslibroot,
		RpathList:            rpaths,
		Entry:                *entry,
		InstallName:          *installName,
		CompatVersion:        compat,
		CurrentVersion:       current,
		BundleLoader:         *bundleLoader,
		Platform:             plat,
		PlatformMinOS:        minOSVer,
		PlatformSDK:          sdkVer,
		PageZeroSize:         *pagezeroSize,
		StackSize:            *stackSize,
		Headerpad:            *headerpad,
		DeadStrip:            *deadStrip,
		DeadStrippableDylib:  *deadStripDylibs,
		ExportDynamic:        *exportDynamic,
		ApplicationExtension: *appExt,
		AdhocCodesign:        *adhocSign,
		ForceUndefined:       forceUndef,
		MustBeUndefined:      mustBeUndef,
		ExportedSymbols:      exportedSyms,
		UnexportedSymbols:    unexportedSyms,
		ObjCARCFlag:          *objcARC,
		MapFile:              *mapFile,
		ThreadCount:          *threads,
	}

	ctx, linkErr := linker.Link(cfg)
	if ctx != nil {
		for _, d := range ctx.Diags.All() {
			fmt.Fprintln(os.Stderr, d.Error())
		}
	}
	if linkErr != nil {
		return linkErr
	}

	if *mapFile != "" {
		if err := writeMapFile(ctx, *mapFile); err != nil {
			return fmt.Errorf("-map: %w", err)
		}
	}
	return nil
}

func writeMapFile(ctx *linker.Context, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	dm := linker.BuildDebugMap(ctx)
	return dm.WriteReport(ctx, f)
}

// resolveInputs expands -lNAME (findLibrary tries libNAME.dylib,
// libNAME.tbd, then libNAME.a) and -framework NAME (findFramework) against
// the -L search path plus /usr/lib and /usr/local/lib, and appends every
// -l result, then every -framework result, after all positional input
// files; where -l/-framework references sat among the plain inputs in
// argv is not kept.
func resolveInputs(positional []string, libs, frameworks, libPaths stringList, sysroot string) ([]string, error) {
	inputs := append([]string{}, positional...)

	searchDirs := append([]string{}, libPaths...)
	searchDirs = append(searchDirs, "/usr/lib", "/usr/local/lib")

	for _, name := range libs {
		path, err := findLibrary(name, searchDirs, sysroot)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, path)
	}
	for _, name := range frameworks {
		path, err := findFramework(name, searchDirs, sysroot)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, path)
	}
	return inputs, nil
}

func findLibrary(name string, dirs []string, sysroot string) (string, error) {
	candidates := []string{"lib" + name + ".dylib", "lib" + name + ".tbd", "lib" + name + ".a"}
	for _, dir := range withSysroot(dirs, sysroot) {
		for _, c := range candidates {
			path := dir + "/" + c
			if fileExists(path) {
				return path, nil
			}
		}
	}
	return "", fmt.Errorf("library not found for -l%s", name)
}

func findFramework(name string, dirs []string, sysroot string) (string, error) {
	for _, dir := range withSysroot(dirs, sysroot) {
		path := dir + "/" + name + ".framework/" + name
		if fileExists(path) {
			return path, nil
		}
	}
	return "", fmt.Errorf("framework not found: -framework %s", name)
}

func withSysroot(dirs []string, sysroot string) []string {
	if sysroot == "" {
		return dirs
	}
	out := make([]string, len(dirs))
	for i, d := range dirs {
		out[i] = sysroot + d
	}
	return out
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func parsePlatform(name string) (types.Platform, error) {
	switch strings.ToLower(name) {
	case "macos", "osx":
		return types.PlatformMacOS, nil
	case "ios":
		return types.PlatformIOS, nil
	case "tvos":
		return types.PlatformTvOS, nil
	case "watchos":
		return types.PlatformWatchOS, nil
	}
	return 0, fmt.Errorf("unknown -platform %q", name)
}

// parseVersion accepts the familiar x.y.z form (y and z optional) and
// packs it the way LC_BUILD_VERSION stores it.
func parseVersion(s string) (types.Version, error) {
	parts := strings.SplitN(s, ".", 3)
	var nums [3]uint8
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 10, 8)
		if err != nil {
			return 0, fmt.Errorf("invalid version component %q", p)
		}
		nums[i] = uint8(n)
	}
	return types.EncodeVersion(nums[0], nums[1], nums[2]), nil
}

// stringList implements flag.Value for a repeatable -flag value arg.
type stringList []string

func (l *stringList) String() string { return strings.Join(*l, ",") }
func (l *stringList) Set(v string) error {
	*l = append(*l, v)
	return nil
}
