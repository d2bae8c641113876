package linker

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/appsworld/machold/internal/macho/types"
)

// ParseTBD reads the small subset of Apple's text-based-stub YAML this
// linker actually needs to resolve against a dylib it only has a stub
// for: install-name, current/compatibility version, and the flat
// exported-symbols list. Full YAML 1.2 (anchors, multi-document streams,
// block scalars) is out of scope; this is a line-oriented reader over the
// handful of top-level keys tapi emits for that subset.
func ParseTBD(r *bufio.Reader) (*DylibFile, error) {
	d := &DylibFile{}
	var inExports bool
	var lineNo int

	for {
		lineNo++
		line, err := r.ReadString('\n')
		if line == "" && err != nil {
			break
		}
		trimmed := strings.TrimRight(line, "\r\n")
		key, val, isTop := splitTBDLine(trimmed)

		switch {
		case isTop && key == "install-name":
			d.InstallName = unquote(val)
		case isTop && key == "current-version":
			d.CurrentVersion = parseTBDVersion(val)
		case isTop && key == "compatibility-version":
			d.CompatibilityVersion = parseTBDVersion(val)
		case isTop && (key == "exports" || key == "re-exports"):
			inExports = key == "exports"
		case inExports && strings.Contains(trimmed, "symbols:"):
			d.Exports = append(d.Exports, parseSymbolList(trimmed)...)
		}
		if err != nil {
			break
		}
	}
	if d.InstallName == "" {
		return nil, fmt.Errorf("tbd: missing install-name")
	}
	return d, nil
}

func splitTBDLine(line string) (key, val string, isTop bool) {
	if line == "" || line[0] == ' ' || line[0] == '-' || line[0] == '\t' {
		return "", "", false
	}
	idx := strings.IndexByte(line, ':')
	if idx < 0 {
		return "", "", false
	}
	return strings.TrimSpace(line[:idx]), strings.TrimSpace(line[idx+1:]), true
}

func unquote(s string) string { return strings.Trim(s, `"'`) }

func parseTBDVersion(s string) types.Version {
	// tapi emits "current-version: 1.0" / "1" / "1.2.3"; only the leading
	// two components matter for the symbol-resolution use this linker
	// makes of it.
	var major, minor int
	fmt.Sscanf(s, "%d.%d", &major, &minor)
	return types.Version(major<<16 | minor<<8)
}

func parseSymbolList(line string) []DylibExport {
	start := strings.IndexByte(line, '[')
	end := strings.LastIndexByte(line, ']')
	if start < 0 || end < 0 || end <= start {
		return nil
	}
	var out []DylibExport
	for _, name := range strings.Split(line[start+1:end], ",") {
		name = unquote(strings.TrimSpace(name))
		if name != "" {
			out = append(out, DylibExport{Name: name})
		}
	}
	return out
}
