package answer

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/batfish/batfish-sub054/internal/warnings"
)

// DuplicateHostnames maps a hostname claimed by more than one file to the
// disambiguated names its holders were given.
type DuplicateHostnames map[string][]string

// Record adds name under hostname, keeping the list sorted and unique.
func (d DuplicateHostnames) Record(hostname, name string) {
	names := d[hostname]
	i := sort.SearchStrings(names, name)
	if i < len(names) && names[i] == name {
		return
	}
	names = append(names, "")
	copy(names[i+1:], names[i:])
	names[i] = name
	d[hostname] = names
}

// Has reports whether hostname was ever found duplicated.
func (d DuplicateHostnames) Has(hostname string) bool {
	_, ok := d[hostname]
	return ok
}

// Renamer gives ResolveHostname access to entries already in the output.
type Renamer[V any] struct {
	File   func(V) string
	Rename func(V, string)
}

// ResolveHostname returns the key under which an entry parsed from
// filename and claiming hostname must be inserted into output.
//
// If hostname is already a key, the existing entry is moved to
// "<hostname>__<its file base name>" and recorded. If hostname is a
// recorded duplicate, the incoming entry gets the same treatment using its
// own filename and a red flag is raised. Callers must not run this
// concurrently on the same output.
func ResolveHostname[V any](output map[string]V, dups DuplicateHostnames, hostname, filename string, r Renamer[V], w *warnings.Warnings) string {
	if existing, ok := output[hostname]; ok {
		moved := disambiguate(output, hostname, r.File(existing))
		delete(output, hostname)
		if r.Rename != nil {
			r.Rename(existing, moved)
		}
		output[moved] = existing
		dups.Record(hostname, moved)
	}
	if !dups.Has(hostname) {
		return hostname
	}
	name := disambiguate(output, hostname, filename)
	dups.Record(hostname, name)
	if w != nil {
		w.RedFlag("Duplicate hostname %q found in %s, renamed to %q", hostname, filename, name)
	}
	return name
}

func disambiguate[V any](output map[string]V, hostname, filename string) string {
	base := hostname + "__" + filepath.Base(filename)
	if _, taken := output[base]; !taken {
		return base
	}
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s__%d", base, i)
		if _, taken := output[candidate]; !taken {
			return candidate
		}
	}
}
