package answer

import (
	"sort"

	"github.com/batfish/batfish-sub054/internal/format"
	"github.com/batfish/batfish-sub054/internal/vendor"
	"github.com/batfish/batfish-sub054/internal/warnings"
)

// ParseElement is the batch answer of the parse stage, keyed by file.
type ParseElement struct {
	ParseStatus        map[string]ParseStatus        `json:"parse_status" yaml:"parse_status"`
	FileFormats        map[string]format.Format      `json:"file_formats" yaml:"file_formats"`
	Warnings           map[string]*warnings.Warnings `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	ParseTrees         map[string]string             `json:"parse_trees,omitempty" yaml:"parse_trees,omitempty"`
	Errors             map[string]string             `json:"errors,omitempty" yaml:"errors,omitempty"`
	ErrorDetails       map[string]ErrorDetails       `json:"error_details,omitempty" yaml:"error_details,omitempty"`
	DuplicateHostnames DuplicateHostnames            `json:"duplicate_hostnames,omitempty" yaml:"duplicate_hostnames,omitempty"`
}

// NewParseElement returns an empty parse answer.
func NewParseElement() *ParseElement {
	return &ParseElement{
		ParseStatus:        make(map[string]ParseStatus),
		FileFormats:        make(map[string]format.Format),
		Warnings:           make(map[string]*warnings.Warnings),
		ParseTrees:         make(map[string]string),
		Errors:             make(map[string]string),
		ErrorDetails:       make(map[string]ErrorDetails),
		DuplicateHostnames: make(DuplicateHostnames),
	}
}

// StatusCounts tallies files per status.
func (pe *ParseElement) StatusCounts() map[ParseStatus]int {
	counts := make(map[ParseStatus]int)
	for _, s := range pe.ParseStatus {
		counts[s]++
	}
	return counts
}

// Files returns the recorded files in sorted order.
func (pe *ParseElement) Files() []string {
	files := make([]string, 0, len(pe.ParseStatus))
	for f := range pe.ParseStatus {
		files = append(files, f)
	}
	sort.Strings(files)
	return files
}

// ConvertElement is the batch answer of the convert stage.
type ConvertElement struct {
	ConvertStatus        map[string]ConvertStatus                                 `json:"convert_status" yaml:"convert_status"`
	Warnings             map[string]*warnings.Warnings                            `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	FileMap              map[string][]string                                      `json:"file_map" yaml:"file_map"`
	DefinedStructures    map[string]map[string]map[string]vendor.DefinedStructure `json:"defined_structures,omitempty" yaml:"defined_structures,omitempty"`
	ReferencedStructures map[string]map[string]map[string]map[string][]int        `json:"referenced_structures,omitempty" yaml:"referenced_structures,omitempty"`
	UndefinedReferences  map[string]map[string]map[string]map[string][]int        `json:"undefined_references,omitempty" yaml:"undefined_references,omitempty"`
	Errors               map[string]string                                        `json:"errors,omitempty" yaml:"errors,omitempty"`
	ErrorDetails         map[string]ErrorDetails                                  `json:"error_details,omitempty" yaml:"error_details,omitempty"`
	DuplicateHostnames   DuplicateHostnames                                       `json:"duplicate_hostnames,omitempty" yaml:"duplicate_hostnames,omitempty"`

	claims map[string]*HostClaim
}

// HostClaim is the file holding a hostname key of the convert answer.
type HostClaim struct {
	Host string
	File string
}

// NewConvertElement returns an empty convert answer.
func NewConvertElement() *ConvertElement {
	return &ConvertElement{
		ConvertStatus:        make(map[string]ConvertStatus),
		Warnings:             make(map[string]*warnings.Warnings),
		FileMap:              make(map[string][]string),
		DefinedStructures:    make(map[string]map[string]map[string]vendor.DefinedStructure),
		ReferencedStructures: make(map[string]map[string]map[string]map[string][]int),
		UndefinedReferences:  make(map[string]map[string]map[string]map[string][]int),
		Errors:               make(map[string]string),
		ErrorDetails:         make(map[string]ErrorDetails),
		DuplicateHostnames:   make(DuplicateHostnames),
	}
}

// AddFileHost records that file produced hostname.
func (ce *ConvertElement) AddFileHost(file, hostname string) {
	hosts := ce.FileMap[file]
	i := sort.SearchStrings(hosts, hostname)
	if i < len(hosts) && hosts[i] == hostname {
		return
	}
	hosts = append(hosts, "")
	copy(hosts[i+1:], hosts[i:])
	hosts[i] = hostname
	ce.FileMap[file] = hosts
}

// Claims returns every hostname key handed out so far, failed conversions
// included.
func (ce *ConvertElement) Claims() map[string]*HostClaim {
	if ce.claims == nil {
		ce.claims = make(map[string]*HostClaim)
	}
	return ce.claims
}

// RenameHost moves every per-host entry from old to name.
func (ce *ConvertElement) RenameHost(old, name string) {
	moveKey(ce.ConvertStatus, old, name)
	moveKey(ce.Warnings, old, name)
	moveKey(ce.Errors, old, name)
	moveKey(ce.ErrorDetails, old, name)
	for file, hosts := range ce.FileMap {
		for i, h := range hosts {
			if h == old {
				hosts = append(hosts[:i], hosts[i+1:]...)
				ce.FileMap[file] = hosts
				ce.AddFileHost(file, name)
				break
			}
		}
	}
}

// StatusCounts tallies nodes per convert status.
func (ce *ConvertElement) StatusCounts() map[ConvertStatus]int {
	counts := make(map[ConvertStatus]int)
	for _, s := range ce.ConvertStatus {
		counts[s]++
	}
	return counts
}

func moveKey[V any](m map[string]V, old, name string) {
	if v, ok := m[old]; ok {
		delete(m, old)
		m[name] = v
	}
}
