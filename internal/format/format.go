// Package format defines the closed set of configuration formats and the
// detector that classifies raw configuration text.
package format

import (
	"fmt"
	"sort"
	"strings"
)

// Format tags a configuration file with the vendor syntax it is written in.
type Format string

// Sentinels.
const (
	Empty   Format = "EMPTY"
	Ignored Format = "IGNORED"
	Unknown Format = "UNKNOWN"
)

// Supported formats.
const (
	Arista      Format = "ARISTA"
	CiscoIOS    Format = "CISCO_IOS"
	CiscoNX     Format = "CISCO_NX"
	FlatJuniper Format = "FLAT_JUNIPER"
	Host        Format = "HOST"
	Iptables    Format = "IPTABLES"
	Juniper     Format = "JUNIPER"
)

// Recognized but unimplemented formats.
const (
	AlcatelAOS        Format = "ALCATEL_AOS"
	CheckPointGateway Format = "CHECK_POINT_GATEWAY"
	CiscoASA          Format = "CISCO_ASA"
	CumulusNCLU       Format = "CUMULUS_NCLU"
	F5BigIPStructured Format = "F5_BIGIP_STRUCTURED"
	FlatPaloAlto      Format = "PALO_ALTO"
	FlatVyos          Format = "FLAT_VYOS"
	Fortios           Format = "FORTIOS"
	Foundry           Format = "FOUNDRY"
	Metamako          Format = "METAMAKO"
	MRV               Format = "MRV"
	PaloAltoNested    Format = "PALO_ALTO_NESTED"
	VxWorks           Format = "VXWORKS"
	Vyos              Format = "VYOS"
)

var supported = []Format{
	Arista,
	CiscoIOS,
	CiscoNX,
	FlatJuniper,
	Host,
	Iptables,
	Juniper,
}

var unimplemented = map[Format]bool{
	AlcatelAOS:        true,
	CheckPointGateway: true,
	CiscoASA:          true,
	CumulusNCLU:       true,
	F5BigIPStructured: true,
	FlatPaloAlto:      true,
	FlatVyos:          true,
	Fortios:           true,
	Foundry:           true,
	Metamako:          true,
	MRV:               true,
	PaloAltoNested:    true,
	VxWorks:           true,
	Vyos:              true,
}

// flattenedAs maps hierarchical formats onto the flat format whose grammar
// parses them after flattening.
var flattenedAs = map[Format]Format{
	Juniper:        FlatJuniper,
	Vyos:           FlatVyos,
	PaloAltoNested: FlatPaloAlto,
}

// Supported returns the formats that must have a registered grammar, sorted.
func Supported() []Format {
	out := make([]Format, len(supported))
	copy(out, supported)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// All returns every format tag, sentinels included, sorted.
func All() []Format {
	out := []Format{Empty, Ignored, Unknown}
	out = append(out, supported...)
	for f := range unimplemented {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// IsSentinel reports whether f is EMPTY, IGNORED or UNKNOWN.
func IsSentinel(f Format) bool {
	return f == Empty || f == Ignored || f == Unknown
}

// IsUnimplemented reports whether f is recognized but has no grammar.
func IsUnimplemented(f Format) bool {
	return unimplemented[f]
}

// IsSupported reports whether f is a format with a grammar.
func IsSupported(f Format) bool {
	for _, s := range supported {
		if s == f {
			return true
		}
	}
	return false
}

// FlattenedAs returns the flat grammar format for a hierarchical format.
func FlattenedAs(f Format) (Format, bool) {
	flat, ok := flattenedAs[f]
	return flat, ok
}

// Parse converts a configuration value (case-insensitive) into a Format.
// An empty string parses as Unknown, which means "no override".
func Parse(s string) (Format, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return Unknown, nil
	}
	f := Format(s)
	if IsSentinel(f) || IsSupported(f) || IsUnimplemented(f) {
		return f, nil
	}
	return Unknown, fmt.Errorf("unknown configuration format %q", s)
}
