package format

import (
	"regexp"
	"strings"
)

// signature is one entry of the ordered detection table.
type signature struct {
	format Format
	match  func(text string) bool
}

func pattern(expr string) func(string) bool {
	re := regexp.MustCompile(expr)
	return re.MatchString
}

func all(fns ...func(string) bool) func(string) bool {
	return func(text string) bool {
		for _, fn := range fns {
			if !fn(text) {
				return false
			}
		}
		return true
	}
}

var (
	explicitHeader = regexp.MustCompile(`(?m)^[!#]BATFISH_FORMAT:\s*(\S+)`)
	rancidHeader   = regexp.MustCompile(`(?m)^[!#]RANCID-CONTENT-TYPE:\s*(\S+)`)
)

var rancidTypes = map[string]Format{
	"arista":     Arista,
	"cisco":      CiscoIOS,
	"cisco-nx":   CiscoNX,
	"cisco-xe":   CiscoIOS,
	"fortigate":  Fortios,
	"foundry":    Foundry,
	"juniper":    Juniper,
	"mrv":        MRV,
	"paloalto":   PaloAltoNested,
	"cisco-asa":  CiscoASA,
	"bigip":      F5BigIPStructured,
	"vyos":       Vyos,
	"checkpoint": CheckPointGateway,
}

var flatJunosLine = pattern(`(?m)^set (system|interfaces|protocols|policy-options|firewall|routing-options|routing-instances|security|vlans|snmp) `)

// signatures are evaluated in order; the first match wins.
var signatures = []signature{
	{Iptables, all(pattern(`(?m)^\*(filter|mangle|nat|raw|security)\s*$`), pattern(`(?m)^(:[A-Z]|-A |COMMIT)`))},
	{Host, all(pattern(`^\s*\{`), pattern(`"hostInterfaces"\s*:`))},
	{F5BigIPStructured, pattern(`(?m)^#TMSH-VERSION:`)},
	{FlatPaloAlto, pattern(`(?m)^set deviceconfig `)},
	{PaloAltoNested, pattern(`(?m)^\s*deviceconfig\s*\{`)},
	{Fortios, pattern(`(?m)^config system global\s*$`)},
	{CumulusNCLU, pattern(`(?m)^net (add|del) `)},
	{CheckPointGateway, all(pattern(`(?m)^set hostname `), pattern(`(?m)^set (interface|static-route) `))},
	{Vyos, pattern(`(?m)^interfaces \{\s*\n\s+ethernet eth\d+`)},
	{FlatVyos, pattern(`(?m)^set interfaces ethernet eth\d+`)},
	{FlatJuniper, flatJunosLine},
	{Juniper, pattern(`(?m)^(system|interfaces|policy-options|firewall)\s*\{`)},
	{AlcatelAOS, pattern(`(?mi)^!\s*alcatel`)},
	{Metamako, pattern(`(?m)^! device: .*\(MOS-`)},
	{MRV, pattern(`(?m)^#\s*MRV `)},
	{VxWorks, pattern(`(?m)^\s*! VXWORKS`)},
	{Foundry, pattern(`(?m)^!\s*Foundry`)},
	{CiscoASA, pattern(`(?m)^(ASA|PIX) Version `)},
	{Arista, pattern(`(?m)^! (device: .*\(.*EOS|boot system flash:.*\.swi)`)},
	{CiscoNX, pattern(`(?m)^(feature \S+|!Command: show running-config)`)},
	{CiscoIOS, pattern(`(?m)^(hostname \S+|interface \S+|router (bgp|ospf|eigrp) |ip (route|access-list|prefix-list) |version \d+\.\d+)`)},
}

// Detect classifies text. It is pure and total: whitespace-only text is
// always Empty, text containing any ignore substring is Ignored, a
// non-Unknown override is returned unchanged, and otherwise the first
// matching signature wins with Unknown as the fallback.
func Detect(text string, ignoreSubstrings []string, override Format) Format {
	if strings.TrimSpace(text) == "" {
		return Empty
	}
	for _, s := range ignoreSubstrings {
		if s != "" && strings.Contains(text, s) {
			return Ignored
		}
	}
	if override != Unknown && override != "" {
		return override
	}
	if m := explicitHeader.FindStringSubmatch(text); m != nil {
		if f, err := Parse(m[1]); err == nil && !IsSentinel(f) {
			return f
		}
	}
	if m := rancidHeader.FindStringSubmatch(text); m != nil {
		if f, ok := rancidTypes[strings.ToLower(m[1])]; ok {
			if f == Juniper && flatJunosLine(text) {
				return FlatJuniper
			}
			return f
		}
	}
	for _, sig := range signatures {
		if sig.match(text) {
			return sig.format
		}
	}
	return Unknown
}
