package ios

import (
	"encoding/binary"
	"fmt"
	"math/bits"
	"net/netip"
	"strconv"
	"strings"
)

// maskLength converts a dotted netmask to a prefix length. Wildcard masks
// are inverted first.
func maskLength(s string, wildcard bool) (int, error) {
	a, err := netip.ParseAddr(s)
	if err != nil || !a.Is4() {
		return 0, fmt.Errorf("invalid mask %q", s)
	}
	b := a.As4()
	m := binary.BigEndian.Uint32(b[:])
	if wildcard {
		m = ^m
	}
	ones := bits.LeadingZeros32(^m)
	if bits.OnesCount32(m) != ones {
		return 0, fmt.Errorf("non-contiguous mask %q", s)
	}
	return ones, nil
}

// addressWithMask parses "A.B.C.D M.M.M.M" keeping the host bits, as an
// interface address does.
func addressWithMask(addr, mask string) (netip.Prefix, error) {
	a, err := netip.ParseAddr(addr)
	if err != nil || !a.Is4() {
		return netip.Prefix{}, fmt.Errorf("invalid address %q", addr)
	}
	n, err := maskLength(mask, false)
	if err != nil {
		return netip.Prefix{}, err
	}
	return netip.PrefixFrom(a, n), nil
}

// interfaceAddress parses either "A.B.C.D/len" or "A.B.C.D M.M.M.M".
func interfaceAddress(words []string) (netip.Prefix, error) {
	if len(words) == 0 {
		return netip.Prefix{}, fmt.Errorf("missing address")
	}
	if strings.Contains(words[0], "/") {
		p, err := netip.ParsePrefix(words[0])
		if err != nil || !p.Addr().Is4() {
			return netip.Prefix{}, fmt.Errorf("invalid address %q", words[0])
		}
		return p, nil
	}
	if len(words) < 2 {
		return netip.Prefix{}, fmt.Errorf("missing mask for %q", words[0])
	}
	return addressWithMask(words[0], words[1])
}

// networkPrefix parses a route prefix in either notation, masked.
func networkPrefix(words []string) (netip.Prefix, int, error) {
	p, err := interfaceAddress(words)
	if err != nil {
		return netip.Prefix{}, 0, err
	}
	used := 2
	if strings.Contains(words[0], "/") {
		used = 1
	}
	return p.Masked(), used, nil
}

// aclAddress parses one ACL address operand and returns how many words it
// consumed.
func aclAddress(words []string) (Address, int, error) {
	if len(words) == 0 {
		return Address{}, 0, fmt.Errorf("missing address")
	}
	switch words[0] {
	case "any", "any4":
		return Address{Any: true}, 1, nil
	case "host":
		if len(words) < 2 {
			return Address{}, 0, fmt.Errorf("missing host address")
		}
		a, err := netip.ParseAddr(words[1])
		if err != nil || !a.Is4() {
			return Address{}, 0, fmt.Errorf("invalid host address %q", words[1])
		}
		return Address{Prefix: netip.PrefixFrom(a, 32)}, 2, nil
	case "object-group", "addrgroup":
		if len(words) < 2 {
			return Address{}, 0, fmt.Errorf("missing group name")
		}
		return Address{Group: words[1]}, 2, nil
	}
	if strings.Contains(words[0], "/") {
		p, err := netip.ParsePrefix(words[0])
		if err != nil || !p.Addr().Is4() {
			return Address{}, 0, fmt.Errorf("invalid prefix %q", words[0])
		}
		return Address{Prefix: p.Masked()}, 1, nil
	}
	a, err := netip.ParseAddr(words[0])
	if err != nil || !a.Is4() {
		return Address{}, 0, fmt.Errorf("invalid address %q", words[0])
	}
	if len(words) < 2 {
		// Standard ACLs allow a bare address meaning a single host.
		return Address{Prefix: netip.PrefixFrom(a, 32)}, 1, nil
	}
	if _, err := netip.ParseAddr(words[1]); err != nil {
		return Address{Prefix: netip.PrefixFrom(a, 32)}, 1, nil
	}
	n, err := maskLength(words[1], true)
	if err != nil {
		return Address{}, 0, err
	}
	return Address{Prefix: netip.PrefixFrom(a, n).Masked()}, 2, nil
}

var namedPorts = map[string]int{
	"bgp":      179,
	"domain":   53,
	"ftp":      21,
	"ftp-data": 20,
	"http":     80,
	"https":    443,
	"ntp":      123,
	"smtp":     25,
	"snmp":     161,
	"ssh":      22,
	"syslog":   514,
	"telnet":   23,
	"tftp":     69,
	"www":      80,
}

func port(s string) (int, error) {
	if p, ok := namedPorts[s]; ok {
		return p, nil
	}
	p, err := strconv.Atoi(s)
	if err != nil || p < 0 || p > 65535 {
		return 0, fmt.Errorf("invalid port %q", s)
	}
	return p, nil
}

// portMatch parses a port operator ("eq 22", "range 1 5", "gt 1023",
// "lt 1024") into a range string. It returns "" and 0 when words does not
// start with an operator.
func portMatch(words []string) (string, int, error) {
	if len(words) == 0 {
		return "", 0, nil
	}
	switch words[0] {
	case "eq", "gt", "lt":
		if len(words) < 2 {
			return "", 0, fmt.Errorf("missing port after %s", words[0])
		}
		p, err := port(words[1])
		if err != nil {
			return "", 0, err
		}
		switch words[0] {
		case "gt":
			return fmt.Sprintf("%d-65535", p+1), 2, nil
		case "lt":
			return fmt.Sprintf("0-%d", p-1), 2, nil
		}
		return strconv.Itoa(p), 2, nil
	case "range":
		if len(words) < 3 {
			return "", 0, fmt.Errorf("incomplete port range")
		}
		lo, err := port(words[1])
		if err != nil {
			return "", 0, err
		}
		hi, err := port(words[2])
		if err != nil {
			return "", 0, err
		}
		return fmt.Sprintf("%d-%d", lo, hi), 3, nil
	}
	return "", 0, nil
}
