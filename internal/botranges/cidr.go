package botranges

import (
	"strconv"
	"strings"
)

// ipToInt converts a dotted-quad IPv4 string to its 32-bit value.
// Non-IPv4 input (including IPv6) returns ok=false.
func ipToInt(ip string) (uint32, bool) {
	parts := strings.Split(ip, ".")
	if len(parts) != 4 {
		return 0, false
	}
	var val uint32
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n > 255 {
			return 0, false
		}
		val = val<<8 | uint32(n)
	}
	return val, true
}

// CIDRMatch reports whether an IPv4 address falls inside base/bits.
// IPv6 inputs and malformed CIDR strings never match and never error.
// IPv6 prefix matching is intentionally unimplemented.
func CIDRMatch(ip, cidr string) bool {
	base, bitsStr, found := strings.Cut(cidr, "/")
	if !found {
		return false
	}
	bits, err := strconv.Atoi(strings.TrimSpace(bitsStr))
	if err != nil || bits < 0 || bits > 32 {
		return false
	}
	ipInt, ok := ipToInt(ip)
	if !ok {
		return false
	}
	baseInt, ok := ipToInt(base)
	if !ok {
		return false
	}
	var mask uint32
	if bits != 0 {
		mask = 0xFFFFFFFF << (32 - bits)
	}
	return ipInt&mask == baseInt&mask
}
