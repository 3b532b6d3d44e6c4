package domain

import (
	"net/netip"
	"regexp"
)

// Validation Helpers

var interfaceRegex = regexp.MustCompile(`^[a-zA-Z0-9\-_.]+$`)

// IsValidAddr checks if the string is a literal IPv4 or IPv6 address.
func IsValidAddr(addr string) bool {
	_, err := netip.ParseAddr(addr)
	return err == nil
}

// IsValidInterface checks if the string is a safe capture interface name
// (alphanumeric, '-', '_' and '.' for VLAN sub-interfaces).
func IsValidInterface(iface string) bool {
	// IFNAMSIZ is 16 on Linux
	if len(iface) == 0 || len(iface) > 16 {
		return false
	}
	return interfaceRegex.MatchString(iface)
}
