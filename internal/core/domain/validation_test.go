package domain

import "testing"

func TestIsValidAddr(t *testing.T) {
	tests := []struct {
		addr  string
		valid bool
	}{
		{"192.168.1.100", true},
		{"10.0.0.50", true},
		{"::1", true},
		{"fe80::1", true},
		{"invalid", false},
		{"300.1.1.1", false},
		{"10.0.0.1:5060", false},
		{"", false},
	}

	for _, tt := range tests {
		if IsValidAddr(tt.addr) != tt.valid {
			t.Errorf("IsValidAddr(%s) = %v; want %v", tt.addr, IsValidAddr(tt.addr), tt.valid)
		}
	}
}

func TestIsValidInterface(t *testing.T) {
	tests := []struct {
		iface string
		valid bool
	}{
		{"eth0", true},
		{"any", true},
		{"enp3s0", true},
		{"eth0.100", true},
		{"very_long_interface_name_that_should_fail", false}, // > 16 chars
		{"; rm -rf /", false},
		{"", false},
	}

	for _, tt := range tests {
		if IsValidInterface(tt.iface) != tt.valid {
			t.Errorf("IsValidInterface(%s) = %v; want %v", tt.iface, IsValidInterface(tt.iface), tt.valid)
		}
	}
}
