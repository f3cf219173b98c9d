package botranges

import "testing"

func TestCIDRMatch(t *testing.T) {
	cases := []struct {
		ip   string
		cidr string
		want bool
	}{
		{"192.168.1.5", "192.168.1.0/24", true},
		{"192.168.2.5", "192.168.1.0/24", false},
		{"10.0.0.1", "10.0.0.0/0", true}, // bits=0 matches everything
		{"8.8.8.8", "10.0.0.0/0", true},
		{"66.249.64.1", "66.249.64.0/27", true},
		{"66.249.64.32", "66.249.64.0/27", false},
		{"1.2.3.4", "1.2.3.4/32", true},
		{"1.2.3.5", "1.2.3.4/32", false},

		// Malformed input never matches and never panics.
		{"192.168.1.5", "192.168.1.0", false}, // missing slash
		{"192.168.1.5", "192.168.1.0/", false},
		{"192.168.1.5", "192.168.1.0/33", false},
		{"192.168.1.5", "192.168.1.0/-1", false},
		{"192.168.1.5", "garbage/24", false},
		{"300.1.1.1", "192.168.1.0/24", false},
		{"", "192.168.1.0/24", false},

		// IPv6 always fails the IPv4 matcher.
		{"2001:db8::1", "192.168.1.0/24", false},
		{"::ffff:192.168.1.5", "192.168.1.0/24", false},
	}

	for _, tc := range cases {
		if got := CIDRMatch(tc.ip, tc.cidr); got != tc.want {
			t.Errorf("CIDRMatch(%q, %q) = %v, want %v", tc.ip, tc.cidr, got, tc.want)
		}
	}
}

func TestIPToInt(t *testing.T) {
	cases := []struct {
		ip   string
		want uint32
		ok   bool
	}{
		{"0.0.0.0", 0, true},
		{"255.255.255.255", 0xFFFFFFFF, true},
		{"192.168.1.1", 0xC0A80101, true},
		{"10.0.0.1", 0x0A000001, true},
		{"1.2.3", 0, false},
		{"1.2.3.4.5", 0, false},
		{"a.b.c.d", 0, false},
		{"2001:db8::1", 0, false},
	}
	for _, tc := range cases {
		got, ok := ipToInt(tc.ip)
		if ok != tc.ok || got != tc.want {
			t.Errorf("ipToInt(%q) = (%#x, %v), want (%#x, %v)", tc.ip, got, ok, tc.want, tc.ok)
		}
	}
}
