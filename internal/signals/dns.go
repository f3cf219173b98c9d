package signals

import (
	"context"
	"net"
	"strings"
	"time"

	"github.com/vrcampos/linkgate/internal/cache"
	"github.com/vrcampos/linkgate/internal/model"
)

// Resolver hooks, swappable in tests.
var (
	reverseLookupFunc = func(ctx context.Context, ip string) ([]string, error) {
		return net.DefaultResolver.LookupAddr(ctx, ip)
	}
	hostLookupFunc = func(ctx context.Context, host string) ([]string, error) {
		return net.DefaultResolver.LookupHost(ctx, host)
	}
)

var torDNSZone = "dnsel.torproject.org"

const dnsTimeout = 4 * time.Second

func isIPv4(ip string) bool {
	parsed := net.ParseIP(ip)
	return parsed != nil && parsed.To4() != nil && strings.Count(ip, ".") == 3
}

// reverseDNS resolves the PTR record for an IP. Both hits and misses are
// cached; a missing PTR is a (small) scoring signal, not a neutral absence.
func (s *Service) reverseDNS(ctx context.Context, ip string) model.RDNSResult {
	if v, ok := s.cache.Get(cache.TypeRDNS, ip); ok {
		return v.(model.RDNSResult)
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, dnsTimeout)
	defer cancel()

	res := model.RDNSResult{}
	hosts, err := reverseLookupFunc(ctx, ip)
	if err == nil && len(hosts) > 0 {
		res.OK = true
		res.Host = strings.TrimSuffix(hosts[0], ".")
	}
	res.Ms = time.Since(start).Milliseconds()
	s.cache.Set(cache.TypeRDNS, ip, res)
	return res
}

// torDNS queries the Tor DNSEL: a 127.0.0.2 answer for the reversed-octet
// name marks a known exit. The zone only answers for IPv4.
func (s *Service) torDNS(ctx context.Context, ip string) bool {
	if !isIPv4(ip) {
		return false
	}
	if v, ok := s.cache.Get(cache.TypeTor, ip); ok {
		return v.(bool)
	}

	ctx, cancel := context.WithTimeout(ctx, dnsTimeout)
	defer cancel()

	octets := strings.Split(ip, ".")
	reversed := octets[3] + "." + octets[2] + "." + octets[1] + "." + octets[0]
	addrs, err := hostLookupFunc(ctx, reversed+"."+torDNSZone)

	hit := false
	if err == nil {
		for _, a := range addrs {
			if a == "127.0.0.2" {
				hit = true
				break
			}
		}
	}
	// NXDOMAIN is the normal not-an-exit answer, cached like a hit.
	s.cache.Set(cache.TypeTor, ip, hit)
	return hit
}
