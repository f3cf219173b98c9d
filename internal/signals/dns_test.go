package signals

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestReverseDNS(t *testing.T) {
	calls := 0
	orig := reverseLookupFunc
	reverseLookupFunc = func(ctx context.Context, ip string) ([]string, error) {
		calls++
		return []string{"ec2-1-2-3-4.compute.amazonaws.com."}, nil
	}
	defer func() { reverseLookupFunc = orig }()

	s := newTestSignals("")
	res := s.reverseDNS(context.Background(), "1.2.3.4")
	if !res.OK {
		t.Fatal("lookup should succeed")
	}
	if res.Host != "ec2-1-2-3-4.compute.amazonaws.com" {
		t.Errorf("host = %q, want trailing dot trimmed", res.Host)
	}

	// Second read comes from the cache.
	s.reverseDNS(context.Background(), "1.2.3.4")
	if calls != 1 {
		t.Errorf("resolver calls = %d, want 1", calls)
	}
}

func TestReverseDNSMissingCached(t *testing.T) {
	calls := 0
	orig := reverseLookupFunc
	reverseLookupFunc = func(ctx context.Context, ip string) ([]string, error) {
		calls++
		return nil, errors.New("NXDOMAIN")
	}
	defer func() { reverseLookupFunc = orig }()

	s := newTestSignals("")
	res := s.reverseDNS(context.Background(), "9.9.9.9")
	if res.OK || res.Host != "" {
		t.Errorf("missing PTR should read as absent, got %+v", res)
	}
	s.reverseDNS(context.Background(), "9.9.9.9")
	if calls != 1 {
		t.Errorf("resolver calls = %d, want 1 (miss is cached too)", calls)
	}
}

func TestTorDNS(t *testing.T) {
	var queried string
	orig := hostLookupFunc
	hostLookupFunc = func(ctx context.Context, host string) ([]string, error) {
		queried = host
		return []string{"127.0.0.2"}, nil
	}
	defer func() { hostLookupFunc = orig }()

	s := newTestSignals("")
	if !s.torDNS(context.Background(), "185.220.101.1") {
		t.Fatal("127.0.0.2 answer should mark a Tor exit")
	}
	if !strings.HasPrefix(queried, "1.101.220.185.") {
		t.Errorf("queried %q, want reversed octets", queried)
	}
}

func TestTorDNSNegativeAnswers(t *testing.T) {
	orig := hostLookupFunc
	defer func() { hostLookupFunc = orig }()

	// NXDOMAIN is the normal not-an-exit answer.
	hostLookupFunc = func(ctx context.Context, host string) ([]string, error) {
		return nil, errors.New("NXDOMAIN")
	}
	s := newTestSignals("")
	if s.torDNS(context.Background(), "1.2.3.4") {
		t.Error("NXDOMAIN must not mark an exit")
	}

	// A different A record is not a hit either.
	hostLookupFunc = func(ctx context.Context, host string) ([]string, error) {
		return []string{"127.0.0.1"}, nil
	}
	if s.torDNS(context.Background(), "5.6.7.8") {
		t.Error("non-127.0.0.2 answer must not mark an exit")
	}
}

func TestTorDNSIPv4Only(t *testing.T) {
	called := false
	orig := hostLookupFunc
	hostLookupFunc = func(ctx context.Context, host string) ([]string, error) {
		called = true
		return []string{"127.0.0.2"}, nil
	}
	defer func() { hostLookupFunc = orig }()

	s := newTestSignals("")
	if s.torDNS(context.Background(), "2001:db8::1") {
		t.Error("IPv6 input must fail the check")
	}
	if called {
		t.Error("IPv6 input must not query the DNSEL at all")
	}
}
