package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/vrcampos/linkgate/internal/botranges"
	"github.com/vrcampos/linkgate/internal/config"
	"github.com/vrcampos/linkgate/internal/model"
	"github.com/vrcampos/linkgate/internal/policy"
	"github.com/vrcampos/linkgate/internal/token"
)

// stubSignals returns a canned signal set without touching any provider.
type stubSignals struct {
	set model.SignalSet
}

func (s *stubSignals) Collect(ctx context.Context, ip string) model.SignalSet {
	out := s.set
	out.IP = ip
	return out
}
func (s *stubSignals) CacheSize() int           { return 3 }
func (s *stubSignals) StoreSize() int           { return 0 }
func (s *stubSignals) StoreEnabled() bool       { return false }
func (s *stubSignals) LocalDBLoaded() bool      { return false }
func (s *stubSignals) AbuseKeyConfigured() bool { return false }

// residentialSet is a signal set that scores zero: valid non-datacenter
// PTR, agreeing geo providers, nothing flagged.
func residentialSet() model.SignalSet {
	return model.SignalSet{
		RDNS: model.RDNSResult{OK: true, Host: "177-45-10-8.user.veloxzone.com.br"},
		ASN:  model.ASNResult{OK: true, Org: "AS28573 Claro NXT Telecomunicacoes"},
		Geo:  model.GeoResult{OK: true, Country1: "BR", Country2: "BR", Org: "Claro NXT"},
	}
}

func newTestServer(sig *stubSignals) *Server {
	cfg := &config.Config{
		AuthKey:         "test-auth-key",
		EncryptSecret:   "test-secret",
		DestinationURL:  "https://example.com/app",
		RequiredCountry: "BR",
		AllowedLangs:    []string{"pt", "pt-br"},
		CountryHeader:   "CF-IPCountry",
		UAVeto:          true,
	}
	tokens, err := token.NewService(cfg.EncryptSecret)
	if err != nil {
		panic(err)
	}
	gate := policy.NewGate(cfg.RequiredCountry, cfg.AllowedLangs)
	return New(cfg, sig, tokens, gate, botranges.NewRegistry())
}

func issueRequest() *http.Request {
	r := httptest.NewRequest("GET", "/api/token?ref=promo", nil)
	r.RemoteAddr = "177.45.10.8:50000"
	r.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64)")
	r.Header.Set("Accept-Language", "pt-BR,pt;q=0.9")
	r.Header.Set("CF-IPCountry", "BR")
	return r
}

func TestIssueAndRedeem(t *testing.T) {
	srv := newTestServer(&stubSignals{set: residentialSet()})

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, issueRequest())
	if w.Code != http.StatusOK {
		t.Fatalf("issue status = %d, body %s", w.Code, w.Body.String())
	}
	var resp model.TokenResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Token == "" {
		t.Fatal("empty token")
	}

	w = httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest("GET", "/api/go?token="+resp.Token, nil))
	if w.Code != http.StatusFound {
		t.Fatalf("redeem status = %d, want 302", w.Code)
	}
	loc := w.Header().Get("Location")
	if !strings.HasPrefix(loc, "https://example.com/app") {
		t.Errorf("redirect to %q", loc)
	}
	if !strings.Contains(loc, "ref=promo") {
		t.Errorf("query not forwarded: %q", loc)
	}
}

func TestRedeemReplayRejected(t *testing.T) {
	srv := newTestServer(&stubSignals{set: residentialSet()})

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, issueRequest())
	var resp model.TokenResponse
	json.NewDecoder(w.Body).Decode(&resp)

	first := httptest.NewRecorder()
	srv.ServeHTTP(first, httptest.NewRequest("GET", "/api/go?token="+resp.Token, nil))
	if first.Code != http.StatusFound {
		t.Fatalf("first redeem status = %d", first.Code)
	}

	second := httptest.NewRecorder()
	srv.ServeHTTP(second, httptest.NewRequest("GET", "/api/go?token="+resp.Token, nil))
	if second.Code != http.StatusForbidden {
		t.Errorf("replay status = %d, want 403", second.Code)
	}
}

func TestRedeemMissingToken(t *testing.T) {
	srv := newTestServer(&stubSignals{set: residentialSet()})
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest("GET", "/api/go", nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestRedeemGarbageToken(t *testing.T) {
	srv := newTestServer(&stubSignals{set: residentialSet()})
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest("GET", "/api/go?token=not-a-token", nil))
	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
}

func TestIssueUserAgentVeto(t *testing.T) {
	srv := newTestServer(&stubSignals{set: residentialSet()})
	r := issueRequest()
	r.Header.Set("User-Agent", "python-requests/2.31")
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, r)
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
	var blk model.BlockResponse
	json.NewDecoder(w.Body).Decode(&blk)
	if blk.Success || blk.Message == "" {
		t.Errorf("unexpected block body %+v", blk)
	}
}

func TestIssueCountryBlocked(t *testing.T) {
	srv := newTestServer(&stubSignals{set: residentialSet()})
	r := issueRequest()
	r.Header.Set("CF-IPCountry", "US")
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, r)
	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
}

func TestIssueLanguageBlocked(t *testing.T) {
	srv := newTestServer(&stubSignals{set: residentialSet()})
	r := issueRequest()
	r.Header.Set("Accept-Language", "en-US,en;q=0.9")
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, r)
	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
}

func TestIssueHighRiskBlocked(t *testing.T) {
	set := residentialSet()
	set.Tor = model.TorResult{DNS: true}
	srv := newTestServer(&stubSignals{set: set})
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, issueRequest())
	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
}

func TestIssueUnclearPasses(t *testing.T) {
	// A single mid-weight signal lands in the gray zone, which still
	// issues a token.
	set := residentialSet()
	set.Geo.Country1 = "US"
	set.ASN.Hosting = false
	set.Ranges.CIDRHit = true // 30 + 15 mismatch = 45, unclear
	srv := newTestServer(&stubSignals{set: set})
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, issueRequest())
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 for gray-zone traffic", w.Code)
	}
}

func TestDebugRequiresAuth(t *testing.T) {
	srv := newTestServer(&stubSignals{set: residentialSet()})

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest("GET", "/api/debug/8.8.8.8", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status = %d, want 401", w.Code)
	}

	r := httptest.NewRequest("GET", "/api/debug/8.8.8.8", nil)
	r.Header.Set("Authorization", "Bearer test-auth-key")
	w = httptest.NewRecorder()
	srv.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("authenticated status = %d, body %s", w.Code, w.Body.String())
	}
	var out struct {
		Assessment model.Assessment `json:"assessment"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Assessment.IP != "8.8.8.8" {
		t.Errorf("assessment for %q", out.Assessment.IP)
	}
}

func TestDebugInvalidIP(t *testing.T) {
	srv := newTestServer(&stubSignals{set: residentialSet()})
	r := httptest.NewRequest("GET", "/api/debug/not-an-ip", nil)
	r.Header.Set("Authorization", "Bearer test-auth-key")
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, r)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestDebugPrivateIPShortCircuit(t *testing.T) {
	srv := newTestServer(&stubSignals{set: residentialSet()})
	r := httptest.NewRequest("GET", "/api/debug/192.168.1.10", nil)
	r.Header.Set("Authorization", "Bearer test-auth-key")
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "private") {
		t.Errorf("expected private-address note, got %s", w.Body.String())
	}
}

func TestStats(t *testing.T) {
	srv := newTestServer(&stubSignals{set: residentialSet()})
	r := httptest.NewRequest("GET", "/api/stats", nil)
	r.Header.Set("Authorization", "Bearer test-auth-key")
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var stats model.StatsResponse
	if err := json.NewDecoder(w.Body).Decode(&stats); err != nil {
		t.Fatal(err)
	}
	if stats.CacheSize != 3 {
		t.Errorf("cache size = %d, want 3", stats.CacheSize)
	}
}

func TestHealth(t *testing.T) {
	srv := newTestServer(&stubSignals{set: residentialSet()})
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest("GET", "/api/health", nil))
	if w.Code != http.StatusOK {
		t.Errorf("status = %d", w.Code)
	}
}

func TestExtractClient(t *testing.T) {
	tests := []struct {
		name    string
		xff     string
		realIP  string
		remote  string
		wantIP  string
		chain   int
	}{
		{"forwarded chain", "203.0.113.7, 10.0.0.1, 10.0.0.2", "", "10.0.0.3:1234", "203.0.113.7", 3},
		{"real ip fallback", "", "198.51.100.4", "10.0.0.3:1234", "198.51.100.4", 0},
		{"remote addr fallback", "", "", "192.0.2.9:443", "192.0.2.9", 0},
		{"mapped ipv6 stripped", "::ffff:203.0.113.7", "", "10.0.0.3:1234", "203.0.113.7", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/api/token", nil)
			r.RemoteAddr = tt.remote
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.realIP != "" {
				r.Header.Set("X-Real-IP", tt.realIP)
			}
			c := extractClient(r, "CF-IPCountry")
			if c.IP != tt.wantIP {
				t.Errorf("ip = %q, want %q", c.IP, tt.wantIP)
			}
			if c.ForwardedChain != tt.chain {
				t.Errorf("chain = %d, want %d", c.ForwardedChain, tt.chain)
			}
		})
	}
}

func TestIsPrivateIP(t *testing.T) {
	for ip, want := range map[string]bool{
		"10.1.2.3":    true,
		"172.16.0.1":  true,
		"192.168.0.1": true,
		"127.0.0.1":   true,
		"::1":         true,
		"8.8.8.8":     false,
		"not-an-ip":   false,
	} {
		if got := isPrivateIP(ip); got != want {
			t.Errorf("isPrivateIP(%q) = %v, want %v", ip, got, want)
		}
	}
}
