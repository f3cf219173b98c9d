package server

import (
	"log"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vrcampos/linkgate/internal/model"
	"github.com/vrcampos/linkgate/internal/policy"
	"github.com/vrcampos/linkgate/internal/score"
	"github.com/vrcampos/linkgate/internal/token"
)

// Rejection messages are deliberately generic: the response never reveals
// which check failed.
const (
	msgBlocked     = "Request could not be verified. Please try again."
	msgRegion      = "Region not allowed."
	msgLanguage    = "Language not supported."
	msgTokenIssue  = "failed to generate token"
	msgTokenFailed = "Invalid token."
	msgNoToken     = "Missing token."
)

// handleIssue runs the full pipeline: UA veto, concurrent signal
// collection, weighted scoring, locale gate, classification, issuance.
func (s *Server) handleIssue(w http.ResponseWriter, r *http.Request) {
	client := extractClient(r, s.cfg.CountryHeader)

	// Cheap near-zero-false-positive veto before any provider call.
	if s.cfg.UAVeto && score.UAVeto(client.UserAgent) {
		log.Printf("[issue] %s blocked by user-agent veto", client.IP)
		writeBlock(w, msgBlocked)
		return
	}

	sig := s.signals.Collect(r.Context(), client.IP)
	assessment := score.Evaluate(sig, client)

	country := policy.DeriveCountry(client.CountryHeader, sig.Geo.Country2, sig.Geo.Country1)
	if !s.gate.CountryAllowed(country) {
		log.Printf("[issue] %s blocked by country policy: %q", client.IP, country)
		writeBlock(w, msgRegion)
		return
	}
	if !s.gate.LanguageAllowed(client.AcceptLanguage) {
		log.Printf("[issue] %s blocked by language policy: %q", client.IP, client.AcceptLanguage)
		writeBlock(w, msgLanguage)
		return
	}

	// Only a likely proxy/VPN blocks; unclear traffic proceeds. False
	// negatives are preferred over turning humans away.
	if assessment.Classification == model.LikelyProxyVPN {
		log.Printf("[issue] %s blocked, score=%d", client.IP, assessment.Score)
		writeBlock(w, msgBlocked)
		return
	}

	tok, err := s.tokens.Issue(s.cfg.DestinationURL, client.RawQuery)
	if err != nil {
		log.Printf("[issue] token issuance failed for %s: %v", client.IP, err)
		writeError(w, http.StatusInternalServerError, msgTokenIssue)
		return
	}

	log.Printf("[issue] %s passed, score=%d %s", client.IP, assessment.Score, assessment.Classification)
	writeJSON(w, http.StatusOK, &model.TokenResponse{Token: tok})
}

// handleRedeem exchanges a token for a 302 to the embedded destination.
// Replay, tamper and expiry all collapse to one generic 403.
func (s *Server) handleRedeem(w http.ResponseWriter, r *http.Request) {
	tok := r.URL.Query().Get("token")
	if tok == "" {
		http.Error(w, msgNoToken, http.StatusBadRequest)
		return
	}

	dest, status := s.tokens.Redeem(tok)
	if status != token.StatusOK {
		log.Printf("[redeem] rejected token (%s)", status)
		http.Error(w, msgTokenFailed, http.StatusForbidden)
		return
	}

	http.Redirect(w, r, dest, http.StatusFound)
}

// handleDebug mirrors the scoring inputs for one IP: every sub-check, raw
// provider outcomes and registry fetch errors. Auth-gated; it reveals the
// detection methodology.
func (s *Server) handleDebug(w http.ResponseWriter, r *http.Request) {
	ip := chi.URLParam(r, "ip")
	if net.ParseIP(ip) == nil {
		writeError(w, http.StatusBadRequest, "invalid IP address format")
		return
	}
	if isPrivateIP(ip) {
		writeJSON(w, http.StatusOK, map[string]string{"ip": ip, "note": "private/reserved address, no lookups performed"})
		return
	}

	sig := s.signals.Collect(r.Context(), ip)
	assessment := score.Evaluate(sig, model.ClientInfo{IP: ip, UserAgent: "debug"})

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"assessment": assessment,
		"registry":   s.ranges.Status(),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, &model.StatsResponse{
		CacheSize:    s.signals.CacheSize(),
		Registry:     s.ranges.Status(),
		StoreEnabled: s.signals.StoreEnabled(),
		StoreSize:    s.signals.StoreSize(),
		LocalDB:      s.signals.LocalDBLoaded(),
		AbuseKey:     s.signals.AbuseKeyConfigured(),
	})
}
