package server

import (
	"context"
	"encoding/json"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/vrcampos/linkgate/internal/botranges"
	"github.com/vrcampos/linkgate/internal/config"
	"github.com/vrcampos/linkgate/internal/model"
	"github.com/vrcampos/linkgate/internal/policy"
	"github.com/vrcampos/linkgate/internal/token"
)

// SignalService collects the full signal set for an IP and reports the
// health of its backing stores. Satisfied by signals.Service; stubbed in
// tests.
type SignalService interface {
	Collect(ctx context.Context, ip string) model.SignalSet
	CacheSize() int
	StoreSize() int
	StoreEnabled() bool
	LocalDBLoaded() bool
	AbuseKeyConfigured() bool
}

// Server is the HTTP boundary: token issuance, redemption, and the
// authenticated debug/stats mirror.
type Server struct {
	cfg     *config.Config
	signals SignalService
	tokens  *token.Service
	gate    *policy.Gate
	ranges  *botranges.Registry
	router  chi.Router
}

func New(cfg *config.Config, sig SignalService, tokens *token.Service, gate *policy.Gate, ranges *botranges.Registry) *Server {
	s := &Server{
		cfg:     cfg,
		signals: sig,
		tokens:  tokens,
		gate:    gate,
		ranges:  ranges,
	}
	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "Authorization"},
		MaxAge:         300,
	}))

	r.Get("/api/health", s.handleHealth)
	r.Get("/api/token", s.handleIssue)
	r.Get("/api/go", s.handleRedeem)

	r.Group(func(pr chi.Router) {
		pr.Use(s.requireAuth)
		pr.Get("/api/debug/{ip}", s.handleDebug)
		pr.Get("/api/stats", s.handleStats)
	})

	s.router = r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("[http] %s %s %s", r.Method, r.URL.Path, time.Since(start))
	})
}

// requireAuth gates introspection endpoints behind a Bearer token. With no
// key configured the endpoints stay open, which is only acceptable off
// production.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.AuthKey != "" {
			auth := r.Header.Get("Authorization")
			tok := strings.TrimPrefix(auth, "Bearer ")
			if tok != s.cfg.AuthKey {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, &model.ErrorResponse{Error: msg})
}

func writeBlock(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusForbidden, &model.BlockResponse{Success: false, Message: msg})
}

// extractClient derives the per-request context: client IP from the
// forwarded chain (first entry) with the IPv4-mapped-IPv6 prefix stripped,
// plus the headers the scorer and gate need.
func extractClient(r *http.Request, countryHeader string) model.ClientInfo {
	var ip string
	chain := 0
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		chain = len(parts)
		ip = strings.TrimSpace(parts[0])
	}
	if ip == "" {
		ip = r.Header.Get("X-Real-IP")
	}
	if ip == "" {
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			ip = host
		} else {
			ip = r.RemoteAddr
		}
	}
	ip = strings.TrimPrefix(ip, "::ffff:")

	return model.ClientInfo{
		IP:             ip,
		UserAgent:      r.Header.Get("User-Agent"),
		AcceptLanguage: r.Header.Get("Accept-Language"),
		Via:            r.Header.Get("Via"),
		ForwardedChain: chain,
		CountryHeader:  r.Header.Get(countryHeader),
		RawQuery:       r.URL.RawQuery,
	}
}

func isPrivateIP(ipStr string) bool {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return false
	}
	for _, network := range []string{
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		"127.0.0.0/8",
		"::1/128",
		"fc00::/7",
		"fe80::/10",
	} {
		_, cidr, _ := net.ParseCIDR(network)
		if cidr.Contains(ip) {
			return true
		}
	}
	return false
}
