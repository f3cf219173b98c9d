package config

import (
	"os"
	"strings"
)

type Config struct {
	// Server
	Port string
	Host string

	// Auth for debug/stats endpoints. Empty = no auth.
	AuthKey string

	// Token encryption secret (high-entropy config value).
	EncryptSecret string

	// Destination the redirect tokens point at.
	DestinationURL string

	// Provider API keys
	AbuseIPDBKey string

	// Locale gate
	RequiredCountry string
	AllowedLangs    []string
	CountryHeader   string

	// Apply the hard User-Agent veto before scoring.
	UAVeto bool

	// Local database
	MMDBPath string

	// Persistent signal cache: "" (disabled), "sqlite" or "mysql".
	StoreType string
	StoreDSN  string
}

func Load() *Config {
	cfg := &Config{
		Port:    envOrDefault("PORT", "8080"),
		Host:    envOrDefault("HOST", "0.0.0.0"),
		AuthKey: os.Getenv("AUTH_KEY"),

		EncryptSecret:  envOrDefault("ENCRYPT_SECRET", "fallback-secret"),
		DestinationURL: os.Getenv("DESTINATION_URL"),

		AbuseIPDBKey: firstEnv("ABUSEIPDB_KEY", "ABUSE_IPDB_KEY"),

		RequiredCountry: envOrDefault("REQUIRED_COUNTRY", "BR"),
		CountryHeader:   envOrDefault("COUNTRY_HEADER", "CF-IPCountry"),
		UAVeto:          envOrDefault("UA_VETO", "true") == "true",

		MMDBPath: envOrDefault("MMDB_PATH", "data/GeoLite2-ASN.mmdb"),

		StoreType: os.Getenv("PERSISTENT_CACHE"),
		StoreDSN:  os.Getenv("PERSISTENT_CACHE_DSN"),
	}

	langs := envOrDefault("ALLOWED_LANGS", "pt,pt-br")
	for _, l := range strings.Split(langs, ",") {
		if l = strings.TrimSpace(l); l != "" {
			cfg.AllowedLangs = append(cfg.AllowedLangs, l)
		}
	}

	return cfg
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}
