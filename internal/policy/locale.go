package policy

import (
	"sort"
	"strconv"
	"strings"
)

// LangTag is one parsed Accept-Language entry.
type LangTag struct {
	Tag string
	Q   float64
}

// ParseAcceptLanguage splits an Accept-Language header into lowercase
// (tag, q) pairs sorted by quality descending. Malformed q-values default
// to 1.
func ParseAcceptLanguage(header string) []LangTag {
	var tags []LangTag
	for _, part := range strings.Split(header, ",") {
		fields := strings.Split(strings.TrimSpace(part), ";")
		tag := strings.ToLower(strings.TrimSpace(fields[0]))
		if tag == "" {
			continue
		}
		q := 1.0
		for _, f := range fields[1:] {
			f = strings.TrimSpace(f)
			if v, ok := strings.CutPrefix(f, "q="); ok {
				if parsed, err := strconv.ParseFloat(v, 64); err == nil {
					q = parsed
				}
			}
		}
		tags = append(tags, LangTag{Tag: tag, Q: q})
	}
	sort.SliceStable(tags, func(i, j int) bool { return tags[i].Q > tags[j].Q })
	return tags
}

// Gate is the hard country/language allow filter. It runs after risk
// scoring but is independent of the score.
type Gate struct {
	country string
	langs   map[string]struct{}
}

func NewGate(requiredCountry string, allowedLangs []string) *Gate {
	langs := make(map[string]struct{}, len(allowedLangs))
	for _, l := range allowedLangs {
		l = strings.ToLower(strings.TrimSpace(l))
		if l != "" {
			langs[l] = struct{}{}
		}
	}
	return &Gate{country: strings.ToUpper(requiredCountry), langs: langs}
}

// DeriveCountry picks the visitor country by priority: edge-injected
// header, then geo provider #2, then geo provider #1.
func DeriveCountry(edgeHeader, country2, country1 string) string {
	if c := strings.ToUpper(strings.TrimSpace(edgeHeader)); c != "" {
		return c
	}
	if c := strings.ToUpper(strings.TrimSpace(country2)); c != "" {
		return c
	}
	return strings.ToUpper(strings.TrimSpace(country1))
}

// CountryAllowed reports whether the derived country matches the single
// configured country.
func (g *Gate) CountryAllowed(country string) bool {
	return strings.ToUpper(country) == g.country
}

// LanguageAllowed reports whether any parsed Accept-Language tag is in the
// allow-set. The q-value orders the tags but does not affect membership.
func (g *Gate) LanguageAllowed(acceptLanguage string) bool {
	for _, t := range ParseAcceptLanguage(acceptLanguage) {
		if _, ok := g.langs[t.Tag]; ok {
			return true
		}
	}
	return false
}
