package model

// Classification is the three-way verdict for an assessed IP.
type Classification string

const (
	LikelyResidential Classification = "likely_residential"
	Unclear           Classification = "unclear"
	LikelyProxyVPN    Classification = "likely_proxy_vpn"
)

// ClientInfo is the per-request context extracted at the HTTP boundary.
type ClientInfo struct {
	IP             string `json:"ip"`
	UserAgent      string `json:"user_agent"`
	AcceptLanguage string `json:"accept_language"`
	Via            string `json:"via,omitempty"`
	ForwardedChain int    `json:"forwarded_chain"`
	CountryHeader  string `json:"country_header,omitempty"`
	RawQuery       string `json:"-"`
}

// RDNSResult is the reverse-DNS (PTR) lookup outcome.
type RDNSResult struct {
	OK   bool   `json:"ok"`
	Host string `json:"host,omitempty"`
	Ms   int64  `json:"ms"`
}

// ASNResult is the ASN / hosting-organization lookup outcome.
type ASNResult struct {
	OK      bool   `json:"ok"`
	Org     string `json:"org,omitempty"`
	Hosting bool   `json:"hosting"`
	Source  string `json:"source,omitempty"`
	Ms      int64  `json:"ms"`
}

// GeoResult holds the cross-check between two independent geo providers.
type GeoResult struct {
	OK       bool   `json:"ok"`
	Country1 string `json:"country1,omitempty"`
	Country2 string `json:"country2,omitempty"`
	Org      string `json:"org,omitempty"`
	Hosting  bool   `json:"hosting"`
	Proxy    bool   `json:"proxy"`
	Ms       int64  `json:"ms"`
}

// AbuseResult is the abuse-confidence lookup outcome. HasScore is false
// when the provider was skipped (no key) or failed.
type AbuseResult struct {
	OK        bool   `json:"ok"`
	HasScore  bool   `json:"has_score"`
	Score     int    `json:"score"`
	UsageType string `json:"usage_type,omitempty"`
	Ms        int64  `json:"ms"`
}

// ForumSpamResult is the forum-spam blocklist outcome.
type ForumSpamResult struct {
	OK      bool  `json:"ok"`
	Appears bool  `json:"appears"`
	Ms      int64 `json:"ms"`
}

// TorResult combines the DNSEL check and the bulk exit-list hit.
type TorResult struct {
	DNS  bool  `json:"dns"`
	Bulk bool  `json:"bulk"`
	Ms   int64 `json:"ms"`
}

// RangeHits records bulk CIDR/IP registry matches for an IP.
type RangeHits struct {
	CIDRHit bool `json:"cidr_hit"`
	IPHit   bool `json:"ip_hit"`
}

// SignalSet is everything the providers produced for one IP.
type SignalSet struct {
	IP        string          `json:"ip"`
	RDNS      RDNSResult      `json:"rdns"`
	ASN       ASNResult       `json:"asn"`
	Geo       GeoResult       `json:"geo"`
	Abuse     AbuseResult     `json:"abuse"`
	ForumSpam ForumSpamResult `json:"forum_spam"`
	Tor       TorResult       `json:"tor"`
	Ranges    RangeHits       `json:"ranges"`
}

// Contribution is one sub-check and the points it added.
type Contribution struct {
	Signal string `json:"signal"`
	Points int    `json:"points"`
	Detail string `json:"detail,omitempty"`
}

// Assessment is the per-request scoring result. Derived, never persisted.
type Assessment struct {
	IP             string         `json:"ip"`
	Score          int            `json:"score"`
	Classification Classification `json:"classification"`
	Contributions  []Contribution `json:"contributions"`
	Signals        SignalSet      `json:"signals"`
}

// TokenResponse is returned on successful issuance.
type TokenResponse struct {
	Token string `json:"token"`
}

// BlockResponse is returned when a visitor is rejected.
type BlockResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ErrorResponse is returned on internal errors.
type ErrorResponse struct {
	Error string `json:"error"`
}

// RegistryStatus describes the bot-range registry for stats/debug.
type RegistryStatus struct {
	CIDRs         int               `json:"cidrs"`
	IPs           int               `json:"ips"`
	FetchErrors   map[string]string `json:"fetch_errors,omitempty"`
	LastRefreshed int64             `json:"last_refreshed_unix"`
}

// StatsResponse is returned by the /api/stats endpoint.
type StatsResponse struct {
	CacheSize    int            `json:"cache_size"`
	Registry     RegistryStatus `json:"registry"`
	StoreEnabled bool           `json:"store_enabled"`
	StoreSize    int            `json:"store_size,omitempty"`
	LocalDB      bool           `json:"local_db_loaded"`
	AbuseKey     bool           `json:"abuse_key_configured"`
}
