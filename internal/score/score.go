package score

import (
	"regexp"
	"strings"

	"github.com/vrcampos/linkgate/internal/model"
)

// Signal weights. The table is a contract: tweaking one value shifts the
// block boundary for every IP.
const (
	WeightHostingASN     = 35
	WeightRDNSDatacenter = 20
	WeightRDNSMissing    = 5
	WeightTor            = 80
	WeightHeaderIssue    = 10 // per header issue (Via, long XFF, bot UA)
	WeightGeoMismatch    = 15
	WeightCIDRHit        = 30
	WeightAbuseLow       = 25 // abuse confidence >= 25
	WeightAbuseHigh      = 45 // abuse confidence >= 75
	WeightForumSpam      = 35
	WeightLocHosting     = 30
	WeightLocProxy       = 20
)

// Classification thresholds: score > grayThreshold blocks, everything at or
// below residentialThreshold is treated as residential.
const (
	residentialThreshold = 30
	grayThreshold        = 60
)

var (
	datacenterHostRe = regexp.MustCompile(`(?i)amazonaws|ovh|digitalocean|vultr|linode|hetzner|contabo|azure|googleusercontent|akamaitechnologies|cloudflare|scaleway|leaseweb|servers|colo|datacenter`)
	hostingOrgRe     = regexp.MustCompile(`(?i)google|facebook|meta|amazon|microsoft|digitalocean|linode|vultr|ovh|gigenet|cloudflare|hetzner|contabo|scaleway|leaseweb|akamai|m247|choopa|hostdime|dimenoc|colo|datacenter`)
	hostingUsageRe   = regexp.MustCompile(`(?i)data\s*center|web\s*hosting|hosting|vpn|proxy|transit`)
	botUARe          = regexp.MustCompile(`(?i)googlebot|adsbot|mediapartners|crawler|spider|facebook|bingbot|python|curl|wget|headless|phantomjs|node`)
)

// uaVetoList is the hard User-Agent deny list. Cheap substring match with
// near-zero false positives for this set, so it short-circuits before
// scoring when the veto is enabled.
var uaVetoList = []string{
	"googlebot", "adsbot", "crawler", "mediapartners", "spider",
	"facebook", "bingbot", "python", "curl", "wget",
	"headless", "phantomjs", "node",
}

// UAVeto reports whether the User-Agent matches the hard deny list.
func UAVeto(userAgent string) bool {
	ua := strings.ToLower(userAgent)
	for _, pattern := range uaVetoList {
		if strings.Contains(ua, pattern) {
			return true
		}
	}
	return false
}

// DatacenterHost reports whether a PTR hostname looks like hosting
// infrastructure.
func DatacenterHost(hostname string) bool {
	return hostname != "" && datacenterHostRe.MatchString(hostname)
}

// HostingOrg reports whether an ASN/geo org string matches a known
// cloud/hosting provider.
func HostingOrg(org string) bool {
	return org != "" && hostingOrgRe.MatchString(org)
}

// HostingUsageType reports whether an abuse-provider usage type string is
// hosting-like.
func HostingUsageType(usageType string) bool {
	return usageType != "" && hostingUsageRe.MatchString(usageType)
}

// HeaderSignals are the request-header heuristics, each independently
// additive.
type HeaderSignals struct {
	Via       bool `json:"via"`
	LongChain bool `json:"long_xff"`
	BadUA     bool `json:"bad_ua"`
}

// Headers inspects the request context for proxy/bot header anomalies.
func Headers(client model.ClientInfo) HeaderSignals {
	return HeaderSignals{
		Via:       client.Via != "",
		LongChain: client.ForwardedChain > 2,
		BadUA:     client.UserAgent == "" || botUARe.MatchString(client.UserAgent),
	}
}

// Classify maps a clamped score to the three-way verdict.
func Classify(score int) model.Classification {
	switch {
	case score > grayThreshold:
		return model.LikelyProxyVPN
	case score > residentialThreshold:
		return model.Unclear
	default:
		return model.LikelyResidential
	}
}

// Evaluate computes the weighted risk score for one request. Absent signals
// contribute nothing; only rDNS-missing is scored as a small positive risk.
func Evaluate(sig model.SignalSet, client model.ClientInfo) model.Assessment {
	score := 0
	var contribs []model.Contribution
	add := func(signal string, points int, detail string) {
		score += points
		contribs = append(contribs, model.Contribution{Signal: signal, Points: points, Detail: detail})
	}

	hdr := Headers(client)
	if hdr.Via {
		add("header_via", WeightHeaderIssue, client.Via)
	}
	if hdr.LongChain {
		add("header_long_xff", WeightHeaderIssue, "")
	}
	if hdr.BadUA {
		add("header_bad_ua", WeightHeaderIssue, client.UserAgent)
	}

	if !sig.RDNS.OK || sig.RDNS.Host == "" {
		add("rdns_missing", WeightRDNSMissing, "")
	} else if DatacenterHost(sig.RDNS.Host) {
		add("rdns_datacenter", WeightRDNSDatacenter, sig.RDNS.Host)
	}

	if sig.ASN.Hosting {
		add("hosting_asn", WeightHostingASN, sig.ASN.Org)
	}

	if sig.Tor.DNS || sig.Tor.Bulk {
		add("tor", WeightTor, "")
	}

	if sig.Ranges.CIDRHit {
		add("vpn_cidr_hit", WeightCIDRHit, "")
	}

	if sig.Geo.Country1 != "" && sig.Geo.Country2 != "" && sig.Geo.Country1 != sig.Geo.Country2 {
		add("geo_mismatch", WeightGeoMismatch, sig.Geo.Country1+"/"+sig.Geo.Country2)
	}
	if HostingOrg(sig.Geo.Org) {
		add("geo_org_hint", WeightHostingASN/2, sig.Geo.Org)
	}
	if sig.Geo.Hosting {
		add("loc_hosting", WeightLocHosting, "")
	}
	if sig.Geo.Proxy {
		add("loc_proxy", WeightLocProxy, "")
	}

	if sig.Abuse.HasScore {
		if sig.Abuse.Score >= 75 {
			add("abuse_high", WeightAbuseHigh, "")
		} else if sig.Abuse.Score >= 25 {
			add("abuse_low", WeightAbuseLow, "")
		}
	}
	if HostingUsageType(sig.Abuse.UsageType) {
		add("abuse_usage_type", WeightHostingASN/2, sig.Abuse.UsageType)
	}

	if sig.ForumSpam.Appears {
		add("forum_spam", WeightForumSpam, "")
	}

	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}

	return model.Assessment{
		IP:             sig.IP,
		Score:          score,
		Classification: Classify(score),
		Contributions:  contribs,
		Signals:        sig,
	}
}
