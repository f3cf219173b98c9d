package signals

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/vrcampos/linkgate/internal/cache"
	"github.com/vrcampos/linkgate/internal/localdb"
	"github.com/vrcampos/linkgate/internal/model"
	"github.com/vrcampos/linkgate/internal/score"
)

// Provider endpoints. Package vars so tests can point them at local servers.
var (
	ipinfoURLFormat    = "https://ipinfo.io/%s/json"
	ipapiURLFormat     = "http://ip-api.com/json/%s?fields=status,countryCode,org,proxy,hosting"
	abuseCheckURL      = "https://api.abuseipdb.com/api/v2/check"
	forumSpamURLFormat = "https://api.stopforumspam.org/api?ip=%s&json"
)

const failedASNRetain = 30 * time.Minute

// asnLookup resolves the hosting-ASN signal through the ladder:
// memory cache → local MMDB + known-ASN table → persistent store → API.
func (s *Service) asnLookup(ctx context.Context, ip string) model.ASNResult {
	if v, ok := s.cache.Get(cache.TypeASN, ip); ok {
		return v.(model.ASNResult)
	}

	start := time.Now()
	var localOrg string
	if s.local != nil {
		if asn, org, err := s.local.Lookup(ip); err == nil {
			localOrg = org
			if name, hosting := localdb.IsHostingASN(asn); hosting {
				res := model.ASNResult{OK: true, Org: name, Hosting: true, Source: "local", Ms: time.Since(start).Milliseconds()}
				s.cache.Set(cache.TypeASN, ip, res)
				return res
			}
		}
	}

	var res model.ASNResult
	if s.fromStore(cache.TypeASN, ip, &res) {
		s.cache.Set(cache.TypeASN, ip, res)
		return res
	}

	var resp struct {
		Org string `json:"org"`
	}
	err := fetchJSON(ctx, 3*time.Second, fmt.Sprintf(ipinfoURLFormat, url.PathEscape(ip)), nil, &resp)
	if err != nil {
		// API miss but MMDB may still have given us an org string.
		res = model.ASNResult{Org: localOrg, Hosting: score.HostingOrg(localOrg), Ms: time.Since(start).Milliseconds()}
		if localOrg != "" {
			res.OK = true
			res.Source = "local"
		}
		s.cache.SetFor(cache.TypeASN, ip, res, failedASNRetain)
		return res
	}

	org := strings.ToLower(resp.Org)
	res = model.ASNResult{
		OK:      true,
		Org:     org,
		Hosting: score.HostingOrg(org),
		Source:  "ipinfo",
		Ms:      time.Since(start).Milliseconds(),
	}
	s.cache.Set(cache.TypeASN, ip, res)
	s.persist(cache.TypeASN, ip, res)
	return res
}

// geoLookup cross-checks two independent geo providers and collects the
// proxy/hosting flags. Each provider fails independently.
func (s *Service) geoLookup(ctx context.Context, ip string) model.GeoResult {
	if v, ok := s.cache.Get(cache.TypeGeo, ip); ok {
		return v.(model.GeoResult)
	}

	start := time.Now()
	var res model.GeoResult

	if s.fromStore(cache.TypeGeo, ip, &res) {
		s.cache.Set(cache.TypeGeo, ip, res)
		return res
	}

	var info struct {
		Country string `json:"country"`
		Org     string `json:"org"`
	}
	err1 := fetchJSON(ctx, 3*time.Second, fmt.Sprintf(ipinfoURLFormat, url.PathEscape(ip)), nil, &info)
	if err1 == nil {
		res.Country1 = strings.ToUpper(info.Country)
		res.Org = info.Org
	}

	var ipapi struct {
		Status      string `json:"status"`
		CountryCode string `json:"countryCode"`
		Proxy       bool   `json:"proxy"`
		Hosting     bool   `json:"hosting"`
	}
	err2 := fetchJSON(ctx, 3*time.Second, fmt.Sprintf(ipapiURLFormat, url.PathEscape(ip)), nil, &ipapi)
	if err2 == nil && ipapi.Status == "success" {
		res.Country2 = strings.ToUpper(ipapi.CountryCode)
		res.Proxy = ipapi.Proxy
		res.Hosting = ipapi.Hosting
	}

	res.OK = err1 == nil || err2 == nil
	res.Ms = time.Since(start).Milliseconds()
	s.cache.Set(cache.TypeGeo, ip, res)
	if res.OK {
		s.persist(cache.TypeGeo, ip, res)
	}
	return res
}

// abuseLookup checks the abuse-confidence score. Skipped entirely when no
// API key is configured; failures are not cached so the next request
// retries.
func (s *Service) abuseLookup(ctx context.Context, ip string) model.AbuseResult {
	if s.abuseKey == "" {
		return model.AbuseResult{}
	}
	if v, ok := s.cache.Get(cache.TypeAbuse, ip); ok {
		return v.(model.AbuseResult)
	}

	start := time.Now()
	var res model.AbuseResult
	if s.fromStore(cache.TypeAbuse, ip, &res) {
		s.cache.Set(cache.TypeAbuse, ip, res)
		return res
	}

	var resp struct {
		Data struct {
			AbuseConfidenceScore int    `json:"abuseConfidenceScore"`
			UsageType            string `json:"usageType"`
		} `json:"data"`
	}
	u := abuseCheckURL + "?ipAddress=" + url.QueryEscape(ip) + "&maxAgeInDays=90"
	headers := map[string]string{"Accept": "application/json", "Key": s.abuseKey}
	if err := fetchJSON(ctx, 4*time.Second, u, headers, &resp); err != nil {
		return model.AbuseResult{Ms: time.Since(start).Milliseconds()}
	}

	res = model.AbuseResult{
		OK:        true,
		HasScore:  true,
		Score:     resp.Data.AbuseConfidenceScore,
		UsageType: resp.Data.UsageType,
		Ms:        time.Since(start).Milliseconds(),
	}
	s.cache.Set(cache.TypeAbuse, ip, res)
	s.persist(cache.TypeAbuse, ip, res)
	return res
}

// forumSpamLookup checks the forum-spam blocklist. The API reports
// "appears" either at the top level or nested under "ip".
func (s *Service) forumSpamLookup(ctx context.Context, ip string) model.ForumSpamResult {
	if v, ok := s.cache.Get(cache.TypeForumSpam, ip); ok {
		return v.(model.ForumSpamResult)
	}

	start := time.Now()
	var res model.ForumSpamResult
	if s.fromStore(cache.TypeForumSpam, ip, &res) {
		s.cache.Set(cache.TypeForumSpam, ip, res)
		return res
	}

	var resp struct {
		Appears int `json:"appears"`
		IP      struct {
			Appears int `json:"appears"`
		} `json:"ip"`
	}
	if err := fetchJSON(ctx, 4*time.Second, fmt.Sprintf(forumSpamURLFormat, url.QueryEscape(ip)), nil, &resp); err != nil {
		return model.ForumSpamResult{Ms: time.Since(start).Milliseconds()}
	}

	res = model.ForumSpamResult{
		OK:      true,
		Appears: resp.Appears == 1 || resp.IP.Appears == 1,
		Ms:      time.Since(start).Milliseconds(),
	}
	s.cache.Set(cache.TypeForumSpam, ip, res)
	s.persist(cache.TypeForumSpam, ip, res)
	return res
}

// persist writes a signal result through to the optional store.
func (s *Service) persist(signalType, ip string, v interface{}) {
	if s.store == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	s.store.Set(cache.Key(signalType, ip), data)
}

// fromStore reads a signal result from the optional store, bounded by the
// signal type's own freshness window.
func (s *Service) fromStore(signalType, ip string, target interface{}) bool {
	if s.store == nil {
		return false
	}
	data, ok := s.store.Get(cache.Key(signalType, ip), cache.TTL(signalType))
	if !ok {
		return false
	}
	return json.Unmarshal(data, target) == nil
}
