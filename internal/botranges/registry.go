package botranges

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/vrcampos/linkgate/internal/model"
)

// Bulk list sources. Package vars so tests can point them at local servers.
var (
	crawlerRangesURL = "https://developers.google.com/search/apis/ipranges/googlebot.json"
	torExitsURL      = "https://check.torproject.org/exit-addresses"
	spamDropURL      = "https://www.spamhaus.org/drop/drop.lasso"
)

const refreshWindow = 6 * time.Hour

var nowFunc = time.Now

// Registry holds bulk CIDR blocks and exact IPs sourced from public bot,
// Tor and spam lists. It is process-wide, refreshed lazily at most once per
// window, and serves stale data indefinitely when a refresh fails.
type Registry struct {
	client *http.Client

	mu          sync.RWMutex
	cidrs       map[string]struct{}
	ips         map[string]struct{}
	fetchErrors map[string]string
	lastRefresh time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		client:      &http.Client{Timeout: 5 * time.Second},
		cidrs:       make(map[string]struct{}),
		ips:         make(map[string]struct{}),
		fetchErrors: make(map[string]string),
	}
}

// Contains refreshes the registry if the window elapsed, then reports
// whether the IP matches any bulk CIDR (IPv4 only) or exact IP entry.
func (r *Registry) Contains(ip string) model.RangeHits {
	r.ensureFresh()

	r.mu.RLock()
	defer r.mu.RUnlock()

	hits := model.RangeHits{}
	if _, ok := r.ips[ip]; ok {
		hits.IPHit = true
	}
	if _, ipv4 := ipToInt(ip); ipv4 {
		for cidr := range r.cidrs {
			if CIDRMatch(ip, cidr) {
				hits.CIDRHit = true
				break
			}
		}
	}
	return hits
}

// TorExit reports an exact hit on the bulk Tor exit-address set without
// triggering a refresh.
func (r *Registry) TorExit(ip string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.ips[ip]
	return ok
}

// Status returns a snapshot for the stats and debug endpoints.
func (r *Registry) Status() model.RegistryStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	errs := make(map[string]string, len(r.fetchErrors))
	for k, v := range r.fetchErrors {
		errs[k] = v
	}
	var last int64
	if !r.lastRefresh.IsZero() {
		last = r.lastRefresh.Unix()
	}
	return model.RegistryStatus{
		CIDRs:         len(r.cidrs),
		IPs:           len(r.ips),
		FetchErrors:   errs,
		LastRefreshed: last,
	}
}

// ensureFresh triggers a refresh when the window elapsed. Concurrent
// requests racing past the check may each refresh; that costs a handful of
// redundant fetches and needs no single-flight guard.
func (r *Registry) ensureFresh() {
	r.mu.RLock()
	fresh := !r.lastRefresh.IsZero() && nowFunc().Sub(r.lastRefresh) < refreshWindow
	r.mu.RUnlock()
	if fresh {
		return
	}
	r.Refresh()
}

type feedResult struct {
	cidrs []string
	ips   []string
	err   error
}

// Refresh fetches the three bulk lists concurrently and rebuilds the
// registry from whichever sources succeeded. A per-source failure never
// blocks the others; if every source fails, existing data is kept (empty
// sets when there was none) and the fetch is retried on the next request.
func (r *Registry) Refresh() {
	var wg sync.WaitGroup
	results := make(map[string]*feedResult, 3)
	fetch := func(name string, fn func() *feedResult) {
		res := &feedResult{}
		results[name] = res
		wg.Add(1)
		go func() {
			defer wg.Done()
			*res = *fn()
		}()
	}
	fetch("crawler", r.fetchCrawlerRanges)
	fetch("tor", r.fetchTorExits)
	fetch("spamdrop", r.fetchSpamDrop)
	wg.Wait()

	cidrs := make(map[string]struct{})
	ips := make(map[string]struct{})
	fetchErrors := make(map[string]string)
	succeeded := 0
	for name, res := range results {
		if res.err != nil {
			fetchErrors[name] = res.err.Error()
			log.Printf("[ranges] %s fetch failed: %v", name, res.err)
			continue
		}
		succeeded++
		for _, c := range res.cidrs {
			cidrs[c] = struct{}{}
		}
		for _, ip := range res.ips {
			ips[ip] = struct{}{}
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.fetchErrors = fetchErrors
	if succeeded == 0 {
		// Keep whatever we had; lastRefresh stays put so the next request
		// retries.
		return
	}
	r.cidrs = cidrs
	r.ips = ips
	r.lastRefresh = nowFunc()
	log.Printf("[ranges] loaded %d CIDRs, %d IPs (%d/3 sources)", len(cidrs), len(ips), succeeded)
}

func (r *Registry) fetchBody(url string) ([]byte, error) {
	resp, err := r.client.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 4<<20))
}

// fetchCrawlerRanges parses the crawler IP prefix JSON. Only IPv4 prefixes
// are collected; the matcher cannot use IPv6 ones.
func (r *Registry) fetchCrawlerRanges() *feedResult {
	body, err := r.fetchBody(crawlerRangesURL)
	if err != nil {
		return &feedResult{err: err}
	}
	var doc struct {
		Prefixes []struct {
			IPv4Prefix string `json:"ipv4Prefix"`
		} `json:"prefixes"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return &feedResult{err: err}
	}
	res := &feedResult{}
	for _, p := range doc.Prefixes {
		if p.IPv4Prefix != "" {
			res.cidrs = append(res.cidrs, p.IPv4Prefix)
		}
	}
	return res
}

// fetchTorExits parses "ExitAddress <ip> <timestamp>" lines.
func (r *Registry) fetchTorExits() *feedResult {
	body, err := r.fetchBody(torExitsURL)
	if err != nil {
		return &feedResult{err: err}
	}
	res := &feedResult{}
	sc := bufio.NewScanner(strings.NewReader(string(body)))
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "ExitAddress") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) >= 2 {
			res.ips = append(res.ips, fields[1])
		}
	}
	return res
}

// fetchSpamDrop parses the DROP lasso format: "<cidr> ; <sbl-id>" with
// ";"-prefixed comment lines.
func (r *Registry) fetchSpamDrop() *feedResult {
	body, err := r.fetchBody(spamDropURL)
	if err != nil {
		return &feedResult{err: err}
	}
	res := &feedResult{}
	sc := bufio.NewScanner(strings.NewReader(string(body)))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, ";") {
			continue
		}
		cidr, _, _ := strings.Cut(line, ";")
		if cidr = strings.TrimSpace(cidr); cidr != "" {
			res.cidrs = append(res.cidrs, cidr)
		}
	}
	return res
}
