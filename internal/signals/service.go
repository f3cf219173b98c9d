package signals

import (
	"context"
	"sync"
	"time"

	"github.com/vrcampos/linkgate/internal/cache"
	"github.com/vrcampos/linkgate/internal/localdb"
	"github.com/vrcampos/linkgate/internal/model"
	"github.com/vrcampos/linkgate/internal/store"
)

// RangeRegistry answers bulk CIDR/IP membership. Satisfied by
// botranges.Registry.
type RangeRegistry interface {
	Contains(ip string) model.RangeHits
	TorExit(ip string) bool
}

// Service fans out all signal lookups for one IP. Lookups are mutually
// independent: each carries its own timeout, failures are absorbed as
// absent signals, and no lookup blocks another.
type Service struct {
	cache    *cache.Cache
	store    store.Store // optional, may be nil
	local    *localdb.DB // optional, may be nil
	ranges   RangeRegistry
	abuseKey string
}

func New(c *cache.Cache, st store.Store, local *localdb.DB, ranges RangeRegistry, abuseKey string) *Service {
	return &Service{
		cache:    c,
		store:    st,
		local:    local,
		ranges:   ranges,
		abuseKey: abuseKey,
	}
}

// Collect gathers every signal for an IP concurrently and waits for all of
// them. Each goroutine writes a disjoint field of the set.
func (s *Service) Collect(ctx context.Context, ip string) model.SignalSet {
	set := model.SignalSet{IP: ip}

	var wg sync.WaitGroup
	run := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}

	run(func() { set.RDNS = s.reverseDNS(ctx, ip) })
	run(func() { set.ASN = s.asnLookup(ctx, ip) })
	run(func() { set.Geo = s.geoLookup(ctx, ip) })
	run(func() { set.Abuse = s.abuseLookup(ctx, ip) })
	run(func() { set.ForumSpam = s.forumSpamLookup(ctx, ip) })
	run(func() {
		start := time.Now()
		dnsHit := s.torDNS(ctx, ip)
		set.Ranges = s.ranges.Contains(ip)
		set.Tor = model.TorResult{
			DNS:  dnsHit,
			Bulk: s.ranges.TorExit(ip),
			Ms:   time.Since(start).Milliseconds(),
		}
	})

	wg.Wait()
	return set
}

// CacheSize exposes the memory cache size for stats.
func (s *Service) CacheSize() int {
	return s.cache.Size()
}

// StoreSize exposes the persistent store size for stats, 0 when disabled.
func (s *Service) StoreSize() int {
	if s.store == nil {
		return 0
	}
	return s.store.Size()
}

// StoreEnabled reports whether the persistent store is configured.
func (s *Service) StoreEnabled() bool {
	return s.store != nil
}

// LocalDBLoaded reports whether the local MMDB is available.
func (s *Service) LocalDBLoaded() bool {
	return s.local != nil
}

// AbuseKeyConfigured reports whether the abuse provider will be queried.
func (s *Service) AbuseKeyConfigured() bool {
	return s.abuseKey != ""
}
