package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Signal types used as cache key prefixes. Keys are "<type>:<ip>".
const (
	TypeRDNS      = "ptr"
	TypeTor       = "tor"
	TypeGeo       = "geo"
	TypeASN       = "asn"
	TypeAbuse     = "abuse"
	TypeForumSpam = "sfs"
)

// Per-signal TTLs. These differ on purpose: DNS records and abuse reports
// move slowly, geo/Tor status can flip within the hour.
var ttls = map[string]time.Duration{
	TypeRDNS:      6 * time.Hour,
	TypeTor:       1 * time.Hour,
	TypeGeo:       1 * time.Hour,
	TypeASN:       2 * time.Hour,
	TypeAbuse:     6 * time.Hour,
	TypeForumSpam: 12 * time.Hour,
}

// Cache is a TTL cache for per-IP signal results.
type Cache struct {
	c *gocache.Cache
}

func New() *Cache {
	return &Cache{c: gocache.New(gocache.NoExpiration, 10*time.Minute)}
}

// TTL returns the configured TTL for a signal type.
func TTL(signalType string) time.Duration {
	if ttl, ok := ttls[signalType]; ok {
		return ttl
	}
	return time.Hour
}

func Key(signalType, ip string) string {
	return signalType + ":" + ip
}

// Get returns the cached value for a signal/IP pair. Expired entries
// read as misses.
func (c *Cache) Get(signalType, ip string) (interface{}, bool) {
	return c.c.Get(Key(signalType, ip))
}

// Set stores a value under the signal type's TTL.
func (c *Cache) Set(signalType, ip string, value interface{}) {
	c.c.Set(Key(signalType, ip), value, TTL(signalType))
}

// SetFor stores a value with an explicit TTL, used for shortened retention
// of failed lookups.
func (c *Cache) SetFor(signalType, ip string, value interface{}, ttl time.Duration) {
	c.c.Set(Key(signalType, ip), value, ttl)
}

func (c *Cache) Size() int {
	return c.c.ItemCount()
}
