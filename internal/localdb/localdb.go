package localdb

import (
	"fmt"
	"log"
	"net"
	"os"

	"github.com/oschwald/maxminddb-golang"
)

// DB answers ASN lookups from a local GeoLite2-ASN MMDB, letting the
// hosting-ASN signal resolve without an external API call.
type DB struct {
	reader *maxminddb.Reader
}

type mmdbRecord struct {
	AutonomousSystemNumber       int    `maxminddb:"autonomous_system_number"`
	AutonomousSystemOrganization string `maxminddb:"autonomous_system_organization"`
}

// Open tries to load the MMDB file. Returns nil if it is not available;
// the signal pipeline then falls through to the API provider.
func Open(path string) *DB {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		log.Printf("[localdb] MMDB file not found at %s, local ASN lookup disabled", path)
		return nil
	}
	reader, err := maxminddb.Open(path)
	if err != nil {
		log.Printf("[localdb] failed to open MMDB: %v, local ASN lookup disabled", err)
		return nil
	}
	log.Printf("[localdb] loaded MMDB: %s", path)
	return &DB{reader: reader}
}

// Lookup returns the ASN and organization for an IP.
func (db *DB) Lookup(ipStr string) (int, string, error) {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return 0, "", fmt.Errorf("invalid IP: %s", ipStr)
	}
	var record mmdbRecord
	if err := db.reader.Lookup(ip, &record); err != nil {
		return 0, "", fmt.Errorf("MMDB lookup failed: %w", err)
	}
	return record.AutonomousSystemNumber, record.AutonomousSystemOrganization, nil
}

func (db *DB) Close() {
	if db != nil && db.reader != nil {
		db.reader.Close()
	}
}
