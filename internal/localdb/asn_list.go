package localdb

// HostingASNs maps ASNs that are indisputably cloud/hosting infrastructure
// to their operator. Sourced from public BGP data and provider docs.
var HostingASNs = map[int]string{
	// Major clouds
	16509:  "Amazon.com / AWS",
	14618:  "Amazon.com / AWS",
	8075:   "Microsoft Azure",
	15169:  "Google Cloud",
	396982: "Google Cloud",
	45102:  "Alibaba Cloud",
	132203: "Tencent Cloud",
	31898:  "Oracle Cloud",
	36351:  "IBM Cloud / SoftLayer",
	13335:  "Cloudflare",

	// VPS / hosting
	14061:  "DigitalOcean",
	20473:  "Vultr / Choopa",
	63949:  "Linode / Akamai Connected Cloud",
	16276:  "OVHcloud",
	24940:  "Hetzner Online",
	213230: "Hetzner Cloud",
	12876:  "Scaleway",
	40021:  "Contabo",
	51167:  "Contabo",
	60781:  "LeaseWeb",
	28753:  "LeaseWeb",
	9009:   "M247 / G-Core Labs",
	202053: "UpCloud",
	47583:  "Hostinger",
	197540: "Netcup",
	26496:  "GoDaddy Hosting",

	// Dedicated / colocation
	33070: "Rackspace",
	36352: "ColoCrossing",
	40676: "Psychz Networks",
	8100:  "QuadraNet",
	21859: "Zenlayer",
	25820: "IT7 Networks (BandwagonHost)",
	36007: "Kamatera",
	54290: "Hostwinds",
	50673: "Serverius",
	60068: "Datacamp (CDN77)",
	50979: "Selectel",

	// CDN / edge
	20940:  "Akamai Technologies",
	54113:  "Fastly",
	209242: "Cloudflare (WARP)",
}

// IsHostingASN checks the embedded list.
func IsHostingASN(asn int) (string, bool) {
	org, ok := HostingASNs[asn]
	return org, ok
}
