package figcn

import (
	"net"
	"sort"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// mitmDomains returns the registrable domains whose TLS connections need to be
// intercepted: the gate host's, the domains of every rule's host and
// replacement target, and any extra hosts. Subdomains of a returned domain are
// covered too.
func mitmDomains(gateHost string, rs *RuleSet, extra []string) []string {
	seen := make(map[string]bool)
	add := func(host string) {
		host = normalizeHost(host)
		if host == "" {
			return
		}
		seen[registrableDomain(host)] = true
	}

	add(gateHost)
	for _, host := range rs.Hosts() {
		add(host)
	}
	for _, r := range rs.rules {
		add(r.target.Host)
	}
	for _, host := range extra {
		add(host)
	}

	domains := make([]string, 0, len(seen))
	for d := range seen {
		domains = append(domains, d)
	}
	sort.Strings(domains)
	return domains
}

// registrableDomain returns the eTLD+1 of host. Hosts that have none, like
// IP addresses, localhost or public suffixes themselves, are returned as is.
func registrableDomain(host string) string {
	if net.ParseIP(host) != nil {
		return host
	}
	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return domain
}

func coveredBy(host string, domains []string) bool {
	host = normalizeHost(host)
	for _, d := range domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}
