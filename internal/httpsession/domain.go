package httpsession

import (
	"net"
	"strings"

	"github.com/weppos/publicsuffix-go/publicsuffix"
)

// DomainKey returns the pacing key for host: its registrable domain
// (api.untappd.com and untappd.com share "untappd.com"), or the bare host for
// IP addresses and names the public suffix list cannot resolve.
func DomainKey(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.TrimSuffix(host, ".")
	if host == "" {
		return ""
	}
	if net.ParseIP(host) != nil {
		return host
	}
	domain, err := publicsuffix.Domain(host)
	if err != nil || domain == "" {
		return host
	}
	return domain
}
