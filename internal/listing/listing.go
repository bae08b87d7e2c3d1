// Package listing decides which search hits are worth fetching as job pages
// and gives every URL a single canonical spelling for the seen store.
package listing

import (
	"net/url"
	"strings"
)

var trackingParams = []string{"utm_source", "utm_medium", "utm_campaign", "utm_term", "utm_content", "utm_id", "gclid", "fbclid"}

// listingTokens are substrings that mark a URL as a probable job posting.
var listingTokens = []string{"/jobs", "/job", "careers", "apply", "greenhouse", "lever"}

// Normalize canonicalizes raw for deduplication: lower-cased host, no
// fragment, no default port and no tracking parameters. Unparseable or
// host-less input is returned trimmed but otherwise untouched.
func Normalize(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	u.Fragment = ""
	u.RawFragment = ""
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if (u.Scheme == "http" && strings.HasSuffix(u.Host, ":80")) || (u.Scheme == "https" && strings.HasSuffix(u.Host, ":443")) {
		u.Host = u.Hostname()
	}
	if u.RawQuery != "" {
		q := u.Query()
		for _, p := range trackingParams {
			q.Del(p)
		}
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// LooksLikeListing reports whether the URL resembles a job listing.
func LooksLikeListing(raw string) bool {
	lower := strings.ToLower(raw)
	for _, tok := range listingTokens {
		if strings.Contains(lower, tok) {
			return true
		}
	}
	return false
}

// Policy filters URLs by host. Deny entries take precedence over Allow
// entries; an empty Allow list admits every host not denied. An entry
// matches its host and all subdomains.
type Policy struct {
	Allow []string
	Deny  []string
}

// Permits reports whether the policy lets raw through.
func (p Policy) Permits(raw string) bool {
	if len(p.Allow) == 0 && len(p.Deny) == 0 {
		return true
	}
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, d := range p.Deny {
		if hostMatches(host, d) {
			return false
		}
	}
	if len(p.Allow) == 0 {
		return true
	}
	for _, a := range p.Allow {
		if hostMatches(host, a) {
			return true
		}
	}
	return false
}

func hostMatches(host, entry string) bool {
	entry = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(entry), "."))
	if entry == "" {
		return false
	}
	return host == entry || strings.HasSuffix(host, "."+entry)
}
