package fetcher

import (
	"net/url"
	"slices"
	"strings"
)

// HostBlocklist matches request hosts against exact names and suffix
// wildcards ("*.example.com" or ".example.com").
type HostBlocklist struct {
	exact    map[string]struct{}
	suffixes []string
}

// NewHostBlocklist compiles patterns. It returns nil when no usable pattern
// remains, and a nil blocklist blocks nothing.
func NewHostBlocklist(patterns []string) *HostBlocklist {
	b := &HostBlocklist{exact: make(map[string]struct{})}
	for _, raw := range patterns {
		value := strings.ToLower(strings.TrimSpace(raw))
		suffix, isSuffix := strings.CutPrefix(value, "*.")
		if !isSuffix {
			suffix, isSuffix = strings.CutPrefix(value, ".")
		}
		switch {
		case value == "":
		case isSuffix:
			if suffix != "" && !slices.Contains(b.suffixes, suffix) {
				b.suffixes = append(b.suffixes, suffix)
			}
		default:
			b.exact[value] = struct{}{}
		}
	}
	if len(b.exact) == 0 && len(b.suffixes) == 0 {
		return nil
	}
	return b
}

// Blocked reports whether rawURL points at a blocklisted host. Unparseable
// URLs are left to the transport.
func (b *HostBlocklist) Blocked(rawURL string) bool {
	if b == nil {
		return false
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return b.BlockedHost(parsed.Hostname())
}

// BlockedHost reports whether host matches the blocklist.
func (b *HostBlocklist) BlockedHost(host string) bool {
	if b == nil {
		return false
	}
	host = strings.ToLower(strings.TrimSpace(host))
	if host == "" {
		return false
	}
	if _, ok := b.exact[host]; ok {
		return true
	}
	for _, suffix := range b.suffixes {
		if host == suffix || strings.HasSuffix(host, "."+suffix) {
			return true
		}
	}
	return false
}
