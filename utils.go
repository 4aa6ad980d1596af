package diamond

import (
	"net"
	"net/url"
	"strings"
)

// NormalizeKeyword case-folds a search keyword.
func NormalizeKeyword(keyword string) string {
	return strings.ToLower(keyword)
}

// IsLinkQuery reports whether a keyword should be matched exactly against record links.
func IsLinkQuery(keyword string) bool {
	lower := NormalizeKeyword(keyword)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// AssetURLs builds the view and download URLs of a file served by an endpoint's HTTPS server.
func AssetURLs(endpoint Endpoint, entry FileEntry, absolutePath string) (view string, download string) {
	view = endpoint.String("https_server") + absolutePath + url.PathEscape(entry.Name)
	return view, view + "?download"
}

// DomainFromEndpoint returns the host an endpoint serves data from, or "" when unknown.
func DomainFromEndpoint(endpoint Endpoint) string {
	for _, key := range []string{"tlsftp_server", "https_server"} {
		raw := endpoint.String(key)
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			continue
		}
		host := u.Host
		if h, _, err := net.SplitHostPort(host); err == nil {
			host = h
		}
		return host
	}
	return ""
}
