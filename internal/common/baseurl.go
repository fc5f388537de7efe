package common

import (
	"net/http"
	"strings"
)

// defaultHost mirrors the historical deployment host so short URLs stay
// resolvable when a request arrives without a Host header.
const defaultHost = "hollandcheckout.netlify.app"

// BaseURL derives the externally visible scheme://host for the request.
// An explicit override (PUBLIC_BASE_URL) wins; otherwise X-Forwarded-Proto
// and the Host header are trusted, defaulting to https.
func BaseURL(r *http.Request, override string) string {
	if trimmed := strings.TrimRight(strings.TrimSpace(override), "/"); trimmed != "" {
		return trimmed
	}
	proto := strings.TrimSpace(r.Header.Get("X-Forwarded-Proto"))
	if proto == "" {
		proto = "https"
	}
	host := strings.TrimSpace(r.Host)
	if host == "" {
		host = defaultHost
	}
	return proto + "://" + host
}
