// Package urlutil canonicalizes site URLs and domains so that the same site
// entered as "http://www.Example.com/" and "example.com" is recognized as one.
package urlutil

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ErrEmptyURL is returned for blank input.
var ErrEmptyURL = errors.New("url is empty")

// NormalizeURL returns the canonical form of raw: https scheme, lowercase host
// without "www." or default port, no fragment, and no trailing slash.
// NormalizeURL(NormalizeURL(x)) == NormalizeURL(x).
func NormalizeURL(raw string) (string, error) {
	u, err := parse(raw)
	if err != nil {
		return "", err
	}

	u.Scheme = "https"
	u.Host = canonicalHost(u)
	u.Fragment = ""
	u.RawFragment = ""
	u.User = nil
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = ""

	return u.String(), nil
}

// ExtractDomain returns the canonical host of raw, or "" if raw is not a URL
// or bare domain.
func ExtractDomain(raw string) string {
	u, err := parse(raw)
	if err != nil {
		return ""
	}
	host := canonicalHost(u)
	if h, _, splitErr := net.SplitHostPort(host); splitErr == nil {
		host = h
	}
	return host
}

// AreDuplicateURLs reports whether a and b point at the same site, i.e. have
// the same non-empty ExtractDomain.
func AreDuplicateURLs(a, b string) bool {
	da := ExtractDomain(a)
	return da != "" && da == ExtractDomain(b)
}

func parse(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrEmptyURL
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + strings.TrimPrefix(raw, "//")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("url %q has no host", raw)
	}
	return u, nil
}

func canonicalHost(u *url.URL) string {
	host := strings.ToLower(u.Hostname())
	host = strings.TrimSuffix(host, ".")
	host = strings.TrimPrefix(host, "www.")

	port := u.Port()
	if port == "" || port == "80" || port == "443" {
		return host
	}
	return net.JoinHostPort(host, port)
}
