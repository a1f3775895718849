// Package http builds outbound HTTP clients with pooled transports and the
// proxy settings the portfolio service honors.
package http

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

const (
	DefaultTimeout               = 30 * time.Second
	DefaultMaxIdleConns          = 100
	DefaultMaxIdleConnsPerHost   = 10
	DefaultIdleConnTimeout       = 90 * time.Second
	DefaultResponseHeaderTimeout = 30 * time.Second
	DefaultTLSHandshakeTimeout   = 10 * time.Second
)

// ProxyConfig selects the outbound proxy.
//
// When UseProxy is set, URL (PROXY_URL) is used for every request. Otherwise
// the standard HTTPS_PROXY / HTTP_PROXY / NO_PROXY variables apply.
type ProxyConfig struct {
	UseProxy bool   `env:"USE_PROXY" yaml:"use_proxy"`
	URL      string `env:"PROXY_URL" yaml:"url"`
}

// ClientConfig configures NewClient. Zero values take the defaults above.
type ClientConfig struct {
	Timeout               time.Duration
	MaxIdleConns          int
	MaxIdleConnsPerHost   int
	IdleConnTimeout       time.Duration
	ResponseHeaderTimeout time.Duration
	TLSHandshakeTimeout   time.Duration
	UserAgent             string
	Proxy                 ProxyConfig
}

// ProxyFunc returns the http.Transport proxy function for cfg.
func (cfg ProxyConfig) ProxyFunc() (func(*http.Request) (*url.URL, error), error) {
	if !cfg.UseProxy {
		return http.ProxyFromEnvironment, nil
	}

	raw := strings.TrimSpace(cfg.URL)
	if raw == "" {
		raw = firstEnv("HTTPS_PROXY", "https_proxy", "HTTP_PROXY", "http_proxy")
	}
	if raw == "" {
		return nil, fmt.Errorf("proxy enabled but no proxy URL configured")
	}

	proxyURL, err := url.Parse(raw)
	if err != nil || proxyURL.Host == "" {
		return nil, fmt.Errorf("invalid proxy URL %q", raw)
	}
	return http.ProxyURL(proxyURL), nil
}

func firstEnv(names ...string) string {
	for _, n := range names {
		if v := os.Getenv(n); v != "" {
			return v
		}
	}
	return ""
}

// NewClient creates a client; nil cfg means all defaults.
func NewClient(cfg *ClientConfig) (*http.Client, error) {
	if cfg == nil {
		cfg = &ClientConfig{}
	}

	proxy, err := cfg.Proxy.ProxyFunc()
	if err != nil {
		return nil, err
	}

	transport := &http.Transport{
		Proxy:                 proxy,
		MaxIdleConns:          orDefault(cfg.MaxIdleConns, DefaultMaxIdleConns),
		MaxIdleConnsPerHost:   orDefault(cfg.MaxIdleConnsPerHost, DefaultMaxIdleConnsPerHost),
		IdleConnTimeout:       orDefault(cfg.IdleConnTimeout, DefaultIdleConnTimeout),
		ResponseHeaderTimeout: orDefault(cfg.ResponseHeaderTimeout, DefaultResponseHeaderTimeout),
		TLSHandshakeTimeout:   orDefault(cfg.TLSHandshakeTimeout, DefaultTLSHandshakeTimeout),
		ForceAttemptHTTP2:     true,
	}

	var rt http.RoundTripper = transport
	if cfg.UserAgent != "" {
		rt = &userAgentTransport{base: transport, userAgent: cfg.UserAgent}
	}

	return &http.Client{
		Timeout:   orDefault(cfg.Timeout, DefaultTimeout),
		Transport: rt,
	}, nil
}

func orDefault[T int | time.Duration](v, def T) T {
	if v == 0 {
		return def
	}
	return v
}

type userAgentTransport struct {
	base      http.RoundTripper
	userAgent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") != "" {
		return t.base.RoundTrip(req)
	}
	clone := req.Clone(req.Context())
	clone.Header.Set("User-Agent", t.userAgent)
	return t.base.RoundTrip(clone)
}
