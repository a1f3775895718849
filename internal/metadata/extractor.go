// Package metadata fetches a site's home page and extracts the values used to
// prefill the site form.
package metadata

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	apperrors "github.com/jonesrussell/site-portfolio/infrastructure/errors"
	infrahttp "github.com/jonesrussell/site-portfolio/infrastructure/http"
	infralogger "github.com/jonesrussell/site-portfolio/infrastructure/logger"
	"github.com/jonesrussell/site-portfolio/internal/urlutil"
)

const (
	defaultHTTPTimeout = 10 * time.Second
	// maxBodyBytes caps how much HTML is parsed.
	maxBodyBytes = 2 << 20
)

var blockedHostnames = map[string]struct{}{
	"localhost":                {},
	"metadata.google.internal": {},
	"169.254.169.254":          {},
}

var errPrivateAddress = errors.New("url resolves to a private address")

// Metadata holds suggested site fields.
type Metadata struct {
	URL          string `json:"url"`
	Domain       string `json:"domain"`
	Name         string `json:"name"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	CanonicalURL string `json:"canonicalUrl,omitempty"`
	Image        string `json:"image,omitempty"`
}

// Config configures an Extractor.
type Config struct {
	Timeout   time.Duration
	UserAgent string
	Proxy     infrahttp.ProxyConfig
}

// Extractor handles metadata extraction from URLs
type Extractor struct {
	logger infralogger.Logger
	client *http.Client
	// resolve looks up host addresses; nil skips the private address check.
	resolve func(ctx context.Context, host string) ([]net.IPAddr, error)
}

// NewExtractor creates a new metadata extractor
func NewExtractor(cfg Config, log infralogger.Logger) (*Extractor, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultHTTPTimeout
	}
	client, err := infrahttp.NewClient(&infrahttp.ClientConfig{
		Timeout:   cfg.Timeout,
		UserAgent: cfg.UserAgent,
		Proxy:     cfg.Proxy,
	})
	if err != nil {
		return nil, fmt.Errorf("metadata http client: %w", err)
	}
	return &Extractor{
		logger:  log,
		client:  client,
		resolve: net.DefaultResolver.LookupIPAddr,
	}, nil
}

// Extract fetches rawURL and reads its title, description and canonical URL.
// Bare domains are accepted and fetched over https.
func (e *Extractor) Extract(ctx context.Context, rawURL string) (*Metadata, error) {
	normalized, err := urlutil.NormalizeURL(rawURL)
	if err != nil {
		return nil, apperrors.Validation("invalid url: %v", err)
	}
	requestURL, parsed, err := validateAndGetRequestURL(withScheme(rawURL))
	if err != nil {
		return nil, apperrors.Validation("%v", err)
	}
	if err = e.checkResolvedAddress(ctx, parsed.Hostname()); err != nil {
		return nil, apperrors.Validation("%v", err)
	}

	e.logger.Info("Extracting metadata from URL", infralogger.String("url", requestURL))

	doc, err := e.fetch(ctx, requestURL)
	if err != nil {
		e.logger.Warn("Metadata fetch failed",
			infralogger.String("url", requestURL),
			infralogger.Error(err),
		)
		return nil, apperrors.Upstream("could not fetch "+parsed.Host, err)
	}

	md := &Metadata{
		URL:          normalized,
		Domain:       urlutil.ExtractDomain(requestURL),
		Title:        strings.TrimSpace(doc.Find("title").First().Text()),
		Description:  extractDescription(doc),
		CanonicalURL: extractCanonical(doc, parsed),
		Image:        attr(doc, "meta[property='og:image']", "content"),
	}
	md.Name = extractName(doc, md.Title, parsed)
	if md.CanonicalURL != "" {
		if d := urlutil.ExtractDomain(md.CanonicalURL); d != "" {
			md.Domain = d
		}
	}

	e.logger.Info("Metadata extraction complete",
		infralogger.String("url", requestURL),
		infralogger.String("name", md.Name),
	)
	return md, nil
}

func (e *Extractor) fetch(ctx context.Context, requestURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch url: %w", err)
	}
	defer resp.Body.Close()

	if httpErr := apperrors.ParseHTTPError(resp); httpErr != nil {
		return nil, httpErr
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

func (e *Extractor) checkResolvedAddress(ctx context.Context, host string) error {
	if e.resolve == nil {
		return nil
	}
	if ip := net.ParseIP(host); ip != nil {
		if isPrivateIP(ip) {
			return errPrivateAddress
		}
		return nil
	}

	addrs, err := e.resolve(ctx, host)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", host, err)
	}
	for _, a := range addrs {
		if isPrivateIP(a.IP) {
			return errPrivateAddress
		}
	}
	return nil
}

// extractName prefers og:site_name, then og:title, then the title tag, then
// the host.
func extractName(doc *goquery.Document, title string, parsedURL *url.URL) string {
	if site := attr(doc, "meta[property='og:site_name']", "content"); site != "" {
		return site
	}
	if ogTitle := attr(doc, "meta[property='og:title']", "content"); ogTitle != "" {
		return ogTitle
	}
	if title != "" {
		return title
	}
	return parsedURL.Host
}

func extractDescription(doc *goquery.Document) string {
	if d := attr(doc, "meta[name='description']", "content"); d != "" {
		return d
	}
	return attr(doc, "meta[property='og:description']", "content")
}

// extractCanonical resolves the canonical link against the page URL.
func extractCanonical(doc *goquery.Document, base *url.URL) string {
	href := attr(doc, "link[rel='canonical']", "href")
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}

func attr(doc *goquery.Document, selector, name string) string {
	v, _ := doc.Find(selector).First().Attr(name)
	return strings.TrimSpace(v)
}

// validateURLScheme rejects non-http schemes and well-known internal hosts.
func validateURLScheme(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("invalid URL scheme %q", parsed.Scheme)
	}
	if _, blocked := blockedHostnames[strings.ToLower(parsed.Hostname())]; blocked {
		return fmt.Errorf("blocked hostname %q", parsed.Hostname())
	}
	return nil
}

// withScheme keeps an explicit scheme and defaults bare domains to https.
func withScheme(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	if strings.Contains(rawURL, "://") {
		return rawURL
	}
	return "https://" + strings.TrimPrefix(rawURL, "//")
}

func validateAndGetRequestURL(rawURL string) (string, *url.URL, error) {
	if err := validateURLScheme(rawURL); err != nil {
		return "", nil, err
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", nil, fmt.Errorf("invalid URL: %w", err)
	}
	return parsed.String(), parsed, nil
}

func isPrivateIP(ip net.IP) bool {
	if ip == nil {
		return false
	}
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() || ip.IsInterfaceLocalMulticast() || ip.IsUnspecified()
}
