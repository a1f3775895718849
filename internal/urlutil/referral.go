package urlutil

import (
	"strings"

	"github.com/cloudflare/ahocorasick"
)

// noiseSources are substrings of GA session sources that are not referring
// sites: search engines, social platforms and GA's own markers.
var noiseSources = []string{
	"(none)", "(direct)", "(not set)",
	"google", "bing", "yahoo", "duckduckgo", "baidu", "yandex", "ecosia", "naver",
	"facebook", "instagram", "twitter", "linkedin", "lnkd.in",
	"pinterest", "reddit", "youtube", "tiktok", "snapchat", "threads.net", "quora",
}

// noiseHosts are short hosts that would over-match as substrings.
var noiseHosts = map[string]struct{}{
	"t.co": {}, "x.com": {}, "fb.com": {}, "fb.me": {}, "ask.com": {}, "youtu.be": {},
}

// ReferralFilter keeps only session sources that look like referring domains.
// The match is a substring heuristic and intentionally approximate.
type ReferralFilter struct {
	matcher *ahocorasick.Matcher
}

// NewReferralFilter builds a filter over the default noise list plus extra.
func NewReferralFilter(extra ...string) *ReferralFilter {
	patterns := make([]string, 0, len(noiseSources)+len(extra))
	patterns = append(patterns, noiseSources...)
	for _, e := range extra {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			patterns = append(patterns, e)
		}
	}
	return &ReferralFilter{matcher: ahocorasick.NewStringMatcher(patterns)}
}

// IsReferral reports whether source should be treated as a referring domain:
// it contains a dot and matches no noise pattern or host.
func (f *ReferralFilter) IsReferral(source string) bool {
	s := strings.ToLower(strings.TrimSpace(source))
	if s == "" || !strings.Contains(s, ".") {
		return false
	}
	if _, noisy := noiseHosts[ExtractDomain(s)]; noisy {
		return false
	}
	return len(f.matcher.MatchThreadSafe([]byte(s))) == 0
}

// Filter returns the distinct canonical domains among sources that pass
// IsReferral, in first-seen order.
func (f *ReferralFilter) Filter(sources []string) []string {
	seen := make(map[string]struct{}, len(sources))
	out := make([]string, 0, len(sources))
	for _, src := range sources {
		if !f.IsReferral(src) {
			continue
		}
		domain := ExtractDomain(src)
		if domain == "" {
			continue
		}
		if _, dup := seen[domain]; dup {
			continue
		}
		seen[domain] = struct{}{}
		out = append(out, domain)
	}
	return out
}
