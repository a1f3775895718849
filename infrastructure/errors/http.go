package errors

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	maxErrorBodyBytes = 64 << 10
	maxSnippetRunes   = 200
)

// HTTPError is a non-2xx response from a remote server. Message is a short,
// single-line summary of the body.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	text := http.StatusText(e.StatusCode)
	if e.Message == "" {
		return fmt.Sprintf("HTTP %d %s", e.StatusCode, text)
	}
	return fmt.Sprintf("HTTP %d %s: %s", e.StatusCode, text, e.Message)
}

// Retryable reports whether the same request may succeed later.
func (e *HTTPError) Retryable() bool {
	return IsRetryableStatus(e.StatusCode)
}

// ParseHTTPError returns nil for status < 400. Otherwise it drains up to
// 64KiB of the body and summarizes it: a JSON "error" or "message" field
// when present, else the collapsed raw text.
func ParseHTTPError(resp *http.Response) error {
	if resp.StatusCode < http.StatusBadRequest {
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	if err != nil {
		return &HTTPError{StatusCode: resp.StatusCode, Message: "unreadable body: " + err.Error()}
	}
	return &HTTPError{StatusCode: resp.StatusCode, Message: summarize(body)}
}

func summarize(body []byte) string {
	var payload struct {
		Error   any    `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &payload) == nil {
		switch v := payload.Error.(type) {
		case string:
			if v != "" {
				return snippet(v)
			}
		case map[string]any:
			if msg, ok := v["message"].(string); ok && msg != "" {
				return snippet(msg)
			}
		}
		if payload.Message != "" {
			return snippet(payload.Message)
		}
	}
	return snippet(string(body))
}

// snippet collapses whitespace and truncates long HTML error pages.
func snippet(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > maxSnippetRunes {
		return string(r[:maxSnippetRunes]) + "..."
	}
	return s
}

// IsRetryableStatus reports whether an upstream status is worth retrying.
func IsRetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}
