package adapters

import (
	"context"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
)

// WebFetcher implements the §4.12 fetch contract over a real HTTP client:
// bounded redirects, a content-type allowlist, a byte ceiling, and
// tag-stripping text extraction.
type WebFetcher struct {
	Client       *http.Client
	MaxRedirects int
	MaxBytes     int64
	MaxChars     int
}

// NewWebFetcher builds a WebFetcher with the §5 10-second default timeout.
func NewWebFetcher(maxRedirects int, maxBytes int64, maxChars int) *WebFetcher {
	return &WebFetcher{
		Client:       &http.Client{Timeout: 10 * time.Second},
		MaxRedirects: maxRedirects,
		MaxBytes:     maxBytes,
		MaxChars:     maxChars,
	}
}

var scriptStyleTag = regexp.MustCompile(`(?is)<(script|style)[^>]*>.*?</(script|style)>`)
var anyTag = regexp.MustCompile(`(?s)<[^>]*>`)
var whitespaceRun = regexp.MustCompile(`\s+`)

// Fetch retrieves url, following at most MaxRedirects redirects, accepting
// only text/html and text/plain, and enforcing MaxBytes. On success it
// extracts text by stripping script/style blocks, then all remaining tags,
// collapsing whitespace, and trimming to MaxChars.
func (f *WebFetcher) Fetch(ctx context.Context, url string) (FetchResult, error) {
	client := *f.Client
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) > f.MaxRedirects {
			return http.ErrUseLastResponse
		}
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return FetchResult{URL: url, Status: "failed", FailureReason: err.Error()}, nil
	}

	resp, err := client.Do(req)
	if err != nil {
		return FetchResult{URL: url, Status: "failed", FailureReason: err.Error()}, nil
	}
	defer resp.Body.Close()

	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(contentType, "text/html") && !strings.Contains(contentType, "text/plain") {
		return FetchResult{
			URL:         url,
			Status:      "failed",
			HTTPStatus:  resp.StatusCode,
			ContentType: contentType,
			FailureReason: "unsupported_content_type",
		}, nil
	}

	limited := io.LimitReader(resp.Body, f.MaxBytes+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		return FetchResult{URL: url, Status: "failed", HTTPStatus: resp.StatusCode, FailureReason: err.Error()}, nil
	}
	if int64(len(body)) > f.MaxBytes {
		return FetchResult{
			URL:           url,
			Status:        "max_bytes_exceeded",
			HTTPStatus:    resp.StatusCode,
			ContentType:   contentType,
			ContentLength: int64(len(body)),
			FailureReason: "max_bytes_exceeded",
		}, nil
	}

	text := extractText(string(body))
	if runes := []rune(text); len(runes) > f.MaxChars {
		text = string(runes[:f.MaxChars])
	}

	return FetchResult{
		URL:           url,
		Status:        "succeeded",
		HTTPStatus:    resp.StatusCode,
		ContentType:   contentType,
		ContentLength: int64(len(body)),
		ExtractedText: text,
	}, nil
}

func extractText(html string) string {
	stripped := scriptStyleTag.ReplaceAllString(html, " ")
	stripped = anyTag.ReplaceAllString(stripped, " ")
	stripped = whitespaceRun.ReplaceAllString(stripped, " ")
	return strings.TrimSpace(stripped)
}
