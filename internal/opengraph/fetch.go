// Package opengraph fetches and normalizes link-preview metadata for
// destination URLs. Enrichment runs only at entry creation time and is
// best-effort: a target that cannot be enriched is stored without metadata.
package opengraph

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
)

const (
	// DefaultFetchTimeout bounds a single enrichment fetch so slow remote
	// hosts cannot hang creation requests.
	DefaultFetchTimeout = 10 * time.Second

	// DefaultMaxDocumentBytes caps how much of a destination page is read
	// while looking for meta tags.
	DefaultMaxDocumentBytes = 1 << 20

	// DefaultMaxImageBytes caps a downloaded preview image.
	DefaultMaxImageBytes = 4 << 20
)

// Fetcher retrieves the body of a remote URL. Implementations must bound
// their own timeouts; the returned reader is owned by the caller.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (io.ReadCloser, error)
}

// HTTPFetcher is the default Fetcher backed by net/http.
type HTTPFetcher struct {
	client *http.Client
}

// NewHTTPFetcher returns an HTTPFetcher with the given per-request timeout.
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	return &HTTPFetcher{client: &http.Client{Timeout: timeout}}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,image/*")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

// Enricher produces link-preview metadata for destination URLs.
type Enricher struct {
	fetcher  Fetcher
	logger   *slog.Logger
	maxDoc   int64
	maxImage int64
}

// EnricherConfig configures an Enricher. Nil or zero fields use defaults.
type EnricherConfig struct {
	Fetcher          Fetcher
	Logger           *slog.Logger
	MaxDocumentBytes int64
	MaxImageBytes    int64
}

// NewEnricher returns an Enricher with defaults applied.
func NewEnricher(cfg EnricherConfig) *Enricher {
	fetcher := cfg.Fetcher
	if fetcher == nil {
		fetcher = NewHTTPFetcher(DefaultFetchTimeout)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxDoc := cfg.MaxDocumentBytes
	if maxDoc <= 0 {
		maxDoc = DefaultMaxDocumentBytes
	}
	maxImage := cfg.MaxImageBytes
	if maxImage <= 0 {
		maxImage = DefaultMaxImageBytes
	}
	return &Enricher{fetcher: fetcher, logger: logger, maxDoc: maxDoc, maxImage: maxImage}
}

// Enrich fetches rawURL and returns its open-graph tree plus, for positive
// policies, the downloaded preview image. A zero policy skips enrichment
// entirely; a negative policy strips media properties from the result.
// Enrich never fails: on any fetch or parse problem it returns (nil, nil).
func (e *Enricher) Enrich(ctx context.Context, rawURL string, policy int) (Tree, []byte) {
	if policy == 0 {
		return nil, nil
	}

	body, err := e.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		e.logger.Debug("metadata fetch failed", "url", rawURL, "error", err)
		return nil, nil
	}
	defer body.Close()

	tree, err := Parse(io.LimitReader(body, e.maxDoc))
	if err != nil {
		e.logger.Debug("metadata parse failed", "url", rawURL, "error", err)
		return nil, nil
	}
	if len(tree) == 0 {
		return nil, nil
	}

	if policy < 0 {
		tree.StripMedia()
		if len(tree) == 0 {
			return nil, nil
		}
		return tree, nil
	}

	var preview []byte
	if imgURL := resolveRef(rawURL, tree.ImageURL()); imgURL != "" {
		preview = e.fetchImage(ctx, imgURL)
	}
	return tree, preview
}

func (e *Enricher) fetchImage(ctx context.Context, imgURL string) []byte {
	body, err := e.fetcher.Fetch(ctx, imgURL)
	if err != nil {
		e.logger.Debug("preview image fetch failed", "url", imgURL, "error", err)
		return nil
	}
	defer body.Close()

	data, err := io.ReadAll(io.LimitReader(body, e.maxImage+1))
	if err != nil {
		e.logger.Debug("preview image read failed", "url", imgURL, "error", err)
		return nil
	}
	if int64(len(data)) > e.maxImage {
		e.logger.Debug("preview image too large, discarded", "url", imgURL)
		return nil
	}
	return data
}

// Parse scans an HTML document for <meta property="og:..."> tags and builds
// the metadata tree. Scanning stops at the end of <head> since open-graph
// tags do not appear in the body.
func Parse(r io.Reader) (Tree, error) {
	tree := make(Tree)
	tokenizer := html.NewTokenizer(r)

	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			err := tokenizer.Err()
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return tree, nil
			}
			return tree, err

		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			if string(name) == "head" {
				return tree, nil
			}

		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := tokenizer.TagName()
			if string(name) != "meta" || !hasAttr {
				continue
			}

			var property, content string
			for {
				key, val, more := tokenizer.TagAttr()
				switch string(key) {
				case "property":
					property = string(val)
				case "content":
					content = string(val)
				}
				if !more {
					break
				}
			}

			if rest, ok := strings.CutPrefix(strings.ToLower(property), "og:"); ok && content != "" {
				tree.Add(rest, content)
			}
		}
	}
}

// resolveRef resolves a possibly relative reference against the page URL.
// Returns "" when either input is unusable.
func resolveRef(pageURL, ref string) string {
	if ref == "" {
		return ""
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	u, err := base.Parse(ref)
	if err != nil {
		return ""
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return u.String()
}
