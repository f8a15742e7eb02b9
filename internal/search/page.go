// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/research-pipeline/internal/httputil"
	"github.com/pdiddy/research-pipeline/pkg/types"
)

// mainContentSelectors are tried in order; the first with text wins.
var mainContentSelectors = []string{"main", "article", "[role=main]", ".content", "#content", "body"}

// PageFetcher implements ContentFetcher by downloading pages directly and
// extracting their main text. URLs within a batch are fetched concurrently.
type PageFetcher struct {
	HTTP      *httputil.Client
	UserAgent string
	MaxChars  int
}

// NewPageFetcher builds a fetcher from the search configuration.
func NewPageFetcher(cfg types.SearchConfig) *PageFetcher {
	return &PageFetcher{
		HTTP:      httputil.NewClient(cfg.Timeout, cfg.RatePerSecond),
		UserAgent: cfg.UserAgent,
		MaxChars:  cfg.MaxCharacters,
	}
}

// FetchContents implements ContentFetcher.
func (p *PageFetcher) FetchContents(ctx context.Context, urls []string, batchSize int) ([]string, error) {
	if err := validateAll(urls); err != nil {
		return nil, err
	}
	if batchSize <= 0 {
		batchSize = types.DefaultPipelineConfig().Search.BatchSize
	}

	out := make([]string, 0, len(urls))
	for _, batch := range batches(urls, batchSize) {
		texts := make([]string, len(batch))
		g, gctx := errgroup.WithContext(ctx)
		for i, u := range batch {
			g.Go(func() error {
				text, err := p.fetchPage(gctx, u)
				if err != nil {
					return fmt.Errorf("%s: %w", u, err)
				}
				texts[i] = text
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, &FetchError{URLs: batch, Err: err}
		}
		out = append(out, texts...)
	}
	return out, nil
}

func (p *PageFetcher) fetchPage(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}
	if p.UserAgent != "" {
		req.Header.Set("User-Agent", p.UserAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	hc := p.HTTP
	if hc == nil {
		hc = &httputil.Client{}
	}
	resp, err := hc.Do(ctx, req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("parsing HTML: %w", err)
	}
	return truncate(ExtractText(doc), p.maxChars()), nil
}

func (p *PageFetcher) maxChars() int {
	if p.MaxChars <= 0 {
		return 1 << 20
	}
	return p.MaxChars
}

// blockElements break words apart; inline elements join their neighbours.
var blockElements = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true, "br": true,
	"dd": true, "div": true, "dl": true, "dt": true, "figcaption": true,
	"figure": true, "h1": true, "h2": true, "h3": true, "h4": true, "h5": true,
	"h6": true, "hr": true, "li": true, "main": true, "ol": true, "p": true,
	"pre": true, "section": true, "table": true, "td": true, "th": true,
	"tr": true, "ul": true,
}

// ExtractText returns the whitespace-collapsed text of the main content
// region of doc, ignoring scripts, styles and page chrome.
func ExtractText(doc *goquery.Document) string {
	doc.Find("script, style, noscript, nav, header, footer, aside, form").Remove()
	for _, sel := range mainContentSelectors {
		var b strings.Builder
		writeText(doc.Find(sel).First(), &b)
		if text := strings.Join(strings.Fields(b.String()), " "); text != "" {
			return text
		}
	}
	return ""
}

func writeText(sel *goquery.Selection, b *strings.Builder) {
	sel.Contents().Each(func(_ int, c *goquery.Selection) {
		switch name := goquery.NodeName(c); {
		case name == "#text":
			b.WriteString(c.Text())
		case strings.HasPrefix(name, "#"):
		case blockElements[name]:
			b.WriteByte(' ')
			writeText(c, b)
			b.WriteByte(' ')
		default:
			writeText(c, b)
		}
	})
}
