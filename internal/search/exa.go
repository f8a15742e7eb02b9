// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pdiddy/research-pipeline/internal/httputil"
	"github.com/pdiddy/research-pipeline/pkg/types"
)

// ExaClient implements Client over the Exa search and contents API.
type ExaClient struct {
	cfg  types.SearchConfig
	http *httputil.Client
}

// NewExaClient builds a client from cfg. Requests are paced at
// cfg.RatePerSecond and retried on 429 and transient 5xx responses.
func NewExaClient(cfg types.SearchConfig) *ExaClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = types.DefaultPipelineConfig().Search.BaseURL
	}
	return &ExaClient{cfg: cfg, http: httputil.NewClient(cfg.Timeout, cfg.RatePerSecond)}
}

type exaSearchRequest struct {
	Query      string `json:"query"`
	Type       string `json:"type"`
	NumResults int    `json:"numResults"`
}

type exaResult struct {
	ID            string `json:"id"`
	URL           string `json:"url"`
	Title         string `json:"title"`
	PublishedDate string `json:"publishedDate"`
	Text          string `json:"text"`
}

type exaResponse struct {
	Results []exaResult `json:"results"`
}

type exaContentsRequest struct {
	URLs []string       `json:"urls"`
	Text map[string]any `json:"text"`
}

func (c *ExaClient) headers() map[string]string {
	h := map[string]string{"x-api-key": c.cfg.APIKey}
	if c.cfg.UserAgent != "" {
		h["User-Agent"] = c.cfg.UserAgent
	}
	return h
}

// Search implements Searcher. Results with unusable URLs are skipped;
// unparseable dates become types.UnknownDate.
func (c *ExaClient) Search(ctx context.Context, query string, maxResults int) ([]types.SourceRecord, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is blank", types.ErrInvalidQuery)
	}
	if maxResults <= 0 {
		maxResults = c.cfg.ResultsPerQuery
	}

	var resp exaResponse
	err := c.http.PostJSON(ctx, c.cfg.BaseURL+"/search", c.headers(),
		exaSearchRequest{Query: query, Type: "auto", NumResults: maxResults}, &resp)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", types.ErrSearchUnavailable, query, err)
	}

	log := zerolog.Ctx(ctx)
	out := make([]types.SourceRecord, 0, len(resp.Results))
	for _, r := range resp.Results {
		rec, err := types.NewSourceRecord(r.Title, r.URL, r.PublishedDate)
		if errors.Is(err, types.ErrInvalidURL) {
			log.Warn().Str("url", r.URL).Msg("skipping search result with invalid URL")
			continue
		}
		if err != nil {
			rec, err = types.NewSourceRecord(r.Title, r.URL, "")
			if err != nil {
				continue
			}
		}
		out = append(out, rec)
		if len(out) == maxResults {
			break
		}
	}
	return out, nil
}

// FetchContents implements ContentFetcher. All URLs are validated before
// the first request; batches of at most batchSize URLs are then fetched in
// order. A failed batch aborts with a *FetchError naming its URLs. URLs the
// service returns no text for map to "".
func (c *ExaClient) FetchContents(ctx context.Context, urls []string, batchSize int) ([]string, error) {
	if err := validateAll(urls); err != nil {
		return nil, err
	}
	if batchSize <= 0 {
		batchSize = c.cfg.BatchSize
	}

	out := make([]string, 0, len(urls))
	for _, batch := range batches(urls, batchSize) {
		texts, err := c.fetchBatch(ctx, batch)
		if err != nil {
			return nil, &FetchError{URLs: batch, Err: err}
		}
		out = append(out, texts...)
	}
	return out, nil
}

func (c *ExaClient) fetchBatch(ctx context.Context, batch []string) ([]string, error) {
	req := exaContentsRequest{URLs: batch, Text: map[string]any{}}
	if c.cfg.MaxCharacters > 0 {
		req.Text["maxCharacters"] = c.cfg.MaxCharacters
	}
	var resp exaResponse
	if err := c.http.PostJSON(ctx, c.cfg.BaseURL+"/contents", c.headers(), req, &resp); err != nil {
		return nil, err
	}

	byURL := make(map[string]string, len(resp.Results))
	for _, r := range resp.Results {
		byURL[types.URLKey(r.URL)] = r.Text
		if r.ID != "" {
			byURL[types.URLKey(r.ID)] = r.Text
		}
	}
	texts := make([]string, len(batch))
	for i, u := range batch {
		texts[i] = byURL[types.URLKey(u)]
	}
	return texts, nil
}

// FetchError reports a failed content batch. It matches
// types.ErrContentFetchFailed and the underlying cause.
type FetchError struct {
	URLs []string
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%v for %s: %v", types.ErrContentFetchFailed, strings.Join(e.URLs, ", "), e.Err)
}

func (e *FetchError) Unwrap() []error { return []error{types.ErrContentFetchFailed, e.Err} }

func validateAll(urls []string) error {
	for _, u := range urls {
		if _, err := types.ValidateURL(u); err != nil {
			return err
		}
	}
	return nil
}

func batches(urls []string, size int) [][]string {
	if size <= 0 {
		size = 1
	}
	var out [][]string
	for i := 0; i < len(urls); i += size {
		end := min(i+size, len(urls))
		out = append(out, urls[i:end])
	}
	return out
}
