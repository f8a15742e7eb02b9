// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-pipeline/internal/httputil"
	"github.com/pdiddy/research-pipeline/pkg/types"
)

func TestMain(m *testing.M) {
	httputil.RetryBaseDelay = time.Millisecond
	os.Exit(m.Run())
}

func exaCfg(url string) types.SearchConfig {
	cfg := types.DefaultPipelineConfig().Search
	cfg.BaseURL = url
	cfg.APIKey = "exa-key"
	cfg.RatePerSecond = 0
	cfg.Timeout = 5 * time.Second
	return cfg
}

func TestExaSearch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "exa-key", r.Header.Get("x-api-key"))
		var body exaSearchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "cat intelligence studies", body.Query)
		assert.Equal(t, 3, body.NumResults)
		io.WriteString(w, `{"results": [
			{"title": "Cats", "url": "https://a.example/1", "publishedDate": "2023-11-16T01:36:32.547Z"},
			{"title": "Broken", "url": "not-a-url"},
			{"title": "Undated", "url": "https://a.example/2", "publishedDate": "sometime"}
		]}`)
	}))
	defer ts.Close()

	got, err := NewExaClient(exaCfg(ts.URL)).Search(context.Background(), "cat intelligence studies", 3)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "2023-11-16", got[0].PublishedDate)
	assert.Equal(t, types.UnknownDate, got[1].PublishedDate)
	assert.Zero(t, got[0].RelevanceScore)
}

func TestExaSearch_BlankQuery(t *testing.T) {
	_, err := NewExaClient(exaCfg("http://unused")).Search(context.Background(), "   ", 5)
	assert.ErrorIs(t, err, types.ErrInvalidQuery)
}

func TestExaSearch_Unavailable(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	_, err := NewExaClient(exaCfg(ts.URL)).Search(context.Background(), "cats", 5)
	assert.ErrorIs(t, err, types.ErrSearchUnavailable)
	assert.ErrorIs(t, err, types.ErrUpstream)
}

func TestExaFetchContents_BatchesPreserveOrder(t *testing.T) {
	var mu sync.Mutex
	var batchesSeen [][]string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/contents", r.URL.Path)
		var body exaContentsRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		mu.Lock()
		batchesSeen = append(batchesSeen, body.URLs)
		mu.Unlock()
		resp := exaResponse{}
		for _, u := range body.URLs {
			resp.Results = append(resp.Results, exaResult{URL: u, Text: "text of " + u})
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer ts.Close()

	urls := []string{"https://a.example/1", "https://a.example/2"}
	got, err := NewExaClient(exaCfg(ts.URL)).FetchContents(context.Background(), urls, 1)
	require.NoError(t, err)

	assert.Equal(t, [][]string{{"https://a.example/1"}, {"https://a.example/2"}}, batchesSeen)
	assert.Equal(t, []string{"text of https://a.example/1", "text of https://a.example/2"}, got)
}

func TestExaFetchContents_ReordersAndFillsMissing(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, `{"results": [
			{"url": "https://a.example/3", "text": "three"},
			{"url": "https://a.example/1", "text": "one"}
		]}`)
	}))
	defer ts.Close()

	urls := []string{"https://a.example/1", "https://a.example/2", "https://a.example/3"}
	got, err := NewExaClient(exaCfg(ts.URL)).FetchContents(context.Background(), urls, 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "", "three"}, got)
}

func TestExaFetchContents_ValidatesBeforeAnyRequest(t *testing.T) {
	calls := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		io.WriteString(w, `{"results": []}`)
	}))
	defer ts.Close()

	urls := []string{"https://a.example/1", "not-a-url", "https://a.example/3"}
	_, err := NewExaClient(exaCfg(ts.URL)).FetchContents(context.Background(), urls, 1)
	assert.ErrorIs(t, err, types.ErrInvalidURL)
	assert.Contains(t, err.Error(), "not-a-url")
	assert.Zero(t, calls, "no request may be sent when any URL is invalid")
}

func TestExaFetchContents_BatchFailureNamesURLs(t *testing.T) {
	calls := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls == 2 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		io.WriteString(w, `{"results": []}`)
	}))
	defer ts.Close()

	urls := []string{"https://a.example/1", "https://a.example/2", "https://a.example/3"}
	_, err := NewExaClient(exaCfg(ts.URL)).FetchContents(context.Background(), urls, 2)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrContentFetchFailed)

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, []string{"https://a.example/3"}, fe.URLs)
}

func TestBatches(t *testing.T) {
	got := batches([]string{"a", "b", "c", "d", "e"}, 2)
	assert.Equal(t, [][]string{{"a", "b"}, {"c", "d"}, {"e"}}, got)
	assert.Empty(t, batches(nil, 5))
}
