// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-pipeline/internal/httputil"
	"github.com/pdiddy/research-pipeline/pkg/types"
)

func TestExtractText(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{
			"prefers main",
			`<html><body><nav>Menu</nav><main><h1>Cats</h1><p>are   clever.</p></main><footer>c</footer></body></html>`,
			"Cats are clever.",
		},
		{
			"article when no main",
			`<html><body><div>side</div><article><p>Study text</p></article></body></html>`,
			"Study text",
		},
		{
			"separates blocks and keeps inline words whole",
			`<html><body><article><h2>Results</h2><ul><li>first</li><li>second</li></ul><p>Cl<b>ever</b> cats<br>purr</p></article></body></html>`,
			"Results first second Clever cats purr",
		},
		{
			"falls back to body and drops scripts",
			`<html><body><script>var x = 1;</script><p>Plain body</p></body></html>`,
			"Plain body",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			doc, err := goquery.NewDocumentFromReader(strings.NewReader(tc.html))
			require.NoError(t, err)
			assert.Equal(t, tc.want, ExtractText(doc))
		})
	}
}

func TestPageFetcher_FetchContents(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		io.WriteString(w, "<html><body><article>page "+r.URL.Path+"</article></body></html>")
	}))
	defer ts.Close()

	p := &PageFetcher{HTTP: &httputil.Client{HTTP: ts.Client()}}
	got, err := p.FetchContents(context.Background(), []string{ts.URL + "/1", ts.URL + "/2", ts.URL + "/3"}, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"page /1", "page /2", "page /3"}, got)

	_, err = p.FetchContents(context.Background(), []string{ts.URL + "/1", ts.URL + "/missing"}, 2)
	assert.ErrorIs(t, err, types.ErrContentFetchFailed)

	_, err = p.FetchContents(context.Background(), []string{"ftp://x"}, 2)
	assert.ErrorIs(t, err, types.ErrInvalidURL)
}

func TestPageFetcher_Truncates(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, "<main>"+strings.Repeat("word ", 100)+"</main>")
	}))
	defer ts.Close()

	p := &PageFetcher{HTTP: &httputil.Client{HTTP: ts.Client()}, MaxChars: 20}
	got, err := p.FetchContents(context.Background(), []string{ts.URL}, 1)
	require.NoError(t, err)
	assert.Len(t, []rune(got[0]), 20)
	assert.True(t, strings.HasSuffix(got[0], "..."))
}
