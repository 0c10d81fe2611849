// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package papers

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stevebottos/dxtr-cli/internal/httputil"
	"github.com/stevebottos/dxtr-cli/pkg/types"
)

func init() {
	httputil.RetryBaseDelay = time.Millisecond
}

func TestStore_SaveLoadFind(t *testing.T) {
	s := NewStore(t.TempDir(), nil)

	require.NoError(t, s.Save("2025-01-02", types.Paper{ID: "2501.00002", Title: "B", Upvotes: 7}))
	require.NoError(t, s.Save("2025-01-02", types.Paper{ID: "2501.00001", Title: "A"}))
	require.NoError(t, s.Save("2025-01-01", types.Paper{ID: "2501.00001", Title: "A (older)"}))

	got, err := s.LoadDate("2025-01-02")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "2501.00001", got[0].ID)
	assert.Equal(t, 7, got[1].Upvotes)

	t.Run("find newest first", func(t *testing.T) {
		dir, err := s.Find("2501.00001", "")
		require.NoError(t, err)
		assert.Equal(t, s.PaperDir("2025-01-02", "2501.00001"), dir)
	})

	t.Run("find on date", func(t *testing.T) {
		dir, err := s.Find("2501.00001", "2025-01-01")
		require.NoError(t, err)
		assert.Equal(t, s.PaperDir("2025-01-01", "2501.00001"), dir)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := s.Find("9999.99999", "")
		assert.True(t, errors.Is(err, ErrPaperNotFound))
		_, err = s.Find("2501.00002", "2025-01-01")
		assert.True(t, errors.Is(err, ErrPaperNotFound))
	})
}

func TestStore_LoadDateSkipsBadMetadata(t *testing.T) {
	s := NewStore(t.TempDir(), nil)
	require.NoError(t, s.Save("2025-01-02", types.Paper{ID: "good"}))

	bad := s.PaperDir("2025-01-02", "bad")
	require.NoError(t, os.MkdirAll(bad, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(bad, MetadataFile), []byte("{not json"), 0o644))
	require.NoError(t, os.MkdirAll(s.PaperDir("2025-01-02", "no-metadata"), 0o755))

	got, err := s.LoadDate("2025-01-02")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "good", got[0].ID)

	missing, err := s.LoadDate("2024-12-31")
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestStore_AvailableDates(t *testing.T) {
	s := NewStore(t.TempDir(), nil)
	now := time.Date(2025, 1, 3, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.Save("2025-01-03", types.Paper{ID: "a"}))
	require.NoError(t, s.Save("2025-01-03", types.Paper{ID: "b"}))
	require.NoError(t, s.Save("2025-01-01", types.Paper{ID: "c"}))
	require.NoError(t, s.Save("2024-12-01", types.Paper{ID: "old"}))

	got := s.AvailableDates(now, 7)
	assert.Equal(t, map[string]int{"2025-01-03": 2, "2025-01-01": 1}, got)
	assert.Equal(t, "Available papers:\n  2025-01-03: 2 papers\n  2025-01-01: 1 papers", FormatAvailableDates(got))
	assert.Contains(t, FormatAvailableDates(nil), "No papers downloaded yet")
}

func TestNormalizeID(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"2512.01234", "2512.01234"},
		{" 2512.01234 ", "2512.01234"},
		{"https://arxiv.org/abs/2512.01234", "2512.01234"},
		{"https://arxiv.org/pdf/2512.01234.pdf", "2512.01234"},
		{"https://huggingface.co/papers/2512.01234/", "2512.01234"},
		{"arxiv:2512.01234", "2512.01234"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeID(tt.in))
		})
	}
}

func TestValidDate(t *testing.T) {
	assert.True(t, ValidDate("2025-01-31"))
	assert.False(t, ValidDate("2025-1-31"))
	assert.False(t, ValidDate("yesterday"))
}

func withHF(t *testing.T, handler http.HandlerFunc) {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	orig := hfDailyPapersURL
	hfDailyPapersURL = ts.URL + "/api/daily_papers"
	t.Cleanup(func() { hfDailyPapersURL = orig })
}

func TestFetcher_Fetch(t *testing.T) {
	withHF(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2025-01-02", r.URL.Query().Get("date"))
		w.Write([]byte(`[
			{"paper": {"id": "2501.00001", "title": "Nested", "summary": "S1",
			           "authors": [{"name": "Ada"}, {"name": "Grace"}], "publishedAt": "2025-01-01T00:00:00Z"},
			 "upvotes": 120},
			{"id": "2501.00002", "title": "Flat", "summary": "S2", "authors": ["Alan"], "upvotes": 3},
			{"paper": {"title": "no id"}}
		]`))
	})

	got, err := (&Fetcher{}).Fetch(context.Background(), "2025-01-02")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, types.Paper{
		ID: "2501.00001", Title: "Nested", Summary: "S1",
		Authors: []string{"Ada", "Grace"}, PublishedAt: "2025-01-01T00:00:00Z", Upvotes: 120,
	}, got[0])
	assert.Equal(t, "Flat", got[1].Title)
	assert.Equal(t, []string{"Alan"}, got[1].Authors)
	assert.Equal(t, 3, got[1].Upvotes)
}

func TestFetcher_RetriesRateLimit(t *testing.T) {
	calls := 0
	withHF(t, func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`[]`))
	})

	got, err := (&Fetcher{MaxRetries: 2}).Fetch(context.Background(), "2025-01-02")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 2, calls)
}

func TestFetcher_HTTPError(t *testing.T) {
	withHF(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	})
	_, err := (&Fetcher{}).Fetch(context.Background(), "2025-01-02")
	assert.ErrorContains(t, err, "502")
}

func TestStore_Download(t *testing.T) {
	withHF(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`[{"paper": {"id": "2501.00001", "title": "One"}, "upvotes": 1}]`))
	})
	s := NewStore(t.TempDir(), nil)

	var out bytes.Buffer
	n, err := s.Download(context.Background(), &Fetcher{}, "2025-01-02", &out)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Contains(t, out.String(), "[1/1] 2501.00001")

	p, err := ReadMetadata(s.PaperDir("2025-01-02", "2501.00001"))
	require.NoError(t, err)
	assert.Equal(t, "One", p.Title)
	assert.Equal(t, 1, p.Upvotes)
}
