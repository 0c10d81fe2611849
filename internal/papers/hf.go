// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package papers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/stevebottos/dxtr-cli/internal/httputil"
	"github.com/stevebottos/dxtr-cli/pkg/types"
)

// hfDailyPapersURL is the Hugging Face daily papers endpoint. Tests
// override it.
var hfDailyPapersURL = "https://huggingface.co/api/daily_papers"

// hfItem is one entry of the daily papers feed. The paper fields are
// usually nested under "paper"; older responses put them at the top level.
type hfItem struct {
	Paper   *hfPaper `json:"paper"`
	Upvotes int      `json:"upvotes"`
	hfPaper
}

type hfPaper struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Summary     string     `json:"summary"`
	Authors     []hfAuthor `json:"authors"`
	PublishedAt string     `json:"publishedAt"`
	Upvotes     int        `json:"upvotes"`
}

// hfAuthor accepts either {"name": "..."} objects or bare strings.
type hfAuthor string

func (a *hfAuthor) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*a = hfAuthor(s)
		return nil
	}
	var obj struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*a = hfAuthor(obj.Name)
	return nil
}

// Fetcher downloads daily paper listings.
type Fetcher struct {
	Client     *http.Client
	MaxRetries int
}

// Fetch returns the papers listed for date.
func (f *Fetcher) Fetch(ctx context.Context, date string) ([]types.Paper, error) {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}

	u := hfDailyPapersURL + "?date=" + url.QueryEscape(date)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := httputil.DoWithRetry(ctx, client, req, f.MaxRetries)
	if err != nil {
		return nil, fmt.Errorf("fetching daily papers for %s: %w", date, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("daily papers API returned %d: %s", resp.StatusCode, body)
	}

	var items []hfItem
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, fmt.Errorf("decoding daily papers response: %w", err)
	}

	out := make([]types.Paper, 0, len(items))
	for _, it := range items {
		p := it.hfPaper
		if it.Paper != nil {
			p = *it.Paper
		}
		if p.ID == "" {
			continue
		}
		upvotes := it.Upvotes
		if upvotes == 0 {
			upvotes = p.Upvotes
		}
		authors := make([]string, 0, len(p.Authors))
		for _, a := range p.Authors {
			if a != "" {
				authors = append(authors, string(a))
			}
		}
		out = append(out, types.Paper{
			ID:          p.ID,
			Title:       p.Title,
			Summary:     p.Summary,
			Authors:     authors,
			PublishedAt: p.PublishedAt,
			Upvotes:     upvotes,
		})
	}
	return out, nil
}

// Download fetches date's listing and saves each paper's metadata.
// Progress lines are written to w.
func (s *Store) Download(ctx context.Context, f *Fetcher, date string, w io.Writer) (int, error) {
	fmt.Fprintf(w, "Fetching papers for %s...\n", date)
	list, err := f.Fetch(ctx, date)
	if err != nil {
		return 0, err
	}
	if len(list) == 0 {
		fmt.Fprintf(w, "No papers found for %s\n", date)
		return 0, nil
	}

	for i, p := range list {
		if err := s.Save(date, p); err != nil {
			return i, err
		}
		fmt.Fprintf(w, "  [%d/%d] %s  %s\n", i+1, len(list), p.ID, truncate(p.Title, 60))
	}
	fmt.Fprintf(w, "Saved %d papers to %s\n", len(list), s.DateDir(date))
	return len(list), nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
