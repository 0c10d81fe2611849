// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package papers manages the on-disk paper workspace:
//
//	<papers_dir>/<YYYY-MM-DD>/<paper_id>/metadata.json
//	                                    /paper.md
//	                                    /paper.index/
//
// and fetches daily listings from Hugging Face.
package papers

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/stevebottos/dxtr-cli/internal/logging"
	"github.com/stevebottos/dxtr-cli/pkg/types"
)

const (
	// MetadataFile is the per-paper metadata file name.
	MetadataFile = "metadata.json"
	// MarkdownFile is the converted paper text.
	MarkdownFile = "paper.md"
	// IndexDir is the per-paper retrieval index directory.
	IndexDir = "paper.index"
	// RankingsFile is written into a date directory after ranking.
	RankingsFile = "rankings.yaml"

	dateLayout = "2006-01-02"
)

// ErrPaperNotFound is returned by Find when no directory matches.
var ErrPaperNotFound = errors.New("paper not found")

// Store reads and writes the paper workspace rooted at a directory.
type Store struct {
	root   string
	logger *zap.Logger
}

// NewStore returns a Store rooted at root. The directory need not exist.
func NewStore(root string, logger *zap.Logger) *Store {
	return &Store{root: root, logger: logging.OrNop(logger)}
}

// Root returns the workspace root.
func (s *Store) Root() string { return s.root }

// DateDir returns the directory holding one day's papers.
func (s *Store) DateDir(date string) string {
	return filepath.Join(s.root, date)
}

// PaperDir returns the directory of one paper on one day.
func (s *Store) PaperDir(date, id string) string {
	return filepath.Join(s.root, date, id)
}

// Save writes p's metadata under date, creating directories as needed.
func (s *Store) Save(date string, p types.Paper) error {
	dir := s.PaperDir(date, p.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding metadata for %s: %w", p.ID, err)
	}
	return os.WriteFile(filepath.Join(dir, MetadataFile), data, 0o644)
}

// ReadMetadata loads metadata.json from a paper directory.
func ReadMetadata(dir string) (types.Paper, error) {
	var p types.Paper
	data, err := os.ReadFile(filepath.Join(dir, MetadataFile))
	if err != nil {
		return p, err
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("parsing %s: %w", filepath.Join(dir, MetadataFile), err)
	}
	if p.ID == "" {
		p.ID = filepath.Base(dir)
	}
	return p, nil
}

// LoadDate returns every paper with readable metadata for date, sorted by
// ID. A missing date directory yields no papers and no error. Unreadable
// metadata files are skipped with a warning.
func (s *Store) LoadDate(date string) ([]types.Paper, error) {
	entries, err := os.ReadDir(s.DateDir(date))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", s.DateDir(date), err)
	}

	var out []types.Paper
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(s.DateDir(date), e.Name())
		p, err := ReadMetadata(dir)
		if err != nil {
			if !os.IsNotExist(err) {
				s.logger.Warn("skipping paper with unreadable metadata", zap.String("dir", dir), zap.Error(err))
			}
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Find locates the directory of paper id. With a date only that day is
// searched; otherwise dates are searched newest first.
func (s *Store) Find(id, date string) (string, error) {
	if date != "" {
		dir := s.PaperDir(date, id)
		if isDir(dir) {
			return dir, nil
		}
		return "", fmt.Errorf("%w: %s on %s", ErrPaperNotFound, id, date)
	}

	dates, err := s.Dates()
	if err != nil {
		return "", err
	}
	for i := len(dates) - 1; i >= 0; i-- {
		dir := s.PaperDir(dates[i], id)
		if isDir(dir) {
			return dir, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrPaperNotFound, id)
}

// Dates returns every date directory in ascending order.
func (s *Store) Dates() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", s.root, err)
	}
	var dates []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := time.Parse(dateLayout, e.Name()); err != nil {
			continue
		}
		dates = append(dates, e.Name())
	}
	sort.Strings(dates)
	return dates, nil
}

// AvailableDates counts papers with metadata for each of the last days
// days ending at now. Days without papers are omitted.
func (s *Store) AvailableDates(now time.Time, days int) map[string]int {
	out := make(map[string]int)
	for i := 0; i < days; i++ {
		date := now.AddDate(0, 0, -i).Format(dateLayout)
		entries, err := os.ReadDir(s.DateDir(date))
		if err != nil {
			continue
		}
		n := 0
		for _, e := range entries {
			if e.IsDir() && fileExists(filepath.Join(s.DateDir(date), e.Name(), MetadataFile)) {
				n++
			}
		}
		if n > 0 {
			out[date] = n
		}
	}
	return out
}

// FormatAvailableDates renders AvailableDates output, newest first.
func FormatAvailableDates(available map[string]int) string {
	if len(available) == 0 {
		return "No papers downloaded yet. Run 'dxtr papers fetch' to download a day's papers."
	}
	dates := make([]string, 0, len(available))
	for d := range available {
		dates = append(dates, d)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))

	var b strings.Builder
	b.WriteString("Available papers:")
	for _, d := range dates {
		fmt.Fprintf(&b, "\n  %s: %d papers", d, available[d])
	}
	return b.String()
}

// Today returns now formatted as a date directory name.
func Today(now time.Time) string {
	return now.Format(dateLayout)
}

// ValidDate reports whether date is YYYY-MM-DD.
func ValidDate(date string) bool {
	_, err := time.Parse(dateLayout, date)
	return err == nil
}

// NormalizeID turns user-supplied paper references such as
// "https://arxiv.org/abs/2512.01234", "arxiv:2512.01234" or
// "2512.01234.pdf" into a bare ID.
func NormalizeID(ref string) string {
	id := strings.TrimSpace(ref)
	id = strings.TrimSuffix(id, "/")
	if i := strings.LastIndex(id, "/"); i >= 0 {
		id = id[i+1:]
	}
	if i := strings.LastIndex(id, ":"); i >= 0 {
		id = id[i+1:]
	}
	return strings.TrimSuffix(id, ".pdf")
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
