// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package index

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/stevebottos/dxtr-cli/internal/papers"
	"github.com/stevebottos/dxtr-cli/pkg/types"
)

// ErrNoMarkdown is returned when a paper has no converted text to index.
var ErrNoMarkdown = errors.New("paper.md not found")

// ChunkOptions controls how Markdown is split into chunks.
type ChunkOptions struct {
	// Words is the window size in words (default 220).
	Words int
	// Overlap is the number of words shared by consecutive windows (default 40).
	Overlap int
}

func (o ChunkOptions) normalized() ChunkOptions {
	if o.Words <= 0 {
		o.Words = 220
	}
	if o.Overlap < 0 || o.Overlap >= o.Words {
		o.Overlap = o.Words / 5
	}
	return o
}

// section is a heading and its body text.
type section struct {
	heading string
	body    string
	page    int
}

// ChunkMarkdown splits content at headings and then into overlapping word
// windows. Chunk IDs depend only on the paper, section, position and text,
// so rebuilding unchanged content yields the same IDs.
func ChunkMarkdown(paperID, content string, opts ChunkOptions) []types.Chunk {
	opts = opts.normalized()
	step := opts.Words - opts.Overlap

	var chunks []types.Chunk
	for _, sec := range chunkByHeadings(content) {
		words := strings.Fields(sec.body)
		if len(words) == 0 {
			continue
		}
		for start := 0; start < len(words); start += step {
			end := start + opts.Words
			if end > len(words) {
				end = len(words)
			}
			text := strings.Join(words[start:end], " ")
			chunks = append(chunks, types.Chunk{
				ID:      stableID(paperID, sec.heading, len(chunks), text),
				PaperID: paperID,
				Section: sec.heading,
				Page:    sec.page,
				Text:    text,
			})
			if end == len(words) {
				break
			}
		}
	}
	return chunks
}

// chunkByHeadings splits Markdown at #, ## and ### headings, tracking
// <!-- page N --> markers.
func chunkByHeadings(content string) []section {
	lines := strings.Split(content, "\n")
	var sections []section
	currentHeading := ""
	currentPage := 1
	sectionPage := 1
	var bodyLines []string

	flush := func() {
		body := strings.Join(bodyLines, "\n")
		if strings.TrimSpace(body) != "" {
			sections = append(sections, section{heading: currentHeading, body: body, page: sectionPage})
		}
		bodyLines = nil
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)

		if page, ok := parsePageMarker(trimmed); ok {
			currentPage = page
			if len(bodyLines) == 0 {
				sectionPage = page
			}
			continue
		}

		if isHeading(trimmed) {
			flush()
			currentHeading = strings.TrimSpace(strings.TrimLeft(trimmed, "#"))
			sectionPage = currentPage
			continue
		}

		bodyLines = append(bodyLines, line)
	}

	flush()
	return sections
}

func isHeading(line string) bool {
	return strings.HasPrefix(line, "# ") || strings.HasPrefix(line, "## ") || strings.HasPrefix(line, "### ")
}

func parsePageMarker(line string) (int, bool) {
	if !strings.HasPrefix(line, "<!-- page ") || !strings.HasSuffix(line, " -->") {
		return 0, false
	}
	inner := strings.TrimSuffix(strings.TrimPrefix(line, "<!-- page "), " -->")
	page, err := strconv.Atoi(strings.TrimSpace(inner))
	if err != nil {
		return 0, false
	}
	return page, true
}

func stableID(paperID, section string, ordinal int, text string) string {
	h := sha256.New()
	h.Write([]byte(paperID))
	h.Write([]byte{0})
	h.Write([]byte(section))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(ordinal)))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return fmt.Sprintf("%x", h.Sum(nil))[:12]
}

// Build indexes paperDir/paper.md into paperDir/paper.index and returns
// the number of chunks written.
func Build(ctx context.Context, paperDir, paperID string, opts ChunkOptions) (int, error) {
	mdPath := filepath.Join(paperDir, papers.MarkdownFile)
	content, err := os.ReadFile(mdPath)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, fmt.Errorf("%w: %s", ErrNoMarkdown, mdPath)
		}
		return 0, fmt.Errorf("reading %s: %w", mdPath, err)
	}

	chunks := ChunkMarkdown(paperID, string(content), opts)
	ix, err := Create(filepath.Join(paperDir, papers.IndexDir), paperID)
	if err != nil {
		return 0, err
	}
	defer ix.Close()

	if err := ix.Replace(ctx, chunks); err != nil {
		return 0, err
	}
	return len(chunks), nil
}

// BatchSummary reports the outcome of BuildDate.
type BatchSummary struct {
	Built   int
	Skipped int
	Missing int
	Failed  int
}

// Total returns the number of papers considered.
func (s BatchSummary) Total() int {
	return s.Built + s.Skipped + s.Missing + s.Failed
}

// HasFailures reports whether any paper failed to index.
func (s BatchSummary) HasFailures() bool {
	return s.Failed > 0
}

// BuildDate indexes every paper of date whose paper.md is newer than its
// index. Papers without paper.md are counted as missing. Progress lines
// are written to w.
func BuildDate(ctx context.Context, store *papers.Store, date string, opts ChunkOptions, force bool, w io.Writer) (BatchSummary, error) {
	var summary BatchSummary
	list, err := store.LoadDate(date)
	if err != nil {
		return summary, err
	}

	for i, p := range list {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		dir := store.PaperDir(date, p.ID)
		prefix := fmt.Sprintf("  [%d/%d] %s:", i+1, len(list), p.ID)

		mdPath := filepath.Join(dir, papers.MarkdownFile)
		dbPath := filepath.Join(dir, papers.IndexDir, DBFile)
		changed, err := hasChanged(mdPath, dbPath)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				fmt.Fprintf(w, "%s no paper.md, skipping\n", prefix)
				summary.Missing++
				continue
			}
			fmt.Fprintf(w, "%s %v\n", prefix, err)
			summary.Failed++
			continue
		}
		if !changed && !force {
			fmt.Fprintf(w, "%s up to date\n", prefix)
			summary.Skipped++
			continue
		}

		n, err := Build(ctx, dir, p.ID, opts)
		if err != nil {
			fmt.Fprintf(w, "%s failed: %v\n", prefix, err)
			summary.Failed++
			continue
		}
		fmt.Fprintf(w, "%s %d chunks\n", prefix, n)
		summary.Built++
	}
	return summary, nil
}

func hasChanged(mdPath, outPath string) (bool, error) {
	mdInfo, err := os.Stat(mdPath)
	if err != nil {
		return false, err
	}
	outInfo, err := os.Stat(outPath)
	if err != nil {
		if os.IsNotExist(err) {
			return true, nil
		}
		return false, fmt.Errorf("stat index %s: %w", outPath, err)
	}
	return mdInfo.ModTime().After(outInfo.ModTime()), nil
}
