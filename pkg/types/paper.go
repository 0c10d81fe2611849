// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// Paper holds the metadata stored in <papers_dir>/<date>/<id>/metadata.json.
// Field names follow the Hugging Face daily papers feed.
type Paper struct {
	// ID is the arXiv identifier (e.g. "2512.01234").
	ID string `json:"id" yaml:"id"`

	// Title is the paper title.
	Title string `json:"title" yaml:"title"`

	// Summary is the paper abstract.
	Summary string `json:"summary" yaml:"summary"`

	// Authors lists author names in feed order.
	Authors []string `json:"authors" yaml:"authors"`

	// PublishedAt is the publication timestamp as reported by the feed.
	PublishedAt string `json:"publishedAt" yaml:"published_at"`

	// Upvotes is the community upvote count on the day of listing.
	Upvotes int `json:"upvotes" yaml:"upvotes"`
}

// DisplayTitle returns the title, or the ID when the title is empty.
func (p Paper) DisplayTitle() string {
	if p.Title != "" {
		return p.Title
	}
	return p.ID
}
