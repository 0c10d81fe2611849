// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// Chunk is a passage of a paper held in its retrieval index.
type Chunk struct {
	// ID is stable across rebuilds of unchanged content.
	ID string `json:"chunk_id" yaml:"chunk_id"`

	// PaperID identifies the source paper.
	PaperID string `json:"paper_id" yaml:"paper_id"`

	// Section is the nearest preceding heading, empty for front matter.
	Section string `json:"section,omitempty" yaml:"section,omitempty"`

	// Page is the page number from the last page marker seen (1 when absent).
	Page int `json:"page" yaml:"page"`

	// Text is the passage content.
	Text string `json:"text" yaml:"text"`

	// Score is the retrieval relevance; higher is better.
	Score float64 `json:"score,omitempty" yaml:"score,omitempty"`
}

// ResearchReport is the outcome of one multi-query research request.
type ResearchReport struct {
	PaperID string `json:"paper_id" yaml:"paper_id"`
	Query   string `json:"query" yaml:"query"`

	// Questions are the exploration questions actually used.
	Questions []string `json:"questions" yaml:"questions"`

	// Chunks are the unique retrieved chunks in discovery order.
	Chunks []Chunk `json:"chunks" yaml:"chunks"`

	// UniqueChunks is len(Chunks) after deduplication; RetrievedChunks
	// counts every chunk returned before it.
	UniqueChunks    int `json:"unique_chunks" yaml:"unique_chunks"`
	RetrievedChunks int `json:"retrieved_chunks" yaml:"retrieved_chunks"`

	// TotalChunks is the number of chunks in the paper's index.
	TotalChunks int `json:"total_chunks" yaml:"total_chunks"`

	Answer string `json:"answer" yaml:"answer"`
}
