// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// ScoreBranch is the outcome of one independent scoring fork.
type ScoreBranch struct {
	// Reasoning is the free-text deliberation produced before the score.
	Reasoning string `json:"reasoning" yaml:"reasoning"`

	// Score is the parsed 1..5 value. Zero when the branch failed.
	Score int `json:"score" yaml:"score"`

	// Err describes why the branch was excluded from aggregation.
	Err string `json:"error,omitempty" yaml:"error,omitempty"`
}

// OK reports whether the branch produced a usable score.
func (b ScoreBranch) OK() bool {
	return b.Err == "" && b.Score >= 1 && b.Score <= 5
}

// AggregatedScore is the ranking result for one paper.
type AggregatedScore struct {
	PaperID string `json:"id" yaml:"id"`
	Title   string `json:"title" yaml:"title"`
	Upvotes int    `json:"upvotes" yaml:"upvotes"`

	// FinalScore is the mean of the usable branch scores rounded to one decimal.
	FinalScore float64 `json:"final_score" yaml:"final_score"`

	Branches []ScoreBranch `json:"branches" yaml:"branches"`

	// ExcludedForks counts branches left out of the mean.
	ExcludedForks int `json:"excluded_forks,omitempty" yaml:"excluded_forks,omitempty"`

	// Boosted is set when the popularity override replaced FinalScore.
	Boosted bool `json:"boosted,omitempty" yaml:"boosted,omitempty"`

	// Error is set for papers that could not be scored at all.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Degraded reports whether the paper has no real score.
func (s AggregatedScore) Degraded() bool {
	return s.Error != ""
}

// Reason joins the branch reasonings for display.
func (s AggregatedScore) Reason() string {
	var out string
	for _, b := range s.Branches {
		if b.Reasoning == "" {
			continue
		}
		if out != "" {
			out += "\n---\n"
		}
		out += b.Reasoning
	}
	return out
}
