package evaluator

import (
	"github.com/nvr-ai/go-segeval/confusion"
	"github.com/nvr-ai/go-segeval/instances"
	"github.com/nvr-ai/go-segeval/scoring"
)

// ImageStats are the pixel accuracy counts of one prediction.
type ImageStats struct {
	// NotIgnoredPixels counts pixels whose ground truth is a scored label.
	NotIgnoredPixels uint64 `json:"nbNotIgnoredPixels"`
	// ErroneousPixels counts scored pixels the prediction gets wrong.
	ErroneousPixels uint64 `json:"nbErroneousPixels"`
}

// CorrectPixels counts scored pixels the prediction gets right.
func (s ImageStats) CorrectPixels() uint64 {
	return s.NotIgnoredPixels - s.ErroneousPixels
}

// Result is the outcome of one evaluation run. Score values are NaN where a
// score is undefined.
type Result struct {
	ConfusionMatrix *confusion.Matrix
	// Priors is the share of ground truth pixels per label name.
	Priors map[string]float64
	// Labels maps every evaluable label name to its id.
	Labels map[string]int

	ClassScores        scoring.Scores
	ClassInstScores    scoring.Scores
	CategoryScores     scoring.Scores
	CategoryInstScores scoring.Scores

	AverageScoreClasses        float64
	AverageScoreInstClasses    float64
	AverageScoreCategories     float64
	AverageScoreInstCategories float64

	// PerImageStats is keyed by pair name, nil unless pixel accuracy was
	// requested.
	PerImageStats map[string]ImageStats
	// Instances are the merged instance totals, nil unless instance scores
	// were requested.
	Instances *instances.Stats

	// Pixels is the number of pixels counted over all pairs.
	Pixels uint64
	// Pairs is the number of evaluated pairs.
	Pairs int
}
