// Package export - Writes evaluation results to disk.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-segeval/evaluator"
	"github.com/nvr-ai/go-segeval/scoring"
)

// DefaultFile is the result file name below the evaluation output directory.
const DefaultFile = "evaluationResults/resultPixelLevelSemanticLabeling.json"

// imageScores is the serialized form of evaluator.ImageStats.
type imageScores struct {
	NotIgnoredPixels uint64 `json:"nbNotIgnoredPixels"`
	ErroneousPixels  uint64 `json:"nbErroneousPixels"`
	CorrectPixels    uint64 `json:"nbCorrectPixels"`
}

// number maps undefined scores to JSON null.
func number(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}

func scores(s scoring.Scores) map[string]any {
	out := make(map[string]any, len(s))
	for _, score := range s {
		out[score.Name] = number(score.Value)
	}
	return out
}

// Document returns the result as a JSON ready object. Object keys are
// sorted on encoding; undefined scores are null.
func Document(r *evaluator.Result) map[string]any {
	priors := make(map[string]any, len(r.Priors))
	for name, v := range r.Priors {
		priors[name] = number(v)
	}

	doc := map[string]any{
		"confMatrix":                 r.ConfusionMatrix.Rows(),
		"priors":                     priors,
		"labels":                     r.Labels,
		"classScores":                scores(r.ClassScores),
		"classInstScores":            scores(r.ClassInstScores),
		"categoryScores":             scores(r.CategoryScores),
		"categoryInstScores":         scores(r.CategoryInstScores),
		"averageScoreClasses":        number(r.AverageScoreClasses),
		"averageScoreInstClasses":    number(r.AverageScoreInstClasses),
		"averageScoreCategories":     number(r.AverageScoreCategories),
		"averageScoreInstCategories": number(r.AverageScoreInstCategories),
	}

	if len(r.PerImageStats) > 0 {
		perImage := make(map[string]imageScores, len(r.PerImageStats))
		for name, s := range r.PerImageStats {
			perImage[name] = imageScores{
				NotIgnoredPixels: s.NotIgnoredPixels,
				ErroneousPixels:  s.ErroneousPixels,
				CorrectPixels:    s.CorrectPixels(),
			}
		}
		doc["perImageScores"] = perImage
	}
	return doc
}

// WriteJSON writes the result to path, creating parent directories.
//
// Arguments:
//   - path: The output file.
//   - r: The evaluation result.
//
// Returns:
//   - error: Error if encoding or writing fails.
func WriteJSON(path string, r *evaluator.Result) error {
	data, err := json.MarshalIndent(Document(r), "", "    ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal results")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "failed to create output directory")
	}

	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return errors.Wrap(err, "failed to write results file")
	}
	return nil
}

// WriteCSV writes one row per evaluable label with its IoU, nIoU and prior,
// followed by one row per category. Names are quoted as needed.
func WriteCSV(path string, r *evaluator.Result) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "failed to create output directory")
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "failed to create summary file")
	}
	defer f.Close()

	records := [][]string{{"Kind", "Name", "IoU", "nIoU", "Prior"}}
	for i, s := range r.ClassScores {
		records = append(records, []string{"class", s.Name,
			csvNumber(s.Value), csvNumber(r.ClassInstScores[i].Value), csvNumber(r.Priors[s.Name])})
	}
	for i, s := range r.CategoryScores {
		records = append(records, []string{"category", s.Name,
			csvNumber(s.Value), csvNumber(r.CategoryInstScores[i].Value), ""})
	}

	w := csv.NewWriter(f)
	if err := w.WriteAll(records); err != nil {
		return errors.Wrap(err, "failed to write summary file")
	}
	return errors.Wrap(f.Close(), "failed to close summary file")
}

func csvNumber(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return fmt.Sprintf("%.4f", v)
}
