// Package scoring - IoU and instance weighted IoU per label and category.
package scoring

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/nvr-ai/go-segeval/confusion"
	"github.com/nvr-ai/go-segeval/instances"
	"github.com/nvr-ai/go-segeval/taxonomy"
)

// Score is one named metric value. NaN marks an undefined score.
type Score struct {
	Name  string
	Value float64
}

// Scores is an ordered list of named metric values, in taxonomy order.
type Scores []Score

// Get returns the value of the named score.
func (s Scores) Get(name string) (float64, bool) {
	for _, score := range s {
		if score.Name == name {
			return score.Value, true
		}
	}
	return math.NaN(), false
}

// Map returns the scores keyed by name.
func (s Scores) Map() map[string]float64 {
	out := make(map[string]float64, len(s))
	for _, score := range s {
		out[score.Name] = score.Value
	}
	return out
}

// Average returns the mean of the defined scores, or NaN when every score is
// undefined.
func Average(scores Scores) float64 {
	valid := make([]float64, 0, len(scores))
	for _, score := range scores {
		if !math.IsNaN(score.Value) {
			valid = append(valid, score.Value)
		}
	}
	if len(valid) == 0 {
		return math.NaN()
	}
	return stat.Mean(valid, nil)
}

// Scorer computes scores from accumulated statistics. It never mutates them.
type Scorer struct {
	tax    *taxonomy.Taxonomy
	matrix *confusion.Matrix
	inst   *instances.Stats
}

// New returns a scorer.
//
// Arguments:
//   - tax: The taxonomy the statistics were accumulated with.
//   - matrix: The confusion matrix, sized tax.MaxID()+1.
//   - inst: The instance statistics; nil makes every instance score NaN.
//
// Returns:
//   - *Scorer: The scorer.
func New(tax *taxonomy.Taxonomy, matrix *confusion.Matrix, inst *instances.Stats) *Scorer {
	return &Scorer{tax: tax, matrix: matrix, inst: inst}
}

func iou(tp, fp, fn float64) float64 {
	denom := tp + fp + fn
	if denom == 0 {
		return math.NaN()
	}
	return tp / denom
}

// labelFalsePositives counts pixels predicted as id whose ground truth is
// another non-ignored label.
func (s *Scorer) labelFalsePositives(id int) uint64 {
	var fp uint64
	for _, l := range s.tax.EvalLabels() {
		if l == id || s.tax.IsIgnored(l) {
			continue
		}
		fp += s.matrix.At(l, id)
	}
	return fp
}

// categoryFalsePositives counts pixels predicted as one of ids whose ground
// truth is a non-ignored label of another category.
func (s *Scorer) categoryFalsePositives(category string, ids []int) uint64 {
	var rows []int
	for _, l := range s.tax.EvalLabels() {
		label, _ := s.tax.ByID(l)
		if label.IgnoreInEval || label.Category == category {
			continue
		}
		rows = append(rows, l)
	}
	return s.matrix.BlockSum(rows, ids)
}

// LabelIoU returns tp/(tp+fp+fn) of a label from the confusion matrix.
//
// Returns:
//   - float64: NaN for ignored or unknown labels and for labels that never
//     occur in ground truth nor prediction.
func (s *Scorer) LabelIoU(id int) float64 {
	if !s.tax.IsEvalLabel(id) || s.tax.IsIgnored(id) {
		return math.NaN()
	}
	tp := s.matrix.At(id, id)
	fn := s.matrix.RowSum(id) - tp
	fp := s.labelFalsePositives(id)
	return iou(float64(tp), float64(fp), float64(fn))
}

// LabelInstanceIoU returns the instance weighted IoU of a label. True
// positives and false negatives come from the weighted instance totals,
// false positives from the confusion matrix.
//
// Returns:
//   - float64: NaN for ignored labels and labels without instance statistics.
func (s *Scorer) LabelInstanceIoU(id int) float64 {
	if s.inst == nil || !s.tax.IsEvalLabel(id) || s.tax.IsIgnored(id) {
		return math.NaN()
	}
	label, _ := s.tax.ByID(id)
	class, ok := s.inst.Classes[label.Name]
	if !ok {
		return math.NaN()
	}
	fp := s.labelFalsePositives(id)
	return iou(class.TPWeighted, float64(fp), class.FNWeighted)
}

// CategoryIoU returns the IoU of a category, treating every non-ignored
// member label as one class.
func (s *Scorer) CategoryIoU(category string) float64 {
	var ids []int
	for _, l := range s.tax.CategoryLabels(category) {
		if !l.IgnoreInEval && s.tax.IsEvalLabel(l.ID) {
			ids = append(ids, l.ID)
		}
	}
	if len(ids) == 0 {
		return math.NaN()
	}

	tp := s.matrix.BlockSum(ids, ids)
	var rows uint64
	for _, id := range ids {
		rows += s.matrix.RowSum(id)
	}
	fn := rows - tp
	fp := s.categoryFalsePositives(category, ids)
	return iou(float64(tp), float64(fp), float64(fn))
}

// CategoryInstanceIoU returns the instance weighted IoU of a category.
//
// Returns:
//   - float64: NaN for categories without instance statistics.
func (s *Scorer) CategoryInstanceIoU(category string) float64 {
	if s.inst == nil {
		return math.NaN()
	}
	stats, ok := s.inst.Categories[category]
	if !ok {
		return math.NaN()
	}
	fp := s.categoryFalsePositives(category, stats.LabelIDs)
	return iou(stats.TPWeighted, float64(fp), stats.FNWeighted)
}

// Prior returns the share of counted pixels whose ground truth is id, or NaN
// when nothing was counted.
func (s *Scorer) Prior(id int) float64 {
	total := s.matrix.Sum()
	if total == 0 {
		return math.NaN()
	}
	return float64(s.matrix.RowSum(id)) / float64(total)
}

func (s *Scorer) perLabel(fn func(int) float64) Scores {
	ids := s.tax.EvalLabels()
	out := make(Scores, 0, len(ids))
	for _, id := range ids {
		label, _ := s.tax.ByID(id)
		out = append(out, Score{Name: label.Name, Value: fn(id)})
	}
	return out
}

func (s *Scorer) perCategory(fn func(string) float64) Scores {
	categories := s.tax.Categories()
	out := make(Scores, 0, len(categories))
	for _, c := range categories {
		out = append(out, Score{Name: c, Value: fn(c)})
	}
	return out
}

// ClassScores returns LabelIoU for every evaluable label, by ascending id.
func (s *Scorer) ClassScores() Scores { return s.perLabel(s.LabelIoU) }

// ClassInstanceScores returns LabelInstanceIoU for every evaluable label.
func (s *Scorer) ClassInstanceScores() Scores { return s.perLabel(s.LabelInstanceIoU) }

// CategoryScores returns CategoryIoU for every category, in taxonomy order.
func (s *Scorer) CategoryScores() Scores { return s.perCategory(s.CategoryIoU) }

// CategoryInstanceScores returns CategoryInstanceIoU for every category.
func (s *Scorer) CategoryInstanceScores() Scores { return s.perCategory(s.CategoryInstanceIoU) }

// Priors returns Prior for every evaluable label, by ascending id.
func (s *Scorer) Priors() Scores { return s.perLabel(s.Prior) }
