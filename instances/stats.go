// Package instances - Size weighted per instance true positive and false
// negative totals, the input of the nIoU scores.
package instances

import (
	"sort"
	"strconv"

	"github.com/nvr-ai/go-segeval/errs"
	"github.com/nvr-ai/go-segeval/images"
	"github.com/nvr-ai/go-segeval/taxonomy"
)

// MinInstanceID is the boundary above which an instance id denotes a real
// object. Ids up to and including it are background or crowd regions.
const MinInstanceID = 1000

// Totals are the running pixel counts of one class or category.
type Totals struct {
	TP         uint64  `json:"tp"`
	FN         uint64  `json:"fn"`
	TPWeighted float64 `json:"tpWeighted"`
	FNWeighted float64 `json:"fnWeighted"`
}

func (t *Totals) add(tp, fn uint64, weight float64) {
	t.TP += tp
	t.FN += fn
	t.TPWeighted += float64(tp) * weight
	t.FNWeighted += float64(fn) * weight
}

func (t *Totals) merge(other Totals) {
	t.TP += other.TP
	t.FN += other.FN
	t.TPWeighted += other.TPWeighted
	t.FNWeighted += other.FNWeighted
}

// ClassStats are the totals of one instance-eligible class.
type ClassStats struct {
	Totals
}

// CategoryStats are the totals of one instance-eligible category, along with
// the label ids a prediction may carry to count as a category hit.
type CategoryStats struct {
	Totals
	LabelIDs []int `json:"labelIds"`
}

// Stats holds the instance totals of an evaluation run, or of one worker's
// share of it.
type Stats struct {
	Classes    map[string]*ClassStats    `json:"classes"`
	Categories map[string]*CategoryStats `json:"categories"`
}

// New returns empty statistics with an entry for every instance-eligible,
// non-ignored class and every category whose members all have instances.
//
// Arguments:
//   - tax: The label taxonomy.
//
// Returns:
//   - *Stats: The zeroed statistics.
func New(tax *taxonomy.Taxonomy) *Stats {
	s := &Stats{
		Classes:    make(map[string]*ClassStats),
		Categories: make(map[string]*CategoryStats),
	}
	for _, l := range tax.Labels() {
		if l.HasInstances && !l.IgnoreInEval {
			s.Classes[l.Name] = &ClassStats{}
		}
	}
	names, ids := tax.InstanceCategories()
	for _, name := range names {
		s.Categories[name] = &CategoryStats{LabelIDs: ids[name]}
	}
	return s
}

// Merge adds the totals of other into s, field by field. Entries missing in s
// are created.
func (s *Stats) Merge(other *Stats) {
	for name, c := range other.Classes {
		dst, ok := s.Classes[name]
		if !ok {
			dst = &ClassStats{}
			s.Classes[name] = dst
		}
		dst.merge(c.Totals)
	}
	for name, c := range other.Categories {
		dst, ok := s.Categories[name]
		if !ok {
			dst = &CategoryStats{LabelIDs: append([]int(nil), c.LabelIDs...)}
			s.Categories[name] = dst
		}
		dst.merge(c.Totals)
	}
}

// instance is the per image tally of one instance id.
type instance struct {
	category string
	size     uint64
	tp       uint64
	catTP    uint64
}

// Accumulate adds the instances of one image pair to s.
//
// Every instance id above MinInstanceID is attributed to label id/1000.
// Instances of ignored labels are skipped. Each instance contributes its true
// positive and false negative pixels, weighted by the class's average size
// over the instance size, to its class and, if eligible, to its category.
//
// Arguments:
//   - s: The statistics to add to.
//   - tax: The label taxonomy s was built from.
//   - pred: Predicted label ids.
//   - inst: Ground truth instance ids, same dimensions as pred.
//
// Returns:
//   - error: errs.ErrUnknownLabel when an instance maps to a label outside
//     the taxonomy or without class statistics, errs.ErrInputMismatch when
//     the maps differ in size. s is untouched on error.
func Accumulate(s *Stats, tax *taxonomy.Taxonomy, pred, inst *images.LabelMap) error {
	if pred == nil || inst == nil {
		return errs.InputMismatch("missing prediction or instance map")
	}
	if !pred.SameSize(inst) {
		return errs.InputMismatch("prediction is %dx%d, instance map is %dx%d",
			pred.Width, pred.Height, inst.Width, inst.Height)
	}

	// categoryOf maps a predicted id to the instance category it hits, or "".
	categoryOf := make([]string, tax.MaxID()+1)
	for name, c := range s.Categories {
		for _, id := range c.LabelIDs {
			if id >= 0 && id < len(categoryOf) {
				categoryOf[id] = name
			}
		}
	}

	tallies := make(map[int32]*instance)
	for i, id := range inst.Pix {
		if id <= MinInstanceID {
			continue
		}
		t, ok := tallies[id]
		if !ok {
			t = &instance{}
			if l, ok := tax.ByID(int(id / 1000)); ok {
				t.category = l.Category
			}
			tallies[id] = t
		}
		t.size++

		p := pred.Pix[i]
		if p == id/1000 {
			t.tp++
		}
		if p >= 0 && int(p) < len(categoryOf) && categoryOf[p] != "" && categoryOf[p] == t.category {
			t.catTP++
		}
	}

	ids := make([]int32, 0, len(tallies))
	for id := range tallies {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	// Validate every instance before touching s.
	type update struct {
		class    *ClassStats
		category *CategoryStats
		tally    *instance
		weight   float64
	}
	updates := make([]update, 0, len(ids))
	for _, id := range ids {
		labelID := int(id / 1000)
		l, ok := tax.ByID(labelID)
		if !ok {
			return errs.UnknownLabel(labelID, "derived from instance id "+strconv.Itoa(int(id)))
		}
		if l.IgnoreInEval {
			continue
		}
		class, ok := s.Classes[l.Name]
		if !ok {
			return errs.UnknownLabel(labelID, "instance of "+l.Name+" which has no instances")
		}
		avg, _ := tax.AvgClassSize(l.Name)
		t := tallies[id]
		updates = append(updates, update{
			class:    class,
			category: s.Categories[l.Category],
			tally:    t,
			weight:   avg / float64(t.size),
		})
	}

	for _, u := range updates {
		u.class.add(u.tally.tp, u.tally.size-u.tally.tp, u.weight)
		if u.category != nil {
			u.category.add(u.tally.catTP, u.tally.size-u.tally.catTP, u.weight)
		}
	}
	return nil
}
