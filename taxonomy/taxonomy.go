// Package taxonomy - Label and category tables used for evaluation.
package taxonomy

import (
	"sort"

	"github.com/nvr-ai/go-segeval/errs"
)

// Label is an atomic semantic class.
type Label struct {
	// ID is the label id found in ground truth images. Negative ids are
	// meta labels that are never evaluated.
	ID int `json:"id" yaml:"id"`
	// Name is the human readable, unique label name.
	Name string `json:"name" yaml:"name"`
	// TrainID is the class index used by models (255 when not trained on).
	TrainID int `json:"trainId" yaml:"trainId"`
	// Category names the group the label belongs to.
	Category string `json:"category" yaml:"category"`
	// CategoryID is the numeric id of the category.
	CategoryID int `json:"categoryId" yaml:"categoryId"`
	// HasInstances is true when individual objects of this label are annotated.
	HasInstances bool `json:"hasInstances" yaml:"hasInstances"`
	// IgnoreInEval excludes the label from scoring. Its pixels still count as
	// false positives for other labels.
	IgnoreInEval bool `json:"ignoreInEval" yaml:"ignoreInEval"`
}

// Taxonomy is the immutable label table of one evaluation run.
//
// A Taxonomy is safe for concurrent use; nothing mutates it after New
// returns.
type Taxonomy struct {
	labels       []Label
	byID         map[int]int
	byName       map[string]int
	categories   []string
	members      map[string][]Label
	evalLabels   []int
	maxID        int
	avgClassSize map[string]float64
}

// New builds a taxonomy from a label table and the average instance size
// prior.
//
// Arguments:
//   - labels: The label table, in display order.
//   - avgClassSize: Expected pixel area of one instance per class name.
//
// Returns:
//   - *Taxonomy: The validated taxonomy.
//   - error: errs.ErrConfig when ids or names repeat, when no label is
//     evaluable or when an instance class has no positive size prior.
func New(labels []Label, avgClassSize map[string]float64) (*Taxonomy, error) {
	t := &Taxonomy{
		labels:       make([]Label, len(labels)),
		byID:         make(map[int]int, len(labels)),
		byName:       make(map[string]int, len(labels)),
		members:      make(map[string][]Label),
		avgClassSize: make(map[string]float64, len(avgClassSize)),
		maxID:        -1,
	}
	copy(t.labels, labels)

	for i, l := range t.labels {
		if _, exists := t.byID[l.ID]; exists {
			return nil, errs.Config("duplicate label id %d", l.ID)
		}
		if l.Name == "" {
			return nil, errs.Config("label id %d has no name", l.ID)
		}
		if _, exists := t.byName[l.Name]; exists {
			return nil, errs.Config("duplicate label name %q", l.Name)
		}
		if l.Category == "" {
			return nil, errs.Config("label %q has no category", l.Name)
		}
		t.byID[l.ID] = i
		t.byName[l.Name] = i

		if _, seen := t.members[l.Category]; !seen {
			t.categories = append(t.categories, l.Category)
		}
		t.members[l.Category] = append(t.members[l.Category], l)

		if l.ID >= 0 {
			t.evalLabels = append(t.evalLabels, l.ID)
			if l.ID > t.maxID {
				t.maxID = l.ID
			}
		}
	}
	if len(t.evalLabels) == 0 {
		return nil, errs.Config("taxonomy has no label with id >= 0")
	}
	sort.Ints(t.evalLabels)

	for name, size := range avgClassSize {
		t.avgClassSize[name] = size
	}
	for _, l := range t.labels {
		if l.ID < 0 || !l.HasInstances || l.IgnoreInEval {
			continue
		}
		if size, ok := t.avgClassSize[l.Name]; !ok || size <= 0 {
			return nil, errs.Config("instance class %q has no positive average class size", l.Name)
		}
	}

	return t, nil
}

// Labels returns the label table in declaration order.
func (t *Taxonomy) Labels() []Label {
	out := make([]Label, len(t.labels))
	copy(out, t.labels)
	return out
}

// ByID looks up a label by id.
func (t *Taxonomy) ByID(id int) (Label, bool) {
	i, ok := t.byID[id]
	if !ok {
		return Label{}, false
	}
	return t.labels[i], true
}

// ByName looks up a label by name.
func (t *Taxonomy) ByName(name string) (Label, bool) {
	i, ok := t.byName[name]
	if !ok {
		return Label{}, false
	}
	return t.labels[i], true
}

// Categories returns the category names in the order they first appear in
// the label table.
func (t *Taxonomy) Categories() []string {
	out := make([]string, len(t.categories))
	copy(out, t.categories)
	return out
}

// CategoryLabels returns the member labels of a category in table order.
func (t *Taxonomy) CategoryLabels(category string) []Label {
	members := t.members[category]
	out := make([]Label, len(members))
	copy(out, members)
	return out
}

// EvalLabels returns every label id >= 0 in ascending order, ignored labels
// included.
func (t *Taxonomy) EvalLabels() []int {
	out := make([]int, len(t.evalLabels))
	copy(out, t.evalLabels)
	return out
}

// MaxID returns the largest evaluable label id. The confusion matrix has
// MaxID()+1 rows and columns.
func (t *Taxonomy) MaxID() int {
	return t.maxID
}

// IsEvalLabel reports whether id is an evaluable label id.
func (t *Taxonomy) IsEvalLabel(id int) bool {
	if id < 0 {
		return false
	}
	_, ok := t.byID[id]
	return ok
}

// IsIgnored reports whether id is excluded from scoring. Unknown ids are
// reported as ignored.
func (t *Taxonomy) IsIgnored(id int) bool {
	l, ok := t.ByID(id)
	return !ok || l.IgnoreInEval
}

// EvalMask returns a table of length MaxID()+1 where entry i is true when i
// is an evaluable label id.
func (t *Taxonomy) EvalMask() []bool {
	mask := make([]bool, t.maxID+1)
	for _, id := range t.evalLabels {
		mask[id] = true
	}
	return mask
}

// AvgClassSize returns the expected pixel area of one instance of the named
// class.
func (t *Taxonomy) AvgClassSize(name string) (float64, bool) {
	size, ok := t.avgClassSize[name]
	return size, ok
}

// InstanceCategories returns, in category order, the categories where every
// member label with id >= 0 has instances, together with those member ids.
// Ignored members are kept: their pixels still belong to the category.
func (t *Taxonomy) InstanceCategories() ([]string, map[string][]int) {
	var names []string
	ids := make(map[string][]int)
	for _, category := range t.categories {
		var labelIDs []int
		allInstances := true
		for _, l := range t.members[category] {
			if l.ID < 0 {
				continue
			}
			if !l.HasInstances {
				allInstances = false
				break
			}
			labelIDs = append(labelIDs, l.ID)
		}
		if !allInstances || len(labelIDs) == 0 {
			continue
		}
		names = append(names, category)
		ids[category] = labelIDs
	}
	return names, ids
}

// TrainIDToID returns a lookup from model class index to label id. Labels
// with a train id outside [0, 255) are skipped; unmapped indexes hold -1.
func (t *Taxonomy) TrainIDToID() []int {
	size := 0
	for _, l := range t.labels {
		if l.TrainID >= 0 && l.TrainID < 255 && l.TrainID+1 > size {
			size = l.TrainID + 1
		}
	}
	lut := make([]int, size)
	for i := range lut {
		lut[i] = -1
	}
	for _, l := range t.labels {
		if l.TrainID >= 0 && l.TrainID < 255 && l.ID >= 0 && lut[l.TrainID] < 0 {
			lut[l.TrainID] = l.ID
		}
	}
	return lut
}
