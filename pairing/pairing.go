// Package pairing - Cityscapes ground truth discovery and prediction
// matching.
package pairing

import (
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-segeval/errs"
	"github.com/nvr-ai/go-segeval/util"
)

// DefaultSearch is the ground truth glob below the dataset's gtFine/val
// directory.
const DefaultSearch = "*/*_gtFine_labelIds.png"

// FileInfo are the fields of a Cityscapes file name such as
// aachen_000000_000019_gtFine_labelIds.png.
type FileInfo struct {
	City     string
	Sequence string
	Frame    string
	Type     string
	Type2    string
	Ext      string
}

// ParseFileInfo splits a Cityscapes file name into its fields.
//
// Arguments:
//   - path: A file path whose base name has five or six fields.
//
// Returns:
//   - FileInfo: The parsed fields. Type2 is empty for five field names.
//   - error: errs.ErrPairing when the name does not follow the scheme.
func ParseFileInfo(path string) (FileInfo, error) {
	base := filepath.Base(path)
	parts := strings.Split(base, "_")
	last := parts[len(parts)-1]
	parts = parts[:len(parts)-1]
	if dot := strings.IndexByte(last, '.'); dot >= 0 {
		parts = append(parts, last[:dot], last[dot+1:])
	} else {
		parts = append(parts, last)
	}

	switch len(parts) {
	case 5:
		return FileInfo{City: parts[0], Sequence: parts[1], Frame: parts[2], Type: parts[3], Ext: parts[4]}, nil
	case 6:
		return FileInfo{City: parts[0], Sequence: parts[1], Frame: parts[2], Type: parts[3], Type2: parts[4], Ext: parts[5]}, nil
	default:
		return FileInfo{}, errs.Pairing("cannot parse given filename (%s), expected city_sequence_frame_type[_type2].ext", base)
	}
}

// FindGroundTruth globs the ground truth files below dir.
//
// Arguments:
//   - dir: The ground truth root.
//   - search: A glob relative to dir, DefaultSearch when empty.
//
// Returns:
//   - []string: The matching files, sorted.
//   - error: errs.ErrPairing when nothing matches.
func FindGroundTruth(dir, search string) ([]string, error) {
	if search == "" {
		search = DefaultSearch
	}
	pattern := filepath.Join(dir, search)
	files, err := filepath.Glob(pattern)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid ground truth search %s", pattern)
	}
	if len(files) == 0 {
		return nil, errs.Pairing("cannot find any ground truth images to use for evaluation, searched for %s", pattern)
	}
	sort.Strings(files)
	return files, nil
}

// InstancePath returns the instance id image next to a labelIds ground truth
// file.
func InstancePath(groundTruth string) string {
	return strings.ReplaceAll(groundTruth, "labelIds", "instanceIds")
}

// Matcher finds the prediction of every ground truth file below a prediction
// root. The root is walked once, on first use.
type Matcher struct {
	// Root is the prediction directory.
	Root string

	once sync.Once
	walk []util.DirFiles
	err  error
}

// NewMatcher returns a matcher over the predictions below root.
func NewMatcher(root string) *Matcher {
	return &Matcher{Root: root}
}

func (m *Matcher) load() error {
	m.once.Do(func() {
		m.walk, m.err = util.WalkFiles(m.Root)
	})
	return m.err
}

// Match returns the single prediction named <city>_<seq>_<frame>*.png for a
// ground truth file.
//
// Returns:
//   - string: The prediction path.
//   - error: errs.ErrPairing when there is no prediction or more than one.
func (m *Matcher) Match(groundTruth string) (string, error) {
	if err := m.load(); err != nil {
		return "", err
	}

	info, err := ParseFileInfo(groundTruth)
	if err != nil {
		return "", err
	}
	pattern := info.City + "_" + info.Sequence + "_" + info.Frame + "*.png"

	var found string
	for _, dir := range m.walk {
		for _, name := range dir.Files {
			ok, err := filepath.Match(pattern, name)
			if err != nil {
				return "", errors.Wrapf(err, "invalid prediction pattern %s", pattern)
			}
			if !ok {
				continue
			}
			if found != "" {
				return "", errs.Pairing("found multiple predictions for ground truth %s", groundTruth)
			}
			found = filepath.Join(dir.Dir, name)
		}
	}
	if found == "" {
		return "", errs.Pairing("found no prediction for ground truth %s", groundTruth)
	}
	return found, nil
}

// MatchAll matches every ground truth file, in order.
//
// Returns:
//   - []string: predictions[i] belongs to groundTruths[i].
//   - error: The first Match error.
func (m *Matcher) MatchAll(groundTruths []string) ([]string, error) {
	predictions := make([]string, len(groundTruths))
	for i, gt := range groundTruths {
		p, err := m.Match(gt)
		if err != nil {
			return nil, err
		}
		predictions[i] = p
	}
	return predictions, nil
}
