package evaluator

import (
	"context"

	"github.com/nvr-ai/go-segeval/errs"
	"github.com/nvr-ai/go-segeval/images"
)

// Pair is one decoded ground truth and prediction, with optional instance ids.
type Pair struct {
	// Name keys the per-image statistics, usually the prediction path. It
	// must be unique when those are recorded. Empty names become "#<index>".
	Name        string
	GroundTruth *images.LabelMap
	Prediction  *images.LabelMap
	// Instances holds labelId*1000+index per pixel, or nil.
	Instances *images.LabelMap
}

// PairLoader yields the pairs of an evaluation run by index.
//
// Load may be called concurrently for different indexes.
type PairLoader interface {
	Len() int
	Load(ctx context.Context, i int) (Pair, error)
}

// SlicePairs serves pairs that are already in memory.
type SlicePairs []Pair

// Len implements PairLoader.
func (s SlicePairs) Len() int { return len(s) }

// Load implements PairLoader.
func (s SlicePairs) Load(_ context.Context, i int) (Pair, error) {
	return s[i], nil
}

// FilePair names the image files of one pair.
type FilePair struct {
	GroundTruth string `json:"groundTruth"`
	Prediction  string `json:"prediction"`
	// Instances is the instance id image, empty when there is none.
	Instances string `json:"instances,omitempty"`
}

// FilePairs decodes pairs from disk as they are requested.
type FilePairs struct {
	Files   []FilePair
	Decoder images.Decoder
	// LoadInstances decodes FilePair.Instances when set.
	LoadInstances bool
}

// Len implements PairLoader.
func (f *FilePairs) Len() int { return len(f.Files) }

// Load implements PairLoader.
//
// Arguments:
//   - ctx: Checked before any file is read.
//   - i: The pair index.
//
// Returns:
//   - Pair: The decoded pair, named after its prediction file.
//   - error: The decoder error, wrapped with the failing path.
func (f *FilePairs) Load(ctx context.Context, i int) (Pair, error) {
	if err := ctx.Err(); err != nil {
		return Pair{}, err
	}

	decoder := f.Decoder
	if decoder == nil {
		decoder = images.StdDecoder{}
	}

	files := f.Files[i]
	pair := Pair{Name: files.Prediction}

	var err error
	if pair.Prediction, err = decoder.Decode(files.Prediction); err != nil {
		return Pair{}, err
	}
	if pair.GroundTruth, err = decoder.Decode(files.GroundTruth); err != nil {
		return Pair{}, err
	}
	if f.LoadInstances && files.Instances != "" {
		if pair.Instances, err = decoder.Decode(files.Instances); err != nil {
			return Pair{}, err
		}
	}
	return pair, nil
}

// NewFilePairs zips prediction and ground truth lists. instancePath maps a
// ground truth path to its instance image path; nil means no instances.
//
// Returns:
//   - *FilePairs: The loader, decoding with images.StdDecoder.
//   - error: errs.ErrInputMismatch when the lists differ in length.
func NewFilePairs(predictions, groundTruths []string, instancePath func(string) string) (*FilePairs, error) {
	if len(predictions) != len(groundTruths) {
		return nil, errs.InputMismatch("%d predictions for %d ground truth images", len(predictions), len(groundTruths))
	}
	files := make([]FilePair, len(predictions))
	for i := range predictions {
		files[i] = FilePair{GroundTruth: groundTruths[i], Prediction: predictions[i]}
		if instancePath != nil {
			files[i].Instances = instancePath(groundTruths[i])
		}
	}
	return &FilePairs{Files: files, Decoder: images.StdDecoder{}, LoadInstances: instancePath != nil}, nil
}
