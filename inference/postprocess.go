package inference

import (
	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-segeval/images"
)

// ScoresToLabels turns raw (1, C, H, W) model output into a label map.
//
// Arguments:
//   - data: The output buffer in NCHW order.
//   - classes: Number of score channels.
//   - width: Output width.
//   - height: Output height.
//   - lut: Optional class index to label id table.
//
// Returns:
//   - *images.LabelMap: The argmax label map.
//   - error: An error if data does not match the shape.
func ScoresToLabels(data []float32, classes, width, height int, lut []int) (*images.LabelMap, error) {
	if n := classes * width * height; n == 0 || len(data) != n {
		return nil, errors.Errorf("got %d scores for %d classes of %dx%d", len(data), classes, width, height)
	}

	scores := tensor.New(
		tensor.WithShape(1, classes, height, width),
		tensor.WithBacking(data),
	)
	return FromScores(scores, lut)
}

// FromScores converts a class score tensor into a label map by taking the
// argmax over the class axis.
//
// Arguments:
//   - scores: A (C, H, W) or (1, C, H, W) tensor of per-class scores.
//   - lut: Optional lookup from class index to label id. Class indexes
//     outside the table, or mapped to a negative id, fail.
//
// Returns:
//   - *images.LabelMap: An H x W map of winning classes (or their label ids).
//   - error: An error if the tensor shape is not supported.
//
// @example
// scores := tensor.New(tensor.WithShape(19, 512, 1024), tensor.WithBacking(logits))
// pred, err := FromScores(scores, taxonomy.Cityscapes().TrainIDToID())
func FromScores(scores tensor.Tensor, lut []int) (*images.LabelMap, error) {
	shape := scores.Shape()
	classAxis := 0
	switch len(shape) {
	case 3:
	case 4:
		if shape[0] != 1 {
			return nil, errors.Errorf("batched scores are not supported: shape %v", shape)
		}
		classAxis = 1
	default:
		return nil, errors.Errorf("scores must be (C, H, W) or (1, C, H, W), got shape %v", shape)
	}

	height, width := shape[classAxis+1], shape[classAxis+2]

	argmax, err := tensor.Argmax(scores, classAxis)
	if err != nil {
		return nil, errors.Wrap(err, "argmax over class axis")
	}

	classes, ok := argmax.Data().([]int)
	if !ok {
		return nil, errors.Errorf("unexpected argmax data type %T", argmax.Data())
	}
	if len(classes) != width*height {
		return nil, errors.Errorf("argmax produced %d values for a %dx%d map", len(classes), width, height)
	}

	m := images.NewLabelMap(width, height)
	for i, c := range classes {
		if lut == nil {
			m.Pix[i] = int32(c)
			continue
		}
		if c >= len(lut) || lut[c] < 0 {
			return nil, errors.Errorf("class index %d has no label id", c)
		}
		m.Pix[i] = int32(lut[c])
	}

	return m, nil
}
