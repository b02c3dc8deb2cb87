package confusion

import (
	"fmt"
	"runtime"

	"github.com/nvr-ai/go-segeval/errs"
	"github.com/nvr-ai/go-segeval/images"
)

// Kind selects an accumulation strategy.
type Kind string

const (
	// KindAuto picks the fastest available strategy.
	KindAuto Kind = "auto"
	// KindBincount counts a flat joint histogram in parallel chunks.
	KindBincount Kind = "bincount"
	// KindLoop walks the pixels one by one.
	KindLoop Kind = "loop"
)

// Accumulator adds the joint histogram of one image pair to a matrix.
//
// Implementations must be observably equivalent: for the same input they
// leave the same matrix and return the same count or the same error. On
// error the matrix is left untouched.
type Accumulator interface {
	// Accumulate counts every pixel of the pair into m.
	//
	// Arguments:
	//   - m: The matrix to add to.
	//   - gt: Ground truth label ids.
	//   - pred: Predicted label ids, same dimensions as gt.
	//   - evalLabels: Membership table from taxonomy.Taxonomy.EvalMask.
	//
	// Returns:
	//   - uint64: The number of pixels counted.
	//   - error: errs.ErrUnknownLabel for a ground truth id outside
	//     evalLabels or a prediction id outside the matrix,
	//     errs.ErrInputMismatch for maps of different sizes.
	Accumulate(m *Matrix, gt, pred *images.LabelMap, evalLabels []bool) (uint64, error)
}

// NewAccumulator returns the strategy for kind.
//
// Arguments:
//   - kind: One of KindAuto, KindBincount or KindLoop. Empty means auto.
//
// Returns:
//   - Accumulator: The strategy.
//   - error: errs.ErrConfig for an unknown kind.
func NewAccumulator(kind Kind) (Accumulator, error) {
	switch kind {
	case "", KindAuto, KindBincount:
		return &BincountAccumulator{}, nil
	case KindLoop:
		return LoopAccumulator{}, nil
	default:
		return nil, errs.Config("unknown accumulator %q", kind)
	}
}

func checkPair(m *Matrix, gt, pred *images.LabelMap, evalLabels []bool) error {
	if gt == nil || pred == nil {
		return errs.InputMismatch("missing ground truth or prediction")
	}
	if !gt.SameSize(pred) {
		return errs.InputMismatch("ground truth is %dx%d, prediction is %dx%d",
			gt.Width, gt.Height, pred.Width, pred.Height)
	}
	if len(evalLabels) > m.size {
		return errs.InputMismatch("%d evaluable labels for a matrix of size %d", len(evalLabels), m.size)
	}
	return nil
}

// pixelError reports the failure for pixel i, checking ground truth first.
func pixelError(gt, pred *images.LabelMap, i int, evalLabels []bool, size int) error {
	g := gt.Pix[i]
	if g < 0 || int(g) >= len(evalLabels) || !evalLabels[g] {
		return errs.UnknownLabel(int(g), fmt.Sprintf("ground truth pixel %d,%d", i%gt.Width, i/gt.Width))
	}
	return errs.UnknownLabel(int(pred.Pix[i]), fmt.Sprintf("prediction pixel %d,%d outside [0, %d]", i%gt.Width, i/gt.Width, size-1))
}

func pixelValid(g, p int32, evalLabels []bool, size int) bool {
	return g >= 0 && int(g) < len(evalLabels) && evalLabels[g] && p >= 0 && int(p) < size
}

// LoopAccumulator is the portable per-pixel reference strategy.
type LoopAccumulator struct{}

// Accumulate implements Accumulator.
func (LoopAccumulator) Accumulate(m *Matrix, gt, pred *images.LabelMap, evalLabels []bool) (uint64, error) {
	if err := checkPair(m, gt, pred, evalLabels); err != nil {
		return 0, err
	}

	for i := range gt.Pix {
		if !pixelValid(gt.Pix[i], pred.Pix[i], evalLabels, m.size) {
			return 0, pixelError(gt, pred, i, evalLabels, m.size)
		}
	}

	for i, g := range gt.Pix {
		m.Inc(int(g), int(pred.Pix[i]), 1)
	}

	return uint64(len(gt.Pix)), nil
}

// BincountAccumulator counts flat indexes g*size+p into private histograms,
// one per chunk of pixels, and folds them into the matrix.
type BincountAccumulator struct {
	// Workers bounds the number of chunks. Zero means one per CPU.
	Workers int
}

// Accumulate implements Accumulator.
func (b *BincountAccumulator) Accumulate(m *Matrix, gt, pred *images.LabelMap, evalLabels []bool) (uint64, error) {
	if err := checkPair(m, gt, pred, evalLabels); err != nil {
		return 0, err
	}

	workers := b.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	size := m.size
	cells := size * size
	hists := make([][]uint64, workers)
	firstBad := make([]int, workers)

	parts := images.ParallelN(len(gt.Pix), workers, func(part, start, end int) {
		hist := make([]uint64, cells)
		firstBad[part] = -1
		gtPix, predPix := gt.Pix[start:end], pred.Pix[start:end]
		for i, g := range gtPix {
			p := predPix[i]
			if !pixelValid(g, p, evalLabels, size) {
				firstBad[part] = start + i
				return
			}
			hist[int(g)*size+int(p)]++
		}
		hists[part] = hist
	})

	// Partitions are index ordered, so the first failing partition holds the
	// first failing pixel, as in the loop strategy.
	for part := 0; part < parts; part++ {
		if firstBad[part] >= 0 {
			return 0, pixelError(gt, pred, firstBad[part], evalLabels, size)
		}
	}

	for part := 0; part < parts; part++ {
		for i, v := range hists[part] {
			m.data[i] += v
		}
	}

	return uint64(len(gt.Pix)), nil
}
