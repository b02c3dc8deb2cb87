// Package evaluator - Drives the pair by pair accumulation of an evaluation
// run and assembles its result.
package evaluator

import (
	"context"
	"log/slog"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/nvr-ai/go-segeval/confusion"
	"github.com/nvr-ai/go-segeval/errs"
	"github.com/nvr-ai/go-segeval/images"
	"github.com/nvr-ai/go-segeval/instances"
	"github.com/nvr-ai/go-segeval/pairing"
	"github.com/nvr-ai/go-segeval/profiler"
	"github.com/nvr-ai/go-segeval/scoring"
	"github.com/nvr-ai/go-segeval/taxonomy"
)

// Options tune an evaluation run. The zero value counts with the bincount
// strategy on one worker per CPU and skips instance and pixel accuracy
// statistics.
type Options struct {
	// Accumulator fills the confusion matrix. Nil means bincount.
	Accumulator confusion.Accumulator
	// EvalInstances accumulates instance statistics for pairs with instances.
	EvalInstances bool
	// EvalPixelAccuracy records per image pixel counts.
	EvalPixelAccuracy bool
	// Workers is the number of pairs processed concurrently. Zero or less
	// means one per CPU.
	Workers int
	// Logger receives progress. Nil means slog.Default().
	Logger *slog.Logger
	// ProgressEvery logs progress every that many pairs. Zero disables it.
	ProgressEvery int
	// Profiler times the load, confusion and instance stages. Nil disables
	// timing.
	Profiler *profiler.Profiler
}

// Evaluator runs evaluations against one taxonomy. It is safe for
// concurrent use.
type Evaluator struct {
	tax        *taxonomy.Taxonomy
	opts       Options
	evalMask   []bool
	notIgnored []bool
}

// New returns an evaluator.
//
// Arguments:
//   - tax: The label taxonomy.
//   - opts: The run options.
//
// Returns:
//   - *Evaluator: The evaluator.
func New(tax *taxonomy.Taxonomy, opts Options) *Evaluator {
	if opts.Accumulator == nil {
		opts.Accumulator = &confusion.BincountAccumulator{}
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	e := &Evaluator{
		tax:        tax,
		opts:       opts,
		evalMask:   tax.EvalMask(),
		notIgnored: make([]bool, tax.MaxID()+1),
	}
	for _, id := range tax.EvalLabels() {
		e.notIgnored[id] = !tax.IsIgnored(id)
	}
	return e
}

// partial is the private accumulation state of one worker.
type partial struct {
	matrix   *confusion.Matrix
	inst     *instances.Stats
	pixels   uint64
	perImage map[string]ImageStats
	pairs    int
}

func (e *Evaluator) newPartial() *partial {
	return &partial{
		matrix:   confusion.New(e.tax.MaxID()),
		inst:     instances.New(e.tax),
		perImage: make(map[string]ImageStats),
	}
}

// Evaluate accumulates every pair of loader and scores the result.
//
// Pairs are spread over the configured workers. Each worker counts into its
// own matrix and instance statistics; they are merged once every worker is
// done. The first failing pair aborts the run.
//
// Arguments:
//   - ctx: Cancels the run between pairs.
//   - loader: The pairs to evaluate.
//
// Returns:
//   - *Result: The scores of the run.
//   - error: The first pair error, wrapped with the pair name, or
//     errs.ErrConsistency when the matrix disagrees with the pixel count.
func (e *Evaluator) Evaluate(ctx context.Context, loader PairLoader) (*Result, error) {
	start := time.Now()
	total := loader.Len()
	workers := e.opts.Workers
	if workers > total {
		workers = total
	}
	if workers < 1 {
		workers = 1
	}

	e.opts.Logger.Info("evaluating pairs", "pairs", total, "workers", workers)

	partials := make([]*partial, workers)
	for w := range partials {
		partials[w] = e.newPartial()
	}

	var processed atomic.Int64
	jobs := make(chan int)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(jobs)
		for i := 0; i < total; i++ {
			select {
			case jobs <- i:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	for w := 0; w < workers; w++ {
		p := partials[w]
		g.Go(func() error {
			for i := range jobs {
				done := e.opts.Profiler.StartOperation("load")
				pair, err := loader.Load(gctx, i)
				done()
				if err != nil {
					return err
				}
				if pair.Name == "" {
					pair.Name = "#" + strconv.Itoa(i)
				}
				if err := e.evaluatePair(p, pair); err != nil {
					return errors.Wrapf(err, "evaluating %s", pair.Name)
				}

				n := processed.Add(1)
				if e.opts.ProgressEvery > 0 && n%int64(e.opts.ProgressEvery) == 0 {
					e.opts.Logger.Info("pairs processed", "count", n, "total", total)
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := partials[0]
	for _, p := range partials[1:] {
		if !merged.matrix.Add(p.matrix) {
			return nil, errs.Consistency("partial matrices differ in size")
		}
		merged.inst.Merge(p.inst)
		merged.pixels += p.pixels
		merged.pairs += p.pairs
		for name, stats := range p.perImage {
			if _, dup := merged.perImage[name]; dup {
				return nil, errs.InputMismatch("duplicate pair name %q", name)
			}
			merged.perImage[name] = stats
		}
	}

	if sum := merged.matrix.Sum(); sum != merged.pixels {
		return nil, errs.Consistency("confusion matrix holds %d pixels, %d were analyzed", sum, merged.pixels)
	}

	result := e.assemble(merged)
	e.opts.Logger.Info("evaluation complete",
		"pairs", result.Pairs,
		"pixels", result.Pixels,
		"duration", time.Since(start))
	e.opts.Profiler.Report(e.opts.Logger)
	return result, nil
}

// evaluatePair counts one pair into p.
func (e *Evaluator) evaluatePair(p *partial, pair Pair) error {
	gt, pred := pair.GroundTruth, pair.Prediction
	if gt == nil || pred == nil {
		return errs.InputMismatch("missing ground truth or prediction")
	}
	if gt.Width != pred.Width {
		return errs.InputMismatch("image widths of prediction (%d) and ground truth (%d) are not equal", pred.Width, gt.Width)
	}
	if gt.Height != pred.Height {
		return errs.InputMismatch("image heights of prediction (%d) and ground truth (%d) are not equal", pred.Height, gt.Height)
	}
	if _, dup := p.perImage[pair.Name]; dup && e.opts.EvalPixelAccuracy {
		return errs.InputMismatch("duplicate pair name %q", pair.Name)
	}
	useInstances := e.opts.EvalInstances && pair.Instances != nil
	if useInstances && !pair.Instances.SameSize(gt) {
		return errs.InputMismatch("instance map is %dx%d, ground truth is %dx%d",
			pair.Instances.Width, pair.Instances.Height, gt.Width, gt.Height)
	}

	done := e.opts.Profiler.StartOperation("confusion")
	n, err := e.opts.Accumulator.Accumulate(p.matrix, gt, pred, e.evalMask)
	done()
	if err != nil {
		return err
	}
	p.pixels += n
	p.pairs++

	if useInstances {
		done := e.opts.Profiler.StartOperation("instances")
		err := instances.Accumulate(p.inst, e.tax, pred, pair.Instances)
		done()
		if err != nil {
			return err
		}
	}

	if e.opts.EvalPixelAccuracy {
		p.perImage[pair.Name] = e.pixelAccuracy(gt, pred)
	}

	if sum := p.matrix.Sum(); sum != p.pixels {
		return errs.Consistency("confusion matrix holds %d pixels, %d were analyzed", sum, p.pixels)
	}
	return nil
}

// pixelAccuracy counts the pixels of gt that are scored and those of them
// the prediction gets wrong. gt has already been validated.
func (e *Evaluator) pixelAccuracy(gt, pred *images.LabelMap) ImageStats {
	var stats ImageStats
	for i, g := range gt.Pix {
		if !e.notIgnored[g] {
			continue
		}
		stats.NotIgnoredPixels++
		if pred.Pix[i] != g {
			stats.ErroneousPixels++
		}
	}
	return stats
}

func (e *Evaluator) assemble(p *partial) *Result {
	var inst *instances.Stats
	if e.opts.EvalInstances {
		inst = p.inst
	}
	s := scoring.New(e.tax, p.matrix, inst)

	r := &Result{
		ConfusionMatrix:    p.matrix,
		Priors:             s.Priors().Map(),
		Labels:             make(map[string]int),
		ClassScores:        s.ClassScores(),
		ClassInstScores:    s.ClassInstanceScores(),
		CategoryScores:     s.CategoryScores(),
		CategoryInstScores: s.CategoryInstanceScores(),
		Instances:          inst,
		Pixels:             p.pixels,
		Pairs:              p.pairs,
	}
	for _, id := range e.tax.EvalLabels() {
		l, _ := e.tax.ByID(id)
		r.Labels[l.Name] = id
	}
	r.AverageScoreClasses = scoring.Average(r.ClassScores)
	r.AverageScoreInstClasses = scoring.Average(r.ClassInstScores)
	r.AverageScoreCategories = scoring.Average(r.CategoryScores)
	r.AverageScoreInstCategories = scoring.Average(r.CategoryInstScores)
	if e.opts.EvalPixelAccuracy {
		r.PerImageStats = p.perImage
	}
	return r
}

// EvaluateLists evaluates prediction files against the ground truth files
// at the same index. Instance images are looked up next to the ground truth
// when instance statistics are enabled.
//
// Arguments:
//   - ctx: Cancels the run between pairs.
//   - decoder: Reads the label images. Nil means images.StdDecoder.
//   - predictions: Prediction image paths.
//   - groundTruths: Ground truth image paths, same length as predictions.
//
// Returns:
//   - *Result: The scores of the run.
//   - error: errs.ErrInputMismatch when the lists differ in length, or any
//     Evaluate error.
func (e *Evaluator) EvaluateLists(ctx context.Context, decoder images.Decoder, predictions, groundTruths []string) (*Result, error) {
	var instancePath func(string) string
	if e.opts.EvalInstances {
		instancePath = pairing.InstancePath
	}
	loader, err := NewFilePairs(predictions, groundTruths, instancePath)
	if err != nil {
		return nil, err
	}
	if decoder != nil {
		loader.Decoder = decoder
	}
	return e.Evaluate(ctx, loader)
}
