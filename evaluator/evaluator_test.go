package evaluator

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-segeval/confusion"
	"github.com/nvr-ai/go-segeval/errs"
	"github.com/nvr-ai/go-segeval/images"
	"github.com/nvr-ai/go-segeval/profiler"
	"github.com/nvr-ai/go-segeval/taxonomy"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func testTaxonomy(t testing.TB) *taxonomy.Taxonomy {
	t.Helper()
	tax, err := taxonomy.New([]taxonomy.Label{
		{ID: 0, Name: "unlabeled", Category: "void", IgnoreInEval: true},
		{ID: 1, Name: "road", Category: "flat"},
		{ID: 2, Name: "sidewalk", Category: "flat"},
		{ID: 3, Name: "person", Category: "human", HasInstances: true},
		{ID: 4, Name: "car", Category: "vehicle", HasInstances: true},
	}, map[string]float64{"person": 10, "car": 40})
	require.NoError(t, err)
	return tax
}

// randomPairs builds pairs whose ground truth uses every label and whose
// instance maps hold one instance per thing pixel run.
func randomPairs(n int, seed int64) SlicePairs {
	r := rand.New(rand.NewSource(seed))
	pairs := make(SlicePairs, n)
	for i := range pairs {
		gt := images.NewLabelMap(16, 8)
		pred := images.NewLabelMap(16, 8)
		inst := images.NewLabelMap(16, 8)
		for j := range gt.Pix {
			g := int32(r.Intn(5))
			gt.Pix[j] = g
			pred.Pix[j] = int32(r.Intn(5))
			if g >= 3 {
				inst.Pix[j] = g*1000 + 1 + int32(j/32)
			}
		}
		pairs[i] = Pair{Name: fmt.Sprintf("pair-%d", i), GroundTruth: gt, Prediction: pred, Instances: inst}
	}
	return pairs
}

func TestEvaluatePerfectPrediction(t *testing.T) {
	tax := testTaxonomy(t)
	gt := images.MustFromRows([][]int32{
		{0, 1, 1, 2},
		{3, 3, 4, 4},
	})
	inst := images.MustFromRows([][]int32{
		{0, 0, 0, 0},
		{3001, 3001, 4001, 4001},
	})
	pairs := SlicePairs{{Name: "a", GroundTruth: gt, Prediction: gt.Clone(), Instances: inst}}

	e := New(tax, Options{EvalInstances: true, EvalPixelAccuracy: true, Workers: 1, Logger: quiet})
	result, err := e.Evaluate(context.Background(), pairs)
	require.NoError(t, err)

	assert.Equal(t, uint64(8), result.Pixels)
	assert.Equal(t, 1, result.Pairs)
	for g := 0; g < 5; g++ {
		for p := 0; p < 5; p++ {
			if g != p {
				assert.Zero(t, result.ConfusionMatrix.At(g, p), "off-diagonal %d,%d", g, p)
			}
		}
	}

	for _, name := range []string{"road", "sidewalk", "person", "car"} {
		v, ok := result.ClassScores.Get(name)
		require.True(t, ok)
		assert.Equal(t, 1.0, v, name)
	}
	unlabeled, _ := result.ClassScores.Get("unlabeled")
	assert.True(t, math.IsNaN(unlabeled))

	for _, name := range []string{"person", "car"} {
		v, _ := result.ClassInstScores.Get(name)
		assert.Equal(t, 1.0, v, name)
	}
	assert.Equal(t, 1.0, result.AverageScoreClasses)
	assert.Equal(t, 1.0, result.AverageScoreInstClasses)
	assert.Equal(t, 1.0, result.AverageScoreCategories)
	assert.Equal(t, 1.0, result.AverageScoreInstCategories)

	assert.InDelta(t, 0.25, result.Priors["road"], 1e-12)
	assert.Equal(t, 4, result.Labels["car"])

	assert.Equal(t, map[string]ImageStats{"a": {NotIgnoredPixels: 7, ErroneousPixels: 0}}, result.PerImageStats)
	assert.Equal(t, uint64(7), result.PerImageStats["a"].CorrectPixels())
}

func TestEvaluateParallelMatchesSequential(t *testing.T) {
	tax := testTaxonomy(t)
	pairs := randomPairs(23, 11)

	sequential, err := New(tax, Options{
		Accumulator:   confusion.LoopAccumulator{},
		EvalInstances: true,
		Workers:       1,
		Logger:        quiet,
	}).Evaluate(context.Background(), pairs)
	require.NoError(t, err)

	parallel, err := New(tax, Options{
		EvalInstances: true,
		Workers:       4,
		Logger:        quiet,
		ProgressEvery: 5,
	}).Evaluate(context.Background(), pairs)
	require.NoError(t, err)

	assert.True(t, sequential.ConfusionMatrix.Equal(parallel.ConfusionMatrix))
	assert.Equal(t, sequential.Pixels, parallel.Pixels)
	assert.Equal(t, 23, parallel.Pairs)
	// Unlabeled and void score NaN in both runs.
	assert.True(t, cmp.Equal(sequential.ClassScores, parallel.ClassScores, cmpopts.EquateNaNs()),
		cmp.Diff(sequential.ClassScores, parallel.ClassScores, cmpopts.EquateNaNs()))
	assert.True(t, cmp.Equal(sequential.CategoryScores, parallel.CategoryScores, cmpopts.EquateNaNs()),
		cmp.Diff(sequential.CategoryScores, parallel.CategoryScores, cmpopts.EquateNaNs()))

	// Weighted sums may be added in another order.
	for i, s := range sequential.ClassInstScores {
		p := parallel.ClassInstScores[i]
		assert.Equal(t, s.Name, p.Name)
		if math.IsNaN(s.Value) {
			assert.True(t, math.IsNaN(p.Value))
			continue
		}
		assert.InDelta(t, s.Value, p.Value, 1e-9, s.Name)
	}
}

func TestEvaluateDimensionMismatch(t *testing.T) {
	tax := testTaxonomy(t)
	gt := images.NewLabelMap(4, 2)

	tests := []struct {
		name string
		pair Pair
		msg  string
	}{
		{name: "width", pair: Pair{Name: "w", GroundTruth: gt, Prediction: images.NewLabelMap(3, 2)}, msg: "widths"},
		{name: "height", pair: Pair{Name: "h", GroundTruth: gt, Prediction: images.NewLabelMap(4, 3)}, msg: "heights"},
		{name: "instances", pair: Pair{Name: "i", GroundTruth: gt, Prediction: gt.Clone(), Instances: images.NewLabelMap(1, 1)}, msg: "instance map"},
		{name: "missing", pair: Pair{Name: "m", GroundTruth: gt}, msg: "missing"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := New(tax, Options{EvalInstances: true, Workers: 1, Logger: quiet})
			_, err := e.Evaluate(context.Background(), SlicePairs{tt.pair})
			require.Error(t, err)
			assert.True(t, errors.Is(err, errs.ErrInputMismatch))
			assert.Contains(t, err.Error(), tt.msg)
			assert.Contains(t, err.Error(), tt.pair.Name)
		})
	}
}

func TestEvaluateUnknownLabel(t *testing.T) {
	tax := testTaxonomy(t)
	gt := images.MustFromRows([][]int32{{0, 255}, {1, 2}})
	pred := images.MustFromRows([][]int32{{0, 1}, {1, 2}})
	pairs := append(randomPairs(3, 5), Pair{Name: "corrupt", GroundTruth: gt, Prediction: pred})

	for _, workers := range []int{1, 3} {
		e := New(tax, Options{Workers: workers, Logger: quiet})
		_, err := e.Evaluate(context.Background(), pairs)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errs.ErrUnknownLabel))
		assert.Contains(t, err.Error(), "corrupt")
	}
}

func TestEvaluateUnknownInstanceLabel(t *testing.T) {
	tax := testTaxonomy(t)
	gt := images.MustFromRows([][]int32{{3, 3}})
	inst := images.MustFromRows([][]int32{{3001, 9001}})

	e := New(tax, Options{EvalInstances: true, Workers: 1, Logger: quiet})
	_, err := e.Evaluate(context.Background(), SlicePairs{{Name: "x", GroundTruth: gt, Prediction: gt, Instances: inst}})
	assert.True(t, errors.Is(err, errs.ErrUnknownLabel))
}

func TestEvaluateDuplicatePairNames(t *testing.T) {
	tax := testTaxonomy(t)
	pairs := randomPairs(6, 3)
	pairs[4].Name = pairs[1].Name

	for _, workers := range []int{1, 3} {
		e := New(tax, Options{EvalPixelAccuracy: true, Workers: workers, Logger: quiet})
		_, err := e.Evaluate(context.Background(), pairs)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errs.ErrInputMismatch))
		assert.Contains(t, err.Error(), `duplicate pair name "pair-1"`)
	}

	// Names only key per-image statistics.
	_, err := New(tax, Options{Workers: 2, Logger: quiet}).Evaluate(context.Background(), pairs)
	assert.NoError(t, err)
}

func TestEvaluateUnnamedPairsUseIndex(t *testing.T) {
	tax := testTaxonomy(t)
	pairs := randomPairs(3, 9)
	pairs[0].Name = ""
	pairs[2].Name = ""

	e := New(tax, Options{EvalPixelAccuracy: true, Workers: 2, Logger: quiet})
	result, err := e.Evaluate(context.Background(), pairs)
	require.NoError(t, err)

	assert.Len(t, result.PerImageStats, 3)
	assert.Contains(t, result.PerImageStats, "#0")
	assert.Contains(t, result.PerImageStats, "pair-1")
	assert.Contains(t, result.PerImageStats, "#2")
}

// lossyAccumulator reports one pixel more than it counts.
type lossyAccumulator struct{}

func (lossyAccumulator) Accumulate(m *confusion.Matrix, gt, pred *images.LabelMap, evalLabels []bool) (uint64, error) {
	n, err := confusion.LoopAccumulator{}.Accumulate(m, gt, pred, evalLabels)
	return n + 1, err
}

func TestEvaluateConsistencyCheck(t *testing.T) {
	e := New(testTaxonomy(t), Options{Accumulator: lossyAccumulator{}, Workers: 1, Logger: quiet})
	_, err := e.Evaluate(context.Background(), randomPairs(1, 1))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrConsistency))
}

func TestEvaluateCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dir := t.TempDir()
	loader := &FilePairs{Files: []FilePair{{
		GroundTruth: filepath.Join(dir, "gt.png"),
		Prediction:  filepath.Join(dir, "pred.png"),
	}}}
	_, err := New(testTaxonomy(t), Options{Workers: 1, Logger: quiet}).Evaluate(ctx, loader)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestEvaluateNoPairs(t *testing.T) {
	result, err := New(testTaxonomy(t), Options{Logger: quiet}).Evaluate(context.Background(), SlicePairs{})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Pairs)
	assert.True(t, math.IsNaN(result.AverageScoreClasses))
	assert.True(t, math.IsNaN(result.Priors["road"]))
}

func TestEvaluateWithoutInstances(t *testing.T) {
	result, err := New(testTaxonomy(t), Options{Workers: 2, Logger: quiet}).Evaluate(context.Background(), randomPairs(4, 2))
	require.NoError(t, err)
	assert.Nil(t, result.Instances)
	assert.Nil(t, result.PerImageStats)
	assert.True(t, math.IsNaN(result.AverageScoreInstClasses))
}

func TestEvaluateProfilesStages(t *testing.T) {
	prof := profiler.New()
	e := New(testTaxonomy(t), Options{EvalInstances: true, Workers: 3, Logger: quiet, Profiler: prof})
	_, err := e.Evaluate(context.Background(), randomPairs(6, 3))
	require.NoError(t, err)

	counts := map[string]int{}
	for _, s := range prof.Stats() {
		counts[s.Name] = s.Count
	}
	assert.Equal(t, map[string]int{"load": 6, "confusion": 6, "instances": 6}, counts)
}

func writePair(t *testing.T, dir, city string, gt, pred, inst *images.LabelMap) (string, string) {
	t.Helper()
	base := city + "_000000_000019"
	gtPath := filepath.Join(dir, "gt", city, base+"_gtFine_labelIds.png")
	predPath := filepath.Join(dir, "pred", base+"_pred.png")
	require.NoError(t, images.WritePNG(gtPath, gt))
	require.NoError(t, images.WritePNG(predPath, pred))
	if inst != nil {
		require.NoError(t, images.WritePNG(filepath.Join(dir, "gt", city, base+"_gtFine_instanceIds.png"), inst))
	}
	return gtPath, predPath
}

func TestEvaluateLists(t *testing.T) {
	tax := testTaxonomy(t)
	dir := t.TempDir()

	gt := images.MustFromRows([][]int32{{1, 2}, {4, 4}})
	pred := images.MustFromRows([][]int32{{1, 1}, {4, 0}})
	inst := images.MustFromRows([][]int32{{0, 0}, {4001, 4001}})
	gtPath, predPath := writePair(t, dir, "aachen", gt, pred, inst)

	e := New(tax, Options{EvalInstances: true, EvalPixelAccuracy: true, Workers: 1, Logger: quiet})
	result, err := e.EvaluateLists(context.Background(), nil, []string{predPath}, []string{gtPath})
	require.NoError(t, err)

	assert.Equal(t, uint64(4), result.Pixels)
	assert.Equal(t, uint64(1), result.ConfusionMatrix.At(2, 1))
	car := result.Instances.Classes["car"]
	assert.Equal(t, uint64(1), car.TP)
	assert.Equal(t, uint64(1), car.FN)
	assert.Equal(t, ImageStats{NotIgnoredPixels: 4, ErroneousPixels: 2}, result.PerImageStats[predPath])

	_, err = e.EvaluateLists(context.Background(), nil, []string{predPath}, nil)
	assert.True(t, errors.Is(err, errs.ErrInputMismatch))

	_, err = e.EvaluateLists(context.Background(), nil, []string{filepath.Join(dir, "missing.png")}, []string{gtPath})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "missing.png")
}

func BenchmarkEvaluate(b *testing.B) {
	tax := testTaxonomy(b)
	pairs := randomPairs(32, 3)
	e := New(tax, Options{EvalInstances: true, Logger: quiet})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := e.Evaluate(context.Background(), pairs); err != nil {
			b.Fatal(err)
		}
	}
}
