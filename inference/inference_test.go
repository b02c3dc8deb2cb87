package inference

import (
	"image"
	"image/color"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-segeval/images"
)

func TestPrepareInput(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	img.Set(1, 0, color.RGBA{G: 255, A: 255})
	img.Set(0, 1, color.RGBA{B: 255, A: 255})
	img.Set(1, 1, color.RGBA{R: 51, G: 51, B: 51, A: 255})

	dst := make([]float32, 12)
	require.NoError(t, PrepareInput(img, dst, 2, 2, [3]float32{}, [3]float32{}))

	assert.Equal(t, []float32{1, 0, 0, 0.2}, dst[0:4], "red plane")
	assert.Equal(t, []float32{0, 1, 0, 0.2}, dst[4:8], "green plane")
	assert.Equal(t, []float32{0, 0, 1, 0.2}, dst[8:12], "blue plane")
}

func TestPrepareInputNormalizes(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	img.Set(0, 0, color.RGBA{R: 255, G: 255, B: 255, A: 255})

	dst := make([]float32, 3)
	require.NoError(t, PrepareInput(img, dst, 1, 1, [3]float32{0.5, 0.5, 0.5}, [3]float32{0.5, 0.25, 0}))
	assert.InDeltaSlice(t, []float32{1, 2, 0.5}, dst, 1e-6)
}

func TestPrepareInputResizes(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 8, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.RGBA{R: 255, A: 255})
		}
	}

	dst := make([]float32, 3*4*2)
	require.NoError(t, PrepareInput(img, dst, 4, 2, [3]float32{}, [3]float32{}))
	for _, v := range dst[0:8] {
		assert.InDelta(t, 1, v, 0.01)
	}
	for _, v := range dst[8:] {
		assert.InDelta(t, 0, v, 0.01)
	}
}

func TestPrepareInputShortBuffer(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	assert.Error(t, PrepareInput(img, make([]float32, 11), 2, 2, ImageNetMean, ImageNetStd))
}

func TestScoresToLabels(t *testing.T) {
	// 3 classes over a 2x1 image: pixel 0 prefers class 2, pixel 1 class 0.
	data := []float32{
		0.9, 0.8,
		0.1, 0.1,
		2.0, 0.0,
	}

	m, err := ScoresToLabels(data, 3, 2, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, []int32{2, 0}, m.Pix)

	m, err = ScoresToLabels(data, 3, 2, 1, []int{7, 8, 26})
	require.NoError(t, err)
	assert.Equal(t, []int32{26, 7}, m.Pix)

	_, err = ScoresToLabels(data[:5], 3, 2, 1, nil)
	assert.Error(t, err)
}

func TestSegmenterConfigValidate(t *testing.T) {
	valid := SegmenterConfig{
		ModelPath:  "model.onnx",
		InputName:  "input",
		OutputName: "logits",
		Width:      1024,
		Height:     512,
		NumClasses: 19,
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		modify func(*SegmenterConfig)
	}{
		{"model", func(c *SegmenterConfig) { c.ModelPath = "" }},
		{"names", func(c *SegmenterConfig) { c.OutputName = "" }},
		{"size", func(c *SegmenterConfig) { c.Width = 0 }},
		{"classes", func(c *SegmenterConfig) { c.NumClasses = 0 }},
		{"lut", func(c *SegmenterConfig) { c.ClassToLabel = []int{7, 8} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.modify(&c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestNewSegmenterRejectsInvalidConfig(t *testing.T) {
	_, err := NewSegmenter(SegmenterConfig{})
	assert.Error(t, err)
}

func TestFromScores(t *testing.T) {
	// Three classes over a 2x2 map: class 2 wins at (0,0), 0 at (1,0), 1 at the bottom row.
	backing := []float32{
		0.1, 0.9, 0.0, 0.2, // class 0
		0.2, 0.0, 0.8, 0.7, // class 1
		0.7, 0.1, 0.1, 0.1, // class 2
	}
	scores := tensor.New(tensor.WithShape(3, 2, 2), tensor.WithBacking(backing))

	m, err := FromScores(scores, nil)
	require.NoError(t, err)
	assert.Equal(t, []int32{2, 0, 1, 1}, m.Pix)

	mapped, err := FromScores(scores, []int{7, 8, 26})
	require.NoError(t, err)
	assert.Equal(t, []int32{26, 7, 8, 8}, mapped.Pix)

	_, err = FromScores(scores, []int{7, 8})
	assert.Error(t, err, "class 2 has no label id")

	batched := tensor.New(tensor.WithShape(1, 3, 2, 2), tensor.WithBacking(backing))
	m, err = FromScores(batched, nil)
	require.NoError(t, err)
	assert.Equal(t, []int32{2, 0, 1, 1}, m.Pix)

	flat := tensor.New(tensor.WithShape(12), tensor.WithBacking(backing))
	_, err = FromScores(flat, nil)
	assert.Error(t, err)
}

func TestSegmenterRestore(t *testing.T) {
	labels := images.MustFromRows([][]int32{{7, 26}})

	s := &Segmenter{}
	out, err := s.restore(labels, 4, 2)
	require.NoError(t, err)
	assert.Equal(t, []int32{7, 7, 26, 26, 7, 7, 26, 26}, out.Pix)

	same, err := s.restore(labels, 2, 1)
	require.NoError(t, err)
	assert.Same(t, labels, same)

	var calls int
	s.cfg.Resize = func(m *images.LabelMap, width, height int) (*images.LabelMap, error) {
		calls++
		return images.ResizeNearest(m, width, height), nil
	}
	out, err = s.restore(labels, 4, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 8, out.Len())

	s.cfg.Resize = func(*images.LabelMap, int, int) (*images.LabelMap, error) {
		return nil, errors.New("no backend")
	}
	_, err = s.restore(labels, 4, 2)
	assert.ErrorContains(t, err, "error resizing prediction: no backend")
}
