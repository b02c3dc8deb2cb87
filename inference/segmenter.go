// Package inference - ONNX semantic segmentation producing label maps for
// evaluation.
package inference

import (
	"image"
	"sync"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/nvr-ai/go-segeval/images"
	"github.com/nvr-ai/go-segeval/inference/providers"
)

// Resizer scales a label map to width x height without mixing ids.
type Resizer func(m *images.LabelMap, width, height int) (*images.LabelMap, error)

// SegmenterConfig describes a segmentation model.
type SegmenterConfig struct {
	ModelPath  string `yaml:"modelPath"`
	InputName  string `yaml:"inputName"`
	OutputName string `yaml:"outputName"`
	// Width and Height are the model input size. The output is expected at
	// the same resolution.
	Width      int `yaml:"width"`
	Height     int `yaml:"height"`
	NumClasses int `yaml:"numClasses"`

	Mean [3]float32 `yaml:"mean"`
	Std  [3]float32 `yaml:"std"`

	// ClassToLabel maps output channels to label ids, usually
	// Taxonomy.TrainIDToID. Nil keeps channel indexes.
	ClassToLabel []int `yaml:"-"`

	// Resize scales the model output back to the image size. Nil uses
	// images.ResizeNearest.
	Resize Resizer `yaml:"-"`

	Provider providers.Config `yaml:"provider"`
	// SharedLibPath locates the ONNX Runtime library. Empty picks the
	// platform default.
	SharedLibPath string `yaml:"sharedLibPath"`
}

// Validate checks the model dimensions.
func (c SegmenterConfig) Validate() error {
	switch {
	case c.ModelPath == "":
		return errors.New("model path is required")
	case c.InputName == "" || c.OutputName == "":
		return errors.New("input and output names are required")
	case c.Width <= 0 || c.Height <= 0:
		return errors.Errorf("invalid input size %dx%d", c.Width, c.Height)
	case c.NumClasses <= 0:
		return errors.Errorf("invalid class count %d", c.NumClasses)
	case c.ClassToLabel != nil && len(c.ClassToLabel) < c.NumClasses:
		return errors.Errorf("%d label ids for %d classes", len(c.ClassToLabel), c.NumClasses)
	}
	return nil
}

// Segmenter runs a segmentation model. Predict is safe for concurrent use
// but calls are serialized on the single session.
type Segmenter struct {
	cfg     SegmenterConfig
	mu      sync.Mutex
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
}

// NewSegmenter loads the runtime and the model.
//
// Arguments:
//   - cfg: The model description.
//
// Returns:
//   - *Segmenter: A ready segmenter. Close releases it.
//   - error: An error if the runtime or model cannot be loaded.
func NewSegmenter(cfg SegmenterConfig) (*Segmenter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := providers.Initialize(cfg.SharedLibPath); err != nil {
		return nil, err
	}

	input, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, int64(cfg.Height), int64(cfg.Width)))
	if err != nil {
		return nil, errors.Wrap(err, "error creating input tensor")
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(cfg.NumClasses), int64(cfg.Height), int64(cfg.Width)))
	if err != nil {
		input.Destroy()
		return nil, errors.Wrap(err, "error creating output tensor")
	}

	options, err := providers.SessionOptions(cfg.Provider)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, err
	}
	defer options.Destroy()

	session, err := ort.NewAdvancedSession(cfg.ModelPath,
		[]string{cfg.InputName}, []string{cfg.OutputName},
		[]ort.Value{input}, []ort.Value{output}, options)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, errors.Wrapf(err, "error creating ORT session for %s", cfg.ModelPath)
	}

	return &Segmenter{cfg: cfg, session: session, input: input, output: output}, nil
}

// Predict segments img and returns a label map at the image resolution.
func (s *Segmenter) Predict(img image.Image) (*images.LabelMap, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := PrepareInput(img, s.input.GetData(), s.cfg.Width, s.cfg.Height, s.cfg.Mean, s.cfg.Std); err != nil {
		return nil, err
	}
	if err := s.session.Run(); err != nil {
		return nil, errors.Wrap(err, "error running ORT session")
	}

	labels, err := ScoresToLabels(s.output.GetData(), s.cfg.NumClasses, s.cfg.Width, s.cfg.Height, s.cfg.ClassToLabel)
	if err != nil {
		return nil, err
	}

	b := img.Bounds()
	return s.restore(labels, b.Dx(), b.Dy())
}

// restore scales model output to the source image size.
func (s *Segmenter) restore(labels *images.LabelMap, width, height int) (*images.LabelMap, error) {
	if labels.Width == width && labels.Height == height {
		return labels, nil
	}
	if s.cfg.Resize == nil {
		return images.ResizeNearest(labels, width, height), nil
	}
	out, err := s.cfg.Resize(labels, width, height)
	if err != nil {
		return nil, errors.Wrap(err, "error resizing prediction")
	}
	return out, nil
}

// Close releases the session and its tensors.
func (s *Segmenter) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	if s.session != nil {
		err = s.session.Destroy()
		s.session = nil
	}
	if s.input != nil {
		s.input.Destroy()
		s.input = nil
	}
	if s.output != nil {
		s.output.Destroy()
		s.output = nil
	}
	return err
}
