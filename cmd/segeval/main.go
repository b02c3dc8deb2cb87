package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-segeval/config"
	"github.com/nvr-ai/go-segeval/confusion"
	"github.com/nvr-ai/go-segeval/evaluator"
	"github.com/nvr-ai/go-segeval/export"
	"github.com/nvr-ai/go-segeval/images"
	"github.com/nvr-ai/go-segeval/images/opencv"
	"github.com/nvr-ai/go-segeval/inference"
	"github.com/nvr-ai/go-segeval/inference/providers"
	"github.com/nvr-ai/go-segeval/pairing"
	"github.com/nvr-ai/go-segeval/profiler"
	"github.com/nvr-ai/go-segeval/report"
	"github.com/nvr-ai/go-segeval/taxonomy"
	"github.com/nvr-ai/go-segeval/util"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "segeval: %v\n", err)
		os.Exit(1)
	}
}

// run dispatches a subcommand. Without one, evaluate is assumed.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cmd := "evaluate"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}

	switch cmd {
	case "evaluate":
		return evaluate(ctx, args, stdout, stderr)
	case "predict":
		return predict(ctx, args, stderr)
	case "help":
		usage(stderr)
		return nil
	default:
		usage(stderr)
		return errors.Errorf("unknown command %q", cmd)
	}
}

func usage(w io.Writer) {
	fmt.Fprintf(w, "Usage: segeval [evaluate|predict] [options]\n\n")
	fmt.Fprintf(w, "Pixel-level semantic labeling evaluation for Cityscapes style datasets.\n\n")
	fmt.Fprintf(w, "Examples:\n")
	fmt.Fprintf(w, "  segeval evaluate -gt ./gtFine/val -pred ./results\n")
	fmt.Fprintf(w, "  segeval predict -model ./model.onnx -input ./leftImg8bit/val -output ./results\n")
}

// logFlags registers the logging flags shared by all subcommands.
func logFlags(fs *flag.FlagSet) (format *string, verbose *bool) {
	format = fs.String("log-format", "text", "Log format: text or json")
	verbose = fs.Bool("v", false, "Enable debug logging")
	return format, verbose
}

func newLogger(w io.Writer, format string, verbose bool) (*slog.Logger, error) {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if verbose {
		opts.Level = slog.LevelDebug
	}

	switch format {
	case "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return nil, errors.Errorf("unknown log format %q", format)
}

func loadTaxonomy(path string) (*taxonomy.Taxonomy, error) {
	if path == "" {
		return taxonomy.Cityscapes(), nil
	}
	return taxonomy.Load(path)
}

func newDecoder(name string) images.Decoder {
	if name == config.DecoderOpenCV {
		return opencv.Decoder{}
	}
	return images.StdDecoder{}
}

// newResizer picks how predictions are scaled back to the camera image.
func newResizer(name string) (inference.Resizer, error) {
	switch name {
	case "", config.DecoderStd:
		return nil, nil
	case config.DecoderOpenCV:
		return opencv.ResizeNearest, nil
	}
	return nil, errors.Errorf("unknown decoder %q", name)
}

func evaluate(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("evaluate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		configFile    = fs.String("config", "", "Path to a YAML configuration file")
		gtDir         = fs.String("gt", "", "Ground truth directory")
		search        = fs.String("search", "", "Glob matching ground truth files below -gt")
		predDir       = fs.String("pred", "", "Prediction directory")
		exportFile    = fs.String("export", "", "JSON result file")
		csvFile       = fs.String("csv", "", "Optional CSV summary file")
		taxonomyFile  = fs.String("taxonomy", "", "YAML label table, Cityscapes when empty")
		workers       = fs.Int("workers", 0, "Parallel image workers, all CPUs when 0")
		accumulator   = fs.String("accumulator", "", "Confusion accumulation: auto, bincount or loop")
		decoder       = fs.String("decoder", "", "Image decoder: std or opencv")
		noInst        = fs.Bool("no-inst", false, "Skip instance level scores")
		pixelAccuracy = fs.Bool("pixel-accuracy", false, "Record per image pixel accuracy")
		quiet         = fs.Bool("quiet", false, "Do not print result tables")
		noJSON        = fs.Bool("no-json", false, "Do not write the JSON result file")
		timeout       = fs.Duration("timeout", 0, "Abort the evaluation after this duration")
	)
	logFormat, verbose := logFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	logger, err := newLogger(stderr, *logFormat, *verbose)
	if err != nil {
		return err
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		return err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "gt":
			cfg.GroundTruthDir = *gtDir
		case "search":
			cfg.GroundTruthSearch = *search
		case "pred":
			cfg.PredictionDir = *predDir
		case "export":
			cfg.ExportFile = *exportFile
		case "taxonomy":
			cfg.TaxonomyFile = *taxonomyFile
		case "workers":
			cfg.Workers = *workers
		case "accumulator":
			cfg.Accumulator = confusion.Kind(*accumulator)
		case "decoder":
			cfg.Decoder = *decoder
		case "no-inst":
			cfg.EvalInstLevelScore = !*noInst
		case "pixel-accuracy":
			cfg.EvalPixelAccuracy = *pixelAccuracy
		case "quiet":
			cfg.Quiet = *quiet
		case "no-json":
			cfg.JSONOutput = !*noJSON
		}
	})
	if err := cfg.Validate(); err != nil {
		return err
	}

	if *timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}

	tax, err := loadTaxonomy(cfg.TaxonomyFile)
	if err != nil {
		return err
	}
	acc, err := confusion.NewAccumulator(cfg.Accumulator)
	if err != nil {
		return err
	}

	groundTruths, err := pairing.FindGroundTruth(cfg.GroundTruthDir, cfg.GroundTruthSearch)
	if err != nil {
		return err
	}
	predictions, err := pairing.NewMatcher(cfg.PredictionDir).MatchAll(groundTruths)
	if err != nil {
		return err
	}
	logger.Info("matched predictions", "groundTruthDir", cfg.GroundTruthDir, "pairs", len(groundTruths))

	opts := evaluator.Options{
		Accumulator:       acc,
		EvalInstances:     cfg.EvalInstLevelScore,
		EvalPixelAccuracy: cfg.EvalPixelAccuracy,
		Workers:           cfg.Workers,
		Logger:            logger,
	}
	if *verbose {
		opts.Profiler = profiler.New()
	}
	ev := evaluator.New(tax, opts)

	start := time.Now()
	res, err := ev.EvaluateLists(ctx, newDecoder(cfg.Decoder), predictions, groundTruths)
	if err != nil {
		return err
	}
	logger.Debug("evaluation finished", "duration", time.Since(start))

	if !cfg.Quiet {
		colorized := report.Colorize(stdout)
		if cfg.Colorized != nil {
			colorized = *cfg.Colorized
		}
		p := &report.Printer{
			Out:        stdout,
			Taxonomy:   tax,
			Normalized: cfg.Normalized,
			PrintRow:   cfg.PrintRow,
			Colorized:  colorized,
		}
		p.All(res)
	}

	if cfg.JSONOutput {
		if err := export.WriteJSON(cfg.ExportFile, res); err != nil {
			return err
		}
		logger.Info("saved results", "file", cfg.ExportFile)
	}
	if *csvFile != "" {
		if err := export.WriteCSV(*csvFile, res); err != nil {
			return err
		}
		logger.Info("saved summary", "file", *csvFile)
	}
	return nil
}

func predict(ctx context.Context, args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("predict", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		modelPath    = fs.String("model", "", "Path to the ONNX segmentation model")
		inputDir     = fs.String("input", "", "Directory of camera images, walked recursively")
		outputDir    = fs.String("output", "results", "Directory receiving *_pred_labelIds.png files")
		inputName    = fs.String("input-name", "input", "Model input tensor name")
		outputName   = fs.String("output-name", "output", "Model output tensor name")
		width        = fs.Int("width", 1024, "Model input width")
		height       = fs.Int("height", 512, "Model input height")
		taxonomyFile = fs.String("taxonomy", "", "YAML label table, Cityscapes when empty")
		provider     = fs.String("provider", "cpu", "Execution provider: cpu, cuda, tensorrt, coreml or openvino")
		deviceID     = fs.Int("device", 0, "Accelerator device id")
		sharedLib    = fs.String("ort-lib", "", "ONNX Runtime shared library")
		decoder      = fs.String("decoder", config.DecoderStd, "Label resizing backend: std or opencv")
	)
	logFormat, verbose := logFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	logger, err := newLogger(stderr, *logFormat, *verbose)
	if err != nil {
		return err
	}
	if *inputDir == "" {
		return errors.New("input directory is required (-input)")
	}

	tax, err := loadTaxonomy(*taxonomyFile)
	if err != nil {
		return err
	}
	backend, err := providers.ParseBackend(*provider)
	if err != nil {
		return err
	}
	resize, err := newResizer(*decoder)
	if err != nil {
		return err
	}

	lut := tax.TrainIDToID()
	seg, err := inference.NewSegmenter(inference.SegmenterConfig{
		ModelPath:     *modelPath,
		InputName:     *inputName,
		OutputName:    *outputName,
		Width:         *width,
		Height:        *height,
		NumClasses:    len(lut),
		Mean:          inference.ImageNetMean,
		Std:           inference.ImageNetStd,
		ClassToLabel:  lut,
		Resize:        resize,
		Provider:      providers.Config{Backend: backend, DeviceID: *deviceID},
		SharedLibPath: *sharedLib,
	})
	if err != nil {
		return err
	}
	defer seg.Close()

	dirs, err := util.WalkFiles(*inputDir)
	if err != nil {
		return err
	}

	count := 0
	for _, dir := range dirs {
		files, err := util.LoadDirectoryImageFiles(dir.Dir, true)
		if err != nil {
			return err
		}
		for _, file := range files {
			if err := ctx.Err(); err != nil {
				return err
			}

			img, _, err := image.Decode(bytes.NewReader(file.Data))
			if err != nil {
				return errors.Wrapf(err, "decoding %s", file.Path)
			}
			labels, err := seg.Predict(img)
			if err != nil {
				return errors.Wrapf(err, "predicting %s", file.Path)
			}

			out, err := predictionPath(*inputDir, *outputDir, file.Path)
			if err != nil {
				return err
			}
			if err := images.WritePNG(out, labels); err != nil {
				return err
			}
			logger.Debug("wrote prediction", "file", out)
			count++
		}
	}

	logger.Info("predictions written", "count", count, "output", *outputDir)
	return nil
}

// predictionPath mirrors the input layout below outputDir and names the
// file after the Cityscapes frame it belongs to.
func predictionPath(inputDir, outputDir, path string) (string, error) {
	rel, err := filepath.Rel(inputDir, path)
	if err != nil {
		return "", errors.Wrapf(err, "locating %s", path)
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if info, err := pairing.ParseFileInfo(path); err == nil {
		name = fmt.Sprintf("%s_%s_%s", info.City, info.Sequence, info.Frame)
	}
	return filepath.Join(outputDir, filepath.Dir(rel), name+"_pred_labelIds.png"), nil
}
