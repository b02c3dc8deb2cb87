// Package providers - ONNX Runtime execution provider selection.
package providers

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

// Backend names an ONNX Runtime execution provider.
type Backend string

const (
	// CPU runs on the default CPU provider.
	CPU Backend = "cpu"
	// CUDA uses NVIDIA CUDA for GPU acceleration.
	CUDA Backend = "cuda"
	// TensorRT uses NVIDIA TensorRT for optimized inference.
	TensorRT Backend = "tensorrt"
	// CoreML uses Apple CoreML for macOS acceleration.
	CoreML Backend = "coreml"
	// OpenVINO uses Intel OpenVINO.
	OpenVINO Backend = "openvino"
)

// ParseBackend returns the backend named s, case insensitive. Empty means
// CPU.
func ParseBackend(s string) (Backend, error) {
	switch b := Backend(strings.ToLower(strings.TrimSpace(s))); b {
	case "":
		return CPU, nil
	case CPU, CUDA, TensorRT, CoreML, OpenVINO:
		return b, nil
	default:
		return "", errors.Errorf("unsupported execution provider %q", s)
	}
}

// Config selects and tunes the execution provider of a session.
type Config struct {
	// Backend specifies the backend to use.
	Backend Backend `json:"backend" yaml:"backend"`
	// DeviceID selects the GPU for CUDA, TensorRT and CoreML flags.
	DeviceID int `json:"deviceId" yaml:"deviceId"`
	// Options are passed verbatim to the provider, e.g. OpenVINO
	// device_type or CUDA gpu_mem_limit.
	Options map[string]string `json:"options,omitempty" yaml:"options,omitempty"`
	// IntraOpThreads bounds the threads used inside one node. Zero lets the
	// runtime decide.
	IntraOpThreads int `json:"intraOpThreads" yaml:"intraOpThreads"`
	// InterOpThreads bounds the threads running independent nodes.
	InterOpThreads int `json:"interOpThreads" yaml:"interOpThreads"`
}

// nativeOptions merges the device id into the provider options.
func (c Config) nativeOptions(deviceKey string) map[string]string {
	opts := make(map[string]string, len(c.Options)+1)
	opts[deviceKey] = fmt.Sprintf("%d", c.DeviceID)
	for k, v := range c.Options {
		opts[k] = v
	}
	return opts
}

// SessionOptions builds session options for c. The caller owns the result
// and must Destroy it.
//
// Returns:
//   - *ort.SessionOptions: Options with the provider appended.
//   - error: An error if the provider cannot be enabled.
func SessionOptions(c Config) (*ort.SessionOptions, error) {
	backend, err := ParseBackend(string(c.Backend))
	if err != nil {
		return nil, err
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, errors.Wrap(err, "error creating ORT session options")
	}

	if err := configure(options, backend, c); err != nil {
		options.Destroy()
		return nil, err
	}
	return options, nil
}

func configure(options *ort.SessionOptions, backend Backend, c Config) error {
	if err := options.SetIntraOpNumThreads(c.IntraOpThreads); err != nil {
		return errors.Wrap(err, "setting intra-op threads")
	}
	if err := options.SetInterOpNumThreads(c.InterOpThreads); err != nil {
		return errors.Wrap(err, "setting inter-op threads")
	}
	if err := options.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableExtended); err != nil {
		return errors.Wrap(err, "setting graph optimization level")
	}

	switch backend {
	case CPU:
	case CUDA:
		cuda, err := ort.NewCUDAProviderOptions()
		if err != nil {
			return errors.Wrap(err, "error creating CUDA options")
		}
		defer cuda.Destroy()
		if err := cuda.Update(c.nativeOptions("device_id")); err != nil {
			return errors.Wrap(err, "error converting CUDA options")
		}
		if err := options.AppendExecutionProviderCUDA(cuda); err != nil {
			return errors.Wrap(err, "error enabling CUDA")
		}
	case TensorRT:
		trt, err := ort.NewTensorRTProviderOptions()
		if err != nil {
			return errors.Wrap(err, "error creating TensorRT options")
		}
		defer trt.Destroy()
		if err := trt.Update(c.nativeOptions("device_id")); err != nil {
			return errors.Wrap(err, "error converting TensorRT options")
		}
		if err := options.AppendExecutionProviderTensorRT(trt); err != nil {
			return errors.Wrap(err, "error enabling TensorRT")
		}
	case CoreML:
		if err := options.AppendExecutionProviderCoreML(uint32(c.DeviceID)); err != nil {
			return errors.Wrap(err, "error enabling CoreML")
		}
	case OpenVINO:
		if err := options.AppendExecutionProviderOpenVINO(c.Options); err != nil {
			return errors.Wrap(err, "error enabling OpenVINO")
		}
	}
	return nil
}
