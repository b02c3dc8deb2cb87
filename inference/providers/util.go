package providers

import (
	"os"
	"runtime"
	"sync"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

// EnvSharedLib overrides the ONNX Runtime shared library location.
const EnvSharedLib = "ONNXRUNTIME_SHARED_LIBRARY_PATH"

// GetSharedLibPath returns the path to the shared library for the current
// platform, or the value of EnvSharedLib when set.
//
// Returns:
//   - string: The path to the shared library.
//   - error: An error if the platform has no known library.
func GetSharedLibPath() (string, error) {
	if path := os.Getenv(EnvSharedLib); path != "" {
		return path, nil
	}
	return platformLibPath(runtime.GOOS, runtime.GOARCH)
}

func platformLibPath(goos, goarch string) (string, error) {
	switch {
	case goos == "windows" && goarch == "amd64":
		return "./third_party/onnxruntime.dll", nil
	case goos == "darwin":
		return "./third_party/libonnxruntime.1.21.0.dylib", nil
	case goos == "linux" && goarch == "arm64":
		return "./third_party/onnxruntime_arm64.so", nil
	case goos == "linux":
		return "./third_party/onnxruntime.so", nil
	}
	return "", errors.Errorf("no onnxruntime library supports %s/%s", goos, goarch)
}

var (
	initOnce sync.Once
	initErr  error
)

// Initialize loads the ONNX Runtime library once per process.
//
// Arguments:
//   - libPath: The shared library. Empty means GetSharedLibPath.
//
// Returns:
//   - error: An error if the library is missing or fails to load. The
//     first outcome is returned to every later caller.
func Initialize(libPath string) error {
	initOnce.Do(func() {
		if libPath == "" {
			if libPath, initErr = GetSharedLibPath(); initErr != nil {
				return
			}
		}
		if _, err := os.Stat(libPath); err != nil {
			initErr = errors.Wrapf(err, "ONNX Runtime library not found at %s", libPath)
			return
		}

		ort.SetSharedLibraryPath(libPath)
		if err := ort.InitializeEnvironment(); err != nil {
			initErr = errors.Wrap(err, "error initializing ORT environment")
		}
	})
	return initErr
}
