// Package onnx wraps onnxruntime initialisation: locating the shared
// library, bringing up the environment once and configuring sessions.
package onnx

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// EnvLibraryPath overrides the onnxruntime shared library location.
const EnvLibraryPath = "CHATOCR_ONNXRUNTIME_LIB"

var initMu sync.Mutex

// LibraryName returns the onnxruntime shared library file name for goos.
func LibraryName(goos string) (string, error) {
	switch goos {
	case "linux":
		return "libonnxruntime.so", nil
	case "darwin":
		return "libonnxruntime.dylib", nil
	case "windows":
		return "onnxruntime.dll", nil
	default:
		return "", fmt.Errorf("unsupported operating system: %s", goos)
	}
}

// CandidateLibraryPaths lists where the shared library is looked for, in
// order. GPU builds are preferred when useGPU is set.
func CandidateLibraryPaths(useGPU bool, projectRoot string) []string {
	var paths []string
	if p := os.Getenv(EnvLibraryPath); p != "" {
		paths = append(paths, p)
	}
	if useGPU {
		paths = append(paths, "/opt/onnxruntime/gpu/lib/libonnxruntime.so")
	}
	paths = append(paths,
		"/usr/local/lib/libonnxruntime.so",
		"/usr/lib/libonnxruntime.so",
		"/opt/onnxruntime/cpu/lib/libonnxruntime.so",
	)
	if projectRoot != "" {
		if name, err := LibraryName(runtime.GOOS); err == nil {
			if useGPU {
				paths = append(paths, filepath.Join(projectRoot, "onnxruntime", "gpu", "lib", name))
			}
			paths = append(paths, filepath.Join(projectRoot, "onnxruntime", "lib", name))
		}
	}
	return paths
}

// findProjectRoot walks up from the working directory to the go.mod.
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// SetLibraryPath points onnxruntime at the first existing candidate library.
func SetLibraryPath(useGPU bool) (string, error) {
	for _, p := range CandidateLibraryPaths(useGPU, findProjectRoot()) {
		if _, err := os.Stat(p); err == nil {
			ort.SetSharedLibraryPath(p)
			return p, nil
		}
	}
	return "", errors.New("onnxruntime shared library not found; set " + EnvLibraryPath)
}

// Initialize loads the shared library and initialises the onnxruntime
// environment once per process.
func Initialize(useGPU bool) error {
	initMu.Lock()
	defer initMu.Unlock()

	if ort.IsInitialized() {
		return nil
	}
	if _, err := SetLibraryPath(useGPU); err != nil {
		return err
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("failed to initialize ONNX Runtime: %w", err)
	}
	return nil
}

// NewSessionOptions builds session options for the given threading and GPU
// settings. The caller owns the returned options.
func NewSessionOptions(numThreads int, gpu GPUConfig) (*ort.SessionOptions, error) {
	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	if err := ConfigureSessionForGPU(opts, gpu); err != nil {
		_ = opts.Destroy()
		return nil, fmt.Errorf("failed to configure GPU: %w", err)
	}
	if numThreads > 0 {
		if err := opts.SetIntraOpNumThreads(numThreads); err != nil {
			_ = opts.Destroy()
			return nil, fmt.Errorf("failed to set thread count: %w", err)
		}
	}
	return opts, nil
}
