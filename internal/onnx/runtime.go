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

// LibraryEnv names the environment variable that points at the ONNX Runtime
// shared library.
const LibraryEnv = "ONNXRUNTIME_LIB"

// ErrLibraryNotFound is returned when no ONNX Runtime shared library exists
// at any candidate location.
var ErrLibraryNotFound = errors.New("ONNX Runtime library not found")

var initMu sync.Mutex

// libraryName returns the shared library file name for goos.
func libraryName(goos string) (string, error) {
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

// LibraryCandidates lists the locations probed for the shared library, most
// specific first: the explicit path, the environment variable, system
// locations (GPU builds first when useGPU) and an onnxruntime/ directory next
// to the executable.
func LibraryCandidates(explicit string, useGPU bool) []string {
	var out []string
	if explicit != "" {
		out = append(out, explicit)
	}
	if env := os.Getenv(LibraryEnv); env != "" {
		out = append(out, env)
	}

	name, err := libraryName(runtime.GOOS)
	if err != nil {
		return out
	}
	if useGPU {
		out = append(out, filepath.Join("/opt/onnxruntime/gpu/lib", name))
	}
	out = append(out,
		filepath.Join("/usr/local/lib", name),
		filepath.Join("/usr/lib", name),
		filepath.Join("/opt/onnxruntime/cpu/lib", name),
	)
	if exe, err := os.Executable(); err == nil {
		dir := filepath.Dir(exe)
		if useGPU {
			out = append(out, filepath.Join(dir, "onnxruntime", "gpu", "lib", name))
		}
		out = append(out, filepath.Join(dir, "onnxruntime", "lib", name))
	}
	return out
}

// Init locates the shared library and initializes the ONNX Runtime
// environment once per process. Later calls are no-ops.
func Init(libraryPath string, useGPU bool) error {
	initMu.Lock()
	defer initMu.Unlock()

	if ort.IsInitialized() {
		return nil
	}

	found := ""
	for _, p := range LibraryCandidates(libraryPath, useGPU) {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			found = p
			break
		}
	}
	if found == "" {
		return fmt.Errorf("%w (set %s or onnx.library_path)", ErrLibraryNotFound, LibraryEnv)
	}

	ort.SetSharedLibraryPath(found)
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("failed to initialize ONNX Runtime: %w", err)
	}
	return nil
}
