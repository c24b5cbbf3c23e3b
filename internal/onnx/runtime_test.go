package onnx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLibraryName(t *testing.T) {
	name, err := LibraryName("linux")
	require.NoError(t, err)
	assert.Equal(t, "libonnxruntime.so", name)

	name, err = LibraryName("darwin")
	require.NoError(t, err)
	assert.Equal(t, "libonnxruntime.dylib", name)

	_, err = LibraryName("plan9")
	assert.Error(t, err)
}

func TestCandidateLibraryPaths(t *testing.T) {
	t.Setenv(EnvLibraryPath, "/custom/libonnxruntime.so")

	paths := CandidateLibraryPaths(true, "")
	require.NotEmpty(t, paths)
	assert.Equal(t, "/custom/libonnxruntime.so", paths[0])
	assert.Equal(t, "/opt/onnxruntime/gpu/lib/libonnxruntime.so", paths[1])

	cpu := CandidateLibraryPaths(false, "")
	assert.NotContains(t, cpu, "/opt/onnxruntime/gpu/lib/libonnxruntime.so")
}

func TestCandidateLibraryPaths_ProjectRoot(t *testing.T) {
	t.Setenv(EnvLibraryPath, "")

	paths := CandidateLibraryPaths(false, "/repo")
	assert.Contains(t, paths[len(paths)-1], "/repo/onnxruntime/lib/")
}
