package detector

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLabels(t *testing.T) {
	tests := []struct {
		name string
		data string
		want []string
	}{
		{
			name: "dataset file with list",
			data: "path: data\nnames:\n  - chat_window\n  - sender\n  - receiver\n  - emoji\n",
			want: []string{"chat_window", "sender", "receiver", "emoji"},
		},
		{
			name: "dataset file with index map",
			data: "nc: 2\nnames:\n  1: sender\n  0: chat_window\n",
			want: []string{"chat_window", "sender"},
		},
		{
			name: "onnx metadata flow map",
			data: "{0: 'chat_window', 1: 'sender', 2: 'receiver', 3: 'emoji'}",
			want: []string{"chat_window", "sender", "receiver", "emoji"},
		},
		{
			name: "bare list",
			data: "[chat_window, emoji]",
			want: []string{"chat_window", "emoji"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLabels([]byte(tt.data))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseLabels_Errors(t *testing.T) {
	for name, data := range map[string]string{
		"empty document":   "",
		"scalar":           "chat_window",
		"gap in indices":   "{0: a, 2: b}",
		"empty label":      "[chat_window, '']",
		"empty list":       "names: []",
		"malformed yaml":   "names: [a, b",
		"non integer keys": "{a: b}",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseLabels([]byte(data))
			assert.Error(t, err)
		})
	}
}

func TestResolveLabels(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "labels.yaml")
	require.NoError(t, os.WriteFile(path, []byte("names: [window, bubble]"), 0o600))

	names, source := resolveLabels(Config{LabelsPath: path, ModelPath: filepath.Join(dir, "none.onnx")})
	assert.Equal(t, []string{"window", "bubble"}, names)
	assert.Equal(t, "file", source)
}

func TestLoadLabels_MissingFile(t *testing.T) {
	_, err := LoadLabels(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDefaultLabels(t *testing.T) {
	assert.Equal(t, []string{"chat_window", "sender", "receiver", "emoji"}, DefaultLabels())
}
