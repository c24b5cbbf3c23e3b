package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/chatocr/internal/organizer"
	"github.com/MeKo-Tech/chatocr/internal/pipeline"
	"github.com/MeKo-Tech/chatocr/internal/region"
	"github.com/MeKo-Tech/chatocr/internal/testutil"
)

type outputEntry struct {
	File   string `json:"file"`
	Status string `json:"status"`
	Data   struct {
		Texts           []region.Text    `json:"texts"`
		Detections      organizer.Result `json:"detections"`
		DetectionStatus string           `json:"detection_status"`
	} `json:"data"`
	Error string `json:"error"`
}

// chatFixture writes a synthetic screenshot and returns its path together
// with a driver whose fakes describe it.
func chatFixture(t *testing.T, detErr error) (string, *pipeline.Driver) {
	t.Helper()
	shot := testutil.GenerateChatScreenshot(400, 600, 4)
	path := filepath.Join(t.TempDir(), "chat.png")
	testutil.SaveImage(t, shot.Image, path)

	det := &testutil.StaticDetector{Detections: shot.Detections, Err: detErr}
	rec := &testutil.StaticRecognizer{Texts: []region.Text{
		{Text: "hey there", Box: region.NewBox(220, 120, 360, 140)},
	}}
	drv, err := pipeline.NewDriver(det, rec, pipeline.DefaultDriverConfig())
	require.NoError(t, err)
	return path, drv
}

func TestImageCommand(t *testing.T) {
	assert.True(t, strings.HasPrefix(imageCmd.Use, "image"))
	assert.NotEmpty(t, imageCmd.Short)
	for _, name := range []string{
		"format", "output", "overlay-dir", "threshold", "no-text", "confidence", "language",
		"recursive", "include", "exclude", "workers",
	} {
		assert.NotNil(t, imageCmd.Flags().Lookup(name), "missing flag %q", name)
	}
}

func TestProcessImagesJSON(t *testing.T) {
	path, drv := chatFixture(t, nil)

	var out bytes.Buffer
	err := processImages(context.Background(), drv, []string{path}, imageOptions{Format: "json"}, &out)
	require.NoError(t, err)

	var entries []outputEntry
	require.NoError(t, json.Unmarshal(out.Bytes(), &entries), out.String())
	require.Len(t, entries, 1)

	e := entries[0]
	assert.Equal(t, path, e.File)
	assert.Equal(t, "Success", e.Status)
	require.Len(t, e.Data.Texts, 1)
	assert.Equal(t, "hey there", e.Data.Texts[0].Text)

	require.True(t, e.Data.Detections.Screenshot)
	require.Len(t, e.Data.Detections.Windows, 1)
	assert.Equal(t, map[string]int{
		organizer.ClassSender:   2,
		organizer.ClassReceiver: 2,
		organizer.ClassEmoji:    1,
	}, e.Data.Detections.Summary())
}

func TestProcessImagesText(t *testing.T) {
	path, drv := chatFixture(t, nil)

	var out bytes.Buffer
	err := processImages(context.Background(), drv, []string{path, path}, imageOptions{Format: "text", Workers: 2}, &out)
	require.NoError(t, err)

	text := out.String()
	assert.Equal(t, 2, strings.Count(text, "== "+path+" (Success) =="))
	assert.Contains(t, text, "hey there")
	assert.Contains(t, text, "Window 1")
}

func TestProcessImagesOutputFileAndOverlay(t *testing.T) {
	path, drv := chatFixture(t, nil)
	dir := t.TempDir()
	opts := imageOptions{
		Format:     "json",
		OutputFile: filepath.Join(dir, "result.json"),
		OverlayDir: filepath.Join(dir, "overlays"),
	}

	var out bytes.Buffer
	require.NoError(t, processImages(context.Background(), drv, []string{path}, opts, &out))

	assert.Empty(t, out.String())
	data, err := os.ReadFile(opts.OutputFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"status": "Success"`)
	assert.True(t, testutil.FileExists(filepath.Join(opts.OverlayDir, "chat_overlay.png")))
}

func TestProcessImagesFailedStream(t *testing.T) {
	path, drv := chatFixture(t, errors.New("model crashed"))

	var out bytes.Buffer
	err := processImages(context.Background(), drv, []string{path}, imageOptions{Format: "json"}, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 1 images failed")

	var entries []outputEntry
	require.NoError(t, json.Unmarshal(out.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "Failed", entries[0].Status)
	assert.Equal(t, "failed", entries[0].Data.DetectionStatus)
	assert.Len(t, entries[0].Data.Texts, 1)
}

func TestProcessImagesLoadError(t *testing.T) {
	path, drv := chatFixture(t, nil)
	broken := filepath.Join(t.TempDir(), "broken.png")
	require.NoError(t, os.WriteFile(broken, []byte("not an image"), 0o600))

	var out bytes.Buffer
	err := processImages(context.Background(), drv, []string{path, broken}, imageOptions{Format: "json"}, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 images failed")

	var entries []outputEntry
	require.NoError(t, json.Unmarshal(out.Bytes(), &entries), out.String())
	require.Len(t, entries, 2)

	assert.Equal(t, path, entries[0].File)
	assert.Equal(t, "Success", entries[0].Status)
	assert.Empty(t, entries[0].Error)
	assert.True(t, entries[0].Data.Detections.Screenshot)

	assert.Equal(t, broken, entries[1].File)
	assert.Equal(t, "Failed", entries[1].Status)
	assert.Contains(t, entries[1].Error, "broken.png")
}

func TestProcessImagesLoadErrorText(t *testing.T) {
	path, drv := chatFixture(t, nil)
	missing := filepath.Join(t.TempDir(), "missing.png")

	var out bytes.Buffer
	err := processImages(context.Background(), drv, []string{missing, path}, imageOptions{Format: "text"}, &out)
	require.Error(t, err)

	text := out.String()
	assert.Contains(t, text, "== "+missing+" (Failed) ==\n  error: ")
	assert.Contains(t, text, "== "+path+" (Success) ==")
	assert.Contains(t, text, "hey there")
}

func TestProcessImagesUnknownFormat(t *testing.T) {
	path, drv := chatFixture(t, nil)
	err := processImages(context.Background(), drv, []string{path}, imageOptions{Format: "xml"}, &bytes.Buffer{})
	assert.EqualError(t, err, "unsupported output format: xml")
}

func TestOverlayPath(t *testing.T) {
	assert.Equal(t, filepath.Join("out", "chat_overlay.png"), overlayPath("out", "shots/chat.jpg"))
	assert.Equal(t, filepath.Join("out", "a.b_overlay.png"), overlayPath("out", "a.b.png"))
}

func TestImageCommandEmptyDirectory(t *testing.T) {
	dir := isolateConfig(t)
	empty := filepath.Join(dir, "empty")
	require.NoError(t, os.Mkdir(empty, 0o750))

	_, _, err := execute(t, "image", empty)
	assert.EqualError(t, err, "no image files found")
}

func TestImageCommandRequiresFile(t *testing.T) {
	isolateConfig(t)
	_, _, err := execute(t, "image")
	assert.Error(t, err)
}

func TestImageCommandRejectsUnsupportedFile(t *testing.T) {
	dir := isolateConfig(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), 0o600))

	_, _, err := execute(t, "image", "notes.txt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported image file")
}
