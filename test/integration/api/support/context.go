// Package support holds the step definitions for the API feature suite.
package support

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"

	"github.com/MeKo-Tech/chatocr/internal/pipeline"
	"github.com/MeKo-Tech/chatocr/internal/region"
	"github.com/MeKo-Tech/chatocr/internal/server"
	"github.com/MeKo-Tech/chatocr/internal/testutil"
)

// TestContext holds the state of one scenario.
type TestContext struct {
	Shot       testutil.ChatScreenshot
	Detector   *testutil.StaticDetector
	Recognizer *testutil.StaticRecognizer
	Config     server.Config

	HTTPServer *httptest.Server
	chat       *server.Server

	LastStatusCode int
	LastBody       []byte
	LastHeaders    http.Header
}

// NewTestContext prepares fakes describing a synthetic chat screenshot.
func NewTestContext(modelsDir string) *TestContext {
	shot := testutil.GenerateChatScreenshot(400, 600, 4)
	return &TestContext{
		Shot:     shot,
		Detector: &testutil.StaticDetector{Detections: shot.Detections},
		Recognizer: &testutil.StaticRecognizer{Texts: []region.Text{
			{Text: "are we still on for tonight", Box: region.NewBox(220, 120, 360, 140)},
		}},
		Config: server.Config{
			CORSOrigin:     "*",
			MaxUploadMB:    5,
			TimeoutSec:     5,
			ModelsDir:      modelsDir,
			OverlayEnabled: true,
		},
	}
}

// Start launches the server with the current fakes and configuration.
func (tc *TestContext) Start() error {
	if tc.HTTPServer != nil {
		return errors.New("server already running")
	}
	driver, err := pipeline.NewDriver(tc.Detector, tc.Recognizer, pipeline.DefaultDriverConfig())
	if err != nil {
		return fmt.Errorf("failed to create driver: %w", err)
	}
	tc.chat, err = server.NewServer(tc.Config, driver)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	tc.HTTPServer = httptest.NewServer(tc.chat.Handler())
	return nil
}

// Cleanup stops the server.
func (tc *TestContext) Cleanup() error {
	if tc.HTTPServer != nil {
		tc.HTTPServer.Close()
		tc.HTTPServer = nil
	}
	if tc.chat != nil {
		err := tc.chat.Close()
		tc.chat = nil
		return err
	}
	return nil
}

// URL joins path onto the running server.
func (tc *TestContext) URL(path string) string {
	return tc.HTTPServer.URL + path
}
