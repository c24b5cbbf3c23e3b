package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/chatocr/internal/organizer"
	"github.com/MeKo-Tech/chatocr/internal/testutil"
	"github.com/MeKo-Tech/chatocr/internal/utils"
)

// sizes are the screenshot dimensions generated, portrait phone first.
var sizes = []struct{ w, h int }{
	{360, 640},
	{720, 1280},
	{1280, 720},
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	var (
		outDir  = flag.String("out", "testdata/images/chat", "output directory")
		bubbles = flag.Int("bubbles", 6, "chat bubbles per screenshot")
		help    = flag.Bool("h", false, "Show help")
	)
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Generate synthetic chat screenshots with their expected detection results.\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if *help {
		flag.Usage()
		return
	}

	if err := generate(*outDir, *bubbles); err != nil {
		slog.Error("Test data generation failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Test data generation completed", "dir", *outDir)
}

// generate writes chat_<w>x<h>.png next to chat_<w>x<h>.json, which holds
// the organized result a perfect detector would produce.
func generate(dir string, bubbles int) error {
	if bubbles < 1 {
		return fmt.Errorf("bubbles must be positive, got %d", bubbles)
	}
	for _, s := range sizes {
		shot := testutil.GenerateChatScreenshot(s.w, s.h, bubbles)
		base := filepath.Join(dir, fmt.Sprintf("chat_%dx%d", s.w, s.h))

		if err := utils.SaveImage(base+".png", shot.Image); err != nil {
			return err
		}

		expected := organizer.Organize(shot.Detections, organizer.DefaultThreshold)
		data, err := json.MarshalIndent(expected, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode expected result: %w", err)
		}
		if err := os.WriteFile(base+".json", data, 0o600); err != nil {
			return fmt.Errorf("failed to write expected result: %w", err)
		}
		slog.Info("Generated screenshot", "file", base+".png", "windows", len(expected.Windows))
	}
	return nil
}
