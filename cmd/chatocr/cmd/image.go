package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/chatocr/internal/batch"
	"github.com/MeKo-Tech/chatocr/internal/pipeline"
	"github.com/MeKo-Tech/chatocr/internal/utils"
)

type imageOptions struct {
	Format     string
	OutputFile string
	OverlayDir string
	Workers    int
}

// fileResult is one entry of the JSON output.
type fileResult struct {
	File   string                `json:"file"`
	Status string                `json:"status"`
	Data   *pipeline.ImageResult `json:"data"`
	Error  string                `json:"error,omitempty"`
}

var imageCmd = &cobra.Command{
	Use:   "image [flags] <file|dir>...",
	Short: "Process chat screenshots",
	Long: `Process one or more chat screenshots.

For every image the text lines are recognized and the chat windows are
detected together with the sender bubbles, receiver bubbles and emojis
inside each window. Both results are reported independently.

Examples:
  chatocr image chat.png
  chatocr image a.png b.jpg --format text
  chatocr image chat.png --threshold 0.9 --no-text
  chatocr image chat.png --overlay-dir out/ --output result.json
  chatocr image screenshots/ --recursive --workers 4`,
	Args: cobra.MinimumNArgs(1),
	RunE: runImage,
}

func runImage(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	if err := cfg.Validate(); err != nil {
		return err
	}

	recursive, _ := cmd.Flags().GetBool("recursive")
	include, _ := cmd.Flags().GetStringSlice("include")
	exclude, _ := cmd.Flags().GetStringSlice("exclude")
	files, err := batch.Discover(args, batch.DiscoverOptions{
		Recursive: recursive,
		Include:   include,
		Exclude:   exclude,
	})
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return errors.New("no image files found")
	}

	noText, _ := cmd.Flags().GetBool("no-text")
	p, err := buildPipeline(cfg, noText)
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	workers, _ := cmd.Flags().GetInt("workers")
	opts := imageOptions{
		Format:     cfg.Output.Format,
		OutputFile: cfg.Output.File,
		OverlayDir: cfg.Output.OverlayDir,
		Workers:    workers,
	}
	return processImages(cmd.Context(), p, files, opts, cmd.OutOrStdout())
}

// processImages runs every file through proc and writes the results to
// opts.OutputFile, or stdout when it is empty. It fails after writing when any
// image could not be loaded or has a failed stream.
func processImages(ctx context.Context, proc batch.Processor, files []string, opts imageOptions, stdout io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	runOpts := batch.Options{Workers: opts.Workers}
	if opts.OverlayDir != "" {
		runOpts.AfterEach = func(path string, img image.Image, res *pipeline.ImageResult) error {
			return writeOverlay(opts.OverlayDir, path, img, res)
		}
	}
	items, err := batch.Run(ctx, proc, files, runOpts)
	if err != nil {
		return err
	}

	results := make([]fileResult, 0, len(items))
	failed := 0
	for _, it := range items {
		entry := fileResult{File: it.Path, Status: "Success", Data: it.Result}
		switch {
		case it.Err != nil:
			entry.Status = "Failed"
			entry.Error = it.Err.Error()
			failed++
			slog.Warn("Image processing failed", "file", it.Path, "error", it.Err)
		case it.Result.Failed():
			entry.Status = "Failed"
			failed++
			slog.Warn("Image processing failed",
				"file", it.Path,
				"text_error", it.Result.Text.Err,
				"detection_error", it.Result.Objects.Err)
		}
		results = append(results, entry)
	}

	out := stdout
	if opts.OutputFile != "" {
		f, err := os.Create(opts.OutputFile) //nolint:gosec // G304: output path is chosen by the user
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer func() { _ = f.Close() }()
		out = f
	}
	if err := writeResults(out, results, opts.Format); err != nil {
		return err
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d images failed", failed, len(files))
	}
	return nil
}

func writeResults(w io.Writer, results []fileResult, format string) error {
	switch format {
	case "text":
		for i, r := range results {
			if i > 0 {
				if _, err := fmt.Fprintln(w); err != nil {
					return err
				}
			}
			if _, err := fmt.Fprintf(w, "== %s (%s) ==\n", r.File, r.Status); err != nil {
				return err
			}
			body := "  error: " + r.Error + "\n"
			if r.Data != nil {
				body = pipeline.ToPlainText(r.Data)
			}
			if _, err := io.WriteString(w, body); err != nil {
				return err
			}
		}
		return nil
	case "json", "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

// overlayPath names the overlay for src inside dir.
func overlayPath(dir, src string) string {
	base := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	return filepath.Join(dir, base+"_overlay.png")
}

func writeOverlay(dir, src string, img image.Image, res *pipeline.ImageResult) error {
	path := overlayPath(dir, src)
	if err := utils.SaveImage(path, pipeline.RenderOverlay(img, res, nil)); err != nil {
		return fmt.Errorf("failed to write overlay for %s: %w", src, err)
	}
	slog.Info("Wrote overlay", "file", path)
	return nil
}

func init() {
	rootCmd.AddCommand(imageCmd)

	imageCmd.Flags().StringP("format", "f", "json", "output format (json, text)")
	imageCmd.Flags().StringP("output", "o", "", "write results to this file instead of stdout")
	imageCmd.Flags().String("overlay-dir", "", "write annotated overlay images to this directory")
	imageCmd.Flags().Float64("threshold", 0.8, "minimum share of an element inside a chat window (0..1]")
	imageCmd.Flags().Float64("confidence", 0.5, "minimum detector confidence (0..1)")
	imageCmd.Flags().Float64("nms", 0.45, "detector IoU suppression threshold (0..1)")
	imageCmd.Flags().String("det-model", "", "override detector model path")
	imageCmd.Flags().String("labels", "", "override detector class names file")
	imageCmd.Flags().StringP("language", "l", "eng", "tesseract language(s), e.g. eng+deu")
	imageCmd.Flags().String("tessdata", "", "tesseract data directory")
	imageCmd.Flags().String("text-level", "line", "text granularity (line, word)")
	imageCmd.Flags().Bool("no-text", false, "skip text recognition")
	imageCmd.Flags().BoolP("recursive", "r", false, "descend into subdirectories")
	imageCmd.Flags().StringSlice("include", nil, "only process files whose name matches these globs")
	imageCmd.Flags().StringSlice("exclude", nil, "skip files whose name matches these globs")
	imageCmd.Flags().IntP("workers", "w", 0, "images processed concurrently (0 = number of CPUs)")
	imageCmd.Flags().Bool("parallel", false, "run text recognition and detection concurrently")
	imageCmd.Flags().Bool("gpu", false, "run the detector on CUDA")
	imageCmd.Flags().Int("gpu-device", 0, "CUDA device id")
	imageCmd.Flags().String("gpu-mem-limit", "auto", "CUDA memory limit (e.g. 2GB, auto)")

	bindFlags(imageCmd.Flags().Lookup, []flagBinding{
		{"output.format", "format"},
		{"output.file", "output"},
		{"output.overlay_dir", "overlay-dir"},
		{"pipeline.organizer.containment_threshold", "threshold"},
		{"pipeline.detector.confidence_threshold", "confidence"},
		{"pipeline.detector.nms_threshold", "nms"},
		{"pipeline.detector.model_path", "det-model"},
		{"pipeline.detector.labels_path", "labels"},
		{"pipeline.recognizer.language", "language"},
		{"pipeline.recognizer.tessdata_prefix", "tessdata"},
		{"pipeline.recognizer.level", "text-level"},
		{"pipeline.parallel", "parallel"},
		{"gpu.enabled", "gpu"},
		{"gpu.device", "gpu-device"},
		{"gpu.memory_limit", "gpu-mem-limit"},
	})
}
