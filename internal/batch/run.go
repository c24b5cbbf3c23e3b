package batch

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/MeKo-Tech/chatocr/internal/pipeline"
	"github.com/MeKo-Tech/chatocr/internal/utils"
)

// Processor runs both analysis streams on one image.
type Processor interface {
	Process(ctx context.Context, img image.Image, opts ...pipeline.Option) *pipeline.ImageResult
}

// Options controls a batch run.
type Options struct {
	Workers int // <= 0 uses GOMAXPROCS
	// Called from the worker goroutine after each image is processed, e.g.
	// to write an overlay. A returned error is stored on the item.
	AfterEach func(path string, img image.Image, res *pipeline.ImageResult) error
	Process   []pipeline.Option
}

// Item is the outcome for one file. Err is set when the file could not be
// loaded or AfterEach failed; stream failures live in Result.
type Item struct {
	Path   string
	Result *pipeline.ImageResult
	Err    error
}

// Run processes files concurrently and returns the items in input order.
// It stops early only when ctx is cancelled.
func Run(ctx context.Context, proc Processor, files []string, opts Options) ([]Item, error) {
	items := make([]Item, len(files))
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, path := range files {
		if gctx.Err() != nil {
			break
		}
		i, path := i, path
		g.Go(func() error {
			items[i] = processFile(gctx, proc, path, opts)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return items, err
	}
	return items, nil
}

func processFile(ctx context.Context, proc Processor, path string, opts Options) Item {
	item := Item{Path: path}

	img, _, err := utils.LoadImage(path)
	if err != nil {
		item.Err = fmt.Errorf("failed to load %s: %w", path, err)
		return item
	}

	item.Result = proc.Process(ctx, img, opts.Process...)
	slog.Debug("Processed image",
		"file", path,
		"failed", item.Result.Failed(),
		"texts", len(item.Result.Text.Texts),
		"windows", len(item.Result.Objects.Result.Windows),
		"elements", item.Result.Objects.Result.Summary(),
		"duration", item.Result.Duration)

	if opts.AfterEach != nil {
		if err := opts.AfterEach(path, img, item.Result); err != nil {
			item.Err = err
		}
	}
	return item
}
