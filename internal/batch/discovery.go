// Package batch finds screenshot files and runs them through a processor
// with a bounded number of workers.
package batch

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/chatocr/internal/utils"
)

// DiscoverOptions controls how directories are expanded.
type DiscoverOptions struct {
	Recursive bool
	Include   []string // base-name glob patterns; empty means all images
	Exclude   []string // base-name glob patterns
}

// Discover expands args into image files. Directories contribute the
// supported images they contain; explicit files must be supported images.
// The result keeps argument order and lexical order inside directories.
func Discover(args []string, opts DiscoverOptions) ([]string, error) {
	var files []string
	seen := make(map[string]bool)
	add := func(path string) {
		if !seen[path] {
			seen[path] = true
			files = append(files, path)
		}
	}

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", arg, err)
		}

		if !info.IsDir() {
			if !utils.IsSupportedImage(arg) {
				return nil, fmt.Errorf("unsupported image file: %s", arg)
			}
			if opts.include(arg) {
				add(arg)
			}
			continue
		}

		found, err := discoverInDirectory(arg, opts)
		if err != nil {
			return nil, err
		}
		for _, f := range found {
			add(f)
		}
	}
	return files, nil
}

func discoverInDirectory(dir string, opts DiscoverOptions) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && !opts.Recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if utils.IsSupportedImage(path) && opts.include(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", dir, err)
	}
	return files, nil
}

// include applies the exclude patterns first, then the include patterns.
func (o DiscoverOptions) include(path string) bool {
	if matchesAny(path, o.Exclude) {
		return false
	}
	return len(o.Include) == 0 || matchesAny(path, o.Include)
}

func matchesAny(path string, patterns []string) bool {
	base := filepath.Base(path)
	for _, p := range patterns {
		if ok, _ := filepath.Match(p, base); ok {
			return true
		}
	}
	return false
}
