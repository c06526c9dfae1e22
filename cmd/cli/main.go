// Command cli is a local demonstration driver: it discovers image files in a
// directory, ingests a few of them for a demo user, then runs sample
// searches against the resulting metadata.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/snapkeeper/snapkeeper/internal/blob"
	"github.com/snapkeeper/snapkeeper/internal/config"
	"github.com/snapkeeper/snapkeeper/internal/detect"
	"github.com/snapkeeper/snapkeeper/internal/filex"
	"github.com/snapkeeper/snapkeeper/internal/logging"
	"github.com/snapkeeper/snapkeeper/internal/metadata"
	"github.com/snapkeeper/snapkeeper/internal/pipeline"
	"github.com/snapkeeper/snapkeeper/internal/search"
)

const (
	demoUser         = "demo"
	maxPhotos        = 3
	defaultSourceDir = "."
)

var imageExtensions = map[string]struct{}{
	".png":  {},
	".jpg":  {},
	".jpeg": {},
	".gif":  {},
	".webp": {},
}

func main() {
	if err := run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg := config.LoadConfig()

	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	blobDir, err := filex.EnsureSubDir(cfg.BlobDir)
	if err != nil {
		return err
	}
	if _, err := filex.EnsureSubDir(filepath.Dir(cfg.MetadataPath)); err != nil {
		return err
	}

	blobs, err := blob.NewFSStore(blobDir)
	if err != nil {
		return err
	}
	store, err := metadata.NewFileStore(cfg.MetadataPath)
	if err != nil {
		return err
	}

	p := pipeline.New(blobs, detect.NewStaticDetector(), store, logger, pipeline.Options{
		DetectTimeout: cfg.DetectTimeout,
	})

	dir := defaultSourceDir
	if len(os.Args) > 1 && !strings.HasPrefix(os.Args[len(os.Args)-1], "-") {
		dir = os.Args[len(os.Args)-1]
	}

	photos, err := discoverImages(dir)
	if err != nil {
		return err
	}
	if len(photos) == 0 {
		fmt.Printf("no image files found in %s\n", dir)
		return nil
	}
	if len(photos) > maxPhotos {
		photos = photos[:maxPhotos]
	}

	for _, path := range photos {
		record, err := p.Ingest(ctx, path, filepath.Base(path), demoUser)
		if err != nil {
			fmt.Printf("ingest %s: %v\n", path, err)
			continue
		}
		fmt.Printf("ingested %s tags=%v\n", record.ID, record.Tags)
	}

	idx := search.NewIndex(store)
	for _, query := range []string{"error", "login", "person", demoUser} {
		results, err := idx.Search(ctx, query)
		if err != nil {
			return err
		}
		fmt.Printf("search %q: %d result(s)\n", query, len(results))
		for _, r := range results {
			fmt.Printf("  %s %v\n", r.ID, r.Tags)
		}
	}

	return nil
}

// discoverImages returns image file paths directly inside dir, sorted by
// name (os.ReadDir sorts).
func discoverImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var photos []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if _, ok := imageExtensions[ext]; ok {
			photos = append(photos, filepath.Join(dir, e.Name()))
		}
	}
	return photos, nil
}
