// Package walker feeds the regular files of one directory through the
// thumbnail pipeline and keeps count of what happened.
package walker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/sourcegraph/conc/pool"
	"github.com/wb-go/wbf/zlog"
	"go.uber.org/multierr"

	"github.com/aliskhannn/thumbnailer/internal/config"
	"github.com/aliskhannn/thumbnailer/internal/model"
	"github.com/aliskhannn/thumbnailer/internal/storage/file"
)

// ErrNotADirectory is returned when the target path is not a directory.
var ErrNotADirectory = errors.New("not a directory")

// readBatch is how many directory entries are read at a time.
const readBatch = 128

// processor defines the interface for the per-file thumbnail pipeline.
type processor interface {
	Process(ctx context.Context, req model.Request) (model.Result, error)
}

// Walker dispatches the files of a directory to a processor.
type Walker struct {
	cfg       config.Config
	processor processor
	counters  *counters

	mu       sync.Mutex
	failures error
}

// New creates a new Walker for cfg.Directory.
func New(cfg config.Config, p processor) *Walker {
	return &Walker{
		cfg:       cfg,
		processor: p,
		counters:  &counters{},
	}
}

// CheckDirectory returns ErrNotADirectory unless dir resolves to a directory.
func CheckDirectory(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("%s: %w: %v", dir, ErrNotADirectory, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s: %w", dir, ErrNotADirectory)
	}

	return nil
}

// Walk processes every regular file directly inside the directory, using up
// to cfg.Workers goroutines. Per-file failures are logged and collected in
// the returned Summary; only a bad directory makes Walk itself fail.
//
// Cancelling ctx stops dispatching new files; files already started finish.
func (w *Walker) Walk(ctx context.Context) (Summary, error) {
	dir := w.cfg.Directory

	if err := CheckDirectory(dir); err != nil {
		return Summary{}, err
	}

	d, err := os.Open(dir)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to open directory: %w", err)
	}
	defer d.Close()

	zlog.Logger.Info().
		Str("directory", dir).
		Float64("quality", w.cfg.Quality).
		Int("max_width", w.cfg.MaxWidth).
		Int("workers", w.cfg.Workers).
		Msg("starting walk")

	p := pool.New().WithMaxGoroutines(w.cfg.Workers)

	for ctx.Err() == nil {
		entries, readErr := d.ReadDir(readBatch)

		for _, e := range entries {
			if ctx.Err() != nil {
				zlog.Logger.Warn().Msg("interrupted, not dispatching more files")
				break
			}

			path := filepath.Join(dir, e.Name())
			p.Go(func() {
				w.ProcessFile(ctx, path)
			})
		}

		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			w.fail(dir, fmt.Errorf("failed to read directory: %w", readErr))
			break
		}
	}

	p.Wait()

	sum := w.Summary()
	w.logSummary(sum)

	return sum, nil
}

// ProcessFile runs the pipeline for a single path if it is a regular file
// (following symlinks) and records the outcome. In-flight writes of the
// storage layer are not sources and are ignored.
func (w *Walker) ProcessFile(ctx context.Context, path string) {
	if file.IsTemp(filepath.Base(path)) {
		zlog.Logger.Debug().Str("path", path).Msg("skipping temporary file")
		return
	}

	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		zlog.Logger.Debug().Str("path", path).Msg("skipping non-regular file")
		return
	}

	req := model.Request{
		Path:     path,
		Quality:  w.cfg.Quality,
		MaxWidth: w.cfg.MaxWidth,
	}

	w.counters.total.Inc()

	res, err := w.processor.Process(ctx, req)
	if err != nil {
		w.fail(path, err)
		return
	}

	w.record(res)
}

// record updates counters and logs a finished file.
func (w *Walker) record(res model.Result) {
	switch res.Outcome {
	case model.OutcomeScaled:
		w.counters.scaled.Inc()
		w.counters.bytes.Add(res.Bytes)
		zlog.Logger.Info().
			Str("path", res.Path).
			Str("output", res.Output).
			Int("width", res.Width).
			Int("height", res.Height).
			Str("size", humanize.Bytes(uint64(res.Bytes))).
			Msg("thumbnail written")
	case model.OutcomeLinked:
		w.counters.linked.Inc()
		zlog.Logger.Info().
			Str("path", res.Path).
			Str("output", res.Output).
			Msg("thumbnail linked")
	default:
		w.counters.skipped.Inc()
		zlog.Logger.Debug().
			Str("path", res.Path).
			Str("reason", res.Outcome.String()).
			Msg("skipped")
	}
}

// fail logs and collects a per-file error.
func (w *Walker) fail(path string, err error) {
	w.counters.failed.Inc()

	zlog.Logger.Err(err).Str("path", path).Msg("failed to process file")

	w.mu.Lock()
	multierr.AppendInto(&w.failures, fmt.Errorf("%s: %w", path, err))
	w.mu.Unlock()
}

// Summary returns the counters and failures collected so far.
func (w *Walker) Summary() Summary {
	w.mu.Lock()
	failures := w.failures
	w.mu.Unlock()

	return Summary{
		Stats:    w.counters.snapshot(),
		Failures: failures,
	}
}

func (w *Walker) logSummary(sum Summary) {
	zlog.Logger.Info().
		Int64("files", sum.Stats.Total).
		Int64("scaled", sum.Stats.Scaled).
		Int64("linked", sum.Stats.Linked).
		Int64("skipped", sum.Stats.Skipped).
		Int64("failed", sum.Stats.Failed).
		Str("written", humanize.Bytes(uint64(sum.Stats.BytesWritten))).
		Msg("walk finished")
}
