package processor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/webp" // register WebP decoder

	"github.com/aliskhannn/thumbnailer/internal/model"
	"github.com/aliskhannn/thumbnailer/internal/naming"
)

var (
	// ErrNotAnImage is returned when a file cannot be decoded as an image.
	ErrNotAnImage = errors.New("not an image")
	// ErrAlreadyProcessed is returned for files that are thumbnails themselves.
	ErrAlreadyProcessed = errors.New("already processed")
)

// fileStorage defines the filesystem operations the pipeline needs.
// All names are relative to the directory being processed.
type fileStorage interface {
	Path(name string) string
	Open(name string) (*os.File, error)
	Save(name string, data []byte) (int64, error)
	Link(target, name string) error
	RemoveLinkTo(name, target string) (bool, error)
	RemoveFile(name string) (bool, error)
}

// Processor turns source images into thumbnails next to them.
type Processor struct {
	fileStorage fileStorage
}

// New creates a new Processor with the given file storage backend.
func New(fs fileStorage) *Processor {
	return &Processor{fileStorage: fs}
}

// Decoded is a decoded source image together with the facts the pipeline
// needs about it.
type Decoded struct {
	Image    image.Image
	Width    int
	Height   int
	HasAlpha bool
}

// Process runs the thumbnail pipeline for one file.
//
// Files that are not images or are thumbnails already come back with a skip
// outcome and a nil error, as does every file once ctx is cancelled. Any filesystem failure comes back as
// model.OutcomeFailed together with the error.
func (p *Processor) Process(ctx context.Context, req model.Request) (model.Result, error) {
	res := model.Result{Path: req.Path}

	// An interrupted run leaves files it has not started alone.
	if ctx.Err() != nil {
		res.Outcome = model.OutcomeSkippedCanceled
		return res, nil
	}

	name := filepath.Base(req.Path)

	src, err := p.load(name)
	if err != nil {
		if outcome, ok := skipOutcome(err); ok {
			res.Outcome = outcome
			return res, nil
		}
		return res, err
	}

	out := naming.OutputName(name)
	res.Output = p.fileStorage.Path(out)

	// A link left by an earlier run is always rebuilt from scratch.
	if _, err := p.fileStorage.RemoveLinkTo(out, name); err != nil {
		return res, fmt.Errorf("failed to remove stale link: %w", err)
	}

	if src.Width > req.MaxWidth {
		return p.scale(res, src, out, req)
	}

	return p.link(res, src, name, out)
}

// load checks the name and decodes the file. Thumbnails are rejected before
// any byte is read.
func (p *Processor) load(name string) (Decoded, error) {
	if naming.IsThumbnail(name) {
		return Decoded{}, ErrAlreadyProcessed
	}

	return p.decode(name)
}

// skipOutcome maps the errors that end processing without a failure.
func skipOutcome(err error) (model.Outcome, bool) {
	switch {
	case errors.Is(err, ErrAlreadyProcessed):
		return model.OutcomeSkippedThumbnail, true
	case errors.Is(err, ErrNotAnImage):
		return model.OutcomeSkippedNotImage, true
	default:
		return model.OutcomeFailed, false
	}
}

// decode opens the named file and decodes it. Content that does not sniff
// as an image is rejected before the decoder sees it.
func (p *Processor) decode(name string) (Decoded, error) {
	f, err := p.fileStorage.Open(name)
	if err != nil {
		return Decoded{}, fmt.Errorf("failed to open source: %w", err)
	}
	defer f.Close()

	mt, err := mimetype.DetectReader(f)
	if err != nil {
		return Decoded{}, fmt.Errorf("failed to read source: %w", err)
	}
	if !strings.HasPrefix(mt.String(), "image/") {
		return Decoded{}, fmt.Errorf("%s: %w", mt.String(), ErrNotAnImage)
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return Decoded{}, fmt.Errorf("failed to rewind source: %w", err)
	}

	img, err := imaging.Decode(f)
	if err != nil {
		return Decoded{}, fmt.Errorf("%v: %w", err, ErrNotAnImage)
	}

	b := img.Bounds()

	return Decoded{
		Image:    img,
		Width:    b.Dx(),
		Height:   b.Dy(),
		HasAlpha: hasAlpha(img),
	}, nil
}

// scale writes a downscaled JPEG thumbnail.
func (p *Processor) scale(res model.Result, src Decoded, out string, req model.Request) (model.Result, error) {
	var thumb image.Image = Scale(src.Image, req.MaxWidth)
	if src.HasAlpha {
		thumb = Flatten(thumb)
	}

	buf := bytes.NewBuffer(nil)
	if err := Encode(buf, thumb, NewEncodeOptions(req.Quality)); err != nil {
		return res, fmt.Errorf("failed to encode thumbnail: %w", err)
	}

	n, err := p.fileStorage.Save(out, buf.Bytes())
	if err != nil {
		return res, fmt.Errorf("failed to save thumbnail: %w", err)
	}

	b := thumb.Bounds()
	res.Outcome = model.OutcomeScaled
	res.Width = b.Dx()
	res.Height = b.Dy()
	res.Bytes = n

	return res, nil
}

// link points the thumbnail name at the source, which is small enough already.
func (p *Processor) link(res model.Result, src Decoded, name, out string) (model.Result, error) {
	if _, err := p.fileStorage.RemoveFile(out); err != nil {
		return res, fmt.Errorf("failed to remove old thumbnail: %w", err)
	}

	if err := p.fileStorage.Link(name, out); err != nil {
		return res, fmt.Errorf("failed to link thumbnail: %w", err)
	}

	res.Outcome = model.OutcomeLinked
	res.Width = src.Width
	res.Height = src.Height

	return res, nil
}
