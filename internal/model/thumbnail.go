package model

// Request describes a single thumbnail job. It is built once per file and
// never mutated afterwards.
type Request struct {
	Path     string  // path of the source file
	Quality  float64 // JPEG quality as a fraction in (0, 1]
	MaxWidth int     // upper bound on thumbnail width in pixels
}

// Outcome is the terminal classification of a processed file.
type Outcome int

const (
	OutcomeFailed           Outcome = iota // an I/O step failed
	OutcomeScaled                          // a new JPEG thumbnail was written
	OutcomeLinked                          // the thumbnail is a symlink to the source
	OutcomeSkippedNotImage                 // the file could not be decoded as an image
	OutcomeSkippedThumbnail                // the file is itself a thumbnail
	OutcomeSkippedCanceled                 // the run was interrupted before the file was touched
)

// String returns the log-friendly name of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeScaled:
		return "scaled"
	case OutcomeLinked:
		return "linked"
	case OutcomeSkippedNotImage:
		return "not_image"
	case OutcomeSkippedThumbnail:
		return "already_processed"
	case OutcomeSkippedCanceled:
		return "canceled"
	default:
		return "failed"
	}
}

// Skipped reports whether the file was left alone on purpose.
func (o Outcome) Skipped() bool {
	switch o {
	case OutcomeSkippedNotImage, OutcomeSkippedThumbnail, OutcomeSkippedCanceled:
		return true
	default:
		return false
	}
}

// Result is what the pipeline reports back for one file.
type Result struct {
	Path    string  `json:"path"`
	Output  string  `json:"output,omitempty"` // thumbnail path, empty for skips
	Outcome Outcome `json:"outcome"`
	Width   int     `json:"width,omitempty"`  // thumbnail width in pixels
	Height  int     `json:"height,omitempty"` // thumbnail height in pixels
	Bytes   int64   `json:"bytes,omitempty"`  // encoded size, zero for links
}
