package walker

import (
	"go.uber.org/atomic"
	"go.uber.org/multierr"
)

// Stats is a point-in-time copy of the walker counters.
type Stats struct {
	Total        int64 // files that reached the pipeline
	Scaled       int64
	Linked       int64
	Skipped      int64 // not an image, or already a thumbnail
	Failed       int64
	BytesWritten int64 // encoded thumbnail bytes
}

// counters are the live, concurrently updated counterparts of Stats.
type counters struct {
	total, scaled, linked, skipped, failed, bytes atomic.Int64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Total:        c.total.Load(),
		Scaled:       c.scaled.Load(),
		Linked:       c.linked.Load(),
		Skipped:      c.skipped.Load(),
		Failed:       c.failed.Load(),
		BytesWritten: c.bytes.Load(),
	}
}

// Summary is the outcome of a walk.
type Summary struct {
	Stats    Stats
	Failures error // every per-file error, combined with multierr
}

// Errors returns the individual per-file errors.
func (s Summary) Errors() []error {
	return multierr.Errors(s.Failures)
}
