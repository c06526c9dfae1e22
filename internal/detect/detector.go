// Package detect defines the label-analysis capability consumed by the
// ingestion pipeline, with a deterministic local implementation, a Google
// Cloud Vision implementation, and a retrying wrapper.
package detect

import "context"

// Label is one machine-derived annotation for an image. Confidence is in
// [0,100] and carries no ordering guarantee; it is kept for logging only and
// never persisted.
type Label struct {
	Name       string
	Confidence float64
}

// Detector analyzes previously stored content addressed by its blob key and
// returns labels in detector order. Implementations may be slow; callers
// bound the call with a context deadline.
type Detector interface {
	Detect(ctx context.Context, key string) ([]Label, error)
}

// Names extracts the ordered label names, which become the record's tags.
func Names(labels []Label) []string {
	names := make([]string, 0, len(labels))
	for _, l := range labels {
		names = append(names, l.Name)
	}
	return names
}
