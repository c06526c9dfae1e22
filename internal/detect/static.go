package detect

import (
	"context"
	"strings"
	"time"
)

// keywordRule adds labels when the key contains the keyword. The rules mirror
// common screenshot categories so demo ingests produce searchable tags
// without a real vision backend.
type keywordRule struct {
	keyword string
	labels  []string
}

var defaultRules = []keywordRule{
	{"error", []string{"Text", "Error Message", "Computer", "Monitor"}},
	{"search", []string{"Web Page", "Search Results", "UI", "Internet"}},
	{"login", []string{"Form", "Login Screen", "Security"}},
	{"job", []string{"Document", "Resume", "Business"}},
}

var defaultBaseLabels = []string{"Person", "Indoor", "Screenshot"}

// StaticDetector derives labels from the blob key alone. It is fully
// deterministic: the same key always yields the same labels with the same
// confidence, which makes it suitable for tests and offline demos.
type StaticDetector struct {
	// Confidence assigned to every label.
	Confidence float64

	// Latency is slept on each call to imitate a remote analyzer. Zero in tests.
	Latency time.Duration

	baseLabels []string
	rules      []keywordRule
}

func NewStaticDetector() *StaticDetector {
	return &StaticDetector{
		Confidence: 92.5,
		baseLabels: defaultBaseLabels,
		rules:      defaultRules,
	}
}

func (d *StaticDetector) Detect(ctx context.Context, key string) ([]Label, error) {
	if d.Latency > 0 {
		select {
		case <-time.After(d.Latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(d.baseLabels))
	names = append(names, d.baseLabels...)

	lowerKey := strings.ToLower(key)
	for _, rule := range d.rules {
		if strings.Contains(lowerKey, rule.keyword) {
			names = append(names, rule.labels...)
		}
	}

	labels := make([]Label, 0, len(names))
	for _, n := range names {
		labels = append(labels, Label{Name: n, Confidence: d.Confidence})
	}
	return labels, nil
}
