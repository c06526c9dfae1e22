// Package search resolves free-text queries against the metadata store.
package search

import (
	"context"
	"strings"

	"github.com/snapkeeper/snapkeeper/internal/metadata"
	"github.com/snapkeeper/snapkeeper/internal/models"
)

// Index is a stateless query engine over a live view of the metadata store.
// It holds no state of its own, so it is safe for concurrent use.
type Index struct {
	store metadata.Store
}

func NewIndex(store metadata.Store) *Index {
	return &Index{store: store}
}

// Search tokenizes queryText (lower-case, whitespace split) and returns every
// record sharing at least one token with the record's tags or with the
// segments of its id. Matching is exact per token: no stemming, no substring
// matching. Results keep the store's scan order; an empty query matches
// nothing.
func (i *Index) Search(ctx context.Context, queryText string) ([]*models.PhotoRecord, error) {
	tokens := Tokenize(queryText)

	results := []*models.PhotoRecord{}
	if len(tokens) == 0 {
		return results, nil
	}

	records, err := i.store.Scan(ctx)
	if err != nil {
		return nil, err
	}

	for _, r := range records {
		if matches(r, tokens) {
			results = append(results, r)
		}
	}
	return results, nil
}

// Tokenize lower-cases the text and splits it on whitespace.
func Tokenize(text string) []string {
	return strings.Fields(strings.ToLower(text))
}

func matches(r *models.PhotoRecord, tokens []string) bool {
	candidates := make(map[string]struct{}, len(r.Tags)+2)
	// Multi-word labels ("Error Message") are searchable both as a whole
	// and by their individual words.
	for _, tag := range r.Tags {
		lower := strings.ToLower(tag)
		candidates[lower] = struct{}{}
		for _, word := range strings.Fields(lower) {
			candidates[word] = struct{}{}
		}
	}
	// The id is "{user_id}/{filename}"; both segments are searchable.
	for _, seg := range strings.Split(r.ID, "/") {
		candidates[strings.ToLower(seg)] = struct{}{}
	}

	for _, tok := range tokens {
		if _, ok := candidates[tok]; ok {
			return true
		}
	}
	return false
}
