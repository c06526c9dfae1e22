package detect

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"google.golang.org/api/option"
)

// FetchFunc loads the raw image bytes for a blob key. The detector stays
// decoupled from the blob store this way; wiring happens in the app.
type FetchFunc func(ctx context.Context, key string) ([]byte, error)

// LocatorFetcher builds a FetchFunc on top of a locator resolver. Filesystem
// paths are read directly; http(s) locators (presigned URLs) are downloaded.
func LocatorFetcher(resolve func(ctx context.Context, key string) (string, error)) FetchFunc {
	return func(ctx context.Context, key string) ([]byte, error) {
		locator, err := resolve(ctx, key)
		if err != nil {
			return nil, err
		}

		if strings.HasPrefix(locator, "http://") || strings.HasPrefix(locator, "https://") {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, nil)
			if err != nil {
				return nil, err
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return nil, err
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return nil, fmt.Errorf("fetching %q: unexpected status %s", key, resp.Status)
			}
			return io.ReadAll(resp.Body)
		}

		return os.ReadFile(locator)
	}
}

// VisionDetector labels images with the Google Cloud Vision API.
type VisionDetector struct {
	client *vision.ImageAnnotatorClient
	fetch  FetchFunc

	// MaxResults caps the labels requested per image.
	MaxResults int32
}

func NewVisionDetector(ctx context.Context, fetch FetchFunc, opts ...option.ClientOption) (*VisionDetector, error) {
	client, err := vision.NewImageAnnotatorClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("vision client: %w", err)
	}

	return &VisionDetector{
		client:     client,
		fetch:      fetch,
		MaxResults: 20,
	}, nil
}

func (d *VisionDetector) Close() error {
	return d.client.Close()
}

func (d *VisionDetector) Detect(ctx context.Context, key string) ([]Label, error) {
	img, err := d.fetch(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("fetching image %q: %w", key, err)
	}

	req := &visionpb.AnnotateImageRequest{
		Image: &visionpb.Image{Content: img},
		Features: []*visionpb.Feature{
			{Type: visionpb.Feature_LABEL_DETECTION, MaxResults: d.MaxResults},
		},
	}

	br := &visionpb.BatchAnnotateImagesRequest{Requests: []*visionpb.AnnotateImageRequest{req}}
	resp, err := d.client.BatchAnnotateImages(ctx, br)
	if err != nil {
		return nil, fmt.Errorf("vision BatchAnnotateImages: %w", err)
	}
	if resp == nil || len(resp.Responses) == 0 || resp.Responses[0] == nil {
		return nil, nil
	}

	r0 := resp.Responses[0]
	if r0.Error != nil && r0.Error.Message != "" {
		return nil, fmt.Errorf("vision annotate error: %s", r0.Error.Message)
	}

	labels := make([]Label, 0, len(r0.LabelAnnotations))
	for _, a := range r0.LabelAnnotations {
		if a == nil || a.Description == "" {
			continue
		}
		// Vision scores are 0..1; the pipeline contract is 0..100.
		labels = append(labels, Label{Name: a.Description, Confidence: float64(a.Score) * 100})
	}
	return labels, nil
}
