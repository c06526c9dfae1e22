// Package pipeline orchestrates one photo ingestion: upload the blob,
// request labels, build the record, persist it. Any stage failure aborts the
// run; a record is never persisted with partial or stale data.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/snapkeeper/snapkeeper/internal/blob"
	"github.com/snapkeeper/snapkeeper/internal/common"
	"github.com/snapkeeper/snapkeeper/internal/detect"
	"github.com/snapkeeper/snapkeeper/internal/logging"
	"github.com/snapkeeper/snapkeeper/internal/metadata"
	"github.com/snapkeeper/snapkeeper/internal/models"
)

// Stage names a pipeline state transition.
type Stage string

const (
	StageUploaded  Stage = "uploaded"
	StageAnalyzed  Stage = "analyzed"
	StagePersisted Stage = "persisted"
	StageFailed    Stage = "failed"
)

// Event describes one stage transition of one ingestion run. IngestID ties
// the events of a single run together.
type Event struct {
	IngestID string
	Stage    Stage
	Key      string
	Labels   []detect.Label
	Err      error
}

// Hook receives stage-transition events. Hooks must be fast and must not
// block; they run synchronously between stages.
type Hook func(ctx context.Context, e Event)

const defaultDetectTimeout = 30 * time.Second

// Options tune one Pipeline instance.
type Options struct {
	// DetectTimeout bounds each label-detection call so one hanging analyzer
	// cannot stall unrelated ingestions sharing a worker pool.
	DetectTimeout time.Duration

	// Hook observes stage transitions. Nil means log-only.
	Hook Hook
}

// Pipeline is safe for concurrent use: ingestions of independent photos may
// run in parallel, the metadata store serializes its own writers.
type Pipeline struct {
	blobs         blob.Store
	detector      detect.Detector
	store         metadata.Store
	logger        logging.Logger
	detectTimeout time.Duration
	hook          Hook
}

func New(blobs blob.Store, detector detect.Detector, store metadata.Store, logger logging.Logger, opts Options) *Pipeline {
	if opts.DetectTimeout <= 0 {
		opts.DetectTimeout = defaultDetectTimeout
	}

	return &Pipeline{
		blobs:         blobs,
		detector:      detector,
		store:         store,
		logger:        logger.With("module", "pipeline"),
		detectTimeout: opts.DetectTimeout,
		hook:          opts.Hook,
	}
}

// Ingest runs the full Uploaded → Analyzed → Persisted sequence for one
// photo and returns the persisted record. On any error no record is written;
// an already-uploaded blob may remain behind without metadata (accepted
// inconsistency, reconciliation is an operational follow-up).
func (p *Pipeline) Ingest(ctx context.Context, sourcePath, filename, userID string) (*models.PhotoRecord, error) {
	if userID == "" {
		return nil, models.ErrEmptyUserID
	}
	if filename == "" {
		return nil, models.ErrEmptyFilename
	}

	ingestID := uuid.NewString()
	key := models.Key(userID, filename)
	log := p.logger.With("ingest_id", ingestID, "key", key)

	location, err := p.blobs.Put(ctx, sourcePath, key)
	if err != nil {
		return nil, p.fail(ctx, log, ingestID, key, err)
	}
	p.emit(ctx, log, Event{IngestID: ingestID, Stage: StageUploaded, Key: key})
	log.Debug(ctx, "blob stored", "location", location)

	if err := ctx.Err(); err != nil {
		return nil, p.fail(ctx, log, ingestID, key, err)
	}

	labels, err := p.detectLabels(ctx, key)
	if err != nil {
		return nil, p.fail(ctx, log, ingestID, key, err)
	}
	p.emit(ctx, log, Event{IngestID: ingestID, Stage: StageAnalyzed, Key: key, Labels: labels})

	record, err := models.NewPhotoRecord(userID, filename, detect.Names(labels), time.Now())
	if err != nil {
		return nil, p.fail(ctx, log, ingestID, key, fmt.Errorf("%w: building record: %v", common.ErrInternal, err))
	}

	// Cancellation between analysis and persistence must not leave a record.
	if err := ctx.Err(); err != nil {
		return nil, p.fail(ctx, log, ingestID, key, err)
	}

	if err := p.store.Upsert(ctx, record); err != nil {
		return nil, p.fail(ctx, log, ingestID, key, err)
	}
	p.emit(ctx, log, Event{IngestID: ingestID, Stage: StagePersisted, Key: key})

	return record, nil
}

// detectLabels bounds the analyzer call with the configured timeout and maps
// every analyzer failure, including the timeout, to ErrDetection. A parent
// cancellation is reported as such, not as a detection failure.
func (p *Pipeline) detectLabels(ctx context.Context, key string) ([]detect.Label, error) {
	detectCtx, cancel := context.WithTimeout(ctx, p.detectTimeout)
	defer cancel()

	labels, err := p.detector.Detect(detectCtx, key)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, common.ErrDetection) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: analyzing %q: %v", common.ErrDetection, key, err)
	}
	return labels, nil
}

func (p *Pipeline) emit(ctx context.Context, log logging.Logger, e Event) {
	switch e.Stage {
	case StageAnalyzed:
		log.Info(ctx, "stage transition", "stage", e.Stage, "labels", len(e.Labels))
		for _, l := range e.Labels {
			log.Debug(ctx, "label detected", "name", l.Name, "confidence", l.Confidence)
		}
	default:
		log.Info(ctx, "stage transition", "stage", e.Stage)
	}

	if p.hook != nil {
		p.hook(ctx, e)
	}
}

func (p *Pipeline) fail(ctx context.Context, log logging.Logger, ingestID, key string, err error) error {
	log.Error(ctx, "ingestion failed", "error", err)
	if p.hook != nil {
		p.hook(ctx, Event{IngestID: ingestID, Stage: StageFailed, Key: key, Err: err})
	}
	return err
}
