package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/clearwave/api/internal/client"
	"github.com/clearwave/api/internal/model"
	"github.com/clearwave/api/internal/storage/sqlite"
)

// FileStore is the slice of the state store a processing job needs. Every
// write is a single statement touching only the job's own operation columns.
type FileStore interface {
	GetFile(ctx context.Context, id int64) (*model.MediaFile, error)
	UpdateOperationStatus(ctx context.Context, fileID int64, op model.Operation, status model.OperationStatus) error
	UpdateOperationOutputKey(ctx context.Context, fileID int64, op model.Operation, key string) error
}

// EventPublisher announces status transitions to observers.
type EventPublisher interface {
	Publish(ctx context.Context, event *model.StatusEvent)
}

// ProcessingWorker executes one queued processing job: download the source
// blob into a scoped temp directory, run the requested transform, upload the
// result, record the outcome. The dispatcher has already flipped the
// operation's status to PROCESSING; this worker only ever moves it to
// COMPLETED or FAILED.
type ProcessingWorker struct {
	store       FileStore
	storage     client.StorageClient
	transformer Transformer
	events      EventPublisher
	log         *logrus.Logger
}

func NewProcessingWorker(store FileStore, storage client.StorageClient, transformer Transformer, events EventPublisher, log *logrus.Logger) *ProcessingWorker {
	return &ProcessingWorker{
		store:       store,
		storage:     storage,
		transformer: transformer,
		events:      events,
		log:         log,
	}
}

// ProcessTask handles one asynq task. Errors are returned after the FAILED
// status is recorded so the queue's own failure accounting observes them too.
func (w *ProcessingWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload model.ProcessJobPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal task payload: %v: %w", err, asynq.SkipRetry)
	}

	log := w.log.WithFields(logrus.Fields{
		"fileId":    payload.FileID,
		"operation": payload.Operation,
	})

	// A payload without a processing operation is a valid no-op: the handler
	// is shared across operation kinds and callers may submit without one.
	switch payload.Operation {
	case model.OperationNoiseRemoval, model.OperationMelodyRemoval, model.OperationVocalRemoval, model.OperationEnhancement:
	default:
		log.Info("no processing operation requested, completing as no-op")
		return nil
	}

	// Orphaned jobs reference a deleted file; fail fast instead of silently
	// doing work nobody can observe.
	if _, err := w.store.GetFile(ctx, payload.FileID); err != nil {
		if errors.Is(err, sqlite.ErrNotFound) {
			return fmt.Errorf("file %d not found: %w", payload.FileID, asynq.SkipRetry)
		}
		return fmt.Errorf("load file %d: %w", payload.FileID, err)
	}

	log.Info("processing job started")

	outputKey, err := w.run(ctx, &payload)
	if err != nil {
		log.WithError(err).Error("processing job failed")
		w.markFailed(ctx, &payload, err)
		return err
	}

	if err := w.record(ctx, &payload, outputKey); err != nil {
		log.WithError(err).Error("recording job result failed")
		w.markFailed(ctx, &payload, err)
		return err
	}

	log.WithField("outputKey", outputKey).Info("processing job completed")
	return nil
}

// run covers the DOWNLOADING, TRANSFORMING and UPLOADING states and returns
// the uploaded output key. The temp directory is removed on every exit path.
func (w *ProcessingWorker) run(ctx context.Context, payload *model.ProcessJobPayload) (outputKey string, err error) {
	tmpDir, err := os.MkdirTemp("", "clearwave_job_")
	if err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	inputPath := filepath.Join(tmpDir, filepath.Base(payload.SourceKey))
	if err := w.storage.Download(ctx, payload.SourceKey, inputPath); err != nil {
		return "", fmt.Errorf("download source: %w", err)
	}

	var outputPath string
	switch payload.Operation {
	case model.OperationNoiseRemoval:
		outputPath, err = w.transformer.RemoveNoise(ctx, inputPath)
	case model.OperationMelodyRemoval:
		outputPath, err = w.transformer.RemoveMelody(ctx, inputPath)
	case model.OperationVocalRemoval:
		outputPath, err = w.transformer.RemoveVocals(ctx, inputPath)
	case model.OperationEnhancement:
		outputPath, err = w.transformer.Enhance(ctx, inputPath, payload.Preset)
	}
	if err != nil {
		return "", err
	}

	f, err := os.Open(outputPath)
	if err != nil {
		return "", fmt.Errorf("open transform output: %w", err)
	}
	defer f.Close()

	key := fmt.Sprintf("%d/%s", payload.UserID, filepath.Base(outputPath))
	if _, err := w.storage.Upload(ctx, key, f, "audio/wav"); err != nil {
		return "", fmt.Errorf("upload result: %w", err)
	}
	return key, nil
}

// record is the RECORDING state: output key first, then COMPLETED, each as its
// own durable write.
func (w *ProcessingWorker) record(ctx context.Context, payload *model.ProcessJobPayload, outputKey string) error {
	if err := w.store.UpdateOperationOutputKey(ctx, payload.FileID, payload.Operation, outputKey); err != nil {
		return fmt.Errorf("record output key: %w", err)
	}
	if err := w.store.UpdateOperationStatus(ctx, payload.FileID, payload.Operation, model.OperationCompleted); err != nil {
		return fmt.Errorf("record completed status: %w", err)
	}
	if w.events != nil {
		w.events.Publish(ctx, &model.StatusEvent{
			FileID:    payload.FileID,
			Operation: payload.Operation,
			Status:    model.OperationCompleted,
			OutputKey: outputKey,
		})
	}
	return nil
}

// markFailed moves the operation to its terminal FAILED state. A failure here
// is logged and swallowed: the job error being returned to the queue matters
// more than a second write failing. The write runs detached from the task
// context so a job killed by cancellation still lands on FAILED instead of
// staying PROCESSING forever.
func (w *ProcessingWorker) markFailed(ctx context.Context, payload *model.ProcessJobPayload, cause error) {
	ctx = context.WithoutCancel(ctx)
	if err := w.store.UpdateOperationStatus(ctx, payload.FileID, payload.Operation, model.OperationFailed); err != nil {
		w.log.WithError(err).WithField("fileId", payload.FileID).Error("mark operation failed")
	}
	if w.events != nil {
		w.events.Publish(ctx, &model.StatusEvent{
			FileID:    payload.FileID,
			Operation: payload.Operation,
			Status:    model.OperationFailed,
			Error:     cause.Error(),
		})
	}
}
