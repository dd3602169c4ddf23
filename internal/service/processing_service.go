package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/clearwave/api/internal/audio"
	"github.com/clearwave/api/internal/model"
)

// ErrOperationInProgress rejects a submission for an operation that already
// has a running job on the file.
var ErrOperationInProgress = errors.New("operation already in progress")

// ErrInvalidOperation rejects operations outside the processing set.
var ErrInvalidOperation = errors.New("invalid processing operation")

// ProcessingStore is the slice of the state store the dispatcher needs.
type ProcessingStore interface {
	GetFile(ctx context.Context, id int64) (*model.MediaFile, error)
	UpdateOperationStatus(ctx context.Context, fileID int64, op model.Operation, status model.OperationStatus) error
}

// Enqueuer hands tasks to the durable queue; satisfied by *asynq.Client.
type Enqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// ProcessingService is the dispatch layer: it flips the requested operation's
// status to PROCESSING so the transition is visible immediately, then enqueues
// the job and returns without waiting. Enqueue failures roll the status
// forward to FAILED rather than leaving a PROCESSING row nobody will resolve.
type ProcessingService struct {
	store ProcessingStore
	queue Enqueuer
	log   *logrus.Logger
}

func NewProcessingService(store ProcessingStore, queue Enqueuer, log *logrus.Logger) *ProcessingService {
	return &ProcessingService{store: store, queue: queue, log: log}
}

// Submit requests one processing operation on a file the user owns.
func (s *ProcessingService) Submit(ctx context.Context, userID, fileID int64, op model.Operation, preset string) (*model.SubmitResponse, error) {
	switch op {
	case model.OperationNoiseRemoval, model.OperationMelodyRemoval, model.OperationVocalRemoval:
	case model.OperationEnhancement:
		// Reject unknown presets before any state changes or queue traffic.
		if _, err := audio.LookupPreset(preset); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidOperation, op)
	}

	file, err := s.store.GetFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if file.UserID != userID {
		return nil, fmt.Errorf("file %d: %w", fileID, ErrFileAccessDenied)
	}

	// At most one running job per operation per file. Flipping the status
	// before enqueue is what enforces this for the next caller.
	if file.OperationState(op) == model.OperationProcessing {
		return nil, fmt.Errorf("%s on file %d: %w", op, fileID, ErrOperationInProgress)
	}

	if err := s.store.UpdateOperationStatus(ctx, fileID, op, model.OperationProcessing); err != nil {
		return nil, fmt.Errorf("mark processing: %w", err)
	}

	payload := model.ProcessJobPayload{
		FileID:    fileID,
		UserID:    userID,
		SourceKey: file.StorageKey,
		Operation: op,
		Preset:    preset,
	}
	if err := s.enqueue(&payload); err != nil {
		// Broker unreachable: resolve the PROCESSING state we just created.
		if stErr := s.store.UpdateOperationStatus(ctx, fileID, op, model.OperationFailed); stErr != nil {
			s.log.WithError(stErr).WithField("fileId", fileID).Error("roll back to failed after enqueue error")
		}
		return nil, fmt.Errorf("enqueue %s job: %w", op, err)
	}

	return &model.SubmitResponse{
		FileID:    fileID,
		Operation: op,
		Status:    model.OperationProcessing,
	}, nil
}

func (s *ProcessingService) enqueue(payload *model.ProcessJobPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	taskType := model.TaskTypeProcess
	queue := model.QueueAudio
	if payload.Operation == model.OperationEnhancement {
		taskType = model.TaskTypeEnhance
		queue = model.QueueEnhance
	}

	// MaxRetry 0: a FAILED operation is terminal and needs a fresh
	// submission, so queue-level retries must not resurrect it.
	_, err = s.queue.Enqueue(asynq.NewTask(taskType, data),
		asynq.Queue(queue),
		asynq.MaxRetry(0),
	)
	return err
}

// Presets enumerates the enhancement preset registry for clients.
func (s *ProcessingService) Presets() []model.PresetInfo {
	registered := audio.Presets()
	out := make([]model.PresetInfo, 0, len(registered))
	for _, p := range registered {
		out = append(out, model.PresetInfo{Name: p.Name, Description: p.Description})
	}
	return out
}
