package service

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/clearwave/api/internal/client"
	"github.com/clearwave/api/internal/model"
)

// TranscriptionStore is the slice of the state store transcription needs.
type TranscriptionStore interface {
	GetFile(ctx context.Context, id int64) (*model.MediaFile, error)
	GetFileByKey(ctx context.Context, storageKey string) (*model.MediaFile, error)
	UpdateOperationStatus(ctx context.Context, fileID int64, op model.Operation, status model.OperationStatus) error
	UpdateFilesStatus(ctx context.Context, fileIDs []int64, status model.FileStatus) error
	CompleteTranscription(ctx context.Context, storageKey, transcription string) error
}

// TranscriptionSubmitter hands audio to the external speech-to-text service.
type TranscriptionSubmitter interface {
	Submit(ctx context.Context, fileURL, callbackURL, language string) error
}

// TranscriptionService bridges files to the external transcription service.
// The service works callback-style: we hand over a public download URL and it
// posts the result back when done.
type TranscriptionService struct {
	store   TranscriptionStore
	submit  TranscriptionSubmitter
	storage client.StorageClient
	baseURL string
	log     *logrus.Logger
}

func NewTranscriptionService(store TranscriptionStore, submit TranscriptionSubmitter, storage client.StorageClient, baseURL string, log *logrus.Logger) *TranscriptionService {
	return &TranscriptionService{
		store:   store,
		submit:  submit,
		storage: storage,
		baseURL: baseURL,
		log:     log,
	}
}

// Start launches transcription for a batch of files the user owns. Statuses
// flip before submission so they are visible immediately; a submission error
// rolls that file forward to FAILED.
func (s *TranscriptionService) Start(ctx context.Context, userID int64, fileIDs []int64, language string) error {
	files := make([]*model.MediaFile, 0, len(fileIDs))
	for _, id := range fileIDs {
		file, err := s.store.GetFile(ctx, id)
		if err != nil {
			return err
		}
		if file.UserID != userID {
			return fmt.Errorf("file %d: %w", id, ErrFileAccessDenied)
		}
		if file.TranscriptionStatus == model.OperationProcessing {
			return fmt.Errorf("transcription on file %d: %w", id, ErrOperationInProgress)
		}
		files = append(files, file)
	}

	if err := s.store.UpdateFilesStatus(ctx, fileIDs, model.FileStatusProcessing); err != nil {
		return err
	}

	for _, file := range files {
		if err := s.store.UpdateOperationStatus(ctx, file.ID, model.OperationTranscription, model.OperationProcessing); err != nil {
			return err
		}

		// Both URLs are fetched by the external service itself, so they must
		// resolve without a user token: content is the key-addressed public
		// route, not the authenticated per-file download.
		fileURL := fmt.Sprintf("%s/api/files/content/%s", s.baseURL, file.StorageKey)
		callbackURL := fmt.Sprintf("%s/api/files/callback/%s", s.baseURL, file.StorageKey)

		if err := s.submit.Submit(ctx, fileURL, callbackURL, language); err != nil {
			if stErr := s.store.UpdateOperationStatus(ctx, file.ID, model.OperationTranscription, model.OperationFailed); stErr != nil {
				s.log.WithError(stErr).WithField("fileId", file.ID).Error("roll back to failed after submit error")
			}
			return fmt.Errorf("submit file %d: %w", file.ID, err)
		}
	}
	return nil
}

// HandleCallback stores the transcription result delivered by the external
// service and releases the source blob, which is no longer needed.
func (s *TranscriptionService) HandleCallback(ctx context.Context, storageKey, result string) error {
	if _, err := s.store.GetFileByKey(ctx, storageKey); err != nil {
		return err
	}

	if err := s.store.CompleteTranscription(ctx, storageKey, result); err != nil {
		return err
	}

	// Best-effort: the transcription is already saved.
	if err := s.storage.Delete(ctx, storageKey); err != nil {
		s.log.WithError(err).WithField("key", storageKey).Warn("delete transcribed source blob")
	}
	return nil
}
