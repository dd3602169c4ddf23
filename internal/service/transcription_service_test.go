package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearwave/api/internal/model"
)

type fakeTranscriptionStore struct {
	files      map[int64]*model.MediaFile
	byKey      map[string]*model.MediaFile
	opWrites   map[int64][]model.OperationStatus
	batchIDs   []int64
	completed  map[string]string
	completErr error
}

func newFakeTranscriptionStore(files ...*model.MediaFile) *fakeTranscriptionStore {
	s := &fakeTranscriptionStore{
		files:     make(map[int64]*model.MediaFile),
		byKey:     make(map[string]*model.MediaFile),
		opWrites:  make(map[int64][]model.OperationStatus),
		completed: make(map[string]string),
	}
	for _, f := range files {
		s.files[f.ID] = f
		s.byKey[f.StorageKey] = f
	}
	return s
}

func (s *fakeTranscriptionStore) GetFile(ctx context.Context, id int64) (*model.MediaFile, error) {
	f, ok := s.files[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return f, nil
}

func (s *fakeTranscriptionStore) GetFileByKey(ctx context.Context, storageKey string) (*model.MediaFile, error) {
	f, ok := s.byKey[storageKey]
	if !ok {
		return nil, errors.New("not found")
	}
	return f, nil
}

func (s *fakeTranscriptionStore) UpdateOperationStatus(ctx context.Context, fileID int64, op model.Operation, status model.OperationStatus) error {
	s.opWrites[fileID] = append(s.opWrites[fileID], status)
	return nil
}

func (s *fakeTranscriptionStore) UpdateFilesStatus(ctx context.Context, fileIDs []int64, status model.FileStatus) error {
	s.batchIDs = append(s.batchIDs, fileIDs...)
	return nil
}

func (s *fakeTranscriptionStore) CompleteTranscription(ctx context.Context, storageKey, transcription string) error {
	if s.completErr != nil {
		return s.completErr
	}
	s.completed[storageKey] = transcription
	return nil
}

type fakeSubmitter struct {
	err       error
	fileURLs  []string
	callbacks []string
	languages []string
}

func (f *fakeSubmitter) Submit(ctx context.Context, fileURL, callbackURL, language string) error {
	if f.err != nil {
		return f.err
	}
	f.fileURLs = append(f.fileURLs, fileURL)
	f.callbacks = append(f.callbacks, callbackURL)
	f.languages = append(f.languages, language)
	return nil
}

func TestTranscriptionStart(t *testing.T) {
	store := newFakeTranscriptionStore(
		&model.MediaFile{ID: 1, UserID: 7, StorageKey: "7/a.wav"},
		&model.MediaFile{ID: 2, UserID: 7, StorageKey: "7/b.wav"},
	)
	submitter := &fakeSubmitter{}
	svc := NewTranscriptionService(store, submitter, newFakeBlobStore(), "https://api.example.com", quietLogger())

	require.NoError(t, svc.Start(context.Background(), 7, []int64{1, 2}, "en"))

	assert.Equal(t, []int64{1, 2}, store.batchIDs)
	assert.Equal(t, []model.OperationStatus{model.OperationProcessing}, store.opWrites[1])
	assert.Equal(t, []model.OperationStatus{model.OperationProcessing}, store.opWrites[2])

	require.Len(t, submitter.fileURLs, 2)
	// Both URLs must be reachable by the external service without a user
	// token, so they are keyed by storage key on unauthenticated routes.
	assert.Equal(t, "https://api.example.com/api/files/content/7/a.wav", submitter.fileURLs[0])
	assert.Equal(t, "https://api.example.com/api/files/callback/7/a.wav", submitter.callbacks[0])
	assert.Equal(t, "en", submitter.languages[0])
}

func TestTranscriptionStart_OwnershipEnforced(t *testing.T) {
	store := newFakeTranscriptionStore(&model.MediaFile{ID: 1, UserID: 7, StorageKey: "7/a.wav"})
	svc := NewTranscriptionService(store, &fakeSubmitter{}, newFakeBlobStore(), "https://api.example.com", quietLogger())

	err := svc.Start(context.Background(), 8, []int64{1}, "")
	assert.ErrorIs(t, err, ErrFileAccessDenied)
	assert.Empty(t, store.batchIDs)
}

func TestTranscriptionStart_InProgressRejected(t *testing.T) {
	store := newFakeTranscriptionStore(&model.MediaFile{
		ID: 1, UserID: 7, StorageKey: "7/a.wav",
		TranscriptionStatus: model.OperationProcessing,
	})
	svc := NewTranscriptionService(store, &fakeSubmitter{}, newFakeBlobStore(), "https://api.example.com", quietLogger())

	err := svc.Start(context.Background(), 7, []int64{1}, "")
	assert.ErrorIs(t, err, ErrOperationInProgress)
}

func TestTranscriptionStart_SubmitFailureRollsToFailed(t *testing.T) {
	store := newFakeTranscriptionStore(&model.MediaFile{ID: 1, UserID: 7, StorageKey: "7/a.wav"})
	svc := NewTranscriptionService(store, &fakeSubmitter{err: errors.New("service down")}, newFakeBlobStore(), "https://api.example.com", quietLogger())

	err := svc.Start(context.Background(), 7, []int64{1}, "")
	require.Error(t, err)
	assert.Equal(t, []model.OperationStatus{model.OperationProcessing, model.OperationFailed}, store.opWrites[1])
}

func TestHandleCallback(t *testing.T) {
	store := newFakeTranscriptionStore(&model.MediaFile{ID: 1, UserID: 7, StorageKey: "7/a.wav"})
	blobs := newFakeBlobStore()
	svc := NewTranscriptionService(store, &fakeSubmitter{}, blobs, "https://api.example.com", quietLogger())

	require.NoError(t, svc.HandleCallback(context.Background(), "7/a.wav", "hello there"))

	assert.Equal(t, "hello there", store.completed["7/a.wav"])
	assert.Equal(t, []string{"7/a.wav"}, blobs.deletes, "source blob is released after transcription")
}

func TestHandleCallback_UnknownKey(t *testing.T) {
	store := newFakeTranscriptionStore()
	svc := NewTranscriptionService(store, &fakeSubmitter{}, newFakeBlobStore(), "https://api.example.com", quietLogger())

	err := svc.HandleCallback(context.Background(), "9/ghost.wav", "x")
	assert.Error(t, err)
	assert.Empty(t, store.completed)
}
