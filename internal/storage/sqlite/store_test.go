package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearwave/api/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func createTestFile(t *testing.T, store *Store, userID int64, key string) *model.MediaFile {
	t.Helper()
	f, err := store.CreateFile(context.Background(), userID, key, "song.mp3", "audio/mpeg", 1024)
	require.NoError(t, err)
	return f
}

func TestCreateAndGetFile(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created := createTestFile(t, store, 7, "7/upload_abc.mp3")
	assert.Equal(t, int64(7), created.UserID)
	assert.Equal(t, model.FileStatusUploaded, created.Status)
	assert.Equal(t, model.OperationNotStarted, created.NoiseRemovalStatus)
	assert.Equal(t, model.OperationNotStarted, created.EnhancementStatus)
	assert.False(t, created.CreatedAt.IsZero())

	got, err := store.GetFile(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.StorageKey, got.StorageKey)

	byKey, err := store.GetFileByKey(ctx, "7/upload_abc.mp3")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byKey.ID)
}

func TestGetFile_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetFile(context.Background(), 999)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.GetFileByKey(context.Background(), "nobody/nothing.wav")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListFiles_OwnerScoped(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	createTestFile(t, store, 1, "1/a.mp3")
	createTestFile(t, store, 1, "1/b.mp3")
	createTestFile(t, store, 2, "2/c.mp3")

	files, err := store.ListFiles(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, files, 2)
	for _, f := range files {
		assert.Equal(t, int64(1), f.UserID)
	}

	none, err := store.ListFiles(ctx, 3)
	require.NoError(t, err)
	assert.Empty(t, none)
}

// Updating one operation must leave every sibling operation untouched.
func TestUpdateOperationStatus_ColumnIsolation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	f := createTestFile(t, store, 1, "1/iso.mp3")

	require.NoError(t, store.UpdateOperationStatus(ctx, f.ID, model.OperationEnhancement, model.OperationProcessing))
	require.NoError(t, store.UpdateOperationStatus(ctx, f.ID, model.OperationNoiseRemoval, model.OperationCompleted))

	got, err := store.GetFile(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OperationProcessing, got.EnhancementStatus)
	assert.Equal(t, model.OperationCompleted, got.NoiseRemovalStatus)
	assert.Equal(t, model.OperationNotStarted, got.MelodyRemovalStatus)
	assert.Equal(t, model.OperationNotStarted, got.VocalRemovalStatus)
	assert.Equal(t, model.OperationNotStarted, got.TranscriptionStatus)
	assert.Equal(t, model.FileStatusUploaded, got.Status, "stored lifecycle status is untouched by operation updates")
}

func TestUpdateOperationStatus_UnknownOperation(t *testing.T) {
	store := newTestStore(t)
	f := createTestFile(t, store, 1, "1/x.mp3")

	err := store.UpdateOperationStatus(context.Background(), f.ID, model.Operation("remix"), model.OperationProcessing)
	assert.Error(t, err)
}

func TestUpdateOperationStatus_MissingFile(t *testing.T) {
	store := newTestStore(t)

	err := store.UpdateOperationStatus(context.Background(), 42, model.OperationEnhancement, model.OperationFailed)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateOperationOutputKey(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	f := createTestFile(t, store, 4, "4/in.mp3")

	require.NoError(t, store.UpdateOperationOutputKey(ctx, f.ID, model.OperationVocalRemoval, "4/in_instrumental.wav"))

	got, err := store.GetFile(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, "4/in_instrumental.wav", got.VocalRemovalKey)
	assert.Empty(t, got.NoiseRemovalKey)

	// Transcription stores text, not a blob
	err = store.UpdateOperationOutputKey(ctx, f.ID, model.OperationTranscription, "whatever")
	assert.Error(t, err)
}

func TestUpdateFilesStatus_Batch(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	a := createTestFile(t, store, 1, "1/aa.mp3")
	b := createTestFile(t, store, 1, "1/bb.mp3")
	c := createTestFile(t, store, 1, "1/cc.mp3")

	require.NoError(t, store.UpdateFilesStatus(ctx, []int64{a.ID, b.ID}, model.FileStatusProcessing))
	require.NoError(t, store.UpdateFilesStatus(ctx, nil, model.FileStatusCompleted))

	gotA, err := store.GetFile(ctx, a.ID)
	require.NoError(t, err)
	gotC, err := store.GetFile(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.FileStatusProcessing, gotA.Status)
	assert.Equal(t, model.FileStatusUploaded, gotC.Status)
}

func TestUpdateDuration(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	f := createTestFile(t, store, 1, "1/dur.mp3")

	require.NoError(t, store.UpdateDuration(ctx, f.ID, 184.32))

	got, err := store.GetFile(ctx, f.ID)
	require.NoError(t, err)
	assert.InDelta(t, 184.32, got.Duration, 1e-9)
}

func TestCompleteTranscription(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	f := createTestFile(t, store, 9, "9/talk.wav")

	require.NoError(t, store.CompleteTranscription(ctx, "9/talk.wav", "hello world"))

	got, err := store.GetFile(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello world", got.Transcription)
	assert.Equal(t, model.OperationCompleted, got.TranscriptionStatus)
	assert.Equal(t, model.FileStatusCompleted, got.Status)

	err = store.CompleteTranscription(ctx, "9/unknown.wav", "x")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteFile(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	f := createTestFile(t, store, 1, "1/gone.mp3")

	require.NoError(t, store.DeleteFile(ctx, f.ID))

	_, err := store.GetFile(ctx, f.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, store.DeleteFile(ctx, f.ID), ErrNotFound)
}
