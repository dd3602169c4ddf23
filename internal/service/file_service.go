package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/clearwave/api/internal/audio"
	"github.com/clearwave/api/internal/client"
	"github.com/clearwave/api/internal/model"
)

// ErrFileAccessDenied is returned for files owned by someone else.
var ErrFileAccessDenied = errors.New("file access denied")

// ErrUnsupportedFormat rejects uploads outside the accepted extensions.
var ErrUnsupportedFormat = errors.New("unsupported file format")

var audioExtensions = map[string]string{
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".ogg":  "audio/ogg",
	".flac": "audio/flac",
	".m4a":  "audio/mp4",
	".aac":  "audio/aac",
}

var videoExtensions = map[string]bool{
	".mp4":  true,
	".mov":  true,
	".avi":  true,
	".mkv":  true,
	".webm": true,
}

// FileMetaStore is the slice of the state store the file service needs.
type FileMetaStore interface {
	CreateFile(ctx context.Context, userID int64, storageKey, displayName, mimeType string, size int64) (*model.MediaFile, error)
	GetFile(ctx context.Context, id int64) (*model.MediaFile, error)
	GetFileByKey(ctx context.Context, storageKey string) (*model.MediaFile, error)
	ListFiles(ctx context.Context, userID int64) ([]*model.MediaFile, error)
	UpdateDuration(ctx context.Context, fileID int64, seconds float64) error
	DeleteFile(ctx context.Context, id int64) error
}

// FileService owns the upload/download/delete lifecycle of media files.
type FileService struct {
	store   FileMetaStore
	storage client.StorageClient
	log     *logrus.Logger
}

func NewFileService(store FileMetaStore, storage client.StorageClient, log *logrus.Logger) *FileService {
	return &FileService{store: store, storage: storage, log: log}
}

// Upload ingests a local temp file: video inputs get their audio track
// extracted, duration is probed, the blob lands in object storage under a
// fresh {owner}/{name} key and a record is created in UPLOADED state.
func (s *FileService) Upload(ctx context.Context, userID int64, srcPath, originalName string) (*model.MediaFile, error) {
	ext := strings.ToLower(filepath.Ext(originalName))
	mimeType, isAudio := audioExtensions[ext]
	isVideo := videoExtensions[ext]
	if !isAudio && !isVideo {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}

	finalPath := srcPath
	displayName := originalName
	if isVideo {
		extracted := filepath.Join(filepath.Dir(srcPath), fmt.Sprintf("audio_%s.wav", uuid.New().String()))
		if err := audio.ExtractAudio(ctx, srcPath, extracted); err != nil {
			return nil, err
		}
		defer os.Remove(extracted)
		finalPath = extracted
		ext = ".wav"
		mimeType = "audio/wav"
		stem := strings.TrimSuffix(originalName, filepath.Ext(originalName))
		displayName = stem + ".wav"
	}

	// Duration detection is best-effort; an undetectable duration should not
	// block the upload.
	var duration float64
	if info, err := audio.Probe(ctx, finalPath); err == nil {
		duration = info.Duration
	} else {
		s.log.WithError(err).Warn("probe uploaded file")
	}

	stat, err := os.Stat(finalPath)
	if err != nil {
		return nil, fmt.Errorf("stat upload: %w", err)
	}

	f, err := os.Open(finalPath)
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	key := fmt.Sprintf("%d/upload_%s%s", userID, uuid.New().String(), ext)
	if _, err := s.storage.Upload(ctx, key, f, mimeType); err != nil {
		return nil, err
	}

	file, err := s.store.CreateFile(ctx, userID, key, displayName, mimeType, stat.Size())
	if err != nil {
		return nil, err
	}
	if duration > 0 {
		if err := s.store.UpdateDuration(ctx, file.ID, duration); err != nil {
			return nil, err
		}
		file.Duration = duration
	}
	return file, nil
}

// Get returns one file the user owns.
func (s *FileService) Get(ctx context.Context, userID, fileID int64) (*model.MediaFile, error) {
	file, err := s.store.GetFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if file.UserID != userID {
		return nil, fmt.Errorf("file %d: %w", fileID, ErrFileAccessDenied)
	}
	return file, nil
}

// List returns every file the user owns.
func (s *FileService) List(ctx context.Context, userID int64) ([]*model.MediaFile, error) {
	return s.store.ListFiles(ctx, userID)
}

// Download opens a blob belonging to the file: the source when result is
// empty, otherwise the named operation's output. offset/length select a byte
// range; a negative offset selects a suffix and length <= 0 reads to the end.
func (s *FileService) Download(ctx context.Context, userID, fileID int64, result model.Operation, offset, length int64) (*client.Object, string, error) {
	file, err := s.Get(ctx, userID, fileID)
	if err != nil {
		return nil, "", err
	}

	key := file.StorageKey
	if result != "" {
		key = file.OutputKey(result)
		if key == "" {
			return nil, "", fmt.Errorf("no %s output for file %d: %w", result, fileID, client.ErrObjectNotFound)
		}
	}

	obj, err := s.storage.Get(ctx, key, offset, length)
	if err != nil {
		return nil, "", err
	}
	return obj, filepath.Base(key), nil
}

// DownloadByKey opens a source blob addressed by its storage key. This serves
// machine consumers that hold the key but no user token, like the external
// transcription service fetching the audio it was asked to transcribe; keys
// contain enough entropy that holding one is the capability.
func (s *FileService) DownloadByKey(ctx context.Context, storageKey string) (*client.Object, string, error) {
	file, err := s.store.GetFileByKey(ctx, storageKey)
	if err != nil {
		return nil, "", err
	}

	obj, err := s.storage.Get(ctx, file.StorageKey, 0, 0)
	if err != nil {
		return nil, "", err
	}
	return obj, filepath.Base(file.StorageKey), nil
}

// Delete removes the record and every blob produced for the file. Output
// deletions are best-effort; a stray blob is preferable to a record that
// cannot be deleted.
func (s *FileService) Delete(ctx context.Context, userID, fileID int64) error {
	file, err := s.Get(ctx, userID, fileID)
	if err != nil {
		return err
	}

	keys := []string{file.StorageKey}
	for _, op := range model.ValidOperations {
		if k := file.OutputKey(op); k != "" {
			keys = append(keys, k)
		}
	}
	for _, key := range keys {
		if err := s.storage.Delete(ctx, key); err != nil {
			s.log.WithError(err).WithField("key", key).Warn("delete blob")
		}
	}

	return s.store.DeleteFile(ctx, fileID)
}
