package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/clearwave/api/internal/model"
)

//go:embed migrations/*.sql
var migrations embed.FS

// ErrNotFound is returned when no file row matches the lookup.
var ErrNotFound = errors.New("file not found")

// Store persists MediaFile records. Every write is a single autocommitted
// statement; processing steps are independently durable rather than
// transactional across components.
type Store struct {
	db *sql.DB
}

// NewStore opens (creating if needed) the database and applies migrations.
// Each process opens its own store so long-running transform work never
// contends with the request path for a connection.
func NewStore(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", p, err)
		}
	}

	// WAL allows concurrent reads but only one writer.
	db.SetMaxOpenConns(1)

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

const fileColumns = `id, user_id, storage_key, display_name, status, duration, size, mime_type,
	transcription_status, noise_removal_status, melody_removal_status, vocal_removal_status, enhancement_status,
	noise_removal_key, melody_removal_key, vocal_removal_key, enhancement_key,
	transcription, created_at`

// CreateFile inserts a freshly uploaded file with every operation NOT_STARTED.
func (s *Store) CreateFile(ctx context.Context, userID int64, storageKey, displayName, mimeType string, size int64) (*model.MediaFile, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO user_files (user_id, storage_key, display_name, status, size, mime_type, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		userID, storageKey, displayName, string(model.FileStatusUploaded), size, mimeType,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("insert file: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetFile(ctx, id)
}

// GetFile fetches one file by id.
func (s *Store) GetFile(ctx context.Context, id int64) (*model.MediaFile, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+fileColumns+` FROM user_files WHERE id = ?`, id)
	return scanFile(row)
}

// GetFileByKey fetches one file by its storage key.
func (s *Store) GetFileByKey(ctx context.Context, storageKey string) (*model.MediaFile, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+fileColumns+` FROM user_files WHERE storage_key = ?`, storageKey)
	return scanFile(row)
}

// ListFiles returns every file owned by a user, newest first.
func (s *Store) ListFiles(ctx context.Context, userID int64) ([]*model.MediaFile, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+fileColumns+` FROM user_files WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer rows.Close()

	var files []*model.MediaFile
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// operationColumns maps each operation to its own status and output-key
// columns. Updates go through this table so a job can never touch a sibling
// operation's state.
var operationColumns = map[model.Operation]struct {
	status string
	key    string
}{
	model.OperationTranscription: {status: "transcription_status"},
	model.OperationNoiseRemoval:  {status: "noise_removal_status", key: "noise_removal_key"},
	model.OperationMelodyRemoval: {status: "melody_removal_status", key: "melody_removal_key"},
	model.OperationVocalRemoval:  {status: "vocal_removal_status", key: "vocal_removal_key"},
	model.OperationEnhancement:   {status: "enhancement_status", key: "enhancement_key"},
}

// UpdateOperationStatus sets one operation's status. Single-column UPDATE,
// autocommitted.
func (s *Store) UpdateOperationStatus(ctx context.Context, fileID int64, op model.Operation, status model.OperationStatus) error {
	cols, ok := operationColumns[op]
	if !ok {
		return fmt.Errorf("unknown operation %q", op)
	}
	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE user_files SET %s = ? WHERE id = ?`, cols.status),
		string(status), fileID)
	if err != nil {
		return fmt.Errorf("update %s: %w", cols.status, err)
	}
	return requireRow(res)
}

// UpdateOperationOutputKey records where one operation's result blob lives.
func (s *Store) UpdateOperationOutputKey(ctx context.Context, fileID int64, op model.Operation, key string) error {
	cols, ok := operationColumns[op]
	if !ok || cols.key == "" {
		return fmt.Errorf("operation %q has no output key", op)
	}
	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE user_files SET %s = ? WHERE id = ?`, cols.key),
		key, fileID)
	if err != nil {
		return fmt.Errorf("update %s: %w", cols.key, err)
	}
	return requireRow(res)
}

// UpdateFilesStatus sets the stored lifecycle status of a batch of files. Used
// by the upload and transcription paths only; processing jobs report through
// the per-operation columns.
func (s *Store) UpdateFilesStatus(ctx context.Context, fileIDs []int64, status model.FileStatus) error {
	if len(fileIDs) == 0 {
		return nil
	}
	placeholders := strings.Repeat("?,", len(fileIDs))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]interface{}, 0, len(fileIDs)+1)
	args = append(args, string(status))
	for _, id := range fileIDs {
		args = append(args, id)
	}

	_, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE user_files SET status = ? WHERE id IN (%s)`, placeholders),
		args...)
	if err != nil {
		return fmt.Errorf("update files status: %w", err)
	}
	return nil
}

// UpdateDuration records the probed duration of a file in seconds.
func (s *Store) UpdateDuration(ctx context.Context, fileID int64, seconds float64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE user_files SET duration = ? WHERE id = ?`, seconds, fileID)
	if err != nil {
		return fmt.Errorf("update duration: %w", err)
	}
	return requireRow(res)
}

// CompleteTranscription stores the transcription text and closes out both the
// operation status and the stored lifecycle status, keyed by storage key since
// that is all the callback knows.
func (s *Store) CompleteTranscription(ctx context.Context, storageKey, transcription string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE user_files
		 SET transcription = ?, transcription_status = ?, status = ?
		 WHERE storage_key = ?`,
		transcription, string(model.OperationCompleted), string(model.FileStatusCompleted), storageKey)
	if err != nil {
		return fmt.Errorf("complete transcription: %w", err)
	}
	return requireRow(res)
}

// DeleteFile removes the record.
func (s *Store) DeleteFile(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM user_files WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanFile(row rowScanner) (*model.MediaFile, error) {
	var f model.MediaFile
	var createdAt string
	err := row.Scan(
		&f.ID, &f.UserID, &f.StorageKey, &f.DisplayName, &f.Status, &f.Duration, &f.Size, &f.MimeType,
		&f.TranscriptionStatus, &f.NoiseRemovalStatus, &f.MelodyRemovalStatus, &f.VocalRemovalStatus, &f.EnhancementStatus,
		&f.NoiseRemovalKey, &f.MelodyRemovalKey, &f.VocalRemovalKey, &f.EnhancementKey,
		&f.Transcription, &createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan file: %w", err)
	}
	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		f.CreatedAt = t
	}
	return &f, nil
}
