package model

import (
	"encoding/json"
	"time"
)

// MediaFile represents one uploaded asset and the state of every processing
// operation requested on it. Each operation's status and output key live in
// their own columns so concurrent jobs for different operations never touch
// each other's state.
type MediaFile struct {
	ID          int64      `json:"id"`
	UserID      int64      `json:"userId"`
	StorageKey  string     `json:"storageKey"`
	DisplayName string     `json:"displayName"`
	Status      FileStatus `json:"status"`
	Duration    float64    `json:"durationSeconds"`
	Size        int64      `json:"sizeBytes"`
	MimeType    string     `json:"mimeType"`

	TranscriptionStatus OperationStatus `json:"transcriptionStatus"`
	NoiseRemovalStatus  OperationStatus `json:"noiseRemovalStatus"`
	MelodyRemovalStatus OperationStatus `json:"melodyRemovalStatus"`
	VocalRemovalStatus  OperationStatus `json:"vocalRemovalStatus"`
	EnhancementStatus   OperationStatus `json:"enhancementStatus"`

	NoiseRemovalKey  string `json:"noiseRemovalKey,omitempty"`
	MelodyRemovalKey string `json:"melodyRemovalKey,omitempty"`
	VocalRemovalKey  string `json:"vocalRemovalKey,omitempty"`
	EnhancementKey   string `json:"enhancementKey,omitempty"`

	Transcription string `json:"transcription,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

// MarshalJSON adds the derived file-wide view to the stored fields so clients
// never have to recompute it from the per-operation statuses.
func (f *MediaFile) MarshalJSON() ([]byte, error) {
	type plain MediaFile
	return json.Marshal(struct {
		*plain
		OverallStatus FileStatus `json:"overallStatus"`
		Actionable    bool       `json:"actionable"`
	}{(*plain)(f), f.OverallStatus(), f.Actionable()})
}

// OperationState returns the status of one operation. An unset status reads as
// NOT_STARTED so structs built in memory behave like rows loaded from the
// database, where the columns default to it.
func (f *MediaFile) OperationState(op Operation) OperationStatus {
	var s OperationStatus
	switch op {
	case OperationTranscription:
		s = f.TranscriptionStatus
	case OperationNoiseRemoval:
		s = f.NoiseRemovalStatus
	case OperationMelodyRemoval:
		s = f.MelodyRemovalStatus
	case OperationVocalRemoval:
		s = f.VocalRemovalStatus
	case OperationEnhancement:
		s = f.EnhancementStatus
	}
	if s == "" {
		return OperationNotStarted
	}
	return s
}

// OutputKey returns the storage key of one operation's result, if recorded.
func (f *MediaFile) OutputKey(op Operation) string {
	switch op {
	case OperationNoiseRemoval:
		return f.NoiseRemovalKey
	case OperationMelodyRemoval:
		return f.MelodyRemovalKey
	case OperationVocalRemoval:
		return f.VocalRemovalKey
	case OperationEnhancement:
		return f.EnhancementKey
	}
	return ""
}

// Actionable reports whether new work may be submitted for the file. A file is
// actionable when no operation is currently running; the per-operation statuses
// are the source of truth, not the stored lifecycle field.
func (f *MediaFile) Actionable() bool {
	for _, op := range ValidOperations {
		if f.OperationState(op) == OperationProcessing {
			return false
		}
	}
	return true
}

// OverallStatus derives the file-wide status from the per-operation statuses.
func (f *MediaFile) OverallStatus() FileStatus {
	if !f.Actionable() {
		return FileStatusProcessing
	}
	for _, op := range ValidOperations {
		if f.OperationState(op).Terminal() {
			return FileStatusCompleted
		}
	}
	return f.Status
}
