package model

// Task types registered on the asynq mux.
const (
	TaskTypeProcess = "file:process"
	TaskTypeEnhance = "file:enhance"
)

// Queue names. Enhancement runs on its own queue so its workers can be scaled
// and throttled independently of the noise/stem jobs.
const (
	QueueAudio   = "audio"
	QueueEnhance = "enhance"
)

// ProcessJobPayload is the asynq payload for one processing job. It exists only
// on the queue; job state is observed through the file's operation statuses.
type ProcessJobPayload struct {
	FileID    int64     `json:"fileId"`
	UserID    int64     `json:"userId"`
	SourceKey string    `json:"sourceKey"`
	Operation Operation `json:"operation"`
	Preset    string    `json:"preset,omitempty"`
}

// EnhanceRequest is the body of POST /api/files/:id/enhancement.
type EnhanceRequest struct {
	Preset string `json:"preset" validate:"required"`
}

// SubmitResponse acknowledges an accepted processing job.
type SubmitResponse struct {
	FileID    int64           `json:"fileId"`
	Operation Operation       `json:"operation"`
	Status    OperationStatus `json:"status"`
}

// UploadResponse describes a freshly uploaded file.
type UploadResponse struct {
	FileID      int64      `json:"fileId"`
	StorageKey  string     `json:"storageKey"`
	Status      FileStatus `json:"status"`
	DisplayName string     `json:"displayName"`
	Duration    float64    `json:"durationSeconds"`
}

// PresetInfo describes one enhancement preset for the API.
type PresetInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// StatusEvent is published by workers whenever an operation's status changes,
// and fanned out to WebSocket subscribers by the hub.
type StatusEvent struct {
	FileID    int64           `json:"fileId"`
	Operation Operation       `json:"operation"`
	Status    OperationStatus `json:"status"`
	OutputKey string          `json:"outputKey,omitempty"`
	Error     string          `json:"error,omitempty"`
}
