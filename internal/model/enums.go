package model

// FileStatus is the stored upload lifecycle of a media file. It is written by
// the upload path and the transcription callback; processing jobs report through
// the per-operation statuses instead.
type FileStatus string

const (
	FileStatusUploaded   FileStatus = "uploaded"
	FileStatusProcessing FileStatus = "processing"
	FileStatusCompleted  FileStatus = "completed"
)

// OperationStatus tracks one processing operation on one file.
type OperationStatus string

const (
	OperationNotStarted OperationStatus = "not_started"
	OperationProcessing OperationStatus = "processing"
	OperationCompleted  OperationStatus = "completed"
	OperationFailed     OperationStatus = "failed"
)

// Terminal reports whether the status cannot change without a new submission.
func (s OperationStatus) Terminal() bool {
	return s == OperationCompleted || s == OperationFailed
}

// Operation identifies one kind of processing tracked independently per file.
type Operation string

const (
	OperationTranscription Operation = "transcription"
	OperationNoiseRemoval  Operation = "noise_removal"
	OperationMelodyRemoval Operation = "melody_removal"
	OperationVocalRemoval  Operation = "vocal_removal"
	OperationEnhancement   Operation = "enhancement"
)

// ValidOperations lists every operation a client can request on a file.
var ValidOperations = []Operation{
	OperationTranscription,
	OperationNoiseRemoval,
	OperationMelodyRemoval,
	OperationVocalRemoval,
	OperationEnhancement,
}

func (o Operation) Valid() bool {
	for _, op := range ValidOperations {
		if o == op {
			return true
		}
	}
	return false
}
