package domain

// RecordingState models the dictation lifecycle.
type RecordingState string

const (
	RecordingStateIdle      RecordingState = "idle"
	RecordingStateRecording RecordingState = "recording"
	RecordingStatePaused    RecordingState = "paused"
)

// SessionStateReason provides a structured reason for state transitions.
type SessionStateReason string

const (
	SessionReasonReady             SessionStateReason = "ready"
	SessionReasonRecordingStarted  SessionStateReason = "recording_started"
	SessionReasonRecordingPaused   SessionStateReason = "recording_paused"
	SessionReasonRecordingResumed  SessionStateReason = "recording_resumed"
	SessionReasonRecordingStopped  SessionStateReason = "recording_stopped"
	SessionReasonNoTranscript      SessionStateReason = "no_transcript"
	SessionReasonRecognitionFailed SessionStateReason = "recognition_failed"
	SessionReasonUnsupported       SessionStateReason = "unsupported"
	SessionReasonPermissionDenied  SessionStateReason = "permission_denied"
)

// ErrorCode identifies user-visible notices.
type ErrorCode string

const (
	ErrorCodeStartup     ErrorCode = "startup"
	ErrorCodePermission  ErrorCode = "permission"
	ErrorCodeUnsupported ErrorCode = "unsupported"
	ErrorCodeRecognition ErrorCode = "recognition"
	ErrorCodeAudioStream ErrorCode = "audio_stream"
	ErrorCodeAnalysis    ErrorCode = "analysis"
	ErrorCodePersistence ErrorCode = "persistence"
)

// RecognitionEvent is one incremental result from the transcription source.
// Finals are appended to the committed transcript; Interim replaces the
// previous in-progress segment wholesale.
type RecognitionEvent struct {
	Finals  []string `json:"finals"`
	Interim string   `json:"interim"`
}

// StopResult is returned once a recording is stopped and analysed.
type StopResult struct {
	Transcript         string `json:"transcript"`
	AnalyzedTranscript string `json:"analyzedTranscript"`
	Analyzed           bool   `json:"analyzed"`
	Fallback           bool   `json:"fallback"`
	Record             Record `json:"record"`
}

// Status summarizes the current recording status.
type Status struct {
	State       RecordingState `json:"state"`
	Active      bool           `json:"active"`
	Unsupported bool           `json:"unsupported"`
	Transcript  string         `json:"transcript"`
	Message     string         `json:"message,omitempty"`
}
