package domain

import (
	"errors"
	"fmt"
)

var (
	ErrPermissionDenied       = errors.New("microphone permission denied")
	ErrUnsupportedEnvironment = errors.New("speech recognition is not supported in this environment")
	ErrInvalidTransition      = errors.New("operation not valid in the current recording state")
	ErrAnalyzerUnavailable    = errors.New("analyzer is not configured")
	ErrNoteNotFound           = errors.New("note not found")
)

// RecognitionErrorKind classifies transcription source failures.
type RecognitionErrorKind string

const (
	RecognitionNoSpeech     RecognitionErrorKind = "no-speech"
	RecognitionAudioCapture RecognitionErrorKind = "audio-capture"
	RecognitionNotAllowed   RecognitionErrorKind = "not-allowed"
	RecognitionNetwork      RecognitionErrorKind = "network"
	RecognitionOther        RecognitionErrorKind = "other"
)

// Message returns the user-facing text for a recognition failure kind.
func (k RecognitionErrorKind) Message() string {
	switch k {
	case RecognitionNoSpeech:
		return "No speech was detected. Please try again."
	case RecognitionAudioCapture:
		return "No microphone was found or it could not be read."
	case RecognitionNotAllowed:
		return "Microphone access was denied."
	case RecognitionNetwork:
		return "Network error while transcribing."
	default:
		return "Speech recognition error."
	}
}

// RecognitionError is a transient transcription source failure.
type RecognitionError struct {
	Kind RecognitionErrorKind
	Err  error
}

func (e *RecognitionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("recognition error (%s)", e.Kind)
	}
	return fmt.Sprintf("recognition error (%s): %v", e.Kind, e.Err)
}

func (e *RecognitionError) Unwrap() error { return e.Err }

// AnalysisError wraps a failed analyzer call.
type AnalysisError struct {
	Err error
}

func (e *AnalysisError) Error() string { return "analysis failed: " + e.Err.Error() }

func (e *AnalysisError) Unwrap() error { return e.Err }

// PersistenceError wraps a failed record store call.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s note: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
