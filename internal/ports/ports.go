package ports

import (
	"context"
	"io"

	"medscribe/internal/domain"
)

// AudioConfig describes how the microphone should be captured.
type AudioConfig struct {
	SampleRate  int
	Channels    int
	InputFormat string
	InputDevice string
}

// AudioSession is a live capture session.
type AudioSession interface {
	io.ReadCloser
	Stop() error
}

// AudioCapture acquires the microphone. Start fails with
// domain.ErrPermissionDenied when the device cannot be opened.
type AudioCapture interface {
	Start(ctx context.Context, cfg AudioConfig) (AudioSession, error)
}

// StreamingConfig describes provider-agnostic streaming settings.
type StreamingConfig struct {
	SampleRate     int
	Channels       int
	Encoding       string
	InterimResults bool
}

// RecognitionStream is one live recognition stream. Events is closed when the
// stream ends, either on request or on its own; Wait then reports why.
type RecognitionStream interface {
	SendAudio(chunk []byte) error
	CloseSend() error
	Events() <-chan domain.RecognitionEvent
	Wait() error
	Close() error
}

// RecognitionProvider starts streaming recognition.
type RecognitionProvider interface {
	Supported() bool
	StartStreaming(ctx context.Context, cfg StreamingConfig) (RecognitionStream, error)
}

// Analyzer extracts structured fields from a transcript.
type Analyzer interface {
	Analyze(ctx context.Context, transcript string) (domain.ExtractionResult, error)
}

// RecordStore persists notes.
type RecordStore interface {
	List(ctx context.Context) ([]domain.Record, error)
	Get(ctx context.Context, id string) (domain.Record, error)
	Insert(ctx context.Context, fields domain.Fields) (string, error)
	Update(ctx context.Context, id string, fields domain.Fields) error
	Delete(ctx context.Context, id string) error
}

// TranscriptCorrector rewrites transcripts using deterministic rules.
type TranscriptCorrector interface {
	Apply(text string) (string, error)
}

// EventSink emits backend state/events to the UI.
type EventSink interface {
	SessionStateChanged(state domain.RecordingState, reason domain.SessionStateReason)
	LiveTranscript(text string)
	FinalTranscript(text string)
	RecordChanged(record domain.Record)
	SessionError(code domain.ErrorCode, detail string)
}
