package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"medscribe/internal/bootstrap"
	"medscribe/internal/domain"
	"medscribe/internal/heuristics"
	"medscribe/internal/usecase"
)

const (
	eventSession = "medscribe:session"
	eventLive    = "medscribe:live"
	eventFinal   = "medscribe:final"
	eventRecord  = "medscribe:record"
	eventError   = "medscribe:error"
)

// App is the Wails application root.
type App struct {
	ctx context.Context

	services bootstrap.Services
	session  *usecase.RecordingSession
	notes    *usecase.NoteService
	bootErr  error
	emit     func(ctx context.Context, name string, data ...interface{})
}

func NewApp() *App {
	return &App{emit: runtime.EventsEmit}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := bootstrap.Build(a)
	if err != nil {
		a.bootErr = err
		a.SessionError(domain.ErrorCodeStartup, err.Error())
		return
	}

	a.services = services
	a.session = services.Session
	a.notes = services.Notes
	a.SessionStateChanged(domain.RecordingStateIdle, domain.SessionReasonReady)
}

func (a *App) shutdown(_ context.Context) {
	if a.session == nil {
		return
	}
	if err := a.services.Close(); err != nil {
		a.services.Logger.Error().Err(err).Msg("shutdown failed")
	}
}

// StartRecording begins a new dictation.
func (a *App) StartRecording() (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	if err := swallowInvalid(a.session.Start(a.ctx)); err != nil {
		return a.session.Status(), err
	}
	return a.session.Status(), nil
}

// PauseRecording pauses dictation and analyses what was said so far.
func (a *App) PauseRecording() (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	if err := swallowInvalid(a.session.Pause()); err != nil {
		return a.session.Status(), err
	}
	return a.session.Status(), nil
}

// ResumeRecording continues a paused dictation.
func (a *App) ResumeRecording() (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	if err := swallowInvalid(a.session.Resume(a.ctx)); err != nil {
		return a.session.Status(), err
	}
	return a.session.Status(), nil
}

// StopRecording ends dictation and fills the note from the transcript.
func (a *App) StopRecording() (domain.StopResult, error) {
	if err := a.requireReady(); err != nil {
		return domain.StopResult{}, err
	}
	result, err := a.session.Stop(a.ctx)
	if errors.Is(err, domain.ErrInvalidTransition) {
		return domain.StopResult{Record: a.notes.Current()}, nil
	}
	return result, err
}

// GetStatus returns the current recording status.
func (a *App) GetStatus() domain.Status {
	if a.session == nil {
		status := domain.Status{State: domain.RecordingStateIdle}
		if a.bootErr != nil {
			status.Message = a.bootErr.Error()
		}
		return status
	}
	return a.session.Status()
}

// CurrentNote returns the note being edited.
func (a *App) CurrentNote() (domain.Record, error) {
	if err := a.requireReady(); err != nil {
		return domain.Record{}, err
	}
	return a.notes.Current(), nil
}

// UpdateField applies a direct edit from the form.
func (a *App) UpdateField(field string, value string) (domain.Record, error) {
	if err := a.requireReady(); err != nil {
		return domain.Record{}, err
	}
	return a.notes.SetField(domain.Field(field), value)
}

// SaveNote persists the note being edited.
func (a *App) SaveNote() (domain.Record, error) {
	if err := a.requireReady(); err != nil {
		return domain.Record{}, err
	}
	return a.notes.Save(a.ctx)
}

// NewNote discards the unsaved draft and starts an empty one.
func (a *App) NewNote() (domain.Record, error) {
	if err := a.requireReady(); err != nil {
		return domain.Record{}, err
	}
	return a.notes.Reset(), nil
}

// OpenNote loads a saved note for editing.
func (a *App) OpenNote(id string) (domain.Record, error) {
	if err := a.requireReady(); err != nil {
		return domain.Record{}, err
	}
	return a.notes.Open(a.ctx, id)
}

// ListNotes returns saved notes, newest first.
func (a *App) ListNotes() ([]domain.Record, error) {
	if err := a.requireReady(); err != nil {
		return nil, err
	}
	return a.notes.List(a.ctx)
}

// DeleteNote permanently removes a saved note.
func (a *App) DeleteNote(id string) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.notes.Delete(a.ctx, id)
}

// ExtractLocally fills empty note fields from text using the rule-based parser.
func (a *App) ExtractLocally(text string) (domain.Record, error) {
	if err := a.requireReady(); err != nil {
		return domain.Record{}, err
	}
	return a.notes.ApplyHeuristics(text), nil
}

// PreviewExtraction runs the rule-based parser without touching the note.
func (a *App) PreviewExtraction(text string) domain.ExtractionResult {
	return heuristics.Extract(text)
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}

	cfg := a.services.Config
	analyzerState := "disabled"
	if cfg.AnalyzerEnabled() {
		analyzerState = "enabled"
	}
	return map[string]string{
		"provider":         "Deepgram",
		"model":            cfg.Deepgram.Model,
		"language":         cfg.Deepgram.Language,
		"analyzer":         analyzerState,
		"vocabularyFile":   cfg.Vocab.Path,
		"database":         cfg.Store.Path,
		"audioInput":       cfg.Audio.InputDevice,
		"audioInputFormat": cfg.Audio.InputFormat,
	}
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.session == nil || a.notes == nil {
		return fmt.Errorf("application is not initialized")
	}
	return nil
}

// swallowInvalid turns an out-of-order control press into a no-op.
func swallowInvalid(err error) error {
	if errors.Is(err, domain.ErrInvalidTransition) {
		return nil
	}
	return err
}

// SessionStateChanged emits recording lifecycle updates to the frontend.
func (a *App) SessionStateChanged(state domain.RecordingState, reason domain.SessionStateReason) {
	a.send(eventSession, map[string]string{
		"state":   string(state),
		"reason":  string(reason),
		"message": sessionReasonMessage(reason),
	})
}

// LiveTranscript emits committed plus interim text.
func (a *App) LiveTranscript(text string) {
	a.send(eventLive, map[string]string{"text": text})
}

// FinalTranscript emits the transcript of a stopped recording.
func (a *App) FinalTranscript(text string) {
	a.send(eventFinal, map[string]string{"text": text})
}

// RecordChanged emits the updated note draft.
func (a *App) RecordChanged(record domain.Record) {
	a.send(eventRecord, record)
}

// SessionError emits user-visible notices.
func (a *App) SessionError(code domain.ErrorCode, detail string) {
	a.send(eventError, map[string]string{
		"code":    string(code),
		"message": errorMessage(code, detail),
		"detail":  detail,
	})
}

func (a *App) send(name string, payload interface{}) {
	if a.ctx == nil || a.emit == nil {
		return
	}
	a.emit(a.ctx, name, payload)
}

func sessionReasonMessage(reason domain.SessionStateReason) string {
	switch reason {
	case domain.SessionReasonReady:
		return "Ready"
	case domain.SessionReasonRecordingStarted:
		return "Recording"
	case domain.SessionReasonRecordingPaused:
		return "Paused. Analysing what was said so far..."
	case domain.SessionReasonRecordingResumed:
		return "Recording resumed"
	case domain.SessionReasonRecordingStopped:
		return "Recording stopped"
	case domain.SessionReasonNoTranscript:
		return "No speech captured"
	case domain.SessionReasonRecognitionFailed:
		return "Speech recognition stopped"
	case domain.SessionReasonUnsupported:
		return "Speech recognition is not available"
	case domain.SessionReasonPermissionDenied:
		return "Microphone unavailable"
	default:
		return ""
	}
}

func errorMessage(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeStartup:
		return "Startup failed"
	case domain.ErrorCodePermission:
		return "Microphone access denied"
	case domain.ErrorCodeUnsupported:
		return "Speech recognition unsupported"
	case domain.ErrorCodeRecognition:
		return "Speech recognition error"
	case domain.ErrorCodeAudioStream:
		return "Audio streaming issue"
	case domain.ErrorCodeAnalysis:
		return "Analysis unavailable"
	case domain.ErrorCodePersistence:
		return "Could not save note"
	default:
		if detail == "" {
			return "Unknown error"
		}
		return detail
	}
}
