package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"medscribe/internal/domain"
	"medscribe/internal/ports"
	"medscribe/internal/reconcile"
)

const analysisFailedNotice = "Analysis failed. The transcript was saved for manual entry."

// Config controls capture and streaming for a recording session.
type Config struct {
	Audio     ports.AudioConfig
	Streaming ports.StreamingConfig
	ChunkSize int
}

// RecordingSession drives the dictation lifecycle: Idle, Recording, Paused.
// It owns the committed/interim transcript and restarts the recognition
// stream when the source ends on its own while still recording.
type RecordingSession struct {
	audio     ports.AudioCapture
	provider  ports.RecognitionProvider
	analyzer  ports.Analyzer
	corrector ports.TranscriptCorrector
	notes     *NoteService
	events    ports.EventSink
	logger    zerolog.Logger
	cfg       Config

	mu          sync.Mutex
	state       domain.RecordingState
	unsupported bool
	opening     bool
	message     string
	text        transcriptAccumulator
	current     *activeStream
	streamCtx   context.Context
	// epoch changes on every user transition; generation on every Start.
	epoch      uint64
	generation uint64

	analyses sync.WaitGroup
}

func NewRecordingSession(
	audio ports.AudioCapture,
	provider ports.RecognitionProvider,
	analyzer ports.Analyzer,
	corrector ports.TranscriptCorrector,
	notes *NoteService,
	events ports.EventSink,
	logger zerolog.Logger,
	cfg Config,
) *RecordingSession {
	if cfg.ChunkSize < 256 {
		cfg.ChunkSize = 4096
	}
	return &RecordingSession{
		audio:     audio,
		provider:  provider,
		analyzer:  analyzer,
		corrector: corrector,
		notes:     notes,
		events:    events,
		logger:    logger.With().Str("component", "session").Logger(),
		cfg:       cfg,
		state:     domain.RecordingStateIdle,
	}
}

// Start begins a new recording. Valid only from Idle.
func (s *RecordingSession) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != domain.RecordingStateIdle || s.opening {
		s.mu.Unlock()
		return domain.ErrInvalidTransition
	}
	if s.unsupported {
		s.mu.Unlock()
		return domain.ErrUnsupportedEnvironment
	}
	if !s.provider.Supported() {
		s.markUnsupportedLocked()
		s.mu.Unlock()
		s.reportUnsupported()
		return domain.ErrUnsupportedEnvironment
	}
	s.opening = true
	s.mu.Unlock()

	active, err := s.open(ctx)

	s.mu.Lock()
	s.opening = false
	if err != nil {
		unsupported := errors.Is(err, domain.ErrUnsupportedEnvironment)
		if unsupported {
			s.markUnsupportedLocked()
		} else {
			s.message = failureMessage(err)
		}
		s.mu.Unlock()
		if unsupported {
			s.reportUnsupported()
		} else {
			s.reportOpenFailure(domain.RecordingStateIdle, err)
		}
		return err
	}

	s.text.reset()
	s.message = ""
	s.state = domain.RecordingStateRecording
	s.epoch++
	s.generation++
	s.current = active
	s.streamCtx = ctx
	generation := s.generation
	s.notes.change(s.notes.resetDraft)
	s.mu.Unlock()

	go s.watch(active)

	s.notes.publish()
	s.logger.Info().Uint64("generation", generation).Msg("recording started")
	s.events.SessionStateChanged(domain.RecordingStateRecording, domain.SessionReasonRecordingStarted)
	s.events.LiveTranscript("")
	return nil
}

// Pause stops the stream, keeps committed text and analyses it in the
// background. Valid only from Recording.
func (s *RecordingSession) Pause() error {
	s.mu.Lock()
	if s.state != domain.RecordingStateRecording {
		s.mu.Unlock()
		return domain.ErrInvalidTransition
	}
	active := s.current
	s.current = nil
	s.state = domain.RecordingStatePaused
	s.epoch++
	s.text.discardInterim()
	snapshot := s.text.final()
	live := s.text.live()
	generation := s.generation
	s.mu.Unlock()

	if active != nil {
		active.release()
	}

	s.logger.Info().Int("committed_chars", len(snapshot)).Msg("recording paused")
	s.events.SessionStateChanged(domain.RecordingStatePaused, domain.SessionReasonRecordingPaused)
	s.events.LiveTranscript(live)

	if snapshot != "" {
		s.analyses.Add(1)
		go s.analyzePause(generation, snapshot)
	}
	return nil
}

// Resume reopens the stream keeping committed text. Valid only from Paused.
func (s *RecordingSession) Resume(ctx context.Context) error {
	s.mu.Lock()
	if s.state != domain.RecordingStatePaused || s.opening {
		s.mu.Unlock()
		return domain.ErrInvalidTransition
	}
	s.opening = true
	epoch := s.epoch
	s.mu.Unlock()

	active, err := s.open(ctx)

	s.mu.Lock()
	s.opening = false
	if s.state != domain.RecordingStatePaused || s.epoch != epoch {
		// Stopped while the stream was opening.
		s.mu.Unlock()
		if active != nil {
			active.release()
		}
		return domain.ErrInvalidTransition
	}
	if err != nil {
		s.message = failureMessage(err)
		s.mu.Unlock()
		s.reportOpenFailure(domain.RecordingStatePaused, err)
		return err
	}
	s.state = domain.RecordingStateRecording
	s.epoch++
	s.current = active
	s.streamCtx = ctx
	s.mu.Unlock()

	go s.watch(active)

	s.logger.Info().Msg("recording resumed")
	s.events.SessionStateChanged(domain.RecordingStateRecording, domain.SessionReasonRecordingResumed)
	return nil
}

// Stop ends the recording, emits the final committed transcript and runs
// stop-time analysis into the current note. Valid from Recording or Paused.
func (s *RecordingSession) Stop(ctx context.Context) (domain.StopResult, error) {
	s.mu.Lock()
	if s.state != domain.RecordingStateRecording && s.state != domain.RecordingStatePaused {
		s.mu.Unlock()
		return domain.StopResult{}, domain.ErrInvalidTransition
	}
	active := s.current
	s.current = nil
	s.state = domain.RecordingStateIdle
	s.epoch++
	s.text.discardInterim()
	transcript := s.text.final()
	generation := s.generation
	s.mu.Unlock()

	if active != nil {
		active.release()
	}

	reason := domain.SessionReasonRecordingStopped
	if transcript == "" {
		reason = domain.SessionReasonNoTranscript
	}
	s.logger.Info().Int("transcript_chars", len(transcript)).Msg("recording stopped")
	s.events.SessionStateChanged(domain.RecordingStateIdle, reason)
	s.events.FinalTranscript(transcript)

	if transcript == "" {
		return domain.StopResult{Record: s.notes.Current()}, nil
	}
	return s.finish(ctx, generation, transcript), nil
}

// Status reports the current state and live transcript.
func (s *RecordingSession) Status() domain.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.Status{
		State:       s.state,
		Active:      s.state != domain.RecordingStateIdle,
		Unsupported: s.unsupported,
		Transcript:  s.text.live(),
		Message:     s.message,
	}
}

// WaitAnalyses blocks until in-flight pause-time analyses complete.
func (s *RecordingSession) WaitAnalyses() {
	s.analyses.Wait()
}

// Shutdown tears down any live stream without analysis.
func (s *RecordingSession) Shutdown() {
	s.mu.Lock()
	active := s.current
	s.current = nil
	s.state = domain.RecordingStateIdle
	s.epoch++
	s.text.discardInterim()
	s.mu.Unlock()

	if active != nil {
		active.release()
	}
	s.analyses.Wait()
}

func (s *RecordingSession) open(ctx context.Context) (*activeStream, error) {
	streamCtx, cancel := context.WithCancel(ctx)

	audio, err := s.audio.Start(streamCtx, s.cfg.Audio)
	if err != nil {
		cancel()
		if !errors.Is(err, domain.ErrPermissionDenied) {
			err = fmt.Errorf("%w: %v", domain.ErrPermissionDenied, err)
		}
		return nil, err
	}

	stream, err := s.provider.StartStreaming(streamCtx, s.cfg.Streaming)
	if err != nil {
		_ = audio.Stop()
		cancel()
		return nil, err
	}

	active := newActiveStream(cancel, audio, stream)
	go pumpAudio(active, s.cfg.ChunkSize, s.logger)
	return active, nil
}

func (s *RecordingSession) watch(active *activeStream) {
	for event := range active.stream.Events() {
		s.handleRecognition(active, event)
	}
	s.handleStreamEnd(active, active.endErr())
}

func (s *RecordingSession) handleRecognition(active *activeStream, event domain.RecognitionEvent) {
	s.mu.Lock()
	if s.current != active {
		s.mu.Unlock()
		return
	}
	s.text.apply(event.Finals, event.Interim)
	live := s.text.live()
	s.mu.Unlock()

	s.events.LiveTranscript(live)
}

// handleStreamEnd restarts a stream that ended on its own, or drops to Idle
// on a recognition failure. Ends of streams that are no longer current are
// ignored.
func (s *RecordingSession) handleStreamEnd(active *activeStream, err error) {
	s.mu.Lock()
	if s.current != active {
		s.mu.Unlock()
		return
	}
	s.current = nil

	if err != nil {
		s.state = domain.RecordingStateIdle
		s.epoch++
		s.text.discardInterim()
		s.message = failureMessage(err)
		live := s.text.live()
		s.mu.Unlock()

		active.release()
		s.logger.Warn().Err(err).Msg("recognition stream failed")
		s.events.SessionStateChanged(domain.RecordingStateIdle, domain.SessionReasonRecognitionFailed)
		s.events.SessionError(failureCode(err), failureMessage(err))
		s.events.LiveTranscript(live)
		return
	}

	epoch := s.epoch
	ctx := s.streamCtx
	s.text.discardInterim()
	s.mu.Unlock()

	active.release()
	s.logger.Debug().Msg("recognition stream ended, restarting")

	next, openErr := s.open(ctx)

	s.mu.Lock()
	if s.state != domain.RecordingStateRecording || s.epoch != epoch || s.current != nil {
		s.mu.Unlock()
		if next != nil {
			next.release()
		}
		return
	}
	if openErr != nil {
		s.state = domain.RecordingStateIdle
		s.epoch++
		s.message = failureMessage(openErr)
		s.mu.Unlock()

		s.logger.Warn().Err(openErr).Msg("recognition restart failed")
		s.events.SessionStateChanged(domain.RecordingStateIdle, domain.SessionReasonRecognitionFailed)
		s.events.SessionError(domain.ErrorCodeRecognition, failureMessage(openErr))
		return
	}
	s.current = next
	s.mu.Unlock()

	go s.watch(next)
}

// analyzePause runs after a pause. A speaker-labeled transcript replaces the
// committed text; failures are logged and otherwise ignored. Results from an
// earlier recording are dropped. Within one recording the last write wins.
func (s *RecordingSession) analyzePause(generation uint64, snapshot string) {
	defer s.analyses.Done()

	result, err := s.analyze(context.Background(), s.correct(snapshot))
	if errors.Is(err, domain.ErrAnalyzerUnavailable) {
		s.logger.Debug().Msg("pause analysis skipped, analyzer not configured")
		return
	}
	if err != nil {
		s.logger.Warn().Err(err).Msg("pause analysis failed")
		return
	}

	s.mu.Lock()
	if s.generation != generation {
		s.mu.Unlock()
		s.logger.Debug().Msg("pause analysis dropped, a new recording started")
		return
	}
	rewritten := reconcile.Meaningful(result.FormattedTranscript)
	if rewritten {
		s.text.rewrite(result.FormattedTranscript)
	}
	live := s.text.live()
	s.notes.change(reconcileExtraction(result))
	s.mu.Unlock()

	s.notes.publish()
	if rewritten {
		s.events.LiveTranscript(live)
	}
}

func (s *RecordingSession) finish(ctx context.Context, generation uint64, transcript string) domain.StopResult {
	corrected := s.correct(transcript)
	result := domain.StopResult{Transcript: transcript, AnalyzedTranscript: corrected}

	result.Record = s.applyToNote(generation, attachTranscript(transcript))
	extraction, err := s.analyze(ctx, corrected)
	switch {
	case err == nil:
		result.Analyzed = true
		result.Record = s.applyToNote(generation, reconcileExtraction(extraction))
	case errors.Is(err, domain.ErrAnalyzerUnavailable):
		result.Fallback = true
		result.Record = s.applyToNote(generation, mergeHeuristics(corrected))
	default:
		s.logger.Warn().Err(err).Msg("stop analysis failed")
		result.Record = s.notes.Current()
		s.events.SessionError(domain.ErrorCodeAnalysis, analysisFailedNotice)
	}
	return result
}

// applyToNote edits the note draft only while generation is still the latest
// recording; a newer Start owns the draft otherwise.
func (s *RecordingSession) applyToNote(generation uint64, apply func(*domain.Record)) domain.Record {
	s.mu.Lock()
	if s.generation != generation {
		s.mu.Unlock()
		s.logger.Debug().Msg("stop analysis dropped, a new recording started")
		return s.notes.Current()
	}
	s.notes.change(apply)
	s.mu.Unlock()
	return s.notes.publish()
}

func (s *RecordingSession) analyze(ctx context.Context, transcript string) (domain.ExtractionResult, error) {
	if s.analyzer == nil {
		return domain.ExtractionResult{}, domain.ErrAnalyzerUnavailable
	}
	return s.analyzer.Analyze(ctx, transcript)
}

func (s *RecordingSession) correct(text string) string {
	if s.corrector == nil {
		return text
	}
	corrected, err := s.corrector.Apply(text)
	if err != nil {
		s.logger.Warn().Err(err).Msg("vocabulary correction failed")
		return text
	}
	return corrected
}

func (s *RecordingSession) markUnsupportedLocked() {
	s.unsupported = true
	s.message = domain.ErrUnsupportedEnvironment.Error()
}

func (s *RecordingSession) reportUnsupported() {
	s.logger.Warn().Msg("speech recognition unavailable")
	s.events.SessionStateChanged(domain.RecordingStateIdle, domain.SessionReasonUnsupported)
	s.events.SessionError(domain.ErrorCodeUnsupported, domain.ErrUnsupportedEnvironment.Error())
}

func (s *RecordingSession) reportOpenFailure(state domain.RecordingState, err error) {
	s.logger.Warn().Err(err).Str("state", string(state)).Msg("could not open recognition")
	if errors.Is(err, domain.ErrPermissionDenied) {
		s.events.SessionStateChanged(state, domain.SessionReasonPermissionDenied)
		s.events.SessionError(domain.ErrorCodePermission, failureMessage(err))
		return
	}
	s.events.SessionStateChanged(state, domain.SessionReasonRecognitionFailed)
	s.events.SessionError(domain.ErrorCodeRecognition, failureMessage(err))
}

func failureCode(err error) domain.ErrorCode {
	var recErr *domain.RecognitionError
	if errors.As(err, &recErr) && recErr.Kind == domain.RecognitionAudioCapture {
		return domain.ErrorCodeAudioStream
	}
	return domain.ErrorCodeRecognition
}

func failureMessage(err error) string {
	var recErr *domain.RecognitionError
	switch {
	case errors.As(err, &recErr):
		return recErr.Kind.Message()
	case errors.Is(err, domain.ErrPermissionDenied):
		return domain.RecognitionNotAllowed.Message()
	default:
		return err.Error()
	}
}
