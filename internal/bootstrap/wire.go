package bootstrap

import (
	"errors"
	"io"

	"github.com/rs/zerolog"

	"medscribe/internal/analyzer"
	"medscribe/internal/audio"
	"medscribe/internal/config"
	"medscribe/internal/logging"
	"medscribe/internal/ports"
	"medscribe/internal/providers/deepgram"
	"medscribe/internal/store"
	"medscribe/internal/usecase"
	"medscribe/internal/vocab"
)

// Services is the assembled runtime graph.
type Services struct {
	Session *usecase.RecordingSession
	Notes   *usecase.NoteService
	Config  config.Config
	Logger  zerolog.Logger

	closers []io.Closer
}

// Close stops any live recording and releases the store and log file.
func (s Services) Close() error {
	if s.Session != nil {
		s.Session.Shutdown()
	}
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Build wires all backend dependencies for the current runtime.
func Build(eventSink ports.EventSink) (Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return Services{}, err
	}

	logger, logCloser, err := OpenLogger(cfg)
	if err != nil {
		return Services{}, err
	}
	services := Services{Config: cfg, Logger: logger, closers: []io.Closer{logCloser}}

	corrector, err := vocab.Load(cfg.Vocab.Path, cfg.Vocab.IterationLimit)
	if err != nil {
		_ = services.Close()
		return Services{}, err
	}

	notesStore, err := store.Open(cfg.Store.Path)
	if err != nil {
		_ = services.Close()
		return Services{}, err
	}
	services.closers = append(services.closers, notesStore)

	notes := usecase.NewNoteService(notesStore, eventSink, logger)
	session := usecase.NewRecordingSession(
		audio.NewMicrophone(cfg.Audio.RecorderCommand, logger),
		deepgram.NewProvider(deepgram.Config{
			APIKey:      cfg.Deepgram.APIKey,
			APIBaseURL:  cfg.Deepgram.APIBaseURL,
			Model:       cfg.Deepgram.Model,
			Language:    cfg.Deepgram.Language,
			SmartFormat: cfg.Deepgram.SmartFormat,
		}, logger),
		analyzer.NewClient(analyzer.Config{
			URL:     cfg.Analyzer.URL,
			APIKey:  cfg.Analyzer.APIKey,
			Timeout: cfg.Analyzer.Timeout,
		}, logger),
		corrector,
		notes,
		eventSink,
		logger,
		usecase.Config{
			Audio: ports.AudioConfig{
				SampleRate:  cfg.Audio.SampleRate,
				Channels:    cfg.Audio.Channels,
				InputFormat: cfg.Audio.InputFormat,
				InputDevice: cfg.Audio.InputDevice,
			},
			Streaming: ports.StreamingConfig{
				SampleRate:     cfg.Audio.SampleRate,
				Channels:       cfg.Audio.Channels,
				Encoding:       "linear16",
				InterimResults: true,
			},
			ChunkSize: cfg.Audio.ChunkSize,
		},
	)

	services.Session = session
	services.Notes = notes

	logger.Info().
		Str("model", cfg.Deepgram.Model).
		Bool("analyzer", cfg.AnalyzerEnabled()).
		Int("vocab_rules", corrector.Len()).
		Str("db", cfg.Store.Path).
		Msg("services ready")
	return services, nil
}

// OpenLogger opens the diagnostics log configured by cfg.
func OpenLogger(cfg config.Config) (zerolog.Logger, io.Closer, error) {
	dir, err := logging.ResolveDir(cfg.Log.Dir)
	if err != nil {
		return zerolog.Nop(), nil, err
	}
	return logging.Open(dir, logging.ParseLevel(cfg.Log.Level))
}
