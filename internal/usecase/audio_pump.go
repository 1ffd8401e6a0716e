package usecase

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"medscribe/internal/domain"
	"medscribe/internal/ports"
)

// activeStream pairs one microphone capture with one recognition stream.
type activeStream struct {
	cancel context.CancelFunc
	audio  ports.AudioSession
	stream ports.RecognitionStream

	closing    atomic.Bool
	pumpDone   chan struct{}
	pumpErr    error
	releaseOne sync.Once
}

func newActiveStream(cancel context.CancelFunc, audio ports.AudioSession, stream ports.RecognitionStream) *activeStream {
	return &activeStream{
		cancel:   cancel,
		audio:    audio,
		stream:   stream,
		pumpDone: make(chan struct{}),
	}
}

// release tears down capture and recognition. Safe to call more than once and
// from the goroutine consuming stream events.
func (a *activeStream) release() {
	a.releaseOne.Do(func() {
		a.closing.Store(true)
		a.cancel()
		_ = a.audio.Stop()
		_ = a.stream.Close()
		<-a.pumpDone
	})
}

// endErr reports why the stream ended: a recognition failure first, then a
// capture failure. Nil means the source ended on its own.
func (a *activeStream) endErr() error {
	if err := a.stream.Wait(); err != nil {
		return err
	}
	if a.closing.Load() {
		return nil
	}
	// Natural end: stop capture so the pump exits and its error is visible.
	a.closing.Store(true)
	_ = a.audio.Stop()
	<-a.pumpDone
	return a.pumpErr
}

// pumpAudio forwards microphone chunks to the recognition stream. End of
// capture half-closes the stream so pending finals still arrive.
func pumpAudio(active *activeStream, chunkSize int, logger zerolog.Logger) {
	defer close(active.pumpDone)

	if chunkSize < 256 {
		chunkSize = 4096
	}

	buf := make([]byte, chunkSize)
	for {
		n, err := active.audio.Read(buf)
		if n > 0 {
			if sendErr := active.stream.SendAudio(buf[:n]); sendErr != nil {
				logger.Debug().Err(sendErr).Msg("recognition stream stopped accepting audio")
				return
			}
		}
		if err == nil {
			continue
		}
		if errors.Is(err, io.EOF) || active.closing.Load() {
			_ = active.stream.CloseSend()
			return
		}
		active.pumpErr = &domain.RecognitionError{Kind: domain.RecognitionAudioCapture, Err: err}
		logger.Warn().Err(err).Msg("audio capture failed")
		_ = active.stream.Close()
		return
	}
}
