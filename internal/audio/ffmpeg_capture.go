// Package audio captures microphone PCM by running ffmpeg as a child process.
package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"medscribe/internal/domain"
	"medscribe/internal/ports"
)

const (
	startupGrace = 250 * time.Millisecond
	stopGrace    = 1200 * time.Millisecond
)

// Microphone streams 16-bit little-endian PCM from the configured input device.
type Microphone struct {
	command string
	logger  zerolog.Logger
}

func NewMicrophone(command string, logger zerolog.Logger) *Microphone {
	if command == "" {
		command = "ffmpeg"
	}
	return &Microphone{
		command: command,
		logger:  logger.With().Str("component", "microphone").Logger(),
	}
}

// Start opens the device. Every failure to acquire it is reported as
// domain.ErrPermissionDenied with the underlying cause attached.
func (m *Microphone) Start(ctx context.Context, cfg ports.AudioConfig) (ports.AudioSession, error) {
	cmd := exec.CommandContext(ctx, m.command, captureArgs(cfg)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, deviceError("create capture pipe", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, deviceError("start capture", err)
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
		close(waitErr)
	}()

	select {
	case err := <-waitErr:
		detail := trimmed(stderr.String())
		m.logger.Warn().Err(err).Str("stderr", detail).Msg("capture exited during startup")
		if err == nil {
			err = errors.New("capture exited before audio started")
		}
		return nil, deviceError("open input device", fmt.Errorf("%w: %s", err, detail))
	case <-time.After(startupGrace):
	}

	m.logger.Debug().Int("pid", cmd.Process.Pid).Str("device", cfg.InputDevice).Msg("capture started")
	return &captureSession{
		stdout:  stdout,
		stderr:  &stderr,
		process: cmd.Process,
		waitErr: waitErr,
	}, nil
}

func captureArgs(cfg ports.AudioConfig) []string {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	if cfg.InputFormat == "" {
		cfg.InputFormat = "pulse"
	}
	if cfg.InputDevice == "" {
		cfg.InputDevice = "default"
	}
	return []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-f", cfg.InputFormat,
		"-i", cfg.InputDevice,
		"-ac", strconv.Itoa(cfg.Channels),
		"-ar", strconv.Itoa(cfg.SampleRate),
		"-f", "s16le",
		"-",
	}
}

func deviceError(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", domain.ErrPermissionDenied, op, err)
}

type captureSession struct {
	stdout io.ReadCloser
	stderr *bytes.Buffer

	process *os.Process
	waitErr <-chan error

	stopOnce sync.Once
	stopErr  error
}

func (s *captureSession) Read(p []byte) (int, error) {
	return s.stdout.Read(p)
}

func (s *captureSession) Close() error {
	return s.Stop()
}

// Stop interrupts the process, escalating to kill after a grace period.
func (s *captureSession) Stop() error {
	s.stopOnce.Do(func() {
		if s.process != nil {
			_ = s.process.Signal(os.Interrupt)
		}

		var err error
		var ok bool
		select {
		case err, ok = <-s.waitErr:
		case <-time.After(stopGrace):
			if s.process != nil {
				_ = s.process.Kill()
			}
			err, ok = <-s.waitErr
		}
		if ok {
			s.stopErr = ignoreExitStatus(err)
		}

		if closeErr := s.stdout.Close(); closeErr != nil && !errors.Is(closeErr, os.ErrClosed) && s.stopErr == nil {
			s.stopErr = closeErr
		}
		if s.stopErr != nil && s.stderr.Len() > 0 {
			s.stopErr = fmt.Errorf("%w: %s", s.stopErr, trimmed(s.stderr.String()))
		}
	})

	return s.stopErr
}

// ignoreExitStatus drops the non-zero exit an interrupted ffmpeg reports.
func ignoreExitStatus(err error) error {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}

func trimmed(input string) string {
	return strings.TrimSpace(input)
}
