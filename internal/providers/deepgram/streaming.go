package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"medscribe/internal/domain"
	"medscribe/internal/ports"
)

// Config controls Deepgram websocket settings.
type Config struct {
	APIKey      string
	APIBaseURL  string
	Model       string
	Language    string
	SmartFormat bool
}

// Provider implements ports.RecognitionProvider for Deepgram.
type Provider struct {
	cfg    Config
	dialer *websocket.Dialer
	logger zerolog.Logger
}

func NewProvider(cfg Config, logger zerolog.Logger) *Provider {
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = "https://api.deepgram.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "nova-2-medical"
	}
	return &Provider{
		cfg:    cfg,
		dialer: websocket.DefaultDialer,
		logger: logger.With().Str("component", "deepgram").Logger(),
	}
}

// Supported reports whether streaming recognition can be offered at all.
func (p *Provider) Supported() bool {
	return strings.TrimSpace(p.cfg.APIKey) != ""
}

func (p *Provider) StartStreaming(ctx context.Context, cfg ports.StreamingConfig) (ports.RecognitionStream, error) {
	if !p.Supported() {
		return nil, domain.ErrUnsupportedEnvironment
	}

	wsURL, err := buildListenURL(p.cfg, cfg)
	if err != nil {
		return nil, &domain.RecognitionError{Kind: domain.RecognitionOther, Err: err}
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+p.cfg.APIKey)

	conn, resp, err := p.dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		return nil, &domain.RecognitionError{Kind: dialErrorKind(resp), Err: fmt.Errorf("connect to Deepgram: %w", err)}
	}
	p.logger.Debug().Str("model", p.cfg.Model).Msg("stream connected")

	stream := &stream{
		conn:   conn,
		events: make(chan domain.RecognitionEvent, 64),
		audio:  make(chan []byte, 32),
		done:   make(chan struct{}),
		logger: p.logger,
	}

	stream.wg.Add(2)
	go stream.readLoop()
	go stream.writeLoop()
	go func() {
		stream.wg.Wait()
		close(stream.events)
		close(stream.done)
		_ = conn.Close()
	}()

	go func() {
		select {
		case <-ctx.Done():
			_ = stream.Close()
		case <-stream.done:
		}
	}()

	return stream, nil
}

func dialErrorKind(resp *http.Response) domain.RecognitionErrorKind {
	if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
		return domain.RecognitionNotAllowed
	}
	return domain.RecognitionNetwork
}

type stream struct {
	conn   *websocket.Conn
	logger zerolog.Logger

	events chan domain.RecognitionEvent
	audio  chan []byte
	done   chan struct{}

	wg sync.WaitGroup

	errMu sync.Mutex
	err   error

	closeSendOnce sync.Once
	closeOnce     sync.Once
	sendMu        sync.RWMutex
	sendClosed    bool
}

func (s *stream) SendAudio(chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}

	s.sendMu.RLock()
	defer s.sendMu.RUnlock()
	if s.sendClosed {
		return errors.New("audio stream is already closed")
	}

	copied := append([]byte(nil), chunk...)
	select {
	case s.audio <- copied:
		return nil
	case <-s.done:
		if err := s.waitErr(); err != nil {
			return err
		}
		return errors.New("stream closed")
	}
}

func (s *stream) CloseSend() error {
	s.closeSendOnce.Do(func() {
		s.sendMu.Lock()
		s.sendClosed = true
		close(s.audio)
		s.sendMu.Unlock()
	})
	return nil
}

func (s *stream) Events() <-chan domain.RecognitionEvent {
	return s.events
}

func (s *stream) Wait() error {
	<-s.done
	return s.waitErr()
}

func (s *stream) Close() error {
	s.closeOnce.Do(func() {
		_ = s.CloseSend()
		_ = s.conn.Close()
	})
	<-s.done
	return s.waitErr()
}

func (s *stream) waitErr() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// setErr records the first failure. Orderly closes, including Deepgram's
// idle timeout, are a natural end of the stream and are not failures.
func (s *stream) setErr(kind domain.RecognitionErrorKind, err error) {
	if err == nil || isNaturalEnd(err) {
		return
	}

	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = &domain.RecognitionError{Kind: kind, Err: err}
	}
}

func isNaturalEnd(err error) bool {
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	) {
		return true
	}
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) && closeErr.Code == websocket.CloseInternalServerErr {
		// NET-0001: no audio received within the timeout window.
		return strings.Contains(closeErr.Text, "NET-0001")
	}
	return errors.Is(err, net.ErrClosed)
}

func (s *stream) writeLoop() {
	defer s.wg.Done()

	for chunk := range s.audio {
		if err := s.conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
			s.setErr(domain.RecognitionNetwork, fmt.Errorf("send audio: %w", err))
			return
		}
	}

	if err := s.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CloseStream"}`)); err != nil {
		s.setErr(domain.RecognitionNetwork, fmt.Errorf("close stream: %w", err))
	}
}

func (s *stream) readLoop() {
	defer s.wg.Done()

	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			s.setErr(domain.RecognitionNetwork, err)
			return
		}

		var response listenResponse
		if err := json.Unmarshal(payload, &response); err != nil {
			s.logger.Debug().Err(err).Msg("skipping undecodable provider message")
			continue
		}

		if strings.EqualFold(response.Type, "Error") {
			message := strings.TrimSpace(response.Message)
			if message == "" {
				message = "deepgram returned an unknown error"
			}
			s.setErr(domain.RecognitionOther, errors.New(message))
			return
		}

		if event, ok := toRecognitionEvent(response); ok {
			s.emit(event)
		}
	}
}

func (s *stream) emit(event domain.RecognitionEvent) {
	// Finals must never be dropped; interim updates may be when the consumer lags.
	if len(event.Finals) > 0 {
		select {
		case s.events <- event:
		case <-s.done:
		}
		return
	}
	select {
	case s.events <- event:
	default:
	}
}

type listenResponse struct {
	Type        string `json:"type"`
	Message     string `json:"message"`
	IsFinal     bool   `json:"is_final"`
	SpeechFinal bool   `json:"speech_final"`

	Channel struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"channel"`
}

func toRecognitionEvent(response listenResponse) (domain.RecognitionEvent, bool) {
	if len(response.Channel.Alternatives) == 0 {
		return domain.RecognitionEvent{}, false
	}
	text := strings.TrimSpace(response.Channel.Alternatives[0].Transcript)
	if text == "" {
		return domain.RecognitionEvent{}, false
	}
	if response.IsFinal || response.SpeechFinal {
		return domain.RecognitionEvent{Finals: []string{text}}, true
	}
	return domain.RecognitionEvent{Interim: text}, true
}

func buildListenURL(providerCfg Config, streamCfg ports.StreamingConfig) (string, error) {
	base := strings.TrimSpace(providerCfg.APIBaseURL)
	if base == "" {
		base = "https://api.deepgram.com/v1"
	}

	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	base = strings.TrimRight(base, "/")

	listenURL, err := url.Parse(base + "/listen")
	if err != nil {
		return "", fmt.Errorf("invalid Deepgram API base URL: %w", err)
	}

	if streamCfg.Encoding == "" {
		streamCfg.Encoding = "linear16"
	}
	if streamCfg.SampleRate <= 0 {
		streamCfg.SampleRate = 16000
	}
	if streamCfg.Channels <= 0 {
		streamCfg.Channels = 1
	}

	query := listenURL.Query()
	query.Set("model", providerCfg.Model)
	query.Set("encoding", streamCfg.Encoding)
	query.Set("sample_rate", fmt.Sprintf("%d", streamCfg.SampleRate))
	query.Set("channels", fmt.Sprintf("%d", streamCfg.Channels))
	query.Set("interim_results", fmt.Sprintf("%t", streamCfg.InterimResults))
	query.Set("smart_format", fmt.Sprintf("%t", providerCfg.SmartFormat))
	query.Set("punctuate", "true")
	if providerCfg.Language != "" {
		query.Set("language", providerCfg.Language)
	}
	listenURL.RawQuery = query.Encode()
	return listenURL.String(), nil
}
