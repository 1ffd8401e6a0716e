package deepgram

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"medscribe/internal/domain"
	"medscribe/internal/ports"
)

func TestNewProviderDefaults(t *testing.T) {
	t.Parallel()

	p := NewProvider(Config{}, zerolog.Nop())
	if p.cfg.APIBaseURL != "https://api.deepgram.com/v1" {
		t.Fatalf("unexpected base url: %q", p.cfg.APIBaseURL)
	}
	if p.cfg.Model != "nova-2-medical" {
		t.Fatalf("unexpected model: %q", p.cfg.Model)
	}
	if p.Supported() {
		t.Fatalf("provider without key should not be supported")
	}
}

func TestProviderStartStreamingRequiresAPIKey(t *testing.T) {
	t.Parallel()

	p := NewProvider(Config{APIKey: "  "}, zerolog.Nop())
	_, err := p.StartStreaming(context.Background(), ports.StreamingConfig{})
	if !errors.Is(err, domain.ErrUnsupportedEnvironment) {
		t.Fatalf("expected unsupported error, got %v", err)
	}
}

func TestBuildListenURLDefaults(t *testing.T) {
	t.Parallel()

	url, err := buildListenURL(Config{APIBaseURL: "https://api.deepgram.com/v1", Model: "nova-2-medical"}, ports.StreamingConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, want := range []string{
		"wss://api.deepgram.com/v1/listen",
		"model=nova-2-medical",
		"encoding=linear16",
		"sample_rate=16000",
		"channels=1",
		"punctuate=true",
	} {
		if !strings.Contains(url, want) {
			t.Fatalf("expected %q in url: %s", want, url)
		}
	}
}

func TestBuildListenURLWithLanguageAndSmartFormat(t *testing.T) {
	t.Parallel()

	url, err := buildListenURL(
		Config{APIBaseURL: "http://localhost:8080/v1/", Model: "m", Language: "en-US", SmartFormat: true},
		ports.StreamingConfig{Encoding: "linear16", SampleRate: 8000, Channels: 2, InterimResults: true},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(url, "ws://localhost:8080/v1/listen") {
		t.Fatalf("unexpected ws url: %s", url)
	}
	if !strings.Contains(url, "language=en-US") || !strings.Contains(url, "smart_format=true") || !strings.Contains(url, "interim_results=true") {
		t.Fatalf("expected language, smart_format and interim_results in url: %s", url)
	}
}

func TestBuildListenURLInvalidBase(t *testing.T) {
	t.Parallel()

	if _, err := buildListenURL(Config{APIBaseURL: ":// bad"}, ports.StreamingConfig{}); err == nil {
		t.Fatalf("expected invalid base url error")
	}
}

func TestToRecognitionEvent(t *testing.T) {
	t.Parallel()

	build := func(text string, final bool) listenResponse {
		var r listenResponse
		r.IsFinal = final
		r.Channel.Alternatives = append(r.Channel.Alternatives, struct {
			Transcript string `json:"transcript"`
		}{Transcript: text})
		return r
	}

	event, ok := toRecognitionEvent(build(" hel ", false))
	if !ok || event.Interim != "hel" || len(event.Finals) != 0 {
		t.Fatalf("unexpected interim event: %+v ok=%v", event, ok)
	}

	event, ok = toRecognitionEvent(build("hello.", true))
	if !ok || event.Interim != "" || len(event.Finals) != 1 || event.Finals[0] != "hello." {
		t.Fatalf("unexpected final event: %+v ok=%v", event, ok)
	}

	if _, ok := toRecognitionEvent(build("   ", true)); ok {
		t.Fatalf("blank transcript should be skipped")
	}
	if _, ok := toRecognitionEvent(listenResponse{}); ok {
		t.Fatalf("response without alternatives should be skipped")
	}
}

func TestStreamSendAudioClosed(t *testing.T) {
	t.Parallel()

	s := &stream{sendClosed: true}
	if err := s.SendAudio([]byte("x")); err == nil {
		t.Fatalf("expected closed error")
	}
}

func TestStreamCloseSendIsIdempotent(t *testing.T) {
	t.Parallel()

	s := &stream{audio: make(chan []byte, 1)}
	if err := s.CloseSend(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.CloseSend(); err != nil {
		t.Fatalf("unexpected second error: %v", err)
	}
}

func TestStreamSetErrIgnoresNaturalEnds(t *testing.T) {
	t.Parallel()

	s := &stream{}
	s.setErr(domain.RecognitionNetwork, &websocket.CloseError{Code: websocket.CloseNormalClosure, Text: "closed"})
	s.setErr(domain.RecognitionNetwork, &websocket.CloseError{Code: websocket.CloseInternalServerErr, Text: "NET-0001 idle"})
	if s.waitErr() != nil {
		t.Fatalf("expected natural end to be ignored, got %v", s.waitErr())
	}

	s.setErr(domain.RecognitionNetwork, errors.New("boom"))
	var recErr *domain.RecognitionError
	if !errors.As(s.waitErr(), &recErr) || recErr.Kind != domain.RecognitionNetwork {
		t.Fatalf("expected network recognition error, got %v", s.waitErr())
	}
}

func TestStreamSetErrFirstWins(t *testing.T) {
	t.Parallel()

	s := &stream{}
	s.setErr(domain.RecognitionOther, errors.New("first"))
	s.setErr(domain.RecognitionNetwork, errors.New("second"))
	if s.waitErr() == nil || !strings.Contains(s.waitErr().Error(), "first") {
		t.Fatalf("expected first error to win, got %v", s.waitErr())
	}
}

func TestStreamingRoundTrip(t *testing.T) {
	t.Parallel()

	upgrader := websocket.Upgrader{}
	gotAuth := make(chan string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth <- r.Header.Get("Authorization")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			kind, payload, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if kind == websocket.TextMessage && strings.Contains(string(payload), "CloseStream") {
				_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":"hello."}]}}`))
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"Results","is_final":false,"channel":{"alternatives":[{"transcript":"hel"}]}}`))
		}
	}))
	defer server.Close()

	p := NewProvider(Config{APIKey: "secret", APIBaseURL: server.URL + "/v1"}, zerolog.Nop())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s, err := p.StartStreaming(ctx, ports.StreamingConfig{InterimResults: true})
	if err != nil {
		t.Fatalf("start streaming: %v", err)
	}
	if auth := <-gotAuth; auth != "Token secret" {
		t.Fatalf("unexpected authorization header: %q", auth)
	}

	if err := s.SendAudio([]byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("send audio: %v", err)
	}

	first := <-s.Events()
	if first.Interim != "hel" {
		t.Fatalf("expected interim event first, got %+v", first)
	}
	if err := s.CloseSend(); err != nil {
		t.Fatalf("close send: %v", err)
	}

	var finals []string
	for event := range s.Events() {
		finals = append(finals, event.Finals...)
	}
	if len(finals) != 1 || finals[0] != "hello." {
		t.Fatalf("unexpected finals: %v", finals)
	}
	if err := s.Wait(); err != nil {
		t.Fatalf("normal close should not be an error, got %v", err)
	}
}

func TestStreamingDialUnauthorized(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer server.Close()

	p := NewProvider(Config{APIKey: "bad", APIBaseURL: server.URL}, zerolog.Nop())
	_, err := p.StartStreaming(context.Background(), ports.StreamingConfig{})

	var recErr *domain.RecognitionError
	if !errors.As(err, &recErr) || recErr.Kind != domain.RecognitionNotAllowed {
		t.Fatalf("expected not-allowed recognition error, got %v", err)
	}
}
