package usecase

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"medscribe/internal/domain"
	"medscribe/internal/ports"
)

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

type fakeAudioCapture struct {
	mu       sync.Mutex
	err      error
	sessions []*fakeAudioSession
}

func (f *fakeAudioCapture) Start(_ context.Context, _ ports.AudioConfig) (ports.AudioSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	session := newFakeAudioSession(true)
	f.sessions = append(f.sessions, session)
	return session, nil
}

func (f *fakeAudioCapture) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sessions)
}

// fakeAudioSession serves queued chunks, then either EOF, readErr, or blocks
// until stopped when block is set.
type fakeAudioSession struct {
	mu      sync.Mutex
	chunks  [][]byte
	readErr error
	block   bool

	stopped   chan struct{}
	stopOnce  sync.Once
	stopCalls int
}

func newFakeAudioSession(block bool, chunks ...[]byte) *fakeAudioSession {
	return &fakeAudioSession{chunks: chunks, block: block, stopped: make(chan struct{})}
}

func (f *fakeAudioSession) Read(p []byte) (int, error) {
	f.mu.Lock()
	if len(f.chunks) > 0 {
		n := copy(p, f.chunks[0])
		f.chunks = f.chunks[1:]
		f.mu.Unlock()
		return n, nil
	}
	block := f.block && f.readErr == nil
	f.mu.Unlock()

	if block {
		<-f.stopped
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return 0, f.readErr
	}
	return 0, io.EOF
}

// fail makes the pending and all later reads return err.
func (f *fakeAudioSession) fail(err error) {
	f.mu.Lock()
	f.readErr = err
	f.mu.Unlock()
	f.stopOnce.Do(func() { close(f.stopped) })
}

func (f *fakeAudioSession) Close() error { return f.Stop() }

func (f *fakeAudioSession) Stop() error {
	f.mu.Lock()
	f.stopCalls++
	f.mu.Unlock()
	f.stopOnce.Do(func() { close(f.stopped) })
	return nil
}

type fakeProvider struct {
	mu          sync.Mutex
	unsupported bool
	err         error
	streams     []*fakeStream
}

func (f *fakeProvider) Supported() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.unsupported
}

func (f *fakeProvider) StartStreaming(_ context.Context, _ ports.StreamingConfig) (ports.RecognitionStream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	stream := newFakeStream()
	f.streams = append(f.streams, stream)
	return stream, nil
}

func (f *fakeProvider) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.streams)
}

func (f *fakeProvider) stream(i int) *fakeStream {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.streams[i]
}

type fakeStream struct {
	mu             sync.Mutex
	events         chan domain.RecognitionEvent
	closed         bool
	waitErr        error
	sendErr        error
	sent           int
	closeSendCalls int
}

func newFakeStream() *fakeStream {
	return &fakeStream{events: make(chan domain.RecognitionEvent, 32)}
}

func (f *fakeStream) interim(text string) {
	f.emit(domain.RecognitionEvent{Interim: text})
}

func (f *fakeStream) final(texts ...string) {
	f.emit(domain.RecognitionEvent{Finals: texts})
}

func (f *fakeStream) emit(event domain.RecognitionEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.events <- event
}

// end finishes the stream as the source would, with err reported by Wait.
func (f *fakeStream) end(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.waitErr = err
	f.closed = true
	close(f.events)
}

func (f *fakeStream) SendAudio(_ []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent++
	return f.sendErr
}

func (f *fakeStream) CloseSend() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeSendCalls++
	return nil
}

func (f *fakeStream) Events() <-chan domain.RecognitionEvent { return f.events }

func (f *fakeStream) Wait() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.waitErr
}

func (f *fakeStream) Close() error {
	f.end(nil)
	return nil
}

func (f *fakeStream) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

type fakeAnalyzer struct {
	mu     sync.Mutex
	calls  []string
	result domain.ExtractionResult
	err    error
	// gate, when set, holds the first call until closed.
	gate chan struct{}
}

func (f *fakeAnalyzer) Analyze(_ context.Context, transcript string) (domain.ExtractionResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, transcript)
	first := len(f.calls) == 1
	gate, result, err := f.gate, f.result, f.err
	f.mu.Unlock()

	if first && gate != nil {
		<-gate
	}
	return result, err
}

func (f *fakeAnalyzer) snapshotCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type fakeCorrector struct {
	replace func(string) string
	err     error
}

func (f *fakeCorrector) Apply(text string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.replace(text), nil
}

type fakeStore struct {
	mu      sync.Mutex
	records map[string]domain.Record
	order   []string
	nextID  int
	err     error
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: map[string]domain.Record{}}
}

func (f *fakeStore) List(_ context.Context) ([]domain.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([]domain.Record, 0, len(f.order))
	for i := len(f.order) - 1; i >= 0; i-- {
		out = append(out, f.records[f.order[i]])
	}
	return out, nil
}

func (f *fakeStore) Get(_ context.Context, id string) (domain.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return domain.Record{}, f.err
	}
	record, ok := f.records[id]
	if !ok {
		return domain.Record{}, domain.ErrNoteNotFound
	}
	return record, nil
}

func (f *fakeStore) Insert(_ context.Context, fields domain.Fields) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.nextID++
	id := fmt.Sprintf("note-%d", f.nextID)
	f.records[id] = domain.Record{
		ID:        id,
		CreatedAt: time.Date(2026, 1, 1, 0, 0, f.nextID, 0, time.UTC),
		Fields:    fields,
	}
	f.order = append(f.order, id)
	return id, nil
}

func (f *fakeStore) Update(_ context.Context, id string, fields domain.Fields) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	record, ok := f.records[id]
	if !ok {
		return domain.ErrNoteNotFound
	}
	record.Fields = fields
	f.records[id] = record
	return nil
}

func (f *fakeStore) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if _, ok := f.records[id]; !ok {
		return domain.ErrNoteNotFound
	}
	delete(f.records, id)
	for i, existing := range f.order {
		if existing == id {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
	return nil
}

func (f *fakeStore) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

type fakeEventSink struct {
	mu sync.Mutex

	states  []stateEvent
	lives   []string
	finals  []string
	records []domain.Record
	errors  []errEvent
}

type stateEvent struct {
	state  domain.RecordingState
	reason domain.SessionStateReason
}

type errEvent struct {
	code   domain.ErrorCode
	detail string
}

func (f *fakeEventSink) SessionStateChanged(state domain.RecordingState, reason domain.SessionStateReason) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = append(f.states, stateEvent{state: state, reason: reason})
}

func (f *fakeEventSink) LiveTranscript(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lives = append(f.lives, text)
}

func (f *fakeEventSink) FinalTranscript(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finals = append(f.finals, text)
}

func (f *fakeEventSink) RecordChanged(record domain.Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, record)
}

func (f *fakeEventSink) SessionError(code domain.ErrorCode, detail string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, errEvent{code: code, detail: detail})
}

func (f *fakeEventSink) snapshotStates() []stateEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]stateEvent(nil), f.states...)
}

func (f *fakeEventSink) snapshotLives() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.lives...)
}

func (f *fakeEventSink) snapshotFinals() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.finals...)
}

func (f *fakeEventSink) snapshotErrors() []errEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]errEvent(nil), f.errors...)
}

func (f *fakeEventSink) hasError(code domain.ErrorCode) bool {
	for _, e := range f.snapshotErrors() {
		if e.code == code {
			return true
		}
	}
	return false
}
