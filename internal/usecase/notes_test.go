package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"medscribe/internal/domain"
)

func newTestNotes() (*NoteService, *fakeStore, *fakeEventSink) {
	store := newFakeStore()
	events := &fakeEventSink{}
	return NewNoteService(store, events, zerolog.Nop()), store, events
}

func TestNoteServiceSaveInsertsThenUpdates(t *testing.T) {
	t.Parallel()

	notes, store, _ := newTestNotes()
	ctx := context.Background()

	if _, err := notes.SetField(domain.FieldPatientName, "Ada"); err != nil {
		t.Fatalf("set field: %v", err)
	}
	saved, err := notes.Save(ctx)
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if saved.ID == "" || saved.CreatedAt.IsZero() {
		t.Fatalf("expected identifier and timestamp after insert: %+v", saved)
	}

	if _, err := notes.SetField(domain.FieldDiagnosis, "asthma"); err != nil {
		t.Fatalf("set field: %v", err)
	}
	updated, err := notes.Save(ctx)
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.ID != saved.ID {
		t.Fatalf("expected update in place, got new id %q", updated.ID)
	}

	records, err := notes.List(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(records) != 1 || records[0].Diagnosis != "asthma" || records[0].PatientName != "Ada" {
		t.Fatalf("unexpected stored notes: %+v", records)
	}
	if len(store.order) != 1 {
		t.Fatalf("expected a single stored note, got %d", len(store.order))
	}
}

func TestNoteServiceSaveFailureKeepsDraft(t *testing.T) {
	t.Parallel()

	notes, store, events := newTestNotes()
	store.setErr(errors.New("disk full"))

	if _, err := notes.SetField(domain.FieldSymptoms, "cough"); err != nil {
		t.Fatalf("set field: %v", err)
	}
	_, err := notes.Save(context.Background())

	var persistErr *domain.PersistenceError
	if !errors.As(err, &persistErr) || persistErr.Op != "insert" {
		t.Fatalf("expected insert persistence error, got %v", err)
	}
	if got := notes.Current(); got.Symptoms != "cough" || got.ID != "" {
		t.Fatalf("draft must survive a failed save: %+v", got)
	}
	if !events.hasError(domain.ErrorCodePersistence) {
		t.Fatalf("expected persistence notice")
	}

	store.setErr(nil)
	if _, err := notes.Save(context.Background()); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
}

func TestNoteServiceSetFieldRejectsUnknownField(t *testing.T) {
	t.Parallel()

	notes, _, events := newTestNotes()
	if _, err := notes.SetField(domain.Field("bloodType"), "O+"); !errors.Is(err, ErrUnknownField) {
		t.Fatalf("expected unknown field error, got %v", err)
	}
	if len(events.records) != 0 {
		t.Fatalf("rejected edit must not emit a change")
	}
}

func TestNoteServiceExtractionPolicies(t *testing.T) {
	t.Parallel()

	notes, _, _ := newTestNotes()
	notes.SetField(domain.FieldDiagnosis, "viral infection")
	notes.SetField(domain.FieldHeartRate, "72")

	record := notes.ApplyExtraction(domain.ExtractionResult{Fields: domain.Fields{
		Diagnosis: "influenza",
		HeartRate: "N/A",
		Weight:    "",
	}})
	if record.Diagnosis != "influenza" {
		t.Fatalf("analyzer values should win, got %q", record.Diagnosis)
	}
	if record.HeartRate != "72" {
		t.Fatalf("sentinel must not overwrite, got %q", record.HeartRate)
	}

	record = notes.ApplyHeuristics("I am John Smith, 34 years old. I have a fever. I was diagnosed with the flu.")
	if record.PatientName != "John Smith" || record.Age != "34" {
		t.Fatalf("heuristics should fill empty fields: %+v", record.Fields)
	}
	if record.Diagnosis != "influenza" {
		t.Fatalf("heuristics must never overwrite, got %q", record.Diagnosis)
	}
}

func TestNoteServiceOpenAndDelete(t *testing.T) {
	t.Parallel()

	notes, _, _ := newTestNotes()
	ctx := context.Background()

	notes.SetField(domain.FieldPatientName, "Grace")
	saved, err := notes.Save(ctx)
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}

	notes.Reset()
	if notes.Current().ID != "" {
		t.Fatalf("reset should clear the draft")
	}

	opened, err := notes.Open(ctx, saved.ID)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if opened.PatientName != "Grace" || notes.Current().ID != saved.ID {
		t.Fatalf("unexpected opened note: %+v", opened)
	}

	if _, err := notes.Open(ctx, "missing"); !errors.Is(err, domain.ErrNoteNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	if err := notes.Delete(ctx, saved.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if notes.Current().ID != "" || notes.Current().PatientName != "" {
		t.Fatalf("deleting the open note should clear the draft: %+v", notes.Current())
	}
	if err := notes.Delete(ctx, saved.ID); !errors.Is(err, domain.ErrNoteNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}

func TestNoteServiceAttachTranscript(t *testing.T) {
	t.Parallel()

	notes, _, events := newTestNotes()
	record := notes.AttachTranscript("  patient reports pain.  ")
	if record.Transcript != "patient reports pain." {
		t.Fatalf("unexpected transcript: %q", record.Transcript)
	}
	events.mu.Lock()
	defer events.mu.Unlock()
	if len(events.records) != 1 || events.records[0].Transcript != "patient reports pain." {
		t.Fatalf("expected record change event, got %+v", events.records)
	}
}

// slowInsertStore holds its first Insert until release is closed.
type slowInsertStore struct {
	*fakeStore
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (s *slowInsertStore) Insert(ctx context.Context, fields domain.Fields) (string, error) {
	s.once.Do(func() {
		close(s.entered)
		<-s.release
	})
	return s.fakeStore.Insert(ctx, fields)
}

func TestNoteServiceResetDuringInsertKeepsNewDraftUnsaved(t *testing.T) {
	t.Parallel()

	store := &slowInsertStore{
		fakeStore: newFakeStore(),
		entered:   make(chan struct{}),
		release:   make(chan struct{}),
	}
	notes := NewNoteService(store, &fakeEventSink{}, zerolog.Nop())
	ctx := context.Background()

	if _, err := notes.SetField(domain.FieldPatientName, "Ada"); err != nil {
		t.Fatalf("set field: %v", err)
	}
	type saveResult struct {
		record domain.Record
		err    error
	}
	done := make(chan saveResult, 1)
	go func() {
		record, err := notes.Save(ctx)
		done <- saveResult{record, err}
	}()

	<-store.entered
	notes.Reset()
	close(store.release)
	first := <-done
	if first.err != nil {
		t.Fatalf("first save: %v", first.err)
	}
	if first.record.ID == "" || first.record.PatientName != "Ada" {
		t.Fatalf("unexpected first save result: %+v", first.record)
	}
	if got := notes.Current().ID; got != "" {
		t.Fatalf("fresh draft must not inherit the saved id, got %q", got)
	}

	if _, err := notes.SetField(domain.FieldPatientName, "Bob"); err != nil {
		t.Fatalf("set field: %v", err)
	}
	second, err := notes.Save(ctx)
	if err != nil {
		t.Fatalf("second save: %v", err)
	}
	if second.ID == first.record.ID {
		t.Fatalf("second draft must be inserted as a new note")
	}

	stored, err := store.Get(ctx, first.record.ID)
	if err != nil {
		t.Fatalf("get first note: %v", err)
	}
	if stored.PatientName != "Ada" {
		t.Fatalf("first note was overwritten: %+v", stored.Fields)
	}
}
