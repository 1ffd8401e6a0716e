package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"medscribe/internal/domain"
	"medscribe/internal/heuristics"
	"medscribe/internal/ports"
	"medscribe/internal/reconcile"
)

var ErrUnknownField = errors.New("unknown note field")

// NoteService owns the note being edited and its persistence.
type NoteService struct {
	store  ports.RecordStore
	events ports.EventSink
	logger zerolog.Logger

	mu    sync.Mutex
	draft domain.Record

	// revision changes whenever the draft is replaced by another note.
	revision uint64
}

func NewNoteService(store ports.RecordStore, events ports.EventSink, logger zerolog.Logger) *NoteService {
	return &NoteService{
		store:  store,
		events: events,
		logger: logger.With().Str("component", "notes").Logger(),
	}
}

// Current returns a copy of the draft.
func (n *NoteService) Current() domain.Record {
	record, _ := n.snapshot()
	return record
}

func (n *NoteService) snapshot() (domain.Record, uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.draft, n.revision
}

// Reset starts a new, empty, unsaved note.
func (n *NoteService) Reset() domain.Record {
	return n.mutate(n.resetDraft)
}

func (n *NoteService) resetDraft(draft *domain.Record) {
	*draft = domain.Record{}
	n.revision++
}

// SetField records a direct user edit.
func (n *NoteService) SetField(field domain.Field, value string) (domain.Record, error) {
	if !field.Valid() {
		return n.Current(), fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	return n.mutate(func(draft *domain.Record) {
		draft.Set(field, value)
	}), nil
}

// ApplyExtraction merges an analyzer result; meaningful extracted values win.
func (n *NoteService) ApplyExtraction(result domain.ExtractionResult) domain.Record {
	return n.mutate(reconcileExtraction(result))
}

// ApplyHeuristics fills only empty fields from the rule-based parser.
func (n *NoteService) ApplyHeuristics(text string) domain.Record {
	return n.mutate(mergeHeuristics(text))
}

// AttachTranscript stores the raw transcript on the draft.
func (n *NoteService) AttachTranscript(text string) domain.Record {
	return n.mutate(attachTranscript(text))
}

func reconcileExtraction(result domain.ExtractionResult) func(*domain.Record) {
	return func(draft *domain.Record) {
		draft.Fields = reconcile.Reconcile(draft.Fields, result)
	}
}

func mergeHeuristics(text string) func(*domain.Record) {
	parsed := heuristics.Extract(text)
	return func(draft *domain.Record) {
		draft.Fields = reconcile.MergeHeuristic(draft.Fields, parsed)
	}
}

func attachTranscript(text string) func(*domain.Record) {
	trimmed := strings.TrimSpace(text)
	return func(draft *domain.Record) {
		draft.Transcript = trimmed
	}
}

// Open loads a saved note into the draft.
func (n *NoteService) Open(ctx context.Context, id string) (domain.Record, error) {
	record, err := n.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNoteNotFound) {
			return domain.Record{}, err
		}
		return domain.Record{}, n.persistenceFailure("load", err)
	}
	return n.mutate(func(draft *domain.Record) {
		*draft = record
		n.revision++
	}), nil
}

// Save updates the draft in place when it has an ID, otherwise inserts it.
// On failure the draft is kept so the user can retry. A draft replaced while
// the insert was running keeps its own identity.
func (n *NoteService) Save(ctx context.Context) (domain.Record, error) {
	snapshot, revision := n.snapshot()

	if snapshot.ID != "" {
		if err := n.store.Update(ctx, snapshot.ID, snapshot.Fields); err != nil {
			if errors.Is(err, domain.ErrNoteNotFound) {
				return snapshot, err
			}
			return snapshot, n.persistenceFailure("update", err)
		}
		n.logger.Info().Str("note_id", snapshot.ID).Msg("note updated")
		return snapshot, nil
	}

	id, err := n.store.Insert(ctx, snapshot.Fields)
	if err != nil {
		return snapshot, n.persistenceFailure("insert", err)
	}

	createdAt := time.Now().UTC()
	if saved, getErr := n.store.Get(ctx, id); getErr == nil {
		createdAt = saved.CreatedAt
	} else {
		n.logger.Debug().Err(getErr).Str("note_id", id).Msg("could not reload inserted note")
	}
	n.logger.Info().Str("note_id", id).Msg("note created")

	saved := snapshot
	saved.ID = id
	saved.CreatedAt = createdAt

	n.mu.Lock()
	if n.revision != revision || n.draft.ID != "" {
		n.mu.Unlock()
		n.logger.Debug().Str("note_id", id).Msg("draft replaced during insert")
		return saved, nil
	}
	n.draft.ID = id
	n.draft.CreatedAt = createdAt
	n.mu.Unlock()
	return n.publish(), nil
}

// List returns saved notes, newest first.
func (n *NoteService) List(ctx context.Context) ([]domain.Record, error) {
	records, err := n.store.List(ctx)
	if err != nil {
		return nil, n.persistenceFailure("list", err)
	}
	return records, nil
}

// Delete permanently removes a note; the draft is cleared if it was that note.
func (n *NoteService) Delete(ctx context.Context, id string) error {
	if err := n.store.Delete(ctx, id); err != nil {
		if errors.Is(err, domain.ErrNoteNotFound) {
			return err
		}
		return n.persistenceFailure("delete", err)
	}
	n.logger.Info().Str("note_id", id).Msg("note deleted")

	n.mu.Lock()
	wasOpen := n.draft.ID == id
	n.mu.Unlock()
	if wasOpen {
		n.Reset()
	}
	return nil
}

func (n *NoteService) mutate(apply func(draft *domain.Record)) domain.Record {
	record := n.change(apply)
	n.publish()
	return record
}

// change edits the draft without notifying. Callers that order the edit
// against their own state do so under their lock and publish afterwards.
func (n *NoteService) change(apply func(draft *domain.Record)) domain.Record {
	n.mu.Lock()
	defer n.mu.Unlock()
	apply(&n.draft)
	return n.draft
}

// publish emits the draft as it is now, so a late publish never shows an
// older draft than an earlier one did.
func (n *NoteService) publish() domain.Record {
	record := n.Current()
	n.events.RecordChanged(record)
	return record
}

func (n *NoteService) persistenceFailure(op string, err error) error {
	var persistErr *domain.PersistenceError
	if !errors.As(err, &persistErr) {
		persistErr = &domain.PersistenceError{Op: op, Err: err}
	}
	n.logger.Error().Err(err).Str("op", op).Msg("note persistence failed")
	n.events.SessionError(domain.ErrorCodePersistence, persistErr.Error())
	return persistErr
}
