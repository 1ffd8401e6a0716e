// Package store persists clinical notes in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"medscribe/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS notes (
	id                   TEXT PRIMARY KEY,
	created_at           TEXT NOT NULL,
	patient_name         TEXT NOT NULL DEFAULT '',
	age                  TEXT NOT NULL DEFAULT '',
	gender               TEXT NOT NULL DEFAULT '',
	symptoms             TEXT NOT NULL DEFAULT '',
	medical_history      TEXT NOT NULL DEFAULT '',
	diagnosis            TEXT NOT NULL DEFAULT '',
	treatment_plan       TEXT NOT NULL DEFAULT '',
	blood_pressure       TEXT NOT NULL DEFAULT '',
	heart_rate           TEXT NOT NULL DEFAULT '',
	temperature          TEXT NOT NULL DEFAULT '',
	respiratory_rate     TEXT NOT NULL DEFAULT '',
	oxygen_saturation    TEXT NOT NULL DEFAULT '',
	weight               TEXT NOT NULL DEFAULT '',
	height               TEXT NOT NULL DEFAULT '',
	transcript           TEXT NOT NULL DEFAULT '',
	formatted_transcript TEXT
);

CREATE INDEX IF NOT EXISTS notes_created_at ON notes (created_at DESC);
`

// columns maps note fields to their snake_case column names.
var columns = []struct {
	field  domain.Field
	column string
}{
	{domain.FieldPatientName, "patient_name"},
	{domain.FieldAge, "age"},
	{domain.FieldGender, "gender"},
	{domain.FieldSymptoms, "symptoms"},
	{domain.FieldMedicalHistory, "medical_history"},
	{domain.FieldDiagnosis, "diagnosis"},
	{domain.FieldTreatmentPlan, "treatment_plan"},
	{domain.FieldBloodPressure, "blood_pressure"},
	{domain.FieldHeartRate, "heart_rate"},
	{domain.FieldTemperature, "temperature"},
	{domain.FieldRespiratoryRate, "respiratory_rate"},
	{domain.FieldOxygenSaturation, "oxygen_saturation"},
	{domain.FieldWeight, "weight"},
	{domain.FieldHeight, "height"},
	{domain.FieldTranscript, "transcript"},
	{domain.FieldFormattedTranscript, "formatted_transcript"},
}

// Store implements ports.RecordStore.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the database at path and runs migrations.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection keeps :memory: databases shared and serialises writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func columnList() string {
	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = c.column
	}
	return strings.Join(names, ", ")
}

func fieldValues(fields domain.Fields) []any {
	values := make([]any, len(columns))
	for i, c := range columns {
		values[i] = fields.Get(c.field)
	}
	return values
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (domain.Record, error) {
	var (
		rec       domain.Record
		createdAt string
		raw       = make([]sql.NullString, len(columns))
	)
	dest := make([]any, 0, len(columns)+2)
	dest = append(dest, &rec.ID, &createdAt)
	for i := range raw {
		dest = append(dest, &raw[i])
	}
	if err := row.Scan(dest...); err != nil {
		return domain.Record{}, err
	}

	parsed, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return domain.Record{}, fmt.Errorf("parse created_at %q: %w", createdAt, err)
	}
	rec.CreatedAt = parsed
	for i, c := range columns {
		// NULL reads back as "".
		rec.Set(c.field, raw[i].String)
	}
	return rec, nil
}

// List returns every note, newest first.
func (s *Store) List(ctx context.Context) ([]domain.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, `+columnList()+` FROM notes ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("query notes: %w", err)
	}
	defer rows.Close()

	var records []domain.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Get returns one note.
func (s *Store) Get(ctx context.Context, id string) (domain.Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, created_at, `+columnList()+` FROM notes WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Record{}, domain.ErrNoteNotFound
	}
	if err != nil {
		return domain.Record{}, fmt.Errorf("scan note: %w", err)
	}
	return rec, nil
}

// Insert stores a new note and returns its identifier.
func (s *Store) Insert(ctx context.Context, fields domain.Fields) (string, error) {
	id := uuid.New().String()
	createdAt := s.now().UTC().Format(time.RFC3339Nano)

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)+2), ", ")
	args := append([]any{id, createdAt}, fieldValues(fields)...)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notes (id, created_at, `+columnList()+`) VALUES (`+placeholders+`)`, args...)
	if err != nil {
		return "", fmt.Errorf("insert note: %w", err)
	}
	return id, nil
}

// Update overwrites every field of an existing note.
func (s *Store) Update(ctx context.Context, id string, fields domain.Fields) error {
	assignments := make([]string, len(columns))
	for i, c := range columns {
		assignments[i] = c.column + " = ?"
	}
	args := append(fieldValues(fields), id)

	res, err := s.db.ExecContext(ctx,
		`UPDATE notes SET `+strings.Join(assignments, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("update note: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update note: %w", err)
	}
	if n == 0 {
		return domain.ErrNoteNotFound
	}
	return nil
}

// Delete permanently removes a note.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete note: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete note: %w", err)
	}
	if n == 0 {
		return domain.ErrNoteNotFound
	}
	return nil
}
