// Package sqlstore implements the entity store over database/sql. It is
// dialect-agnostic: the SQLite and Postgres drivers embed it and supply a
// dialect for placeholder binding.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/solacelabs/solace/pkg/identity"
	"github.com/solacelabs/solace/pkg/storage"
)

// Dialect selects placeholder syntax for the backing database.
type Dialect int

const (
	// SQLite uses ? placeholders.
	SQLite Dialect = iota

	// Postgres uses $1..$n placeholders.
	Postgres
)

// SQLStore provides entity store operations over a *sql.DB. It is embedded
// by the concrete drivers.
type SQLStore struct {
	DB      *sql.DB
	dialect Dialect
}

// New wraps an open database handle.
func New(db *sql.DB, dialect Dialect) *SQLStore {
	return &SQLStore{DB: db, dialect: dialect}
}

// Schema is the shared table layout. Types are restricted to the portable
// intersection of SQLite and Postgres.
const Schema = `
CREATE TABLE IF NOT EXISTS persons (
	id TEXT PRIMARY KEY,
	status TEXT NOT NULL,
	name TEXT NOT NULL DEFAULT '',
	relation TEXT NOT NULL DEFAULT '',
	contextual_note TEXT NOT NULL DEFAULT '',
	familiarity_score REAL NOT NULL DEFAULT 0,
	created_at TIMESTAMP NOT NULL,
	confirmed_at TIMESTAMP,
	last_seen_at TIMESTAMP NOT NULL,
	last_memory_saved_at TIMESTAMP,
	last_routine_analysis_at TIMESTAMP
);

CREATE TABLE IF NOT EXISTS memories (
	id TEXT PRIMARY KEY,
	person_id TEXT NOT NULL REFERENCES persons(id) ON DELETE CASCADE,
	summary TEXT NOT NULL,
	emotional_tone TEXT NOT NULL DEFAULT '',
	important_event TEXT NOT NULL DEFAULT '',
	raw_transcript TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_memories_person_created ON memories(person_id, created_at);

CREATE TABLE IF NOT EXISTS routines (
	id TEXT PRIMARY KEY,
	person_id TEXT NOT NULL REFERENCES persons(id) ON DELETE CASCADE,
	text TEXT NOT NULL,
	confidence REAL NOT NULL DEFAULT 0,
	source TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_routines_person ON routines(person_id);
`

// Migrate creates the tables if they do not exist.
func (s *SQLStore) Migrate(ctx context.Context) error {
	_, err := s.DB.ExecContext(ctx, Schema)
	if err != nil {
		return fmt.Errorf("migrating schema: %w", err)
	}
	return nil
}

// bind rewrites ? placeholders to the dialect's syntax.
func (s *SQLStore) bind(query string) string {
	if s.dialect == SQLite {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

const personColumns = `id, status, name, relation, contextual_note, familiarity_score,
	created_at, confirmed_at, last_seen_at, last_memory_saved_at, last_routine_analysis_at`

func scanPerson(row interface{ Scan(...any) error }) (*identity.Person, error) {
	var (
		p           identity.Person
		status      string
		confirmedAt sql.NullTime
		memSavedAt  sql.NullTime
		analysisAt  sql.NullTime
	)
	err := row.Scan(
		&p.ID, &status, &p.Name, &p.Relation, &p.ContextualNote, &p.FamiliarityScore,
		&p.CreatedAt, &confirmedAt, &p.LastSeenAt, &memSavedAt, &analysisAt,
	)
	if err != nil {
		return nil, err
	}
	p.Status = identity.Status(status)
	if confirmedAt.Valid {
		t := confirmedAt.Time
		p.ConfirmedAt = &t
	}
	if memSavedAt.Valid {
		t := memSavedAt.Time
		p.LastMemorySavedAt = &t
	}
	if analysisAt.Valid {
		t := analysisAt.Time
		p.LastRoutineAnalysisAt = &t
	}
	return &p, nil
}

// CreatePerson inserts a new person row.
func (s *SQLStore) CreatePerson(ctx context.Context, p *identity.Person) error {
	query := s.bind(`INSERT INTO persons (` + personColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err := s.DB.ExecContext(ctx, query,
		p.ID, string(p.Status), p.Name, p.Relation, p.ContextualNote, p.FamiliarityScore,
		p.CreatedAt, nullTime(p.ConfirmedAt), p.LastSeenAt,
		nullTime(p.LastMemorySavedAt), nullTime(p.LastRoutineAnalysisAt),
	)
	if err != nil {
		return fmt.Errorf("inserting person: %w", err)
	}
	return nil
}

// GetPerson retrieves a person by id.
func (s *SQLStore) GetPerson(ctx context.Context, id string) (*identity.Person, error) {
	query := s.bind(`SELECT ` + personColumns + ` FROM persons WHERE id = ?`)

	p, err := scanPerson(s.DB.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, storage.PersonNotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying person: %w", err)
	}
	return p, nil
}

// UpdatePerson applies the non-nil fields of upd.
func (s *SQLStore) UpdatePerson(ctx context.Context, id string, upd storage.PersonUpdate) error {
	sets := make([]string, 0, 5)
	args := make([]any, 0, 6)

	if upd.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *upd.Name)
	}
	if upd.Relation != nil {
		sets = append(sets, "relation = ?")
		args = append(args, *upd.Relation)
	}
	if upd.ContextualNote != nil {
		sets = append(sets, "contextual_note = ?")
		args = append(args, *upd.ContextualNote)
	}
	if upd.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(*upd.Status))
	}
	if upd.ConfirmedAt != nil {
		sets = append(sets, "confirmed_at = ?")
		args = append(args, *upd.ConfirmedAt)
	}
	if len(sets) == 0 {
		return nil
	}

	args = append(args, id)
	query := s.bind(`UPDATE persons SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`)

	res, err := s.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating person: %w", err)
	}
	return requireRow(res, storage.PersonNotFound(id))
}

// TouchLastSeen sets last_seen_at.
func (s *SQLStore) TouchLastSeen(ctx context.Context, id string, now time.Time) error {
	query := s.bind(`UPDATE persons SET last_seen_at = ? WHERE id = ?`)
	res, err := s.DB.ExecContext(ctx, query, now, id)
	if err != nil {
		return fmt.Errorf("touching last_seen: %w", err)
	}
	return requireRow(res, storage.PersonNotFound(id))
}

// BumpFamiliarity increments familiarity_score, clamped at 1.0.
func (s *SQLStore) BumpFamiliarity(ctx context.Context, id string, increment float64) error {
	query := s.bind(`UPDATE persons SET familiarity_score =
		CASE WHEN familiarity_score + ? > 1.0 THEN 1.0 ELSE familiarity_score + ? END
		WHERE id = ?`)
	res, err := s.DB.ExecContext(ctx, query, increment, increment, id)
	if err != nil {
		return fmt.Errorf("bumping familiarity: %w", err)
	}
	return requireRow(res, storage.PersonNotFound(id))
}

// MarkMemorySaved records the latest memory-save time.
func (s *SQLStore) MarkMemorySaved(ctx context.Context, id string, now time.Time) error {
	query := s.bind(`UPDATE persons SET last_memory_saved_at = ? WHERE id = ?`)
	res, err := s.DB.ExecContext(ctx, query, now, id)
	if err != nil {
		return fmt.Errorf("marking memory saved: %w", err)
	}
	return requireRow(res, storage.PersonNotFound(id))
}

// MarkRoutineAnalysis records a completed consolidation.
func (s *SQLStore) MarkRoutineAnalysis(ctx context.Context, id string, now time.Time) error {
	query := s.bind(`UPDATE persons SET last_routine_analysis_at = ? WHERE id = ?`)
	res, err := s.DB.ExecContext(ctx, query, now, id)
	if err != nil {
		return fmt.Errorf("marking routine analysis: %w", err)
	}
	return requireRow(res, storage.PersonNotFound(id))
}

// ListPending returns temporary persons with interaction context.
func (s *SQLStore) ListPending(ctx context.Context) ([]storage.PendingPerson, error) {
	query := s.bind(`SELECT ` + personColumns + `,
		(SELECT COUNT(*) FROM memories m WHERE m.person_id = persons.id),
		COALESCE((SELECT m.summary FROM memories m WHERE m.person_id = persons.id
			ORDER BY m.created_at DESC LIMIT 1), '')
		FROM persons WHERE status = ? ORDER BY last_seen_at DESC`)

	rows, err := s.DB.QueryContext(ctx, query, string(identity.StatusTemporary))
	if err != nil {
		return nil, fmt.Errorf("querying pending persons: %w", err)
	}
	defer rows.Close()

	var out []storage.PendingPerson
	for rows.Next() {
		var (
			p           identity.Person
			status      string
			confirmedAt sql.NullTime
			memSavedAt  sql.NullTime
			analysisAt  sql.NullTime
			pending     storage.PendingPerson
		)
		err := rows.Scan(
			&p.ID, &status, &p.Name, &p.Relation, &p.ContextualNote, &p.FamiliarityScore,
			&p.CreatedAt, &confirmedAt, &p.LastSeenAt, &memSavedAt, &analysisAt,
			&pending.InteractionCount, &pending.LastMemorySummary,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning pending person: %w", err)
		}
		p.Status = identity.Status(status)
		if confirmedAt.Valid {
			t := confirmedAt.Time
			p.ConfirmedAt = &t
		}
		if memSavedAt.Valid {
			t := memSavedAt.Time
			p.LastMemorySavedAt = &t
		}
		if analysisAt.Valid {
			t := analysisAt.Time
			p.LastRoutineAnalysisAt = &t
		}
		pending.Person = &p
		out = append(out, pending)
	}
	return out, rows.Err()
}

// ListConfirmed returns confirmed persons ordered by name.
func (s *SQLStore) ListConfirmed(ctx context.Context) ([]*identity.Person, error) {
	query := s.bind(`SELECT ` + personColumns + ` FROM persons WHERE status = ? ORDER BY name`)

	rows, err := s.DB.QueryContext(ctx, query, string(identity.StatusConfirmed))
	if err != nil {
		return nil, fmt.Errorf("querying confirmed persons: %w", err)
	}
	defer rows.Close()

	var out []*identity.Person
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning confirmed person: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListDirty returns consolidation candidates, oldest pending memory first.
func (s *SQLStore) ListDirty(ctx context.Context, limit int) ([]storage.DirtyPerson, error) {
	if limit <= 0 {
		limit = 10
	}
	query := s.bind(`SELECT p.id, p.name, COUNT(m.id)
		FROM persons p
		JOIN memories m ON m.person_id = p.id
		WHERE p.last_memory_saved_at IS NOT NULL
		  AND (p.last_routine_analysis_at IS NULL
		       OR p.last_routine_analysis_at < p.last_memory_saved_at)
		GROUP BY p.id, p.name, p.last_memory_saved_at
		ORDER BY p.last_memory_saved_at ASC
		LIMIT ?`)

	rows, err := s.DB.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("querying dirty persons: %w", err)
	}
	defer rows.Close()

	var out []storage.DirtyPerson
	for rows.Next() {
		var d storage.DirtyPerson
		if err := rows.Scan(&d.PersonID, &d.Name, &d.MemoryCount); err != nil {
			return nil, fmt.Errorf("scanning dirty person: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// DeletePerson removes a person; memories and routines cascade via foreign
// keys.
func (s *SQLStore) DeletePerson(ctx context.Context, id string) error {
	query := s.bind(`DELETE FROM persons WHERE id = ?`)
	res, err := s.DB.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("deleting person: %w", err)
	}
	return requireRow(res, storage.PersonNotFound(id))
}

// CreateMemory inserts a memory row.
func (s *SQLStore) CreateMemory(ctx context.Context, m *identity.Memory) error {
	query := s.bind(`INSERT INTO memories
		(id, person_id, summary, emotional_tone, important_event, raw_transcript, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)

	_, err := s.DB.ExecContext(ctx, query,
		m.ID, m.PersonID, m.Summary, m.EmotionalTone, m.ImportantEvent, m.RawTranscript, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting memory: %w", err)
	}
	return nil
}

// RecentMemories returns up to limit memories, newest first.
func (s *SQLStore) RecentMemories(ctx context.Context, personID string, limit int) ([]*identity.Memory, error) {
	if limit <= 0 {
		limit = 10
	}
	query := s.bind(`SELECT id, person_id, summary, emotional_tone, important_event, raw_transcript, created_at
		FROM memories WHERE person_id = ? ORDER BY created_at DESC LIMIT ?`)

	rows, err := s.DB.QueryContext(ctx, query, personID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying memories: %w", err)
	}
	defer rows.Close()

	var out []*identity.Memory
	for rows.Next() {
		var m identity.Memory
		err := rows.Scan(&m.ID, &m.PersonID, &m.Summary, &m.EmotionalTone,
			&m.ImportantEvent, &m.RawTranscript, &m.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning memory: %w", err)
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

// MemoryCount returns the number of memories owned by a person.
func (s *SQLStore) MemoryCount(ctx context.Context, personID string) (int, error) {
	query := s.bind(`SELECT COUNT(*) FROM memories WHERE person_id = ?`)
	var count int
	if err := s.DB.QueryRowContext(ctx, query, personID).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting memories: %w", err)
	}
	return count, nil
}

// DeleteMemory removes a single memory.
func (s *SQLStore) DeleteMemory(ctx context.Context, id string) error {
	query := s.bind(`DELETE FROM memories WHERE id = ?`)
	res, err := s.DB.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("deleting memory: %w", err)
	}
	return requireRow(res, storage.MemoryNotFound(id))
}

// ReplaceRoutines swaps the person's routine set in one transaction.
func (s *SQLStore) ReplaceRoutines(ctx context.Context, personID string, routines []*identity.Routine) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning routine replace: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, s.bind(`DELETE FROM routines WHERE person_id = ?`), personID); err != nil {
		return fmt.Errorf("clearing routines: %w", err)
	}

	insert := s.bind(`INSERT INTO routines (id, person_id, text, confidence, source, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`)
	for _, r := range routines {
		_, err := tx.ExecContext(ctx, insert,
			r.ID, r.PersonID, r.Text, r.Confidence, string(r.Source), r.CreatedAt)
		if err != nil {
			return fmt.Errorf("inserting routine: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing routine replace: %w", err)
	}
	return nil
}

// Routines returns the person's routine set, highest confidence first.
func (s *SQLStore) Routines(ctx context.Context, personID string) ([]*identity.Routine, error) {
	query := s.bind(`SELECT id, person_id, text, confidence, source, created_at
		FROM routines WHERE person_id = ? ORDER BY confidence DESC, created_at ASC`)

	rows, err := s.DB.QueryContext(ctx, query, personID)
	if err != nil {
		return nil, fmt.Errorf("querying routines: %w", err)
	}
	defer rows.Close()

	var out []*identity.Routine
	for rows.Next() {
		var (
			r      identity.Routine
			source string
		)
		if err := rows.Scan(&r.ID, &r.PersonID, &r.Text, &r.Confidence, &source, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning routine: %w", err)
		}
		r.Source = identity.RoutineSource(source)
		out = append(out, &r)
	}
	return out, rows.Err()
}

// Ping verifies connectivity.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.DB.PingContext(ctx)
}

// Close closes the database handle.
func (s *SQLStore) Close() error {
	return s.DB.Close()
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func requireRow(res sql.Result, notFound error) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return nil // driver without RowsAffected support; assume success
	}
	if affected == 0 {
		return notFound
	}
	return nil
}
