package notesdb

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/mrshanahan/notes-service/pkg/notes"
)

var (
	//go:embed files/create_notes_tables.sql
	CREATE_NOTES_TABLES_SQL string
)

// Timestamps are stored as fixed-width UTC strings so that they sort
// lexically in time order.
const timeLayout = "2006-01-02T15:04:05.000Z07:00"

// Store keeps notes in a SQLite database. Title and timestamps live in the
// notes table, content in notes_content; every operation touching both runs
// in one transaction.
type Store struct {
	db *sql.DB
}

func Initialize(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	tx, err := db.Begin()
	if err != nil {
		db.Close()
		return nil, err
	}

	_, err = tx.Exec(CREATE_NOTES_TABLES_SQL)
	if err != nil {
		tx.Rollback()
		db.Close()
		return nil, err
	}

	err = tx.Commit()
	if err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// Open initializes the database at path and returns a Store over it.
func Open(path string) (*Store, error) {
	db, err := Initialize(path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize notes DB at %s: %w", path, err)
	}
	return New(db), nil
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Create(ctx context.Context, n *notes.Note) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO notes (id, owner_id, title, created_on, updated_on) VALUES (?, ?, ?, ?, ?)",
			n.ID.String(), n.OwnerID.String(), n.Title, formatTime(n.CreatedAt), formatTime(n.UpdatedAt))
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			"INSERT INTO notes_content (note_id, content) VALUES (?, ?)",
			n.ID.String(), n.Content)
		return err
	})
}

func (s *Store) Get(ctx context.Context, id uuid.UUID) (*notes.Note, error) {
	stmt, err := s.db.PrepareContext(ctx, `
        SELECT n.id, n.owner_id, n.title, c.content, n.created_on, n.updated_on
        FROM notes n JOIN notes_content c ON c.note_id = n.id
        WHERE n.id = ?`)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	note, err := scanNote(stmt.QueryRowContext(ctx, id.String()))
	if err != nil && errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return note, nil
}

// Update overwrites title, content and updated_on. It reports false when no
// note has the id.
func (s *Store) Update(ctx context.Context, n *notes.Note) (bool, error) {
	found := false
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			"UPDATE notes SET title = ?, updated_on = ? WHERE id = ?",
			n.Title, formatTime(n.UpdatedAt), n.ID.String())
		if err != nil {
			return err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return nil
		}
		found = true
		_, err = tx.ExecContext(ctx, `
            INSERT INTO notes_content (note_id, content) VALUES (?, ?)
                ON CONFLICT(note_id) DO UPDATE SET content = excluded.content`,
			n.ID.String(), n.Content)
		return err
	})
	return found, err
}

func (s *Store) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	found := false
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM notes_content WHERE note_id = ?", id.String()); err != nil {
			return err
		}
		result, err := tx.ExecContext(ctx, "DELETE FROM notes WHERE id = ?", id.String())
		if err != nil {
			return err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		found = affected > 0
		return nil
	})
	return found, err
}

func (s *Store) Count(ctx context.Context, owner *uuid.UUID) (int64, error) {
	var row *sql.Row
	if owner == nil {
		row = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM notes")
	} else {
		row = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM notes WHERE owner_id = ?", owner.String())
	}
	var count int64
	if err := row.Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// List returns notes in creation order.
func (s *Store) List(ctx context.Context, owner *uuid.UUID, skip, limit int) ([]*notes.Note, error) {
	query := `
        SELECT n.id, n.owner_id, n.title, c.content, n.created_on, n.updated_on
        FROM notes n JOIN notes_content c ON c.note_id = n.id`
	args := []any{}
	if owner != nil {
		query += " WHERE n.owner_id = ?"
		args = append(args, owner.String())
	}
	query += " ORDER BY n.created_on, n.id LIMIT ? OFFSET ?"
	args = append(args, limit, skip)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	found := []*notes.Note{}
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		found = append(found, note)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return found, nil
}

// Private

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNote(row scanner) (*notes.Note, error) {
	var id, ownerID, createdOn, updatedOn string
	note := &notes.Note{}
	err := row.Scan(&id, &ownerID, &note.Title, &note.Content, &createdOn, &updatedOn)
	if err != nil {
		return nil, err
	}
	if note.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("invalid note id %q: %w", id, err)
	}
	if note.OwnerID, err = uuid.Parse(ownerID); err != nil {
		return nil, fmt.Errorf("invalid owner id %q: %w", ownerID, err)
	}
	if note.CreatedAt, err = parseTime(createdOn); err != nil {
		return nil, err
	}
	if note.UpdatedAt, err = parseTime(updatedOn); err != nil {
		return nil, err
	}
	return note, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}
