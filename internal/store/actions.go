package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"scuffcommander/pkg/action"
)

// Record is one stored action.
type Record struct {
	ID        string
	Action    action.Action
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ActionRepository provides CRUD operations for actions.
type ActionRepository struct {
	db *sql.DB
}

// Actions returns the action repository for this store.
func (s *Store) Actions() *ActionRepository {
	return &ActionRepository{db: s.db}
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func put(ctx context.Context, db execer, id string, a action.Action, now time.Time) error {
	if id == "" {
		return fmt.Errorf("action id must not be empty")
	}
	body, err := action.Marshal(a)
	if err != nil {
		return fmt.Errorf("action %q: %w", id, err)
	}
	_, err = db.ExecContext(ctx,
		`INSERT INTO actions (id, body, created_at, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`,
		id, string(body), now.UnixMilli(), now.UnixMilli(),
	)
	return err
}

// Put stores a under id, replacing any previous action with that id.
func (r *ActionRepository) Put(ctx context.Context, id string, a action.Action) error {
	return put(ctx, r.db, id, a, time.Now())
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*Record, error) {
	var (
		rec              Record
		body             string
		created, updated int64
	)
	if err := row.Scan(&rec.ID, &body, &created, &updated); err != nil {
		return nil, err
	}
	a, err := action.Unmarshal([]byte(body))
	if err != nil {
		return nil, fmt.Errorf("stored action %q: %w", rec.ID, err)
	}
	rec.Action = a
	rec.CreatedAt = time.UnixMilli(created)
	rec.UpdatedAt = time.UnixMilli(updated)
	return &rec, nil
}

// Get retrieves an action by its id.
func (r *ActionRepository) Get(ctx context.Context, id string) (*Record, error) {
	rec, err := scanRecord(r.db.QueryRowContext(ctx,
		`SELECT id, body, created_at, updated_at FROM actions WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

// List retrieves every action ordered by id.
func (r *ActionRepository) List(ctx context.Context) ([]*Record, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, body, created_at, updated_at FROM actions ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// Delete removes an action by its id.
func (r *ActionRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM actions WHERE id = ?`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Import stores every action of doc in one transaction and returns how many
// were written.
func (r *ActionRepository) Import(ctx context.Context, doc action.Document) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	now := time.Now()
	for _, id := range doc.IDs() {
		if err := put(ctx, tx, id, doc.Actions[id], now); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(doc.Actions), nil
}

// Export returns every stored action as one document.
func (r *ActionRepository) Export(ctx context.Context) (action.Document, error) {
	records, err := r.List(ctx)
	if err != nil {
		return action.Document{}, err
	}
	doc := action.Document{Actions: make(map[string]action.Action, len(records))}
	for _, rec := range records {
		doc.Actions[rec.ID] = rec.Action
	}
	return doc, nil
}
