package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// SQLStore keeps every document in a single documents table
// (collection, id, data). Works against sqlite and postgres through
// database/sql; transactions map to SQL transactions.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore { return &SQLStore{db: db} }

const txMaxAttempts = 3

func (s *SQLStore) Get(ctx context.Context, collection, id string, out any) error {
	row := s.db.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE collection=$1 AND id=$2`, collection, id)
	return scanDoc(row, out)
}

func (s *SQLStore) List(ctx context.Context, collection string) ([]Doc, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, data FROM documents WHERE collection=$1 ORDER BY id`, collection)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Doc
	for rows.Next() {
		var d Doc
		var data string
		if err := rows.Scan(&d.ID, &data); err != nil {
			return nil, err
		}
		d.Collection = collection
		d.Data = json.RawMessage(data)
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *SQLStore) RunTransaction(ctx context.Context, fn func(tx Tx) error) error {
	var lastErr error
	for attempt := 0; attempt < txMaxAttempts; attempt++ {
		err := s.runOnce(ctx, fn)
		if err == nil {
			return nil
		}
		// Errors from fn are business decisions: terminal, never retried.
		// Only commit/serialization conflicts are worth another attempt.
		if !isRetryable(err) {
			return err
		}
		lastErr = err
		time.Sleep(time.Duration(attempt+1) * 10 * time.Millisecond)
	}
	return lastErr
}

func (s *SQLStore) runOnce(ctx context.Context, fn func(tx Tx) error) error {
	stx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	t := &sqlTx{ctx: ctx, tx: stx}
	if err := fn(t); err != nil {
		_ = stx.Rollback()
		return err
	}
	return stx.Commit()
}

func (s *SQLStore) RunBatch(ctx context.Context, writes []Write) error {
	return runBatch(ctx, s, writes)
}

type sqlTx struct {
	ctx context.Context
	tx  *sql.Tx
}

func (t *sqlTx) Get(ctx context.Context, collection, id string, out any) error {
	row := t.tx.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE collection=$1 AND id=$2`, collection, id)
	return scanDoc(row, out)
}

func (t *sqlTx) List(ctx context.Context, collection string) ([]Doc, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT id, data FROM documents WHERE collection=$1 ORDER BY id`, collection)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Doc
	for rows.Next() {
		var d Doc
		var data string
		if err := rows.Scan(&d.ID, &data); err != nil {
			return nil, err
		}
		d.Collection = collection
		d.Data = json.RawMessage(data)
		out = append(out, d)
	}
	return out, rows.Err()
}

func (t *sqlTx) Set(collection, id string, v any) error {
	buf, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = t.tx.ExecContext(t.ctx,
		`INSERT INTO documents (collection, id, data, updated_at) VALUES ($1,$2,$3,$4)
		 ON CONFLICT (collection, id) DO UPDATE SET data=EXCLUDED.data, updated_at=EXCLUDED.updated_at`,
		collection, id, string(buf), time.Now().Unix())
	return err
}

func (t *sqlTx) Delete(collection, id string) error {
	_, err := t.tx.ExecContext(t.ctx,
		`DELETE FROM documents WHERE collection=$1 AND id=$2`, collection, id)
	return err
}

func scanDoc(row *sql.Row, out any) error {
	var data string
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	return json.Unmarshal([]byte(data), out)
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || // sqlite
		strings.Contains(msg, "busy") || // sqlite
		strings.Contains(msg, "could not serialize") || // postgres
		strings.Contains(msg, "deadlock detected") // postgres
}
