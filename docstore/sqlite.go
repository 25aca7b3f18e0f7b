package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/realmorph/datakit/logger"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// sqliteStore is a Store backed by a local SQLite database. Documents are
// stored as JSON text keyed by (collection, id); filtering and ordering run
// in-process so every backend shares identical query semantics.
type sqliteStore struct {
	logger logger.Logger
	db     *sql.DB
	table  string
}

// NewSQLite creates a SQLite-backed document store, creating the documents
// table if it does not exist.
func NewSQLite(log logger.Logger, cfg *SQLiteConfig) (Store, error) {
	if cfg == nil {
		cfg = DefaultSQLiteConfig()
	} else {
		cfg = cfg.MergeDefaults()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)", cfg.Path, cfg.BusyTimeout.Milliseconds())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, ErrConnection(err)
	}
	db.SetMaxOpenConns(1)

	schema := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %s (
		collection TEXT NOT NULL,
		id TEXT NOT NULL,
		data TEXT NOT NULL,
		PRIMARY KEY (collection, id)
	);`, cfg.Table)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, ErrConnection(err)
	}

	log.Debug("sqlite document store opened", zap.String("path", cfg.Path), zap.String("table", cfg.Table))

	return &sqliteStore{logger: log, db: db, table: cfg.Table}, nil
}

func (s *sqliteStore) Get(ctx context.Context, collection, id string) (Document, error) {
	var raw []byte
	query := fmt.Sprintf("SELECT data FROM %s WHERE collection = ? AND id = ?", s.table)
	err := s.db.QueryRowContext(ctx, query, collection, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, ErrQuery(collection, err)
	}

	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, ErrQuery(collection, err)
	}
	return doc, nil
}

func (s *sqliteStore) Query(ctx context.Context, collection string, q Query) ([]Document, error) {
	docs, err := s.load(ctx, collection, q)
	if err != nil {
		return nil, err
	}
	sortDocs(docs, q)
	return window(docs, q), nil
}

func (s *sqliteStore) Count(ctx context.Context, collection string, q Query) (int64, error) {
	docs, err := s.load(ctx, collection, q)
	if err != nil {
		return 0, err
	}
	return int64(len(docs)), nil
}

// load fetches all matching documents in id order, before sort/window.
func (s *sqliteStore) load(ctx context.Context, collection string, q Query) ([]Document, error) {
	query := fmt.Sprintf("SELECT id, data FROM %s WHERE collection = ?", s.table)
	rows, err := s.db.QueryContext(ctx, query, collection)
	if err != nil {
		return nil, ErrQuery(collection, err)
	}
	defer rows.Close()

	type row struct {
		id  string
		doc Document
	}
	var matched []row
	for rows.Next() {
		var (
			id  string
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, ErrQuery(collection, err)
		}
		var doc Document
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, ErrQuery(collection, err)
		}
		if matchQuery(doc, q) {
			matched = append(matched, row{id: id, doc: doc})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, ErrQuery(collection, err)
	}

	sort.Slice(matched, func(i, j int) bool { return matched[i].id < matched[j].id })
	docs := make([]Document, len(matched))
	for i, r := range matched {
		docs[i] = r.doc
	}
	return docs, nil
}

func (s *sqliteStore) Insert(ctx context.Context, collection, id string, doc Document) error {
	return s.execInsert(ctx, s.db, collection, id, doc)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *sqliteStore) execInsert(ctx context.Context, ex execer, collection, id string, doc Document) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return ErrWrite(collection, id, err)
	}
	query := fmt.Sprintf(`
	INSERT INTO %s (collection, id, data) VALUES (?, ?, ?)
	ON CONFLICT(collection, id) DO UPDATE SET data = excluded.data`, s.table)
	if _, err := ex.ExecContext(ctx, query, collection, id, raw); err != nil {
		return ErrWrite(collection, id, err)
	}
	return nil
}

func (s *sqliteStore) Update(ctx context.Context, collection, id string, doc Document) error {
	return s.execUpdate(ctx, s.db, collection, id, doc)
}

func (s *sqliteStore) execUpdate(ctx context.Context, ex execer, collection, id string, doc Document) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return ErrWrite(collection, id, err)
	}
	query := fmt.Sprintf("UPDATE %s SET data = ? WHERE collection = ? AND id = ?", s.table)
	res, err := ex.ExecContext(ctx, query, raw, collection, id)
	if err != nil {
		return ErrWrite(collection, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return ErrWrite(collection, id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *sqliteStore) Patch(ctx context.Context, collection, id string, fields Document) error {
	existing, err := s.Get(ctx, collection, id)
	if err != nil {
		return err
	}
	return s.Update(ctx, collection, id, mergeFields(existing, fields))
}

func (s *sqliteStore) Delete(ctx context.Context, collection, id string) error {
	return s.execDelete(ctx, s.db, collection, id)
}

func (s *sqliteStore) execDelete(ctx context.Context, ex execer, collection, id string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE collection = ? AND id = ?", s.table)
	res, err := ex.ExecContext(ctx, query, collection, id)
	if err != nil {
		return ErrWrite(collection, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return ErrWrite(collection, id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// BatchWrite applies all operations inside one transaction.
func (s *sqliteStore) BatchWrite(ctx context.Context, collection string, ops []WriteOp) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ErrWrite(collection, "", err)
	}
	defer tx.Rollback()

	for _, op := range ops {
		switch op.Type {
		case OpInsert:
			err = s.execInsert(ctx, tx, collection, op.ID, op.Data)
		case OpUpdate:
			err = s.execUpdate(ctx, tx, collection, op.ID, op.Data)
		case OpPatch:
			err = s.txPatch(ctx, tx, collection, op.ID, op.Data)
		case OpDelete:
			err = s.execDelete(ctx, tx, collection, op.ID)
		default:
			err = ErrUnknownOp(op.Type)
		}
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *sqliteStore) txPatch(ctx context.Context, tx *sql.Tx, collection, id string, fields Document) error {
	var raw []byte
	query := fmt.Sprintf("SELECT data FROM %s WHERE collection = ? AND id = ?", s.table)
	err := tx.QueryRowContext(ctx, query, collection, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return ErrQuery(collection, err)
	}
	var existing Document
	if err := json.Unmarshal(raw, &existing); err != nil {
		return ErrQuery(collection, err)
	}
	return s.execUpdate(ctx, tx, collection, id, mergeFields(existing, fields))
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}
