package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"sort"

	"github.com/realmorph/datakit/db"
	"github.com/realmorph/datakit/logger"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// documentRecord is the row shape of the gorm-backed store.
type documentRecord struct {
	Collection string `gorm:"primaryKey;size:191"`
	DocID      string `gorm:"primaryKey;size:191;column:doc_id"`
	Data       []byte `gorm:"type:json"`
}

// gormStore is a Store backed by a relational database through the db
// package. Filtering and ordering run in-process, matching the other
// backends.
type gormStore struct {
	logger logger.Logger
	db     db.Database
	table  string
}

// NewGorm creates a document store on top of a managed db connection.
// The documents table is migrated on startup.
func NewGorm(log logger.Logger, database db.Database, cfg *GormConfig) (Store, error) {
	if cfg == nil {
		cfg = DefaultGormConfig()
	} else {
		cfg = cfg.MergeDefaults()
	}

	gdb, err := database.DB()
	if err != nil {
		return nil, ErrConnection(err)
	}
	if err := gdb.Table(cfg.Table).AutoMigrate(&documentRecord{}); err != nil {
		return nil, ErrConnection(err)
	}

	log.Debug("gorm document store ready", zap.String("table", cfg.Table))

	return &gormStore{logger: log, db: database, table: cfg.Table}, nil
}

func (s *gormStore) handle() (*gorm.DB, error) {
	gdb, err := s.db.DB()
	if err != nil {
		return nil, ErrConnection(err)
	}
	return gdb.Table(s.table), nil
}

func (s *gormStore) Get(ctx context.Context, collection, id string) (Document, error) {
	gdb, err := s.handle()
	if err != nil {
		return nil, err
	}

	var rec documentRecord
	err = gdb.WithContext(ctx).
		Where("collection = ? AND doc_id = ?", collection, id).
		Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, ErrQuery(collection, err)
	}

	var doc Document
	if err := json.Unmarshal(rec.Data, &doc); err != nil {
		return nil, ErrQuery(collection, err)
	}
	return doc, nil
}

func (s *gormStore) Query(ctx context.Context, collection string, q Query) ([]Document, error) {
	docs, err := s.load(ctx, collection, q)
	if err != nil {
		return nil, err
	}
	sortDocs(docs, q)
	return window(docs, q), nil
}

func (s *gormStore) Count(ctx context.Context, collection string, q Query) (int64, error) {
	docs, err := s.load(ctx, collection, q)
	if err != nil {
		return 0, err
	}
	return int64(len(docs)), nil
}

func (s *gormStore) load(ctx context.Context, collection string, q Query) ([]Document, error) {
	gdb, err := s.handle()
	if err != nil {
		return nil, err
	}

	var recs []documentRecord
	if err := gdb.WithContext(ctx).Where("collection = ?", collection).Find(&recs).Error; err != nil {
		return nil, ErrQuery(collection, err)
	}

	sort.Slice(recs, func(i, j int) bool { return recs[i].DocID < recs[j].DocID })

	var docs []Document
	for _, rec := range recs {
		var doc Document
		if err := json.Unmarshal(rec.Data, &doc); err != nil {
			return nil, ErrQuery(collection, err)
		}
		if matchQuery(doc, q) {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

func (s *gormStore) Insert(ctx context.Context, collection, id string, doc Document) error {
	gdb, err := s.handle()
	if err != nil {
		return err
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return ErrWrite(collection, id, err)
	}
	rec := documentRecord{Collection: collection, DocID: id, Data: raw}
	err = gdb.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "collection"}, {Name: "doc_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"data"}),
	}).Create(&rec).Error
	if err != nil {
		return ErrWrite(collection, id, err)
	}
	return nil
}

func (s *gormStore) Update(ctx context.Context, collection, id string, doc Document) error {
	gdb, err := s.handle()
	if err != nil {
		return err
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return ErrWrite(collection, id, err)
	}
	res := gdb.WithContext(ctx).
		Where("collection = ? AND doc_id = ?", collection, id).
		Update("data", raw)
	if res.Error != nil {
		return ErrWrite(collection, id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *gormStore) Patch(ctx context.Context, collection, id string, fields Document) error {
	existing, err := s.Get(ctx, collection, id)
	if err != nil {
		return err
	}
	return s.Update(ctx, collection, id, mergeFields(existing, fields))
}

func (s *gormStore) Delete(ctx context.Context, collection, id string) error {
	gdb, err := s.handle()
	if err != nil {
		return err
	}
	res := gdb.WithContext(ctx).
		Where("collection = ? AND doc_id = ?", collection, id).
		Delete(&documentRecord{})
	if res.Error != nil {
		return ErrWrite(collection, id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// BatchWrite applies all operations inside one transaction.
func (s *gormStore) BatchWrite(ctx context.Context, collection string, ops []WriteOp) error {
	gdb, err := s.db.DB()
	if err != nil {
		return ErrConnection(err)
	}
	return gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		scoped := &gormStore{logger: s.logger, db: txDatabase{tx}, table: s.table}
		for _, op := range ops {
			var err error
			switch op.Type {
			case OpInsert:
				err = scoped.Insert(ctx, collection, op.ID, op.Data)
			case OpUpdate:
				err = scoped.Update(ctx, collection, op.ID, op.Data)
			case OpPatch:
				err = scoped.Patch(ctx, collection, op.ID, op.Data)
			case OpDelete:
				err = scoped.Delete(ctx, collection, op.ID)
			default:
				err = ErrUnknownOp(op.Type)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *gormStore) Close() error {
	return s.db.Close()
}

// txDatabase adapts a transaction handle to the db.Database interface so the
// store's own methods can run inside BatchWrite's transaction.
type txDatabase struct {
	tx *gorm.DB
}

func (t txDatabase) DB() (*gorm.DB, error)        { return t.tx, nil }
func (t txDatabase) Ping(_ context.Context) error { return nil }
func (t txDatabase) Close() error                 { return nil }
