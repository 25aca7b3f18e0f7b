package adapter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/realmorph/datakit/connectivity"
	"github.com/realmorph/datakit/docstore"
	"github.com/realmorph/datakit/kvstore"
	"github.com/realmorph/datakit/logger"
	"github.com/realmorph/datakit/routine"
	"github.com/realmorph/datakit/sched"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// defaultSearchField is the field a bare search term matches against when
// no "field:term" prefix is given.
const defaultSearchField = "name"

// documentAdapter implements DataAdapter over a local document store.
// Endpoints map to collections; there is no HTTP involved, so the response
// cache is unnecessary and cache controls are accepted as no-ops.
type documentAdapter struct {
	logger  logger.Logger
	store   docstore.Store
	monitor connectivity.Monitor
	queue   *offlineQueue

	mu  sync.RWMutex
	cfg *Config

	queueing    atomic.Bool
	closed      atomic.Bool
	unsubscribe func()
	scheduler   sched.Scheduler
	now         func() time.Time
}

// NewDocument creates an adapter backed by a document store. kv persists the
// offline queue; a nil kv falls back to process-local memory. The adapter
// does not own the store: closing the adapter leaves cfg.Documents open for
// whoever created it.
func NewDocument(log logger.Logger, cfg *Config, kv kvstore.Store, monitor connectivity.Monitor) (DataAdapter, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	} else {
		cfg = cfg.MergeDefaults()
	}
	if err := cfg.ValidateDocument(); err != nil {
		return nil, err
	}
	if kv == nil {
		kv = kvstore.NewMemory()
	}
	if monitor == nil {
		monitor = connectivity.NewMonitor(log, true)
	}

	a := &documentAdapter{
		logger:  log,
		store:   cfg.Documents,
		monitor: monitor,
		queue:   newOfflineQueue(log, kv, cfg.Namespace, cfg.Replay),
		cfg:     cfg,
		now:     time.Now,
	}
	a.queueing.Store(!cfg.DisableOffline)

	a.watchConnectivity()
	if err := a.startSchedule(cfg.Replay.SyncSchedule); err != nil {
		return nil, err
	}

	return a, nil
}

// watchConnectivity replays the offline queue whenever the monitor reports
// the store's backing service reachable again.
func (a *documentAdapter) watchConnectivity() {
	events, cancel := a.monitor.Subscribe()
	a.unsubscribe = cancel

	routine.GoNamed(a.logger, "document-adapter-connectivity", func() {
		for event := range events {
			if event != connectivity.EventOnline {
				continue
			}
			if _, err := a.SyncOffline(context.Background()); err != nil {
				a.logger.Error("offline sync after reconnect failed", zap.Error(err))
			}
		}
	})
}

func (a *documentAdapter) startSchedule(spec string) error {
	if spec == "" {
		return nil
	}
	a.scheduler = sched.New(a.logger)
	err := a.scheduler.Add("offline-sync", spec, func(ctx context.Context) error {
		if !a.monitor.Online() {
			return nil
		}
		_, err := a.SyncOffline(ctx)
		return err
	})
	if err != nil {
		return err
	}
	a.scheduler.Start()
	return nil
}

func (a *documentAdapter) config() *Config {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cfg
}

func (a *documentAdapter) envelope(data any, status int, message string) *Response {
	return &Response{
		Data: data,
		Meta: Meta{
			Status:    status,
			Message:   message,
			Timestamp: a.now().UnixMilli(),
		},
	}
}

func (a *documentAdapter) offlineWrite() bool {
	return !a.monitor.Online() && a.queueing.Load()
}

func (a *documentAdapter) Get(ctx context.Context, endpoint, id string, opts *RequestOptions) (*Response, error) {
	if a.closed.Load() {
		return nil, ErrClosed
	}
	doc, err := a.store.Get(ctx, endpoint, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return a.envelope(nil, http.StatusNotFound, "Not Found"), nil
	}
	if err != nil {
		return nil, err
	}
	return a.envelope(Document(doc), http.StatusOK, ""), nil
}

// toQuery translates list params into a store query. A search term of the
// form "field:term" targets that field, otherwise defaultSearchField.
func toQuery(params *QueryParams) docstore.Query {
	q := docstore.Query{}
	if params == nil {
		return q
	}
	q.Filters = params.Filters
	if params.Search != "" {
		field, term, found := strings.Cut(params.Search, ":")
		if !found || field == "" {
			field, term = defaultSearchField, params.Search
		}
		q.SearchField = field
		q.SearchTerm = term
	}
	if params.Sort != "" {
		q.OrderBy = params.Sort
		q.Descending = params.SortDirection == SortDesc
	}
	q.Offset, q.Limit = params.effectiveWindow()
	return q
}

func (a *documentAdapter) List(ctx context.Context, endpoint string, params *QueryParams, opts *RequestOptions) (*Response, error) {
	if a.closed.Load() {
		return nil, ErrClosed
	}
	q := toQuery(params)
	docs, err := a.store.Query(ctx, endpoint, q)
	if err != nil {
		return nil, err
	}

	items := make([]Document, len(docs))
	for i, d := range docs {
		items[i] = Document(d)
	}
	resp := a.envelope(items, http.StatusOK, "")

	if params.paged() {
		total, err := a.store.Count(ctx, endpoint, q)
		if err != nil {
			return nil, err
		}
		resp.Meta.Pagination = buildPagination(params, total)
	}
	return resp, nil
}

func (a *documentAdapter) deferOffline(ctx context.Context, op Operation, endpoint, id string, data Document) (*Response, error) {
	pending := PendingOperation{Type: op, Endpoint: endpoint, DocID: id, Data: data}
	if _, err := a.queue.enqueue(ctx, pending); err != nil {
		return nil, err
	}
	var ack any
	if data != nil {
		ack = data
	}
	return a.envelope(ack, http.StatusAccepted, "queued for sync"), nil
}

func (a *documentAdapter) Create(ctx context.Context, endpoint string, data Document, opts *RequestOptions) (*Response, error) {
	if a.closed.Load() {
		return nil, ErrClosed
	}
	doc := make(Document, len(data)+3)
	for k, v := range data {
		doc[k] = v
	}
	now := a.now()
	id, _ := doc["id"].(string)
	if id == "" {
		id = tempID(now)
		doc["id"] = id
	}
	doc["createdAt"] = now.UnixMilli()
	doc["updatedAt"] = now.UnixMilli()

	if a.offlineWrite() {
		return a.deferOffline(ctx, OpCreate, endpoint, id, doc)
	}
	if err := a.store.Insert(ctx, endpoint, id, doc); err != nil {
		return nil, err
	}
	return a.envelope(doc, http.StatusCreated, ""), nil
}

func (a *documentAdapter) Update(ctx context.Context, endpoint, id string, data Document, opts *RequestOptions) (*Response, error) {
	return a.mutate(ctx, OpUpdate, endpoint, id, data)
}

func (a *documentAdapter) Patch(ctx context.Context, endpoint, id string, data Document, opts *RequestOptions) (*Response, error) {
	return a.mutate(ctx, OpPatch, endpoint, id, data)
}

func (a *documentAdapter) mutate(ctx context.Context, op Operation, endpoint, id string, data Document) (*Response, error) {
	if a.closed.Load() {
		return nil, ErrClosed
	}
	doc := make(Document, len(data)+2)
	for k, v := range data {
		doc[k] = v
	}
	doc["updatedAt"] = a.now().UnixMilli()
	if doc["id"] == nil && op == OpUpdate {
		doc["id"] = id
	}

	if a.offlineWrite() {
		return a.deferOffline(ctx, op, endpoint, id, doc)
	}

	var err error
	if op == OpPatch {
		err = a.store.Patch(ctx, endpoint, id, doc)
	} else {
		err = a.store.Update(ctx, endpoint, id, doc)
	}
	if errors.Is(err, docstore.ErrNotFound) {
		return a.envelope(nil, http.StatusNotFound, "Not Found"), nil
	}
	if err != nil {
		return nil, err
	}

	stored, err := a.store.Get(ctx, endpoint, id)
	if err != nil {
		return nil, err
	}
	return a.envelope(Document(stored), http.StatusOK, ""), nil
}

func (a *documentAdapter) Remove(ctx context.Context, endpoint, id string, opts *RequestOptions) (*Response, error) {
	if a.closed.Load() {
		return nil, ErrClosed
	}
	if a.offlineWrite() {
		return a.deferOffline(ctx, OpRemove, endpoint, id, nil)
	}
	err := a.store.Delete(ctx, endpoint, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return a.envelope(nil, http.StatusNotFound, "Not Found"), nil
	}
	if err != nil {
		return nil, err
	}
	return a.envelope(nil, http.StatusNoContent, ""), nil
}

func (a *documentAdapter) BatchGet(ctx context.Context, endpoint string, ids []string, opts *RequestOptions) (*Response, error) {
	if a.closed.Load() {
		return nil, ErrClosed
	}
	cfg := a.config()

	results := make([]any, len(ids))
	failures := make([]string, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	for i := range ids {
		i := i
		g.Go(func() error {
			resp, err := a.Get(gctx, endpoint, ids[i], opts)
			if err != nil {
				if cfg.PartialBatch {
					failures[i] = err.Error()
					return nil
				}
				return err
			}
			results[i] = resp.Data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	resp := a.envelope(results, http.StatusOK, "")
	var messages []string
	for _, f := range failures {
		if f != "" {
			messages = append(messages, f)
		}
	}
	if len(messages) > 0 {
		resp.Meta.Message = fmt.Sprintf("%d items failed: %s", len(messages), strings.Join(messages, "; "))
	}
	return resp, nil
}

func (a *documentAdapter) BatchCreate(ctx context.Context, endpoint string, items []Document, opts *RequestOptions) (*Response, error) {
	if a.closed.Load() {
		return nil, ErrClosed
	}
	now := a.now()
	docs := make([]Document, len(items))
	ops := make([]docstore.WriteOp, len(items))
	for i, item := range items {
		doc := make(Document, len(item)+3)
		for k, v := range item {
			doc[k] = v
		}
		id, _ := doc["id"].(string)
		if id == "" {
			id = tempID(now)
			doc["id"] = id
		}
		doc["createdAt"] = now.UnixMilli()
		doc["updatedAt"] = now.UnixMilli()
		docs[i] = doc
		ops[i] = docstore.WriteOp{Type: docstore.OpInsert, ID: id, Data: doc}
	}

	if a.offlineWrite() {
		for i, doc := range docs {
			if _, err := a.deferOffline(ctx, OpCreate, endpoint, ops[i].ID, doc); err != nil {
				return nil, err
			}
		}
		return a.envelope(docs, http.StatusAccepted, "queued for sync"), nil
	}

	if err := a.store.BatchWrite(ctx, endpoint, ops); err != nil {
		return nil, err
	}
	return a.envelope(docs, http.StatusOK, ""), nil
}

func (a *documentAdapter) BatchUpdate(ctx context.Context, endpoint string, items []Document, opts *RequestOptions) (*Response, error) {
	if a.closed.Load() {
		return nil, ErrClosed
	}
	now := a.now()
	docs := make([]Document, len(items))
	ops := make([]docstore.WriteOp, len(items))
	for i, item := range items {
		doc := make(Document, len(item)+1)
		for k, v := range item {
			doc[k] = v
		}
		doc["updatedAt"] = now.UnixMilli()
		docs[i] = doc
		ops[i] = docstore.WriteOp{Type: docstore.OpUpdate, ID: itemID(doc), Data: doc}
	}

	if a.offlineWrite() {
		for i, doc := range docs {
			if _, err := a.deferOffline(ctx, OpUpdate, endpoint, ops[i].ID, doc); err != nil {
				return nil, err
			}
		}
		return a.envelope(docs, http.StatusAccepted, "queued for sync"), nil
	}

	if err := a.store.BatchWrite(ctx, endpoint, ops); err != nil {
		return nil, err
	}
	return a.envelope(docs, http.StatusOK, ""), nil
}

func (a *documentAdapter) BatchRemove(ctx context.Context, endpoint string, ids []string, opts *RequestOptions) (*Response, error) {
	if a.closed.Load() {
		return nil, ErrClosed
	}
	if a.offlineWrite() {
		for _, id := range ids {
			if _, err := a.deferOffline(ctx, OpRemove, endpoint, id, nil); err != nil {
				return nil, err
			}
		}
		return a.envelope(nil, http.StatusAccepted, "queued for sync"), nil
	}

	ops := make([]docstore.WriteOp, len(ids))
	for i, id := range ids {
		ops[i] = docstore.WriteOp{Type: docstore.OpDelete, ID: id}
	}
	if err := a.store.BatchWrite(ctx, endpoint, ops); err != nil {
		return nil, err
	}
	return a.envelope(nil, http.StatusNoContent, ""), nil
}

// ClearCache is a no-op: reads go straight to the store.
func (a *documentAdapter) ClearCache(ctx context.Context, endpoint string) error {
	return nil
}

// InvalidateCache is a no-op: reads go straight to the store.
func (a *documentAdapter) InvalidateCache(ctx context.Context, endpoint, id string) error {
	return nil
}

func (a *documentAdapter) IsOnline() bool {
	return a.monitor.Online()
}

func (a *documentAdapter) SyncOffline(ctx context.Context) (int, error) {
	return a.queue.sync(ctx, a.replayOp)
}

func (a *documentAdapter) replayOp(ctx context.Context, op PendingOperation) error {
	var err error
	switch op.Type {
	case OpCreate:
		err = a.store.Insert(ctx, op.Endpoint, op.DocID, docstore.Document(op.Data))
	case OpUpdate:
		err = a.store.Update(ctx, op.Endpoint, op.DocID, docstore.Document(op.Data))
	case OpPatch:
		err = a.store.Patch(ctx, op.Endpoint, op.DocID, docstore.Document(op.Data))
	case OpRemove:
		err = a.store.Delete(ctx, op.Endpoint, op.DocID)
	default:
		a.logger.Error("dropping unknown queued operation", zap.String("op", string(op.Type)))
		return nil
	}
	if errors.Is(err, docstore.ErrNotFound) {
		return nil
	}
	return err
}

func (a *documentAdapter) EnableOfflineMode(enabled bool) {
	a.queueing.Store(enabled)
}

func (a *documentAdapter) Configure(cfg *Config) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	merged := a.cfg.merge(cfg)
	if err := merged.ValidateDocument(); err != nil {
		return err
	}
	a.cfg = merged
	if merged.Documents != nil {
		a.store = merged.Documents
	}
	return nil
}

// Close detaches the adapter from its triggers. The document store stays
// open; its creator owns its lifetime.
func (a *documentAdapter) Close() error {
	if !a.closed.CompareAndSwap(false, true) {
		return nil
	}
	if a.unsubscribe != nil {
		a.unsubscribe()
	}
	if a.scheduler != nil {
		a.scheduler.Close()
	}
	return nil
}
