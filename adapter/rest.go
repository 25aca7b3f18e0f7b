package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/realmorph/datakit/connectivity"
	"github.com/realmorph/datakit/kvstore"
	"github.com/realmorph/datakit/logger"
	"github.com/realmorph/datakit/routine"
	"github.com/realmorph/datakit/sched"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// methodOverrideHeader disambiguates update/delete intent on the generic
// batch endpoint, which only accepts POST.
const methodOverrideHeader = "X-HTTP-Method-Override"

// restAdapter implements DataAdapter over a JSON REST backend.
type restAdapter struct {
	logger  logger.Logger
	client  *http.Client
	monitor connectivity.Monitor
	cache   *responseCache
	queue   *offlineQueue
	flights singleflight.Group

	mu  sync.RWMutex
	cfg *Config

	queueing    atomic.Bool
	closed      atomic.Bool
	unsubscribe func()
	scheduler   sched.Scheduler
	now         func() time.Time
}

// NewRest creates a REST adapter.
//
// store persists the response cache and the offline queue; a nil store falls
// back to process-local memory. monitor supplies the connectivity signal; a
// nil monitor assumes the backend is always reachable until told otherwise.
func NewRest(log logger.Logger, cfg *Config, store kvstore.Store, monitor connectivity.Monitor) (DataAdapter, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	} else {
		cfg = cfg.MergeDefaults()
	}
	if err := cfg.ValidateRest(); err != nil {
		return nil, err
	}
	if store == nil {
		store = kvstore.NewMemory()
	}
	if monitor == nil {
		monitor = connectivity.NewMonitor(log, true)
	}

	a := &restAdapter{
		logger:  log,
		client:  &http.Client{},
		monitor: monitor,
		cache:   newResponseCache(log, store, cfg.Namespace, cfg.CacheTTL),
		queue:   newOfflineQueue(log, store, cfg.Namespace, cfg.Replay),
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
// the backend reachable again.
func (a *restAdapter) watchConnectivity() {
	events, cancel := a.monitor.Subscribe()
	a.unsubscribe = cancel

	routine.GoNamed(a.logger, "rest-adapter-connectivity", func() {
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

func (a *restAdapter) startSchedule(spec string) error {
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

func (a *restAdapter) config() *Config {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cfg
}

// do issues one HTTP request and returns the status code and body.
// A deadline hit on the per-call timeout surfaces as ErrTimeout.
func (a *restAdapter) do(ctx context.Context, method, path string, query url.Values, body any, opts *RequestOptions) (int, []byte, error) {
	cfg := a.config()

	endpoint := strings.TrimSuffix(cfg.BaseURL, "/") + "/" + strings.TrimPrefix(path, "/")
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, nil, ErrEncode(err)
		}
		reader = bytes.NewReader(raw)
	}

	callCtx, cancel := context.WithTimeout(ctx, opts.timeout(cfg.Timeout))
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, method, endpoint, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range cfg.Headers {
		req.Header.Set(k, v)
	}
	if opts != nil {
		for k, v := range opts.Headers {
			req.Header.Set(k, v)
		}
	}

	resp, err := a.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return 0, nil, fmt.Errorf("%w: %s %s", ErrTimeout, method, path)
		}
		return 0, nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, raw, nil
}

// handleError normalizes a non-2xx response into a BackendError, decoding
// {message, code} bodies when the backend provides them.
func (a *restAdapter) handleError(status int, body []byte) error {
	be := &BackendError{Status: status, Message: http.StatusText(status)}
	var parsed struct {
		Message string `json:"message"`
		Code    string `json:"code"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		if parsed.Message != "" {
			be.Message = parsed.Message
		} else if parsed.Error != "" {
			be.Message = parsed.Error
		}
		be.Code = parsed.Code
	}
	return be
}

func (a *restAdapter) envelope(data any, status int, message string) *Response {
	return &Response{
		Data: data,
		Meta: Meta{
			Status:    status,
			Message:   message,
			Timestamp: a.now().UnixMilli(),
		},
	}
}

func decodeDocument(raw []byte) (Document, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (a *restAdapter) Get(ctx context.Context, endpoint, id string, opts *RequestOptions) (*Response, error) {
	if a.closed.Load() {
		return nil, ErrClosed
	}
	cfg := a.config()
	mode := opts.cacheMode()
	key := cacheKey(cfg.Namespace, endpoint, OpGet, id)

	if !mode.bypassesRead() {
		if cached := a.cache.get(ctx, key); cached != nil {
			return cached, nil
		}
	}
	if mode == CacheOnly {
		return nil, ErrCacheMiss
	}
	if !a.monitor.Online() && a.queueing.Load() {
		return nil, fmt.Errorf("%w: %s/%s", ErrOfflineUnavailable, endpoint, id)
	}

	// concurrent identical reads share one request
	result, err, _ := a.flights.Do(key, func() (any, error) {
		status, body, err := a.do(ctx, http.MethodGet, endpoint+"/"+id, opts.queryValues(), nil, opts)
		if err != nil {
			return nil, err
		}
		if status == http.StatusNotFound {
			return a.envelope(nil, http.StatusNotFound, "Not Found"), nil
		}
		if status < 200 || status >= 300 {
			return nil, a.handleError(status, body)
		}
		doc, err := decodeDocument(body)
		if err != nil {
			return nil, err
		}
		resp := a.envelope(doc, http.StatusOK, "")
		if !mode.bypassesWrite() && !resp.NotFound() {
			a.cache.put(ctx, key, resp)
		}
		return resp, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*Response), nil
}

// parseListBody accepts either a bare JSON array or an object wrapping the
// items under "data" or "items", with an optional "total".
func parseListBody(raw []byte) ([]Document, int64, error) {
	var items []Document
	if err := json.Unmarshal(raw, &items); err == nil {
		return items, int64(len(items)), nil
	}

	var wrapped struct {
		Data  []Document `json:"data"`
		Items []Document `json:"items"`
		Total *int64     `json:"total"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, 0, err
	}
	items = wrapped.Data
	if items == nil {
		items = wrapped.Items
	}
	total := int64(len(items))
	if wrapped.Total != nil {
		total = *wrapped.Total
	}
	return items, total, nil
}

func (a *restAdapter) List(ctx context.Context, endpoint string, params *QueryParams, opts *RequestOptions) (*Response, error) {
	if a.closed.Load() {
		return nil, ErrClosed
	}
	if !a.monitor.Online() && a.queueing.Load() {
		return nil, fmt.Errorf("%w: %s", ErrOfflineUnavailable, endpoint)
	}

	status, body, err := a.do(ctx, http.MethodGet, endpoint, params.encode(opts.queryValues()), nil, opts)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, a.handleError(status, body)
	}

	items, total, err := parseListBody(body)
	if err != nil {
		return nil, err
	}

	resp := a.envelope(items, http.StatusOK, "")
	if params.paged() {
		resp.Meta.Pagination = buildPagination(params, total)
	}
	return resp, nil
}

func buildPagination(params *QueryParams, total int64) *Pagination {
	page := params.Page
	if page < 1 {
		page = 1
	}
	size := params.PageSize
	if size <= 0 {
		size = defaultPageSize
	}
	pages := int((total + int64(size) - 1) / int64(size))
	return &Pagination{Page: page, PageSize: size, Total: total, Pages: pages}
}

// stampCreate returns a copy of data carrying fresh createdAt/updatedAt.
func (a *restAdapter) stampCreate(data Document) Document {
	out := make(Document, len(data)+2)
	for k, v := range data {
		out[k] = v
	}
	now := a.now().UnixMilli()
	out["createdAt"] = now
	out["updatedAt"] = now
	return out
}

// stampUpdate returns a copy of data carrying a fresh updatedAt.
func (a *restAdapter) stampUpdate(data Document) Document {
	out := make(Document, len(data)+1)
	for k, v := range data {
		out[k] = v
	}
	out["updatedAt"] = a.now().UnixMilli()
	return out
}

// deferOffline queues a mutating call and acknowledges it with a 202
// envelope. Create acknowledgements carry a synthetic temporary id that is
// replaced when the operation replays.
func (a *restAdapter) deferOffline(ctx context.Context, op Operation, endpoint, id string, data Document) (*Response, error) {
	pending := PendingOperation{Type: op, Endpoint: endpoint, DocID: id, Data: data}
	if _, err := a.queue.enqueue(ctx, pending); err != nil {
		return nil, err
	}

	var ack any
	if data != nil {
		echo := make(Document, len(data)+1)
		for k, v := range data {
			echo[k] = v
		}
		if op == OpCreate {
			echo["id"] = tempID(a.now())
		}
		ack = echo
	}
	return a.envelope(ack, http.StatusAccepted, "queued for sync"), nil
}

// tempID returns a synthetic placeholder id for offline acknowledgements.
// The uuid suffix keeps ids minted within the same millisecond distinct.
func tempID(now time.Time) string {
	return fmt.Sprintf("temp-%d-%s", now.UnixMilli(), uuid.NewString()[:8])
}

// offlineWrite reports whether a mutating call must be queued instead of
// attempted. With offline mode disabled the call proceeds and fails
// naturally.
func (a *restAdapter) offlineWrite() bool {
	return !a.monitor.Online() && a.queueing.Load()
}

func (a *restAdapter) Create(ctx context.Context, endpoint string, data Document, opts *RequestOptions) (*Response, error) {
	if a.closed.Load() {
		return nil, ErrClosed
	}
	stamped := a.stampCreate(data)
	if a.offlineWrite() {
		return a.deferOffline(ctx, OpCreate, endpoint, "", stamped)
	}

	status, body, err := a.do(ctx, http.MethodPost, endpoint, opts.queryValues(), stamped, opts)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, a.handleError(status, body)
	}
	doc, err := decodeDocument(body)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		doc = stamped
	}
	if err := a.cache.clear(ctx, endpoint); err != nil {
		a.logger.Warn("cache clear after create failed", zap.String("endpoint", endpoint), zap.Error(err))
	}
	return a.envelope(doc, status, ""), nil
}

func (a *restAdapter) Update(ctx context.Context, endpoint, id string, data Document, opts *RequestOptions) (*Response, error) {
	return a.mutate(ctx, OpUpdate, http.MethodPut, endpoint, id, data, opts)
}

func (a *restAdapter) Patch(ctx context.Context, endpoint, id string, data Document, opts *RequestOptions) (*Response, error) {
	return a.mutate(ctx, OpPatch, http.MethodPatch, endpoint, id, data, opts)
}

func (a *restAdapter) mutate(ctx context.Context, op Operation, method, endpoint, id string, data Document, opts *RequestOptions) (*Response, error) {
	if a.closed.Load() {
		return nil, ErrClosed
	}
	stamped := a.stampUpdate(data)
	if a.offlineWrite() {
		return a.deferOffline(ctx, op, endpoint, id, stamped)
	}

	status, body, err := a.do(ctx, method, endpoint+"/"+id, opts.queryValues(), stamped, opts)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return a.envelope(nil, http.StatusNotFound, "Not Found"), nil
	}
	if status < 200 || status >= 300 {
		return nil, a.handleError(status, body)
	}
	doc, err := decodeDocument(body)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		doc = stamped
	}
	if err := a.cache.invalidate(ctx, endpoint, id); err != nil {
		a.logger.Warn("cache invalidation failed", zap.String("endpoint", endpoint), zap.Error(err))
	}
	return a.envelope(doc, http.StatusOK, ""), nil
}

func (a *restAdapter) Remove(ctx context.Context, endpoint, id string, opts *RequestOptions) (*Response, error) {
	if a.closed.Load() {
		return nil, ErrClosed
	}
	if a.offlineWrite() {
		return a.deferOffline(ctx, OpRemove, endpoint, id, nil)
	}

	status, body, err := a.do(ctx, http.MethodDelete, endpoint+"/"+id, opts.queryValues(), nil, opts)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return a.envelope(nil, http.StatusNotFound, "Not Found"), nil
	}
	if status < 200 || status >= 300 {
		return nil, a.handleError(status, body)
	}
	if err := a.cache.invalidate(ctx, endpoint, id); err != nil {
		a.logger.Warn("cache invalidation failed", zap.String("endpoint", endpoint), zap.Error(err))
	}
	return a.envelope(nil, http.StatusNoContent, ""), nil
}

// tryNativeBatch posts to the backend's batch endpoint. The returned bool
// reports whether the backend accepted the batch; any failure selects the
// per-item fallback path instead.
func (a *restAdapter) tryNativeBatch(ctx context.Context, endpoint, override string, payload any, opts *RequestOptions) ([]Document, bool) {
	batchOpts := opts
	if override != "" {
		merged := RequestOptions{}
		if opts != nil {
			merged = *opts
		}
		headers := make(map[string]string, len(merged.Headers)+1)
		for k, v := range merged.Headers {
			headers[k] = v
		}
		headers[methodOverrideHeader] = override
		merged.Headers = headers
		batchOpts = &merged
	}

	status, body, err := a.do(ctx, http.MethodPost, endpoint+"/batch", nil, payload, batchOpts)
	if err != nil || status < 200 || status >= 300 {
		a.logger.Debug("native batch unavailable, falling back",
			zap.String("endpoint", endpoint),
			zap.Int("status", status),
			zap.Error(err),
		)
		return nil, false
	}
	items, _, err := parseListBody(body)
	if err != nil {
		return nil, false
	}
	return items, true
}

// fallbackBatch runs fn once per item concurrently, preserving input order.
// With PartialBatch enabled a failing item yields a nil slot instead of
// failing the aggregate.
func (a *restAdapter) fallbackBatch(ctx context.Context, n int, partial bool, fn func(ctx context.Context, i int) (any, error)) ([]any, []string, error) {
	results := make([]any, n)
	failures := make([]string, n)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			out, err := fn(gctx, i)
			if err != nil {
				if partial {
					failures[i] = err.Error()
					return nil
				}
				return err
			}
			results[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var messages []string
	for _, f := range failures {
		if f != "" {
			messages = append(messages, f)
		}
	}
	return results, messages, nil
}

func (a *restAdapter) batchEnvelope(results []any, messages []string) *Response {
	resp := a.envelope(results, http.StatusOK, "")
	if len(messages) > 0 {
		resp.Meta.Message = fmt.Sprintf("%d items failed: %s", len(messages), strings.Join(messages, "; "))
	}
	return resp
}

func (a *restAdapter) BatchGet(ctx context.Context, endpoint string, ids []string, opts *RequestOptions) (*Response, error) {
	if a.closed.Load() {
		return nil, ErrClosed
	}
	cfg := a.config()

	if a.monitor.Online() {
		payload := Document{"operation": "get", "ids": ids}
		if items, ok := a.tryNativeBatch(ctx, endpoint, "", payload, opts); ok {
			return a.envelope(items, http.StatusOK, ""), nil
		}
	}

	results, messages, err := a.fallbackBatch(ctx, len(ids), cfg.PartialBatch, func(ctx context.Context, i int) (any, error) {
		resp, err := a.Get(ctx, endpoint, ids[i], opts)
		if err != nil {
			return nil, err
		}
		return resp.Data, nil
	})
	if err != nil {
		return nil, err
	}
	return a.batchEnvelope(results, messages), nil
}

func (a *restAdapter) BatchCreate(ctx context.Context, endpoint string, items []Document, opts *RequestOptions) (*Response, error) {
	if a.closed.Load() {
		return nil, ErrClosed
	}
	cfg := a.config()

	if a.offlineWrite() {
		results := make([]any, 0, len(items))
		for _, item := range items {
			ack, err := a.deferOffline(ctx, OpCreate, endpoint, "", a.stampCreate(item))
			if err != nil {
				return nil, err
			}
			results = append(results, ack.Data)
		}
		resp := a.envelope(results, http.StatusAccepted, "queued for sync")
		return resp, nil
	}

	payload := Document{"operation": "create", "items": items}
	if batched, ok := a.tryNativeBatch(ctx, endpoint, "", payload, opts); ok {
		if err := a.cache.clear(ctx, endpoint); err != nil {
			a.logger.Warn("cache clear after batch create failed", zap.String("endpoint", endpoint), zap.Error(err))
		}
		return a.envelope(batched, http.StatusOK, ""), nil
	}

	results, messages, err := a.fallbackBatch(ctx, len(items), cfg.PartialBatch, func(ctx context.Context, i int) (any, error) {
		resp, err := a.Create(ctx, endpoint, items[i], opts)
		if err != nil {
			return nil, err
		}
		return resp.Data, nil
	})
	if err != nil {
		return nil, err
	}
	return a.batchEnvelope(results, messages), nil
}

func (a *restAdapter) BatchUpdate(ctx context.Context, endpoint string, items []Document, opts *RequestOptions) (*Response, error) {
	if a.closed.Load() {
		return nil, ErrClosed
	}
	cfg := a.config()

	if a.offlineWrite() {
		results := make([]any, 0, len(items))
		for _, item := range items {
			ack, err := a.deferOffline(ctx, OpUpdate, endpoint, itemID(item), a.stampUpdate(item))
			if err != nil {
				return nil, err
			}
			results = append(results, ack.Data)
		}
		return a.envelope(results, http.StatusAccepted, "queued for sync"), nil
	}

	payload := Document{"operation": "update", "items": items}
	if batched, ok := a.tryNativeBatch(ctx, endpoint, http.MethodPut, payload, opts); ok {
		if err := a.cache.clear(ctx, endpoint); err != nil {
			a.logger.Warn("cache clear after batch update failed", zap.String("endpoint", endpoint), zap.Error(err))
		}
		return a.envelope(batched, http.StatusOK, ""), nil
	}

	results, messages, err := a.fallbackBatch(ctx, len(items), cfg.PartialBatch, func(ctx context.Context, i int) (any, error) {
		resp, err := a.Update(ctx, endpoint, itemID(items[i]), items[i], opts)
		if err != nil {
			return nil, err
		}
		return resp.Data, nil
	})
	if err != nil {
		return nil, err
	}
	return a.batchEnvelope(results, messages), nil
}

func itemID(item Document) string {
	if id, ok := item["id"].(string); ok {
		return id
	}
	return ""
}

func (a *restAdapter) BatchRemove(ctx context.Context, endpoint string, ids []string, opts *RequestOptions) (*Response, error) {
	if a.closed.Load() {
		return nil, ErrClosed
	}
	cfg := a.config()

	if a.offlineWrite() {
		for _, id := range ids {
			if _, err := a.deferOffline(ctx, OpRemove, endpoint, id, nil); err != nil {
				return nil, err
			}
		}
		return a.envelope(nil, http.StatusAccepted, "queued for sync"), nil
	}

	payload := Document{"operation": "remove", "ids": ids}
	if _, ok := a.tryNativeBatch(ctx, endpoint, http.MethodDelete, payload, opts); ok {
		if err := a.cache.clear(ctx, endpoint); err != nil {
			a.logger.Warn("cache clear after batch remove failed", zap.String("endpoint", endpoint), zap.Error(err))
		}
		return a.envelope(nil, http.StatusNoContent, ""), nil
	}

	_, messages, err := a.fallbackBatch(ctx, len(ids), cfg.PartialBatch, func(ctx context.Context, i int) (any, error) {
		_, err := a.Remove(ctx, endpoint, ids[i], opts)
		return nil, err
	})
	if err != nil {
		return nil, err
	}
	resp := a.envelope(nil, http.StatusNoContent, "")
	if len(messages) > 0 {
		resp.Meta.Message = fmt.Sprintf("%d items failed: %s", len(messages), strings.Join(messages, "; "))
	}
	return resp, nil
}

func (a *restAdapter) ClearCache(ctx context.Context, endpoint string) error {
	return a.cache.clear(ctx, endpoint)
}

func (a *restAdapter) InvalidateCache(ctx context.Context, endpoint, id string) error {
	return a.cache.invalidate(ctx, endpoint, id)
}

func (a *restAdapter) IsOnline() bool {
	return a.monitor.Online()
}

// SyncOffline replays pending operations oldest-first. A replayed operation
// that fails again is re-queued at the tail; the sync itself only errors on
// queue persistence failures.
func (a *restAdapter) SyncOffline(ctx context.Context) (int, error) {
	return a.queue.sync(ctx, a.replayOp)
}

func (a *restAdapter) replayOp(ctx context.Context, op PendingOperation) error {
	var (
		status int
		body   []byte
		err    error
	)
	switch op.Type {
	case OpCreate:
		status, body, err = a.do(ctx, http.MethodPost, op.Endpoint, nil, op.Data, nil)
	case OpUpdate:
		status, body, err = a.do(ctx, http.MethodPut, op.Endpoint+"/"+op.DocID, nil, op.Data, nil)
	case OpPatch:
		status, body, err = a.do(ctx, http.MethodPatch, op.Endpoint+"/"+op.DocID, nil, op.Data, nil)
	case OpRemove:
		status, body, err = a.do(ctx, http.MethodDelete, op.Endpoint+"/"+op.DocID, nil, nil, nil)
	default:
		// an unknown op can never succeed; drop it rather than loop forever
		a.logger.Error("dropping unknown queued operation", zap.String("op", string(op.Type)))
		return nil
	}
	if err != nil {
		return err
	}
	// a 404 on replay means the record is already gone; treat it as done
	if (status < 200 || status >= 300) && status != http.StatusNotFound {
		return a.handleError(status, body)
	}

	if err := a.cache.invalidate(ctx, op.Endpoint, op.DocID); err != nil {
		a.logger.Warn("cache invalidation after replay failed", zap.String("endpoint", op.Endpoint), zap.Error(err))
	}
	return nil
}

func (a *restAdapter) EnableOfflineMode(enabled bool) {
	a.queueing.Store(enabled)
}

func (a *restAdapter) Configure(cfg *Config) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	merged := a.cfg.merge(cfg)
	if err := merged.ValidateRest(); err != nil {
		return err
	}
	a.cfg = merged
	return nil
}

func (a *restAdapter) Close() error {
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

// queryValues returns the caller's raw query values, tolerating nil options.
func (o *RequestOptions) queryValues() url.Values {
	if o == nil {
		return nil
	}
	return o.Query
}
