package adapter

import (
	"encoding/json"
	"net/http"
)

// Pagination describes the window of a list response.
type Pagination struct {
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
	Total    int64 `json:"total"`
	Pages    int   `json:"pages"`
}

// Meta carries response metadata alongside the payload.
type Meta struct {
	// Status follows HTTP semantics for every backend:
	// 200 success, 202 queued offline, 404 not found
	Status     int         `json:"status"`
	Message    string      `json:"message,omitempty"`
	Timestamp  int64       `json:"timestamp"`
	Pagination *Pagination `json:"pagination,omitempty"`
	Version    string      `json:"version,omitempty"`
}

// Response is the envelope every adapter operation returns.
//
// Data is nil only when Meta.Status reports not-found (404) or an
// acknowledgement without content (202/204).
type Response struct {
	Data any  `json:"data"`
	Meta Meta `json:"meta"`
}

// NotFound reports whether the envelope represents a missing resource.
func (r *Response) NotFound() bool {
	return r.Meta.Status == http.StatusNotFound
}

// Queued reports whether the envelope acknowledges a deferred offline write.
func (r *Response) Queued() bool {
	return r.Meta.Status == http.StatusAccepted
}

// Documents returns the payload as a document slice.
// It returns nil when the payload has another shape.
func (r *Response) Documents() []Document {
	switch v := r.Data.(type) {
	case []Document:
		return v
	case []any:
		docs := make([]Document, 0, len(v))
		for _, item := range v {
			if doc, ok := item.(map[string]any); ok {
				docs = append(docs, doc)
			} else {
				docs = append(docs, nil)
			}
		}
		return docs
	default:
		return nil
	}
}

// DecodeData converts the envelope payload into a typed value by JSON
// round-trip. It is the bridge between the schemaless Document payloads and
// caller-defined structs.
func DecodeData[T any](r *Response) (T, error) {
	var out T
	if r == nil || r.Data == nil {
		return out, nil
	}
	raw, err := json.Marshal(r.Data)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, err
	}
	return out, nil
}
