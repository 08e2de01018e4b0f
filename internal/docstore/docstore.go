// Package docstore defines the document store contract used by the signup
// ledger and the live views, and a Redis-backed implementation of it.
//
// Paths alternate collection and document segments, e.g.
// "events/{eventId}/volunteerTasks/{taskId}". A document is a flat map of
// string fields; typed decoding happens in the models package.
package docstore

import (
	"context"
	"strings"
)

// Fields holds the raw field values of one document.
type Fields map[string]string

// Document is a single stored document.
type Document struct {
	ID     string
	Path   string
	Fields Fields
}

// Snapshot is the full current membership of a subscribed collection, or the
// current state of a subscribed document (zero or one entry in Docs).
//
// A snapshot with a non-nil Err reports a stream failure; Docs is empty and
// consumers keep their last good value.
type Snapshot struct {
	Path string
	Docs []Document
	Err  error
}

// IDs returns the document ids of the snapshot in delivery order.
func (s Snapshot) IDs() []string {
	ids := make([]string, 0, len(s.Docs))
	for _, d := range s.Docs {
		ids = append(ids, d.ID)
	}
	return ids
}

// Query selects a collection and the numeric field it is ordered by.
// Documents with equal (or missing) order values are ordered by id.
type Query struct {
	Collection string
	OrderBy    string
	Descending bool
}

// Listener receives snapshots. It is never called synchronously from
// Subscribe, and calls for one subscription never overlap.
type Listener func(Snapshot)

// Subscription is a revocable live snapshot stream. Remove is idempotent and
// does not wait for an in-flight delivery to finish.
type Subscription interface {
	Remove()
}

// Tx is the view of a guarded transaction. Reads observe the state at the
// start of the attempt; writes are buffered and committed atomically.
type Tx interface {
	Get(path string) (Document, bool, error)
	Set(path string, fields Fields)
	Update(path string, fields Fields)
	Delete(path string)
}

type Reader interface {
	Get(ctx context.Context, path string) (Document, error)
	List(ctx context.Context, q Query) ([]Document, error)
}

type Writer interface {
	Add(ctx context.Context, collection string, fields Fields) (string, error)
	Set(ctx context.Context, path string, fields Fields, merge bool) error
	Delete(ctx context.Context, path string) error
}

type Transactor interface {
	// Transact runs body against the documents of readSet and commits its
	// writes only if none of them changed concurrently, re-running body on
	// conflict. An error returned by body aborts without writes and is
	// returned unchanged.
	Transact(ctx context.Context, readSet []string, body func(tx Tx) error) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, q Query, fn Listener) (Subscription, error)
	SubscribeDocument(ctx context.Context, path string, fn Listener) (Subscription, error)
}

type Store interface {
	Reader
	Writer
	Transactor
	Subscriber
}

// Join builds a path from its segments.
func Join(parts ...string) string {
	return strings.Join(parts, "/")
}

// Split returns the parent collection and id of a document path.
func Split(path string) (collection, id string) {
	i := strings.LastIndex(path, "/")
	if i < 0 {
		return "", path
	}
	return path[:i], path[i+1:]
}
