// internal/remote/remotetest/fake.go
package remotetest

import (
	"context"
	"sync"

	"collectsync-service/internal/pkg/xerrors"
	"collectsync-service/internal/store"
)

// Fake is an in-memory remote.Client for tests: snapshots are injected by
// hand with Deliver, and writes can be forced to fail to simulate a partition.
type Fake struct {
	mu     sync.Mutex
	data   map[string]map[string]store.Document
	subs   map[string][]func(docs []store.Document, err error)
	failed bool

	// Wrote receives every accepted document and Deleted every accepted
	// removal, buffered so tests can observe counts without racing the writer.
	Wrote   chan store.Document
	Deleted chan string
}

func NewFake() *Fake {
	return &Fake{
		data:    make(map[string]map[string]store.Document),
		subs:    make(map[string][]func(docs []store.Document, err error)),
		Wrote:   make(chan store.Document, 128),
		Deleted: make(chan string, 128),
	}
}

// SetOffline makes every write fail until restored.
func (f *Fake) SetOffline(offline bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed = offline
}

func (f *Fake) ReadCollection(_ context.Context, collection string) ([]store.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failed {
		return nil, xerrors.ErrRemoteUnavailable
	}
	return f.snapshotLocked(collection), nil
}

func (f *Fake) WriteDocument(_ context.Context, collection string, doc store.Document) error {
	f.mu.Lock()
	if f.failed {
		f.mu.Unlock()
		return xerrors.ErrRemoteUnavailable
	}
	if f.data[collection] == nil {
		f.data[collection] = make(map[string]store.Document)
	}
	f.data[collection][doc.ID] = doc
	f.mu.Unlock()

	select {
	case f.Wrote <- doc:
	default:
	}
	return nil
}

func (f *Fake) DeleteDocument(_ context.Context, collection, id string) error {
	f.mu.Lock()
	if f.failed {
		f.mu.Unlock()
		return xerrors.ErrRemoteUnavailable
	}
	delete(f.data[collection], id)
	f.mu.Unlock()

	select {
	case f.Deleted <- id:
	default:
	}
	return nil
}

func (f *Fake) Subscribe(_ context.Context, collection string, deliver func(docs []store.Document, err error)) (func(), error) {
	f.mu.Lock()
	f.subs[collection] = append(f.subs[collection], deliver)
	f.mu.Unlock()
	return func() {}, nil
}

func (f *Fake) Close() error { return nil }

// Deliver injects a snapshot to every subscriber of the collection, as if the
// backend had emitted it.
func (f *Fake) Deliver(collection string, docs []store.Document) {
	f.mu.Lock()
	if f.data[collection] == nil {
		f.data[collection] = make(map[string]store.Document)
	}
	for _, d := range docs {
		f.data[collection][d.ID] = d
	}
	targets := f.targetsLocked(collection)
	f.mu.Unlock()

	for _, deliver := range targets {
		deliver(docs, nil)
	}
}

// DeliverCurrent pushes the fake's own state of the collection to subscribers.
func (f *Fake) DeliverCurrent(collection string) {
	f.mu.Lock()
	docs := f.snapshotLocked(collection)
	targets := f.targetsLocked(collection)
	f.mu.Unlock()

	for _, deliver := range targets {
		deliver(docs, nil)
	}
}

// DeliverError reports the live subscription as unhealthy, as a backend whose
// stream just dropped would.
func (f *Fake) DeliverError(collection string, err error) {
	f.mu.Lock()
	targets := f.targetsLocked(collection)
	f.mu.Unlock()

	for _, deliver := range targets {
		deliver(nil, err)
	}
}

// SubscriberCount reports how many live subscriptions exist for a collection.
func (f *Fake) SubscriberCount(collection string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs[collection])
}

func (f *Fake) targetsLocked(collection string) []func(docs []store.Document, err error) {
	targets := make([]func(docs []store.Document, err error), len(f.subs[collection]))
	copy(targets, f.subs[collection])
	return targets
}

func (f *Fake) snapshotLocked(collection string) []store.Document {
	docs := make([]store.Document, 0, len(f.data[collection]))
	for _, d := range f.data[collection] {
		docs = append(docs, d)
	}
	return docs
}
