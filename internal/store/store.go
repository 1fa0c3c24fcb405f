// internal/store/store.go
package store

import (
	"encoding/json"
	"sync"

	"collectsync-service/internal/events"

	"go.uber.org/zap"
)

// Guard validates a mutation of an existing document before it is applied.
// old is the zero Document when the id is new to the collection.
type Guard func(old Document, hadOld bool, next Document) error

// PutHook observes local writes after they are applied, used by the sync
// engine to queue upstream pushes. Remote snapshot installs do not fire hooks.
type PutHook func(collection string, doc Document)

// DeleteHook observes local deletions after they are applied, used by the
// sync engine to queue upstream tombstones.
type DeleteHook func(collection, id string)

// Store is the local durable store: an in-process mirror of every entity
// collection, persisted through a Substrate and fronting all UI reads and
// writes. Reads never touch the network; writes are visible immediately.
type Store struct {
	substrate Substrate
	bus       *events.Bus
	logger    *zap.Logger

	mu          sync.Mutex
	collections map[string]*collectionState
	guards      map[string]Guard

	hookMu      sync.RWMutex
	hooks       []PutHook
	deleteHooks []DeleteHook
}

type collectionState struct {
	mu    sync.Mutex
	docs  []Document
	index map[string]int
}

func New(substrate Substrate, bus *events.Bus, logger *zap.Logger) *Store {
	return &Store{
		substrate:   substrate,
		bus:         bus,
		logger:      logger,
		collections: make(map[string]*collectionState),
		guards:      make(map[string]Guard),
	}
}

// RegisterGuard installs a mutation guard for one collection.
func (s *Store) RegisterGuard(collection string, guard Guard) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.guards[collection] = guard
}

// OnPut registers a hook invoked after every local write.
func (s *Store) OnPut(hook PutHook) {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()
	s.hooks = append(s.hooks, hook)
}

// OnDelete registers a hook invoked after every local deletion.
func (s *Store) OnDelete(hook DeleteHook) {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()
	s.deleteHooks = append(s.deleteHooks, hook)
}

// Get returns an ordered snapshot copy of the collection. Never blocks on I/O.
func (s *Store) Get(collection string) []Document {
	cs := s.ensure(collection)
	cs.mu.Lock()
	defer cs.mu.Unlock()

	out := make([]Document, len(cs.docs))
	copy(out, cs.docs)
	return out
}

// GetDocument returns one document by id.
func (s *Store) GetDocument(collection, id string) (Document, bool) {
	cs := s.ensure(collection)
	cs.mu.Lock()
	defer cs.mu.Unlock()

	i, ok := cs.index[id]
	if !ok {
		return Document{}, false
	}
	return cs.docs[i], true
}

// Put upserts a document: cache first, then the substrate, then a change event
// on the collection topic and the upstream hooks. The caller observes its own
// write immediately regardless of network state.
func (s *Store) Put(collection string, doc Document) error {
	cs := s.ensure(collection)

	cs.mu.Lock()
	if guard := s.guard(collection); guard != nil {
		var old Document
		hadOld := false
		if i, ok := cs.index[doc.ID]; ok {
			old, hadOld = cs.docs[i], true
		}
		if err := guard(old, hadOld, doc); err != nil {
			cs.mu.Unlock()
			return err
		}
	}

	if i, ok := cs.index[doc.ID]; ok {
		cs.docs[i] = doc
	} else {
		cs.index[doc.ID] = len(cs.docs)
		cs.docs = append(cs.docs, doc)
	}
	size := len(cs.docs)
	s.persist(collection, cs.docs)
	cs.mu.Unlock()

	s.bus.Publish(events.Event{
		Topic:   events.CollectionTopic(collection),
		Payload: events.CollectionChanged{Collection: collection, Size: size},
	})

	s.hookMu.RLock()
	hooks := append([]PutHook(nil), s.hooks...)
	s.hookMu.RUnlock()
	for _, hook := range hooks {
		hook(collection, doc)
	}
	return nil
}

// Delete removes a document locally and fires the deletion hooks so the
// removal propagates upstream. Unknown ids are a no-op.
func (s *Store) Delete(collection, id string) error {
	cs := s.ensure(collection)

	cs.mu.Lock()
	i, ok := cs.index[id]
	if !ok {
		cs.mu.Unlock()
		return nil
	}
	cs.docs = append(cs.docs[:i], cs.docs[i+1:]...)
	delete(cs.index, id)
	for j := i; j < len(cs.docs); j++ {
		cs.index[cs.docs[j].ID] = j
	}
	size := len(cs.docs)
	s.persist(collection, cs.docs)
	cs.mu.Unlock()

	s.bus.Publish(events.Event{
		Topic:   events.CollectionTopic(collection),
		Payload: events.CollectionChanged{Collection: collection, Size: size},
	})

	s.hookMu.RLock()
	hooks := append([]DeleteHook(nil), s.deleteHooks...)
	s.hookMu.RUnlock()
	for _, hook := range hooks {
		hook(collection, id)
	}
	return nil
}

// ReplaceAll installs a remote snapshot wholesale (last-writer-wins at the
// collection level). Only the sync engine calls this; upstream hooks do not
// fire, so mirrored changes never echo back to the remote.
func (s *Store) ReplaceAll(collection string, docs []Document) {
	cs := s.ensure(collection)

	cs.mu.Lock()
	cs.docs = make([]Document, len(docs))
	copy(cs.docs, docs)
	cs.index = make(map[string]int, len(docs))
	for i, d := range cs.docs {
		cs.index[d.ID] = i
	}
	size := len(cs.docs)
	s.persist(collection, cs.docs)
	cs.mu.Unlock()

	s.bus.Publish(events.Event{
		Topic:   events.CollectionTopic(collection),
		Payload: events.CollectionChanged{Collection: collection, Size: size, Remote: true},
	})
}

func (s *Store) guard(collection string) Guard {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.guards[collection]
}

// ensure returns the collection state, loading it from the substrate on first
// touch. A corrupt cache entry falls back to an empty collection.
func (s *Store) ensure(collection string) *collectionState {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cs, ok := s.collections[collection]; ok {
		return cs
	}

	cs := &collectionState{index: make(map[string]int)}
	raw, err := s.substrate.Get(collectionKey(collection))
	if err == nil {
		var docs []Document
		if jerr := json.Unmarshal(raw, &docs); jerr != nil {
			s.logger.Warn("discarding corrupt local cache entry",
				zap.String("collection", collection),
				zap.Error(jerr),
			)
		} else {
			cs.docs = docs
			for i, d := range docs {
				cs.index[d.ID] = i
			}
		}
	}

	s.collections[collection] = cs
	return cs
}

// persist writes the full collection through the substrate. Persistence
// failure degrades to cache-only operation rather than failing the write.
func (s *Store) persist(collection string, docs []Document) {
	raw, err := json.Marshal(docs)
	if err != nil {
		s.logger.Error("failed to encode collection for persistence",
			zap.String("collection", collection), zap.Error(err))
		return
	}
	if err := s.substrate.Set(collectionKey(collection), raw); err != nil {
		s.logger.Warn("failed to persist collection, serving from memory",
			zap.String("collection", collection), zap.Error(err))
	}
}

func collectionKey(collection string) string {
	return "collection:" + collection
}
