// internal/syncengine/engine.go
package syncengine

import (
	"context"
	"sync"
	"sync/atomic"

	"collectsync-service/internal/events"
	"collectsync-service/internal/remote"
	"collectsync-service/internal/store"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// Engine keeps the local durable store and the remote synchronized store
// eventually consistent, one live subscription per tracked collection
// downstream and an outbox with exponential backoff upstream. Conflicts
// resolve last-writer-wins at document level via the remote's write ordering.
type Engine struct {
	remote remote.Client
	store  *store.Store
	bus    *events.Bus
	clock  clockwork.Clock
	logger *zap.Logger

	mu       sync.Mutex
	subs     map[string]func() // de-duplication guard keyed by collection
	flushing bool
	cancel   context.CancelFunc

	online    atomic.Bool
	announced atomic.Bool

	outbox *outbox
}

func New(remoteClient remote.Client, localStore *store.Store, bus *events.Bus, clock clockwork.Clock, logger *zap.Logger) *Engine {
	e := &Engine{
		remote: remoteClient,
		store:  localStore,
		bus:    bus,
		clock:  clock,
		logger: logger,
		subs:   make(map[string]func()),
		outbox: newOutbox(),
	}

	// Local writes and deletions queue for upstream propagation; remote
	// snapshot installs go through ReplaceAll and never re-enter the outbox.
	localStore.OnPut(func(collection string, doc store.Document) {
		e.outbox.enqueue(collection, doc)
	})
	localStore.OnDelete(func(collection, id string) {
		e.outbox.enqueueDelete(collection, id)
	})

	return e
}

// Start opens the live subscriptions and the outbox flush loop. Safe to call
// repeatedly: collections already subscribed are skipped.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.cancel == nil {
		ctx, e.cancel = context.WithCancel(ctx)
	}

	var missing []string
	for _, collection := range store.Tracked() {
		if _, ok := e.subs[collection]; !ok {
			missing = append(missing, collection)
			e.subs[collection] = func() {} // reserve before the network call
		}
	}

	startFlush := !e.flushing
	e.flushing = true
	e.mu.Unlock()

	for _, collection := range missing {
		collection := collection

		// Seed from the remote before the first push arrives; failure here is
		// a normal offline start, the local cache keeps serving.
		if docs, err := e.remote.ReadCollection(ctx, collection); err != nil {
			e.logger.Info("starting from local cache",
				zap.String("collection", collection), zap.Error(err))
			e.setOnline(false)
		} else {
			e.store.ReplaceAll(collection, docs)
			e.setOnline(true)
		}

		unsub, err := e.remote.Subscribe(ctx, collection, func(docs []store.Document, err error) {
			if err != nil {
				e.logger.Debug("live subscription unhealthy",
					zap.String("collection", collection), zap.Error(err))
				e.setOnline(false)
				return
			}
			e.store.ReplaceAll(collection, docs)
			e.setOnline(true)
		})
		if err != nil {
			e.logger.Warn("failed to open live subscription",
				zap.String("collection", collection), zap.Error(err))
			e.mu.Lock()
			delete(e.subs, collection) // retried on the next Start
			e.mu.Unlock()
			e.setOnline(false)
			continue
		}

		e.mu.Lock()
		e.subs[collection] = unsub
		e.mu.Unlock()
	}

	if startFlush {
		go e.flushLoop(ctx)
	}
	return nil
}

// Stop tears down subscriptions and the flush loop.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	for collection, unsub := range e.subs {
		unsub()
		delete(e.subs, collection)
	}
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.flushing = false
}

// Online reports the current connectivity belief: healthy subscriptions or a
// recent successful push mean online, a failed push means offline.
func (e *Engine) Online() bool {
	return e.online.Load()
}

// Pending reports how many local writes await upstream acknowledgment.
func (e *Engine) Pending() int {
	return e.outbox.size()
}

func (e *Engine) setOnline(online bool) {
	prev := e.online.Swap(online)
	if prev == online && e.announced.Load() {
		return
	}
	e.announced.Store(true)
	e.bus.Publish(events.Event{
		Topic:   events.TopicConnectivity,
		Payload: events.ConnectivityChanged{Online: online},
	})
}
