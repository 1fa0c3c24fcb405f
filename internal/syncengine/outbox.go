// internal/syncengine/outbox.go
package syncengine

import (
	"context"
	"sync"
	"time"

	"collectsync-service/internal/store"

	"go.uber.org/zap"
)

const (
	baseBackoff = time.Second
	maxBackoff  = 60 * time.Second
)

type pendingWrite struct {
	collection string
	doc        store.Document
	remove     bool // remove deletes doc.ID upstream instead of upserting
}

// outbox is the queue of local writes awaiting upstream push. Replays are
// safe: remote writes are upserts and removals keyed by document id.
type outbox struct {
	mu    sync.Mutex
	queue []pendingWrite
	wake  chan struct{}
}

func newOutbox() *outbox {
	return &outbox{wake: make(chan struct{}, 1)}
}

func (o *outbox) enqueue(collection string, doc store.Document) {
	o.push(pendingWrite{collection: collection, doc: doc})
}

func (o *outbox) enqueueDelete(collection, id string) {
	o.push(pendingWrite{collection: collection, doc: store.Document{ID: id}, remove: true})
}

func (o *outbox) push(w pendingWrite) {
	o.mu.Lock()
	o.queue = append(o.queue, w)
	o.mu.Unlock()

	select {
	case o.wake <- struct{}{}:
	default:
	}
}

func (o *outbox) peek() (pendingWrite, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.queue) == 0 {
		return pendingWrite{}, false
	}
	return o.queue[0], true
}

func (o *outbox) pop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.queue) > 0 {
		o.queue = o.queue[1:]
	}
}

func (o *outbox) size() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.queue)
}

// flushLoop pushes queued writes upstream, retrying with exponential backoff
// while the remote is unreachable. The in-flight write stays visible locally
// the whole time; the UI is never blocked on remote acknowledgment.
func (e *Engine) flushLoop(ctx context.Context) {
	backoff := baseBackoff
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.outbox.wake:
		}

		for {
			w, ok := e.outbox.peek()
			if !ok {
				break
			}

			var err error
			if w.remove {
				err = e.remote.DeleteDocument(ctx, w.collection, w.doc.ID)
			} else {
				err = e.remote.WriteDocument(ctx, w.collection, w.doc)
			}
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				e.setOnline(false)
				e.logger.Debug("upstream push failed, backing off",
					zap.String("collection", w.collection),
					zap.String("id", w.doc.ID),
					zap.Duration("backoff", backoff),
				)
				select {
				case <-e.clock.After(backoff):
				case <-ctx.Done():
					return
				}
				if backoff *= 2; backoff > maxBackoff {
					backoff = maxBackoff
				}
				continue
			}

			e.outbox.pop()
			e.setOnline(true)
			backoff = baseBackoff
		}
	}
}
