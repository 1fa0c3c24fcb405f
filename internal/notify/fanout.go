// internal/notify/fanout.go
package notify

import (
	"context"
	"sort"
	"sync"
	"time"

	"collectsync-service/internal/domain/notification"
	"collectsync-service/internal/events"
	"collectsync-service/internal/store"

	"github.com/jonboulle/clockwork"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// FreshWindow bounds how old a notification may be and still count as new to
// a subscriber. Anything older is replayed history (reconnect, cold start)
// and must not raise a toast.
const FreshWindow = 5 * time.Second

// Fanout appends notification records to the shared list and lets consumers
// react to genuinely new entries within seconds. OTP codes are delivered
// through this channel exclusively, so its latency bounds login latency.
type Fanout struct {
	store  *store.Store
	bus    *events.Bus
	clock  clockwork.Clock
	logger *zap.Logger
}

func NewFanout(localStore *store.Store, bus *events.Bus, clock clockwork.Clock, logger *zap.Logger) *Fanout {
	return &Fanout{store: localStore, bus: bus, clock: clock, logger: logger}
}

// Add appends a record to the notification list, local first and upstream via
// the sync engine's outbox, so it works offline like any other write.
func (f *Fanout) Add(ctx context.Context, rec notification.Record) (notification.Record, error) {
	if rec.ID == "" {
		rec.ID = ulid.Make().String()
	}
	if rec.At.IsZero() {
		rec.At = f.clock.Now().UTC()
	}
	if rec.Audience == "" {
		rec.Audience = notification.AudienceAll
	}

	doc, err := store.NewDocument(rec.ID, rec)
	if err != nil {
		return notification.Record{}, err
	}
	if err := f.store.Put(store.CollectionNotifications, doc); err != nil {
		return notification.Record{}, err
	}
	return rec, nil
}

// Start installs the freshness watcher: every notification-list change is
// scanned for records not delivered before, and those still inside the window
// are re-published as NotificationFresh events. Each record toasts at most
// once, keyed by id, so records sharing a timestamp all get through. Replayed
// history on reconnect or cold start is absorbed without a toast.
func (f *Fanout) Start() func() {
	var mu sync.Mutex
	seen := make(map[string]struct{})
	for _, rec := range f.sorted() {
		seen[rec.ID] = struct{}{}
	}

	return f.bus.Subscribe(events.CollectionTopic(store.CollectionNotifications), func(events.Event) {
		now := f.clock.Now().UTC()

		mu.Lock()
		defer mu.Unlock()

		recs := f.sorted()
		next := make(map[string]struct{}, len(recs))
		for _, rec := range recs {
			_, delivered := seen[rec.ID]
			next[rec.ID] = struct{}{}
			if delivered {
				continue
			}
			if now.Sub(rec.At) > FreshWindow {
				continue
			}
			f.bus.Publish(events.Event{
				Topic: events.TopicNotifications,
				Payload: events.NotificationFresh{
					ID:       rec.ID,
					Title:    rec.Title,
					Body:     rec.Body,
					Audience: rec.Audience,
					At:       rec.At,
				},
			})
		}
		// Forget ids that left the list so the set tracks the list's size.
		seen = next
	})
}

// SubscribeFresh invokes handler for each genuinely new notification, the
// feed UI toasts hang off. Returns an unsubscribe func.
func (f *Fanout) SubscribeFresh(handler func(notification.Record)) func() {
	return f.bus.Subscribe(events.TopicNotifications, func(ev events.Event) {
		fresh, ok := ev.Payload.(events.NotificationFresh)
		if !ok {
			return
		}
		handler(notification.Record{
			ID:       fresh.ID,
			Title:    fresh.Title,
			Body:     fresh.Body,
			Audience: fresh.Audience,
			At:       fresh.At,
		})
	})
}

// List returns the notifications visible to a staff account, newest first.
func (f *Fanout) List(staffID string) []notification.Record {
	recs := f.sorted()
	out := make([]notification.Record, 0, len(recs))
	for i := len(recs) - 1; i >= 0; i-- {
		if recs[i].For(staffID) {
			out = append(out, recs[i])
		}
	}
	return out
}

// UnreadCount counts unread notifications addressed to a staff account.
func (f *Fanout) UnreadCount(staffID string) int {
	count := 0
	for _, rec := range f.sorted() {
		if rec.For(staffID) && !rec.Read {
			count++
		}
	}
	return count
}

// MarkRead flips the read flag; the only mutation notifications allow.
func (f *Fanout) MarkRead(ctx context.Context, id string) error {
	doc, ok := f.store.GetDocument(store.CollectionNotifications, id)
	if !ok {
		return nil
	}
	var rec notification.Record
	if err := doc.Decode(&rec); err != nil {
		return err
	}
	if rec.Read {
		return nil
	}
	rec.Read = true

	next, err := store.NewDocument(id, rec)
	if err != nil {
		return err
	}
	return f.store.Put(store.CollectionNotifications, next)
}

// MarkAllRead marks everything addressed to the staff account as read.
func (f *Fanout) MarkAllRead(ctx context.Context, staffID string) error {
	for _, rec := range f.sorted() {
		if rec.For(staffID) && !rec.Read {
			if err := f.MarkRead(ctx, rec.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

// PurgeExpired deletes expired records (OTP codes past their TTL), locally
// and upstream through the outbox so the shared list does not regrow on the
// next snapshot. Run periodically by the maintenance scheduler.
func (f *Fanout) PurgeExpired(ctx context.Context) int {
	now := f.clock.Now().UTC()

	dropped := 0
	for _, doc := range f.store.Get(store.CollectionNotifications) {
		var rec notification.Record
		if err := doc.Decode(&rec); err != nil || !rec.Expired(now) {
			continue
		}
		if err := f.store.Delete(store.CollectionNotifications, doc.ID); err != nil {
			f.logger.Warn("failed to purge notification",
				zap.String("id", doc.ID), zap.Error(err))
			continue
		}
		dropped++
	}
	if dropped > 0 {
		f.logger.Info("purged expired notifications", zap.Int("count", dropped))
	}
	return dropped
}

func (f *Fanout) sorted() []notification.Record {
	docs := f.store.Get(store.CollectionNotifications)
	recs := make([]notification.Record, 0, len(docs))
	for _, doc := range docs {
		var rec notification.Record
		if err := doc.Decode(&rec); err != nil {
			f.logger.Warn("undecodable notification record",
				zap.String("id", doc.ID), zap.Error(err))
			continue
		}
		recs = append(recs, rec)
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].At.Before(recs[j].At) })
	return recs
}
