package syncengine

import (
	"context"
	"sync"
	"testing"
	"time"

	"collectsync-service/internal/events"
	"collectsync-service/internal/remote/remotetest"
	"collectsync-service/internal/store"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

func newTestEngine(t *testing.T) (*Engine, *remotetest.Fake, *store.Store, *events.Bus, *clockwork.FakeClock) {
	t.Helper()
	fake := remotetest.NewFake()
	bus := events.NewBus()
	local := store.New(store.NewMemorySubstrate(), bus, zap.NewNop())
	fc := clockwork.NewFakeClock()
	engine := New(fake, local, bus, fc, zap.NewNop())
	t.Cleanup(engine.Stop)
	return engine, fake, local, bus, fc
}

func mustDoc(t *testing.T, id string, v interface{}) store.Document {
	t.Helper()
	doc, err := store.NewDocument(id, v)
	if err != nil {
		t.Fatalf("NewDocument: %v", err)
	}
	return doc
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestStartSeedsFromRemote(t *testing.T) {
	engine, fake, local, _, _ := newTestEngine(t)

	fake.Deliver(store.CollectionCustomers, []store.Document{
		mustDoc(t, "c1", map[string]string{"name": "Asha Traders"}),
	})

	if err := engine.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if _, ok := local.GetDocument(store.CollectionCustomers, "c1"); !ok {
		t.Fatal("expected remote document after initial seed")
	}
	if !engine.Online() {
		t.Fatal("expected online after successful seed")
	}
}

func TestSnapshotReplacesCollection(t *testing.T) {
	engine, fake, local, _, _ := newTestEngine(t)
	if err := engine.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := local.Put(store.CollectionCustomers, mustDoc(t, "stale", map[string]string{"name": "old"})); err != nil {
		t.Fatalf("Put: %v", err)
	}

	snapshot := []store.Document{mustDoc(t, "fresh", map[string]string{"name": "new"})}
	fake.Deliver(store.CollectionCustomers, snapshot)

	if _, ok := local.GetDocument(store.CollectionCustomers, "stale"); ok {
		t.Fatal("snapshot must replace documents absent from it")
	}
	if _, ok := local.GetDocument(store.CollectionCustomers, "fresh"); !ok {
		t.Fatal("expected snapshot document")
	}

	// The same snapshot delivered twice must not duplicate anything.
	fake.Deliver(store.CollectionCustomers, snapshot)
	if n := len(local.Get(store.CollectionCustomers)); n != 1 {
		t.Fatalf("expected 1 document after replay, got %d", n)
	}
}

func TestRepeatedStartDoesNotDuplicateSubscriptions(t *testing.T) {
	engine, fake, _, _, _ := newTestEngine(t)

	ctx := context.Background()
	if err := engine.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := engine.Start(ctx); err != nil {
		t.Fatalf("second Start: %v", err)
	}

	for _, collection := range store.Tracked() {
		if n := fake.SubscriberCount(collection); n != 1 {
			t.Fatalf("collection %s has %d subscriptions, want 1", collection, n)
		}
	}
}

func TestOfflineWritesStayLocalAndFlushOnReconnect(t *testing.T) {
	engine, fake, local, _, fc := newTestEngine(t)

	fake.SetOffline(true)
	if err := engine.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if engine.Online() {
		t.Fatal("expected offline start")
	}

	doc := mustDoc(t, "e1", map[string]string{"amount": "500"})
	if err := local.Put(store.CollectionEntries, doc); err != nil {
		t.Fatalf("Put: %v", err)
	}

	// The writer sees its own write immediately, network or not.
	if _, ok := local.GetDocument(store.CollectionEntries, "e1"); !ok {
		t.Fatal("expected read-your-writes while offline")
	}
	waitFor(t, "queued write", func() bool { return engine.Pending() == 1 })

	// The flush loop is now parked on its backoff timer.
	fc.BlockUntil(1)

	fake.SetOffline(false)
	fc.Advance(time.Second)

	waitFor(t, "outbox drain", func() bool { return engine.Pending() == 0 })
	select {
	case pushed := <-fake.Wrote:
		if pushed.ID != "e1" {
			t.Fatalf("pushed wrong document %s", pushed.ID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected the queued write to reach the remote")
	}
	waitFor(t, "online after flush", engine.Online)
}

func TestBackoffDoublesWhileRemoteStaysDown(t *testing.T) {
	engine, fake, local, _, fc := newTestEngine(t)

	fake.SetOffline(true)
	if err := engine.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := local.Put(store.CollectionEntries, mustDoc(t, "e1", map[string]int{"n": 1})); err != nil {
		t.Fatalf("Put: %v", err)
	}

	// First failure waits baseBackoff, second waits double.
	fc.BlockUntil(1)
	fc.Advance(baseBackoff)
	fc.BlockUntil(1)
	fc.Advance(2 * baseBackoff)
	fc.BlockUntil(1)

	if engine.Pending() != 1 {
		t.Fatalf("write must stay queued while remote is down, pending=%d", engine.Pending())
	}

	fake.SetOffline(false)
	fc.Advance(4 * baseBackoff)
	waitFor(t, "outbox drain", func() bool { return engine.Pending() == 0 })
}

func TestLocalDeletesReachRemote(t *testing.T) {
	engine, fake, local, _, _ := newTestEngine(t)

	if err := engine.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := local.Put(store.CollectionNotifications, mustDoc(t, "n1", map[string]string{"title": "otp"})); err != nil {
		t.Fatalf("Put: %v", err)
	}
	waitFor(t, "write flush", func() bool { return engine.Pending() == 0 })
	<-fake.Wrote

	if err := local.Delete(store.CollectionNotifications, "n1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	select {
	case id := <-fake.Deleted:
		if id != "n1" {
			t.Fatalf("deleted wrong document %s", id)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected the deletion to reach the remote")
	}
	waitFor(t, "outbox drain", func() bool { return engine.Pending() == 0 })
}

func TestSubscriptionFailureMarksOffline(t *testing.T) {
	engine, fake, _, _, _ := newTestEngine(t)

	if err := engine.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !engine.Online() {
		t.Fatal("expected online after successful start")
	}

	fake.DeliverError(store.CollectionEntries, context.DeadlineExceeded)
	if engine.Online() {
		t.Fatal("a dead live subscription must flip connectivity to offline")
	}

	// The backend recovering re-delivers a snapshot and connectivity follows.
	fake.DeliverCurrent(store.CollectionEntries)
	if !engine.Online() {
		t.Fatal("expected online again after the stream recovered")
	}
}

func TestConnectivityTransitionsArePublished(t *testing.T) {
	engine, fake, local, bus, fc := newTestEngine(t)

	var mu sync.Mutex
	var transitions []bool
	bus.Subscribe(events.TopicConnectivity, func(ev events.Event) {
		mu.Lock()
		defer mu.Unlock()
		transitions = append(transitions, ev.Payload.(events.ConnectivityChanged).Online)
	})
	snapshot := func() []bool {
		mu.Lock()
		defer mu.Unlock()
		return append([]bool(nil), transitions...)
	}

	if err := engine.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, "online announcement", func() bool {
		s := snapshot()
		return len(s) == 1 && s[0]
	})

	fake.SetOffline(true)
	if err := local.Put(store.CollectionEntries, mustDoc(t, "e1", map[string]int{"n": 1})); err != nil {
		t.Fatalf("Put: %v", err)
	}
	waitFor(t, "offline announcement", func() bool {
		s := snapshot()
		return len(s) == 2 && !s[1]
	})

	fc.BlockUntil(1)
	fake.SetOffline(false)
	fc.Advance(baseBackoff)
	waitFor(t, "reconnect announcement", func() bool {
		s := snapshot()
		return len(s) == 3 && s[2]
	})
}
