package presence

import (
	"context"
	"testing"
	"time"

	"collectsync-service/internal/domain/staff"
	"collectsync-service/internal/events"
	"collectsync-service/internal/remote/remotetest"
	"collectsync-service/internal/store"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

func newTestTracker(t *testing.T, interval time.Duration) (*Tracker, *remotetest.Fake, *store.Store, *clockwork.FakeClock) {
	t.Helper()
	fake := remotetest.NewFake()
	local := store.New(store.NewMemorySubstrate(), events.NewBus(), zap.NewNop())
	fc := clockwork.NewFakeClock()
	tracker := NewTracker(fake, local, fc, interval, zap.NewNop())
	t.Cleanup(tracker.Stop)
	return tracker, fake, local, fc
}

func seedStaff(t *testing.T, local *store.Store, account staff.Account) {
	t.Helper()
	doc, err := store.NewDocument(account.ID, account)
	if err != nil {
		t.Fatalf("NewDocument: %v", err)
	}
	if err := local.Put(store.CollectionStaff, doc); err != nil {
		t.Fatalf("Put: %v", err)
	}
}

func nextBeat(t *testing.T, fake *remotetest.Fake) staff.Account {
	t.Helper()
	select {
	case doc := <-fake.Wrote:
		var account staff.Account
		if err := doc.Decode(&account); err != nil {
			t.Fatalf("Decode heartbeat: %v", err)
		}
		return account
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for heartbeat")
		return staff.Account{}
	}
}

func TestHeartbeatCadence(t *testing.T) {
	interval := 30 * time.Second
	tracker, fake, local, fc := newTestTracker(t, interval)
	seedStaff(t, local, staff.Account{ID: "s1", Name: "Ravi", Status: staff.StatusActive})

	tracker.Start(context.Background(), "s1")

	// One immediately on start.
	first := nextBeat(t, fake)
	if first.LastSeen == nil || !first.LastSeen.Equal(fc.Now().UTC()) {
		t.Fatalf("first heartbeat lastSeen = %v, want %v", first.LastSeen, fc.Now().UTC())
	}

	// Then one per interval.
	for i := 0; i < 3; i++ {
		fc.BlockUntil(1)
		fc.Advance(interval)
		nextBeat(t, fake)
	}

	tracker.Stop()
	if tracker.Active() {
		t.Fatal("expected idle after Stop")
	}
}

func TestHeartbeatStopsAfterStop(t *testing.T) {
	interval := 30 * time.Second
	tracker, fake, local, fc := newTestTracker(t, interval)
	seedStaff(t, local, staff.Account{ID: "s1", Status: staff.StatusActive})

	tracker.Start(context.Background(), "s1")
	nextBeat(t, fake)
	fc.BlockUntil(1)

	tracker.Stop()
	time.Sleep(20 * time.Millisecond) // let the loop observe cancellation
	fc.Advance(5 * interval)

	select {
	case doc := <-fake.Wrote:
		t.Fatalf("unexpected heartbeat after Stop: %s", doc.ID)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestLastSeenNeverMovesBackwards(t *testing.T) {
	tracker, fake, local, fc := newTestTracker(t, 30*time.Second)

	future := fc.Now().UTC().Add(10 * time.Minute)
	seedStaff(t, local, staff.Account{ID: "s1", Status: staff.StatusActive, LastSeen: &future})

	tracker.Start(context.Background(), "s1")

	beat := nextBeat(t, fake)
	if beat.LastSeen == nil || beat.LastSeen.Before(future) {
		t.Fatalf("lastSeen moved backwards: %v < %v", beat.LastSeen, future)
	}
}

func TestHeartbeatSkippedWithoutStaffRecord(t *testing.T) {
	tracker, fake, _, _ := newTestTracker(t, 30*time.Second)

	tracker.Start(context.Background(), "ghost")

	select {
	case doc := <-fake.Wrote:
		t.Fatalf("unexpected write for unmirrored staff: %s", doc.ID)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestWriteFailuresAreSwallowed(t *testing.T) {
	interval := 30 * time.Second
	tracker, fake, local, fc := newTestTracker(t, interval)
	seedStaff(t, local, staff.Account{ID: "s1", Status: staff.StatusActive})

	fake.SetOffline(true)
	tracker.Start(context.Background(), "s1")

	// Loop must keep ticking through failures and resume once healthy.
	fc.BlockUntil(1)
	fake.SetOffline(false)
	fc.Advance(interval)
	nextBeat(t, fake)
}

func TestOnlineThreshold(t *testing.T) {
	interval := 30 * time.Second
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if Online(nil, now, interval) {
		t.Fatal("no lastSeen must read offline")
	}

	fresh := now.Add(-interval)
	if !Online(&fresh, now, interval) {
		t.Fatal("one interval old must read online")
	}

	edge := now.Add(-2 * interval)
	if !Online(&edge, now, interval) {
		t.Fatal("exactly two intervals old must still read online")
	}

	stale := now.Add(-2*interval - time.Second)
	if Online(&stale, now, interval) {
		t.Fatal("older than two intervals must read offline")
	}
}
