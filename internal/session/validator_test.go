package session

import (
	"context"
	"testing"
	"time"

	"collectsync-service/internal/domain/staff"
	"collectsync-service/internal/events"
	"collectsync-service/internal/store"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

type validatorFixture struct {
	validator *Validator
	creds     *Store
	local     *store.Store
	bus       *events.Bus
	clock     *clockwork.FakeClock
	ended     chan events.SessionEnded
}

func newValidatorFixture(t *testing.T, idleTimeout time.Duration) *validatorFixture {
	t.Helper()
	bus := events.NewBus()
	local := store.New(store.NewMemorySubstrate(), bus, zap.NewNop())
	creds := NewStore(store.NewMemorySubstrate(), zap.NewNop())
	fc := clockwork.NewFakeClock()
	v := NewValidator(local, creds, bus, fc, idleTimeout, zap.NewNop())
	t.Cleanup(v.Stop)

	ended := make(chan events.SessionEnded, 4)
	bus.Subscribe(events.TopicSession, func(ev events.Event) {
		if p, ok := ev.Payload.(events.SessionEnded); ok {
			ended <- p
		}
	})

	return &validatorFixture{validator: v, creds: creds, local: local, bus: bus, clock: fc, ended: ended}
}

func (f *validatorFixture) signIn(t *testing.T, account staff.Account) {
	t.Helper()
	if err := f.creds.Set(Credentials{SessionID: "sess", Role: account.Role, Staff: account}); err != nil {
		t.Fatalf("Set credentials: %v", err)
	}
}

func (f *validatorFixture) mirrorStaff(t *testing.T, account staff.Account) {
	t.Helper()
	doc, err := store.NewDocument(account.ID, account)
	if err != nil {
		t.Fatalf("NewDocument: %v", err)
	}
	if err := f.local.Put(store.CollectionStaff, doc); err != nil {
		t.Fatalf("Put staff: %v", err)
	}
}

func (f *validatorFixture) expectEnded(t *testing.T, reason string) {
	t.Helper()
	select {
	case got := <-f.ended:
		if got.Reason != reason {
			t.Fatalf("session ended with reason %q, want %q", got.Reason, reason)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("expected session end with reason %q", reason)
	}
	if _, ok := f.creds.Current(); ok {
		t.Fatal("expected credentials cleared after forced logout")
	}
}

func (f *validatorFixture) expectStillSignedIn(t *testing.T) {
	t.Helper()
	select {
	case got := <-f.ended:
		t.Fatalf("unexpected session end: %+v", got)
	case <-time.After(50 * time.Millisecond):
	}
	if _, ok := f.creds.Current(); !ok {
		t.Fatal("expected credentials to remain")
	}
}

func TestEmptyMirrorDoesNotLogOut(t *testing.T) {
	f := newValidatorFixture(t, 0)
	f.signIn(t, staff.Account{ID: "s1", Status: staff.StatusActive})

	// Mirror has not synced yet; the restored session must survive startup.
	f.validator.Start(context.Background())
	f.expectStillSignedIn(t)
}

func TestDeactivationForcesLogout(t *testing.T) {
	f := newValidatorFixture(t, 0)
	account := staff.Account{ID: "s1", Status: staff.StatusActive}
	f.signIn(t, account)
	f.mirrorStaff(t, account)
	f.validator.Start(context.Background())

	account.Status = staff.StatusInactive
	f.mirrorStaff(t, account)

	f.expectEnded(t, "deactivated")
}

func TestRemovalForcesLogout(t *testing.T) {
	f := newValidatorFixture(t, 0)
	f.signIn(t, staff.Account{ID: "gone", Status: staff.StatusActive})
	f.validator.Start(context.Background())

	// A non-empty mirror without the signed-in account means it was removed.
	f.mirrorStaff(t, staff.Account{ID: "someone-else", Status: staff.StatusActive})

	f.expectEnded(t, "removed")
}

func TestActiveAccountStaysSignedIn(t *testing.T) {
	f := newValidatorFixture(t, 0)
	account := staff.Account{ID: "s1", Status: staff.StatusActive}
	f.signIn(t, account)
	f.mirrorStaff(t, account)
	f.validator.Start(context.Background())

	account.Name = "renamed"
	f.mirrorStaff(t, account)

	f.expectStillSignedIn(t)
}

func TestIdleTimeoutEndsSession(t *testing.T) {
	f := newValidatorFixture(t, time.Hour)
	f.signIn(t, staff.Account{ID: "s1", Status: staff.StatusActive})
	f.validator.Start(context.Background())

	f.clock.BlockUntil(1)
	f.clock.Advance(time.Hour)

	f.expectEnded(t, "idle_timeout")
}

func TestTouchResetsIdleCountdown(t *testing.T) {
	f := newValidatorFixture(t, time.Hour)
	f.signIn(t, staff.Account{ID: "s1", Status: staff.StatusActive})
	f.validator.Start(context.Background())
	f.clock.BlockUntil(1)

	f.clock.Advance(30 * time.Minute)
	f.validator.Touch()
	waitForDrain(t, f.validator)

	// 70 minutes of wall time, but only 40 since the last interaction.
	f.clock.Advance(40 * time.Minute)
	f.expectStillSignedIn(t)

	f.clock.Advance(20 * time.Minute)
	f.expectEnded(t, "idle_timeout")
}

func TestIdlePolicyDisabledByZeroTimeout(t *testing.T) {
	f := newValidatorFixture(t, 0)
	f.signIn(t, staff.Account{ID: "s1", Status: staff.StatusActive})
	f.validator.Start(context.Background())

	f.clock.Advance(24 * time.Hour)
	f.expectStillSignedIn(t)
}

// waitForDrain waits until the idle loop has consumed a pending Touch and
// reset its timer.
func waitForDrain(t *testing.T, v *Validator) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(v.touch) == 0 {
			time.Sleep(20 * time.Millisecond)
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("idle loop never consumed the touch")
}
