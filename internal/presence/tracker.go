// internal/presence/tracker.go
package presence

import (
	"context"
	"sync"
	"time"

	"collectsync-service/internal/domain/staff"
	"collectsync-service/internal/remote"
	"collectsync-service/internal/store"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// DefaultInterval is the heartbeat period.
const DefaultInterval = 30 * time.Second

// stalenessMultiplier: a device counts as offline once lastSeen is older than
// this many heartbeat intervals.
const stalenessMultiplier = 2

// Tracker stamps lastSeen for the signed-in staff account so the admin
// console can render online/offline state. Idle until Start, one heartbeat
// immediately and then one per interval until Stop. Heartbeat failures are
// swallowed; staleness is an acceptable degraded state.
type Tracker struct {
	remote   remote.Client
	store    *store.Store
	clock    clockwork.Clock
	interval time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	staffID string
}

func NewTracker(remoteClient remote.Client, localStore *store.Store, clock clockwork.Clock, interval time.Duration, logger *zap.Logger) *Tracker {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Tracker{
		remote:   remoteClient,
		store:    localStore,
		clock:    clock,
		interval: interval,
		logger:   logger,
	}
}

// Start moves the tracker from idle to active for the given account. A
// previous session's heartbeat, if any, is stopped first.
func (t *Tracker) Start(ctx context.Context, staffID string) {
	t.Stop()

	ctx, cancel := context.WithCancel(ctx)
	t.mu.Lock()
	t.cancel = cancel
	t.staffID = staffID
	t.mu.Unlock()

	go t.run(ctx, staffID)
}

// Stop returns the tracker to idle. Safe to call when already idle.
func (t *Tracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
		t.staffID = ""
	}
}

// Active reports whether a heartbeat loop is running.
func (t *Tracker) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancel != nil
}

func (t *Tracker) run(ctx context.Context, staffID string) {
	t.beat(ctx, staffID)

	ticker := t.clock.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			t.beat(ctx, staffID)
		}
	}
}

// beat writes now into the staff document's lastSeen. The rest of the record
// rides along unchanged from the local mirror; lastSeen never moves backwards.
func (t *Tracker) beat(ctx context.Context, staffID string) {
	doc, ok := t.store.GetDocument(store.CollectionStaff, staffID)
	if !ok {
		t.logger.Debug("heartbeat skipped, staff record not mirrored yet",
			zap.String("staff_id", staffID))
		return
	}

	var account staff.Account
	if err := doc.Decode(&account); err != nil {
		t.logger.Warn("heartbeat skipped, undecodable staff record",
			zap.String("staff_id", staffID), zap.Error(err))
		return
	}

	now := t.clock.Now().UTC()
	if account.LastSeen != nil && account.LastSeen.After(now) {
		now = *account.LastSeen
	}
	account.LastSeen = &now
	account.UpdatedAt = now

	next, err := store.NewDocument(staffID, account)
	if err != nil {
		t.logger.Warn("heartbeat encode failed", zap.Error(err))
		return
	}
	next.UpdatedAt = now

	if err := t.remote.WriteDocument(ctx, store.CollectionStaff, next); err != nil {
		// Retried on the next tick.
		t.logger.Debug("heartbeat write failed",
			zap.String("staff_id", staffID), zap.Error(err))
	}
}

// Online reports whether a lastSeen stamp is fresh enough to count as online,
// given the heartbeat interval in force.
func Online(lastSeen *time.Time, now time.Time, interval time.Duration) bool {
	if lastSeen == nil {
		return false
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return now.Sub(*lastSeen) <= stalenessMultiplier*interval
}
