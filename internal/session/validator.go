// internal/session/validator.go
package session

import (
	"context"
	"sync"
	"time"

	"collectsync-service/internal/domain/staff"
	"collectsync-service/internal/events"
	"collectsync-service/internal/store"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// DefaultIdleTimeout applies when the idle-logout policy is enabled without
// an explicit duration.
const DefaultIdleTimeout = time.Hour

// Validator enforces two session policies on top of the synced staff mirror:
// the signed-in account must still exist with status active, and, when the
// idle policy is enabled, the session ends after a period without interaction.
// An invalidated session is a normal state transition, not an error.
type Validator struct {
	store  *store.Store
	creds  *Store
	bus    *events.Bus
	clock  clockwork.Clock
	logger *zap.Logger

	idleTimeout time.Duration // 0 disables the idle policy

	mu      sync.Mutex
	unsubs  []func()
	cancel  context.CancelFunc
	touch   chan struct{}
	started bool
}

func NewValidator(localStore *store.Store, creds *Store, bus *events.Bus, clock clockwork.Clock, idleTimeout time.Duration, logger *zap.Logger) *Validator {
	return &Validator{
		store:       localStore,
		creds:       creds,
		bus:         bus,
		clock:       clock,
		idleTimeout: idleTimeout,
		logger:      logger,
		touch:       make(chan struct{}, 1),
	}
}

// Start subscribes to staff-mirror changes and session transitions.
func (v *Validator) Start(ctx context.Context) {
	v.mu.Lock()
	if v.started {
		v.mu.Unlock()
		return
	}
	v.started = true
	ctx, v.cancel = context.WithCancel(ctx)

	v.unsubs = append(v.unsubs,
		v.bus.Subscribe(events.CollectionTopic(store.CollectionStaff), func(events.Event) {
			v.revalidate()
		}),
	)
	v.mu.Unlock()

	if v.idleTimeout > 0 {
		go v.idleLoop(ctx)
	}

	// Validate against whatever already synced before we subscribed.
	v.revalidate()
}

// Stop tears the validator down.
func (v *Validator) Stop() {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, unsub := range v.unsubs {
		unsub()
	}
	v.unsubs = nil
	if v.cancel != nil {
		v.cancel()
		v.cancel = nil
	}
	v.started = false
}

// Touch records a user interaction and resets the idle countdown.
func (v *Validator) Touch() {
	select {
	case v.touch <- struct{}{}:
	default:
	}
}

// revalidate re-derives whether the signed-in account is still active. The
// cold-start guard skips the check while the staff mirror is empty, so a
// device is not logged out before the first snapshot lands.
func (v *Validator) revalidate() {
	creds, ok := v.creds.Current()
	if !ok {
		return
	}

	docs := v.store.Get(store.CollectionStaff)
	if len(docs) == 0 {
		return
	}

	for _, doc := range docs {
		if doc.ID != creds.Staff.ID {
			continue
		}
		var account staff.Account
		if err := doc.Decode(&account); err != nil {
			v.logger.Warn("undecodable staff record during validation",
				zap.String("staff_id", doc.ID), zap.Error(err))
			return
		}
		if account.IsActive() {
			return
		}
		v.forceLogout(creds, "deactivated")
		return
	}

	v.forceLogout(creds, "removed")
}

// idleLoop ends the session after idleTimeout without a Touch. The timer
// restarts on every interaction and on every new session.
func (v *Validator) idleLoop(ctx context.Context) {
	timer := v.clock.NewTimer(v.idleTimeout)
	defer timer.Stop()

	sessionStarted := v.bus.Subscribe(events.TopicSession, func(ev events.Event) {
		if _, ok := ev.Payload.(events.SessionStarted); ok {
			v.Touch()
		}
	})
	defer sessionStarted()

	for {
		select {
		case <-ctx.Done():
			return
		case <-v.touch:
			if !timer.Stop() {
				select {
				case <-timer.Chan():
				default:
				}
			}
			timer.Reset(v.idleTimeout)
		case <-timer.Chan():
			if creds, ok := v.creds.Current(); ok {
				v.forceLogout(creds, "idle_timeout")
			}
			timer.Reset(v.idleTimeout)
		}
	}
}

// forceLogout clears the credentials once and announces the transition. After
// the clear, Current() is empty, so repeated triggers are no-ops upstream.
func (v *Validator) forceLogout(creds Credentials, reason string) {
	v.creds.Clear()
	v.logger.Info("session invalidated",
		zap.String("staff_id", creds.Staff.ID),
		zap.String("reason", reason),
	)
	v.bus.Publish(events.Event{
		Topic:   events.TopicSession,
		Payload: events.SessionEnded{StaffID: creds.Staff.ID, Reason: reason},
	})
}
