// internal/goal/service.go
package goal

import (
	"context"
	"sync"
	"time"

	"collectsync-service/internal/domain/company"
	"collectsync-service/internal/domain/ledger"
	"collectsync-service/internal/events"
	"collectsync-service/internal/store"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Progress is the derived state for one goal period.
type Progress struct {
	Period    company.GoalPeriod `json:"period"`
	Target    decimal.Decimal    `json:"target"`
	Collected decimal.Decimal    `json:"collected"`
	From      time.Time          `json:"from"`
	To        time.Time          `json:"to"`
}

// Service recomputes goal progress and cash-in-hand from the ledger mirror on
// every collection/expense change event. Targets are user-set documents in
// the goals collection; progress is never persisted.
type Service struct {
	store  *store.Store
	bus    *events.Bus
	clock  clockwork.Clock
	logger *zap.Logger

	mu         sync.RWMutex
	progress   map[company.GoalPeriod]Progress
	cashInHand decimal.Decimal
	unsubs     []func()
}

func NewService(localStore *store.Store, bus *events.Bus, clock clockwork.Clock, logger *zap.Logger) *Service {
	return &Service{
		store:    localStore,
		bus:      bus,
		clock:    clock,
		logger:   logger,
		progress: make(map[company.GoalPeriod]Progress),
	}
}

// Start computes the initial state and recomputes on every ledger change.
func (s *Service) Start() {
	recompute := func(events.Event) { s.Recompute() }
	s.unsubs = append(s.unsubs,
		s.bus.Subscribe(events.CollectionTopic(store.CollectionEntries), recompute),
		s.bus.Subscribe(events.CollectionTopic(store.CollectionExpenses), recompute),
		s.bus.Subscribe(events.CollectionTopic(store.CollectionGoals), recompute),
	)
	s.Recompute()
}

func (s *Service) Stop() {
	for _, unsub := range s.unsubs {
		unsub()
	}
	s.unsubs = nil
}

// SetTarget writes the user-set target for a period.
func (s *Service) SetTarget(ctx context.Context, period company.GoalPeriod, target decimal.Decimal) error {
	goal := company.Goal{
		ID:        company.GoalID(period),
		Period:    period,
		Target:    target,
		UpdatedAt: s.clock.Now().UTC(),
	}
	doc, err := store.NewDocument(goal.ID, goal)
	if err != nil {
		return err
	}
	return s.store.Put(store.CollectionGoals, doc)
}

// Progress returns the derived progress for a period.
func (s *Service) Progress(period company.GoalPeriod) (Progress, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.progress[period]
	return p, ok
}

// CashInHand is cash-mode collections minus expenses, over the whole mirror.
func (s *Service) CashInHand() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cashInHand
}

// Recompute rebuilds all derived values from the current mirrors.
func (s *Service) Recompute() {
	entries := s.decodeEntries(store.CollectionEntries)
	expenses := s.decodeEntries(store.CollectionExpenses)
	goals := s.decodeGoals()
	now := s.clock.Now().UTC()

	cash := decimal.Zero
	for _, e := range entries {
		if e.Mode == ledger.ModeCash {
			cash = cash.Add(e.Amount)
		}
	}
	for _, e := range expenses {
		if e.Mode == ledger.ModeCash {
			cash = cash.Sub(e.Amount)
		}
	}

	progress := make(map[company.GoalPeriod]Progress, len(goals))
	for period, g := range goals {
		from, to := periodRange(period, now)
		collected := decimal.Zero
		for _, e := range entries {
			if !e.At.Before(from) && e.At.Before(to) {
				collected = collected.Add(e.Amount)
			}
		}
		progress[period] = Progress{
			Period:    period,
			Target:    g.Target,
			Collected: collected,
			From:      from,
			To:        to,
		}
	}

	s.mu.Lock()
	s.progress = progress
	s.cashInHand = cash
	s.mu.Unlock()
}

func (s *Service) decodeEntries(collection string) []ledger.Entry {
	docs := s.store.Get(collection)
	entries := make([]ledger.Entry, 0, len(docs))
	for _, doc := range docs {
		var e ledger.Entry
		if err := doc.Decode(&e); err != nil {
			s.logger.Warn("undecodable ledger entry",
				zap.String("collection", collection),
				zap.String("id", doc.ID), zap.Error(err))
			continue
		}
		entries = append(entries, e)
	}
	return entries
}

func (s *Service) decodeGoals() map[company.GoalPeriod]company.Goal {
	goals := make(map[company.GoalPeriod]company.Goal)
	for _, doc := range s.store.Get(store.CollectionGoals) {
		var g company.Goal
		if err := doc.Decode(&g); err != nil {
			continue
		}
		if g.Period.Valid() {
			goals[g.Period] = g
		}
	}
	return goals
}

func periodRange(period company.GoalPeriod, now time.Time) (time.Time, time.Time) {
	y, m, d := now.Date()
	dayStart := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

	switch period {
	case company.PeriodDaily:
		return dayStart, dayStart.AddDate(0, 0, 1)
	case company.PeriodWeekly:
		offset := (int(dayStart.Weekday()) + 6) % 7 // weeks start Monday
		weekStart := dayStart.AddDate(0, 0, -offset)
		return weekStart, weekStart.AddDate(0, 0, 7)
	case company.PeriodMonthly:
		monthStart := time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
		return monthStart, monthStart.AddDate(0, 1, 0)
	default:
		yearStart := time.Date(y, 1, 1, 0, 0, 0, 0, time.UTC)
		return yearStart, yearStart.AddDate(1, 0, 0)
	}
}
