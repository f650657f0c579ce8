package calculator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mtlprog/nerkh/internal/domain"
)

// SnapshotLoader loads the market snapshot for a date.
type SnapshotLoader interface {
	Snapshot(ctx context.Context, date time.Time) (domain.MarketSnapshot, error)
}

// Ticket identifies one market data request.
type Ticket struct {
	generation uint64
	Date       time.Time
}

// Session holds calculator state across asynchronous market data deliveries.
// Every request takes a Ticket; a delivery is applied only if no newer request
// was started since its ticket was issued.
type Session struct {
	mu         sync.Mutex
	state      State
	generation uint64
}

// NewSession creates a Session starting from state.
func NewSession(state State) *Session {
	return &Session{state: state}
}

// State returns the current calculator state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Begin tags a new request for date, superseding all earlier tickets.
func (s *Session) Begin(date time.Time) Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	return Ticket{generation: s.generation, Date: date}
}

// Deliver applies e if t is still the latest ticket. It returns false when the
// delivery was stale and discarded.
func (s *Session) Deliver(t Ticket, e Event) (State, Effects, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.generation != s.generation {
		return s.state, Effects{}, false
	}
	next, eff := Transition(s.state, e)
	s.state = next
	return next, eff, true
}

// Refresh loads the snapshot for date and applies it. A load that was superseded by
// a newer Begin leaves the state untouched and reports applied=false.
func (s *Session) Refresh(ctx context.Context, loader SnapshotLoader, date time.Time) (state State, eff Effects, applied bool, err error) {
	t := s.Begin(date)
	snap, err := loader.Snapshot(ctx, date)
	if err != nil {
		return s.State(), Effects{}, false, fmt.Errorf("loading snapshot: %w", err)
	}
	state, eff, applied = s.Deliver(t, EventFromSnapshot(snap))
	return state, eff, applied, nil
}
