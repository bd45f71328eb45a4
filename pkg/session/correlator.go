package session

import (
	"context"
	"time"

	"tradeprobe/pkg/models"

	"go.uber.org/zap"
)

// pollSlice bounds a single blocking step of a wait so the overall deadline is
// re-checked even without inbound traffic.
const pollSlice = 100 * time.Millisecond

type verdict uint8

const (
	verdictKeep verdict = iota
	verdictTake
	verdictDiscard
	verdictSettle
)

// classify decides what a wait for (accept, id) does with m. Caller holds
// in.mu.
func (in *Inbox) classify(m models.Message, accept models.KindSet, id string) verdict {
	k := m.Kind()
	mid := m.CorrelationID()
	foreign := mid != "" && mid != id

	if foreign {
		if _, ok := in.awaited[mid]; ok {
			return verdictKeep
		}
	}
	if accept.Has(k) && (id == "" || mid == id) {
		return verdictTake
	}
	if k == models.KindError && !foreign {
		return verdictTake
	}
	if foreign {
		return verdictSettle
	}
	if k.Background() {
		return verdictDiscard
	}
	if id != "" && in.looseWait && in.loose.Has(k) {
		return verdictKeep
	}
	// Unexpected but plausible: hand it to the caller instead of hanging.
	return verdictTake
}

// scan walks the inbox once for a wait. It returns the first message the wait
// takes, appending everything it discards to observed. Correlated messages
// nobody awaits are moved to settled. When nothing is taken it returns the
// channel that signals the next push and whether the inbox is closed.
func (in *Inbox) scan(accept models.KindSet, id string, observed, settled *[]models.Message) (models.Message, <-chan struct{}, bool) {
	in.mu.Lock()
	defer in.mu.Unlock()

	for i := 0; i < in.q.Len(); {
		m := in.q.At(i)
		switch in.classify(m, accept, id) {
		case verdictKeep:
			i++
		case verdictTake:
			in.q.Remove(i)
			return m, nil, false
		case verdictSettle:
			in.q.Remove(i)
			*observed = append(*observed, m)
			*settled = append(*settled, m)
		case verdictDiscard:
			in.q.Remove(i)
			*observed = append(*observed, m)
		}
	}
	return nil, in.notify, in.closed
}

// sweep removes everything no outstanding wait can claim: background
// messages, correlated messages for ids nobody awaits and, when no
// uncorrelated wait is outstanding, stale uncorrelated replies. Settleable
// messages are returned in arrival order.
func (in *Inbox) sweep() (settled, stale []models.Message) {
	in.mu.Lock()
	defer in.mu.Unlock()

	for i := 0; i < in.q.Len(); {
		m := in.q.At(i)
		mid := m.CorrelationID()
		switch {
		case mid != "":
			if _, ok := in.awaited[mid]; ok {
				i++
				continue
			}
			settled = append(settled, in.q.Remove(i))
		case m.Kind().Background():
			in.q.Remove(i)
		case !in.looseWait:
			stale = append(stale, in.q.Remove(i))
		default:
			i++
		}
	}
	return settled, stale
}

// Await blocks until a message of an accepted kind (carrying id, when id is
// not empty) arrives, an ERROR preempts the wait, or an unexpected message
// shows up. When timeout elapses or ctx is done first it returns a
// *models.Timeout holding every message the wait observed and set aside.
// If the inbox closes, the Timeout comes with ErrClosed.
//
// Only one wait with an empty id may be outstanding per session.
func (s *Session) Await(ctx context.Context, accept models.KindSet, id string, timeout time.Duration) (models.Message, error) {
	if err := s.inbox.register(id, accept); err != nil {
		return nil, err
	}
	defer s.inbox.unregister(id)

	return s.await(ctx, accept, id, timeout)
}

// await runs a wait that is already registered.
func (s *Session) await(ctx context.Context, accept models.KindSet, id string, timeout time.Duration) (models.Message, error) {
	deadline := time.Now().Add(timeout)
	var observed []models.Message

	for {
		var settled []models.Message
		m, wake, closed := s.inbox.scan(accept, id, &observed, &settled)
		for _, sm := range settled {
			s.settle(sm)
		}
		if m != nil {
			return m, nil
		}
		if closed {
			return &models.Timeout{Observed: observed}, ErrClosed
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return &models.Timeout{Observed: observed}, nil
		}
		if remaining > pollSlice {
			remaining = pollSlice
		}

		timer := time.NewTimer(remaining)
		select {
		case <-wake:
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return &models.Timeout{Observed: observed}, nil
		}
		timer.Stop()
	}
}

// Sweep settles queued late or orphaned responses and drops traffic no wait
// can claim. It never blocks.
func (s *Session) Sweep() {
	settled, stale := s.inbox.sweep()
	for _, m := range settled {
		s.settle(m)
	}
	for _, m := range stale {
		switch m.Kind() {
		case models.KindProductionOK, models.KindPong, models.KindLoginOK:
			s.stats.RecordLate()
		}
		s.logger.Debug("dropped stale message", zap.Stringer("kind", m.Kind()))
	}
}
