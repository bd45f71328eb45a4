package stats

import (
	"sync"
	"sync/atomic"
	"time"

	"tradeprobe/pkg/accum"
	"tradeprobe/pkg/models"

	"github.com/c-pro/rolling"
	"github.com/shopspring/decimal"
)

const (
	recentLatencySamples = 256
	recentLatencyWindow  = time.Minute
)

// Sink mirrors statistics to an external collector as they are recorded.
type Sink interface {
	OrderOutcome(team string, o models.Outcome)
	ProductionOutcome(team string, o models.Outcome)
	Inbound(team string, k models.Kind)
	Fill(team string)
	Latency(team string, d time.Duration)
}

type NopSink struct{}

func (NopSink) OrderOutcome(string, models.Outcome)      {}
func (NopSink) ProductionOutcome(string, models.Outcome) {}
func (NopSink) Inbound(string, models.Kind)              {}
func (NopSink) Fill(string)                              {}
func (NopSink) Latency(string, time.Duration)            {}

// Session holds the counters of one connection session. Inbound
// classification counters are written by the dispatcher without locking;
// everything else is written by the session's own request paths.
// Counters are never reset during a run.
type Session struct {
	team     string
	strategy string
	sink     Sink

	inbound      [models.NumKinds]atomic.Int64
	decodeErrors atomic.Int64
	dropped      atomic.Int64

	mu sync.Mutex

	ordersSent         int64
	ordersSucceeded    int64
	ordersFailed       int64
	ordersInconclusive int64
	ordersFilled       int64
	fills              int64
	quantitySent       int64
	quantityFilled     int64

	productionsSent         int64
	productionsSucceeded    int64
	productionsFailed       int64
	productionsInconclusive int64

	unexpected      int64
	lateResponses   int64
	orphans         int64
	transportErrors int64

	profit    decimal.Decimal
	latencies []time.Duration
	latency   *accum.Accumulator
	recent    *rolling.Window
}

func NewSession(team, strategy string, sink Sink) *Session {
	if sink == nil {
		sink = NopSink{}
	}
	return &Session{
		team:     team,
		strategy: strategy,
		sink:     sink,
		latency:  accum.New(),
		recent:   rolling.NewWindow(recentLatencySamples, recentLatencyWindow),
	}
}

func (s *Session) Team() string { return s.team }

// RecordInbound counts one decoded inbound message by kind.
func (s *Session) RecordInbound(k models.Kind) {
	s.inbound[k].Add(1)
	s.sink.Inbound(s.team, k)
}

func (s *Session) RecordDecodeError() {
	s.decodeErrors.Add(1)
}

// RecordDropped counts a background message evicted by the inbox high-water
// mark.
func (s *Session) RecordDropped() {
	s.dropped.Add(1)
}

func (s *Session) Inbound(k models.Kind) int64 {
	return s.inbound[k].Load()
}

func (s *Session) RecordOrderSent(qty int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ordersSent++
	s.quantitySent += int64(qty)
}

// RecordOrderOutcome must be called exactly once per sent order. latency is
// ignored for inconclusive outcomes.
func (s *Session) RecordOrderOutcome(o models.Outcome, latency time.Duration) {
	s.mu.Lock()
	switch o {
	case models.OutcomeSucceeded:
		s.ordersSucceeded++
	case models.OutcomeFailed:
		s.ordersFailed++
	default:
		s.ordersInconclusive++
	}
	if o != models.OutcomeInconclusive {
		s.observeLatency(latency)
	}
	s.mu.Unlock()

	s.sink.OrderOutcome(s.team, o)
	if o != models.OutcomeInconclusive {
		s.sink.Latency(s.team, latency)
	}
}

// RecordFill books a fill against profit: sells add price*qty, buys subtract
// it. firstForOrder marks the first fill seen for its order.
func (s *Session) RecordFill(side models.OrderSide, f *models.Fill, firstForOrder bool) {
	s.mu.Lock()
	s.fills++
	s.quantityFilled += int64(f.FillQty)
	if firstForOrder {
		s.ordersFilled++
	}
	switch side {
	case models.OrderSideSell:
		s.profit = s.profit.Add(f.Notional())
	case models.OrderSideBuy:
		s.profit = s.profit.Sub(f.Notional())
	}
	s.mu.Unlock()

	s.sink.Fill(s.team)
}

func (s *Session) RecordProductionSent() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.productionsSent++
}

func (s *Session) RecordProductionOutcome(o models.Outcome, latency time.Duration) {
	s.mu.Lock()
	switch o {
	case models.OutcomeSucceeded:
		s.productionsSucceeded++
	case models.OutcomeFailed:
		s.productionsFailed++
	default:
		s.productionsInconclusive++
	}
	if o != models.OutcomeInconclusive {
		s.observeLatency(latency)
	}
	s.mu.Unlock()

	s.sink.ProductionOutcome(s.team, o)
	if o != models.OutcomeInconclusive {
		s.sink.Latency(s.team, latency)
	}
}

// RecordUnexpected counts a reply of a kind the caller did not ask for.
func (s *Session) RecordUnexpected() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unexpected++
}

// RecordLate counts a response that arrived after its wait had ended.
func (s *Session) RecordLate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lateResponses++
}

// RecordOrphan counts a correlated message for an id this session never sent.
func (s *Session) RecordOrphan() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orphans++
}

func (s *Session) RecordTransportError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transportErrors++
}

func (s *Session) observeLatency(d time.Duration) {
	s.latencies = append(s.latencies, d)
	s.latency.ObserveDuration(d)
	s.recent.Add(d.Seconds())
}

// RecentLatency summarizes response latency over the last minute.
func (s *Session) RecentLatency() (avg, max time.Duration, n int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.recent.Evict()
	n = s.recent.Count()
	if n == 0 {
		// an emptied window keeps a NaN sum, start over
		s.recent = rolling.NewWindow(recentLatencySamples, recentLatencyWindow)
		return 0, 0, 0
	}
	return seconds(s.recent.Avg()), seconds(s.recent.Max()), n
}

// Snapshot copies the current counters.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Team:                    s.team,
		Strategy:                s.strategy,
		OrdersSent:              s.ordersSent,
		OrdersSucceeded:         s.ordersSucceeded,
		OrdersFailed:            s.ordersFailed,
		OrdersInconclusive:      s.ordersInconclusive,
		OrdersFilled:            s.ordersFilled,
		Fills:                   s.fills,
		QuantitySent:            s.quantitySent,
		QuantityFilled:          s.quantityFilled,
		ProductionsSent:         s.productionsSent,
		ProductionsSucceeded:    s.productionsSucceeded,
		ProductionsFailed:       s.productionsFailed,
		ProductionsInconclusive: s.productionsInconclusive,
		ProtocolErrors:          s.inbound[models.KindError].Load(),
		Unexpected:              s.unexpected,
		LateResponses:           s.lateResponses,
		Orphans:                 s.orphans,
		TransportErrors:         s.transportErrors,
		DecodeErrors:            s.decodeErrors.Load(),
		Dropped:                 s.dropped.Load(),
		Profit:                  s.profit,
		Latencies:               append([]time.Duration(nil), s.latencies...),
		Inbound:                 make(map[string]int64),
	}

	for k := range s.inbound {
		n := s.inbound[k].Load()
		if n == 0 {
			continue
		}
		snap.Inbound[models.Kind(k).String()] = n
		if models.Kind(k).Background() {
			snap.Background += n
		}
	}

	return snap
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}
