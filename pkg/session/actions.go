package session

import (
	"context"
	"strings"
	"time"

	"tradeprobe/pkg/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	orderReplies      = models.Kinds(models.KindOrderAck, models.KindFill, models.KindError)
	productionReplies = models.Kinds(models.KindProductionOK, models.KindInventoryUpdate, models.KindError)
	pingReplies       = models.Kinds(models.KindPong)
)

// OrderResult describes how one order was answered.
type OrderResult struct {
	Order   models.PendingOrder
	Reply   models.Message
	Outcome models.Outcome
	Latency time.Duration
}

type ProductionResult struct {
	Product  string
	Quantity int
	Reply    models.Message
	Outcome  models.Outcome
	Latency  time.Duration
}

// NewOrderID returns a correlation id that no other order of this session
// has used.
func (s *Session) NewOrderID() string {
	prefix := strings.ToUpper(strings.ReplaceAll(s.team, " ", ""))
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		id := "ORD-" + prefix + "-" + uuid.NewString()
		if _, ok := s.orders[id]; !ok {
			return id
		}
	}
}

// PlaceOrder sends an order for intent and waits up to timeout for its
// ORDER_ACK, FILL or ERROR. The order's outcome is recorded exactly once;
// replies that arrive later only update the order and fill statistics.
func (s *Session) PlaceOrder(ctx context.Context, intent models.OrderIntent, timeout time.Duration) (OrderResult, error) {
	id := s.NewOrderID()
	sent := time.Now()
	p, msg := models.NewPendingOrder(id, intent, sent)

	if err := s.inbox.register(id, orderReplies); err != nil {
		return OrderResult{}, err
	}
	defer s.inbox.unregister(id)

	s.mu.Lock()
	s.orders[id] = p
	s.mu.Unlock()

	if err := s.Send(ctx, msg); err != nil {
		s.mu.Lock()
		delete(s.orders, id)
		s.mu.Unlock()
		return OrderResult{}, err
	}
	s.stats.RecordOrderSent(intent.Qty)

	reply, err := s.await(ctx, orderReplies, id, timeout)
	latency := time.Since(sent)

	s.mu.Lock()
	outcome := s.resolveOrder(p, reply)
	res := OrderResult{Order: *p, Reply: reply, Outcome: outcome, Latency: latency}
	s.mu.Unlock()

	s.stats.RecordOrderOutcome(outcome, latency)
	s.logger.Debug("order answered",
		zap.String("clOrdID", id),
		zap.String("side", string(intent.Side)),
		zap.String("product", intent.Product),
		zap.Int("qty", intent.Qty),
		zap.Stringer("reply", reply.Kind()),
		zap.Stringer("outcome", outcome),
		zap.Duration("latency", latency))

	return res, err
}

// resolveOrder applies the reply a wait returned. Caller holds s.mu.
func (s *Session) resolveOrder(p *models.PendingOrder, reply models.Message) models.Outcome {
	now := time.Now()
	switch v := reply.(type) {
	case *models.OrderAck:
		p.UpdatedAt = now
		if v.Rejected() {
			p.Status = models.OrderStatusErrored
			return models.OutcomeFailed
		}
		p.Status = models.OrderStatusAcked
		return models.OutcomeSucceeded
	case *models.Fill:
		s.applyFill(p, v, now)
		return models.OutcomeSucceeded
	case *models.Error:
		p.Status = models.OrderStatusErrored
		p.UpdatedAt = now
		s.logger.Debug("order rejected", zap.String("clOrdID", p.ClOrdID),
			zap.String("code", v.Code), zap.String("reason", v.Reason))
		return models.OutcomeFailed
	case *models.Timeout:
		p.Status = models.OrderStatusTimedOut
		p.UpdatedAt = now
		return models.OutcomeInconclusive
	default:
		s.stats.RecordUnexpected()
		s.logger.Debug("unexpected reply to order", zap.String("clOrdID", p.ClOrdID),
			zap.Stringer("kind", reply.Kind()))
		return models.OutcomeInconclusive
	}
}

// applyFill books a fill against its order. Caller holds s.mu.
func (s *Session) applyFill(p *models.PendingOrder, f *models.Fill, now time.Time) {
	first := p.FilledQty == 0
	p.ApplyFill(f, now)
	s.stats.RecordFill(p.Side, f, first)
}

// settle absorbs a correlated message whose wait already ended or never
// existed. It never changes a recorded outcome.
func (s *Session) settle(m models.Message) {
	id := m.CorrelationID()
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.orders[id]
	if !ok {
		s.stats.RecordOrphan()
		if f, isFill := m.(*models.Fill); isFill {
			s.stats.RecordFill(f.Side, f, false)
		}
		s.logger.Debug("orphan response", zap.String("clOrdID", id), zap.Stringer("kind", m.Kind()))
		return
	}

	if p.Status == models.OrderStatusTimedOut {
		s.stats.RecordLate()
	}
	switch v := m.(type) {
	case *models.Fill:
		s.applyFill(p, v, now)
	case *models.OrderAck:
		if p.Status != models.OrderStatusFilled && !v.Rejected() {
			p.Status = models.OrderStatusAcked
			p.UpdatedAt = now
		}
	case *models.Error:
		if p.Status != models.OrderStatusFilled {
			p.Status = models.OrderStatusErrored
			p.UpdatedAt = now
		}
	}
}

// Order returns a copy of the tracked order with the given id.
func (s *Session) Order(id string) (models.PendingOrder, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.orders[id]
	if !ok {
		return models.PendingOrder{}, false
	}
	return *p, true
}

// Produce sends a PRODUCTION_UPDATE and waits up to grace for a
// PRODUCTION_OK or INVENTORY_UPDATE. Silence within grace is inconclusive.
func (s *Session) Produce(ctx context.Context, product string, quantity int, grace time.Duration) (ProductionResult, error) {
	if err := s.inbox.register("", productionReplies); err != nil {
		return ProductionResult{}, err
	}
	defer s.inbox.unregister("")

	sent := time.Now()
	if err := s.Send(ctx, &models.ProductionUpdate{Product: product, Quantity: quantity}); err != nil {
		return ProductionResult{}, err
	}
	s.stats.RecordProductionSent()

	reply, err := s.await(ctx, productionReplies, "", grace)
	latency := time.Since(sent)

	var outcome models.Outcome
	switch reply.Kind() {
	case models.KindProductionOK, models.KindInventoryUpdate:
		outcome = models.OutcomeSucceeded
	case models.KindError:
		outcome = models.OutcomeFailed
	case models.KindTimeout:
		outcome = models.OutcomeInconclusive
	default:
		s.stats.RecordUnexpected()
		outcome = models.OutcomeInconclusive
	}
	s.stats.RecordProductionOutcome(outcome, latency)

	s.logger.Debug("production answered",
		zap.String("product", product),
		zap.Int("quantity", quantity),
		zap.Stringer("reply", reply.Kind()),
		zap.Stringer("outcome", outcome))

	return ProductionResult{
		Product:  product,
		Quantity: quantity,
		Reply:    reply,
		Outcome:  outcome,
		Latency:  latency,
	}, err
}

// Ping measures a PING/PONG round trip.
func (s *Session) Ping(ctx context.Context, timeout time.Duration) (models.Message, time.Duration, error) {
	if err := s.inbox.register("", pingReplies); err != nil {
		return nil, 0, err
	}
	defer s.inbox.unregister("")

	sent := time.Now()
	if err := s.Send(ctx, &models.Ping{}); err != nil {
		return nil, 0, err
	}
	reply, err := s.await(ctx, pingReplies, "", timeout)
	return reply, time.Since(sent), err
}
