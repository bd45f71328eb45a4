package session

import (
	"time"

	"tradeprobe/pkg/connectors"
	"tradeprobe/pkg/models"

	"go.uber.org/zap"
)

// dispatch is the session's only reader. It decodes every frame into the
// inbox in arrival order until the connection fails or is closed.
func (s *Session) dispatch() {
	defer close(s.done)
	defer s.inbox.Close()

	for {
		data, err := s.ws.Read()
		if err != nil {
			if s.State() >= StateClosing {
				s.logger.Debug("dispatcher stopped", zap.Error(err))
				return
			}
			s.setState(StateClosing)
			if connectors.IsClosedError(err) {
				s.logger.Info("server closed the session", zap.Error(err))
				return
			}
			s.stats.RecordTransportError()
			s.logger.Warn("read failed, session closing", zap.Error(err))
			return
		}

		m, err := models.Decode(data)
		if err != nil {
			s.stats.RecordDecodeError()
			s.logger.Debug("undecodable frame", zap.Error(err), zap.ByteString("frame", data))
			continue
		}
		s.deliver(m)
	}
}

// deliver counts m, folds it into the market and account views and queues
// it. EVENT_DELTA is unpacked into its fills.
func (s *Session) deliver(m models.Message) {
	s.stats.RecordInbound(m.Kind())
	now := time.Now()

	switch v := m.(type) {
	case *models.EventDelta:
		for i := range v.Events {
			f := v.Events[i]
			s.deliver(&f)
		}
		return
	case *models.Ticker:
		s.market.Update(v, now)
	case *models.InventoryUpdate:
		s.account.SetInventory(v.Inventory, now)
	case *models.BalanceUpdate:
		s.account.UpdateBalance(v.Balance, now)
	case *models.Unknown:
		s.logger.Debug("unknown message type", zap.String("type", v.Type))
	}

	s.inbox.Push(m)
}
