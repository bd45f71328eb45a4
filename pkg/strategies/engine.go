package strategies

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"tradeprobe/pkg/models"
	"tradeprobe/pkg/session"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	defaultOrderTimeout    = 5 * time.Second
	defaultProductionGrace = 2 * time.Second
	minInterval            = 10 * time.Millisecond
)

type State int32

const (
	StateIdle State = iota
	StateProducing
	StateTrading
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateProducing:
		return "producing"
	case StateTrading:
		return "trading"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

// Trader is the part of a session an engine drives.
type Trader interface {
	Team() string
	PlaceOrder(ctx context.Context, intent models.OrderIntent, timeout time.Duration) (session.OrderResult, error)
	Produce(ctx context.Context, product string, quantity int, grace time.Duration) (session.ProductionResult, error)
	Sweep()
}

type Config struct {
	OrderTimeout    time.Duration
	ProductionGrace time.Duration
}

// Engine runs one session's production and trading timers. Its state
// survives between phases; only the active generator changes.
type Engine struct {
	trader Trader
	env    *Env
	cfg    Config
	logger *zap.Logger

	state    atomic.Int32
	stop     chan struct{}
	stopOnce sync.Once
}

func NewEngine(trader Trader, env *Env, cfg Config, logger *zap.Logger) *Engine {
	if cfg.OrderTimeout <= 0 {
		cfg.OrderTimeout = defaultOrderTimeout
	}
	if cfg.ProductionGrace <= 0 {
		cfg.ProductionGrace = defaultProductionGrace
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		trader: trader,
		env:    env,
		cfg:    cfg,
		logger: logger.With(zap.String("team", trader.Team())),
		stop:   make(chan struct{}),
	}
}

func (e *Engine) State() State { return State(e.state.Load()) }

func (e *Engine) setState(s State) {
	for {
		cur := e.state.Load()
		if State(cur) == StateStopped {
			return
		}
		if e.state.CompareAndSwap(cur, int32(s)) {
			return
		}
	}
}

// Stop makes Run return after its current action. The engine cannot be
// restarted.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		e.state.Store(int32(StateStopped))
		close(e.stop)
	})
}

func (e *Engine) stopped() bool {
	select {
	case <-e.stop:
		return true
	default:
		return false
	}
}

// Run drives gen until ctx is done or the engine is stopped. ctx is only
// checked between actions: an order or production already in flight waits
// for its own deadline unless the engine is stopped. Protocol errors and
// timeouts are recorded by the session and never end the run; a closed or
// broken session does, and its error is returned.
func (e *Engine) Run(ctx context.Context, gen Generator) error {
	prodEvery, tradeEvery := gen.Intervals(e.env.Profile)
	prodEvery, tradeEvery = floor(prodEvery), floor(tradeEvery)
	prod, prodC := e.timer(prodEvery)
	trade, tradeC := e.timer(tradeEvery)
	defer func() {
		if prod != nil {
			prod.Stop()
		}
		if trade != nil {
			trade.Stop()
		}
		e.setState(StateIdle)
	}()

	e.logger.Debug("engine running",
		zap.String("generator", gen.Name()),
		zap.Duration("production_interval", prodEvery),
		zap.Duration("trading_interval", tradeEvery))

	for {
		if e.stopped() || ctx.Err() != nil {
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case <-e.stop:
			return nil
		case <-prodC:
			e.setState(StateProducing)
			actx, release := e.actionContext(ctx)
			err := e.produce(actx, gen)
			release()
			e.trader.Sweep()
			e.setState(StateIdle)
			if err != nil {
				return err
			}
			prod.Reset(prodEvery)
		case <-tradeC:
			e.setState(StateTrading)
			actx, release := e.actionContext(ctx)
			err := e.trade(actx, gen)
			release()
			e.trader.Sweep()
			e.setState(StateIdle)
			if err != nil {
				return err
			}
			trade.Reset(tradeEvery)
		}
	}
}

// actionContext keeps ctx's values but drops its deadline and cancellation;
// only Stop cuts the action short.
func (e *Engine) actionContext(ctx context.Context) (context.Context, context.CancelFunc) {
	actx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	go func() {
		defer cancel()
		select {
		case <-e.stop:
		case <-actx.Done():
		}
	}()
	return actx, cancel
}

// timer returns a timer whose first tick is jittered within a quarter
// interval, or a nil channel when the activity is disabled.
func (e *Engine) timer(every time.Duration) (*time.Timer, <-chan time.Time) {
	if every <= 0 {
		return nil, nil
	}
	t := time.NewTimer(time.Duration(e.env.Rand.Int63n(int64(every/4) + 1)))
	return t, t.C
}

func floor(d time.Duration) time.Duration {
	if d > 0 && d < minInterval {
		return minInterval
	}
	return d
}

func (e *Engine) produce(ctx context.Context, gen Generator) error {
	product, qty, ok := gen.NextProduction(e.env)
	if !ok {
		return nil
	}
	_, err := e.trader.Produce(ctx, product, qty, e.cfg.ProductionGrace)
	return e.check(err, "production")
}

func (e *Engine) trade(ctx context.Context, gen Generator) error {
	intent, ok := gen.NextOrder(e.env)
	if !ok {
		return nil
	}
	_, err := e.trader.PlaceOrder(ctx, intent, e.cfg.OrderTimeout)
	return e.check(err, "order")
}

// check separates errors that end the engine from those it rides out.
func (e *Engine) check(err error, action string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, session.ErrTransport):
		e.logger.Warn("session lost, engine stopping", zap.String("action", action), zap.Error(err))
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return nil
	default:
		e.logger.Debug("action skipped", zap.String("action", action), zap.Error(err))
		return nil
	}
}
