package sim

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"tradeprobe/pkg/accounts"
	"tradeprobe/pkg/models"
	"tradeprobe/pkg/session"
	"tradeprobe/pkg/stats"
	"tradeprobe/pkg/strategies"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	defaultStagger          = 500 * time.Millisecond
	defaultProgressInterval = 30 * time.Second
)

type Config struct {
	URL    string
	Teams  []models.StrategyProfile
	Phases []Phase

	// Stagger separates successive session opens.
	Stagger          time.Duration
	ProgressInterval time.Duration
	// Seed drives every generator; zero picks one from the clock.
	Seed int64
	TopN int

	// Session is the template for every session; Name and Strategy are
	// filled per team.
	Session session.Options
	Engine  strategies.Config
	Logger  *zap.Logger
}

// Orchestrator runs a pool of sessions through an ordered list of phases.
type Orchestrator struct {
	cfg      Config
	logger   *zap.Logger
	accounts *accounts.Accounts
}

type member struct {
	session *session.Session
	engine  *strategies.Engine
	lost    atomic.Bool
}

func New(cfg Config) (*Orchestrator, error) {
	if cfg.URL == "" {
		return nil, errors.New("no server url")
	}
	if len(cfg.Teams) == 0 {
		return nil, errors.New("no teams to run")
	}
	if len(cfg.Phases) == 0 {
		return nil, errors.New("no phases to run")
	}
	if cfg.Stagger < 0 {
		cfg.Stagger = 0
	} else if cfg.Stagger == 0 {
		cfg.Stagger = defaultStagger
	}
	if cfg.ProgressInterval <= 0 {
		cfg.ProgressInterval = defaultProgressInterval
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	accs := cfg.Session.Accounts
	if accs == nil {
		accs = accounts.NewAccounts()
		cfg.Session.Accounts = accs
	}
	if cfg.Session.Logger == nil {
		cfg.Session.Logger = cfg.Logger
	}

	return &Orchestrator{cfg: cfg, logger: cfg.Logger, accounts: accs}, nil
}

// Run opens every session, drives the phases in order and closes everything
// before aggregating. Sessions that fail to open are reported, not fatal; a
// run with no session at all still returns a report. Cancelling ctx ends the
// current phase early and skips the rest.
func (o *Orchestrator) Run(ctx context.Context) (stats.Report, error) {
	started := time.Now()

	members, failures := o.open(ctx)
	o.logger.Info("sessions opened",
		zap.Int("connected", len(members)),
		zap.Int("failed", len(failures)),
		zap.Duration("elapsed", time.Since(started)))

	if len(members) > 0 {
		for _, ph := range o.cfg.Phases {
			if ctx.Err() != nil {
				o.logger.Warn("run cancelled, skipping remaining phases")
				break
			}
			o.runPhase(ctx, ph, members)
		}
	}

	o.shutdown(members)
	ended := time.Now()

	snapshots := make([]stats.Snapshot, 0, len(members))
	for _, m := range members {
		snap := m.session.Stats().Snapshot()
		snap.BalanceChange = o.accounts.BalanceChange(m.session.Team())
		snapshots = append(snapshots, snap)
	}

	return stats.Aggregate(stats.Input{
		Sessions: snapshots,
		Failures: failures,
		Started:  started,
		Ended:    ended,
		TopN:     o.cfg.TopN,
	}), nil
}

// open dials every team concurrently, starting each one a stagger after the
// previous. Members keep the order of the configured teams.
func (o *Orchestrator) open(ctx context.Context) ([]*member, []stats.Failure) {
	opened := make([]*member, len(o.cfg.Teams))
	failed := make([]*stats.Failure, len(o.cfg.Teams))

	var wg sync.WaitGroup
	for i, p := range o.cfg.Teams {
		wg.Add(1)
		go func(i int, p models.StrategyProfile) {
			defer wg.Done()

			delay := time.NewTimer(time.Duration(i) * o.cfg.Stagger)
			defer delay.Stop()
			select {
			case <-ctx.Done():
				failed[i] = &stats.Failure{Team: p.Label(), Error: ctx.Err().Error()}
				return
			case <-delay.C:
			}

			opts := o.cfg.Session
			opts.Name = p.Label()
			opts.Strategy = string(p.Kind)
			s, err := session.Open(ctx, o.cfg.URL, p.Token, opts)
			if err != nil {
				o.logger.Warn("session excluded", zap.String("team", p.Label()), zap.Error(err))
				failed[i] = &stats.Failure{Team: p.Label(), Error: err.Error()}
				return
			}

			env := strategies.NewEnv(p, i, o.cfg.Seed+int64(i), s.Market())
			opened[i] = &member{
				session: s,
				engine:  strategies.NewEngine(s, env, o.cfg.Engine, o.logger),
			}
		}(i, p)
	}
	wg.Wait()

	var members []*member
	var failures []stats.Failure
	for i := range o.cfg.Teams {
		if opened[i] != nil {
			members = append(members, opened[i])
		}
		if failed[i] != nil {
			failures = append(failures, *failed[i])
		}
	}
	return members, failures
}

// runPhase activates ph on every live session and returns once its duration
// has passed and every engine has finished its current action.
func (o *Orchestrator) runPhase(ctx context.Context, ph Phase, members []*member) {
	pctx, cancel := context.WithTimeout(ctx, ph.Duration)
	defer cancel()

	logger := o.logger.With(zap.String("phase", ph.Name))
	logger.Info("phase started",
		zap.String("generator", ph.Generator.Name()),
		zap.Duration("duration", ph.Duration))
	started := time.Now()
	before := o.totals(members)

	var wg sync.WaitGroup
	for _, m := range members {
		if m.lost.Load() || m.session.State() != session.StateRunning {
			continue
		}
		wg.Add(1)
		go func(m *member) {
			defer wg.Done()
			if err := m.engine.Run(pctx, ph.Generator); err != nil {
				m.lost.Store(true)
				logger.Warn("session lost", zap.String("team", m.session.Team()), zap.Error(err))
			}
		}(m)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	// The phase deadline lets in-flight actions finish; cancelling the run
	// stops every engine at once.
	cancelled := ctx.Done()
	ticker := time.NewTicker(o.cfg.ProgressInterval)
	defer ticker.Stop()
wait:
	for {
		select {
		case <-ticker.C:
			o.progress(logger, members)
		case <-cancelled:
			for _, m := range members {
				m.engine.Stop()
			}
			cancelled = nil
		case <-done:
			break wait
		}
	}

	after := o.totals(members)
	logger.Info("phase finished",
		zap.Duration("elapsed", time.Since(started)),
		zap.Int64("orders", after.orders-before.orders),
		zap.Int64("fills", after.fills-before.fills),
		zap.Int64("productions", after.productions-before.productions))
}

type tally struct {
	live        int
	orders      int64
	fills       int64
	productions int64
	avg, max    time.Duration
}

func (o *Orchestrator) totals(members []*member) tally {
	var p tally
	var weighted float64
	var samples int64
	for _, m := range members {
		if !m.lost.Load() && m.session.State() == session.StateRunning {
			p.live++
		}
		snap := m.session.Stats().Snapshot()
		p.orders += snap.OrdersSent
		p.fills += snap.Fills
		p.productions += snap.ProductionsSent

		avg, max, n := m.session.Stats().RecentLatency()
		weighted += float64(avg) * float64(n)
		samples += n
		if max > p.max {
			p.max = max
		}
	}
	if samples > 0 {
		p.avg = time.Duration(weighted / float64(samples))
	}
	return p
}

func (o *Orchestrator) progress(logger *zap.Logger, members []*member) {
	p := o.totals(members)
	logger.Info("progress",
		zap.Int("live", p.live),
		zap.Int64("orders", p.orders),
		zap.Int64("fills", p.fills),
		zap.Int64("productions", p.productions),
		zap.Duration("latency_avg", p.avg),
		zap.Duration("latency_max", p.max))
}

// shutdown stops every engine, settles whatever replies are already queued
// and closes all sessions concurrently.
func (o *Orchestrator) shutdown(members []*member) {
	for _, m := range members {
		m.engine.Stop()
	}

	var wg sync.WaitGroup
	for _, m := range members {
		wg.Add(1)
		go func(m *member) {
			defer wg.Done()
			m.session.Sweep()
			if err := m.session.Close(); err != nil {
				o.logger.Debug("close", zap.String("team", m.session.Team()), zap.Error(err))
			}
		}(m)
	}
	wg.Wait()
}
