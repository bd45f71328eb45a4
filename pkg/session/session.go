package session

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"tradeprobe/pkg/accounts"
	"tradeprobe/pkg/connectors"
	"tradeprobe/pkg/models"
	"tradeprobe/pkg/stats"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var (
	ErrAuth      = errors.New("authentication failed")
	ErrTransport = errors.New("transport failure")
	// ErrClosed is a transport failure: the connection is gone or was never
	// running.
	ErrClosed = errors.WithMessage(ErrTransport, "session is not running")
)

const (
	defaultLoginTimeout = 10 * time.Second
	defaultCloseGrace   = 2 * time.Second
	writeTimeout        = 10 * time.Second
)

type State int32

const (
	StateNew State = iota
	StateConnecting
	StateAuthenticated
	StateRunning
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	case StateRunning:
		return "running"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

type Options struct {
	// Name labels the session until the server reports its team name.
	Name     string
	Strategy string
	TZ       string

	LoginTimeout   time.Duration
	CloseGrace     time.Duration
	InboxHighWater int

	Logger   *zap.Logger
	Sink     stats.Sink
	Accounts *accounts.Accounts
	// OnState observes every lifecycle transition.
	OnState func(from, to State)
}

// Session is one authenticated connection to the exchange. A single
// dispatcher goroutine reads from it; any number of goroutines may send and
// wait on it.
type Session struct {
	token      string
	team       string
	closeGrace time.Duration
	logger     *zap.Logger
	onState    func(from, to State)

	ws      *connectors.WS
	inbox   *Inbox
	stats   *stats.Session
	account *models.Account
	market  *Market
	login   *models.LoginOK

	state     atomic.Int32
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error

	mu     sync.Mutex
	orders map[string]*models.PendingOrder
}

// Open dials url and logs in with token. Any failure before LOGIN_OK is
// terminal for this session: dial errors wrap ErrTransport, a rejected or
// unanswered login wraps ErrAuth.
func Open(ctx context.Context, url, token string, opts Options) (*Session, error) {
	if opts.LoginTimeout <= 0 {
		opts.LoginTimeout = defaultLoginTimeout
	}
	if opts.CloseGrace <= 0 {
		opts.CloseGrace = defaultCloseGrace
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	name := opts.Name
	if name == "" {
		name = token
	}

	s := &Session{
		token:      token,
		team:       name,
		closeGrace: opts.CloseGrace,
		logger:     opts.Logger.With(zap.String("team", name)),
		onState:    opts.OnState,
		ws:         &connectors.WS{},
		market:     NewMarket(),
		done:       make(chan struct{}),
		orders:     make(map[string]*models.PendingOrder),
	}
	s.setState(StateConnecting)

	if err := s.ws.Connect(ctx, url); err != nil {
		s.setState(StateClosed)
		return nil, errors.Wrapf(ErrTransport, "connect %s: %v", url, err)
	}

	login, early, err := s.authenticate(ctx, opts.TZ, opts.LoginTimeout)
	if err != nil {
		_ = s.ws.Close(0, nil)
		s.setState(StateClosed)
		return nil, err
	}

	if login.Team != "" {
		s.team = login.Team
		s.logger = opts.Logger.With(zap.String("team", login.Team))
	}
	s.login = login
	s.stats = stats.NewSession(s.team, opts.Strategy, opts.Sink)
	if opts.Accounts != nil {
		s.account = opts.Accounts.AddAccount(s.team)
	} else {
		s.account = models.NewAccount(s.team)
	}
	s.account.Seed(login, time.Now())
	s.inbox = NewInbox(opts.InboxHighWater, s.logger, func(models.Message) {
		s.stats.RecordDropped()
	})
	s.setState(StateAuthenticated)

	s.stats.RecordInbound(models.KindLoginOK)
	for _, m := range early {
		s.deliver(m)
	}

	s.setState(StateRunning)
	go s.dispatch()

	s.logger.Info("session authenticated",
		zap.String("species", login.Species),
		zap.String("balance", login.CurrentBalance.String()),
		zap.Int("products", len(login.AuthorizedProducts)))

	return s, nil
}

// authenticate sends LOGIN and reads frames directly until LOGIN_OK. Frames
// that arrive first are returned for delivery once the dispatcher runs.
func (s *Session) authenticate(ctx context.Context, tz string, timeout time.Duration) (*models.LoginOK, []models.Message, error) {
	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := s.ws.SetReadDeadline(deadline); err != nil {
		return nil, nil, errors.Wrapf(ErrTransport, "set read deadline: %v", err)
	}
	stop := context.AfterFunc(ctx, func() {
		_ = s.ws.SetReadDeadline(time.Now())
	})
	defer stop()

	data, err := models.Encode(&models.Login{Token: s.token, TZ: tz})
	if err != nil {
		return nil, nil, err
	}
	wctx, cancel := context.WithDeadline(ctx, deadline)
	err = s.ws.Write(wctx, data)
	cancel()
	if err != nil {
		return nil, nil, errors.Wrapf(ErrTransport, "send login: %v", err)
	}

	var early []models.Message
	for {
		data, err := s.ws.Read()
		if err != nil {
			return nil, nil, errors.Wrapf(ErrAuth, "no LOGIN_OK within %s: %v", timeout, err)
		}
		m, err := models.Decode(data)
		if err != nil {
			s.logger.Debug("undecodable frame before login", zap.Error(err))
			continue
		}

		switch v := m.(type) {
		case *models.LoginOK:
			if err := s.ws.SetReadDeadline(time.Time{}); err != nil {
				return nil, nil, errors.Wrapf(ErrTransport, "clear read deadline: %v", err)
			}
			return v, early, nil
		case *models.Error:
			return nil, nil, errors.Wrapf(ErrAuth, "login rejected: %s %s", v.Code, v.Reason)
		default:
			early = append(early, m)
		}
	}
}

func (s *Session) Team() string { return s.team }

func (s *Session) State() State { return State(s.state.Load()) }

// setState moves the lifecycle forward. Transitions never go backwards.
func (s *Session) setState(to State) bool {
	for {
		from := State(s.state.Load())
		if from >= to {
			return false
		}
		if s.state.CompareAndSwap(int32(from), int32(to)) {
			if s.onState != nil {
				s.onState(from, to)
			}
			return true
		}
	}
}

// Login returns the snapshot the server sent at login.
func (s *Session) Login() *models.LoginOK { return s.login }

func (s *Session) Account() *models.Account { return s.account }

func (s *Session) Market() *Market { return s.market }

func (s *Session) Stats() *stats.Session { return s.stats }

// Done is closed once the dispatcher has exited.
func (s *Session) Done() <-chan struct{} { return s.done }

// Send writes one frame. It fails with ErrClosed unless the session is
// running; a failed write wraps ErrTransport and starts closing the session.
func (s *Session) Send(ctx context.Context, m models.Message) error {
	if st := s.State(); st != StateRunning {
		return errors.Wrapf(ErrClosed, "send %s in state %s", m.Kind(), st)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := models.Encode(m)
	if err != nil {
		return err
	}

	// a write cut short by the caller's context would leave the socket unusable
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()
	if err := s.ws.Write(wctx, data); err != nil {
		s.stats.RecordTransportError()
		s.setState(StateClosing)
		s.logger.Warn("write failed", zap.Stringer("kind", m.Kind()), zap.Error(err))
		return errors.Wrapf(ErrTransport, "send %s: %v", m.Kind(), err)
	}
	return nil
}

// Close stops the dispatcher and releases the connection, waiting up to the
// close grace for the server to acknowledge. Calling it again returns the
// first result.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.setState(StateClosing)

		err := s.ws.Close(s.closeGrace, s.done)
		if err != nil && !errors.Is(err, net.ErrClosed) {
			s.closeErr = errors.Wrap(err, "close session")
		}

		select {
		case <-s.done:
		case <-time.After(s.closeGrace):
			s.logger.Warn("dispatcher did not stop in time")
		}
		s.inbox.Close()
		s.setState(StateClosed)
		s.logger.Debug("session closed")
	})
	return s.closeErr
}
