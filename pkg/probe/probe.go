package probe

import (
	"context"
	"fmt"
	"io"
	"time"

	"tradeprobe/pkg/models"
	"tradeprobe/pkg/session"

	"go.uber.org/zap"
)

type Status string

const (
	Pass         Status = "PASS"
	Fail         Status = "FAIL"
	Inconclusive Status = "INCONCLUSIVE"
)

func statusOf(o models.Outcome) Status {
	switch o {
	case models.OutcomeSucceeded:
		return Pass
	case models.OutcomeFailed:
		return Fail
	}
	return Inconclusive
}

// Check is the verdict of one protocol exchange.
type Check struct {
	Name    string        `json:"name"`
	Status  Status        `json:"status"`
	Latency time.Duration `json:"latency"`
	Detail  string        `json:"detail,omitempty"`
}

type Result struct {
	Team   string  `json:"team"`
	Checks []Check `json:"checks"`
}

// Failed reports whether any check failed. Inconclusive checks do not count.
func (r Result) Failed() bool {
	for _, c := range r.Checks {
		if c.Status == Fail {
			return true
		}
	}
	return false
}

func (r Result) WriteText(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "conformance probe for %s\n", r.Team); err != nil {
		return err
	}
	for _, c := range r.Checks {
		line := fmt.Sprintf("  %-12s %-12s %8s", c.Name, c.Status, c.Latency.Round(time.Microsecond))
		if c.Detail != "" {
			line += "  " + c.Detail
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

type Options struct {
	Session session.Options
	// Timeout bounds each request/reply check.
	Timeout time.Duration
	// ProductionGrace is how long production may stay unanswered.
	ProductionGrace time.Duration
}

var checks = []string{"login", "ping", "market-buy", "production"}

// Run opens one session with token and walks it through the checks in
// order. A failed login leaves the other checks inconclusive.
func Run(ctx context.Context, url, token string, opts Options) Result {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.ProductionGrace <= 0 {
		opts.ProductionGrace = 2 * time.Second
	}
	logger := opts.Session.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	res := Result{Team: token}
	start := time.Now()
	s, err := session.Open(ctx, url, token, opts.Session)
	if err != nil {
		res.Checks = append(res.Checks, Check{Name: "login", Status: Fail, Latency: time.Since(start), Detail: err.Error()})
		for _, name := range checks[1:] {
			res.Checks = append(res.Checks, Check{Name: name, Status: Inconclusive, Detail: "skipped, no session"})
		}
		return res
	}
	defer func() {
		s.Sweep()
		if err := s.Close(); err != nil {
			logger.Debug("close", zap.Error(err))
		}
	}()

	login := s.Login()
	res.Team = s.Team()
	res.Checks = append(res.Checks, Check{
		Name:    "login",
		Status:  Pass,
		Latency: time.Since(start),
		Detail:  fmt.Sprintf("balance %s, %d products", login.CurrentBalance, len(login.AuthorizedProducts)),
	})

	res.Checks = append(res.Checks, ping(ctx, s, opts.Timeout))

	product := firstProduct(login)
	res.Checks = append(res.Checks, marketBuy(ctx, s, product, opts.Timeout))
	res.Checks = append(res.Checks, production(ctx, s, product, opts.ProductionGrace))

	for _, c := range res.Checks {
		logger.Info("check",
			zap.String("name", c.Name),
			zap.String("status", string(c.Status)),
			zap.Duration("latency", c.Latency))
	}
	return res
}

func firstProduct(login *models.LoginOK) string {
	if len(login.AuthorizedProducts) > 0 {
		return login.AuthorizedProducts[0]
	}
	return models.Products[0]
}

func ping(ctx context.Context, s *session.Session, timeout time.Duration) Check {
	c := Check{Name: "ping"}
	reply, latency, err := s.Ping(ctx, timeout)
	c.Latency = latency
	switch {
	case err != nil && reply == nil:
		c.Status, c.Detail = Fail, err.Error()
	case reply.Kind() == models.KindPong:
		c.Status = Pass
	case reply.Kind() == models.KindTimeout:
		c.Status, c.Detail = Inconclusive, "no PONG"
	default:
		c.Status, c.Detail = Fail, describe(reply)
	}
	return c
}

func marketBuy(ctx context.Context, s *session.Session, product string, timeout time.Duration) Check {
	c := Check{Name: "market-buy"}
	res, err := s.PlaceOrder(ctx, models.OrderIntent{
		Side:    models.OrderSideBuy,
		Mode:    models.OrderModeMarket,
		Product: product,
		Qty:     1,
	}, timeout)
	if err != nil && res.Reply == nil {
		c.Status, c.Detail = Fail, err.Error()
		return c
	}
	c.Status, c.Latency = statusOf(res.Outcome), res.Latency
	c.Detail = product + ": " + describe(res.Reply)
	return c
}

func production(ctx context.Context, s *session.Session, product string, grace time.Duration) Check {
	c := Check{Name: "production"}
	res, err := s.Produce(ctx, product, 1, grace)
	if err != nil && res.Reply == nil {
		c.Status, c.Detail = Fail, err.Error()
		return c
	}
	c.Status, c.Latency = statusOf(res.Outcome), res.Latency
	c.Detail = product + ": " + describe(res.Reply)
	return c
}

func describe(m models.Message) string {
	switch m := m.(type) {
	case *models.Error:
		return fmt.Sprintf("ERROR %s %s", m.Code, m.Reason)
	case *models.Timeout:
		return fmt.Sprintf("TIMEOUT after %d other messages", len(m.Observed))
	case nil:
		return "no reply"
	}
	return m.Kind().String()
}
