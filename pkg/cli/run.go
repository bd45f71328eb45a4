package cli

import (
	"os"
	"os/signal"
	"syscall"

	"tradeprobe/pkg/config"
	"tradeprobe/pkg/metrics"
	"tradeprobe/pkg/session"
	"tradeprobe/pkg/sim"
	"tradeprobe/pkg/strategies"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var ErrNoSessions = errors.New("no session connected")

func newRunCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Drive every configured team through the simulation phases",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(a.v)
			if err != nil {
				return err
			}
			logger, closeLog, err := a.logger()
			if err != nil {
				return err
			}
			defer closeLog()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			m := metrics.New()
			if cfg.MetricsAddr != "" {
				if err := m.Serve(ctx, cfg.MetricsAddr, logger); err != nil {
					return err
				}
			}

			orch, err := sim.New(sim.Config{
				URL:              cfg.Server,
				Teams:            cfg.Teams,
				Phases:           cfg.Phases,
				Stagger:          cfg.Stagger,
				ProgressInterval: cfg.ProgressInterval,
				Seed:             cfg.Seed,
				TopN:             cfg.TopN,
				Session: session.Options{
					LoginTimeout:   cfg.LoginTimeout,
					CloseGrace:     cfg.CloseGrace,
					InboxHighWater: cfg.InboxHighWater,
					Logger:         logger,
					Sink:           m,
					OnState:        m.SessionState,
				},
				Engine: strategies.Config{
					OrderTimeout:    cfg.OrderTimeout,
					ProductionGrace: cfg.ProductionGrace,
				},
				Logger: logger,
			})
			if err != nil {
				return err
			}

			logger.Info("run starting",
				zap.String("server", cfg.Server),
				zap.Int("teams", len(cfg.Teams)),
				zap.Duration("planned", sim.Total(cfg.Phases)))

			report, err := orch.Run(ctx)
			if err != nil {
				return err
			}

			for _, line := range report.Lines() {
				logger.Info(line)
			}
			if err := report.WriteText(cmd.OutOrStdout()); err != nil {
				return err
			}
			if cfg.Report != "" {
				if err := report.WriteJSON(cfg.Report); err != nil {
					return err
				}
				logger.Info("report written", zap.String("path", cfg.Report))
			}

			if report.Connected == 0 {
				return ErrNoSessions
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringSlice("tokens", nil, "team tokens, comma separated")
	flags.Duration("duration", 0, "total run length split across the phases")
	flags.String("report", "", "write the JSON report to this file")
	flags.String("metrics-addr", "", "serve prometheus metrics on this address")
	flags.Int64("seed", 0, "seed for every strategy, 0 picks one")
	flags.Duration("stagger", 0, "delay between successive session opens")
	flags.Duration("order-timeout", 0, "how long an order may stay unanswered")
	flags.Duration("production-grace", 0, "how long production may stay unanswered")
	flags.Duration("progress-interval", 0, "how often to log phase progress")
	flags.Int("top-n", 0, "rows in each ranking")
	flags.Int("inbox-high-water", 0, "drop the oldest background message past this many queued, 0 for unbounded")

	for flag, key := range map[string]string{
		"tokens":            config.KeyTokens,
		"duration":          config.KeyDuration,
		"report":            config.KeyReport,
		"metrics-addr":      config.KeyMetricsAddr,
		"seed":              config.KeySeed,
		"stagger":           config.KeyStagger,
		"order-timeout":     config.KeyOrderTimeout,
		"production-grace":  config.KeyProductionGrace,
		"progress-interval": config.KeyProgressInterval,
		"top-n":             config.KeyTopN,
		"inbox-high-water":  config.KeyInboxHighWater,
	} {
		a.bind(flags.Lookup(flag), key)
	}

	return cmd
}
