package cli

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"tradeprobe/pkg/config"
	"tradeprobe/pkg/probe"
	"tradeprobe/pkg/session"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var ErrProbeFailed = errors.New("conformance check failed")

func newProbeCmd(a *app) *cobra.Command {
	var (
		token   string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Check one session's login, ping, order and production round trips",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if token == "" {
				if tokens := config.ParseTokens(a.v.GetStringSlice(config.KeyTokens)); len(tokens) > 0 {
					token = tokens[0]
				}
			}
			if token == "" {
				return config.ErrNoTokens
			}
			if timeout <= 0 {
				timeout = a.v.GetDuration(config.KeyOrderTimeout)
			}

			logger, closeLog, err := a.logger()
			if err != nil {
				return err
			}
			defer closeLog()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			res := probe.Run(ctx, a.v.GetString(config.KeyServer), token, probe.Options{
				Session: session.Options{
					LoginTimeout: a.v.GetDuration(config.KeyLoginTimeout),
					CloseGrace:   a.v.GetDuration(config.KeyCloseGrace),
					Logger:       logger,
				},
				Timeout:         timeout,
				ProductionGrace: a.v.GetDuration(config.KeyProductionGrace),
			})
			if err := res.WriteText(cmd.OutOrStdout()); err != nil {
				return err
			}
			if res.Failed() {
				return ErrProbeFailed
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "team token, defaults to the first configured token")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "per check timeout, defaults to the order timeout")

	return cmd
}
