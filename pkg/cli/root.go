package cli

import (
	"tradeprobe/pkg/config"
	"tradeprobe/pkg/logging"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Version is stamped at build time.
var Version = "dev"

func Execute() error {
	return newRootCmd().Execute()
}

type app struct {
	v       *viper.Viper
	cfgFile string
}

func newRootCmd() *cobra.Command {
	a := &app{v: config.New()}

	rootCmd := &cobra.Command{
		Use:           "tradeprobe",
		Short:         "Load and conformance harness for the exchange websocket protocol",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return config.ReadFile(a.v, a.cfgFile)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (yaml, json or toml)")
	flags.String("server", "", "exchange websocket url")
	flags.Bool("verbose", false, "debug logging")
	flags.String("log-file", "", "append the run log to this file")
	flags.Duration("login-timeout", 0, "how long LOGIN may stay unanswered")
	flags.Duration("close-grace", 0, "how long to wait for a clean close")
	a.bind(flags.Lookup("server"), config.KeyServer)
	a.bind(flags.Lookup("verbose"), config.KeyVerbose)
	a.bind(flags.Lookup("log-file"), config.KeyLogFile)
	a.bind(flags.Lookup("login-timeout"), config.KeyLoginTimeout)
	a.bind(flags.Lookup("close-grace"), config.KeyCloseGrace)

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(a),
		newProbeCmd(a),
	)

	return rootCmd
}

func (a *app) logger() (*zap.Logger, func(), error) {
	return logging.New("tradeprobe", logging.Options{
		Verbose: a.v.GetBool(config.KeyVerbose),
		File:    a.v.GetString(config.KeyLogFile),
	})
}
