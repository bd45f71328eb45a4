package main

import (
	"context"
	"encoding/csv"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"tradeprobe/pkg/logging"
	"tradeprobe/pkg/models"
	"tradeprobe/pkg/session"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const flushEvery = time.Second

func main() {
	if err := newDumperCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newDumperCmd() *cobra.Command {
	var (
		server  string
		token   string
		out     string
		verbose bool
	)

	cmd := &cobra.Command{
		Use:          "dumper",
		Short:        "Record every TICKER of one session to per-product CSV files",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, closeLog, err := logging.New("dumper", logging.Options{Verbose: verbose})
			if err != nil {
				return err
			}
			defer closeLog()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			s, err := session.Open(ctx, server, token, session.Options{Logger: logger})
			if err != nil {
				return err
			}
			defer s.Close()

			return dump(ctx, s, out, logger)
		},
	}

	cmd.Flags().StringVar(&server, "server", "ws://localhost:8080/ws", "exchange websocket url")
	cmd.Flags().StringVar(&token, "token", "", "team token")
	cmd.Flags().StringVar(&out, "out", ".", "directory for the csv files")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "debug logging")
	_ = cmd.MarkFlagRequired("token")

	return cmd
}

type tickerFile struct {
	f *os.File
	w *csv.Writer
}

// dump appends tickers until ctx is done or the session goes away.
func dump(ctx context.Context, s *session.Session, dir string, logger *zap.Logger) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "create %s", dir)
	}

	files := make(map[string]*tickerFile)
	defer func() {
		for _, tf := range files {
			tf.w.Flush()
			tf.f.Close()
		}
	}()

	tickers := models.Kinds(models.KindTicker)
	lastFlush := time.Now()
	var rows int
	for {
		select {
		case <-ctx.Done():
			logger.Info("dumper stopping", zap.Int("rows", rows))
			return nil
		case <-s.Done():
			return errors.Wrap(session.ErrTransport, "session lost")
		default:
		}

		m, err := s.Await(ctx, tickers, "", flushEvery)
		if err != nil {
			return err
		}
		if t, ok := m.(*models.Ticker); ok {
			tf, err := open(files, dir, t.Product)
			if err != nil {
				return err
			}
			if err := tf.w.Write(row(t, time.Now())); err != nil {
				return errors.Wrapf(err, "write %s ticker", t.Product)
			}
			rows++
		}
		s.Sweep()

		if time.Since(lastFlush) >= flushEvery {
			for product, tf := range files {
				tf.w.Flush()
				if err := tf.w.Error(); err != nil {
					logger.Warn("flush failed", zap.String("product", product), zap.Error(err))
				}
			}
			lastFlush = time.Now()
		}
	}
}

func open(files map[string]*tickerFile, dir, product string) (*tickerFile, error) {
	if tf, ok := files[product]; ok {
		return tf, nil
	}
	path := filepath.Join(dir, product+"-ticker.csv")
	f, err := os.OpenFile(path, os.O_RDWR|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open file")
	}
	tf := &tickerFile{f: f, w: csv.NewWriter(f)}
	files[product] = tf
	return tf, nil
}

// row renders ts_ms,bestBid,bestAsk,mid,volume24h. Missing prices are empty.
func row(t *models.Ticker, received time.Time) []string {
	ts := received
	if st, err := time.Parse(time.RFC3339Nano, t.ServerTime); err == nil {
		ts = st
	}
	return []string{
		strconv.FormatInt(ts.UnixMilli(), 10),
		price(t.BestBid),
		price(t.BestAsk),
		price(t.Mid),
		strconv.Itoa(t.Volume24h),
	}
}

func price(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.String()
}
