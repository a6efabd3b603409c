package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/peter-kozarec/paperloop/internal/config"
	"github.com/peter-kozarec/paperloop/internal/dbg"
	"github.com/peter-kozarec/paperloop/pkg/engine"
	"github.com/peter-kozarec/paperloop/pkg/journal"
	"github.com/peter-kozarec/paperloop/pkg/middleware"
	"github.com/peter-kozarec/paperloop/pkg/utility"
	"github.com/peter-kozarec/paperloop/pkg/utility/fixed"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the paper trading loop",
	Long: `Run the paper trading loop.

Events are read as JSON lines from stdin, each naming its topic:
  {"topic":"market.last","symbol":"BTCUSDT","price":"101.5"}
  {"topic":"signals.target","symbol":"BTCUSDT","side":"long","strength":0.8,"atr":2.1}

With server.listen configured (or --listen), events are also accepted as
POST /events/{topic} and the configured topics are streamed on /stream.

Example:
  paperloop run -c paperloop.yaml < events.jsonl`,
	RunE: runRun,
}

var (
	runListen  string
	runNoStdin bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runListen, "listen", "", "HTTP listen address, overrides server.listen")
	runCmd.Flags().BoolVar(&runNoStdin, "no-stdin", false, "do not read events from stdin")
}

func runRun(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if runListen != "" {
		cfg.Server.Listen = runListen
	}

	logger, err := dbg.NewLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func(logger *zap.Logger) {
		_ = logger.Sync()
	}(logger)

	logger.Info("paperloop started",
		zap.String("version", Version),
		zap.Stringer("execution_id", utility.GetExecutionID()))
	defer logger.Info("paperloop finished")

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	j, err := journal.Open(ctx, cfg.Journal)
	if err != nil {
		return err
	}

	flags := middleware.MonitorNotes | middleware.MonitorOrdersRejected | middleware.MonitorFills
	if cfg.Server.MonitorAll {
		flags = middleware.MonitorAll
	}

	var options []engine.Option
	if cfg.Pushover.Enabled() {
		options = append(options, engine.WithPushover(
			middleware.NewPushover(logger.Named("pushover"), cfg.Pushover.User, cfg.Pushover.Token, cfg.Pushover.Device)))
	}
	if cfg.Server.Listen != "" && len(cfg.Server.StreamTopics) > 0 {
		options = append(options, engine.WithStream(cfg.Server.StreamTopics...))
	}

	e, err := engine.NewEngine(logger, j, engine.Config{
		StartBalance: cfg.StartBalance(),
		Limits:       cfg.Limits(),
		InlineFills:  cfg.Risk.InlineFills,
		Slippage:     fixed.FromFloat64(cfg.Execution.Slippage),
		MonitorFlags: flags,

		FallbackAtrWindow: cfg.Risk.FallbackAtrWindow,
	}, options...)
	if err != nil {
		_ = j.Close()
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return e.Run(gctx) })

	if cfg.Server.Listen != "" {
		srv := &http.Server{
			Addr:              cfg.Server.Listen,
			Handler:           e.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			logger.Info("http server listening", zap.String("addr", cfg.Server.Listen))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancelShutdown()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if !runNoStdin {
		// The read blocks on stdin and cannot observe ctx, so it stays outside the group.
		go func() {
			n, err := e.Ingress().Consume(gctx, cmd.InOrStdin())
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("reading stdin failed", zap.Error(err))
			}
			logger.Info("stdin exhausted", zap.Int("published", n))

			if cfg.Server.Listen == "" {
				if err := e.Drain(gctx); err == nil {
					cancel()
				}
			}
		}()
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("paper loop failed", zap.Error(err))
		return err
	}

	snapshot := e.Ledger().Snapshot()
	logger.Info("final equity",
		zap.String("equity", snapshot.Equity.String()),
		zap.String("cash", snapshot.Cash.String()),
		zap.String("realized", snapshot.RealizedTotal.String()),
		zap.String("unrealized", snapshot.Unrealized.String()),
		zap.Int("positions", snapshot.NumPositions))
	return nil
}
