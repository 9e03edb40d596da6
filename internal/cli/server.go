package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"timed-quiz-service/internal/app"
	"timed-quiz-service/internal/config"
	"timed-quiz-service/internal/infra/trivia"
	transport "timed-quiz-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, logger, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, logger); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	b, err := openBackends(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer b.close()

	hub := transport.NewHub(logger)
	var notifier app.Notifier = hub
	if b.relay != nil {
		notifier = b.relay
	}
	scheduler := app.NewAnnouncementScheduler(b.jobs, notifier, logger)
	defer scheduler.Stop()

	board := b.leaderboardService(cfg, logger)
	source := trivia.NewClient(cfg.Trial.SourceURL, config.TTLDuration(cfg.Trial.Timeout, 10*time.Second))
	api := transport.NewAPI(transport.Services{
		Publisher:    app.NewPublisher(b.quizzes, scheduler, b.quizCache, logger),
		Access:       app.NewAccessGate(b.quizzes),
		Trials:       app.NewTrialService(source, b.ephemeral, trialConfig(cfg), logger),
		Evaluator:    app.NewEvaluator(b.quizCache, b.submissions, board, logger),
		Leaderboards: board,
	}, transport.NewAuthenticator(cfg.Auth.JWTSecret), logger)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      transport.NewRouter(api, transport.NewWSHandler(hub, logger), logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	if b.relay != nil {
		g.Go(func() error { return b.relay.Run(gctx, hub) })
	}
	if b.memoryEphemeral != nil {
		g.Go(func() error {
			b.memoryEphemeral.RunJanitor(gctx, time.Minute)
			return nil
		})
	}

	// Re-arm announcements that were pending when the last process stopped.
	armed, err := scheduler.Reconcile(ctx)
	if err != nil {
		logger.Error("reconcile announcements", "err", err)
	} else {
		logger.Info("announcements reconciled", "pending", armed)
	}

	g.Go(func() error {
		logger.Info("starting quiz service", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
