package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"timed-quiz-service/internal/config"
	"timed-quiz-service/internal/infra/postgres"
)

// NewSeedCmd loads quiz fixtures into Postgres.
func NewSeedCmd(configPath *string) *cobra.Command {
	var fixtures string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load quiz fixtures into the quiz store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if cfg.Postgres.URL == "" {
				return fmt.Errorf("seed needs postgres.url; the in-memory store is seeded on start")
			}
			if fixtures == "" {
				fixtures = cfg.Quiz.Fixtures
			}
			if fixtures == "" {
				return fmt.Errorf("no fixtures file given")
			}
			quizzes, err := config.LoadFixtures(fixtures)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if err := runMigrationsWithConfig(ctx, cfg, logger); err != nil {
				return err
			}
			b, err := openBackends(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer b.close()

			store := postgres.NewQuizStore(b.pool)
			for _, q := range quizzes {
				if err := store.SaveQuiz(ctx, q); err != nil {
					return err
				}
				logger.Info("seeded quiz", "quiz_id", q.ID, "questions", len(q.Questions))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&fixtures, "fixtures", "", "JSON fixtures file (defaults to quiz.fixtures)")
	return cmd
}
