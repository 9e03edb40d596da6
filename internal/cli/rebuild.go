package cli

import (
	"github.com/spf13/cobra"
)

// NewRebuildLeaderboardCmd recomputes a quiz's leaderboard from its submissions.
func NewRebuildLeaderboardCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild-leaderboard <quizId>...",
		Short: "Recompute leaderboards from stored submissions",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			b, err := openBackends(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer b.close()

			board := b.leaderboardService(cfg, logger)
			for _, quizID := range args {
				lb, err := board.Rebuild(ctx, quizID)
				if err != nil {
					return err
				}
				logger.Info("leaderboard rebuilt", "quiz_id", quizID, "entries", len(lb.Entries), "version", lb.Version)
			}
			return nil
		},
	}
}
