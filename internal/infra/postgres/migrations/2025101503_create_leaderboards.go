package migrations

import (
	"context"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			return execAll(ctx, db,
				`CREATE TABLE IF NOT EXISTS leaderboards (
					quiz_id    TEXT PRIMARY KEY,
					entries    JSONB NOT NULL DEFAULT '[]'::jsonb,
					version    BIGINT NOT NULL,
					updated_at TIMESTAMPTZ NOT NULL
				)`,
				`CREATE TABLE IF NOT EXISTS announcement_jobs (
					quiz_id    TEXT PRIMARY KEY,
					fire_at    TIMESTAMPTZ NOT NULL,
					status     TEXT NOT NULL,
					updated_at TIMESTAMPTZ NOT NULL
				)`,
				`CREATE INDEX IF NOT EXISTS announcement_jobs_pending_idx ON announcement_jobs (fire_at) WHERE status = 'pending'`,
			)
		},
		func(ctx context.Context, db *bun.DB) error {
			return execAll(ctx, db,
				`DROP TABLE IF EXISTS announcement_jobs`,
				`DROP TABLE IF EXISTS leaderboards`,
			)
		},
	)
}
