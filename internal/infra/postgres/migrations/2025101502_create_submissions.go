package migrations

import (
	"context"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			return execAll(ctx, db,
				`CREATE TABLE IF NOT EXISTS submissions (
					id             TEXT PRIMARY KEY,
					quiz_id        TEXT NOT NULL,
					participant_id TEXT NOT NULL,
					display_name   TEXT NOT NULL DEFAULT '',
					answers        JSONB NOT NULL DEFAULT '[]'::jsonb,
					score          DOUBLE PRECISION NOT NULL,
					total_marks    DOUBLE PRECISION NOT NULL,
					started_at     TIMESTAMPTZ NOT NULL,
					submitted_at   TIMESTAMPTZ NOT NULL,
					time_taken_ms  BIGINT NOT NULL,
					CONSTRAINT submissions_quiz_participant_key UNIQUE (quiz_id, participant_id)
				)`,
				`CREATE INDEX IF NOT EXISTS submissions_participant_idx ON submissions (participant_id, submitted_at DESC)`,
			)
		},
		func(ctx context.Context, db *bun.DB) error {
			return execAll(ctx, db, `DROP TABLE IF EXISTS submissions`)
		},
	)
}
