package migrations

import (
	"context"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			return execAll(ctx, db,
				`CREATE TABLE IF NOT EXISTS quizzes (
					id                 TEXT PRIMARY KEY,
					creator_id         TEXT NOT NULL,
					title              TEXT NOT NULL DEFAULT '',
					description        TEXT NOT NULL DEFAULT '',
					duration_minutes   INTEGER NOT NULL DEFAULT 0,
					total_marks        DOUBLE PRECISION NOT NULL DEFAULT 0,
					is_protected       BOOLEAN NOT NULL DEFAULT FALSE,
					access_code        TEXT NOT NULL DEFAULT '',
					access_code_expiry TIMESTAMPTZ,
					start_time         TIMESTAMPTZ,
					created_at         TIMESTAMPTZ NOT NULL DEFAULT now()
				)`,
				`CREATE TABLE IF NOT EXISTS questions (
					id             TEXT PRIMARY KEY,
					quiz_id        TEXT NOT NULL REFERENCES quizzes(id) ON DELETE CASCADE,
					position       INTEGER NOT NULL,
					prompt         TEXT NOT NULL,
					options        TEXT[] NOT NULL,
					correct_answer TEXT NOT NULL,
					marks          DOUBLE PRECISION NOT NULL DEFAULT 0,
					negative_marks DOUBLE PRECISION NOT NULL DEFAULT 0 CHECK (negative_marks >= 0)
				)`,
				`CREATE INDEX IF NOT EXISTS questions_quiz_position_idx ON questions (quiz_id, position)`,
			)
		},
		func(ctx context.Context, db *bun.DB) error {
			return execAll(ctx, db,
				`DROP TABLE IF EXISTS questions`,
				`DROP TABLE IF EXISTS quizzes`,
			)
		},
	)
}
