package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION SUPPORT
// ══════════════════════════════════════════════════════════════════════════════

// Migration represents a database migration.
type Migration struct {
	Version   int
	Name      string
	UpSQL     string
	DownSQL   string
	AppliedAt time.Time
	IsApplied bool
}

// Migrator applies the embedded migrations in version order.
type Migrator struct {
	conn       *Connection
	migrations []Migration
	tableName  string
}

// NewMigrator creates a migrator with the engine schema.
func NewMigrator(conn *Connection) *Migrator {
	return &Migrator{
		conn:       conn,
		migrations: Migrations(),
		tableName:  "schema_migrations",
	}
}

func (m *Migrator) ensureTable(ctx context.Context, q Querier) error {
	_, err := q.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`, m.tableName))
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	return nil
}

func (m *Migrator) applied(ctx context.Context, q Querier) (map[int]time.Time, error) {
	rows, err := q.Query(ctx, fmt.Sprintf("SELECT version, applied_at FROM %s ORDER BY version", m.tableName))
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer rows.Close()

	out := make(map[int]time.Time)
	for rows.Next() {
		var version int
		var at time.Time
		if err := rows.Scan(&version, &at); err != nil {
			return nil, fmt.Errorf("failed to scan migration row: %w", err)
		}
		out[version] = at
	}
	return out, rows.Err()
}

// Migrate applies all pending migrations, each in its own transaction.
func (m *Migrator) Migrate(ctx context.Context) error {
	q, err := m.conn.querier()
	if err != nil {
		return err
	}
	if err := m.ensureTable(ctx, q); err != nil {
		return err
	}
	done, err := m.applied(ctx, q)
	if err != nil {
		return err
	}

	for _, mig := range m.migrations {
		if _, ok := done[mig.Version]; ok {
			continue
		}
		if mig.UpSQL == "" {
			return fmt.Errorf("%w: missing up SQL for migration %d", ErrMigrationFailed, mig.Version)
		}
		err := m.conn.WithTx(ctx, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, mig.UpSQL); err != nil {
				return err
			}
			_, err := tx.Exec(ctx,
				fmt.Sprintf("INSERT INTO %s (version, name) VALUES ($1, $2)", m.tableName),
				mig.Version, mig.Name)
			return err
		})
		if err != nil {
			return fmt.Errorf("%w: version %d: %v", ErrMigrationFailed, mig.Version, err)
		}
	}
	return nil
}

// Rollback reverts the last applied migration.
func (m *Migrator) Rollback(ctx context.Context) error {
	q, err := m.conn.querier()
	if err != nil {
		return err
	}
	if err := m.ensureTable(ctx, q); err != nil {
		return err
	}
	done, err := m.applied(ctx, q)
	if err != nil {
		return err
	}

	last := 0
	for v := range done {
		if v > last {
			last = v
		}
	}
	if last == 0 {
		return nil
	}

	var target *Migration
	for i := range m.migrations {
		if m.migrations[i].Version == last {
			target = &m.migrations[i]
		}
	}
	if target == nil || target.DownSQL == "" {
		return fmt.Errorf("%w: missing down SQL for migration %d", ErrMigrationFailed, last)
	}

	return m.conn.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, target.DownSQL); err != nil {
			return fmt.Errorf("failed to rollback migration %d: %w", last, err)
		}
		_, err := tx.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE version = $1", m.tableName), last)
		return err
	})
}

// Status returns every known migration with its applied state.
func (m *Migrator) Status(ctx context.Context) ([]Migration, error) {
	q, err := m.conn.querier()
	if err != nil {
		return nil, err
	}
	if err := m.ensureTable(ctx, q); err != nil {
		return nil, err
	}
	done, err := m.applied(ctx, q)
	if err != nil {
		return nil, err
	}

	out := make([]Migration, len(m.migrations))
	copy(out, m.migrations)
	for i := range out {
		if at, ok := done[out[i].Version]; ok {
			out[i].IsApplied = true
			out[i].AppliedAt = at
		}
	}
	return out, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// EMBEDDED MIGRATIONS
// ══════════════════════════════════════════════════════════════════════════════

// Migrations returns the engine schema in version order.
func Migrations() []Migration {
	return []Migration{
		{Version: 1, Name: "create_profiles", UpSQL: migration001Up, DownSQL: migration001Down},
		{Version: 2, Name: "create_lesson_progress", UpSQL: migration002Up, DownSQL: migration002Down},
		{Version: 3, Name: "create_attempts", UpSQL: migration003Up, DownSQL: migration003Down},
	}
}

const migration001Up = `
CREATE TABLE IF NOT EXISTS profiles (
    learner_id TEXT PRIMARY KEY,
    display_name TEXT NOT NULL DEFAULT '',
    avatar_url TEXT NOT NULL DEFAULT '',
    selected_career TEXT NOT NULL DEFAULT '',
    current_streak INTEGER NOT NULL DEFAULT 0,
    max_streak INTEGER NOT NULL DEFAULT 0,
    freezes_available INTEGER NOT NULL DEFAULT 2,
    freezes_used INTEGER NOT NULL DEFAULT 0,
    last_freeze_date DATE,
    last_activity_date DATE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_streak CHECK (current_streak >= 0 AND max_streak >= current_streak),
    CONSTRAINT valid_freezes CHECK (freezes_available >= 0 AND freezes_used >= 0)
);
`

const migration001Down = `
DROP TABLE IF EXISTS profiles;
`

const migration002Up = `
CREATE TABLE IF NOT EXISTS lesson_progress (
    learner_id TEXT NOT NULL,
    lesson_id TEXT NOT NULL,
    course_id TEXT NOT NULL,
    completed BOOLEAN NOT NULL DEFAULT TRUE,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (learner_id, lesson_id)
);

CREATE INDEX IF NOT EXISTS idx_lesson_progress_course ON lesson_progress(learner_id, course_id);

CREATE TABLE IF NOT EXISTS lesson_time_tracking (
    id BIGSERIAL PRIMARY KEY,
    learner_id TEXT NOT NULL,
    lesson_id TEXT NOT NULL DEFAULT '',
    date DATE NOT NULL,
    duration_seconds BIGINT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_duration CHECK (duration_seconds >= 0)
);

CREATE INDEX IF NOT EXISTS idx_time_tracking_learner_date ON lesson_time_tracking(learner_id, date);
`

const migration002Down = `
DROP TABLE IF EXISTS lesson_time_tracking;
DROP TABLE IF EXISTS lesson_progress;
`

const migration003Up = `
CREATE TABLE IF NOT EXISTS problem_attempts (
    id TEXT PRIMARY KEY,
    learner_id TEXT NOT NULL,
    problem_id TEXT NOT NULL,
    attempt_index INTEGER NOT NULL,
    kind TEXT NOT NULL,
    submitted_output TEXT NOT NULL DEFAULT '',
    selected_options TEXT[] NOT NULL DEFAULT '{}',
    match_mode TEXT NOT NULL,
    output_type TEXT NOT NULL,
    is_correct BOOLEAN NOT NULL,
    score INTEGER NOT NULL DEFAULT 0,
    xp_awarded INTEGER NOT NULL DEFAULT 0,
    solution_viewed BOOLEAN NOT NULL DEFAULT FALSE,
    idempotency_key TEXT,
    submitted_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    UNIQUE (learner_id, problem_id, attempt_index)
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_attempts_idempotency
    ON problem_attempts(idempotency_key) WHERE idempotency_key IS NOT NULL;

CREATE TABLE IF NOT EXISTS problem_reveals (
    id TEXT PRIMARY KEY,
    learner_id TEXT NOT NULL,
    problem_id TEXT NOT NULL,
    attempts_before INTEGER NOT NULL DEFAULT 0,
    revealed_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    UNIQUE (learner_id, problem_id)
);
`

const migration003Down = `
DROP TABLE IF EXISTS problem_reveals;
DROP TABLE IF EXISTS problem_attempts;
`
