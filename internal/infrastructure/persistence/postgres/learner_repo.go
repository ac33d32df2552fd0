package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/devpath/progression-engine/internal/domain/content"
	"github.com/devpath/progression-engine/internal/domain/learner"
	"github.com/devpath/progression-engine/internal/domain/shared"
	"github.com/devpath/progression-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROFILE REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// LearnerRepository implements learner.Repository for PostgreSQL.
type LearnerRepository struct {
	conn *Connection
}

var _ learner.Repository = (*LearnerRepository)(nil)

// NewLearnerRepository creates a new LearnerRepository.
func NewLearnerRepository(conn *Connection) *LearnerRepository {
	return &LearnerRepository{conn: conn}
}

const profileColumns = `
	learner_id, display_name, avatar_url, selected_career,
	current_streak, max_streak, freezes_available, freezes_used,
	last_freeze_date::text, last_activity_date::text, created_at, updated_at`

// Create inserts a new profile.
func (r *LearnerRepository) Create(ctx context.Context, p *learner.Profile) error {
	q, err := r.conn.querier()
	if err != nil {
		return mapError("Create", err)
	}
	ctx, cancel := r.conn.bounded(ctx)
	defer cancel()

	_, err = q.Exec(ctx, `
		INSERT INTO profiles (
			learner_id, display_name, avatar_url, selected_career,
			current_streak, max_streak, freezes_available, freezes_used,
			last_freeze_date, last_activity_date, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::text::date, $10::text::date, $11, $12)
	`,
		string(p.ID), p.DisplayName, p.AvatarURL, string(p.SelectedCareer),
		p.CurrentStreak, p.MaxStreak, p.FreezesAvailable, p.FreezesUsed,
		dayArg(p.LastFreezeDay), dayArg(p.LastActivityDay), p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.WrapError("learner", "Create", shared.ErrAlreadyExists, "profile exists", err)
		}
		return mapError("Create", err)
	}
	return nil
}

// Get returns a profile by learner id.
func (r *LearnerRepository) Get(ctx context.Context, id shared.LearnerID) (*learner.Profile, error) {
	q, err := r.conn.querier()
	if err != nil {
		return nil, mapError("Get", err)
	}
	ctx, cancel := r.conn.bounded(ctx)
	defer cancel()

	p, err := scanProfile(q.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE learner_id = $1`, string(id)))
	if IsNoRows(err) {
		return nil, shared.ErrLearnerNotFound
	}
	if err != nil {
		return nil, mapError("Get", err)
	}
	return p, nil
}

// Update locks the row with SELECT ... FOR UPDATE, applies fn and writes
// the result back in the same transaction.
func (r *LearnerRepository) Update(ctx context.Context, id shared.LearnerID, fn func(*learner.Profile) error) (*learner.Profile, error) {
	ctx, cancel := r.conn.bounded(ctx)
	defer cancel()

	var out *learner.Profile
	err := r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		p, err := scanProfile(tx.QueryRow(ctx,
			`SELECT `+profileColumns+` FROM profiles WHERE learner_id = $1 FOR UPDATE`, string(id)))
		if IsNoRows(err) {
			return shared.ErrLearnerNotFound
		}
		if err != nil {
			return err
		}
		if err := fn(p); err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			UPDATE profiles SET
				display_name = $2,
				avatar_url = $3,
				selected_career = $4,
				current_streak = $5,
				max_streak = $6,
				freezes_available = $7,
				freezes_used = $8,
				last_freeze_date = $9::text::date,
				last_activity_date = $10::text::date,
				updated_at = $11
			WHERE learner_id = $1
		`,
			string(p.ID), p.DisplayName, p.AvatarURL, string(p.SelectedCareer),
			p.CurrentStreak, p.MaxStreak, p.FreezesAvailable, p.FreezesUsed,
			dayArg(p.LastFreezeDay), dayArg(p.LastActivityDay), p.UpdatedAt,
		)
		if err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, mapError("Update", err)
	}
	return out, nil
}

// ListIDs pages learner ids in ascending order.
func (r *LearnerRepository) ListIDs(ctx context.Context, after shared.LearnerID, limit int) ([]shared.LearnerID, error) {
	q, err := r.conn.querier()
	if err != nil {
		return nil, mapError("ListIDs", err)
	}
	ctx, cancel := r.conn.bounded(ctx)
	defer cancel()

	if limit <= 0 {
		limit = 500
	}
	rows, err := q.Query(ctx,
		`SELECT learner_id FROM profiles WHERE learner_id > $1 ORDER BY learner_id LIMIT $2`,
		string(after), limit)
	if err != nil {
		return nil, mapError("ListIDs", err)
	}
	ids, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (shared.LearnerID, error) {
		var id string
		err := row.Scan(&id)
		return shared.LearnerID(id), err
	})
	if err != nil {
		return nil, mapError("ListIDs", err)
	}
	return ids, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Scanning
// ─────────────────────────────────────────────────────────────────────────────

func scanProfile(row pgx.Row) (*learner.Profile, error) {
	var (
		p                    learner.Profile
		id, career           string
		freezeDay, activeDay *string
	)
	err := row.Scan(
		&id, &p.DisplayName, &p.AvatarURL, &career,
		&p.CurrentStreak, &p.MaxStreak, &p.FreezesAvailable, &p.FreezesUsed,
		&freezeDay, &activeDay, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.ID = shared.LearnerID(id)
	p.SelectedCareer = content.CareerID(career)
	p.LastFreezeDay = dayFrom(freezeDay)
	p.LastActivityDay = dayFrom(activeDay)
	return &p, nil
}

// dayArg encodes a day key for a ::date parameter; the zero key is NULL.
func dayArg(d timeutil.DayKey) any {
	if d.IsZero() {
		return nil
	}
	return d.String()
}

func dayFrom(s *string) timeutil.DayKey {
	if s == nil {
		return ""
	}
	return timeutil.DayKey(*s)
}
