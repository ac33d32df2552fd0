package postgres

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devpath/progression-engine/internal/domain/content"
	"github.com/devpath/progression-engine/internal/domain/learner"
	"github.com/devpath/progression-engine/internal/domain/practice"
	"github.com/devpath/progression-engine/internal/domain/progress"
	"github.com/devpath/progression-engine/internal/domain/shared"
	"github.com/devpath/progression-engine/pkg/timeutil"
)

func TestMapError(t *testing.T) {
	assert.NoError(t, mapError("op", nil))

	err := mapError("Get", pgx.ErrNoRows)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	err = mapError("Get", context.DeadlineExceeded)
	assert.ErrorIs(t, err, shared.ErrTimeout)
	assert.ErrorIs(t, err, shared.ErrStorageUnavailable)

	err = mapError("Get", &pgconn.PgError{Code: "08006"})
	assert.ErrorIs(t, err, shared.ErrStorageUnavailable)
	assert.NotErrorIs(t, err, shared.ErrTimeout)

	// Domain errors from inside a transaction keep their kind.
	err = mapError("Update", shared.ErrFrozenToday)
	assert.Same(t, shared.ErrFrozenToday, err)
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, IsUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, IsUniqueViolation(errors.New("plain")))
}

func TestDayEncoding(t *testing.T) {
	assert.Nil(t, dayArg(""))
	assert.Equal(t, "2024-06-12", dayArg("2024-06-12"))

	s := "2024-06-12"
	assert.Equal(t, timeutil.DayKey("2024-06-12"), dayFrom(&s))
	assert.True(t, dayFrom(nil).IsZero())
}

func TestMigrations_Ordered(t *testing.T) {
	migs := Migrations()
	require.NotEmpty(t, migs)
	for i, m := range migs {
		assert.Equal(t, i+1, m.Version)
		assert.NotEmpty(t, m.UpSQL, m.Name)
		assert.NotEmpty(t, m.DownSQL, m.Name)
	}
}

func TestConfig_PoolConfig(t *testing.T) {
	cfg := DefaultConfig("postgres://u:p@localhost:5432/db?sslmode=disable")
	cfg.MaxConns = 7

	pc, err := cfg.PoolConfig()
	require.NoError(t, err)
	assert.EqualValues(t, 7, pc.MaxConns)
	assert.Equal(t, time.Hour, pc.MaxConnLifetime)
}

// ═══════════════════════════════════════════════════════════════════════════
// Integration
// ═══════════════════════════════════════════════════════════════════════════

func integrationConn(t *testing.T) *Connection {
	t.Helper()
	url := os.Getenv("POSTGRES_INTEGRATION_URL")
	if url == "" {
		t.Skip("set POSTGRES_INTEGRATION_URL to run PostgreSQL integration tests")
	}

	ctx := context.Background()
	conn, err := NewConnection(ctx, DefaultConfig(url))
	require.NoError(t, err)
	t.Cleanup(conn.Close)
	require.NoError(t, NewMigrator(conn).Migrate(ctx))
	return conn
}

func TestLearnerRepository_Integration(t *testing.T) {
	conn := integrationConn(t)
	repo := NewLearnerRepository(conn)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	id := shared.LearnerID("it-" + uuid.NewString())
	p, err := learner.NewProfile(id, "Ada", "", 1, now)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, p))
	assert.ErrorIs(t, repo.Create(ctx, p), shared.ErrAlreadyExists)

	// Two concurrent freezes on one allowance: exactly one succeeds.
	today := timeutil.DayKey("2024-06-12")
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = repo.Update(ctx, id, func(p *learner.Profile) error {
				return p.ConsumeFreeze(today, now)
			})
		}(i)
	}
	wg.Wait()

	failures := 0
	for _, err := range errs {
		if err != nil {
			failures++
			assert.True(t, shared.IsPrecondition(err))
		}
	}
	assert.Equal(t, 1, failures)

	got, err := repo.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 0, got.FreezesAvailable)
	assert.Equal(t, today, got.LastFreezeDay)

	_, err = repo.Get(ctx, "it-missing-"+shared.LearnerID(uuid.NewString()))
	assert.True(t, shared.IsNotFound(err))
}

func TestProgressAndPractice_Integration(t *testing.T) {
	conn := integrationConn(t)
	progressRepo := NewProgressRepository(conn)
	practiceRepo := NewPracticeRepository(conn)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)
	id := shared.LearnerID("it-" + uuid.NewString())

	for _, lesson := range []string{"l1", "l2", "l1"} {
		require.NoError(t, progressRepo.RecordCompletion(ctx, progress.LessonCompletion{
			LearnerID: id, LessonID: content.LessonID("c1-" + lesson), CourseID: "c1", Completed: true, UpdatedAt: now,
		}))
	}
	rows, err := progressRepo.ListCompletions(ctx, id, "c1")
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	n, err := progressRepo.DeleteCompletions(ctx, id, "c1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	for _, s := range []int64{300, 600} {
		require.NoError(t, progressRepo.AppendTime(ctx, progress.TimeRecord{
			LearnerID: id, Day: "2024-06-12", DurationSeconds: s, CreatedAt: now,
		}))
	}
	days, err := progressRepo.ListTime(ctx, id, "2024-06-01", "2024-06-30")
	require.NoError(t, err)
	assert.Equal(t, int64(900), progress.SumByDay(days)["2024-06-12"])

	attempt := &practice.Attempt{
		ID: uuid.NewString(), LearnerID: id, ProblemID: "p1",
		Kind: "predict_output", MatchMode: "trim", OutputType: "text",
		IdempotencyKey: "key-" + uuid.NewString(), SubmittedAt: now,
	}
	first, created, err := practiceRepo.RecordAttempt(ctx, attempt)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 1, first.AttemptIndex)

	attempt.ID = uuid.NewString()
	again, created, err := practiceRepo.RecordAttempt(ctx, attempt)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID)

	rv := &practice.Reveal{ID: uuid.NewString(), LearnerID: id, ProblemID: "p1", AttemptsBefore: 1, RevealedAt: now}
	stored, err := practiceRepo.RecordReveal(ctx, rv)
	require.NoError(t, err)
	rv2 := *rv
	rv2.ID = uuid.NewString()
	second, err := practiceRepo.RecordReveal(ctx, &rv2)
	require.NoError(t, err)
	assert.Equal(t, stored.ID, second.ID)
}
