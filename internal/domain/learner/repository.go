package learner

import (
	"context"

	"github.com/devpath/progression-engine/internal/domain/shared"
)

// Repository persists learner profiles.
type Repository interface {
	// Create inserts a new profile. It fails with shared.ErrAlreadyExists
	// when the id is taken.
	Create(ctx context.Context, p *Profile) error

	// Get returns the profile or an error matching shared.ErrNotFound.
	Get(ctx context.Context, id shared.LearnerID) (*Profile, error)

	// Update runs fn on the current profile and stores the result in one
	// atomic read-modify-write. If fn returns an error nothing is written
	// and that error is returned unchanged.
	Update(ctx context.Context, id shared.LearnerID, fn func(*Profile) error) (*Profile, error)

	// ListIDs pages learner ids in ascending order, starting after the
	// given id (empty for the first page).
	ListIDs(ctx context.Context, after shared.LearnerID, limit int) ([]shared.LearnerID, error)
}

// Locker serializes streak writers for one learner across processes.
// Implementations are optional; Repository.Update is atomic on its own.
type Locker interface {
	// Lock blocks until the learner's lock is held or ctx is done.
	Lock(ctx context.Context, id shared.LearnerID) (unlock func(), err error)
}
