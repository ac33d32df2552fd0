// Package memory is an in-process event store gateway. It backs tests and
// single-process embedding; every method is safe for concurrent use.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/devpath/progression-engine/internal/domain/content"
	"github.com/devpath/progression-engine/internal/domain/learner"
	"github.com/devpath/progression-engine/internal/domain/practice"
	"github.com/devpath/progression-engine/internal/domain/progress"
	"github.com/devpath/progression-engine/internal/domain/shared"
	"github.com/devpath/progression-engine/pkg/timeutil"
)

type completionKey struct {
	learner shared.LearnerID
	lesson  content.LessonID
}

type problemKey struct {
	learner shared.LearnerID
	problem content.ProblemID
}

// Store implements learner.Repository, progress.Repository and
// practice.Repository.
type Store struct {
	mu sync.Mutex

	profiles    map[shared.LearnerID]*learner.Profile
	completions map[completionKey]progress.LessonCompletion
	time        map[shared.LearnerID][]progress.TimeRecord
	attempts    map[problemKey][]practice.Attempt
	byKey       map[string]practice.Attempt
	reveals     map[problemKey]practice.Reveal
}

var (
	_ learner.Repository  = (*Store)(nil)
	_ progress.Repository = (*Store)(nil)
	_ practice.Repository = (*Store)(nil)
)

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		profiles:    make(map[shared.LearnerID]*learner.Profile),
		completions: make(map[completionKey]progress.LessonCompletion),
		time:        make(map[shared.LearnerID][]progress.TimeRecord),
		attempts:    make(map[problemKey][]practice.Attempt),
		byKey:       make(map[string]practice.Attempt),
		reveals:     make(map[problemKey]practice.Reveal),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// PROFILES
// ══════════════════════════════════════════════════════════════════════════════

func (s *Store) Create(ctx context.Context, p *learner.Profile) error {
	if err := ctx.Err(); err != nil {
		return ctxError("Create", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[p.ID]; ok {
		return shared.NewDomainError("learner", "Create", shared.ErrAlreadyExists, "profile exists")
	}
	cp := *p
	s.profiles[p.ID] = &cp
	return nil
}

func (s *Store) Get(ctx context.Context, id shared.LearnerID) (*learner.Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, ctxError("Get", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[id]
	if !ok {
		return nil, shared.ErrLearnerNotFound
	}
	cp := *p
	return &cp, nil
}

// Update holds the store lock for the whole read-modify-write.
func (s *Store) Update(ctx context.Context, id shared.LearnerID, fn func(*learner.Profile) error) (*learner.Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, ctxError("Update", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[id]
	if !ok {
		return nil, shared.ErrLearnerNotFound
	}
	work := *p
	if err := fn(&work); err != nil {
		return nil, err
	}
	s.profiles[id] = &work
	out := work
	return &out, nil
}

func (s *Store) ListIDs(ctx context.Context, after shared.LearnerID, limit int) ([]shared.LearnerID, error) {
	if err := ctx.Err(); err != nil {
		return nil, ctxError("ListIDs", err)
	}
	s.mu.Lock()
	ids := make([]shared.LearnerID, 0, len(s.profiles))
	for id := range s.profiles {
		if id > after {
			ids = append(ids, id)
		}
	}
	s.mu.Unlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// LESSON PROGRESS AND TIME
// ══════════════════════════════════════════════════════════════════════════════

func (s *Store) RecordCompletion(ctx context.Context, c progress.LessonCompletion) error {
	if err := ctx.Err(); err != nil {
		return ctxError("RecordCompletion", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completions[completionKey{c.LearnerID, c.LessonID}] = c
	return nil
}

func (s *Store) DeleteCompletions(ctx context.Context, learnerID shared.LearnerID, courseID content.CourseID) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, ctxError("DeleteCompletions", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, c := range s.completions {
		if k.learner == learnerID && c.CourseID == courseID {
			delete(s.completions, k)
			n++
		}
	}
	return n, nil
}

func (s *Store) ListCompletions(ctx context.Context, learnerID shared.LearnerID, courseID content.CourseID) ([]progress.LessonCompletion, error) {
	all, err := s.ListAllCompletions(ctx, learnerID)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, c := range all {
		if c.CourseID == courseID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Store) ListAllCompletions(ctx context.Context, learnerID shared.LearnerID) ([]progress.LessonCompletion, error) {
	if err := ctx.Err(); err != nil {
		return nil, ctxError("ListCompletions", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]progress.LessonCompletion, 0)
	for k, c := range s.completions {
		if k.learner == learnerID && c.Completed {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LessonID < out[j].LessonID })
	return out, nil
}

func (s *Store) AppendTime(ctx context.Context, r progress.TimeRecord) error {
	if err := ctx.Err(); err != nil {
		return ctxError("AppendTime", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.time[r.LearnerID] = append(s.time[r.LearnerID], r)
	return nil
}

func (s *Store) ListTime(ctx context.Context, learnerID shared.LearnerID, from, to timeutil.DayKey) ([]progress.DaySeconds, error) {
	if err := ctx.Err(); err != nil {
		return nil, ctxError("ListTime", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]progress.DaySeconds, 0)
	for _, r := range s.time[learnerID] {
		if r.Day < from || r.Day > to {
			continue
		}
		out = append(out, progress.DaySeconds{Day: r.Day, Seconds: r.DurationSeconds})
	}
	return out, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ATTEMPTS AND REVEALS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Store) RecordAttempt(ctx context.Context, a *practice.Attempt) (*practice.Attempt, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, ctxError("RecordAttempt", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.IdempotencyKey != "" {
		if prev, ok := s.byKey[a.IdempotencyKey]; ok {
			return copyAttempt(prev), false, nil
		}
	}
	k := problemKey{a.LearnerID, a.ProblemID}
	stored := *copyAttempt(*a)
	stored.AttemptIndex = len(s.attempts[k]) + 1
	s.attempts[k] = append(s.attempts[k], stored)
	if stored.IdempotencyKey != "" {
		s.byKey[stored.IdempotencyKey] = stored
	}
	return copyAttempt(stored), true, nil
}

func (s *Store) FindAttemptByKey(ctx context.Context, key string) (*practice.Attempt, error) {
	if err := ctx.Err(); err != nil {
		return nil, ctxError("FindAttemptByKey", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byKey[key]
	if !ok {
		return nil, shared.NotFound("practice", "FindAttemptByKey", "no attempt for key")
	}
	return copyAttempt(a), nil
}

func (s *Store) ListAttempts(ctx context.Context, learnerID shared.LearnerID, problemID content.ProblemID) ([]practice.Attempt, error) {
	if err := ctx.Err(); err != nil {
		return nil, ctxError("ListAttempts", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	src := s.attempts[problemKey{learnerID, problemID}]
	out := make([]practice.Attempt, 0, len(src))
	for _, a := range src {
		out = append(out, *copyAttempt(a))
	}
	return out, nil
}

func (s *Store) RecordReveal(ctx context.Context, r *practice.Reveal) (*practice.Reveal, error) {
	if err := ctx.Err(); err != nil {
		return nil, ctxError("RecordReveal", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	k := problemKey{r.LearnerID, r.ProblemID}
	if prev, ok := s.reveals[k]; ok {
		return &prev, nil
	}
	s.reveals[k] = *r
	out := *r
	return &out, nil
}

func (s *Store) GetReveal(ctx context.Context, learnerID shared.LearnerID, problemID content.ProblemID) (*practice.Reveal, error) {
	if err := ctx.Err(); err != nil {
		return nil, ctxError("GetReveal", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reveals[problemKey{learnerID, problemID}]
	if !ok {
		return nil, shared.NotFound("practice", "GetReveal", "no reveal")
	}
	return &r, nil
}

func copyAttempt(a practice.Attempt) *practice.Attempt {
	a.SelectedOptions = append([]string(nil), a.SelectedOptions...)
	return &a
}

func ctxError(op string, err error) error {
	if err == context.DeadlineExceeded {
		return shared.WrapError("memory", op, shared.ErrTimeout, "deadline exceeded", err)
	}
	return shared.WrapError("memory", op, shared.ErrStorageUnavailable, "request cancelled", err)
}
