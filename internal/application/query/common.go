// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"

	"github.com/devpath/progression-engine/internal/application/command"
	"github.com/devpath/progression-engine/internal/domain/content"
	"github.com/devpath/progression-engine/internal/domain/progress"
	"github.com/devpath/progression-engine/pkg/logger"
)

// StreakRecomputer runs the streak recompute. Every streak read goes
// through it.
type StreakRecomputer interface {
	Handle(ctx context.Context, cmd command.RecomputeStreakCommand) (*command.RecomputeStreakResult, error)
}

func queryLog(env command.Env, op string) *logger.Logger {
	l := env.Logger
	if l == nil {
		l = logger.Nop()
	}
	return l.With(logger.Component("query"), logger.Operation(op))
}

// progressBook projects every course of the catalog against one set of
// completion rows, so all projectors of a read see the same data.
type progressBook struct {
	bySlug  map[string]progress.CourseProgress
	ordered []progress.CourseProgress
	courses map[content.CourseID]*content.Course
}

func newProgressBook(courses []*content.Course, completions []progress.LessonCompletion) *progressBook {
	b := &progressBook{
		bySlug:  make(map[string]progress.CourseProgress, len(courses)),
		ordered: make([]progress.CourseProgress, 0, len(courses)),
		courses: make(map[content.CourseID]*content.Course, len(courses)),
	}
	for _, c := range courses {
		p := progress.ProjectCourse(c, completions)
		b.bySlug[c.Slug] = p
		b.ordered = append(b.ordered, p)
		b.courses[c.ID] = c
	}
	return b
}

func (b *progressBook) lookup(slug string) (progress.CourseProgress, bool) {
	p, ok := b.bySlug[slug]
	return p, ok
}
