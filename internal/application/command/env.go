// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"errors"
	"time"

	"github.com/devpath/progression-engine/internal/domain/shared"
	"github.com/devpath/progression-engine/pkg/logger"
	"github.com/devpath/progression-engine/pkg/timeutil"
)

// Env carries the clock, reference zone and logger shared by all handlers.
// The zone is fixed for the lifetime of the process.
type Env struct {
	Clock  timeutil.Clock
	Zone   timeutil.Zone
	Logger *logger.Logger
}

func (e Env) now() time.Time {
	if e.Clock == nil {
		return time.Now()
	}
	return e.Clock.Now()
}

func (e Env) today() timeutil.DayKey {
	return e.Zone.DayKey(e.now())
}

func (e Env) dayOf(t time.Time) timeutil.DayKey {
	return e.Zone.DayKey(t)
}

func (e Env) log(op string) *logger.Logger {
	l := e.Logger
	if l == nil {
		l = logger.Nop()
	}
	return l.With(logger.Component("command"), logger.Operation(op))
}

// logFailure logs err at a level matching its kind: caller mistakes at
// Debug, storage trouble at Error, everything else at Warn.
func logFailure(ctx context.Context, l *logger.Logger, msg string, err error, fields ...logger.Field) {
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return
	}
	fields = append(fields, logger.Err(err))
	switch {
	case shared.IsValidation(err), shared.IsNotFound(err), shared.IsPrecondition(err):
		l.Debug(msg, fields...)
	case errors.Is(err, shared.ErrStorageUnavailable):
		l.Error(msg, fields...)
	default:
		l.Warn(msg, fields...)
	}
}
