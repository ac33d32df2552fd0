package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_Is(t *testing.T) {
	err := fmt.Errorf("consume: %w", ErrFrozenToday)
	assert.ErrorIs(t, err, ErrAlreadyFrozenToday)
	assert.True(t, IsPrecondition(err))
	assert.False(t, IsNotFound(err))

	wrapped := WrapError("progress", "ListTime", ErrStorageUnavailable, "query failed", errors.New("conn reset"))
	assert.ErrorIs(t, wrapped, ErrStorageUnavailable)
	assert.Contains(t, wrapped.Error(), "conn reset")
	assert.True(t, IsRetryable(wrapped))
}

func TestTimeoutMatchesStorageUnavailable(t *testing.T) {
	err := WrapError("learner", "Update", ErrTimeout, "deadline", nil)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.ErrorIs(t, err, ErrStorageUnavailable)
	assert.False(t, errors.Is(ErrStorageUnavailable, ErrTimeout))
}

func TestValidationHelpers(t *testing.T) {
	assert.True(t, IsValidation(Invalid("x", "y", "bad %d", 1)))
	assert.True(t, IsValidation(ErrUnknownOutputType))
	assert.True(t, IsNotFound(NotFound("x", "y", "missing")))
	assert.Equal(t, "x.y: bad 1", Invalid("x", "y", "bad %d", 1).Error())
}

func TestWarnings_Dedup(t *testing.T) {
	ws := NewWarnings()
	assert.True(t, ws.Add(Warning{Code: WarnUnknownCourse, Subject: "c/a"}))
	assert.False(t, ws.Add(Warning{Code: WarnUnknownCourse, Subject: "c/a", Message: "again"}))
	ws.Merge([]Warning{
		{Code: WarnZeroSkillWeights, Subject: "c"},
		{Code: WarnInvalidAlternative, Subject: "p#1"},
	})

	list := ws.List()
	assert.Len(t, list, 3)
	assert.Equal(t, WarnInvalidAlternative, list[0].Code)

	var none *Warnings
	assert.False(t, none.Add(Warning{}))
	assert.Nil(t, none.List())
}

func TestPercentageHelpers(t *testing.T) {
	assert.Equal(t, Percentage(100), ClampPercentage(170))
	assert.Equal(t, Percentage(0), ClampPercentage(-3))
	assert.Equal(t, Percentage(51), ClampPercentage(50.5))
	assert.Equal(t, 0.5, Ratio(2, 4))
	assert.Equal(t, 1.0, Ratio(5, 4))
	assert.Zero(t, Ratio(3, 0))
	assert.Equal(t, XP(7), XP(15).Half())
}
