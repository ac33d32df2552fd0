package practice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devpath/progression-engine/internal/domain/content"
	"github.com/devpath/progression-engine/internal/domain/shared"
)

func predict(mode content.MatchMode, expected string, alts ...string) *content.Problem {
	return &content.Problem{
		ID:                   "p1",
		Kind:                 content.KindPredictOutput,
		Published:            true,
		ExpectedOutput:       expected,
		AcceptedAlternatives: alts,
		MatchMode:            mode,
		OutputType:           content.OutputText,
		XPValue:              10,
	}
}

func submit(output string) Submission {
	return Submission{LearnerID: "u1", ProblemID: "p1", Output: output}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		mode content.MatchMode
		in   string
		want string
	}{
		{"strict keeps everything", content.MatchStrict, " a \n", " a \n"},
		{"trim outer and per line", content.MatchTrim, "\n  a  \n\tb c \n\n", "a\nb c"},
		{"trim keeps inner runs", content.MatchTrim, "a   b", "a   b"},
		{"normalized collapses runs", content.MatchNormalized, "a \t  b\n\n\n  c  ", "a b\nc"},
		{"normalized strips trailing newline", content.MatchNormalized, "[3, 2, 1]\n", "[3, 2, 1]"},
		{"normalized crlf", content.MatchNormalized, "x\r\ny\r\n", "x\ny"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Normalize(tc.in, tc.mode)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	_, err := Normalize("x", "fuzzy")
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestEvaluate_NormalizedVersusStrict(t *testing.T) {
	ev, err := Evaluate(predict(content.MatchNormalized, "[3, 2, 1]\n"), submit("[3,  2,  1]"), nil)
	require.NoError(t, err)
	assert.True(t, ev.Correct)
	assert.Equal(t, 100, ev.Score)

	ev, err = Evaluate(predict(content.MatchStrict, "[3, 2, 1]\n"), submit("[3,  2,  1]"), nil)
	require.NoError(t, err)
	assert.False(t, ev.Correct)
	assert.Zero(t, ev.Score)
}

func TestEvaluate_MatchModeEquivalences(t *testing.T) {
	const expected = "hello world\nbye"
	outer := "  hello world\nbye \n"
	inner := "hello    world\n\n\nbye"

	check := func(mode content.MatchMode, sub string) bool {
		ev, err := Evaluate(predict(mode, expected), submit(sub), nil)
		require.NoError(t, err)
		return ev.Correct
	}

	assert.True(t, check(content.MatchTrim, outer))
	assert.False(t, check(content.MatchTrim, inner))
	assert.True(t, check(content.MatchNormalized, outer))
	assert.True(t, check(content.MatchNormalized, inner))
	assert.False(t, check(content.MatchStrict, outer))
	assert.False(t, check(content.MatchStrict, inner))
	assert.True(t, check(content.MatchStrict, expected))
}

func TestEvaluate_AcceptedAlternative(t *testing.T) {
	p := predict(content.MatchTrim, "42", "forty-two", "0x2a")
	ev, err := Evaluate(p, submit(" 0x2a\n"), nil)
	require.NoError(t, err)
	assert.True(t, ev.Correct)
}

func TestEvaluate_JSON(t *testing.T) {
	p := predict(content.MatchStrict, `{"a": 1, "b": [1, 2]}`, `not json`, `{"a": 2, "b": [1, 2]}`)
	p.OutputType = content.OutputJSON

	ws := shared.NewWarnings()
	ev, err := Evaluate(p, submit(`{"b":[1,2],"a":1}`), ws)
	require.NoError(t, err)
	assert.True(t, ev.Correct, "key order is irrelevant")

	ev, err = Evaluate(p, submit(`{"a":1,"b":[2,1]}`), ws)
	require.NoError(t, err)
	assert.False(t, ev.Correct, "array order matters")
	assert.Equal(t, 1, ws.Len(), "bad alternative reported")

	ev, err = Evaluate(p, submit(`{"a":2,"b":[1,2]}`), ws)
	require.NoError(t, err)
	assert.True(t, ev.Correct, "valid alternative still accepted")
	assert.Equal(t, 1, ws.Len())

	ev, err = Evaluate(p, submit(`{"a":1`), ws)
	require.NoError(t, err)
	assert.False(t, ev.Correct)

	ev, err = Evaluate(p, submit(`{"a":1,"b":[1,2]} extra`), ws)
	require.NoError(t, err)
	assert.False(t, ev.Correct)
}

func TestEvaluate_JSONBadExpected(t *testing.T) {
	p := predict(content.MatchStrict, `{oops`)
	p.OutputType = content.OutputJSON
	_, err := Evaluate(p, submit(`{}`), nil)
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestEvaluate_Failures(t *testing.T) {
	p := predict(content.MatchStrict, "x")
	p.Published = false
	_, err := Evaluate(p, submit("x"), nil)
	assert.ErrorIs(t, err, shared.ErrProblemNotPublished)

	p = predict(content.MatchStrict, "x")
	p.OutputType = "xml"
	_, err = Evaluate(p, submit("x"), nil)
	assert.ErrorIs(t, err, shared.ErrInvalidOutputType)

	ws := shared.NewWarnings()
	p = predict(content.MatchStrict, "")
	_, err = Evaluate(p, submit("x"), ws)
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
	assert.Equal(t, shared.WarnMissingExpectedOutput, ws.List()[0].Code)
}

func TestEvaluate_Elimination(t *testing.T) {
	p := &content.Problem{
		ID:             "e1",
		Kind:           content.KindEliminateWrong,
		Published:      true,
		Options:        []content.Option{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}},
		WrongOptionIDs: []string{"a", "c"},
	}
	tests := []struct {
		name     string
		selected []string
		correct  bool
		score    int
	}{
		{"exact", []string{"c", "a"}, true, 100},
		{"duplicates ignored", []string{"a", "a", "c"}, true, 100},
		{"half", []string{"a"}, false, 50},
		{"hit and miss cancel", []string{"a", "b"}, false, 0},
		{"all selected", []string{"a", "b", "c", "d"}, false, 0},
		{"nothing", nil, false, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ev, err := Evaluate(p, Submission{LearnerID: "u1", ProblemID: "e1", SelectedOptions: tc.selected}, nil)
			require.NoError(t, err)
			assert.Equal(t, tc.correct, ev.Correct)
			assert.Equal(t, tc.score, ev.Score)
		})
	}
}

func TestAwardFor(t *testing.T) {
	p := predict(content.MatchStrict, "x")
	p.XPValue = 15

	assert.Equal(t, Award{XP: 15}, AwardFor(p, true, nil, nil))
	assert.Equal(t, Award{}, AwardFor(p, false, nil, nil))
	assert.Equal(t, Award{}, AwardFor(p, true, []Attempt{{IsCorrect: false}, {IsCorrect: true}}, nil),
		"second correct earns nothing")
	assert.Equal(t, Award{XP: 15}, AwardFor(p, true, []Attempt{{IsCorrect: false}}, nil))

	reveal := &Reveal{LearnerID: "u1", ProblemID: "p1"}

	p.RevealPenalty = content.PenaltyHalfXP
	assert.Equal(t, Award{XP: 7}, AwardFor(p, true, nil, reveal))

	p.RevealPenalty = content.PenaltyNoXP
	assert.Equal(t, Award{}, AwardFor(p, true, nil, reveal))

	p.RevealPenalty = content.PenaltyViewedSolution
	assert.Equal(t, Award{SolutionViewed: true}, AwardFor(p, true, nil, reveal))
	assert.Equal(t, Award{SolutionViewed: true}, AwardFor(p, false, nil, reveal))
}

func TestCheckReveal(t *testing.T) {
	p := predict(content.MatchStrict, "x")
	assert.ErrorIs(t, CheckReveal(p, 5), shared.ErrRevealNotAllowed)

	p.RevealAllowed = true
	p.RevealAfterAttempts = 2
	assert.ErrorIs(t, CheckReveal(p, 1), shared.ErrRevealNotYetAllowed)
	assert.NoError(t, CheckReveal(p, 2))

	p.Published = false
	assert.ErrorIs(t, CheckReveal(p, 2), shared.ErrProblemNotPublished)
}

func TestSubmissionValidate(t *testing.T) {
	assert.ErrorIs(t, Submission{ProblemID: "p"}.Validate(), shared.ErrInvalidInput)
	assert.ErrorIs(t, Submission{LearnerID: "u"}.Validate(), shared.ErrInvalidInput)

	big := make([]byte, MaxSubmissionBytes+1)
	assert.ErrorIs(t, Submission{LearnerID: "u", ProblemID: "p", Output: string(big)}.Validate(), shared.ErrInvalidInput)
}
