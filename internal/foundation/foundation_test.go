package foundation

import (
	"errors"
	"testing"

	ferrors "git.home.luguber.info/inful/svcbuilder/internal/foundation/errors"
	"github.com/stretchr/testify/require"
)

func TestResult(t *testing.T) {
	t.Run("Ok result", func(t *testing.T) {
		result := Ok[string, error]("success")
		require.True(t, result.IsOk())
		require.False(t, result.IsErr())
		require.Equal(t, "success", result.Unwrap())
	})

	t.Run("Err result", func(t *testing.T) {
		testErr := errors.New("test error")
		result := Err[string, error](testErr)
		require.True(t, result.IsErr())
		require.ErrorIs(t, result.UnwrapErr(), testErr)
		require.Equal(t, "fallback", result.UnwrapOr("fallback"))
		require.Panics(t, func() { result.Unwrap() })
	})

	t.Run("Tuple conversions", func(t *testing.T) {
		v, err := FromTuple[int, error](7, nil).ToTuple()
		require.NoError(t, err)
		require.Equal(t, 7, v)

		r := FromTuple[int, error](0, errors.New("nope"))
		require.True(t, r.IsErr())
	})
}

type color string

func TestNormalizer(t *testing.T) {
	n := NewNormalizer(map[string]color{
		"red":  "red",
		"RED ": "red",
		"blue": "blue",
	}, "red", "red", "blue")

	require.Equal(t, color("blue"), n.Normalize("  Blue "))
	require.Equal(t, color("red"), n.Normalize("green"))

	_, err := n.NormalizeWithError("green")
	require.EqualError(t, err, `invalid value "green" (valid options: red, blue)`)
	require.Equal(t, []string{"red", "blue"}, n.Options())
}

func TestValidatorChain(t *testing.T) {
	nonEmpty := func(s string) ValidationResult {
		if s == "" {
			return Invalid(NewValidationError("name", "required", "must not be empty"))
		}
		return Valid()
	}
	short := func(s string) ValidationResult {
		if len(s) > 3 {
			return Invalid(NewValidationError("name", "too_long", "must be at most 3 characters"))
		}
		return Valid()
	}

	chain := NewValidatorChain(nonEmpty).Add(short)

	require.True(t, chain.Validate("api").Valid)

	res := chain.Validate("frontend")
	require.False(t, res.Valid)
	require.Equal(t, []string{"name: must be at most 3 characters"}, res.Messages())

	err := res.ToError()
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation))
}
