package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errSample = BusinessRule("sample_rule", "sample rule violated")

func TestIsMatchesCopies(t *testing.T) {
	specific := errSample.WithMessage("sample rule violated for user 7")
	wrapped := fmt.Errorf("create: %w", specific)

	assert.True(t, errors.Is(wrapped, errSample))
	assert.False(t, errors.Is(wrapped, ErrNotAdmin))
	assert.Equal(t, "sample rule violated", errSample.Message)
}

func TestFromAndKindOf(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", ErrUserBanned)

	e, ok := From(wrapped)
	require.True(t, ok)
	assert.Equal(t, "user_banned", e.Code)
	assert.Equal(t, KindAuthorization, KindOf(wrapped))
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
}

func TestWithDetails(t *testing.T) {
	e := ErrInvalidInput.WithDetails(map[string]string{"account_number": "len"})

	assert.Nil(t, ErrInvalidInput.Details)
	assert.Equal(t, "len", e.Details["account_number"])
	assert.True(t, errors.Is(e, ErrInvalidInput))
}
