package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodeOf(t *testing.T) {
	err := New(Full, "spool full").With("topic", "a/b")
	code, ok := CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, Full, code)
	assert.Equal(t, "a/b", err.Fields["topic"])
}

func TestErrorsIsMatchesByCode(t *testing.T) {
	err := New(Closed, "session closed")
	assert.True(t, errors.Is(err, ErrClosed))
	assert.False(t, errors.Is(err, ErrFull))
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	err := Wrap(Timeout, "connect", cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "timeout: connect")
}

func TestCausesFlattensJoinedErrors(t *testing.T) {
	a := New(Retryable, "a")
	b := New(NonRetryable, "b")
	joined := errors.Join(a, b)

	causes := Causes(joined)
	require.Len(t, causes, 2)
	assert.Same(t, a, causes[0])
	assert.Same(t, b, causes[1])
}

func TestCausesOnSingleWrapReturnsItself(t *testing.T) {
	err := fmt.Errorf("outer: %w", New(Offline, "qos0 dropped"))
	causes := Causes(err)
	require.Len(t, causes, 1)
	assert.Equal(t, err, causes[0])
}
