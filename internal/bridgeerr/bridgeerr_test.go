package bridgeerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConstructorsSetExpectedKind(t *testing.T) {
	require.True(t, IsConfig(Config("bad: %s", "thing")))
	require.True(t, IsIO(IO(errors.New("boom"), "context")))
	require.True(t, IsProtocol(Protocol("malformed")))
	require.True(t, IsFraming(Framing("missing delimiter")))
	require.True(t, IsLogic(Logic("close without open")))
}

func TestKindPredicatesAreMutuallyExclusive(t *testing.T) {
	err := Config("x")
	require.True(t, IsConfig(err))
	require.False(t, IsIO(err))
	require.False(t, IsProtocol(err))
	require.False(t, IsFraming(err))
	require.False(t, IsLogic(err))
}

func TestErrorMessageIncludesCause(t *testing.T) {
	err := IO(errors.New("disk on fire"), "serial write")
	require.Contains(t, err.Error(), "disk on fire")
	require.Contains(t, err.Error(), "io")
}

func TestUnwrapExposesCause(t *testing.T) {
	cause := errors.New("root cause")
	err := IO(cause, "wrapped")
	require.ErrorIs(t, err, cause)
}

// TestIOReturnsTypedNilForNilCause documents a sharp edge: IO(nil, ...)
// returns a nil *Error, not a nil error interface. Every call site in
// this module only calls IO inside an `if err != nil` guard; this test
// exists so that invariant has a name if it's ever violated.
func TestIOReturnsTypedNilForNilCause(t *testing.T) {
	err := IO(nil, "context")
	require.Nil(t, err)
}
