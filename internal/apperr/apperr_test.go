package apperr

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOfUnwrapsWrappedError(t *testing.T) {
	base := New(SessionGone, "session was deleted", nil)
	wrapped := fmt.Errorf("answer: %w", base)

	assert.Equal(t, SessionGone, KindOf(wrapped))
}

func TestKindOfDefaultsToInternal(t *testing.T) {
	assert.Equal(t, Internal, KindOf(fmt.Errorf("plain error")))
}

func TestErrorMessageIncludesCause(t *testing.T) {
	cause := fmt.Errorf("dial tcp: refused")
	err := New(UpstreamUnavailable, "graph store unreachable", cause)

	assert.Contains(t, err.Error(), "graph store unreachable")
	assert.Contains(t, err.Error(), "refused")
}
