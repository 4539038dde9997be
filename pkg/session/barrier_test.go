package session

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBarrierBarCancelsInFlightOperations(t *testing.T) {
	b := NewBarrier()
	opCtx, leave, err := b.Enter(context.Background(), "sess-1")
	require.NoError(t, err)
	defer leave()

	select {
	case <-opCtx.Done():
		t.Fatal("context cancelled before Bar was called")
	default:
	}

	b.Bar("sess-1")

	<-opCtx.Done()
	assert.ErrorIs(t, context.Cause(opCtx), ErrSessionGone)
}

func TestBarrierRejectsAdmissionAfterBar(t *testing.T) {
	b := NewBarrier()
	b.Bar("sess-1")

	_, _, err := b.Enter(context.Background(), "sess-1")
	assert.ErrorIs(t, err, ErrSessionGone)
}

func TestBarrierLeavesOtherSessionsUnaffected(t *testing.T) {
	b := NewBarrier()
	opCtx, leave, err := b.Enter(context.Background(), "sess-1")
	require.NoError(t, err)
	defer leave()

	b.Bar("sess-2")

	select {
	case <-opCtx.Done():
		t.Fatal("unrelated session's Bar call cancelled this operation")
	default:
	}

	_, leave2, err := b.Enter(context.Background(), "sess-1")
	require.NoError(t, err)
	leave2()
}

func TestBarrierLeaveDoesNotCancelWithSessionGone(t *testing.T) {
	b := NewBarrier()
	opCtx, leave, err := b.Enter(context.Background(), "sess-1")
	require.NoError(t, err)

	leave()

	<-opCtx.Done()
	assert.False(t, errors.Is(context.Cause(opCtx), ErrSessionGone))
}

func TestCauseTranslatesBarredContext(t *testing.T) {
	b := NewBarrier()
	opCtx, leave, err := b.Enter(context.Background(), "sess-1")
	require.NoError(t, err)
	defer leave()

	b.Bar("sess-1")
	<-opCtx.Done()

	original := errors.New("boom")
	assert.ErrorIs(t, Cause(opCtx, original), ErrSessionGone)
}

func TestCausePassesThroughUnrelatedError(t *testing.T) {
	original := errors.New("boom")
	assert.Same(t, original, Cause(context.Background(), original))
}
