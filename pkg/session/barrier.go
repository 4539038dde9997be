package session

import (
	"context"
	"errors"
	"sync"
)

// ErrSessionGone is the cause a Barrier attaches to a cancelled operation
// context, and the error Enter returns once a session has been barred.
var ErrSessionGone = errors.New("session no longer exists")

// Barrier tracks every in-flight Ingest/Answer call scoped to a session so
// a delete can cancel them and reject new admissions atomically, instead of
// racing a concurrent operation against the delete.
type Barrier struct {
	mu       sync.Mutex
	inFlight map[string]map[int]context.CancelCauseFunc
	barred   map[string]bool
	nextID   int
}

// NewBarrier builds an empty Barrier. Zero value is not ready to use.
func NewBarrier() *Barrier {
	return &Barrier{
		inFlight: make(map[string]map[int]context.CancelCauseFunc),
		barred:   make(map[string]bool),
	}
}

// Enter admits one in-flight operation for sessionID, returning a context
// derived from ctx that Bar cancels with ErrSessionGone as its cause, and a
// leave func the caller must call exactly once to deregister. It fails with
// ErrSessionGone if sessionID has already been barred.
func (b *Barrier) Enter(ctx context.Context, sessionID string) (opCtx context.Context, leave func(), err error) {
	b.mu.Lock()
	if b.barred[sessionID] {
		b.mu.Unlock()
		return nil, nil, ErrSessionGone
	}

	opCtx, cancel := context.WithCancelCause(ctx)
	id := b.nextID
	b.nextID++
	if b.inFlight[sessionID] == nil {
		b.inFlight[sessionID] = make(map[int]context.CancelCauseFunc)
	}
	b.inFlight[sessionID][id] = cancel
	b.mu.Unlock()

	leave = func() {
		b.mu.Lock()
		delete(b.inFlight[sessionID], id)
		if len(b.inFlight[sessionID]) == 0 {
			delete(b.inFlight, sessionID)
		}
		b.mu.Unlock()
		cancel(nil)
	}
	return opCtx, leave, nil
}

// Bar marks sessionID as deleted and cancels every operation currently
// registered against it with ErrSessionGone. Because the mark and the
// cancellation happen under the same lock Enter checks, no admission can
// slip in between them: a racing Enter either observes the mark and fails,
// or was already registered and gets cancelled.
func (b *Barrier) Bar(sessionID string) {
	b.mu.Lock()
	b.barred[sessionID] = true
	cancels := b.inFlight[sessionID]
	delete(b.inFlight, sessionID)
	b.mu.Unlock()

	for _, cancel := range cancels {
		cancel(ErrSessionGone)
	}
}

// Cause returns ErrSessionGone if ctx was cancelled by a Bar call, and
// err otherwise. Callers use this to translate an incidental context
// error into the specific abort reason at the point they observe it.
func Cause(ctx context.Context, err error) error {
	if cause := context.Cause(ctx); errors.Is(cause, ErrSessionGone) {
		return cause
	}
	return err
}
