package db

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexigraph/lexigraph/internal/apperr"
	"github.com/lexigraph/lexigraph/pkg/session"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := "file:" + t.TempDir() + "/test.db"
	s, err := Open(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateAndGetSession(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.CreateSession(ctx, session.Session{ID: "s1", Name: "lease review", CreatedAt: now, UpdatedAt: now}))

	got, err := s.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "lease review", got.Name)
}

func TestGetSessionMissingReturnsSessionGone(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetSession(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, apperr.SessionGone, apperr.KindOf(err))
}

func TestDeleteSessionCascadesMessagesAndUploads(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.CreateSession(ctx, session.Session{ID: "s1", CreatedAt: now, UpdatedAt: now}))
	require.NoError(t, s.Append(ctx, session.Message{ID: "m1", SessionID: "s1", Role: session.RoleUser, Content: "hi", CreatedAt: now}))
	require.NoError(t, s.CreateUpload(ctx, session.Upload{ID: "u1", SessionID: "s1", FileName: "f.pdf", ByteSize: 10, CreatedAt: now}))

	require.NoError(t, s.DeleteSession(ctx, "s1"))

	_, err := s.GetSession(ctx, "s1")
	assert.Equal(t, apperr.SessionGone, apperr.KindOf(err))
	msgs, err := s.Recent(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, msgs)
	// the upload row is gone too: the same (session, file name, size) can be recorded again
	require.NoError(t, s.CreateUpload(ctx, session.Upload{ID: "u2", SessionID: "s1", FileName: "f.pdf", ByteSize: 10, CreatedAt: now}))
}

func TestAppendAndRecentPreserveOrder(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()
	require.NoError(t, s.CreateSession(ctx, session.Session{ID: "s1", CreatedAt: now, UpdatedAt: now}))

	require.NoError(t, s.Append(ctx, session.Message{ID: "m1", SessionID: "s1", Role: session.RoleUser, Content: "first", CreatedAt: now}))
	require.NoError(t, s.Append(ctx, session.Message{ID: "m2", SessionID: "s1", Role: session.RoleAssistant, Content: "second", CreatedAt: now.Add(time.Second)}))

	msgs, err := s.Recent(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "first", msgs[0].Content)
	assert.Equal(t, "second", msgs[1].Content)
}

func TestCreateUploadDuplicateIsConflict(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()
	require.NoError(t, s.CreateSession(ctx, session.Session{ID: "s1", CreatedAt: now, UpdatedAt: now}))

	up := session.Upload{ID: "u1", SessionID: "s1", FileName: "f.pdf", ByteSize: 10, CreatedAt: now}
	require.NoError(t, s.CreateUpload(ctx, up))

	up.ID = "u2"
	err := s.CreateUpload(ctx, up)
	require.Error(t, err)
	assert.Equal(t, apperr.Conflict, apperr.KindOf(err))
}
