package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/atelierhq/atelier/internal/session"
	"github.com/atelierhq/atelier/internal/store/memory"
)

func newService(t *testing.T, opts ...session.Option) *session.Service {
	t.Helper()
	svc, err := session.NewService(memory.New().Sessions(), opts...)
	require.NoError(t, err)
	return svc
}

func TestStartValidatesInput(t *testing.T) {
	svc := newService(t)
	_, err := svc.Start(context.Background(), "", "w1", "")
	require.ErrorIs(t, err, session.ErrInvalidInput)
	_, err = svc.Start(context.Background(), "owner", " ", "")
	require.ErrorIs(t, err, session.ErrInvalidInput)
}

func TestEndStampsExactlyOnce(t *testing.T) {
	base := time.Now().UTC()
	clock := base
	svc := newService(t, session.WithClock(func() time.Time { return clock }))

	sess, err := svc.Start(context.Background(), "owner", "w1", "checkup")
	require.NoError(t, err)
	require.True(t, sess.Active)
	require.Nil(t, sess.EndedAt)

	clock = base.Add(10 * time.Minute)
	ended, err := svc.End(context.Background(), sess.ID)
	require.NoError(t, err)
	require.False(t, ended.Active)
	require.NotNil(t, ended.EndedAt)
	require.True(t, ended.EndedAt.Equal(base.Add(10*time.Minute)))

	// A later retry must not move the stamp.
	clock = base.Add(time.Hour)
	_, err = svc.End(context.Background(), sess.ID)
	require.ErrorIs(t, err, session.ErrAlreadyEnded)

	stored, err := svc.Find(context.Background(), sess.ID)
	require.NoError(t, err)
	require.True(t, stored.EndedAt.Equal(base.Add(10*time.Minute)))
}

func TestEndUnknownSession(t *testing.T) {
	svc := newService(t)
	_, err := svc.End(context.Background(), "missing")
	require.ErrorIs(t, err, session.ErrNotFound)
}

func TestListActiveFiltersByOwner(t *testing.T) {
	svc := newService(t)
	a, err := svc.Start(context.Background(), "alice", "w1", "")
	require.NoError(t, err)
	_, err = svc.Start(context.Background(), "bob", "w1", "")
	require.NoError(t, err)

	mine, err := svc.ListActive(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	require.Equal(t, a.ID, mine[0].ID)

	all, err := svc.ListActive(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, all, 2)

	_, err = svc.End(context.Background(), a.ID)
	require.NoError(t, err)
	mine, err = svc.ListActive(context.Background(), "alice")
	require.NoError(t, err)
	require.Empty(t, mine)
}
