package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type revokerFunc func(ctx context.Context, userID string) error

func (f revokerFunc) Revoke(ctx context.Context, userID string) error { return f(ctx, userID) }

type closer struct{ closed []string }

func (c *closer) Disconnect(userID string) { c.closed = append(c.closed, userID) }

func TestSessionsRevoke(t *testing.T) {
	var revoked []string
	conns := &closer{}
	s := NewSessions(revokerFunc(func(_ context.Context, id string) error {
		revoked = append(revoked, id)
		return nil
	}), conns)

	assert.NoError(t, s.Revoke(context.Background(), "u1"))
	assert.Equal(t, []string{"u1"}, revoked)
	assert.Equal(t, []string{"u1"}, conns.closed)
}

func TestSessionsClosesSocketsWhenRevokeFails(t *testing.T) {
	boom := errors.New("db down")
	conns := &closer{}
	s := NewSessions(revokerFunc(func(context.Context, string) error { return boom }), conns)

	assert.ErrorIs(t, s.Revoke(context.Background(), "u1"), boom)
	assert.Equal(t, []string{"u1"}, conns.closed)

	assert.NoError(t, NewSessions(revokerFunc(func(context.Context, string) error { return nil }), nil).
		Revoke(context.Background(), "u2"))
}
