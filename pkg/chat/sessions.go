package chat

import (
	"context"
)

// TokenRevoker invalidates every issued token of a user
type TokenRevoker interface {
	Revoke(ctx context.Context, userID string) error
}

// ConnectionCloser drops the live connections of a user
type ConnectionCloser interface {
	Disconnect(userID string)
}

// Sessions ends a user's sessions: outstanding tokens stop working and open
// websockets are closed. Sockets are closed even when revocation fails.
type Sessions struct {
	tokens TokenRevoker
	conns  ConnectionCloser
}

func NewSessions(tokens TokenRevoker, conns ConnectionCloser) *Sessions {
	return &Sessions{tokens: tokens, conns: conns}
}

func (s *Sessions) Revoke(ctx context.Context, userID string) error {
	if s.conns != nil {
		defer s.conns.Disconnect(userID)
	}
	return s.tokens.Revoke(ctx, userID)
}
