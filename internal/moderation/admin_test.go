package moderation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PancyStudios/PancyChatGo/pkg/database"
	"github.com/PancyStudios/PancyChatGo/pkg/models"
)

func newTestAdmin() (*Admin, *fakeStore, *fakeRevoker, *fakeSink) {
	store := newFakeStore()
	sessions := &fakeRevoker{}
	sink := &fakeSink{}
	a := NewAdmin(store, sessions).
		WithEventSink(sink).
		WithClock(func() time.Time { return testNow })
	return a, store, sessions, sink
}

func TestAdminBanClearsSuspension(t *testing.T) {
	a, store, sessions, sink := newTestAdmin()
	store.states["u1"] = models.ModerationState{FlagCount: 2, SuspendedUntil: ptr(testNow.Add(time.Hour))}

	st, err := a.Ban(context.Background(), Action{UserID: "u1", Actor: "admin1", Reason: "spam"})
	require.NoError(t, err)

	assert.True(t, st.Banned)
	assert.Nil(t, st.SuspendedUntil)
	assert.Equal(t, 2, st.FlagCount)
	assert.Equal(t, models.BanSourceAdmin, st.BanSource)
	assert.Equal(t, []string{"u1"}, sessions.revoked)

	require.Len(t, sink.events, 1)
	ev := sink.events[0]
	assert.Equal(t, models.EventBan, ev.Kind)
	assert.Equal(t, "admin1", ev.Actor)
	assert.Equal(t, "spam", ev.Reason)
	assert.Equal(t, 2, ev.Previous.FlagCount)
}

func TestAdminUnbanKeepsFlagCount(t *testing.T) {
	a, store, sessions, _ := newTestAdmin()
	store.states["u1"] = models.ModerationState{FlagCount: 5, Banned: true, BanSource: models.BanSourceAutomatic}

	st, err := a.Unban(context.Background(), Action{UserID: "u1", Actor: "admin1"})
	require.NoError(t, err)

	assert.Equal(t, models.ModerationState{FlagCount: 5}, st)
	assert.Empty(t, sessions.revoked)

	// the next violation goes straight back to a ban
	assert.True(t, ApplyViolation(st, testNow).Banned)
}

func TestAdminSuspend(t *testing.T) {
	a, store, _, _ := newTestAdmin()
	store.states["u1"] = models.ModerationState{FlagCount: 1}

	st, err := a.Suspend(context.Background(), Action{UserID: "u1", Actor: "admin1", Duration: 30 * time.Minute})
	require.NoError(t, err)
	require.NotNil(t, st.SuspendedUntil)
	assert.True(t, st.SuspendedUntil.Equal(testNow.Add(30*time.Minute)))
	assert.Equal(t, 1, st.FlagCount)
	assert.True(t, EvaluateBlock(st, testNow).Blocked)
}

func TestAdminSuspendRejects(t *testing.T) {
	a, store, _, sink := newTestAdmin()
	store.states["banned"] = models.ModerationState{Banned: true}

	_, err := a.Suspend(context.Background(), Action{UserID: "u1", Duration: 0})
	assert.ErrorIs(t, err, ErrInvalidDuration)

	_, err = a.Suspend(context.Background(), Action{UserID: "u1", Duration: MaxManualSuspension + time.Second})
	assert.ErrorIs(t, err, ErrInvalidDuration)

	_, err = a.Suspend(context.Background(), Action{UserID: "banned", Duration: time.Hour})
	assert.ErrorIs(t, err, ErrAlreadyBanned)

	assert.Zero(t, store.swaps)
	assert.Empty(t, sink.events)
}

func TestAdminReset(t *testing.T) {
	a, store, _, sink := newTestAdmin()
	store.states["u1"] = models.ModerationState{FlagCount: 7, Banned: true, BanSource: models.BanSourceAutomatic}

	st, err := a.Reset(context.Background(), Action{UserID: "u1", Actor: "admin1"})
	require.NoError(t, err)
	assert.Equal(t, models.ModerationState{}, st)
	assert.Equal(t, models.ModerationState{}, store.state("u1"))
	require.Len(t, sink.events, 1)
	assert.Equal(t, models.EventReset, sink.events[0].Kind)
}

func TestAdminLoadFailure(t *testing.T) {
	a, store, _, _ := newTestAdmin()
	store.loadErr = database.ErrUserNotFound

	_, err := a.Ban(context.Background(), Action{UserID: "ghost"})
	assert.ErrorIs(t, err, database.ErrUserNotFound)
}
