package moderation

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PancyStudios/PancyChatGo/pkg/classifier"
	"github.com/PancyStudios/PancyChatGo/pkg/database"
	"github.com/PancyStudios/PancyChatGo/pkg/models"
)

type fakeStore struct {
	mu         sync.Mutex
	states     map[string]models.ModerationState
	events     []models.ModerationEvent
	loads      int
	swaps      int
	loadErr    error
	swapErr    error
	conflicts  int // number of swaps to fail with ErrStateConflict
	beforeLoad func()
}

func newFakeStore() *fakeStore {
	return &fakeStore{states: make(map[string]models.ModerationState)}
}

func (s *fakeStore) LoadState(_ context.Context, userID string) (models.ModerationState, error) {
	if s.beforeLoad != nil {
		s.beforeLoad()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads++
	if s.loadErr != nil {
		return models.ModerationState{}, s.loadErr
	}
	return s.states[userID], nil
}

func (s *fakeStore) SwapState(_ context.Context, userID string, prev, next models.ModerationState, event models.ModerationEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.swaps++
	if s.swapErr != nil {
		return s.swapErr
	}
	if s.conflicts > 0 {
		s.conflicts--
		return database.ErrStateConflict
	}
	cur := s.states[userID]
	if cur.FlagCount != prev.FlagCount || cur.Banned != prev.Banned || !sameTime(cur.SuspendedUntil, prev.SuspendedUntil) {
		return database.ErrStateConflict
	}
	s.states[userID] = next
	s.events = append(s.events, event)
	return nil
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func (s *fakeStore) state(userID string) models.ModerationState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[userID]
}

type fakeClassifier struct {
	verdict classifier.Verdict
	err     error
	calls   int32
	texts   []string
	mu      sync.Mutex
	during  func() // runs inside every Classify call
}

func (c *fakeClassifier) Classify(_ context.Context, text string) (classifier.Verdict, error) {
	atomic.AddInt32(&c.calls, 1)
	c.mu.Lock()
	c.texts = append(c.texts, text)
	c.mu.Unlock()
	if c.during != nil {
		c.during()
	}
	return c.verdict, c.err
}

type fakeRevoker struct {
	mu      sync.Mutex
	revoked []string
	err     error
}

func (r *fakeRevoker) Revoke(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.revoked = append(r.revoked, userID)
	return r.err
}

type fakeDeliverer struct {
	delivered []*models.Message
	err       error
}

func (d *fakeDeliverer) Deliver(_ context.Context, msg *models.Message) (*models.Message, error) {
	if d.err != nil {
		return nil, d.err
	}
	stored := *msg
	stored.ID = "m1"
	d.delivered = append(d.delivered, &stored)
	return &stored, nil
}

type fakeSink struct {
	mu     sync.Mutex
	events []models.ModerationEvent
}

func (s *fakeSink) Publish(_ context.Context, e models.ModerationEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

type gateFixture struct {
	store    *fakeStore
	cls      *fakeClassifier
	sessions *fakeRevoker
	delivery *fakeDeliverer
	sink     *fakeSink
	gate     *Gate
}

func newGateFixture() *gateFixture {
	f := &gateFixture{
		store:    newFakeStore(),
		cls:      &fakeClassifier{verdict: classifier.VerdictSafe},
		sessions: &fakeRevoker{},
		delivery: &fakeDeliverer{},
		sink:     &fakeSink{},
	}
	f.gate = NewGate(f.store, f.cls, f.sessions, f.delivery).
		WithEventSink(f.sink).
		WithClock(func() time.Time { return testNow })
	return f
}

func TestGateFreshUserHarmful(t *testing.T) {
	f := newGateFixture()
	f.cls.verdict = classifier.VerdictHarmful

	msg, err := f.gate.Send(context.Background(), Attempt{SenderID: "alice", ReceiverID: "bob", Text: "  nasty  "})
	require.Nil(t, msg)

	var harmful *HarmfulContentError
	require.ErrorAs(t, err, &harmful)
	assert.Equal(t, 1, harmful.Tier.Level)
	assert.Equal(t, "You have been suspended for 5 minutes.", harmful.Tier.Message)

	st := f.store.state("alice")
	assert.Equal(t, 1, st.FlagCount)
	assert.False(t, st.Banned)
	require.NotNil(t, st.SuspendedUntil)
	assert.True(t, st.SuspendedUntil.Equal(testNow.Add(5*time.Minute)))

	assert.Equal(t, []string{"alice"}, f.sessions.revoked)
	assert.Equal(t, []string{"nasty"}, f.cls.texts)
	assert.Empty(t, f.delivery.delivered)
	require.Len(t, f.sink.events, 1)
	assert.Equal(t, models.EventViolation, f.sink.events[0].Kind)
	assert.Equal(t, models.ActorSystem, f.sink.events[0].Actor)
}

func TestGateFifthViolationBans(t *testing.T) {
	f := newGateFixture()
	f.cls.verdict = classifier.VerdictHarmful
	f.store.states["alice"] = models.ModerationState{FlagCount: 4, SuspendedUntil: ptr(testNow.Add(-time.Minute))}

	_, err := f.gate.Send(context.Background(), Attempt{SenderID: "alice", ReceiverID: "bob", Text: "nasty"})

	var harmful *HarmfulContentError
	require.ErrorAs(t, err, &harmful)
	assert.True(t, harmful.Tier.Permanent())
	assert.Equal(t, "You have been permanently banned.", harmful.Tier.Message)

	st := f.store.state("alice")
	assert.Equal(t, 5, st.FlagCount)
	assert.True(t, st.Banned)
	assert.Nil(t, st.SuspendedUntil)
	require.Len(t, f.sink.events, 1)
	assert.Equal(t, models.EventBan, f.sink.events[0].Kind)
}

func TestGateSuspendedSenderBlockedBeforeClassifier(t *testing.T) {
	f := newGateFixture()
	until := testNow.Add(10 * time.Minute)
	f.store.states["alice"] = models.ModerationState{FlagCount: 1, SuspendedUntil: &until}

	_, err := f.gate.Send(context.Background(), Attempt{SenderID: "alice", ReceiverID: "bob", Text: "hello"})

	var blocked *BlockedError
	require.ErrorAs(t, err, &blocked)
	assert.Equal(t, TemporarySuspension, blocked.Reason)
	require.NotNil(t, blocked.Until)
	assert.True(t, blocked.Until.Equal(until))

	assert.Zero(t, atomic.LoadInt32(&f.cls.calls))
	assert.Equal(t, []string{"alice"}, f.sessions.revoked)
	assert.Equal(t, 1, f.store.state("alice").FlagCount)
}

func TestGateBannedSenderBlocked(t *testing.T) {
	f := newGateFixture()
	f.store.states["alice"] = models.ModerationState{FlagCount: 5, Banned: true}

	_, err := f.gate.Send(context.Background(), Attempt{SenderID: "alice", ReceiverID: "bob", Image: "https://img/x.png"})

	var blocked *BlockedError
	require.ErrorAs(t, err, &blocked)
	assert.Equal(t, PermanentBan, blocked.Reason)
	assert.Empty(t, f.delivery.delivered)
}

func TestGateImageOnlySkipsClassifier(t *testing.T) {
	f := newGateFixture()
	f.cls.err = errors.New("must not be called")

	msg, err := f.gate.Send(context.Background(), Attempt{SenderID: "alice", ReceiverID: "bob", Image: "https://img/x.png"})
	require.NoError(t, err)
	require.NotNil(t, msg)

	assert.Zero(t, atomic.LoadInt32(&f.cls.calls))
	assert.Equal(t, "https://img/x.png", msg.Image)
	assert.Empty(t, msg.Text)
	require.Len(t, f.delivery.delivered, 1)
}

func TestGateCleanTextDelivered(t *testing.T) {
	f := newGateFixture()

	msg, err := f.gate.Send(context.Background(), Attempt{SenderID: "alice", ReceiverID: "bob", Text: " hi there ", Image: "https://img/x.png"})
	require.NoError(t, err)

	assert.Equal(t, "hi there", msg.Text)
	assert.Equal(t, "alice", msg.SenderID)
	assert.Equal(t, "bob", msg.ReceiverID)
	assert.Empty(t, f.sessions.revoked)
	assert.Zero(t, f.store.swaps)
}

func TestGateClassifierUnavailable(t *testing.T) {
	f := newGateFixture()
	f.cls.err = classifier.ErrUnavailable

	_, err := f.gate.Send(context.Background(), Attempt{SenderID: "alice", ReceiverID: "bob", Text: "hello"})

	assert.ErrorIs(t, err, ErrClassifierUnavailable)
	assert.Equal(t, models.ModerationState{}, f.store.state("alice"))
	assert.Zero(t, f.store.swaps)
	assert.Empty(t, f.delivery.delivered)
	assert.Empty(t, f.sessions.revoked)
}

func TestGateClassifierMalformed(t *testing.T) {
	f := newGateFixture()
	f.cls.err = classifier.ErrMalformedResponse

	_, err := f.gate.Send(context.Background(), Attempt{SenderID: "alice", ReceiverID: "bob", Text: "hello"})
	assert.ErrorIs(t, err, ErrClassifierMalformedResponse)

	f.cls.err = nil
	f.cls.verdict = classifier.Verdict(7)
	_, err = f.gate.Send(context.Background(), Attempt{SenderID: "alice", ReceiverID: "bob", Text: "hello"})
	assert.ErrorIs(t, err, ErrClassifierMalformedResponse)

	assert.Empty(t, f.delivery.delivered)
	assert.Zero(t, f.store.swaps)
}

func TestGateEmptyAttempt(t *testing.T) {
	f := newGateFixture()

	for _, a := range []Attempt{
		{SenderID: "alice", ReceiverID: "bob"},
		{SenderID: "alice", ReceiverID: "bob", Text: "   ", Image: "\t"},
	} {
		_, err := f.gate.Send(context.Background(), a)
		assert.ErrorIs(t, err, ErrEmptyContent)
	}
	assert.Zero(t, f.store.loads)
	assert.Zero(t, atomic.LoadInt32(&f.cls.calls))
}

func TestGateStateLoadFailure(t *testing.T) {
	f := newGateFixture()
	f.store.loadErr = database.ErrNotConnected

	_, err := f.gate.Send(context.Background(), Attempt{SenderID: "alice", ReceiverID: "bob", Text: "hello"})

	var loadErr *StateLoadError
	require.ErrorAs(t, err, &loadErr)
	assert.ErrorIs(t, err, database.ErrNotConnected)
	assert.Zero(t, atomic.LoadInt32(&f.cls.calls))
}

func TestGatePersistFailureIsDistinct(t *testing.T) {
	f := newGateFixture()
	f.cls.verdict = classifier.VerdictHarmful
	f.store.swapErr = errors.New("write timeout")

	_, err := f.gate.Send(context.Background(), Attempt{SenderID: "alice", ReceiverID: "bob", Text: "nasty"})

	var persist *SuspensionPersistError
	require.ErrorAs(t, err, &persist)
	var harmful *HarmfulContentError
	assert.False(t, errors.As(err, &harmful))

	assert.Empty(t, f.delivery.delivered)
	assert.Empty(t, f.sink.events)
	assert.Empty(t, f.sessions.revoked)
}

func TestGateConflictRetries(t *testing.T) {
	f := newGateFixture()
	f.cls.verdict = classifier.VerdictHarmful
	f.store.conflicts = 2

	_, err := f.gate.Send(context.Background(), Attempt{SenderID: "alice", ReceiverID: "bob", Text: "nasty"})

	var harmful *HarmfulContentError
	require.ErrorAs(t, err, &harmful)
	assert.Equal(t, 3, f.store.swaps)
	assert.Equal(t, 1, f.store.state("alice").FlagCount)
}

func TestGateConflictExhausted(t *testing.T) {
	f := newGateFixture()
	f.cls.verdict = classifier.VerdictHarmful
	f.store.conflicts = maxSwapAttempts

	_, err := f.gate.Send(context.Background(), Attempt{SenderID: "alice", ReceiverID: "bob", Text: "nasty"})

	var persist *SuspensionPersistError
	require.ErrorAs(t, err, &persist)
	assert.ErrorIs(t, err, database.ErrStateConflict)
	assert.Equal(t, maxSwapAttempts, f.store.swaps)
}

func TestGateConcurrentViolationsCountTwice(t *testing.T) {
	f := newGateFixture()
	f.cls.verdict = classifier.VerdictHarmful

	var (
		initial sync.WaitGroup
		loads   int32
	)
	initial.Add(2)
	f.store.beforeLoad = func() {
		if atomic.AddInt32(&loads, 1) <= 2 {
			initial.Done()
			initial.Wait()
		}
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.gate.Send(context.Background(), Attempt{SenderID: "alice", ReceiverID: "bob", Text: "nasty"})
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		var harmful *HarmfulContentError
		assert.ErrorAs(t, err, &harmful)
	}
	assert.Equal(t, 2, f.store.state("alice").FlagCount)
}

func TestGateDeliveryFailure(t *testing.T) {
	f := newGateFixture()
	f.delivery.err = errors.New("insert failed")

	_, err := f.gate.Send(context.Background(), Attempt{SenderID: "alice", ReceiverID: "bob", Text: "hello"})

	var delivery *DeliveryError
	require.ErrorAs(t, err, &delivery)
	assert.EqualError(t, err, "failed to deliver message: insert failed")
}

func TestGateRevokeFailureKeepsOutcome(t *testing.T) {
	f := newGateFixture()
	f.cls.verdict = classifier.VerdictHarmful
	f.sessions.err = errors.New("db down")

	_, err := f.gate.Send(context.Background(), Attempt{SenderID: "alice", ReceiverID: "bob", Text: "nasty"})

	var harmful *HarmfulContentError
	assert.ErrorAs(t, err, &harmful)
}

func TestGateViolationKeepsConcurrentOperatorSuspension(t *testing.T) {
	f := newGateFixture()
	f.cls.verdict = classifier.VerdictHarmful
	admin := NewAdmin(f.store, f.sessions).WithClock(func() time.Time { return testNow })

	// The operator suspends alice after the gate loaded her state
	f.cls.during = func() {
		_, err := admin.Suspend(context.Background(), Action{UserID: "alice", Actor: "discord:42", Duration: MaxManualSuspension})
		require.NoError(t, err)
	}

	_, err := f.gate.Send(context.Background(), Attempt{SenderID: "alice", ReceiverID: "bob", Text: "nasty"})

	var harmful *HarmfulContentError
	require.ErrorAs(t, err, &harmful)

	want := testNow.Add(MaxManualSuspension)
	st := f.store.state("alice")
	assert.Equal(t, 1, st.FlagCount)
	require.NotNil(t, st.SuspendedUntil)
	assert.True(t, st.SuspendedUntil.Equal(want), "suspension shortened to %v", st.SuspendedUntil)
	assert.True(t, harmful.State.SuspendedUntil.Equal(want))
	assert.Equal(t, 3, f.store.swaps, "operator swap, gate conflict, gate retry")

	require.Len(t, f.store.events, 2)
	assert.Equal(t, models.EventSuspend, f.store.events[0].Kind)
	assert.Equal(t, models.EventViolation, f.store.events[1].Kind)
}
