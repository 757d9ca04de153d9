package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PancyStudios/PancyChatGo/pkg/models"
	"github.com/PancyStudios/PancyChatGo/pkg/realtime"
)

type memStore struct {
	saved []*models.Message
	err   error
}

func (m *memStore) Insert(_ context.Context, msg *models.Message) (*models.Message, error) {
	if m.err != nil {
		return nil, m.err
	}
	stored := *msg
	stored.ID = "m1"
	m.saved = append(m.saved, &stored)
	return &stored, nil
}

type pushRecord struct {
	user, event string
	data        interface{}
}

type fakePusher struct {
	pushes []pushRecord
}

func (p *fakePusher) SendToUser(userID, event string, data interface{}) int {
	p.pushes = append(p.pushes, pushRecord{userID, event, data})
	return 1
}

func TestDeliverStoresThenPushes(t *testing.T) {
	store := &memStore{}
	pusher := &fakePusher{}
	d := NewDelivery(store, pusher)

	got, err := d.Deliver(context.Background(), &models.Message{SenderID: "a", ReceiverID: "b", Text: "hi"})
	require.NoError(t, err)

	assert.Equal(t, "m1", got.ID)
	require.Len(t, store.saved, 1)
	require.Len(t, pusher.pushes, 1)
	assert.Equal(t, "b", pusher.pushes[0].user)
	assert.Equal(t, realtime.EventNewMessage, pusher.pushes[0].event)
	assert.Same(t, got, pusher.pushes[0].data)
}

func TestDeliverStoreFailureSkipsPush(t *testing.T) {
	store := &memStore{err: errors.New("down")}
	pusher := &fakePusher{}

	_, err := NewDelivery(store, pusher).Deliver(context.Background(), &models.Message{ReceiverID: "b", Text: "hi"})
	assert.EqualError(t, err, "down")
	assert.Empty(t, pusher.pushes)
}

func TestDeliverWithoutPusher(t *testing.T) {
	_, err := NewDelivery(&memStore{}, nil).Deliver(context.Background(), &models.Message{ReceiverID: "b", Image: "x"})
	assert.NoError(t, err)
}
