package usecases

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"luma_assistant/internal/entities"
	"luma_assistant/internal/logging"
	"luma_assistant/internal/repository"
)

type memoryRecorder struct {
	mu      sync.Mutex
	records []repository.ExchangeRecord
	err     error
}

func (r *memoryRecorder) Record(_ context.Context, rec repository.ExchangeRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return r.err
}

type sentMessage struct{ to, content string }

type fakeMessenger struct {
	sent []sentMessage
	err  error
}

func (m *fakeMessenger) SendMessage(_ context.Context, to, content string) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMessage{to, content})
	return nil
}

func newTestMessageService(t *testing.T) (*MessageService, *selectorFixture, *memoryRecorder, *BusinessDigest) {
	t.Helper()
	f := newSelectorFixture(t, nil)
	rec := &memoryRecorder{}
	digest := NewBusinessDigest()
	return NewMessageService(f.detector, f.selector, rec, digest, nil, logging.Discard()), f, rec, digest
}

func TestProcessMessage_RejectsEmptyInput(t *testing.T) {
	svc, f, rec, _ := newTestMessageService(t)

	for _, msg := range []entities.InboundMessage{
		{From: "   ", Content: "Bonjour"},
		{From: "33612345678", Content: " \n\t "},
	} {
		_, err := svc.ProcessMessage(context.Background(), msg)
		assert.ErrorIs(t, err, ErrInvalidMessage)
	}
	assert.Zero(t, f.store.Len())
	assert.Empty(t, rec.records)
}

func TestProcessMessage_RecordsExchange(t *testing.T) {
	svc, _, rec, digest := newTestMessageService(t)

	reply, err := svc.ProcessMessage(context.Background(), entities.InboundMessage{
		ID:       "wamid.1",
		From:     " 33612345678 ",
		Content:  "Où en est ma commande ?",
		Platform: "webhook",
	})
	require.NoError(t, err)

	require.Len(t, rec.records, 1)
	r := rec.records[0]
	assert.Equal(t, "wamid.1", r.MessageID)
	assert.Equal(t, "33612345678", r.ClientID)
	assert.Equal(t, reply.Text, r.Response)
	assert.Equal(t, reply.Strategy, r.Strategy)
	assert.Equal(t, reply.Escalated, r.Escalated)
	assert.False(t, r.CreatedAt.IsZero())

	assert.Equal(t, 1, digest.Snapshot().Messages)
}

func TestProcessMessage_RecorderFailureIsNotFatal(t *testing.T) {
	svc, _, rec, _ := newTestMessageService(t)
	rec.err = errors.New("connection refused")

	reply, err := svc.ProcessMessage(context.Background(), entities.InboundMessage{From: "33612345678", Content: "Bonjour"})
	require.NoError(t, err)
	assert.NotEmpty(t, reply.Text)
}

func TestProcessMessage_SameClientConcurrently(t *testing.T) {
	svc, f, _, _ := newTestMessageService(t)

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.ProcessMessage(context.Background(), entities.InboundMessage{
				From:    "33612345678",
				Content: fmt.Sprintf("message %d", i),
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	c, ok := f.store.Get("33612345678")
	require.True(t, ok)
	assert.Equal(t, n, c.InteractionCount)
	assert.Len(t, c.History, repository.DefaultHistoryLimit)
	assert.Zero(t, svc.InFlight())
}

func TestProcessMessage_SameClientBackendCallsOverlap(t *testing.T) {
	ai := &stubAI{reply: "Bien sûr, on a ça en boutique.", delay: 200 * time.Millisecond}
	f := newSelectorFixture(t, ai)
	f.selector.cfg.Timeout = 2 * time.Second
	svc := NewMessageService(f.detector, f.selector, nil, nil, nil, logging.Discard())

	var wg sync.WaitGroup
	for _, text := range []string{"Vous avez la geekbar en stock ?", "Et des résistances ?"} {
		wg.Add(1)
		go func(text string) {
			defer wg.Done()
			reply, err := svc.ProcessMessage(context.Background(), entities.InboundMessage{From: "33612345678", Content: text})
			assert.NoError(t, err)
			assert.Equal(t, StrategyGenerative, reply.Strategy)
		}(text)
	}
	wg.Wait()

	assert.Equal(t, 2, ai.Calls())
	assert.Equal(t, 2, ai.Peak(), "backend calls of one client must not wait for each other")

	c, ok := f.store.Get("33612345678")
	require.True(t, ok)
	assert.Equal(t, 2, c.InteractionCount)
	assert.Len(t, c.History, 2)
	assert.Zero(t, svc.InFlight())
}

func TestHandleAndReply(t *testing.T) {
	svc, _, _, _ := newTestMessageService(t)
	m := &fakeMessenger{}

	require.NoError(t, svc.HandleAndReply(context.Background(), entities.InboundMessage{From: "33612345678", Content: "Bonjour"}, m))
	require.Len(t, m.sent, 1)
	assert.Equal(t, "33612345678", m.sent[0].to)
	assert.NotEmpty(t, m.sent[0].content)

	m.err = errors.New("not connected")
	err := svc.HandleAndReply(context.Background(), entities.InboundMessage{From: "33612345678", Content: "Bonjour"}, m)
	assert.ErrorContains(t, err, "not connected")

	err = svc.HandleAndReply(context.Background(), entities.InboundMessage{From: "33612345678"}, m)
	assert.ErrorIs(t, err, ErrInvalidMessage)
}
