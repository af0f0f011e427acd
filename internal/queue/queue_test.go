package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryDeliversInOrder(t *testing.T) {
	q := NewInMemory(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, q.Publish(ctx, Message{Type: "a", Body: []byte("1")}))
	require.NoError(t, q.Publish(ctx, Message{Type: "b", Body: []byte("2")}))

	msgs, err := q.Consume(ctx)
	require.NoError(t, err)

	first := <-msgs
	second := <-msgs
	assert.Equal(t, "a", first.Type)
	assert.Equal(t, "b", second.Type)
}

func TestInMemoryPublishUnblocksOnCancel(t *testing.T) {
	q := NewInMemory(1)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, q.Publish(ctx, Message{Type: "a"}))

	done := make(chan error, 1)
	go func() {
		done <- q.Publish(ctx, Message{Type: "b"})
	}()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("publish did not unblock on cancel")
	}
}

func TestInMemoryConsumeStopsOnCancel(t *testing.T) {
	q := NewInMemory(1)
	ctx, cancel := context.WithCancel(context.Background())

	msgs, err := q.Consume(ctx)
	require.NoError(t, err)
	cancel()

	select {
	case _, open := <-msgs:
		assert.False(t, open, "channel closes after cancel")
	case <-time.After(time.Second):
		t.Fatal("consume channel did not close")
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	msg := Message{Type: "verify_email", Body: []byte(`{"email":"a|b@example.edu"}`)}

	got, err := deserialize(serialize(msg))
	require.NoError(t, err)
	assert.Equal(t, msg.Type, got.Type)
	assert.Equal(t, msg.Body, got.Body, "arbitrary body bytes survive the envelope")
}

func TestDeserializeMalformed(t *testing.T) {
	_, err := deserialize("not json")
	assert.Error(t, err)
}

func TestPublishAndDecodeEmail(t *testing.T) {
	q := NewInMemory(1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	job := EmailJob{Email: "z100@example.edu", Code: "123456", Purpose: "registration"}
	require.NoError(t, PublishEmail(ctx, q, job))

	msgs, err := q.Consume(ctx)
	require.NoError(t, err)
	msg := <-msgs
	assert.Equal(t, TypeVerifyEmail, msg.Type)

	got, err := DecodeEmail(msg)
	require.NoError(t, err)
	assert.Equal(t, job, got)
}
