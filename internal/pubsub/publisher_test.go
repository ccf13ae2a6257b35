package pubsub

import (
	"context"
	"os"
	"testing"
	"time"

	"admindash/internal/config"

	ps "cloud.google.com/go/pubsub"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPublisherInvalidProject(t *testing.T) {
	cfg := &config.Config{GCPProjectID: ""}
	_, err := NewPublisher(context.Background(), cfg)
	assert.Error(t, err, "expected error when project ID is empty")
}

func TestPublishReminderWithEmulator(t *testing.T) {
	if os.Getenv("PUBSUB_EMULATOR_HOST") == "" {
		t.Skip("PUBSUB_EMULATOR_HOST is not set, skip emulator integration test")
	}

	ctx := context.Background()
	pub, err := NewPublisher(ctx, &config.Config{GCPProjectID: "test-project"})
	require.NoError(t, err)
	defer pub.Close()

	topicName := "trial-reminders-test"
	topic, err := pub.client.CreateTopic(ctx, topicName)
	require.NoError(t, err)
	sub, err := pub.client.CreateSubscription(ctx, "trial-reminders-test-sub", ps.SubscriptionConfig{Topic: topic})
	require.NoError(t, err)

	payload := []byte(`{"job_id":"j1","user_id":"u1","type":"reminder"}`)
	msgID, err := pub.Publish(ctx, topicName, payload)
	require.NoError(t, err)
	assert.NotEmpty(t, msgID)

	// The second publish reuses the cached topic handle.
	_, err = pub.Publish(ctx, topicName, payload)
	require.NoError(t, err)

	recvCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	received := make(chan []byte, 2)
	go func() {
		_ = sub.Receive(recvCtx, func(_ context.Context, m *ps.Message) {
			received <- m.Data
			m.Ack()
		})
	}()

	select {
	case data := <-received:
		assert.JSONEq(t, string(payload), string(data))
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for message from emulator subscription")
	}
}
