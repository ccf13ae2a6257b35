package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	topic   string
	payload []byte
}

type fakePublisher struct {
	msgs   []published
	failOn int
}

func (f *fakePublisher) Publish(_ context.Context, topic string, payload []byte) (string, error) {
	if f.failOn > 0 && len(f.msgs)+1 == f.failOn {
		return "", errors.New("deadline exceeded")
	}
	f.msgs = append(f.msgs, published{topic: topic, payload: payload})
	return fmt.Sprintf("msg-%d", len(f.msgs)), nil
}

func TestSendRemindersPublishesOneJobPerUser(t *testing.T) {
	pub := &fakePublisher{}
	svc := NewReminderService(pub, "trial-reminders", zerolog.Nop())
	now := time.Date(2025, 10, 15, 9, 0, 0, 0, time.UTC)
	svc.(*reminderService).now = func() time.Time { return now }

	ids, err := svc.Send(context.Background(), "admin-1", ReminderOffer, "u1", "u2")
	require.NoError(t, err)
	require.Len(t, ids, 2)
	assert.NotEqual(t, ids[0], ids[1])
	require.Len(t, pub.msgs, 2)

	for i, userID := range []string{"u1", "u2"} {
		assert.Equal(t, "trial-reminders", pub.msgs[i].topic)
		var job ReminderJob
		require.NoError(t, json.Unmarshal(pub.msgs[i].payload, &job))
		assert.Equal(t, ReminderJob{
			JobID:       ids[i],
			UserID:      userID,
			Kind:        ReminderOffer,
			RequestedBy: "admin-1",
			RequestedAt: now,
		}, job)
	}
	assert.Contains(t, string(pub.msgs[0].payload), `"type":"offer"`)
}

func TestSendRemindersRejectsBadInput(t *testing.T) {
	pub := &fakePublisher{}
	svc := NewReminderService(pub, "trial-reminders", zerolog.Nop())

	_, err := svc.Send(context.Background(), "admin-1", ReminderKind("spam"), "u1")
	assert.ErrorIs(t, err, ErrInvalidReminder)

	_, err = svc.Send(context.Background(), "admin-1", ReminderTrialEnding)
	assert.ErrorIs(t, err, ErrInvalidReminder)
	assert.Empty(t, pub.msgs)
}

func TestSendRemindersStopsAtFirstFailure(t *testing.T) {
	pub := &fakePublisher{failOn: 2}
	svc := NewReminderService(pub, "trial-reminders", zerolog.Nop())

	ids, err := svc.Send(context.Background(), "admin-1", ReminderTrialEnding, "u1", "u2", "u3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "u2")
	assert.Len(t, ids, 1, "jobs queued before the failure are reported")
	assert.Len(t, pub.msgs, 1)
}
