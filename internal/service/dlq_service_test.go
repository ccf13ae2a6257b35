package service

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"admindash/internal/api/v1/dto"
	"admindash/internal/model"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingDLQRepo struct {
	stored []*model.DeadLetterMessage
	err    error
}

func (r *recordingDLQRepo) Create(_ context.Context, m *model.DeadLetterMessage) error {
	if r.err != nil {
		return r.err
	}
	r.stored = append(r.stored, m)
	return nil
}

func pushRequest(data string, attrs map[string]string) *dto.DeadLetterPush {
	return &dto.DeadLetterPush{
		Subscription: "projects/p/subscriptions/trial-reminders-dlq",
		Message:      dto.PushedMessage{Data: data, MessageID: "m-1", Attributes: attrs},
	}
}

func TestProcessAndSaveReminderJob(t *testing.T) {
	repo := &recordingDLQRepo{}
	svc := NewDLQService(repo, zerolog.Nop())
	payload := `{"job_id":"j1","user_id":"user-7","type":"reminder"}`

	err := svc.ProcessAndSave(context.Background(), pushRequest(base64.StdEncoding.EncodeToString([]byte(payload)), map[string]string{"attempt": "5"}))
	require.NoError(t, err)
	require.Len(t, repo.stored, 1)

	got := repo.stored[0]
	assert.Equal(t, "m-1", got.MessageID)
	assert.Equal(t, "projects/p/subscriptions/trial-reminders-dlq", got.SubscriptionName)
	assert.Equal(t, payload, got.Payload)
	require.NotNil(t, got.UserID)
	assert.Equal(t, "user-7", *got.UserID)
	require.NotNil(t, got.Attributes)
	assert.JSONEq(t, `{"attempt":"5"}`, *got.Attributes)
	assert.Equal(t, "unprocessed", got.Status)
}

func TestProcessAndSaveKeepsUndecodablePayloads(t *testing.T) {
	repo := &recordingDLQRepo{}
	svc := NewDLQService(repo, zerolog.Nop())

	require.NoError(t, svc.ProcessAndSave(context.Background(), pushRequest("not base64!", nil)))
	got := repo.stored[0]
	assert.Equal(t, "not base64!", got.Payload)
	assert.Nil(t, got.UserID)
	assert.Nil(t, got.Attributes)
}

func TestProcessAndSaveReturnsStoreErrors(t *testing.T) {
	cause := errors.New("insert failed")
	svc := NewDLQService(&recordingDLQRepo{err: cause}, zerolog.Nop())
	err := svc.ProcessAndSave(context.Background(), pushRequest("e30=", nil))
	assert.ErrorIs(t, err, cause)
}

func TestProcessAndSaveIgnoresNonReminderJSON(t *testing.T) {
	repo := &recordingDLQRepo{}
	svc := NewDLQService(repo, zerolog.Nop())
	req := pushRequest(base64.StdEncoding.EncodeToString([]byte(`{"job_id":"j2"}`)), nil)
	req.DeliveryAttempt = 5

	require.NoError(t, svc.ProcessAndSave(context.Background(), req))
	require.Len(t, repo.stored, 1)
	assert.Nil(t, repo.stored[0].UserID)
	assert.Equal(t, `{"job_id":"j2"}`, repo.stored[0].Payload)
}
