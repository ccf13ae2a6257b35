package main

import (
	"time"

	"cloud.google.com/go/pubsub"
)

const maxDeliveryAttempts = 5

// topology is the reminder topic, its dead-letter topic and their push subscriptions.
type topology struct {
	TopicID        string
	DLQTopicID     string
	SubID          string
	DLQSubID       string
	WorkerEndpoint string
	DLQEndpoint    string
	Retention      time.Duration
}

func newTopology(topicID, workerURL, dlqURL string) topology {
	return topology{
		TopicID:        topicID,
		DLQTopicID:     topicID + "-dlq",
		SubID:          topicID + "-sub",
		DLQSubID:       topicID + "-dlq-sub",
		WorkerEndpoint: workerURL,
		DLQEndpoint:    dlqURL,
		Retention:      7 * 24 * time.Hour,
	}
}

var pushRetry = &pubsub.RetryPolicy{
	MinimumBackoff: 10 * time.Second,
	MaximumBackoff: 600 * time.Second,
}

func (t topology) mainSubscription(topic, dlq *pubsub.Topic) pubsub.SubscriptionConfig {
	return pubsub.SubscriptionConfig{
		Topic:            topic,
		PushConfig:       pubsub.PushConfig{Endpoint: t.WorkerEndpoint},
		AckDeadline:      60 * time.Second,
		ExpirationPolicy: 31 * 24 * time.Hour,
		RetryPolicy:      pushRetry,
		DeadLetterPolicy: &pubsub.DeadLetterPolicy{
			DeadLetterTopic:     dlq.String(),
			MaxDeliveryAttempts: maxDeliveryAttempts,
		},
	}
}

func (t topology) dlqSubscription(dlq *pubsub.Topic) pubsub.SubscriptionConfig {
	return pubsub.SubscriptionConfig{
		Topic:            dlq,
		PushConfig:       pubsub.PushConfig{Endpoint: t.DLQEndpoint},
		AckDeadline:      60 * time.Second,
		ExpirationPolicy: 31 * 24 * time.Hour,
		RetryPolicy:      pushRetry,
	}
}

// subscriptionUpdate returns the fields to change so existing matches desired, and
// whether anything differs. Push endpoint, ack deadline and retry policy are compared.
func subscriptionUpdate(existing, desired pubsub.SubscriptionConfig) (pubsub.SubscriptionConfigToUpdate, bool) {
	update := pubsub.SubscriptionConfigToUpdate{
		PushConfig:  &existing.PushConfig,
		AckDeadline: existing.AckDeadline,
		RetryPolicy: desired.RetryPolicy,
	}
	changed := false

	if existing.PushConfig.Endpoint != desired.PushConfig.Endpoint {
		update.PushConfig = &desired.PushConfig
		changed = true
	}
	if existing.AckDeadline != desired.AckDeadline {
		update.AckDeadline = desired.AckDeadline
		changed = true
	}
	if !sameRetry(existing.RetryPolicy, desired.RetryPolicy) {
		changed = true
	}
	return update, changed
}

func sameRetry(a, b *pubsub.RetryPolicy) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.MinimumBackoff == b.MinimumBackoff && a.MaximumBackoff == b.MaximumBackoff
}
