package main

import (
	"context"
	"fmt"
	"time"

	"admindash/internal/config"
	"admindash/internal/logger"

	"cloud.google.com/go/pubsub"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// For local development, 'host.docker.internal' lets the emulator reach the host machine.
const (
	reminderWorkerURLLocal = "http://host.docker.internal:8000/reminders"
	gatewayDLQURLLocal     = "http://host.docker.internal:8080/v1/dlq/reminders"
)

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, relying on system environment variables.")
	}

	logger := logger.New(logger.FromEnv("setup-pubsub-local"))
	logger.Info().Msg("Starting Pub/Sub setup for the local environment.")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Msgf("Failed to load config: %v", err)
	}
	if cfg.GCPProjectID == "" {
		logger.Fatal().Msg("GCP_PROJECT_ID is not set in the environment.")
	}
	if cfg.PubSubEmulatorHost == "" {
		logger.Fatal().Msg("PUBSUB_EMULATOR_HOST must be set for local environment.")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := pubsub.NewClient(ctx, cfg.GCPProjectID,
		option.WithEndpoint(cfg.PubSubEmulatorHost),
		option.WithoutAuthentication(),
	)
	if err != nil {
		logger.Fatal().Msgf("Failed to create Pub/Sub client: %v", err)
	}
	defer func() {
		if err := client.Close(); err != nil {
			logger.Error().Msgf("Failed to close pubsub client: %v", err)
		}
	}()

	resetLocalEmulator(ctx, client, logger)
	ensureTopology(ctx, client, logger, newTopology(cfg.PubSubReminderTopic, reminderWorkerURLLocal, gatewayDLQURLLocal))

	logger.Info().Msg("Pub/Sub setup for local environment complete.")
}

// resetLocalEmulator deletes every topic and subscription. Only ever point it at the
// emulator.
func resetLocalEmulator(ctx context.Context, client *pubsub.Client, logger zerolog.Logger) {
	logger.Info().Msg("--- Deleting all existing resources for a clean local setup ---")

	subs := client.Subscriptions(ctx)
	for {
		sub, err := subs.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			logger.Fatal().Msgf("Failed to list subscriptions: %v", err)
		}
		logger.Info().Msgf("Deleting subscription: %s", sub.ID())
		if err := sub.Delete(ctx); err != nil {
			logger.Warn().Msgf("Failed to delete subscription %s: %v", sub.ID(), err)
		}
	}

	topics := client.Topics(ctx)
	for {
		topic, err := topics.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			logger.Fatal().Msgf("Failed to list topics: %v", err)
		}
		logger.Info().Msgf("Deleting topic: %s", topic.ID())
		if err := topic.Delete(ctx); err != nil {
			logger.Warn().Msgf("Failed to delete topic %s: %v", topic.ID(), err)
		}
	}
}

func ensureTopology(ctx context.Context, client *pubsub.Client, logger zerolog.Logger, t topology) {
	logger.Info().Msgf("--- Ensuring resources for topic: %s ---", t.TopicID)

	dlqTopic := ensureTopic(ctx, client, logger, t.DLQTopicID, t.Retention)
	mainTopic := ensureTopic(ctx, client, logger, t.TopicID, t.Retention)

	ensureSubscription(ctx, client, logger, t.SubID, t.mainSubscription(mainTopic, dlqTopic))
	ensureSubscription(ctx, client, logger, t.DLQSubID, t.dlqSubscription(dlqTopic))
}

func ensureTopic(ctx context.Context, client *pubsub.Client, logger zerolog.Logger, topicID string, retention time.Duration) *pubsub.Topic {
	topic := client.Topic(topicID)
	exists, err := topic.Exists(ctx)
	if err != nil {
		logger.Fatal().Msgf("Failed to check if topic %s exists: %v", topicID, err)
	}
	if exists {
		logger.Info().Msgf("Topic %s already exists", topicID)
		return topic
	}

	logger.Info().Msgf("Creating topic: %s with %v retention", topicID, retention)
	created, err := client.CreateTopicWithConfig(ctx, topicID, &pubsub.TopicConfig{RetentionDuration: retention})
	if err != nil {
		logger.Fatal().Msgf("Failed to create topic %s: %v", topicID, err)
	}
	return created
}

func ensureSubscription(ctx context.Context, client *pubsub.Client, logger zerolog.Logger, subID string, desired pubsub.SubscriptionConfig) {
	sub := client.Subscription(subID)
	exists, err := sub.Exists(ctx)
	if err != nil {
		logger.Fatal().Msgf("Failed to check if subscription %s exists: %v", subID, err)
	}

	if !exists {
		logger.Info().Msgf("Creating subscription %s with endpoint %s", subID, desired.PushConfig.Endpoint)
		if _, err := client.CreateSubscription(ctx, subID, desired); err != nil {
			logger.Fatal().Msgf("Failed to create subscription '%s': %v", subID, err)
		}
		return
	}

	existing, err := sub.Config(ctx)
	if err != nil {
		logger.Fatal().Msgf("Failed to get config for subscription '%s': %v", subID, err)
	}
	update, ok := subscriptionUpdate(existing, desired)
	if !ok {
		logger.Info().Msgf("Subscription %s is up to date", subID)
		return
	}
	logger.Info().Msgf("Updating subscription '%s'", subID)
	if _, err := sub.Update(ctx, update); err != nil {
		logger.Fatal().Msgf("Failed to update subscription '%s': %v", subID, err)
	}
}
