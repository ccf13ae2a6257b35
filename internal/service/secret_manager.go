package service

import (
	"context"
	"fmt"
	"strings"

	"admindash/internal/config"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
)

// SecretAccessor is the subset of the Secret Manager client used here.
type SecretAccessor interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
}

type SecretManagerService interface {
	GetSecret(ctx context.Context, name string) (string, error)
}

type secretManagerService struct {
	client    SecretAccessor
	projectID string
}

func NewSecretManagerService(ctx context.Context, cfg *config.Config) (SecretManagerService, *secretmanager.Client, error) {
	if cfg.GCPProjectID == "" {
		return nil, nil, fmt.Errorf("GCP Project ID is not set for the current environment")
	}
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create Secret Manager client: %w", err)
	}
	return &secretManagerService{client: client, projectID: cfg.GCPProjectID}, client, nil
}

// GetSecret reads the latest version of a secret. name may be a short secret ID or
// a full resource path.
func (s *secretManagerService) GetSecret(ctx context.Context, name string) (string, error) {
	resourceName := name
	if !strings.HasPrefix(name, "projects/") {
		resourceName = fmt.Sprintf("projects/%s/secrets/%s/versions/latest", s.projectID, name)
	}
	result, err := s.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: resourceName})
	if err != nil {
		return "", fmt.Errorf("failed to access secret version: %w", err)
	}
	return strings.TrimSpace(string(result.Payload.Data)), nil
}

// ResolveStripeKey prefers the configured secret over the plain env value.
func ResolveStripeKey(ctx context.Context, cfg *config.Config, secrets SecretManagerService) (string, error) {
	if cfg.StripeSecretName == "" {
		return cfg.StripeSecretKey, nil
	}
	if secrets == nil {
		return "", fmt.Errorf("stripe secret %q configured without a secret manager", cfg.StripeSecretName)
	}
	key, err := secrets.GetSecret(ctx, cfg.StripeSecretName)
	if err != nil {
		return "", fmt.Errorf("resolve stripe key: %w", err)
	}
	return key, nil
}
