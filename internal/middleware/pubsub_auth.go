package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog"
	"google.golang.org/api/idtoken"
)

// TokenValidator checks a Google-signed ID token for an audience.
type TokenValidator func(ctx context.Context, token, audience string) (*idtoken.Payload, error)

// PushAuth describes who may push dead-lettered reminders to the gateway.
type PushAuth struct {
	// Emulator skips verification; the local emulator sends no token.
	Emulator bool
	// Audience is the push endpoint URL the subscription was configured with.
	Audience string
	// ServiceAccount is the email the push subscription signs as.
	ServiceAccount string
	Validate       TokenValidator
}

const pushSenderContextKey = contextKey("push_sender")

// PushSenderFromContext returns the verified service account of a push request.
// It is empty under the emulator.
func PushSenderFromContext(ctx context.Context) string {
	s, _ := ctx.Value(pushSenderContextKey).(string)
	return s
}

var (
	errPushMisconfigured = errors.New("push audience or service account not set")
	errPushNoToken       = errors.New("missing bearer token")
	errPushBadToken      = errors.New("invalid push token")
	errPushWrongSender   = errors.New("push token not issued to the expected service account")
)

func pushStatus(err error) int {
	switch {
	case errors.Is(err, errPushMisconfigured):
		return http.StatusInternalServerError
	case errors.Is(err, errPushWrongSender):
		return http.StatusForbidden
	default:
		return http.StatusUnauthorized
	}
}

// verify returns the service account email of a valid push request.
func (a PushAuth) verify(r *http.Request) (string, error) {
	if a.Audience == "" || a.ServiceAccount == "" {
		return "", errPushMisconfigured
	}
	tok, ok := BearerToken(r.Header.Get("Authorization"))
	if !ok {
		return "", errPushNoToken
	}
	validate := a.Validate
	if validate == nil {
		validate = idtoken.Validate
	}
	payload, err := validate(r.Context(), tok, a.Audience)
	if err != nil {
		return "", errors.Join(errPushBadToken, err)
	}
	email, _ := payload.Claims["email"].(string)
	if email == "" || email != a.ServiceAccount {
		return email, errPushWrongSender
	}
	return email, nil
}

// PubSubAuthMiddleware admits Pub/Sub push requests signed by the configured
// service account.
func PubSubAuthMiddleware(auth PushAuth, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if auth.Emulator {
				next.ServeHTTP(w, r)
				return
			}
			sender, err := auth.verify(r)
			if err != nil {
				logger.Warn().Err(err).Str("token_email", sender).Msg("Rejected Pub/Sub push")
				http.Error(w, http.StatusText(pushStatus(err)), pushStatus(err))
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), pushSenderContextKey, sender)))
		})
	}
}
