package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/nuamhub/taxqual-backend/internal/domain"
)

type contextKey string

const brokerContextKey contextKey = "actingBroker"

// TokenAuth validates the static API token carried in the Authorization
// header. Requests without a valid token never reach a handler.
func TokenAuth(validToken string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get("Authorization")
			if token == "" {
				writeErrorMessage(w, http.StatusUnauthorized, "missing authorization header")
				return
			}
			if token != validToken {
				writeErrorMessage(w, http.StatusUnauthorized, "invalid token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// BrokerScope resolves the acting user (X-User-ID header) to exactly one
// broker and stores it in the request context. A user linked to no broker,
// or to an inactive one, is rejected for the whole request — this failure is
// never row-local.
func BrokerScope(brokers domain.BrokerRepository) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawID := r.Header.Get("X-User-ID")
			if rawID == "" {
				writeErrorMessage(w, http.StatusForbidden, domain.ErrUnknownBrokerScope.Error())
				return
			}
			userID, err := uuid.Parse(rawID)
			if err != nil {
				writeErrorMessage(w, http.StatusForbidden, "invalid X-User-ID header")
				return
			}

			broker, err := brokers.GetByUserID(r.Context(), userID)
			if err != nil {
				if errors.Is(err, domain.ErrUnknownBrokerScope) {
					writeErrorMessage(w, http.StatusForbidden, err.Error())
					return
				}
				writeErrorMessage(w, http.StatusInternalServerError, "failed to resolve broker scope")
				return
			}
			if !broker.Active {
				writeErrorMessage(w, http.StatusForbidden, domain.ErrUnknownBrokerScope.Error())
				return
			}

			ctx := context.WithValue(r.Context(), brokerContextKey, broker)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ActingBroker returns the broker the middleware attached to the context
func ActingBroker(ctx context.Context) (*domain.Broker, bool) {
	broker, ok := ctx.Value(brokerContextKey).(*domain.Broker)
	return broker, ok
}
