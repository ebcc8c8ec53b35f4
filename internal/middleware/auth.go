package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"prizeledger/internal/authz"
	"prizeledger/internal/domain"
	"prizeledger/pkg/errors"
	"prizeledger/pkg/logger"
)

// ContextKey represents keys used in request context
type ContextKey string

const (
	// CallerContextKey is the key for the authenticated caller address in context
	CallerContextKey ContextKey = "caller"
	// RequestIDContextKey is the key for request ID in context
	RequestIDContextKey ContextKey = "request_id"
)

// Auth validates the bearer token and puts the caller address into the
// request context. Tokens are HS256 JWTs whose sub claim carries the
// caller's account address.
func Auth(secret string, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeErrorResponse(w, errors.New(errors.KindAuthentication, "Authorization header is required"), log)
				return
			}

			if !strings.HasPrefix(authHeader, "Bearer ") {
				writeErrorResponse(w, errors.New(errors.KindAuthentication, "Invalid authorization header format"), log)
				return
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == "" {
				writeErrorResponse(w, errors.New(errors.KindAuthentication, "Token is required"), log)
				return
			}

			caller, err := parseCaller(tokenString, secret)
			if err != nil {
				log.WithError(err).Warn("Token validation failed")
				writeErrorResponse(w, errors.New(errors.KindAuthentication, "Invalid or expired token"), log)
				return
			}

			ctx := context.WithValue(r.Context(), CallerContextKey, caller)
			r = r.WithContext(ctx)

			log.WithField("caller", caller).Debug("Caller authenticated successfully")

			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole rejects requests whose authenticated caller does not hold
// the given role. Must run after Auth.
func RequireRole(auth authz.Authorizer, role domain.Role, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller, ok := CallerFromContext(r.Context())
			if !ok {
				writeErrorResponse(w, errors.New(errors.KindAuthentication, "Caller is not authenticated"), log)
				return
			}

			if !auth.HasRole(role, caller) {
				log.WithFields(map[string]interface{}{
					"caller": caller,
					"role":   string(role),
				}).Warn("Caller lacks required role")
				writeErrorResponse(w, errors.New(errors.KindUnauthorized, "Caller does not hold the required role"), log)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// CallerFromContext extracts the authenticated caller address.
func CallerFromContext(ctx context.Context) (string, bool) {
	caller, ok := ctx.Value(CallerContextKey).(string)
	return caller, ok && caller != ""
}

// RequestID creates a middleware that adds a unique request ID to each request
func RequestID(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := generateRequestID()

			ctx := context.WithValue(r.Context(), RequestIDContextKey, requestID)
			r = r.WithContext(ctx)

			w.Header().Set("X-Request-ID", requestID)

			next.ServeHTTP(w, r)
		})
	}
}

func parseCaller(tokenString, secret string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", fmt.Errorf("token is not valid")
	}

	sub, err := token.Claims.GetSubject()
	if err != nil {
		return "", fmt.Errorf("failed to read sub claim: %w", err)
	}
	if sub == "" {
		return "", fmt.Errorf("sub claim is empty")
	}
	return strings.ToLower(sub), nil
}

// generateRequestID generates a simple request ID
func generateRequestID() string {
	return fmt.Sprintf("%d-%d", time.Now().Unix(), time.Now().Nanosecond())
}

// writeErrorResponse writes an error response to the client
func writeErrorResponse(w http.ResponseWriter, appErr *errors.AppError, log *logger.Logger) {
	log.WithError(appErr).Warn("Request rejected")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.StatusCode())

	response := &errors.ErrorResponse{}
	response.Error.Kind = appErr.Kind
	response.Error.Message = appErr.Message
	response.Error.Details = appErr.Details
	response.Error.Timestamp = time.Now().UTC().Format(time.RFC3339)

	_ = json.NewEncoder(w).Encode(response)
}
