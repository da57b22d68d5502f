package httpx

import (
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/craftwell/turnaround/internal/domain/model"
)

// Logging returns a middleware that logs HTTP requests and responses.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			const defaultHTTPStatus = 200
			ww := &respWriter{ResponseWriter: w, status: defaultHTTPStatus}
			next.ServeHTTP(ww, r)
			logger.Info("http",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.status),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

type respWriter struct {
	http.ResponseWriter
	status int
}

func (w *respWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Recover returns a middleware that recovers from panics and logs them.
func Recover(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("panic",
						slog.Any("error", err),
						slog.String("path", r.URL.Path),
						slog.String("method", r.Method),
						slog.String("stack", string(debug.Stack())))
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// schedulerSecretHeader carries the shared secret presented by the external
// scheduler when it fires the retrain and snapshot endpoints.
const schedulerSecretHeader = "X-Scheduler-Secret"

// Authenticator validates scheduler credentials. A seam rather than a bare
// string comparison so tests can force outcomes and a future deployment can
// swap in a token service without touching the handlers.
type Authenticator interface {
	Authenticate(presented string) bool
}

// SecretAuthenticator authenticates against a single shared secret using a
// constant-time comparison.
type SecretAuthenticator struct {
	Secret string
}

// Authenticate reports whether the presented credential matches the secret.
// An empty configured secret matches nothing.
func (a SecretAuthenticator) Authenticate(presented string) bool {
	if a.Secret == "" || presented == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a.Secret), []byte(presented)) == 1
}

// RequireSchedulerSecret returns a middleware that rejects requests whose
// scheduler secret header fails authentication.
func RequireSchedulerSecret(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !auth.Authenticate(r.Header.Get(schedulerSecretHeader)) {
				WriteError(w, ErrorParams{
					Code:    http.StatusUnauthorized,
					ErrCode: "unauthorized",
					Err:     fmt.Errorf("%w: scheduler secret missing or invalid", model.ErrUnauthorized),
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
