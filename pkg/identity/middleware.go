package identity

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mcutler/loom/pkg/handlers"
)

// Middleware returns HTTP middleware that resolves the request subject.
//
// With identity enabled, requests must carry a valid bearer token; failures
// produce 401. With identity disabled, the development subject is applied.
func Middleware(sys System, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !sys.Enabled() {
				next.ServeHTTP(w, r.WithContext(WithSubject(r.Context(), sys.DevSubject())))
				return
			}

			raw, ok := bearerToken(r)
			if !ok {
				handlers.RespondError(w, logger, http.StatusUnauthorized,
					fmt.Errorf("missing bearer token"))
				return
			}

			subject, err := sys.Verify(r.Context(), raw)
			if err != nil {
				handlers.RespondError(w, logger, http.StatusUnauthorized, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithSubject(r.Context(), subject)))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return "", false
	}
	return token, true
}
