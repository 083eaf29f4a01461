package middleware

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/hugh/go-tracker/internal/ratelimit"
)

// Per-action budgets for abuse-sensitive mutations. Keys are scoped per
// caller, so one user hammering invites does not starve another.
var (
	LimitInvite          = ratelimit.Limit{Max: 10, Window: time.Minute}
	LimitWorkspaceDelete = ratelimit.Limit{Max: 3, Window: 5 * time.Minute}
	LimitWorkspaceUpdate = ratelimit.Limit{Max: 20, Window: time.Minute}
)

// RateLimitAction guards a mutation with the given per-user budget. Must run
// after Auth; the authenticated user id is the actor.
func RateLimitAction(limiter *ratelimit.Limiter, action string, limit ratelimit.Limit) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := GetUserID(r.Context())

			result, err := limiter.Check(r.Context(), action, userID.String(), limit)
			if err != nil {
				// A broken limiter is a server fault, not a denial.
				http.Error(w, "Internal server error", http.StatusInternalServerError)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.UnixMilli(), 10))

			if !result.Allowed {
				w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter(time.Now())))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "Rate limit exceeded"})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
