package api

import (
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/corralhq/corral/internal/ratelimit"
)

// Guard is the inbound request gate: origin allowlist first, then the
// per-client rate quota. The origin check runs before the rate check so
// a rejected origin never burns quota.
type Guard struct {
	governor       *ratelimit.Governor
	browseProfile  ratelimit.Profile
	llmProfile     ratelimit.Profile
	allowedOrigins map[string]struct{}
}

// NewGuard builds a guard over the governor and origin allowlist.
func NewGuard(g *ratelimit.Governor, browse, llm ratelimit.Profile, origins []string) *Guard {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[strings.TrimRight(strings.ToLower(o), "/")] = struct{}{}
	}
	return &Guard{
		governor:       g,
		browseProfile:  browse,
		llmProfile:     llm,
		allowedOrigins: allowed,
	}
}

// Browse guards a handler with the lenient read quota.
func (g *Guard) Browse(next http.HandlerFunc) http.HandlerFunc {
	return g.wrap(next, g.browseProfile)
}

// LLM guards a handler with the strict provider quota.
func (g *Guard) LLM(next http.HandlerFunc) http.HandlerFunc {
	return g.wrap(next, g.llmProfile)
}

func (g *Guard) wrap(next http.HandlerFunc, profile ratelimit.Profile) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			if _, ok := g.allowedOrigins[strings.TrimRight(strings.ToLower(origin), "/")]; !ok {
				writeJSON(w, http.StatusForbidden, errorResponse{
					Error:   "forbidden",
					Message: "origin not allowed",
				})
				return
			}
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
		}

		d := g.governor.CheckProfile(clientKey(r), profile)
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(profile.MaxAttempts))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))

		if !d.Allowed {
			retryAfter := int(d.RetryAfter.Seconds() + 0.5)
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			writeJSON(w, http.StatusTooManyRequests, errorResponse{
				Error:      "rate_limit_exceeded",
				Message:    "quota exhausted for " + profile.Name + " endpoints, retry later",
				RetryAfter: retryAfter,
			})
			return
		}

		next.ServeHTTP(w, r)
	}
}

// clientKey identifies the caller for quota accounting: the first
// X-Forwarded-For hop when present, otherwise the connection address.
func clientKey(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if first, _, found := strings.Cut(fwd, ","); found || first != "" {
			return strings.TrimSpace(first)
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
