package chi

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
)

// Operational routes stay reachable for probes and scrapers without a key.
var publicRoutes = []string{"/health", "/metrics"}

var (
	errNoCredentials = errors.New("missing authorization header")
	errNotBearer     = errors.New("authorization header must use Bearer scheme")
	errUnknownKey    = errors.New("invalid api key")
)

// APIKeyAuth requires "Authorization: Bearer <key>" with one of keys on every
// /v1 route. Empty entries are ignored; with no keys left auth is off.
func APIKeyAuth(keys []string) func(http.Handler) http.Handler {
	var accepted [][]byte
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			accepted = append(accepted, []byte(k))
		}
	}

	return func(next http.Handler) http.Handler {
		if len(accepted) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPublicRoute(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			if err := checkKey(r, accepted); err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="policyrag"`)
				writeError(w, http.StatusUnauthorized, CodeUnauthorized, err.Error())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func isPublicRoute(path string) bool {
	for _, p := range publicRoutes {
		if path == p {
			return true
		}
	}
	return false
}

func checkKey(r *http.Request, accepted [][]byte) error {
	header := r.Header.Get("Authorization")
	if header == "" {
		return errNoCredentials
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return errNotBearer
	}
	presented := []byte(strings.TrimSpace(token))
	// Compare against every key so timing does not reveal which one matched.
	match := 0
	for _, k := range accepted {
		match |= subtle.ConstantTimeCompare(presented, k)
	}
	if match != 1 {
		return errUnknownKey
	}
	return nil
}
