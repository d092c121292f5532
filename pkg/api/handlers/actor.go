package handlers

import (
	"net/http"

	ggnetauth "github.com/ggnet/ggnetd/pkg/api/auth"
)

// anonymousActor is attributed to requests carrying no bearer token, since
// this package implements no login/enforcement flow (spec Non-goals):
// callers are trusted to sit behind whatever authenticates them upstream.
const anonymousActor = "anonymous"

// actorFromRequest extracts the acting username from a bearer token for
// audit attribution, falling back to anonymousActor if the header is
// absent or does not parse. It never rejects a request on its own account.
func actorFromRequest(r *http.Request, jwtSecret []byte) string {
	if len(jwtSecret) == 0 {
		return anonymousActor
	}
	claims, err := ggnetauth.ParseBearerToken(r, jwtSecret)
	if err != nil || claims.Username == "" {
		return anonymousActor
	}
	return claims.Username
}
