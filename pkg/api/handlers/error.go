package handlers

import (
	"net/http"

	"github.com/ggnet/ggnetd/pkg/ggnetrr"
)

// writeError maps a ggnetrr.Kind to its HTTP status class and writes an
// RFC 7807 problem response. Errors not produced by ggnetrr.New are treated
// as Internal, matching ggnetrr.KindOf's own default.
func writeError(w http.ResponseWriter, err error) {
	detail := err.Error()
	switch ggnetrr.KindOf(err) {
	case ggnetrr.Validation:
		BadRequest(w, detail)
	case ggnetrr.Conflict:
		Conflict(w, detail)
	case ggnetrr.NotFound:
		NotFound(w, detail)
	case ggnetrr.Timeout:
		WriteProblem(w, http.StatusGatewayTimeout, "Gateway Timeout", detail)
	case ggnetrr.ExternalToolFailure:
		WriteProblem(w, http.StatusBadGateway, "Bad Gateway", detail)
	default:
		InternalServerError(w, detail)
	}
}
