package handler

import (
	"log"
	"net/http"

	"github.com/kiwari-pos/orderledger/internal/apperr"
)

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// writeError maps err to its status and kind. Server-side failures are logged
// with op; client errors are not.
func writeError(w http.ResponseWriter, op string, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		log.Printf("ERROR: %s: %v", op, err)
	}
	writeJSON(w, status, errorResponse{Error: apperr.Message(err), Kind: apperr.Kind(err)})
}
