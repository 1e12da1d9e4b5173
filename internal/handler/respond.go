package handler

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/hopingminds/menrol-api/internal/service"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// writeServiceError maps a service error kind to its HTTP status. Internal
// errors are logged and masked; everything else carries its own message.
func writeServiceError(w http.ResponseWriter, log *logrus.Logger, err error) {
	kind := service.KindOf(err)
	status := statusForKind(kind)
	msg := err.Error()
	if kind == service.KindInternal {
		log.WithError(err).Error("request failed")
		msg = "internal server error"
	}
	writeJSON(w, status, errorResponse{Error: msg, Kind: kind})
}

func statusForKind(kind string) int {
	switch kind {
	case service.KindInvalid:
		return http.StatusBadRequest
	case service.KindForbidden:
		return http.StatusForbidden
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindConflict:
		return http.StatusConflict
	case service.KindPartialSync:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg, Kind: service.KindInvalid})
}
