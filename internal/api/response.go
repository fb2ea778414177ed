package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/erazemk/najdeno/internal/handoff"
	"github.com/erazemk/najdeno/internal/lifecycle"
	"github.com/erazemk/najdeno/internal/moderation"
	"github.com/erazemk/najdeno/internal/service"
	"github.com/erazemk/najdeno/internal/store"
)

// jsonResponse writes a JSON response with the given status code.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("error encoding response", "error", err)
		}
	}
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

// decodeJSON decodes a JSON request body into the given target.
func decodeJSON(r *http.Request, target any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(target)
}

// serviceError maps a service error to a response. Rule violations are
// shown to the user as is; anything else is logged and hidden behind a
// generic message.
func serviceError(w http.ResponseWriter, r *http.Request, err error) {
	var rej *moderation.Rejection
	if errors.As(err, &rej) {
		jsonResponse(w, http.StatusUnprocessableEntity, map[string]string{
			"error": rej.Error(),
			"field": rej.Field,
		})
		return
	}

	switch {
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, lifecycle.ErrMissingAnswer),
		errors.Is(err, lifecycle.ErrMissingProof):
		jsonError(w, http.StatusBadRequest, err.Error())

	case errors.Is(err, lifecycle.ErrNotOwner),
		errors.Is(err, lifecycle.ErrNotClaimant),
		errors.Is(err, lifecycle.ErrNotParty),
		errors.Is(err, lifecycle.ErrSelfClaim),
		errors.Is(err, lifecycle.ErrOwnReport),
		errors.Is(err, lifecycle.ErrHolderMismatch),
		errors.Is(err, service.ErrChatUnavailable):
		jsonError(w, http.StatusForbidden, err.Error())

	case errors.Is(err, service.ErrNotFound),
		errors.Is(err, service.ErrAlertNotFound),
		errors.Is(err, service.ErrNotificationNotFound),
		errors.Is(err, store.ErrNotFound):
		jsonError(w, http.StatusNotFound, err.Error())

	case errors.Is(err, service.ErrNoLongerAvailable):
		jsonError(w, http.StatusConflict, service.ErrNoLongerAvailable.Error())
	case errors.Is(err, service.ErrConflict),
		errors.Is(err, lifecycle.ErrAlreadyReported),
		errors.Is(err, lifecycle.ErrWrongState):
		jsonError(w, http.StatusConflict, err.Error())

	case errors.Is(err, handoff.ErrExpired):
		jsonError(w, http.StatusGone, "QR Code Expired")
	case errors.Is(err, handoff.ErrUnrecognized):
		jsonError(w, http.StatusUnprocessableEntity, "Unrecognized Format")
	case errors.Is(err, handoff.ErrInvalid):
		jsonError(w, http.StatusUnprocessableEntity, "Invalid Code")

	default:
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		jsonError(w, http.StatusInternalServerError, "internal error")
	}
}
