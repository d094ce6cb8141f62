// Package handler implements the JSON API. Handlers run behind the session
// or kiosk middleware and read the caller from the request context.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/dukerupert/hearth/internal/auth"
	"github.com/dukerupert/hearth/internal/kiosk"
	"github.com/dukerupert/hearth/internal/validate"
	"github.com/dukerupert/hearth/internal/vault"
	"github.com/dukerupert/hearth/internal/weather"
	ws "github.com/dukerupert/hearth/internal/websocket"
)

var errNotFound = errors.New("not found")

// notFoundError names the missing resource in its message.
type notFoundError string

func (e notFoundError) Error() string        { return string(e) + " not found" }
func (e notFoundError) Is(target error) bool { return target == errNotFound }

func notFound(what string) error { return notFoundError(what) }

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError translates err into a status code and JSON body. Unknown errors
// are logged and answered with 500.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var verr *validate.Error
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": verr.Message})
	case errors.Is(err, kiosk.ErrTokenRequired), errors.Is(err, kiosk.ErrInvalidToken):
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": err.Error()})
	case errors.Is(err, auth.ErrUnauthenticated):
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	case errors.Is(err, auth.ErrForbidden):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "Forbidden"})
	case errors.Is(err, auth.ErrNoHousehold):
		writeJSON(w, http.StatusConflict, map[string]string{
			"error":    "Household setup required",
			"redirect": "/onboarding",
		})
	case errors.Is(err, kiosk.ErrNoMembers):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, vault.ErrBlobNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Document not found"})
	case errors.Is(err, errNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, weather.ErrUnavailable):
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "Weather unavailable"})
	default:
		logger.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}
}

func parseIDParam(r *http.Request) (int64, error) {
	return parsePathID(r, "id")
}

func parsePathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, validate.Errorf("invalid %s", name)
	}
	return id, nil
}

// parseTime accepts RFC 3339 or a bare YYYY-MM-DD date, which is read as
// midnight in loc.
func parseTime(field, value string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("2006-01-02", value, loc); err == nil {
		return t, nil
	}
	return time.Time{}, validate.Errorf("%s must be an RFC 3339 timestamp or YYYY-MM-DD date", field)
}

// set copies *src into dst when the field was present in an update body.
func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

// identity returns the session caller. Routes using it sit behind RequireSession.
func identity(r *http.Request) auth.Identity {
	id, _ := auth.FromContext(r.Context())
	return id
}

func broadcast(hub *ws.Hub, householdID int64, msg ws.Message) {
	if hub != nil {
		hub.Broadcast(householdID, msg)
	}
}
