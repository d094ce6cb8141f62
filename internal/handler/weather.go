package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/hearth/internal/store"
)

type WeatherHandler struct {
	households *store.HouseholdStore
	weather    WeatherSource
	logger     *slog.Logger
}

func NewWeatherHandler(hs *store.HouseholdStore, ws WeatherSource, logger *slog.Logger) *WeatherHandler {
	return &WeatherHandler{households: hs, weather: ws, logger: logger.With("component", "weather")}
}

// Get returns current conditions at the household's location.
func (h *WeatherHandler) Get(w http.ResponseWriter, r *http.Request) {
	hh, err := h.households.GetByID(r.Context(), identity(r).HouseholdID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if hh == nil || strings.TrimSpace(hh.Location) == "" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "No location configured"})
		return
	}
	data, err := h.weather.Current(r.Context(), hh.Location)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, data)
}

// Health reports liveness.
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
