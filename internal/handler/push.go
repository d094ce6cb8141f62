package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/hearth/internal/model"
	"github.com/dukerupert/hearth/internal/push"
	"github.com/dukerupert/hearth/internal/store"
	"github.com/dukerupert/hearth/internal/validate"
)

type PushHandler struct {
	subs    *store.PushStore
	service *push.Service
	logger  *slog.Logger
}

// NewPushHandler creates a PushHandler. svc may be nil when VAPID keys are
// not configured.
func NewPushHandler(ps *store.PushStore, svc *push.Service, logger *slog.Logger) *PushHandler {
	return &PushHandler{subs: ps, service: svc, logger: logger.With("component", "push")}
}

// subscribeRequest mirrors the browser's PushSubscription.toJSON().
type subscribeRequest struct {
	Endpoint string `json:"endpoint" validate:"required,url,max=2000"`
	Keys     struct {
		P256dh string `json:"p256dh" validate:"required,max=200"`
		Auth   string `json:"auth" validate:"required,max=100"`
	} `json:"keys"`
}

// Subscribe registers the caller's device.
func (h *PushHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	var req subscribeRequest
	if err := validate.Decode(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	sub, err := h.subs.Upsert(r.Context(), &model.PushSubscription{
		HouseholdID: id.HouseholdID,
		MemberID:    id.MemberID,
		Endpoint:    req.Endpoint,
		P256dh:      req.Keys.P256dh,
		Auth:        req.Keys.Auth,
		UserAgent:   r.UserAgent(),
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

// ListSubscriptions returns the caller's own devices.
func (h *PushHandler) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	subs, err := h.subs.ListForMember(r.Context(), id.HouseholdID, id.MemberID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, subs)
}

// Unsubscribe deletes one of the caller's own subscriptions.
func (h *PushHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	subID, err := parseIDParam(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	ok, err := h.subs.Delete(r.Context(), id.HouseholdID, id.MemberID, subID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if !ok {
		writeError(w, h.logger, notFound("Subscription"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// VAPIDKey returns the application server key browsers subscribe with.
func (h *PushHandler) VAPIDKey(w http.ResponseWriter, r *http.Request) {
	if h.service == nil || !h.service.Configured() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "Push notifications are not configured"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"public_key": h.service.VAPIDPublicKey()})
}
