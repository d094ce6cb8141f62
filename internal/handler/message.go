package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/dukerupert/hearth/internal/auth"
	"github.com/dukerupert/hearth/internal/model"
	"github.com/dukerupert/hearth/internal/store"
	"github.com/dukerupert/hearth/internal/validate"
	"github.com/dukerupert/hearth/internal/websocket"
)

// Announcer delivers pinned announcements to members' devices.
type Announcer interface {
	Announce(ctx context.Context, msg *model.Message) int
}

type MessageHandler struct {
	messages  *store.MessageStore
	announcer Announcer
	hub       *websocket.Hub
	logger    *slog.Logger
}

// NewMessageHandler creates a MessageHandler. announcer may be nil.
func NewMessageHandler(ms *store.MessageStore, announcer Announcer, hub *websocket.Hub, logger *slog.Logger) *MessageHandler {
	return &MessageHandler{
		messages:  ms,
		announcer: announcer,
		hub:       hub,
		logger:    logger.With("component", "message"),
	}
}

type messageRequest struct {
	Type    string `json:"type" validate:"omitempty,oneof=ANNOUNCEMENT NOTE DISCUSSION_TOPIC"`
	Title   string `json:"title" validate:"max=200"`
	Content string `json:"content" validate:"notblank,max=5000"`
	Pinned  bool   `json:"pinned"`
}

type messageUpdateRequest struct {
	Type    *string `json:"type" validate:"omitnil,oneof=ANNOUNCEMENT NOTE DISCUSSION_TOPIC"`
	Title   *string `json:"title" validate:"omitnil,max=200"`
	Content *string `json:"content" validate:"omitnil,notblank,max=5000"`
	Pinned  *bool   `json:"pinned"`
}

// announce pushes in the background; delivery outlives the request.
func (h *MessageHandler) announce(ctx context.Context, msg *model.Message) {
	if h.announcer == nil || msg.Type != model.MessageAnnouncement || !msg.Pinned {
		return
	}
	ctx = context.WithoutCancel(ctx)
	go func() {
		n := h.announcer.Announce(ctx, msg)
		h.logger.Debug("announcement pushed", "message_id", msg.ID, "sent", n)
	}()
}

// Create stamps the session member as the author.
func (h *MessageHandler) Create(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	var req messageRequest
	if err := validate.Decode(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if req.Type == "" {
		req.Type = model.MessageNote
	}

	msg, err := h.messages.Create(r.Context(), &model.Message{
		HouseholdID: id.HouseholdID,
		AuthorID:    id.MemberID,
		Type:        req.Type,
		Title:       strings.TrimSpace(req.Title),
		Content:     strings.TrimSpace(req.Content),
		Pinned:      req.Pinned,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	broadcast(h.hub, id.HouseholdID, websocket.NewMessage("message", "created", msg.ID, nil))
	h.announce(r.Context(), msg)
	writeJSON(w, http.StatusCreated, msg)
}

// List returns pinned messages first. It supports type, pinned=true and limit.
func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.MessageFilter{Type: q.Get("type"), PinnedOnly: q.Get("pinned") == "true"}
	if f.Type != "" {
		if err := validate.Var("type", f.Type, "oneof=ANNOUNCEMENT NOTE DISCUSSION_TOPIC"); err != nil {
			writeError(w, h.logger, err)
			return
		}
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 200 {
			writeError(w, h.logger, validate.Errorf("limit must be between 1 and 200"))
			return
		}
		f.Limit = n
	}

	messages, err := h.messages.List(r.Context(), identity(r).HouseholdID, f)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

// editable loads the message and checks the caller is its author or may
// moderate.
func (h *MessageHandler) editable(r *http.Request) (*model.Message, error) {
	id := identity(r)
	msgID, err := parseIDParam(r)
	if err != nil {
		return nil, err
	}
	msg, err := h.messages.Get(r.Context(), id.HouseholdID, msgID)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, notFound("Message")
	}
	if msg.AuthorID != id.MemberID && !id.Can(auth.CapModerate) {
		return nil, auth.ErrForbidden
	}
	return msg, nil
}

func (h *MessageHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	existing, err := h.editable(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req messageUpdateRequest
	if err := validate.Decode(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	wasPinned := existing.Pinned && existing.Type == model.MessageAnnouncement
	if req.Type != nil {
		existing.Type = *req.Type
	}
	if req.Title != nil {
		existing.Title = strings.TrimSpace(*req.Title)
	}
	if req.Content != nil {
		existing.Content = strings.TrimSpace(*req.Content)
	}
	if req.Pinned != nil {
		existing.Pinned = *req.Pinned
	}

	msg, err := h.messages.Update(r.Context(), existing)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	broadcast(h.hub, id.HouseholdID, websocket.NewMessage("message", "updated", msg.ID, nil))
	if !wasPinned {
		h.announce(r.Context(), msg)
	}
	writeJSON(w, http.StatusOK, msg)
}

func (h *MessageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	existing, err := h.editable(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.messages.Delete(r.Context(), id.HouseholdID, existing.ID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	broadcast(h.hub, id.HouseholdID, websocket.NewMessage("message", "deleted", existing.ID, nil))
	w.WriteHeader(http.StatusNoContent)
}
