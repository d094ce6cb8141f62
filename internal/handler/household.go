package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/hearth/internal/auth"
	"github.com/dukerupert/hearth/internal/email"
	"github.com/dukerupert/hearth/internal/model"
	"github.com/dukerupert/hearth/internal/store"
	"github.com/dukerupert/hearth/internal/validate"
	"github.com/dukerupert/hearth/internal/websocket"
)

// InvitationMailer delivers invitation emails.
type InvitationMailer interface {
	Configured() bool
	SendInvitation(ctx context.Context, inv email.Invitation) error
}

type HouseholdHandler struct {
	households  *store.HouseholdStore
	members     *store.MemberStore
	invitations *store.InvitationStore
	mailer      InvitationMailer
	hub         *websocket.Hub
	logger      *slog.Logger
	now         func() time.Time
}

func NewHouseholdHandler(hs *store.HouseholdStore, ms *store.MemberStore, is *store.InvitationStore, mailer InvitationMailer, hub *websocket.Hub, logger *slog.Logger) *HouseholdHandler {
	return &HouseholdHandler{
		households:  hs,
		members:     ms,
		invitations: is,
		mailer:      mailer,
		hub:         hub,
		logger:      logger.With("component", "household"),
		now:         time.Now,
	}
}

type householdRequest struct {
	Name     string `json:"name" validate:"notblank,max=100"`
	Location string `json:"location" validate:"max=200"`
	Timezone string `json:"timezone" validate:"max=64"`
}

func (req *householdRequest) normalize() error {
	req.Name = strings.TrimSpace(req.Name)
	req.Location = strings.TrimSpace(req.Location)
	req.Timezone = strings.TrimSpace(req.Timezone)
	if req.Timezone != "" {
		if _, err := time.LoadLocation(req.Timezone); err != nil {
			return validate.Errorf("timezone must be an IANA zone name")
		}
	}
	return nil
}

func (h *HouseholdHandler) withMembers(ctx context.Context, hh *model.Household) (*model.HouseholdWithMembers, error) {
	members, err := h.members.List(ctx, hh.ID)
	if err != nil {
		return nil, err
	}
	return &model.HouseholdWithMembers{Household: *hh, Members: members}, nil
}

func (h *HouseholdHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	hh, err := h.households.GetByID(r.Context(), id.HouseholdID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if hh == nil {
		writeError(w, h.logger, notFound("Household"))
		return
	}
	out, err := h.withMembers(r.Context(), hh)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// Create onboards the caller: it creates a household with the caller as its
// first ADMIN.
func (h *HouseholdHandler) Create(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	if id.HasHousehold() {
		writeError(w, h.logger, validate.Errorf("You already belong to a household"))
		return
	}

	var req householdRequest
	if err := validate.Decode(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := req.normalize(); err != nil {
		writeError(w, h.logger, err)
		return
	}

	hh, member, err := h.households.Onboard(r.Context(), id.Principal, req.Name, req.Location, req.Timezone)
	if errors.Is(err, store.ErrAlreadyMember) {
		writeError(w, h.logger, validate.Errorf("You already belong to a household"))
		return
	}
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.logger.Info("household created", "household_id", hh.ID, "member_id", member.ID)

	writeJSON(w, http.StatusCreated, model.HouseholdWithMembers{Household: *hh, Members: []model.Member{*member}})
}

type householdUpdateRequest struct {
	Name     *string `json:"name" validate:"omitnil,notblank,max=100"`
	Location *string `json:"location" validate:"omitnil,max=200"`
	Timezone *string `json:"timezone" validate:"omitnil,max=64"`
}

// Update changes the settings present in the body. An empty location clears it.
func (h *HouseholdHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	var upd householdUpdateRequest
	if err := validate.Decode(r, &upd); err != nil {
		writeError(w, h.logger, err)
		return
	}

	existing, err := h.households.GetByID(r.Context(), id.HouseholdID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if existing == nil {
		writeError(w, h.logger, notFound("Household"))
		return
	}
	req := householdRequest{Name: existing.Name, Location: existing.Location}
	if upd.Name != nil {
		req.Name = *upd.Name
	}
	if upd.Location != nil {
		req.Location = *upd.Location
	}
	if upd.Timezone != nil {
		req.Timezone = *upd.Timezone
	}
	if err := req.normalize(); err != nil {
		writeError(w, h.logger, err)
		return
	}
	existing.Name = req.Name
	existing.Location = req.Location
	if req.Timezone != "" {
		existing.Timezone = req.Timezone
	}

	hh, err := h.households.Update(r.Context(), existing)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	broadcast(h.hub, id.HouseholdID, websocket.NewMessage("household", "updated", hh.ID, nil))
	writeJSON(w, http.StatusOK, hh)
}

type memberUpdateRequest struct {
	Name  *string    `json:"name" validate:"omitnil,notblank,max=100"`
	Color *string    `json:"color" validate:"omitnil,hexcolor6"`
	Role  *auth.Role `json:"role" validate:"omitnil,oneof=ADMIN MEMBER CHILD"`
}

// UpdateMember changes a member's role, color or display name. The last ADMIN
// cannot be demoted.
func (h *HouseholdHandler) UpdateMember(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	memberID, err := parseIDParam(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	existing, err := h.members.Get(r.Context(), id.HouseholdID, memberID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if existing == nil {
		writeError(w, h.logger, notFound("Member"))
		return
	}

	var req memberUpdateRequest
	if err := validate.Decode(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	if req.Role != nil && existing.Role == auth.RoleAdmin && *req.Role != auth.RoleAdmin {
		admins, err := h.members.CountAdmins(r.Context(), id.HouseholdID)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		if admins <= 1 {
			writeError(w, h.logger, validate.Errorf("Household must keep at least one admin"))
			return
		}
	}
	if req.Name != nil {
		existing.Name = strings.TrimSpace(*req.Name)
	}
	if req.Color != nil {
		existing.Color = *req.Color
	}
	if req.Role != nil {
		existing.Role = *req.Role
	}

	m, err := h.members.Update(r.Context(), id.HouseholdID, existing)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.logger.Info("member updated", "household_id", id.HouseholdID, "member_id", m.ID, "role", m.Role)
	broadcast(h.hub, id.HouseholdID, websocket.NewMessage("member", "updated", m.ID, nil))
	writeJSON(w, http.StatusOK, m)
}

func (h *HouseholdHandler) DeleteMember(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	memberID, err := parseIDParam(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if memberID == id.MemberID {
		writeError(w, h.logger, validate.Errorf("You cannot remove yourself"))
		return
	}

	existing, err := h.members.Get(r.Context(), id.HouseholdID, memberID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if existing == nil {
		writeError(w, h.logger, notFound("Member"))
		return
	}

	if err := h.members.Delete(r.Context(), id.HouseholdID, memberID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.logger.Info("member removed", "household_id", id.HouseholdID, "member_id", memberID, "by", id.MemberID)
	broadcast(h.hub, id.HouseholdID, websocket.NewMessage("member", "deleted", memberID, nil))
	w.WriteHeader(http.StatusNoContent)
}

func (h *HouseholdHandler) ListInvitations(w http.ResponseWriter, r *http.Request) {
	invs, err := h.invitations.List(r.Context(), identity(r).HouseholdID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, invs)
}

type invitationRequest struct {
	Email string    `json:"email" validate:"required,email,max=254"`
	Role  auth.Role `json:"role" validate:"omitempty,oneof=MEMBER CHILD"`
}

// CreateInvitation records a pending invitation and emails the invitee. A
// failed email is logged; the invitation still stands.
func (h *HouseholdHandler) CreateInvitation(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	var req invitationRequest
	if err := validate.Decode(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if req.Role == "" {
		req.Role = auth.RoleMember
	}
	addr := strings.ToLower(strings.TrimSpace(req.Email))

	existing, err := h.members.GetByEmail(r.Context(), id.HouseholdID, addr)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if existing != nil {
		writeError(w, h.logger, validate.Errorf("This person is already a member"))
		return
	}

	inv, err := h.invitations.Create(r.Context(), id.HouseholdID, addr, req.Role, id.MemberID, h.now())
	if errors.Is(err, store.ErrPendingInvitation) {
		writeError(w, h.logger, validate.Errorf("An invitation is already pending for this email"))
		return
	}
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.logger.Info("invitation created", "household_id", id.HouseholdID, "invitation_id", inv.ID, "role", inv.Role)

	if h.mailer != nil && h.mailer.Configured() {
		hh, err := h.households.GetByID(r.Context(), id.HouseholdID)
		if err == nil && hh != nil {
			err = h.mailer.SendInvitation(r.Context(), email.Invitation{
				To:            inv.Email,
				HouseholdName: hh.Name,
				InviterName:   id.DisplayName,
				Role:          string(inv.Role),
				ExpiresAt:     inv.ExpiresAt,
			})
		}
		if err != nil {
			h.logger.Warn("invitation email failed", "invitation_id", inv.ID, "error", err)
		}
	}

	writeJSON(w, http.StatusCreated, inv)
}

func (h *HouseholdHandler) DeleteInvitation(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	invID, err := parseIDParam(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	existing, err := h.invitations.Get(r.Context(), id.HouseholdID, invID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if existing == nil {
		writeError(w, h.logger, notFound("Invitation"))
		return
	}
	if err := h.invitations.Delete(r.Context(), id.HouseholdID, invID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
