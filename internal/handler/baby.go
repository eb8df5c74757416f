package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/fernhollow/sprout/internal/auth"
	"github.com/fernhollow/sprout/internal/model"
	"github.com/fernhollow/sprout/internal/store"
	ws "github.com/fernhollow/sprout/internal/websocket"
)

type BabyHandler struct {
	babies      *store.BabyStore
	memberships *store.MembershipStore
	hub         *ws.Hub
	logger      *slog.Logger
}

func NewBabyHandler(bs *store.BabyStore, ms *store.MembershipStore, hub *ws.Hub, logger *slog.Logger) *BabyHandler {
	return &BabyHandler{babies: bs, memberships: ms, hub: hub, logger: logger}
}

type babyRequest struct {
	Name      string   `json:"name"`
	BirthDate string   `json:"birth_date"`
	Gender    string   `json:"gender"`
	WeightKg  *float64 `json:"weight_kg"`
}

func (h *BabyHandler) parseAndValidate(w http.ResponseWriter, r *http.Request) (*babyRequest, time.Time, bool) {
	var req babyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return nil, time.Time{}, false
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return nil, time.Time{}, false
	}

	birthDate, err := time.Parse("2006-01-02", req.BirthDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "birth_date must be YYYY-MM-DD")
		return nil, time.Time{}, false
	}

	return &req, birthDate, true
}

func (h *BabyHandler) Create(w http.ResponseWriter, r *http.Request) {
	req, birthDate, ok := h.parseAndValidate(w, r)
	if !ok {
		return
	}

	baby, err := h.babies.Create(req.Name, birthDate, req.Gender, req.WeightKg, auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("create baby", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create baby")
		return
	}

	h.hub.Broadcast(ws.NewMessage("baby", "created", baby.ID, baby.ID))
	writeJSON(w, http.StatusCreated, baby)
}

func (h *BabyHandler) List(w http.ResponseWriter, r *http.Request) {
	babies, err := h.babies.ListForUser(auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("list babies", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list babies")
		return
	}
	if babies == nil {
		babies = []model.Baby{}
	}
	writeJSON(w, http.StatusOK, babies)
}

// requireMember loads the baby and the caller's membership, writing the
// appropriate error response when either is missing. ownerOnly additionally
// requires the owner role.
func (h *BabyHandler) requireMember(w http.ResponseWriter, r *http.Request, ownerOnly bool) (*model.Baby, *model.Membership, bool) {
	return requireMember(w, r, h.babies, h.memberships, h.logger, ownerOnly)
}

func (h *BabyHandler) Get(w http.ResponseWriter, r *http.Request) {
	baby, _, ok := h.requireMember(w, r, false)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, baby)
}

func (h *BabyHandler) Update(w http.ResponseWriter, r *http.Request) {
	baby, _, ok := h.requireMember(w, r, false)
	if !ok {
		return
	}

	req, birthDate, ok := h.parseAndValidate(w, r)
	if !ok {
		return
	}

	updated, err := h.babies.Update(baby.ID, req.Name, birthDate, req.Gender, req.WeightKg)
	if err != nil {
		h.logger.Error("update baby", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update baby")
		return
	}

	h.hub.Broadcast(ws.NewMessage("baby", "updated", updated.ID, updated.ID))
	writeJSON(w, http.StatusOK, updated)
}

func (h *BabyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	baby, _, ok := h.requireMember(w, r, true)
	if !ok {
		return
	}

	if err := h.babies.Delete(baby.ID); err != nil {
		h.logger.Error("delete baby", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete baby")
		return
	}

	h.hub.Broadcast(ws.NewMessage("baby", "deleted", baby.ID, baby.ID))
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// requireMember is the shared baby-scoped authorization gate: it resolves
// the {id} path param, checks the baby exists, and checks the caller's
// membership. Forbidden responses never say which role would have sufficed.
func requireMember(w http.ResponseWriter, r *http.Request, babies *store.BabyStore, memberships *store.MembershipStore, logger *slog.Logger, ownerOnly bool) (*model.Baby, *model.Membership, bool) {
	babyID, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid baby id")
		return nil, nil, false
	}

	baby, err := babies.GetByID(babyID)
	if err != nil {
		logger.Error("get baby", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return nil, nil, false
	}
	if baby == nil {
		writeError(w, http.StatusNotFound, "baby not found")
		return nil, nil, false
	}

	membership, err := memberships.Get(babyID, auth.UserID(r.Context()))
	if err != nil {
		logger.Error("get membership", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return nil, nil, false
	}
	if membership == nil {
		writeError(w, http.StatusForbidden, "forbidden")
		return nil, nil, false
	}
	if ownerOnly && membership.Role != model.RoleOwner {
		writeError(w, http.StatusForbidden, "forbidden")
		return nil, nil, false
	}

	return baby, membership, true
}
