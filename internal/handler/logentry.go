package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fernhollow/sprout/internal/auth"
	"github.com/fernhollow/sprout/internal/model"
	"github.com/fernhollow/sprout/internal/store"
	ws "github.com/fernhollow/sprout/internal/websocket"
)

type LogEntryHandler struct {
	logs        *store.LogEntryStore
	babies      *store.BabyStore
	memberships *store.MembershipStore
	hub         *ws.Hub
	logger      *slog.Logger
}

func NewLogEntryHandler(ls *store.LogEntryStore, bs *store.BabyStore, ms *store.MembershipStore, hub *ws.Hub, logger *slog.Logger) *LogEntryHandler {
	return &LogEntryHandler{logs: ls, babies: bs, memberships: ms, hub: hub, logger: logger}
}

type logEntryRequest struct {
	Kind      string   `json:"kind"`
	StartedAt string   `json:"started_at"`
	EndedAt   *string  `json:"ended_at"`
	AmountML  *float64 `json:"amount_ml"`
	Note      string   `json:"note"`
}

func (h *LogEntryHandler) parseAndValidate(w http.ResponseWriter, r *http.Request) (*logEntryRequest, time.Time, *time.Time, bool) {
	var req logEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return nil, time.Time{}, nil, false
	}

	if !model.ValidLogKind(req.Kind) {
		writeError(w, http.StatusBadRequest, "kind must be one of feeding, diaper, sleep, pumping")
		return nil, time.Time{}, nil, false
	}

	startedAt, err := time.Parse(time.RFC3339, req.StartedAt)
	if err != nil {
		writeError(w, http.StatusBadRequest, "started_at must be RFC3339 format")
		return nil, time.Time{}, nil, false
	}

	var endedAt *time.Time
	if req.EndedAt != nil && *req.EndedAt != "" {
		t, err := time.Parse(time.RFC3339, *req.EndedAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, "ended_at must be RFC3339 format")
			return nil, time.Time{}, nil, false
		}
		if t.Before(startedAt) {
			writeError(w, http.StatusBadRequest, "ended_at must not be before started_at")
			return nil, time.Time{}, nil, false
		}
		endedAt = &t
	}

	req.Note = strings.TrimSpace(req.Note)
	return &req, startedAt, endedAt, true
}

func (h *LogEntryHandler) Create(w http.ResponseWriter, r *http.Request) {
	baby, _, ok := requireMember(w, r, h.babies, h.memberships, h.logger, false)
	if !ok {
		return
	}

	req, startedAt, endedAt, ok := h.parseAndValidate(w, r)
	if !ok {
		return
	}

	entry, err := h.logs.Create(baby.ID, auth.UserID(r.Context()), req.Kind, startedAt, endedAt, req.AmountML, req.Note)
	if err != nil {
		h.logger.Error("create log entry", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create log entry")
		return
	}

	h.hub.Broadcast(ws.NewMessage("log", "created", entry.ID, baby.ID))
	writeJSON(w, http.StatusCreated, entry)
}

func (h *LogEntryHandler) List(w http.ResponseWriter, r *http.Request) {
	baby, _, ok := requireMember(w, r, h.babies, h.memberships, h.logger, false)
	if !ok {
		return
	}

	kind := r.URL.Query().Get("kind")
	if kind != "" && !model.ValidLogKind(kind) {
		writeError(w, http.StatusBadRequest, "kind must be one of feeding, diaper, sleep, pumping")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	entries, err := h.logs.ListByBaby(baby.ID, kind, limit)
	if err != nil {
		h.logger.Error("list log entries", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list log entries")
		return
	}
	if entries == nil {
		entries = []model.LogEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// getOwnedEntry resolves {logId} and verifies the entry belongs to the baby
// in the path. Cross-baby ids are indistinguishable from missing ones.
func (h *LogEntryHandler) getOwnedEntry(w http.ResponseWriter, r *http.Request, babyID int64) (*model.LogEntry, bool) {
	logID, err := parseIDParam(r, "logId")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid log id")
		return nil, false
	}

	entry, err := h.logs.GetByID(logID)
	if err != nil {
		h.logger.Error("get log entry", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return nil, false
	}
	if entry == nil || entry.BabyID != babyID {
		writeError(w, http.StatusNotFound, "log entry not found")
		return nil, false
	}
	return entry, true
}

func (h *LogEntryHandler) Update(w http.ResponseWriter, r *http.Request) {
	baby, _, ok := requireMember(w, r, h.babies, h.memberships, h.logger, false)
	if !ok {
		return
	}

	entry, ok := h.getOwnedEntry(w, r, baby.ID)
	if !ok {
		return
	}

	req, startedAt, endedAt, ok := h.parseAndValidate(w, r)
	if !ok {
		return
	}

	updated, err := h.logs.Update(entry.ID, req.Kind, startedAt, endedAt, req.AmountML, req.Note)
	if err != nil {
		h.logger.Error("update log entry", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update log entry")
		return
	}

	h.hub.Broadcast(ws.NewMessage("log", "updated", updated.ID, baby.ID))
	writeJSON(w, http.StatusOK, updated)
}

func (h *LogEntryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	baby, _, ok := requireMember(w, r, h.babies, h.memberships, h.logger, false)
	if !ok {
		return
	}

	entry, ok := h.getOwnedEntry(w, r, baby.ID)
	if !ok {
		return
	}

	if err := h.logs.Delete(entry.ID); err != nil {
		h.logger.Error("delete log entry", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete log entry")
		return
	}

	h.hub.Broadcast(ws.NewMessage("log", "deleted", entry.ID, baby.ID))
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
