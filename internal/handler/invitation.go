package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/fernhollow/sprout/internal/auth"
	"github.com/fernhollow/sprout/internal/email"
	"github.com/fernhollow/sprout/internal/model"
	"github.com/fernhollow/sprout/internal/store"
	"github.com/fernhollow/sprout/internal/token"
	ws "github.com/fernhollow/sprout/internal/websocket"
)

const defaultInviteTTL = 24 * time.Hour

// InvitationHandler owns the invite lifecycle: owners create and revoke
// invitations, anyone holding the emailed link accepts them, and members list
// the caregiver roster.
type InvitationHandler struct {
	invitations *store.InvitationStore
	memberships *store.MembershipStore
	users       *store.UserStore
	babies      *store.BabyStore
	tokens      *token.Service
	emailClient *email.Client
	hub         *ws.Hub
	logger      *slog.Logger

	inviteTTL time.Duration
	now       func() time.Time
}

func NewInvitationHandler(
	is *store.InvitationStore,
	ms *store.MembershipStore,
	us *store.UserStore,
	bs *store.BabyStore,
	tokens *token.Service,
	ec *email.Client,
	hub *ws.Hub,
	logger *slog.Logger,
) *InvitationHandler {
	return &InvitationHandler{
		invitations: is,
		memberships: ms,
		users:       us,
		babies:      bs,
		tokens:      tokens,
		emailClient: ec,
		hub:         hub,
		logger:      logger,
		inviteTTL:   defaultInviteTTL,
		now:         time.Now,
	}
}

// WithInviteTTL overrides the invitation lifetime; used by tests.
func (h *InvitationHandler) WithInviteTTL(ttl time.Duration) *InvitationHandler {
	h.inviteTTL = ttl
	return h
}

// WithClock overrides the time source; used by tests.
func (h *InvitationHandler) WithClock(now func() time.Time) *InvitationHandler {
	h.now = now
	return h
}

// Create handles POST /babies/{id}/invitations. Owner-only. The raw invite
// token is emailed and never stored; when no email provider is configured the
// link is returned in the response instead, as an explicit operator fallback.
func (h *InvitationHandler) Create(w http.ResponseWriter, r *http.Request) {
	baby, _, ok := requireMember(w, r, h.babies, h.memberships, h.logger, true)
	if !ok {
		return
	}

	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Email = store.NormalizeEmail(req.Email)
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		writeError(w, http.StatusBadRequest, "a valid email is required")
		return
	}

	// Reject invites for someone who is already on the roster.
	if invitee, err := h.users.GetByEmail(req.Email); err != nil {
		h.logger.Error("invitee lookup", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	} else if invitee != nil {
		m, err := h.memberships.Get(baby.ID, invitee.ID)
		if err != nil {
			h.logger.Error("invitee membership", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if m != nil {
			writeError(w, http.StatusConflict, "that person is already a caregiver for this baby")
			return
		}
	}

	// One pending invite per (baby, email) at a time.
	pending, err := h.invitations.HasPending(baby.ID, req.Email, h.now())
	if err != nil {
		h.logger.Error("pending invite check", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if pending {
		writeError(w, http.StatusConflict, "an invitation for that email is already pending")
		return
	}

	rawToken, err := token.GenerateToken()
	if err != nil {
		h.logger.Error("generate invite token", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	inv, err := h.invitations.Create(
		baby.ID, req.Email, model.RoleCaregiver, token.HashToken(rawToken),
		auth.UserID(r.Context()), h.now().Add(h.inviteTTL),
	)
	if err != nil {
		h.logger.Error("create invitation", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	resp := map[string]any{
		"id":         inv.ID,
		"email":      inv.Email,
		"role":       inv.Role,
		"status":     inv.Status,
		"expires_at": inv.ExpiresAt,
	}

	if h.emailClient.Configured() {
		if err := h.emailClient.SendInvite(req.Email, baby.Name, rawToken); err != nil {
			// The row stays pending; the owner can revoke and re-invite.
			h.logger.Error("send invite email", "error", err, "invitation_id", inv.ID)
			writeError(w, http.StatusBadGateway, "failed to send invitation email")
			return
		}
	} else {
		resp["invite_link"] = h.emailClient.InviteLink(rawToken)
	}

	writeJSON(w, http.StatusCreated, resp)
}

// Accept handles POST /invitations/{token}/accept. The endpoint is public:
// identity is resolved inside, either from an optional bearer session or from
// a signup payload in the body.
func (h *InvitationHandler) Accept(w http.ResponseWriter, r *http.Request) {
	rawToken := r.PathValue("token")
	if rawToken == "" {
		writeError(w, http.StatusNotFound, "invitation not found")
		return
	}

	// Lookup by hash is the authoritative check: an unknown token and a
	// bad token are indistinguishable.
	inv, err := h.invitations.GetByTokenHash(token.HashToken(rawToken))
	if err != nil {
		h.logger.Error("invitation lookup", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if inv == nil {
		writeError(w, http.StatusNotFound, "invitation not found")
		return
	}

	now := h.now()
	if inv.IsExpired(now) {
		// Best-effort write-back; the read-path check already decided.
		if _, err := h.invitations.MarkExpired(inv.ID); err != nil {
			h.logger.Error("mark invitation expired", "error", err)
		}
		writeError(w, http.StatusBadRequest, "this invitation has expired")
		return
	}
	if inv.Status != model.InviteStatusPending {
		writeError(w, http.StatusBadRequest, "this invitation is no longer active")
		return
	}

	userID, sessionToken, ok := h.resolveAcceptIdentity(w, r, inv)
	if !ok {
		return
	}

	won, err := h.invitations.Accept(inv.ID, userID)
	if err != nil {
		h.logger.Error("accept invitation", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !won {
		// A concurrent request settled the invitation first.
		writeError(w, http.StatusBadRequest, "this invitation is no longer active")
		return
	}

	h.hub.Broadcast(ws.NewMessage("member", "added", userID, inv.BabyID))

	writeJSON(w, http.StatusOK, map[string]any{
		"token":   sessionToken,
		"user_id": userID,
	})
}

// resolveAcceptIdentity decides who is accepting. A logged-in caller must
// match the invited email; an anonymous caller signs up with a password.
// Returns the user id and a fresh session token (nil when the caller already
// had a session).
func (h *InvitationHandler) resolveAcceptIdentity(w http.ResponseWriter, r *http.Request, inv *model.Invitation) (int64, *string, bool) {
	if identity, authed := auth.FromContext(r.Context()); authed {
		if store.NormalizeEmail(identity.Email) != inv.Email {
			writeError(w, http.StatusForbidden, "this invitation was sent to a different email address")
			return 0, nil, false
		}
		return identity.UserID, nil, true
	}

	var req struct {
		Password string `json:"password"`
		Name     string `json:"name"`
	}
	// An empty body is fine for logged-in callers, but an anonymous accept
	// needs a password, so decode errors fall through to the checks below.
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	if len(req.Password) < minPasswordLen {
		writeError(w, http.StatusBadRequest, "a password of at least 8 characters is required")
		return 0, nil, false
	}

	existing, err := h.users.GetByEmail(inv.Email)
	if err != nil {
		h.logger.Error("accept user lookup", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return 0, nil, false
	}
	if existing != nil {
		// Never merge into an existing account on a guessed password; the
		// client should send the user through login instead.
		writeJSON(w, http.StatusConflict, map[string]any{
			"success": false,
			"error":   "LOGIN_REQUIRED",
			"message": "an account with this email already exists; log in to accept the invitation",
		})
		return 0, nil, false
	}

	hash, err := token.HashPassword(req.Password)
	if err != nil {
		h.logger.Error("hash password", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return 0, nil, false
	}

	user, err := h.users.Create(inv.Email, hash, strings.TrimSpace(req.Name))
	if err != nil {
		h.logger.Error("create user on accept", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return 0, nil, false
	}

	session, err := h.tokens.SignSession(user)
	if err != nil {
		h.logger.Error("sign session on accept", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return 0, nil, false
	}
	return user.ID, &session, true
}

// Revoke handles POST /babies/{id}/invitations/{inviteId}/revoke. Owner-only
// and idempotent: revoking an already-settled invitation succeeds.
func (h *InvitationHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	baby, _, ok := requireMember(w, r, h.babies, h.memberships, h.logger, true)
	if !ok {
		return
	}

	inviteID, err := parseIDParam(r, "inviteId")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid invitation id")
		return
	}

	inv, err := h.invitations.GetByID(inviteID)
	if err != nil {
		h.logger.Error("get invitation", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if inv == nil || inv.BabyID != baby.ID {
		writeError(w, http.StatusNotFound, "invitation not found")
		return
	}

	if _, err := h.invitations.Revoke(inv.ID); err != nil {
		h.logger.Error("revoke invitation", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// ListCaregivers handles GET /babies/{id}/caregivers. Any member may call
// it. Stale pending invitations are lazily expired before the listing.
func (h *InvitationHandler) ListCaregivers(w http.ResponseWriter, r *http.Request) {
	baby, _, ok := requireMember(w, r, h.babies, h.memberships, h.logger, false)
	if !ok {
		return
	}

	members, err := h.memberships.ListMembers(baby.ID)
	if err != nil {
		h.logger.Error("list members", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if members == nil {
		members = []model.Member{}
	}

	invites, err := h.invitations.ListByBaby(baby.ID)
	if err != nil {
		h.logger.Error("list invitations", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	now := h.now()
	pending := []model.Invitation{}
	for i := range invites {
		inv := invites[i]
		if inv.IsExpired(now) {
			if _, err := h.invitations.MarkExpired(inv.ID); err != nil {
				h.logger.Error("mark invitation expired", "error", err)
			}
			continue
		}
		if inv.IsPending(now) {
			pending = append(pending, inv)
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"members": members,
		"invites": pending,
	})
}

// RemoveCaregiver handles DELETE /babies/{id}/caregivers/{userId}.
// Owner-only. Owners themselves can never be removed through this path, so a
// baby always keeps at least one owner.
func (h *InvitationHandler) RemoveCaregiver(w http.ResponseWriter, r *http.Request) {
	baby, _, ok := requireMember(w, r, h.babies, h.memberships, h.logger, true)
	if !ok {
		return
	}

	targetID, err := parseIDParam(r, "userId")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	target, err := h.memberships.Get(baby.ID, targetID)
	if err != nil {
		h.logger.Error("get target membership", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if target == nil {
		writeError(w, http.StatusNotFound, "that user is not a member")
		return
	}
	if target.Role == model.RoleOwner {
		writeError(w, http.StatusBadRequest, "an owner cannot be removed")
		return
	}

	if err := h.memberships.Remove(baby.ID, targetID); err != nil {
		h.logger.Error("remove membership", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.hub.Broadcast(ws.NewMessage("member", "removed", targetID, baby.ID))
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
