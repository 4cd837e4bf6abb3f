package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/atelierhq/atelier/internal/audit"
	"github.com/atelierhq/atelier/internal/auth"
	"github.com/atelierhq/atelier/internal/ids"
	"github.com/atelierhq/atelier/internal/invite"
)

type createInviteRequest struct {
	Kind       string `json:"kind"`
	WorkshopID string `json:"workshop_id"`
	Email      string `json:"email"`
	Role       string `json:"role"`
}

type redeemInviteRequest struct {
	Token       string `json:"token"`
	DisplayName string `json:"display_name"`
	Password    string `json:"password"`
}

func (a *API) handleInvites(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if _, ok := a.ensureCapability(w, r, auth.CapManageInvites); !ok {
		return
	}
	var req createInviteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	kind := invite.Kind(strings.TrimSpace(req.Kind))
	if kind == "" {
		kind = invite.KindInvite
	}
	tok, err := a.invites.Issue(r.Context(), kind, req.WorkshopID, req.Email, req.Role)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	a.record(r, audit.Entry{
		Action:     audit.ActionInviteCreated,
		TargetType: "invite",
		TargetID:   tok.ID,
		Changes:    map[string]any{"kind": string(tok.Kind), "email": tok.Email, "role": tok.Role},
	})
	writeJSON(w, http.StatusCreated, tok)
}

// handleInviteValidate is public: the token itself is the credential. An
// unknown token is a 404; a known-but-unusable token reports its reason with
// a 200 so the claiming UI can explain it.
func (a *API) handleInviteValidate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	validation, err := a.invites.Validate(r.Context(), token)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	if !validation.Valid && validation.Reason == invite.ReasonNotFound {
		writeJSON(w, http.StatusNotFound, validation)
		return
	}
	writeJSON(w, http.StatusOK, validation)
}

func (a *API) handleInviteRedeem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req redeemInviteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	var created *auth.User
	tok, err := a.invites.Redeem(r.Context(), req.Token, func(ctx context.Context, tok *invite.Token) error {
		if tok.Kind != invite.KindInvite {
			return nil
		}
		return a.createInvitedUser(ctx, tok, req, &created)
	})
	if err != nil {
		handleTokenError(w, r, err)
		return
	}

	a.record(r, audit.Entry{
		Action:     audit.ActionInviteRedeemed,
		TargetType: "invite",
		TargetID:   tok.ID,
		Changes:    map[string]any{"kind": string(tok.Kind), "email": tok.Email},
	})
	resp := map[string]any{"token": tok}
	if created != nil {
		resp["user"] = created
	}
	writeJSON(w, http.StatusOK, resp)
}

// createInvitedUser is the redemption side effect for invite tokens: it opens
// the invited account. Without a display name the account stays pending until
// the profile is completed.
func (a *API) createInvitedUser(ctx context.Context, tok *invite.Token, req redeemInviteRequest, out **auth.User) error {
	if strings.TrimSpace(req.Password) == "" {
		return fmt.Errorf("%w: password is required", auth.ErrInvalidInput)
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return err
	}
	status := auth.StatusPending
	if strings.TrimSpace(req.DisplayName) != "" {
		status = auth.StatusActive
	}
	now := time.Now().UTC()
	user := &auth.User{
		ID:           ids.New(),
		WorkshopID:   tok.WorkshopID,
		Email:        tok.Email,
		DisplayName:  strings.TrimSpace(req.DisplayName),
		PasswordHash: hash,
		Role:         auth.ParseRole(tok.Role),
		Status:       status,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.users.Create(ctx, user); err != nil {
		return err
	}
	*out = user
	return nil
}

func (a *API) handleInviteScoped(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/invites/"), "/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[1] != "send" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if _, ok := a.ensureCapability(w, r, auth.CapManageInvites); !ok {
		return
	}
	inviteID := parts[0]
	if err := a.invites.MarkSent(r.Context(), inviteID); err != nil {
		var te *invite.TokenError
		if errors.As(err, &te) {
			writeError(w, r, http.StatusConflict, "invite already dispatched or used")
			return
		}
		if errors.Is(err, invite.ErrInvalidToken) {
			writeError(w, r, http.StatusNotFound, "resource not found")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	a.record(r, audit.Entry{
		Action:     audit.ActionInviteSent,
		TargetType: "invite",
		TargetID:   inviteID,
	})
	w.WriteHeader(http.StatusNoContent)
}

func handleTokenError(w http.ResponseWriter, r *http.Request, err error) {
	var te *invite.TokenError
	if errors.As(err, &te) {
		switch te.Reason {
		case invite.ReasonNotFound:
			writeError(w, r, http.StatusNotFound, te.Error())
		default:
			writeError(w, r, http.StatusBadRequest, te.Error())
		}
		return
	}
	if errors.Is(err, auth.ErrConflict) {
		writeError(w, r, http.StatusConflict, "account already exists")
		return
	}
	handleDomainError(w, r, err)
}
