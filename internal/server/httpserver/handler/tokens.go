package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/yndnr/previewshare-go/internal/core/domain"
	"github.com/yndnr/previewshare-go/internal/core/service"
)

// handleIssue handles POST /v1/tokens.
func (h *Handler) handleIssue(w http.ResponseWriter, r *http.Request) {
	var req IssueTokenRequest
	if err := decodeJSON(r, &req); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	resp, err := h.previews.Issue(r.Context(), &service.IssueRequest{
		ResourceID: req.ResourceID,
		Requester:  PrincipalFromContext(r.Context()),
		TTLHours:   req.TTLHours,
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusCreated, IssueTokenResponse{
		ID:         resp.Record.ID,
		Token:      resp.Token,
		URL:        resp.URL,
		ResourceID: resp.Record.ResourceID,
		ExpiresAt:  resp.Record.ExpiresAt,
		Replaced:   resp.Replaced,
	})
}

// handleRevoke handles POST /v1/tokens/revoke.
func (h *Handler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	var req RevokeTokenRequest
	if err := decodeJSON(r, &req); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	revoked, err := h.previews.RevokeAs(r.Context(), PrincipalFromContext(r.Context()), req.Token)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, RevokeResponse{Revoked: revoked})
}

// handleLatest handles GET /v1/resources/{id}/token.
func (h *Handler) handleLatest(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	res, err := h.resources.Get(r.Context(), id)
	if err != nil {
		if !errors.Is(err, domain.ErrResourceNotFound) {
			h.handleServiceError(w, r, err)
			return
		}
		res = nil
	}
	if h.authz != nil {
		if err := h.authz.Authorize(r.Context(), PrincipalFromContext(r.Context()), id, res); err != nil {
			h.handleServiceError(w, r, err)
			return
		}
	}

	rec, err := h.previews.LatestForResource(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	out := newTokenResponse(rec, time.Now())
	if res != nil {
		out.ResourceTitle = res.Title
	}
	h.writeJSON(w, r, http.StatusOK, out)
}
