package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"lattice-agent/internal/middleware"
	"lattice-agent/internal/model"
	"lattice-agent/pkg/apierror"
	"lattice-agent/pkg/response"

	"github.com/go-chi/chi/v5"
)

// TokenIssuer is the part of the token manager the issuance API uses.
type TokenIssuer interface {
	Enabled() bool
	CanIssue() bool
	Today() string
	IssueForDay(day string) (model.IssuedToken, error)
	Revoke(ctx context.Context, tokenID string) bool
	Grants() []model.Grant
}

// TokenHandler serves the remote authority's token endpoints.
type TokenHandler struct {
	tokens TokenIssuer
	logger *slog.Logger
}

// NewTokenHandler creates a token handler.
func NewTokenHandler(tokens TokenIssuer, logger *slog.Logger) *TokenHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TokenHandler{tokens: tokens, logger: logger.With("component", "TokenHandler")}
}

// IssueRequest is the optional body of an issuance request.
type IssueRequest struct {
	Day       string `json:"day"`
	Requester string `json:"requester"`
}

// IssueResponse is returned on successful issuance.
type IssueResponse struct {
	Token     string    `json:"token"`
	TokenID   string    `json:"token_id"`
	Day       string    `json:"day"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Issue handles POST /api/v1/tokens
func (h *TokenHandler) Issue(w http.ResponseWriter, r *http.Request) {
	if !h.tokens.Enabled() {
		response.Error(w, apierror.ServiceUnavailable("TOKEN_GATING_DISABLED", "token gating is disabled on this server"))
		return
	}
	if !h.tokens.CanIssue() {
		response.Error(w, apierror.ServiceUnavailable("SIGNING_SECRET_MISSING", "no token signing secret is configured"))
		return
	}

	var req IssueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(w, apierror.BadRequest("invalid request body"))
		return
	}
	defer r.Body.Close()

	day := req.Day
	if day == "" {
		day = h.tokens.Today()
	}
	issued, err := h.tokens.IssueForDay(day)
	if err != nil {
		response.Error(w, apierror.BadRequest(err.Error()))
		return
	}

	requester := req.Requester
	if c := middleware.GetAuthority(r.Context()); c != nil && requester == "" {
		requester = c.RequesterID
	}
	h.logger.Info("token issued",
		"token_id", issued.TokenID,
		"day", issued.Day,
		"requester", requester,
		"request_id", middleware.GetRequestID(r.Context()))

	response.Created(w, IssueResponse{
		Token:     issued.Token,
		TokenID:   issued.TokenID,
		Day:       issued.Day,
		ExpiresAt: issued.ExpiresAt,
	})
}

// Revoke handles DELETE /api/v1/tokens/{token_id}
func (h *TokenHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	tokenID := chi.URLParam(r, "token_id")
	if len(tokenID) != 32 {
		response.Error(w, apierror.BadRequest("token_id must be 32 hex characters"))
		return
	}

	hadGrant := h.tokens.Revoke(r.Context(), tokenID)
	response.OK(w, map[string]any{
		"token_id":  tokenID,
		"status":    "revoked",
		"had_grant": hadGrant,
	})
}

// ListGrants handles GET /api/v1/grants
func (h *TokenHandler) ListGrants(w http.ResponseWriter, r *http.Request) {
	grants := h.tokens.Grants()
	if grants == nil {
		grants = []model.Grant{}
	}
	response.OK(w, map[string]any{
		"count":  len(grants),
		"grants": grants,
	})
}
