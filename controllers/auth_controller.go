package controllers

import (
	"net/http"

	"notebook_server_go/auth"
	"notebook_server_go/httputil"
	"notebook_server_go/models"

	"github.com/rs/zerolog/hlog"
)

// AuthController exchanges the owner password for a bearer token.
type AuthController struct {
	tokens       *auth.TokenService
	passwordHash string
}

func NewAuthController(tokens *auth.TokenService, passwordHash string) *AuthController {
	return &AuthController{tokens: tokens, passwordHash: passwordHash}
}

type tokenRequest struct {
	Password string `json:"password"`
}

// IssueToken handles POST /api/auth/token.
func (c *AuthController) IssueToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		httputil.RespondErr(w, r, err)
		return
	}
	if req.Password == "" {
		httputil.RespondErr(w, r, models.NewValidationError("password is required"))
		return
	}
	if !auth.CheckPasswordHash(req.Password, c.passwordHash) {
		hlog.FromRequest(r).Warn().Msg("owner login with wrong password")
		httputil.RespondErr(w, r, &models.UnauthorizedError{Message: "invalid password"})
		return
	}

	token, expiresAt, err := c.tokens.GenerateToken()
	if err != nil {
		httputil.RespondErr(w, r, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, httputil.Envelope{
		"token":      token,
		"expires_at": expiresAt.UTC(),
	})
}
