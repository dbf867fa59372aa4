package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/rohits-web03/passkeyd/internal/api/middleware"
	"github.com/rohits-web03/passkeyd/internal/api/services"
	"github.com/rohits-web03/passkeyd/internal/utils"
	"go.uber.org/zap"
)

type AuthHandler struct {
	auth          *services.AuthService
	log           *zap.Logger
	secureCookies bool
}

func NewAuthHandler(auth *services.AuthService, log *zap.Logger, secureCookies bool) *AuthHandler {
	return &AuthHandler{auth: auth, log: log, secureCookies: secureCookies}
}

type SaltRequest struct {
	Email string `json:"email"`
}

type RegisterRequest struct {
	Email       string `json:"email"`
	AuthKeyHash string `json:"auth_key_hash"`
	Salt        string `json:"salt"`
}

type LoginRequest struct {
	Email       string `json:"email"`
	AuthKeyHash string `json:"auth_key_hash"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// POST /api/v1/auth/salt
// FetchSalt godoc
// @Summary Fetch the key derivation salt for an email
// @Description Always succeeds. Unknown emails receive a random salt of the same shape.
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body SaltRequest true "Email"
// @Success 200 {object} utils.Payload
// @Failure 400 {object} utils.Payload
// @Router /api/v1/auth/salt [post]
func (h *AuthHandler) FetchSalt(w http.ResponseWriter, r *http.Request) {
	var input SaltRequest
	if !decode(w, r, &input) {
		return
	}
	if input.Email == "" {
		invalidInput(w)
		return
	}

	salt, err := h.auth.FetchSalt(r.Context(), input.Email)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		Success: true,
		Message: "Salt retrieved",
		Data:    map[string]string{"salt": salt},
	})
}

// POST /api/v1/auth/register
// Register godoc
// @Summary Register an account
// @Description auth_key_hash is derived from the master password on the client; salt is stored verbatim.
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body RegisterRequest true "Registration"
// @Success 201 {object} utils.Payload
// @Failure 400 {object} utils.Payload
// @Failure 409 {object} utils.Payload "Email already registered"
// @Router /api/v1/auth/register [post]
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var input RegisterRequest
	if !decode(w, r, &input) {
		return
	}
	if !validEmail(input.Email) || input.AuthKeyHash == "" || input.Salt == "" {
		invalidInput(w)
		return
	}

	user, err := h.auth.Register(r.Context(), input.Email, input.AuthKeyHash, input.Salt)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	utils.JSONResponse(w, http.StatusCreated, utils.Payload{
		Success: true,
		Message: "User registered successfully",
		Data:    user.Summary(),
	})
}

// POST /api/v1/auth/login
// Login godoc
// @Summary Exchange email and auth key hash for an access token
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body LoginRequest true "Credentials"
// @Success 200 {object} utils.Payload
// @Failure 400 {object} utils.Payload
// @Failure 401 {object} utils.Payload "Invalid credentials"
// @Router /api/v1/auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var input LoginRequest
	if !decode(w, r, &input) {
		return
	}
	if input.Email == "" || input.AuthKeyHash == "" {
		invalidInput(w)
		return
	}

	res, err := h.auth.Login(r.Context(), input.Email, input.AuthKeyHash)
	if errors.Is(err, services.ErrUnauthorized) {
		unauthorized(w, "Invalid credentials")
		return
	}
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	maxAge := int(time.Until(res.ExpiresAt).Seconds())

	// SameSite cookie policy
	sameSite := http.SameSiteLaxMode
	if h.secureCookies {
		sameSite = http.SameSiteNoneMode
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.TokenCookie,
		Value:    res.Token,
		Path:     "/",
		MaxAge:   maxAge,
		Secure:   h.secureCookies,
		HttpOnly: true,
		SameSite: sameSite,
	})

	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		Success: true,
		Message: "Login successful",
		Data: TokenResponse{
			AccessToken: res.Token,
			TokenType:   "bearer",
			ExpiresIn:   int64(maxAge),
		},
	})
}

// POST /api/v1/auth/logout
// Logout godoc
// @Summary Clear the token cookie
// @Tags Auth
// @Produce json
// @Success 200 {object} utils.Payload
// @Router /api/v1/auth/logout [post]
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.TokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1, // maxAge < 0 deletes the cookie
		Secure:   h.secureCookies,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		Success: true,
		Message: "Logged out successfully",
	})
}

// GET /api/v1/auth/me
// Me godoc
// @Summary Current user
// @Tags Auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} utils.Payload
// @Failure 401 {object} utils.Payload
// @Router /api/v1/auth/me [get]
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		unauthorized(w, "Unauthorized")
		return
	}

	user, err := h.auth.Me(r.Context(), userID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		Success: true,
		Message: "User retrieved",
		Data:    user.Summary(),
	})
}

// DELETE /api/v1/auth/me
// DeleteAccount godoc
// @Summary Delete the current account and its vault
// @Tags Auth
// @Security BearerAuth
// @Success 204
// @Failure 401 {object} utils.Payload
// @Router /api/v1/auth/me [delete]
func (h *AuthHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		unauthorized(w, "Unauthorized")
		return
	}

	if err := h.auth.DeleteAccount(r.Context(), userID); err != nil {
		writeError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
