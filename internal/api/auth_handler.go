package api

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"alcyxob/fittrack/internal/domain"
	"alcyxob/fittrack/internal/service"
)

// CookieOptions controls the session cookies set by the auth endpoints.
type CookieOptions struct {
	Domain     string
	Secure     bool
	RefreshTTL time.Duration
}

// AuthHandler holds the authentication service dependency.
type AuthHandler struct {
	authService service.AuthService
	cookies     CookieOptions
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService service.AuthService, cookies CookieOptions) *AuthHandler {
	return &AuthHandler{authService: authService, cookies: cookies}
}

// --- Request/Response Structs ---

type SignUpRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=8"`
	DisplayName string `json:"displayName"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type MagicLinkRequest struct {
	Email string `json:"email" binding:"required,email"`
	Next  string `json:"next"`
}

type ResendRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// SessionResponse is what GET /session reports about the caller.
type SessionResponse struct {
	User      *domain.User `json:"user"`
	SessionID string       `json:"sessionId"`
}

// --- Handler Methods ---

// SignUp godoc
// @Summary Register a new account
// @Description Creates an unconfirmed user with a default profile and emails a confirmation link.
// @Tags Auth
// @Accept json
// @Produce json
// @Param user body SignUpRequest true "Sign-up details"
// @Success 201 {object} domain.User "User created successfully"
// @Failure 400 {object} gin.H "Invalid input (validation error)"
// @Failure 409 {object} gin.H "Conflict (email already exists)"
// @Router /auth/signup [post]
func (h *AuthHandler) SignUp(c *gin.Context) {
	var req SignUpRequest
	// Bind JSON request body and perform validation based on `binding` tags
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	user, err := h.authService.SignUp(c.Request.Context(), req.Email, req.Password, req.DisplayName)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, user)
}

// Login godoc
// @Summary Log in with email and password
// @Tags Auth
// @Accept json
// @Produce json
// @Param credentials body LoginRequest true "Login credentials"
// @Success 200 {object} domain.Session "Login successful"
// @Failure 401 {object} gin.H "Unauthorized (invalid credentials)"
// @Failure 403 {object} gin.H "Email not confirmed"
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	session, err := h.authService.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	h.setSessionCookies(c, session)
	respond(c, http.StatusOK, session)
}

// MagicLink godoc
// @Summary Email a one-time sign-in link
// @Description Always answers 202 so the endpoint cannot be used to probe for accounts.
// @Tags Auth
// @Accept json
// @Param body body MagicLinkRequest true "Address and optional redirect"
// @Success 202 {object} gin.H
// @Failure 429 {object} gin.H "Too many requests"
// @Router /auth/magiclink [post]
func (h *AuthHandler) MagicLink(c *gin.Context) {
	var req MagicLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}
	if err := h.authService.SendMagicLink(c.Request.Context(), req.Email, safeNext(req.Next)); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusAccepted, gin.H{"sent": true})
}

// ResendConfirmation godoc
// @Summary Send the confirmation email again
// @Tags Auth
// @Accept json
// @Param body body ResendRequest true "Address"
// @Success 202 {object} gin.H
// @Router /auth/resend [post]
func (h *AuthHandler) ResendConfirmation(c *gin.Context) {
	var req ResendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}
	if err := h.authService.ResendConfirmation(c.Request.Context(), req.Email); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusAccepted, gin.H{"sent": true})
}

// Refresh godoc
// @Summary Exchange a refresh token for a new session
// @Description The token is read from the body, falling back to the refresh_token cookie.
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body RefreshRequest false "Refresh token"
// @Success 200 {object} domain.Session
// @Failure 401 {object} gin.H "Session expired"
// @Router /auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
			return
		}
	}
	if req.RefreshToken == "" {
		req.RefreshToken, _ = c.Cookie(refreshTokenCookie)
	}
	if req.RefreshToken == "" {
		abortWithError(c, http.StatusBadRequest, "refresh token is required")
		return
	}

	session, err := h.authService.RefreshSession(c.Request.Context(), req.RefreshToken)
	if err != nil {
		respondError(c, err)
		return
	}
	h.setSessionCookies(c, session)
	respond(c, http.StatusOK, session)
}

// Callback godoc
// @Summary Verify an emailed link
// @Description Signs the user in, sets the session cookies and redirects to `next`.
// @Tags Auth
// @Param token_hash query string true "Link token"
// @Param type query string true "signup or magiclink"
// @Param next query string false "Path to redirect to"
// @Success 302
// @Failure 401 {object} gin.H "Invalid or used link"
// @Router /auth/callback [get]
func (h *AuthHandler) Callback(c *gin.Context) {
	token := c.Query("token_hash")
	if token == "" {
		abortWithError(c, http.StatusBadRequest, "token_hash is required")
		return
	}
	linkType := service.LinkType(c.Query("type"))
	if linkType != service.LinkSignup && linkType != service.LinkMagicLink {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("unknown link type %q", linkType))
		return
	}

	session, err := h.authService.VerifyCallback(c.Request.Context(), token, linkType)
	if err != nil {
		respondError(c, err)
		return
	}
	h.setSessionCookies(c, session)
	c.Redirect(http.StatusFound, safeNext(c.Query("next")))
}

// Logout godoc
// @Summary End the current session
// @Tags Auth
// @Security BearerAuth
// @Success 204
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	identity, err := getIdentityFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to get user ID from token")
		return
	}
	if err := h.authService.SignOut(c.Request.Context(), identity); err != nil {
		respondError(c, err)
		return
	}
	h.clearSessionCookies(c)
	c.Status(http.StatusNoContent)
}

// Session godoc
// @Summary Describe the signed-in user
// @Tags Auth
// @Security BearerAuth
// @Produce json
// @Success 200 {object} SessionResponse
// @Router /session [get]
func (h *AuthHandler) Session(c *gin.Context) {
	identity, err := getIdentityFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to get user ID from token")
		return
	}
	user, err := h.authService.User(c.Request.Context(), identity.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, SessionResponse{User: user, SessionID: identity.SessionID})
}

func (h *AuthHandler) setSessionCookies(c *gin.Context, session *domain.Session) {
	c.SetSameSite(http.SameSiteLaxMode)
	accessMaxAge := int(time.Until(session.ExpiresAt).Seconds())
	c.SetCookie(accessTokenCookie, session.AccessToken, accessMaxAge, "/", h.cookies.Domain, h.cookies.Secure, true)
	c.SetCookie(refreshTokenCookie, session.RefreshToken, int(h.cookies.RefreshTTL.Seconds()), "/api/v1/auth", h.cookies.Domain, h.cookies.Secure, true)
}

func (h *AuthHandler) clearSessionCookies(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(accessTokenCookie, "", -1, "/", h.cookies.Domain, h.cookies.Secure, true)
	c.SetCookie(refreshTokenCookie, "", -1, "/api/v1/auth", h.cookies.Domain, h.cookies.Secure, true)
}

// safeNext keeps redirects on this site: only absolute paths are accepted.
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") {
		return "/"
	}
	u, err := url.Parse(next)
	if err != nil || u.Host != "" || u.Scheme != "" {
		return "/"
	}
	return next
}
