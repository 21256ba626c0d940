// Package httpapi exposes the credential lifecycle as a JSON API over gin.
// Tokens travel only as httpOnly cookies, never in response bodies.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/dmitrijs2005/cookieauth/internal/common"
	"github.com/dmitrijs2005/cookieauth/internal/logging"
	"github.com/dmitrijs2005/cookieauth/internal/server/auth"
	"github.com/dmitrijs2005/cookieauth/internal/server/models"
	"github.com/dmitrijs2005/cookieauth/internal/server/validation"
	"github.com/gin-gonic/gin"
)

const (
	msgInvalidPayload     = "Invalid payload"
	msgInternalError      = "Internal server error"
	msgLoginFailed        = "Error while logging in"
	msgNoAuthenticated    = "There is no authenticated user"
	msgNoUser             = "No user authenticated"
	msgLoggedOut          = "User was successfully logged out"
	msgCreateFailed       = "Error while creating user"
	msgUpdateFailed       = "Error while updating user"
	msgUserNotFound       = "User not found"
	msgPreviousInvalid    = "Previous password is invalid"
	msgUserUpdated        = "User successfully updated"
	serviceName           = "cookieauth"
	jsonInvalidErrorType  = "json_invalid"
	jsonInvalidErrorLabel = "body"
)

// UserStore is the credential store used by the handlers.
type UserStore interface {
	Create(ctx context.Context, email, password string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id int64) (*models.User, error)
	Authenticate(ctx context.Context, email, password string) (*models.User, error)
	UpdatePassword(ctx context.Context, user *models.User, previous, next string) error
}

// TokenIssuer mints and verifies the token pair.
type TokenIssuer interface {
	IssueAccessToken(userID int64) (string, error)
	IssuePair(userID int64) (*auth.TokenPair, error)
	VerifyToken(token string, kind auth.TokenKind) (int64, error)
}

// Handler holds the dependencies of every route.
type Handler struct {
	users     UserStore
	tokens    TokenIssuer
	cookies   *auth.CookieTransport
	validator *validation.Validator
	logger    logging.Logger
}

// NewHandler wires a Handler.
func NewHandler(us UserStore, ti TokenIssuer, ct *auth.CookieTransport, l logging.Logger) *Handler {
	return &Handler{
		users:     us,
		tokens:    ti,
		cookies:   ct,
		validator: validation.New(),
		logger:    l.With("module", "http_api"),
	}
}

// Login handles POST /auth/login.
func (h *Handler) Login(c *gin.Context) {
	var req validation.LoginPayload
	if !h.bind(c, &req) {
		return
	}

	email, password := validation.Str(req.Email), validation.Str(req.Password)
	user, err := h.users.Authenticate(c.Request.Context(), email, password)
	if err != nil {
		if errors.Is(err, common.ErrorUnauthorized) {
			failure(c, http.StatusUnauthorized, msgLoginFailed, nil)
			return
		}
		h.logger.Error(c.Request.Context(), "login failed", "error", err)
		failure(c, http.StatusInternalServerError, msgInternalError, nil)
		return
	}

	if !h.issueAndAttach(c, user.ID) {
		return
	}
	h.logger.Info(c.Request.Context(), "user logged in", "user_id", user.ID)
	success(c, http.StatusOK, fmt.Sprintf("User %s was successfully logged in", user.Email))
}

// Refresh handles GET /auth/token/refresh. Only the access cookie is renewed.
func (h *Handler) Refresh(c *gin.Context) {
	user, ok := CurrentUser(c)
	if !ok {
		failure(c, http.StatusUnauthorized, msgNoUser, nil)
		return
	}

	access, err := h.tokens.IssueAccessToken(user.ID)
	if err != nil {
		h.logger.Error(c.Request.Context(), "access token issue failed", "error", err)
		failure(c, http.StatusInternalServerError, msgInternalError, nil)
		return
	}

	h.cookies.AttachToResponse(c.Writer, access, "")
	success(c, http.StatusOK, fmt.Sprintf("Access token refreshed for the user %s", user.Email))
}

// Logout handles POST /auth/logout.
func (h *Handler) Logout(c *gin.Context) {
	user, ok := CurrentUser(c)
	if !ok {
		failure(c, http.StatusUnauthorized, msgNoAuthenticated, nil)
		return
	}

	h.cookies.ClearFromResponse(c.Writer)
	h.logger.Info(c.Request.Context(), "user logged out", "user_id", user.ID)
	success(c, http.StatusOK, msgLoggedOut)
}

// CreateUser handles POST /user/create.
func (h *Handler) CreateUser(c *gin.Context) {
	ctx := c.Request.Context()

	var req validation.SignupPayload
	if !h.decode(c, &req) {
		return
	}

	email := validation.Str(req.Email)
	if req.Email != nil {
		existing, err := h.users.FindByEmail(ctx, email)
		switch {
		case err == nil:
			failure(c, http.StatusConflict, fmt.Sprintf("User %s already exists", existing.Email), nil)
			return
		case !errors.Is(err, common.ErrorNotFound):
			h.logger.Error(ctx, "user lookup failed", "error", err)
			failure(c, http.StatusInternalServerError, msgCreateFailed, nil)
			return
		}
	}

	if !h.validate(c, &req) {
		return
	}

	user, err := h.users.Create(ctx, email, validation.Str(req.Password))
	if err != nil {
		if errors.Is(err, common.ErrorConflict) {
			failure(c, http.StatusConflict, fmt.Sprintf("User %s already exists", email), nil)
			return
		}
		h.logger.Error(ctx, "user create failed", "error", err)
		failure(c, http.StatusInternalServerError, msgCreateFailed, nil)
		return
	}

	if !h.issueAndAttach(c, user.ID) {
		return
	}
	h.logger.Info(ctx, "user created", "user_id", user.ID)
	success(c, http.StatusCreated, fmt.Sprintf("User %s was successfully created", user.Email))
}

// UpdatePassword handles PATCH /user/password/update.
func (h *Handler) UpdatePassword(c *gin.Context) {
	ctx := c.Request.Context()

	var req validation.PasswordUpdatePayload
	if !h.decode(c, &req) {
		return
	}

	user, ok := CurrentUser(c)
	if !ok {
		failure(c, http.StatusNotFound, msgUserNotFound, nil)
		return
	}

	if !h.validate(c, &req) {
		return
	}

	err := h.users.UpdatePassword(ctx, user, validation.Str(req.PreviousPassword), validation.Str(req.Password))
	switch {
	case err == nil:
	case errors.Is(err, common.ErrorPreconditionFailed):
		failure(c, http.StatusPreconditionFailed, msgPreviousInvalid, nil)
		return
	case errors.Is(err, common.ErrorNotFound):
		failure(c, http.StatusNotFound, msgUserNotFound, nil)
		return
	default:
		h.logger.Error(ctx, "password update failed", "user_id", user.ID, "error", err)
		failure(c, http.StatusInternalServerError, msgUpdateFailed, nil)
		return
	}

	if !h.issueAndAttach(c, user.ID) {
		return
	}
	h.logger.Info(ctx, "password updated", "user_id", user.ID)
	success(c, http.StatusOK, msgUserUpdated)
}

// Index handles GET / and reports the authenticated user.
func (h *Handler) Index(c *gin.Context) {
	user, ok := CurrentUser(c)
	if !ok {
		failure(c, http.StatusUnauthorized, msgNoUser, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user": gin.H{"id": user.ID, "email": user.Email},
	})
}

// Health handles GET /health.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": serviceName,
	})
}

// --- helpers below ---

// decode parses the JSON body into req and answers 400 when it is not JSON.
func (h *Handler) decode(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		failure(c, http.StatusBadRequest, msgInvalidPayload, validation.Errors{{
			Loc:  []string{jsonInvalidErrorLabel},
			Msg:  err.Error(),
			Type: jsonInvalidErrorType,
		}})
		return false
	}
	return true
}

// validate answers 400 with every failing field.
func (h *Handler) validate(c *gin.Context, req any) bool {
	err := h.validator.Validate(req)
	if err == nil {
		return true
	}
	var ve validation.Errors
	if errors.As(err, &ve) {
		failure(c, http.StatusBadRequest, msgInvalidPayload, ve)
		return false
	}
	h.logger.Error(c.Request.Context(), "validator failed", "error", err)
	failure(c, http.StatusInternalServerError, msgInternalError, nil)
	return false
}

func (h *Handler) bind(c *gin.Context, req any) bool {
	return h.decode(c, req) && h.validate(c, req)
}

func (h *Handler) issueAndAttach(c *gin.Context, userID int64) bool {
	pair, err := h.tokens.IssuePair(userID)
	if err != nil {
		h.logger.Error(c.Request.Context(), "token issue failed", "user_id", userID, "error", err)
		failure(c, http.StatusInternalServerError, msgInternalError, nil)
		return false
	}
	h.cookies.AttachToResponse(c.Writer, pair.AccessToken, pair.RefreshToken)
	return true
}
