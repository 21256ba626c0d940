package httpapi

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/dmitrijs2005/cookieauth/internal/common"
	"github.com/dmitrijs2005/cookieauth/internal/server/auth"
	"github.com/dmitrijs2005/cookieauth/internal/server/models"
	"github.com/gin-gonic/gin"
)

// Context keys set by the guards.
const (
	ContextUserIDKey = "auth.user_id"
	ContextUserKey   = "auth.user"
)

const msgUnableToAuthenticate = "Unable to authenticate"

// RequireAccess rejects requests without a valid access cookie.
func (h *Handler) RequireAccess() gin.HandlerFunc {
	return h.requireToken(auth.KindAccess)
}

// RequireRefresh rejects requests without a valid refresh cookie.
func (h *Handler) RequireRefresh() gin.HandlerFunc {
	return h.requireToken(auth.KindRefresh)
}

// requireToken verifies the cookie of the given kind and stores the user id.
// The user row is attached when it still exists; handlers decide how to
// answer a vanished user.
func (h *Handler) requireToken(kind auth.TokenKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		read, name := h.cookies.AccessToken, h.cookies.AccessName
		if kind == auth.KindRefresh {
			read, name = h.cookies.RefreshToken, h.cookies.RefreshName
		}

		token, ok := read(c.Request)
		if !ok {
			abortFailure(c, http.StatusUnauthorized, msgUnableToAuthenticate,
				[]string{fmt.Sprintf("Missing cookie %q", name)})
			return
		}

		userID, err := h.tokens.VerifyToken(token, kind)
		if err != nil {
			abortFailure(c, http.StatusUnauthorized, msgUnableToAuthenticate, []string{tokenErrorReason(err)})
			return
		}

		if !h.loadUser(c, userID) {
			return
		}
		c.Next()
	}
}

// OptionalAccess attaches the user when a valid access cookie is present and
// never rejects the request on its own.
func (h *Handler) OptionalAccess() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := h.cookies.AccessToken(c.Request)
		if ok {
			if userID, err := h.tokens.VerifyToken(token, auth.KindAccess); err == nil {
				if !h.loadUser(c, userID) {
					return
				}
			}
		}
		c.Next()
	}
}

// loadUser stores userID and, when found, the user row. It aborts only on a
// storage failure.
func (h *Handler) loadUser(c *gin.Context, userID int64) bool {
	c.Set(ContextUserIDKey, userID)

	user, err := h.users.FindByID(c.Request.Context(), userID)
	switch {
	case err == nil:
		c.Set(ContextUserKey, user)
	case errors.Is(err, common.ErrorNotFound):
	default:
		h.logger.Error(c.Request.Context(), "user lookup failed", "user_id", userID, "error", err)
		abortFailure(c, http.StatusInternalServerError, msgInternalError, nil)
		return false
	}
	return true
}

// CurrentUser returns the user attached by a guard, if any.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(ContextUserKey)
	if !ok {
		return nil, false
	}
	u, ok := v.(*models.User)
	return u, ok && u != nil
}

func tokenErrorReason(err error) string {
	if errors.Is(err, common.ErrTokenExpired) {
		return "Token has expired"
	}
	return "Invalid token"
}
