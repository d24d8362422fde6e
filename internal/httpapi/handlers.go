package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"intercom-platform/internal/auth"
	"intercom-platform/internal/privatecall"
	"intercom-platform/internal/rbac"
	"intercom-platform/internal/users"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
//
// The private-call wire format uses camelCase keys and a top-level
// "success" flag; mobile clients already speak this shape.

type Handlers struct {
	Auth  *auth.Manager
	Users *users.Service
	Calls *privatecall.Service
}

// --- Auth ---

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h Handlers) Login(c *gin.Context) {
	if h.Auth == nil || h.Users == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	res, err := h.Users.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, users.ErrInvalidCredentials):
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		case errors.Is(err, users.ErrInvalidArgument):
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "username and password required"})
		default:
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"accessToken":  res.Tokens.AccessToken,
		"refreshToken": res.Tokens.RefreshToken,
		"user":         res.User,
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (h Handlers) Refresh(c *gin.Context) {
	if h.Auth == nil || h.Users == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "refreshToken required"})
		return
	}
	claims, err := h.Auth.Verify(req.RefreshToken, auth.TokenTypeRefresh, time.Now())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
		return
	}
	u, err := h.Users.Get(c.Request.Context(), claims.UserID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unknown user"})
		return
	}
	pair, err := h.Auth.IssuePair(time.Now(), u.ID, u.Username, u.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"accessToken": pair.AccessToken, "refreshToken": pair.RefreshToken})
}

// --- Private calls ---

type inviteRequest struct {
	ReceiverID int `json:"receiverId"`
}

func (h Handlers) SendInvitation(c *gin.Context) {
	callerID, ok := h.caller(c)
	if !ok {
		return
	}
	var req inviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		callFail(c, http.StatusBadRequest, "invalid json")
		return
	}

	u, err := h.Users.Get(c.Request.Context(), callerID)
	if err != nil {
		callFail(c, http.StatusUnauthorized, "unknown caller")
		return
	}
	inv, err := h.Calls.Send(c.Request.Context(), privatecall.Caller{
		ID:    u.ID,
		Name:  u.Username,
		Email: u.Email,
		Role:  u.Role,
	}, req.ReceiverID)
	if err != nil {
		callError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "invitation": inv})
}

func (h Handlers) IncomingCalls(c *gin.Context) {
	userID, ok := h.pathUser(c)
	if !ok {
		return
	}
	invs, err := h.Calls.Incoming(c.Request.Context(), userID)
	if err != nil {
		callError(c, err)
		return
	}
	if invs == nil {
		invs = []privatecall.Invitation{}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "incomingCalls": invs})
}

func (h Handlers) AcceptInvitation(c *gin.Context) {
	h.transition(c, h.Calls.Accept)
}

func (h Handlers) RejectInvitation(c *gin.Context) {
	h.transition(c, h.Calls.Reject)
}

func (h Handlers) CancelInvitation(c *gin.Context) {
	h.transition(c, h.Calls.Cancel)
}

type endRequest struct {
	Reason string `json:"reason"`
}

func (h Handlers) EndCall(c *gin.Context) {
	callerID, ok := h.caller(c)
	if !ok {
		return
	}
	invitationID := c.Param("invitationId")
	var req endRequest
	// Body is optional; a bare POST ends with no reason.
	_ = c.ShouldBindJSON(&req)

	inv, err := h.Calls.End(c.Request.Context(), invitationID, callerID, req.Reason)
	if err != nil {
		callError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "invitation": inv})
}

func (h Handlers) InvitationStatus(c *gin.Context) {
	if _, ok := h.caller(c); !ok {
		return
	}
	invitationID := c.Param("invitationId")
	userID, err := strconv.Atoi(c.Param("userId"))
	if err != nil || userID <= 0 {
		callFail(c, http.StatusBadRequest, "invalid userId")
		return
	}
	inv, err := h.Calls.Status(c.Request.Context(), invitationID, userID)
	if err != nil {
		callError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "status": inv.Status, "invitation": inv})
}

func (h Handlers) CallStats(c *gin.Context) {
	userID, ok := h.pathUser(c)
	if !ok {
		return
	}
	var window time.Duration
	if days, err := strconv.Atoi(c.DefaultQuery("daysBack", "0")); err == nil && days > 0 {
		window = time.Duration(days) * 24 * time.Hour
	}
	st, err := h.Calls.Stats(c.Request.Context(), userID, window)
	if err != nil {
		callError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "stats": st})
}

type cleanupRequest struct {
	OlderThanHours int `json:"olderThanHours"`
}

// CleanupInvitations purges old terminal invitations.
// RBAC: admin only.
func (h Handlers) CleanupInvitations(c *gin.Context) {
	var req cleanupRequest
	_ = c.ShouldBindJSON(&req)
	if req.OlderThanHours <= 0 {
		req.OlderThanHours = 24
	}
	n, err := h.Calls.Cleanup(c.Request.Context(), time.Duration(req.OlderThanHours)*time.Hour)
	if err != nil {
		callError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "deleted": n})
}

// --- helpers ---

// transition factors the accept/reject/cancel handlers, which differ only
// in the service method they call.
func (h Handlers) transition(c *gin.Context, op func(ctx context.Context, id string, userID int) (privatecall.Invitation, error)) {
	callerID, ok := h.caller(c)
	if !ok {
		return
	}
	invitationID := c.Param("invitationId")
	inv, err := op(c.Request.Context(), invitationID, callerID)
	if err != nil {
		callError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "invitation": inv})
}

// caller extracts the authenticated user id or writes a 401.
func (h Handlers) caller(c *gin.Context) (int, bool) {
	id, err := auth.UserID(c.Request.Context())
	if err != nil || id <= 0 {
		callFail(c, http.StatusUnauthorized, "authentication required")
		return 0, false
	}
	return id, true
}

// pathUser parses :userId and requires it to match the token identity
// (admins may read on behalf of any user).
func (h Handlers) pathUser(c *gin.Context) (int, bool) {
	callerID, ok := h.caller(c)
	if !ok {
		return 0, false
	}
	userID, err := strconv.Atoi(c.Param("userId"))
	if err != nil || userID <= 0 {
		callFail(c, http.StatusBadRequest, "invalid userId")
		return 0, false
	}
	if userID != callerID {
		role, _ := auth.Role(c.Request.Context())
		if !rbac.IsAdmin(role) {
			callFail(c, http.StatusForbidden, "not your resource")
			return 0, false
		}
	}
	return userID, true
}

func callFail(c *gin.Context, code int, msg string) {
	c.AbortWithStatusJSON(code, gin.H{"success": false, "message": msg})
}

func callError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, privatecall.ErrNotFound):
		callFail(c, http.StatusNotFound, "invitation not found")
	case errors.Is(err, privatecall.ErrForbidden):
		callFail(c, http.StatusForbidden, "not a participant")
	case errors.Is(err, privatecall.ErrInvalidArgument):
		callFail(c, http.StatusBadRequest, "invalid request")
	case errors.Is(err, privatecall.ErrConflict):
		// The invitation moved to another status first; the current
		// server state wins and clients should re-poll.
		callFail(c, http.StatusConflict, "invitation status changed")
	case errors.Is(err, privatecall.ErrReceiverUnavailable):
		callFail(c, http.StatusConflict, "receiver unavailable")
	case errors.Is(err, privatecall.ErrUserBusy):
		callFail(c, http.StatusConflict, "user already in a call")
	default:
		callFail(c, http.StatusInternalServerError, "internal error")
	}
}
