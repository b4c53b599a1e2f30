package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"minniegallery/internal/gateway"
	"minniegallery/internal/middleware"
)

type credentialsRequest struct {
	Email      string `json:"email" binding:"required"`
	Password   string `json:"password" binding:"required"`
	DeviceID   string `json:"deviceId"`
	DeviceName string `json:"deviceName"`
}

func (r credentialsRequest) credentials(c *gin.Context) gateway.Credentials {
	return gateway.Credentials{
		Email:      r.Email,
		Password:   r.Password,
		DeviceID:   r.DeviceID,
		DeviceName: r.DeviceName,
		IPAddress:  c.ClientIP(),
		UserAgent:  c.GetHeader("User-Agent"),
	}
}

type authResponse struct {
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
	DeviceID     string       `json:"deviceId"`
	User         userResponse `json:"user"`
}

type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

func toUser(id gateway.Identity) userResponse {
	return userResponse{ID: id.ID, Email: id.Email}
}

func (h HandlerSet) SignUp(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, err := h.auth.SignUp(c.Request.Context(), req.credentials(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"user":   toUser(id),
		"status": "verification_pending",
	})
}

func (h HandlerSet) SignIn(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := h.auth.SignIn(c.Request.Context(), req.credentials(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	sendSession(c, session)
}

func (h HandlerSet) Verify(c *gin.Context) {
	id, err := h.auth.Verify(c.Request.Context(), c.Query("token"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": toUser(id), "status": "active"})
}

type refreshRequest struct {
	DeviceID     string `json:"deviceId"`
	RefreshToken string `json:"refreshToken" binding:"required"`
}

func (h HandlerSet) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := h.auth.Refresh(c.Request.Context(), req.RefreshToken, req.DeviceID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	sendSession(c, session)
}

func (h HandlerSet) Logout(c *gin.Context) {
	sid, _ := middleware.SessionID(c)
	if err := h.auth.Logout(c.Request.Context(), sid); err != nil {
		h.writeError(c, err)
		return
	}
	if h.registry != nil {
		h.registry.Drop(sid)
	}
	c.Status(http.StatusNoContent)
}

func (h HandlerSet) Me(c *gin.Context) {
	id, ok := gateway.IdentityFrom(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": toUser(id)})
}

func sendSession(c *gin.Context, session gateway.Session) {
	c.JSON(http.StatusOK, authResponse{
		AccessToken:  session.AccessToken,
		RefreshToken: session.RefreshToken,
		DeviceID:     session.DeviceID,
		User:         toUser(session.User),
	})
}
