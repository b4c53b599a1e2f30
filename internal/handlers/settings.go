package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h HandlerSet) GetLikes(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"likes_enabled": h.gallery.LikesEnabled(c.Request.Context())})
}

type likesRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

func (h HandlerSet) PutLikes(c *gin.Context) {
	var req likesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.gallery.SetLikesEnabled(c.Request.Context(), *req.Enabled); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"likes_enabled": *req.Enabled})
}
