package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"minniegallery/internal/cache"
	"minniegallery/internal/gateway"
	"minniegallery/internal/media"
	"minniegallery/internal/repository"
	"minniegallery/internal/service"
)

type errorMapping struct {
	err    error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{service.ErrMissingInputs, http.StatusBadRequest, "missing_inputs"},
	{service.ErrEmptyComment, http.StatusBadRequest, "empty_comment"},
	{service.ErrBadImageURL, http.StatusBadRequest, "bad_image_url"},
	{service.ErrInvalidInput, http.StatusBadRequest, "invalid_input"},
	{media.ErrNotImage, http.StatusBadRequest, "not_an_image"},
	{cache.ErrVerificationInvalid, http.StatusBadRequest, "invalid_verification_token"},
	{service.ErrNotAuthenticated, http.StatusUnauthorized, "unauthorized"},
	{service.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials"},
	{service.ErrUserSuspended, http.StatusForbidden, "user_suspended"},
	{service.ErrEmailUnverified, http.StatusForbidden, "email_unverified"},
	{service.ErrLikesDisabled, http.StatusForbidden, "likes_disabled"},
	{service.ErrImageNotInView, http.StatusNotFound, "image_not_found"},
	{gateway.ErrNotFound, http.StatusNotFound, "not_found"},
	{repository.ErrEmailTaken, http.StatusConflict, "email_taken"},
	{context.DeadlineExceeded, http.StatusGatewayTimeout, "timeout"},
}

// writeError maps err onto a status code. Anything unrecognised came from a
// remote dependency and is reported as a bad gateway.
func (h HandlerSet) writeError(c *gin.Context, err error) {
	_ = c.Error(err)
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			c.JSON(m.status, gin.H{"error": m.code})
			return
		}
	}
	h.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	c.JSON(http.StatusBadGateway, gin.H{"error": "upstream_error"})
}
