package handlers

import (
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"

	"github.com/gin-gonic/gin"

	"minniegallery/internal/gallery"
	"minniegallery/internal/models"
	"minniegallery/internal/service"
)

// Index is the viewer's own feed.
func (h HandlerSet) Index(c *gin.Context) {
	store := h.sessionStore(c)
	if err := h.gallery.FetchUserImages(c.Request.Context(), store); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stateOf(store))
}

type homeResponse struct {
	stateResponse
	LikesEnabled bool `json:"likes_enabled"`
}

// Home is the public feed of every upload.
func (h HandlerSet) Home(c *gin.Context) {
	store := h.sessionStore(c)
	if err := h.gallery.FetchAllImages(c.Request.Context(), store); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, homeResponse{
		stateResponse: stateOf(store),
		LikesEnabled:  h.gallery.LikesEnabled(c.Request.Context()),
	})
}

func (h HandlerSet) About(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":        "MinnieGallery",
		"description": "Share photos, browse everyone's uploads, like and comment on the ones you enjoy.",
		"features": []string{
			"Upload images with a title",
			"Search the feed by title",
			"Like and comment on photos",
			"Download originals",
		},
	})
}

type detailResponse struct {
	Item         gallery.Item         `json:"item"`
	Comments     []models.Interaction `json:"comments"`
	DownloadURL  string               `json:"download_url"`
	LikesEnabled bool                 `json:"likes_enabled"`
}

// ImageDetail serves the item from the caller's store, loading the public
// feed first when the store does not hold it. The search query plays no part.
func (h HandlerSet) ImageDetail(c *gin.Context) {
	id, ok := paramID(c, "imageId")
	if !ok {
		return
	}

	_, item, err := h.findItem(c, id)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, detailResponse{
		Item:         item,
		Comments:     item.Comments(),
		DownloadURL:  "/download/" + strconv.FormatInt(id, 10) + "/file",
		LikesEnabled: h.gallery.LikesEnabled(c.Request.Context()),
	})
}

func (h HandlerSet) DownloadFile(c *gin.Context) {
	id, ok := paramID(c, "imageId")
	if !ok {
		return
	}

	store, _, err := h.findItem(c, id)
	if err != nil {
		h.writeError(c, err)
		return
	}

	obj, _, err := h.gallery.Download(c.Request.Context(), store, id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	defer obj.Body.Close()

	contentType := obj.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", path.Base(obj.Key)))
	c.Header("Content-Type", contentType)
	if obj.Size > 0 {
		c.Header("Content-Length", strconv.FormatInt(obj.Size, 10))
	}
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, obj.Body); err != nil {
		h.log.Warn().Err(err).Int64("image_id", id).Msg("download interrupted")
	}
}

func (h HandlerSet) findItem(c *gin.Context, id int64) (*gallery.Store, gallery.Item, error) {
	store := h.sessionStore(c)
	if item, ok := store.Find(id); ok {
		return store, item, nil
	}
	if err := h.gallery.FetchAllImages(c.Request.Context(), store); err != nil {
		return nil, gallery.Item{}, err
	}
	item, ok := store.Find(id)
	if !ok {
		return nil, gallery.Item{}, service.ErrImageNotInView
	}
	return store, item, nil
}
