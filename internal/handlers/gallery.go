package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"minniegallery/internal/gallery"
	"minniegallery/internal/gateway"
	"minniegallery/internal/service"
)

const maxUploadBytes = 20 << 20

var errNoFile = errors.New("file is required")

func (h HandlerSet) State(c *gin.Context) {
	c.JSON(http.StatusOK, stateOf(h.sessionStore(c)))
}

func (h HandlerSet) ToggleForm(c *gin.Context) {
	store := h.sessionStore(c)
	store.Dispatch(gallery.ToggleForm{})
	c.JSON(http.StatusOK, stateOf(store))
}

type inputsRequest struct {
	Title *string `json:"title"`
	Path  *string `json:"path"`
}

func (h HandlerSet) UpdateInputs(c *gin.Context) {
	var req inputsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	store := h.sessionStore(c)
	store.Dispatch(gallery.UpdateInputs{Title: req.Title, Path: req.Path})
	c.JSON(http.StatusOK, stateOf(store))
}

func (h HandlerSet) ResetInputs(c *gin.Context) {
	store := h.sessionStore(c)
	store.Dispatch(gallery.ResetInputs{})
	c.JSON(http.StatusOK, stateOf(store))
}

type searchRequest struct {
	Query string `json:"query"`
}

func (h HandlerSet) SetSearch(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	store := h.sessionStore(c)
	store.Dispatch(gallery.SetSearchQuery{Query: req.Query})
	c.JSON(http.StatusOK, stateOf(store))
}

// Upload fills the inputs from a multipart form (fields "title" and "file")
// and then runs the upload with whatever the inputs hold.
func (h HandlerSet) Upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)
	store := h.sessionStore(c)

	update := gallery.UpdateInputs{}
	if title, ok := c.GetPostForm("title"); ok {
		update.Title = &title
	}
	fh, err := c.FormFile("file")
	switch {
	case err == nil:
		f, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable_file"})
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file_too_large"})
			return
		}
		name := fh.Filename
		update.File = &gateway.File{Name: name, ContentType: fh.Header.Get("Content-Type"), Data: data}
		update.Path = &name
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
	default:
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file_too_large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": errNoFile.Error()})
		return
	}
	if update.Title != nil || update.File != nil {
		store.Dispatch(update)
	}

	item, err := h.gallery.UploadImage(c.Request.Context(), store)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"item": item})
}

func (h HandlerSet) DeleteImage(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	store := h.sessionStore(c)

	imageURL := c.Query("url")
	if imageURL == "" {
		if item, ok := store.Find(id); ok {
			imageURL = item.ImageURL
		}
	}

	res, err := h.gallery.DeleteImage(c.Request.Context(), store, id, imageURL)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id, "orphaned": res.Orphaned})
}

func (h HandlerSet) ToggleLike(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if !h.gallery.LikesEnabled(c.Request.Context()) {
		h.writeError(c, service.ErrLikesDisabled)
		return
	}

	store := h.sessionStore(c)
	if err := h.gallery.ToggleLike(c.Request.Context(), store, id); err != nil {
		h.writeError(c, err)
		return
	}
	h.respondItem(c, store, id)
}

type commentRequest struct {
	Comment string `json:"comment"`
}

func (h HandlerSet) AddComment(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	store := h.sessionStore(c)
	if err := h.gallery.AddComment(c.Request.Context(), store, id, req.Comment); err != nil {
		h.writeError(c, err)
		return
	}
	h.respondItem(c, store, id)
}

func (h HandlerSet) Interactions(c *gin.Context) {
	rows, err := h.gallery.FetchInteractions(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"interactions": rows})
}

// respondItem returns the item when the store holds it and an empty
// acknowledgement otherwise.
func (h HandlerSet) respondItem(c *gin.Context, store *gallery.Store, id int64) {
	if item, ok := store.Find(id); ok {
		c.JSON(http.StatusOK, gin.H{"item": item})
		return
	}
	c.JSON(http.StatusOK, gin.H{"item": nil})
}
