package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"minniegallery/internal/config"
	"minniegallery/internal/gallery"
	"minniegallery/internal/gateway"
	"minniegallery/internal/middleware"
	"minniegallery/internal/models"
	"minniegallery/internal/service"
)

// GalleryAPI is the set of synchronization operations the handlers drive.
type GalleryAPI interface {
	FetchAllImages(ctx context.Context, store *gallery.Store) error
	FetchUserImages(ctx context.Context, store *gallery.Store) error
	UploadImage(ctx context.Context, store *gallery.Store) (gallery.Item, error)
	DeleteImage(ctx context.Context, store *gallery.Store, id int64, imageURL string) (service.DeleteResult, error)
	ToggleLike(ctx context.Context, store *gallery.Store, imageID int64) error
	AddComment(ctx context.Context, store *gallery.Store, imageID int64, comment string) error
	FetchInteractions(ctx context.Context) ([]models.Interaction, error)
	LikesEnabled(ctx context.Context) bool
	SetLikesEnabled(ctx context.Context, enabled bool) error
	Download(ctx context.Context, store *gallery.Store, imageID int64) (*gateway.Object, gallery.Item, error)
}

// AuthAPI covers account and session management.
type AuthAPI interface {
	middleware.Authenticator
	SignUp(ctx context.Context, creds gateway.Credentials) (gateway.Identity, error)
	SignIn(ctx context.Context, creds gateway.Credentials) (gateway.Session, error)
	Verify(ctx context.Context, token string) (gateway.Identity, error)
	Refresh(ctx context.Context, refreshToken, deviceID string) (gateway.Session, error)
	Logout(ctx context.Context, sessionID string) error
}

// Checker reports the health of one dependency.
type Checker func(ctx context.Context) error

type Deps struct {
	Gallery  GalleryAPI
	Auth     AuthAPI
	Registry *gallery.Registry
	Limiter  *middleware.RateLimiter
	Checks   map[string]Checker
}

type HandlerSet struct {
	log      zerolog.Logger
	cfg      *config.AppConfig
	gallery  GalleryAPI
	auth     AuthAPI
	registry *gallery.Registry
	limiter  *middleware.RateLimiter
	checks   map[string]Checker
}

func NewHandlerSet(log zerolog.Logger, cfg *config.AppConfig, deps Deps) HandlerSet {
	limiter := deps.Limiter
	if limiter == nil {
		limiter = middleware.NewRateLimiter(cfg.RateLimit)
	}
	return HandlerSet{
		log:      log,
		cfg:      cfg,
		gallery:  deps.Gallery,
		auth:     deps.Auth,
		registry: deps.Registry,
		limiter:  limiter,
		checks:   deps.Checks,
	}
}

// RegisterPages mounts the page routes at the root of the engine.
func (h HandlerSet) RegisterPages(router gin.IRouter) {
	optional := middleware.OptionalAuth(h.auth)

	router.GET("/", middleware.Auth(h.auth), h.Index)
	router.GET("/home", optional, h.Home)
	router.GET("/about", h.About)
	router.GET("/download/:imageId", optional, h.ImageDetail)
	router.GET("/download/:imageId/file", optional, h.DownloadFile)
}

// Register mounts the JSON API under router (normally "/api").
func (h HandlerSet) Register(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	v1 := router.Group("/v1")

	auth := v1.Group("/auth")
	{
		limited := h.limiter.Middleware()
		auth.POST("/signup", limited, h.SignUp)
		auth.POST("/signin", limited, h.SignIn)
		auth.POST("/refresh", limited, h.Refresh)
		auth.GET("/verify", limited, h.Verify)
		auth.POST("/logout", middleware.Auth(h.auth), h.Logout)
		auth.GET("/me", middleware.Auth(h.auth), h.Me)
	}

	g := v1.Group("/gallery")
	g.Use(middleware.Auth(h.auth))
	{
		g.GET("/state", h.State)
		g.POST("/form/toggle", h.ToggleForm)
		g.PATCH("/inputs", h.UpdateInputs)
		g.DELETE("/inputs", h.ResetInputs)
		g.PUT("/search", h.SetSearch)
		g.POST("/upload", h.Upload)
		g.DELETE("/images/:id", h.DeleteImage)
		g.POST("/images/:id/like", h.ToggleLike)
		g.POST("/images/:id/comments", h.AddComment)
		g.GET("/interactions", h.Interactions)
	}

	settings := v1.Group("/settings")
	settings.GET("/likes", h.GetLikes)
	settings.PUT("/likes", middleware.Auth(h.auth), h.PutLikes)
}

// sessionStore returns the store of the caller's session. Anonymous callers
// get a throwaway store.
func (h HandlerSet) sessionStore(c *gin.Context) *gallery.Store {
	if sid, ok := middleware.SessionID(c); ok && h.registry != nil {
		return h.registry.Get(sid)
	}
	return gallery.NewStore(gallery.InitialState())
}

type stateResponse struct {
	Items       []gallery.Item `json:"items"`
	Total       int            `json:"total"`
	SearchQuery string         `json:"search_query"`
	FormVisible bool           `json:"image_upload_form_visible"`
	Inputs      inputsResponse `json:"inputs"`
}

type inputsResponse struct {
	Title    *string `json:"title"`
	Path     *string `json:"path"`
	FileName *string `json:"file_name"`
}

func stateOf(store *gallery.Store) stateResponse {
	snap := store.Snapshot()
	resp := stateResponse{
		Items:       store.FilteredItems(),
		Total:       len(snap.Items),
		SearchQuery: snap.SearchQuery,
		FormVisible: snap.ImageUploadFormVisible,
		Inputs: inputsResponse{
			Title: snap.Inputs.Title,
			Path:  snap.Inputs.Path,
		},
	}
	if snap.Inputs.File != nil {
		name := snap.Inputs.File.Name
		resp.Inputs.FileName = &name
	}
	return resp
}

func paramID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_id"})
		return 0, false
	}
	return id, true
}
