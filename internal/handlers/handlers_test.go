package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"minniegallery/internal/config"
	"minniegallery/internal/gallery"
	"minniegallery/internal/gateway"
	"minniegallery/internal/models"
	"minniegallery/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubGallery struct {
	items        []gallery.Item
	likesEnabled bool
	fetchErr     error
	fetches      int
	uploaded     *gallery.Inputs
	liked        []int64
	object       *gateway.Object
}

func (s *stubGallery) FetchAllImages(_ context.Context, store *gallery.Store) error {
	s.fetches++
	if s.fetchErr != nil {
		return s.fetchErr
	}
	store.Dispatch(gallery.SetItems{Items: s.items, Seq: store.BeginFetch()})
	return nil
}

func (s *stubGallery) FetchUserImages(ctx context.Context, store *gallery.Store) error {
	return s.FetchAllImages(ctx, store)
}

func (s *stubGallery) UploadImage(_ context.Context, store *gallery.Store) (gallery.Item, error) {
	in := store.Snapshot().Inputs
	if !in.Ready() {
		return gallery.Item{}, service.ErrMissingInputs
	}
	s.uploaded = &in
	item := gallery.Item{ID: 99, Title: *in.Title, ImageURL: "http://cdn/bucket/" + in.File.Name}
	store.Dispatch(gallery.AddItem{Item: item})
	store.Dispatch(gallery.ResetInputs{})
	return item, nil
}

func (s *stubGallery) DeleteImage(_ context.Context, store *gallery.Store, id int64, _ string) (service.DeleteResult, error) {
	store.Dispatch(gallery.DeleteItem{ID: id})
	return service.DeleteResult{}, nil
}

func (s *stubGallery) ToggleLike(ctx context.Context, store *gallery.Store, imageID int64) error {
	id, _ := gateway.IdentityFrom(ctx)
	s.liked = append(s.liked, imageID)
	store.Dispatch(gallery.ToggleLike{ImageID: imageID, UserID: id.ID})
	return nil
}

func (s *stubGallery) AddComment(_ context.Context, _ *gallery.Store, _ int64, comment string) error {
	if strings.TrimSpace(comment) == "" {
		return service.ErrEmptyComment
	}
	return nil
}

func (s *stubGallery) FetchInteractions(context.Context) ([]models.Interaction, error) {
	return nil, errors.New("connection refused")
}

func (s *stubGallery) LikesEnabled(context.Context) bool { return s.likesEnabled }

func (s *stubGallery) SetLikesEnabled(_ context.Context, enabled bool) error {
	s.likesEnabled = enabled
	return nil
}

func (s *stubGallery) Download(_ context.Context, store *gallery.Store, id int64) (*gateway.Object, gallery.Item, error) {
	item, ok := store.Find(id)
	if !ok {
		return nil, gallery.Item{}, service.ErrImageNotInView
	}
	return s.object, item, nil
}

type stubAuth struct {
	loggedOut []string
}

func (a *stubAuth) Authenticate(_ context.Context, token, _, _ string) (gateway.Identity, string, error) {
	if token != "good" {
		return gateway.Identity{}, "", errors.New("bad token")
	}
	return gateway.Identity{ID: "u1", Email: "a@x.io"}, "s1", nil
}

func (a *stubAuth) SignUp(_ context.Context, creds gateway.Credentials) (gateway.Identity, error) {
	return gateway.Identity{ID: "u2", Email: creds.Email}, nil
}

func (a *stubAuth) SignIn(_ context.Context, creds gateway.Credentials) (gateway.Session, error) {
	if creds.Password != "secret-pass" {
		return gateway.Session{}, service.ErrInvalidCredentials
	}
	return gateway.Session{
		AccessToken:  "access",
		RefreshToken: "refresh",
		DeviceID:     "d1",
		SessionID:    "s9",
		User:         gateway.Identity{ID: "u1", Email: creds.Email},
	}, nil
}

func (a *stubAuth) Verify(context.Context, string) (gateway.Identity, error) {
	return gateway.Identity{ID: "u1", Email: "a@x.io"}, nil
}

func (a *stubAuth) Refresh(context.Context, string, string) (gateway.Session, error) {
	return gateway.Session{}, service.ErrInvalidCredentials
}

func (a *stubAuth) Logout(_ context.Context, sessionID string) error {
	a.loggedOut = append(a.loggedOut, sessionID)
	return nil
}

type testEnv struct {
	router   *gin.Engine
	gallery  *stubGallery
	auth     *stubAuth
	registry *gallery.Registry
}

func newTestEnv(t *testing.T, checks map[string]Checker) testEnv {
	t.Helper()
	cfg := &config.AppConfig{
		Environment: "test",
		RateLimit:   config.RateLimitConfig{Requests: 100, Window: time.Minute, Burst: 100},
	}
	env := testEnv{
		router: gin.New(),
		gallery: &stubGallery{
			likesEnabled: true,
			items: []gallery.Item{
				{ID: 1, Title: "Sunset", ImageURL: "http://cdn/bucket/1-sunset.jpg"},
				{ID: 2, Title: "Mountains", ImageURL: "http://cdn/bucket/2-mountains.jpg"},
			},
		},
		auth:     &stubAuth{},
		registry: gallery.NewRegistry(time.Hour),
	}
	h := NewHandlerSet(zerolog.Nop(), cfg, Deps{
		Gallery:  env.gallery,
		Auth:     env.auth,
		Registry: env.registry,
		Checks:   checks,
	})
	h.RegisterPages(env.router)
	h.Register(env.router.Group("/api"))
	return env
}

func (e testEnv) do(method, target string, body io.Reader, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

var authed = map[string]string{"Authorization": "Bearer good", "Content-Type": "application/json"}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, map[string]Checker{
		"postgres": func(context.Context) error { return nil },
	})
	w := env.do(http.MethodGet, "/api/healthz", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])

	env = newTestEnv(t, map[string]Checker{
		"postgres": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("dial tcp: refused") },
	})
	w = env.do(http.MethodGet, "/api/healthz", nil, nil)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	body := decode(t, w)
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, map[string]any{"postgres": "ok", "redis": "error"}, body["checks"])
}

func TestGalleryRequiresToken(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(http.MethodGet, "/api/v1/gallery/state", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(http.MethodGet, "/", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSearchFiltersSessionState(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(http.MethodGet, "/", nil, authed)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, decode(t, w)["total"])

	w = env.do(http.MethodPut, "/api/v1/gallery/search", strings.NewReader(`{"query":"  sun "}`), authed)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.EqualValues(t, 2, body["total"])
	items := body["items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "Sunset", items[0].(map[string]any)["title"])

	// the store is kept per session
	w = env.do(http.MethodGet, "/api/v1/gallery/state", nil, authed)
	assert.Equal(t, "  sun ", decode(t, w)["search_query"])
	assert.Equal(t, 1, env.registry.Len())
}

func TestFormToggleAndInputs(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(http.MethodPost, "/api/v1/gallery/form/toggle", nil, authed)
	assert.Equal(t, true, decode(t, w)["image_upload_form_visible"])

	w = env.do(http.MethodPatch, "/api/v1/gallery/inputs", strings.NewReader(`{"title":"Cat"}`), authed)
	inputs := decode(t, w)["inputs"].(map[string]any)
	assert.Equal(t, "Cat", inputs["title"])
	assert.Nil(t, inputs["path"])

	w = env.do(http.MethodDelete, "/api/v1/gallery/inputs", nil, authed)
	inputs = decode(t, w)["inputs"].(map[string]any)
	assert.Nil(t, inputs["title"])
}

func multipartBody(t *testing.T, title string, withFile bool) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if title != "" {
		require.NoError(t, mw.WriteField("title", title))
	}
	if withFile {
		fw, err := mw.CreateFormFile("file", "cat.png")
		require.NoError(t, err)
		_, err = fw.Write([]byte("\x89PNG\r\n\x1a\nrest"))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestUpload(t *testing.T) {
	env := newTestEnv(t, nil)

	body, ct := multipartBody(t, "Cat", false)
	w := env.do(http.MethodPost, "/api/v1/gallery/upload", body, map[string]string{
		"Authorization": "Bearer good", "Content-Type": ct,
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "missing_inputs", decode(t, w)["error"])
	assert.Nil(t, env.gallery.uploaded)

	// the title from the first attempt is still in the inputs
	body, ct = multipartBody(t, "", true)
	w = env.do(http.MethodPost, "/api/v1/gallery/upload", body, map[string]string{
		"Authorization": "Bearer good", "Content-Type": ct,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	require.NotNil(t, env.gallery.uploaded)
	assert.Equal(t, "Cat", *env.gallery.uploaded.Title)
	assert.Equal(t, "cat.png", env.gallery.uploaded.File.Name)
	assert.Equal(t, "cat.png", *env.gallery.uploaded.Path)
}

func TestToggleLikeHonoursSetting(t *testing.T) {
	env := newTestEnv(t, nil)
	env.do(http.MethodGet, "/", nil, authed)

	w := env.do(http.MethodPost, "/api/v1/gallery/images/1/like", nil, authed)
	require.Equal(t, http.StatusOK, w.Code)
	item := decode(t, w)["item"].(map[string]any)
	assert.Equal(t, true, item["user_liked"])
	assert.EqualValues(t, 1, item["likes_count"])

	w = env.do(http.MethodPut, "/api/v1/settings/likes", strings.NewReader(`{"enabled":false}`), authed)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(http.MethodPost, "/api/v1/gallery/images/1/like", nil, authed)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "likes_disabled", decode(t, w)["error"])
	assert.Equal(t, []int64{1}, env.gallery.liked)

	w = env.do(http.MethodGet, "/api/v1/settings/likes", nil, nil)
	assert.Equal(t, false, decode(t, w)["likes_enabled"])
}

func TestSettingsWriteRequiresToken(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(http.MethodPut, "/api/v1/settings/likes", strings.NewReader(`{"enabled":false}`), nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.True(t, env.gallery.likesEnabled)
}

func TestCommentValidationAndBadID(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(http.MethodPost, "/api/v1/gallery/images/1/comments", strings.NewReader(`{"comment":"  "}`), authed)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "empty_comment", decode(t, w)["error"])

	w = env.do(http.MethodPost, "/api/v1/gallery/images/abc/comments", strings.NewReader(`{"comment":"hi"}`), authed)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_id", decode(t, w)["error"])
}

func TestUpstreamFailureIsBadGateway(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(http.MethodGet, "/api/v1/gallery/interactions", nil, authed)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "upstream_error", decode(t, w)["error"])
}

func TestDeleteImage(t *testing.T) {
	env := newTestEnv(t, nil)
	env.do(http.MethodGet, "/", nil, authed)

	w := env.do(http.MethodDelete, "/api/v1/gallery/images/2", nil, authed)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, decode(t, w)["deleted"])

	w = env.do(http.MethodGet, "/api/v1/gallery/state", nil, authed)
	assert.EqualValues(t, 1, decode(t, w)["total"])
}

func TestImageDetailForAnonymousViewer(t *testing.T) {
	env := newTestEnv(t, nil)
	c := "nice"
	env.gallery.items[0].Interactions = []models.Interaction{
		{ID: 1, ImageID: 1, UserID: "u3", Like: true},
		{ID: 2, ImageID: 1, UserID: "u4", Comment: &c},
	}
	env.gallery.items[0].CommentsCount = 1

	w := env.do(http.MethodGet, "/download/1", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "/download/1/file", body["download_url"])
	comments := body["comments"].([]any)
	require.Len(t, comments, 1)
	assert.Equal(t, "nice", comments[0].(map[string]any)["comment"])
	assert.Equal(t, 0, env.registry.Len())

	w = env.do(http.MethodGet, "/download/42", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestImageDetailIgnoresSearchQuery(t *testing.T) {
	env := newTestEnv(t, nil)
	env.do(http.MethodGet, "/", nil, authed)
	env.do(http.MethodPut, "/api/v1/gallery/search", strings.NewReader(`{"query":"mountains"}`), authed)
	require.Equal(t, 1, env.gallery.fetches)

	w := env.do(http.MethodGet, "/download/1", nil, authed)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Sunset", decode(t, w)["item"].(map[string]any)["title"])
	assert.Equal(t, 1, env.gallery.fetches, "an item already in the store is served without refetching")
}

func TestDownloadFile(t *testing.T) {
	env := newTestEnv(t, nil)
	env.gallery.object = &gateway.Object{
		Key:         "1700000000000-sunset.jpg",
		Size:        5,
		ContentType: "image/jpeg",
		Body:        io.NopCloser(strings.NewReader("bytes")),
	}

	w := env.do(http.MethodGet, "/download/1/file", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/jpeg", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="1700000000000-sunset.jpg"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "bytes", w.Body.String())
}

func TestSignInAndLogout(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(http.MethodPost, "/api/v1/auth/signin",
		strings.NewReader(`{"email":"a@x.io","password":"wrong"}`), map[string]string{"Content-Type": "application/json"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(http.MethodPost, "/api/v1/auth/signin",
		strings.NewReader(`{"email":"a@x.io","password":"secret-pass"}`), map[string]string{"Content-Type": "application/json"})
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "access", body["accessToken"])
	assert.Equal(t, "refresh", body["refreshToken"])

	env.do(http.MethodGet, "/api/v1/gallery/state", nil, authed)
	require.Equal(t, 1, env.registry.Len())

	w = env.do(http.MethodPost, "/api/v1/auth/logout", nil, authed)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, []string{"s1"}, env.auth.loggedOut)
	assert.Equal(t, 0, env.registry.Len())
}

func TestSignUpIsPending(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(http.MethodPost, "/api/v1/auth/signup",
		strings.NewReader(`{"email":"new@x.io","password":"secret-pass"}`), map[string]string{"Content-Type": "application/json"})
	require.Equal(t, http.StatusAccepted, w.Code)
	body := decode(t, w)
	assert.Equal(t, "verification_pending", body["status"])
	assert.Equal(t, "new@x.io", body["user"].(map[string]any)["email"])
}
