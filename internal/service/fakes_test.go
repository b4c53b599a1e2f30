package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"minniegallery/internal/gateway"
	"minniegallery/internal/models"
)

var errRemote = errors.New("remote unavailable")

// calls counts every remote call made through the fakes.
type calls struct {
	mu sync.Mutex
	n  map[string]int
}

func (c *calls) hit(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.n == nil {
		c.n = map[string]int{}
	}
	c.n[name]++
}

func (c *calls) total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := 0
	for _, v := range c.n {
		total += v
	}
	return total
}

func (c *calls) get(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n[name]
}

type fakeAuth struct {
	calls *calls
}

func (f *fakeAuth) CurrentUser(ctx context.Context) (*gateway.Identity, error) {
	f.calls.hit("auth.current")
	id, ok := gateway.IdentityFrom(ctx)
	if !ok {
		return nil, nil
	}
	return &id, nil
}

func (f *fakeAuth) SignIn(context.Context, gateway.Credentials) (gateway.Session, error) {
	return gateway.Session{}, errors.New("not implemented")
}

func (f *fakeAuth) SignUp(context.Context, gateway.Credentials) (gateway.Identity, error) {
	return gateway.Identity{}, errors.New("not implemented")
}

type fakeImages struct {
	calls     *calls
	mu        sync.Mutex
	rows      []models.Image
	nextID    int64
	listErr   error
	insertErr error
	deleteErr error
}

func (f *fakeImages) List(_ context.Context, q gateway.ImageQuery) ([]models.Image, error) {
	f.calls.hit("images.list")
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Image{}
	for _, r := range f.rows {
		if q.UserID == "" || r.UserID == q.UserID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeImages) Insert(_ context.Context, img models.NewImage) (models.Image, error) {
	f.calls.hit("images.insert")
	if f.insertErr != nil {
		return models.Image{}, f.insertErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	row := models.Image{ID: f.nextID, Title: img.Title, ImageURL: img.ImageURL, UserID: img.UserID}
	f.rows = append([]models.Image{row}, f.rows...)
	return row, nil
}

func (f *fakeImages) Delete(_ context.Context, id int64, ownerID string) (models.Image, error) {
	f.calls.hit("images.delete")
	if f.deleteErr != nil {
		return models.Image{}, f.deleteErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, r := range f.rows {
		if r.ID == id && r.UserID == ownerID {
			f.rows = append(f.rows[:i], f.rows[i+1:]...)
			return r, nil
		}
	}
	return models.Image{}, fmt.Errorf("image %w", gateway.ErrNotFound)
}

type fakeInteractions struct {
	calls     *calls
	mu        sync.Mutex
	rows      []models.Interaction
	nextID    int64
	listErr   error
	insertErr error
	lastQuery gateway.InteractionQuery
}

func (f *fakeInteractions) match(in models.Interaction, q gateway.InteractionQuery) bool {
	if q.ImageIDs != nil {
		found := false
		for _, id := range q.ImageIDs {
			if id == in.ImageID {
				found = true
			}
		}
		if !found {
			return false
		}
	}
	if q.ImageID != 0 && in.ImageID != q.ImageID {
		return false
	}
	if q.UserID != "" && in.UserID != q.UserID {
		return false
	}
	if q.LikesOnly && !in.Like {
		return false
	}
	return true
}

func (f *fakeInteractions) List(_ context.Context, q gateway.InteractionQuery) ([]models.Interaction, error) {
	f.calls.hit("interactions.list")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastQuery = q
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := []models.Interaction{}
	for _, r := range f.rows {
		if f.match(r, q) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeInteractions) Insert(_ context.Context, in models.Interaction) (models.Interaction, error) {
	f.calls.hit("interactions.insert")
	if f.insertErr != nil {
		return models.Interaction{}, f.insertErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	in.ID = f.nextID
	f.rows = append(f.rows, in)
	return in, nil
}

func (f *fakeInteractions) Delete(_ context.Context, q gateway.InteractionQuery) (int64, error) {
	f.calls.hit("interactions.delete")
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.rows[:0]
	var n int64
	for _, r := range f.rows {
		if f.match(r, q) {
			n++
			continue
		}
		kept = append(kept, r)
	}
	f.rows = kept
	return n, nil
}

type fakeUsers struct {
	calls  *calls
	emails map[string]string
}

func (f *fakeUsers) Email(_ context.Context, userID string) (string, error) {
	f.calls.hit("users.email")
	email, ok := f.emails[userID]
	if !ok {
		return "", gateway.ErrNotFound
	}
	return email, nil
}

type fakeSettings struct {
	calls     *calls
	values    map[string]string
	getErr    error
	upsertErr error
}

func (f *fakeSettings) Get(_ context.Context, key string) (string, error) {
	f.calls.hit("settings.get")
	if f.getErr != nil {
		return "", f.getErr
	}
	v, ok := f.values[key]
	if !ok {
		return "", fmt.Errorf("setting %w", gateway.ErrNotFound)
	}
	return v, nil
}

func (f *fakeSettings) Upsert(_ context.Context, key, value string) error {
	f.calls.hit("settings.upsert")
	if f.upsertErr != nil {
		return f.upsertErr
	}
	if f.values == nil {
		f.values = map[string]string{}
	}
	f.values[key] = value
	return nil
}

type fakeStorage struct {
	calls     *calls
	objects   map[string][]byte
	uploadErr error
	removeErr error
}

const fakeBase = "http://cdn.test/gallery-images/"

func (f *fakeStorage) Upload(_ context.Context, key string, data []byte, _ string) error {
	f.calls.hit("storage.upload")
	if f.uploadErr != nil {
		return f.uploadErr
	}
	if f.objects == nil {
		f.objects = map[string][]byte{}
	}
	f.objects[key] = data
	return nil
}

func (f *fakeStorage) PublicURL(key string) string { return fakeBase + key }

func (f *fakeStorage) Download(_ context.Context, key string) (*gateway.Object, error) {
	f.calls.hit("storage.download")
	data, ok := f.objects[key]
	if !ok {
		return nil, gateway.ErrNotFound
	}
	return &gateway.Object{Key: key, Size: int64(len(data)), Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeStorage) Remove(_ context.Context, keys ...string) error {
	f.calls.hit("storage.remove")
	if f.removeErr != nil {
		return f.removeErr
	}
	for _, k := range keys {
		delete(f.objects, k)
	}
	return nil
}

func (f *fakeStorage) KeyFromURL(u string) (string, bool) {
	if !strings.HasPrefix(u, fakeBase) || len(u) == len(fakeBase) {
		return "", false
	}
	return strings.TrimPrefix(u, fakeBase), true
}

type recordingOrphans struct {
	keys    []string
	reasons []string
}

func (r *recordingOrphans) ReportOrphan(_ context.Context, key, reason string) error {
	r.keys = append(r.keys, key)
	r.reasons = append(r.reasons, reason)
	return nil
}

type fixture struct {
	calls        *calls
	images       *fakeImages
	interactions *fakeInteractions
	users        *fakeUsers
	settings     *fakeSettings
	storage      *fakeStorage
	orphans      *recordingOrphans
	gw           gateway.Gateway
}

func newFixture() *fixture {
	c := &calls{}
	f := &fixture{
		calls:        c,
		images:       &fakeImages{calls: c, nextID: 100},
		interactions: &fakeInteractions{calls: c},
		users:        &fakeUsers{calls: c, emails: map[string]string{}},
		settings:     &fakeSettings{calls: c},
		storage:      &fakeStorage{calls: c},
		orphans:      &recordingOrphans{},
	}
	f.gw = gateway.Gateway{
		Auth:         &fakeAuth{calls: c},
		Images:       f.images,
		Interactions: f.interactions,
		Users:        f.users,
		Settings:     f.settings,
		Storage:      f.storage,
	}
	return f
}

func asViewer(id, email string) context.Context {
	return gateway.WithIdentity(context.Background(), gateway.Identity{ID: id, Email: email})
}

func strPtr(s string) *string { return &s }
