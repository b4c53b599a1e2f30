package tasks

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"minniegallery/internal/storage"
)

type fakeObjects struct {
	objects   []storage.StoredObject
	removed   []string
	removeErr error
}

func (f *fakeObjects) List(context.Context) ([]storage.StoredObject, error) {
	return f.objects, nil
}

func (f *fakeObjects) Remove(_ context.Context, keys ...string) error {
	if f.removeErr != nil {
		return f.removeErr
	}
	f.removed = append(f.removed, keys...)
	return nil
}

func (f *fakeObjects) KeyFromURL(u string) (string, bool) {
	idx := strings.Index(u, "/gallery-images/")
	if idx < 0 {
		return "", false
	}
	return u[idx+len("/gallery-images/"):], true
}

type fakeRefs map[string]struct{}

func (f fakeRefs) ReferencedURLs(context.Context) (map[string]struct{}, error) {
	return f, nil
}

func TestSweepRemovesOnlyOldUnreferencedObjects(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	objects := &fakeObjects{objects: []storage.StoredObject{
		{Key: "kept.png", LastModified: now.Add(-72 * time.Hour)},
		{Key: "orphan.png", LastModified: now.Add(-72 * time.Hour)},
		{Key: "fresh.png", LastModified: now.Add(-time.Hour)},
	}}
	refs := fakeRefs{"http://cdn/gallery-images/kept.png": {}}

	p := NewProcessor(objects, refs, 24*time.Hour, zerolog.Nop())
	p.now = func() time.Time { return now }

	n, err := p.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"orphan.png"}, objects.removed)
}

func TestHandleOrphanTask(t *testing.T) {
	objects := &fakeObjects{}
	p := NewProcessor(objects, fakeRefs{}, time.Hour, zerolog.Nop())

	err := p.Handle(context.Background(), redis.XMessage{ID: "1-0", Values: map[string]any{
		"type":       "orphan",
		"object_key": "1700000000000-cat.png",
		"reason":     "delete_failed",
	}})
	require.NoError(t, err)
	assert.Equal(t, []string{"1700000000000-cat.png"}, objects.removed)
}

func TestHandleOrphanTaskFailureLeavesMessagePending(t *testing.T) {
	objects := &fakeObjects{removeErr: errors.New("minio down")}
	p := NewProcessor(objects, fakeRefs{}, time.Hour, zerolog.Nop())

	err := p.Handle(context.Background(), redis.XMessage{ID: "1-0", Values: map[string]any{
		"type":       "orphan",
		"object_key": "k",
	}})
	assert.Error(t, err)
}

func TestHandleIgnoresUnknownAndMalformed(t *testing.T) {
	p := NewProcessor(&fakeObjects{}, fakeRefs{}, time.Hour, zerolog.Nop())
	assert.NoError(t, p.Handle(context.Background(), redis.XMessage{ID: "1-0", Values: map[string]any{"type": "thumbnail"}}))
	assert.NoError(t, p.Handle(context.Background(), redis.XMessage{ID: "2-0", Values: map[string]any{}}))
}
