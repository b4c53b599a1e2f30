package gallery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"minniegallery/internal/gateway"
	"minniegallery/internal/models"
)

type fakeUsers struct {
	mu     sync.Mutex
	emails map[string]string
	errs   map[string]error
	calls  map[string]int
}

func (f *fakeUsers) Email(_ context.Context, userID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[userID]++
	if err, ok := f.errs[userID]; ok {
		return "", err
	}
	return f.emails[userID], nil
}

func comment(s string) *string { return &s }

func TestBuildItemsAggregates(t *testing.T) {
	images := []models.Image{{ID: 1, Title: "one", UserID: "owner"}}
	interactions := []models.Interaction{
		{ID: 1, UserID: "A", ImageID: 1, Like: true},
		{ID: 2, UserID: "B", ImageID: 1, Like: true},
		{ID: 3, UserID: "A", ImageID: 1, Comment: comment("nice")},
	}
	users := &fakeUsers{emails: map[string]string{"owner": "owner@example.com"}}

	items := Builder{Users: users}.BuildItems(context.Background(), images, interactions, "A")

	require.Len(t, items, 1)
	assert.Equal(t, 2, items[0].LikesCount)
	assert.Equal(t, 1, items[0].CommentsCount)
	assert.True(t, items[0].UserLiked)
	assert.Equal(t, "owner@example.com", items[0].UserEmail)
	assert.Len(t, items[0].Interactions, 3)
}

func TestBuildItemsPartitionsByImageAndKeepsOrder(t *testing.T) {
	images := []models.Image{{ID: 5}, {ID: 3}, {ID: 4}}
	interactions := []models.Interaction{
		{ID: 1, ImageID: 3, Like: true, UserID: "x"},
		{ID: 2, ImageID: 5, Comment: comment("  ")},
		{ID: 3, ImageID: 5, Comment: comment("ok")},
		{ID: 4, ImageID: 99, Like: true},
	}

	items := Builder{}.BuildItems(context.Background(), images, interactions, "")

	require.Len(t, items, 3)
	assert.Equal(t, []int64{5, 3, 4}, []int64{items[0].ID, items[1].ID, items[2].ID})
	assert.Equal(t, 1, items[0].CommentsCount, "blank comments do not count")
	assert.Len(t, items[0].Interactions, 2)
	assert.Equal(t, 1, items[1].LikesCount)
	assert.False(t, items[1].UserLiked, "anonymous viewer never likes")
	assert.NotNil(t, items[2].Interactions)
	assert.Empty(t, items[2].Interactions)
}

func TestBuildItemsUploaderFallbacks(t *testing.T) {
	images := []models.Image{
		{ID: 1, UserID: "gone"},
		{ID: 2, UserID: "broken"},
		{ID: 3, UserID: "blank"},
		{ID: 4, UserID: ""},
		{ID: 5, UserID: "gone"},
	}
	users := &fakeUsers{
		emails: map[string]string{"blank": ""},
		errs: map[string]error{
			"gone":   fmt.Errorf("user: %w", gateway.ErrNotFound),
			"broken": errors.New("connection reset"),
		},
	}
	var failed []string
	var mu sync.Mutex
	b := Builder{Users: users, Concurrency: 2, OnLookupError: func(id string, _ error) {
		mu.Lock()
		failed = append(failed, id)
		mu.Unlock()
	}}

	items := b.BuildItems(context.Background(), images, nil, "")

	assert.Equal(t, DeletedUploader, items[0].UserEmail)
	assert.Equal(t, UnknownUploader, items[1].UserEmail)
	assert.Equal(t, UnknownUploader, items[2].UserEmail)
	assert.Equal(t, UnknownUploader, items[3].UserEmail)
	assert.Equal(t, DeletedUploader, items[4].UserEmail)
	assert.Equal(t, []string{"broken"}, failed)
	assert.Equal(t, 1, users.calls["gone"], "each uploader is looked up once")
}
