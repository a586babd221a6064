package host

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"astromine-go/internal/models"
	"astromine-go/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const postIdPrefix = "t3_"

// LocalHost keeps posts in the game's own store.
type LocalHost struct {
	store store.KVStore
	now   func() time.Time
}

func NewLocalHost(kv store.KVStore) *LocalHost {
	return &LocalHost{store: kv, now: time.Now}
}

func newPostId() string {
	return postIdPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

func (h *LocalHost) SubmitPost(ctx context.Context, params SubmitPostParams) (*models.Post, error) {
	if params.Community == "" {
		return nil, fmt.Errorf("community cannot be empty")
	}

	post := &models.Post{
		Id:        newPostId(),
		Community: params.Community,
		Title:     params.Title,
		Capacity:  params.Capacity,
		CreatedAt: h.now().UTC(),
	}

	if err := h.store.HSet(ctx, store.PostKey(post.Id), map[string]string{
		"title":      post.Title,
		"community":  post.Community,
		"capacity":   strconv.FormatInt(post.Capacity, 10),
		"created_at": post.CreatedAt.Format(time.RFC3339),
	}); err != nil {
		return nil, fmt.Errorf("failed to store post: %w", err)
	}
	if _, err := h.store.ZIncrBy(ctx, store.PostsKey(post.Community), post.Id, post.CreatedAt.Unix()); err != nil {
		return nil, fmt.Errorf("failed to index post: %w", err)
	}

	zap.L().Info("Post submitted",
		zap.String("post_id", post.Id),
		zap.String("community", post.Community),
		zap.String("title", post.Title))
	return post, nil
}

// GetPost reads a post stored by SubmitPost.
func (h *LocalHost) GetPost(ctx context.Context, postId string) (*models.Post, error) {
	fields, err := h.store.HGetAll(ctx, store.PostKey(postId))
	if err != nil {
		return nil, fmt.Errorf("failed to read post: %w", err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("post %s: %w", postId, store.ErrNotFound)
	}

	capacity, _ := strconv.ParseInt(fields["capacity"], 10, 64)
	createdAt, _ := time.Parse(time.RFC3339, fields["created_at"])
	return &models.Post{
		Id:        postId,
		Community: fields["community"],
		Title:     fields["title"],
		Capacity:  capacity,
		CreatedAt: createdAt,
	}, nil
}

// RecentPosts returns up to n posts of a community, newest first.
func (h *LocalHost) RecentPosts(ctx context.Context, community string, n int) ([]models.Post, error) {
	members, err := h.store.ZTop(ctx, store.PostsKey(community), n)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}

	posts := make([]models.Post, 0, len(members))
	for _, m := range members {
		post, err := h.GetPost(ctx, m.Member)
		if err != nil {
			return nil, err
		}
		posts = append(posts, *post)
	}
	return posts, nil
}
