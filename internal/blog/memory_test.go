package blog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/hitoshi/blogman/internal/model"
	"github.com/hitoshi/blogman/internal/repository"
)

// memoryPostRepo はテスト用のインメモリ記事リポジトリ。
type memoryPostRepo struct {
	mu     sync.Mutex
	posts  map[string]*model.Post
	nextID int
	err    error

	lastOffset int
}

func newMemoryPostRepo() *memoryPostRepo {
	return &memoryPostRepo{posts: make(map[string]*model.Post)}
}

func (r *memoryPostRepo) sorted() []*model.Post {
	out := make([]*model.Post, 0, len(r.posts))
	for _, p := range r.posts {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (r *memoryPostRepo) List(_ context.Context, offset, limit int) ([]*model.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	r.lastOffset = offset
	all := r.sorted()
	if offset >= len(all) {
		return []*model.Post{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (r *memoryPostRepo) Count(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return 0, r.err
	}
	return len(r.posts), nil
}

func (r *memoryPostRepo) FindByID(_ context.Context, id string) (*model.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	p, ok := r.posts[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (r *memoryPostRepo) Search(_ context.Context, term string) ([]*model.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	needle := strings.ToLower(term)
	out := make([]*model.Post, 0)
	for _, p := range r.sorted() {
		if strings.Contains(strings.ToLower(p.Title), needle) || strings.Contains(strings.ToLower(p.Body), needle) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *memoryPostRepo) ListAll(_ context.Context) ([]*model.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	return r.sorted(), nil
}

func (r *memoryPostRepo) Create(_ context.Context, post *model.Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.nextID++
	post.ID = fmt.Sprintf("post-%04d", r.nextID)
	cp := *post
	r.posts[post.ID] = &cp
	return nil
}

func (r *memoryPostRepo) Update(_ context.Context, post *model.Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	p, ok := r.posts[post.ID]
	if !ok {
		return nil
	}
	p.Title = post.Title
	p.Body = post.Body
	p.UpdatedAt = post.UpdatedAt
	return nil
}

func (r *memoryPostRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	delete(r.posts, id)
	return nil
}

// memoryUserRepo はテスト用のインメモリユーザーリポジトリ。
type memoryUserRepo struct {
	mu    sync.Mutex
	users map[string]*model.User
	err   error
}

func newMemoryUserRepo() *memoryUserRepo {
	return &memoryUserRepo{users: make(map[string]*model.User)}
}

func (r *memoryUserRepo) Create(_ context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	if _, ok := r.users[user.Username]; ok {
		return fmt.Errorf("username %q: %w", user.Username, model.ErrDuplicate)
	}
	user.ID = fmt.Sprintf("user-%d", len(r.users)+1)
	cp := *user
	r.users[user.Username] = &cp
	return nil
}

func (r *memoryUserRepo) FindByUsername(_ context.Context, username string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	u, ok := r.users[username]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

var errStore = errors.New("connection refused")

// compile-time interface check
var (
	_ repository.PostRepository = (*memoryPostRepo)(nil)
	_ repository.UserRepository = (*memoryUserRepo)(nil)
)
