package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/blogman/internal/blog"
	"github.com/hitoshi/blogman/internal/feed"
	"github.com/hitoshi/blogman/internal/metrics"
	"github.com/hitoshi/blogman/internal/middleware"
	"github.com/hitoshi/blogman/internal/model"
	"github.com/hitoshi/blogman/internal/security"
	"github.com/hitoshi/blogman/internal/view"
)

// --- モック定義 ---

// mockBlogService はBlogServiceのモック実装。
type mockBlogService struct {
	listPageFn     func(ctx context.Context, perPage, page int) (*blog.PageResult, error)
	getByIDFn      func(ctx context.Context, id string) (*model.Post, error)
	searchFn       func(ctx context.Context, term string) ([]*model.Post, error)
	listAllPostsFn func(ctx context.Context) ([]*model.Post, error)
	createPostFn   func(ctx context.Context, in model.PostInput) error
	updatePostFn   func(ctx context.Context, id string, patch model.PostPatch) error
	deletePostFn   func(ctx context.Context, id string) error
}

func (m *mockBlogService) ListPage(ctx context.Context, perPage, page int) (*blog.PageResult, error) {
	if m.listPageFn != nil {
		return m.listPageFn(ctx, perPage, page)
	}
	return &blog.PageResult{Page: page, NextPage: page + 1}, nil
}

func (m *mockBlogService) GetByID(ctx context.Context, id string) (*model.Post, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockBlogService) Search(ctx context.Context, term string) ([]*model.Post, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, term)
	}
	return nil, nil
}

func (m *mockBlogService) ListAllPosts(ctx context.Context) ([]*model.Post, error) {
	if m.listAllPostsFn != nil {
		return m.listAllPostsFn(ctx)
	}
	return nil, nil
}

func (m *mockBlogService) CreatePost(ctx context.Context, in model.PostInput) error {
	if m.createPostFn != nil {
		return m.createPostFn(ctx, in)
	}
	return nil
}

func (m *mockBlogService) UpdatePost(ctx context.Context, id string, patch model.PostPatch) error {
	if m.updatePostFn != nil {
		return m.updatePostFn(ctx, id, patch)
	}
	return nil
}

func (m *mockBlogService) DeletePost(ctx context.Context, id string) error {
	if m.deletePostFn != nil {
		return m.deletePostFn(ctx, id)
	}
	return nil
}

// mockAuthService はAuthServiceのモック実装。
type mockAuthService struct {
	loginFn    func(ctx context.Context, username, password string) (string, error)
	registerFn func(ctx context.Context, username, password string) (*model.User, error)
}

func (m *mockAuthService) Login(ctx context.Context, username, password string) (string, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, username, password)
	}
	return "", nil
}

func (m *mockAuthService) Register(ctx context.Context, username, password string) (*model.User, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, username, password)
	}
	return &model.User{ID: "u1", Username: username}, nil
}

// mockFeedImporter はFeedImporterのモック実装。
type mockFeedImporter struct {
	importFn func(ctx context.Context, url string) (*feed.Result, error)
}

func (m *mockFeedImporter) Import(ctx context.Context, url string) (*feed.Result, error) {
	if m.importFn != nil {
		return m.importFn(ctx, url)
	}
	return &feed.Result{}, nil
}

// mockVerifier はトークン "valid-token" のみを受け付ける。
type mockVerifier struct{}

func (mockVerifier) Verify(token string) (string, error) {
	if token == "valid-token" {
		return "user-1", nil
	}
	return "", context.DeadlineExceeded
}

// mockHealthChecker はHealthCheckerのモック実装。
type mockHealthChecker struct {
	err error
}

func (m mockHealthChecker) PingContext(ctx context.Context) error {
	return m.err
}

// --- テストヘルパー ---

var testSite = SiteConfig{
	Title:        "Go Blog",
	Description:  "Simple Blog",
	ContactName:  "Blog Admin",
	ContactPhone: "000-1111",
	BaseURL:      "http://blog.example.com",
	PostsPerPage: 10,
}

func newTestRenderer(t *testing.T) *view.Renderer {
	t.Helper()
	r, err := view.NewRenderer(security.NewPostSanitizer())
	if err != nil {
		t.Fatalf("failed to create renderer: %v", err)
	}
	return r
}

func newTestCollector() *metrics.Collector {
	return metrics.NewCollector(prometheus.NewRegistry())
}

type routerOption func(*RouterDeps)

// newTestRouter はモック依存でルーターを構築する。
func newTestRouter(t *testing.T, opts ...routerOption) http.Handler {
	t.Helper()
	limiter := middleware.NewLoginRateLimiter(middleware.NewLoginRateLimiterConfig(600))
	t.Cleanup(limiter.Stop)

	deps := &RouterDeps{
		Logger:           slog.New(slog.NewJSONHandler(io.Discard, nil)),
		HealthChecker:    mockHealthChecker{},
		TokenVerifier:    mockVerifier{},
		LoginRateLimiter: limiter,
		Metrics:          newTestCollector(),
		BlogService:      &mockBlogService{},
		AuthService:      &mockAuthService{},
		FeedImporter:     &mockFeedImporter{},
		Renderer:         newTestRenderer(t),
		Excerpter:        security.NewPostSanitizer(),
		Site:             testSite,
		Cookie:           CookieConfig{MaxAge: 36000},
	}
	for _, opt := range opts {
		opt(deps)
	}
	return NewRouter(deps)
}

// withChiURLParam はテスト用にchiのURLパラメータを注入するヘルパー。
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
	return r.WithContext(ctx)
}

// newFormRequest はフォーム送信のリクエストを生成する。
func newFormRequest(method, target, form string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(form))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

// newJSONRequest はJSON送信のリクエストを生成する。
func newJSONRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// withToken は認証済みCookieを付与する。
func withToken(r *http.Request) *http.Request {
	r.AddCookie(&http.Cookie{Name: middleware.TokenCookieName, Value: "valid-token"})
	return r
}

func testPosts(n int) []*model.Post {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	posts := make([]*model.Post, n)
	for i := range posts {
		created := base.Add(time.Duration(n-i) * time.Hour)
		posts[i] = &model.Post{
			ID:        "post-" + string(rune('a'+i)),
			Title:     "Title " + string(rune('A'+i)),
			Body:      "<p>Body</p>",
			CreatedAt: created,
			UpdatedAt: created,
		}
	}
	return posts
}
