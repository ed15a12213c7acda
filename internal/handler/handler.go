// Package handler はHTTPハンドラーとルーティングを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"

	"github.com/hitoshi/blogman/internal/blog"
	"github.com/hitoshi/blogman/internal/feed"
	"github.com/hitoshi/blogman/internal/middleware"
	"github.com/hitoshi/blogman/internal/model"
	"github.com/hitoshi/blogman/internal/view"
)

// BlogService はハンドラーが必要とする記事操作のインターフェース。
// blog.Serviceが満たす。
type BlogService interface {
	ListPage(ctx context.Context, perPage, page int) (*blog.PageResult, error)
	GetByID(ctx context.Context, id string) (*model.Post, error)
	Search(ctx context.Context, term string) ([]*model.Post, error)
	ListAllPosts(ctx context.Context) ([]*model.Post, error)
	CreatePost(ctx context.Context, in model.PostInput) error
	UpdatePost(ctx context.Context, id string, patch model.PostPatch) error
	DeletePost(ctx context.Context, id string) error
}

// AuthService はログインと管理者登録のインターフェース。
// auth.Serviceが満たす。
type AuthService interface {
	Login(ctx context.Context, username, password string) (string, error)
	Register(ctx context.Context, username, password string) (*model.User, error)
}

// FeedImporter は外部フィードの取り込みを行う。feed.Importerが満たす。
type FeedImporter interface {
	Import(ctx context.Context, url string) (*feed.Result, error)
}

// Renderer はページを描画する。view.Rendererが満たす。
type Renderer interface {
	Render(w http.ResponseWriter, status int, name string, page *view.Page) error
}

// MetricsRecorder はドメインイベントを記録する。metrics.Collectorが満たす。
type MetricsRecorder interface {
	RecordPostOperation(op string)
	RecordLogin(result string)
	RecordImport(created int)
	RecordImportFailure(reason string)
}

// SiteConfig はページ描画に使うサイト共通の設定。
type SiteConfig struct {
	Title        string
	Description  string
	ContactName  string
	ContactPhone string
	BaseURL      string
	PostsPerPage int
}

// CookieConfig は認証Cookieの属性。
type CookieConfig struct {
	Domain string
	Secure bool
	MaxAge int // 秒
}

// pageRenderer はページ描画とエラーページの共通処理。
type pageRenderer struct {
	renderer Renderer
	site     SiteConfig
}

// page はサイト既定のlocalsでPageを組み立てる。
func (p *pageRenderer) page(route string, data any) *view.Page {
	return &view.Page{
		Locals:       view.Locals{Title: p.site.Title, Description: p.site.Description},
		SiteTitle:    p.site.Title,
		CurrentRoute: route,
		Data:         data,
	}
}

func (p *pageRenderer) render(w http.ResponseWriter, r *http.Request, status int, name string, page *view.Page) {
	if err := p.renderer.Render(w, status, name, page); err != nil {
		slog.Error("failed to render page",
			slog.String("page", name),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

func (p *pageRenderer) renderNotFound(w http.ResponseWriter, r *http.Request) {
	page := p.page(r.URL.Path, nil)
	page.Locals.Title = "Not Found"
	p.render(w, r, http.StatusNotFound, "notfound", page)
}

func (p *pageRenderer) renderError(w http.ResponseWriter, r *http.Request) {
	page := p.page(r.URL.Path, nil)
	page.Locals.Title = "Error"
	p.render(w, r, http.StatusInternalServerError, "error", page)
}

// Unauthorized は認証失敗時に描画するハンドラーを返す。
func (p *pageRenderer) Unauthorized() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := p.page(r.URL.Path, nil)
		page.Locals.Title = "Unauthorized"
		p.render(w, r, http.StatusUnauthorized, "unauthorized", page)
	})
}

// decodeFields はフォームまたはJSONボディから指定フィールドを取り出す。
// リクエストに含まれないフィールドはmapに格納しない。
func decodeFields(r *http.Request, names ...string) (map[string]string, error) {
	fields := make(map[string]string, len(names))

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return nil, err
		}
		for _, name := range names {
			if s, ok := body[name].(string); ok {
				fields[name] = s
			}
		}
		return fields, nil
	}

	if err := r.ParseForm(); err != nil {
		return nil, err
	}
	for _, name := range names {
		if values, ok := r.PostForm[name]; ok && len(values) > 0 {
			fields[name] = values[0]
		}
	}
	return fields, nil
}

// writeServiceError はサービス層のエラーをJSONエラーレスポンスに変換する。
func writeServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorのコードをHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeInvalidCredentials:
		return http.StatusUnauthorized
	case model.ErrCodeUserExists:
		return http.StatusConflict
	case model.ErrCodeBadRequest, model.ErrCodeInvalidURL, model.ErrCodeSSRFBlocked, model.ErrCodeFeedNotDetected:
		return http.StatusBadRequest
	case model.ErrCodeFetchFailed, model.ErrCodeParseFailed:
		return http.StatusBadGateway
	case model.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
