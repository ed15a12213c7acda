package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/hitoshi/blogman/internal/metrics"
	"github.com/hitoshi/blogman/internal/middleware"
	"github.com/hitoshi/blogman/internal/view"
)

// HealthChecker はストアへの疎通を確認する。*sql.DBが満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger        *slog.Logger
	HealthChecker HealthChecker

	// ミドルウェア依存
	TokenVerifier    middleware.TokenVerifier
	LoginRateLimiter *middleware.LoginRateLimiter
	Metrics          *metrics.Collector
	MetricsHandler   http.Handler

	// サービス
	BlogService  BlogService
	AuthService  AuthService
	FeedImporter FeedImporter

	// 描画
	Renderer  Renderer
	Excerpter Excerpter

	Site   SiteConfig
	Cookie CookieConfig
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RealIP → Recovery → Logging → Metrics → SecurityHeaders → MethodOverride → NoCache
//
// ログイン以外の管理ルートはAuthで保護する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.NewRecoveryMiddleware(deps.Logger))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(deps.Metrics.Middleware)
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewMethodOverrideMiddleware())
	r.Use(middleware.NewNoCacheMiddleware())

	public := NewPublicHandler(deps.BlogService, deps.Renderer, deps.Excerpter, deps.Site)
	admin := NewAdminHandler(
		deps.BlogService, deps.AuthService, deps.FeedImporter,
		deps.Renderer, deps.Metrics, deps.Site, deps.Cookie,
	)

	r.NotFound(public.renderNotFound)

	// --- 運用系 ---
	r.Get("/health", healthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}
	r.Handle("/static/*", http.StripPrefix("/static", view.StaticHandler()))

	// --- 公開ページ ---
	r.Get("/", public.Root)
	r.Get("/home", public.Home)
	r.Get("/post/{id}", public.PostDetail)
	r.Post("/search", public.Search)
	r.Get("/about", public.About)
	r.Get("/contact", public.Contact)
	r.Get("/rss", public.Feed)

	// --- 管理画面 ---
	r.Route("/admin", func(r chi.Router) {
		r.Get("/", admin.LoginPage)
		r.With(deps.LoginRateLimiter.Middleware()).Post("/", admin.Login)
		r.Post("/register", admin.Register)
		r.Get("/logout", admin.Logout)

		// 認証が必要なルート
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewAuthMiddleware(deps.TokenVerifier, admin.Unauthorized()))

			r.Get("/dashboard", admin.Dashboard)
			r.Get("/add-post", admin.NewPostForm)
			r.Post("/add-post", admin.CreatePost)
			r.Get("/edit-post/{id}", admin.EditPostForm)
			r.Put("/edit-post/{id}", admin.UpdatePost)
			r.Delete("/delete-post/{id}", admin.DeletePost)
			r.Post("/import", admin.ImportFeed)
		})
	})

	return r
}

// healthHandler はストアに疎通できれば200、できなければ503を返す。
func healthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if checker != nil {
			if err := checker.PingContext(ctx); err != nil {
				slog.Warn("health check failed", slog.String("error", err.Error()))
				middleware.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
