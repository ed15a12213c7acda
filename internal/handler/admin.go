package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/blogman/internal/auth"
	"github.com/hitoshi/blogman/internal/metrics"
	"github.com/hitoshi/blogman/internal/middleware"
	"github.com/hitoshi/blogman/internal/model"
	"github.com/hitoshi/blogman/internal/view"
)

const dashboardPath = "/admin/dashboard"

// registerResponse は管理者登録成功時のレスポンス。
type registerResponse struct {
	Message string `json:"message"`
	User    string `json:"user"`
}

// AdminHandler は管理画面のHTTPハンドラー。
type AdminHandler struct {
	pageRenderer
	service  BlogService
	auth     AuthService
	importer FeedImporter
	metrics  MetricsRecorder
	cookie   CookieConfig
}

// NewAdminHandler はAdminHandlerを生成する。
func NewAdminHandler(
	service BlogService,
	authService AuthService,
	importer FeedImporter,
	renderer Renderer,
	recorder MetricsRecorder,
	site SiteConfig,
	cookie CookieConfig,
) *AdminHandler {
	return &AdminHandler{
		pageRenderer: pageRenderer{renderer: renderer, site: site},
		service:      service,
		auth:         authService,
		importer:     importer,
		metrics:      recorder,
		cookie:       cookie,
	}
}

// LoginPage はログインフォームを表示する。
// GET /admin
func (h *AdminHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	page := h.page("/admin", nil)
	page.Locals.Title = "Admin"
	h.render(w, r, http.StatusOK, "admin/index", page)
}

// Login はユーザー名とパスワードを検証し、トークンCookieを発行する。
// ユーザー不在とパスワード不一致は同一の401レスポンスを返す。
// POST /admin
func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	fields, err := decodeFields(r, "username", "password")
	if err != nil {
		fields = map[string]string{}
	}

	token, err := h.auth.Login(r.Context(), fields["username"], fields["password"])
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			h.metrics.RecordLogin(metrics.LoginFailure)
			middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewInvalidCredentialsError())
			return
		}
		h.metrics.RecordLogin(metrics.LoginError)
		slog.Error("login failed", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	h.metrics.RecordLogin(metrics.LoginSuccess)
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.TokenCookieName,
		Value:    token,
		Path:     "/",
		Domain:   h.cookie.Domain,
		MaxAge:   h.cookie.MaxAge,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteStrictMode,
	})
	http.Redirect(w, r, dashboardPath, http.StatusSeeOther)
}

// Register は管理者ユーザーを作成する。ユーザー名重複は409、それ以外の失敗は500。
// POST /admin/register
func (h *AdminHandler) Register(w http.ResponseWriter, r *http.Request) {
	fields, err := decodeFields(r, "username", "password")
	if err != nil {
		slog.Warn("failed to decode register request", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	user, err := h.auth.Register(r.Context(), fields["username"], fields["password"])
	if err != nil {
		switch {
		case errors.Is(err, model.ErrDuplicate):
			middleware.WriteErrorResponse(w, http.StatusConflict, model.NewUserExistsError())
		default:
			slog.Error("failed to register user", slog.String("error", err.Error()))
			middleware.WriteInternalServerError(w)
		}
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, registerResponse{
		Message: "User Created",
		User:    user.Username,
	})
}

// Dashboard は全記事の管理一覧を表示する。
// GET /admin/dashboard
func (h *AdminHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	h.renderPostList(w, r, dashboardPath, "Dashboard", "admin/dashboard")
}

// NewPostForm は記事作成フォームを表示する。
// GET /admin/add-post
func (h *AdminHandler) NewPostForm(w http.ResponseWriter, r *http.Request) {
	h.renderPostList(w, r, "/admin/add-post", "Add Post", "admin/add-post")
}

func (h *AdminHandler) renderPostList(w http.ResponseWriter, r *http.Request, route, title, name string) {
	posts, err := h.service.ListAllPosts(r.Context())
	if err != nil {
		h.renderError(w, r)
		return
	}

	page := h.page(route, view.AdminPostsData{Posts: posts})
	page.Locals.Title = title
	h.render(w, r, http.StatusOK, name, page)
}

// CreatePost は記事を作成してダッシュボードへリダイレクトする。
// POST /admin/add-post
func (h *AdminHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	in, ok := h.decodePostInput(w, r)
	if !ok {
		return
	}

	if err := h.service.CreatePost(r.Context(), in); err != nil {
		writePostError(w, err)
		return
	}

	h.recordPostOperation(r, metrics.OpCreate, "")
	http.Redirect(w, r, dashboardPath, http.StatusSeeOther)
}

// EditPostForm は記事の編集フォームを表示する。
// GET /admin/edit-post/{id}
func (h *AdminHandler) EditPostForm(w http.ResponseWriter, r *http.Request) {
	post, err := h.service.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.renderError(w, r)
		return
	}
	if post == nil {
		h.renderNotFound(w, r)
		return
	}

	page := h.page(r.URL.Path, post)
	page.Locals.Title = "Edit Post"
	h.render(w, r, http.StatusOK, "admin/edit-post", page)
}

// UpdatePost は記事のタイトルと本文を更新し、編集フォームへリダイレクトする。
// 送信されなかったフィールドは既存の値のまま残る。
// PUT /admin/edit-post/{id}
func (h *AdminHandler) UpdatePost(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	fields, err := decodeFields(r, "title", "body")
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewBadRequestError())
		return
	}

	var patch model.PostPatch
	if title, ok := fields["title"]; ok {
		patch.Title = &title
	}
	if body, ok := fields["body"]; ok {
		patch.Body = &body
	}

	if err := h.service.UpdatePost(r.Context(), id, patch); err != nil {
		writePostError(w, err)
		return
	}

	h.recordPostOperation(r, metrics.OpUpdate, id)
	http.Redirect(w, r, "/admin/edit-post/"+id, http.StatusSeeOther)
}

// DeletePost は記事を削除してダッシュボードへリダイレクトする。
// DELETE /admin/delete-post/{id}
func (h *AdminHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.service.DeletePost(r.Context(), id); err != nil {
		writePostError(w, err)
		return
	}

	h.recordPostOperation(r, metrics.OpDelete, id)
	http.Redirect(w, r, dashboardPath, http.StatusSeeOther)
}

// Logout はトークンCookieを削除してトップページへリダイレクトする。
// GET /admin/logout
func (h *AdminHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.TokenCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.cookie.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteStrictMode,
	})
	http.Redirect(w, r, "/home", http.StatusFound)
}

// ImportFeed は外部フィードのエントリを記事として取り込む。
// POST /admin/import
func (h *AdminHandler) ImportFeed(w http.ResponseWriter, r *http.Request) {
	fields, err := decodeFields(r, "url")
	if err != nil || strings.TrimSpace(fields["url"]) == "" {
		h.metrics.RecordImportFailure(strings.ToLower(model.ErrCodeInvalidURL))
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidURLError("url is required"))
		return
	}

	result, err := h.importer.Import(r.Context(), strings.TrimSpace(fields["url"]))
	if err != nil {
		h.metrics.RecordImportFailure(importFailureReason(err))
		writeServiceError(w, err)
		return
	}

	h.metrics.RecordImport(result.Created)
	http.Redirect(w, r, dashboardPath, http.StatusSeeOther)
}

// decodePostInput はリクエストから記事入力を取り出す。失敗時はレスポンスを書き込みfalseを返す。
func (h *AdminHandler) decodePostInput(w http.ResponseWriter, r *http.Request) (model.PostInput, bool) {
	fields, err := decodeFields(r, "title", "body")
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewBadRequestError())
		return model.PostInput{}, false
	}
	return model.PostInput{Title: fields["title"], Body: fields["body"]}, true
}

// recordPostOperation は記事操作をメトリクスと監査ログに記録する。
func (h *AdminHandler) recordPostOperation(r *http.Request, op, postID string) {
	h.metrics.RecordPostOperation(op)

	attrs := []any{slog.String("op", op)}
	if postID != "" {
		attrs = append(attrs, slog.String("post_id", postID))
	}
	if userID, err := middleware.UserIDFromContext(r.Context()); err == nil {
		attrs = append(attrs, slog.String("user_id", userID))
	}
	slog.Info("post operation", attrs...)
}

// writePostError は記事操作の失敗をJSONで返す。入力不備は400、それ以外は500。
func writePostError(w http.ResponseWriter, err error) {
	if errors.Is(err, model.ErrValidation) {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewBadRequestError())
		return
	}
	slog.Error("post operation failed", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// importFailureReason はメトリクス用の失敗理由を返す。
func importFailureReason(err error) string {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return strings.ToLower(apiErr.Code)
	}
	return "store"
}
