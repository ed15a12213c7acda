package handler

import (
	"bytes"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/blogman/internal/blog"
	"github.com/hitoshi/blogman/internal/feed"
	"github.com/hitoshi/blogman/internal/view"
)

// feedSize はRSSに含める記事数。
const feedSize = 10

// excerptLength はRSSのdescriptionに使う抜粋の文字数。
const excerptLength = 280

// Excerpter は本文HTMLからプレーンテキストの抜粋を作る。
type Excerpter interface {
	Excerpt(rawHTML string, maxRunes int) string
}

// PublicHandler は公開ページのHTTPハンドラー。
type PublicHandler struct {
	pageRenderer
	service   BlogService
	excerpter Excerpter
}

// NewPublicHandler はPublicHandlerを生成する。
func NewPublicHandler(service BlogService, renderer Renderer, excerpter Excerpter, site SiteConfig) *PublicHandler {
	return &PublicHandler{
		pageRenderer: pageRenderer{renderer: renderer, site: site},
		service:      service,
		excerpter:    excerpter,
	}
}

// Root はトップページへリダイレクトする。
// GET /
func (h *PublicHandler) Root(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/home", http.StatusFound)
}

// Home は記事一覧をページ単位で表示する。
// GET /home?page=N
func (h *PublicHandler) Home(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.ListPage(r.Context(), h.site.PostsPerPage, blog.ParsePage(r.URL.Query().Get("page")))
	if err != nil {
		h.renderError(w, r)
		return
	}

	h.render(w, r, http.StatusOK, "index", h.page("/home", view.IndexData{
		Posts:       result.Posts,
		Current:     result.Page,
		NextPage:    result.NextPage,
		HasNextPage: result.HasNextPage,
	}))
}

// PostDetail は記事を1件表示する。存在しない記事は404ページを返す。
// GET /post/{id}
func (h *PublicHandler) PostDetail(w http.ResponseWriter, r *http.Request) {
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
	if post.Title != "" {
		page.Locals.Title = post.Title
	}
	if desc := h.excerpter.Excerpt(post.Body, 160); desc != "" {
		page.Locals.Description = desc
	}
	h.render(w, r, http.StatusOK, "post", page)
}

// Search はsearchTermに一致する記事を表示する。英数字以外は取り除いて検索する。
// POST /search
func (h *PublicHandler) Search(w http.ResponseWriter, r *http.Request) {
	fields, err := decodeFields(r, "searchTerm")
	if err != nil {
		fields = map[string]string{}
	}
	term := blog.StripSearchTerm(fields["searchTerm"])

	posts, err := h.service.Search(r.Context(), term)
	if err != nil {
		h.renderError(w, r)
		return
	}

	page := h.page("/search", view.SearchData{Term: term, Posts: posts})
	page.Locals.Title = "Search"
	h.render(w, r, http.StatusOK, "search", page)
}

// About は紹介ページを表示する。
// GET /about
func (h *PublicHandler) About(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "about", h.page("/about", nil))
}

// Contact は問い合わせ先を表示する。
// GET /contact
func (h *PublicHandler) Contact(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "contact", h.page("/contact", view.ContactData{
		Name:  h.site.ContactName,
		Phone: h.site.ContactPhone,
	}))
}

// Feed は最新記事のRSS 2.0フィードを返す。
// GET /rss
func (h *PublicHandler) Feed(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.ListPage(r.Context(), feedSize, 1)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	ch := feed.Channel{Title: h.site.Title, Link: h.site.BaseURL, Description: h.site.Description}
	excerpt := func(body string) string { return h.excerpter.Excerpt(body, excerptLength) }
	if err := feed.WriteRSS(&buf, ch, result.Posts, excerpt); err != nil {
		slog.Error("failed to write rss", slog.String("error", err.Error()))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
