// Package view はhtml/templateによるページ描画と静的アセットの配信を提供する。
package view

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/blogman/internal/model"
)

//go:embed templates
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// ページとレイアウトの対応。
const (
	layoutMain  = "templates/layouts/main.html"
	layoutAdmin = "templates/layouts/admin.html"
)

var pages = map[string]string{
	"index":           layoutMain,
	"post":            layoutMain,
	"about":           layoutMain,
	"contact":         layoutMain,
	"search":          layoutMain,
	"unauthorized":    layoutMain,
	"notfound":        layoutMain,
	"error":           layoutMain,
	"admin/index":     layoutAdmin,
	"admin/dashboard": layoutAdmin,
	"admin/add-post":  layoutAdmin,
	"admin/edit-post": layoutAdmin,
}

// Locals はページのtitleとdescription。
type Locals struct {
	Title       string
	Description string
}

// Page はテンプレートに渡すデータ。
type Page struct {
	Locals       Locals
	SiteTitle    string
	CurrentRoute string
	// Data はページ固有のデータ。
	Data any
}

// Sanitizer は描画時の本文処理。security.PostSanitizerが満たす。
type Sanitizer interface {
	Sanitize(rawHTML string) string
	Excerpt(rawHTML string, maxRunes int) string
}

// Renderer は名前付きページを描画する。生成後は読み取り専用で並行に使用できる。
type Renderer struct {
	templates map[string]*template.Template
}

// NewRenderer は埋め込みテンプレートをすべてパースしたRendererを返す。
func NewRenderer(sanitizer Sanitizer) (*Renderer, error) {
	funcs := template.FuncMap{
		"isActiveRoute": IsActiveRoute,
		"formatDate":    formatDate,
		"isoDate":       isoDate,
		// 本文は保存時にもサニタイズ済みだが、既存データを考慮して描画時にも通す
		"postBody": func(body string) template.HTML {
			return template.HTML(sanitizer.Sanitize(body))
		},
		"excerpt": sanitizer.Excerpt,
	}

	r := &Renderer{templates: make(map[string]*template.Template, len(pages))}
	for name, layout := range pages {
		tmpl, err := template.New("layout").Funcs(funcs).ParseFS(templateFS,
			layout,
			"templates/partials/*.html",
			"templates/pages/"+name+".html",
		)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		r.templates[name] = tmpl
	}
	return r, nil
}

// Render はページをバッファに描画してから、statusとともに書き込む。
// 描画に失敗した場合はレスポンスに何も書かずエラーを返す。
func (r *Renderer) Render(w http.ResponseWriter, status int, name string, page *Page) error {
	tmpl, ok := r.templates[name]
	if !ok {
		return fmt.Errorf("unknown page: %s", name)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", page); err != nil {
		return fmt.Errorf("failed to render %s: %w", name, err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}

// StaticHandler は埋め込みの静的アセットを配信するハンドラーを返す。
// /static/ プレフィックスを取り除いたパスで配信するため、呼び出し側でStripPrefixすること。
func StaticHandler() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.FileServer(http.FS(sub))
}

// IsActiveRoute はナビゲーションの現在位置にactiveクラスを付ける。
func IsActiveRoute(route, currentRoute string) string {
	if route == currentRoute || (route != "/" && strings.HasPrefix(currentRoute, route+"/")) {
		return "active"
	}
	return ""
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("Jan 2, 2006")
}

func isoDate(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// IndexData はトップページ（記事一覧）のデータ。
type IndexData struct {
	Posts       []*model.Post
	Current     int
	NextPage    int
	HasNextPage bool
}

// SearchData は検索結果ページのデータ。
type SearchData struct {
	Term  string
	Posts []*model.Post
}

// ContactData は問い合わせページのデータ。
type ContactData struct {
	Name  string
	Phone string
}

// AdminPostsData は管理画面の記事一覧データ。
type AdminPostsData struct {
	Posts []*model.Post
}
