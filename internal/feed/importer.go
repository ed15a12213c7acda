package feed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/hitoshi/blogman/internal/model"
	"github.com/hitoshi/blogman/internal/security"
	"github.com/mmcdole/gofeed"
)

// userAgent はフィード取得時のUser-Agent。
const userAgent = "Blogman/1.0 (+feed import)"

// URLChecker は取得前にURLを検証する。security.URLGuardが満たす。
type URLChecker interface {
	Check(rawURL string) (*url.URL, error)
}

// PostCreator は記事を作成する。blog.Serviceが満たす。
type PostCreator interface {
	CreatePost(ctx context.Context, in model.PostInput) error
}

// Result はインポート結果。
type Result struct {
	FeedURL   string
	FeedTitle string
	Created   int
	Skipped   int
}

// Importer は外部のRSS/Atomフィードを取得し、エントリごとに記事を作成する。
type Importer struct {
	checker     URLChecker
	client      *http.Client
	posts       PostCreator
	maxBodySize int64
	logger      *slog.Logger
}

// NewImporter はImporterを生成する。clientにはSSRF防止済みのクライアントを渡すこと。
func NewImporter(checker URLChecker, client *http.Client, posts PostCreator, maxBodySize int64, logger *slog.Logger) *Importer {
	return &Importer{
		checker:     checker,
		client:      client,
		posts:       posts,
		maxBodySize: maxBodySize,
		logger:      logger,
	}
}

// Import はinputURLのフィードを取り込む。inputURLがHTMLページの場合は
// <link rel="alternate">で示されたフィードを辿る。
// 利用者に返すべき失敗は*model.APIErrorとして返す。
func (im *Importer) Import(ctx context.Context, inputURL string) (*Result, error) {
	feedURL, body, err := im.resolve(ctx, inputURL)
	if err != nil {
		return nil, err
	}

	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		im.logger.Warn("failed to parse feed",
			slog.String("feed_url", feedURL),
			slog.String("error", err.Error()),
		)
		return nil, model.NewParseFailedError()
	}

	res := &Result{FeedURL: feedURL, FeedTitle: parsed.Title}
	// フィードは新しい順に並ぶことが多いため、古いものから作成して作成日時の順序を揃える
	for i := len(parsed.Items) - 1; i >= 0; i-- {
		in, ok := toPostInput(parsed.Items[i])
		if !ok {
			res.Skipped++
			continue
		}

		if err := im.posts.CreatePost(ctx, in); err != nil {
			if errors.Is(err, model.ErrValidation) {
				res.Skipped++
				continue
			}
			return res, fmt.Errorf("failed to create imported post: %w", err)
		}
		res.Created++
	}

	im.logger.Info("feed imported",
		slog.String("feed_url", feedURL),
		slog.Int("created", res.Created),
		slog.Int("skipped", res.Skipped),
	)
	return res, nil
}

// resolve はinputURLを取得し、フィード本体のURLとボディを返す。
func (im *Importer) resolve(ctx context.Context, inputURL string) (string, []byte, error) {
	contentType, body, err := im.fetch(ctx, inputURL)
	if err != nil {
		return "", nil, err
	}
	if IsFeed(contentType, body) {
		return inputURL, body, nil
	}
	if !IsHTML(contentType) {
		return "", nil, model.NewFeedNotDetectedError(inputURL)
	}

	link, ok := PickLink(DiscoverLinks(body, inputURL), inputURL)
	if !ok {
		return "", nil, model.NewFeedNotDetectedError(inputURL)
	}

	contentType, body, err = im.fetch(ctx, link.URL)
	if err != nil {
		return "", nil, err
	}
	if !IsFeed(contentType, body) && !looksLikeFeed(body) {
		return "", nil, model.NewFeedNotDetectedError(link.URL)
	}
	return link.URL, body, nil
}

// fetch はURLを検証してからGETし、Content-Typeとボディ（最大maxBodySize）を返す。
func (im *Importer) fetch(ctx context.Context, rawURL string) (string, []byte, error) {
	u, err := im.checker.Check(rawURL)
	if err != nil {
		return "", nil, classifyCheckError(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", nil, model.NewInvalidURLError(err.Error())
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, text/html;q=0.9, */*;q=0.8")

	resp, err := im.client.Do(req)
	if err != nil {
		im.logger.Warn("feed request failed",
			slog.String("url", rawURL),
			slog.String("error", err.Error()),
		)
		return "", nil, model.NewFetchFailedError("request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", nil, model.NewFetchFailedError(fmt.Sprintf("unexpected status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, im.maxBodySize))
	if err != nil {
		return "", nil, model.NewFetchFailedError("failed to read response body")
	}
	return resp.Header.Get("Content-Type"), body, nil
}

// classifyCheckError はURL検証エラーを利用者向けのエラーに変換する。
func classifyCheckError(err error) error {
	if errors.Is(err, security.ErrBlockedURL) {
		return model.NewSSRFBlockedError()
	}
	return model.NewInvalidURLError(err.Error())
}

// toPostInput はフィードのエントリを記事の入力値に変換する。
// タイトルが無い、または本文にできる内容が無いエントリはfalseを返す。
func toPostInput(item *gofeed.Item) (model.PostInput, bool) {
	if item == nil {
		return model.PostInput{}, false
	}

	title := strings.TrimSpace(item.Title)
	if title == "" {
		return model.PostInput{}, false
	}

	body := strings.TrimSpace(item.Content)
	if body == "" {
		body = strings.TrimSpace(item.Description)
	}

	link := strings.TrimSpace(item.Link)
	if link != "" {
		source := fmt.Sprintf(`<p><a href="%s">%s</a></p>`, html.EscapeString(link), html.EscapeString(link))
		if body == "" {
			body = source
		} else {
			body += "\n" + source
		}
	}

	if body == "" {
		return model.PostInput{}, false
	}
	return model.PostInput{Title: title, Body: body}, true
}
