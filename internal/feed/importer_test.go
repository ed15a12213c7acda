package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/blogman/internal/model"
	"github.com/hitoshi/blogman/internal/security"
)

// --- モック定義 ---

// allowAllChecker はhttptestサーバー（127.0.0.1）への接続を許可する。
type allowAllChecker struct {
	checkFn func(rawURL string) (*url.URL, error)
}

func (m *allowAllChecker) Check(rawURL string) (*url.URL, error) {
	if m.checkFn != nil {
		return m.checkFn(rawURL)
	}
	return url.Parse(rawURL)
}

type mockPostCreator struct {
	createFn func(ctx context.Context, in model.PostInput) error
	created  []model.PostInput
}

func (m *mockPostCreator) CreatePost(ctx context.Context, in model.PostInput) error {
	if m.createFn != nil {
		if err := m.createFn(ctx, in); err != nil {
			return err
		}
	}
	m.created = append(m.created, in)
	return nil
}

const sampleRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>Example Feed</title>
  <link>https://example.com/</link>
  <item>
    <title>Newest</title>
    <link>https://example.com/3</link>
    <description>&lt;p&gt;third&lt;/p&gt;</description>
  </item>
  <item>
    <title></title>
    <description>untitled entry</description>
  </item>
  <item>
    <title>Oldest</title>
    <link>https://example.com/1</link>
  </item>
</channel>
</rss>`

const sampleAtom = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Atom Feed</title>
  <entry>
    <title>Atom Entry</title>
    <id>urn:uuid:1</id>
    <updated>2024-01-01T00:00:00Z</updated>
    <content type="html">&lt;p&gt;atom body&lt;/p&gt;</content>
  </entry>
</feed>`

func newTestImporter(creator PostCreator) *Importer {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewImporter(&allowAllChecker{}, &http.Client{Timeout: 5 * time.Second}, creator, 1<<20, logger)
}

func TestImporter_DirectRSSFeed(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); !strings.HasPrefix(ua, "Blogman/") {
			t.Errorf("User-Agent = %q", ua)
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, sampleRSS)
	}))
	defer ts.Close()

	creator := &mockPostCreator{}
	res, err := newTestImporter(creator).Import(context.Background(), ts.URL+"/feed")
	if err != nil {
		t.Fatalf("Import: %v", err)
	}

	if res.Created != 2 || res.Skipped != 1 {
		t.Errorf("Created/Skipped = %d/%d, want 2/1", res.Created, res.Skipped)
	}
	if res.FeedTitle != "Example Feed" || res.FeedURL != ts.URL+"/feed" {
		t.Errorf("result = %+v", res)
	}

	// 古いエントリから作成される
	if len(creator.created) != 2 || creator.created[0].Title != "Oldest" || creator.created[1].Title != "Newest" {
		t.Fatalf("created = %+v", creator.created)
	}
	if !strings.Contains(creator.created[1].Body, "<p>third</p>") {
		t.Errorf("Newest body = %q", creator.created[1].Body)
	}
	if !strings.Contains(creator.created[0].Body, `href="https://example.com/1"`) {
		t.Errorf("Oldest body should link to the source: %q", creator.created[0].Body)
	}
}

func TestImporter_HTMLPageWithAlternateLink(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, `<html><head><link rel="alternate" type="application/atom+xml" href="/atom.xml"></head><body></body></html>`)
	})
	mux.HandleFunc("/atom.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/atom+xml")
		fmt.Fprint(w, sampleAtom)
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	creator := &mockPostCreator{}
	res, err := newTestImporter(creator).Import(context.Background(), ts.URL+"/")
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if res.FeedURL != ts.URL+"/atom.xml" {
		t.Errorf("FeedURL = %q, want %q", res.FeedURL, ts.URL+"/atom.xml")
	}
	if res.Created != 1 || creator.created[0].Title != "Atom Entry" {
		t.Errorf("created = %+v", creator.created)
	}
}

func TestImporter_Failures(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/plain", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><head><title>no feed</title></head></html>`)
	})
	mux.HandleFunc("/json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{}`)
	})
	mux.HandleFunc("/gone", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, `this is not xml`)
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	tests := []struct {
		path     string
		wantCode string
	}{
		{"/plain", model.ErrCodeFeedNotDetected},
		{"/json", model.ErrCodeFeedNotDetected},
		{"/gone", model.ErrCodeFetchFailed},
		{"/broken", model.ErrCodeParseFailed},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			_, err := newTestImporter(&mockPostCreator{}).Import(context.Background(), ts.URL+tt.path)
			var apiErr *model.APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("error = %v, want *model.APIError", err)
			}
			if apiErr.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", apiErr.Code, tt.wantCode)
			}
		})
	}
}

func TestImporter_CheckerErrors(t *testing.T) {
	tests := []struct {
		name     string
		checkErr error
		wantCode string
	}{
		{"blocked", fmt.Errorf("%w: 10.0.0.1", security.ErrBlockedURL), model.ErrCodeSSRFBlocked},
		{"invalid", fmt.Errorf("%w: empty", security.ErrInvalidURL), model.ErrCodeInvalidURL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			im := newTestImporter(&mockPostCreator{})
			im.checker = &allowAllChecker{checkFn: func(string) (*url.URL, error) { return nil, tt.checkErr }}

			_, err := im.Import(context.Background(), "http://10.0.0.1/feed")
			var apiErr *model.APIError
			if !errors.As(err, &apiErr) || apiErr.Code != tt.wantCode {
				t.Errorf("error = %v, want code %s", err, tt.wantCode)
			}
		})
	}
}

func TestImporter_StoreFailureStopsImport(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, sampleRSS)
	}))
	defer ts.Close()

	storeErr := errors.New("connection refused")
	creator := &mockPostCreator{createFn: func(context.Context, model.PostInput) error { return storeErr }}

	_, err := newTestImporter(creator).Import(context.Background(), ts.URL)
	if !errors.Is(err, storeErr) {
		t.Errorf("error = %v, want wrapped store error", err)
	}
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		t.Error("store failure must not be reported as an APIError")
	}
}
