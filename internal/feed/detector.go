// Package feed は記事のRSS配信と、外部RSS/Atomフィードからの記事インポートを提供する。
package feed

import (
	"bytes"
	"mime"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// Link はHTMLのheadから検出したフィードへのリンク。
type Link struct {
	URL   string
	Atom  bool
	Title string
}

// sniffSize はフィード判定で検査するボディ先頭のバイト数。
const sniffSize = 4096

// IsFeed はContent-Typeとボディの先頭からRSS/Atomフィードかを判定する。
// application/rss+xml と application/atom+xml は無条件、
// text/xml と application/xml はルート要素を見て判定する。
func IsFeed(contentType string, body []byte) bool {
	switch mediaType(contentType) {
	case "application/rss+xml", "application/atom+xml":
		return true
	case "text/xml", "application/xml":
		return looksLikeFeed(body)
	default:
		return false
	}
}

// IsHTML はContent-TypeがHTMLかを判定する。
func IsHTML(contentType string) bool {
	mt := mediaType(contentType)
	return mt == "text/html" || mt == "application/xhtml+xml"
}

func mediaType(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt, _, _ = strings.Cut(contentType, ";")
	}
	return strings.ToLower(strings.TrimSpace(mt))
}

func looksLikeFeed(body []byte) bool {
	if len(body) > sniffSize {
		body = body[:sniffSize]
	}
	head := strings.ToLower(string(body))

	if strings.Contains(head, "<rss") || strings.Contains(head, "<rdf:rdf") {
		return true
	}
	return strings.Contains(head, "<feed") && strings.Contains(head, "http://www.w3.org/2005/atom")
}

// DiscoverLinks はHTMLのheadにある<link rel="alternate">からフィードのURLを集める。
// 相対URLはbaseURLを基準に解決する。bodyに到達した時点で走査を終える。
func DiscoverLinks(htmlBody []byte, baseURL string) []Link {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}

	var links []Link
	z := html.NewTokenizer(bytes.NewReader(htmlBody))
	inHead := false

	for {
		switch z.Next() {
		case html.ErrorToken:
			return links

		case html.EndTagToken:
			if name, _ := z.TagName(); string(name) == "head" {
				return links
			}

		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			switch string(name) {
			case "head":
				inHead = true
				continue
			case "body":
				return links
			case "link":
			default:
				continue
			}
			if !inHead || !hasAttr {
				continue
			}

			attrs := readAttrs(z)
			if !hasRel(attrs["rel"], "alternate") || attrs["href"] == "" {
				continue
			}

			var atom bool
			switch attrs["type"] {
			case "application/rss+xml":
			case "application/atom+xml":
				atom = true
			default:
				continue
			}

			ref, err := url.Parse(attrs["href"])
			if err != nil {
				continue
			}
			links = append(links, Link{
				URL:   base.ResolveReference(ref).String(),
				Atom:  atom,
				Title: attrs["title"],
			})
		}
	}
}

// readAttrs は現在のタグの属性を小文字キーで返す。relとtypeの値も小文字にする。
func readAttrs(z *html.Tokenizer) map[string]string {
	attrs := make(map[string]string)
	for {
		key, val, more := z.TagAttr()
		k := strings.ToLower(string(key))
		v := strings.TrimSpace(string(val))
		if k == "rel" || k == "type" {
			v = strings.ToLower(v)
		}
		attrs[k] = v
		if !more {
			return attrs
		}
	}
}

// hasRel はスペース区切りのrel値にwantが含まれるかを返す。
func hasRel(rel, want string) bool {
	for _, r := range strings.Fields(rel) {
		if r == want {
			return true
		}
	}
	return false
}

// PickLink は候補から取り込むフィードを1つ選ぶ。
// 入力URLと同じホストを優先し、次にAtom、同点なら先に現れたものを選ぶ。
func PickLink(links []Link, inputURL string) (Link, bool) {
	if len(links) == 0 {
		return Link{}, false
	}

	inputHost := hostOf(inputURL)
	best, bestScore := 0, -1
	for i, l := range links {
		score := 0
		if hostOf(l.URL) == inputHost {
			score += 2
		}
		if l.Atom {
			score++
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	return links[best], true
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
