package security

import (
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// URL検証で返す分類済みエラー。
var (
	// ErrInvalidURL はURLとして解釈できない、またはスキームが許可されていないことを表す。
	ErrInvalidURL = errors.New("invalid url")
	// ErrBlockedURL はローカルやプライベートネットワークを指していることを表す。
	ErrBlockedURL = errors.New("blocked url")
)

var allowedSchemes = []string{"http", "https"}

// blockedPrefixes は外部取得を禁止するアドレス範囲。
var blockedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("169.254.0.0/16"), // クラウドメタデータを含む
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("::1/128"),
	netip.MustParsePrefix("fe80::/10"),
	netip.MustParsePrefix("fc00::/7"),
}

// URLGuard はフィードインポート時の外部URL取得を守る。
// Checkは送信前の静的検証、Clientは接続時にDNS解決後のIPを検証する。
type URLGuard struct {
	client *http.Client
}

// NewURLGuard はタイムアウト付きのSSRF防止クライアントを持つURLGuardを生成する。
func NewURLGuard(timeout time.Duration) *URLGuard {
	cfg := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes(allowedSchemes...).
		SetAllowedPorts(80, 443).
		Build()

	return &URLGuard{client: safeurl.Client(cfg).Client}
}

// Client はSSRF防止済みのHTTPクライアントを返す。
func (g *URLGuard) Client() *http.Client {
	return g.client
}

// Check はURLを解析し、DNS解決を伴わない範囲で安全性を検証する。
// 不正なURLはErrInvalidURL、禁止アドレスはErrBlockedURLをラップして返す。
func (g *URLGuard) Check(rawURL string) (*url.URL, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidURL)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return nil, fmt.Errorf("%w: scheme %q is not allowed", ErrInvalidURL, u.Scheme)
	}

	host := u.Hostname()
	if host == "" {
		return nil, fmt.Errorf("%w: missing host", ErrInvalidURL)
	}

	if strings.EqualFold(host, "localhost") || strings.HasSuffix(strings.ToLower(host), ".localhost") {
		return nil, fmt.Errorf("%w: %s", ErrBlockedURL, host)
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		addr = addr.Unmap()
		for _, p := range blockedPrefixes {
			if p.Contains(addr) {
				return nil, fmt.Errorf("%w: %s", ErrBlockedURL, addr)
			}
		}
	}

	return u, nil
}
