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

// SSRFGuardService はジオコーディングとルーティングの送信先を制限する。
type SSRFGuardService interface {
	// NewSafeClient は公開アドレスの80/443番ポートにだけ接続するHTTPクライアントを生成する。
	// 接続時の名前解決結果もsafeurlが検証するため、DNS再バインディングも防げる。
	NewSafeClient(timeout time.Duration) *http.Client

	// ValidateURL は設定された送信先URLをDNS解決なしで検証する。
	// NewSafeClientで到達できないURLにはエラーを返す。
	ValidateURL(rawURL string) error
}

// 送信先URLの検証エラー。
var (
	ErrDisallowedScheme = errors.New("disallowed scheme")
	ErrDisallowedPort   = errors.New("disallowed port")
	ErrBlockedHost      = errors.New("blocked host")
)

// upstreamPorts はNominatimとOSRMの公開インスタンスが使うポート。
var upstreamPorts = []int{80, 443}

// blockedPrefixes は内部ネットワークとみなすアドレス範囲。
// 169.254.0.0/16はクラウドのメタデータエンドポイントを含む。
var blockedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("169.254.0.0/16"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("::1/128"),
	netip.MustParsePrefix("fc00::/7"),
	netip.MustParsePrefix("fe80::/10"),
}

type ssrfGuard struct{}

// NewSSRFGuard はSSRFGuardServiceの新しいインスタンスを生成する。
func NewSSRFGuard() *ssrfGuard {
	return &ssrfGuard{}
}

// NewSafeClient はsafeurlで保護されたHTTPクライアントを生成する。
func (g *ssrfGuard) NewSafeClient(timeout time.Duration) *http.Client {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes("http", "https").
		SetAllowedPorts(upstreamPorts...).
		Build()

	return safeurl.Client(config).Client
}

// ValidateURL は送信先URLのスキーム、ポート、ホストを検証する。
// 社内ネットワークに自前のOSRMを置く構成ではエラーになるため、
// 呼び出し側はその場合に限り通常のクライアントを使う。
func (g *ssrfGuard) ValidateURL(rawURL string) error {
	if rawURL == "" {
		return errors.New("empty URL")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return fmt.Errorf("%w: %q", ErrDisallowedScheme, u.Scheme)
	}

	if port := u.Port(); port != "" && port != "80" && port != "443" {
		return fmt.Errorf("%w: %s", ErrDisallowedPort, port)
	}

	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("%w: empty host", ErrBlockedHost)
	}
	if strings.EqualFold(host, "localhost") {
		return fmt.Errorf("%w: %s", ErrBlockedHost, host)
	}
	if addr, err := netip.ParseAddr(host); err == nil && isBlockedAddr(addr) {
		return fmt.Errorf("%w: %s", ErrBlockedHost, addr)
	}
	return nil
}

func isBlockedAddr(addr netip.Addr) bool {
	addr = addr.Unmap()
	for _, p := range blockedPrefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
