package calendarsync

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// PrimaryCalendarID はイベントの登録先カレンダー。
const PrimaryCalendarID = "primary"

// Provider は外部カレンダーとの認可・イベント登録のインターフェース。
// 実装はリクエスト間で状態を持たない。
type Provider interface {
	// AuthCodeURL は認可画面のURLを生成する。
	AuthCodeURL(state string) string
	// Exchange は認可コードをトークンに交換する。
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	// InsertEvent はトークンの持ち主のプライマリカレンダーにイベントを登録する。
	InsertEvent(ctx context.Context, token *oauth2.Token, event *calendar.Event) (*calendar.Event, error)
}

// GoogleConfig はGoogleプロバイダーの設定。
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// テスト用にオーバーライド可能なURL
	AuthURL          string
	TokenURL         string
	CalendarEndpoint string

	// HTTPClient はトークン交換とカレンダーAPI呼び出しの下位トランスポートに使う。
	HTTPClient *http.Client
}

// GoogleProvider はGoogle OAuth 2.0とGoogle Calendar APIを使うProvider。
type GoogleProvider struct {
	config GoogleConfig
}

// NewGoogleProvider はGoogleProviderを生成する。
func NewGoogleProvider(config GoogleConfig) *GoogleProvider {
	return &GoogleProvider{config: config}
}

// oauthConfig は静的な認証情報から呼び出しごとにoauth2.Configを組み立てる。
func (p *GoogleProvider) oauthConfig() oauth2.Config {
	endpoint := google.Endpoint
	if p.config.AuthURL != "" {
		endpoint.AuthURL = p.config.AuthURL
	}
	if p.config.TokenURL != "" {
		endpoint.TokenURL = p.config.TokenURL
	}
	return oauth2.Config{
		ClientID:     p.config.ClientID,
		ClientSecret: p.config.ClientSecret,
		RedirectURL:  p.config.RedirectURL,
		Endpoint:     endpoint,
		Scopes:       []string{calendar.CalendarEventsScope},
	}
}

func (p *GoogleProvider) withHTTPClient(ctx context.Context) context.Context {
	if p.config.HTTPClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, p.config.HTTPClient)
}

// AuthCodeURL はカレンダーイベント書き込みスコープの認可URLを生成する。
// オフラインアクセスを要求するが、取得したリフレッシュトークンは保存しない。
func (p *GoogleProvider) AuthCodeURL(state string) string {
	cfg := p.oauthConfig()
	return cfg.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("include_granted_scopes", "true"),
	)
}

// Exchange は認可コードをトークンに交換する。
func (p *GoogleProvider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	cfg := p.oauthConfig()
	token, err := cfg.Exchange(p.withHTTPClient(ctx), code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	return token, nil
}

// InsertEvent はプライマリカレンダーにイベントを登録する。
func (p *GoogleProvider) InsertEvent(ctx context.Context, token *oauth2.Token, event *calendar.Event) (*calendar.Event, error) {
	cfg := p.oauthConfig()
	opts := []option.ClientOption{
		option.WithHTTPClient(cfg.Client(p.withHTTPClient(ctx), token)),
	}
	if p.config.CalendarEndpoint != "" {
		opts = append(opts, option.WithEndpoint(p.config.CalendarEndpoint))
	}

	svc, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}

	created, err := svc.Events.Insert(PrimaryCalendarID, event).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to insert calendar event: %w", err)
	}
	return created, nil
}

// compile-time interface check
var _ Provider = (*GoogleProvider)(nil)
