// Package calendarsync は保存済み行程をGoogleカレンダーの終日イベントとして登録する
// 2段階のOAuth連携（準備とコールバック）を提供する。
//
// 準備ではブラウザセッションごとに1件の保留リクエストを保存して認可URLを返す。
// コールバックでは外部呼び出しの前に保留リクエストを消費し、
// 認可コードの交換、行程の読み込み、イベント登録を順に行う。
// 途中で失敗した場合は準備からやり直す必要がある。
package calendarsync

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/travelplanner/internal/model"
	"github.com/hitoshi/travelplanner/internal/repository"
)

// DefaultRequestTTL は保留リクエストの既定の有効期間。
const DefaultRequestTTL = 10 * time.Minute

// SuccessParam はリダイレクト先に付与する同期成功の印。
const SuccessParam = "sync_success"

// PrepareInput は同期準備の入力。
type PrepareInput struct {
	ItineraryID string
	StartDate   string
	EndDate     string
}

// PrepareResult は同期準備の結果。
// SessionIDは呼び出し元がCookieに設定する。
type PrepareResult struct {
	AuthorizationURL string
	SessionID        string
}

// CallbackInput は認可サーバーからのコールバックの入力。
type CallbackInput struct {
	Code  string
	State string
	Error string // ユーザーが拒否した場合などに認可サーバーが返すerrorパラメータ
}

// Config は同期サービスの設定。
type Config struct {
	RequestTTL  time.Duration
	FrontendURL string
}

// Service はカレンダー同期の準備とコールバックを処理する。
type Service struct {
	pending     repository.PendingSyncRepository
	itineraries repository.ItineraryRepository
	provider    Provider
	keys        *SessionKeys
	config      Config
	now         func() time.Time
}

// NewService はServiceを生成する。
func NewService(
	pending repository.PendingSyncRepository,
	itineraries repository.ItineraryRepository,
	provider Provider,
	keys *SessionKeys,
	config Config,
) *Service {
	if config.RequestTTL <= 0 {
		config.RequestTTL = DefaultRequestTTL
	}
	return &Service{
		pending:     pending,
		itineraries: itineraries,
		provider:    provider,
		keys:        keys,
		config:      config,
		now:         time.Now,
	}
}

// Prepare は同期パラメータを保留リクエストとして保存し、認可URLを返す。
// 同じセッションの既存の保留リクエストは上書きされる。
// sessionIDが空または形式不正の場合は新しいセッションIDを発行する。
// 入力が不正な場合は何も保存しない。
func (s *Service) Prepare(ctx context.Context, userID, sessionID string, in PrepareInput) (*PrepareResult, error) {
	in.ItineraryID = strings.TrimSpace(in.ItineraryID)
	in.StartDate = strings.TrimSpace(in.StartDate)
	in.EndDate = strings.TrimSpace(in.EndDate)

	if err := validateDates(in); err != nil {
		return nil, err
	}

	if _, err := uuid.Parse(in.ItineraryID); err != nil {
		return nil, model.NewItineraryNotFoundError(in.ItineraryID)
	}
	it, err := s.itineraries.FindByID(ctx, in.ItineraryID)
	if err != nil {
		return nil, fmt.Errorf("行程の取得に失敗しました: %w", err)
	}
	if it == nil {
		return nil, model.NewItineraryNotFoundError(in.ItineraryID)
	}
	if it.UserID != userID {
		return nil, model.NewForbiddenError()
	}

	if !ValidSessionID(sessionID) {
		sessionID, err = NewSessionID()
		if err != nil {
			return nil, fmt.Errorf("セッションIDの生成に失敗しました: %w", err)
		}
	}
	state, err := newState()
	if err != nil {
		return nil, fmt.Errorf("stateの生成に失敗しました: %w", err)
	}

	now := s.now()
	pending := &model.PendingSync{
		SessionKey:  s.keys.Derive(sessionID),
		UserID:      userID,
		ItineraryID: in.ItineraryID,
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
		State:       state,
		ExpiresAt:   now.Add(s.config.RequestTTL),
		CreatedAt:   now,
	}
	if err := s.pending.Upsert(ctx, pending); err != nil {
		return nil, fmt.Errorf("保留リクエストの保存に失敗しました: %w", err)
	}

	slog.Info("calendar sync prepared",
		slog.String("user_id", userID),
		slog.String("itinerary_id", in.ItineraryID),
	)

	return &PrepareResult{
		AuthorizationURL: s.provider.AuthCodeURL(state),
		SessionID:        sessionID,
	}, nil
}

// Callback は保留リクエストを消費してカレンダーにイベントを登録し、
// 成功時のリダイレクト先URLを返す。
func (s *Service) Callback(ctx context.Context, sessionID string, in CallbackInput) (string, error) {
	if !ValidSessionID(sessionID) {
		return "", model.NewSessionExpiredError()
	}

	// 外部呼び出しの前に消費する。以降の失敗では再度準備が必要になる。
	pending, err := s.pending.Consume(ctx, s.keys.Derive(sessionID))
	if err != nil {
		return "", fmt.Errorf("保留リクエストの取得に失敗しました: %w", err)
	}
	if pending == nil {
		return "", model.NewSessionExpiredError()
	}

	if subtle.ConstantTimeCompare([]byte(in.State), []byte(pending.State)) != 1 {
		slog.Warn("calendar sync state mismatch", slog.String("user_id", pending.UserID))
		return "", model.NewValidationError("stateが一致しません")
	}
	if in.Error != "" {
		return "", model.NewAuthExchangeError(in.Error)
	}
	if in.Code == "" {
		return "", model.NewValidationError("認可コードがありません")
	}

	token, err := s.provider.Exchange(ctx, in.Code)
	if err != nil {
		slog.Warn("authorization code exchange failed",
			slog.String("user_id", pending.UserID),
			slog.String("error", err.Error()),
		)
		return "", model.NewAuthExchangeError(err.Error())
	}

	it, err := s.itineraries.FindByID(ctx, pending.ItineraryID)
	if err != nil {
		return "", fmt.Errorf("行程の取得に失敗しました: %w", err)
	}
	if it == nil {
		return "", model.NewItineraryNotFoundError(pending.ItineraryID)
	}
	if it.UserID != pending.UserID {
		return "", model.NewForbiddenError()
	}

	event, err := BuildEvent(it, pending.StartDate, pending.EndDate)
	if err != nil {
		return "", model.NewValidationError(err.Error())
	}

	created, err := s.provider.InsertEvent(ctx, token, event)
	if err != nil {
		return "", model.NewUpstreamError("Google Calendar", err.Error())
	}

	slog.Info("calendar event created",
		slog.String("user_id", pending.UserID),
		slog.String("itinerary_id", it.ID),
		slog.String("event_id", created.Id),
	)

	return s.successURL()
}

// successURL はフロントエンドURLに同期成功の印を付与する。
func (s *Service) successURL() (string, error) {
	u, err := url.Parse(s.config.FrontendURL)
	if err != nil {
		return "", fmt.Errorf("フロントエンドURLが不正です: %w", err)
	}
	q := u.Query()
	q.Set(SuccessParam, "true")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// validateDates は必須項目と日付の形式・前後関係を検証する。
func validateDates(in PrepareInput) error {
	if in.ItineraryID == "" || in.StartDate == "" || in.EndDate == "" {
		return model.NewValidationError("itineraryId、startDate、endDateは必須です")
	}
	start, err := time.Parse(DateLayout, in.StartDate)
	if err != nil {
		return model.NewValidationError("startDateはYYYY-MM-DD形式で指定してください")
	}
	end, err := time.Parse(DateLayout, in.EndDate)
	if err != nil {
		return model.NewValidationError("endDateはYYYY-MM-DD形式で指定してください")
	}
	if end.Before(start) {
		return model.NewValidationError("endDateはstartDate以降の日付を指定してください")
	}
	return nil
}
