// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, itinerary, upstream, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeDuplicateEmail     = "DUPLICATE_EMAIL"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeItineraryNotFound  = "ITINERARY_NOT_FOUND"
	ErrCodeCityNotFound       = "CITY_NOT_FOUND"
	ErrCodeSessionExpired     = "SESSION_EXPIRED"
	ErrCodeUpstream           = "UPSTREAM_ERROR"
	ErrCodeRouting            = "ROUTING_ERROR"
	ErrCodeAuthExchange       = "AUTH_EXCHANGE_ERROR"
	ErrCodeDelivery           = "DELIVERY_ERROR"
	ErrCodeRateLimit          = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal           = "INTERNAL_ERROR"
)

// NewValidationError は入力値不正エラーを生成する。
func NewValidationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  fmt.Sprintf("入力内容が正しくありません: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認してから再度お試しください。",
	}
}

// NewInvalidRequestError はリクエストボディの解析失敗エラーを生成する。
func NewInvalidRequestError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	}
}

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewForbiddenError は他ユーザーのリソースへのアクセスエラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "この行程にアクセスする権限がありません。",
		Category: "auth",
		Action:   "自分が保存した行程を選択してください。",
	}
}

// NewDuplicateEmailError は登録済みメールアドレスエラーを生成する。
func NewDuplicateEmailError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateEmail,
		Message:  "このメールアドレスは既に登録されています。",
		Category: "auth",
		Action:   "ログインするか、別のメールアドレスで登録してください。",
	}
}

// NewInvalidCredentialsError はログイン失敗エラーを生成する。
// メールアドレスの存在有無は区別しない。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認してから再度ログインしてください。",
	}
}

// NewNotFoundError は存在しないエンドポイントへのアクセスエラーを生成する。
func NewNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeNotFound,
		Message:  "指定されたリソースが見つかりません。",
		Category: "system",
		Action:   "URLを確認してください。",
	}
}

// NewItineraryNotFoundError は行程未検出エラーを生成する。
func NewItineraryNotFoundError(itineraryID string) *APIError {
	return &APIError{
		Code:     ErrCodeItineraryNotFound,
		Message:  fmt.Sprintf("指定された行程が見つかりません: %s", itineraryID),
		Category: "itinerary",
		Action:   "行程一覧を再読み込みしてください。",
	}
}

// NewCityNotFoundError は都市名のジオコーディング失敗エラーを生成する。
func NewCityNotFoundError(city string) *APIError {
	return &APIError{
		Code:     ErrCodeCityNotFound,
		Message:  fmt.Sprintf("都市が見つかりません: %s", city),
		Category: "route",
		Action:   "都市名の綴りを確認するか、英語表記で入力してください。",
	}
}

// NewSessionExpiredError はカレンダー同期の保留リクエストが存在しない場合のエラーを生成する。
func NewSessionExpiredError() *APIError {
	return &APIError{
		Code:     ErrCodeSessionExpired,
		Message:  "認可セッションの有効期限が切れているか、無効です。",
		Category: "calendar",
		Action:   "行程画面からもう一度カレンダー同期を開始してください。",
	}
}

// NewUpstreamError は外部サービス呼び出し失敗エラーを生成する。
// detailには外部サービスが返したメッセージをそのまま渡す。
func NewUpstreamError(service, detail string) *APIError {
	return &APIError{
		Code:     ErrCodeUpstream,
		Message:  fmt.Sprintf("%sとの通信でエラーが発生しました: %s", service, detail),
		Category: "upstream",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewRoutingError はルート検索失敗エラーを生成する。
func NewRoutingError(detail string) *APIError {
	return &APIError{
		Code:     ErrCodeRouting,
		Message:  fmt.Sprintf("ルートを計画できませんでした: %s", detail),
		Category: "route",
		Action:   "出発地と目的地が陸路で結ばれているか確認してください。",
	}
}

// NewAuthExchangeError は認可コード交換失敗エラーを生成する。
func NewAuthExchangeError(detail string) *APIError {
	return &APIError{
		Code:     ErrCodeAuthExchange,
		Message:  fmt.Sprintf("Googleとの認可処理に失敗しました: %s", detail),
		Category: "calendar",
		Action:   "もう一度カレンダー同期を開始し、アクセスを許可してください。",
	}
}

// NewDeliveryError はメール送信失敗エラーを生成する。
func NewDeliveryError(detail string) *APIError {
	return &APIError{
		Code:     ErrCodeDelivery,
		Message:  fmt.Sprintf("メールの送信に失敗しました: %s", detail),
		Category: "export",
		Action:   "メールアドレスを確認し、しばらく待ってから再度お試しください。",
	}
}

// NewRateLimitError はレート制限超過エラーを生成する。
func NewRateLimitError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimit,
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "Retry-Afterヘッダーの秒数だけ待ってから再度お試しください。",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログのみに記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
