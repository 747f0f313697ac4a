package model

import "time"

// PendingSync はカレンダー同期のOAuthフロー中に保持する保留リクエスト。
// ブラウザセッションごとに最大1件で、コールバックで1回だけ消費される。
type PendingSync struct {
	SessionKey  string `cbor:"-"`
	UserID      string `cbor:"1,keyasint"`
	ItineraryID string `cbor:"2,keyasint"`
	StartDate   string `cbor:"3,keyasint"` // YYYY-MM-DD
	EndDate     string `cbor:"4,keyasint"` // YYYY-MM-DD（利用者視点で最終日を含む）
	State       string `cbor:"5,keyasint"`

	ExpiresAt time.Time `cbor:"-"`
	CreatedAt time.Time `cbor:"-"`
}
