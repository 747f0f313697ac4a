// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/travelplanner/internal/model"
)

// ErrDuplicateEmail はメールアドレスの一意制約違反を表す。
var ErrDuplicateEmail = errors.New("email already registered")

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成する。
	// メールアドレスが既に使われている場合はErrDuplicateEmailを返す。
	Create(ctx context.Context, user *model.User) error
}

// ItineraryRepository は行程データの永続化インターフェース。
// 所有者の検証はサービス層で行う。
type ItineraryRepository interface {
	// FindByID は指定IDの行程を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Itinerary, error)

	// ListByUserID はユーザーの行程一覧をcreated_at降順で返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.Itinerary, error)

	// Create は行程を作成する。
	Create(ctx context.Context, itinerary *model.Itinerary) error

	// UpdateTitle は行程のタイトルを更新し、更新後の行程を返す。
	// 見つからない場合はnilを返す。
	UpdateTitle(ctx context.Context, id, title string) (*model.Itinerary, error)

	// Delete は指定IDの行程を削除する。
	Delete(ctx context.Context, id string) error
}

// PendingSyncRepository はカレンダー同期の保留リクエストの永続化インターフェース。
// セッションキーごとに最大1件を保持する。
type PendingSyncRepository interface {
	// Upsert は保留リクエストを保存する。同じセッションキーの既存リクエストは上書きされる。
	Upsert(ctx context.Context, pending *model.PendingSync) error

	// Consume は保留リクエストを取得すると同時に削除する。
	// 存在しないか期限切れの場合はnilを返す。
	Consume(ctx context.Context, sessionKey string) (*model.PendingSync, error)

	// DeleteExpired は期限切れの保留リクエストを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}
