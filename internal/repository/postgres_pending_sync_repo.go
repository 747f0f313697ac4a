package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/hitoshi/travelplanner/internal/model"
)

// syncEncMode は保留リクエストのペイロードをCore Deterministic Encodingで符号化する。
var syncEncMode cbor.EncMode

func init() {
	var err error
	syncEncMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("repository: CBOR encoder initialization failed: " + err.Error())
	}
}

// PostgresPendingSyncRepo はPostgreSQLを使用した保留同期リクエストのリポジトリ。
// ペイロードはCBORでdata列に保存する。
type PostgresPendingSyncRepo struct {
	db *sql.DB
}

// NewPostgresPendingSyncRepo はPostgresPendingSyncRepoを生成する。
func NewPostgresPendingSyncRepo(db *sql.DB) *PostgresPendingSyncRepo {
	return &PostgresPendingSyncRepo{db: db}
}

// Upsert は保留リクエストを保存する。同じセッションキーの既存リクエストは上書きされる。
func (r *PostgresPendingSyncRepo) Upsert(ctx context.Context, pending *model.PendingSync) error {
	data, err := syncEncMode.Marshal(pending)
	if err != nil {
		return fmt.Errorf("failed to encode pending sync: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO pending_syncs (session_key, data, expires_at, created_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (session_key)
		 DO UPDATE SET data = EXCLUDED.data, expires_at = EXCLUDED.expires_at, created_at = EXCLUDED.created_at`,
		pending.SessionKey, data, pending.ExpiresAt, pending.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert pending sync: %w", err)
	}
	return nil
}

// Consume は保留リクエストを取得すると同時に削除する。
// DELETE ... RETURNINGで取得と削除を1文で行うため、同じリクエストが2回消費されることはない。
// 存在しないか期限切れの場合はnilを返す。
func (r *PostgresPendingSyncRepo) Consume(ctx context.Context, sessionKey string) (*model.PendingSync, error) {
	pending := &model.PendingSync{}
	var data []byte
	err := r.db.QueryRowContext(ctx,
		`DELETE FROM pending_syncs
		 WHERE session_key = $1
		 RETURNING session_key, data, expires_at, created_at`,
		sessionKey,
	).Scan(&pending.SessionKey, &data, &pending.ExpiresAt, &pending.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to consume pending sync: %w", err)
	}

	if err := cbor.Unmarshal(data, pending); err != nil {
		return nil, fmt.Errorf("failed to decode pending sync: %w", err)
	}

	// 期限切れの行は削除だけ行い、存在しないものとして扱う
	if !pending.ExpiresAt.After(time.Now()) {
		return nil, nil
	}

	return pending, nil
}

// DeleteExpired は期限切れの保留リクエストを削除し、削除件数を返す。
func (r *PostgresPendingSyncRepo) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM pending_syncs WHERE expires_at <= now()`,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired pending syncs: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

// compile-time interface check
var _ PendingSyncRepository = (*PostgresPendingSyncRepo)(nil)
