package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/hitoshi/travelplanner/internal/model"
)

// PostgresItineraryRepo はPostgreSQLを使用した行程リポジトリ。
// 会話とルートはJSONB列に保存する。
type PostgresItineraryRepo struct {
	db *sql.DB
}

// NewPostgresItineraryRepo はPostgresItineraryRepoを生成する。
func NewPostgresItineraryRepo(db *sql.DB) *PostgresItineraryRepo {
	return &PostgresItineraryRepo{db: db}
}

const itineraryColumns = `id, user_id, title, conversation, route, created_at, updated_at`

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

// scanItinerary は1行分の行程を読み取り、JSONB列をデコードする。
func scanItinerary(row rowScanner) (*model.Itinerary, error) {
	it := &model.Itinerary{}
	var conversation, route []byte
	if err := row.Scan(&it.ID, &it.UserID, &it.Title, &conversation, &route, &it.CreatedAt, &it.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(conversation, &it.Conversation); err != nil {
		return nil, fmt.Errorf("会話データのデコードに失敗しました: %w", err)
	}
	if err := json.Unmarshal(route, &it.Route); err != nil {
		return nil, fmt.Errorf("ルートデータのデコードに失敗しました: %w", err)
	}
	return it, nil
}

// FindByID は指定IDの行程を取得する。見つからない場合はnilを返す。
func (r *PostgresItineraryRepo) FindByID(ctx context.Context, id string) (*model.Itinerary, error) {
	it, err := scanItinerary(r.db.QueryRowContext(ctx,
		`SELECT `+itineraryColumns+` FROM itineraries WHERE id = $1`,
		id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("行程の取得に失敗しました: %w", err)
	}
	return it, nil
}

// ListByUserID はユーザーの行程一覧をcreated_at降順で返す。
func (r *PostgresItineraryRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Itinerary, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+itineraryColumns+` FROM itineraries
		 WHERE user_id = $1
		 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("行程一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var results []*model.Itinerary
	for rows.Next() {
		it, err := scanItinerary(rows)
		if err != nil {
			return nil, fmt.Errorf("行程の読み取りに失敗しました: %w", err)
		}
		results = append(results, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("行程一覧の走査に失敗しました: %w", err)
	}

	return results, nil
}

// Create は行程を作成する。
func (r *PostgresItineraryRepo) Create(ctx context.Context, it *model.Itinerary) error {
	conversation, err := json.Marshal(it.Conversation)
	if err != nil {
		return fmt.Errorf("会話データのエンコードに失敗しました: %w", err)
	}
	route, err := json.Marshal(it.Route)
	if err != nil {
		return fmt.Errorf("ルートデータのエンコードに失敗しました: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO itineraries (id, user_id, title, conversation, route, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		it.ID, it.UserID, it.Title, conversation, route, it.CreatedAt, it.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("行程の作成に失敗しました: %w", err)
	}
	return nil
}

// UpdateTitle は行程のタイトルを更新し、更新後の行程を返す。
// タイトルが変わらない場合は書き込まず、updated_atも含めて現在の行程をそのまま返す。
func (r *PostgresItineraryRepo) UpdateTitle(ctx context.Context, id, title string) (*model.Itinerary, error) {
	it, err := scanItinerary(r.db.QueryRowContext(ctx,
		`UPDATE itineraries SET title = $2, updated_at = now()
		 WHERE id = $1 AND title IS DISTINCT FROM $2
		 RETURNING `+itineraryColumns,
		id, title,
	))
	if err == sql.ErrNoRows {
		// 存在しないか、同じタイトル
		return r.FindByID(ctx, id)
	}
	if err != nil {
		return nil, fmt.Errorf("行程タイトルの更新に失敗しました: %w", err)
	}
	return it, nil
}

// Delete は指定IDの行程を削除する。
func (r *PostgresItineraryRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM itineraries WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("行程の削除に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ ItineraryRepository = (*PostgresItineraryRepo)(nil)
