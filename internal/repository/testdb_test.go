package repository

import (
	"database/sql"
	"os"
	"testing"

	"github.com/hitoshi/travelplanner/internal/database"
)

// openTestDB はTEST_DATABASE_URLのDBにマイグレーションを適用して返す。
// 未設定または接続できない場合はテストをスキップする。
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL が未設定のためスキップ")
	}

	db, err := database.Open(dbURL)
	if err != nil {
		t.Fatalf("データベースへの接続に失敗: %v", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		t.Skipf("テスト用データベースに接続できません（スキップ）: %v", err)
	}
	if err := database.RunMigrations(dbURL); err != nil {
		db.Close()
		t.Fatalf("マイグレーション実行に失敗: %v", err)
	}
	if _, err := db.Exec(`TRUNCATE pending_syncs, itineraries, users CASCADE`); err != nil {
		db.Close()
		t.Fatalf("クリーンアップに失敗: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}
