package model

import "time"

// User はサービス利用ユーザーを表す。
// PasswordHashはbcryptハッシュで、平文のパスワードは保持しない。
type User struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
