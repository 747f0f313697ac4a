package model

import "time"

// Role は会話ターンの発話者を表す。
type Role string

const (
	// RoleUser はユーザーの発話。
	RoleUser Role = "user"
	// RoleAssistant はAIの応答。
	RoleAssistant Role = "assistant"
)

// NormalizeRole は発話者を正規化する。
// 旧フロントエンドが送る "ai" は assistant として扱う。
// 未知の値の場合はfalseを返す。
func NormalizeRole(raw string) (Role, bool) {
	switch raw {
	case "user":
		return RoleUser, true
	case "assistant", "ai":
		return RoleAssistant, true
	default:
		return "", false
	}
}

// Turn は会話の1ターンを表す。
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Route は行程の出発地と目的地を表す。
type Route struct {
	StartCity string `json:"startCity"`
	EndCity   string `json:"endCity"`
}

// Itinerary はユーザーが保存した旅行計画を表す。
// 所有者（UserID）は作成時に決まり、以降変更されない。
type Itinerary struct {
	ID           string
	UserID       string
	Title        string
	Conversation []Turn
	Route        Route
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
