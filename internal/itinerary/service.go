// Package itinerary は保存済み行程の所有者チェック付きCRUDを提供する。
package itinerary

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/travelplanner/internal/model"
	"github.com/hitoshi/travelplanner/internal/repository"
)

// CreateInput は行程作成の入力。
// Conversationのroleは正規化前の値を受け付ける。
type CreateInput struct {
	Title        string
	Conversation []model.Turn
	Route        model.Route
}

// Service は行程管理のサービス層。
// 取得・更新・削除では存在確認の後に所有者を確認し、その後で変更を行う。
type Service struct {
	repo repository.ItineraryRepository
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(repo repository.ItineraryRepository) *Service {
	return &Service{repo: repo}
}

// Create は認証済みユーザーを所有者として行程を作成する。
func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (*model.Itinerary, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, model.NewValidationError("タイトルは必須です")
	}
	if len(in.Conversation) == 0 {
		return nil, model.NewValidationError("会話履歴は必須です")
	}
	if strings.TrimSpace(in.Route.StartCity) == "" || strings.TrimSpace(in.Route.EndCity) == "" {
		return nil, model.NewValidationError("出発地と目的地は必須です")
	}

	conversation := make([]model.Turn, len(in.Conversation))
	for i, turn := range in.Conversation {
		role, ok := model.NormalizeRole(string(turn.Role))
		if !ok {
			return nil, model.NewValidationError(fmt.Sprintf("会話の発話者が不正です: %q", turn.Role))
		}
		conversation[i] = model.Turn{Role: role, Content: turn.Content}
	}

	now := time.Now()
	it := &model.Itinerary{
		ID:           uuid.New().String(),
		UserID:       userID,
		Title:        title,
		Conversation: conversation,
		Route: model.Route{
			StartCity: strings.TrimSpace(in.Route.StartCity),
			EndCity:   strings.TrimSpace(in.Route.EndCity),
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Create(ctx, it); err != nil {
		return nil, fmt.Errorf("行程の作成に失敗しました: %w", err)
	}

	slog.Info("itinerary created",
		slog.String("user_id", userID),
		slog.String("itinerary_id", it.ID),
	)
	return it, nil
}

// List はユーザーの行程一覧を新しい順に返す。
func (s *Service) List(ctx context.Context, userID string) ([]*model.Itinerary, error) {
	items, err := s.repo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("行程一覧の取得に失敗しました: %w", err)
	}
	if items == nil {
		items = []*model.Itinerary{}
	}
	return items, nil
}

// Get は所有者の行程を1件返す。
func (s *Service) Get(ctx context.Context, userID, itineraryID string) (*model.Itinerary, error) {
	return s.findOwned(ctx, userID, itineraryID)
}

// UpdateTitle は行程のタイトルを更新する。
// 同じタイトルで繰り返し呼んでも最終状態は変わらない。
func (s *Service) UpdateTitle(ctx context.Context, userID, itineraryID, title string) (*model.Itinerary, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, model.NewValidationError("タイトルは必須です")
	}

	if _, err := s.findOwned(ctx, userID, itineraryID); err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateTitle(ctx, itineraryID, title)
	if err != nil {
		return nil, fmt.Errorf("行程タイトルの更新に失敗しました: %w", err)
	}
	// 確認と更新の間に削除された場合
	if updated == nil {
		return nil, model.NewItineraryNotFoundError(itineraryID)
	}
	return updated, nil
}

// Delete は行程を削除する。
func (s *Service) Delete(ctx context.Context, userID, itineraryID string) error {
	if _, err := s.findOwned(ctx, userID, itineraryID); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, itineraryID); err != nil {
		return fmt.Errorf("行程の削除に失敗しました: %w", err)
	}

	slog.Info("itinerary deleted",
		slog.String("user_id", userID),
		slog.String("itinerary_id", itineraryID),
	)
	return nil
}

// findOwned は行程を取得し、存在と所有者をこの順で確認する。
// UUIDとして解釈できないIDは存在しないものとして扱う。
func (s *Service) findOwned(ctx context.Context, userID, itineraryID string) (*model.Itinerary, error) {
	if _, err := uuid.Parse(itineraryID); err != nil {
		return nil, model.NewItineraryNotFoundError(itineraryID)
	}

	it, err := s.repo.FindByID(ctx, itineraryID)
	if err != nil {
		return nil, fmt.Errorf("行程の取得に失敗しました: %w", err)
	}
	if it == nil {
		return nil, model.NewItineraryNotFoundError(itineraryID)
	}
	if it.UserID != userID {
		return nil, model.NewForbiddenError()
	}
	return it, nil
}
