// Package chat は旅行プランナーのペルソナを付けて言語モデルに1件のメッセージを転送する。
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/travelplanner/internal/model"
	openai "github.com/sashabaranov/go-openai"
)

// Persona はすべての会話の先頭に付与するシステムメッセージ。
const Persona = "你是一位專業的歐洲旅遊規劃師。"

// DefaultModel は既定の言語モデル。
const DefaultModel = openai.GPT3Dot5Turbo

// serviceName はエラーメッセージとログに使う外部サービス名。
const serviceName = "OpenAI"

// Config はチャットサービスの設定。
type Config struct {
	APIKey  string
	BaseURL string // 空の場合はOpenAIの公開エンドポイント
	Model   string
	// HTTPClient はタイムアウトと計測を設定済みのクライアント。nilの場合は既定のクライアント。
	HTTPClient *http.Client
}

// Service は言語モデルへのチャット転送を提供する。
type Service struct {
	client *openai.Client
	model  string
}

// NewService はServiceを生成する。
func NewService(config Config) *Service {
	cfg := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		cfg.BaseURL = strings.TrimRight(config.BaseURL, "/")
	}
	if config.HTTPClient != nil {
		cfg.HTTPClient = config.HTTPClient
	}
	modelName := config.Model
	if modelName == "" {
		modelName = DefaultModel
	}
	return &Service{
		client: openai.NewClientWithConfig(cfg),
		model:  modelName,
	}
}

// Reply はユーザーのメッセージに対する言語モデルの応答をそのまま返す。
func (s *Service) Reply(ctx context.Context, message string) (string, error) {
	if strings.TrimSpace(message) == "" {
		return "", model.NewValidationError("メッセージは必須です")
	}

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: Persona},
			{Role: openai.ChatMessageRoleUser, Content: message},
		},
	})
	if err != nil {
		slog.Warn("chat completion failed", slog.String("error", err.Error()))
		return "", model.NewUpstreamError(serviceName, upstreamMessage(err))
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", model.NewUpstreamError(serviceName, "応答が空です")
	}

	return resp.Choices[0].Message.Content, nil
}

// upstreamMessage は外部サービスが返したエラーメッセージを取り出す。
func upstreamMessage(err error) string {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Sprintf("status %d", reqErr.HTTPStatusCode)
	}
	return err.Error()
}
