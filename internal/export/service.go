// Package export は会話履歴を旅行ハンドブック（PDF添付付きメール）として送信する。
package export

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/hitoshi/travelplanner/internal/model"
)

// TurnInput はリクエストで受け取った会話の1ターン。
type TurnInput struct {
	Role    string
	Content string
}

// Service はハンドブックのエクスポートを行うサービス。
type Service struct {
	pdf    *PDFRenderer
	html   *HTMLRenderer
	mailer *Mailer
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(pdf *PDFRenderer, html *HTMLRenderer, mailer *Mailer) *Service {
	return &Service{pdf: pdf, html: html, mailer: mailer}
}

// EmailHandbook は会話履歴からハンドブックを生成し、指定アドレスへ送信する。
// 入力の検証はレンダリングの前に行う。
func (s *Service) EmailHandbook(ctx context.Context, email string, history []TurnInput) error {
	to, err := validateRecipient(email)
	if err != nil {
		return err
	}
	turns, err := normalizeHistory(history)
	if err != nil {
		return err
	}

	pdf, err := s.pdf.Render(turns)
	if err != nil {
		return fmt.Errorf("ハンドブックPDFの生成に失敗しました: %w", err)
	}
	htmlBody, err := s.html.Render(turns)
	if err != nil {
		return fmt.Errorf("ハンドブックHTMLの生成に失敗しました: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.mailer.Send(to, htmlBody, pdf); err != nil {
		slog.Error("ハンドブックメールの送信に失敗しました",
			slog.String("error", err.Error()),
		)
		return model.NewDeliveryError(err.Error())
	}

	slog.Info("ハンドブックメールを送信しました",
		slog.Int("turns", len(turns)),
		slog.Int("pdf_bytes", len(pdf)),
	)
	return nil
}

func validateRecipient(email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", model.NewValidationError("メールアドレスは必須です")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", model.NewValidationError("メールアドレスの形式が正しくありません")
	}
	return addr.Address, nil
}

func normalizeHistory(history []TurnInput) ([]model.Turn, error) {
	if len(history) == 0 {
		return nil, model.NewValidationError("エクスポートする会話がありません")
	}
	turns := make([]model.Turn, 0, len(history))
	for _, h := range history {
		role, ok := model.NormalizeRole(h.Role)
		if !ok {
			return nil, model.NewValidationError(fmt.Sprintf("不明な発話者です: %s", h.Role))
		}
		turns = append(turns, model.Turn{Role: role, Content: h.Content})
	}
	return turns, nil
}
