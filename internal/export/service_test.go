package export

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hitoshi/travelplanner/internal/model"
	"github.com/hitoshi/travelplanner/internal/security"
)

func newTestService(t *testing.T, sender *fakeSender) *Service {
	t.Helper()
	return NewService(
		newTestPDFRenderer(t),
		NewHTMLRenderer(security.NewContentSanitizer()),
		NewMailer(sender, "planner@example.com"),
	)
}

func validHistory() []TurnInput {
	return []TurnInput{
		{Role: "user", Content: "Paris to Lyon"},
		{Role: "ai", Content: "Take the A6."},
	}
}

func assertAPIErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("APIError を返すべき: %v", err)
	}
	if apiErr.Code != code {
		t.Fatalf("エラーコード = %s, want %s", apiErr.Code, code)
	}
}

func TestService_EmailHandbook_Success(t *testing.T) {
	sender := &fakeSender{}
	svc := newTestService(t, sender)

	if err := svc.EmailHandbook(context.Background(), " traveler@example.com ", validHistory()); err != nil {
		t.Fatalf("EmailHandbook がエラーを返した: %v", err)
	}
	if len(sender.messages) != 1 {
		t.Fatalf("送信数 = %d, want 1", len(sender.messages))
	}
	if got := sender.messages[0].GetHeader("To"); got[0] != "traveler@example.com" {
		t.Errorf("To = %v, want traveler@example.com", got)
	}
}

func TestService_EmailHandbook_Validation(t *testing.T) {
	tests := []struct {
		name    string
		email   string
		history []TurnInput
	}{
		{"メールアドレスなし", "", validHistory()},
		{"不正なメールアドレス", "not-an-email", validHistory()},
		{"表示名付きアドレス", "Bob <bob@example.com>", validHistory()},
		{"履歴なし", "traveler@example.com", nil},
		{"不明な発話者", "traveler@example.com", []TurnInput{{Role: "system", Content: "x"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &fakeSender{}
			svc := newTestService(t, sender)

			err := svc.EmailHandbook(context.Background(), tt.email, tt.history)
			assertAPIErrorCode(t, err, model.ErrCodeValidation)
			if len(sender.messages) != 0 {
				t.Error("入力不正時は送信してはならない")
			}
		})
	}
}

func TestService_EmailHandbook_DeliveryFailure(t *testing.T) {
	sender := &fakeSender{err: errors.New("dial tcp: connection refused")}
	svc := newTestService(t, sender)

	err := svc.EmailHandbook(context.Background(), "traveler@example.com", validHistory())
	assertAPIErrorCode(t, err, model.ErrCodeDelivery)

	var apiErr *model.APIError
	errors.As(err, &apiErr)
	if !strings.Contains(apiErr.Message, "connection refused") {
		t.Errorf("メッセージに原因を含むべき: %s", apiErr.Message)
	}
}

func TestService_EmailHandbook_CanceledContext(t *testing.T) {
	sender := &fakeSender{}
	svc := newTestService(t, sender)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := svc.EmailHandbook(ctx, "traveler@example.com", validHistory())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("エラー = %v, want context.Canceled", err)
	}
	if len(sender.messages) != 0 {
		t.Error("キャンセル後は送信してはならない")
	}
}
