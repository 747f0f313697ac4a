package calendarsync

import (
	"fmt"
	"strings"
	"time"

	"github.com/hitoshi/travelplanner/internal/model"
	"google.golang.org/api/calendar/v3"
)

// DateLayout は同期リクエストの日付形式（YYYY-MM-DD）。
const DateLayout = "2006-01-02"

// 説明欄の発話者ラベル
const (
	userLabel      = "你"
	assistantLabel = "AI"
)

// BuildEvent は行程と日付範囲から終日イベントを組み立てる。
// endDateは利用者視点で最終日を含むため、カレンダーの排他的な終了日として1日進める。
func BuildEvent(it *model.Itinerary, startDate, endDate string) (*calendar.Event, error) {
	if _, err := time.Parse(DateLayout, startDate); err != nil {
		return nil, fmt.Errorf("invalid start date %q: %w", startDate, err)
	}
	end, err := time.Parse(DateLayout, endDate)
	if err != nil {
		return nil, fmt.Errorf("invalid end date %q: %w", endDate, err)
	}

	return &calendar.Event{
		Summary:     it.Title,
		Description: RenderConversation(it.Conversation),
		Location:    it.Route.StartCity,
		Start:       &calendar.EventDateTime{Date: startDate},
		End:         &calendar.EventDateTime{Date: end.AddDate(0, 0, 1).Format(DateLayout)},
	}, nil
}

// RenderConversation は会話を「ラベル: 内容」の形で空行区切りに連結する。
func RenderConversation(turns []model.Turn) string {
	blocks := make([]string, 0, len(turns))
	for _, turn := range turns {
		label := assistantLabel
		if turn.Role == model.RoleUser {
			label = userLabel
		}
		blocks = append(blocks, label+": "+turn.Content)
	}
	return strings.Join(blocks, "\n\n")
}
