package handler

import (
	"context"

	"github.com/hitoshi/travelplanner/internal/export"
	"github.com/hitoshi/travelplanner/internal/itinerary"
	"github.com/hitoshi/travelplanner/internal/model"
	"github.com/hitoshi/travelplanner/internal/route"
)

// ItineraryServiceAdapter は itinerary.Service を ItineraryServiceInterface に適合させるアダプタ。
type ItineraryServiceAdapter struct {
	svc *itinerary.Service
}

// NewItineraryServiceAdapter はItineraryServiceAdapterを生成する。
func NewItineraryServiceAdapter(svc *itinerary.Service) *ItineraryServiceAdapter {
	return &ItineraryServiceAdapter{svc: svc}
}

// Create はリクエストをドメインの入力に変換して行程を作成する。
func (a *ItineraryServiceAdapter) Create(ctx context.Context, userID string, req createItineraryRequest) (*itineraryResponse, error) {
	conversation := make([]model.Turn, len(req.Conversation))
	for i, t := range req.Conversation {
		conversation[i] = model.Turn{Role: model.Role(t.Role), Content: t.Content}
	}

	it, err := a.svc.Create(ctx, userID, itinerary.CreateInput{
		Title:        req.Title,
		Conversation: conversation,
		Route:        model.Route{StartCity: req.Route.StartCity, EndCity: req.Route.EndCity},
	})
	if err != nil {
		return nil, err
	}
	resp := toItineraryResponse(it)
	return &resp, nil
}

// List はユーザーの行程一覧をhandlerレスポンス型で返す。
func (a *ItineraryServiceAdapter) List(ctx context.Context, userID string) ([]itineraryResponse, error) {
	list, err := a.svc.List(ctx, userID)
	if err != nil {
		return nil, err
	}

	results := make([]itineraryResponse, len(list))
	for i, it := range list {
		results[i] = toItineraryResponse(it)
	}
	return results, nil
}

// Get は行程をhandlerレスポンス型で返す。
func (a *ItineraryServiceAdapter) Get(ctx context.Context, userID, itineraryID string) (*itineraryResponse, error) {
	it, err := a.svc.Get(ctx, userID, itineraryID)
	if err != nil {
		return nil, err
	}
	resp := toItineraryResponse(it)
	return &resp, nil
}

// UpdateTitle はタイトルを更新しhandlerレスポンス型で返す。
func (a *ItineraryServiceAdapter) UpdateTitle(ctx context.Context, userID, itineraryID, title string) (*itineraryResponse, error) {
	it, err := a.svc.UpdateTitle(ctx, userID, itineraryID, title)
	if err != nil {
		return nil, err
	}
	resp := toItineraryResponse(it)
	return &resp, nil
}

// Delete は行程を削除する。
func (a *ItineraryServiceAdapter) Delete(ctx context.Context, userID, itineraryID string) error {
	return a.svc.Delete(ctx, userID, itineraryID)
}

// toItineraryResponse はドメインのItineraryをhandlerのレスポンス型に変換する。
func toItineraryResponse(it *model.Itinerary) itineraryResponse {
	conversation := make([]turnPayload, len(it.Conversation))
	for i, t := range it.Conversation {
		conversation[i] = turnPayload{Role: string(t.Role), Content: t.Content}
	}
	return itineraryResponse{
		ID:           it.ID,
		Title:        it.Title,
		Conversation: conversation,
		Route:        routePayload{StartCity: it.Route.StartCity, EndCity: it.Route.EndCity},
		CreatedAt:    it.CreatedAt,
		UpdatedAt:    it.UpdatedAt,
	}
}

// RouteServiceAdapter は route.Service を RouteServiceInterface に適合させるアダプタ。
type RouteServiceAdapter struct {
	svc *route.Service
}

// NewRouteServiceAdapter はRouteServiceAdapterを生成する。
func NewRouteServiceAdapter(svc *route.Service) *RouteServiceAdapter {
	return &RouteServiceAdapter{svc: svc}
}

// Plan はルートを計画しhandlerレスポンス型で返す。
func (a *RouteServiceAdapter) Plan(ctx context.Context, startCity, endCity string) (*routeResponse, error) {
	plan, err := a.svc.Plan(ctx, startCity, endCity)
	if err != nil {
		return nil, err
	}
	return &routeResponse{
		Route:    plan.Geometry,
		Distance: plan.Distance,
		Duration: plan.Duration,
	}, nil
}

// ExportServiceAdapter は export.Service を ExportServiceInterface に適合させるアダプタ。
type ExportServiceAdapter struct {
	svc *export.Service
}

// NewExportServiceAdapter はExportServiceAdapterを生成する。
func NewExportServiceAdapter(svc *export.Service) *ExportServiceAdapter {
	return &ExportServiceAdapter{svc: svc}
}

// EmailHandbook は会話履歴をドメインの入力に変換してメール送信する。
func (a *ExportServiceAdapter) EmailHandbook(ctx context.Context, email string, history []turnPayload) error {
	turns := make([]export.TurnInput, len(history))
	for i, t := range history {
		turns[i] = export.TurnInput{Role: t.Role, Content: t.Content}
	}
	return a.svc.EmailHandbook(ctx, email, turns)
}
