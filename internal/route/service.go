// Package route は都市名のジオコーディングとルーティングエンジンによる車の経路取得を提供する。
package route

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/hitoshi/travelplanner/internal/model"
)

// RoutingClient はジオコーディングとルート取得のインターフェース。
type RoutingClient interface {
	// Geocode は都市名を緯度経度に変換する。該当なしの場合はnil, nilを返す。
	Geocode(ctx context.Context, city string) (*Coordinates, error)
	// Route は2地点間のルートを取得する。
	Route(ctx context.Context, from, to Coordinates) (*RouteResult, error)
}

// Plan は2都市間のルート計画の結果。
type Plan struct {
	Geometry json.RawMessage
	Distance float64
	Duration float64
}

// Service はルート計画のサービス層。
type Service struct {
	client RoutingClient
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(client RoutingClient) *Service {
	return &Service{client: client}
}

// Plan は出発地と目的地の都市名から車のルートを計画する。
// ジオコーディングできなかった都市はその都市名を含むエラーで返す。
func (s *Service) Plan(ctx context.Context, startCity, endCity string) (*Plan, error) {
	startCity = strings.TrimSpace(startCity)
	endCity = strings.TrimSpace(endCity)
	if startCity == "" || endCity == "" {
		return nil, model.NewValidationError("出発地と目的地は必須です")
	}

	from, err := s.geocode(ctx, startCity)
	if err != nil {
		return nil, err
	}
	to, err := s.geocode(ctx, endCity)
	if err != nil {
		return nil, err
	}

	result, err := s.client.Route(ctx, *from, *to)
	if err != nil {
		if errors.Is(err, ErrNoRoute) {
			return nil, model.NewRoutingError(err.Error())
		}
		return nil, model.NewUpstreamError("OSRM", err.Error())
	}

	return &Plan{
		Geometry: result.Geometry,
		Distance: result.Distance,
		Duration: result.Duration,
	}, nil
}

func (s *Service) geocode(ctx context.Context, city string) (*Coordinates, error) {
	coords, err := s.client.Geocode(ctx, city)
	if err != nil {
		return nil, model.NewUpstreamError("Nominatim", err.Error())
	}
	if coords == nil {
		return nil, model.NewCityNotFoundError(city)
	}
	return coords, nil
}
