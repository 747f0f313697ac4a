package route

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const (
	// DefaultNominatimURL は公開Nominatimインスタンスのベース URL。
	DefaultNominatimURL = "https://nominatim.openstreetmap.org"
	// DefaultOSRMURL は公開OSRMデモサーバーのベースURL。
	DefaultOSRMURL = "http://router.project-osrm.org"
	// UserAgent はNominatimの利用規約で必須とされる識別用ヘッダー値。
	UserAgent = "MyTourPlanner/1.0"

	// DefaultMaxResponseBytes はレスポンスボディの既定の読み取り上限。
	// full overviewのGeoJSONは数MBになりうる。
	DefaultMaxResponseBytes int64 = 16 << 20
)

var (
	// ErrNoRoute はルーティングエンジンがルートを返さなかったことを表す。
	ErrNoRoute = errors.New("no route found")
	// ErrResponseTooLarge はレスポンスボディが読み取り上限を超えたことを表す。
	ErrResponseTooLarge = errors.New("upstream response too large")
)

// Coordinates は緯度経度を表す。
type Coordinates struct {
	Lat float64
	Lon float64
}

// RouteResult はルーティングエンジンが返した最初のルート。
type RouteResult struct {
	Geometry json.RawMessage // GeoJSON LineString
	Distance float64         // メートル
	Duration float64         // 秒
}

// Client はNominatim（ジオコーディング）とOSRM（ルーティング）のクライアント。
type Client struct {
	httpClient   *http.Client
	logger       *slog.Logger
	nominatimURL string
	osrmURL      string
	maxBody      int64
}

// NewClient はClientの新しいインスタンスを生成する。
// URLが空の場合は公開インスタンスを使う。
// maxBodyが0以下の場合はDefaultMaxResponseBytesを上限とする。
func NewClient(httpClient *http.Client, logger *slog.Logger, nominatimURL, osrmURL string, maxBody int64) *Client {
	if nominatimURL == "" {
		nominatimURL = DefaultNominatimURL
	}
	if osrmURL == "" {
		osrmURL = DefaultOSRMURL
	}
	if maxBody <= 0 {
		maxBody = DefaultMaxResponseBytes
	}
	return &Client{
		httpClient:   httpClient,
		logger:       logger,
		nominatimURL: strings.TrimRight(nominatimURL, "/"),
		osrmURL:      strings.TrimRight(osrmURL, "/"),
		maxBody:      maxBody,
	}
}

// nominatimPlace はNominatim検索結果の1件。緯度経度は文字列で返される。
type nominatimPlace struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Geocode は都市名を緯度経度に変換する。
// 該当する都市がない場合はnil, nilを返す。
func (c *Client) Geocode(ctx context.Context, city string) (*Coordinates, error) {
	reqURL, err := url.Parse(c.nominatimURL + "/search")
	if err != nil {
		return nil, fmt.Errorf("NominatimのURLのパースに失敗しました: %w", err)
	}
	q := reqURL.Query()
	q.Set("city", city)
	q.Set("format", "json")
	q.Set("limit", "1")
	reqURL.RawQuery = q.Encode()

	body, status, err := c.get(ctx, reqURL.String())
	if err != nil {
		c.logger.Error("Nominatimの呼び出しに失敗しました",
			slog.String("error", err.Error()),
			slog.String("city", city),
		)
		return nil, err
	}
	if status != http.StatusOK {
		c.logger.Error("Nominatimがエラーステータスを返しました",
			slog.Int("http_status", status),
			slog.String("city", city),
		)
		return nil, fmt.Errorf("Nominatimがステータス %d を返しました", status)
	}

	var places []nominatimPlace
	if err := json.Unmarshal(body, &places); err != nil {
		return nil, fmt.Errorf("Nominatimのレスポンスのパースに失敗しました: %w", err)
	}
	if len(places) == 0 {
		return nil, nil
	}

	lat, err := strconv.ParseFloat(places[0].Lat, 64)
	if err != nil {
		return nil, fmt.Errorf("緯度のパースに失敗しました: %w", err)
	}
	lon, err := strconv.ParseFloat(places[0].Lon, 64)
	if err != nil {
		return nil, fmt.Errorf("経度のパースに失敗しました: %w", err)
	}

	return &Coordinates{Lat: lat, Lon: lon}, nil
}

// osrmResponse はOSRM route APIのレスポンス。
type osrmResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Routes  []struct {
		Geometry json.RawMessage `json:"geometry"`
		Distance float64         `json:"distance"`
		Duration float64         `json:"duration"`
	} `json:"routes"`
}

// Route は2地点間の車のルートを取得する。
// OSRMがルートを返さない場合はErrNoRouteをラップしたエラーを返す。
func (c *Client) Route(ctx context.Context, from, to Coordinates) (*RouteResult, error) {
	// OSRMの座標順は経度,緯度
	reqURL := fmt.Sprintf("%s/route/v1/driving/%s,%s;%s,%s?overview=full&geometries=geojson",
		c.osrmURL,
		formatCoord(from.Lon), formatCoord(from.Lat),
		formatCoord(to.Lon), formatCoord(to.Lat),
	)

	body, status, err := c.get(ctx, reqURL)
	if err != nil {
		c.logger.Error("OSRMの呼び出しに失敗しました", slog.String("error", err.Error()))
		return nil, err
	}

	var resp osrmResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		if status != http.StatusOK {
			return nil, fmt.Errorf("OSRMがステータス %d を返しました", status)
		}
		return nil, fmt.Errorf("OSRMのレスポンスのパースに失敗しました: %w", err)
	}

	// ルートなしはHTTP 400とcode=NoRoute等で返される
	if resp.Code != "Ok" || len(resp.Routes) == 0 {
		detail := resp.Message
		if detail == "" {
			detail = resp.Code
		}
		return nil, fmt.Errorf("%w: %s", ErrNoRoute, detail)
	}

	first := resp.Routes[0]
	return &RouteResult{
		Geometry: first.Geometry,
		Distance: first.Distance,
		Duration: first.Duration,
	}, nil
}

// get はGETリクエストを送り、ボディとステータスコードを返す。
// 上限を超えるボディは切り詰めずにErrResponseTooLargeとする。
func (c *Client) get(ctx context.Context, rawURL string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}
	if int64(len(body)) > c.maxBody {
		return nil, resp.StatusCode, fmt.Errorf("%w: %d bytes を超えました", ErrResponseTooLarge, c.maxBody)
	}
	return body, resp.StatusCode, nil
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
