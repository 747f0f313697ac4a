package metrics

import (
	"net/http"
	"time"
)

// instrumentedTransport は外部サービスへのリクエストごとに結果とレイテンシを記録する。
type instrumentedTransport struct {
	collector MetricsCollector
	service   string
	base      http.RoundTripper
}

// InstrumentTransport はbaseを包み、serviceラベル付きで外部呼び出しを記録するRoundTripperを返す。
// baseがnilの場合はhttp.DefaultTransportを使う。
func InstrumentTransport(collector MetricsCollector, service string, base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	if collector == nil {
		return base
	}
	return &instrumentedTransport{collector: collector, service: service, base: base}
}

// RoundTrip はhttp.RoundTripperを実装する。
func (t *instrumentedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.base.RoundTrip(req)
	duration := time.Since(start)

	switch {
	case err != nil:
		t.collector.RecordUpstreamCall(t.service, OutcomeError, duration)
	case resp.StatusCode >= 400:
		t.collector.RecordUpstreamCall(t.service, OutcomeHTTPError, duration)
	default:
		t.collector.RecordUpstreamCall(t.service, OutcomeSuccess, duration)
	}
	return resp, err
}

// InstrumentClient はclientのTransportを計測付きに差し替えたコピーを返す。
func InstrumentClient(collector MetricsCollector, service string, client *http.Client) *http.Client {
	if client == nil {
		client = &http.Client{}
	}
	instrumented := *client
	instrumented.Transport = InstrumentTransport(collector, service, client.Transport)
	return &instrumented
}
