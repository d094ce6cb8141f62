package weather

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/dukerupert/hearth/internal/metrics"
)

const payload = `{
	"name": "Denver",
	"main": {"temp": 71.6, "temp_max": 78.4, "temp_min": 54.5},
	"weather": [{"main": "Clouds", "description": "scattered clouds"}]
}`

func newTestService(t *testing.T, handler http.HandlerFunc, m *metrics.Metrics) *Service {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	svc := NewService(Config{APIKey: "k", CacheTTL: time.Minute}, m, slog.New(slog.NewTextHandler(io.Discard, nil)))
	svc.baseURL = server.URL
	return svc
}

func TestQuery(t *testing.T) {
	tests := []struct {
		location string
		key      string
		want     string
	}{
		{"80202", "zip", "80202,US"},
		{"Denver, CO", "q", "Denver, CO"},
		{"802021", "q", "802021"},
		{"8020", "q", "8020"},
	}
	for _, tt := range tests {
		q := query(tt.location)
		if got := q.Get(tt.key); got != tt.want {
			t.Errorf("query(%q)[%s] = %q, want %q", tt.location, tt.key, got, tt.want)
		}
	}
}

func TestCurrent(t *testing.T) {
	var gotQuery string
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		io.WriteString(w, payload)
	}, nil)

	data, err := svc.Current(context.Background(), " 80202 ")
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if data.Temp != 72 || data.High != 78 || data.Low != 55 {
		t.Errorf("temps = %d/%d/%d, want 72/78/55", data.Temp, data.High, data.Low)
	}
	if data.Description != "scattered clouds" || data.Icon != "Clouds" || data.Location != "Denver" || data.Unit != "F" {
		t.Errorf("data = %+v", data)
	}
	if gotQuery != "appid=k&units=imperial&zip=80202%2CUS" {
		t.Errorf("query = %q", gotQuery)
	}
}

func TestCurrentCaches(t *testing.T) {
	var calls atomic.Int32
	m := metrics.New()
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		io.WriteString(w, payload)
	}, m)

	for i := 0; i < 3; i++ {
		if _, err := svc.Current(context.Background(), "Denver"); err != nil {
			t.Fatalf("Current #%d: %v", i+1, err)
		}
	}
	// case-insensitive key
	if _, err := svc.Current(context.Background(), "denver"); err != nil {
		t.Fatalf("Current: %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("upstream calls = %d, want 1", calls.Load())
	}
	if got := testutil.ToFloat64(m.WeatherFetches.WithLabelValues("cache")); got != 3 {
		t.Errorf("cache hits = %v, want 3", got)
	}
}

func TestCurrentUnavailable(t *testing.T) {
	m := metrics.New()
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "city not found", http.StatusNotFound)
	}, m)

	if _, err := svc.Current(context.Background(), "Atlantis"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
	if got := testutil.ToFloat64(m.WeatherFetches.WithLabelValues("error")); got != 1 {
		t.Errorf("errors = %v, want 1", got)
	}

	if _, err := svc.Current(context.Background(), ""); !errors.Is(err, ErrUnavailable) {
		t.Errorf("empty location err = %v, want ErrUnavailable", err)
	}

	unconfigured := NewService(Config{}, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if _, err := unconfigured.Current(context.Background(), "Denver"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("unconfigured err = %v, want ErrUnavailable", err)
	}
}

func TestCurrentMetricUnits(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("units") != "metric" {
			t.Errorf("units = %q", r.URL.Query().Get("units"))
		}
		io.WriteString(w, payload)
	}, nil)
	svc.config.Units = "metric"

	data, err := svc.Current(context.Background(), "Oslo")
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if data.Unit != "C" {
		t.Errorf("Unit = %q, want C", data.Unit)
	}
}
