// Package weather looks up current conditions for a household location from
// OpenWeatherMap, caching answers per location.
package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/dukerupert/hearth/internal/metrics"
)

// ErrUnavailable is returned when no weather could be fetched: the service is
// unconfigured, the upstream failed, or the location is unknown.
var ErrUnavailable = errors.New("weather unavailable")

const (
	defaultBaseURL = "https://api.openweathermap.org/data/2.5/weather"
	cacheSize      = 256
)

var zipCode = regexp.MustCompile(`^\d{5}$`)

// Config holds the OpenWeatherMap settings.
type Config struct {
	APIKey   string
	Units    string // "imperial" or "metric"
	CacheTTL time.Duration
}

// Data is the current weather for a location.
type Data struct {
	Temp        int    `json:"temp"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	High        int    `json:"high"`
	Low         int    `json:"low"`
	Location    string `json:"location"`
	Unit        string `json:"unit"`
}

// Service fetches and caches weather lookups.
type Service struct {
	config  Config
	client  *http.Client
	baseURL string
	cache   *expirable.LRU[string, Data]
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewService creates a weather service. m may be nil.
func NewService(cfg Config, m *metrics.Metrics, logger *slog.Logger) *Service {
	if cfg.Units == "" {
		cfg.Units = "imperial"
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 10 * time.Minute
	}
	return &Service{
		config:  cfg,
		client:  &http.Client{Timeout: 10 * time.Second},
		baseURL: defaultBaseURL,
		cache:   expirable.NewLRU[string, Data](cacheSize, nil, cfg.CacheTTL),
		metrics: m,
		logger:  logger.With("component", "weather"),
	}
}

// Configured reports whether an API key is set.
func (s *Service) Configured() bool {
	return s.config.APIKey != ""
}

// Current returns the weather for location, from cache when fresh.
func (s *Service) Current(ctx context.Context, location string) (*Data, error) {
	location = strings.TrimSpace(location)
	if location == "" || !s.Configured() {
		return nil, ErrUnavailable
	}

	key := strings.ToLower(location)
	if data, ok := s.cache.Get(key); ok {
		s.count("cache")
		return &data, nil
	}

	data, err := s.fetch(ctx, location)
	if err != nil {
		s.count("error")
		s.logger.Warn("weather fetch failed", "location", location, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	s.count("upstream")
	s.cache.Add(key, data)
	return &data, nil
}

func (s *Service) count(source string) {
	if s.metrics != nil {
		s.metrics.WeatherFetches.WithLabelValues(source).Inc()
	}
}

type apiResponse struct {
	Name string `json:"name"`
	Main struct {
		Temp    float64 `json:"temp"`
		TempMax float64 `json:"temp_max"`
		TempMin float64 `json:"temp_min"`
	} `json:"main"`
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
}

// query builds the location parameters. Five-digit locations are treated as
// US ZIP codes.
func query(location string) url.Values {
	q := url.Values{}
	if zipCode.MatchString(location) {
		q.Set("zip", location+",US")
	} else {
		q.Set("q", location)
	}
	return q
}

func (s *Service) fetch(ctx context.Context, location string) (Data, error) {
	q := query(location)
	q.Set("appid", s.config.APIKey)
	q.Set("units", s.config.Units)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return Data{}, fmt.Errorf("build weather request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return Data{}, fmt.Errorf("weather API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Data{}, fmt.Errorf("weather API returned status %d", resp.StatusCode)
	}

	var apiResp apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return Data{}, fmt.Errorf("decode weather response: %w", err)
	}
	if len(apiResp.Weather) == 0 {
		return Data{}, errors.New("weather response has no conditions")
	}

	unit := "F"
	if s.config.Units == "metric" {
		unit = "C"
	}
	return Data{
		Temp:        int(math.Round(apiResp.Main.Temp)),
		Description: apiResp.Weather[0].Description,
		Icon:        apiResp.Weather[0].Main,
		High:        int(math.Round(apiResp.Main.TempMax)),
		Low:         int(math.Round(apiResp.Main.TempMin)),
		Location:    apiResp.Name,
		Unit:        unit,
	}, nil
}
