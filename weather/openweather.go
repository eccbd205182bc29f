// Package weather implements core.WeatherService on the OpenWeatherMap
// 5-day / 3-hour forecast API, aggregating entries per calendar day.
package weather

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/hupe1980/trekka/core"
)

var (
	// ErrMissingAPIKey is returned when no OpenWeatherMap key is configured.
	ErrMissingAPIKey = errors.New("weather API key missing")
	// ErrNoForecast is returned when the API answered without forecast entries.
	ErrNoForecast = errors.New("no forecast data found")
)

// APIError carries the message of a non-200 OpenWeatherMap response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string { return e.Message }

// Describe renders err as the sentence shown to the user after "Sorry, ".
func Describe(err error) string {
	var apiErr *APIError
	switch {
	case errors.As(err, &apiErr) && apiErr.Message != "":
		return apiErr.Message
	case errors.Is(err, ErrMissingAPIKey):
		return "Weather API key missing."
	case errors.Is(err, ErrNoForecast):
		return "No forecast data found."
	default:
		return "Unable to fetch weather."
	}
}

// Options configures a Client.
type Options struct {
	APIKey  string
	BaseURL string
	// Country is appended to the city query ("Pokhara,NP").
	Country string
	Units   string
	Timeout time.Duration
}

// Client is an OpenWeatherMap forecast client.
type Client struct {
	http *resty.Client
	opts Options
}

// New creates a Client.
func New(apiKey string, optFns ...func(o *Options)) *Client {
	opts := Options{
		APIKey:  apiKey,
		BaseURL: "https://api.openweathermap.org",
		Country: "NP",
		Units:   "metric",
		Timeout: 10 * time.Second,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetTimeout(opts.Timeout)
	return &Client{http: httpClient, opts: opts}
}

type forecastResponse struct {
	List []struct {
		DtTxt string `json:"dt_txt"`
		Main  struct {
			Temp float64 `json:"temp"`
		} `json:"main"`
		Weather []struct {
			Description string `json:"description"`
		} `json:"weather"`
	} `json:"list"`
	City struct {
		Name    string `json:"name"`
		Country string `json:"country"`
	} `json:"city"`
}

type errorResponse struct {
	Message string `json:"message"`
}

// Forecast implements core.WeatherService.
func (c *Client) Forecast(ctx context.Context, city string, days int) (string, error) {
	if c.opts.APIKey == "" {
		return "", ErrMissingAPIKey
	}
	if days <= 0 {
		days = 3
	}
	q := strings.TrimSpace(city)
	if c.opts.Country != "" {
		q += "," + c.opts.Country
	}

	var (
		res    forecastResponse
		apiErr errorResponse
	)
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"q":     q,
			"appid": c.opts.APIKey,
			"units": c.opts.Units,
		}).
		SetResult(&res).
		SetError(&apiErr).
		Get("/data/2.5/forecast")
	if err != nil {
		return "", fmt.Errorf("openweather forecast: %w", err)
	}
	if resp.StatusCode() != 200 {
		msg := apiErr.Message
		if msg == "" {
			msg = "Unable to fetch weather."
		}
		return "", &APIError{StatusCode: resp.StatusCode(), Message: msg}
	}

	lines := summarizeDays(res, days)
	if len(lines) == 0 {
		return "", ErrNoForecast
	}
	header := fmt.Sprintf("Weather forecast for %s, %s:", res.City.Name, res.City.Country)
	return header + "\n" + strings.Join(lines, "\n"), nil
}

type dayBucket struct {
	temps []float64
	conds []string
}

func summarizeDays(res forecastResponse, days int) []string {
	buckets := make(map[string]*dayBucket)
	for _, e := range res.List {
		date, _, _ := strings.Cut(e.DtTxt, " ")
		if date == "" {
			continue
		}
		b, ok := buckets[date]
		if !ok {
			b = &dayBucket{}
			buckets[date] = b
		}
		b.temps = append(b.temps, e.Main.Temp)
		if len(e.Weather) > 0 {
			b.conds = append(b.conds, e.Weather[0].Description)
		}
	}

	dates := make([]string, 0, len(buckets))
	for d := range buckets {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	if len(dates) > days {
		dates = dates[:days]
	}

	lines := make([]string, 0, len(dates))
	for i, d := range dates {
		b := buckets[d]
		var sum float64
		for _, t := range b.temps {
			sum += t
		}
		avg := sum / float64(len(b.temps))
		lines = append(lines, fmt.Sprintf("%d) Date: %s, Avg Temp: %.1f°C, Condition: %s", i+1, d, avg, mostFrequent(b.conds)))
	}
	return lines
}

// mostFrequent returns the most common value; ties go to the first seen.
func mostFrequent(vals []string) string {
	counts := make(map[string]int, len(vals))
	for _, v := range vals {
		counts[v]++
	}
	best, bestN := "", 0
	for _, v := range vals {
		if counts[v] > bestN {
			best, bestN = v, counts[v]
		}
	}
	return best
}

var _ core.WeatherService = (*Client)(nil)
