package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/R6DJO/HFpager-bot/internal/radio"
)

const (
	defaultBaseURL = "https://api.openweathermap.org"
	defaultLang    = "ru"
	defaultDays    = 3
	defaultTimeout = 10 * time.Second
)

// ErrUpstream marks failures reported by the weather provider itself.
var ErrUpstream = errors.New("weather: upstream error")

// FailureText is what the gateway transmits when a forecast cannot be built.
const FailureText = "Error in weather"

// Forecaster returns a short multi-day forecast for a point.
type Forecaster interface {
	Forecast(ctx context.Context, lat, lon float64) (string, error)
}

type Options struct {
	APIKey   string
	BaseURL  string
	Lang     string
	Days     int
	Timeout  time.Duration
	Location *time.Location
	HTTP     *http.Client
}

// OpenWeatherMap queries the One Call API.
type OpenWeatherMap struct {
	http     *http.Client
	baseURL  string
	apiKey   string
	lang     string
	days     int
	location *time.Location
}

func NewOpenWeatherMap(opts Options) *OpenWeatherMap {
	c := &OpenWeatherMap{
		http:     opts.HTTP,
		baseURL:  strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"),
		apiKey:   strings.TrimSpace(opts.APIKey),
		lang:     strings.TrimSpace(opts.Lang),
		days:     opts.Days,
		location: opts.Location,
	}
	if c.http == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		c.http = &http.Client{Timeout: timeout}
	}
	if c.baseURL == "" {
		c.baseURL = defaultBaseURL
	}
	if c.lang == "" {
		c.lang = defaultLang
	}
	if c.days <= 0 {
		c.days = defaultDays
	}
	if c.location == nil {
		c.location = time.Local
	}
	return c
}

type oneCallResponse struct {
	Cod     json.RawMessage `json:"cod,omitempty"`
	Message string          `json:"message,omitempty"`
	Daily   []dailyForecast `json:"daily"`
}

type dailyForecast struct {
	DT   int64 `json:"dt"`
	Temp struct {
		Min float64 `json:"min"`
		Max float64 `json:"max"`
	} `json:"temp"`
	Clouds    int      `json:"clouds"`
	Pop       float64  `json:"pop"`
	WindSpeed float64  `json:"wind_speed"`
	WindGust  float64  `json:"wind_gust"`
	WindDeg   float64  `json:"wind_deg"`
	Rain      *float64 `json:"rain,omitempty"`
	Snow      *float64 `json:"snow,omitempty"`
	Weather   []struct {
		Description string `json:"description"`
	} `json:"weather"`
}

func (c *OpenWeatherMap) Forecast(ctx context.Context, lat, lon float64) (string, error) {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("exclude", "minutely,hourly")
	q.Set("appid", c.apiKey)
	q.Set("lang", c.lang)
	q.Set("units", "metric")
	endpoint := c.baseURL + "/data/2.5/onecall?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	_ = resp.Body.Close()
	if err != nil {
		return "", fmt.Errorf("read weather response: %w", err)
	}

	var out oneCallResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return "", fmt.Errorf("%w: http %d: %s", ErrUpstream, resp.StatusCode, strings.TrimSpace(string(raw)))
		}
		return "", fmt.Errorf("decode weather response: %w", err)
	}
	if len(out.Cod) > 0 || resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(out.Message)
		if msg == "" {
			msg = "http " + strconv.Itoa(resp.StatusCode)
		}
		return "", fmt.Errorf("%w: %s", ErrUpstream, msg)
	}
	if len(out.Daily) == 0 {
		return "", fmt.Errorf("%w: empty daily forecast", ErrUpstream)
	}
	return c.format(out.Daily), nil
}

func (c *OpenWeatherMap) format(days []dailyForecast) string {
	if len(days) > c.days {
		days = days[:c.days]
	}
	var b strings.Builder
	for _, day := range days {
		desc := ""
		if len(day.Weather) > 0 {
			desc = day.Weather[0].Description
		}
		date := time.Unix(day.DT, 0).In(c.location).Format("01/02")
		fmt.Fprintf(&b, "%s Темп:%.0f…%.0f°C Вет:%s %.0f…%.0fм/с %s Обл:%d%% Вер.ос:%.0f%% ",
			date, day.Temp.Min, day.Temp.Max,
			radio.WindDirection(day.WindDeg), day.WindSpeed, day.WindGust,
			desc, day.Clouds, day.Pop*100)
		if day.Rain != nil {
			fmt.Fprintf(&b, "Дождь:%.1fмм ", *day.Rain)
		}
		if day.Snow != nil {
			fmt.Fprintf(&b, "Снег:%.1fмм ", *day.Snow)
		}
		b.WriteString("\n")
	}
	return b.String()
}
