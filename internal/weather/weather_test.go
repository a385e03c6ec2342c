package weather

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const sampleOneCall = `{
  "lat": 55.75, "lon": 37.61,
  "daily": [
    {"dt": 1709283600, "temp": {"min": -3.2, "max": 1.6}, "clouds": 90, "pop": 0.45,
     "wind_speed": 4.1, "wind_gust": 9.7, "wind_deg": 200, "snow": 1.25,
     "weather": [{"description": "небольшой снег"}]},
    {"dt": 1709370000, "temp": {"min": -5, "max": 0}, "clouds": 10, "pop": 0,
     "wind_speed": 2, "wind_gust": 5, "wind_deg": 10,
     "weather": [{"description": "ясно"}]},
    {"dt": 1709456400, "temp": {"min": 1, "max": 6}, "clouds": 50, "pop": 0.8,
     "wind_speed": 3, "wind_gust": 7, "wind_deg": 270, "rain": 2.5,
     "weather": [{"description": "дождь"}]},
    {"dt": 1709542800, "temp": {"min": 1, "max": 6}, "clouds": 50, "pop": 0.8,
     "wind_speed": 3, "wind_gust": 7, "wind_deg": 270,
     "weather": [{"description": "четвертый день"}]}
  ]
}`

func TestForecastFormatsDays(t *testing.T) {
	t.Parallel()

	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/data/2.5/onecall" {
			t.Errorf("path = %q, want /data/2.5/onecall", r.URL.Path)
		}
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(sampleOneCall))
	}))
	defer srv.Close()

	c := NewOpenWeatherMap(Options{APIKey: "k", BaseURL: srv.URL, Location: time.UTC})
	got, err := c.Forecast(context.Background(), 55.75, 37.61)
	if err != nil {
		t.Fatalf("Forecast() error = %v", err)
	}
	for _, want := range []string{"lat=55.75", "lon=37.61", "appid=k", "units=metric", "lang=ru", "exclude=minutely%2Chourly"} {
		if !strings.Contains(gotQuery, want) {
			t.Fatalf("query %q missing %q", gotQuery, want)
		}
	}
	lines := strings.Split(strings.TrimRight(got, "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3:\n%s", len(lines), got)
	}
	if !strings.HasPrefix(lines[0], "03/01 Темп:-3…2°C Вет:Ю 4…10м/с небольшой снег Обл:90% Вер.ос:45% Снег:1.2мм") &&
		!strings.HasPrefix(lines[0], "03/01 Темп:-3…2°C Вет:Ю 4…10м/с небольшой снег Обл:90% Вер.ос:45% Снег:1.3мм") {
		t.Fatalf("first line = %q", lines[0])
	}
	if !strings.Contains(lines[1], "Вет:С ") {
		t.Fatalf("second line = %q, want north wind", lines[1])
	}
	if !strings.Contains(lines[2], "Дождь:2.5мм") {
		t.Fatalf("third line = %q, want rain", lines[2])
	}
	if strings.Contains(got, "четвертый") {
		t.Fatalf("forecast should be limited to 3 days")
	}
}

func TestForecastUpstreamError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"cod":401,"message":"Invalid API key"}`))
	}))
	defer srv.Close()

	c := NewOpenWeatherMap(Options{BaseURL: srv.URL})
	_, err := c.Forecast(context.Background(), 1, 2)
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("Forecast() error = %v, want ErrUpstream", err)
	}
	if !strings.Contains(err.Error(), "Invalid API key") {
		t.Fatalf("Forecast() error = %v, want upstream message", err)
	}
}

func TestForecastNonJSONFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewOpenWeatherMap(Options{BaseURL: srv.URL})
	if _, err := c.Forecast(context.Background(), 1, 2); !errors.Is(err, ErrUpstream) {
		t.Fatalf("Forecast() error = %v, want ErrUpstream", err)
	}
}

func TestForecastTruncatedBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, buf, err := w.(http.Hijacker).Hijack()
		if err != nil {
			t.Errorf("Hijack() error = %v", err)
			return
		}
		defer conn.Close()
		_, _ = buf.WriteString("HTTP/1.1 200 OK\r\nContent-Type: application/json\r\nContent-Length: 4096\r\n\r\n{\"daily\": [")
		_ = buf.Flush()
	}))
	defer srv.Close()

	c := NewOpenWeatherMap(Options{BaseURL: srv.URL})
	_, err := c.Forecast(context.Background(), 1, 2)
	if err == nil || !strings.Contains(err.Error(), "read weather response") {
		t.Fatalf("Forecast() error = %v, want read error", err)
	}
}
