package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"sensor_overlay/internal/logger"
	"sensor_overlay/internal/metrics"
	"sensor_overlay/internal/models"

	jsoniter "github.com/json-iterator/go"
	"github.com/sony/gobreaker"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	defaultFetchTimeout    = 10 * time.Second
	defaultBreakerFailures = 5
	defaultBreakerOpen     = 60 * time.Second
	maxPayloadBytes        = 1 << 20 // 1 MB
)

var (
	errNoObservation = errors.New("payload has no ultimo_dato")
	errUpstreamCode  = errors.New("unexpected upstream status")
)

// sensorPayload is the upstream wire format.
type sensorPayload struct {
	UltimoDato *observation `json:"ultimo_dato"`
}

type observation struct {
	Temperatura flexFloat   `json:"temperatura"`
	Humedad     flexFloat   `json:"humedad"`
	PPM         flexFloat   `json:"ppm"`
	Timestamp   epochMillis `json:"timestamp"`
}

// flexFloat accepts a JSON number or numeric string; anything else reads as 0.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			*f = 0
			return nil
		}
		b = []byte(strings.TrimSpace(s))
	}
	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		*f = 0
		return nil
	}
	*f = flexFloat(v)
	return nil
}

// epochMillis is a Unix timestamp in milliseconds sent either as a number or
// as a string. Strings keep only their leading integer part ("17e11" → 17);
// unparsable input yields the zero time.
type epochMillis struct {
	time.Time
}

func (e *epochMillis) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	e.Time = time.Time{}
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return nil
		}
		if ms, ok := leadingInt(s); ok {
			e.Time = time.UnixMilli(ms)
		}
		return nil
	}
	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	e.Time = time.UnixMilli(int64(v))
	return nil
}

// leadingInt parses an optional sign followed by decimal digits at the start
// of s, ignoring leading whitespace and anything after the digits.
func leadingInt(s string) (int64, bool) {
	s = strings.TrimLeft(s, " \t\r\n")
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0, false
	}
	n, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// decodeReading turns a raw upstream body into a Reading.
func decodeReading(body []byte) (models.Reading, error) {
	var p sensorPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return models.Reading{}, fmt.Errorf("decode sensor payload: %w", err)
	}
	if p.UltimoDato == nil {
		return models.Reading{}, errNoObservation
	}
	o := p.UltimoDato
	return models.Reading{
		Temperature: float64(o.Temperatura),
		Humidity:    float64(o.Humedad),
		CO2:         float64(o.PPM),
		Timestamp:   o.Timestamp.Time,
	}, nil
}

// FetcherOptions configures an HTTPFetcher. Zero values fall back to defaults.
type FetcherOptions struct {
	URL             string
	Timeout         time.Duration
	BreakerFailures uint32
	BreakerOpen     time.Duration
	Client          *http.Client
}

// HTTPFetcher calls the sensor API once per FetchReading. A circuit breaker
// short-circuits calls after repeated transport/decoding failures.
type HTTPFetcher struct {
	url     string
	client  *http.Client
	cb      *gobreaker.CircuitBreaker
	metrics *metrics.Metrics
	log     *logger.Logger
}

func NewHTTPFetcher(opts FetcherOptions, m *metrics.Metrics, log *logger.Logger) *HTTPFetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultFetchTimeout
	}
	if opts.BreakerFailures == 0 {
		opts.BreakerFailures = defaultBreakerFailures
	}
	if opts.BreakerOpen <= 0 {
		opts.BreakerOpen = defaultBreakerOpen
	}
	if log == nil {
		log = logger.Nop()
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}

	f := &HTTPFetcher{
		url:     opts.URL,
		client:  client,
		metrics: m,
		log:     log,
	}
	failures := opts.BreakerFailures
	f.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "sensor-api",
		Timeout: opts.BreakerOpen,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= failures
		},
		// an empty payload means the upstream is healthy but has nothing new;
		// a cancelled caller says nothing about the upstream
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, errNoObservation) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			f.log.Warnw("fetch_breaker_state", "name", name, "from", from.String(), "to", to.String())
		},
	})
	return f
}

// FetchReading returns the latest reading, or nil when no update is available.
func (f *HTTPFetcher) FetchReading(ctx context.Context) *models.Reading {
	start := time.Now()
	res, err := f.cb.Execute(func() (interface{}, error) {
		return f.get(ctx)
	})
	if f.metrics != nil {
		f.metrics.FetchDuration.Observe(time.Since(start).Seconds())
	}

	if err != nil {
		result := metrics.ResultError
		switch {
		case errors.Is(err, errNoObservation):
			result = metrics.ResultEmpty
			f.log.Warnw("fetch_no_observation", "url", f.url)
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			result = metrics.ResultBreakerOpen
			f.log.Debugw("fetch_short_circuited", "err", err)
		case errors.Is(err, context.Canceled):
			f.log.Debugw("fetch_cancelled", "url", f.url)
		default:
			f.log.Errorw("fetch_failed", "url", f.url, "err", err)
		}
		f.count(result)
		return nil
	}

	r := res.(models.Reading)
	f.count(metrics.ResultOK)
	f.log.Debugw("fetch_ok", "temperature", r.Temperature, "humidity", r.Humidity, "co2", r.CO2, "timestamp", r.Timestamp)
	return &r
}

func (f *HTTPFetcher) count(result string) {
	if f.metrics != nil {
		f.metrics.FetchTotal.WithLabelValues(result).Inc()
	}
}

func (f *HTTPFetcher) get(ctx context.Context) (models.Reading, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return models.Reading{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return models.Reading{}, fmt.Errorf("GET %s: %w", f.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return models.Reading{}, fmt.Errorf("%w: %s", errUpstreamCode, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes))
	if err != nil {
		return models.Reading{}, fmt.Errorf("read body: %w", err)
	}
	return decodeReading(body)
}
