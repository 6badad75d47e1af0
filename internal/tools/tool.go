package tools

import (
	"context"
	"time"
)

// Tool names the dispatcher knows about. "images" is reserved for the image
// provider chain and is never dispatched here.
const (
	NameImages  = "images"
	NameSearch  = "search"
	NameWeather = "weather"
	NameMarine  = "marine"
	NameTides   = "tides"
)

// Args carries the per-request context a tool may need. Lat/Lon are nil when
// the request supplied no coordinates; location-dependent tools resolve them
// by geocoding Place.
type Args struct {
	Query string
	Text  string
	Place string
	Lat   *float64
	Lon   *float64
	Days  int
}

// Tool is a single named data-fetch operation against a remote service.
type Tool interface {
	Name() string
	Call(ctx context.Context, args Args) (map[string]interface{}, error)
}

// Result is the outcome of one tool invocation: either a payload or an error
// message, never both and never a pending state.
type Result struct {
	Data map[string]interface{}
	Err  string
}

// OK reports whether the invocation succeeded.
func (r Result) OK() bool { return r.Err == "" }

// Ok wraps a successful payload.
func Ok(data map[string]interface{}) Result { return Result{Data: data} }

// Errf wraps a failure message.
func Errf(msg string) Result { return Result{Err: msg} }

// RetryPolicy bounds attempts for one tool invocation. Delay grows
// geometrically: BaseDelay * Factor^(attempt-1).
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Factor      float64
}

// DefaultRetryPolicy allows two retries after the first attempt with 0.5s
// base delay, doubling each retry.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 3, BaseDelay: 500 * time.Millisecond, Factor: 2}

// Delay returns the backoff before the given retry (attempt is 1-based; the
// delay applies after attempt n fails).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		d = time.Duration(float64(d) * p.Factor)
	}
	return d
}
