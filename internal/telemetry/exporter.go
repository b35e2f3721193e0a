// Package telemetry ships operational metrics to an external OTLP-compatible
// sink. Emission is fire-and-forget: producers enqueue into a bounded buffer
// that drops its oldest entry on overflow, and a background worker exports
// batches on an interval. Sink failures never propagate to request handling.
package telemetry

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"winequality-api/internal/metrics"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

// Point is one metric observation bound for the external sink.
type Point struct {
	Name       string            `json:"name"`
	Value      float64           `json:"value"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
}

type exportPayload struct {
	Service string  `json:"service"`
	Points  []Point `json:"points"`
}

// Config configures the exporter. An empty Endpoint disables export; Emit
// still accepts points and silently discards them.
type Config struct {
	Endpoint string
	User     string
	Token    string
	Buffer   int
	Interval time.Duration
	Timeout  time.Duration
}

// Exporter owns the buffer and the export worker.
type Exporter struct {
	client   *resty.Client
	endpoint string
	auth     string
	interval time.Duration
	enabled  bool
	rec      metrics.Recorder

	mu  sync.Mutex
	buf []Point
	max int

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// New creates the exporter and starts its worker.
func New(cfg Config, rec metrics.Recorder) *Exporter {
	if cfg.Buffer <= 0 {
		cfg.Buffer = 256
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}

	e := &Exporter{
		client:   resty.New().SetTimeout(cfg.Timeout),
		endpoint: cfg.Endpoint,
		interval: cfg.Interval,
		enabled:  cfg.Endpoint != "",
		rec:      rec,
		buf:      make([]Point, 0, cfg.Buffer),
		max:      cfg.Buffer,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}

	if cfg.User != "" && cfg.Token != "" {
		e.auth = "Basic " + base64.StdEncoding.EncodeToString([]byte(cfg.User+":"+cfg.Token))
	}

	if e.enabled {
		log.Info().Str("endpoint", cfg.Endpoint).Dur("interval", cfg.Interval).Msg("telemetry export enabled")
	} else {
		log.Info().Msg("telemetry export disabled: no endpoint configured")
	}

	go e.run()
	return e
}

// Emit enqueues a point without ever blocking the caller. When the buffer is
// full the oldest unsent point is dropped to make room.
func (e *Exporter) Emit(p Point) {
	if e == nil || !e.enabled {
		return
	}
	if p.Timestamp.IsZero() {
		p.Timestamp = time.Now()
	}

	e.mu.Lock()
	if len(e.buf) >= e.max {
		copy(e.buf, e.buf[1:])
		e.buf = e.buf[:len(e.buf)-1]
		if e.rec != nil {
			e.rec.TelemetryDroppedInc()
		}
	}
	e.buf = append(e.buf, p)
	e.mu.Unlock()
}

// Counter is a convenience for count-style points.
func (e *Exporter) Counter(name string, value float64) {
	e.Emit(Point{Name: name, Value: value})
}

// Gauge is a convenience for gauge-style points.
func (e *Exporter) Gauge(name string, value float64) {
	e.Emit(Point{Name: name, Value: value})
}

func (e *Exporter) run() {
	defer close(e.done)

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stop:
			e.flush()
			return
		case <-ticker.C:
			e.flush()
		}
	}
}

func (e *Exporter) flush() {
	e.mu.Lock()
	if len(e.buf) == 0 {
		e.mu.Unlock()
		return
	}
	batch := e.buf
	e.buf = make([]Point, 0, e.max)
	e.mu.Unlock()

	if err := e.export(batch); err != nil {
		// Best effort only: the batch is gone, the service is unaffected.
		log.Warn().Err(err).Int("points", len(batch)).Msg("telemetry export failed, batch dropped")
		if e.rec != nil {
			for range batch {
				e.rec.TelemetryDroppedInc()
			}
		}
		return
	}

	if e.rec != nil {
		e.rec.TelemetryExportedAdd(float64(len(batch)))
	}
}

func (e *Exporter) export(batch []Point) error {
	req := e.client.R().
		SetHeader("Content-Type", "application/json").
		SetBody(exportPayload{Service: "winequality-api", Points: batch})
	if e.auth != "" {
		req.SetHeader("Authorization", e.auth)
	}

	resp, err := req.Post(e.endpoint + "/v1/metrics")
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("sink returned %s", resp.Status())
	}
	return nil
}

// Close stops the worker after a final flush, bounded by ctx.
func (e *Exporter) Close(ctx context.Context) error {
	if e == nil {
		return nil
	}
	e.stopOnce.Do(func() { close(e.stop) })

	select {
	case <-e.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
