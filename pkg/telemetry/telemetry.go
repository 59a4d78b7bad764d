// Minimal, low-overhead request telemetry. By default only slow requests
// are recorded; full request lines are sampled at a very low rate.
package telemetry

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	writerOnce    sync.Once
	writerCh      chan []byte
	outDir        string
	requestCtr    uint64
	sampleRate    = 0.001
	slowThreshold = 200 * time.Millisecond

	reqDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "noticeboard_http_request_duration_seconds",
		Help:    "HTTP request latency by method.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})
)

// SetOutputDir points the background writer at the runtime telemetry
// directory. Call before the first request; empty keeps telemetry
// metrics-only.
func SetOutputDir(dir string) { outDir = dir }

// SetSampleRate sets the approximate sampling rate for full request lines
// (0..1). A rate of 0 disables sampling; slow requests are still recorded.
func SetSampleRate(r float64) {
	if r < 0 {
		r = 0
	}
	if r > 1 {
		r = 1
	}
	sampleRate = r
}

// SetSlowThreshold sets the duration above which requests get recorded.
func SetSlowThreshold(d time.Duration) {
	if d < 0 {
		d = 0
	}
	slowThreshold = d
}

// initWriter lazily starts a background writer appending text lines to
// telemetry.log in the configured output dir.
func initWriter() {
	writerCh = make(chan []byte, 1024)
	go func() {
		if outDir == "" {
			for range writerCh {
			}
			return
		}
		_ = os.MkdirAll(outDir, 0o700)
		f, err := os.OpenFile(filepath.Join(outDir, "telemetry.log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			for range writerCh {
			}
			return
		}
		defer f.Close()
		for b := range writerCh {
			_, _ = f.Write(b)
		}
	}()
}

// Middleware records request timing. Sampled and slow requests additionally
// produce a log line; everything feeds the latency histogram.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := genRequestID()
		sampled := shouldSample(r)

		srw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(srw, r)

		dur := time.Since(start)
		reqDuration.WithLabelValues(r.Method).Observe(dur.Seconds())

		var line []byte
		switch {
		case sampled:
			line = []byte(fmt.Sprintf("REQ %s %s %s duration_ms=%d status=%d\n",
				reqID, r.Method, r.URL.Path, dur.Milliseconds(), srw.status))
		case dur > slowThreshold:
			line = []byte(fmt.Sprintf("SLOW %s %s %s duration_ms=%d status=%d\n",
				reqID, r.Method, r.URL.Path, dur.Milliseconds(), srw.status))
		default:
			return
		}
		writerOnce.Do(initWriter)
		select {
		case writerCh <- line:
		default:
			// drop rather than block the request path
		}
	})
}

// shouldSample supports forcing via header X-Debug-Telemetry: 1, otherwise
// samples deterministically 1-in-N from an atomic counter.
func shouldSample(r *http.Request) bool {
	if r.Header.Get("X-Debug-Telemetry") == "1" {
		return true
	}
	if sampleRate <= 0 {
		return false
	}
	denom := int64(1 / sampleRate)
	if denom <= 1 {
		return true
	}
	n := int64(atomic.AddUint64(&requestCtr, 1))
	return n%denom == 0
}

func genRequestID() string {
	n := atomic.AddUint64(&requestCtr, 1)
	return fmt.Sprintf("r-%s-%d", time.Now().Format("20060102T150405"), n)
}

// statusRecorder captures the response status code. Flush passes through so
// event-stream handlers keep working behind the middleware.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Flush() {
	if fl, ok := r.ResponseWriter.(http.Flusher); ok {
		fl.Flush()
	}
}
