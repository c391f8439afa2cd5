package httpapi

import (
	"log"
	"net/http"
	"time"

	"github.com/John-Robertt/rulesync/internal/metrics"
)

// NewHandler returns the production handler: the mux wrapped with request
// counting and an access log. Tests use NewMux to keep output quiet.
func NewHandler() http.Handler {
	return NewHandlerWithOptions(Options{})
}

func NewHandlerWithOptions(opt Options) http.Handler {
	opt = opt.withDefaults()
	return withAccessLog(NewMuxWithOptions(opt), opt.Metrics)
}

// Probe endpoints are counted but not logged.
var quietPaths = map[string]struct{}{
	"/healthz": {},
	"/metrics": {},
}

// statusWriter records the status code and body size of a response.
type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(p)
	w.bytes += n
	return n, err
}

func withAccessLog(next http.Handler, m *metrics.Collector) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r)

		status := sw.status
		if status == 0 {
			status = http.StatusOK
		}
		pattern := r.Pattern
		if pattern == "" {
			pattern = r.Method + " (unmatched)"
		}
		m.IncRequest(pattern, status)

		if _, quiet := quietPaths[r.URL.Path]; quiet {
			return
		}
		// Only target is logged; url= may carry tokens.
		log.Printf("http %s %s target=%q status=%d dur=%s bytes=%d",
			r.Method, r.URL.Path, r.URL.Query().Get("target"), status, time.Since(start).Round(time.Millisecond), sw.bytes)
	})
}
