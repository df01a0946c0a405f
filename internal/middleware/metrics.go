package middleware

import (
	"net/http"
	"time"

	"github.com/Proton-105/itpomosh-bot/pkg/metrics"
)

// Metrics reports latency and status of requests served under route.
func Metrics(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}

		next.ServeHTTP(rec, r)

		metrics.RecordHTTPRequest(r.Method, route, rec.code(), time.Since(start))
	})
}
