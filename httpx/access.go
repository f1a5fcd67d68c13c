package httpx

import (
	"net"
	"net/http"

	"github.com/felixge/httpsnoop"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mbolis/leadform/log"
)

// AccessLog logs one line per request.
func AccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := httpsnoop.CaptureMetrics(next, w, r)

		entry := log.WithFields(log.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   m.Code,
			"bytes":    m.Written,
			"duration": m.Duration.String(),
			"ip":       ClientIP(r),
		})
		if id := middleware.GetReqID(r.Context()); id != "" {
			entry = entry.WithField("request_id", id)
		}

		switch {
		case m.Code >= 500:
			entry.Error("request")
		case m.Code >= 400:
			entry.Info("request")
		default:
			entry.Debug("request")
		}
	})
}

// ClientIP is the caller's address without port. Forwarding headers only
// count when the server runs with -trust-proxy, which installs
// middleware.RealIP to rewrite RemoteAddr.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
