package middleware

import (
	"net/http"
	"time"

	"notebook_server_go/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

// LoggerMiddleware attaches log to every request, tags it with a request id
// and writes one access line per response. When m is set each response is
// also counted and timed there.
func LoggerMiddleware(log zerolog.Logger, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		h := hlog.AccessHandler(accessLog(m))(next)
		h = withRouteLabel(h)
		h = requestID(h)
		h = hlog.RemoteAddrHandler("ip")(h)
		return hlog.NewHandler(log)(h)
	}
}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		hlog.FromRequest(r).UpdateContext(func(c zerolog.Context) zerolog.Context {
			return c.Str("request_id", id)
		})
		next.ServeHTTP(w, r)
	})
}

func accessLog(m *metrics.Metrics) func(r *http.Request, status, size int, duration time.Duration) {
	return func(r *http.Request, status, size int, duration time.Duration) {
		if status == 0 {
			// Nothing written: net/http sends 200.
			status = http.StatusOK
		}
		route := routeOf(r)
		if m != nil {
			m.ObserveRequest(route, r.Method, status, duration)
		}

		log := hlog.FromRequest(r)
		event := log.Info()
		switch {
		case status >= http.StatusInternalServerError:
			event = log.Error()
		case status >= http.StatusBadRequest:
			event = log.Warn()
		}
		event.
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("route", route).
			Int("status", status).
			Int("size", size).
			Dur("latency", duration).
			Msg("request")
	}
}
