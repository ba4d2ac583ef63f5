package log

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// HTTPMiddleware logs plain net/http routes, in practice the websocket
// upgrade. An upgraded request is logged twice: once when the connection is
// handed over and once when the session ends, with its duration.
func HTTPMiddleware(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			reqID := r.Header.Get(headerRequestID)
			if reqID == "" {
				reqID = uuid.New().String()
			}
			w.Header().Set(headerRequestID, reqID)

			// The query string is left out: it may carry the access token.
			child := logger.With().
				Str(FieldRequestID, reqID).
				Str(FieldMethod, r.Method).
				Str(FieldPath, r.URL.Path).
				Str(FieldClientIP, clientIP(r)).
				Logger()

			rec := &upgradeRecorder{ResponseWriter: w, status: http.StatusOK, logger: child}
			next.ServeHTTP(rec, r.WithContext(WithLogger(r.Context(), child)))

			latency := float64(time.Since(start).Milliseconds())
			if rec.hijacked {
				child.Info().Float64(FieldLatency, latency).Msg("websocket session ended")
				return
			}
			evt := child.Info()
			if rec.status >= http.StatusInternalServerError {
				evt = child.Error()
			} else if rec.status >= http.StatusBadRequest {
				evt = child.Warn()
			}
			evt.Int(FieldStatus, rec.status).Float64(FieldLatency, latency).Msg("request completed")
		})
	}
}

// upgradeRecorder captures the status code and notices when the handler
// takes over the connection.
type upgradeRecorder struct {
	http.ResponseWriter
	status   int
	hijacked bool
	logger   zerolog.Logger
}

func (r *upgradeRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *upgradeRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not implement http.Hijacker")
	}
	conn, rw, err := h.Hijack()
	if err == nil {
		r.hijacked = true
		r.status = http.StatusSwitchingProtocols
		r.logger.Info().Int(FieldStatus, r.status).Msg("websocket upgraded")
	}
	return conn, rw, err
}

func (r *upgradeRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// clientIP prefers the first X-Forwarded-For hop, then X-Real-IP.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if ip := strings.TrimSpace(strings.SplitN(xff, ",", 2)[0]); ip != "" {
			return ip
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
