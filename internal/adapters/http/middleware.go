package httpadapter

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-Id"

type requestIDContextKey struct{}

// requestIDMiddleware tags every request with an identifier so pipeline
// stages triggered by an upload can be correlated back to it. A caller
// supplied X-Request-Id is trusted as-is.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(
			context.WithValue(r.Context(), requestIDContextKey{}, id),
		))
	})
}

func requestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDContextKey{}).(string)
	return id
}

func accessLogMiddleware(log *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		tap := &responseTap{ResponseWriter: w}

		next.ServeHTTP(tap, r)

		entry := log.With(
			"request_id", requestIDFromContext(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", tap.status(),
			"duration_ms", float64(time.Since(start).Microseconds())/1000.0,
			"bytes", tap.written,
			"remote_addr", clientAddr(r),
			"user_agent", r.UserAgent(),
		)
		switch {
		case tap.status() >= http.StatusInternalServerError:
			entry.Error("http_request")
		case tap.status() >= http.StatusBadRequest:
			entry.Warn("http_request")
		default:
			entry.Info("http_request")
		}
	})
}

func clientAddr(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// responseTap records the status and byte count a handler produced.
// A zero code means the handler never called WriteHeader, which net/http
// treats as 200.
type responseTap struct {
	http.ResponseWriter
	code    int
	written int
}

func (t *responseTap) status() int {
	if t.code == 0 {
		return http.StatusOK
	}
	return t.code
}

func (t *responseTap) WriteHeader(code int) {
	t.code = code
	t.ResponseWriter.WriteHeader(code)
}

func (t *responseTap) Write(b []byte) (int, error) {
	n, err := t.ResponseWriter.Write(b)
	t.written += n
	return n, err
}

func (t *responseTap) Flush() {
	if flusher, ok := t.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func (t *responseTap) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := t.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}
