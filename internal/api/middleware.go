package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"gwi.com/cardscan/internal/store"
)

type contextKey string

const (
	callerKey      contextKey = "caller"
	requestInfoKey contextKey = "request_info"
)

// requestInfo lets handlers further down report back to RequestLogger.
type requestInfo struct {
	userID string
}

// RequireAuth rejects requests without a valid bearer token for an
// existing user.
func (h *APIHandler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			writeError(w, http.StatusUnauthorized, "Authorization header is required")
			return
		}
		caller, err := h.authenticate(r)
		if err != nil {
			h.rejectAuth(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(withCaller(r.Context(), caller)))
	})
}

// OptionalAuth resolves the caller when a token is sent and lets anonymous
// requests through. A token that is present but invalid is still rejected.
func (h *APIHandler) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			next.ServeHTTP(w, r)
			return
		}
		caller, err := h.authenticate(r)
		if err != nil {
			h.rejectAuth(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(withCaller(r.Context(), caller)))
	})
}

var errBadToken = errors.New("invalid token")

func (h *APIHandler) authenticate(r *http.Request) (store.Caller, error) {
	header := r.Header.Get("Authorization")
	tokenString, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || tokenString == "" {
		return store.Caller{}, errBadToken
	}

	userID, err := h.jwt.Validate(tokenString)
	if err != nil {
		return store.Caller{}, errBadToken
	}

	user, err := h.users.GetUserByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Caller{}, errBadToken
		}
		return store.Caller{}, err
	}
	return store.Caller{UserID: user.ID}, nil
}

func (h *APIHandler) rejectAuth(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, errBadToken) {
		writeError(w, http.StatusUnauthorized, "Invalid token")
		return
	}
	logger(r).Error("resolving caller", "error", err)
	writeError(w, http.StatusInternalServerError, "Failed to process user identity")
}

func withCaller(ctx context.Context, c store.Caller) context.Context {
	if info, ok := ctx.Value(requestInfoKey).(*requestInfo); ok {
		info.userID = c.UserID
	}
	return context.WithValue(ctx, callerKey, c)
}

// callerFrom returns the zero (anonymous) caller when none was resolved.
func callerFrom(ctx context.Context) store.Caller {
	c, _ := ctx.Value(callerKey).(store.Caller)
	return c
}

func logger(r *http.Request) *slog.Logger {
	l := slog.Default().With("request_id", middleware.GetReqID(r.Context()))
	if c := callerFrom(r.Context()); !c.Anonymous() {
		l = l.With("user_id", c.UserID)
	}
	return l
}

type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// RequestLogger logs one line per request once the handler returns.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		info := &requestInfo{}
		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r.WithContext(context.WithValue(r.Context(), requestInfoKey, info)))

		status := sw.status
		if status == 0 {
			status = http.StatusOK
		}
		attrs := []slog.Attr{
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", status),
			slog.Int("bytes", sw.bytes),
			slog.Duration("duration", time.Since(start)),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		}
		if info.userID != "" {
			attrs = append(attrs, slog.String("user_id", info.userID))
		}

		level := slog.LevelInfo
		if status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		slog.LogAttrs(r.Context(), level, "http request", attrs...)
	})
}
