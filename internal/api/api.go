// Package api exposes the answer service over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/siteqa/internal/answer"
	"github.com/sells-group/siteqa/internal/model"
	"github.com/sells-group/siteqa/internal/resilience"
)

// Error codes for non-200 responses.
const (
	CodeInvalidRequest   = "invalid_request"
	CodeNotConfigured    = "not_configured"
	CodeMethodNotAllowed = "method_not_allowed"
	CodeNotFound         = "not_found"
)

// RequestIDHeader carries the per-request correlation ID.
const RequestIDHeader = "X-Request-ID"

const maxBodyBytes = 64 << 10

// Asker answers one question.
type Asker interface {
	Ask(ctx context.Context, req model.Request) (*model.Response, error)
}

type ctxKey struct{}

// RequestID returns the request ID stored by the router middleware.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

type errorBody struct {
	Error model.ErrorInfo `json:"error"`
}

type healthBody struct {
	Status   string            `json:"status"`
	Breakers map[string]string `json:"breakers,omitempty"`
}

type server struct {
	asker    Asker
	breakers *resilience.ServiceBreakers
}

// NewRouter builds the HTTP handler. breakers may be nil.
func NewRouter(asker Asker, breakers *resilience.ServiceBreakers) http.Handler {
	s := &server{asker: asker, breakers: breakers}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(requestID)
	r.Use(accessLog)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:     []string{"*"},
		AllowedMethods:     []string{http.MethodPost, http.MethodOptions},
		AllowedHeaders:     []string{"Content-Type", "Accept", "Authorization"},
		ExposedHeaders:     []string{RequestIDHeader},
		OptionsPassthrough: true,
		MaxAge:             300,
	}))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, CodeNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, CodeMethodNotAllowed, "method not allowed")
	})

	r.Get("/health", s.health)
	r.Post("/api/ask", s.ask)
	r.Options("/api/ask", preflight)

	return r
}

func (s *server) ask(w http.ResponseWriter, r *http.Request) {
	setCORS(w)

	var req model.Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		msg := "request body must be a JSON object"
		if errors.Is(err, io.EOF) {
			msg = "request body is empty"
		}
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, msg)
		return
	}

	resp, err := s.asker.Ask(r.Context(), req)
	if err != nil {
		var ve *model.ValidationError
		switch {
		case errors.As(err, &ve):
			writeError(w, http.StatusBadRequest, CodeInvalidRequest, ve.Message)
		case errors.Is(err, answer.ErrNotConfigured):
			zap.L().Error("api: model credential missing", zap.String("request_id", RequestID(r.Context())))
			writeError(w, http.StatusInternalServerError, CodeNotConfigured, "the answer service is not configured")
		default:
			zap.L().Error("api: ask failed", zap.String("request_id", RequestID(r.Context())), zap.Error(err))
			writeError(w, http.StatusInternalServerError, model.ErrCodeInternal, "internal error")
		}
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *server) health(w http.ResponseWriter, _ *http.Request) {
	body := healthBody{Status: "ok"}
	if s.breakers != nil {
		states := s.breakers.States()
		if len(states) > 0 {
			body.Breakers = make(map[string]string, len(states))
			for name, st := range states {
				body.Breakers[name] = st.String()
			}
		}
	}
	writeJSON(w, http.StatusOK, body)
}

func preflight(w http.ResponseWriter, _ *http.Request) {
	setCORS(w)
	w.WriteHeader(http.StatusNoContent)
}

// setCORS writes the CORS headers for clients that skip the preflight.
func setCORS(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type, Accept, Authorization")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorBody{Error: model.ErrorInfo{Code: code, Message: msg}})
}

// requestID reuses an inbound X-Request-ID or assigns a new UUID, and
// echoes it on the response.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Info("api: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.String("remote", r.RemoteAddr),
			zap.String("request_id", RequestID(r.Context())),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}
