package httpserver

import (
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/and161185/noodle/internal/auth"
	"github.com/and161185/noodle/internal/errs"
)

// logRequests logs request metadata and counts requests per procedure. Payloads
// are never logged.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		proc := procedureLabel(r)
		s.metrics.requests.WithLabelValues(proc, strconv.Itoa(status)).Inc()
		s.log.Info("http",
			zap.String("method", r.Method),
			zap.String("procedure", proc),
			zap.Int("status", status),
			zap.Duration("dur", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

// recoverPanics turns a handler panic into an internal error envelope.
func (s *Server) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				s.log.Error("panic",
					zap.Any("reason", rec),
					zap.ByteString("stack", debug.Stack()),
					zap.String("path", r.URL.Path),
				)
				writeJSON(w, http.StatusInternalServerError, errorEnvelope{Error: errorBody{
					Message: "internal server error",
					Code:    rpcCodes[errs.KindInternal],
					Data: errorData{
						Code:       errs.KindInternal.String(),
						HTTPStatus: http.StatusInternalServerError,
					},
				}})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// authenticate resolves the bearer token into a user id on the request context.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok, err := auth.BearerToken(r.Header.Get("Authorization"))
		if err != nil {
			s.writeError(w, r, errs.Unauthorized("missing bearer token"))
			return
		}
		userID, err := s.verifier.Subject(tok)
		if err != nil {
			s.writeError(w, r, errs.Unauthorized("invalid token"))
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithUserID(r.Context(), userID)))
	})
}

// allow counts the request against the caller's budget for the procedure and
// sets the rate limit headers. A denied request has its error already written.
func (s *Server) allow(w http.ResponseWriter, r *http.Request) bool {
	userID, _ := auth.UserIDFromCtx(r.Context())
	proc := procedureLabel(r)

	res := s.limiter.LimitPreset(r.Context(), proc+":"+userID, s.preset)
	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAtMillis(), 10))

	if !res.Allowed {
		s.metrics.rejections.WithLabelValues(proc).Inc()
		s.writeError(w, r, errs.RateLimited("too many requests, try again later", res.RetryAfter(s.now())))
		return false
	}
	return true
}

// procedureLabel names the matched procedure, keeping metric cardinality bounded.
func procedureLabel(r *http.Request) string {
	rc := chi.RouteContext(r.Context())
	if rc == nil {
		return "unknown"
	}
	pattern := rc.RoutePattern()
	if pattern == "" {
		return "unknown"
	}
	return strings.TrimPrefix(pattern, "/trpc/")
}
