// Package httpserver exposes the module API as tRPC-style procedures over HTTP.
package httpserver

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/and161185/noodle/internal/auth"
	"github.com/and161185/noodle/internal/errs"
	"github.com/and161185/noodle/internal/limiter"
	"github.com/and161185/noodle/internal/model"
	"github.com/and161185/noodle/internal/service"
)

// maxBodyBytes bounds mutation payloads.
const maxBodyBytes = 1 << 20

// Server wires the module service into HTTP handlers.
type Server struct {
	modules  service.ModuleService
	verifier *auth.Verifier
	limiter  *limiter.Limiter
	preset   limiter.Preset
	metrics  *Metrics
	log      *zap.Logger
	now      func() time.Time
}

// Deps are the collaborators of Server.
type Deps struct {
	Modules  service.ModuleService
	Verifier *auth.Verifier
	Limiter  *limiter.Limiter
	// Preset is applied to every mutation.
	Preset  limiter.Preset
	Metrics *Metrics
	Log     *zap.Logger
}

// New constructs a Server. Nil Metrics or Log get fresh defaults.
func New(d Deps) *Server {
	s := &Server{
		modules:  d.Modules,
		verifier: d.Verifier,
		limiter:  d.Limiter,
		preset:   d.Preset,
		metrics:  d.Metrics,
		log:      d.Log,
		now:      time.Now,
	}
	if s.metrics == nil {
		s.metrics = NewMetrics()
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.limiter == nil {
		s.limiter = limiter.New(nil, s.log)
	}
	return s
}

// Router builds the HTTP handler tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.logRequests)
	r.Use(s.recoverPanics)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", s.metrics.Handler())

	r.Route("/trpc", func(r chi.Router) {
		r.Use(s.authenticate)

		r.Get("/module.getById", query(s, s.modules.GetByID))
		r.Get("/module.getUserModules", query(s, s.modules.ListUserModules))

		r.Post("/module.create", mutation(s, decodeStrict, s.modules.Create))
		r.Post("/module.update", mutation(s, decodeUpdate, s.modules.Update))
		r.Post("/module.archive", mutation(s, decodeStrict, success(s.modules.Archive)))
		r.Post("/module.recover", mutation(s, decodeStrict, success(s.modules.Recover)))
		r.Post("/module.updateLastVisited", mutation(s, decodeStrict, success(s.modules.UpdateLastVisited)))
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, r, errs.NotFound("no such procedure"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, r, errs.Validation("unsupported method "+r.Method+" for "+r.URL.Path, nil))
	})
	return r
}

// query serves a GET procedure whose input arrives URL-encoded in ?input=.
func query[In, Out any](s *Server, fn func(context.Context, string, In) (Out, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in In
		if raw := r.URL.Query().Get("input"); raw != "" {
			if err := decodeStrict([]byte(raw), &in); err != nil {
				s.writeError(w, r, err)
				return
			}
		}
		invoke(s, w, r, in, fn)
	}
}

// mutation serves a POST procedure whose input is the JSON request body. Only
// input that decodes and validates is counted against the rate limit.
func mutation[In, Out any](s *Server, decode func([]byte, any) error, fn func(context.Context, string, In) (Out, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
		if err != nil {
			s.writeError(w, r, errs.Validation("unreadable body", nil))
			return
		}
		if len(body) > maxBodyBytes {
			s.writeError(w, r, errs.Validation("body too large", nil))
			return
		}
		var in In
		if len(body) > 0 {
			if err := decode(body, &in); err != nil {
				s.writeError(w, r, err)
				return
			}
		}
		if err := s.modules.Validate(in); err != nil {
			s.writeError(w, r, err)
			return
		}
		if !s.allow(w, r) {
			return
		}
		invoke(s, w, r, in, fn)
	}
}

func invoke[In, Out any](s *Server, w http.ResponseWriter, r *http.Request, in In, fn func(context.Context, string, In) (Out, error)) {
	userID, ok := auth.UserIDFromCtx(r.Context())
	if !ok {
		s.writeError(w, r, errs.Unauthorized("missing caller identity"))
		return
	}
	out, err := fn(r.Context(), userID, in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeResult(w, out)
}

type successResult struct {
	Success bool `json:"success"`
}

// success adapts an operation without a payload to a procedure returning {"success":true}.
func success(fn func(context.Context, string, model.ModuleIDInput) error) func(context.Context, string, model.ModuleIDInput) (successResult, error) {
	return func(ctx context.Context, userID string, in model.ModuleIDInput) (successResult, error) {
		if err := fn(ctx, userID, in); err != nil {
			return successResult{}, err
		}
		return successResult{Success: true}, nil
	}
}

// decodeUpdate decodes an update payload. An explicit null description clears
// the description, which a plain pointer field cannot express.
func decodeUpdate(data []byte, out any) error {
	if err := decodeStrict(data, out); err != nil {
		return err
	}
	in, ok := out.(*model.UpdateModuleInput)
	if !ok {
		return nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return errs.Validation("malformed input", nil)
	}
	if v, ok := raw["description"]; ok && string(v) == "null" {
		empty := ""
		in.Description = &empty
	}
	return nil
}
