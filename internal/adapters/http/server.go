// Package http exposes the collaboration pipeline and the convergence
// machine over a JSON API. Requests are validated against the embedded
// OpenAPI document before they reach a handler.
package http

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/aretw0/winnow/internal/autosave"
	"github.com/aretw0/winnow/internal/convergence"
	"github.com/aretw0/winnow/internal/logging"
	"github.com/aretw0/winnow/internal/orchestrator"
	"github.com/aretw0/winnow/pkg/domain"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	legacyrouter "github.com/getkin/kin-openapi/routers/legacy"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

//go:embed openapi.yaml
var openapiSpec []byte

// Server routes API requests to the orchestrator, the convergence machine,
// and the autosave buffer.
type Server struct {
	orch    *orchestrator.Service
	machine *convergence.Machine
	saves   *autosave.Buffer
	logger  *slog.Logger

	gatherer prometheus.Gatherer
	router   routers.Router
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithGatherer exposes the registry behind GET /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// NewHandler builds the full HTTP handler.
func NewHandler(orch *orchestrator.Service, machine *convergence.Machine, saves *autosave.Buffer, opts ...Option) (http.Handler, error) {
	s := &Server{
		orch:     orch,
		machine:  machine,
		saves:    saves,
		logger:   logging.NewNop(),
		gatherer: prometheus.DefaultGatherer,
	}
	for _, opt := range opts {
		opt(s)
	}

	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(openapiSpec)
	if err != nil {
		return nil, fmt.Errorf("load openapi document: %w", err)
	}
	if err := doc.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("invalid openapi document: %w", err)
	}
	s.router, err = legacyrouter.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("openapi router: %w", err)
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(enableCORS)

	r.Get("/healthz", s.getHealth)
	r.Get("/openapi.yaml", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(openapiSpec)
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.validateRequest)

		r.Get("/projects", s.listProjects)
		r.Route("/projects/{projectID}", func(r chi.Router) {
			r.Get("/", s.getProject)
			r.Post("/collaborate", s.collaborate)
			r.Put("/fields", s.queueFields)
			r.Post("/fields/flush", s.flushFields)
			r.Get("/events", s.subscribeEvents)

			r.Route("/convergence", func(r chi.Router) {
				r.Get("/", s.getConvergence)
				r.Post("/reflect", s.ensureReflection)
				r.Post("/choose", s.chooseCandidates)
				r.Post("/confirm", s.confirmPhase)
				r.Post("/direction", s.confirmDirection)
				r.Post("/variants", s.regenerateVariants)
				r.Post("/bank", s.bankIdea)
				r.Delete("/bank", s.unbankIdea)
				r.Post("/selection", s.beginSelection)
				r.Post("/lock", s.lockArtifact)
				r.Post("/reset", s.resetConvergence)
			})
		})
	})

	return r, nil
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// validateRequest checks the request against the OpenAPI document. Routes
// the document does not know fall through to chi's own 404.
func (s *Server) validateRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route, pathParams, err := s.router.FindRoute(r)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		input := &openapi3filter.RequestValidationInput{
			Request:    r,
			PathParams: pathParams,
			Route:      route,
			Options: &openapi3filter.Options{
				AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
			},
		}
		if err := openapi3filter.ValidateRequest(r.Context(), input); err != nil {
			s.writeJSON(w, http.StatusBadRequest, errorBody(err))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) getHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listProjects(w http.ResponseWriter, r *http.Request) {
	ids, err := s.orch.Store().List(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"projects": ids})
}

func (s *Server) getProject(w http.ResponseWriter, r *http.Request) {
	state, err := s.orch.Store().Get(r.Context(), chi.URLParam(r, "projectID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, state)
}

type collaborateRequest struct {
	Focus   string         `json:"focus"`
	Action  string         `json:"action"`
	Payload map[string]any `json:"payload"`
}

type collaborateResponse struct {
	Success          bool     `json:"success"`
	Feedback         []string `json:"feedback,omitempty"`
	FollowUpQuestion string   `json:"followUpQuestion,omitempty"`
	GeneratedItems   []string `json:"generatedItems,omitempty"`
}

func (s *Server) collaborate(w http.ResponseWriter, r *http.Request) {
	var body collaborateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorBody(err))
		return
	}
	action := domain.Action(body.Action)
	if action == "" {
		action = domain.ActionReview
	}

	result, err := s.orch.Collaborate(r.Context(), orchestrator.Request{
		ProjectID: chi.URLParam(r, "projectID"),
		Focus:     domain.ParseFocus(body.Focus),
		Action:    action,
		Payload:   body.Payload,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, collaborateResponse{
		Success:          true,
		Feedback:         result.Feedback,
		FollowUpQuestion: result.FollowUpQuestion,
		GeneratedItems:   result.GeneratedItems,
	})
}

func (s *Server) queueFields(w http.ResponseWriter, r *http.Request) {
	var fields map[string]any
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorBody(err))
		return
	}
	s.saves.Queue(chi.URLParam(r, "projectID"), fields)
	s.writeJSON(w, http.StatusAccepted, map[string]any{"queued": true})
}

func (s *Server) flushFields(w http.ResponseWriter, r *http.Request) {
	if err := s.saves.Flush(r.Context(), chi.URLParam(r, "projectID")); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// subscribeEvents streams every project document revision as one SSE data
// frame.
func (s *Server) subscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}
	projectID := chi.URLParam(r, "projectID")

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	updates := make(chan *domain.ProjectState, 10)
	unsub, err := s.orch.Store().Subscribe(r.Context(), projectID, func(state *domain.ProjectState) {
		select {
		case updates <- state:
		default:
			// Slow client; it will catch up on the next revision.
		}
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	defer unsub()

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case state := <-updates:
			data, err := json.Marshal(state)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}

func (s *Server) getConvergence(w http.ResponseWriter, r *http.Request) {
	sess, err := s.machine.Session(r.Context(), chi.URLParam(r, "projectID"))
	s.writeSession(w, sess, err)
}

func (s *Server) ensureReflection(w http.ResponseWriter, r *http.Request) {
	sess, err := s.machine.EnsureReflection(r.Context(), chi.URLParam(r, "projectID"))
	s.writeSession(w, sess, err)
}

func (s *Server) chooseCandidates(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Candidates []string `json:"candidates"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorBody(err))
		return
	}
	sess, err := s.machine.Choose(r.Context(), chi.URLParam(r, "projectID"), body.Candidates)
	s.writeSession(w, sess, err)
}

func (s *Server) confirmPhase(w http.ResponseWriter, r *http.Request) {
	sess, err := s.machine.ConfirmPhase(r.Context(), chi.URLParam(r, "projectID"))
	s.writeSession(w, sess, err)
}

func (s *Server) confirmDirection(w http.ResponseWriter, r *http.Request) {
	sess, err := s.machine.ConfirmDirection(r.Context(), chi.URLParam(r, "projectID"))
	s.writeSession(w, sess, err)
}

func (s *Server) regenerateVariants(w http.ResponseWriter, r *http.Request) {
	sess, err := s.machine.RegenerateVariants(r.Context(), chi.URLParam(r, "projectID"))
	s.writeSession(w, sess, err)
}

type ideaRequest struct {
	Idea string `json:"idea"`
}

func (s *Server) bankIdea(w http.ResponseWriter, r *http.Request) {
	var body ideaRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorBody(err))
		return
	}
	sess, err := s.machine.AddIdea(r.Context(), chi.URLParam(r, "projectID"), body.Idea)
	s.writeSession(w, sess, err)
}

func (s *Server) unbankIdea(w http.ResponseWriter, r *http.Request) {
	var body ideaRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorBody(err))
		return
	}
	sess, err := s.machine.RemoveIdea(r.Context(), chi.URLParam(r, "projectID"), body.Idea)
	s.writeSession(w, sess, err)
}

func (s *Server) beginSelection(w http.ResponseWriter, r *http.Request) {
	sess, err := s.machine.BeginSelection(r.Context(), chi.URLParam(r, "projectID"))
	s.writeSession(w, sess, err)
}

func (s *Server) lockArtifact(w http.ResponseWriter, r *http.Request) {
	var body ideaRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorBody(err))
		return
	}
	sess, err := s.machine.Lock(r.Context(), chi.URLParam(r, "projectID"), body.Idea)
	s.writeSession(w, sess, err)
}

func (s *Server) resetConvergence(w http.ResponseWriter, r *http.Request) {
	sess, err := s.machine.Reset(r.Context(), chi.URLParam(r, "projectID"))
	s.writeSession(w, sess, err)
}

func (s *Server) writeSession(w http.ResponseWriter, sess *domain.ConvergenceSession, err error) {
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sess)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("response encode failed", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrProjectNotFound), errors.Is(err, domain.ErrStrategyNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrAlreadyLocked):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrRateLimited):
		status = http.StatusTooManyRequests
	case errors.Is(err, domain.ErrUnauthorized):
		status = http.StatusBadGateway
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "status", status, "err", err)
	} else {
		s.logger.Warn("request rejected", "status", status, "err", err)
	}
	s.writeJSON(w, status, errorBody(err))
}

func errorBody(err error) map[string]any {
	return map[string]any{"success": false, "error": err.Error()}
}
