// Package http exposes the concierge over HTTP: the channel webhook, the
// booking form, the scheduler and read-only inspection endpoints.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/aretw0/concierge/internal/logging"
	"github.com/aretw0/concierge/pkg/domain"
	"github.com/aretw0/concierge/pkg/ports"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mitchellh/mapstructure"
)

// maxBodyBytes bounds every request body.
const maxBodyBytes = 1 << 20

// Server holds the handlers. Build it with NewHandler.
type Server struct {
	app    ports.Concierge
	ready  ports.ReadinessChecker
	logger *slog.Logger
	doc    *openapi3.T
}

type Option func(*Server)

// WithReadiness reports the gateway state on GET /health.
func WithReadiness(r ports.ReadinessChecker) Option {
	return func(s *Server) {
		s.ready = r
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// NewHandler creates the HTTP handler for app. It fails when the embedded
// OpenAPI document is invalid.
func NewHandler(app ports.Concierge, opts ...Option) (http.Handler, error) {
	doc, err := LoadSpec(context.Background())
	if err != nil {
		return nil, err
	}

	s := &Server{
		app:    app,
		logger: logging.NewNop(),
		doc:    doc,
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(rawSpec)
	})
	r.Get("/health", s.Health)

	r.Post("/webhook", s.Webhook)
	r.Post("/form", s.SubmitForm)
	r.Post("/schedule", s.Schedule)

	r.Get("/jobs", s.ListJobs)
	r.Get("/jobs/{id}", s.GetJob)
	r.Delete("/jobs/{id}", s.CancelJob)
	r.Get("/sessions/{key}", s.GetSession)

	return enableCORS(r), nil
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Webhook handles POST /webhook. The provider posts form fields; JSON bodies
// with the same field names are accepted too.
func (s *Server) Webhook(w http.ResponseWriter, r *http.Request) {
	var sig domain.Signal
	if err := decodeFields(r, &sig); err != nil {
		s.writeError(w, r, err)
		return
	}

	session, err := s.app.Handle(r.Context(), sig)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, s.logger, http.StatusOK, StatusResponse{
		Status:  statusSuccess,
		Message: "Response sent",
		Stage:   session.Stage,
	})
}

// SubmitForm handles POST /form.
func (s *Server) SubmitForm(w http.ResponseWriter, r *http.Request) {
	var form domain.FormSubmission
	if err := decodeFields(r, &form); err != nil {
		s.writeError(w, r, err)
		return
	}

	session, err := s.app.SubmitForm(r.Context(), form)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, s.logger, http.StatusOK, StatusResponse{
		Status:  statusSuccess,
		Message: "Thank you! Your form has been submitted.",
		Stage:   session.Stage,
	})
}

// ScheduleRequest is the body of POST /schedule.
type ScheduleRequest struct {
	Recipients   []string `mapstructure:"recipients"`
	Message      string   `mapstructure:"message"`
	// DelayMinutes is nil when the body omits it.
	DelayMinutes *int     `mapstructure:"delayMinutes"`
}

// Delay returns the requested delay, or the default when omitted.
func (r ScheduleRequest) Delay() int {
	if r.DelayMinutes == nil {
		return domain.DefaultDelayMinutes
	}
	return *r.DelayMinutes
}

// Schedule handles POST /schedule. The body is checked against the
// ScheduleRequest schema before the scheduler sees it.
func (s *Server) Schedule(w http.ResponseWriter, r *http.Request) {
	var raw any
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&raw); err != nil {
		s.writeError(w, r, &domain.ValidationError{Field: "body", Reason: "malformed JSON"})
		return
	}
	if sc := schema(s.doc, "ScheduleRequest"); sc != nil {
		if err := sc.VisitJSON(raw); err != nil {
			s.writeError(w, r, schemaError(err))
			return
		}
	}

	var req ScheduleRequest
	if err := decode(raw, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	receipt, err := s.app.ScheduleMessage(r.Context(), req.Recipients, req.Message, req.Delay())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, s.logger, http.StatusAccepted, receipt)
}

// ListJobs handles GET /jobs.
func (s *Server) ListJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.logger, http.StatusOK, s.app.Jobs())
}

// GetJob handles GET /jobs/{id}.
func (s *Server) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.app.Job(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, s.logger, http.StatusOK, job)
}

// CancelJob handles DELETE /jobs/{id}.
func (s *Server) CancelJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.app.Cancel(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, s.logger, http.StatusOK, job)
}

// GetSession handles GET /sessions/{key}.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	key, err := url.PathUnescape(chi.URLParam(r, "key"))
	if err != nil {
		s.writeError(w, r, &domain.ValidationError{Field: "key", Reason: "malformed session key"})
		return
	}

	session, err := s.app.Session(r.Context(), key)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, s.logger, http.StatusOK, session)
}

// Health handles GET /health.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready.Ready(r.Context()); err != nil {
			writeJSON(w, s.logger, http.StatusServiceUnavailable, StatusResponse{Status: statusError, Message: err.Error()})
			return
		}
	}
	writeJSON(w, s.logger, http.StatusOK, StatusResponse{Status: statusReady, Message: "gateway ready"})
}

// decodeFields reads a form or JSON body into out. Empty values are dropped
// so optional pointers stay nil; numbers may arrive as strings.
func decodeFields(r *http.Request, out any) error {
	r.Body = http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	values := make(map[string]any)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return &domain.ValidationError{Field: "body", Reason: "malformed JSON"}
		}
		for k, v := range body {
			if v == nil {
				continue
			}
			if str, ok := v.(string); ok && str == "" {
				continue
			}
			values[k] = v
		}
	} else {
		if err := r.ParseForm(); err != nil {
			return &domain.ValidationError{Field: "body", Reason: "malformed form"}
		}
		for k, vs := range r.PostForm {
			if len(vs) > 0 && vs[0] != "" {
				values[k] = vs[0]
			}
		}
	}
	return decode(values, out)
}

func decode(in, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return fmt.Errorf("failed to build decoder: %w", err)
	}
	if err := dec.Decode(in); err != nil {
		reason := err.Error()
		var me *mapstructure.Error
		if errors.As(err, &me) && len(me.Errors) > 0 {
			reason = me.Errors[0]
		}
		return &domain.ValidationError{Field: "body", Reason: reason}
	}
	return nil
}

func schemaError(err error) *domain.ValidationError {
	var se *openapi3.SchemaError
	if errors.As(err, &se) {
		field := strings.Join(se.JSONPointer(), ".")
		if field == "" {
			field = "body"
		}
		return &domain.ValidationError{Field: field, Reason: se.Reason}
	}
	return &domain.ValidationError{Field: "body", Reason: firstLine(err.Error())}
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
