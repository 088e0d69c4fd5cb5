// Package server exposes the resolution engine over HTTP.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"slices"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/matzehuels/postroc/pkg/custom"
	"github.com/matzehuels/postroc/pkg/dag"
	"github.com/matzehuels/postroc/pkg/env"
	perrors "github.com/matzehuels/postroc/pkg/errors"
	"github.com/matzehuels/postroc/pkg/resolve"
	"github.com/matzehuels/postroc/pkg/synth"
	"github.com/matzehuels/postroc/pkg/transform"
)

const (
	maxRequestBody  = 10 << 20
	shutdownTimeout = 5 * time.Second
)

// Server serves the JSON API. Each resolve request gets its own resolver so
// seeds never leak between requests.
type Server struct {
	resolverOpts []resolve.Option
	logger       *log.Logger
	gatherer     prometheus.Gatherer
}

// Option configures a [Server].
type Option func(*Server)

// WithResolverOptions sets the options every per-request resolver starts from.
func WithResolverOptions(opts ...resolve.Option) Option {
	return func(s *Server) { s.resolverOpts = opts }
}

// WithLogger sets the logger for request and lifecycle logs. The default
// discards everything.
func WithLogger(l *log.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithMetrics serves g on GET /metrics.
func WithMetrics(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// New creates a server with the given options applied.
func New(opts ...Option) *Server {
	s := &Server{}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return s
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/resolve", s.resolve)
		r.Post("/graph", s.graph)
		r.Post("/graph/would-cycle", s.wouldCycle)
		r.Post("/transform/validate", s.validateTransform)
		r.Post("/transform/apply", s.applyTransform)
	})
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		s.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			srv.Close()
			return err
		}
		return nil
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start).Round(time.Microsecond),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

type resolveRequest struct {
	Nodes       []custom.Document `json:"nodes"`
	Environment *env.Config       `json:"environment,omitempty"`
	Headers     []env.Header      `json:"headers,omitempty"`
	Seed        *int64            `json:"seed,omitempty"`
}

type resolveResponse struct {
	Order   []string                   `json:"order"`
	Outputs map[string]*resolve.Output `json:"outputs"`
}

func (s *Server) resolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if !s.decode(w, r, &req) {
		return
	}
	nodes, err := custom.Nodes(req.Nodes)
	if err != nil {
		s.writeError(w, err)
		return
	}
	g, err := dag.Build(nodes)
	if err != nil {
		s.writeError(w, err)
		return
	}

	var e *env.Environment
	if req.Environment != nil {
		if e, err = req.Environment.Resolve(req.Headers); err != nil {
			s.writeError(w, err)
			return
		}
	}

	opts := slices.Clone(s.resolverOpts)
	if req.Seed != nil {
		opts = append(opts, resolve.WithSynthesizer(synth.New(*req.Seed)))
	}
	opts = append(opts, resolve.WithLogger(s.logger))
	outputs, err := resolve.New(opts...).ResolveAll(r.Context(), nodes, e)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resolveResponse{Order: dag.Order(g), Outputs: outputs})
}

type graphRequest struct {
	Nodes []custom.Document `json:"nodes"`
}

type graphResponse struct {
	Graph dag.Graph `json:"graph"`
	Order []string  `json:"order"`
}

func (s *Server) graph(w http.ResponseWriter, r *http.Request) {
	var req graphRequest
	if !s.decode(w, r, &req) {
		return
	}
	g, ok := s.buildGraph(w, req.Nodes)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, graphResponse{Graph: g, Order: dag.Order(g)})
}

type wouldCycleRequest struct {
	Nodes  []custom.Document `json:"nodes"`
	Source string            `json:"source"`
	Target string            `json:"target"`
}

func (s *Server) wouldCycle(w http.ResponseWriter, r *http.Request) {
	var req wouldCycleRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Source == "" || req.Target == "" {
		s.writeError(w, perrors.New(perrors.ErrCodeInvalidInput, "source and target are required"))
		return
	}
	g, ok := s.buildGraph(w, req.Nodes)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"wouldCycle": dag.WouldCreateCycle(req.Source, req.Target, g)})
}

func (s *Server) buildGraph(w http.ResponseWriter, docs []custom.Document) (dag.Graph, bool) {
	nodes, err := custom.Nodes(docs)
	if err != nil {
		s.writeError(w, err)
		return nil, false
	}
	g, err := dag.Build(nodes)
	if err != nil {
		s.writeError(w, err)
		return nil, false
	}
	return g, true
}

type validateRequest struct {
	Expression string `json:"expression"`
}

func (s *Server) validateTransform(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if !s.decode(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, transform.Validate(req.Expression))
}

type applyRequest struct {
	Data   map[string]any         `json:"data"`
	Export *custom.ExportDocument `json:"export"`
}

func (s *Server) applyTransform(w http.ResponseWriter, r *http.Request) {
	var req applyRequest
	if !s.decode(w, r, &req) {
		return
	}
	cfg, err := req.Export.Config()
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"result": transform.Apply(req.Data, cfg)})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(v); err != nil {
		s.writeError(w, perrors.Wrap(perrors.ErrCodeInvalidInput, err, "invalid request body"))
		return false
	}
	return true
}

type errorResponse struct {
	Code    perrors.Code `json:"code"`
	Message string       `json:"message"`
	Cycle   []string     `json:"cycle,omitempty"`
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := perrors.GetCode(err)
	if code == "" {
		code = perrors.ErrCodeInternal
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		code = perrors.ErrCodeTimeout
	}
	resp := errorResponse{Code: code, Message: perrors.UserMessage(err)}
	var cycle *dag.CyclicDependencyError
	if errors.As(err, &cycle) {
		resp.Message = cycle.Error()
		resp.Cycle = cycle.IDs
	}

	status := statusFor(code)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "code", code, "err", err)
	} else {
		s.logger.Warn("request rejected", "code", code, "err", err)
	}
	writeJSON(w, status, resp)
}

func statusFor(code perrors.Code) int {
	switch code {
	case perrors.ErrCodeInvalidInput, perrors.ErrCodeInvalidNode, perrors.ErrCodeInvalidField,
		perrors.ErrCodeInvalidExpression, perrors.ErrCodeInvalidFormat, perrors.ErrCodeInvalidPath:
		return http.StatusBadRequest
	case perrors.ErrCodeCyclicDependency:
		return http.StatusUnprocessableEntity
	case perrors.ErrCodeNotFound, perrors.ErrCodeNodeNotFound, perrors.ErrCodeReferenceNotFound, perrors.ErrCodeFileNotFound:
		return http.StatusNotFound
	case perrors.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case perrors.ErrCodeNetwork:
		return http.StatusBadGateway
	case perrors.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case perrors.ErrCodeUnsupported:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

// writeJSON writes v with status. A value that cannot be encoded is
// reported as a 500 error body.
func writeJSON(w http.ResponseWriter, status int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		buf.Reset()
		status = http.StatusInternalServerError
		json.NewEncoder(&buf).Encode(errorResponse{
			Code:    perrors.ErrCodeInternal,
			Message: "encode response: " + err.Error(),
		})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}
