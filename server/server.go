// Package server exposes an a2a.Handler and an engine.Engine over HTTP.
//
// Routes:
//
//	GET  /.well-known/agent.json     agent card
//	GET  /health                     liveness text
//	POST /v1/message:send            run a task, reply with the final task
//	POST /v1/message:stream          run a task, stream lifecycle events (SSE)
//	GET  /v1/tasks/:id               stored task
//	POST /v1/tasks/:id/cancel        cancel a task
//	GET  /v1/pipelines               registered pipeline names
//	POST /v1/pipelines/:name/run     run a pipeline, stream stage events (SSE)
//	GET  /metrics                    Prometheus exposition
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hupe1980/agentpipe/a2a"
	"github.com/hupe1980/agentpipe/core"
	"github.com/hupe1980/agentpipe/engine"
	"github.com/hupe1980/agentpipe/logging"
	"github.com/hupe1980/agentpipe/task"
)

// Options configures a Server.
type Options struct {
	// Engine serves the pipeline routes. Optional.
	Engine *engine.Engine

	// Bus additionally receives every task event, for example a bus.Sink.
	// Optional.
	Bus task.Sink

	// Gatherer backs /metrics. Optional.
	Gatherer prometheus.Gatherer

	// QueueSize bounds the per-request event buffer of streaming routes.
	QueueSize int

	// ShutdownTimeout bounds graceful shutdown in Run.
	ShutdownTimeout time.Duration

	Logger logging.Logger
}

// Server is the HTTP front end.
type Server struct {
	handler         *a2a.Handler
	engine          *engine.Engine
	bus             task.Sink
	queueSize       int
	shutdownTimeout time.Duration
	logger          logging.Logger
	router          *gin.Engine
}

// New creates a Server over handler.
func New(handler *a2a.Handler, optFns ...func(o *Options)) *Server {
	opts := Options{
		QueueSize:       task.DefaultQueueSize,
		ShutdownTimeout: 10 * time.Second,
		Logger:          logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	s := &Server{
		handler:         handler,
		engine:          opts.Engine,
		bus:             opts.Bus,
		queueSize:       opts.QueueSize,
		shutdownTimeout: opts.ShutdownTimeout,
		logger:          logging.OrNoOp(opts.Logger),
		router:          gin.New(),
	}

	s.router.Use(gin.Recovery(), requestLogger(s.logger))
	s.setupRoutes(opts.Gatherer)
	return s
}

// Handler returns the router as an http.Handler.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", addr, "agent", s.handler.Card().Name)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
		defer cancel()

		s.logger.Info("server shutting down", "addr", addr)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}

func (s *Server) setupRoutes(gatherer prometheus.Gatherer) {
	s.router.GET("/.well-known/agent.json", s.handleCard)
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/v1")
	{
		// "message:send" and "message:stream" are single path segments;
		// exact routes below take precedence over this parameter.
		v1.POST("/:action", s.handleMessage)

		v1.GET("/tasks/:id", s.handleGetTask)
		v1.POST("/tasks/:id/cancel", s.handleCancelTask)

		if s.engine != nil {
			v1.GET("/pipelines", s.handleListPipelines)
			v1.POST("/pipelines/:name/run", s.handleRunPipeline)
		}
	}

	if gatherer != nil {
		s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
}

func (s *Server) handleCard(c *gin.Context) {
	c.JSON(http.StatusOK, s.handler.Card())
}

func (s *Server) handleHealth(c *gin.Context) {
	c.String(http.StatusOK, "%s is running!", s.handler.Card().Name)
}

func (s *Server) handleMessage(c *gin.Context) {
	switch c.Param("action") {
	case "message:send":
		s.handleSend(c)
	case "message:stream":
		s.handleStream(c)
	default:
		c.JSON(http.StatusNotFound, a2a.ErrorResponse{Error: "unknown action " + c.Param("action")})
	}
}

func (s *Server) handleSend(c *gin.Context) {
	var req a2a.SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, a2a.ErrorResponse{Error: err.Error()})
		return
	}

	t, err := s.handler.SendMessage(c.Request.Context(), req, s.sink(nil))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

type sendOutcome struct {
	task *task.Task
	err  error
}

func (s *Server) handleStream(c *gin.Context) {
	var req a2a.SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, a2a.ErrorResponse{Error: err.Error()})
		return
	}

	q := task.NewQueue(s.queueSize)
	done := make(chan sendOutcome, 1)
	go func() {
		var out sendOutcome
		defer func() {
			if r := recover(); r != nil {
				out = sendOutcome{err: fmt.Errorf("panic: %v", r)}
			}
			q.Close()
			done <- out
		}()
		out.task, out.err = s.handler.SendMessage(c.Request.Context(), req, s.sink(q))
	}()

	streaming := false
	for ev := range q.Events() {
		if !streaming {
			streamHeaders(c)
			streaming = true
		}
		c.SSEvent(string(ev.Kind), ev)
		c.Writer.Flush()
	}

	out := <-done
	if out.err == nil {
		return
	}
	if !streaming {
		s.fail(c, out.err)
		return
	}
	s.logger.Error("stream ended with error", "error", out.err)
	c.SSEvent("error", a2a.ErrorResponse{Error: out.err.Error()})
	c.Writer.Flush()
}

func (s *Server) handleGetTask(c *gin.Context) {
	t, err := s.handler.GetTask(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (s *Server) handleCancelTask(c *gin.Context) {
	t, err := s.handler.CancelTask(c.Request.Context(), c.Param("id"), s.sink(nil))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (s *Server) handleListPipelines(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"pipelines": s.engine.Pipelines()})
}

// RunRequest is the body of a pipeline run.
type RunRequest struct {
	Input string `json:"input"`
}

// RunResponse is the body of a non-streaming pipeline run.
type RunResponse struct {
	RunID  string             `json:"run_id"`
	Events []core.OutputEvent `json:"events"`
}

func (s *Server) handleRunPipeline(c *gin.Context) {
	var req RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, a2a.ErrorResponse{Error: err.Error()})
		return
	}

	name := c.Param("name")
	if c.Query("stream") == "false" {
		runID, events, err := s.engine.InvokeSync(c.Request.Context(), name, req.Input)
		if err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, RunResponse{RunID: runID, Events: events})
		return
	}

	runID, events, errs, err := s.engine.Invoke(c.Request.Context(), name, req.Input)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.Header("X-Run-ID", runID)
	streamHeaders(c)
	for ev := range events {
		c.SSEvent("stage", ev)
		c.Writer.Flush()
	}

	if err := <-errs; err != nil {
		s.logger.Warn("pipeline run failed", "pipeline", name, "run_id", runID, "error", err)
		c.SSEvent("error", a2a.ErrorResponse{Error: err.Error()})
	} else {
		c.SSEvent("done", gin.H{"run_id": runID})
	}
	c.Writer.Flush()
}

// sink combines the request's own sink with the bus.
func (s *Server) sink(own task.Sink) task.Sink {
	switch {
	case own == nil && s.bus == nil:
		return task.Discard
	case own == nil:
		return s.bus
	case s.bus == nil:
		return own
	default:
		return task.MultiSink{own, s.bus}
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.Request.URL.Path, "error", err)
	}
	c.JSON(status, a2a.ErrorResponse{Error: err.Error()})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, a2a.ErrTaskExists):
		return http.StatusConflict
	case errors.Is(err, task.ErrNotFound), errors.Is(err, engine.ErrPipelineNotFound):
		return http.StatusNotFound
	case core.IsValidation(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func streamHeaders(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
}

func requestLogger(l logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		began := time.Now()
		c.Next()
		l.Debug("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(began),
		)
	}
}
