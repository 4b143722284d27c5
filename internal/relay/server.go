package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/tvpsh2021/social-snap-sub001/pkg/config"
	"github.com/tvpsh2021/social-snap-sub001/pkg/extractor"
	"github.com/tvpsh2021/social-snap-sub001/pkg/logger"
	"github.com/tvpsh2021/social-snap-sub001/pkg/metrics"
)

const maxMessageBytes = 8 << 20

// Server exposes a Dispatcher over HTTP
type Server struct {
	cfg        config.ServerConfig
	dispatcher *Dispatcher
	registry   *extractor.Registry
	metrics    *metrics.Metrics
	log        logger.Logger
	router     http.Handler
	httpServer *http.Server
}

func NewServer(cfg config.ServerConfig, d *Dispatcher, reg *extractor.Registry, m *metrics.Metrics, log logger.Logger) *Server {
	if log == nil {
		log = logger.Component("relay-http")
	}
	s := &Server{cfg: cfg, dispatcher: d, registry: reg, metrics: m, log: log}
	s.router = s.setupRouter()
	return s
}

// Handler returns the routed handler
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/metrics", s.metrics.Handler().ServeHTTP)
	r.Get("/api/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/messages", s.handleMessage)
		r.Get("/session", s.handleSession)
		r.Get("/platforms", s.handlePlatforms)
	})

	return r
}

// Start serves until Shutdown
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.log.InfoWithFields("relay listening", map[string]interface{}{"addr": s.cfg.Addr})
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		l := s.log.WithField("request_id", middleware.GetReqID(r.Context()))
		logger.LogRequest(l, r.Method, r.URL.Path, ww.Status(), float64(time.Since(start).Microseconds())/1000)
	})
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var msg Message
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxMessageBytes)).Decode(&msg); err != nil {
		s.respondWithJSON(w, http.StatusBadRequest, failure(ErrorTypeInvalidMessage, "invalid request body"))
		return
	}
	if msg.Action == "" {
		s.respondWithJSON(w, http.StatusBadRequest, failure(ErrorTypeInvalidMessage, "action is required"))
		return
	}

	// failures are part of the message protocol and still answer 200
	s.respondWithJSON(w, http.StatusOK, s.dispatcher.Handle(r.Context(), msg))
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.dispatcher.Sessions().Current()
	if !ok {
		s.respondWithJSON(w, http.StatusNotFound, failure(ErrorTypeNoImages, "nothing has been extracted yet"))
		return
	}
	s.respondWithJSON(w, http.StatusOK, sess)
}

func (s *Server) handlePlatforms(w http.ResponseWriter, r *http.Request) {
	s.respondWithJSON(w, http.StatusOK, s.registry.Platforms())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"downloading": s.dispatcher.downloads.Running(),
	})
}

func (s *Server) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		s.log.WithError(err).Error("failed to encode response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}
