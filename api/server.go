// Package api exposes the trekka façade over HTTP using gin.
//
// Identity is taken from the X-User-ID and X-User-Name headers, which an
// upstream authenticator is expected to set. Requests without a user id are
// rejected with 401.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hupe1980/trekka"
	"github.com/hupe1980/trekka/core"
	"github.com/hupe1980/trekka/logging"
)

// Header names carrying the caller identity.
const (
	HeaderUserID   = "X-User-ID"
	HeaderUserName = "X-User-Name"
)

const userContextKey = "trekka.user"

// Options configures the HTTP server.
type Options struct {
	Addr            string
	ShutdownTimeout time.Duration

	// MetricsHandler is mounted at MetricsPath when non-nil.
	MetricsHandler http.Handler
	MetricsPath    string

	// RetryAfter is advertised on 503 responses for busy threads.
	RetryAfter time.Duration

	Logger logging.Logger
}

// Server is the HTTP server for the trekka API.
type Server struct {
	tk     *trekka.Trekka
	engine *gin.Engine
	opts   Options
}

// NewServer creates the HTTP server and registers all routes.
func NewServer(tk *trekka.Trekka, optFns ...func(o *Options)) *Server {
	opts := Options{
		Addr:            ":8080",
		ShutdownTimeout: 10 * time.Second,
		MetricsPath:     "/metrics",
		RetryAfter:      time.Second,
		Logger:          logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogger(opts.Logger))

	s := &Server{tk: tk, engine: engine, opts: opts}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler, e.g. for httptest.
func (s *Server) Handler() http.Handler { return s.engine }

// Run starts the HTTP server and blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.opts.Logger.Info("HTTP server listening", "addr", s.opts.Addr)
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		s.opts.Logger.Info("context cancelled, shutting down HTTP server")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func (s *Server) registerRoutes() {
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	if s.opts.MetricsHandler != nil {
		s.engine.GET(s.opts.MetricsPath, gin.WrapH(s.opts.MetricsHandler))
	}

	authed := s.engine.Group("/", requireUser())
	authed.POST("/chat", s.chat)
	authed.POST("/new-chat", s.newChat)
	authed.GET("/conversations", s.listConversations)
	authed.POST("/delete-conversation", s.deleteConversation)
	authed.GET("/favorites", s.listFavorites)
}

func requireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderUserID)
		if id == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
			return
		}
		c.Set(userContextKey, core.UserContext{UserID: id, DisplayName: c.GetHeader(HeaderUserName)})
		c.Next()
	}
}

func userFrom(c *gin.Context) core.UserContext {
	u, _ := c.Get(userContextKey)
	user, _ := u.(core.UserContext)
	return user
}

func requestLogger(logger logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("request handled",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
