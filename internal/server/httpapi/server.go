// Package httpapi exposes the services over a JSON HTTP API built on gin.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/gophsocial/internal/logging"
	"github.com/dmitrijs2005/gophsocial/internal/server/metrics"
	"github.com/dmitrijs2005/gophsocial/internal/server/services"
	"github.com/gin-gonic/gin"
)

const shutdownTimeout = 5 * time.Second

// Services bundles what the handlers call into.
type Services struct {
	Users         *services.UserService
	Posts         *services.PostService
	Relationships *services.RelationshipService
	Engagement    *services.EngagementService
	Cascade       *services.CascadeService
}

type HTTPServer struct {
	address  string
	svc      Services
	metrics  *metrics.Metrics
	logger   logging.Logger
	tokenTTL time.Duration
}

// NewHTTPServer builds a server listening on address. m may be nil, in
// which case /metrics is not served.
func NewHTTPServer(address string, l logging.Logger, svc Services, m *metrics.Metrics, tokenTTL time.Duration) *HTTPServer {
	return &HTTPServer{
		address:  address,
		svc:      svc,
		metrics:  m,
		logger:   l.With("module", "http_server"),
		tokenTTL: tokenTTL,
	}
}

// Router returns the gin engine with every route registered.
func (s *HTTPServer) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.observe())

	if s.metrics != nil {
		r.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	api := r.Group("/api/v1")
	api.POST("/register", s.register)
	api.POST("/login", s.login)
	api.POST("/logout", s.logout)
	api.POST("/password/forgot", s.forgotPassword)
	api.POST("/password/reset/:token", s.resetPassword)

	auth := api.Group("", s.authRequired())
	auth.GET("/me", s.me)
	auth.GET("/me/connections", s.connections)
	auth.PUT("/me/profile", s.updateProfile)
	auth.PUT("/me/password", s.updatePassword)
	auth.DELETE("/me", s.deleteMe)

	auth.POST("/users/:id/follow", s.toggleFollow)
	auth.GET("/users/:id/posts", s.userPosts)

	auth.GET("/feed", s.feed)
	auth.GET("/posts", s.allPosts)
	auth.POST("/posts", s.createPost)
	auth.GET("/posts/:id", s.getPost)
	auth.PUT("/posts/:id", s.updateCaption)
	auth.DELETE("/posts/:id", s.deletePost)
	auth.GET("/posts/:id/image", s.imageURL)
	auth.POST("/posts/:id/like", s.toggleLike)
	auth.POST("/posts/:id/comments", s.addComment)
	auth.PUT("/posts/:id/comments/:commentID", s.updateComment)
	auth.DELETE("/posts/:id/comments/:commentID", s.deleteComment)

	return r
}

// Run serves until ctx is canceled and then shuts down gracefully.
func (s *HTTPServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := &http.Server{Handler: s.Router(), ReadHeaderTimeout: 10 * time.Second}

	stopped := make(chan error, 1)
	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		stopped <- srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return <-stopped
}
