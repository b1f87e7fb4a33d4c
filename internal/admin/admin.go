// Package admin implements the server's HTTP observability surface
// (/healthz, /metrics, /debug/info): a small Gin app with the same
// middleware shape the teacher's cmd/zmux-server/main.go builds for its
// channel-CRUD API, repurposed here for read-only telemetry instead of a
// control plane (spec's admin surface is explicitly not a second control
// plane — see SPEC_FULL.md §5 Non-goals).
package admin

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/edirooss/sabled/internal/debugx"
	"github.com/edirooss/sabled/internal/telemetry"
)

// StateSnapshot is whatever the caller wants dumped by /debug/info. The
// admin package doesn't depend on internal/server (main wires the two
// together); callers supply a closure that captures their own state.
type StateSnapshot func() any

// zapLogger mirrors the teacher's ZapLogger Gin middleware: one structured
// log line per request, severity keyed off status code.
func zapLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		latency := time.Since(start)
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}

		var errs []error
		for _, ge := range c.Errors {
			if ge.Err != nil {
				errs = append(errs, ge.Err)
			}
		}
		joinedErr := errors.Join(errs...)

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.String("client_ip", c.ClientIP()),
			zap.Duration("latency", latency),
		}
		if joinedErr != nil {
			fields = append(fields, zap.Error(joinedErr))
		}

		switch {
		case status >= 500:
			log.Error("request", fields...)
		case status >= 400:
			log.Warn("request", fields...)
		default:
			log.Info("request", fields...)
		}
	}
}

// New builds the Gin engine serving /healthz, /metrics, and /debug/info.
func New(metrics *telemetry.Metrics, snapshot StateSnapshot, log *zap.Logger) *gin.Engine {
	log = log.Named("admin")
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	_ = r.SetTrustedProxies([]string{"127.0.0.1"})
	r.Use(gin.Recovery())

	if os.Getenv("ENV") == "dev" {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     []string{"http://localhost:5173"},
			AllowMethods:     []string{"GET"},
			AllowHeaders:     []string{"Content-Type"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	r.Use(zapLogger(log))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	r.GET("/debug/info", func(c *gin.Context) {
		if snapshot == nil {
			c.JSON(http.StatusOK, gin.H{})
			return
		}
		c.String(http.StatusOK, debugx.Dump(snapshot()))
	})

	return r
}

// Serve runs an http.Server wrapping engine with the teacher's timeout and
// header-size conventions, shutting down gracefully when ctx is cancelled.
func Serve(ctx context.Context, addr string, engine *gin.Engine, log *zap.Logger) error {
	srv := &http.Server{
		Addr:           addr,
		Handler:        engine,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   15 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 15,
		ErrorLog:       zap.NewStdLog(log.Named("http").WithOptions(zap.AddCallerSkip(1))),
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
