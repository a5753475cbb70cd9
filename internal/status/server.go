// Package status exposes read-only HTTP endpoints for run inspection.
package status

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"ppcbatch/internal/platform/errlog"
	"ppcbatch/internal/platform/progress"
)

// ErrorSource lists recent error records.
type ErrorSource interface {
	Recent(window time.Duration) ([]errlog.Record, error)
}

// TaskSource lists saved checkpoints.
type TaskSource interface {
	List() []progress.Summary
}

// Server serves health, recent-error and checkpoint listings.
type Server struct {
	srv *http.Server
	log *slog.Logger
}

// New builds the server. Routes:
//
//	GET /healthz
//	GET /errors/recent?hours=N   (default 24)
//	GET /tasks
func New(addr string, errs ErrorSource, tasks TaskSource, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/errors/recent", func(c *gin.Context) {
		hours := 24
		if err := readIntQuery(c, "hours", &hours); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "hours must be a positive integer"})
			return
		}
		records, err := errs.Recent(time.Duration(hours) * time.Hour)
		if err != nil {
			log.Error("list recent errors", slog.Any("err", err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read error log"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"count": len(records), "errors": records})
	})

	r.GET("/tasks", func(c *gin.Context) {
		list := tasks.List()
		c.JSON(http.StatusOK, gin.H{"count": len(list), "tasks": list})
	})

	return &Server{
		srv: &http.Server{Addr: addr, Handler: r},
		log: log,
	}
}

// Run serves until ctx is cancelled, then shuts down with a short grace
// period.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	s.log.Info("status server listening", slog.String("addr", s.srv.Addr))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	}
}

func readIntQuery(c *gin.Context, name string, dst *int) error {
	raw := c.Query(name)
	if raw == "" {
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return errors.New("bad query value")
	}
	*dst = v
	return nil
}
