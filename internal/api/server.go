// Package api serves the JSON HTTP interface over the reconciliation
// engines, the conversation gate and the notification inbox.
package api

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/sponsormatch/internal/gate"
	"github.com/zulandar/sponsormatch/internal/models"
	"github.com/zulandar/sponsormatch/internal/reconcile"
)

// Inbox is the in-app notification store.
type Inbox interface {
	Inbox(ctx context.Context, accountID string, unreadOnly bool) ([]models.Notification, error)
	MarkRead(ctx context.Context, accountID string, id uint) error
}

// StartOpts holds configuration for the API server.
type StartOpts struct {
	Engines *reconcile.Registry
	Gate    *gate.Gate
	Inbox   Inbox
	Port    int
	Out     io.Writer
	Logger  *slog.Logger
}

func (o StartOpts) validate() error {
	if o.Engines == nil {
		return fmt.Errorf("api: engines are required")
	}
	if o.Gate == nil {
		return fmt.Errorf("api: gate is required")
	}
	if o.Inbox == nil {
		return fmt.Errorf("api: inbox is required")
	}
	return nil
}

// NewRouter builds the gin router without starting a server.
func NewRouter(opts StartOpts) (*gin.Engine, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	router := gin.New()
	router.Use(gin.Recovery())
	registerRoutes(router, &handlers{
		engines: opts.Engines,
		gate:    opts.Gate,
		inbox:   opts.Inbox,
		log:     opts.Logger,
	})
	return router, nil
}

// Start launches the API server. It blocks until ctx is cancelled, then
// shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.Port <= 0 {
		opts.Port = 8080
	}
	gin.SetMode(gin.ReleaseMode)
	router, err := NewRouter(opts)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", opts.Port),
		Handler: router,
	}

	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "API listening on http://localhost:%d\n", opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api: %w", err)
	}
	return nil
}
