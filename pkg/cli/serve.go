package cli

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/navarrastar/contactsheet/pkg/api"
	"github.com/navarrastar/contactsheet/pkg/metrics"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP ingestion server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			lis, err := net.Listen("tcp", ":"+opts.cfg.Port)
			if err != nil {
				return err
			}
			return serve(ctx, opts, lis)
		},
	}
}

// serve runs the server on lis until ctx is cancelled, then drains it.
func serve(ctx context.Context, opts *rootOptions, lis net.Listener) error {
	cfg := opts.cfg
	gin.SetMode(cfg.GinMode)

	a, err := newApp(cfg)
	if err != nil {
		lis.Close()
		return err
	}
	defer a.Close()

	m := metrics.New()
	handlers := api.NewHandlers(a.service(m), cfg.SheetName, cfg.TableBackend)
	router := api.NewRouter(handlers, m.Handler())

	srv := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Server starting", "addr", lis.Addr().String(), "backend", cfg.TableBackend, "sheet", cfg.SheetName)
		if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
