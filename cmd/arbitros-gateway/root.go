package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"arbitros/internal/adapters/httpapi"
	"arbitros/internal/config"
	"arbitros/internal/core"
)

const shutdownGrace = 10 * time.Second

type rootOptions struct {
	configPath string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "arbitros-gateway",
		Short:         "HTTP gateway for arbitros records and their images",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "optional YAML config file")

	root.AddCommand(
		newServeCommand(opts),
		newImagesCommand(opts),
		newVersionCommand(),
	)
	return root
}

// withApp loads configuration, wires the gateway and hands it to fn.
func withApp(cmd *cobra.Command, opts *rootOptions, fn func(context.Context, *app) error) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := newApp(ctx, cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil {
			a.logger.Warn("close", "error", cerr)
		}
	}()
	return fn(ctx, a)
}

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP gateway",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
				defer stop()
				return serve(ctx, a)
			})
		},
	}
}

func serve(ctx context.Context, a *app) error {
	router := httpapi.NewRouter(httpapi.Config{
		Coordinator: a.coordinator,
		Records:     a.records,
		Images:      a.images,
		Logger:      a.logger.With("component", "http"),
		Gatherer:    a.registry,
		Version:     version,
		UpstreamURL: a.cfg.UpstreamURL,
		CORSOrigins: a.cfg.CORSOrigins,
	})
	srv := &http.Server{
		Addr:              a.cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       a.cfg.OperationTimeout,
		WriteTimeout:      a.cfg.OperationTimeout + a.cfg.UpstreamTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("gateway listening", "addr", srv.Addr, "version", version)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func newImagesCommand(opts *rootOptions) *cobra.Command {
	images := &cobra.Command{
		Use:   "images",
		Short: "Inspect and maintain the image bucket",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List every object in the bucket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				objects, err := a.images.List(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), objects)
			})
		},
	}

	var (
		deleteOrphans bool
		minAge        time.Duration
	)
	orphans := &cobra.Command{
		Use:   "orphans",
		Short: "Report objects no record references and references with no object",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				report, err := a.coordinator.Reconcile(ctx, core.ReconcileOptions{Delete: deleteOrphans, MinAge: minAge})
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), report)
			})
		},
	}
	orphans.Flags().BoolVar(&deleteOrphans, "delete", false, "delete orphaned objects")
	orphans.Flags().DurationVar(&minAge, "min-age", core.DefaultOrphanMinAge, "only delete orphans older than this")

	var expires time.Duration
	presign := &cobra.Command{
		Use:   "presign KEY",
		Short: "Print a time-limited download URL for an object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				u, err := a.images.Presign(ctx, args[0], expires)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), u)
				return err
			})
		},
	}
	presign.Flags().DurationVar(&expires, "expires", time.Hour, "URL lifetime")

	images.AddCommand(list, orphans, presign)
	return images
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the gateway version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), version)
			return err
		},
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
