// Copyright (C) 2025 NeuroSym Authors (maintainers@neurosym.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/neurosym/neurosym/services/reason"
	"github.com/neurosym/neurosym/services/reason/engine"
	"github.com/neurosym/neurosym/services/reason/store"
)

var (
	serveAddr    string
	serveDataDir string
	serveSchema  string
	serveWatch   bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP reasoning service",
	Long: `Starts the reasoning service. With --data-dir, loaded schemas and
trained weights persist across restarts. With --schema, the given file
is loaded at startup; adding --watch reloads it on change, keeping the
last good graph when an edit fails validation.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8085", "listen address")
	serveCmd.Flags().StringVar(&serveDataDir, "data-dir", "", "directory for persistent storage (in-memory registry when empty)")
	serveCmd.Flags().StringVar(&serveSchema, "schema", "", "schema file to load at startup")
	serveCmd.Flags().BoolVar(&serveWatch, "watch", false, "reload the startup schema file on change")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := reason.ServiceConfig{Logger: logger}
	if serveDataDir != "" {
		st, err := store.NewStore(store.DefaultConfig(serveDataDir))
		if err != nil {
			return fmt.Errorf("opening store: %w", err)
		}
		defer st.Close()
		cfg.Store = st
	}

	service, err := reason.NewService(cfg)
	if err != nil {
		return err
	}

	if serveSchema != "" {
		if err := loadStartupSchema(ctx, service); err != nil {
			return err
		}
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/metrics", reason.MetricsHandler())

	v1 := router.Group("/v1")
	reason.RegisterRoutes(v1, reason.NewHandlers(service))

	srv := &http.Server{
		Addr:              serveAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("reasoning service listening", "addr", serveAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
	}
	return nil
}

// loadStartupSchema loads --schema into the registry under the
// document's own name (or "default") and optionally starts the file
// watcher.
func loadStartupSchema(ctx context.Context, service *reason.Service) error {
	doc, err := engine.LoadDocument(serveSchema)
	if err != nil {
		return fmt.Errorf("loading startup schema: %w", err)
	}
	name := doc.Name
	if name == "" {
		name = "default"
	}

	if _, err := service.CreateGraph(name, doc); err != nil {
		if !errors.Is(err, reason.ErrGraphExists) {
			return fmt.Errorf("loading startup schema: %w", err)
		}
		// Already restored from the store; refresh from the file.
		if _, err := service.ReplaceGraph(name, doc); err != nil {
			return fmt.Errorf("refreshing startup schema: %w", err)
		}
	}

	if !serveWatch {
		return nil
	}

	e, err := service.Engine(name)
	if err != nil {
		return err
	}
	watcher, err := engine.NewSchemaWatcher(serveSchema, e, &engine.SchemaWatcherOptions{
		Logger: logger.Slog(),
	})
	if err != nil {
		return fmt.Errorf("creating schema watcher: %w", err)
	}
	if err := watcher.Start(ctx); err != nil {
		return fmt.Errorf("starting schema watcher: %w", err)
	}
	logger.Info("watching schema file", "path", serveSchema, "graph", name)
	return nil
}
