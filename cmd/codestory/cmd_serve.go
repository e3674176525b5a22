// Copyright (C) 2026 TheGreenCedar
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/TheGreenCedar/CodeStory/services/index"
)

func newServeCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the index HTTP API server",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := index.LoadServiceConfig(configPath)
			if err != nil {
				return err
			}
			if dbPath != "" {
				cfg.SnapshotDBPath = dbPath
			}

			svc, err := index.NewService(cfg)
			if err != nil {
				return err
			}
			handlers := index.NewHandlers(svc)

			// Trace context flows in from W3C TraceContext headers.
			otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
				propagation.TraceContext{},
				propagation.Baggage{},
			))

			router := gin.New()
			router.Use(gin.Recovery())
			router.Use(otelgin.Middleware("codestory-index"))
			if logDebug {
				router.Use(gin.Logger())
			}

			v1 := router.Group("/v1")
			index.RegisterRoutes(v1, handlers)
			router.GET("/metrics", gin.WrapH(promhttp.Handler()))

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				<-quit
				slog.Info("shutting down index server")
				if err := svc.Close(); err != nil {
					slog.Warn("failed to close snapshot db", slog.String("error", err.Error()))
				}
				os.Exit(0)
			}()

			addr := fmt.Sprintf(":%d", port)
			slog.Info("starting index server", slog.String("address", addr))
			return router.Run(addr)
		},
	}

	cmd.Flags().IntVar(&port, "port", 8080, "listen port")
	return cmd
}
