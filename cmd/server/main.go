/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"astromine-go/internal/common"
	"astromine-go/internal/config"
	"astromine-go/internal/scheduler"
	"astromine-go/internal/webview"

	"go.uber.org/zap"
)

func main() {
	addr := flag.String("addr", "", "Address to listen on (overrides SERVER_ADDR)")
	noScheduler := flag.Bool("no-scheduler", false, "Serve players without spawning new asteroid posts")
	flag.Parse()

	// The global logger is installed first so configuration errors are reported.
	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *noScheduler {
		cfg.Scheduler.Enabled = false
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	zap.L().Info("Starting Astromine server",
		zap.String("addr", cfg.Server.Addr),
		zap.String("store", cfg.Store.Backend))

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer func() {
		if err := services.Close(); err != nil {
			zap.L().Warn("Failed to close services", zap.Error(err))
		}
	}()

	var spawner *scheduler.Spawner
	if cfg.Scheduler.Enabled {
		spawner, err = scheduler.NewSpawner(services.Registry, services.Host, cfg.Scheduler)
		if err != nil {
			zap.L().Fatal("Failed to create spawner", zap.Error(err))
		}
		spawner.Start(ctx)
	} else {
		zap.L().Info("Asteroid spawner disabled")
	}

	ws := webview.NewServer(services.Game, cfg.Server)
	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           ws.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zap.L().Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	zap.L().Info("Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	zap.L().Info("Shutdown signal received, stopping server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zap.L().Warn("Forced shutdown after timeout", zap.Error(err))
	}
	ws.Close()
	if spawner != nil {
		spawner.Stop()
	}
	zap.L().Info("Server stopped gracefully")
}
