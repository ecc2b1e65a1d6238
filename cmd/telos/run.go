// Copyright 2026 © The Telos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/ahermida/telos/pkg/agent"
	"github.com/ahermida/telos/pkg/config"
	"github.com/ahermida/telos/pkg/function"
	"github.com/ahermida/telos/pkg/mcp"
	"github.com/ahermida/telos/pkg/planner"
	"github.com/ahermida/telos/pkg/telemetry"
	"github.com/ahermida/telos/pkg/worker"
)

func runRun(ctx context.Context, args []string) {
	cmd := flag.NewFlagSet("run", flag.ContinueOnError)
	configPath := cmd.String("config", "", "Path to config file (YAML)")
	name := cmd.String("name", "telos-agent", "Agent name")
	goal := cmd.String("goal", "", "Agent goal sent to the planner")
	noTelemetry := cmd.Bool("no-telemetry", false, "Disable telemetry output")
	watch := cmd.Bool("watch", false, "Watch config file for changes")

	if err := cmd.Parse(args); err != nil {
		fatal(err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatal(fmt.Errorf("failed to load config: %w", err))
	}

	logger := telemetry.ConfigureSlog(os.Stderr, cfg.Log.Level, cfg.Log.Format)

	exporter := cfg.Telemetry.Exporter
	if *noTelemetry {
		exporter = "none"
	}
	shutdown, err := telemetry.InitWithConfig(*name, version, telemetry.Config{
		Exporter:     exporter,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure: cfg.Telemetry.OTLPInsecure,
	})
	if err != nil {
		fatal(fmt.Errorf("failed to initialize telemetry: %w", err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdown(shutdownCtx)
	}()

	if *watch && *configPath != "" {
		watcher, _, err := config.WatchConfig(ctx, *configPath)
		if err != nil {
			logger.Warn("config watch unavailable", "error", err)
		} else {
			watcher.OnChange(func(*config.Config) {
				logger.Info("config changed, restart to apply")
			})
			defer watcher.Stop()
		}
	}

	client := planner.NewHTTP(cfg.Planner.BaseURL, cfg.Planner.APIKey,
		planner.WithHTTPTimeout(cfg.Planner.Timeout()),
	)

	workers, closeWorkers, err := buildWorkers(ctx, cfg)
	if err != nil {
		fatal(err)
	}
	defer closeWorkers()
	if len(workers) == 0 {
		fatal(fmt.Errorf("no workers configured: add mcp.servers to %s", *configPath))
	}

	opts := []agent.Option{
		agent.WithClient(client),
		agent.WithWorkers(workers...),
		agent.WithGoal(*goal),
		agent.WithLogger(logger),
	}
	if cfg.Planner.TimeoutSeconds > 0 {
		opts = append(opts, agent.WithPlannerTimeout(cfg.Planner.Timeout()))
	}
	if cfg.Engine.AuditDB != "" {
		db, err := sql.Open("sqlite", cfg.Engine.AuditDB)
		if err != nil {
			fatal(fmt.Errorf("failed to open audit db: %w", err))
		}
		defer db.Close()
		audit, err := agent.NewSQLiteAuditStore(db)
		if err != nil {
			fatal(fmt.Errorf("failed to prepare audit store: %w", err))
		}
		opts = append(opts, agent.WithAudit(audit))
	}

	a, store, err := newOrRestoredAgent(ctx, cfg, *name, opts)
	if err != nil {
		fatal(err)
	}

	logger.Info("agent loop starting", "agent", *name, "heartbeat", cfg.Engine.Heartbeat())
	runErr := a.Run(ctx, cfg.Engine.Heartbeat())

	if store != nil {
		saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.Save(saveCtx, store); err != nil {
			logger.Error("failed to save snapshot", "error", err)
		}
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		fatal(runErr)
	}
}

// newOrRestoredAgent resumes from a snapshot when one exists, otherwise
// creates and registers a fresh agent.
func newOrRestoredAgent(ctx context.Context, cfg *config.Config, name string, opts []agent.Option) (*agent.Agent, agent.SnapshotStore, error) {
	if cfg.Engine.SnapshotPath == "" {
		a, err := agent.New(name, opts...)
		if err != nil {
			return nil, nil, err
		}
		if err := a.Init(ctx); err != nil {
			return nil, nil, err
		}
		return a, nil, nil
	}

	store := agent.NewFileSnapshotStore(cfg.Engine.SnapshotPath)
	a, err := agent.Load(ctx, store, name, opts...)
	if err == nil {
		return a, store, nil
	}
	if !errors.Is(err, agent.ErrNoSnapshot) {
		return nil, nil, err
	}

	a, err = agent.New(name, opts...)
	if err != nil {
		return nil, nil, err
	}
	if err := a.Init(ctx); err != nil {
		return nil, nil, err
	}
	return a, store, nil
}

// buildWorkers turns each configured MCP server into one worker carrying
// that server's tools.
func buildWorkers(ctx context.Context, cfg *config.Config) ([]*worker.Worker, func(), error) {
	var (
		workers []*worker.Worker
		closers []func() error
	)
	closeAll := func() {
		for _, c := range closers {
			_ = c()
		}
	}

	var fnOpts []function.Option
	if cfg.Engine.ExecTimeoutSeconds > 0 {
		fnOpts = append(fnOpts, function.WithTimeout(cfg.Engine.ExecTimeout()))
	}

	for name, server := range cfg.MCP.Servers {
		client, err := connectMCP(server)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("mcp server %s: %w", name, err)
		}
		closers = append(closers, client.Close)

		fns, err := mcp.Functions(ctx, client, fnOpts...)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("mcp server %s: %w", name, err)
		}

		w, err := worker.New(name,
			worker.WithName(name),
			worker.WithFunctions(fns...),
		)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("mcp server %s: %w", name, err)
		}
		workers = append(workers, w)
	}
	return workers, closeAll, nil
}

func connectMCP(server config.MCPServerConfig) (*mcp.Client, error) {
	switch server.Transport {
	case "stdio":
		return mcp.NewClientWithStdio(server.Command, server.Args)
	case "", "http":
		return mcp.NewClientWithStreamableHTTP(server.URL)
	default:
		return nil, fmt.Errorf("unknown mcp transport %q", server.Transport)
	}
}

// sessionFunctions flattens every configured server's tools for chat use.
func sessionFunctions(ctx context.Context, cfg *config.Config) ([]*function.Descriptor, func(), error) {
	var (
		fns     []*function.Descriptor
		closers []func() error
	)
	closeAll := func() {
		for _, c := range closers {
			_ = c()
		}
	}
	for name, server := range cfg.MCP.Servers {
		client, err := connectMCP(server)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("mcp server %s: %w", name, err)
		}
		closers = append(closers, client.Close)

		adapted, err := mcp.Functions(ctx, client)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("mcp server %s: %w", name, err)
		}
		fns = append(fns, adapted...)
	}
	return fns, closeAll, nil
}
