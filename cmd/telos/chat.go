// Copyright 2026 © The Telos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/ahermida/telos/pkg/chat"
	"github.com/ahermida/telos/pkg/config"
	"github.com/ahermida/telos/pkg/planner"
	"github.com/ahermida/telos/pkg/telemetry"
)

func runChat(ctx context.Context, args []string) {
	cmd := flag.NewFlagSet("chat", flag.ContinueOnError)
	configPath := cmd.String("config", "", "Path to config file (YAML)")
	partner := cmd.String("partner", "cli-user", "Partner name for the session")
	prompt := cmd.String("prompt", "", "System prompt registered with the session")
	message := cmd.String("message", "", "Single message to send (non-interactive)")

	if err := cmd.Parse(args); err != nil {
		fatal(err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatal(fmt.Errorf("failed to load config: %w", err))
	}
	logger := telemetry.ConfigureSlog(os.Stderr, cfg.Log.Level, cfg.Log.Format)

	client := planner.NewHTTP(cfg.Planner.BaseURL, cfg.Planner.APIKey,
		planner.WithHTTPTimeout(cfg.Planner.Timeout()),
	)

	fns, closeFns, err := sessionFunctions(ctx, cfg)
	if err != nil {
		fatal(err)
	}
	defer closeFns()

	session, err := chat.Open(ctx, client, *partner, *partner,
		chat.WithPrompt(*prompt),
		chat.WithFunctions(fns...),
		chat.WithLogger(logger),
	)
	if err != nil {
		fatal(err)
	}

	if *message != "" {
		resp, err := session.Next(ctx, *message)
		if err != nil {
			fatal(err)
		}
		fmt.Println(resp.Message)
		if !session.Finished() {
			_ = session.End(ctx, "")
		}
		return
	}

	interactive := isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
	if interactive {
		fmt.Println("telos chat - type /quit to end the session")
	}

	scanner := bufio.NewScanner(os.Stdin)
	for {
		if interactive {
			fmt.Print("> ")
		}
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" || line == "/exit" {
			break
		}

		resp, err := session.Next(ctx, line)
		if err != nil {
			fatal(err)
		}
		if resp.FunctionCall != nil && interactive {
			fmt.Printf("[ran %s: %s]\n", resp.FunctionCall.Name, resp.FunctionCall.Result.String())
		}
		fmt.Println(resp.Message)
		if resp.Finished {
			return
		}
	}
	if err := scanner.Err(); err != nil && err != io.EOF {
		fatal(err)
	}
	if !session.Finished() {
		if err := session.End(ctx, "goodbye"); err != nil {
			logger.Warn("failed to end session", "error", err)
		}
	}
}
