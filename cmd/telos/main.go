// Copyright 2026 © The Telos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

const version = "0.1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	args := os.Args[1:]
	if len(args) == 0 {
		printUsage()
		os.Exit(2)
	}

	switch args[0] {
	case "run":
		runRun(ctx, args[1:])
	case "chat":
		runChat(ctx, args[1:])
	case "version":
		fmt.Println("telos " + version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", args[0])
		printUsage()
		os.Exit(2)
	}
}

func printUsage() {
	fmt.Print(`telos - agent dispatch engine

Usage:
  telos run  [flags]   Run an agent loop against the planner
  telos chat [flags]   Open an interactive conversation session
  telos version        Print version

Run 'telos run -h' or 'telos chat -h' for command flags.
`)
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "telos: %v\n", err)
	os.Exit(1)
}
