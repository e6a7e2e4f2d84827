// cmd/landctl/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"land-marketplace/internal/app"
	"land-marketplace/internal/common/config"
)

func main() {
	if len(os.Args) < 2 || os.Args[1] == "help" || os.Args[1] == "-h" || os.Args[1] == "--help" {
		help(os.Stdout)
		if len(os.Args) < 2 {
			os.Exit(1)
		}
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	// one persisted session per machine unless configured otherwise
	if cfg.Session.ID == "" {
		cfg.Session.ID = "landctl"
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error starting: %v\n", err)
		os.Exit(1)
	}

	code := 0
	if err := run(ctx, a, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", describe(err))
		code = 1
	}
	a.Close()
	os.Exit(code)
}
