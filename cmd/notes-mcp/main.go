// Command notes-mcp serves saved medscribe notes to MCP clients over stdio.
package main

import (
	"fmt"
	"os"

	"medscribe/internal/bootstrap"
	"medscribe/internal/config"
	"medscribe/internal/notesmcp"
	"medscribe/internal/store"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "notes-mcp:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// stdout carries the protocol, so diagnostics only go to the log file.
	logger, logCloser, err := bootstrap.OpenLogger(cfg)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	defer logCloser.Close()

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	logger = logger.With().Str("component", "notes-mcp").Logger()
	logger.Info().Str("db", cfg.Store.Path).Str("version", version).Msg("serving notes over stdio")

	s := notesmcp.NewServer(notesmcp.NewHandlers(st, logger), version)
	return notesmcp.Serve(s)
}
