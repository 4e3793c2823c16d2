// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

// parley is a terminal chat client. It wires the session engine to a
// real server (REST over HTTP, live events over a websocket) and runs a
// thin TUI on top of the engine's snapshot feed.
//
// Configuration comes from a single YAML file named by the
// PARLEY_CONFIG environment variable or the --config flag. See
// lib/config for the schema.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"

	"github.com/parley-chat/parley/channel"
	"github.com/parley-chat/parley/lib/config"
	"github.com/parley-chat/parley/rest"
	"github.com/parley-chat/parley/session"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath string
	var logOutput string

	flagSet := pflag.NewFlagSet("parley", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to parley.yaml (default: $PARLEY_CONFIG)")
	flagSet.StringVar(&logOutput, "log-output", "", "write JSON log records to this file")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}
	if args := flagSet.Args(); len(args) > 0 {
		return fmt.Errorf("unexpected argument: %s", args[0])
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	logger, cleanup, err := newLogger(cfg, logOutput)
	if err != nil {
		return err
	}
	defer cleanup()

	token, err := resolveToken(cfg, logger)
	if err != nil {
		return err
	}

	api, err := rest.NewClient(rest.ClientConfig{
		BaseURL:   cfg.Server.BaseURL,
		AuthToken: token,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	link := channel.New(channel.Config{
		Dialer: &channel.WebSocketDialer{
			URL:    cfg.SocketURL(),
			Logger: logger,
		},
		Logger:         logger,
		ReconnectDelay: cfg.ReconnectDelay(),
		MaxAttempts:    cfg.Session.MaxReconnectAttempts,
	})

	engine := session.New(session.Config{
		API:            api,
		Link:           link,
		Logger:         logger,
		PageSize:       cfg.Session.PageSize,
		TypingDebounce: cfg.TypingDebounce(),
	})
	defer engine.Close()
	engine.Connect(token)

	program := tea.NewProgram(newModel(engine), tea.WithAltScreen())
	_, err = program.Run()
	return err
}

// resolveToken produces the bearer token: read from the config in
// token mode, or exchanged for the configured handle and password via
// the server's login endpoint.
func resolveToken(cfg *config.Config, logger *slog.Logger) (string, error) {
	if !cfg.Auth.HasCredentials() {
		return cfg.ResolveToken()
	}

	// Login runs on a client without a token; the authenticated client
	// is built afterwards with the token this returns.
	client, err := rest.NewClient(rest.ClientConfig{
		BaseURL: cfg.Server.BaseURL,
		Logger:  logger,
	})
	if err != nil {
		return "", err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	response, err := client.Login(ctx, rest.LoginRequest{
		Handle:   cfg.Auth.Handle,
		Password: cfg.Auth.Password,
	})
	if err != nil {
		return "", fmt.Errorf("logging in as %s: %w", cfg.Auth.Handle, err)
	}
	return response.Token, nil
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

// newLogger builds the process logger. The TUI owns the terminal, so
// without --log-output everything above error is discarded.
func newLogger(cfg *config.Config, logOutput string) (*slog.Logger, func(), error) {
	level := parseLevel(cfg.Log.Level)
	if logOutput == "" {
		handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})
		return slog.New(handler), func() {}, nil
	}

	file, err := os.OpenFile(logOutput, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log output: %w", err)
	}
	handler := slog.NewJSONHandler(file, &slog.HandlerOptions{Level: level})
	return slog.New(handler), func() { file.Close() }, nil
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `Parley — terminal chat client.

Loads configuration from the file named by PARLEY_CONFIG or --config.

Usage:
  parley [flags]

Keys:
  up/down     move the room cursor
  enter       open the selected room / send the composed message
  tab         switch focus between room list and composer
  pgup        load older history in the open room
  a / d       accept / decline the first pending invite
  ctrl+c, q   quit

Flags:
%s`, flagSet.FlagUsages())
}
