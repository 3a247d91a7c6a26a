// Copyright 2024 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// kic is an interactive REPL for Keithley/Tektronix TSP-speaking test and
// measurement instruments.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/maruel/kic/internal/applog"
	"github.com/maruel/kic/internal/command"
	"github.com/maruel/kic/internal/config"
	"github.com/maruel/kic/internal/console"
	"github.com/maruel/kic/internal/instrument/tcp"
	"github.com/maruel/kic/internal/repl"
)

func mainImpl() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()

	programLevel := &slog.LevelVar{}
	applog.Init(programLevel)
	go func() {
		<-ctx.Done()
		slog.Info("main", "message", "quitting")
	}()

	wd, err := os.Getwd()
	if err != nil {
		return err
	}

	addr := flag.String("addr", "", "host:port of the instrument's TSP socket")
	cfgPath := flag.String("config", filepath.Join(wd, "config.yml"), "Configuration file. If not present, it is automatically created.")
	verbose := flag.Bool("v", false, "Enable verbose logging")
	version := flag.Bool("version", false, "Print version then exit")
	flag.Usage = func() {
		o := flag.CommandLine.Output()
		fmt.Fprintf(o, "Usage of %s:\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if len(flag.Args()) != 0 {
		return errors.New("unexpected argument")
	}
	if *version {
		fmt.Printf("kic %s\n", applog.Commit())
		return nil
	}
	if *verbose {
		programLevel.Set(slog.LevelDebug)
	}
	if *addr == "" {
		return errors.New("-addr is required")
	}

	cfg := config.Config{}
	if err := cfg.LoadOrDefault(*cfgPath); err != nil {
		return err
	}

	ch, err := tcp.Dial(ctx, *addr)
	if err != nil {
		return fmt.Errorf("connecting to instrument: %w", err)
	}
	defer ch.Close()

	out := console.New(os.Stdout)
	d := repl.New(ch, out, &cfg, applog.Commit())
	if err := d.Startup(); err != nil {
		return err
	}

	requests := make(chan command.Request)
	scanner := bufio.NewScanner(os.Stdin)
	go repl.InputReader(ctx, scanner, requests)

	return d.Run(ctx, requests)
}

func main() {
	if err := mainImpl(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "\nkic: %s\n", err.Error())
		os.Exit(1)
	}
}
