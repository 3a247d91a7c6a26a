// Copyright 2024 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package config loads the REPL's operator-tunable knobs.
package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfig is the configuration written to disk the first time kic runs
// against a given config path.
//
//go:embed default_config.yml
var DefaultConfig []byte

// KnownInstrument describes one recognized instrument model family and its
// default TSP-Link discovery behavior.
type KnownInstrument struct {
	Model           string `yaml:"model"`
	SupportsTSPLink bool   `yaml:"supports_tsp_link"`
}

// Config defines the configuration format.
type Config struct {
	// MaxQueueClearAttempts bounds the output-queue-clear protocol (§4.7).
	MaxQueueClearAttempts int `yaml:"max_queue_clear_attempts"`
	// QueueClearDelayMS is the pause, in milliseconds, between read attempts
	// while clearing the output queue.
	QueueClearDelayMS int `yaml:"queue_clear_delay_ms"`
	// ErrorFetchPollIntervalUS is the pause, in microseconds, between reads
	// while draining the error-fetch subprotocol (§4.5).
	ErrorFetchPollIntervalUS int `yaml:"error_fetch_poll_interval_us"`
	// ReadChunkSize is the number of bytes read from the instrument per
	// dispatcher iteration.
	ReadChunkSize int `yaml:"read_chunk_size"`
	// KnownInstruments catalogs model families the REPL recognizes.
	KnownInstruments []KnownInstrument `yaml:"known_instruments"`
}

// QueueClearDelay returns the configured inter-attempt pause as a
// time.Duration.
func (c *Config) QueueClearDelay() time.Duration {
	return time.Duration(c.QueueClearDelayMS) * time.Millisecond
}

// ErrorFetchPollInterval returns the configured poll interval as a
// time.Duration.
func (c *Config) ErrorFetchPollInterval() time.Duration {
	return time.Duration(c.ErrorFetchPollIntervalUS) * time.Microsecond
}

// LoadOrDefault loads a config or writes the embedded default to disk.
func (c *Config) LoadOrDefault(path string) error {
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		if err = os.WriteFile(path, DefaultConfig, 0o644); err != nil {
			return fmt.Errorf("failed to write default config: %w", err)
		}
		b = DefaultConfig
	} else if err != nil {
		return fmt.Errorf("failed to read %q: %w", path, err)
	}
	d := yaml.NewDecoder(bytes.NewReader(b))
	d.KnownFields(true)
	if err = d.Decode(c); err != nil {
		return fmt.Errorf("failed to parse %q: %w", path, err)
	}
	return nil
}
