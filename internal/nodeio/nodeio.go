// Copyright 2024 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package nodeio persists TSP-Link node-descriptor payloads captured during
// a .nodes session to disk.
package nodeio

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Write parses payload as JSON and writes it pretty-printed to path,
// creating the parent directory if needed. It fails if the parent exists
// and is not a directory.
func Write(path string, payload []byte) error {
	dir := filepath.Dir(path)
	if fi, err := os.Stat(dir); err == nil {
		if !fi.IsDir() {
			return fmt.Errorf("nodeio: %s is not a directory", dir)
		}
	} else if os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("nodeio: creating %s: %w", dir, err)
		}
	} else {
		return fmt.Errorf("nodeio: stat %s: %w", dir, err)
	}

	var v any
	if err := json.Unmarshal(payload, &v); err != nil {
		return fmt.Errorf("nodeio: parsing node payload: %w", err)
	}
	pretty, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("nodeio: re-encoding node payload: %w", err)
	}
	if err := os.WriteFile(path, pretty, 0o644); err != nil {
		return fmt.Errorf("nodeio: writing %s: %w", path, err)
	}
	return nil
}
