// Copyright 2024 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package tsperror decodes the JSON error records the instrument emits
// inside ERM> frames.
package tsperror

import "fmt"

// Time is the instrument's wall-clock stamp on an error record.
type Time struct {
	Secs  uint64 `json:"secs"`
	Nanos uint64 `json:"nanos"`
}

// Error is one decoded instrument error-queue record.
type Error struct {
	ErrorCode int64  `json:"error_code"`
	Message   string `json:"message"`
	Severity  uint8  `json:"severity"`
	NodeID    int16  `json:"node_id"`
	Time      *Time  `json:"time,omitempty"`
}

// String formats the record the way the console prints it: "[node] {code}
// message".
func (e Error) String() string {
	return fmt.Sprintf("[%d] {%d} %s", e.NodeID, e.ErrorCode, e.Message)
}
