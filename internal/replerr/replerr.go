// Copyright 2024 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package replerr defines the error taxonomy shared across the REPL's
// components.
package replerr

import "fmt"

// TransportError wraps a failure from the instrument channel.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("transport: %s: %v", e.Op, e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }

// DataParseError reports bytes that could not be interpreted as a framed
// payload.
type DataParseError struct {
	Data []byte
}

func (e *DataParseError) Error() string { return fmt.Sprintf("data parse error: %q", e.Data) }

// StateMachineTransitionError reports an undefined (state, input) pair.
type StateMachineTransitionError struct {
	State string
	Input string
}

func (e *StateMachineTransitionError) Error() string {
	return fmt.Sprintf("no transition from state %s on input %s", e.State, e.Input)
}

// CommandError reports malformed user input to a dot-command.
type CommandError struct {
	Details string
}

func (e *CommandError) Error() string { return e.Details }

// DeserializationError wraps a failure to decode a TSP error JSON record.
type DeserializationError struct {
	Err error
}

func (e *DeserializationError) Error() string { return fmt.Sprintf("deserialization: %v", e.Err) }
func (e *DeserializationError) Unwrap() error { return e.Err }

// InternalCommError reports that the request channel's receiver is gone.
type InternalCommError struct{}

func (e *InternalCommError) Error() string { return "internal communication channel closed" }
