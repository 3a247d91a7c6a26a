// Copyright 2024 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package statemachine classifies the instrument's frame stream into a
// sequence of read states, and derives the dispatcher action for each
// transition.
package statemachine

import (
	"github.com/maruel/kic/internal/replerr"
	"github.com/maruel/kic/internal/tokenizer"
)

// State is one node of the read-state machine.
type State int

const (
	Init State = iota
	TextDataReadStart
	TextDataReadContinue
	DataReadEnd
	DataReadEndPendingError
	ErrorReadStart
	ErrorReadContinue
	ErrorReadEnd
	FileLoading
	NodeDataReadStart
	NodeDataReadContinue
	NodeDataReadEnd
)

func (s State) String() string {
	switch s {
	case Init:
		return "Init"
	case TextDataReadStart:
		return "TextDataReadStart"
	case TextDataReadContinue:
		return "TextDataReadContinue"
	case DataReadEnd:
		return "DataReadEnd"
	case DataReadEndPendingError:
		return "DataReadEndPendingError"
	case ErrorReadStart:
		return "ErrorReadStart"
	case ErrorReadContinue:
		return "ErrorReadContinue"
	case ErrorReadEnd:
		return "ErrorReadEnd"
	case FileLoading:
		return "FileLoading"
	case NodeDataReadStart:
		return "NodeDataReadStart"
	case NodeDataReadContinue:
		return "NodeDataReadContinue"
	case NodeDataReadEnd:
		return "NodeDataReadEnd"
	default:
		return "Unknown"
	}
}

// Action is the side-effect intent derived from a state transition.
type Action int

const (
	ActionNone Action = iota
	ActionPrompt
	ActionGetError
	ActionPrintText
	ActionPrintError
	ActionGetNodeDetails
)

// Next computes the state reached by observing frame k while in cur. It
// returns replerr.StateMachineTransitionError for any (state, input) pair
// not defined by the table below.
//
// TODO: the FileLoading -> Init transition on a bare Prompt is asymmetric
// with every other end-of-cycle transition, which lands on DataReadEnd; this
// might be better served by a dedicated FileLoadingEnd state, but the
// asymmetry is preserved intentionally here.
func Next(cur State, k tokenizer.Kind) (State, error) {
	switch cur {
	case Init, TextDataReadStart, DataReadEnd, ErrorReadEnd, NodeDataReadEnd:
		switch k {
		case tokenizer.KindPrompt:
			return DataReadEnd, nil
		case tokenizer.KindPromptWithError:
			return DataReadEndPendingError, nil
		case tokenizer.KindTspErrorStart:
			return ErrorReadStart, nil
		case tokenizer.KindData:
			if cur == TextDataReadStart {
				return TextDataReadContinue, nil
			}
			return TextDataReadStart, nil
		case tokenizer.KindProgressIndicator:
			return FileLoading, nil
		case tokenizer.KindNodeStart:
			if cur == Init || cur == TextDataReadStart || cur == DataReadEnd || cur == NodeDataReadEnd {
				return NodeDataReadStart, nil
			}
			return 0, transitionErr(cur, k)
		}
		return 0, transitionErr(cur, k)

	case TextDataReadContinue:
		switch k {
		case tokenizer.KindPrompt:
			return DataReadEnd, nil
		case tokenizer.KindPromptWithError:
			return DataReadEndPendingError, nil
		case tokenizer.KindData:
			return TextDataReadContinue, nil
		case tokenizer.KindProgressIndicator:
			return FileLoading, nil
		}
		return 0, transitionErr(cur, k)

	case DataReadEndPendingError:
		switch k {
		case tokenizer.KindPrompt:
			return DataReadEnd, nil
		case tokenizer.KindPromptWithError:
			return DataReadEndPendingError, nil
		case tokenizer.KindTspErrorStart:
			return ErrorReadStart, nil
		case tokenizer.KindData:
			return TextDataReadStart, nil
		case tokenizer.KindProgressIndicator:
			return FileLoading, nil
		}
		return 0, transitionErr(cur, k)

	case ErrorReadStart:
		switch k {
		case tokenizer.KindTspError:
			return ErrorReadContinue, nil
		case tokenizer.KindTspErrorEnd:
			return ErrorReadEnd, nil
		case tokenizer.KindProgressIndicator:
			return FileLoading, nil
		}
		return 0, transitionErr(cur, k)

	case ErrorReadContinue:
		switch k {
		case tokenizer.KindTspError:
			return ErrorReadContinue, nil
		case tokenizer.KindTspErrorEnd:
			return ErrorReadEnd, nil
		case tokenizer.KindProgressIndicator:
			return FileLoading, nil
		}
		return 0, transitionErr(cur, k)

	case FileLoading:
		switch k {
		case tokenizer.KindPrompt:
			return Init, nil
		case tokenizer.KindPromptWithError:
			return DataReadEndPendingError, nil
		case tokenizer.KindTspErrorStart:
			return ErrorReadStart, nil
		case tokenizer.KindData:
			return TextDataReadStart, nil
		case tokenizer.KindProgressIndicator:
			return FileLoading, nil
		}
		return 0, transitionErr(cur, k)

	case NodeDataReadStart:
		switch k {
		case tokenizer.KindData:
			return NodeDataReadContinue, nil
		case tokenizer.KindProgressIndicator:
			return FileLoading, nil
		case tokenizer.KindNodeEnd:
			return NodeDataReadEnd, nil
		}
		return 0, transitionErr(cur, k)

	case NodeDataReadContinue:
		switch k {
		case tokenizer.KindData:
			return NodeDataReadContinue, nil
		case tokenizer.KindProgressIndicator:
			return FileLoading, nil
		case tokenizer.KindNodeEnd:
			return NodeDataReadEnd, nil
		}
		return 0, transitionErr(cur, k)
	}
	return 0, transitionErr(cur, k)
}

func transitionErr(cur State, k tokenizer.Kind) error {
	return &replerr.StateMachineTransitionError{State: cur.String(), Input: k.String()}
}

// ActionOf derives the dispatcher action for the transition from prev to
// cur. prev == nil models the bootstrap case, before any frame has been
// processed.
//
// Rules are evaluated in order; the first match wins.
func ActionOf(prev *State, cur State) Action {
	if prev == nil {
		switch cur {
		case Init, DataReadEnd, ErrorReadEnd, NodeDataReadEnd:
			return ActionPrompt
		case DataReadEndPendingError:
			return ActionGetError
		case TextDataReadStart, TextDataReadContinue:
			return ActionPrintText
		case ErrorReadContinue:
			return ActionPrintError
		case NodeDataReadStart, NodeDataReadContinue:
			return ActionGetNodeDetails
		default:
			return ActionNone
		}
	}

	switch cur {
	case ErrorReadContinue:
		return ActionPrintError
	case DataReadEndPendingError:
		return ActionGetError
	case NodeDataReadContinue:
		return ActionGetNodeDetails
	case TextDataReadStart, TextDataReadContinue:
		return ActionPrintText
	case DataReadEnd, ErrorReadEnd, NodeDataReadEnd:
		return ActionPrompt
	case Init:
		if *prev != Init {
			return ActionPrompt
		}
		return ActionNone
	default:
		return ActionNone
	}
}
