// Copyright 2024 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package tokenizer scans a byte stream from the instrument into a sequence
// of sentinel-delimited frames.
package tokenizer

import (
	"bytes"
	"strings"
)

// Kind identifies the variant of a parsed frame.
type Kind int

const (
	// KindPrompt is the instrument's ready indicator, "TSP>".
	KindPrompt Kind = iota
	// KindPromptWithError is the ready indicator signalling a non-empty
	// error queue, "TSP?".
	KindPromptWithError
	// KindTspErrorStart opens a machine-readable error dump, "ERM>START".
	KindTspErrorStart
	// KindTspError is one error record, "ERM>" followed by payload.
	KindTspError
	// KindTspErrorEnd closes the dump, "ERM>DONE".
	KindTspErrorEnd
	// KindData is opaque text between sentinels.
	KindData
	// KindProgressIndicator is ">>>>", emitted during long operations.
	KindProgressIndicator
	// KindNodeStart opens a TSP-Link node descriptor payload, "NODE>START".
	KindNodeStart
	// KindNodeEnd closes it, "NODE>END".
	KindNodeEnd
)

func (k Kind) String() string {
	switch k {
	case KindPrompt:
		return "Prompt"
	case KindPromptWithError:
		return "PromptWithError"
	case KindTspErrorStart:
		return "TspErrorStart"
	case KindTspError:
		return "TspError"
	case KindTspErrorEnd:
		return "TspErrorEnd"
	case KindData:
		return "Data"
	case KindProgressIndicator:
		return "ProgressIndicator"
	case KindNodeStart:
		return "NodeStart"
	case KindNodeEnd:
		return "NodeEnd"
	default:
		return "Unknown"
	}
}

// Frame is one parsed element of the instrument's response stream.
type Frame struct {
	Kind Kind
	// Text carries the payload for KindData and KindTspError frames; it is
	// empty for all other kinds.
	Text string
}

// sentinel describes one recognized prefix, in priority order: entries
// earlier in the slice are checked first so that a longer, more specific
// prefix is never shadowed by a shorter one sharing the same lead bytes
// (e.g. "NODE>START" before any bare "NODE>" fallback, "ERM>START"/"ERM>DONE"
// before the generic "ERM>" error-record prefix).
type sentinel struct {
	prefix string
	kind   Kind
}

var sentinels = []sentinel{
	{"NODE>START", KindNodeStart},
	{"NODE>END", KindNodeEnd},
	{"ERM>START", KindTspErrorStart},
	{"ERM>DONE", KindTspErrorEnd},
	{"TSP>", KindPrompt},
	{"TSP?", KindPromptWithError},
	{"ERM>", KindTspError},
	{">>>>", KindProgressIndicator},
}

// Parser pulls frames out of a byte buffer one at a time.
type Parser struct {
	buf []byte
}

// New returns a Parser over buf. The Parser reads buf in place; callers
// must not mutate it concurrently with calls to Next.
func New(buf []byte) *Parser {
	return &Parser{buf: buf}
}

// Next returns the next frame in the stream, or ok == false when the buffer
// is exhausted or begins with a NUL byte.
func (p *Parser) Next() (Frame, bool) {
	p.buf = bytes.TrimLeft(p.buf, " \t\r\n")
	if len(p.buf) == 0 || p.buf[0] == 0 {
		return Frame{}, false
	}
	if idx, s := matchSentinelAt(p.buf, 0); idx == 0 {
		if s.kind == KindTspError {
			return p.readErrorPayload()
		}
		p.buf = p.buf[len(s.prefix):]
		return Frame{Kind: s.kind}, true
	}
	// No sentinel at the very start: the data frame runs up to the next
	// sentinel occurrence anywhere in the remainder, or to the end.
	cut := findNextSentinel(p.buf)
	var text []byte
	if cut < 0 {
		text = p.buf
		p.buf = nil
	} else {
		text = p.buf[:cut]
		p.buf = p.buf[cut:]
	}
	return Frame{Kind: KindData, Text: string(text)}, true
}

// readErrorPayload handles the "ERM>" prefix: the payload runs to the next
// sentinel (commonly "ERM>DONE") or to the end of the buffer, trimmed.
func (p *Parser) readErrorPayload() (Frame, bool) {
	rest := p.buf[len("ERM>"):]
	cut := findNextSentinel(rest)
	var payload []byte
	if cut < 0 {
		payload = rest
		p.buf = nil
	} else {
		payload = rest[:cut]
		p.buf = rest[cut:]
	}
	text := strings.TrimSpace(string(payload))
	return Frame{Kind: KindTspError, Text: text}, true
}

// matchSentinelAt reports whether some sentinel's prefix matches buf at the
// given offset, returning the offset back (for symmetry with
// findNextSentinel) and the matched sentinel.
func matchSentinelAt(buf []byte, at int) (int, sentinel) {
	for _, s := range sentinels {
		if bytes.HasPrefix(buf[at:], []byte(s.prefix)) {
			return at, s
		}
	}
	return -1, sentinel{}
}

// findNextSentinel performs a simultaneous substring search for every
// sentinel prefix, returning the earliest match offset in buf, or -1 if none
// occurs. Search starts at offset 1, so a sentinel at offset 0 is never
// reported.
func findNextSentinel(buf []byte) int {
	best := -1
	for _, s := range sentinels {
		if idx := bytes.Index(buf[min(1, len(buf)):], []byte(s.prefix)); idx >= 0 {
			idx += min(1, len(buf))
			if best < 0 || idx < best {
				best = idx
			}
		}
	}
	return best
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// All drains the parser into a slice of every remaining frame. Intended for
// tests and the bounded out-of-band error-fetch protocol, where the whole
// accumulated buffer is tokenized at once.
func All(buf []byte) []Frame {
	p := New(buf)
	var out []Frame
	for {
		f, ok := p.Next()
		if !ok {
			break
		}
		out = append(out, f)
	}
	return out
}
