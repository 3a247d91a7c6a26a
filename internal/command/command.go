// Copyright 2024 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package command classifies one line of operator input into a Request.
package command

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/maruel/kic/internal/replerr"
)

// Kind identifies the variant of a parsed Request.
type Kind int

const (
	KindNone Kind = iota
	KindTsp
	KindScript
	KindUpdate
	KindTspLinkNodes
	KindInfo
	KindReset
	KindExit
	KindHelp
	KindUsage
	KindInvalidInput
	KindGetError
)

// Request is the result of parsing one line of operator input.
type Request struct {
	Kind Kind

	// Tsp carries the literal line for KindTsp.
	Tsp string
	// Path carries the file argument for KindScript, KindUpdate, and
	// KindTspLinkNodes.
	Path string
	// Slot carries the optional -s/--slot argument for KindUpdate and
	// KindInfo. Nil means "not specified".
	Slot *int
	// Subcommand carries the optional argument to .help.
	Subcommand string
	// Text carries the message for KindUsage and KindInvalidInput.
	Text string
}

var dotCommands = map[string]Kind{
	".script": KindScript,
	".upgrade": KindUpdate,
	".help":   KindHelp,
	".exit":   KindExit,
	".quit":   KindExit,
	".info":   KindInfo,
	".nodes":  KindTspLinkNodes,
	".reset":  KindReset,
}

// Parse classifies one trimmed line of input.
func Parse(line string) Request {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return Request{Kind: KindNone}
	}
	if fi, err := os.Stat(trimmed); err == nil && !fi.IsDir() {
		return Request{Kind: KindScript, Path: trimmed}
	}
	fields, err := splitWords(trimmed)
	if err != nil {
		return Request{Kind: KindInvalidInput, Text: err.Error()}
	}
	if len(fields) == 0 {
		return Request{Kind: KindNone}
	}
	kind, ok := dotCommands[fields[0]]
	if !ok {
		return Request{Kind: KindTsp, Tsp: trimmed}
	}
	return parseDotCommand(kind, fields[0], fields[1:])
}

func parseDotCommand(kind Kind, name string, args []string) Request {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(new(strings.Builder))
	var help bool
	fs.BoolVar(&help, "h", false, "show help")
	var helpLong bool
	fs.BoolVar(&helpLong, "help", false, "show help")
	var slot string
	switch kind {
	case KindUpdate, KindInfo:
		fs.StringVar(&slot, "s", "", "slot")
		fs.StringVar(&slot, "slot", "", "slot")
	}
	if err := fs.Parse(args); err != nil {
		return Request{Kind: KindUsage, Text: err.Error()}
	}
	if help || helpLong {
		return Request{Kind: KindHelp, Subcommand: strings.TrimPrefix(name, ".")}
	}

	rest := fs.Args()
	switch kind {
	case KindHelp:
		sub := ""
		if len(rest) > 0 {
			sub = rest[0]
		}
		return Request{Kind: KindHelp, Subcommand: sub}
	case KindExit, KindReset:
		return Request{Kind: kind}
	case KindScript, KindTspLinkNodes:
		if len(rest) != 1 {
			return Request{Kind: KindUsage, Text: fmt.Sprintf("%s requires exactly one path argument", name)}
		}
		if _, err := os.Stat(rest[0]); err != nil {
			return Request{Kind: KindUsage, Text: fmt.Sprintf("%s: no such file: %s", name, rest[0])}
		}
		return Request{Kind: kind, Path: rest[0]}
	case KindUpdate:
		if len(rest) != 1 {
			return Request{Kind: KindUsage, Text: "upgrade requires exactly one path argument"}
		}
		if _, err := os.Stat(rest[0]); err != nil {
			return Request{Kind: KindUsage, Text: fmt.Sprintf("upgrade: no such file: %s", rest[0])}
		}
		req := Request{Kind: KindUpdate, Path: rest[0]}
		if slot != "" {
			v, err := strconv.ParseUint(slot, 10, 16)
			if err != nil {
				return Request{Kind: KindUsage, Text: "upgrade: --slot must be a 16-bit unsigned integer"}
			}
			n := int(v)
			req.Slot = &n
		}
		return req
	case KindInfo:
		req := Request{Kind: KindInfo}
		if slot != "" {
			v, err := strconv.Atoi(slot)
			if err != nil || v < 0 {
				return Request{Kind: KindUsage, Text: "info: --slot must be a non-negative integer"}
			}
			req.Slot = &v
		}
		return req
	}
	return Request{Kind: KindUsage, Text: "unhandled command: " + name}
}

// splitWords performs POSIX-shell-like word splitting with single- and
// double-quote support. There is no maintained Go ecosystem equivalent of
// Rust's shlex crate in scope here (see DESIGN.md); this is a deliberately
// small hand-rolled tokenizer limited to what the dot-command grammar needs:
// whitespace splitting, quoted spans, and backslash escapes inside double
// quotes.
func splitWords(s string) ([]string, error) {
	var words []string
	var cur strings.Builder
	inWord := false
	var quote rune
	for i := 0; i < len(s); i++ {
		c := rune(s[i])
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
				continue
			}
			if quote == '"' && c == '\\' && i+1 < len(s) {
				i++
				cur.WriteByte(s[i])
				continue
			}
			cur.WriteRune(c)
		case c == '\'' || c == '"':
			quote = c
			inWord = true
		case c == ' ' || c == '\t':
			if inWord {
				words = append(words, cur.String())
				cur.Reset()
				inWord = false
			}
		default:
			inWord = true
			cur.WriteRune(c)
		}
	}
	if quote != 0 {
		return nil, &replerr.CommandError{Details: "unterminated quote"}
	}
	if inWord {
		words = append(words, cur.String())
	}
	return words, nil
}
