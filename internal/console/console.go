// Copyright 2024 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package console renders the REPL's own chat-style output: the instrument
// prompt and TSP error lines, colored the way a human operator expects a
// terminal session to look.
package console

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// Writer prints prompt/data/error text to an underlying io.Writer, coloring
// it unless the destination is an *os.File that is not a terminal.
type Writer struct {
	out     io.Writer
	prompt  *color.Color
	errText *color.Color
}

// New returns a Writer over out. When out is an *os.File that is not a
// terminal, colors are suppressed; any other io.Writer gets colors.
func New(out io.Writer) *Writer {
	noColor := false
	if f, ok := out.(*os.File); ok {
		noColor = !isatty.IsTerminal(f.Fd())
	}
	prompt := color.New(color.FgBlue)
	errText := color.New(color.FgRed)
	prompt.DisableColor()
	errText.DisableColor()
	if !noColor {
		prompt.EnableColor()
		errText.EnableColor()
	}
	return &Writer{out: out, prompt: prompt, errText: errText}
}

// Prompt writes the instrument-ready prompt.
func (w *Writer) Prompt() {
	w.prompt.Fprint(w.out, "\nTSP> ")
}

// Data writes instrument text output verbatim, uncolored.
func (w *Writer) Data(s string) {
	fmt.Fprint(w.out, s)
}

// Error writes one formatted TSP error line, colored red.
func (w *Writer) Error(s string) {
	w.errText.Fprintln(w.out, s)
}

// Line writes a plain uncolored line, used for usage/info text.
func (w *Writer) Line(s string) {
	fmt.Fprintln(w.out, s)
}
