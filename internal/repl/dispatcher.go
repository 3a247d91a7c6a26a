// Copyright 2024 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package repl implements the dispatcher that mediates between an operator
// and an instrument channel: the tokenizer/state-machine/action pipeline,
// the request handlers, and the startup/shutdown protocols.
package repl

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/maruel/kic/internal/command"
	"github.com/maruel/kic/internal/config"
	"github.com/maruel/kic/internal/console"
	"github.com/maruel/kic/internal/instrument"
	"github.com/maruel/kic/internal/nodeio"
	"github.com/maruel/kic/internal/replerr"
	"github.com/maruel/kic/internal/resources"
	"github.com/maruel/kic/internal/statemachine"
	"github.com/maruel/kic/internal/tokenizer"
	"github.com/maruel/kic/internal/tsperror"
)

// Dispatcher owns the instrument channel exclusively and drives the main
// read/tokenize/transition/act loop.
type Dispatcher struct {
	ch      instrument.Channel
	out     *console.Writer
	cfg     *config.Config
	version string

	state        statemachine.State
	havePrev     bool
	prevState    statemachine.State
	prompt       bool
	nodeOutput   string
	nodeGroup    errgroup.Group
	nodeGroupCap int
}

// New returns a Dispatcher over ch, printing to out, configured by cfg.
func New(ch instrument.Channel, out *console.Writer, cfg *config.Config, version string) *Dispatcher {
	d := &Dispatcher{ch: ch, out: out, cfg: cfg, version: version, nodeGroupCap: 4}
	d.nodeGroup.SetLimit(d.nodeGroupCap)
	return d
}

// Startup runs the one-time sequence: clear the output queue, upload the
// common helper script, and enable instrument prompts.
func (d *Dispatcher) Startup() error {
	if err := d.clearOutputQueue(); err != nil {
		return fmt.Errorf("startup: %w", err)
	}
	common := resources.KicCommon(d.version)
	if err := d.ch.WriteScript("kic_common", []byte(common), false, true); err != nil {
		return &replerr.TransportError{Op: "WriteScript(kic_common)", Err: err}
	}
	if _, err := d.ch.Write([]byte("_KIC.prompts_enable(true)\n")); err != nil {
		return &replerr.TransportError{Op: "enable prompts", Err: err}
	}
	d.drainAndPrintStartupErrors()
	return nil
}

// clearOutputQueue writes a timestamp echo and polls until it sees it come
// back, bounding the number of attempts per configuration.
func (d *Dispatcher) clearOutputQueue() error {
	stamp := time.Now().UTC().Format("2006-01-02T15:04:05")
	if _, err := d.ch.Write([]byte(fmt.Sprintf("print(%q)\n", stamp))); err != nil {
		return &replerr.TransportError{Op: "clear output queue: write", Err: err}
	}
	if err := d.ch.SetNonblocking(true); err != nil {
		return &replerr.TransportError{Op: "clear output queue: set nonblocking", Err: err}
	}
	var acc bytes.Buffer
	attempts := d.cfg.MaxQueueClearAttempts
	if attempts <= 0 {
		attempts = 10
	}
	for i := 0; i < attempts; i++ {
		buf := make([]byte, 512)
		n, err := d.ch.Read(buf)
		if err != nil && !errors.Is(err, instrument.ErrWouldBlock) {
			return &replerr.TransportError{Op: "clear output queue: read", Err: err}
		}
		if n > 0 {
			chunk := buf[:n]
			if idx := bytes.IndexByte(chunk, 0); idx >= 0 {
				chunk = chunk[:idx]
			}
			acc.Write(chunk)
			if bytes.Contains(acc.Bytes(), []byte(stamp)) {
				return nil
			}
		}
		time.Sleep(d.cfg.QueueClearDelay())
	}
	return errors.New("clear output queue: exhausted attempts without seeing echo")
}

func (d *Dispatcher) drainAndPrintStartupErrors() {
	errs, err := d.fetchErrors()
	if err != nil {
		slog.Error("repl", "phase", "startup", "err", err)
		return
	}
	for _, e := range errs {
		d.out.Error(e.String())
	}
}

// fetchErrors runs the out-of-band error-fetch subprotocol: it writes a
// request to the instrument to print its error queue and polls until the
// terminating sentinel arrives.
func (d *Dispatcher) fetchErrors() ([]tsperror.Error, error) {
	if _, err := d.ch.Write([]byte("print(_KIC.error_message())\n")); err != nil {
		return nil, &replerr.TransportError{Op: "fetch errors: write", Err: err}
	}
	var acc bytes.Buffer
	deadline := time.Now().Add(2 * time.Second)
	for !bytes.Contains(acc.Bytes(), []byte("ERM>DONE")) {
		buf := make([]byte, 1024)
		n, err := d.ch.Read(buf)
		if err != nil && !errors.Is(err, instrument.ErrWouldBlock) {
			return nil, &replerr.TransportError{Op: "fetch errors: read", Err: err}
		}
		if n > 0 {
			acc.Write(buf[:n])
		} else {
			if time.Now().After(deadline) {
				return nil, errors.New("fetch errors: timed out waiting for ERM>DONE")
			}
			time.Sleep(d.cfg.ErrorFetchPollInterval())
		}
	}
	var out []tsperror.Error
	for _, f := range tokenizer.All(acc.Bytes()) {
		if f.Kind != tokenizer.KindTspError {
			continue
		}
		var e tsperror.Error
		if err := json.Unmarshal([]byte(f.Text), &e); err != nil {
			slog.Error("repl", "phase", "fetch-errors", "err", &replerr.DeserializationError{Err: err})
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// Iterate runs one pass of the main loop: a non-blocking read, tokenize,
// state-transition, act. It returns the number of frames processed.
func (d *Dispatcher) Iterate() (int, error) {
	if d.prompt {
		d.out.Prompt()
		d.prompt = false
	}
	buf := make([]byte, d.readChunkSize())
	n, err := d.ch.Read(buf)
	if err != nil && !errors.Is(err, instrument.ErrWouldBlock) {
		return 0, &replerr.TransportError{Op: "read", Err: err}
	}
	if n == 0 {
		return 0, nil
	}
	frames := tokenizer.All(buf[:n])
	for _, f := range frames {
		d.applyFrame(f)
	}
	return len(frames), nil
}

func (d *Dispatcher) readChunkSize() int {
	if d.cfg.ReadChunkSize <= 0 {
		return 1024
	}
	return d.cfg.ReadChunkSize
}

func (d *Dispatcher) applyFrame(f tokenizer.Frame) {
	next, err := statemachine.Next(d.state, f.Kind)
	if err != nil {
		slog.Error("repl", "err", err)
		d.state = statemachine.Init
		d.havePrev = false
		return
	}
	var prevPtr *statemachine.State
	if d.havePrev {
		p := d.state
		prevPtr = &p
	}
	action := statemachine.ActionOf(prevPtr, next)
	d.prevState = d.state
	d.havePrev = true
	d.state = next

	switch action {
	case statemachine.ActionPrompt:
		d.prompt = true
	case statemachine.ActionGetError:
		errs, err := d.fetchErrors()
		if err != nil {
			slog.Error("repl", "phase", "get-error", "err", err)
		}
		for _, e := range errs {
			d.out.Error(e.String())
		}
		d.state = statemachine.DataReadEnd
		d.prompt = true
	case statemachine.ActionPrintText:
		d.out.Data(f.Text)
	case statemachine.ActionPrintError:
		var e tsperror.Error
		if err := json.Unmarshal([]byte(f.Text), &e); err != nil {
			slog.Error("repl", "phase", "print-error", "err", &replerr.DeserializationError{Err: err})
			return
		}
		d.out.Error(e.String())
	case statemachine.ActionGetNodeDetails:
		d.captureNodeDetails(f)
	case statemachine.ActionNone:
	}
}

func (d *Dispatcher) captureNodeDetails(f tokenizer.Frame) {
	if f.Kind != tokenizer.KindData || d.nodeOutput == "" {
		return
	}
	payload := []byte(f.Text)
	path := d.nodeOutput
	d.nodeGroup.Go(func() error {
		if err := nodeio.Write(path, payload); err != nil {
			slog.Error("repl", "phase", "node-details", "err", err)
		}
		return nil
	})
}

// HandleRequest dispatches one parsed operator request.
func (d *Dispatcher) HandleRequest(req command.Request) (exit bool) {
	switch req.Kind {
	case command.KindTsp:
		if _, err := d.ch.Write([]byte(req.Tsp + "\n")); err != nil {
			slog.Error("repl", "phase", "tsp", "err", &replerr.TransportError{Op: "write", Err: err})
		}
		d.havePrev = false
	case command.KindGetError:
		errs, err := d.fetchErrors()
		if err != nil {
			slog.Error("repl", "phase", "get-error", "err", err)
		}
		for _, e := range errs {
			d.out.Error(e.String())
		}
		d.prompt = true
	case command.KindScript:
		d.handleScript(req.Path)
	case command.KindTspLinkNodes:
		d.nodeOutput = req.Path
		script := resources.TspLinkNodes(d.version)
		if err := d.ch.WriteScript("kic_tsp_link_nodes", []byte(script), false, true); err != nil {
			slog.Error("repl", "phase", "nodes", "err", &replerr.TransportError{Op: "WriteScript(nodes)", Err: err})
		}
	case command.KindInfo:
		info, err := d.ch.Info(req.Slot)
		if err != nil {
			slog.Error("repl", "phase", "info", "err", err)
		} else {
			d.out.Line(info.String())
		}
		d.prompt = true
	case command.KindUpdate:
		d.handleUpdate(req)
	case command.KindReset:
		if err := d.ch.Reset(); err != nil {
			slog.Error("repl", "phase", "reset", "err", err)
		}
		d.prompt = true
	case command.KindExit:
		return true
	case command.KindHelp:
		d.out.Line(helpText(req.Subcommand))
		d.prompt = true
	case command.KindUsage, command.KindInvalidInput:
		d.out.Error(req.Text)
		d.prompt = true
	case command.KindNone:
		d.prompt = true
	}
	return false
}

func (d *Dispatcher) handleScript(path string) {
	body, err := readFile(path)
	if err != nil {
		slog.Error("repl", "phase", "script", "path", path, "err", err)
		d.prompt = true
		return
	}
	name := sanitizeScriptName(path)
	if err := d.ch.WriteScript(name, body, false, true); err != nil {
		slog.Error("repl", "phase", "script", "path", path, "err", &replerr.TransportError{Op: "WriteScript", Err: err})
	}
}

func (d *Dispatcher) handleUpdate(req command.Request) {
	body, err := readFile(req.Path)
	if err != nil {
		slog.Error("repl", "phase", "upgrade", "path", req.Path, "err", err)
		d.prompt = true
		return
	}
	d.out.Line("warning: firmware upgrade in progress, do not disconnect the instrument")
	var slot *uint16
	if req.Slot != nil {
		v := uint16(*req.Slot)
		slot = &v
	}
	if err := d.ch.FlashFirmware(body, slot); err != nil {
		slog.Error("repl", "phase", "upgrade", "err", &replerr.TransportError{Op: "FlashFirmware", Err: err})
	}
	if _, err := d.ch.Write([]byte("localnode.prompts=1\n")); err != nil {
		slog.Error("repl", "phase", "upgrade", "err", &replerr.TransportError{Op: "re-enable prompts", Err: err})
	}
	d.prompt = true
}

// Cleanup performs the best-effort teardown write and waits for any
// outstanding node-detail persistence to finish.
func (d *Dispatcher) Cleanup() {
	_, _ = d.ch.Write([]byte("if (_KIC ~= nil and _KIC['cleanup'] ~= nil) then _KIC.cleanup() end\n"))
	if err := d.nodeGroup.Wait(); err != nil {
		slog.Error("repl", "phase", "cleanup", "err", err)
	}
}

var nonIdent = regexp.MustCompile(`[^A-Za-z0-9_]`)

func sanitizeScriptName(path string) string {
	stem := path
	if idx := strings.LastIndexAny(stem, "/\\"); idx >= 0 {
		stem = stem[idx+1:]
	}
	if idx := strings.LastIndex(stem, "."); idx > 0 {
		stem = stem[:idx]
	}
	return "kic_" + nonIdent.ReplaceAllString(stem, "_")
}

func helpText(sub string) string {
	if sub == "" {
		return "kic commands: .script .upgrade .info .nodes .reset .help .exit"
	}
	switch sub {
	case "script":
		return ".script <path>: upload and run a script file"
	case "upgrade":
		return ".upgrade [-s slot] <path>: flash a firmware image"
	case "info":
		return ".info [-s slot]: print instrument identification"
	case "nodes":
		return ".nodes <path>: discover TSP-Link nodes and write their descriptors to path"
	case "reset":
		return ".reset: reset the instrument"
	case "exit", "quit":
		return ".exit: leave the REPL"
	default:
		return "unknown help topic: " + sub
	}
}

// readFile is overridable in tests that don't want to touch the real
// filesystem.
var readFile = os.ReadFile
