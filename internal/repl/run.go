// Copyright 2024 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package repl

import (
	"bufio"
	"context"
	"time"

	"github.com/maruel/kic/internal/command"
)

// InputReader runs on its own goroutine, reading lines from r and parsing
// them into Requests until r is exhausted or ctx is done.
func InputReader(ctx context.Context, r *bufio.Scanner, requests chan<- command.Request) {
	defer close(requests)
	for r.Scan() {
		if ctx.Err() != nil {
			return
		}
		req := command.Parse(r.Text())
		select {
		case requests <- req:
		case <-ctx.Done():
			return
		}
		if req.Kind == command.KindExit {
			return
		}
	}
}

// Run drives the dispatcher's main loop until a Request signals Exit, the
// request channel closes, or ctx is cancelled. The instrument channel must
// already have had Startup called on its dispatcher.
func (d *Dispatcher) Run(ctx context.Context, requests <-chan command.Request) error {
	defer d.Cleanup()
	tick := time.NewTicker(time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if _, err := d.Iterate(); err != nil {
			return err
		}
		select {
		case req, ok := <-requests:
			if !ok {
				return nil
			}
			if exit := d.HandleRequest(req); exit {
				return nil
			}
		default:
		}
		select {
		case <-tick.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
