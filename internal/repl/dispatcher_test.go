// Copyright 2024 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package repl

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/maruel/kic/internal/command"
	"github.com/maruel/kic/internal/config"
	"github.com/maruel/kic/internal/console"
	"github.com/maruel/kic/internal/instrument"
)

func newTestDispatcher(t *testing.T) (*Dispatcher, *instrument.Fake, *bytes.Buffer) {
	t.Helper()
	fake := &instrument.Fake{}
	out := &bytes.Buffer{}
	cfg := &config.Config{
		MaxQueueClearAttempts:    100,
		QueueClearDelayMS:        1,
		ErrorFetchPollIntervalUS: 0,
		ReadChunkSize:            1024,
	}
	d := New(fake, console.New(out), cfg, "1.2.3")
	return d, fake, out
}

func TestStartup_happyPath(t *testing.T) {
	d, fake, _ := newTestDispatcher(t)
	// The instrument must echo back something containing the timestamp the
	// clear-queue write sends; echo back whatever was written instead of
	// racing on time.Now().
	go func() {
		for i := 0; i < 20; i++ {
			if fake.Written.Len() > 0 {
				break
			}
			time.Sleep(time.Millisecond)
		}
		fake.Feed(fake.Written.Bytes())
		fake.Feed([]byte("TSP>"))
	}()
	if err := d.Startup(); err != nil {
		t.Fatal(err)
	}
	if len(fake.ScriptsWritten) != 1 || fake.ScriptsWritten[0].Name != "kic_common" {
		t.Fatalf("got %+v", fake.ScriptsWritten)
	}
	if !strings.Contains(fake.Written.String(), "_KIC.prompts_enable(true)") {
		t.Fatalf("missing prompts_enable write: %s", fake.Written.String())
	}
}

func TestIterate_textDump(t *testing.T) {
	d, fake, out := newTestDispatcher(t)
	fake.Feed([]byte("TSP>\nhello\nworld\nTSP>"))
	if _, err := d.Iterate(); err != nil {
		t.Fatal(err)
	}
	if !d.prompt {
		t.Fatal("expected prompt flag set")
	}
	if got := out.String(); !strings.Contains(got, "hello\nworld\n") {
		t.Fatalf("got %q", got)
	}
}

func TestIterate_errorQueue(t *testing.T) {
	d, fake, out := newTestDispatcher(t)
	go func() {
		for i := 0; i < 50; i++ {
			if strings.Contains(fake.Written.String(), "error_message") {
				break
			}
			time.Sleep(time.Millisecond)
		}
		fake.Feed([]byte(`ERM>START` + "\n" +
			`ERM>{"error_code":-285,"message":"bad arg","severity":0,"node_id":1}` + "\n" +
			`ERM>DONE` + "\n"))
	}()
	fake.Feed([]byte("TSP?"))
	if _, err := d.Iterate(); err != nil {
		t.Fatal(err)
	}
	if got := out.String(); !strings.Contains(got, "[1] {-285} bad arg") {
		t.Fatalf("got %q", got)
	}
}

func TestCaptureNodeDetails(t *testing.T) {
	d, fake, _ := newTestDispatcher(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "nodes.json")
	d.nodeOutput = path
	fake.Feed([]byte(`NODE>START` + "\n" + `{"nodes":[]}` + "\n" + `NODE>END` + "\n" + `TSP>`))
	if _, err := d.Iterate(); err != nil {
		t.Fatal(err)
	}
	if err := d.nodeGroup.Wait(); err != nil {
		t.Fatal(err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), `"nodes"`) {
		t.Fatalf("got %s", b)
	}
}

func TestHandleRequest_script(t *testing.T) {
	d, fake, _ := newTestDispatcher(t)
	path := filepath.Join(t.TempDir(), "my-script.tsp")
	if err := os.WriteFile(path, []byte("print(1)"), 0o644); err != nil {
		t.Fatal(err)
	}
	req := command.Parse(".script " + path)
	if exit := d.HandleRequest(req); exit {
		t.Fatal("unexpected exit")
	}
	if len(fake.ScriptsWritten) != 1 {
		t.Fatalf("got %+v", fake.ScriptsWritten)
	}
	if fake.ScriptsWritten[0].Name != "kic_my_script" {
		t.Fatalf("got name %q", fake.ScriptsWritten[0].Name)
	}
}

func TestHandleRequest_reset(t *testing.T) {
	d, fake, _ := newTestDispatcher(t)
	if exit := d.HandleRequest(command.Request{Kind: command.KindReset}); exit {
		t.Fatal("unexpected exit")
	}
	if fake.ResetCalls != 1 {
		t.Fatalf("got %d reset calls", fake.ResetCalls)
	}
}

func TestHandleRequest_exit(t *testing.T) {
	d, _, _ := newTestDispatcher(t)
	if exit := d.HandleRequest(command.Request{Kind: command.KindExit}); !exit {
		t.Fatal("expected exit")
	}
}

func TestHandleRequest_update(t *testing.T) {
	d, fake, _ := newTestDispatcher(t)
	path := filepath.Join(t.TempDir(), "fw.bin")
	if err := os.WriteFile(path, []byte{0xde, 0xad}, 0o644); err != nil {
		t.Fatal(err)
	}
	slot := 2
	d.HandleRequest(command.Request{Kind: command.KindUpdate, Path: path, Slot: &slot})
	if len(fake.FlashCalls) != 1 {
		t.Fatalf("got %+v", fake.FlashCalls)
	}
	if fake.FlashCalls[0].Slot == nil || *fake.FlashCalls[0].Slot != 2 {
		t.Fatalf("got slot %v", fake.FlashCalls[0].Slot)
	}
	if !strings.Contains(fake.Written.String(), "localnode.prompts=1") {
		t.Fatalf("missing post-flash prompt re-enable: %s", fake.Written.String())
	}
}

func TestSanitizeScriptName(t *testing.T) {
	cases := map[string]string{
		"/tmp/foo-bar.tsp":  "kic_foo_bar",
		"c:\\a b.tsp":       "kic_a_b",
		"plain":             "kic_plain",
	}
	for in, want := range cases {
		if got := sanitizeScriptName(in); got != want {
			t.Errorf("sanitizeScriptName(%q) = %q, want %q", in, got, want)
		}
	}
}
