// Copyright 2024 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package command

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestParse_empty(t *testing.T) {
	r := Parse("   ")
	if r.Kind != KindNone {
		t.Fatalf("got %v, want KindNone", r.Kind)
	}
}

func TestParse_tsp(t *testing.T) {
	r := Parse("print(1+1)")
	if r.Kind != KindTsp || r.Tsp != "print(1+1)" {
		t.Fatalf("got %+v", r)
	}
}

func TestParse_existingFileIsScript(t *testing.T) {
	path := filepath.Join(t.TempDir(), "foo.tsp")
	if err := os.WriteFile(path, []byte("x=1"), 0o644); err != nil {
		t.Fatal(err)
	}
	r := Parse(path)
	if r.Kind != KindScript || r.Path != path {
		t.Fatalf("got %+v", r)
	}
}

func TestParse_exit(t *testing.T) {
	for _, s := range []string{".exit", ".quit"} {
		if r := Parse(s); r.Kind != KindExit {
			t.Fatalf("%s: got %+v", s, r)
		}
	}
}

func TestParse_reset(t *testing.T) {
	if r := Parse(".reset"); r.Kind != KindReset {
		t.Fatalf("got %+v", r)
	}
}

func TestParse_scriptMissingFile(t *testing.T) {
	r := Parse(".script /no/such/file.tsp")
	if r.Kind != KindUsage {
		t.Fatalf("got %+v", r)
	}
}

func TestParse_scriptWithExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.tsp")
	if err := os.WriteFile(path, []byte("x=1"), 0o644); err != nil {
		t.Fatal(err)
	}
	r := Parse(".script " + path)
	want := Request{Kind: KindScript, Path: path}
	if diff := cmp.Diff(want, r, cmpopts.IgnoreFields(Request{}, "Slot")); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_upgradeWithSlot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fw.bin")
	if err := os.WriteFile(path, []byte{0x00}, 0o644); err != nil {
		t.Fatal(err)
	}
	r := Parse(".upgrade -s 2 " + path)
	if r.Kind != KindUpdate || r.Path != path {
		t.Fatalf("got %+v", r)
	}
	if r.Slot == nil || *r.Slot != 2 {
		t.Fatalf("got slot %v", r.Slot)
	}
}

func TestParse_infoNoSlot(t *testing.T) {
	r := Parse(".info")
	if r.Kind != KindInfo || r.Slot != nil {
		t.Fatalf("got %+v", r)
	}
}

func TestParse_help(t *testing.T) {
	r := Parse(".help script")
	if r.Kind != KindHelp || r.Subcommand != "script" {
		t.Fatalf("got %+v", r)
	}
	r = Parse(".script -h")
	if r.Kind != KindHelp || r.Subcommand != "script" {
		t.Fatalf("got %+v", r)
	}
}

func TestParse_invalidQuoting(t *testing.T) {
	r := Parse(`.script "unterminated`)
	if r.Kind != KindInvalidInput {
		t.Fatalf("got %+v", r)
	}
}

func TestParse_quotedPathWithSpace(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "has space.tsp")
	if err := os.WriteFile(path, []byte("x=1"), 0o644); err != nil {
		t.Fatal(err)
	}
	r := Parse(`.script "` + path + `"`)
	if r.Kind != KindScript || r.Path != path {
		t.Fatalf("got %+v", r)
	}
}
