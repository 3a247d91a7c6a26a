// Copyright 2024 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package nodeio

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWrite_createsParent(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "nested", "nodes.json")
	if err := Write(path, []byte(`{"nodes":[{"node":1,"model":"3706A"}]}`)); err != nil {
		t.Fatal(err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := "{\n  \"nodes\": [\n    {\n      \"model\": \"3706A\",\n      \"node\": 1\n    }\n  ]\n}"
	if string(b) != want {
		t.Fatalf("got:\n%s\nwant:\n%s", b, want)
	}
}

func TestWrite_parentIsFile(t *testing.T) {
	root := t.TempDir()
	blocker := filepath.Join(root, "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(blocker, "nodes.json")
	if err := Write(path, []byte(`{}`)); err == nil {
		t.Fatal("expected error")
	}
}

func TestWrite_invalidJSON(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "nodes.json")
	if err := Write(path, []byte(`not json`)); err == nil {
		t.Fatal("expected error")
	}
}
