package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRun_Version(t *testing.T) {
	var out bytes.Buffer
	if err := run(context.Background(), []string{"-version"}, &out); err != nil {
		t.Fatalf("run -version: %v", err)
	}
	if !strings.HasPrefix(out.String(), "order-service ") {
		t.Fatalf("unexpected version output %q", out.String())
	}
}

func TestRun_ConfigErrors(t *testing.T) {
	dir := t.TempDir()
	invalid := filepath.Join(dir, "invalid.yaml")
	if err := os.WriteFile(invalid, []byte("storage:\n  driver: mysql\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cases := map[string][]string{
		"missing file":   {"-config", filepath.Join(dir, "absent.yaml")},
		"unknown driver": {"-config", invalid},
		"unknown flag":   {"-nope"},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			if err := run(context.Background(), args, &bytes.Buffer{}); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
