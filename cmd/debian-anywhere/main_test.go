package main

import (
	"context"
	"errors"
	"os/exec"
	"testing"

	"github.com/debanywhere/debanywhere/internal/build"
	"golang.org/x/xerrors"
)

func TestExitCode(t *testing.T) {
	shErr := exec.Command("/bin/sh", "-c", "exit 7").Run()
	if shErr == nil {
		t.Fatalf("sh unexpectedly succeeded")
	}
	for _, tt := range []struct {
		desc string
		err  error
		want int
	}{
		{"generic", errors.New("mkdir: permission denied"), 1},
		{"usage", errUsage, 1},
		{"external process", xerrors.Errorf("%v: %w", []string{"make"}, shErr), 7},
		{"not installed", xerrors.Errorf("fakeroot: %w", &build.NotInstalledError{Tool: "fakeroot"}), 3},
	} {
		t.Run(tt.desc, func(t *testing.T) {
			if got := exitCode(tt.err); got != tt.want {
				t.Errorf("exitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestRunArgumentCount(t *testing.T) {
	for _, args := range [][]string{
		nil,
		{"-suite=sid"},
		{"a", "b", "c"},
	} {
		if err := run(context.Background(), args); err != errUsage {
			t.Errorf("run(%q) = %v, want %v", args, err, errUsage)
		}
	}
}
