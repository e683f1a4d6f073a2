// Package debanywhere describes the on-disk layout of an unprivileged Debian
// bootstrap: a persistent target directory and a scratch directory for
// sources and transient builds.
package debanywhere

import (
	"os"
	"path/filepath"
	"strings"
)

// Layout locates all directories of one bootstrap run. Both paths are
// absolute.
type Layout struct {
	// Target receives utils/, root/ and chroot.sh, e.g. /home/michael/sid.
	Target string

	// Scratch holds downloaded archives, extracted sources and tools which
	// are only needed during the run, e.g. /tmp/debian-anywhere123.
	Scratch string
}

// NewLayout returns a Layout with target and scratch made absolute.
func NewLayout(target, scratch string) (Layout, error) {
	t, err := filepath.Abs(target)
	if err != nil {
		return Layout{}, err
	}
	s, err := filepath.Abs(scratch)
	if err != nil {
		return Layout{}, err
	}
	return Layout{Target: t, Scratch: s}, nil
}

// UtilsDir is the install prefix for tools which chroot.sh needs later on.
func (l Layout) UtilsDir() string { return filepath.Join(l.Target, "utils") }

func (l Layout) UtilsBinDir() string { return filepath.Join(l.UtilsDir(), "bin") }

// RootDir is where debootstrap places the Debian file system.
func (l Layout) RootDir() string { return filepath.Join(l.Target, "root") }

func (l Layout) ScriptPath() string { return filepath.Join(l.Target, "chroot.sh") }

func (l Layout) ScratchBinDir() string { return filepath.Join(l.Scratch, "bin") }

// DistfilesDir caches downloaded archives, keyed by their base name.
func (l Layout) DistfilesDir() string { return filepath.Join(l.Scratch, "distfiles") }

// DebootstrapDir is the value of DEBOOTSTRAP_DIR for a debootstrap which was
// installed into the scratch directory.
func (l Layout) DebootstrapDir() string {
	return filepath.Join(l.Scratch, "share", "debootstrap")
}

// InScratch reports whether path is located within the scratch directory.
func (l Layout) InScratch(path string) bool {
	scratch := filepath.Clean(l.Scratch)
	path = filepath.Clean(path)
	return path == scratch || strings.HasPrefix(path, scratch+string(os.PathSeparator))
}
