package build

import (
	"context"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
)

// Edit is one modification of an extracted source tree.
type Edit interface {
	apply(ctx context.Context, b *Ctx, src string) error
	fmt.Stringer
}

// AppendURL appends the contents of URL to File, e.g. to pull in a source
// file from an upstream commit which is not yet part of a release.
type AppendURL struct {
	File string // relative to the source directory
	URL  string
}

func (a AppendURL) String() string { return fmt.Sprintf("append %s to %s", a.URL, a.File) }

func (a AppendURL) apply(ctx context.Context, b *Ctx, src string) error {
	content, err := b.Fetcher.Get(ctx, a.URL)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(filepath.Join(src, a.File), os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.Write(content); err != nil {
		return err
	}
	return f.Close()
}

// Substitute replaces the first occurrence of the literal substring Old on
// every line of File with New. Old is not a pattern: a . only matches a dot.
// New may contain newlines.
type Substitute struct {
	File string // relative to the source directory
	Old  string
	New  string
}

func (s Substitute) String() string {
	return fmt.Sprintf("substitute %q with %q in %s", s.Old, s.New, s.File)
}

func (s Substitute) apply(ctx context.Context, b *Ctx, src string) error {
	fn := filepath.Join(src, s.File)
	fi, err := os.Stat(fn)
	if err != nil {
		return err
	}
	content, err := ioutil.ReadFile(fn)
	if err != nil {
		return err
	}
	lines := strings.Split(string(content), "\n")
	for i, line := range lines {
		lines[i] = strings.Replace(line, s.Old, s.New, 1)
	}
	return ioutil.WriteFile(fn, []byte(strings.Join(lines, "\n")), fi.Mode().Perm())
}
