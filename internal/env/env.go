// Package env holds the environment which a bootstrap run passes to its
// subprocesses. Nothing in this package modifies the process environment.
package env

import (
	"os"
	"path/filepath"
	"strings"
)

// Environ is an ordered list of KEY=VALUE pairs. It is not safe for
// concurrent modification.
type Environ struct {
	vars []string
}

// New returns an Environ containing a copy of kv. Of duplicate keys, the
// last value wins, as it would for exec.Cmd.Env.
func New(kv []string) *Environ {
	e := &Environ{vars: make([]string, 0, len(kv))}
	for _, v := range kv {
		idx := strings.IndexByte(v, '=')
		if idx == -1 {
			e.vars = append(e.vars, v)
			continue
		}
		e.Set(v[:idx], v[idx+1:])
	}
	return e
}

// FromOS returns an Environ initialized from os.Environ().
func FromOS() *Environ {
	return New(os.Environ())
}

func (e *Environ) index(key string) int {
	for i, kv := range e.vars {
		if strings.HasPrefix(kv, key+"=") {
			return i
		}
	}
	return -1
}

// Lookup returns the value of key and whether it is set.
func (e *Environ) Lookup(key string) (string, bool) {
	if i := e.index(key); i > -1 {
		return strings.TrimPrefix(e.vars[i], key+"="), true
	}
	return "", false
}

// Get returns the value of key, or the empty string if it is unset.
func (e *Environ) Get(key string) string {
	v, _ := e.Lookup(key)
	return v
}

func (e *Environ) Set(key, value string) {
	kv := key + "=" + value
	if i := e.index(key); i > -1 {
		e.vars[i] = kv
		return
	}
	e.vars = append(e.vars, kv)
}

func (e *Environ) Unset(key string) {
	if i := e.index(key); i > -1 {
		e.vars = append(e.vars[:i], e.vars[i+1:]...)
	}
}

// Scoped sets key to value and returns a function which restores the previous
// state (including key being unset). Use with defer.
func (e *Environ) Scoped(key, value string) (restore func()) {
	old, ok := e.Lookup(key)
	e.Set(key, value)
	return func() {
		if ok {
			e.Set(key, old)
		} else {
			e.Unset(key)
		}
	}
}

// Path returns the directories of $PATH, in order.
func (e *Environ) Path() []string {
	path, ok := e.Lookup("PATH")
	if !ok {
		return nil
	}
	return filepath.SplitList(path)
}

// PrependPath places dirs in front of the existing $PATH entries.
func (e *Environ) PrependPath(dirs ...string) {
	parts := append([]string(nil), dirs...)
	if path, ok := e.Lookup("PATH"); ok && path != "" {
		parts = append(parts, path)
	}
	e.Set("PATH", strings.Join(parts, string(os.PathListSeparator)))
}

// Slice returns a copy of the KEY=VALUE pairs, suitable for exec.Cmd.Env.
func (e *Environ) Slice() []string {
	return append([]string(nil), e.vars...)
}
