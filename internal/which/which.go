// Package which locates executables like which(1).
package which

import (
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"
)

// isExecutable reports whether fn is a regular file which the current user
// may execute.
func isExecutable(fn string) bool {
	fi, err := os.Stat(fn)
	if err != nil || !fi.Mode().IsRegular() {
		return false
	}
	return unix.Access(fn, unix.X_OK) == nil
}

// unquote strips one layer of double quotes, e.g. from PATH="/opt/my bin".
func unquote(dir string) string {
	if len(dir) >= 2 && strings.HasPrefix(dir, `"`) && strings.HasSuffix(dir, `"`) {
		return dir[1 : len(dir)-1]
	}
	return dir
}

// Lookup returns the location of program. If program contains a slash, it is
// returned as-is provided it is executable. Otherwise, each directory of path
// is searched in order.
//
// A program which cannot be found is not an error: ok is false.
func Lookup(program string, path []string) (_ string, ok bool) {
	if strings.ContainsRune(program, os.PathSeparator) {
		if isExecutable(program) {
			return program, true
		}
		return "", false
	}
	for _, dir := range path {
		dir = unquote(dir)
		if dir == "" {
			dir = "."
		}
		fn := filepath.Join(dir, program)
		if isExecutable(fn) {
			return fn, true
		}
	}
	return "", false
}

// Installed reports whether program can be found in path.
func Installed(program string, path []string) bool {
	_, ok := Lookup(program, path)
	return ok
}
