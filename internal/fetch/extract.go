package fetch

import (
	"archive/tar"
	"bufio"
	"bytes"
	"compress/bzip2"
	"fmt"
	"io"
	"log"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"
	"github.com/ulikunitz/xz"
	"golang.org/x/xerrors"
)

// UnsafePathError is returned for an archive member whose name (or link
// target) would resolve outside of the extraction directory.
type UnsafePathError struct {
	Name string
}

func (e *UnsafePathError) Error() string {
	return fmt.Sprintf("unsafe path in archive: %q", e.Name)
}

type compression int

const (
	uncompressed compression = iota
	gzipped
	bzipped
	xzipped
	zstandard
)

var magics = []struct {
	magic []byte
	c     compression
}{
	{[]byte{0x1f, 0x8b}, gzipped},
	{[]byte("BZh"), bzipped},
	{[]byte{0xfd, '7', 'z', 'X', 'Z', 0x00}, xzipped},
	{[]byte{0x28, 0xb5, 0x2f, 0xfd}, zstandard},
}

// ustarMagicOffset is where tar headers in USTAR, PAX and GNU format carry
// the "ustar" magic.
const ustarMagicOffset = 257

// detect identifies the compression of br by its magic bytes, falling back to
// the file name suffix.
func detect(br *bufio.Reader, fn string) compression {
	head, _ := br.Peek(ustarMagicOffset + len("ustar"))
	for _, m := range magics {
		if bytes.HasPrefix(head, m.magic) {
			return m.c
		}
	}
	if len(head) > ustarMagicOffset && bytes.HasPrefix(head[ustarMagicOffset:], []byte("ustar")) {
		return uncompressed
	}
	switch {
	case strings.HasSuffix(fn, ".gz") || strings.HasSuffix(fn, ".tgz"):
		return gzipped
	case strings.HasSuffix(fn, ".bz2"):
		return bzipped
	case strings.HasSuffix(fn, ".xz"):
		return xzipped
	case strings.HasSuffix(fn, ".zst"):
		return zstandard
	}
	return uncompressed
}

// openTar opens fn as a (possibly compressed) tar archive. The returned
// closer must be called when done.
func openTar(fn string) (*tar.Reader, func(), error) {
	f, err := os.Open(fn)
	if err != nil {
		return nil, nil, err
	}
	br := bufio.NewReader(f)
	var r io.Reader = br
	closer := func() { f.Close() }
	switch detect(br, fn) {
	case gzipped:
		gz, err := pgzip.NewReader(br)
		if err != nil {
			f.Close()
			return nil, nil, xerrors.Errorf("gzip: %w", err)
		}
		r = gz
		closer = func() { gz.Close(); f.Close() }
	case bzipped:
		r = bzip2.NewReader(br)
	case xzipped:
		xr, err := xz.NewReader(br)
		if err != nil {
			f.Close()
			return nil, nil, xerrors.Errorf("xz: %w", err)
		}
		r = xr
	case zstandard:
		zr, err := zstd.NewReader(br)
		if err != nil {
			f.Close()
			return nil, nil, xerrors.Errorf("zstd: %w", err)
		}
		r = zr
		closer = func() { zr.Close(); f.Close() }
	}
	return tar.NewReader(r), closer, nil
}

// within reports whether name, relative to the extraction root, stays inside
// of the root once normalized.
func within(name string) bool {
	if name == "" || strings.HasPrefix(name, "/") || filepath.IsAbs(name) {
		return false
	}
	clean := filepath.Clean(name)
	return clean != ".." && !strings.HasPrefix(clean, "../")
}

// maxSymlinkHops bounds symlink resolution, like the kernel's ELOOP limit.
const maxSymlinkHops = 40

// linkTree tracks the symlinks among the archive members seen so far, so that
// member names resolve the way the file system will resolve them once the
// preceding members are extracted.
type linkTree struct {
	symlinks map[string]string // root-relative location → link target
}

func newLinkTree() *linkTree {
	return &linkTree{symlinks: make(map[string]string)}
}

// resolve returns the root-relative location name refers to. Symlinks are
// followed in every component but the last, unless followLast is set. ok is
// false if the location is outside of the root.
func (lt *linkTree) resolve(name string, followLast bool) (_ string, ok bool) {
	pending := strings.Split(name, "/")
	var resolved []string
	hops := 0
	for len(pending) > 0 {
		c := pending[0]
		pending = pending[1:]
		switch c {
		case "", ".":
			continue
		case "..":
			if len(resolved) == 0 {
				return "", false
			}
			resolved = resolved[:len(resolved)-1]
			continue
		}
		cur := path.Join(append(resolved, c)...)
		target, isLink := lt.symlinks[cur]
		if !isLink || (len(pending) == 0 && !followLast) {
			resolved = append(resolved, c)
			continue
		}
		if hops++; hops > maxSymlinkHops || path.IsAbs(target) {
			return "", false
		}
		pending = append(strings.Split(target, "/"), pending...)
	}
	return path.Join(resolved...), true
}

// check returns an *UnsafePathError if extracting hdr, after all preceding
// members, could write outside of the extraction root.
func (lt *linkTree) check(hdr *tar.Header) error {
	if !within(hdr.Name) {
		return &UnsafePathError{Name: hdr.Name}
	}
	// Names are cleaned lexically, as the extractor does.
	loc, ok := lt.resolve(path.Clean(hdr.Name), false)
	if !ok {
		return &UnsafePathError{Name: hdr.Name}
	}
	delete(lt.symlinks, loc) // replaced by this member
	switch hdr.Typeflag {
	case tar.TypeLink:
		if _, ok := lt.resolve(path.Clean(hdr.Linkname), true); !ok || !within(hdr.Linkname) {
			return &UnsafePathError{Name: hdr.Name + " => " + hdr.Linkname}
		}
	case tar.TypeSymlink:
		// Symlink targets are relative to the directory containing the link.
		if path.IsAbs(hdr.Linkname) {
			return &UnsafePathError{Name: hdr.Name + " -> " + hdr.Linkname}
		}
		if _, ok := lt.resolve(path.Dir(loc)+"/"+hdr.Linkname, true); !ok {
			return &UnsafePathError{Name: hdr.Name + " -> " + hdr.Linkname}
		}
		lt.symlinks[loc] = hdr.Linkname
	}
	return nil
}

// finish re-resolves all symlinks against the complete archive: a link which
// was harmless when extracted can escape once a later member turns one of
// its components into a symlink.
func (lt *linkTree) finish() error {
	for loc, target := range lt.symlinks {
		if _, ok := lt.resolve(loc, true); !ok {
			return &UnsafePathError{Name: loc + " -> " + target}
		}
	}
	return nil
}

// Check lists all members of the archive fn and returns an error if any of
// them is unsafe to extract, taking into account symlinks created by earlier
// members.
func Check(fn string) error {
	tr, closer, err := openTar(fn)
	if err != nil {
		return err
	}
	defer closer()
	lt := newLinkTree()
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return lt.finish()
		}
		if err != nil {
			return xerrors.Errorf("reading tar: %w", err)
		}
		if hdr.Typeflag == tar.TypeXGlobalHeader {
			continue
		}
		if err := lt.check(hdr); err != nil {
			return err
		}
	}
}

// isWithin reports whether the absolute path p is dir or located below it.
func isWithin(p, dir string) bool {
	return p == dir || strings.HasPrefix(p, dir+string(os.PathSeparator))
}

// extractor writes archive members below root, which must not contain
// symlinks itself.
type extractor struct {
	root string
}

// parent creates the parent directory of name one component at a time and
// returns its resolved location. Symlinks extracted earlier must not redirect
// writes (or directory creation) outside of the root.
func (x *extractor) parent(name string) (string, error) {
	dir := x.root
	for _, c := range strings.Split(filepath.Dir(filepath.Clean(name)), "/") {
		if c == "" || c == "." {
			continue
		}
		next := filepath.Join(dir, c)
		fi, err := os.Lstat(next)
		switch {
		case os.IsNotExist(err):
			if err := os.Mkdir(next, 0755); err != nil {
				return "", err
			}
		case err != nil:
			return "", err
		case fi.Mode()&os.ModeSymlink != 0:
			resolved, err := filepath.EvalSymlinks(next)
			if err != nil {
				return "", err
			}
			if !isWithin(resolved, x.root) {
				return "", &UnsafePathError{Name: name}
			}
			next = resolved
		case !fi.IsDir():
			return "", xerrors.Errorf("%s: not a directory", next)
		}
		dir = next
	}
	return dir, nil
}

// target returns the location at which name should be created, after
// removing a non-directory which might be in the way (e.g. from extracting the
// same archive into a caller-supplied scratch directory before).
func (x *extractor) target(name string) (string, error) {
	parent, err := x.parent(name)
	if err != nil {
		return "", err
	}
	target := filepath.Join(parent, filepath.Base(filepath.Clean(name)))
	if fi, err := os.Lstat(target); err == nil && !fi.IsDir() {
		if err := os.Remove(target); err != nil {
			return "", err
		}
	}
	return target, nil
}

// Extract unpacks the tar archive fn (gzip, bzip2, xz, zstd or uncompressed)
// into dest. All member names are verified before the first file is written:
// an archive containing an unsafe member leaves dest untouched.
func Extract(fn, dest string) error {
	if err := Check(fn); err != nil {
		return err
	}
	if err := os.MkdirAll(dest, 0755); err != nil {
		return err
	}
	root, err := filepath.Abs(dest)
	if err != nil {
		return err
	}
	root, err = filepath.EvalSymlinks(root)
	if err != nil {
		return err
	}
	x := &extractor{root: root}
	lt := newLinkTree()

	tr, closer, err := openTar(fn)
	if err != nil {
		return err
	}
	defer closer()

	type dirTime struct {
		path  string
		mtime time.Time
	}
	var dirs []dirTime
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return xerrors.Errorf("reading tar: %w", err)
		}
		if hdr.Typeflag == tar.TypeXGlobalHeader {
			continue
		}
		if err := lt.check(hdr); err != nil {
			return err // archive changed between Check and Extract?
		}
		if filepath.Clean(hdr.Name) == "." {
			continue // e.g. ./ as the first member
		}
		mode := os.FileMode(hdr.Mode).Perm()
		switch hdr.Typeflag {
		case tar.TypeDir:
			target, err := x.target(hdr.Name)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}
			if err := os.Chmod(target, mode|0700); err != nil {
				return err
			}
			dirs = append(dirs, dirTime{target, hdr.ModTime})

		case tar.TypeReg, tar.TypeRegA:
			target, err := x.target(hdr.Name)
			if err != nil {
				return err
			}
			if err := writeFile(target, tr, mode); err != nil {
				return err
			}
			// configure and make compare timestamps, e.g. to decide
			// whether to re-run automake.
			if err := os.Chtimes(target, hdr.ModTime, hdr.ModTime); err != nil {
				return err
			}

		case tar.TypeSymlink:
			target, err := x.target(hdr.Name)
			if err != nil {
				return err
			}
			if err := os.Symlink(hdr.Linkname, target); err != nil {
				return err
			}

		case tar.TypeLink:
			target, err := x.target(hdr.Name)
			if err != nil {
				return err
			}
			src, err := filepath.EvalSymlinks(filepath.Join(x.root, hdr.Linkname))
			if err != nil {
				return err
			}
			if !isWithin(src, x.root) {
				return &UnsafePathError{Name: hdr.Name + " => " + hdr.Linkname}
			}
			if err := os.Link(src, target); err != nil {
				return err
			}

		default:
			log.Printf("skipping %s: unsupported tar type %q", hdr.Name, hdr.Typeflag)
		}
	}
	// Directory mtimes change as entries are created within them, so set
	// them last.
	for i := len(dirs) - 1; i >= 0; i-- {
		if err := os.Chtimes(dirs[i].path, dirs[i].mtime, dirs[i].mtime); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(fn string, r io.Reader, mode os.FileMode) error {
	f, err := os.OpenFile(fn, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		return err
	}
	if err := f.Chmod(mode); err != nil {
		return err
	}
	return f.Close()
}
