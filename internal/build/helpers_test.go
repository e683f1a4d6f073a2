package build

import (
	"archive/tar"
	"bytes"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/debanywhere/debanywhere"
	"github.com/debanywhere/debanywhere/internal/env"
)

type file struct {
	name    string
	content string
	mode    int64
	link    string
}

func tarball(t *testing.T, files []file) []byte {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, f := range files {
		hdr := &tar.Header{
			Name:     f.name,
			Mode:     f.mode,
			Size:     int64(len(f.content)),
			Typeflag: tar.TypeReg,
		}
		if hdr.Mode == 0 {
			hdr.Mode = 0644
		}
		if f.link != "" {
			hdr.Typeflag = tar.TypeSymlink
			hdr.Linkname = f.link
			hdr.Size = 0
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		if f.link == "" {
			if _, err := tw.Write([]byte(f.content)); err != nil {
				t.Fatal(err)
			}
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// server serves files by URL path and counts requests.
type server struct {
	*httptest.Server
	requests int32
}

func serve(t *testing.T, files map[string][]byte) *server {
	t.Helper()
	s := &server{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&s.requests, 1)
		b, ok := files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write(b)
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *server) Requests() int32 { return atomic.LoadInt32(&s.requests) }

func writeScript(t *testing.T, fn, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(fn), 0755); err != nil {
		t.Fatal(err)
	}
	if err := ioutil.WriteFile(fn, []byte(content), 0755); err != nil {
		t.Fatal(err)
	}
}

// hostTools symlinks the named programs of the test process’s $PATH into
// dir, so that a test $PATH can provide coreutils without also providing
// e.g. the host’s make.
func hostTools(t *testing.T, dir string, programs ...string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	for _, p := range programs {
		path, err := exec.LookPath(p)
		if err != nil {
			t.Skipf("%s not available: %v", p, err)
		}
		if err := os.Symlink(path, filepath.Join(dir, p)); err != nil {
			t.Fatal(err)
		}
	}
}

// fakeMake records its arguments in $MAKE_LOG. "make install -C dir" installs
// dir/tool into the prefix which the fake configure script recorded.
const fakeMake = `#!/bin/sh
echo "$@" >> "$MAKE_LOG"
install=false
while [ $# -gt 0 ]; do
	case "$1" in
	install) install=true ;;
	-C) shift; dir="$1" ;;
	-j) shift ;;
	esac
	shift
done
if $install; then
	prefix=$(cat "$dir/prefix")
	mkdir -p "$prefix/bin"
	cp "$dir/tool" "$prefix/bin/tool"
	chmod 755 "$prefix/bin/tool"
fi
`

const fakeConfigure = `#!/bin/sh
[ "$1" = "--prefix" ] || exit 1
echo "$2" > prefix
pwd -P > configured-in
`

type testEnv struct {
	b       *Ctx
	layout  debanywhere.Layout
	hostBin string
	makeLog string
}

// newTestEnv returns a build context whose $PATH consists of the utils and
// scratch bin directories plus a host bin directory with basic tools.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	tmp := t.TempDir()
	layout := debanywhere.Layout{
		Target:  filepath.Join(tmp, "target"),
		Scratch: filepath.Join(tmp, "scratch"),
	}
	hostBin := filepath.Join(tmp, "host", "bin")
	hostTools(t, hostBin, "cat", "mkdir", "cp", "chmod")
	makeLog := filepath.Join(tmp, "make.log")
	environ := env.New([]string{"PATH=" + hostBin, "MAKE_LOG=" + makeLog})
	environ.PrependPath(layout.UtilsBinDir(), layout.ScratchBinDir())
	b := NewCtx(layout, environ)
	b.Stdout = ioutil.Discard
	b.Stderr = ioutil.Discard
	return &testEnv{
		b:       b,
		layout:  layout,
		hostBin: hostBin,
		makeLog: makeLog,
	}
}
