package bootstrap

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestChrootScript(t *testing.T) {
	got, err := ChrootScript("/tmp/x", "/tmp/x/utils/bin/fakeroot", "/tmp/x/utils/bin/fakechroot")
	if err != nil {
		t.Fatal(err)
	}
	want := `PATH=/tmp/x/utils/bin:$PATH
/tmp/x/utils/bin/fakeroot /tmp/x/utils/bin/fakechroot chroot /tmp/x/root $@
`
	if diff := cmp.Diff(want, string(got)); diff != "" {
		t.Errorf("ChrootScript(): diff (-want +got):\n%s", diff)
	}
}

func TestWriteChrootScript(t *testing.T) {
	target := t.TempDir()
	fakeroot := filepath.Join(target, "utils", "bin", "fakeroot")
	fakechroot := filepath.Join(target, "utils", "bin", "fakechroot")
	// Writing twice must not accumulate script bodies.
	for i := 0; i < 2; i++ {
		if err := WriteChrootScript(target, fakeroot, fakechroot); err != nil {
			t.Fatal(err)
		}
	}
	fn := filepath.Join(target, "chroot.sh")
	got, err := ioutil.ReadFile(fn)
	if err != nil {
		t.Fatal(err)
	}
	want, err := ChrootScript(target, fakeroot, fakechroot)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(string(want), string(got)); diff != "" {
		t.Errorf("chroot.sh: diff (-want +got):\n%s", diff)
	}
	fi, err := os.Stat(fn)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := fi.Mode().Perm(), os.FileMode(0700); got != want {
		t.Errorf("chroot.sh mode = %v, want %v", got, want)
	}
}
