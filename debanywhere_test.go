package debanywhere

import "testing"

func TestLayout(t *testing.T) {
	l := Layout{Target: "/tmp/x", Scratch: "/tmp/scratch"}
	for _, tt := range []struct {
		got, want string
	}{
		{l.UtilsBinDir(), "/tmp/x/utils/bin"},
		{l.RootDir(), "/tmp/x/root"},
		{l.ScriptPath(), "/tmp/x/chroot.sh"},
		{l.ScratchBinDir(), "/tmp/scratch/bin"},
		{l.DebootstrapDir(), "/tmp/scratch/share/debootstrap"},
	} {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}

func TestInScratch(t *testing.T) {
	l := Layout{Target: "/tmp/x", Scratch: "/tmp/scratch"}
	for _, tt := range []struct {
		path string
		want bool
	}{
		{"/tmp/scratch/bin/debootstrap", true},
		{"/tmp/scratch", true},
		{"/tmp/scratch2/bin/debootstrap", false},
		{"/usr/sbin/debootstrap", false},
	} {
		if got := l.InScratch(tt.path); got != tt.want {
			t.Errorf("InScratch(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}
