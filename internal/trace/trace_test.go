package trace

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestEvents(t *testing.T) {
	var buf bytes.Buffer
	Sink(&buf)
	Event("configure fakeroot", "build").Arg("dir", "/tmp/fakeroot-1.20.2").Done()
	Event("make fakeroot", "build").Done()

	// Complete the optional closing bracket for decoding.
	doc := strings.TrimSuffix(buf.String(), ",") + "]"
	var events []PendingEvent
	if err := json.Unmarshal([]byte(doc), &events); err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, ev := range events {
		names = append(names, ev.Name)
		if ev.Type != "X" {
			t.Errorf("event %q: type = %q, want X", ev.Name, ev.Type)
		}
	}
	want := []string{"configure fakeroot", "make fakeroot"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("unexpected events: diff (-want +got):\n%s", diff)
	}
	if got, want := events[0].Args["dir"], "/tmp/fakeroot-1.20.2"; got != want {
		t.Errorf("args[dir] = %q, want %q", got, want)
	}
}
