// Package trace records the steps of a bootstrap run (downloads, extraction,
// patching, configure/make invocations) in the Chrome trace event format, so
// that slow steps can be spotted in chrome://tracing.
package trace

import (
	"encoding/json"
	"io"
	"io/ioutil"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// https://docs.google.com/document/d/1CvAClvFfyA5R-PhYUmn5OOQtYMH4h6I0nSsKchNAySU/edit

var start = time.Now()

var (
	sinkMu sync.Mutex
	sink   io.Writer = ioutil.Discard
)

// Sink writes all following events into w as a JSON array.
func Sink(w io.Writer) {
	sinkMu.Lock()
	defer sinkMu.Unlock()
	sink = w
	// The closing ] is optional in the JSON Array Format, so we skip it.
	w.Write([]byte{'['})
}

// Enable creates fn and directs all following events into it. The returned
// function closes the file.
func Enable(fn string) (func() error, error) {
	if err := os.MkdirAll(filepath.Dir(fn), 0755); err != nil {
		return nil, err
	}
	f, err := os.Create(fn)
	if err != nil {
		return nil, err
	}
	Sink(f)
	return func() error {
		sinkMu.Lock()
		defer sinkMu.Unlock()
		sink = ioutil.Discard
		return f.Close()
	}, nil
}

type PendingEvent struct {
	Name           string            `json:"name"` // as displayed in Trace Viewer
	Categories     string            `json:"cat"`  // comma-separated
	Type           string            `json:"ph"`   // event type (single character)
	ClockTimestamp uint64            `json:"ts"`   // microseconds since process start
	Duration       uint64            `json:"dur"`
	Pid            uint64            `json:"pid"`
	Tid            uint64            `json:"tid"`
	Args           map[string]string `json:"args,omitempty"`

	start time.Time
}

// Arg attaches a key/value pair which Trace Viewer shows in the event details.
func (pe *PendingEvent) Arg(key, value string) *PendingEvent {
	if pe.Args == nil {
		pe.Args = make(map[string]string)
	}
	pe.Args[key] = value
	return pe
}

// Done records the duration of the event and writes it to the sink.
func (pe *PendingEvent) Done() {
	pe.Duration = uint64(time.Since(pe.start) / time.Microsecond)
	b, err := json.Marshal(pe)
	if err != nil {
		panic(err)
	}
	sinkMu.Lock()
	defer sinkMu.Unlock()
	if _, err := sink.Write(append(b, ',')); err != nil {
		log.Printf("[trace] %v", err)
	}
}

// Event starts a complete event (type X) named name.
func Event(name, categories string) *PendingEvent {
	return &PendingEvent{
		Name:           name,
		Categories:     categories,
		Type:           "X",
		ClockTimestamp: uint64(time.Since(start) / time.Microsecond),
		Pid:            uint64(os.Getpid()),
		start:          time.Now(),
	}
}
