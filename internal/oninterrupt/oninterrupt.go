// Package oninterrupt runs cleanup handlers when the process receives SIGINT
// or SIGTERM, e.g. removing a process-owned scratch directory.
package oninterrupt

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
)

var (
	mu       sync.Mutex
	handlers []func()
	listen   sync.Once
)

// Register schedules cb to be run when the process is interrupted. Handlers
// run in reverse registration order, then the process exits with 128+signal.
func Register(cb func()) {
	listen.Do(notify)
	mu.Lock()
	defer mu.Unlock()
	handlers = append(handlers, cb)
}

func notify() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-c
		runHandlers()
		os.Exit(exitCode(sig))
	}()
}

func runHandlers() {
	mu.Lock()
	defer mu.Unlock()
	for i := len(handlers) - 1; i >= 0; i-- {
		handlers[i]()
	}
	handlers = nil
}

func exitCode(sig os.Signal) int {
	if s, ok := sig.(syscall.Signal); ok {
		return 128 + int(s)
	}
	return 1 // generic EXIT_FAILURE
}
