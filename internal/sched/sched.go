// Copyright 2026 The mk Authors
// SPDX-License-Identifier: Apache-2.0

package sched

import (
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// SelfReentry, when non-nil, lets Call detect a recipe that invokes the
// tool's own binary and re-enter it in-process instead of spawning a
// child, per spec.md §4.9 ("reuses the current Context"). It receives the
// full argv (with argv[0] stripped to the bare invocation) and returns
// whether it ran the sub-make and that sub-make's error, or ok=false if
// this wasn't a self-invocation after all.
type SelfReentry func(argv []string, env []string, cwd string) (ran bool, err error)

// Context is one scheduler job-slot budget: a job count, a FIFO of
// deferred start thunks, and the set of currently running children
// (tracked only as a count — completions arrive on done regardless of
// FIFO order, matching spec.md §4.9's "wait for any child").
//
// Go's os/exec has no "wait for any of N children" primitive the way
// POSIX wait() does, so each running child is waited on by its own
// goroutine that reports completion on the shared done channel; spin is
// still the sole consumer of that channel and the only place callbacks
// run, preserving §5's single-event-loop/no-lock invariant for all
// engine-visible state.
type Context struct {
	jcount  int
	mu      sync.Mutex
	pending []func()
	running int

	done chan result

	Self SelfReentry
}

type result struct {
	ctx *Context
	cb  func(error)
	err error
}

// NewContext creates a Context with the given job-count budget (at least 1).
func NewContext(jcount int) *Context {
	if jcount < 1 {
		jcount = 1
	}
	return &Context{jcount: jcount, done: make(chan result)}
}

// Call implements spec.md §4.9's call(argv, shell, env, cwd, echo, cb):
// dispatch immediately if a job slot is free, else queue until spin()
// drains the pending FIFO.
func (c *Context) Call(argv []string, useShell bool, env []string, cwd string, echo bool, cb func(error)) {
	start := func() {
		c.mu.Lock()
		c.running++
		c.mu.Unlock()
		go c.runOne(argv, useShell, env, cwd, cb)
	}
	c.mu.Lock()
	free := c.running < c.jcount
	if !free {
		c.pending = append(c.pending, start)
	}
	c.mu.Unlock()
	if free {
		start()
	}
}

func (c *Context) runOne(argv []string, useShell bool, env []string, cwd string, cb func(error)) {
	err := c.invoke(argv, useShell, env, cwd)
	c.done <- result{ctx: c, cb: cb, err: err}
}

func (c *Context) invoke(argv []string, useShell bool, env []string, cwd string) error {
	if !useShell && c.Self != nil {
		if ran, err := c.Self(argv, env, cwd); ran {
			return err
		}
	}

	var cmd *exec.Cmd
	if useShell {
		shellBin := os.Getenv("SHELL")
		if shellBin == "" {
			shellBin = "/bin/sh"
		}
		line := ""
		if len(argv) > 0 {
			line = argv[0]
		}
		cmd = exec.Command(shellBin, "-c", line)
	} else {
		if len(argv) == 0 {
			return nil
		}
		cmd = exec.Command(argv[0], argv[1:]...)
	}
	cmd.Env = env
	cmd.Dir = cwd
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return errors.Wrapf(err, "command %q", strings.Join(argv, " "))
	}
	return nil
}

// spin drains this Context's pending FIFO while running < jcount, and
// reports whether it has any outstanding children to wait on.
func (c *Context) spin() bool {
	c.mu.Lock()
	for len(c.pending) > 0 && c.running < c.jcount {
		next := c.pending[0]
		c.pending = c.pending[1:]
		c.mu.Unlock()
		next()
		c.mu.Lock()
	}
	hasRunning := c.running > 0 || len(c.pending) > 0
	c.mu.Unlock()
	return hasRunning
}

// Registry is the process-wide set of Contexts, per spec.md §4.9 ("the
// scheduler set is process-wide").
type Registry struct {
	mu    sync.Mutex
	ctxs  []*Context
}

func NewRegistry() *Registry { return &Registry{} }

func (reg *Registry) Add(c *Context) {
	reg.mu.Lock()
	reg.ctxs = append(reg.ctxs, c)
	reg.mu.Unlock()
}

// Spin runs the event loop (spec.md §4.9's spin()) until every registered
// Context has drained its pending FIFO and has no running children.
func (reg *Registry) Spin() {
	reg.mu.Lock()
	ctxs := append([]*Context(nil), reg.ctxs...)
	reg.mu.Unlock()

	merged := mergedDone(ctxs)
	for {
		anyActive := false
		for _, c := range ctxs {
			if c.spin() {
				anyActive = true
			}
		}
		if !anyActive {
			return
		}
		res := <-merged
		res.ctx.mu.Lock()
		res.ctx.running--
		res.ctx.mu.Unlock()
		res.cb(res.err)
	}
}

// mergedDone fans in every Context's done channel into one, since Spin
// must wait for a completion from any of them. With a single Context
// (the common case — one job budget for the whole run) this is a
// pass-through; multiple Contexts arise when a "-j 1" sub-make nests
// under a parallel parent and gets its own budget (spec.md §5).
func mergedDone(ctxs []*Context) <-chan result {
	if len(ctxs) == 1 {
		return ctxs[0].done
	}
	out := make(chan result)
	for _, c := range ctxs {
		go func(c *Context) {
			for r := range c.done {
				out <- r
			}
		}(c)
	}
	return out
}
