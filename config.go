// Package migwasm is the embedder-facing API: decode a WebAssembly 1.0
// binary, instantiate it, invoke its exports, and checkpoint/restore a
// suspended call across processes.
package migwasm

import (
	"context"
	"os"

	"github.com/sirupsen/logrus"
)

// RuntimeConfig controls Runtime behavior, built fluently from
// NewRuntimeConfig the way the teacher's own RuntimeConfig/builder pair
// works: every With* returns a shallow copy so a base config can be reused
// across several derived runtimes.
type RuntimeConfig struct {
	ctx context.Context
	log *logrus.Logger

	// dispatchLimit forces a checkpoint after this many opcode dispatches,
	// 0 disables it. Exists for deterministic interruption in tests and
	// migration drills (spec.md's Open Questions: test-only, unexported on
	// the executor itself).
	dispatchLimit uint64

	// imageDir records an image directory (the CLI's run subcommand sets it
	// from --image-dir). Runtime does not read it: Checkpoint and Restore
	// take an ImageStore argument instead.
	imageDir string

	// checkpointSignal is the OS signal that triggers an async checkpoint
	// request on a running Instance (spec.md §6 "Environment").
	checkpointSignal os.Signal

	restore bool
}

// NewRuntimeConfig returns the default configuration: background context,
// a logrus logger at Info level writing to stderr, no forced dispatch
// limit, no signal wired up.
func NewRuntimeConfig() *RuntimeConfig {
	log := logrus.New()
	log.SetLevel(logrus.InfoLevel)
	return &RuntimeConfig{
		ctx: context.Background(),
		log: log,
	}
}

func (c *RuntimeConfig) clone() *RuntimeConfig {
	ret := *c
	return &ret
}

// WithContext sets the context stored on the config. Runtime, Instantiate
// and Invoke do not read it.
func (c *RuntimeConfig) WithContext(ctx context.Context) *RuntimeConfig {
	if ctx == nil {
		ctx = context.Background()
	}
	ret := c.clone()
	ret.ctx = ctx
	return ret
}

// WithLogger overrides the logrus.Logger used for checkpoint/restore
// lifecycle events and trap summaries.
func (c *RuntimeConfig) WithLogger(log *logrus.Logger) *RuntimeConfig {
	ret := c.clone()
	ret.log = log
	return ret
}

// WithDispatchLimit forces a suspension after n opcode dispatches. Intended
// for tests and migration drills that need a deterministic interruption
// point; production embedders should use WithCheckpointSignal instead.
func (c *RuntimeConfig) WithDispatchLimit(n uint64) *RuntimeConfig {
	ret := c.clone()
	ret.dispatchLimit = n
	return ret
}

// WithImageDir sets the config's image directory. Runtime does not read it;
// Checkpoint and Restore take an ImageStore argument instead.
func (c *RuntimeConfig) WithImageDir(dir string) *RuntimeConfig {
	ret := c.clone()
	ret.imageDir = dir
	return ret
}

// WithCheckpointSignal arms an os/signal handler that calls
// Instance.RequestCheckpoint when sig is received (spec.md §6
// "Environment": SIGINT-style suspend-and-dump).
func (c *RuntimeConfig) WithCheckpointSignal(sig os.Signal) *RuntimeConfig {
	ret := c.clone()
	ret.checkpointSignal = sig
	return ret
}

// WithRestore marks this config as resuming from an image rather than
// starting a fresh instantiation. Runtime.Instantiate consults this to
// decide whether to run the start function; data/element segments are
// applied either way.
func (c *RuntimeConfig) WithRestore(restore bool) *RuntimeConfig {
	ret := c.clone()
	ret.restore = restore
	return ret
}
