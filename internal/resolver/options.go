package resolver

import (
	"time"

	"github.com/alvarorichard/vidresolve/internal/keycache"
)

// Defaults applied to zero Options fields
const (
	DefaultTimeout    = 20 * time.Second
	DefaultMaxWorkers = 8
	DefaultKeyTTL     = 2 * time.Minute
)

// Options tunes a Resolver. The zero value is usable.
type Options struct {
	// Timeout bounds each job of ResolveAll unless the job sets its own.
	// The clock starts when the job gets a worker, not when the batch starts.
	Timeout time.Duration
	// MaxWorkers bounds how many jobs run at once. Queued jobs wait for a free
	// worker, so with more jobs than workers a hanging host delays the jobs
	// behind it by up to its own timeout; bound the whole batch through the
	// context passed to ResolveAll when that matters.
	MaxWorkers int
	// KeyTTL is how long a fetched password stays in the batch key cache
	KeyTTL time.Duration
	// Clock drives key cache expiry; time.Now when nil
	Clock keycache.Clock
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.MaxWorkers <= 0 {
		o.MaxWorkers = DefaultMaxWorkers
	}
	if o.KeyTTL <= 0 {
		o.KeyTTL = DefaultKeyTTL
	}
	return o
}
