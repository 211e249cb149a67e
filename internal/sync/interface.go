package sync

import (
	"context"

	"github.com/simplebaby/babysync/internal/schema"
)

// Engine brings the local mirror and the remote store for one log table into
// agreement, accounting every attempted transfer.
//
// The engine is resilient: individual record failures are counted in the
// Report and do not stop the pass. It is the caller's job to serialize
// passes for the same table; invoking Synchronize concurrently with itself
// or with direct writes to the same table is not supported.
type Engine interface {
	// Synchronize runs one upload-then-download pass for the table,
	// scoped to the child.
	//
	// childID must be a resolved, non-empty identifier (see
	// session.Resolver); an empty childID fails fast with a *SetupError
	// before any I/O.
	//
	// Both remote calls and local transactions block on I/O, so callers
	// treat Synchronize as a long-running operation and run it off any
	// latency-sensitive path. A caller-level timeout on ctx may leave a
	// pass partially applied; that is safe, because re-invocation only
	// touches records still pending.
	Synchronize(ctx context.Context, table *schema.Table, childID string) (*Report, error)
}
