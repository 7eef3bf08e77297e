// Package walktree walks a directory tree in parallel while yielding
// entries to the caller in the same order a sequential depth-first walk
// would produce them.
package walktree

import "github.com/arborfs/walktree/internal/core"

// ErrorKind classifies the error shapes a walk can surface: a failed
// filesystem operation, a symlink cycle, or a worker pool that did not
// accept the startup probe within its busy_timeout.
type ErrorKind = core.ErrorKind

const (
	KindIO       = core.KindIO
	KindCycle    = core.KindCycle
	KindPoolBusy = core.KindPoolBusy
)

// Error is the structured error type returned by this package. Path and
// Depth locate the failure; Cause is the underlying error and is
// reachable through errors.Unwrap. AncestorPath is populated only for
// KindCycle.
type Error = core.Error
