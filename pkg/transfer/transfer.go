// Package transfer drives a bounded-concurrency set of file copies through
// an injected Copier, retries transient failures a limited number of times,
// and reports which items succeeded, which failed for good, and which were
// never dispatched.
package transfer

import (
	"context"
	"io"
	"time"
)

// Item is one unit of copy work. Immutable once created.
type Item struct {
	// LFN is the catalog-level identifier, used for progress output and
	// resume lists.
	LFN string
	// Source is the full source URI handed to the copy tool.
	Source string
	// Dest is the local destination path.
	Dest string
	// Size is the expected size in bytes, 0 if unknown.
	Size int64
}

// Copier is the injected copy capability. Implementations wrap the
// external copy tool or an SDK client; the orchestrator only sees the
// returned error and its classification.
type Copier interface {
	Copy(ctx context.Context, item Item) error
}

// CopierFunc adapts a function to the Copier interface.
type CopierFunc func(ctx context.Context, item Item) error

func (f CopierFunc) Copy(ctx context.Context, item Item) error {
	return f(ctx, item)
}

// Class is the terminal classification of one item.
type Class int

const (
	// Succeeded means the copy completed.
	Succeeded Class = iota
	// FailedFatal means the item failed fatally, or exhausted its
	// retry budget.
	FailedFatal
)

func (c Class) String() string {
	switch c {
	case Succeeded:
		return "succeeded"
	case FailedFatal:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is the terminal outcome of one item.
type Result struct {
	Item     Item
	Class    Class
	Attempts int
	// Err is the last error for failed items, nil on success.
	Err error
	// Duration is the wall time of the last attempt.
	Duration time.Duration
}

// Report is the outcome of one orchestrator run. Every input item appears
// in exactly one of Succeeded, Failed, or Pending.
type Report struct {
	RunID     string
	Succeeded []Result
	Failed    []Result
	// Pending holds items that were never dispatched (or not terminally
	// classified) before cancellation, in their original relative order.
	// They can be resubmitted to a later run unchanged.
	Pending []Item
	Elapsed time.Duration
}

// Total returns the number of items accounted for.
func (r *Report) Total() int {
	return len(r.Succeeded) + len(r.Failed) + len(r.Pending)
}

// AllDone reports whether every item succeeded.
func (r *Report) AllDone() bool {
	return len(r.Failed) == 0 && len(r.Pending) == 0
}

// BytesCopied sums the sizes of the succeeded items.
func (r *Report) BytesCopied() int64 {
	var n int64
	for _, res := range r.Succeeded {
		n += res.Item.Size
	}
	return n
}

// WritePending writes the pending LFNs one per line, in a form a later
// run accepts as an input list.
func (r *Report) WritePending(w io.Writer) error {
	for _, item := range r.Pending {
		if _, err := io.WriteString(w, item.LFN+"\n"); err != nil {
			return err
		}
	}
	return nil
}
