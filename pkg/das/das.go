// Package das queries the CMS Data Aggregation System for dataset
// metadata. The catalog itself is an external service; this package only
// knows how to ask it questions through the dasgoclient command-line
// tool and parse the answers.
package das

import (
	"context"
	"errors"

	"github.com/hep-ops/gridsync/pkg/lumi"
)

// DefaultInstance is the DBS instance queries go to unless told otherwise.
const DefaultInstance = "prod/global"

// Client is the read-only catalog lookup capability.
type Client interface {
	// Datasets returns the dataset names matching a DAS pattern.
	Datasets(ctx context.Context, pattern string) ([]string, error)
	// Parents returns the parent datasets of a dataset.
	Parents(ctx context.Context, dataset string) ([]string, error)
	// Files returns the logical file names of a dataset.
	Files(ctx context.Context, dataset string) ([]string, error)
	// Sites returns the sites hosting a dataset.
	Sites(ctx context.Context, dataset string) ([]string, error)
	// RunLumis returns the run/luminosity-block coverage of a dataset.
	RunLumis(ctx context.Context, dataset string) (lumi.List, error)
}

// QueryError carries the full query text of a failed catalog lookup.
type QueryError struct {
	Query string
	Err   error
}

func (e *QueryError) Error() string {
	return "query " + `"` + e.Query + `"` + ": " + e.Err.Error()
}

func (e *QueryError) Unwrap() error { return e.Err }

// StartError means the query tool could not be run at all, as opposed to
// the tool reporting a failure. The first such error of a run usually
// means the catalog client is missing or misconfigured, which no amount
// of per-dataset skipping will fix.
type StartError struct {
	Err error
}

func (e *StartError) Error() string { return e.Err.Error() }
func (e *StartError) Unwrap() error { return e.Err }

// IsStartError reports whether err wraps a StartError.
func IsStartError(err error) bool {
	var se *StartError
	return errors.As(err, &se)
}
