package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/hep-ops/gridsync/internal/datasets"
	"github.com/hep-ops/gridsync/pkg/das"
	"github.com/hep-ops/gridsync/pkg/lumi"
)

// checkResult is the completeness verdict for one dataset.
type checkResult struct {
	Dataset string
	Parents []string
	// Missing is the luminosity blocks covered by the parents but not
	// by the dataset; empty means complete.
	Missing lumi.List
	// ParentMissing holds, per parent, the blocks of that parent the
	// dataset does not cover. Input for recovery task masks.
	ParentMissing map[string]lumi.List
	Err           error
}

func (r *checkResult) complete() bool {
	return r.Err == nil && r.Missing.IsEmpty()
}

// checker compares a dataset's run/lumi coverage against the union of
// its parents'. Parents live in the production global instance even when
// the dataset itself is in a user instance.
type checker struct {
	client       das.Client
	parentClient das.Client
}

func (c *checker) check(ctx context.Context, dataset string) checkResult {
	res := checkResult{Dataset: dataset}

	parents, err := c.client.Parents(ctx, dataset)
	if err != nil {
		res.Err = err
		return res
	}
	if len(parents) == 0 {
		res.Err = fmt.Errorf("no parents for dataset %s", dataset)
		return res
	}
	res.Parents = parents

	covered, err := c.client.RunLumis(ctx, dataset)
	if err != nil {
		res.Err = err
		return res
	}

	parentUnion := lumi.New()
	res.ParentMissing = make(map[string]lumi.List)
	for _, parent := range parents {
		parentLumis, err := c.parentClient.RunLumis(ctx, parent)
		if err != nil {
			res.Err = err
			return res
		}
		parentUnion.Union(parentLumis)
		if missing := parentLumis.Subtract(covered); !missing.IsEmpty() {
			res.ParentMissing[parent] = missing
		}
	}
	res.Missing = parentUnion.Subtract(covered)
	return res
}

// sampleName derives the summary key for a dataset: the primary dataset
// name, with the data-taking era appended for data. The responsible user
// is the leading part of the processed dataset name.
func sampleName(dataset string) (name, responsible string, err error) {
	parts := strings.Split(strings.Trim(dataset, "/"), "/")
	if len(parts) != 3 {
		return "", "", fmt.Errorf("malformed dataset name %q", dataset)
	}
	primary, processed := parts[0], parts[1]
	responsible = strings.SplitN(processed, "-", 2)[0]

	name = primary
	if strings.Contains(processed, "Run201") {
		segments := strings.Split(processed, "-")
		if len(segments) >= 2 {
			tag := segments[len(segments)-2]
			if i := strings.Index(tag, "Run201"); i >= 0 {
				name = primary + "_Run201" + tag[i+len("Run201"):]
			}
		}
	}
	return name, responsible, nil
}

// summaryEntry builds the datasets-file entry for one result, keyed by a
// name not yet present in summary (duplicates get '_' appended, like the
// era-less key of a sample that was reprocessed).
func summaryEntry(summary map[string]datasets.Entry, res checkResult) (string, datasets.Entry, error) {
	name, responsible, err := sampleName(res.Dataset)
	if err != nil {
		return "", datasets.Entry{}, err
	}
	for {
		if _, taken := summary[name]; !taken {
			break
		}
		name += "_"
	}

	entry := datasets.Entry{
		DBS:         res.Dataset,
		Parents:     res.Parents,
		Responsible: responsible,
	}
	if !res.complete() {
		entry.Comment = "Not completely processed yet"
	}
	return name, entry, nil
}

// maskFileName flattens a dataset path into a file name.
func maskFileName(dataset string) string {
	return strings.ReplaceAll(strings.TrimPrefix(dataset, "/"), "/", "__")
}
