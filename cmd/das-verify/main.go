package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hep-ops/gridsync/internal/datasets"
	"github.com/hep-ops/gridsync/internal/lfnlist"
	"github.com/hep-ops/gridsync/internal/logging"
	"github.com/hep-ops/gridsync/pkg/das"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
	builtBy = "unknown"
)

var (
	instance      string
	fromQueries   []string
	outputLFNs    string
	outputYAML    string
	recoveryMasks string
	queryRate     float64
	verbose       bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "das-verify [flags] [dataset-list-file]...",
		Short: "Check that NanoAOD datasets cover all luminosity blocks of their parents",
		Long: `das-verify queries the dataset catalog for each input dataset, compares its
run/luminosity-block coverage against the union of its parents, and reports
datasets that are not completely processed yet. It can also write LFN lists
for the complete datasets, a dataset summary file, and recovery lumi masks
for the incomplete parents.`,
		Version: fmt.Sprintf("%s (commit: %s, built at: %s by %s)", version, commit, date, builtBy),
		RunE:    run,
	}

	rootCmd.Flags().StringVar(&instance, "instance", das.DefaultInstance, "DBS instance (prod/global, prod/phys03 etc.)")
	rootCmd.Flags().StringArrayVar(&fromQueries, "from-query", nil, "DAS dataset name pattern to add datasets from (multiple allowed)")
	rootCmd.Flags().StringVar(&outputLFNs, "output-lfns", "", "Directory to write LFN lists of complete datasets to")
	rootCmd.Flags().StringVar(&outputYAML, "output-yaml", "", "Dataset summary YAML output file")
	rootCmd.Flags().StringVar(&recoveryMasks, "recovery-masks", "", "Directory to write recovery lumi masks to")
	rootCmd.Flags().Float64Var(&queryRate, "query-rate", 4, "Maximum catalog queries per second")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	logger := logging.NewLogger(false, verbose)
	ctx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	client := das.NewCLIClient(instance, queryRate)

	list, err := gatherDatasets(ctx, client, args, logger)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		logger.Info("No datasets to check, done")
		return nil
	}
	logger.Info("Checking %d datasets", len(list))

	chk := &checker{
		client:       client,
		parentClient: client.WithInstance(das.DefaultInstance),
	}

	var complete, incomplete, errored []string
	summary := make(map[string]datasets.Entry)
	results := make(map[string]checkResult)

	for _, ds := range list {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		res := chk.check(ctx, ds)
		results[ds] = res

		switch {
		case res.Err != nil:
			if das.IsStartError(res.Err) {
				return fmt.Errorf("catalog unreachable: %w", res.Err)
			}
			logger.Errorf("Dataset %s: %v", ds, res.Err)
			errored = append(errored, ds)
			continue
		case res.complete():
			complete = append(complete, ds)
		default:
			logger.Errorf("Dataset %s is missing luminosity blocks for %d runs", ds, len(res.Missing.Runs()))
			incomplete = append(incomplete, ds)
		}

		name, entry, err := summaryEntry(summary, res)
		if err != nil {
			logger.Errorf("Dataset %s: %v", ds, err)
			continue
		}
		summary[name] = entry
		logger.Debugf("Summary entry %s: %s", name, entry.DBS)
	}

	logger.Info("Complete datasets: %d/%d\n%s", len(complete), len(list), strings.Join(complete, "\n"))
	logger.Info("Datasets with missing luminosity blocks: %d/%d\n%s", len(incomplete), len(list), strings.Join(incomplete, "\n"))

	if recoveryMasks != "" {
		if err := writeRecoveryMasks(results, logger); err != nil {
			return err
		}
	}
	if outputLFNs != "" {
		if err := writeLFNLists(ctx, client, complete, logger); err != nil {
			return err
		}
	}
	if outputYAML != "" {
		if err := datasets.Write(outputYAML, summary); err != nil {
			return err
		}
	}

	if len(incomplete) > 0 || len(errored) > 0 {
		return fmt.Errorf("%d datasets incomplete, %d failed to check", len(incomplete), len(errored))
	}
	return nil
}

// gatherDatasets combines the list files and the --from-query patterns,
// removing duplicates while keeping a deterministic order. A failing
// pattern query is skipped; a query tool that cannot run at all aborts.
func gatherDatasets(ctx context.Context, client das.Client, args []string, logger *logging.Logger) ([]string, error) {
	var all []string
	for _, arg := range args {
		lines, err := lfnlist.Read(arg)
		if err != nil {
			return nil, err
		}
		all = append(all, lines...)
	}
	for _, pattern := range fromQueries {
		matches, err := client.Datasets(ctx, pattern)
		if err != nil {
			if das.IsStartError(err) {
				return nil, fmt.Errorf("catalog unreachable: %w", err)
			}
			logger.Errorf("Query for %s failed, skipping: %v", pattern, err)
			continue
		}
		all = append(all, matches...)
	}

	seen := make(map[string]bool)
	var list []string
	for _, ds := range all {
		if seen[ds] {
			continue
		}
		seen[ds] = true
		list = append(list, ds)
	}
	if removed := len(all) - len(list); removed > 0 {
		logger.Info("Removed %d duplicates in input datasets", removed)
	}
	sort.Strings(list)
	return list, nil
}

func writeRecoveryMasks(results map[string]checkResult, logger *logging.Logger) error {
	if err := os.MkdirAll(recoveryMasks, 0755); err != nil {
		return fmt.Errorf("create recovery mask directory: %w", err)
	}
	for _, res := range results {
		for parent, missing := range res.ParentMissing {
			logger.Debugf("Missing luminosity blocks for %d runs of %s", len(missing.Runs()), parent)
			path := filepath.Join(recoveryMasks, maskFileName(parent)+".json")
			if err := missing.WriteFile(path); err != nil {
				return err
			}
		}
	}
	return nil
}

// writeLFNLists writes one LFN list per complete dataset: MC datasets
// get a file named after the primary dataset, data gets the flattened
// full path. Existing files are left alone with a warning.
func writeLFNLists(ctx context.Context, client das.Client, complete []string, logger *logging.Logger) error {
	if err := os.MkdirAll(outputLFNs, 0755); err != nil {
		return fmt.Errorf("create LFN output directory: %w", err)
	}
	for _, ds := range complete {
		files, err := client.Files(ctx, ds)
		if err != nil {
			logger.Errorf("Listing files of %s failed: %v", ds, err)
			continue
		}

		var name string
		if strings.HasSuffix(ds, "SIM") {
			name = strings.Split(strings.Trim(ds, "/"), "/")[0]
		} else {
			name = maskFileName(ds) + ".txt"
		}
		path := filepath.Join(outputLFNs, name)
		if err := lfnlist.Write(path, files); err != nil {
			logger.Warnf("%v", err)
		}
	}
	return nil
}
