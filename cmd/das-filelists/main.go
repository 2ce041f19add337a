package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hep-ops/gridsync/internal/datasets"
	"github.com/hep-ops/gridsync/internal/lfnlist"
	"github.com/hep-ops/gridsync/internal/logging"
	"github.com/hep-ops/gridsync/internal/shellquote"
	"github.com/hep-ops/gridsync/internal/siteinfo"
	"github.com/hep-ops/gridsync/pkg/das"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
	builtBy = "unknown"
)

var (
	year         string
	inputFile    string
	instance     string
	outputDir    string
	siteinfoFile string
	destDir      string
	homeSite     string
	gfalEnv      string
	concurrency  int
	runTransfers bool
	verbose      bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "das-filelists --year <year> [flags] [sample]...",
		Short: "Generate LFN lists and transfer commands for managed datasets",
		Long: `das-filelists reads a dataset bookkeeping file, queries the dataset catalog
for the files of each selected sample, and sorts them by the storage site
hosting them. It writes the expected local file paths per sample, per-site
LFN lists, and a transfer.sh script with one gridsync invocation per
source site. Samples default to every sample of the selected year.`,
		Version: fmt.Sprintf("%s (commit: %s, built at: %s by %s)", version, commit, date, builtBy),
		RunE:    run,
	}

	rootCmd.Flags().StringVar(&year, "year", "", "Data-taking year to select samples from (required)")
	rootCmd.Flags().StringVarP(&inputFile, "input", "i", "", "Dataset bookkeeping YAML file (required)")
	rootCmd.Flags().StringVar(&instance, "dbs", "prod/phys03", "DBS instance to query")
	rootCmd.Flags().StringVarP(&outputDir, "output", "o", ".", "Directory to write file lists into")
	rootCmd.Flags().StringVar(&siteinfoFile, "siteinfo", "", "Site information YAML file (required)")
	rootCmd.Flags().StringVar(&destDir, "dest", "", "Local directory the transfers will copy into (required)")
	rootCmd.Flags().StringVar(&homeSite, "homesite", "", "Site whose files are already local and need no transfer")
	rootCmd.Flags().StringVar(&gfalEnv, "gfal-env", "", "Environment file passed to gridsync (default ~/clean_gfal_env.json)")
	rootCmd.Flags().IntVarP(&concurrency, "concurrency", "j", 5, "Concurrency passed to the generated gridsync commands")
	rootCmd.Flags().BoolVar(&runTransfers, "run", false, "Run the generated transfer commands after writing them")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	cobra.CheckErr(rootCmd.MarkFlagRequired("year"))
	cobra.CheckErr(rootCmd.MarkFlagRequired("input"))
	cobra.CheckErr(rootCmd.MarkFlagRequired("siteinfo"))
	cobra.CheckErr(rootCmd.MarkFlagRequired("dest"))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	logger := logging.NewLogger(false, verbose)
	ctx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	if gfalEnv == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("resolve home directory: %w", err)
		}
		gfalEnv = filepath.Join(home, "clean_gfal_env.json")
	}

	file, err := datasets.Load(inputFile)
	if err != nil {
		return err
	}
	// Sample names can also come from list files.
	names, err := lfnlist.ReadArgs(args)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		names = file.Names(year)
	}
	selected, err := file.Select(year, names)
	if err != nil {
		return err
	}
	if len(selected) == 0 {
		return fmt.Errorf("no samples found for year %s in %s", year, inputFile)
	}

	info, err := siteinfo.Load(siteinfoFile)
	if err != nil {
		return err
	}

	p := &planner{
		client:    das.NewCLIClient(instance, 4),
		info:      info,
		outputDir: outputDir,
		destDir:   destDir,
		logger:    logger,
	}

	pl := newPlan()
	order := make([]string, 0, len(selected))
	for name := range selected {
		order = append(order, name)
	}
	sort.Strings(order)
	for _, name := range order {
		logger.Info("Getting files for sample %s", name)
		if err := p.planSample(ctx, name, selected[name], pl); err != nil {
			if das.IsStartError(err) {
				return fmt.Errorf("dataset catalog unreachable: %w", err)
			}
			return err
		}
	}

	commands, err := buildCommands(pl, info, commandOptions{
		DestDir:     destDir,
		GfalEnv:     gfalEnv,
		HomeSite:    homeSite,
		Concurrency: concurrency,
	})
	if err != nil {
		return err
	}

	lines := make([]string, 0, len(commands))
	for _, c := range commands {
		lines = append(lines, shellquote.Join(c...))
	}
	scriptPath := filepath.Join(outputDir, "transfer.sh")
	if err := lfnlist.Write(scriptPath, lines); err != nil {
		return err
	}
	logger.Info("Wrote %d transfer commands to %s", len(commands), scriptPath)

	if runTransfers {
		return runCommands(ctx, commands, logger)
	}
	return nil
}

// runCommands executes the generated transfers one at a time. A failing
// transfer stops the run; the remaining commands stay in transfer.sh.
func runCommands(ctx context.Context, commands [][]string, logger *logging.Logger) error {
	for _, c := range commands {
		logger.Info("Running %s", shellquote.Join(c...))
		cmd := exec.CommandContext(ctx, c[0], c[1:]...)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		if err := cmd.Run(); err != nil {
			return fmt.Errorf("transfer command failed: %w", err)
		}
	}
	return nil
}
