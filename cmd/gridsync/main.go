package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/hep-ops/gridsync/internal/lfnlist"
	"github.com/hep-ops/gridsync/internal/logging"
	"github.com/hep-ops/gridsync/internal/scan"
	"github.com/hep-ops/gridsync/internal/shellquote"
	"github.com/hep-ops/gridsync/pkg/gfal"
	"github.com/hep-ops/gridsync/pkg/s3copier"
	"github.com/hep-ops/gridsync/pkg/transfer"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
	builtBy = "unknown"
)

var (
	srmURL      string
	s3URL       string
	destDir     string
	lfnStrip    []string
	fileFilter  string
	dirFilters  []string
	excludes    []string
	maxDepth    int
	gfalEnvFile string
	concurrency int
	maxRetries  int
	copyTimeout time.Duration
	checksum    bool
	dryRun      bool
	pendingOut  string
	quiet       bool
	verbose     bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "gridsync [flags] <path-or-lfn-list>...",
		Short: "Download dataset files from a storage site with bounded parallelism",
		Long: `gridsync builds a work list from remote directory scans or LFN list files,
skips files that are already complete locally, and drives the copies through
gfal-copy (or an S3-compatible endpoint) with retries and a resumable report.`,
		Version: fmt.Sprintf("%s (commit: %s, built at: %s by %s)", version, commit, date, builtBy),
		Args:    cobra.MinimumNArgs(1),
		RunE:    run,
	}

	rootCmd.Flags().StringVar(&srmURL, "srm", "", "Storage element root URL (SRM/gsiftp/davs) for gfal transfers")
	rootCmd.Flags().StringVar(&s3URL, "s3", "", "S3-compatible endpoint (s3://bucket[/prefix]) instead of --srm")
	rootCmd.Flags().StringVarP(&destDir, "dest", "o", ".", "Local destination root")
	rootCmd.Flags().StringSliceVar(&lfnStrip, "lfn-strip", nil, "Leading LFN part to replace by --dest (multiple allowed)")
	rootCmd.Flags().StringVar(&fileFilter, "filter", "*.root", "Shell-style filename filter for scan mode")
	rootCmd.Flags().StringSliceVar(&dirFilters, "dirfilter", nil, "Filter for the task-name directory level in scan mode (multiple allowed)")
	rootCmd.Flags().StringSliceVar(&excludes, "exclude", nil, "Path glob excludes, ** supported (multiple allowed)")
	rootCmd.Flags().IntVar(&maxDepth, "max-depth", 1, "Maximum depth to scan")
	rootCmd.Flags().StringVar(&gfalEnvFile, "gfal-env", "", "JSON file with the environment for the copy tool (replaces, not overlays)")
	rootCmd.Flags().IntVarP(&concurrency, "concurrency", "j", 1, "Number of parallel copies")
	rootCmd.Flags().IntVar(&maxRetries, "max-retries", 2, "Retries per file after a transient failure")
	rootCmd.Flags().DurationVar(&copyTimeout, "copy-timeout", 0, "Per-copy timeout; expiry counts as a transient failure (0 = none)")
	rootCmd.Flags().BoolVar(&checksum, "checksum", false, "Verify an adler32 checksum after each copy")
	rootCmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "Print the work list without copying")
	rootCmd.Flags().StringVar(&pendingOut, "pending-out", "", "Where to write the remaining LFNs when interrupted")
	rootCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Suppress non-error output")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// backend bundles the listing and copy capabilities of one endpoint kind.
type backend struct {
	listAt    func(base string) scan.ListFunc
	sourceFor func(lfn string) string
	copier    transfer.Copier
}

func run(cmd *cobra.Command, args []string) error {
	if (srmURL == "") == (s3URL == "") {
		return fmt.Errorf("exactly one of --srm and --s3 is required")
	}
	if concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive")
	}
	if maxRetries < 0 {
		return fmt.Errorf("max-retries must not be negative")
	}

	logger := logging.NewLogger(quiet, verbose)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	be, err := newBackend(ctx)
	if err != nil {
		return err
	}

	items, scannedBases, err := buildWorkList(ctx, be, args, logger)
	if err != nil {
		return err
	}

	var totalBytes int64
	for _, item := range items {
		totalBytes += item.Size
	}
	logger.Info("Still to download in total: %d files, %s", len(items), humanize.IBytes(uint64(totalBytes)))

	if dryRun {
		for _, item := range items {
			logger.Info("%% %s -> %s (%s)", item.Source, item.Dest, humanize.IBytes(uint64(item.Size)))
		}
		return nil
	}
	if len(items) == 0 {
		return nil
	}

	logger.Info("Launching %d simultaneous downloads", concurrency)
	orch := &transfer.Orchestrator{
		Copier:      be.copier,
		Concurrency: concurrency,
		MaxRetries:  maxRetries,
		CopyTimeout: copyTimeout,
		Logger:      logger,
		Stats:       transfer.NewStats(logger, 10*time.Second),
	}
	report := orch.Run(ctx, items)

	logger.Summary(len(report.Succeeded), len(report.Failed), len(report.Pending),
		report.BytesCopied(), report.Elapsed)

	if len(report.Pending) > 0 {
		if err := writeResume(&report, scannedBases, logger); err != nil {
			logger.Errorf("write resume list: %v", err)
		}
		return fmt.Errorf("interrupted with %d transfers pending", len(report.Pending))
	}
	if len(report.Failed) > 0 {
		return fmt.Errorf("%d transfers failed", len(report.Failed))
	}
	return nil
}

func newBackend(ctx context.Context) (*backend, error) {
	var env []string
	if gfalEnvFile != "" {
		loaded, err := gfal.LoadEnvFile(gfalEnvFile)
		if err != nil {
			return nil, err
		}
		env = loaded
	}

	if srmURL != "" {
		lister := &gfal.Lister{Env: env}
		return &backend{
			listAt: func(base string) scan.ListFunc {
				return func(ctx context.Context, dir string) ([]scan.Entry, error) {
					parts := []string{srmURL}
					if base != "" {
						parts = append(parts, base)
					}
					if dir != "" {
						parts = append(parts, dir)
					}
					entries, err := lister.List(ctx, gfal.JoinURL(parts...))
					if err != nil {
						return nil, err
					}
					out := make([]scan.Entry, len(entries))
					for i, e := range entries {
						out[i] = scan.Entry{Name: e.Name, Size: e.Size, Dir: e.Dir}
					}
					return out, nil
				}
			},
			sourceFor: func(lfn string) string { return gfal.JoinURL(srmURL, lfn) },
			copier:    &gfal.Copier{Env: env, Checksum: checksum},
		}, nil
	}

	bucket, prefix, err := s3copier.ParseURL(s3URL)
	if err != nil {
		return nil, err
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	client := s3.NewFromConfig(cfg)
	lister := s3copier.NewLister(client, bucket)
	copier := s3copier.NewCopier(client)
	copier.Checksum = checksum

	keyFor := func(parts ...string) string {
		all := append([]string{prefix}, parts...)
		joined := ""
		for _, p := range all {
			p = trimSlashes(p)
			if p == "" {
				continue
			}
			if joined != "" {
				joined += "/"
			}
			joined += p
		}
		return joined
	}

	return &backend{
		listAt: func(base string) scan.ListFunc {
			return func(ctx context.Context, dir string) ([]scan.Entry, error) {
				entries, err := lister.List(ctx, keyFor(base, dir))
				if err != nil {
					return nil, err
				}
				out := make([]scan.Entry, len(entries))
				for i, e := range entries {
					out[i] = scan.Entry{Name: e.Name, Size: e.Size, Dir: e.Dir}
				}
				return out, nil
			}
		},
		sourceFor: func(lfn string) string {
			return "s3://" + bucket + "/" + keyFor(lfn)
		},
		copier: copier,
	}, nil
}

func trimSlashes(s string) string {
	for len(s) > 0 && s[0] == '/' {
		s = s[1:]
	}
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}

// buildWorkList turns each argument into transfer items: an existing
// local file is an LFN list, anything else is a remote path to scan.
// Files that are already complete locally are skipped; short local files
// are removed and fetched again.
func buildWorkList(ctx context.Context, be *backend, args []string, logger *logging.Logger) ([]transfer.Item, []string, error) {
	var items []transfer.Item
	var scannedBases []string

	for _, arg := range args {
		var candidates []scan.Candidate
		if info, err := os.Stat(arg); err == nil && info.Mode().IsRegular() {
			logger.Debugf("Reading LFNs from %s", arg)
			lfns, err := lfnlist.Read(arg)
			if err != nil {
				return nil, nil, err
			}
			resolver := &scan.LFNResolver{
				List:          be.listAt(""),
				DestRoot:      destDir,
				StripPrefixes: lfnStrip,
				Excludes:      excludes,
			}
			candidates, err = resolver.Resolve(ctx, lfns)
			if err != nil {
				return nil, nil, err
			}
		} else {
			logger.Debugf("%s is not a file, going recursive", arg)
			scanner := &scan.Scanner{
				List:       be.listAt(arg),
				MaxDepth:   maxDepth,
				Filter:     fileFilter,
				DirFilters: dirFilters,
				Excludes:   excludes,
			}
			files, err := scanner.Scan(ctx)
			if err != nil {
				return nil, nil, err
			}
			scannedBases = append(scannedBases, arg)
			for _, f := range files {
				candidates = append(candidates, scan.Candidate{
					LFN:  path.Join(arg, f.RelPath),
					Dest: filepath.Join(destDir, filepath.FromSlash(f.RelPath)),
					Size: f.Size,
				})
			}
		}

		kept := 0
		for _, c := range candidates {
			status, err := scan.CheckDest(c.Dest, c.Size)
			if err != nil {
				return nil, nil, err
			}
			switch status {
			case scan.Skip:
				logger.Debugf("Already downloaded: %s", c.Dest)
				continue
			case scan.Refetch:
				logger.Warnf("Disk size of %s was short of the %d bytes expected, downloading again", c.Dest, c.Size)
			}
			items = append(items, transfer.Item{
				LFN:    c.LFN,
				Source: be.sourceFor(c.LFN),
				Dest:   c.Dest,
				Size:   c.Size,
			})
			kept++
		}
		logger.Debugf("Still to download for %s: %d files", arg, kept)
	}
	return items, scannedBases, nil
}

// writeResume saves the pending LFNs and prints a command that picks the
// run back up from that list.
func writeResume(report *transfer.Report, scannedBases []string, logger *logging.Logger) error {
	out := pendingOut
	if out == "" {
		out = fmt.Sprintf("gridsync-pending-%s.txt", report.RunID)
	}
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	if err := report.WritePending(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	resume := []string{"gridsync"}
	if srmURL != "" {
		resume = append(resume, "--srm="+srmURL)
	} else {
		resume = append(resume, "--s3="+s3URL)
	}
	resume = append(resume, "--dest="+destDir, fmt.Sprintf("-j%d", concurrency))
	if gfalEnvFile != "" {
		resume = append(resume, "--gfal-env="+gfalEnvFile)
	}
	if checksum {
		resume = append(resume, "--checksum")
	}
	// Scanned base paths become strip prefixes so the resumed run maps
	// the LFNs to the same destinations.
	for _, prefix := range lfnStrip {
		resume = append(resume, "--lfn-strip="+prefix)
	}
	for _, base := range scannedBases {
		resume = append(resume, "--lfn-strip="+base)
	}
	resume = append(resume, out)

	logger.Info("Resume the remaining %d transfers with:\n  %s", len(report.Pending), shellquote.Join(resume...))
	return nil
}
