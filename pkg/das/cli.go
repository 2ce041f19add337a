package das

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"golang.org/x/time/rate"

	"github.com/hep-ops/gridsync/pkg/lumi"
)

const queryCommand = "dasgoclient"

// RunFunc invokes the query tool and returns its stdout. A failed start
// must come back wrapped in StartError.
type RunFunc func(ctx context.Context, name string, args ...string) (string, error)

// Run is the real RunFunc.
func Run(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return stdout.String(), nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		diag := strings.TrimSpace(stderr.String())
		if i := strings.IndexByte(diag, '\n'); i >= 0 {
			diag = diag[:i]
		}
		return "", fmt.Errorf("exit status %d: %s", exitErr.ExitCode(), diag)
	}
	return "", &StartError{Err: err}
}

// CLIClient queries the catalog by shelling out to dasgoclient.
type CLIClient struct {
	// Instance is the DBS instance; non-default instances are appended
	// to every query.
	Instance string
	// Run invokes the tool; nil uses the real process runner.
	Run RunFunc
	// Limiter paces queries so batch runs do not hammer the service.
	// nil means unlimited.
	Limiter *rate.Limiter
	// Command overrides the tool name, for tests.
	Command string
}

// NewCLIClient creates a client for one DBS instance, pacing queries at
// qps queries per second.
func NewCLIClient(instance string, qps float64) *CLIClient {
	return &CLIClient{
		Instance: instance,
		Limiter:  rate.NewLimiter(rate.Limit(qps), 1),
	}
}

// WithInstance returns a copy of the client querying another instance,
// sharing the rate limiter.
func (c *CLIClient) WithInstance(instance string) *CLIClient {
	dup := *c
	dup.Instance = instance
	return &dup
}

func (c *CLIClient) query(ctx context.Context, q string) ([]string, error) {
	if c.Instance != "" && c.Instance != DefaultInstance {
		q += " instance=" + c.Instance
	}
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return nil, &QueryError{Query: q, Err: err}
		}
	}

	run := c.Run
	if run == nil {
		run = Run
	}
	command := c.Command
	if command == "" {
		command = queryCommand
	}

	out, err := run(ctx, command, "-query", q)
	if err != nil {
		return nil, &QueryError{Query: q, Err: err}
	}

	var lines []string
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, nil
}

// Datasets returns the dataset names matching a DAS pattern.
func (c *CLIClient) Datasets(ctx context.Context, pattern string) ([]string, error) {
	return c.query(ctx, "dataset dataset="+pattern)
}

// Parents returns the parent datasets of a dataset.
func (c *CLIClient) Parents(ctx context.Context, dataset string) ([]string, error) {
	return c.query(ctx, "parent dataset="+dataset)
}

// Files returns the logical file names of a dataset.
func (c *CLIClient) Files(ctx context.Context, dataset string) ([]string, error) {
	return c.query(ctx, "file dataset="+dataset)
}

// Sites returns the sites hosting a dataset.
func (c *CLIClient) Sites(ctx context.Context, dataset string) ([]string, error) {
	return c.query(ctx, "site dataset="+dataset)
}

// RunLumis returns the run/luminosity-block coverage of a dataset.
// dasgoclient prints one line per run: the run number followed by a
// bracketed list of luminosity blocks.
func (c *CLIClient) RunLumis(ctx context.Context, dataset string) (lumi.List, error) {
	lines, err := c.query(ctx, "run,lumi dataset="+dataset)
	if err != nil {
		return nil, err
	}

	list := lumi.New()
	for _, line := range lines {
		run, blocks, err := parseRunLumiLine(line)
		if err != nil {
			return nil, &QueryError{Query: "run,lumi dataset=" + dataset, Err: err}
		}
		for _, b := range blocks {
			list.Add(run, b)
		}
	}
	return list, nil
}

func parseRunLumiLine(line string) (int, []int, error) {
	runStr, lumiStr, ok := strings.Cut(line, " ")
	if !ok {
		return 0, nil, fmt.Errorf("unexpected run/lumi line: %q", line)
	}
	run, err := strconv.Atoi(strings.TrimSpace(runStr))
	if err != nil {
		return 0, nil, fmt.Errorf("invalid run number in line %q: %w", line, err)
	}

	lumiStr = strings.TrimSpace(lumiStr)
	lumiStr = strings.TrimPrefix(lumiStr, "[")
	lumiStr = strings.TrimSuffix(lumiStr, "]")
	if lumiStr == "" {
		return run, nil, nil
	}

	var blocks []int
	for _, part := range strings.Split(lumiStr, ",") {
		b, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return 0, nil, fmt.Errorf("invalid luminosity block in line %q: %w", line, err)
		}
		blocks = append(blocks, b)
	}
	return run, blocks, nil
}
