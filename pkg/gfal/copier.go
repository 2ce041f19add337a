package gfal

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/hep-ops/gridsync/pkg/transfer"
)

const copyCommand = "gfal-copy"

// Copier runs gfal-copy for each item. It implements transfer.Copier.
type Copier struct {
	// Run invokes the tool; nil uses the real process runner.
	Run RunFunc
	// Env replaces the tool's environment when non-nil.
	Env []string
	// Checksum asks the tool to verify an adler32 checksum after the copy.
	Checksum bool
	// Classify maps a non-zero exit to a retryable or fatal error;
	// nil uses DefaultClassifier.
	Classify Classifier
	// Command overrides the tool name, for tests.
	Command string
}

func (c *Copier) run() RunFunc {
	if c.Run != nil {
		return c.Run
	}
	return Run
}

func (c *Copier) command() string {
	if c.Command != "" {
		return c.Command
	}
	return copyCommand
}

func (c *Copier) classify() Classifier {
	if c.Classify != nil {
		return c.Classify
	}
	return DefaultClassifier
}

// Copy invokes gfal-copy for one item. A command that cannot start is a
// fatal failure; a non-zero exit is classified by the Classifier.
func (c *Copier) Copy(ctx context.Context, item transfer.Item) error {
	args := []string{"-p"}
	if c.Checksum {
		args = append(args, "-K", "adler32")
	}
	if deadline, ok := ctx.Deadline(); ok {
		secs := int(math.Ceil(time.Until(deadline).Seconds()))
		if secs < 1 {
			secs = 1
		}
		args = append(args, "-t", strconv.Itoa(secs))
	}
	args = append(args, item.Source, item.Dest)

	exit, _, stderr, err := c.run()(ctx, c.Env, c.command(), args...)
	if err != nil {
		return transfer.Fatal(fmt.Errorf("start %s: %w", c.command(), err))
	}
	if exit != 0 {
		if ctx.Err() != nil {
			return fmt.Errorf("%s %s: %w", c.command(), item.Source, ctx.Err())
		}
		return fmt.Errorf("%s %s: %w", c.command(), item.Source, c.classify()(exit, stderr))
	}
	return nil
}
