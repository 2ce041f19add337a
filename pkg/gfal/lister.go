package gfal

import (
	"context"
	"fmt"
	"path"
	"strconv"
	"strings"
)

const listCommand = "gfal-ls"

// Entry is one line of a long-format remote directory listing.
type Entry struct {
	// Name is the entry's base name, without a trailing slash.
	Name string
	Size int64
	Dir  bool
}

// Lister lists remote directories with gfal-ls -l.
type Lister struct {
	Run RunFunc
	Env []string
	// Command overrides the tool name, for tests.
	Command string
}

func (l *Lister) run() RunFunc {
	if l.Run != nil {
		return l.Run
	}
	return Run
}

func (l *Lister) command() string {
	if l.Command != "" {
		return l.Command
	}
	return listCommand
}

// List returns the entries of one remote directory.
func (l *Lister) List(ctx context.Context, url string) ([]Entry, error) {
	exit, stdout, stderr, err := l.run()(ctx, l.Env, l.command(), "-l", url)
	if err != nil {
		return nil, fmt.Errorf("start %s: %w", l.command(), err)
	}
	if exit != 0 {
		return nil, fmt.Errorf("%s %s: exit status %d: %s", l.command(), url, exit, firstLine(stderr))
	}
	return parseListing(stdout)
}

// parseListing parses long-format listing lines. The name is the ninth
// field and may be a full path; anything before it is mode, link count,
// owner, group, size and a three-field date.
func parseListing(out string) ([]Entry, error) {
	var entries []Entry
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 9 {
			return nil, fmt.Errorf("unexpected listing line: %q", line)
		}
		size, err := strconv.ParseInt(fields[4], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("unexpected size in listing line %q: %w", line, err)
		}
		name := strings.Join(fields[8:], " ")
		entries = append(entries, Entry{
			Name: path.Base(strings.TrimSuffix(name, "/")),
			Size: size,
			Dir:  strings.HasPrefix(fields[0], "d") || strings.HasSuffix(name, "/"),
		})
	}
	return entries, nil
}
