// Package lfnlist reads and writes the plain-text list files used by the
// tools: one entry per line, blank lines and lines starting with '#' skipped.
package lfnlist

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Read returns the entries of a list file, trimmed, with blanks and
// '#' comments removed.
func Read(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open list file: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read list file %s: %w", path, err)
	}
	return lines, nil
}

// Write writes one entry per line. It refuses to overwrite an existing
// file: generated lists are never silently replaced.
func Write(path string, lines []string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("file %s already exists", path)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	data := strings.Join(lines, "\n")
	if len(lines) > 0 {
		data += "\n"
	}
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// ReadArgs resolves command-line arguments that may be either literal
// entries or paths to list files: an argument naming an existing regular
// file is replaced by the file's entries.
func ReadArgs(args []string) ([]string, error) {
	var out []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err == nil && info.Mode().IsRegular() {
			lines, err := Read(arg)
			if err != nil {
				return nil, err
			}
			out = append(out, lines...)
			continue
		}
		out = append(out, arg)
	}
	return out, nil
}
