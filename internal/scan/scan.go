// Package scan builds the transfer work list, either by walking a remote
// directory tree through a listing capability or by resolving an explicit
// list of logical file names.
package scan

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/hep-ops/gridsync/pkg/fnmatch"
)

// Entry is one entry of a listed directory, as the listing capability
// reports it.
type Entry struct {
	Name string
	Size int64
	Dir  bool
}

// ListFunc lists one directory. The scanner passes paths relative to the
// scan root (empty string for the root itself); the LFN resolver passes
// full LFN directory paths. The caller's adapter turns them into URLs.
type ListFunc func(ctx context.Context, dir string) ([]Entry, error)

// File is one remote file found by a scan, relative to the scan root.
type File struct {
	RelPath string
	Size    int64
}

// Scanner walks a remote tree through List, at most MaxDepth levels deep,
// with a bounded number of concurrent listing calls.
type Scanner struct {
	List ListFunc
	// MaxDepth limits recursion; 1 scans only the root directory.
	MaxDepth int
	// Filter is a shell-style pattern on file names; empty keeps all.
	Filter string
	// DirFilters are shell-style patterns applied to directory names one
	// level below the root (the task-name part of a store path). Empty
	// keeps all.
	DirFilters []string
	// Excludes are path globs on the root-relative path.
	Excludes []string
	// ListConcurrency bounds simultaneous listing calls (default 10).
	ListConcurrency int
}

// Scan returns the matching files under the scan root in path order.
func (s *Scanner) Scan(ctx context.Context) ([]File, error) {
	maxDepth := s.MaxDepth
	if maxDepth <= 0 {
		maxDepth = 1
	}
	listConcurrency := s.ListConcurrency
	if listConcurrency <= 0 {
		listConcurrency = 10
	}

	sem := make(chan struct{}, listConcurrency)
	var mu sync.Mutex
	var files []File
	var firstErr error
	var wg sync.WaitGroup

	setErr := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
	}

	var walk func(rel string, level int)
	walk = func(rel string, level int) {
		defer wg.Done()
		if ctx.Err() != nil {
			setErr(ctx.Err())
			return
		}

		sem <- struct{}{}
		entries, err := s.List(ctx, rel)
		<-sem
		if err != nil {
			setErr(err)
			return
		}

		for _, entry := range entries {
			entryPath := path.Join(rel, entry.Name)
			if entry.Dir {
				if level+1 >= maxDepth {
					continue
				}
				if !s.keepDir(level, entry.Name) {
					continue
				}
				wg.Add(1)
				go walk(entryPath, level+1)
				continue
			}
			keep, err := s.keepFile(entry.Name, entryPath)
			if err != nil {
				setErr(err)
				return
			}
			if keep {
				mu.Lock()
				files = append(files, File{RelPath: entryPath, Size: entry.Size})
				mu.Unlock()
			}
		}
	}

	wg.Add(1)
	walk("", 0)
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	// Listing order is nondeterministic under concurrency; the work
	// list order must not be.
	sort.Slice(files, func(i, j int) bool { return files[i].RelPath < files[j].RelPath })
	return files, nil
}

func (s *Scanner) keepDir(level int, name string) bool {
	if level != 1 || len(s.DirFilters) == 0 {
		return true
	}
	for _, pattern := range s.DirFilters {
		if ok, err := fnmatch.Match(pattern, name); err == nil && ok {
			return true
		}
	}
	return false
}

func (s *Scanner) keepFile(name, relPath string) (bool, error) {
	if s.Filter != "" {
		ok, err := fnmatch.Match(s.Filter, name)
		if err != nil {
			return false, fmt.Errorf("filter pattern %q: %w", s.Filter, err)
		}
		if !ok {
			return false, nil
		}
	}
	return !Excluded(s.Excludes, relPath), nil
}

// Excluded reports whether relPath matches any of the path globs.
func Excluded(excludes []string, relPath string) bool {
	relPath = strings.TrimPrefix(relPath, "/")
	for _, pattern := range excludes {
		if ok, _ := doublestar.Match(pattern, relPath); ok {
			return true
		}
		// Also match against the full path form.
		if ok, _ := doublestar.Match(pattern, "/"+relPath); ok {
			return true
		}
	}
	return false
}
