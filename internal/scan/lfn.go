package scan

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// Candidate is one file selected for transfer: its LFN, where it should
// land locally, and its expected size.
type Candidate struct {
	LFN  string
	Dest string
	Size int64
}

// LFNResolver turns an explicit LFN list into transfer candidates. Sizes
// come from one directory listing per distinct LFN directory.
type LFNResolver struct {
	List ListFunc
	// DestRoot is the local destination root.
	DestRoot string
	// StripPrefixes are leading LFN parts replaced by DestRoot. When
	// set, every LFN must start with one of them.
	StripPrefixes []string
	// Excludes are path globs on the LFN.
	Excludes []string
}

// Resolve returns the candidates for lfns, preserving list order.
func (r *LFNResolver) Resolve(ctx context.Context, lfns []string) ([]Candidate, error) {
	// One listing per directory covers all its files.
	sizes := make(map[string]int64)
	listed := make(map[string]bool)

	var out []Candidate
	for _, lfn := range lfns {
		if Excluded(r.Excludes, lfn) {
			continue
		}
		dir, name := path.Split(lfn)
		dir = strings.TrimSuffix(dir, "/")
		if name == "" {
			return nil, fmt.Errorf("malformed LFN %q", lfn)
		}

		if !listed[dir] {
			entries, err := r.List(ctx, dir)
			if err != nil {
				return nil, fmt.Errorf("list %s: %w", dir, err)
			}
			for _, entry := range entries {
				if !entry.Dir {
					sizes[path.Join(dir, entry.Name)] = entry.Size
				}
			}
			listed[dir] = true
		}

		size, ok := sizes[lfn]
		if !ok {
			return nil, fmt.Errorf("%s not found in listing of %s", lfn, dir)
		}

		dest, err := r.destFor(lfn)
		if err != nil {
			return nil, err
		}
		out = append(out, Candidate{LFN: lfn, Dest: dest, Size: size})
	}
	return out, nil
}

func (r *LFNResolver) destFor(lfn string) (string, error) {
	if len(r.StripPrefixes) == 0 {
		return filepath.Join(r.DestRoot, strings.TrimPrefix(lfn, "/")), nil
	}
	for _, prefix := range r.StripPrefixes {
		if strings.HasPrefix(lfn, prefix) {
			rel := strings.TrimPrefix(strings.TrimPrefix(lfn, prefix), "/")
			return filepath.Join(r.DestRoot, rel), nil
		}
	}
	return "", fmt.Errorf("LFN %s does not start with any of the prefixes %v", lfn, r.StripPrefixes)
}
