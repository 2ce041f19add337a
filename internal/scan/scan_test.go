package scan

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTree serves directory listings from a map of dir path to entries.
type fakeTree map[string][]Entry

func (t fakeTree) list(_ context.Context, dir string) ([]Entry, error) {
	entries, ok := t[dir]
	if !ok {
		return nil, fmt.Errorf("no such directory: %q", dir)
	}
	return entries, nil
}

func crabTree() fakeTree {
	return fakeTree{
		"": {
			{Name: "crab_TT_sl", Dir: true},
			{Name: "crab_DY_ext", Dir: true},
			{Name: "stray.root", Size: 11},
		},
		"crab_TT_sl": {
			{Name: "240620_120000", Dir: true},
		},
		"crab_DY_ext": {
			{Name: "240621_090000", Dir: true},
		},
		"crab_TT_sl/240620_120000": {
			{Name: "output_1.root", Size: 100},
			{Name: "output_2.root", Size: 200},
			{Name: "log.txt", Size: 5},
		},
		"crab_DY_ext/240621_090000": {
			{Name: "output_1.root", Size: 300},
		},
	}
}

func TestScanDepthOne(t *testing.T) {
	s := &Scanner{List: crabTree().list, MaxDepth: 1, Filter: "*.root"}

	files, err := s.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []File{{RelPath: "stray.root", Size: 11}}, files)
}

func TestScanRecursiveWithFilter(t *testing.T) {
	s := &Scanner{List: crabTree().list, MaxDepth: 3, Filter: "*.root"}

	files, err := s.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []File{
		{RelPath: "crab_DY_ext/240621_090000/output_1.root", Size: 300},
		{RelPath: "crab_TT_sl/240620_120000/output_1.root", Size: 100},
		{RelPath: "crab_TT_sl/240620_120000/output_2.root", Size: 200},
		{RelPath: "stray.root", Size: 11},
	}, files)
}

func TestScanDirFilterSelectsTimestampDirs(t *testing.T) {
	// Dir filters apply to the directories found inside the first-level
	// task directories; only matching ones are entered.
	tree := fakeTree{
		"":            {{Name: "crab_TT_sl", Dir: true}},
		"crab_TT_sl":  {{Name: "240620_120000", Dir: true}, {Name: "old_submit", Dir: true}},
		"crab_TT_sl/240620_120000": {{Name: "output_1.root", Size: 100}},
		"crab_TT_sl/old_submit":    {{Name: "output_1.root", Size: 999}},
	}
	s := &Scanner{List: tree.list, MaxDepth: 3, Filter: "*.root", DirFilters: []string{"24*"}}

	files, err := s.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []File{{RelPath: "crab_TT_sl/240620_120000/output_1.root", Size: 100}}, files)
}

func TestScanExcludes(t *testing.T) {
	s := &Scanner{
		List:     crabTree().list,
		MaxDepth: 3,
		Filter:   "*.root",
		Excludes: []string{"crab_DY_ext/**"},
	}

	files, err := s.Scan(context.Background())
	require.NoError(t, err)
	for _, f := range files {
		assert.NotContains(t, f.RelPath, "crab_DY_ext")
	}
	assert.Len(t, files, 3)
}

func TestScanPropagatesListError(t *testing.T) {
	tree := crabTree()
	delete(tree, "crab_DY_ext")
	s := &Scanner{List: tree.list, MaxDepth: 3}

	_, err := s.Scan(context.Background())
	assert.Error(t, err)
}

func TestResolveLFNs(t *testing.T) {
	tree := fakeTree{
		"/store/user/alice/TT/nano": {
			{Name: "out_1.root", Size: 100},
			{Name: "out_2.root", Size: 200},
		},
	}
	r := &LFNResolver{
		List:          tree.list,
		DestRoot:      "/data",
		StripPrefixes: []string{"/store/user/alice"},
	}

	got, err := r.Resolve(context.Background(), []string{
		"/store/user/alice/TT/nano/out_1.root",
		"/store/user/alice/TT/nano/out_2.root",
	})
	require.NoError(t, err)
	assert.Equal(t, []Candidate{
		{LFN: "/store/user/alice/TT/nano/out_1.root", Dest: "/data/TT/nano/out_1.root", Size: 100},
		{LFN: "/store/user/alice/TT/nano/out_2.root", Dest: "/data/TT/nano/out_2.root", Size: 200},
	}, got)
}

func TestResolveWithoutStripKeepsFullPath(t *testing.T) {
	tree := fakeTree{
		"/store/data/era": {{Name: "f.root", Size: 1}},
	}
	r := &LFNResolver{List: tree.list, DestRoot: "/data"}

	got, err := r.Resolve(context.Background(), []string{"/store/data/era/f.root"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "/data/store/data/era/f.root", got[0].Dest)
}

func TestResolveUnknownLFNFails(t *testing.T) {
	tree := fakeTree{
		"/store/data/era": {{Name: "other.root", Size: 1}},
	}
	r := &LFNResolver{List: tree.list, DestRoot: "/data"}

	_, err := r.Resolve(context.Background(), []string{"/store/data/era/f.root"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/store/data/era/f.root")
}

func TestResolveUnmatchedPrefixFails(t *testing.T) {
	tree := fakeTree{
		"/store/user/bob/TT": {{Name: "f.root", Size: 1}},
	}
	r := &LFNResolver{
		List:          tree.list,
		DestRoot:      "/data",
		StripPrefixes: []string{"/store/user/alice"},
	}

	_, err := r.Resolve(context.Background(), []string{"/store/user/bob/TT/f.root"})
	assert.Error(t, err)
}

func TestResolveAppliesExcludes(t *testing.T) {
	tree := fakeTree{
		"/store/data/era": {
			{Name: "keep.root", Size: 1},
			{Name: "drop.root", Size: 2},
		},
	}
	r := &LFNResolver{
		List:     tree.list,
		DestRoot: "/data",
		Excludes: []string{"**/drop.root"},
	}

	got, err := r.Resolve(context.Background(), []string{
		"/store/data/era/keep.root",
		"/store/data/era/drop.root",
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "/store/data/era/keep.root", got[0].LFN)
}

func TestCheckDest(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file is fetched", func(t *testing.T) {
		status, err := CheckDest(filepath.Join(dir, "missing.root"), 100)
		require.NoError(t, err)
		assert.Equal(t, Fetch, status)
	})

	t.Run("complete file is skipped", func(t *testing.T) {
		path := filepath.Join(dir, "done.root")
		require.NoError(t, os.WriteFile(path, make([]byte, 100), 0644))

		status, err := CheckDest(path, 100)
		require.NoError(t, err)
		assert.Equal(t, Skip, status)
	})

	t.Run("short file is removed and refetched", func(t *testing.T) {
		path := filepath.Join(dir, "short.root")
		require.NoError(t, os.WriteFile(path, make([]byte, 40), 0644))

		status, err := CheckDest(path, 100)
		require.NoError(t, err)
		assert.Equal(t, Refetch, status)
		_, statErr := os.Stat(path)
		assert.True(t, errors.Is(statErr, os.ErrNotExist))
	})

	t.Run("existing file with unknown size is trusted", func(t *testing.T) {
		path := filepath.Join(dir, "unknown.root")
		require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

		status, err := CheckDest(path, 0)
		require.NoError(t, err)
		assert.Equal(t, Skip, status)
	})
}
