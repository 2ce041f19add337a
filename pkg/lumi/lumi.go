// Package lumi tracks which luminosity blocks of which runs a dataset
// covers. A List maps run numbers to sets of luminosity block numbers;
// completeness checks reduce to set subtraction between a dataset's list
// and the union of its parents' lists.
//
// The JSON form is the compact run-mask format used by recovery tasks:
// each run maps to a list of inclusive [first, last] block ranges, e.g.
// {"273158": [[1,4],[7,7]]}.
package lumi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
)

// List is a set of (run, luminosity block) pairs keyed by run number.
type List map[int]map[int]struct{}

// New returns an empty List.
func New() List {
	return make(List)
}

// Add inserts one luminosity block of one run.
func (l List) Add(run, block int) {
	blocks, ok := l[run]
	if !ok {
		blocks = make(map[int]struct{})
		l[run] = blocks
	}
	blocks[block] = struct{}{}
}

// AddRange inserts the inclusive block range [first, last] of one run.
func (l List) AddRange(run, first, last int) {
	for b := first; b <= last; b++ {
		l.Add(run, b)
	}
}

// Union merges other into l.
func (l List) Union(other List) {
	for run, blocks := range other {
		for b := range blocks {
			l.Add(run, b)
		}
	}
}

// Subtract returns the blocks present in l but not in other.
func (l List) Subtract(other List) List {
	out := New()
	for run, blocks := range l {
		otherBlocks := other[run]
		for b := range blocks {
			if _, ok := otherBlocks[b]; !ok {
				out.Add(run, b)
			}
		}
	}
	return out
}

// Runs returns the run numbers in ascending order.
func (l List) Runs() []int {
	runs := make([]int, 0, len(l))
	for run := range l {
		runs = append(runs, run)
	}
	sort.Ints(runs)
	return runs
}

// Blocks returns the luminosity blocks of one run in ascending order.
func (l List) Blocks(run int) []int {
	blocks := make([]int, 0, len(l[run]))
	for b := range l[run] {
		blocks = append(blocks, b)
	}
	sort.Ints(blocks)
	return blocks
}

// Total returns the number of (run, block) pairs.
func (l List) Total() int {
	n := 0
	for _, blocks := range l {
		n += len(blocks)
	}
	return n
}

// IsEmpty reports whether the list holds no blocks at all.
func (l List) IsEmpty() bool {
	return l.Total() == 0
}

// ranges collapses a sorted block list into inclusive [first, last] pairs.
func ranges(blocks []int) [][2]int {
	var out [][2]int
	for i := 0; i < len(blocks); {
		j := i
		for j+1 < len(blocks) && blocks[j+1] == blocks[j]+1 {
			j++
		}
		out = append(out, [2]int{blocks[i], blocks[j]})
		i = j + 1
	}
	return out
}

// MarshalJSON writes the run-mask form with runs in ascending order.
func (l List) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, run := range l.Runs() {
		if i > 0 {
			buf.WriteString(", ")
		}
		fmt.Fprintf(&buf, "%q: ", strconv.Itoa(run))
		rangesJSON, err := json.Marshal(ranges(l.Blocks(run)))
		if err != nil {
			return nil, err
		}
		buf.Write(rangesJSON)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads the run-mask form.
func (l *List) UnmarshalJSON(data []byte) error {
	var raw map[string][][2]int
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := New()
	for runStr, blockRanges := range raw {
		run, err := strconv.Atoi(runStr)
		if err != nil {
			return fmt.Errorf("invalid run number %q: %w", runStr, err)
		}
		for _, r := range blockRanges {
			if r[1] < r[0] {
				return fmt.Errorf("run %d: invalid block range [%d, %d]", run, r[0], r[1])
			}
			out.AddRange(run, r[0], r[1])
		}
	}
	*l = out
	return nil
}

// WriteFile writes the run-mask JSON to path.
func (l List) WriteFile(path string) error {
	data, err := json.Marshal(l)
	if err != nil {
		return fmt.Errorf("marshal lumi mask: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write lumi mask: %w", err)
	}
	return nil
}
