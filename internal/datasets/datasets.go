// Package datasets reads and writes the dataset summary file shared by
// the verification and transfer-list tools: per data-taking year, a map
// of sample names to their catalog paths, parents and responsible user.
package datasets

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Entry describes one sample.
type Entry struct {
	DBS         string   `yaml:"dbs"`
	Parents     []string `yaml:"parents,omitempty"`
	Responsible string   `yaml:"responsible,omitempty"`
	Comment     string   `yaml:"comment,omitempty"`
}

// File maps data-taking year to sample name to entry.
type File map[string]map[string]Entry

// Load reads a dataset summary file.
func Load(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read datasets file: %w", err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse datasets file %s: %w", path, err)
	}
	return f, nil
}

// Select returns the entries of one year restricted to the named
// samples. Names with no entry are reported so typos do not silently
// select nothing.
func (f File) Select(year string, names []string) (map[string]Entry, error) {
	all, ok := f[year]
	if !ok {
		return nil, fmt.Errorf("no datasets for year %s", year)
	}
	out := make(map[string]Entry)
	var missing []string
	for _, name := range names {
		entry, ok := all[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		out[name] = entry
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("unknown samples for year %s: %v", year, missing)
	}
	return out, nil
}

// Names returns the sample names of one year in sorted order.
func (f File) Names(year string) []string {
	names := make([]string, 0, len(f[year]))
	for name := range f[year] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Write writes a summary map (single year level, as the checker produces
// it) to path with stable key order. It refuses to overwrite.
func Write(path string, entries map[string]Entry) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("file %s already exists", path)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	// yaml.v3 marshals map keys in sorted order already; go through an
	// explicit key list anyway so the on-disk order is a documented
	// property, not an implementation detail.
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)

	var root yaml.Node
	root.Kind = yaml.MappingNode
	for _, name := range names {
		var key, value yaml.Node
		key.SetString(name)
		if err := value.Encode(entries[name]); err != nil {
			return fmt.Errorf("encode entry %s: %w", name, err)
		}
		root.Content = append(root.Content, &key, &value)
	}

	data, err := yaml.Marshal(&root)
	if err != nil {
		return fmt.Errorf("marshal datasets: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write datasets file: %w", err)
	}
	return nil
}
