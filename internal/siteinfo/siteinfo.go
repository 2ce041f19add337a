// Package siteinfo loads the site-information file: which storage sites
// exist, their transfer endpoints, and per-user LFN prefixes that tell
// which site hosts a given file.
package siteinfo

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// User describes one dataset producer: the grid username and, per site,
// the LFN prefixes their outputs live under.
type User struct {
	Username string              `yaml:"username"`
	Prefix   map[string][]string `yaml:"prefix"`
}

// Info is the parsed site-information file.
type Info struct {
	Users map[string]User   `yaml:"users"`
	SRMs  map[string]string `yaml:"srms"`
}

// Load reads and validates a site-information YAML file.
func Load(path string) (*Info, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read site info: %w", err)
	}
	var info Info
	if err := yaml.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("parse site info %s: %w", path, err)
	}

	// A prefix claimed by two sites makes site resolution ambiguous.
	for name, user := range info.Users {
		seen := make(map[string]string)
		for site, prefixes := range user.Prefix {
			for _, prefix := range prefixes {
				if other, ok := seen[prefix]; ok && other != site {
					return nil, fmt.Errorf("site info %s: user %s: prefix %s claimed by both %s and %s",
						path, name, prefix, other, site)
				}
				seen[prefix] = site
			}
		}
	}
	return &info, nil
}

// SRM returns the transfer endpoint of a site.
func (i *Info) SRM(site string) (string, error) {
	url, ok := i.SRMs[site]
	if !ok {
		return "", fmt.Errorf("no SRM endpoint known for site %s", site)
	}
	return url, nil
}

// SiteFor resolves which of user's sites hosts lfn, by longest matching
// prefix, and returns the site with the matched prefix.
func (i *Info) SiteFor(userKey, lfn string) (site, prefix string, err error) {
	user, ok := i.Users[userKey]
	if !ok {
		return "", "", fmt.Errorf("unknown user %s in site info", userKey)
	}
	for s, prefixes := range user.Prefix {
		for _, p := range prefixes {
			if len(lfn) >= len(p) && lfn[:len(p)] == p && len(p) > len(prefix) {
				site, prefix = s, p
			}
		}
	}
	if site == "" {
		return "", "", fmt.Errorf("LFN %s does not start with any prefix of user %s", lfn, userKey)
	}
	return site, prefix, nil
}
