package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hep-ops/gridsync/internal/datasets"
	"github.com/hep-ops/gridsync/internal/lfnlist"
	"github.com/hep-ops/gridsync/internal/logging"
	"github.com/hep-ops/gridsync/internal/siteinfo"
	"github.com/hep-ops/gridsync/pkg/das"
)

// userSite identifies one transfer source: one user's files at one site.
type userSite struct {
	User string
	Site string
}

// plan accumulates, over all samples, which LFN list files belong to
// which (user, site) pair and which prefixes map their LFNs home.
type plan struct {
	listFiles map[userSite][]string
	prefixes  map[userSite][]string
}

func newPlan() *plan {
	return &plan{
		listFiles: make(map[userSite][]string),
		prefixes:  make(map[userSite][]string),
	}
}

func (p *plan) add(key userSite, listFile string, prefixes []string) {
	p.listFiles[key] = append(p.listFiles[key], listFile)
	for _, prefix := range prefixes {
		if !contains(p.prefixes[key], prefix) {
			p.prefixes[key] = append(p.prefixes[key], prefix)
		}
	}
}

func (p *plan) keys() []userSite {
	keys := make([]userSite, 0, len(p.listFiles))
	for key := range p.listFiles {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].User != keys[j].User {
			return keys[i].User < keys[j].User
		}
		return keys[i].Site < keys[j].Site
	})
	return keys
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}

// planner writes the per-sample file lists and fills the transfer plan.
type planner struct {
	client    das.Client
	info      *siteinfo.Info
	outputDir string
	destDir   string
	logger    *logging.Logger
}

// planSample queries the sample's LFNs, sorts each one to the site
// hosting it via the responsible user's prefixes, and writes the local
// path list and the per-(user, site) LFN lists. An LFN matching no
// prefix means the site map is wrong; that aborts the run, after logging
// which sites the catalog thinks host the dataset.
func (p *planner) planSample(ctx context.Context, name string, entry datasets.Entry, pl *plan) error {
	lfns, err := p.client.Files(ctx, entry.DBS)
	if err != nil {
		return err
	}
	user, ok := p.info.Users[entry.Responsible]
	if !ok {
		return fmt.Errorf("sample %s: no site info for responsible user %s", name, entry.Responsible)
	}

	bySite := make(map[string][]string)
	sitePrefixes := make(map[string][]string)
	localPaths := make([]string, 0, len(lfns))
	for _, lfn := range lfns {
		site, prefix, err := p.info.SiteFor(entry.Responsible, lfn)
		if err != nil {
			if sites, sErr := p.client.Sites(ctx, entry.DBS); sErr == nil {
				p.logger.Errorf("Sites hosting %s according to the catalog: %s", entry.DBS, strings.Join(sites, ", "))
			}
			return fmt.Errorf("sample %s: %w", name, err)
		}
		localPaths = append(localPaths, filepath.Join(p.destDir, strings.TrimPrefix(strings.TrimPrefix(lfn, prefix), "/")))
		bySite[site] = append(bySite[site], lfn)
		if !contains(sitePrefixes[site], prefix) {
			sitePrefixes[site] = append(sitePrefixes[site], prefix)
		}
	}

	localDir := filepath.Join(p.outputDir, "files")
	if err := os.MkdirAll(localDir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	if err := lfnlist.Write(filepath.Join(localDir, name+".txt"), localPaths); err != nil {
		return err
	}

	sites := make([]string, 0, len(bySite))
	for site := range bySite {
		sites = append(sites, site)
	}
	sort.Strings(sites)
	for _, site := range sites {
		key := userSite{User: user.Username, Site: site}
		dir := filepath.Join(p.outputDir, "LFNs", key.User+"_"+key.Site)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create LFN directory: %w", err)
		}
		listFile := filepath.Join(dir, name)
		if err := lfnlist.Write(listFile, bySite[site]); err != nil {
			return err
		}
		pl.add(key, listFile, sitePrefixes[site])
	}
	p.logger.Debugf("Finished writing files for sample %s", name)
	return nil
}

// commandOptions parameterize the generated gridsync invocations.
type commandOptions struct {
	DestDir     string
	GfalEnv     string
	HomeSite    string
	Concurrency int
}

// buildCommands emits one gridsync invocation per (user, site) pair,
// skipping the home site: its files need no transfer.
func buildCommands(pl *plan, info *siteinfo.Info, opts commandOptions) ([][]string, error) {
	var commands [][]string
	for _, key := range pl.keys() {
		if key.Site == opts.HomeSite {
			continue
		}
		srm, err := info.SRM(key.Site)
		if err != nil {
			return nil, err
		}
		cmd := []string{
			"gridsync",
			fmt.Sprintf("-j%d", opts.Concurrency),
			"--srm=" + srm,
			"--dest=" + opts.DestDir,
		}
		if opts.GfalEnv != "" {
			cmd = append(cmd, "--gfal-env="+opts.GfalEnv)
		}
		for _, prefix := range pl.prefixes[key] {
			cmd = append(cmd, "--lfn-strip="+prefix)
		}
		cmd = append(cmd, pl.listFiles[key]...)
		commands = append(commands, cmd)
	}
	return commands, nil
}
