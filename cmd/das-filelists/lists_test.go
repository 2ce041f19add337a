package main

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hep-ops/gridsync/internal/datasets"
	"github.com/hep-ops/gridsync/internal/lfnlist"
	"github.com/hep-ops/gridsync/internal/logging"
	"github.com/hep-ops/gridsync/internal/siteinfo"
	"github.com/hep-ops/gridsync/pkg/lumi"
)

// fakeCatalog serves canned file lists.
type fakeCatalog struct {
	files map[string][]string
	sites map[string][]string
}

func (f *fakeCatalog) Datasets(_ context.Context, pattern string) ([]string, error) {
	return nil, errors.New("not used")
}

func (f *fakeCatalog) Parents(_ context.Context, dataset string) ([]string, error) {
	return nil, errors.New("not used")
}

func (f *fakeCatalog) Files(_ context.Context, dataset string) ([]string, error) {
	lfns, ok := f.files[dataset]
	if !ok {
		return nil, errors.New("unknown dataset " + dataset)
	}
	return lfns, nil
}

func (f *fakeCatalog) Sites(_ context.Context, dataset string) ([]string, error) {
	return f.sites[dataset], nil
}

func (f *fakeCatalog) RunLumis(_ context.Context, dataset string) (lumi.List, error) {
	return nil, errors.New("not used")
}

func testInfo() *siteinfo.Info {
	return &siteinfo.Info{
		Users: map[string]siteinfo.User{
			"alice": {
				Username: "agrid",
				Prefix: map[string][]string{
					"T2_DE_DESY": {"/store/user/agrid/aachen"},
					"T2_DE_RWTH": {"/store/user/agrid"},
				},
			},
		},
		SRMs: map[string]string{
			"T2_DE_DESY": "srm://dcache-se.desy.de/pnfs/desy.de/cms/tier2",
			"T2_DE_RWTH": "srm://grid-srm.physik.rwth-aachen.de/pnfs/physik.rwth-aachen.de/cms",
		},
	}
}

func TestPlanSampleSortsLFNsBySite(t *testing.T) {
	catalog := &fakeCatalog{
		files: map[string][]string{
			"/TT/alice-v6/USER": {
				"/store/user/agrid/TT/v6/tree_1.root",
				"/store/user/agrid/aachen/TT/v6/tree_2.root",
				"/store/user/agrid/TT/v6/tree_3.root",
			},
		},
	}
	outDir := t.TempDir()
	p := &planner{
		client:    catalog,
		info:      testInfo(),
		outputDir: outDir,
		destDir:   "/data/nano",
		logger:    logging.NewLogger(true, false),
	}

	pl := newPlan()
	entry := datasets.Entry{DBS: "/TT/alice-v6/USER", Responsible: "alice"}
	require.NoError(t, p.planSample(context.Background(), "TT", entry, pl))

	local, err := lfnlist.Read(filepath.Join(outDir, "files", "TT.txt"))
	require.NoError(t, err)
	assert.Equal(t, []string{
		"/data/nano/TT/v6/tree_1.root",
		"/data/nano/TT/v6/tree_2.root",
		"/data/nano/TT/v6/tree_3.root",
	}, local)

	rwth, err := lfnlist.Read(filepath.Join(outDir, "LFNs", "agrid_T2_DE_RWTH", "TT"))
	require.NoError(t, err)
	assert.Equal(t, []string{
		"/store/user/agrid/TT/v6/tree_1.root",
		"/store/user/agrid/TT/v6/tree_3.root",
	}, rwth)

	desy, err := lfnlist.Read(filepath.Join(outDir, "LFNs", "agrid_T2_DE_DESY", "TT"))
	require.NoError(t, err)
	assert.Equal(t, []string{"/store/user/agrid/aachen/TT/v6/tree_2.root"}, desy)

	assert.Equal(t, []userSite{
		{User: "agrid", Site: "T2_DE_DESY"},
		{User: "agrid", Site: "T2_DE_RWTH"},
	}, pl.keys())
	assert.Equal(t, []string{"/store/user/agrid"}, pl.prefixes[userSite{User: "agrid", Site: "T2_DE_RWTH"}])
}

func TestPlanSampleUnmatchedPrefixFails(t *testing.T) {
	catalog := &fakeCatalog{
		files: map[string][]string{
			"/TT/alice-v6/USER": {"/store/user/stranger/TT/tree_1.root"},
		},
		sites: map[string][]string{
			"/TT/alice-v6/USER": {"T2_IT_Pisa"},
		},
	}
	p := &planner{
		client:    catalog,
		info:      testInfo(),
		outputDir: t.TempDir(),
		destDir:   "/data/nano",
		logger:    logging.NewLogger(true, false),
	}

	err := p.planSample(context.Background(), "TT", datasets.Entry{DBS: "/TT/alice-v6/USER", Responsible: "alice"}, newPlan())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not start with any prefix")
}

func TestPlanSampleUnknownResponsible(t *testing.T) {
	p := &planner{
		client:    &fakeCatalog{files: map[string][]string{"/TT/bob-v6/USER": {}}},
		info:      testInfo(),
		outputDir: t.TempDir(),
		destDir:   "/data/nano",
		logger:    logging.NewLogger(true, false),
	}

	err := p.planSample(context.Background(), "TT", datasets.Entry{DBS: "/TT/bob-v6/USER", Responsible: "bob"}, newPlan())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no site info for responsible user bob")
}

func TestBuildCommands(t *testing.T) {
	pl := newPlan()
	pl.add(userSite{User: "agrid", Site: "T2_DE_RWTH"}, "LFNs/agrid_T2_DE_RWTH/TT", []string{"/store/user/agrid"})
	pl.add(userSite{User: "agrid", Site: "T2_DE_RWTH"}, "LFNs/agrid_T2_DE_RWTH/DY", []string{"/store/user/agrid"})
	pl.add(userSite{User: "agrid", Site: "T2_DE_DESY"}, "LFNs/agrid_T2_DE_DESY/TT", []string{"/store/user/agrid/aachen"})

	commands, err := buildCommands(pl, testInfo(), commandOptions{
		DestDir:     "/data/nano",
		GfalEnv:     "/home/op/clean_gfal_env.json",
		HomeSite:    "T2_DE_DESY",
		Concurrency: 5,
	})
	require.NoError(t, err)

	// The home site's files are already local.
	require.Len(t, commands, 1)
	assert.Equal(t, []string{
		"gridsync",
		"-j5",
		"--srm=srm://grid-srm.physik.rwth-aachen.de/pnfs/physik.rwth-aachen.de/cms",
		"--dest=/data/nano",
		"--gfal-env=/home/op/clean_gfal_env.json",
		"--lfn-strip=/store/user/agrid",
		"LFNs/agrid_T2_DE_RWTH/TT",
		"LFNs/agrid_T2_DE_RWTH/DY",
	}, commands[0])
}

func TestBuildCommandsUnknownSRM(t *testing.T) {
	pl := newPlan()
	pl.add(userSite{User: "agrid", Site: "T2_IT_Pisa"}, "LFNs/agrid_T2_IT_Pisa/TT", nil)

	_, err := buildCommands(pl, testInfo(), commandOptions{DestDir: "/data/nano", Concurrency: 5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no SRM endpoint known for site T2_IT_Pisa")
}
