package datasets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
"2017":
  TTTo2L2Nu:
    dbs: /TTTo2L2Nu/alice-TopNanoAODv6-1-abc123/USER
    parents:
      - /TTTo2L2Nu/campaign/MINIAODSIM
    responsible: alice
  SingleMuon_Run2017B:
    dbs: /SingleMuon/bob-TopNanoAODv6-Run2017B-def456/USER
    parents:
      - /SingleMuon/Run2017B-31Mar2018-v1/MINIAOD
    responsible: bob
    comment: Not completely processed yet
`

func writeSample(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "datasets.yml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0644))
	return path
}

func TestLoadAndSelect(t *testing.T) {
	f, err := Load(writeSample(t))
	require.NoError(t, err)

	selected, err := f.Select("2017", []string{"TTTo2L2Nu"})
	require.NoError(t, err)
	require.Len(t, selected, 1)
	assert.Equal(t, "/TTTo2L2Nu/alice-TopNanoAODv6-1-abc123/USER", selected["TTTo2L2Nu"].DBS)
	assert.Equal(t, "alice", selected["TTTo2L2Nu"].Responsible)
}

func TestSelectUnknownSample(t *testing.T) {
	f, err := Load(writeSample(t))
	require.NoError(t, err)

	_, err = f.Select("2017", []string{"TTTo2L2Nu", "NoSuchSample"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NoSuchSample")

	_, err = f.Select("2031", []string{"TTTo2L2Nu"})
	assert.Error(t, err)
}

func TestNames(t *testing.T) {
	f, err := Load(writeSample(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"SingleMuon_Run2017B", "TTTo2L2Nu"}, f.Names("2017"))
}

func TestWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yml")
	entries := map[string]Entry{
		"TTTo2L2Nu": {
			DBS:         "/TTTo2L2Nu/alice-x/USER",
			Parents:     []string{"/TTTo2L2Nu/campaign/MINIAODSIM"},
			Responsible: "alice",
		},
	}
	require.NoError(t, Write(path, entries))

	// Round-trips through Load using a year wrapper.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "dbs: /TTTo2L2Nu/alice-x/USER")

	// Never overwrites.
	err = Write(path, entries)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}
