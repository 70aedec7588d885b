package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSurveys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "surveys.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
surveys:
  - id: dss
    base_url: https://alasky.example/DSS/DSSColor
    format: jpeg
    max_order: 9
    allsky_order: 2
    frame: C
    coverage: "0/0-11"
  - id: hi4pi
    kind: cube
    depth: 16
    base_url: https://alasky.example/HI4PI
    format: fits
    max_order: 3
`), 0644))

	surveys, err := LoadSurveys(path)
	require.NoError(t, err)
	require.Len(t, surveys, 2)

	dss := surveys[0]
	assert.Equal(t, "dss", dss.ID)
	assert.Equal(t, "image", dss.Kind)
	assert.Equal(t, "jpeg", dss.Format)
	assert.Equal(t, uint8(9), dss.MaxOrder)
	require.NotNil(t, dss.AllskyOrder)
	assert.Equal(t, 2, *dss.AllskyOrder)
	assert.Equal(t, "0/0-11", dss.Coverage)

	cube := surveys[1]
	assert.Equal(t, "cube", cube.Kind)
	assert.Equal(t, 16, cube.Depth)
	assert.Nil(t, cube.AllskyOrder)
}

func TestLoadSurveysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "surveys.yaml")
	require.NoError(t, os.WriteFile(path, []byte("surveys:\n  - id: x\n"), 0644))

	surveys, err := LoadSurveys(path)
	require.NoError(t, err)
	require.Len(t, surveys, 1)
	assert.Equal(t, "image", surveys[0].Kind)
	assert.Equal(t, "png", surveys[0].Format)
}

func TestLoadSurveysErrors(t *testing.T) {
	surveys, err := LoadSurveys(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Nil(t, surveys)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("surveys:\n  - kind: image\n"), 0644))
	_, err = LoadSurveys(path)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("surveys: [[["), 0644))
	_, err = LoadSurveys(path)
	assert.Error(t, err)
}

func TestCacheBudget(t *testing.T) {
	assert.Equal(t, uint64(1000), Cache{BudgetBytes: 1000}.Budget(4))

	shared := Cache{BudgetFraction: 0.1}
	one := shared.Budget(1)
	assert.Positive(t, one)
	assert.InDelta(t, float64(one)/2, float64(shared.Budget(2)), 1)
	assert.Equal(t, one, shared.Budget(0))
}

func TestNew(t *testing.T) {
	t.Setenv("HTTP_SERVER_PORT", "8080")
	t.Setenv("LOGGER_LEVEL", "debug")
	t.Setenv("CACHE_MAX_INFLIGHT", "3")
	t.Setenv("SURVEYS_FILE", filepath.Join(t.TempDir(), "none.yaml"))

	cfg, err := New()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.HTTP.Server.Port)
	assert.Equal(t, 3, cfg.Cache.MaxInflight)
	assert.Equal(t, "none", cfg.Cache.DiskBackend)
	assert.Equal(t, 1024, cfg.Loader.QueueSize)
	assert.Empty(t, cfg.Surveys)
}
