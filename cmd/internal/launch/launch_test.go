package launch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Carmen-Shannon/oxy-samples/engine/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigAppliesFlagOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	require.NoError(t, os.WriteFile(path, []byte("[renderer]\nframe_count = 2\n"), 0o644))

	c, err := Config(Flags{ConfigPath: path, Backend: "software"})
	require.NoError(t, err)
	assert.Equal(t, 2, c.Renderer.FrameCount)
	assert.Equal(t, "software", c.Renderer.Backend)
}

func TestConfigDefaultsWithoutFile(t *testing.T) {
	c, err := Config(Flags{})
	require.NoError(t, err)
	assert.Equal(t, config.Default().Renderer, c.Renderer)
}

func TestConfigRejectsBadBackend(t *testing.T) {
	_, err := Config(Flags{Backend: "d3d12"})
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestSoftwareBackendIsHeadless(t *testing.T) {
	c := config.Default()
	c.Renderer.Backend = "software"
	win, err := Window(c, "test")
	require.NoError(t, err)
	assert.Nil(t, win)
}
