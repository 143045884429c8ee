package prompts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestProvider_LoadAllAndGet(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "storyboard.md"), []byte("Return JSON."), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("ignored"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "drafts.md"), 0o755))

	p := NewProvider(dir, zap.NewNop())
	require.NoError(t, p.LoadAll())

	assert.Equal(t, "Return JSON.", p.GetPrompt("storyboard"))
	assert.Equal(t, "Return JSON.", p.GetPrompt(" storyboard "))
	assert.Empty(t, p.GetPrompt("readme"))
	assert.Empty(t, p.GetPrompt("unknown"))
	assert.Empty(t, p.GetPrompt(""))
}

func TestProvider_ReloadReplacesCache(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scene.md")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))

	p := NewProvider(dir, zap.NewNop())
	require.NoError(t, p.LoadAll())
	assert.Equal(t, "v1", p.GetPrompt("scene"))

	require.NoError(t, os.Remove(path))
	require.NoError(t, p.LoadAll())
	assert.Empty(t, p.GetPrompt("scene"))
}

func TestProvider_BundledTemplates(t *testing.T) {
	p := NewProvider("../../prompts", zap.NewNop())
	require.NoError(t, p.LoadAll())
	assert.Contains(t, p.GetPrompt("storyboard"), "responseFormat")
}

func TestProvider_MissingDir(t *testing.T) {
	p := NewProvider(filepath.Join(t.TempDir(), "absent"), zap.NewNop())
	assert.Error(t, p.LoadAll())
}
