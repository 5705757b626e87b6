package asset_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/avatarctic/funwheel-offline/internal/core/domain/asset"
)

func TestParseManifest(t *testing.T) {
	m := asset.ParseManifest(" ./ , ./index.html,,./app.js ")
	require.Equal(t, asset.Manifest{"./", "./index.html", "./app.js"}, m)
	require.Empty(t, asset.ParseManifest(" , "))
}

func TestDefaultManifestContainsFallback(t *testing.T) {
	require.Contains(t, asset.DefaultManifest(), asset.DefaultFallbackPath)
	require.Len(t, asset.DefaultManifest(), 9)
}

func TestResolveInScope(t *testing.T) {
	require.Equal(t, "/", asset.ResolveInScope("/", "./"))
	require.Equal(t, "/index.html", asset.ResolveInScope("", "./index.html"))
	require.Equal(t, "/wheel/index.html", asset.ResolveInScope("/wheel", "./index.html"))
	require.Equal(t, "/wheel/", asset.ResolveInScope("./wheel/", "./"))
	require.Equal(t, "/app.js?v=1", asset.ResolveInScope("/", "./app.js?v=1"))
}

func TestManifestRequests(t *testing.T) {
	reqs := asset.Manifest{"./", "./style.css"}.Requests("/wheel/")
	require.Len(t, reqs, 2)
	require.Equal(t, "/wheel/", reqs[0].Key())
	require.Equal(t, "/wheel/style.css", reqs[1].Key())
	for _, r := range reqs {
		require.True(t, r.Cacheable())
	}
}

func TestInScope(t *testing.T) {
	require.True(t, asset.InScope("/", "/anything"))
	require.True(t, asset.InScope("/wheel", "/wheel/app.js"))
	require.False(t, asset.InScope("/wheel", "/app.js"))
	require.False(t, asset.InScope("/wheel", "/wheelbarrow"))
}
