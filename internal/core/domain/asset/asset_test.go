package asset_test

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/avatarctic/funwheel-offline/internal/core/domain/asset"
)

func TestNormalizeKey(t *testing.T) {
	cases := map[string]string{
		"./":                         "/",
		"/":                          "/",
		"./style.css":                "/style.css",
		"style.css":                  "/style.css",
		"/app.js?v=2":                "/app.js?v=2",
		"https://cdn.example/a/b.js": "/a/b.js",
		"./icons/../icon-192.png":    "/icon-192.png",
	}
	for in, want := range cases {
		require.Equal(t, want, asset.NormalizeKey(in), in)
	}
}

func TestRequest_Cacheable(t *testing.T) {
	require.True(t, (&asset.Request{URL: "/"}).Cacheable())
	require.True(t, asset.NewRequest("/").Cacheable())
	for _, m := range []string{http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodHead} {
		require.False(t, (&asset.Request{Method: m, URL: "/"}).Cacheable(), m)
	}
}

func TestRequest_IsNavigation(t *testing.T) {
	req := asset.NewRequest("/")
	require.False(t, req.IsNavigation())
	req.Header.Set("Accept", "text/html")
	require.True(t, req.IsNavigation())
	require.False(t, (&asset.Request{URL: "/"}).IsNavigation())
}

func TestResponse_CloneGivesTwoReadableBodies(t *testing.T) {
	resp := &asset.Response{
		Status: http.StatusOK,
		Header: http.Header{"Content-Type": []string{"text/css"}},
		Body:   io.NopCloser(strings.NewReader("body{}")),
	}
	dup, err := resp.Clone()
	require.NoError(t, err)

	a, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	b, err := io.ReadAll(dup.Body)
	require.NoError(t, err)
	require.Equal(t, "body{}", string(a))
	require.Equal(t, string(a), string(b))

	dup.Header.Set("Content-Type", "text/plain")
	require.Equal(t, "text/css", resp.Header.Get("Content-Type"))
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestResponse_CloneReportsReadError(t *testing.T) {
	resp := &asset.Response{Status: http.StatusOK, Body: io.NopCloser(failingReader{})}
	_, err := resp.Clone()
	require.Error(t, err)
}

func TestResponse_StoredAndBack(t *testing.T) {
	resp := &asset.Response{Status: http.StatusOK, Header: http.Header{}, Body: io.NopCloser(strings.NewReader("spin()"))}
	stored, err := resp.Stored("./app.js")
	require.NoError(t, err)
	require.Equal(t, "/app.js", stored.URL)
	require.False(t, stored.StoredAt.IsZero())

	for i := 0; i < 2; i++ {
		b, err := io.ReadAll(stored.Response().Body)
		require.NoError(t, err)
		require.Equal(t, "spin()", string(b))
	}
}

func TestResponse_OK(t *testing.T) {
	require.True(t, (&asset.Response{Status: 200}).OK())
	require.True(t, (&asset.Response{Status: 204}).OK())
	require.False(t, (&asset.Response{Status: 304}).OK())
	require.False(t, (&asset.Response{Status: 404}).OK())
}

func TestGeneration_Validate(t *testing.T) {
	require.NoError(t, asset.DefaultGeneration.Validate())
	require.ErrorIs(t, asset.Generation(" ").Validate(), asset.ErrInvalidGeneration)
}
