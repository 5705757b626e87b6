package network_test

import (
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/avatarctic/funwheel-offline/internal/core/domain/asset"
	"github.com/avatarctic/funwheel-offline/internal/infrastructure/network"
)

func TestNewHTTPFetcher_RequiresAbsoluteOrigin(t *testing.T) {
	_, err := network.NewHTTPFetcher(&network.HTTPFetcherConfig{OriginURL: "/relative"}, nil, logrus.New())
	require.Error(t, err)
	_, err = network.NewHTTPFetcher(&network.HTTPFetcherConfig{OriginURL: "http://origin.local"}, nil, logrus.New())
	require.NoError(t, err)
}

func TestHTTPFetcher_ForwardsPathQueryAndBody(t *testing.T) {
	var gotURI, gotMethod, gotBody, gotConn string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotURI = r.URL.RequestURI()
		gotMethod = r.Method
		gotConn = r.Header.Get("X-Forwarded-Test")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Header().Set("Content-Type", "application/javascript")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f, err := network.NewHTTPFetcher(&network.HTTPFetcherConfig{OriginURL: srv.URL + "/app/"}, srv.Client(), logrus.New())
	require.NoError(t, err)

	req := &asset.Request{
		Method: http.MethodPost,
		URL:    "/spin?seed=4",
		Header: http.Header{"X-Forwarded-Test": []string{"yes"}, "Connection": []string{"close"}},
		Body:   strings.NewReader(`{"options":3}`),
	}
	resp, err := f.Fetch(context.Background(), req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusCreated, resp.Status)
	require.Equal(t, "application/javascript", resp.Header.Get("Content-Type"))
	require.Equal(t, "/app/spin?seed=4", gotURI)
	require.Equal(t, http.MethodPost, gotMethod)
	require.Equal(t, `{"options":3}`, gotBody)
	require.Equal(t, "yes", gotConn)
}

func TestHTTPFetcher_DefaultsToGet(t *testing.T) {
	var gotMethod, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		_, _ = w.Write([]byte("index"))
	}))
	defer srv.Close()

	f, err := network.NewHTTPFetcher(&network.HTTPFetcherConfig{OriginURL: srv.URL}, nil, logrus.New())
	require.NoError(t, err)
	resp, err := f.Fetch(context.Background(), &asset.Request{URL: "./index.html"})
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, "index", string(body))
	require.Equal(t, http.MethodGet, gotMethod)
	require.Equal(t, "/index.html", gotPath)
}

func TestHTTPFetcher_HTTPErrorStatusIsNotANetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	f, err := network.NewHTTPFetcher(&network.HTTPFetcherConfig{OriginURL: srv.URL}, nil, nil)
	require.NoError(t, err)
	resp, err := f.Fetch(context.Background(), asset.NewRequest("/missing.png"))
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.Status)
	require.False(t, resp.OK())
}

func TestHTTPFetcher_UnreachableOriginIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	origin := srv.URL
	srv.Close()

	f, err := network.NewHTTPFetcher(&network.HTTPFetcherConfig{OriginURL: origin}, nil, logrus.New())
	require.NoError(t, err)
	_, err = f.Fetch(context.Background(), asset.NewRequest("/"))
	require.ErrorIs(t, err, asset.ErrNetwork)
}

func TestHTTPFetcher_CacheableBodiesAreDecoded(t *testing.T) {
	var gotEncoding string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotEncoding = r.Header.Get("Accept-Encoding")
		if !strings.Contains(gotEncoding, "gzip") {
			_, _ = w.Write([]byte("plain"))
			return
		}
		w.Header().Set("Content-Encoding", "gzip")
		zw := gzip.NewWriter(w)
		_, _ = zw.Write([]byte("body{}"))
		_ = zw.Close()
	}))
	defer srv.Close()

	f, err := network.NewHTTPFetcher(&network.HTTPFetcherConfig{OriginURL: srv.URL}, srv.Client(), logrus.New())
	require.NoError(t, err)

	req := asset.NewRequest("/style.css")
	req.Header.Set("Accept-Encoding", "gzip, br")
	resp, err := f.Fetch(context.Background(), req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, "body{}", string(body))
	require.Empty(t, resp.Header.Get("Content-Encoding"))
	require.Equal(t, "gzip", gotEncoding)
}
