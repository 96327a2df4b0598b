package manifest

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"runtime"
	"testing"

	"costrict-updater/internal/config"
	"costrict-updater/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T, status int, body any) (*httptest.Server, *string) {
	t.Helper()
	var path string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.WriteHeader(status)
		switch b := body.(type) {
		case string:
			w.Write([]byte(b))
		default:
			json.NewEncoder(w).Encode(b)
		}
	}))
	t.Cleanup(ts.Close)
	return ts, &path
}

func newClient(url string) *Client {
	return NewClient(config.UpdaterConfig{ManifestURL: url + "/api/v1/query/"}, nil)
}

func TestCheckNewVersion(t *testing.T) {
	t.Parallel()

	ts, path := newServer(t, http.StatusOK, models.UpgradeResult{
		PackageName:    "app",
		HasNewVersion:  true,
		PackageVersion: "1.3.0",
		ForceUpdate:    true,
		PackageURL:     "http://example.com/app-1.3.0.zip",
		PackageSize:    1024,
		PackageFormat:  "ZIP",
		PackageHash:    map[string]string{"SHA256": "abc"},
		UpdateTitle:    "1.3.0",
	})

	desc, err := newClient(ts.URL).Check(context.Background(), "app", "1.2.0")
	require.NoError(t, err)
	require.NotNil(t, desc)
	assert.Equal(t, "/api/v1/query/app/1.2.0", *path)
	assert.Equal(t, "1.3.0", desc.Version)
	assert.Equal(t, "zip", desc.Format)
	assert.Equal(t, map[string]string{"sha256": "abc"}, desc.Hash)
	assert.True(t, desc.Force)
	assert.Equal(t, "app-1.3.0.zip", desc.FileName())
}

func TestCheckUpToDate(t *testing.T) {
	t.Parallel()

	ts, _ := newServer(t, http.StatusOK, models.UpgradeResult{PackageName: "app"})
	desc, err := newClient(ts.URL).Check(context.Background(), "app", "1.3.0")
	require.NoError(t, err)
	assert.Nil(t, desc)
}

func TestCheckInvalidAnswers(t *testing.T) {
	t.Parallel()

	valid := models.UpgradeResult{
		PackageName:    "app",
		HasNewVersion:  true,
		PackageVersion: "1.3.0",
		PackageURL:     "http://example.com/app.zip",
		PackageSize:    10,
		PackageFormat:  "zip",
	}
	tarball := valid
	tarball.PackageFormat = "tar.gz"
	crc := valid
	crc.PackageHash = map[string]string{"crc32": "00"}
	noURL := valid
	noURL.PackageURL = ""

	cases := []struct {
		name string
		body any
		kind error
	}{
		{"bad json", "{not json", models.ErrPackageInfoFormat},
		{"format", tarball, models.ErrUnsupportedPackageFormat},
		{"hash", crc, models.ErrUnsupportedHashAlgorithm},
		{"url", noURL, models.ErrPackageInfoFormat},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			ts, _ := newServer(t, http.StatusOK, tc.body)
			_, err := newClient(ts.URL).Check(context.Background(), "app", "1.0.0")
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.kind), err.Error())
		})
	}
}

func TestQueryBadStatus(t *testing.T) {
	t.Parallel()

	ts, _ := newServer(t, http.StatusNotFound, `{"code":"package.not_found"}`)
	_, err := newClient(ts.URL).Query(context.Background(), "app", "1.0.0")
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrNetwork))
}

func TestQueryOverUnixSocket(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix socket")
	}
	sock := filepath.Join(t.TempDir(), "m.sock")
	l, err := net.Listen("unix", sock)
	require.NoError(t, err)
	srv := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(models.UpgradeResult{PackageName: "app"})
	})}
	go srv.Serve(l)
	defer srv.Close()

	c := NewClient(config.UpdaterConfig{ManifestURL: "http://localhost/api/v1/query", ManifestSocket: sock}, nil)
	res, err := c.Query(context.Background(), "app", "1.0.0")
	require.NoError(t, err)
	assert.Equal(t, "app", res.PackageName)
	assert.False(t, res.HasNewVersion)
}
