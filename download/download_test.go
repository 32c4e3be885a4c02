package download_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ocm.software/open-component-model/bindings/go/modelarchive/download"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/models/noop.mar", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "modelarchive", r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte("archive"))
	})
	mux.HandleFunc("/models/forbidden.mar", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	mux.HandleFunc("/models/slow.mar", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestFetch(t *testing.T) {
	server := newServer(t)
	client := download.NewHTTPClient()

	t.Run("success", func(t *testing.T) {
		r := require.New(t)
		rc, err := client.Fetch(t.Context(), server.URL+"/models/noop.mar")
		r.NoError(err)
		data, err := io.ReadAll(rc)
		r.NoError(err)
		r.NoError(rc.Close())
		r.Equal("archive", string(data))
	})

	t.Run("not found", func(t *testing.T) {
		_, err := client.Fetch(t.Context(), server.URL+"/models/squeezenet_v1.1.mod")
		assert.ErrorIs(t, err, download.ErrNotFound)
	})

	t.Run("status", func(t *testing.T) {
		_, err := client.Fetch(t.Context(), server.URL+"/models/forbidden.mar")
		assert.ErrorIs(t, err, download.ErrStatus)
	})

	t.Run("connectivity", func(t *testing.T) {
		closed := httptest.NewServer(http.NotFoundHandler())
		url := closed.URL
		closed.Close()
		_, err := client.Fetch(t.Context(), url+"/models/noop.mar")
		assert.ErrorIs(t, err, download.ErrConnectivity)
	})

	t.Run("timeout", func(t *testing.T) {
		client := download.NewHTTPClient(
			download.WithHTTPClient(&http.Client{}),
			download.WithTimeout(50*time.Millisecond),
		)
		_, err := client.Fetch(t.Context(), server.URL+"/models/slow.mar")
		assert.ErrorIs(t, err, download.ErrConnectivity)
	})
}

func TestParseURL(t *testing.T) {
	for _, raw := range []string{
		"https://s3.amazonaws.com/model-server/models/squeezenet_v1.1/squeezenet_v1.1.model",
		"http://127.0.0.1:8080/noop.mar",
		"http://[::1]/noop.mar",
		"https://models.internal_host.local/noop.mar",
	} {
		_, err := download.ParseURL(raw)
		assert.NoError(t, err, raw)
	}

	for _, raw := range []string{
		"https://../model-server/models/squeezenet_v1.1/squeezenet_v1.1.mod",
		"https:///noop.mar",
		"ftp://example.com/noop.mar",
		"https://-bad-.example.com/noop.mar",
		"https://example.com:99999/noop.mar",
		"https://exa mple.com/noop.mar",
	} {
		_, err := download.ParseURL(raw)
		assert.ErrorIs(t, err, download.ErrMalformedURL, raw)
	}

	_, err := download.NewHTTPClient().Fetch(t.Context(), "https://../model-server/noop.mar")
	assert.ErrorIs(t, err, download.ErrMalformedURL)
}
