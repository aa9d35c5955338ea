package source

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebRepository(t *testing.T) {
	raw := readFixture(t)
	var gotKey atomic.Value
	testServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey.Store(r.Header.Get("X-API-Key"))
		w.Write(raw)
	}))
	defer testServer.Close()

	u, err := url.Parse(testServer.URL + "/device.yaml")
	require.NoError(t, err)
	repo := &WebRepository{Name: "web", URL: u, APIKey: "provision-key"}
	require.NoError(t, repo.Refresh())

	assert.Equal(t, "provision-key", gotKey.Load())
	assertFixture(t, repo)
	assert.Equal(t, raw, repo.GetRawData())
}

func TestWebRepositoryErrorStatusKeepsData(t *testing.T) {
	raw := readFixture(t)
	var fail atomic.Bool
	testServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			http.Error(w, "nope", http.StatusForbidden)
			return
		}
		w.Write(raw)
	}))
	defer testServer.Close()

	u, _ := url.Parse(testServer.URL)
	repo := &WebRepository{Name: "web", URL: u, Client: testServer.Client(), Timeout: time.Second}
	require.NoError(t, repo.Refresh())

	fail.Store(true)
	err := repo.Refresh()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
	assertFixture(t, repo)
}
