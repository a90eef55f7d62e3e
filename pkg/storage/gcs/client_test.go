package gcs

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glowhaus/storefront-backend/pkg/config"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return newClient(server.Client(), server.URL+"/", "glowhaus-feeds")
}

func TestPingListsBucket(t *testing.T) {
	var gotPath, gotQuery string
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(`{"items":[]}`))
	})

	require.NoError(t, client.Ping(context.Background()))
	assert.Equal(t, "/b/glowhaus-feeds/o", gotPath)
	assert.Equal(t, "maxResults=1", gotQuery)
}

func TestPingReportsStatusAndBody(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "permission denied", http.StatusForbidden)
	})

	err := client.Ping(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
	assert.Contains(t, err.Error(), "permission denied")
}

func TestOpenStreamsObject(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/b/glowhaus-feeds/o/catalog/products.xml", r.URL.Path)
		assert.Equal(t, "media", r.URL.Query().Get("alt"))
		_, _ = w.Write([]byte("<catalog/>"))
	})

	body, err := client.Open(context.Background(), "/catalog/products.xml")
	require.NoError(t, err)
	defer body.Close()
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "<catalog/>", string(data))
}

func TestOpenMissingObject(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	_, err := client.Open(context.Background(), "missing.xml")
	assert.True(t, errors.Is(err, ErrObjectNotFound))
}

func TestOpenRequiresObjectName(t *testing.T) {
	client := newClient(http.DefaultClient, "http://unused", "bucket")
	_, err := client.Open(context.Background(), "  ")
	assert.Error(t, err)
}

func TestNilClientIsSafe(t *testing.T) {
	var client *Client
	assert.Equal(t, "", client.Bucket())
	assert.Error(t, client.Ping(context.Background()))
	_, err := client.Open(context.Background(), "x")
	assert.Error(t, err)
}

func TestNewClientRequiresBucket(t *testing.T) {
	_, err := NewClient(context.Background(), " ", config.GCPConfig{}, 0, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket")
}

func TestCredentialsRejectsUnreadableFile(t *testing.T) {
	_, err := credentials(context.Background(), config.GCPConfig{ApplicationCredentials: "/nonexistent/creds.json"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading credentials file")
}
