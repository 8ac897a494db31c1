package registry

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataParsesCrateEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/crates/serde", r.URL.Path)
		fmt.Fprint(w, `{"crate": {"created_at": "2015-12-10T08:40:51Z", "downloads": 100000000}}`)
	}))
	defer srv.Close()

	meta, err := NewClient(srv.URL).Metadata(context.Background(), "serde")
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, 2015, meta.CreatedAt.Year())
	require.NotNil(t, meta.Downloads)
	assert.Equal(t, int64(100000000), *meta.Downloads)
}

func TestMetadataMissingDownloadsStaysNil(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"crate": {"created_at": "2026-01-02T00:00:00Z"}}`)
	}))
	defer srv.Close()

	meta, err := NewClient(srv.URL).Metadata(context.Background(), "obscure")
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Nil(t, meta.Downloads)
}

func TestMetadataFailuresAreSilent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	meta, err := c.Metadata(context.Background(), "missing")
	assert.NoError(t, err)
	assert.Nil(t, meta)

	// A dead endpoint behaves the same way.
	srv.Close()
	meta, err = c.Metadata(context.Background(), "unreachable")
	assert.NoError(t, err)
	assert.Nil(t, meta)
}
