package modelapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"vedai-backend/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPEmbedder_Encode(t *testing.T) {
	var captured embedRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		_, _ = w.Write([]byte(`{"embeddings": [[0.1, 0.2], [0.3, 0.4]]}`))
	}))
	defer server.Close()

	e := NewHTTPEmbedder(server.URL, "all-minilm", 5*time.Second)
	vectors, err := e.Encode(context.Background(), []string{"first", "second"})

	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float32{0.1, 0.2}, vectors[0])
	assert.Equal(t, []float32{0.3, 0.4}, vectors[1])
	assert.Equal(t, "all-minilm", captured.Model)
	assert.Equal(t, []string{"first", "second"}, captured.Input)
}

func TestHTTPEmbedder_CountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"embeddings": [[0.1]]}`))
	}))
	defer server.Close()

	e := NewHTTPEmbedder(server.URL, "all-minilm", 5*time.Second)
	_, err := e.Encode(context.Background(), []string{"a", "b"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected 2 embeddings, got 1")
}

func TestHTTPEmbedder_ServerErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "loading model", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	e := NewHTTPEmbedder(server.URL, "all-minilm", 5*time.Second)
	_, err := e.Encode(context.Background(), []string{"a"})

	require.Error(t, err)
	var statusErr *domain.UpstreamStatusError
	require.ErrorAs(t, err, &statusErr)
	assert.True(t, domain.IsTransient(err))
}

func TestHTTPEmbedder_Version(t *testing.T) {
	e := NewHTTPEmbedder("http://example.com", "all-minilm", time.Second)
	assert.Equal(t, "all-minilm", e.Version())
}
