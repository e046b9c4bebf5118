package pinning

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"albaran/internal/core/apperror"
)

func testClient(serverURL string) *Client {
	return NewClient(Config{
		APIKey:     "key",
		APISecret:  "secret",
		BaseURL:    serverURL,
		GatewayURL: "https://gateway.test",
	})
}

func TestPin_Success(t *testing.T) {
	var gotKey, gotSecret string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/pinning/pinFileToIPFS", r.URL.Path)
		gotKey = r.Header.Get("pinata_api_key")
		gotSecret = r.Header.Get("pinata_secret_api_key")

		require.NoError(t, r.ParseMultipartForm(1<<20))
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "note.pdf", header.Filename)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"IpfsHash":"QmTest123"}`))
	}))
	defer server.Close()

	cid, err := testClient(server.URL).Pin(context.Background(), "note.pdf", []byte("%PDF data"))
	require.NoError(t, err)
	assert.Equal(t, "QmTest123", cid)
	assert.Equal(t, "key", gotKey)
	assert.Equal(t, "secret", gotSecret)
}

func TestPin_MissingCredentials(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL})

	_, err := client.Pin(context.Background(), "note.pdf", []byte("data"))
	require.Error(t, err)
	assert.True(t, apperror.IsNotConfigured(err))
	// Fails before any network I/O.
	assert.False(t, called)
}

func TestPin_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := testClient(server.URL).Pin(context.Background(), "note.pdf", []byte("data"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 429")
}

func TestPin_EmptyHashIsFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	_, err := testClient(server.URL).Pin(context.Background(), "note.pdf", []byte("data"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no content identifier")
}

func TestUnpin(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	require.NoError(t, testClient(server.URL).Unpin(context.Background(), "QmTest123"))
	assert.Equal(t, "/pinning/unpin/QmTest123", gotPath)

	// Empty CID is a no-op.
	require.NoError(t, testClient(server.URL).Unpin(context.Background(), ""))
}

func TestGatewayURL(t *testing.T) {
	client := testClient("http://unused")

	assert.Equal(t, "https://gateway.test/ipfs/QmTest123", client.GatewayURL("QmTest123"))
	assert.Equal(t, "", client.GatewayURL(""))
}
