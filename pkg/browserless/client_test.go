package browserless

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContent_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/content", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("token"))
		assert.Equal(t, "true", r.URL.Query().Get("stealth"))

		var req ContentRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "https://acme.com", req.URL)
		assert.Equal(t, "networkidle2", req.GotoOptions.WaitUntil)

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("<html><title>Acme</title></html>"))
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	resp, err := client.Content(context.Background(), ContentRequest{
		URL:         "https://acme.com",
		GotoOptions: GotoOptions{WaitUntil: "networkidle2", TimeoutMS: 30000},
	})

	require.NoError(t, err)
	assert.Contains(t, resp.HTML, "<title>Acme</title>")
	assert.Equal(t, "https://acme.com", resp.FinalURL)
}

func TestContent_NavigationError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("net::ERR_NAME_NOT_RESOLVED at https://deadsite123.biz"))
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	resp, err := client.Content(context.Background(), ContentRequest{URL: "https://deadsite123.biz"})

	require.Error(t, err)
	assert.Nil(t, resp)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "ERR_NAME_NOT_RESOLVED")
}

func TestContent_StealthOff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.URL.Query().Get("stealth"))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("<html></html>"))
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL), WithStealth(false))
	_, err := client.Content(context.Background(), ContentRequest{URL: "https://acme.com"})
	require.NoError(t, err)
}

func TestScreenshot(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G'}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/screenshot", r.URL.Path)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(png)
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	got, err := client.Screenshot(context.Background(), ContentRequest{URL: "https://acme.com"})
	require.NoError(t, err)
	assert.Equal(t, png, got)
}
