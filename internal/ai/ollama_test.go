package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaDescriber_DescribeImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/generate", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "llava-test", body["model"])
		images, _ := body["images"].([]any)
		assert.Len(t, images, 1)

		w.Header().Set("Content-Type", "application/x-ndjson")
		_, _ = w.Write([]byte(`{"model":"llava-test","response":" A repair tutorial showing a leaking pipe. ","done":true}` + "\n"))
	}))
	defer srv.Close()

	d, err := NewOllamaDescriber(srv.URL, "llava-test")
	require.NoError(t, err)

	out, err := d.DescribeImage(context.Background(), []byte("img"), "describe")
	require.NoError(t, err)
	assert.Equal(t, "A repair tutorial showing a leaking pipe.", out)
}

func TestOllamaDescriber_InvalidURL(t *testing.T) {
	_, err := NewOllamaDescriber("::not a url", "m")
	assert.Error(t, err)
}
