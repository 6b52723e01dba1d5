package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVeoProvider_SubmitAndPoll(t *testing.T) {
	var polls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "k", r.Header.Get("x-goog-api-key"))
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/models/veo-test:predictLongRunning":
			var body veoSubmitReq
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "fix the tap", body.Instances[0].Prompt)
			assert.Equal(t, "dont_allow", body.Parameters.PersonGeneration)
			assert.Equal(t, 8, body.Parameters.DurationSeconds)
			_, _ = w.Write([]byte(`{"name":"models/veo-test/operations/op1"}`))
		case r.Method == http.MethodGet && r.URL.Path == "/models/veo-test/operations/op1":
			if atomic.AddInt32(&polls, 1) == 1 {
				_, _ = w.Write([]byte(`{"name":"op1","done":false}`))
				return
			}
			_, _ = w.Write([]byte(`{"name":"op1","done":true,"response":{"generateVideoResponse":{
				"generatedSamples":[{"video":{"uri":"https://files.example/v1.mp4"}}],
				"raiMediaFilteredCount":1,"raiMediaFilteredReasons":["one sample filtered"]}}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	p := NewVeoProvider(srv.URL, "k", "veo-test")
	ctx := context.Background()

	handle, err := p.Submit(ctx, Prompt{Text: "fix the tap"})
	require.NoError(t, err)
	assert.Equal(t, "models/veo-test/operations/op1", handle)

	st, err := p.Poll(ctx, handle)
	require.NoError(t, err)
	assert.False(t, st.Done)

	st, err = p.Poll(ctx, handle)
	require.NoError(t, err)
	assert.True(t, st.Done)
	assert.False(t, st.Failed)
	assert.Equal(t, []string{"https://files.example/v1.mp4"}, st.Artifacts)
	assert.Equal(t, 1, st.FilteredCount)
}

func TestVeoProvider_AllFiltered(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"done":true,"response":{"generateVideoResponse":{
			"raiMediaFilteredCount":1,"raiMediaFilteredReasons":["unsafe content"]}}}`))
	}))
	defer srv.Close()

	st, err := NewVeoProvider(srv.URL, "k", "m").Poll(context.Background(), "operations/x")
	require.NoError(t, err)
	assert.True(t, st.Done)
	assert.Empty(t, st.Artifacts)
	assert.Equal(t, []string{"unsafe content"}, st.FilterReasons)
}

func TestVeoProvider_OperationError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"done":true,"error":{"code":13,"message":"internal"}}`))
	}))
	defer srv.Close()

	st, err := NewVeoProvider(srv.URL, "k", "m").Poll(context.Background(), "operations/x")
	require.NoError(t, err)
	assert.True(t, st.Failed)
	assert.Equal(t, "internal", st.FailureReason)
}

func TestVeoProvider_SubmitHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"code":429,"message":"Resource has been exhausted (e.g. check quota).","status":"RESOURCE_EXHAUSTED"}}`))
	}))
	defer srv.Close()

	_, err := NewVeoProvider(srv.URL, "k", "m").Submit(context.Background(), Prompt{Text: "x"})
	var he *HTTPError
	require.True(t, errors.As(err, &he))
	assert.Equal(t, http.StatusTooManyRequests, he.StatusCode)
	assert.Equal(t, "submit", he.Op)
	assert.Contains(t, he.Message, "quota")
}

func TestVeoProvider_MissingKey(t *testing.T) {
	_, err := NewVeoProvider("http://unused", "", "m").Submit(context.Background(), Prompt{Text: "x"})
	var he *HTTPError
	require.True(t, errors.As(err, &he))
	assert.Equal(t, http.StatusUnauthorized, he.StatusCode)
}
