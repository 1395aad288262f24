package host

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"labagent/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunProtocolPostsCommand(t *testing.T) {
	var got Command
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := NewCommandClient(srv.URL, time.Second)
	require.NoError(t, c.RunProtocol(context.Background(), "IV_sweep"))
	assert.Equal(t, Command{Command: "run_protocol", Protocol: "IV_sweep"}, got)
}

func TestRunProtocolReportsRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "protocol already running", http.StatusConflict)
	}))
	defer srv.Close()

	err := NewCommandClient(srv.URL, time.Second).RunProtocol(context.Background(), "IV_sweep")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "409")
	assert.Contains(t, err.Error(), "protocol already running")
}

func TestNewFromConfig(t *testing.T) {
	assert.Nil(t, NewFromConfig(config.HostConfig{}, config.DefaultSystemConfig()))

	r := NewFromConfig(config.HostConfig{RunURL: "http://127.0.0.1:1/run"}, config.DefaultSystemConfig())
	require.NotNil(t, r)
	c, ok := r.(*CommandClient)
	require.True(t, ok)
	assert.Equal(t, 10*time.Second, c.client.Timeout)
}
