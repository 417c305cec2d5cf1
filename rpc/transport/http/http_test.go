package http

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ValentinKolb/kvmig/rpc/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestServer starts a server whose handler echoes the shard id and request body
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	st := &httpServerTransport{config: common.ServerConfig{MetricsPath: "/metrics"}}
	st.RegisterHandler(func(shardId uint64, req []byte) []byte {
		return append([]byte{byte(shardId)}, req...)
	})
	ts := httptest.NewServer(st.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestSend(t *testing.T) {
	ts := newTestServer(t)

	ct := NewHttpClientTransport()
	require.NoError(t, ct.Connect(common.ClientConfig{Endpoints: []string{ts.URL}, TimeoutSecond: 5}))
	defer ct.Close()

	resp, err := ct.Send(7, []byte("ping"))
	require.NoError(t, err)
	assert.Equal(t, append([]byte{7}, "ping"...), resp)
}

func TestSendRetriesNextEndpoint(t *testing.T) {
	ts := newTestServer(t)
	down := httptest.NewServer(http.NotFoundHandler())
	down.Close()

	ct := NewHttpClientTransport()
	require.NoError(t, ct.Connect(common.ClientConfig{
		Endpoints:     []string{ts.URL, down.URL},
		TimeoutSecond: 5,
		RetryCount:    2,
	}))
	defer ct.Close()

	for i := 0; i < 4; i++ {
		_, err := ct.Send(1, []byte("x"))
		assert.NoError(t, err)
	}
}

func TestSendWithoutRetries(t *testing.T) {
	down := httptest.NewServer(http.NotFoundHandler())
	down.Close()

	ct := NewHttpClientTransport()
	require.NoError(t, ct.Connect(common.ClientConfig{Endpoints: []string{down.URL}, TimeoutSecond: 1}))
	_, err := ct.Send(1, []byte("x"))
	assert.Error(t, err)
}

func TestConnect(t *testing.T) {
	ct := NewHttpClientTransport()
	assert.Error(t, ct.Connect(common.ClientConfig{}))

	_, err := ct.Send(1, nil)
	assert.Error(t, err)

	require.NoError(t, ct.Connect(common.ClientConfig{Endpoints: []string{"localhost:8080"}}))
	assert.Equal(t, "http://localhost:8080", ct.(*httpClientTransport).serverURLs[0].String())
}

func TestInvalidShardId(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Post(ts.URL+"/abc", "application/octet-stream", strings.NewReader("x"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMetricsRoute(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	_, err = io.ReadAll(resp.Body)
	assert.NoError(t, err)
}
