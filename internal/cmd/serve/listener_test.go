package serve

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/chirino/askbox/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func protoHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, r.Proto)
	})
}

func get(t *testing.T, client *http.Client, url string) (int, string) {
	t.Helper()
	resp, err := client.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestStartListener_PlainAndTLSShareAPort(t *testing.T) {
	l, err := StartListener("test", config.ListenerConfig{EnablePlainText: true, EnableTLS: true}, protoHandler())
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close(context.Background()) })
	require.NotZero(t, l.Port)

	code, proto := get(t, &http.Client{Timeout: 5 * time.Second}, fmt.Sprintf("http://localhost:%d/", l.Port))
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "HTTP/1.1", proto)

	tlsClient := &http.Client{
		Timeout: 5 * time.Second,
		Transport: &http.Transport{
			TLSClientConfig:   &tls.Config{InsecureSkipVerify: true}, //nolint:gosec // self-signed test certificate
			ForceAttemptHTTP2: true,
		},
	}
	code, proto = get(t, tlsClient, fmt.Sprintf("https://localhost:%d/", l.Port))
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "HTTP/2.0", proto)
}

func TestStartListener_RequiresAProtocol(t *testing.T) {
	_, err := StartListener("test", config.ListenerConfig{}, protoHandler())
	require.ErrorContains(t, err, "needs plaintext, tls or both")
}

func TestListenerClose_Idempotent(t *testing.T) {
	l, err := StartListener("test", config.ListenerConfig{EnablePlainText: true}, protoHandler())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, l.Close(ctx))
	require.NoError(t, l.Close(ctx))
}

func TestServerCertificate_RequiresBothFiles(t *testing.T) {
	_, err := serverCertificate("cert.pem", "")
	require.Error(t, err)

	cert, err := serverCertificate("", "")
	require.NoError(t, err)
	require.NotNil(t, cert.Leaf)
	assert.Contains(t, cert.Leaf.DNSNames, "localhost")
}
