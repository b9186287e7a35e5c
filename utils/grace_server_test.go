package utils

import (
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerStopIsGraceful(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "ok")
	})
	srv := NewServer("", handler, time.Second, time.Second)
	srv.ShutdownTimeout = time.Second

	hookCalled := make(chan struct{})
	srv.RegisterOnShutdown(func() { close(hookCalled) })

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	served := make(chan error, 1)
	go func() { served <- srv.Serve(ln) }()

	resp, err := http.Get("http://" + ln.Addr().String())
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "ok", string(body))

	srv.Stop()
	srv.Stop()

	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}

	select {
	case <-hookCalled:
	case <-time.After(time.Second):
		t.Fatal("shutdown hook not called")
	}
}

func TestServeReturnsListenerErrors(t *testing.T) {
	srv := NewServer("", http.NotFoundHandler(), time.Second, time.Second)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ln.Close()

	assert.Error(t, srv.Serve(ln))
}
