package listener

import (
	"context"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	vserrors "github.com/vango-dev/vserve/internal/errors"
	"github.com/vango-dev/vserve/pkg/options"
)

func hello() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "hello")
	})
}

func get(t *testing.T, client *http.Client, url string) string {
	t.Helper()
	resp, err := client.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestListenTCP(t *testing.T) {
	l := New(Config{Host: "127.0.0.1", Port: 0, Handler: hello()})
	assert.NotNil(t, l.Server())
	assert.Nil(t, l.Addr())

	require.NoError(t, l.Listen(context.Background()))
	t.Cleanup(func() { l.Close(context.Background()) })

	// A second Listen is a no-op.
	require.NoError(t, l.Listen(context.Background()))

	addr := l.Addr().(*net.TCPAddr)
	assert.Equal(t, "http://127.0.0.1:"+strconv.Itoa(addr.Port), l.URL())
	assert.Equal(t, "hello", get(t, http.DefaultClient, l.URL()))

	require.NoError(t, l.Close(context.Background()))
	require.NoError(t, l.Close(context.Background()))

	_, err := http.Get("http://" + addr.String())
	assert.Error(t, err)
	assert.ErrorIs(t, l.Listen(context.Background()), ErrClosed)
}

func TestListenReturnsPromptly(t *testing.T) {
	l := New(Config{Host: "127.0.0.1", Port: 0, Handler: hello()})
	t.Cleanup(func() { l.Close(context.Background()) })

	done := make(chan error, 1)
	go func() { done <- l.Listen(context.Background()) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Listen on a TCP port did not return")
	}
	assert.NotEmpty(t, l.URL())
}

func TestCloseBeforeListen(t *testing.T) {
	l := New(Config{Host: "127.0.0.1", Handler: hello()})
	require.NoError(t, l.Close(context.Background()))
	assert.ErrorIs(t, l.Listen(context.Background()), ErrClosed)
}

func TestAddressInUse(t *testing.T) {
	first := New(Config{Host: "127.0.0.1", Handler: hello()})
	require.NoError(t, first.Listen(context.Background()))
	t.Cleanup(func() { first.Close(context.Background()) })

	port := first.Addr().(*net.TCPAddr).Port
	second := New(Config{Host: "127.0.0.1", Port: port, Handler: hello()})
	err := second.Listen(context.Background())
	require.Error(t, err)
	assert.True(t, vserrors.HasCode(err, vserrors.CodeAddressInUse))
	assert.NoError(t, second.Close(context.Background()))
}

func shortTempDir(t *testing.T) string {
	t.Helper()
	// Unix socket paths are limited to ~100 bytes; t.TempDir can exceed it.
	dir, err := os.MkdirTemp("", "vs")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	return dir
}

func unixClient(path string) *http.Client {
	return &http.Client{Transport: &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", path)
		},
	}}
}

func TestListenSocket(t *testing.T) {
	sock := filepath.Join(shortTempDir(t), "s.sock")

	l := New(Config{Socket: sock, Host: "ignored", Port: 1, Handler: hello()})
	require.NoError(t, l.Listen(context.Background()))
	assert.Equal(t, "http+unix://"+sock, l.URL())
	assert.Equal(t, "hello", get(t, unixClient(sock), "http://unix/"))

	// A live socket is not stale.
	other := New(Config{Socket: sock, Handler: hello()})
	err := other.Listen(context.Background())
	assert.True(t, vserrors.HasCode(err, vserrors.CodeAddressInUse))

	require.NoError(t, l.Close(context.Background()))
	_, err = os.Stat(sock)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestListenRemovesStaleSocket(t *testing.T) {
	sock := filepath.Join(shortTempDir(t), "stale.sock")

	ln, err := net.Listen("unix", sock)
	require.NoError(t, err)
	ln.(*net.UnixListener).SetUnlinkOnClose(false)
	require.NoError(t, ln.Close())
	_, err = os.Stat(sock)
	require.NoError(t, err)

	l := New(Config{Socket: sock, Handler: hello()})
	require.NoError(t, l.Listen(context.Background()))
	t.Cleanup(func() { l.Close(context.Background()) })
	assert.Equal(t, "hello", get(t, unixClient(sock), "http://unix/"))
}

func TestSocketPathIsRegularFile(t *testing.T) {
	path := filepath.Join(shortTempDir(t), "file")
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o644))

	err := New(Config{Socket: path, Handler: hello()}).Listen(context.Background())
	assert.True(t, vserrors.HasCode(err, vserrors.CodeSocketInvalid))
}

func TestInvalidTLS(t *testing.T) {
	tests := []struct {
		name  string
		https *options.HTTPSOptions
	}{
		{"missing key", &options.HTTPSOptions{CertFile: "cert.pem"}},
		{"unreadable files", &options.HTTPSOptions{CertFile: "/nonexistent/cert.pem", KeyFile: "/nonexistent/key.pem"}},
		{"autocert without hosts", &options.HTTPSOptions{Autocert: &options.AutocertOptions{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New(Config{Host: "127.0.0.1", HTTPS: tt.https, Handler: hello()})
			err := l.Listen(context.Background())
			assert.True(t, vserrors.HasCode(err, vserrors.CodeTLSInvalid), err)
			assert.Nil(t, l.Addr())
			assert.True(t, strings.HasPrefix(l.URL(), "https://"))
		})
	}
}

func TestURLDefaultsHost(t *testing.T) {
	l := New(Config{Host: "0.0.0.0", Port: 8080})
	assert.Equal(t, "http://localhost:8080", l.URL())
}
