// Package listener binds one network endpoint (TCP host and port, or a
// unix socket, optionally with TLS) and serves an http.Handler on it.
package listener

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"sync"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/crypto/acme/autocert"

	vserrors "github.com/vango-dev/vserve/internal/errors"
	"github.com/vango-dev/vserve/pkg/options"
)

// ErrClosed is returned by Listen after Close.
var ErrClosed = errors.New("listener closed")

// Config describes one endpoint.
type Config struct {
	Port   int
	Host   string
	Socket string

	// HTTPS upgrades the listener to TLS.
	HTTPS *options.HTTPSOptions

	Handler http.Handler

	// Dev relaxes timeouts for debugging sessions.
	Dev bool

	Logger *zap.Logger

	// ReadHeaderTimeout default: 10s.
	ReadHeaderTimeout time.Duration
	// IdleTimeout default: 120s.
	IdleTimeout time.Duration
}

// Listener serves a handler on one endpoint.
type Listener struct {
	cfg    Config
	logger *zap.Logger
	server *http.Server

	mu        sync.Mutex
	ln        net.Listener
	listening bool
	closed    bool
	tls       bool
	done      chan struct{}
}

// New prepares a listener. Nothing is bound until Listen.
func New(cfg Config) *Listener {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ReadHeaderTimeout == 0 {
		cfg.ReadHeaderTimeout = 10 * time.Second
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 120 * time.Second
	}

	srv := &http.Server{
		Handler:           cfg.Handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		ErrorLog:          zap.NewStdLog(logger.Named("http")),
	}
	if cfg.Dev {
		srv.ReadHeaderTimeout = 0
	}

	return &Listener{
		cfg:    cfg,
		logger: logger,
		server: srv,
		done:   make(chan struct{}),
	}
}

// Config returns the endpoint the listener was built with.
func (l *Listener) Config() Config {
	return l.cfg
}

// Server returns the underlying server. It is valid before Listen.
func (l *Listener) Server() *http.Server {
	return l.server
}

// Addr returns the bound address, or nil before Listen.
func (l *Listener) Addr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ln == nil {
		return nil
	}
	return l.ln.Addr()
}

// URL returns where the listener can be reached.
func (l *Listener) URL() string {
	return l.urlFor(l.Addr())
}

// urlFor formats the URL for addr. It does not take l.mu.
func (l *Listener) urlFor(addr net.Addr) string {
	scheme := "http"
	if l.cfg.HTTPS != nil {
		scheme = "https"
	}
	if l.cfg.Socket != "" {
		return scheme + "+unix://" + l.cfg.Socket
	}

	host := l.cfg.Host
	switch host {
	case "", "0.0.0.0", "::":
		host = "localhost"
	}
	port := l.cfg.Port
	if tcp, ok := addr.(*net.TCPAddr); ok {
		port = tcp.Port
	}
	return fmt.Sprintf("%s://%s", scheme, net.JoinHostPort(host, strconv.Itoa(port)))
}

// Listen binds the endpoint and starts serving in the background. Calling
// it again on a listening listener does nothing.
func (l *Listener) Listen(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrClosed
	}
	if l.listening {
		return nil
	}

	tlsConfig, err := l.tlsConfig()
	if err != nil {
		return err
	}

	ln, err := l.bind(ctx)
	if err != nil {
		return err
	}

	l.ln = ln
	l.listening = true
	if tlsConfig != nil {
		l.server.TLSConfig = tlsConfig
		l.tls = true
	}

	go l.serve(ln)

	l.logger.Info("listening", zap.String("url", l.urlFor(ln.Addr())), zap.String("addr", ln.Addr().String()))
	return nil
}

func (l *Listener) serve(ln net.Listener) {
	defer close(l.done)

	var err error
	if l.tls {
		err = l.server.ServeTLS(ln, "", "")
	} else {
		err = l.server.Serve(ln)
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		l.logger.Error("serve failed", zap.String("url", l.urlFor(ln.Addr())), zap.Error(err))
	}
}

func (l *Listener) bind(ctx context.Context) (net.Listener, error) {
	var lc net.ListenConfig

	if l.cfg.Socket != "" {
		if err := removeStaleSocket(l.cfg.Socket); err != nil {
			return nil, err
		}
		ln, err := lc.Listen(ctx, "unix", l.cfg.Socket)
		if err != nil {
			return nil, listenError(l.cfg.Socket, err)
		}
		return ln, nil
	}

	addr := net.JoinHostPort(l.cfg.Host, strconv.Itoa(l.cfg.Port))
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, listenError(addr, err)
	}
	return ln, nil
}

// removeStaleSocket deletes a socket file left behind by a dead process.
// A socket that still accepts connections belongs to a live server.
func removeStaleSocket(path string) error {
	info, err := os.Lstat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return vserrors.New(vserrors.CodeSocketInvalid).WithDetailf("Cannot stat %s.", path).Wrap(err)
	}
	if info.Mode()&os.ModeSocket == 0 {
		return vserrors.New(vserrors.CodeSocketInvalid).WithDetailf("%s exists and is not a socket.", path)
	}

	if conn, err := net.DialTimeout("unix", path, time.Second); err == nil {
		conn.Close()
		return vserrors.New(vserrors.CodeAddressInUse).WithDetailf("A server is already listening on %s.", path)
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return vserrors.New(vserrors.CodeSocketInvalid).WithDetailf("Cannot remove stale socket %s.", path).Wrap(err)
	}
	return nil
}

func listenError(addr string, err error) error {
	if errors.Is(err, syscall.EADDRINUSE) {
		return vserrors.New(vserrors.CodeAddressInUse).
			WithDetailf("Another process is already listening on %s.", addr).
			WithSuggestion("Stop the other process or choose another port.").
			Wrap(err)
	}
	return vserrors.New(vserrors.CodeListenFailed).
		WithDetailf("Could not listen on %s.", addr).
		Wrap(err)
}

func (l *Listener) tlsConfig() (*tls.Config, error) {
	https := l.cfg.HTTPS
	if https == nil {
		return nil, nil
	}

	if ac := https.Autocert; ac != nil {
		if len(ac.Hosts) == 0 {
			return nil, vserrors.New(vserrors.CodeTLSInvalid).
				WithDetail("Autocert needs at least one host.")
		}
		m := &autocert.Manager{
			Prompt:     autocert.AcceptTOS,
			HostPolicy: autocert.HostWhitelist(ac.Hosts...),
			Email:      ac.Email,
		}
		if ac.CacheDir != "" {
			m.Cache = autocert.DirCache(ac.CacheDir)
		}
		return m.TLSConfig(), nil
	}

	if https.CertFile == "" || https.KeyFile == "" {
		return nil, vserrors.New(vserrors.CodeTLSInvalid).
			WithDetail("Both a certificate and a key file are required.")
	}
	cert, err := tls.LoadX509KeyPair(https.CertFile, https.KeyFile)
	if err != nil {
		return nil, vserrors.New(vserrors.CodeTLSInvalid).Wrap(err)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// Close stops accepting connections and waits for active requests until
// ctx is done, then drops the remaining connections. It is safe to call
// before, during or after Listen, and more than once.
func (l *Listener) Close(ctx context.Context) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	listening := l.listening
	l.mu.Unlock()

	if !listening {
		return nil
	}

	err := l.server.Shutdown(ctx)
	if err != nil {
		err = multierr.Append(err, l.server.Close())
	}

	select {
	case <-l.done:
	case <-ctx.Done():
	}

	if l.cfg.Socket != "" {
		if rmErr := os.Remove(l.cfg.Socket); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			l.logger.Warn("could not remove socket", zap.String("socket", l.cfg.Socket), zap.Error(rmErr))
		}
	}

	l.logger.Info("closed", zap.String("url", l.URL()))
	return err
}
