package serve

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/chirino/askbox/internal/config"
	"github.com/soheilhy/cmux"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

const defaultReadHeaderTimeout = 5 * time.Second

// Listener is one bound port. Plaintext connections speak HTTP/1.1 or h2c
// and TLS connections speak HTTP/1.1 or HTTP/2; cmux tells them apart by
// sniffing the first bytes.
type Listener struct {
	Name string
	Addr net.Addr
	Port int

	base    net.Listener
	servers []*http.Server

	closeOnce sync.Once
	closeErr  error
}

// StartListener binds cfg.Port (0 picks a free port) and starts serving
// handler in the background.
func StartListener(name string, cfg config.ListenerConfig, handler http.Handler) (*Listener, error) {
	if !cfg.EnablePlainText && !cfg.EnableTLS {
		return nil, fmt.Errorf("%s listener needs plaintext, tls or both", name)
	}
	timeout := cfg.ReadHeaderTimeout
	if timeout == 0 {
		timeout = defaultReadHeaderTimeout
	}

	var tlsConfig *tls.Config
	if cfg.EnableTLS {
		cert, err := serverCertificate(cfg.TLSCertFile, cfg.TLSKeyFile)
		if err != nil {
			return nil, err
		}
		tlsConfig = &tls.Config{
			Certificates: []tls.Certificate{cert},
			NextProtos:   []string{http2.NextProtoTLS, "http/1.1"},
			MinVersion:   tls.VersionTLS12,
		}
	}

	base, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		return nil, fmt.Errorf("%s listen failed: %w", name, err)
	}
	l := &Listener{Name: name, Addr: base.Addr(), base: base}
	if tcp, ok := base.Addr().(*net.TCPAddr); ok {
		l.Port = tcp.Port
	}

	mux := cmux.New(base)
	// Matchers run in registration order, so TLS goes before the catch-all.
	if tlsConfig != nil {
		l.start("tls", &http.Server{Handler: handler, ReadHeaderTimeout: timeout},
			tls.NewListener(mux.Match(cmux.TLS()), tlsConfig))
	}
	if cfg.EnablePlainText {
		l.start("plaintext", &http.Server{Handler: h2c.NewHandler(handler, &http2.Server{}), ReadHeaderTimeout: timeout},
			mux.Match(cmux.Any()))
	}

	go func() {
		if err := mux.Serve(); err != nil && !isClosedConn(err) {
			log.Error("Listener mux failed", "listener", name, "err", err)
		}
	}()
	return l, nil
}

func (l *Listener) start(proto string, srv *http.Server, lis net.Listener) {
	l.servers = append(l.servers, srv)
	go func() {
		if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) && !isClosedConn(err) {
			log.Error("Server failed", "listener", l.Name, "proto", proto, "err", err)
		}
	}()
}

// Close gracefully shuts down every server on the port and releases it. Only
// the first call does any work.
func (l *Listener) Close(ctx context.Context) error {
	l.closeOnce.Do(func() {
		var errs []error
		for _, srv := range l.servers {
			if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errs = append(errs, err)
			}
		}
		if err := l.base.Close(); err != nil && !isClosedConn(err) {
			errs = append(errs, err)
		}
		l.closeErr = errors.Join(errs...)
	})
	return l.closeErr
}

func isClosedConn(err error) bool {
	return errors.Is(err, net.ErrClosed) || errors.Is(err, cmux.ErrListenerClosed) || errors.Is(err, cmux.ErrServerClosed)
}
