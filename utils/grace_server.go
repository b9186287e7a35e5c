package utils

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

const (
	DefaultReadTimeout     = 60 * time.Second
	DefaultWriteTimeout    = DefaultReadTimeout
	DefaultShutdownTimeout = 30 * time.Second

	gracefulEnvKey     = "IS_GRACEFUL"
	gracefulEnvValue   = gracefulEnvKey + "=1"
	gracefulListenerFD = 3
)

// Server wraps http.Server with signal driven shutdown and zero-downtime restart.
//
// SIGINT and SIGTERM drain in-flight requests and stop. SIGUSR2 forks a child
// that inherits the listening socket, then drains and stops the parent.
type Server struct {
	*http.Server

	ShutdownTimeout time.Duration

	listener  net.Listener
	inherited bool
	signals   chan os.Signal
	done      chan struct{}
	stopOnce  sync.Once
}

// NewServer creates a Server with timeouts and handler.
func NewServer(addr string, handler http.Handler, readTimeout, writeTimeout time.Duration) *Server {
	return &Server{
		Server: &http.Server{
			Addr:         addr,
			Handler:      handler,
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
		},
		ShutdownTimeout: DefaultShutdownTimeout,
		inherited:       os.Getenv(gracefulEnvKey) != "",
		signals:         make(chan os.Signal, 1),
		done:            make(chan struct{}),
	}
}

// ListenAndServe opens the listener, or adopts the inherited one after a
// restart, and serves until shut down.
func (srv *Server) ListenAndServe() error {
	addr := srv.Addr
	if addr == "" {
		addr = ":http"
	}
	ln, err := srv.netListener(addr)
	if err != nil {
		return err
	}
	return srv.Serve(ln)
}

// Serve serves on ln and handles process signals. It returns nil after a
// graceful stop.
func (srv *Server) Serve(ln net.Listener) error {
	srv.listener = ln

	signal.Notify(srv.signals, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR2)
	defer signal.Stop(srv.signals)
	go srv.handleSignals()

	err := srv.Server.Serve(ln)
	if !errors.Is(err, http.ErrServerClosed) {
		srv.stopOnce.Do(func() { close(srv.done) })
		return err
	}
	<-srv.done
	return nil
}

// Stop drains in-flight requests and closes the server. It is safe to call more than once.
func (srv *Server) Stop() {
	srv.stopOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), srv.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			Sugar.Errorf("HTTP server shutdown error: %v", err)
		} else {
			Sugar.Info("HTTP server shutdown success")
		}
		close(srv.done)
	})
}

func (srv *Server) netListener(addr string) (net.Listener, error) {
	if srv.inherited {
		ln, err := net.FileListener(os.NewFile(gracefulListenerFD, ""))
		if err != nil {
			return nil, fmt.Errorf("net.FileListener error: %w", err)
		}
		return ln, nil
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("net.Listen error: %w", err)
	}
	return ln, nil
}

func (srv *Server) handleSignals() {
	for {
		select {
		case <-srv.done:
			return
		case sig := <-srv.signals:
			switch sig {
			case syscall.SIGINT, syscall.SIGTERM:
				Sugar.Infof("received %s, shutting down HTTP server", sig)
				srv.Stop()
				return
			case syscall.SIGUSR2:
				Sugar.Info("received SIGUSR2, restarting HTTP server")
				pid, err := srv.startNewProcess()
				if err != nil {
					Sugar.Errorf("start new process failed: %v, continue serving", err)
					continue
				}
				Sugar.Infof("new process started, pid=%d; closing old HTTP server", pid)
				srv.Stop()
				return
			}
		}
	}
}

// startNewProcess forks the current binary, handing it the listening socket as fd 3.
func (srv *Server) startNewProcess() (int, error) {
	tcpLn, ok := srv.listener.(*net.TCPListener)
	if !ok {
		return 0, fmt.Errorf("listener is not *net.TCPListener")
	}
	file, err := tcpLn.File()
	if err != nil {
		return 0, fmt.Errorf("get listener file: %w", err)
	}
	defer file.Close()

	envs := []string{}
	for _, e := range os.Environ() {
		if e != gracefulEnvValue {
			envs = append(envs, e)
		}
	}
	envs = append(envs, gracefulEnvValue)

	attr := &syscall.ProcAttr{
		Env:   envs,
		Files: []uintptr{os.Stdin.Fd(), os.Stdout.Fd(), os.Stderr.Fd(), file.Fd()},
	}
	pid, err := syscall.ForkExec(os.Args[0], os.Args, attr)
	if err != nil {
		return 0, fmt.Errorf("forkexec: %w", err)
	}
	return pid, nil
}

// GraceServer starts an HTTP server with graceful capabilities. The cleanup
// funcs run after the server has stopped and in-flight requests have drained.
func GraceServer(addr string, handler http.Handler, cleanup ...func()) error {
	srv := NewServer(addr, handler, DefaultReadTimeout, DefaultWriteTimeout)
	defer func() {
		for _, f := range cleanup {
			f()
		}
	}()
	return srv.ListenAndServe()
}
