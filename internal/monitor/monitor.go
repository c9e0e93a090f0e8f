// Package monitor serves the kernel's state over HTTP/3.
//
//	GET /status   scheduler snapshot and machine counters
//	GET /threads  live threads only
//	GET /version  build information
package monitor

import (
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	http3 "github.com/quic-go/quic-go/http3"

	"github.com/practos/practos/internal/cli"
	"github.com/practos/practos/internal/kernel"
	"github.com/practos/practos/internal/machine"
)

// Source is what the monitor reports on.
type Source interface {
	Inspect(fn func(k *kernel.Kernel))
	Counters() machine.Counters
}

// Status is the body of /status.
type Status struct {
	Kernel  kernel.Snapshot  `json:"kernel"`
	Machine machine.Counters `json:"machine"`
	Uptime  string           `json:"uptime"`
}

// NewHandler returns the HTTP handler for src.
func NewHandler(src Source) http.Handler {
	started := time.Now()
	snapshot := func() kernel.Snapshot {
		var s kernel.Snapshot
		src.Inspect(func(k *kernel.Kernel) { s = k.Snapshot() })
		return s
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, Status{
			Kernel:  snapshot(),
			Machine: src.Counters(),
			Uptime:  time.Since(started).Round(time.Millisecond).String(),
		})
	})
	mux.HandleFunc("GET /threads", func(w http.ResponseWriter, r *http.Request) {
		threads := snapshot().Threads
		if threads == nil {
			threads = []kernel.ThreadInfo{}
		}
		writeJSON(w, threads)
	})
	mux.HandleFunc("GET /version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, cli.GetVersionInfo())
	})
	return mux
}

func writeJSON(w http.ResponseWriter, v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(append(data, '\n'))
}

// Options configure Start.
type Options struct {
	Addr string
	// CertFile and KeyFile select a certificate; without them a
	// self-signed one is generated.
	CertFile string
	KeyFile  string
	Log      *cli.Logger
}

// Server is a running status server.
type Server struct {
	h3   *http3.Server
	pc   net.PacketConn
	log  *cli.Logger
	done chan struct{}
}

// Start serves src on opts.Addr over HTTP/3.
func Start(src Source, opts Options) (*Server, error) {
	log := opts.Log
	if log == nil {
		log = cli.Discard()
	}

	var (
		tlsCfg *tls.Config
		err    error
	)
	if opts.CertFile != "" {
		tlsCfg, err = LoadTLSConfig(opts.CertFile, opts.KeyFile)
	} else {
		tlsCfg, err = GenerateSelfSignedTLS(hostsFor(opts.Addr), 0)
	}
	if err != nil {
		return nil, fmt.Errorf("monitor: tls: %w", err)
	}

	pc, err := net.ListenPacket("udp", opts.Addr)
	if err != nil {
		return nil, fmt.Errorf("monitor: listen %s: %w", opts.Addr, err)
	}
	s := &Server{
		h3: &http3.Server{
			TLSConfig: http3.ConfigureTLSConfig(tlsCfg),
			Handler:   NewHandler(src),
		},
		pc:   pc,
		log:  log,
		done: make(chan struct{}),
	}
	go s.serve()
	log.Info("status server on https://%s (HTTP/3)", s.Addr())
	return s, nil
}

func (s *Server) serve() {
	defer close(s.done)
	if err := s.h3.Serve(s.pc); err != nil && !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, net.ErrClosed) {
		s.log.Warn("status server: %v", err)
	}
}

// Addr is the bound UDP address, which differs from the configured one
// when the port is 0.
func (s *Server) Addr() string { return s.pc.LocalAddr().String() }

// Stop closes the server and waits up to a second for it to wind down.
func (s *Server) Stop() error {
	err := errors.Join(s.h3.Close(), s.pc.Close())
	if errors.Is(err, net.ErrClosed) {
		err = nil
	}
	select {
	case <-s.done:
	case <-time.After(time.Second):
	}
	return err
}
