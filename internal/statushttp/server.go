// Package statushttp serves the subscriber's status and metrics over HTTP.
package statushttp

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v4/process"

	"github.com/gaspardpetit/stompsock/core/logx"
	"github.com/gaspardpetit/stompsock/internal/clientstate"
)

// Options configure the handler.
type Options struct {
	// AllowedOrigins enables CORS for the listed origins when non-empty.
	AllowedOrigins []string
	// Gatherer backs /metrics; nil leaves /metrics unmounted.
	Gatherer prometheus.Gatherer
	Version  string
}

// Status is the /status response body.
type Status struct {
	Version string            `json:"version,omitempty"`
	State   clientstate.State `json:"state"`
	Process *ProcessInfo      `json:"process,omitempty"`
}

// ProcessInfo describes the running process.
type ProcessInfo struct {
	PID        int32   `json:"pid"`
	RSSBytes   uint64  `json:"rss_bytes"`
	CPUPercent float64 `json:"cpu_percent"`
	Threads    int32   `json:"threads"`
	Goroutines int     `json:"goroutines"`
}

// New constructs the status handler.
func New(opts Options) http.Handler {
	r := chi.NewRouter()
	if len(opts.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.AllowedOrigins,
			AllowedMethods: []string{"GET", "OPTIONS"},
			AllowedHeaders: []string{"*"},
		}))
	}
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if !clientstate.Get().Connected {
			http.Error(w, "not connected", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/status", func(w http.ResponseWriter, _ *http.Request) {
		st := Status{Version: opts.Version, State: clientstate.Get(), Process: processInfo()}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(st); err != nil {
			logx.Log.Debug().Err(err).Msg("status encode failed")
		}
	})
	if opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

func processInfo() *ProcessInfo {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil
	}
	info := &ProcessInfo{PID: p.Pid, Goroutines: runtime.NumGoroutine()}
	if mem, err := p.MemoryInfo(); err == nil && mem != nil {
		info.RSSBytes = mem.RSS
	}
	if cpu, err := p.CPUPercent(); err == nil {
		info.CPUPercent = cpu
	}
	if n, err := p.NumThreads(); err == nil {
		info.Threads = n
	}
	return info
}

// ServeUntilContext starts an HTTP server bound to addr and shuts it down when ctx is done.
// It returns the resolved listen address.
func ServeUntilContext(ctx context.Context, addr string, handler http.Handler) (string, error) {
	srv := &http.Server{Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", err
	}
	actual := ln.Addr().String()
	go func() {
		<-ctx.Done()
		c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(c)
	}()
	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			logx.Log.Error().Err(err).Str("addr", actual).Msg("status server failed")
		}
	}()
	return actual, nil
}
