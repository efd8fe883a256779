package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gaspardpetit/stompsock/core/logx"
	"github.com/gaspardpetit/stompsock/internal/clientstate"
	"github.com/gaspardpetit/stompsock/internal/config"
	"github.com/gaspardpetit/stompsock/internal/metrics"
	"github.com/gaspardpetit/stompsock/internal/redisx"
	"github.com/gaspardpetit/stompsock/internal/sink"
	"github.com/gaspardpetit/stompsock/internal/statushttp"
)

var (
	version   = "dev"
	buildSHA  = "unknown"
	buildDate = "unknown"
)

const drainTimeout = 5 * time.Second

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	var cfg config.ClientConfig
	cfg.BindFlags()
	flag.Usage = func() {
		_, _ = fmt.Fprintf(flag.CommandLine.Output(), "stompsock version=%s sha=%s date=%s\n\n", version, buildSHA, buildDate)
		flag.PrintDefaults()
	}
	flag.Parse()
	if *showVersion {
		fmt.Printf("stompsock version=%s sha=%s date=%s\n", version, buildSHA, buildDate)
		return
	}

	if cfg.ConfigFile != "" {
		if err := cfg.LoadFile(cfg.ConfigFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			logx.Log.Fatal().Err(err).Str("path", cfg.ConfigFile).Msg("load config")
		}
	}
	logx.Configure(cfg.LogLevel)
	if len(cfg.Destinations) == 0 {
		logx.Log.Warn().Msg("no destinations configured; the session will stay idle")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.Register(reg)
	metrics.SetBuildInfo(version, buildSHA, buildDate)

	sinks := sink.Multi{sink.NewLog(nil)}
	if cfg.RedisURL != "" {
		rc, err := redisx.Open(ctx, cfg.RedisURL)
		if err != nil {
			logx.Log.Fatal().Err(err).Msg("connect redis")
		}
		defer func() { _ = rc.Close() }()
		sinks = append(sinks, sink.NewRedis(rc, cfg.RedisPrefix, 0))
		rs, err := clientstate.NewRedisStore(ctx, rc, cfg.RedisPrefix+clientstate.DefaultKeySuffix)
		if err != nil {
			logx.Log.Fatal().Err(err).Msg("init redis state")
		}
		clientstate.UseStore(rs)
		logx.Log.Info().Str("prefix", cfg.RedisPrefix).Msg("using redis sink and state store")
	}
	async := sink.NewAsync(sinks, 10*time.Second)

	if cfg.StatusAddr != "" {
		h := statushttp.New(statushttp.Options{AllowedOrigins: cfg.AllowedOrigins, Gatherer: reg, Version: version})
		addr, err := statushttp.ServeUntilContext(ctx, cfg.StatusAddr, h)
		if err != nil {
			logx.Log.Fatal().Err(err).Str("addr", cfg.StatusAddr).Msg("status server")
		}
		logx.Log.Info().Str("addr", addr).Msg("status server listening")
	}
	if cfg.MetricsAddr != "" && cfg.MetricsAddr != cfg.StatusAddr {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		addr, err := statushttp.ServeUntilContext(ctx, cfg.MetricsAddr, mux)
		if err != nil {
			logx.Log.Fatal().Err(err).Str("addr", cfg.MetricsAddr).Msg("metrics server")
		}
		logx.Log.Info().Str("addr", addr).Msg("metrics server listening")
	}

	r := &runner{cfg: cfg, sink: async}
	err := r.run(ctx)

	drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	if derr := async.Close(drainCtx); derr != nil {
		logx.Log.Warn().Err(derr).Int("pending", async.Len()).Msg("sink drain incomplete")
	}
	cancel()

	if err != nil && !errors.Is(err, context.Canceled) {
		logx.Log.Error().Err(err).Msg("exiting")
		os.Exit(1)
	}
}
