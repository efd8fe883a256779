package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	commoncfg "github.com/gaspardpetit/stompsock/core/config"
	"gopkg.in/yaml.v3"
)

// ClientConfig holds configuration for the stompsock subscriber.
type ClientConfig struct {
	ServerURL      string        `yaml:"server_url"`
	Destinations   []string      `yaml:"destinations"`
	Headers        []string      `yaml:"headers"`
	SockJS         bool          `yaml:"sockjs"`
	Heartbeat      time.Duration `yaml:"heartbeat"`
	ReadLimit      int64         `yaml:"read_limit"`
	DialTimeout    time.Duration `yaml:"dial_timeout"`
	RandomIDs      bool          `yaml:"random_ids"`
	LogLevel       string        `yaml:"log_level"`
	MetricsAddr    string        `yaml:"metrics_addr"`
	StatusAddr     string        `yaml:"status_addr"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	RedisURL       string        `yaml:"redis_url"`
	RedisPrefix    string        `yaml:"redis_prefix"`
	ConfigFile     string        `yaml:"-"`
}

// BindFlags populates the struct with defaults from environment variables and
// binds command line flags so main can call flag.Parse().
func (c *ClientConfig) BindFlags() {
	c.bind(flag.CommandLine)
}

func (c *ClientConfig) bind(fs *flag.FlagSet) {
	c.ConfigFile = commoncfg.GetEnv("CONFIG_FILE", commoncfg.DefaultConfigPath("client.yaml"))
	c.LogLevel = commoncfg.GetEnv("LOG_LEVEL", "info")

	c.ServerURL = commoncfg.GetEnv("SERVER_URL", "http://localhost:8080/stomp")
	c.Destinations = splitList(commoncfg.GetEnv("DESTINATIONS", ""))
	c.Headers = splitList(commoncfg.GetEnv("HEADERS", ""))
	if b, err := strconv.ParseBool(commoncfg.GetEnv("SOCKJS", "true")); err == nil {
		c.SockJS = b
	} else {
		c.SockJS = true
	}
	if d, err := time.ParseDuration(commoncfg.GetEnv("HEARTBEAT", "0")); err == nil {
		c.Heartbeat = d
	}
	if v, err := strconv.ParseInt(commoncfg.GetEnv("READ_LIMIT", "0"), 10, 64); err == nil {
		c.ReadLimit = v
	}
	if d, err := time.ParseDuration(commoncfg.GetEnv("DIAL_TIMEOUT", "30s")); err == nil {
		c.DialTimeout = d
	} else {
		c.DialTimeout = 30 * time.Second
	}
	if b, err := strconv.ParseBool(commoncfg.GetEnv("RANDOM_IDS", "false")); err == nil {
		c.RandomIDs = b
	}
	mp := commoncfg.GetEnv("METRICS_PORT", "")
	if mp != "" && !strings.Contains(mp, ":") {
		mp = ":" + mp
	}
	c.MetricsAddr = mp
	c.StatusAddr = commoncfg.GetEnv("STATUS_ADDR", "")
	c.AllowedOrigins = splitList(commoncfg.GetEnv("ALLOWED_ORIGINS", ""))
	c.RedisURL = commoncfg.GetEnv("REDIS_URL", "")
	c.RedisPrefix = commoncfg.GetEnv("REDIS_PREFIX", "stompsock:")

	fs.StringVar(&c.ServerURL, "server-url", c.ServerURL, "STOMP endpoint (http(s) or ws(s); e.g. https://example.com/stomp)")
	fs.Func("destination", "destination to subscribe once connected; repeatable", func(v string) error {
		c.Destinations = append(c.Destinations, v)
		return nil
	})
	fs.Func("header", "handshake header as name=value (e.g. Cookie=JSESSIONID=abc); repeatable", func(v string) error {
		if _, _, ok := strings.Cut(v, "="); !ok {
			return fmt.Errorf("header %q: expected name=value", v)
		}
		c.Headers = append(c.Headers, v)
		return nil
	})
	fs.BoolVar(&c.SockJS, "sockjs", c.SockJS, "append a SockJS /{server}/{session}/websocket path to the server URL")
	fs.DurationVar(&c.Heartbeat, "heartbeat", c.Heartbeat, "interval for client heart-beats (0 disables)")
	fs.Int64Var(&c.ReadLimit, "read-limit", c.ReadLimit, "maximum inbound message size in bytes (0 for the default)")
	fs.DurationVar(&c.DialTimeout, "dial-timeout", c.DialTimeout, "maximum duration of the WebSocket handshake")
	fs.BoolVar(&c.RandomIDs, "random-ids", c.RandomIDs, "draw subscription ids from 0-999 instead of counting")
	fs.StringVar(&c.MetricsAddr, "metrics-port", c.MetricsAddr, "Prometheus metrics listen address or port (disabled when empty; e.g. 127.0.0.1:9090 or 9090)")
	fs.StringVar(&c.StatusAddr, "status-addr", c.StatusAddr, "local status HTTP listen address (enables /status; e.g. 127.0.0.1:4555)")
	fs.Func("allowed-origins", "comma separated CORS origins for the status server", func(v string) error {
		c.AllowedOrigins = splitList(v)
		return nil
	})
	fs.StringVar(&c.RedisURL, "redis-url", c.RedisURL, "Redis URL for message delivery and status (e.g. redis://localhost:6379/0)")
	fs.StringVar(&c.RedisPrefix, "redis-prefix", c.RedisPrefix, "prefix for Redis list, channel and status keys")
	fs.StringVar(&c.ConfigFile, "config", c.ConfigFile, "client config file path")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log verbosity (all, debug, info, warn, error, fatal, none)")
}

// LoadFile populates the config from a YAML file. Fields already set remain unless
// overwritten by corresponding entries in the file.
func (c *ClientConfig) LoadFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(b, c)
}

// HeaderMap parses Headers into name/value pairs. Entries without '=' are skipped.
func (c *ClientConfig) HeaderMap() map[string]string {
	m := make(map[string]string, len(c.Headers))
	for _, h := range c.Headers {
		name, value, ok := strings.Cut(h, "=")
		if !ok || strings.TrimSpace(name) == "" {
			continue
		}
		m[strings.TrimSpace(name)] = strings.TrimSpace(value)
	}
	return m
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
