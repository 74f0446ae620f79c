package main

import (
	"errors"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"google.golang.org/grpc"
	"google.golang.org/grpc/keepalive"
)

// Config is the server's environment-driven configuration, prefix
// FRAMESIFT (e.g. FRAMESIFT_LISTEN_ADDR).
type Config struct {
	ListenAddr  string `envconfig:"LISTEN_ADDR" default:"0.0.0.0:3000"`
	MetricsAddr string `envconfig:"METRICS_ADDR" default:"0.0.0.0:9090"`
	DumpDir     string `envconfig:"DUMP_DIR" default:"."`
	MaxSessions int    `envconfig:"MAX_SESSIONS" default:"4"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`

	RateLimitRPS   int `envconfig:"RATE_LIMIT_RPS" default:"0"`
	RateLimitBurst int `envconfig:"RATE_LIMIT_BURST" default:"0"`

	GRPCMaxRecvMsgSize       int    `envconfig:"GRPC_MAX_RECV_MSG_SIZE" default:"104857600"`
	GRPCMaxSendMsgSize       int    `envconfig:"GRPC_MAX_SEND_MSG_SIZE" default:"104857600"`
	GRPCMaxConcurrentStreams uint32 `envconfig:"GRPC_MAX_CONCURRENT_STREAMS" default:"250"`

	KeepAliveTime                time.Duration `envconfig:"KEEPALIVE_TIME" default:"2h"`
	KeepAliveTimeout             time.Duration `envconfig:"KEEPALIVE_TIMEOUT" default:"20s"`
	KeepAliveMinTime             time.Duration `envconfig:"KEEPALIVE_MIN_TIME" default:"5m"`
	KeepAlivePermitWithoutStream bool          `envconfig:"KEEPALIVE_PERMIT_WITHOUT_STREAM" default:"false"`
}

// Config validation errors
var (
	ErrInvalidListenAddr     = errors.New("listen_addr cannot be empty")
	ErrInvalidMetricsAddr    = errors.New("metrics_addr cannot be empty")
	ErrInvalidDumpDir        = errors.New("dump_dir cannot be empty")
	ErrInvalidMaxSessions    = errors.New("max_sessions must be positive")
	ErrInvalidLogFormat      = errors.New("log_format must be 'json' or 'console'")
	ErrInvalidLogLevel       = errors.New("log_level must be debug, info, warn, or error")
	ErrInvalidKeepAliveTime  = errors.New("keepalive_time must be positive")
	ErrInvalidMsgSize        = errors.New("grpc message size limits must be positive")
	ErrInvalidMaxStreams     = errors.New("grpc_max_concurrent_streams must be > 0")
	ErrInvalidRateLimitBurst = errors.New("rate_limit_burst needs rate_limit_rps")
)

// LoadConfig reads .env (best effort), the environment, and validates.
func LoadConfig() (Config, error) {
	_ = godotenv.Load()
	var cfg Config
	if err := envconfig.Process("FRAMESIFT", &cfg); err != nil {
		return cfg, err
	}
	if err := ValidateConfig(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ValidateConfig validates the configuration and returns an error if invalid
func ValidateConfig(cfg *Config) error {
	if cfg.ListenAddr == "" {
		return ErrInvalidListenAddr
	}
	if cfg.MetricsAddr == "" {
		return ErrInvalidMetricsAddr
	}
	if cfg.DumpDir == "" {
		return ErrInvalidDumpDir
	}
	if cfg.MaxSessions <= 0 {
		return ErrInvalidMaxSessions
	}
	if cfg.LogFormat != "json" && cfg.LogFormat != "console" {
		return ErrInvalidLogFormat
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return ErrInvalidLogLevel
	}
	if cfg.KeepAliveTime <= 0 {
		return ErrInvalidKeepAliveTime
	}
	if cfg.GRPCMaxRecvMsgSize <= 0 || cfg.GRPCMaxSendMsgSize <= 0 {
		return ErrInvalidMsgSize
	}
	if cfg.GRPCMaxConcurrentStreams == 0 {
		return ErrInvalidMaxStreams
	}
	if cfg.RateLimitBurst > 0 && cfg.RateLimitRPS <= 0 {
		return ErrInvalidRateLimitBurst
	}
	return nil
}

// BuildGRPCServerOptions combines keepalive settings with message size
// and concurrency options.
func (c *Config) BuildGRPCServerOptions() []grpc.ServerOption {
	kaParams := keepalive.ServerParameters{
		Time:    c.KeepAliveTime,
		Timeout: c.KeepAliveTimeout,
	}
	kaPolicy := keepalive.EnforcementPolicy{
		MinTime:             c.KeepAliveMinTime,
		PermitWithoutStream: c.KeepAlivePermitWithoutStream,
	}

	return []grpc.ServerOption{
		grpc.KeepaliveParams(kaParams),
		grpc.KeepaliveEnforcementPolicy(kaPolicy),
		grpc.MaxConcurrentStreams(c.GRPCMaxConcurrentStreams),
		grpc.MaxRecvMsgSize(c.GRPCMaxRecvMsgSize),
		grpc.MaxSendMsgSize(c.GRPCMaxSendMsgSize),
	}
}
