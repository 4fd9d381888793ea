// Package config provides functionality for managing configuration options
// for the application using command-line flags, environment variables and
// an optional JSON or YAML config file.
package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage backends.
const (
	StorageFile     = "file"
	StoragePostgres = "postgres"
)

// Options holds the configuration values for the application.
type Options struct {
	// Addr defines the server's listening address (ip:port).
	Addr string

	// Storage selects the backend: "file" or "postgres".
	Storage string
	// DataDir is where the file backend keeps users.json, sessions.json and
	// the per-account data files.
	DataDir string
	// DatabaseDSN holds the database connection string for the postgres backend.
	DatabaseDSN string
	// RedisURL, when set, moves sessions to Redis regardless of Storage.
	RedisURL string

	// SessionMaxAge is the cookie Max-Age and the Redis session TTL.
	SessionMaxAge time.Duration
	// SessionRetention enables the postgres session janitor when positive.
	SessionRetention time.Duration
	// SessionCleanupInterval is how often the janitor runs.
	SessionCleanupInterval time.Duration

	// AdminPassword seeds the admin account on first start.
	AdminPassword string
	LogLevel      string

	// TLSCert and TLSKey switch the server to HTTPS when both are set.
	TLSCert string
	TLSKey  string

	// Config is the path to the config file.
	Config string
}

// fileOptions mirrors Options as written in a config file; durations are
// strings such as "24h".
type fileOptions struct {
	Addr                   string `json:"server_address" yaml:"server_address"`
	Storage                string `json:"storage" yaml:"storage"`
	DataDir                string `json:"data_dir" yaml:"data_dir"`
	DatabaseDSN            string `json:"database_dsn" yaml:"database_dsn"`
	RedisURL               string `json:"redis_url" yaml:"redis_url"`
	SessionMaxAge          string `json:"session_max_age" yaml:"session_max_age"`
	SessionRetention       string `json:"session_retention" yaml:"session_retention"`
	SessionCleanupInterval string `json:"session_cleanup_interval" yaml:"session_cleanup_interval"`
	AdminPassword          string `json:"admin_password" yaml:"admin_password"`
	LogLevel               string `json:"log_level" yaml:"log_level"`
	TLSCert                string `json:"tls_cert" yaml:"tls_cert"`
	TLSKey                 string `json:"tls_key" yaml:"tls_key"`
}

func defaults() Options {
	return Options{
		Addr:                   "localhost:8080",
		Storage:                StorageFile,
		DataDir:                "data",
		SessionMaxAge:          24 * time.Hour,
		SessionCleanupInterval: time.Hour,
		AdminPassword:          "admin",
		LogLevel:               "info",
		Config:                 "config.json",
	}
}

// Parse parses the command-line flags, the config file and environment
// variables, in increasing order of precedence. Invalid configuration is fatal.
func Parse() *Options {
	opts, err := Load(flag.CommandLine, os.Args[1:], os.Getenv)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	return opts
}

// Load builds Options from args parsed with fs, the config file they name
// and getenv. Values from the file apply only where no flag was given;
// environment variables override both.
func Load(fs *flag.FlagSet, args []string, getenv func(string) string) (*Options, error) {
	opts := defaults()
	def := defaults()

	fs.StringVar(&opts.Addr, "a", def.Addr, "run on ip:port server")
	fs.StringVar(&opts.Storage, "storage", def.Storage, "storage backend: file or postgres")
	fs.StringVar(&opts.DataDir, "data", def.DataDir, "data directory for the file backend")
	fs.StringVar(&opts.DatabaseDSN, "d", def.DatabaseDSN, "db address")
	fs.StringVar(&opts.RedisURL, "redis", def.RedisURL, "redis URL for the session store")
	fs.DurationVar(&opts.SessionMaxAge, "session-max-age", def.SessionMaxAge, "session cookie max age")
	fs.DurationVar(&opts.SessionRetention, "session-retention", def.SessionRetention, "delete postgres sessions older than this; 0 disables")
	fs.DurationVar(&opts.SessionCleanupInterval, "session-cleanup-interval", def.SessionCleanupInterval, "how often expired sessions are removed")
	fs.StringVar(&opts.LogLevel, "log-level", def.LogLevel, "log level")
	fs.StringVar(&opts.TLSCert, "tls-cert", def.TLSCert, "TLS certificate file")
	fs.StringVar(&opts.TLSKey, "tls-key", def.TLSKey, "TLS key file")
	fs.StringVar(&opts.Config, "config", def.Config, "path to config file")
	fs.StringVar(&opts.Config, "c", def.Config, "path to config file (shorthand)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	setByFlag := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { setByFlag[f.Name] = true })

	if path := getenv("CONFIG"); path != "" {
		opts.Config = path
	}
	if opts.Config != "" {
		if err := applyFile(&opts, opts.Config, setByFlag); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(&opts, getenv); err != nil {
		return nil, err
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &opts, nil
}

// Validate checks cross-field constraints.
func (o *Options) Validate() error {
	switch o.Storage {
	case StorageFile:
		if o.DataDir == "" {
			return errors.New("data directory is required for file storage")
		}
	case StoragePostgres:
		if o.DatabaseDSN == "" {
			return errors.New("database DSN is required for postgres storage")
		}
	default:
		return fmt.Errorf("unknown storage %q", o.Storage)
	}
	if (o.TLSCert == "") != (o.TLSKey == "") {
		return errors.New("tls cert and key must be set together")
	}
	if o.SessionMaxAge < 0 || o.SessionRetention < 0 {
		return errors.New("session durations must not be negative")
	}
	if o.SessionRetention > 0 && o.SessionCleanupInterval <= 0 {
		return errors.New("session cleanup interval must be positive")
	}
	return nil
}

// applyFile merges the config file at path. A missing file is not an error.
func applyFile(opts *Options, path string, setByFlag map[string]bool) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("error while reading config file: %w", err)
	}

	var fo fileOptions
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &fo)
	default:
		err = json.Unmarshal(data, &fo)
	}
	if err != nil {
		return fmt.Errorf("error while parsing config file: %w", err)
	}

	str := func(flagName string, dst *string, v string) {
		if v != "" && !setByFlag[flagName] {
			*dst = v
		}
	}
	str("a", &opts.Addr, fo.Addr)
	str("storage", &opts.Storage, fo.Storage)
	str("data", &opts.DataDir, fo.DataDir)
	str("d", &opts.DatabaseDSN, fo.DatabaseDSN)
	str("redis", &opts.RedisURL, fo.RedisURL)
	str("log-level", &opts.LogLevel, fo.LogLevel)
	str("tls-cert", &opts.TLSCert, fo.TLSCert)
	str("tls-key", &opts.TLSKey, fo.TLSKey)
	if fo.AdminPassword != "" {
		opts.AdminPassword = fo.AdminPassword
	}

	for _, d := range []struct {
		flag string
		dst  *time.Duration
		v    string
	}{
		{"session-max-age", &opts.SessionMaxAge, fo.SessionMaxAge},
		{"session-retention", &opts.SessionRetention, fo.SessionRetention},
		{"session-cleanup-interval", &opts.SessionCleanupInterval, fo.SessionCleanupInterval},
	} {
		if d.v == "" || setByFlag[d.flag] {
			continue
		}
		v, err := time.ParseDuration(d.v)
		if err != nil {
			return fmt.Errorf("config file %s: %w", d.flag, err)
		}
		*d.dst = v
	}
	return nil
}

func applyEnv(opts *Options, getenv func(string) string) error {
	for env, dst := range map[string]*string{
		"SERVER_ADDRESS": &opts.Addr,
		"STORAGE":        &opts.Storage,
		"DATA_DIR":       &opts.DataDir,
		"DATABASE_DSN":   &opts.DatabaseDSN,
		"REDIS_URL":      &opts.RedisURL,
		"ADMIN_PASSWORD": &opts.AdminPassword,
		"LOG_LEVEL":      &opts.LogLevel,
		"TLS_CERT":       &opts.TLSCert,
		"TLS_KEY":        &opts.TLSKey,
	} {
		if v := getenv(env); v != "" {
			*dst = v
		}
	}

	for env, dst := range map[string]*time.Duration{
		"SESSION_MAX_AGE":          &opts.SessionMaxAge,
		"SESSION_RETENTION":        &opts.SessionRetention,
		"SESSION_CLEANUP_INTERVAL": &opts.SessionCleanupInterval,
	} {
		v := getenv(env)
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", env, err)
		}
		*dst = d
	}
	return nil
}
