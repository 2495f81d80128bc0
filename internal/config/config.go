// Package config provides functionality for managing configuration options
// for the application using command-line flags, environment variables and an
// optional JSON or YAML config file.
package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default store paths per kind.
const (
	DefaultFilePath   = "branchlift.json"
	DefaultSQLitePath = "branchlift.db"
)

// Store kinds accepted by StoreKind.
const (
	StoreMemory   = "memory"
	StoreFile     = "file"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

// Options holds the configuration values for the application.
type Options struct {
	// Addr defines the server's listening address (ip:port).
	Addr string

	// StoreKind selects the key/value backend.
	StoreKind string

	// StorePath is the file used by the file and sqlite backends. When empty
	// it defaults per kind to DefaultFilePath or DefaultSQLitePath.
	StorePath string

	// DatabaseDSN holds the PostgreSQL connection string.
	DatabaseDSN string

	// GitHubURL is the base URL of the GitHub REST API.
	GitHubURL string

	// LookupTimeout bounds a single repository lookup.
	LookupTimeout time.Duration

	// BuildDelay is how long a new environment stays in "building".
	BuildDelay time.Duration

	LogLevel string
	LogFile  string

	// TLSCert and TLSKey enable HTTPS when both are set.
	TLSCert string
	TLSKey  string

	// Config is the path to the config file.
	Config string
}

// fileOptions is the on-disk shape. Durations are strings such as "5s".
type fileOptions struct {
	Addr          string `json:"addr" yaml:"addr"`
	StoreKind     string `json:"store_kind" yaml:"store_kind"`
	StorePath     string `json:"store_path" yaml:"store_path"`
	DatabaseDSN   string `json:"database_dsn" yaml:"database_dsn"`
	GitHubURL     string `json:"github_url" yaml:"github_url"`
	LookupTimeout string `json:"lookup_timeout" yaml:"lookup_timeout"`
	BuildDelay    string `json:"build_delay" yaml:"build_delay"`
	LogLevel      string `json:"log_level" yaml:"log_level"`
	LogFile       string `json:"log_file" yaml:"log_file"`
	TLSCert       string `json:"tls_cert" yaml:"tls_cert"`
	TLSKey        string `json:"tls_key" yaml:"tls_key"`
}

// Defaults returns the built-in configuration.
func Defaults() Options {
	return Options{
		Addr:          "localhost:8080",
		StoreKind:     StoreFile,
		GitHubURL:     "https://api.github.com",
		LookupTimeout: 5 * time.Second,
		BuildDelay:    2 * time.Second,
		LogLevel:      "info",
		Config:        "config.json",
	}
}

// Load resolves options from args and getenv. Precedence from lowest to
// highest: defaults, config file, environment, flags given on the command
// line. A missing config file is ignored; an unreadable one is an error.
func Load(args []string, getenv func(string) string) (*Options, error) {
	opts := Defaults()
	flagged := opts

	fs := flag.NewFlagSet("branchlift", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&flagged.Addr, "a", opts.Addr, "run on ip:port server")
	fs.StringVar(&flagged.StoreKind, "s", opts.StoreKind, "store kind: memory, file, postgres or sqlite")
	fs.StringVar(&flagged.StorePath, "f", opts.StorePath, "store file path (default branchlift.json, or branchlift.db for sqlite)")
	fs.StringVar(&flagged.DatabaseDSN, "d", opts.DatabaseDSN, "db address")
	fs.StringVar(&flagged.GitHubURL, "g", opts.GitHubURL, "GitHub API base URL")
	fs.DurationVar(&flagged.LookupTimeout, "t", opts.LookupTimeout, "repository lookup timeout")
	fs.DurationVar(&flagged.BuildDelay, "b", opts.BuildDelay, "environment build delay")
	fs.StringVar(&flagged.LogLevel, "l", opts.LogLevel, "log level")
	fs.StringVar(&flagged.TLSCert, "cert", opts.TLSCert, "TLS certificate file")
	fs.StringVar(&flagged.TLSKey, "key", opts.TLSKey, "TLS key file")
	fs.StringVar(&flagged.Config, "config", opts.Config, "path to config file")
	fs.StringVar(&flagged.Config, "c", opts.Config, "path to config file (shorthand)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	opts.Config = flagged.Config
	if v := getenv("CONFIG"); v != "" && !set["config"] && !set["c"] {
		opts.Config = v
	}
	if err := readFile(opts.Config, &opts); err != nil {
		return nil, err
	}

	envString(getenv, "SERVER_ADDRESS", &opts.Addr)
	envString(getenv, "STORE_KIND", &opts.StoreKind)
	envString(getenv, "STORE_PATH", &opts.StorePath)
	envString(getenv, "DATABASE_DSN", &opts.DatabaseDSN)
	envString(getenv, "GITHUB_API_URL", &opts.GitHubURL)
	envString(getenv, "LOG_LEVEL", &opts.LogLevel)
	envString(getenv, "LOG_FILE", &opts.LogFile)

	apply := map[string]func(){
		"a":    func() { opts.Addr = flagged.Addr },
		"s":    func() { opts.StoreKind = flagged.StoreKind },
		"f":    func() { opts.StorePath = flagged.StorePath },
		"d":    func() { opts.DatabaseDSN = flagged.DatabaseDSN },
		"g":    func() { opts.GitHubURL = flagged.GitHubURL },
		"t":    func() { opts.LookupTimeout = flagged.LookupTimeout },
		"b":    func() { opts.BuildDelay = flagged.BuildDelay },
		"l":    func() { opts.LogLevel = flagged.LogLevel },
		"cert": func() { opts.TLSCert = flagged.TLSCert },
		"key":  func() { opts.TLSKey = flagged.TLSKey },
	}
	for name := range set {
		if fn, ok := apply[name]; ok {
			fn()
		}
	}

	if opts.StorePath == "" {
		switch opts.StoreKind {
		case StoreFile:
			opts.StorePath = DefaultFilePath
		case StoreSQLite:
			opts.StorePath = DefaultSQLitePath
		}
	}

	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &opts, nil
}

// Parse loads options from os.Args and the process environment and exits on
// error.
func Parse() *Options {
	opts, err := Load(os.Args[1:], os.Getenv)
	if err != nil {
		log.Fatalf("error while loading config: %v", err)
	}
	return opts
}

func (o *Options) validate() error {
	switch o.StoreKind {
	case StoreMemory, StoreFile, StoreSQLite:
	case StorePostgres:
		if o.DatabaseDSN == "" {
			return errors.New("postgres store requires a database DSN")
		}
	default:
		return fmt.Errorf("unknown store kind %q", o.StoreKind)
	}
	if (o.TLSCert == "") != (o.TLSKey == "") {
		return errors.New("TLS needs both a certificate and a key")
	}
	if o.LookupTimeout <= 0 {
		return errors.New("lookup timeout must be positive")
	}
	return nil
}

func readFile(path string, opts *Options) error {
	if path == "" {
		return nil
	}
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

	overlay := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	overlay(&opts.Addr, fo.Addr)
	overlay(&opts.StoreKind, fo.StoreKind)
	overlay(&opts.StorePath, fo.StorePath)
	overlay(&opts.DatabaseDSN, fo.DatabaseDSN)
	overlay(&opts.GitHubURL, fo.GitHubURL)
	overlay(&opts.LogLevel, fo.LogLevel)
	overlay(&opts.LogFile, fo.LogFile)
	overlay(&opts.TLSCert, fo.TLSCert)
	overlay(&opts.TLSKey, fo.TLSKey)

	for _, d := range []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"lookup_timeout", fo.LookupTimeout, &opts.LookupTimeout},
		{"build_delay", fo.BuildDelay, &opts.BuildDelay},
	} {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("config file %s: %w", d.name, err)
		}
		*d.dst = v
	}
	return nil
}

func envString(getenv func(string) string, name string, dst *string) {
	if v := getenv(name); v != "" {
		*dst = v
	}
}
