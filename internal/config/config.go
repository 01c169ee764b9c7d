package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
	"unicode"

	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

// Remote types.
const (
	RemoteFile = "file"
	RemoteS3   = "s3"
	RemotePeer = "peer"
)

// Config holds the repository configuration.
type Config struct {
	// Machine is this machine's ID: letters only, NFC-normalized.
	Machine string `yaml:"machine"`

	// Database is the path of the local SQLite version log.
	Database string `yaml:"database"`

	Remote  Remote  `yaml:"remote"`
	History History `yaml:"history"`
	Sync    Sync    `yaml:"sync"`

	// Listen is the address the serve command binds to.
	Listen string `yaml:"listen"`

	Log Log `yaml:"log"`
}

// Remote selects and configures the remote store.
type Remote struct {
	Type string `yaml:"type"`

	// Path is the directory of a file remote.
	Path string `yaml:"path,omitempty"`

	Bucket    string `yaml:"bucket,omitempty"`
	Region    string `yaml:"region,omitempty"`
	Endpoint  string `yaml:"endpoint,omitempty"`
	Prefix    string `yaml:"prefix,omitempty"`
	PathStyle bool   `yaml:"path_style,omitempty"`

	// Addr is the host:port of a peer remote.
	Addr string `yaml:"addr,omitempty"`
}

// History tunes loading of remote history.
type History struct {
	// Window replays only the newest N files per machine; 0 replays all.
	Window int `yaml:"window"`
}

// Sync tunes the sync loop.
type Sync struct {
	Interval time.Duration `yaml:"interval"`
	Timeout  time.Duration `yaml:"timeout"`
}

// Log configures logging.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used for unset fields.
func Default() Config {
	return Config{
		Database: "versync.db",
		Remote:   Remote{Type: RemoteFile},
		Sync: Sync{
			Interval: 30 * time.Second,
			Timeout:  time.Minute,
		},
		Listen: "127.0.0.1:7420",
		Log:    Log{Level: "info", Format: "text"},
	}
}

// Load reads path over the defaults, normalizes and validates it.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults. Unknown fields are rejected.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := cfg.Normalize(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Normalize canonicalizes the machine ID. Called by Parse; call it again
// after overriding Machine from a flag.
func (c *Config) Normalize() error {
	if c.Machine == "" {
		return nil
	}
	id, err := NormalizeMachine(c.Machine)
	if err != nil {
		return err
	}
	c.Machine = id
	return nil
}

// Validate reports every invalid field.
func (c *Config) Validate() error {
	var err error
	if c.Machine == "" {
		err = multierr.Append(err, errors.New("machine is required"))
	}
	if c.Database == "" {
		err = multierr.Append(err, errors.New("database is required"))
	}

	switch c.Remote.Type {
	case RemoteFile:
		if c.Remote.Path == "" {
			err = multierr.Append(err, errors.New("remote.path is required for a file remote"))
		}
	case RemoteS3:
		if c.Remote.Bucket == "" {
			err = multierr.Append(err, errors.New("remote.bucket is required for an s3 remote"))
		}
	case RemotePeer:
		if c.Remote.Addr == "" {
			err = multierr.Append(err, errors.New("remote.addr is required for a peer remote"))
		}
	default:
		err = multierr.Append(err, fmt.Errorf("remote.type %q is not one of file, s3, peer", c.Remote.Type))
	}

	if c.History.Window < 0 {
		err = multierr.Append(err, errors.New("history.window must not be negative"))
	}
	if c.Sync.Interval <= 0 {
		err = multierr.Append(err, errors.New("sync.interval must be positive"))
	}
	if c.Sync.Timeout <= 0 {
		err = multierr.Append(err, errors.New("sync.timeout must be positive"))
	}
	if _, lerr := logrus.ParseLevel(c.Log.Level); lerr != nil {
		err = multierr.Append(err, fmt.Errorf("log.level: %w", lerr))
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		err = multierr.Append(err, fmt.Errorf("log.format %q is not one of text, json", c.Log.Format))
	}
	return err
}

// NewLogger builds a logger writing to out.
func (l Log) NewLogger(out io.Writer) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(l.Level)
	if err != nil {
		return nil, err
	}
	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetLevel(level)
	if l.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger, nil
}

// NormalizeMachine returns the NFC form of a machine ID. IDs must be
// non-empty and consist of letters only, since the textual clock form puts
// the counter right after the ID.
func NormalizeMachine(id string) (string, error) {
	normalized := norm.NFC.String(strings.TrimSpace(id))
	if normalized == "" {
		return "", errors.New("machine ID cannot be empty")
	}
	for _, r := range normalized {
		if !unicode.IsLetter(r) {
			return "", fmt.Errorf("invalid machine ID %q: only letters are allowed", id)
		}
	}
	return normalized, nil
}

// Source is one machine's branch file given on the command line.
type Source struct {
	Machine string
	Path    string
}

// ParseSources parses a comma-separated list of sources in the format:
// "A=a.txt,B=b.txt"
func ParseSources(s string) ([]Source, error) {
	if s == "" {
		return []Source{}, nil
	}

	parts := strings.Split(s, ",")
	sources := make([]Source, 0, len(parts))
	seen := make(map[string]bool, len(parts))

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("invalid source format: %s (expected machine=path)", part)
		}

		path := strings.TrimSpace(kv[1])
		if path == "" {
			return nil, fmt.Errorf("source path cannot be empty: %s", part)
		}
		machine, err := NormalizeMachine(kv[0])
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", part, err)
		}
		if seen[machine] {
			return nil, fmt.Errorf("duplicate source for machine %s", machine)
		}
		seen[machine] = true

		sources = append(sources, Source{
			Machine: machine,
			Path:    path,
		})
	}

	return sources, nil
}
