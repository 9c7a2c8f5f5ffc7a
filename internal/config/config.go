// Package config loads memostore settings.
//
// Values are layered: built-in defaults, then the YAML file, then
// MEMOSTORE_* environment variables. Command-line flags are applied by the
// CLI on top. The merged result is checked against an embedded CUE schema.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"

	"github.com/roach88/memostore/internal/address"
	"github.com/roach88/memostore/internal/storage"
)

//go:embed schema.cue
var schemaSource string

// DefaultProgramID is the default service instance identity.
const DefaultProgramID = "5498c5781e26ca44305e8f73f6d9842af4caf0e555b1d9a7424ab15c39319de4"

// Backend names.
const (
	BackendSQLite = "sqlite"
	BackendBolt   = "bolt"
	BackendMemory = "memory"
)

// Environment variables read by Load.
const (
	EnvDB       = "MEMOSTORE_DB"
	EnvWallet   = "MEMOSTORE_WALLET"
	EnvBackend  = "MEMOSTORE_BACKEND"
	EnvLogLevel = "MEMOSTORE_LOG_LEVEL"
)

// Config is the merged configuration.
type Config struct {
	Backend   string `yaml:"backend" json:"backend"`
	Database  string `yaml:"database" json:"database"`
	Wallet    string `yaml:"wallet" json:"wallet"`
	ProgramID string `yaml:"program_id" json:"program_id"`
	LogLevel  string `yaml:"log_level" json:"log_level"`

	Rent   Rent   `yaml:"rent" json:"rent"`
	Events Events `yaml:"events" json:"events"`
}

// Rent holds deposit parameters. PerByte 0 disables deposits.
type Rent struct {
	BaseBytes int    `yaml:"base_bytes" json:"base_bytes"`
	PerByte   uint64 `yaml:"per_byte" json:"per_byte"`
}

// Events selects event sinks.
type Events struct {
	// Log writes each event as a log record.
	Log bool `yaml:"log" json:"log"`

	// File is a JSON-lines file rotated by size. Empty disables it.
	File       string `yaml:"file" json:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days" json:"max_age_days"`

	// Retries is the number of extra attempts per sink write.
	Retries int `yaml:"retries" json:"retries"`
}

// Default returns the built-in configuration.
func Default() Config {
	rent := storage.DefaultRent()
	return Config{
		Backend:   BackendSQLite,
		Database:  "memostore.db",
		ProgramID: DefaultProgramID,
		LogLevel:  "info",
		Rent:      Rent{BaseBytes: rent.BaseBytes, PerByte: rent.PerByte},
		Events: Events{
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
			Retries:    2,
		},
	}
}

// Load builds the configuration from defaults, the file at path (skipped
// when empty) and the process environment, then validates it.
func Load(path string) (Config, error) {
	return LoadWithEnv(path, os.LookupEnv)
}

// LoadWithEnv is Load with an explicit environment lookup.
func LoadWithEnv(path string, lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := decode(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv(lookup)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// decode overlays YAML onto cfg. Unknown keys are rejected.
func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvDB); ok && v != "" {
		c.Database = v
	}
	if v, ok := lookup(EnvWallet); ok && v != "" {
		c.Wallet = v
	}
	if v, ok := lookup(EnvBackend); ok && v != "" {
		c.Backend = strings.ToLower(v)
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.LogLevel = strings.ToLower(v)
	}
}

// Validate checks c against the embedded schema.
func (c Config) Validate() error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue")).LookupPath(cue.ParsePath("#Config"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	v := ctx.Encode(c)
	if err := v.Err(); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := schema.Unify(v).Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid config: %s", strings.TrimSpace(cueerrors.Details(err, nil)))
	}
	return nil
}

// Program returns the parsed program identity.
func (c Config) Program() (address.Pubkey, error) {
	p, err := address.ParsePubkey(c.ProgramID)
	if err != nil {
		return address.Pubkey{}, fmt.Errorf("program_id: %w", err)
	}
	return p, nil
}

// StorageRent returns the deposit model.
func (c Config) StorageRent() storage.Rent {
	return storage.Rent{BaseBytes: c.Rent.BaseBytes, PerByte: c.Rent.PerByte}
}

// Level returns the slog level for LogLevel, defaulting to info.
func (c Config) Level() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}
