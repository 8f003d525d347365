// Package config loads tokencid settings.
//
// Sources are applied in order, later ones winning:
//
//  1. Defaults
//  2. YAML file
//  3. Environment (TOKENCID_DB, IPFS_PATH, TOKENCID_REDIS_URL, PORT)
//  4. Legacy ipfs_config.txt, for the IPFS repo path only, when still unset
//  5. Command-line flags (applied by the caller)
//
// Validate checks the merged result against an embedded CUE schema.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"

	"github.com/roach88/tokencid/internal/addresser"
	"github.com/roach88/tokencid/internal/lookup"
	"github.com/roach88/tokencid/internal/pipeline"
	"github.com/roach88/tokencid/internal/store"
)

//go:embed schema.cue
var schemaCUE string

// Config is the full configuration. Field tags name both the YAML keys and
// the CUE schema fields.
type Config struct {
	Store     StoreConfig     `yaml:"store" json:"store"`
	Build     BuildConfig     `yaml:"build" json:"build"`
	Addresser AddresserConfig `yaml:"addresser" json:"addresser"`
	Serve     ServeConfig     `yaml:"serve" json:"serve"`
	Cache     CacheConfig     `yaml:"cache" json:"cache"`
}

type StoreConfig struct {
	Path      string `yaml:"path" json:"path"`
	ReadConns int    `yaml:"read_conns" json:"read_conns"`
}

type BuildConfig struct {
	Workers          int           `yaml:"workers" json:"workers"` // 0 = CPUs - 1
	BatchSize        int           `yaml:"batch_size" json:"batch_size"`
	FlushInterval    time.Duration `yaml:"flush_interval" json:"flush_interval"`
	QueueSize        int           `yaml:"queue_size" json:"queue_size"`
	MaxWriteFailures int           `yaml:"max_write_failures" json:"max_write_failures"`
	ProgressInterval time.Duration `yaml:"progress_interval" json:"progress_interval"`
}

type AddresserConfig struct {
	Kind             string        `yaml:"kind" json:"kind"`
	Bin              string        `yaml:"bin" json:"bin"`
	RepoPath         string        `yaml:"repo_path" json:"repo_path"`
	URL              string        `yaml:"url" json:"url"`
	Timeout          time.Duration `yaml:"timeout" json:"timeout"`
	Attempts         int           `yaml:"attempts" json:"attempts"`
	Backoff          time.Duration `yaml:"backoff" json:"backoff"`
	LegacyConfigFile string        `yaml:"legacy_config_file" json:"legacy_config_file"`
}

type ServeConfig struct {
	Addr          string        `yaml:"addr" json:"addr"`
	MaxBatch      int           `yaml:"max_batch" json:"max_batch"`
	Timeout       time.Duration `yaml:"timeout" json:"timeout"`
	StatsSchedule string        `yaml:"stats_schedule" json:"stats_schedule"` // crontab; "" disables
}

type CacheConfig struct {
	Size     int           `yaml:"size" json:"size"` // 0 disables the in-process cache
	RedisURL string        `yaml:"redis_url" json:"redis_url"`
	RedisTTL time.Duration `yaml:"redis_ttl" json:"redis_ttl"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Store: StoreConfig{
			Path:      "cid_tokens.db",
			ReadConns: store.DefaultReadConns,
		},
		Build: BuildConfig{
			BatchSize:        pipeline.DefaultBatchSize,
			FlushInterval:    pipeline.DefaultFlushInterval,
			QueueSize:        pipeline.DefaultQueueSize,
			MaxWriteFailures: pipeline.DefaultMaxWriteFailures,
			ProgressInterval: pipeline.DefaultProgressInterval,
		},
		Addresser: AddresserConfig{
			Kind:             addresser.NameIPFS,
			Bin:              "ipfs",
			Timeout:          10 * time.Second,
			Attempts:         1,
			Backoff:          200 * time.Millisecond,
			LegacyConfigFile: "ipfs_config.txt",
		},
		Serve: ServeConfig{
			Addr:          ":8000",
			MaxBatch:      lookup.DefaultMaxBatch,
			Timeout:       lookup.DefaultTimeout,
			StatsSchedule: "* * * * *",
		},
		Cache: CacheConfig{
			Size:     lookup.DefaultCacheSize,
			RedisTTL: lookup.DefaultRedisTTL,
		},
	}
}

// Load returns defaults overlaid with the YAML file at path (if path is
// non-empty), the environment, and the legacy IPFS config file.
// A missing file at path is an error; a missing legacy file is not.
func Load(path string, getenv func(string) string) (Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv(getenv)

	if cfg.Addresser.RepoPath == "" && cfg.Addresser.LegacyConfigFile != "" {
		repo, err := ReadLegacyIPFSPath(cfg.Addresser.LegacyConfigFile)
		switch {
		case err == nil:
			cfg.Addresser.RepoPath = repo
		case errors.Is(err, fs.ErrNotExist):
		default:
			return cfg, err
		}
	}

	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("TOKENCID_DB"); v != "" {
		c.Store.Path = v
	}
	if v := getenv("IPFS_PATH"); v != "" {
		c.Addresser.RepoPath = v
	}
	if v := getenv("TOKENCID_REDIS_URL"); v != "" {
		c.Cache.RedisURL = v
	}
	if v := getenv("PORT"); v != "" {
		c.Serve.Addr = ":" + v
	}
}

// Validate checks c against the embedded schema.
func (c Config) Validate() error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	v := ctx.Encode(c)
	if err := v.Err(); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	def := schema.LookupPath(cue.ParsePath("#Config"))
	if err := def.Unify(v).Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid config: %s", cueerrors.Details(err, nil))
	}
	return nil
}

// AddresserOptions converts the addresser section.
func (c Config) AddresserOptions() addresser.Options {
	a := c.Addresser
	return addresser.Options{
		Kind:     a.Kind,
		Bin:      a.Bin,
		RepoPath: a.RepoPath,
		URL:      a.URL,
		Timeout:  a.Timeout,
		Attempts: a.Attempts,
		Backoff:  a.Backoff,
	}
}

// PipelineConfig converts the build section.
func (c Config) PipelineConfig() pipeline.Config {
	b := c.Build
	return pipeline.Config{
		Workers:          b.Workers,
		BatchSize:        b.BatchSize,
		FlushInterval:    b.FlushInterval,
		QueueSize:        b.QueueSize,
		MaxWriteFailures: b.MaxWriteFailures,
		ProgressInterval: b.ProgressInterval,
	}
}

// LookupConfig converts the serve section.
func (c Config) LookupConfig() lookup.Config {
	return lookup.Config{MaxBatch: c.Serve.MaxBatch, Timeout: c.Serve.Timeout}
}
