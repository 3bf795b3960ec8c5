// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads the application configuration from YAML and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/poiesic/profmatch/ai"
	"github.com/poiesic/profmatch/extract"
	"gopkg.in/yaml.v3"
)

// Environment variables that override the file.
const (
	EnvOpenAIKey    = "OPENAI_API_KEY"
	EnvPineconeKey  = "PINECONE_API_KEY"
	EnvPineconeHost = "PINECONE_HOST"
)

// DefaultNamespace is the index partition all entries live in.
const DefaultNamespace = "ns1"

// ServerConfig configures the HTTP entry points.
type ServerConfig struct {
	Addr              string        `yaml:"addr"`
	IngestRetries     int           `yaml:"ingest_retries"` // 0 disables caller-level retries
	RetryDelay        time.Duration `yaml:"retry_delay"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
}

// AIConfig configures the embedding and generation services.
type AIConfig struct {
	Provider        string        `yaml:"provider"` // openai or mock
	EmbeddingHost   string        `yaml:"embedding_host"`
	GenerationHost  string        `yaml:"generation_host"`
	EmbeddingModel  string        `yaml:"embedding_model"`
	GenerationModel string        `yaml:"generation_model"`
	APIKey          string        `yaml:"api_key"`
	Dimension       int           `yaml:"dimension"`
	Temperature     float64       `yaml:"temperature"`
	EmbedTimeout    time.Duration `yaml:"embed_timeout"`
	GenerateTimeout time.Duration `yaml:"generate_timeout"`
}

// PineconeConfig locates a Pinecone index.
type PineconeConfig struct {
	Host   string `yaml:"host"`
	APIKey string `yaml:"api_key"`
}

// IndexConfig selects the vector index backend.
type IndexConfig struct {
	Backend   string         `yaml:"backend"` // badger, memory or pinecone
	Path      string         `yaml:"path"`    // badger directory
	Namespace string         `yaml:"namespace"`
	Timeout   time.Duration  `yaml:"timeout"`
	Pinecone  PineconeConfig `yaml:"pinecone"`
}

// FetchConfig configures page retrieval.
type FetchConfig struct {
	Driver       string        `yaml:"driver"` // http or chromedp
	Timeout      time.Duration `yaml:"timeout"`
	MaxBodyBytes int64         `yaml:"max_body_bytes"`
	UserAgent    string        `yaml:"user_agent"`
	WaitSelector string        `yaml:"wait_selector"` // chromedp only
	ChromePath   string        `yaml:"chrome_path"`   // chromedp only
	PoolSize     int           `yaml:"pool_size"`     // batch ingestion workers
}

// RedisConfig locates the Redis embedding cache.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Prefix   string        `yaml:"prefix"`
	TTL      time.Duration `yaml:"ttl"`
}

// CacheConfig selects the embedding cache.
type CacheConfig struct {
	Backend  string      `yaml:"backend"` // none, memory or redis
	Capacity int         `yaml:"capacity"`
	Redis    RedisConfig `yaml:"redis"`
}

// RetrievalConfig configures question answering.
type RetrievalConfig struct {
	TopK int `yaml:"top_k"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Server    ServerConfig      `yaml:"server"`
	AI        AIConfig          `yaml:"ai"`
	Index     IndexConfig       `yaml:"index"`
	Fetch     FetchConfig       `yaml:"fetch"`
	Cache     CacheConfig       `yaml:"cache"`
	Retrieval RetrievalConfig   `yaml:"retrieval"`
	Extract   extract.Selectors `yaml:"extract"`
}

// Default returns the configuration used when no file is present.
func Default() *AppConfig {
	cfg := &AppConfig{}
	ApplyDefaults(cfg)
	return cfg
}

// Load reads a config from path. If the file does not exist, returns defaults.
// Environment overrides are applied in both cases.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := Default()
			ApplyEnv(cfg)
			return cfg, nil
		}
		return nil, fmt.Errorf("cannot read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML, fills defaults and applies environment overrides.
func Parse(data []byte) (*AppConfig, error) {
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	ApplyDefaults(&cfg)
	ApplyEnv(&cfg)
	return &cfg, nil
}

// LoadDotEnv loads KEY=value pairs from the given files (".env" when none)
// into the process environment. Missing files are ignored; existing
// variables are not overwritten.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	var present []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			present = append(present, f)
		}
	}
	if len(present) == 0 {
		return nil
	}
	return godotenv.Load(present...)
}

// ApplyEnv overrides secrets and hosts from the environment.
func ApplyEnv(cfg *AppConfig) {
	if v := os.Getenv(EnvOpenAIKey); v != "" {
		cfg.AI.APIKey = v
	}
	if v := os.Getenv(EnvPineconeKey); v != "" {
		cfg.Index.Pinecone.APIKey = v
	}
	if v := os.Getenv(EnvPineconeHost); v != "" {
		cfg.Index.Pinecone.Host = v
	}
}

// ApplyDefaults fills zero fields.
func ApplyDefaults(cfg *AppConfig) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.RetryDelay == 0 {
		cfg.Server.RetryDelay = time.Second
	}
	if cfg.Server.ReadHeaderTimeout == 0 {
		cfg.Server.ReadHeaderTimeout = 5 * time.Second
	}

	d := ai.DefaultConfig()
	if cfg.AI.Provider == "" {
		cfg.AI.Provider = "openai"
	}
	if cfg.AI.EmbeddingHost == "" {
		cfg.AI.EmbeddingHost = d.EmbeddingHost
	}
	if cfg.AI.GenerationHost == "" {
		cfg.AI.GenerationHost = cfg.AI.EmbeddingHost
	}
	if cfg.AI.EmbeddingModel == "" {
		cfg.AI.EmbeddingModel = d.EmbeddingModel
	}
	if cfg.AI.GenerationModel == "" {
		cfg.AI.GenerationModel = d.GenerationModel
	}
	if cfg.AI.Dimension == 0 {
		cfg.AI.Dimension = d.Dimension
	}
	if cfg.AI.Temperature == 0 {
		cfg.AI.Temperature = d.Temperature
	}
	if cfg.AI.EmbedTimeout == 0 {
		cfg.AI.EmbedTimeout = d.EmbedTimeout
	}
	if cfg.AI.GenerateTimeout == 0 {
		cfg.AI.GenerateTimeout = d.GenerateTimeout
	}

	if cfg.Index.Backend == "" {
		cfg.Index.Backend = "badger"
	}
	if cfg.Index.Path == "" {
		cfg.Index.Path = "profmatch-index"
	}
	if cfg.Index.Namespace == "" {
		cfg.Index.Namespace = DefaultNamespace
	}
	if cfg.Index.Timeout == 0 {
		cfg.Index.Timeout = 10 * time.Second
	}

	if cfg.Fetch.Driver == "" {
		cfg.Fetch.Driver = "http"
	}
	if cfg.Fetch.Timeout == 0 {
		cfg.Fetch.Timeout = 15 * time.Second
	}
	if cfg.Fetch.MaxBodyBytes == 0 {
		cfg.Fetch.MaxBodyBytes = 5 << 20
	}
	if cfg.Fetch.PoolSize == 0 {
		cfg.Fetch.PoolSize = 4
	}

	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = "none"
	}
	if cfg.Cache.Capacity == 0 {
		cfg.Cache.Capacity = 1024
	}
	if cfg.Cache.Redis.Addr == "" {
		cfg.Cache.Redis.Addr = "localhost:6379"
	}
	if cfg.Cache.Redis.Prefix == "" {
		cfg.Cache.Redis.Prefix = "profmatch:embedding:"
	}
	if cfg.Cache.Redis.TTL == 0 {
		cfg.Cache.Redis.TTL = 24 * time.Hour
	}

	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 3
	}

	cfg.Extract = cfg.Extract.WithDefaults()
}

// AIServiceConfig converts the ai section into an ai.Config.
func (c *AppConfig) AIServiceConfig() *ai.Config {
	return ai.NewConfig(
		ai.WithEmbeddingHost(c.AI.EmbeddingHost),
		ai.WithGenerationHost(c.AI.GenerationHost),
		ai.WithEmbeddingModel(c.AI.EmbeddingModel),
		ai.WithGenerationModel(c.AI.GenerationModel),
		ai.WithAPIKey(c.AI.APIKey),
		ai.WithDimension(c.AI.Dimension),
		ai.WithTemperature(c.AI.Temperature),
		ai.WithTimeouts(c.AI.EmbedTimeout, c.AI.GenerateTimeout),
	)
}

func oneOf(field, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("config: %s must be one of %s, got %q", field, strings.Join(allowed, ", "), value)
}

// Validate checks every section.
func (c *AppConfig) Validate() error {
	if c.Server.IngestRetries < 0 {
		return errors.New("config: server.ingest_retries cannot be negative")
	}
	if err := oneOf("ai.provider", c.AI.Provider, "openai", "mock"); err != nil {
		return err
	}
	if c.AI.Provider == "openai" {
		if err := c.AIServiceConfig().Validate(); err != nil {
			return fmt.Errorf("config: %w", err)
		}
	}
	if c.AI.Dimension <= 0 {
		return errors.New("config: ai.dimension must be positive")
	}

	if err := oneOf("index.backend", c.Index.Backend, "badger", "memory", "pinecone"); err != nil {
		return err
	}
	if c.Index.Backend == "pinecone" && (c.Index.Pinecone.Host == "" || c.Index.Pinecone.APIKey == "") {
		return fmt.Errorf("config: pinecone backend needs index.pinecone.host and api_key (or %s, %s)", EnvPineconeHost, EnvPineconeKey)
	}
	if strings.TrimSpace(c.Index.Namespace) == "" {
		return errors.New("config: index.namespace is required")
	}

	if err := oneOf("fetch.driver", c.Fetch.Driver, "http", "chromedp"); err != nil {
		return err
	}
	if c.Fetch.MaxBodyBytes < 0 || c.Fetch.PoolSize < 0 {
		return errors.New("config: fetch limits cannot be negative")
	}

	if err := oneOf("cache.backend", c.Cache.Backend, "none", "memory", "redis"); err != nil {
		return err
	}
	if c.Retrieval.TopK <= 0 {
		return errors.New("config: retrieval.top_k must be positive")
	}
	return c.Extract.Validate()
}
