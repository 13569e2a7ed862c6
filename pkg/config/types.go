package config

import (
	"fmt"
	"strconv"
)

// Config represents the persistent solace configuration stored as
// config.toml in the .solace/ directory. The TOML layout uses sections for
// logical grouping.
type Config struct {
	Version     int               `toml:"version"`
	Storage     StorageConfig     `toml:"storage"`
	VectorStore VectorStoreConfig `toml:"vector_store"`
	Face        FaceConfig        `toml:"face"`
	Embedding   EmbeddingConfig   `toml:"embedding"`
	LLM         LLMConfig         `toml:"llm"`
	Recognition RecognitionConfig `toml:"recognition"`
	Analyzer    AnalyzerConfig    `toml:"analyzer"`
	Events      EventsConfig      `toml:"events"`
	API         APIConfig         `toml:"api"`
}

// StorageConfig holds entity store settings.
type StorageConfig struct {
	// Driver selects the entity store backend: "sqlite" or "postgres".
	Driver      string `toml:"driver,omitempty"`
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	PostgresDSN string `toml:"postgres_dsn,omitempty"`
}

// VectorStoreConfig holds vector index settings.
type VectorStoreConfig struct {
	// Provider selects the vector backend: "qdrant" or "memory".
	Provider string `toml:"provider,omitempty"`
	Host     string `toml:"host,omitempty"`
	Port     int    `toml:"port,omitempty"`
	APIKey   string `toml:"api_key,omitempty"`
	UseTLS   bool   `toml:"use_tls,omitempty"`
}

// FaceConfig holds face pipeline settings.
type FaceConfig struct {
	// SidecarURL is the face-analysis sidecar endpoint.
	SidecarURL string `toml:"sidecar_url,omitempty"`

	// ImageDir is where enrollment thumbnails are stored.
	ImageDir string `toml:"image_dir,omitempty"`
}

// EmbeddingConfig holds text embedding provider settings.
type EmbeddingConfig struct {
	Target string `toml:"target,omitempty"`
	Model  string `toml:"model,omitempty"`
}

// LLMConfig holds language model settings for summarization and
// consolidation.
type LLMConfig struct {
	Provider string `toml:"provider,omitempty"`
	Model    string `toml:"model,omitempty"`
	BaseURL  string `toml:"base_url,omitempty"`
}

// RecognitionConfig holds face matching settings.
type RecognitionConfig struct {
	Threshold float64 `toml:"threshold,omitempty"`
}

// AnalyzerConfig holds background consolidation settings.
type AnalyzerConfig struct {
	IntervalSeconds  int  `toml:"interval_seconds,omitempty"`
	BatchSize        int  `toml:"batch_size,omitempty"`
	RequireEvenCount bool `toml:"require_even_count,omitempty"`
}

// EventsConfig holds event stream settings.
type EventsConfig struct {
	// Provider selects the backend: "nop" or "kafka".
	Provider string `toml:"provider,omitempty"`
	Brokers  string `toml:"brokers,omitempty"`
	Topic    string `toml:"topic,omitempty"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"storage.driver": {
		get: func(c *Config) string { return c.Storage.Driver },
		set: func(c *Config, v string) error { c.Storage.Driver = v; return nil },
	},
	"storage.sqlite_path": {
		get: func(c *Config) string { return c.Storage.SQLitePath },
		set: func(c *Config, v string) error { c.Storage.SQLitePath = v; return nil },
	},
	"storage.postgres_dsn": {
		get: func(c *Config) string { return c.Storage.PostgresDSN },
		set: func(c *Config, v string) error { c.Storage.PostgresDSN = v; return nil },
	},
	"vector_store.provider": {
		get: func(c *Config) string { return c.VectorStore.Provider },
		set: func(c *Config, v string) error { c.VectorStore.Provider = v; return nil },
	},
	"vector_store.host": {
		get: func(c *Config) string { return c.VectorStore.Host },
		set: func(c *Config, v string) error { c.VectorStore.Host = v; return nil },
	},
	"vector_store.port": {
		get: func(c *Config) string {
			if c.VectorStore.Port == 0 {
				return ""
			}
			return strconv.Itoa(c.VectorStore.Port)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid value for vector_store.port: %w", err)
			}
			c.VectorStore.Port = n
			return nil
		},
	},
	"vector_store.api_key": {
		get: func(c *Config) string { return c.VectorStore.APIKey },
		set: func(c *Config, v string) error { c.VectorStore.APIKey = v; return nil },
	},
	"face.sidecar_url": {
		get: func(c *Config) string { return c.Face.SidecarURL },
		set: func(c *Config, v string) error { c.Face.SidecarURL = v; return nil },
	},
	"face.image_dir": {
		get: func(c *Config) string { return c.Face.ImageDir },
		set: func(c *Config, v string) error { c.Face.ImageDir = v; return nil },
	},
	"embedding.target": {
		get: func(c *Config) string { return c.Embedding.Target },
		set: func(c *Config, v string) error { c.Embedding.Target = v; return nil },
	},
	"embedding.model": {
		get: func(c *Config) string { return c.Embedding.Model },
		set: func(c *Config, v string) error { c.Embedding.Model = v; return nil },
	},
	"llm.provider": {
		get: func(c *Config) string { return c.LLM.Provider },
		set: func(c *Config, v string) error { c.LLM.Provider = v; return nil },
	},
	"llm.model": {
		get: func(c *Config) string { return c.LLM.Model },
		set: func(c *Config, v string) error { c.LLM.Model = v; return nil },
	},
	"llm.base_url": {
		get: func(c *Config) string { return c.LLM.BaseURL },
		set: func(c *Config, v string) error { c.LLM.BaseURL = v; return nil },
	},
	"recognition.threshold": {
		get: func(c *Config) string {
			if c.Recognition.Threshold == 0 {
				return ""
			}
			return strconv.FormatFloat(c.Recognition.Threshold, 'f', -1, 64)
		},
		set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid value for recognition.threshold: %w", err)
			}
			c.Recognition.Threshold = f
			return nil
		},
	},
	"analyzer.interval_seconds": {
		get: func(c *Config) string {
			if c.Analyzer.IntervalSeconds == 0 {
				return ""
			}
			return strconv.Itoa(c.Analyzer.IntervalSeconds)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid value for analyzer.interval_seconds: %w", err)
			}
			c.Analyzer.IntervalSeconds = n
			return nil
		},
	},
	"analyzer.batch_size": {
		get: func(c *Config) string {
			if c.Analyzer.BatchSize == 0 {
				return ""
			}
			return strconv.Itoa(c.Analyzer.BatchSize)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid value for analyzer.batch_size: %w", err)
			}
			c.Analyzer.BatchSize = n
			return nil
		},
	},
	"analyzer.require_even_count": {
		get: func(c *Config) string { return strconv.FormatBool(c.Analyzer.RequireEvenCount) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for analyzer.require_even_count: %w", err)
			}
			c.Analyzer.RequireEvenCount = b
			return nil
		},
	},
	"events.provider": {
		get: func(c *Config) string { return c.Events.Provider },
		set: func(c *Config, v string) error { c.Events.Provider = v; return nil },
	},
	"events.brokers": {
		get: func(c *Config) string { return c.Events.Brokers },
		set: func(c *Config, v string) error { c.Events.Brokers = v; return nil },
	},
	"events.topic": {
		get: func(c *Config) string { return c.Events.Topic },
		set: func(c *Config, v string) error { c.Events.Topic = v; return nil },
	},
	"api.listen": {
		get: func(c *Config) string { return c.API.Listen },
		set: func(c *Config, v string) error { c.API.Listen = v; return nil },
	},
}
