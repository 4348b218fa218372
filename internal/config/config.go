package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/dgallion1/pqgram/internal/pqgram"
)

type Config struct {
	Port string `toml:"port"`

	// Auth
	APIKey string `toml:"api_key"`

	// Default profile shape
	P         int  `toml:"p"`
	Q         int  `toml:"q"`
	LeafGrams bool `toml:"leaf_grams"`

	// Worker pool
	WorkerCount    int `toml:"worker_count"`
	CompareWorkers int `toml:"compare_workers"`
	MaxQueueSize   int `toml:"max_queue_size"`

	// Upload limits
	MaxTrees       int   `toml:"max_trees"`
	MaxUploadBytes int64 `toml:"max_upload_bytes"`

	// Job state
	JobTTL time.Duration `toml:"job_ttl"`

	// Storage
	DBPath string `toml:"db_path"`

	// Parsers
	HTMLKeepComments     bool `toml:"html_keep_comments"`
	PDFFallbackPdftotext bool `toml:"pdf_fallback_pdftotext"`

	// Latency stats window
	StatsWindow time.Duration `toml:"stats_window"`
}

// Load reads the configuration from the environment. When PQGRAM_CONFIG
// names a TOML file, keys present in the file override the environment.
func Load() (Config, error) {
	cfg := Config{
		Port: envOr("PORT", "8090"),

		APIKey: os.Getenv("PQGRAM_API_KEY"),

		P:         envInt("PQGRAM_P", 2),
		Q:         envInt("PQGRAM_Q", 3),
		LeafGrams: envBool("PQGRAM_LEAF_GRAMS", false),

		WorkerCount:    envInt("WORKER_COUNT", 4),
		CompareWorkers: envInt("COMPARE_WORKERS", 0),
		MaxQueueSize:   envInt("MAX_QUEUE_SIZE", 100),

		MaxTrees:       envInt("MAX_TREES", 500),
		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 52428800), // 50MB

		JobTTL: envDuration("JOB_TTL", 1*time.Hour),

		DBPath: os.Getenv("DB_PATH"),

		HTMLKeepComments:     envBool("HTML_KEEP_COMMENTS", false),
		PDFFallbackPdftotext: envBool("PDF_FALLBACK_PDFTOTEXT", true),

		StatsWindow: envDuration("STATS_WINDOW", 1*time.Hour),
	}

	if path := os.Getenv("PQGRAM_CONFIG"); path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.CompareWorkers < 0 {
		cfg.CompareWorkers = 0
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.MaxTrees <= 0 {
		cfg.MaxTrees = 500
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}
	if cfg.StatsWindow <= 0 {
		cfg.StatsWindow = 1 * time.Hour
	}

	return cfg, nil
}

func (c Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("PQGRAM_API_KEY is required")
	}
	if err := pqgram.ValidateShape(c.P, c.Q); err != nil {
		return fmt.Errorf("PQGRAM_P/PQGRAM_Q: %w", err)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
