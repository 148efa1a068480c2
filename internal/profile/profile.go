package profile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Profile is the configuration to start the recall server and its runners.
type Profile struct {
	// Mode can be "prod" or "dev" or "demo"
	Mode string
	// Addr is the binding address for server
	Addr string
	// Port is the binding port for server
	Port int
	// Data is the data directory
	Data string
	// DSN points to the content store
	DSN string
	// Driver is the database driver (sqlite or postgres)
	Driver string
	// Version is the current version of server
	Version string

	// AI Configuration
	AIEnabled        bool   // RECALL_AI_ENABLED
	AIOpenAIAPIKey   string // RECALL_AI_OPENAI_API_KEY (fallback: OPENAI_API_KEY)
	AIOpenAIBaseURL  string // RECALL_AI_OPENAI_BASE_URL (default: https://api.openai.com/v1)
	AIEmbeddingModel string // RECALL_AI_EMBEDDING_MODEL (default: text-embedding-3-small)
	AILLMModel       string // RECALL_AI_LLM_MODEL (default: gpt-4o-mini)

	// Long-term memory service
	MemoryBaseURL string  // RECALL_MEMORY_BASE_URL
	MemoryAPIKey  string  // RECALL_MEMORY_API_KEY
	MemoryRPS     float64 // RECALL_MEMORY_RPS (default: 10)
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// IsAIEnabled returns true if AI is enabled and an API key is configured.
func (p *Profile) IsAIEnabled() bool {
	return p.AIEnabled && p.AIOpenAIAPIKey != ""
}

// IsMemoryEnabled reports whether a long-term memory service is configured.
func (p *Profile) IsMemoryEnabled() bool {
	return p.MemoryBaseURL != ""
}

// FromEnv loads configuration from environment variables.
// Values already set on the profile are only overwritten by non-empty env values.
func (p *Profile) FromEnv() {
	getEnvWithDefault := func(key, fallbackKey, defaultValue string) string {
		if val := os.Getenv(key); val != "" {
			return val
		}
		if fallbackKey != "" {
			if val := os.Getenv(fallbackKey); val != "" {
				return val
			}
		}
		return defaultValue
	}

	p.AIEnabled = getEnvWithDefault("RECALL_AI_ENABLED", "", strconv.FormatBool(p.AIEnabled)) == "true"
	p.AIOpenAIAPIKey = getEnvWithDefault("RECALL_AI_OPENAI_API_KEY", "OPENAI_API_KEY", p.AIOpenAIAPIKey)
	p.AIOpenAIBaseURL = getEnvWithDefault("RECALL_AI_OPENAI_BASE_URL", "", orDefault(p.AIOpenAIBaseURL, "https://api.openai.com/v1"))
	p.AIEmbeddingModel = getEnvWithDefault("RECALL_AI_EMBEDDING_MODEL", "", orDefault(p.AIEmbeddingModel, "text-embedding-3-small"))
	p.AILLMModel = getEnvWithDefault("RECALL_AI_LLM_MODEL", "", orDefault(p.AILLMModel, "gpt-4o-mini"))

	p.MemoryBaseURL = getEnvWithDefault("RECALL_MEMORY_BASE_URL", "", p.MemoryBaseURL)
	p.MemoryAPIKey = getEnvWithDefault("RECALL_MEMORY_API_KEY", "", p.MemoryAPIKey)
	if rps, err := strconv.ParseFloat(os.Getenv("RECALL_MEMORY_RPS"), 64); err == nil && rps > 0 {
		p.MemoryRPS = rps
	}
	if p.MemoryRPS <= 0 {
		p.MemoryRPS = 10
	}
}

func orDefault(value, defaultValue string) string {
	if value != "" {
		return value
	}
	return defaultValue
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}
	if p.Driver == "" {
		p.Driver = "sqlite"
	}
	if p.Driver != "sqlite" && p.Driver != "postgres" {
		return errors.Errorf("unsupported driver %q", p.Driver)
	}
	if p.Driver == "postgres" && p.DSN == "" {
		return errors.New("postgres driver requires a dsn")
	}

	if p.Mode == "prod" && p.Data == "" {
		if runtime.GOOS == "windows" {
			p.Data = filepath.Join(os.Getenv("ProgramData"), "recall")
			if _, err := os.Stat(p.Data); os.IsNotExist(err) {
				if err := os.MkdirAll(p.Data, 0770); err != nil {
					slog.Error("failed to create data directory", slog.String("data", p.Data), slog.String("error", err.Error()))
					return err
				}
			}
		} else {
			p.Data = "/var/opt/recall"
		}
	}

	if p.Driver == "sqlite" && p.DSN == "" {
		dataDir, err := checkDataDir(p.Data)
		if err != nil {
			slog.Error("failed to check data dir", slog.String("data", dataDir), slog.String("error", err.Error()))
			return err
		}
		p.Data = dataDir
		p.DSN = filepath.Join(dataDir, fmt.Sprintf("recall_%s.db", p.Mode))
	}

	return nil
}
