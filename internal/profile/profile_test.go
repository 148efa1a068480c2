package profile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestAIProfileDefaults 测试 AI 配置的默认值
func TestAIProfileDefaults(t *testing.T) {
	clearEnvVars(t)

	profile := &Profile{}
	profile.FromEnv()

	assert.False(t, profile.AIEnabled)
	assert.Equal(t, "https://api.openai.com/v1", profile.AIOpenAIBaseURL)
	assert.Equal(t, "text-embedding-3-small", profile.AIEmbeddingModel)
	assert.Equal(t, "gpt-4o-mini", profile.AILLMModel)
	assert.Equal(t, float64(10), profile.MemoryRPS)
	assert.False(t, profile.IsMemoryEnabled())
}

// TestProfileFromEnv 测试从环境变量读取配置
func TestProfileFromEnv(t *testing.T) {
	tests := []struct {
		name     string
		envVar   string
		envValue string
		field    func(*Profile) string
		expected string
	}{
		{
			name:     "RECALL_AI_OPENAI_API_KEY",
			envVar:   "RECALL_AI_OPENAI_API_KEY",
			envValue: "sk-recall",
			field:    func(p *Profile) string { return p.AIOpenAIAPIKey },
			expected: "sk-recall",
		},
		{
			name:     "OPENAI_API_KEY fallback",
			envVar:   "OPENAI_API_KEY",
			envValue: "sk-fallback",
			field:    func(p *Profile) string { return p.AIOpenAIAPIKey },
			expected: "sk-fallback",
		},
		{
			name:     "RECALL_AI_EMBEDDING_MODEL",
			envVar:   "RECALL_AI_EMBEDDING_MODEL",
			envValue: "text-embedding-3-large",
			field:    func(p *Profile) string { return p.AIEmbeddingModel },
			expected: "text-embedding-3-large",
		},
		{
			name:     "RECALL_MEMORY_BASE_URL",
			envVar:   "RECALL_MEMORY_BASE_URL",
			envValue: "http://memory.local:8000",
			field:    func(p *Profile) string { return p.MemoryBaseURL },
			expected: "http://memory.local:8000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnvVars(t)
			t.Setenv(tt.envVar, tt.envValue)

			profile := &Profile{}
			profile.FromEnv()

			assert.Equal(t, tt.expected, tt.field(profile))
		})
	}
}

func TestFromEnvKeepsPresetValues(t *testing.T) {
	clearEnvVars(t)

	profile := &Profile{AILLMModel: "gpt-4.1", MemoryRPS: 2}
	profile.FromEnv()

	assert.Equal(t, "gpt-4.1", profile.AILLMModel)
	assert.Equal(t, float64(2), profile.MemoryRPS)
}

// TestIsAIEnabled 测试 IsAIEnabled 逻辑
func TestIsAIEnabled(t *testing.T) {
	tests := []struct {
		name     string
		profile  Profile
		expected bool
	}{
		{"disabled", Profile{AIEnabled: false, AIOpenAIAPIKey: "k"}, false},
		{"enabled without key", Profile{AIEnabled: true}, false},
		{"enabled with key", Profile{AIEnabled: true, AIOpenAIAPIKey: "k"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.profile.IsAIEnabled())
		})
	}
}

func TestValidate(t *testing.T) {
	t.Run("sqlite dsn derived from data dir", func(t *testing.T) {
		dir := t.TempDir()
		p := &Profile{Mode: "dev", Driver: "sqlite", Data: dir}
		require.NoError(t, p.Validate())
		assert.Equal(t, filepath.Join(dir, "recall_dev.db"), p.DSN)
	})

	t.Run("unknown mode falls back to demo", func(t *testing.T) {
		p := &Profile{Mode: "staging", Driver: "sqlite", Data: t.TempDir()}
		require.NoError(t, p.Validate())
		assert.Equal(t, "demo", p.Mode)
	})

	t.Run("postgres requires dsn", func(t *testing.T) {
		p := &Profile{Mode: "dev", Driver: "postgres"}
		assert.Error(t, p.Validate())
	})

	t.Run("unsupported driver", func(t *testing.T) {
		p := &Profile{Mode: "dev", Driver: "mysql", DSN: "x"}
		assert.Error(t, p.Validate())
	})

	t.Run("missing data dir", func(t *testing.T) {
		p := &Profile{Mode: "dev", Driver: "sqlite", Data: filepath.Join(t.TempDir(), "missing")}
		assert.Error(t, p.Validate())
	})
}

func clearEnvVars(t *testing.T) {
	t.Helper()
	for _, envVar := range []string{
		"RECALL_AI_ENABLED",
		"RECALL_AI_OPENAI_API_KEY",
		"OPENAI_API_KEY",
		"RECALL_AI_OPENAI_BASE_URL",
		"RECALL_AI_EMBEDDING_MODEL",
		"RECALL_AI_LLM_MODEL",
		"RECALL_MEMORY_BASE_URL",
		"RECALL_MEMORY_API_KEY",
		"RECALL_MEMORY_RPS",
	} {
		if _, ok := os.LookupEnv(envVar); ok {
			t.Setenv(envVar, "")
		}
	}
}
