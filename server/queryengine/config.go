package queryengine

import (
	"fmt"
	"time"

	"github.com/hrygo/recall/plugin/ai/timeout"
)

// Config 检索引擎配置
// Tuning knobs for planning, fan-out and confidence calibration.
type Config struct {
	// 单个适配器超时
	Timeouts TimeoutConfig `json:"timeouts" yaml:"timeouts" mapstructure:"timeouts"`

	// 查询限制配置
	Limits LimitsConfig `json:"limits" yaml:"limits" mapstructure:"limits"`

	// 评分配置
	Scoring ScoringConfig `json:"scoring" yaml:"scoring" mapstructure:"scoring"`

	// 置信度配置
	Confidence ConfidenceConfig `json:"confidence" yaml:"confidence" mapstructure:"confidence"`
}

// TimeoutConfig 超时配置
type TimeoutConfig struct {
	Vector   time.Duration `json:"vector" yaml:"vector" mapstructure:"vector"`
	Hybrid   time.Duration `json:"hybrid" yaml:"hybrid" mapstructure:"hybrid"`
	Temporal time.Duration `json:"temporal" yaml:"temporal" mapstructure:"temporal"`
	Memory   time.Duration `json:"memory" yaml:"memory" mapstructure:"memory"`
}

// LimitsConfig 查询限制配置
type LimitsConfig struct {
	// 最大查询长度（字符数），超出部分截断
	MaxQueryLength int `json:"maxQueryLength" yaml:"maxQueryLength" mapstructure:"max_query_length"`
	// 合并后最大结果数量
	MaxResults    int `json:"maxResults" yaml:"maxResults" mapstructure:"max_results"`
	VectorLimit   int `json:"vectorLimit" yaml:"vectorLimit" mapstructure:"vector_limit"`
	HybridLimit   int `json:"hybridLimit" yaml:"hybridLimit" mapstructure:"hybrid_limit"`
	TemporalLimit int `json:"temporalLimit" yaml:"temporalLimit" mapstructure:"temporal_limit"`
	MemoryLimit   int `json:"memoryLimit" yaml:"memoryLimit" mapstructure:"memory_limit"`
}

// ScoringConfig 评分配置
type ScoringConfig struct {
	// 向量检索阈值，score = 1 - cosine distance 必须严格大于该值
	VectorThreshold float64 `json:"vectorThreshold" yaml:"vectorThreshold" mapstructure:"vector_threshold"`
	// 混合检索权重
	KeywordWeight float64 `json:"keywordWeight" yaml:"keywordWeight" mapstructure:"keyword_weight"`
	VectorWeight  float64 `json:"vectorWeight" yaml:"vectorWeight" mapstructure:"vector_weight"`
	// 无关键词命中时的最低向量相似度
	MinVectorScore float64 `json:"minVectorScore" yaml:"minVectorScore" mapstructure:"min_vector_score"`
}

// ConfidenceConfig 置信度阈值
// high requires both HighScore and HighCount; medium requires both Medium values.
type ConfidenceConfig struct {
	HighScore   float64 `json:"highScore" yaml:"highScore" mapstructure:"high_score"`
	HighCount   int     `json:"highCount" yaml:"highCount" mapstructure:"high_count"`
	MediumScore float64 `json:"mediumScore" yaml:"mediumScore" mapstructure:"medium_score"`
	MediumCount int     `json:"mediumCount" yaml:"mediumCount" mapstructure:"medium_count"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Timeouts: TimeoutConfig{
			Vector:   timeout.AdapterTimeout,
			Hybrid:   timeout.AdapterTimeout,
			Temporal: timeout.AdapterTimeout,
			Memory:   timeout.AdapterTimeout,
		},
		Limits: LimitsConfig{
			MaxQueryLength: 1000,
			MaxResults:     20,
			VectorLimit:    10,
			HybridLimit:    10,
			TemporalLimit:  20,
			MemoryLimit:    10,
		},
		Scoring: ScoringConfig{
			VectorThreshold: 0.3,
			KeywordWeight:   0.3,
			VectorWeight:    0.7,
			MinVectorScore:  0.3,
		},
		Confidence: ConfidenceConfig{
			HighScore:   0.80,
			HighCount:   3,
			MediumScore: 0.55,
			MediumCount: 2,
		},
	}
}

// ValidateConfig 验证配置有效性
func ValidateConfig(config *Config) error {
	for field, d := range map[string]time.Duration{
		"Timeouts.Vector":   config.Timeouts.Vector,
		"Timeouts.Hybrid":   config.Timeouts.Hybrid,
		"Timeouts.Temporal": config.Timeouts.Temporal,
		"Timeouts.Memory":   config.Timeouts.Memory,
	} {
		if d <= 0 || d > 5*time.Minute {
			return ErrInvalidConfig{Field: field, Value: d}
		}
	}

	// 验证查询限制配置
	if config.Limits.MaxQueryLength < 10 || config.Limits.MaxQueryLength > 10000 {
		return ErrInvalidConfig{Field: "Limits.MaxQueryLength", Value: config.Limits.MaxQueryLength}
	}
	for field, v := range map[string]int{
		"Limits.MaxResults":    config.Limits.MaxResults,
		"Limits.VectorLimit":   config.Limits.VectorLimit,
		"Limits.HybridLimit":   config.Limits.HybridLimit,
		"Limits.TemporalLimit": config.Limits.TemporalLimit,
		"Limits.MemoryLimit":   config.Limits.MemoryLimit,
	} {
		if v < 1 || v > 1000 {
			return ErrInvalidConfig{Field: field, Value: v}
		}
	}

	// 验证评分配置
	for field, v := range map[string]float64{
		"Scoring.VectorThreshold": config.Scoring.VectorThreshold,
		"Scoring.KeywordWeight":   config.Scoring.KeywordWeight,
		"Scoring.VectorWeight":    config.Scoring.VectorWeight,
		"Scoring.MinVectorScore":  config.Scoring.MinVectorScore,
		"Confidence.HighScore":    config.Confidence.HighScore,
		"Confidence.MediumScore":  config.Confidence.MediumScore,
	} {
		if v < 0 || v > 1 {
			return ErrInvalidConfig{Field: field, Value: v}
		}
	}
	if config.Scoring.KeywordWeight+config.Scoring.VectorWeight == 0 {
		return ErrInvalidConfig{Field: "Scoring.VectorWeight", Value: config.Scoring.VectorWeight}
	}

	// 置信度必须单调：medium 不能比 high 更严格
	if config.Confidence.MediumCount < 1 {
		return ErrInvalidConfig{Field: "Confidence.MediumCount", Value: config.Confidence.MediumCount}
	}
	if config.Confidence.MediumScore > config.Confidence.HighScore {
		return ErrInvalidConfig{Field: "Confidence.MediumScore", Value: config.Confidence.MediumScore}
	}
	if config.Confidence.MediumCount > config.Confidence.HighCount {
		return ErrInvalidConfig{Field: "Confidence.MediumCount", Value: config.Confidence.MediumCount}
	}

	return nil
}

// ErrInvalidConfig 配置无效错误
type ErrInvalidConfig struct {
	Field string
	Value interface{}
}

func (e ErrInvalidConfig) Error() string {
	return fmt.Sprintf("invalid config field '%s': %v", e.Field, e.Value)
}
