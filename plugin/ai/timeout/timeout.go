// Package timeout defines centralized timeout constants for retrieval operations.
// Package timeout 定义检索操作的集中式超时常量。
package timeout

import "time"

// Retrieval timeout constants.
// 检索超时常量。
const (
	// ClassificationTimeout bounds the structured-output call that classifies a query.
	// ClassificationTimeout 是查询分类结构化调用的超时时间。
	ClassificationTimeout = 10 * time.Second

	// AdapterTimeout is the default per-adapter budget during fan-out.
	// AdapterTimeout 是并发检索时单个适配器的默认超时时间。
	AdapterTimeout = 5 * time.Second

	// EmbeddingTimeout bounds one batch embedding call during backfill indexing.
	// EmbeddingTimeout 是回填索引时单次批量向量生成的超时时间。
	EmbeddingTimeout = 30 * time.Second

	// MemoryRequestTimeout bounds a single ingestion attempt against the memory service.
	MemoryRequestTimeout = 10 * time.Second

	// MemoryReadAttemptTimeout bounds a single search attempt. Three of them fit
	// in the default memory adapter budget.
	MemoryReadAttemptTimeout = 1500 * time.Millisecond

	// RetrieveTimeout caps a whole retrieval request served over HTTP.
	RetrieveTimeout = 30 * time.Second

	// MaxTruncateLength is the maximum length for truncating strings in logs.
	// MaxTruncateLength 是日志中字符串截断的最大长度。
	MaxTruncateLength = 200
)
