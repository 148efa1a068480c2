package retrieval

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"

	"github.com/hrygo/recall/server/queryengine"
)

// Merge 合并多路检索结果
// Items whose normalized text is equal collapse into one; the best ranked copy
// survives and its Sources becomes the union of every origin. Input order does
// not matter and input items are never modified.
func Merge(lists ...[]*RetrievedItem) []*RetrievedItem {
	total := 0
	for _, l := range lists {
		total += len(l)
	}
	all := make([]*RetrievedItem, 0, total)
	for _, l := range lists {
		for _, it := range l {
			if it != nil {
				all = append(all, it)
			}
		}
	}
	sortItems(all)

	fold := cases.Fold()
	index := make(map[string]int, len(all))
	origins := make([]map[string]struct{}, 0, len(all))
	merged := make([]*RetrievedItem, 0, len(all))

	for _, it := range all {
		key := dedupeKey(fold, it.Text)
		if i, ok := index[key]; ok {
			addOrigins(origins[i], it)
			continue
		}
		cp := *it
		if it.Metadata != nil {
			cp.Metadata = make(map[string]string, len(it.Metadata))
			for k, v := range it.Metadata {
				cp.Metadata[k] = v
			}
		}
		set := make(map[string]struct{}, 2)
		addOrigins(set, it)
		index[key] = len(merged)
		origins = append(origins, set)
		merged = append(merged, &cp)
	}

	for i, it := range merged {
		it.Sources = sortedKeys(origins[i])
	}
	return merged
}

// CalibrateConfidence 计算置信度
// Monotonic in both the top score and the item count.
func CalibrateConfidence(items []*RetrievedItem, cfg queryengine.ConfidenceConfig) ConfidenceLevel {
	if len(items) == 0 {
		return ConfidenceNone
	}
	top := 0.0
	for _, it := range items {
		if it.Score > top {
			top = it.Score
		}
	}
	n := len(items)
	switch {
	case top >= cfg.HighScore && n >= cfg.HighCount:
		return ConfidenceHigh
	case top >= cfg.MediumScore && n >= cfg.MediumCount:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// SourcesOf returns the sorted set of adapters that contributed to items.
func SourcesOf(items []*RetrievedItem) []string {
	set := make(map[string]struct{})
	for _, it := range items {
		addOrigins(set, it)
	}
	return sortedKeys(set)
}

// sortItems orders by score desc, then createdAt desc with nulls last.
// ExternalRef and Source make the order total.
func sortItems(items []*RetrievedItem) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		switch {
		case a.CreatedAt != nil && b.CreatedAt == nil:
			return true
		case a.CreatedAt == nil && b.CreatedAt != nil:
			return false
		case a.CreatedAt != nil && b.CreatedAt != nil && !a.CreatedAt.Equal(*b.CreatedAt):
			return a.CreatedAt.After(*b.CreatedAt)
		}
		if a.ExternalRef != b.ExternalRef {
			return a.ExternalRef < b.ExternalRef
		}
		return a.Source < b.Source
	})
}

func dedupeKey(fold cases.Caser, text string) string {
	return fold.String(strings.Join(strings.Fields(text), " "))
}

func addOrigins(set map[string]struct{}, it *RetrievedItem) {
	if it.Source != "" {
		set[it.Source] = struct{}{}
	}
	for _, s := range it.Sources {
		set[s] = struct{}{}
	}
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
