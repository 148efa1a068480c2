// Package ai turns ingested content rows into the chunk embeddings and
// whole-document vectors the retrieval adapters search.
package ai

import (
	"strings"
	"unicode"
)

const (
	// ChunkSize is the maximum character count per chunk.
	ChunkSize = 500
	// ChunkOverlap is the character count overlap between chunks.
	ChunkOverlap = 50
)

// ChunkDocument splits a long document into multiple chunks for embedding.
// It preserves paragraph boundaries when possible. Sizes count runes, so
// multi-byte text is never cut inside a character.
func ChunkDocument(content string) []string {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}
	if runeLen(content) <= ChunkSize {
		return []string{content}
	}

	var chunks []string
	var current []rune

	for _, para := range splitParagraphs(content) {
		p := []rune(para)

		// 当前块放不下这一段：先落盘，再以重叠开启新块
		if len(current) > 0 && len(current)+2+len(p) > ChunkSize {
			chunks = append(chunks, string(current))
			current = current[:0]
			if overlap := overlapTail(chunks[len(chunks)-1], ChunkOverlap); overlap != "" {
				current = append(current, []rune(overlap+"\n\n")...)
			}
		}

		if len(current) > 0 && !endsWithBreak(current) {
			current = append(current, '\n', '\n')
		}
		current = append(current, p...)

		// Force-split paragraphs longer than a chunk.
		for len(current) > ChunkSize {
			cut := findBreakPoint(current[:ChunkSize])
			chunks = append(chunks, strings.TrimSpace(string(current[:cut])))
			current = []rune(strings.TrimLeftFunc(string(current[cut:]), unicode.IsSpace))
		}
	}

	if tail := strings.TrimSpace(string(current)); tail != "" {
		chunks = append(chunks, tail)
	}
	return chunks
}

// splitParagraphs splits on blank lines and joins wrapped lines inside a paragraph.
func splitParagraphs(content string) []string {
	lines := strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n")

	var result []string
	var current strings.Builder
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			if current.Len() > 0 {
				result = append(result, current.String())
				current.Reset()
			}
			continue
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(line)
	}
	if current.Len() > 0 {
		result = append(result, current.String())
	}
	return result
}

// overlapTail returns roughly the last n runes of chunk, starting at a word boundary when one exists.
func overlapTail(chunk string, n int) string {
	r := []rune(chunk)
	if len(r) <= n {
		return chunk
	}
	tail := r[len(r)-n:]
	for i, c := range tail {
		if unicode.IsSpace(c) && i+1 < len(tail) {
			return string(tail[i+1:])
		}
	}
	return string(tail)
}

// findBreakPoint finds a good position to split text (sentence or word boundary).
func findBreakPoint(text []rune) int {
	for i := len(text) - 1; i >= len(text)/2; i-- {
		switch text[i] {
		case '.', '!', '?', '。', '！', '？':
			if i == len(text)-1 || unicode.IsSpace(text[i+1]) || text[i] > unicode.MaxASCII {
				return i + 1
			}
		}
	}
	for i := len(text) - 1; i >= len(text)/2; i-- {
		if unicode.IsSpace(text[i]) {
			return i
		}
	}
	return len(text)
}

func endsWithBreak(r []rune) bool {
	return len(r) >= 2 && r[len(r)-1] == '\n' && r[len(r)-2] == '\n'
}

func runeLen(s string) int {
	return len([]rune(s))
}
