package classifier

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// analysisSchema is sent to the provider in strict mode and reused to validate
// whatever comes back, field by field.
var analysisSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "intent": {
      "type": "string",
      "enum": ["factual_lookup", "recent_events", "historical_timeline", "personality_query", "opinion_query",
               "content_search", "analytics_query", "casual_conversation", "uncertainty_test", "story_request"]
    },
    "entities": {"type": "array", "items": {"type": "string"}},
    "temporal": {
      "type": ["object", "null"],
      "properties": {
        "type": {"type": "string", "enum": ["absolute", "relative"]},
        "recency": {"type": "string", "enum": ["recent", "historical", "any"]},
        "days": {"type": ["integer", "null"]},
        "year": {"type": ["integer", "null"]}
      },
      "required": ["type", "recency", "days", "year"],
      "additionalProperties": false
    },
    "contentTypes": {"type": "array", "items": {"type": "string", "enum": ["post", "video", "article", "episode", "file"]}},
    "sources": {"type": "array", "items": {"type": "string", "enum": ["twitter", "instagram", "youtube", "linkedin", "blog", "podcast", "document"]}},
    "requiresAggregation": {"type": "boolean"},
    "expectedAnswerType": {"type": "string", "enum": ["fact", "list", "summary", "timeline", "opinion", "number", "conversation", "unknown"]},
    "confidenceRequired": {"type": "string", "enum": ["high", "medium", "low"]},
    "requiresPrivateInfo": {"type": "boolean"}
  },
  "required": ["intent", "entities", "temporal", "contentTypes", "sources", "requiresAggregation",
               "expectedAnswerType", "confidenceRequired", "requiresPrivateInfo"],
  "additionalProperties": false
}`)

// RawAnalysis is the model output after per-field validation. Absent or invalid
// fields hold their zero value.
type RawAnalysis struct {
	Intent              string       `json:"intent"`
	Entities            []string     `json:"entities"`
	Temporal            *RawTemporal `json:"temporal"`
	ContentTypes        []string     `json:"contentTypes"`
	Sources             []string     `json:"sources"`
	RequiresAggregation bool         `json:"requiresAggregation"`
	ExpectedAnswerType  string       `json:"expectedAnswerType"`
	ConfidenceRequired  string       `json:"confidenceRequired"`
	RequiresPrivateInfo bool         `json:"requiresPrivateInfo"`
}

var compiledSchema = mustCompileSchema()

func mustCompileSchema() *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(analysisSchema))
	if err != nil {
		panic(fmt.Sprintf("classifier schema: %v", err))
	}
	return schema
}

var codeFence = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)\\s*```")

// stripCodeFence removes a markdown fence some providers wrap JSON in.
func stripCodeFence(content string) string {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		if m := codeFence.FindStringSubmatch(content); len(m) > 1 {
			return m[1]
		}
	}
	return content
}

// ParseRaw decodes model output leniently. Only a document that is not a JSON
// object is an error; any field failing its schema check is reset to its default.
func ParseRaw(content string) (*RawAnalysis, error) {
	content = stripCodeFence(content)

	var doc map[string]any
	if err := json.Unmarshal([]byte(content), &doc); err != nil {
		return nil, fmt.Errorf("JSON unmarshal failed: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("JSON document is not an object")
	}
	normalizeDoc(doc)

	result, err := compiledSchema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return nil, fmt.Errorf("validation execution failed: %w", err)
	}
	if !result.Valid() {
		for _, desc := range result.Errors() {
			switch desc.Type() {
			case "required", "additional_property_not_allowed":
				// Missing fields already default; unknown ones are ignored by decoding.
				continue
			}
			slog.Debug("classifier field reset to default",
				"field", desc.Field(),
				"reason", desc.Description())
			resetField(doc, desc.Field())
		}
		compactArrays(doc)
	}

	cleaned, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var raw RawAnalysis
	if err := json.Unmarshal(cleaned, &raw); err != nil {
		return nil, fmt.Errorf("decode validated document: %w", err)
	}
	return &raw, nil
}

// normalizeDoc lower-cases enum-like strings so that "Twitter" still validates.
func normalizeDoc(doc map[string]any) {
	for _, key := range []string{"intent", "expectedAnswerType", "confidenceRequired"} {
		if s, ok := doc[key].(string); ok {
			doc[key] = strings.ToLower(strings.TrimSpace(s))
		}
	}
	for _, key := range []string{"sources", "contentTypes"} {
		if arr, ok := doc[key].([]any); ok {
			for i, v := range arr {
				if s, ok := v.(string); ok {
					arr[i] = strings.ToLower(strings.TrimSpace(s))
				}
			}
		}
	}
	if temporal, ok := doc["temporal"].(map[string]any); ok {
		for _, key := range []string{"type", "recency"} {
			if s, ok := temporal[key].(string); ok {
				temporal[key] = strings.ToLower(strings.TrimSpace(s))
			}
		}
	}
}

// removed marks array elements dropped during validation.
type removed struct{}

// resetField deletes the value at a gojsonschema field path such as
// "temporal.days" or "sources.1". Array elements are marked and compacted later.
func resetField(doc map[string]any, field string) {
	if field == "" || field == "(root)" {
		return
	}
	parts := strings.Split(field, ".")

	var cur any = doc
	for i, part := range parts {
		last := i == len(parts)-1
		switch node := cur.(type) {
		case map[string]any:
			if last {
				delete(node, part)
				return
			}
			cur = node[part]
		case []any:
			idx, err := strconv.Atoi(part)
			if err != nil || idx < 0 || idx >= len(node) {
				return
			}
			if last {
				node[idx] = removed{}
				return
			}
			cur = node[idx]
		default:
			return
		}
	}
}

func compactArrays(doc map[string]any) {
	for key, v := range doc {
		arr, ok := v.([]any)
		if !ok {
			continue
		}
		kept := arr[:0]
		for _, e := range arr {
			if _, drop := e.(removed); !drop {
				kept = append(kept, e)
			}
		}
		doc[key] = kept
	}
}
