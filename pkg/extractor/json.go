package extractor

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// extractJSON renders a JSON document as readable text. API specs and
// config-style objects get a structured rendering; everything else is
// flattened key by key.
func (e *Extractor) extractJSON(data []byte) (string, error) {
	var parsed interface{}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("invalid JSON: %v", err)
	}

	switch v := parsed.(type) {
	case map[string]interface{}:
		if isAPISpec(v) {
			return renderAPISpec(v), nil
		}
		return renderObject(v), nil
	case []interface{}:
		return renderArray(v), nil
	default:
		return fmt.Sprintf("%v", v), nil
	}
}

func isAPISpec(obj map[string]interface{}) bool {
	for _, key := range []string{"openapi", "swagger", "paths", "endpoints"} {
		if _, ok := obj[key]; ok {
			return true
		}
	}
	return false
}

func renderAPISpec(obj map[string]interface{}) string {
	var parts []string

	if info, ok := obj["info"].(map[string]interface{}); ok {
		parts = append(parts, fmt.Sprintf("API: %v", info["title"]))
		parts = append(parts, fmt.Sprintf("Version: %v", info["version"]))
		if desc, ok := info["description"]; ok {
			parts = append(parts, fmt.Sprintf("Description: %v", desc))
		}
		parts = append(parts, "")
	}

	if paths, ok := obj["paths"].(map[string]interface{}); ok {
		parts = append(parts, "Endpoints:")
		for _, path := range sortedKeys(paths) {
			methods, ok := paths[path].(map[string]interface{})
			if !ok {
				continue
			}
			for _, method := range sortedKeys(methods) {
				parts = append(parts, fmt.Sprintf("%s %s", strings.ToUpper(method), path))
				if details, ok := methods[method].(map[string]interface{}); ok {
					if summary, ok := details["summary"]; ok {
						parts = append(parts, fmt.Sprintf("  Summary: %v", summary))
					}
					if desc, ok := details["description"]; ok {
						parts = append(parts, fmt.Sprintf("  Description: %v", desc))
					}
				}
			}
		}
	}

	// Anything the structured rendering missed still gets flattened
	for _, key := range sortedKeys(obj) {
		if key == "info" || key == "paths" {
			continue
		}
		parts = append(parts, flattenValue(key, obj[key])...)
	}

	return strings.Join(parts, "\n")
}

func renderObject(obj map[string]interface{}) string {
	var lines []string
	for _, key := range sortedKeys(obj) {
		lines = append(lines, flattenValue(key, obj[key])...)
	}
	return strings.Join(lines, "\n")
}

func renderArray(arr []interface{}) string {
	parts := []string{fmt.Sprintf("JSON array with %d items", len(arr)), ""}

	limit := len(arr)
	if limit > 20 {
		limit = 20
	}
	for i := 0; i < limit; i++ {
		switch item := arr[i].(type) {
		case map[string]interface{}:
			parts = append(parts, fmt.Sprintf("Item %d:", i+1))
			for _, key := range sortedKeys(item) {
				for _, line := range flattenValue(key, item[key]) {
					parts = append(parts, "  "+line)
				}
			}
		default:
			parts = append(parts, fmt.Sprintf("Item %d: %v", i+1, item))
		}
	}
	if len(arr) > 20 {
		parts = append(parts, fmt.Sprintf("... and %d more items", len(arr)-20))
	}

	return strings.Join(parts, "\n")
}

// flattenValue renders nested objects as dotted key paths.
func flattenValue(key string, value interface{}) []string {
	switch v := value.(type) {
	case map[string]interface{}:
		var lines []string
		for _, k := range sortedKeys(v) {
			lines = append(lines, flattenValue(key+"."+k, v[k])...)
		}
		return lines
	case []interface{}:
		items := make([]string, 0, len(v))
		for _, item := range v {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return []string{fmt.Sprintf("%s: %s", key, strings.Join(items, ", "))}
	default:
		return []string{fmt.Sprintf("%s: %v", key, v)}
	}
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
