package snapshot

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DetectFormat determines the encoding of snapshot bytes from their content.
func DetectFormat(data []byte) (Format, error) {
	trimmed := strings.TrimSpace(string(data))

	// Check for JSON - validate it's actually valid JSON
	if strings.HasPrefix(trimmed, "{") {
		var js json.RawMessage
		if err := json.Unmarshal(data, &js); err == nil {
			return FormatJSON, nil
		}
		return "", fmt.Errorf("input appears to be JSON but is invalid")
	}

	// YAML parser is very permissive - plain text is valid YAML.
	// Only treat it as a snapshot if it is a mapping.
	var yamlTest any
	if err := yaml.Unmarshal(data, &yamlTest); err == nil {
		if _, ok := yamlTest.(map[string]any); ok {
			return FormatYAML, nil
		}
	}

	return "", fmt.Errorf("input is neither a JSON object nor a YAML mapping")
}

// formatFor trusts a .json, .yaml or .yml extension and sniffs anything else.
func formatFor(path string, data []byte) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	}
	return DetectFormat(data)
}
