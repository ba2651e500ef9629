package expert

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type catalogFile struct {
	Experts []Expert `yaml:"experts"`
}

// LoadCatalog reads built-in experts from a YAML file. An empty path yields Seed().
// Experts without a system prompt get DefaultSystemPrompt; a missing namespace defaults to the id.
func LoadCatalog(path string) ([]Expert, error) {
	if strings.TrimSpace(path) == "" {
		return Seed(), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read expert catalog: %w", err)
	}
	return ParseCatalog(raw)
}

// ParseCatalog decodes a YAML expert catalog.
func ParseCatalog(raw []byte) ([]Expert, error) {
	var file catalogFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("decode expert catalog: %w", err)
	}
	if len(file.Experts) == 0 {
		return nil, fmt.Errorf("expert catalog is empty")
	}

	seen := make(map[string]struct{}, len(file.Experts))
	out := make([]Expert, 0, len(file.Experts))
	for i, item := range file.Experts {
		item.ID = strings.TrimSpace(item.ID)
		if item.ID == "" {
			return nil, fmt.Errorf("expert #%d has no id", i+1)
		}
		if _, dup := seen[item.ID]; dup {
			return nil, fmt.Errorf("duplicate expert id %q", item.ID)
		}
		seen[item.ID] = struct{}{}

		if item.Name == "" {
			item.Name = item.ID
		}
		if item.Namespace == "" {
			item.Namespace = item.ID
		}
		if strings.TrimSpace(item.SystemPrompt) == "" {
			item.SystemPrompt = DefaultSystemPrompt
		}
		item.BuiltIn = true
		out = append(out, item)
	}
	return out, nil
}
