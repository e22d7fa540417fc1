package fieldmeta

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

type seedFile struct {
	Version int              `yaml:"version"`
	Fields  []seedFieldEntry `yaml:"fields"`
}

type seedFieldEntry struct {
	Name         string `yaml:"name"`
	Label        string `yaml:"label"`
	DataType     string `yaml:"data_type"`
	InputType    string `yaml:"input_type"`
	Placeholder  string `yaml:"placeholder"`
	HelpText     string `yaml:"help_text"`
	System       bool   `yaml:"system"`
	DisplayOrder int    `yaml:"display_order"`
}

// LoadSeed reads a yaml overlay of extra default-field definitions. Entries
// whose name collides with a compiled-in definition replace it; the rest are
// appended. The overlay lets a deployment extend the registry without a code
// change.
func LoadSeed(path string) ([]DefaultFieldDefinition, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseSeed(raw)
}

func parseSeed(raw []byte) ([]DefaultFieldDefinition, error) {
	var file seedFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, err
	}
	if file.Version != 1 {
		return nil, fmt.Errorf("fieldmeta: unsupported seed version %d", file.Version)
	}

	seen := make(map[string]struct{}, len(file.Fields))
	out := make([]DefaultFieldDefinition, 0, len(file.Fields))
	for i, entry := range file.Fields {
		name := strings.TrimSpace(entry.Name)
		if name == "" {
			return nil, fmt.Errorf("fieldmeta: seed field %d has no name", i)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("fieldmeta: seed field %q duplicated", name)
		}
		seen[name] = struct{}{}

		def := DefaultFieldDefinition{
			Name:         name,
			Label:        strings.TrimSpace(entry.Label),
			DataType:     strings.TrimSpace(entry.DataType),
			InputType:    strings.TrimSpace(entry.InputType),
			Placeholder:  strings.TrimSpace(entry.Placeholder),
			HelpText:     strings.TrimSpace(entry.HelpText),
			IsSystem:     entry.System,
			DisplayOrder: entry.DisplayOrder,
		}
		if def.Label == "" {
			def.Label = name
		}
		if def.DataType == "" {
			def.DataType = "text"
		}
		if def.InputType == "" {
			def.InputType = "text"
		}
		out = append(out, def)
	}
	return out, nil
}

// MergeSeed overlays seed definitions onto the compiled-in list, keyed by
// name, and returns the combined list in display order.
func MergeSeed(seed []DefaultFieldDefinition) []DefaultFieldDefinition {
	merged := make(map[string]DefaultFieldDefinition, len(defaultFieldDefinitions)+len(seed))
	for _, def := range defaultFieldDefinitions {
		merged[def.Name] = def
	}
	for _, def := range seed {
		merged[def.Name] = def
	}
	out := make([]DefaultFieldDefinition, 0, len(merged))
	for _, def := range merged {
		out = append(out, def)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DisplayOrder != out[j].DisplayOrder {
			return out[i].DisplayOrder < out[j].DisplayOrder
		}
		return out[i].Name < out[j].Name
	})
	return out
}
