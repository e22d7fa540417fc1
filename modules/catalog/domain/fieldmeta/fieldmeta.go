package fieldmeta

import (
	"sort"
)

// DefaultFieldDefinition describes a cross-cutting form field that is
// implicitly available at every hierarchy level until it gets customized.
// The registry is seeded from this list; lazy materialization falls back to
// it when a default field is toggled before any seeding ran.
type DefaultFieldDefinition struct {
	Name         string
	Label        string
	DataType     string
	InputType    string
	Placeholder  string
	HelpText     string
	IsSystem     bool
	DisplayOrder int
}

var defaultFieldDefinitions = []DefaultFieldDefinition{
	{
		Name:         "product_name",
		Label:        "Product name",
		DataType:     "text",
		InputType:    "text",
		Placeholder:  "e.g. Oak dining table",
		IsSystem:     true,
		DisplayOrder: 10,
	},
	{
		Name:         "description",
		Label:        "Description",
		DataType:     "text",
		InputType:    "textarea",
		Placeholder:  "Describe the product",
		DisplayOrder: 20,
	},
	{
		Name:         "brand",
		Label:        "Brand",
		DataType:     "text",
		InputType:    "text",
		DisplayOrder: 30,
	},
	{
		Name:         "condition",
		Label:        "Condition",
		DataType:     "text",
		InputType:    "select",
		HelpText:     "New, used or refurbished",
		DisplayOrder: 40,
	},
	{
		Name:         "model_number",
		Label:        "Model number",
		DataType:     "text",
		InputType:    "text",
		DisplayOrder: 50,
	},
	{
		Name:         "warranty",
		Label:        "Warranty",
		DataType:     "text",
		InputType:    "text",
		Placeholder:  "e.g. 12 months",
		HelpText:     "Leave empty when no warranty applies",
		DisplayOrder: 60,
	},
	{
		Name:         "country_of_origin",
		Label:        "Country of origin",
		DataType:     "text",
		InputType:    "select",
		DisplayOrder: 70,
	},
}

var defaultFieldByName = func() map[string]DefaultFieldDefinition {
	out := make(map[string]DefaultFieldDefinition, len(defaultFieldDefinitions))
	for _, def := range defaultFieldDefinitions {
		out[def.Name] = def
	}
	return out
}()

func ListDefaultFields() []DefaultFieldDefinition {
	out := make([]DefaultFieldDefinition, 0, len(defaultFieldDefinitions))
	out = append(out, defaultFieldDefinitions...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DisplayOrder != out[j].DisplayOrder {
			return out[i].DisplayOrder < out[j].DisplayOrder
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func LookupDefaultField(name string) (DefaultFieldDefinition, bool) {
	def, ok := defaultFieldByName[name]
	return def, ok
}
