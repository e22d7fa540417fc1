package types

// ResolvedField is one entry of the effective form schema for a context.
// ConfigID is empty for default fields that have no binding yet (synthesized
// entries).
type ResolvedField struct {
	ConfigID      string         `json:"config_id,omitempty"`
	AttributeID   string         `json:"attribute_id"`
	Name          string         `json:"name"`
	Label         string         `json:"label"`
	DataType      string         `json:"data_type"`
	InputType     string         `json:"input_type"`
	Placeholder   string         `json:"placeholder,omitempty"`
	HelpText      string         `json:"help_text,omitempty"`
	IsRequired    bool           `json:"is_required"`
	IsVisible     bool           `json:"is_visible"`
	IsEditable    bool           `json:"is_editable"`
	IsDeletable   bool           `json:"is_deletable"`
	DisplayOrder  int            `json:"display_order"`
	FieldGroup    string         `json:"field_group"`
	IsDirect      bool           `json:"is_direct"`
	InheritedFrom HierarchyLevel `json:"inherited_from,omitempty"`
}
