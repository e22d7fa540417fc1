package types

// AttributeDefinition is a registry entry: one logical form field known to the
// catalog. Definitions are never deleted, only deactivated; system fields
// cannot be deactivated at all.
type AttributeDefinition struct {
	ID             string
	Name           string
	Label          string
	DataType       string
	InputType      string
	Placeholder    string
	HelpText       string
	IsDefaultField bool
	IsSystemField  bool
	IsActive       bool
	DisplayOrder   int
}
