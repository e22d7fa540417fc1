package types

type HierarchyLevel string

const (
	LevelService     HierarchyLevel = "service"
	LevelCategory    HierarchyLevel = "category"
	LevelSubcategory HierarchyLevel = "subcategory"
)

func (l HierarchyLevel) Valid() bool {
	switch l {
	case LevelService, LevelCategory, LevelSubcategory:
		return true
	default:
		return false
	}
}

// LevelConfig binds one attribute definition to one concrete level instance.
// (LevelKind, LevelID, AttributeID) is unique per tenant.
type LevelConfig struct {
	ID                  string
	LevelKind           HierarchyLevel
	LevelID             string
	AttributeID         string
	IsRequired          bool
	IsVisible           bool
	IsEditable          bool
	IsDeletable         bool
	DisplayOrder        int
	FieldGroup          string
	OverrideLabel       *string
	OverridePlaceholder *string
	OverrideHelpText    *string
	InheritFromService  bool
	InheritFromCategory bool
}

// LevelConfigPatch carries the mutable override surface. Nil fields are left
// untouched.
type LevelConfigPatch struct {
	OverrideLabel       *string
	OverridePlaceholder *string
	OverrideHelpText    *string
	FieldGroup          *string
	IsRequired          *bool
	IsVisible           *bool
}

func (p LevelConfigPatch) Empty() bool {
	return p.OverrideLabel == nil &&
		p.OverridePlaceholder == nil &&
		p.OverrideHelpText == nil &&
		p.FieldGroup == nil &&
		p.IsRequired == nil &&
		p.IsVisible == nil
}

// TouchesOverrides reports whether the patch changes anything guarded by
// is_editable (override texts and field group).
func (p LevelConfigPatch) TouchesOverrides() bool {
	return p.OverrideLabel != nil ||
		p.OverridePlaceholder != nil ||
		p.OverrideHelpText != nil ||
		p.FieldGroup != nil
}

// BoundField is a level config joined with its attribute definition, the unit
// the resolution engine merges.
type BoundField struct {
	Config    LevelConfig
	Attribute AttributeDefinition
}

// ResolveContext is a partial path through the hierarchy: service only,
// service+category, or service+category+subcategory.
type ResolveContext struct {
	ServiceID     string
	CategoryID    string
	SubcategoryID string
}

// Levels returns the context's level instances deepest-first.
func (c ResolveContext) Levels() []LevelRef {
	out := make([]LevelRef, 0, 3)
	if c.SubcategoryID != "" {
		out = append(out, LevelRef{Kind: LevelSubcategory, ID: c.SubcategoryID})
	}
	if c.CategoryID != "" {
		out = append(out, LevelRef{Kind: LevelCategory, ID: c.CategoryID})
	}
	out = append(out, LevelRef{Kind: LevelService, ID: c.ServiceID})
	return out
}

type LevelRef struct {
	Kind HierarchyLevel
	ID   string
}
