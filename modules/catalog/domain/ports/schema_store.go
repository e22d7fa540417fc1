package ports

import (
	"context"
	"errors"

	"github.com/lindenshop/formschema/modules/catalog/domain/types"
)

var (
	ErrAttributeNotFound   = errors.New("attribute_not_found")
	ErrAttributeExists     = errors.New("attribute_exists")
	ErrLevelConfigNotFound = errors.New("level_config_not_found")
	ErrLevelConfigExists   = errors.New("level_config_exists")

	// ErrResolveProcUnavailable signals that the store has no server-side
	// resolve procedure; callers fall back to the client-computed merge.
	ErrResolveProcUnavailable = errors.New("resolve_proc_unavailable")
)

// DisplayOrderUpdate assigns one display order to one level config row.
type DisplayOrderUpdate struct {
	ConfigID     string
	DisplayOrder int
}

type SchemaStore interface {
	// Attribute registry.
	ListAttributeDefinitions(ctx context.Context, tenantID string) ([]types.AttributeDefinition, error)
	ListDefaultFieldDefinitions(ctx context.Context, tenantID string) ([]types.AttributeDefinition, error)
	GetAttributeByID(ctx context.Context, tenantID string, attributeID string) (types.AttributeDefinition, error)
	GetAttributeByName(ctx context.Context, tenantID string, name string) (types.AttributeDefinition, error)
	InsertAttributeDefinition(ctx context.Context, tenantID string, def types.AttributeDefinition) (types.AttributeDefinition, error)
	DeactivateAttribute(ctx context.Context, tenantID string, attributeID string) error
	UpdateAttributeDisplayOrders(ctx context.Context, tenantID string, orderedAttributeIDs []string) error

	// Hierarchy membership checks.
	CategoryBelongsToService(ctx context.Context, tenantID string, categoryID string, serviceID string) (bool, error)
	SubcategoryBelongsToCategory(ctx context.Context, tenantID string, subcategoryID string, categoryID string) (bool, error)

	// Level configuration rows.
	ListLevelConfigs(ctx context.Context, tenantID string, kind types.HierarchyLevel, levelID string) ([]types.BoundField, error)
	GetLevelConfig(ctx context.Context, tenantID string, kind types.HierarchyLevel, levelID string, attributeID string) (types.LevelConfig, bool, error)
	GetLevelConfigByID(ctx context.Context, tenantID string, configID string) (types.LevelConfig, error)
	InsertLevelConfig(ctx context.Context, tenantID string, cfg types.LevelConfig) (types.LevelConfig, error)
	UpdateLevelConfig(ctx context.Context, tenantID string, configID string, patch types.LevelConfigPatch) error
	// UpdateDisplayOrders applies all updates in one transaction; a failed
	// batch leaves every row's previous order intact.
	UpdateDisplayOrders(ctx context.Context, tenantID string, updates []DisplayOrderUpdate) error
	DeleteLevelConfigs(ctx context.Context, tenantID string, kind types.HierarchyLevel, levelID string, attributeIDs []string) (int, error)

	// ResolveFormFields invokes the server-side resolve procedure. Returns
	// ErrResolveProcUnavailable when the procedure is not installed.
	ResolveFormFields(ctx context.Context, tenantID string, rc types.ResolveContext) ([]types.ResolvedField, error)
}
