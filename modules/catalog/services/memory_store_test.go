package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/lindenshop/formschema/modules/catalog/domain/ports"
	"github.com/lindenshop/formschema/modules/catalog/domain/types"
	"github.com/lindenshop/formschema/pkg/httperr"
)

// memorySchemaStore is a functional in-memory SchemaStore for scenario tests
// that need real read-your-writes behavior (materialization, precedence,
// fallback equivalence).
type memorySchemaStore struct {
	attrs         map[string]types.AttributeDefinition
	attrIDByName  map[string]string
	configs       map[string]types.LevelConfig
	categories    map[string]string
	subcategories map[string]string
	nextID        int

	// resolveProc simulates the server-side procedure; nil means the
	// procedure is not installed.
	resolveProc func(rc types.ResolveContext) ([]types.ResolvedField, error)
}

func newMemorySchemaStore() *memorySchemaStore {
	return &memorySchemaStore{
		attrs:         map[string]types.AttributeDefinition{},
		attrIDByName:  map[string]string{},
		configs:       map[string]types.LevelConfig{},
		categories:    map[string]string{},
		subcategories: map[string]string{},
	}
}

func (m *memorySchemaStore) genID() string {
	m.nextID++
	return fmt.Sprintf("id-%04d", m.nextID)
}

func (m *memorySchemaStore) addAttribute(def types.AttributeDefinition) types.AttributeDefinition {
	if def.ID == "" {
		def.ID = m.genID()
	}
	m.attrs[def.ID] = def
	m.attrIDByName[def.Name] = def.ID
	return def
}

func (m *memorySchemaStore) addConfig(cfg types.LevelConfig) types.LevelConfig {
	if cfg.ID == "" {
		cfg.ID = m.genID()
	}
	m.configs[cfg.ID] = cfg
	return cfg
}

func (m *memorySchemaStore) ListAttributeDefinitions(_ context.Context, _ string) ([]types.AttributeDefinition, error) {
	out := make([]types.AttributeDefinition, 0, len(m.attrs))
	for _, def := range m.attrs {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memorySchemaStore) ListDefaultFieldDefinitions(_ context.Context, _ string) ([]types.AttributeDefinition, error) {
	out := make([]types.AttributeDefinition, 0)
	for _, def := range m.attrs {
		if def.IsDefaultField {
			out = append(out, def)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memorySchemaStore) GetAttributeByID(_ context.Context, _ string, attributeID string) (types.AttributeDefinition, error) {
	def, ok := m.attrs[attributeID]
	if !ok {
		return types.AttributeDefinition{}, ports.ErrAttributeNotFound
	}
	return def, nil
}

func (m *memorySchemaStore) GetAttributeByName(_ context.Context, _ string, name string) (types.AttributeDefinition, error) {
	id, ok := m.attrIDByName[name]
	if !ok {
		return types.AttributeDefinition{}, ports.ErrAttributeNotFound
	}
	return m.attrs[id], nil
}

func (m *memorySchemaStore) InsertAttributeDefinition(_ context.Context, _ string, def types.AttributeDefinition) (types.AttributeDefinition, error) {
	if _, dup := m.attrIDByName[def.Name]; dup {
		return types.AttributeDefinition{}, ports.ErrAttributeExists
	}
	return m.addAttribute(def), nil
}

func (m *memorySchemaStore) DeactivateAttribute(_ context.Context, _ string, attributeID string) error {
	def, ok := m.attrs[attributeID]
	if !ok {
		return ports.ErrAttributeNotFound
	}
	if def.IsSystemField {
		return httperr.NewPermissionDenied("SYSTEM_FIELD_PROTECTED")
	}
	def.IsActive = false
	m.attrs[attributeID] = def
	return nil
}

func (m *memorySchemaStore) UpdateAttributeDisplayOrders(_ context.Context, _ string, orderedAttributeIDs []string) error {
	for i, attributeID := range orderedAttributeIDs {
		def, ok := m.attrs[attributeID]
		if !ok {
			return ports.ErrAttributeNotFound
		}
		def.DisplayOrder = (i + 1) * 10
		m.attrs[attributeID] = def
	}
	return nil
}

func (m *memorySchemaStore) CategoryBelongsToService(_ context.Context, _ string, categoryID string, serviceID string) (bool, error) {
	return m.categories[categoryID] == serviceID, nil
}

func (m *memorySchemaStore) SubcategoryBelongsToCategory(_ context.Context, _ string, subcategoryID string, categoryID string) (bool, error) {
	return m.subcategories[subcategoryID] == categoryID, nil
}

func (m *memorySchemaStore) ListLevelConfigs(_ context.Context, _ string, kind types.HierarchyLevel, levelID string) ([]types.BoundField, error) {
	out := make([]types.BoundField, 0)
	for _, cfg := range m.configs {
		if cfg.LevelKind != kind || cfg.LevelID != levelID {
			continue
		}
		out = append(out, types.BoundField{Config: cfg, Attribute: m.attrs[cfg.AttributeID]})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Config.DisplayOrder != out[j].Config.DisplayOrder {
			return out[i].Config.DisplayOrder < out[j].Config.DisplayOrder
		}
		return out[i].Attribute.Name < out[j].Attribute.Name
	})
	return out, nil
}

func (m *memorySchemaStore) GetLevelConfig(_ context.Context, _ string, kind types.HierarchyLevel, levelID string, attributeID string) (types.LevelConfig, bool, error) {
	for _, cfg := range m.configs {
		if cfg.LevelKind == kind && cfg.LevelID == levelID && cfg.AttributeID == attributeID {
			return cfg, true, nil
		}
	}
	return types.LevelConfig{}, false, nil
}

func (m *memorySchemaStore) GetLevelConfigByID(_ context.Context, _ string, configID string) (types.LevelConfig, error) {
	cfg, ok := m.configs[configID]
	if !ok {
		return types.LevelConfig{}, ports.ErrLevelConfigNotFound
	}
	return cfg, nil
}

func (m *memorySchemaStore) InsertLevelConfig(_ context.Context, _ string, cfg types.LevelConfig) (types.LevelConfig, error) {
	for _, existing := range m.configs {
		if existing.LevelKind == cfg.LevelKind && existing.LevelID == cfg.LevelID && existing.AttributeID == cfg.AttributeID {
			return types.LevelConfig{}, ports.ErrLevelConfigExists
		}
	}
	return m.addConfig(cfg), nil
}

func (m *memorySchemaStore) UpdateLevelConfig(_ context.Context, _ string, configID string, patch types.LevelConfigPatch) error {
	cfg, ok := m.configs[configID]
	if !ok {
		return ports.ErrLevelConfigNotFound
	}
	if patch.OverrideLabel != nil {
		v := *patch.OverrideLabel
		cfg.OverrideLabel = &v
	}
	if patch.OverridePlaceholder != nil {
		v := *patch.OverridePlaceholder
		cfg.OverridePlaceholder = &v
	}
	if patch.OverrideHelpText != nil {
		v := *patch.OverrideHelpText
		cfg.OverrideHelpText = &v
	}
	if patch.FieldGroup != nil {
		cfg.FieldGroup = *patch.FieldGroup
	}
	if patch.IsRequired != nil {
		cfg.IsRequired = *patch.IsRequired
	}
	if patch.IsVisible != nil {
		cfg.IsVisible = *patch.IsVisible
	}
	m.configs[configID] = cfg
	return nil
}

func (m *memorySchemaStore) UpdateDisplayOrders(_ context.Context, _ string, updates []ports.DisplayOrderUpdate) error {
	// All-or-nothing, matching the transactional store contract.
	for _, update := range updates {
		if _, ok := m.configs[update.ConfigID]; !ok {
			return ports.ErrLevelConfigNotFound
		}
	}
	for _, update := range updates {
		cfg := m.configs[update.ConfigID]
		cfg.DisplayOrder = update.DisplayOrder
		m.configs[update.ConfigID] = cfg
	}
	return nil
}

func (m *memorySchemaStore) DeleteLevelConfigs(_ context.Context, _ string, kind types.HierarchyLevel, levelID string, attributeIDs []string) (int, error) {
	requested := make(map[string]struct{}, len(attributeIDs))
	for _, id := range attributeIDs {
		requested[id] = struct{}{}
	}
	deleted := 0
	for configID, cfg := range m.configs {
		if cfg.LevelKind != kind || cfg.LevelID != levelID || !cfg.IsDeletable {
			continue
		}
		if _, ok := requested[cfg.AttributeID]; ok {
			delete(m.configs, configID)
			deleted++
		}
	}
	return deleted, nil
}

func (m *memorySchemaStore) ResolveFormFields(_ context.Context, _ string, rc types.ResolveContext) ([]types.ResolvedField, error) {
	if m.resolveProc == nil {
		return nil, ports.ErrResolveProcUnavailable
	}
	return m.resolveProc(rc)
}
