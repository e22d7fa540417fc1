package services

import (
	"context"
	"errors"

	"github.com/lindenshop/formschema/modules/catalog/domain/ports"
	"github.com/lindenshop/formschema/modules/catalog/domain/types"
)

type schemaStoreStub struct {
	listAttributesFn       func(ctx context.Context, tenantID string) ([]types.AttributeDefinition, error)
	listDefaultsFn         func(ctx context.Context, tenantID string) ([]types.AttributeDefinition, error)
	getAttributeByIDFn     func(ctx context.Context, tenantID string, attributeID string) (types.AttributeDefinition, error)
	getAttributeByNameFn   func(ctx context.Context, tenantID string, name string) (types.AttributeDefinition, error)
	insertAttributeFn      func(ctx context.Context, tenantID string, def types.AttributeDefinition) (types.AttributeDefinition, error)
	deactivateAttributeFn  func(ctx context.Context, tenantID string, attributeID string) error
	updateAttrOrdersFn     func(ctx context.Context, tenantID string, orderedAttributeIDs []string) error
	categoryBelongsFn      func(ctx context.Context, tenantID string, categoryID string, serviceID string) (bool, error)
	subcategoryBelongsFn   func(ctx context.Context, tenantID string, subcategoryID string, categoryID string) (bool, error)
	listLevelConfigsFn     func(ctx context.Context, tenantID string, kind types.HierarchyLevel, levelID string) ([]types.BoundField, error)
	getLevelConfigFn       func(ctx context.Context, tenantID string, kind types.HierarchyLevel, levelID string, attributeID string) (types.LevelConfig, bool, error)
	getLevelConfigByIDFn   func(ctx context.Context, tenantID string, configID string) (types.LevelConfig, error)
	insertLevelConfigFn    func(ctx context.Context, tenantID string, cfg types.LevelConfig) (types.LevelConfig, error)
	updateLevelConfigFn    func(ctx context.Context, tenantID string, configID string, patch types.LevelConfigPatch) error
	updateDisplayOrdersFn  func(ctx context.Context, tenantID string, updates []ports.DisplayOrderUpdate) error
	deleteLevelConfigsFn   func(ctx context.Context, tenantID string, kind types.HierarchyLevel, levelID string, attributeIDs []string) (int, error)
	resolveFormFieldsFn    func(ctx context.Context, tenantID string, rc types.ResolveContext) ([]types.ResolvedField, error)
}

func (s schemaStoreStub) ListAttributeDefinitions(ctx context.Context, tenantID string) ([]types.AttributeDefinition, error) {
	if s.listAttributesFn == nil {
		return nil, errors.New("ListAttributeDefinitions not mocked")
	}
	return s.listAttributesFn(ctx, tenantID)
}

func (s schemaStoreStub) ListDefaultFieldDefinitions(ctx context.Context, tenantID string) ([]types.AttributeDefinition, error) {
	if s.listDefaultsFn == nil {
		return []types.AttributeDefinition{}, nil
	}
	return s.listDefaultsFn(ctx, tenantID)
}

func (s schemaStoreStub) GetAttributeByID(ctx context.Context, tenantID string, attributeID string) (types.AttributeDefinition, error) {
	if s.getAttributeByIDFn == nil {
		return types.AttributeDefinition{}, errors.New("GetAttributeByID not mocked")
	}
	return s.getAttributeByIDFn(ctx, tenantID, attributeID)
}

func (s schemaStoreStub) GetAttributeByName(ctx context.Context, tenantID string, name string) (types.AttributeDefinition, error) {
	if s.getAttributeByNameFn == nil {
		return types.AttributeDefinition{}, errors.New("GetAttributeByName not mocked")
	}
	return s.getAttributeByNameFn(ctx, tenantID, name)
}

func (s schemaStoreStub) InsertAttributeDefinition(ctx context.Context, tenantID string, def types.AttributeDefinition) (types.AttributeDefinition, error) {
	if s.insertAttributeFn == nil {
		return types.AttributeDefinition{}, errors.New("InsertAttributeDefinition not mocked")
	}
	return s.insertAttributeFn(ctx, tenantID, def)
}

func (s schemaStoreStub) DeactivateAttribute(ctx context.Context, tenantID string, attributeID string) error {
	if s.deactivateAttributeFn == nil {
		return errors.New("DeactivateAttribute not mocked")
	}
	return s.deactivateAttributeFn(ctx, tenantID, attributeID)
}

func (s schemaStoreStub) UpdateAttributeDisplayOrders(ctx context.Context, tenantID string, orderedAttributeIDs []string) error {
	if s.updateAttrOrdersFn == nil {
		return errors.New("UpdateAttributeDisplayOrders not mocked")
	}
	return s.updateAttrOrdersFn(ctx, tenantID, orderedAttributeIDs)
}

func (s schemaStoreStub) CategoryBelongsToService(ctx context.Context, tenantID string, categoryID string, serviceID string) (bool, error) {
	if s.categoryBelongsFn == nil {
		return true, nil
	}
	return s.categoryBelongsFn(ctx, tenantID, categoryID, serviceID)
}

func (s schemaStoreStub) SubcategoryBelongsToCategory(ctx context.Context, tenantID string, subcategoryID string, categoryID string) (bool, error) {
	if s.subcategoryBelongsFn == nil {
		return true, nil
	}
	return s.subcategoryBelongsFn(ctx, tenantID, subcategoryID, categoryID)
}

func (s schemaStoreStub) ListLevelConfigs(ctx context.Context, tenantID string, kind types.HierarchyLevel, levelID string) ([]types.BoundField, error) {
	if s.listLevelConfigsFn == nil {
		return []types.BoundField{}, nil
	}
	return s.listLevelConfigsFn(ctx, tenantID, kind, levelID)
}

func (s schemaStoreStub) GetLevelConfig(ctx context.Context, tenantID string, kind types.HierarchyLevel, levelID string, attributeID string) (types.LevelConfig, bool, error) {
	if s.getLevelConfigFn == nil {
		return types.LevelConfig{}, false, nil
	}
	return s.getLevelConfigFn(ctx, tenantID, kind, levelID, attributeID)
}

func (s schemaStoreStub) GetLevelConfigByID(ctx context.Context, tenantID string, configID string) (types.LevelConfig, error) {
	if s.getLevelConfigByIDFn == nil {
		return types.LevelConfig{}, errors.New("GetLevelConfigByID not mocked")
	}
	return s.getLevelConfigByIDFn(ctx, tenantID, configID)
}

func (s schemaStoreStub) InsertLevelConfig(ctx context.Context, tenantID string, cfg types.LevelConfig) (types.LevelConfig, error) {
	if s.insertLevelConfigFn == nil {
		return types.LevelConfig{}, errors.New("InsertLevelConfig not mocked")
	}
	return s.insertLevelConfigFn(ctx, tenantID, cfg)
}

func (s schemaStoreStub) UpdateLevelConfig(ctx context.Context, tenantID string, configID string, patch types.LevelConfigPatch) error {
	if s.updateLevelConfigFn == nil {
		return errors.New("UpdateLevelConfig not mocked")
	}
	return s.updateLevelConfigFn(ctx, tenantID, configID, patch)
}

func (s schemaStoreStub) UpdateDisplayOrders(ctx context.Context, tenantID string, updates []ports.DisplayOrderUpdate) error {
	if s.updateDisplayOrdersFn == nil {
		return errors.New("UpdateDisplayOrders not mocked")
	}
	return s.updateDisplayOrdersFn(ctx, tenantID, updates)
}

func (s schemaStoreStub) DeleteLevelConfigs(ctx context.Context, tenantID string, kind types.HierarchyLevel, levelID string, attributeIDs []string) (int, error) {
	if s.deleteLevelConfigsFn == nil {
		return 0, errors.New("DeleteLevelConfigs not mocked")
	}
	return s.deleteLevelConfigsFn(ctx, tenantID, kind, levelID, attributeIDs)
}

func (s schemaStoreStub) ResolveFormFields(ctx context.Context, tenantID string, rc types.ResolveContext) ([]types.ResolvedField, error) {
	if s.resolveFormFieldsFn == nil {
		return nil, ports.ErrResolveProcUnavailable
	}
	return s.resolveFormFieldsFn(ctx, tenantID, rc)
}
