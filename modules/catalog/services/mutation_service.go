package services

import (
	"context"
	"errors"
	"strings"

	"github.com/lindenshop/formschema/modules/catalog/domain/fieldmeta"
	"github.com/lindenshop/formschema/modules/catalog/domain/ports"
	"github.com/lindenshop/formschema/modules/catalog/domain/types"
	"github.com/lindenshop/formschema/pkg/httperr"
)

const (
	// Custom fields live at 1000 and above; 999 is the sentinel order for
	// freshly materialized default fields so they sort just below them.
	customOrderBase          = 1000
	materializedDefaultOrder = 999
)

const (
	errLevelKindInvalid     = "LEVEL_KIND_INVALID"
	errLevelIDRequired      = "LEVEL_ID_REQUIRED"
	errAttributeIDsRequired = "ATTRIBUTE_IDS_REQUIRED"
	errAttributeUnknown     = "ATTRIBUTE_UNKNOWN"
	errPatchRequired        = "PATCH_REQUIRED"
	errFieldNotEditable     = "FIELD_NOT_EDITABLE"
	errFieldNotBound        = "FIELD_NOT_BOUND"
	errConfigNotFound       = "CONFIG_NOT_FOUND"
	errAllFieldsProtected   = "ALL_FIELDS_PROTECTED"
	errReorderUnknownConfig = "REORDER_UNKNOWN_CONFIG"
	errReorderDuplicateID   = "REORDER_DUPLICATE_ID"
	errToggleTargetRequired = "TOGGLE_TARGET_REQUIRED"
	errNotDefaultField      = "NOT_DEFAULT_FIELD"
	errSystemFieldProtected = "SYSTEM_FIELD_PROTECTED"
)

const customFieldGroup = "custom"

type ToggleFlag string

const (
	ToggleRequired ToggleFlag = "required"
	ToggleVisible  ToggleFlag = "visible"
)

type ToggleRequest struct {
	LevelKind     types.HierarchyLevel
	LevelID       string
	AttributeID   string
	AttributeName string
	Flag          ToggleFlag
	Value         bool
}

type ToggleResult struct {
	ConfigID     string
	Materialized bool
}

// AddResult reports per-id outcomes for a bulk add. Already-bound ids land in
// Skipped, store failures in Failed; the batch never aborts on the first bad
// row.
type AddResult struct {
	Added   []string
	Skipped []string
	Failed  []AttributeFailure
}

type AttributeFailure struct {
	AttributeID string
	Reason      string
}

type DeleteResult struct {
	Deleted          int
	SkippedProtected []string
	Missing          []string
}

type ReorderResult struct {
	Updated int
}

type MutationService interface {
	AddAttributes(ctx context.Context, tenantID string, kind types.HierarchyLevel, levelID string, attributeIDs []string) (AddResult, error)
	UpdateOverride(ctx context.Context, tenantID string, configID string, patch types.LevelConfigPatch) (types.LevelConfig, error)
	Toggle(ctx context.Context, tenantID string, req ToggleRequest) (ToggleResult, error)
	DeleteAttributes(ctx context.Context, tenantID string, kind types.HierarchyLevel, levelID string, attributeIDs []string) (DeleteResult, error)
	Reorder(ctx context.Context, tenantID string, kind types.HierarchyLevel, levelID string, orderedConfigIDs []string) (ReorderResult, error)
	ReorderDefaultFields(ctx context.Context, tenantID string, orderedAttributeIDs []string) error
	DeactivateAttribute(ctx context.Context, tenantID string, attributeID string) error
}

type mutationService struct {
	store ports.SchemaStore
}

func NewMutationService(store ports.SchemaStore) MutationService {
	return &mutationService{store: store}
}

func validateLevel(kind types.HierarchyLevel, levelID string) (string, error) {
	if !kind.Valid() {
		return "", httperr.NewBadRequest(errLevelKindInvalid)
	}
	levelID = strings.TrimSpace(levelID)
	if levelID == "" {
		return "", httperr.NewBadRequest(errLevelIDRequired)
	}
	return levelID, nil
}

func (s *mutationService) AddAttributes(ctx context.Context, tenantID string, kind types.HierarchyLevel, levelID string, attributeIDs []string) (AddResult, error) {
	levelID, err := validateLevel(kind, levelID)
	if err != nil {
		return AddResult{}, err
	}
	if len(attributeIDs) == 0 {
		return AddResult{}, httperr.NewBadRequest(errAttributeIDsRequired)
	}

	existing, err := s.store.ListLevelConfigs(ctx, tenantID, kind, levelID)
	if err != nil {
		return AddResult{}, err
	}
	bound := make(map[string]struct{}, len(existing))
	nextOrder := customOrderBase
	for _, bf := range existing {
		bound[bf.Config.AttributeID] = struct{}{}
		if bf.Config.DisplayOrder >= nextOrder {
			nextOrder = bf.Config.DisplayOrder + 1
		}
	}

	result := AddResult{
		Added:   make([]string, 0, len(attributeIDs)),
		Skipped: make([]string, 0),
		Failed:  make([]AttributeFailure, 0),
	}
	for _, attributeID := range attributeIDs {
		attributeID = strings.TrimSpace(attributeID)
		if attributeID == "" {
			continue
		}
		if _, already := bound[attributeID]; already {
			result.Skipped = append(result.Skipped, attributeID)
			continue
		}

		if _, err := s.store.GetAttributeByID(ctx, tenantID, attributeID); err != nil {
			if errors.Is(err, ports.ErrAttributeNotFound) {
				result.Failed = append(result.Failed, AttributeFailure{AttributeID: attributeID, Reason: errAttributeUnknown})
				continue
			}
			result.Failed = append(result.Failed, AttributeFailure{AttributeID: attributeID, Reason: err.Error()})
			continue
		}

		cfg := types.LevelConfig{
			LevelKind:    kind,
			LevelID:      levelID,
			AttributeID:  attributeID,
			IsRequired:   false,
			IsVisible:    true,
			IsEditable:   true,
			IsDeletable:  true,
			DisplayOrder: nextOrder,
			FieldGroup:   customFieldGroup,
		}
		if _, err := s.store.InsertLevelConfig(ctx, tenantID, cfg); err != nil {
			if errors.Is(err, ports.ErrLevelConfigExists) {
				result.Skipped = append(result.Skipped, attributeID)
				continue
			}
			result.Failed = append(result.Failed, AttributeFailure{AttributeID: attributeID, Reason: err.Error()})
			continue
		}
		bound[attributeID] = struct{}{}
		result.Added = append(result.Added, attributeID)
		nextOrder++
	}
	return result, nil
}

func (s *mutationService) UpdateOverride(ctx context.Context, tenantID string, configID string, patch types.LevelConfigPatch) (types.LevelConfig, error) {
	configID = strings.TrimSpace(configID)
	if configID == "" {
		return types.LevelConfig{}, httperr.NewBadRequest(errConfigNotFound)
	}
	if patch.Empty() {
		return types.LevelConfig{}, httperr.NewBadRequest(errPatchRequired)
	}

	cfg, err := s.store.GetLevelConfigByID(ctx, tenantID, configID)
	if err != nil {
		if errors.Is(err, ports.ErrLevelConfigNotFound) {
			return types.LevelConfig{}, httperr.NewNotFound(errConfigNotFound)
		}
		return types.LevelConfig{}, err
	}
	// is_editable locks the override surface, not the flags; toggles on a
	// locked row still go through.
	if patch.TouchesOverrides() && !cfg.IsEditable {
		return types.LevelConfig{}, httperr.NewPermissionDenied(errFieldNotEditable)
	}

	if err := s.store.UpdateLevelConfig(ctx, tenantID, configID, patch); err != nil {
		return types.LevelConfig{}, err
	}
	return s.store.GetLevelConfigByID(ctx, tenantID, configID)
}

// Toggle flips is_required or is_visible for one attribute at one level.
// Unbound default fields are materialized on first toggle; re-running the
// same toggle updates the existing row instead of inserting a second one.
func (s *mutationService) Toggle(ctx context.Context, tenantID string, req ToggleRequest) (ToggleResult, error) {
	levelID, err := validateLevel(req.LevelKind, req.LevelID)
	if err != nil {
		return ToggleResult{}, err
	}
	if req.Flag != ToggleRequired && req.Flag != ToggleVisible {
		return ToggleResult{}, httperr.NewBadRequest(errToggleTargetRequired)
	}

	attr, err := s.resolveToggleAttribute(ctx, tenantID, req)
	if err != nil {
		return ToggleResult{}, err
	}

	cfg, found, err := s.store.GetLevelConfig(ctx, tenantID, req.LevelKind, levelID, attr.ID)
	if err != nil {
		return ToggleResult{}, err
	}
	if found {
		patch := togglePatch(req.Flag, req.Value)
		if err := s.store.UpdateLevelConfig(ctx, tenantID, cfg.ID, patch); err != nil {
			return ToggleResult{}, err
		}
		return ToggleResult{ConfigID: cfg.ID}, nil
	}

	if !attr.IsDefaultField {
		return ToggleResult{}, httperr.NewNotFound(errFieldNotBound)
	}

	materialized := types.LevelConfig{
		LevelKind:    req.LevelKind,
		LevelID:      levelID,
		AttributeID:  attr.ID,
		IsRequired:   req.Flag == ToggleRequired && req.Value,
		IsVisible:    req.Flag != ToggleVisible || req.Value,
		IsEditable:   true,
		IsDeletable:  true,
		DisplayOrder: materializedDefaultOrder,
		FieldGroup:   defaultFieldGroup,
	}
	inserted, err := s.store.InsertLevelConfig(ctx, tenantID, materialized)
	if err != nil {
		if errors.Is(err, ports.ErrLevelConfigExists) {
			// Lost a race with a concurrent materialization; fall back to a
			// plain flag update on the surviving row.
			cfg, found, err := s.store.GetLevelConfig(ctx, tenantID, req.LevelKind, levelID, attr.ID)
			if err != nil {
				return ToggleResult{}, err
			}
			if !found {
				return ToggleResult{}, ports.ErrLevelConfigNotFound
			}
			if err := s.store.UpdateLevelConfig(ctx, tenantID, cfg.ID, togglePatch(req.Flag, req.Value)); err != nil {
				return ToggleResult{}, err
			}
			return ToggleResult{ConfigID: cfg.ID}, nil
		}
		return ToggleResult{}, err
	}
	return ToggleResult{ConfigID: inserted.ID, Materialized: true}, nil
}

func (s *mutationService) resolveToggleAttribute(ctx context.Context, tenantID string, req ToggleRequest) (types.AttributeDefinition, error) {
	if id := strings.TrimSpace(req.AttributeID); id != "" {
		attr, err := s.store.GetAttributeByID(ctx, tenantID, id)
		if err != nil {
			if errors.Is(err, ports.ErrAttributeNotFound) {
				return types.AttributeDefinition{}, httperr.NewNotFound(errAttributeUnknown)
			}
			return types.AttributeDefinition{}, err
		}
		return attr, nil
	}

	name := strings.TrimSpace(req.AttributeName)
	if name == "" {
		return types.AttributeDefinition{}, httperr.NewBadRequest(errToggleTargetRequired)
	}

	attr, err := s.store.GetAttributeByName(ctx, tenantID, name)
	if err == nil {
		return attr, nil
	}
	if !errors.Is(err, ports.ErrAttributeNotFound) {
		return types.AttributeDefinition{}, err
	}

	// Registry miss: the only creation path outside seeding. Known default
	// fields get their compiled-in definition, anything else is rejected.
	def, known := fieldmeta.LookupDefaultField(name)
	if !known {
		return types.AttributeDefinition{}, httperr.NewNotFound(errAttributeUnknown)
	}
	created, err := s.store.InsertAttributeDefinition(ctx, tenantID, types.AttributeDefinition{
		Name:           def.Name,
		Label:          def.Label,
		DataType:       def.DataType,
		InputType:      def.InputType,
		Placeholder:    def.Placeholder,
		HelpText:       def.HelpText,
		IsDefaultField: true,
		IsSystemField:  def.IsSystem,
		IsActive:       true,
		DisplayOrder:   def.DisplayOrder,
	})
	if err != nil {
		if errors.Is(err, ports.ErrAttributeExists) {
			return s.store.GetAttributeByName(ctx, tenantID, name)
		}
		return types.AttributeDefinition{}, err
	}
	return created, nil
}

func togglePatch(flag ToggleFlag, value bool) types.LevelConfigPatch {
	v := value
	if flag == ToggleRequired {
		return types.LevelConfigPatch{IsRequired: &v}
	}
	return types.LevelConfigPatch{IsVisible: &v}
}

func (s *mutationService) DeleteAttributes(ctx context.Context, tenantID string, kind types.HierarchyLevel, levelID string, attributeIDs []string) (DeleteResult, error) {
	levelID, err := validateLevel(kind, levelID)
	if err != nil {
		return DeleteResult{}, err
	}
	if len(attributeIDs) == 0 {
		return DeleteResult{}, httperr.NewBadRequest(errAttributeIDsRequired)
	}

	existing, err := s.store.ListLevelConfigs(ctx, tenantID, kind, levelID)
	if err != nil {
		return DeleteResult{}, err
	}
	byAttr := make(map[string]types.BoundField, len(existing))
	for _, bf := range existing {
		byAttr[bf.Config.AttributeID] = bf
	}

	result := DeleteResult{
		SkippedProtected: make([]string, 0),
		Missing:          make([]string, 0),
	}
	deletable := make([]string, 0, len(attributeIDs))
	requested := 0
	for _, attributeID := range attributeIDs {
		attributeID = strings.TrimSpace(attributeID)
		if attributeID == "" {
			continue
		}
		requested++
		bf, ok := byAttr[attributeID]
		if !ok {
			result.Missing = append(result.Missing, attributeID)
			continue
		}
		if !bf.Config.IsDeletable {
			result.SkippedProtected = append(result.SkippedProtected, bf.Attribute.Name)
			continue
		}
		deletable = append(deletable, attributeID)
	}

	if requested == 0 {
		return DeleteResult{}, httperr.NewBadRequest(errAttributeIDsRequired)
	}
	if len(deletable) == 0 && len(result.SkippedProtected) == requested {
		return DeleteResult{}, httperr.NewPermissionDenied(errAllFieldsProtected)
	}

	if len(deletable) > 0 {
		deleted, err := s.store.DeleteLevelConfigs(ctx, tenantID, kind, levelID, deletable)
		if err != nil {
			return DeleteResult{}, err
		}
		result.Deleted = deleted
	}
	return result, nil
}

func (s *mutationService) Reorder(ctx context.Context, tenantID string, kind types.HierarchyLevel, levelID string, orderedConfigIDs []string) (ReorderResult, error) {
	levelID, err := validateLevel(kind, levelID)
	if err != nil {
		return ReorderResult{}, err
	}
	if len(orderedConfigIDs) == 0 {
		return ReorderResult{}, httperr.NewBadRequest(errAttributeIDsRequired)
	}

	existing, err := s.store.ListLevelConfigs(ctx, tenantID, kind, levelID)
	if err != nil {
		return ReorderResult{}, err
	}
	atLevel := make(map[string]struct{}, len(existing))
	for _, bf := range existing {
		atLevel[bf.Config.ID] = struct{}{}
	}

	seen := make(map[string]struct{}, len(orderedConfigIDs))
	updates := make([]ports.DisplayOrderUpdate, 0, len(orderedConfigIDs))
	for i, configID := range orderedConfigIDs {
		configID = strings.TrimSpace(configID)
		if configID == "" {
			return ReorderResult{}, httperr.NewBadRequest(errReorderUnknownConfig)
		}
		if _, dup := seen[configID]; dup {
			return ReorderResult{}, httperr.NewBadRequest(errReorderDuplicateID)
		}
		seen[configID] = struct{}{}
		if _, ok := atLevel[configID]; !ok {
			return ReorderResult{}, httperr.NewBadRequest(errReorderUnknownConfig)
		}
		updates = append(updates, ports.DisplayOrderUpdate{
			ConfigID:     configID,
			DisplayOrder: customOrderBase + i,
		})
	}

	// Single transactional batch: a blind retry of a half-applied reorder
	// would mint duplicate display orders.
	if err := s.store.UpdateDisplayOrders(ctx, tenantID, updates); err != nil {
		return ReorderResult{}, err
	}
	return ReorderResult{Updated: len(updates)}, nil
}

// ReorderDefaultFields rewrites registry display orders for default fields.
// The effect is global: every context that still shows the unmaterialized
// synthetic entry picks up the new order.
func (s *mutationService) ReorderDefaultFields(ctx context.Context, tenantID string, orderedAttributeIDs []string) error {
	if len(orderedAttributeIDs) == 0 {
		return httperr.NewBadRequest(errAttributeIDsRequired)
	}
	seen := make(map[string]struct{}, len(orderedAttributeIDs))
	for _, attributeID := range orderedAttributeIDs {
		attributeID = strings.TrimSpace(attributeID)
		if attributeID == "" {
			return httperr.NewBadRequest(errAttributeIDsRequired)
		}
		if _, dup := seen[attributeID]; dup {
			return httperr.NewBadRequest(errReorderDuplicateID)
		}
		seen[attributeID] = struct{}{}
		attr, err := s.store.GetAttributeByID(ctx, tenantID, attributeID)
		if err != nil {
			if errors.Is(err, ports.ErrAttributeNotFound) {
				return httperr.NewNotFound(errAttributeUnknown)
			}
			return err
		}
		if !attr.IsDefaultField {
			return httperr.NewBadRequest(errNotDefaultField)
		}
	}
	return s.store.UpdateAttributeDisplayOrders(ctx, tenantID, orderedAttributeIDs)
}

// DeactivateAttribute retires a registry definition: existing bindings keep
// working but resolution stops synthesizing the field and pickers stop
// offering it. System fields never deactivate.
func (s *mutationService) DeactivateAttribute(ctx context.Context, tenantID string, attributeID string) error {
	attributeID = strings.TrimSpace(attributeID)
	if attributeID == "" {
		return httperr.NewBadRequest(errAttributeIDsRequired)
	}
	attr, err := s.store.GetAttributeByID(ctx, tenantID, attributeID)
	if err != nil {
		if errors.Is(err, ports.ErrAttributeNotFound) {
			return httperr.NewNotFound(errAttributeUnknown)
		}
		return err
	}
	if attr.IsSystemField {
		return httperr.NewPermissionDenied(errSystemFieldProtected)
	}
	return s.store.DeactivateAttribute(ctx, tenantID, attributeID)
}
