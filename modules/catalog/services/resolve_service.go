package services

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/lindenshop/formschema/modules/catalog/domain/ports"
	"github.com/lindenshop/formschema/modules/catalog/domain/types"
	"github.com/lindenshop/formschema/pkg/httperr"
)

const (
	errContextServiceRequired  = "CONTEXT_SERVICE_REQUIRED"
	errContextCategoryRequired = "CONTEXT_CATEGORY_REQUIRED"
	errContextCategoryMismatch = "CONTEXT_CATEGORY_NOT_UNDER_SERVICE"
	errContextSubcatMismatch   = "CONTEXT_SUBCATEGORY_NOT_UNDER_CATEGORY"
)

const defaultFieldGroup = "default"

type ResolveService interface {
	// Resolve computes the effective ordered field list for a context.
	Resolve(ctx context.Context, tenantID string, rc types.ResolveContext) ([]types.ResolvedField, error)
}

type resolveService struct {
	store ports.SchemaStore
}

func NewResolveService(store ports.SchemaStore) ResolveService {
	return &resolveService{store: store}
}

func (s *resolveService) Resolve(ctx context.Context, tenantID string, rc types.ResolveContext) ([]types.ResolvedField, error) {
	rc, err := s.validateContext(ctx, tenantID, rc)
	if err != nil {
		return nil, err
	}

	fields, err := s.store.ResolveFormFields(ctx, tenantID, rc)
	if err == nil {
		return fields, nil
	}
	if !errors.Is(err, ports.ErrResolveProcUnavailable) {
		return nil, err
	}
	return s.resolveClientSide(ctx, tenantID, rc)
}

func (s *resolveService) validateContext(ctx context.Context, tenantID string, rc types.ResolveContext) (types.ResolveContext, error) {
	rc.ServiceID = strings.TrimSpace(rc.ServiceID)
	rc.CategoryID = strings.TrimSpace(rc.CategoryID)
	rc.SubcategoryID = strings.TrimSpace(rc.SubcategoryID)

	if rc.ServiceID == "" {
		return rc, httperr.NewBadRequest(errContextServiceRequired)
	}
	if rc.SubcategoryID != "" && rc.CategoryID == "" {
		return rc, httperr.NewBadRequest(errContextCategoryRequired)
	}

	if rc.CategoryID != "" {
		ok, err := s.store.CategoryBelongsToService(ctx, tenantID, rc.CategoryID, rc.ServiceID)
		if err != nil {
			return rc, err
		}
		if !ok {
			return rc, httperr.NewBadRequest(errContextCategoryMismatch)
		}
	}
	if rc.SubcategoryID != "" {
		ok, err := s.store.SubcategoryBelongsToCategory(ctx, tenantID, rc.SubcategoryID, rc.CategoryID)
		if err != nil {
			return rc, err
		}
		if !ok {
			return rc, httperr.NewBadRequest(errContextSubcatMismatch)
		}
	}
	return rc, nil
}

// resolveClientSide is the in-process merge. Levels are walked deepest-first;
// the first level contributing an attribute wins, shallower contributions of
// the same attribute are dropped. Default fields without a binding anywhere
// in the path are synthesized from the registry.
func (s *resolveService) resolveClientSide(ctx context.Context, tenantID string, rc types.ResolveContext) ([]types.ResolvedField, error) {
	levels := rc.Levels()

	boundAttr := make(map[string]struct{})
	out := make([]types.ResolvedField, 0, 16)

	for depth, level := range levels {
		bound, err := s.store.ListLevelConfigs(ctx, tenantID, level.Kind, level.ID)
		if err != nil {
			return nil, err
		}
		for _, bf := range bound {
			if _, shadowed := boundAttr[bf.Config.AttributeID]; shadowed {
				continue
			}
			boundAttr[bf.Config.AttributeID] = struct{}{}

			rf := resolvedFromBound(bf)
			if depth > 0 {
				rf.IsDirect = false
				rf.InheritedFrom = level.Kind
			}
			out = append(out, rf)
		}
	}

	defaults, err := s.store.ListDefaultFieldDefinitions(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	nameSeen := make(map[string]struct{}, len(out))
	for _, rf := range out {
		nameSeen[rf.Name] = struct{}{}
	}
	for _, def := range defaults {
		if !def.IsActive {
			continue
		}
		if _, bound := boundAttr[def.ID]; bound {
			continue
		}
		if _, dup := nameSeen[def.Name]; dup {
			// A custom binding already carries this logical field; the
			// synthetic default entry must not appear alongside it.
			continue
		}
		nameSeen[def.Name] = struct{}{}
		out = append(out, synthesizeDefaultField(def))
	}

	sortResolvedFields(out)
	return out, nil
}

func resolvedFromBound(bf types.BoundField) types.ResolvedField {
	rf := types.ResolvedField{
		ConfigID:     bf.Config.ID,
		AttributeID:  bf.Attribute.ID,
		Name:         bf.Attribute.Name,
		Label:        bf.Attribute.Label,
		DataType:     bf.Attribute.DataType,
		InputType:    bf.Attribute.InputType,
		Placeholder:  bf.Attribute.Placeholder,
		HelpText:     bf.Attribute.HelpText,
		IsRequired:   bf.Config.IsRequired,
		IsVisible:    bf.Config.IsVisible,
		IsEditable:   bf.Config.IsEditable,
		IsDeletable:  bf.Config.IsDeletable,
		DisplayOrder: bf.Config.DisplayOrder,
		FieldGroup:   bf.Config.FieldGroup,
		IsDirect:     true,
	}
	if bf.Config.OverrideLabel != nil && strings.TrimSpace(*bf.Config.OverrideLabel) != "" {
		rf.Label = *bf.Config.OverrideLabel
	}
	if bf.Config.OverridePlaceholder != nil && strings.TrimSpace(*bf.Config.OverridePlaceholder) != "" {
		rf.Placeholder = *bf.Config.OverridePlaceholder
	}
	if bf.Config.OverrideHelpText != nil && strings.TrimSpace(*bf.Config.OverrideHelpText) != "" {
		rf.HelpText = *bf.Config.OverrideHelpText
	}
	return rf
}

func synthesizeDefaultField(def types.AttributeDefinition) types.ResolvedField {
	return types.ResolvedField{
		AttributeID:  def.ID,
		Name:         def.Name,
		Label:        def.Label,
		DataType:     def.DataType,
		InputType:    def.InputType,
		Placeholder:  def.Placeholder,
		HelpText:     def.HelpText,
		IsRequired:   false,
		IsVisible:    true,
		IsEditable:   true,
		IsDeletable:  true,
		DisplayOrder: def.DisplayOrder,
		FieldGroup:   defaultFieldGroup,
		IsDirect:     true,
	}
}

func sortResolvedFields(fields []types.ResolvedField) {
	sort.SliceStable(fields, func(i, j int) bool {
		if fields[i].DisplayOrder != fields[j].DisplayOrder {
			return fields[i].DisplayOrder < fields[j].DisplayOrder
		}
		return fields[i].Name < fields[j].Name
	})
}
