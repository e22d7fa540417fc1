package services

import (
	"context"
	"errors"

	"github.com/lindenshop/formschema/modules/catalog/domain/fieldmeta"
	"github.com/lindenshop/formschema/modules/catalog/domain/ports"
	"github.com/lindenshop/formschema/modules/catalog/domain/types"
)

// SeedRegistry inserts any default-field definition that is missing from the
// tenant's attribute registry. Existing rows are left untouched, so reseeding
// is safe. Returns the number of rows created.
func SeedRegistry(ctx context.Context, store ports.SchemaStore, tenantID string, overlay []fieldmeta.DefaultFieldDefinition) (int, error) {
	created := 0
	for _, def := range fieldmeta.MergeSeed(overlay) {
		_, err := store.GetAttributeByName(ctx, tenantID, def.Name)
		if err == nil {
			continue
		}
		if !errors.Is(err, ports.ErrAttributeNotFound) {
			return created, err
		}

		_, err = store.InsertAttributeDefinition(ctx, tenantID, types.AttributeDefinition{
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
				continue
			}
			return created, err
		}
		created++
	}
	return created, nil
}
