package services

import "github.com/lindenshop/formschema/modules/catalog/domain/types"

// ProjectVisible filters a resolved field list down to the entries an end
// user should see, preserving input order. Pure, no store access.
func ProjectVisible(fields []types.ResolvedField) []types.ResolvedField {
	out := make([]types.ResolvedField, 0, len(fields))
	for _, f := range fields {
		if f.IsVisible {
			out = append(out, f)
		}
	}
	return out
}
