package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lindenshop/formschema/modules/catalog/domain/ports"
	"github.com/lindenshop/formschema/modules/catalog/domain/types"
	"github.com/lindenshop/formschema/pkg/httperr"
)

type pgBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type SchemaPGStore struct {
	pool pgBeginner
}

func NewSchemaPGStore(pool pgBeginner) ports.SchemaStore {
	return &SchemaPGStore{pool: pool}
}

const (
	pgCodeUniqueViolation   = "23505"
	pgCodeUndefinedFunction = "42883"
)

func pgErrorCode(err error) string {
	if pgErr, ok := errors.AsType[*pgconn.PgError](err); ok && pgErr != nil {
		return strings.TrimSpace(pgErr.Code)
	}
	return ""
}

func newRowID() string {
	u, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return u.String()
}

func (s *SchemaPGStore) begin(ctx context.Context, tenantID string) (pgx.Tx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, `SELECT set_config('app.current_tenant', $1, true);`, tenantID); err != nil {
		_ = tx.Rollback(ctx)
		return nil, err
	}
	return tx, nil
}

const attributeColumns = `
  id::text,
  name,
  label,
  data_type,
  input_type,
  COALESCE(placeholder, ''),
  COALESCE(help_text, ''),
  is_default_field,
  is_system_field,
  is_active,
  display_order`

func scanAttribute(row interface{ Scan(dest ...any) error }) (types.AttributeDefinition, error) {
	var def types.AttributeDefinition
	if err := row.Scan(
		&def.ID,
		&def.Name,
		&def.Label,
		&def.DataType,
		&def.InputType,
		&def.Placeholder,
		&def.HelpText,
		&def.IsDefaultField,
		&def.IsSystemField,
		&def.IsActive,
		&def.DisplayOrder,
	); err != nil {
		return types.AttributeDefinition{}, err
	}
	return def, nil
}

func (s *SchemaPGStore) ListAttributeDefinitions(ctx context.Context, tenantID string) ([]types.AttributeDefinition, error) {
	tx, err := s.begin(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	rows, err := tx.Query(ctx, `
SELECT`+attributeColumns+`
FROM catalog.attribute_definitions
WHERE tenant_uuid = $1::uuid
ORDER BY display_order ASC, name ASC
`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("catalog: list attributes: %w", err)
	}
	defer rows.Close()

	out := make([]types.AttributeDefinition, 0)
	for rows.Next() {
		def, scanErr := scanAttribute(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, def)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SchemaPGStore) ListDefaultFieldDefinitions(ctx context.Context, tenantID string) ([]types.AttributeDefinition, error) {
	tx, err := s.begin(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	rows, err := tx.Query(ctx, `
SELECT`+attributeColumns+`
FROM catalog.attribute_definitions
WHERE tenant_uuid = $1::uuid
  AND is_default_field = true
ORDER BY display_order ASC, name ASC
`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("catalog: list default fields: %w", err)
	}
	defer rows.Close()

	out := make([]types.AttributeDefinition, 0)
	for rows.Next() {
		def, scanErr := scanAttribute(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, def)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SchemaPGStore) GetAttributeByID(ctx context.Context, tenantID string, attributeID string) (types.AttributeDefinition, error) {
	return s.getAttribute(ctx, tenantID, `id = $2::uuid`, attributeID)
}

func (s *SchemaPGStore) GetAttributeByName(ctx context.Context, tenantID string, name string) (types.AttributeDefinition, error) {
	return s.getAttribute(ctx, tenantID, `name = $2::text`, name)
}

func (s *SchemaPGStore) getAttribute(ctx context.Context, tenantID string, predicate string, arg string) (types.AttributeDefinition, error) {
	tx, err := s.begin(ctx, tenantID)
	if err != nil {
		return types.AttributeDefinition{}, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	def, err := scanAttribute(tx.QueryRow(ctx, `
SELECT`+attributeColumns+`
FROM catalog.attribute_definitions
WHERE tenant_uuid = $1::uuid
  AND `+predicate+`
LIMIT 1
`, tenantID, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.AttributeDefinition{}, ports.ErrAttributeNotFound
		}
		return types.AttributeDefinition{}, fmt.Errorf("catalog: get attribute %s: %w", arg, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return types.AttributeDefinition{}, err
	}
	return def, nil
}

func (s *SchemaPGStore) InsertAttributeDefinition(ctx context.Context, tenantID string, def types.AttributeDefinition) (types.AttributeDefinition, error) {
	tx, err := s.begin(ctx, tenantID)
	if err != nil {
		return types.AttributeDefinition{}, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if def.ID == "" {
		def.ID = newRowID()
	}
	if _, err := tx.Exec(ctx, `
INSERT INTO catalog.attribute_definitions (
  id, tenant_uuid, name, label, data_type, input_type,
  placeholder, help_text, is_default_field, is_system_field,
  is_active, display_order
) VALUES (
  $1::uuid, $2::uuid, $3::text, $4::text, $5::text, $6::text,
  $7::text, $8::text, $9::bool, $10::bool, $11::bool, $12::int
)
`, def.ID, tenantID, def.Name, def.Label, def.DataType, def.InputType,
		def.Placeholder, def.HelpText, def.IsDefaultField, def.IsSystemField,
		def.IsActive, def.DisplayOrder); err != nil {
		if pgErrorCode(err) == pgCodeUniqueViolation {
			return types.AttributeDefinition{}, ports.ErrAttributeExists
		}
		return types.AttributeDefinition{}, fmt.Errorf("catalog: insert attribute %s: %w", def.Name, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return types.AttributeDefinition{}, err
	}
	return def, nil
}

func (s *SchemaPGStore) DeactivateAttribute(ctx context.Context, tenantID string, attributeID string) error {
	tx, err := s.begin(ctx, tenantID)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	var isSystem bool
	err = tx.QueryRow(ctx, `
SELECT is_system_field
FROM catalog.attribute_definitions
WHERE tenant_uuid = $1::uuid
  AND id = $2::uuid
LIMIT 1
`, tenantID, attributeID).Scan(&isSystem)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ports.ErrAttributeNotFound
		}
		return err
	}
	if isSystem {
		return httperr.NewPermissionDenied("SYSTEM_FIELD_PROTECTED")
	}

	if _, err := tx.Exec(ctx, `
UPDATE catalog.attribute_definitions
SET is_active = false
WHERE tenant_uuid = $1::uuid
  AND id = $2::uuid
`, tenantID, attributeID); err != nil {
		return fmt.Errorf("catalog: deactivate attribute %s: %w", attributeID, err)
	}
	return tx.Commit(ctx)
}

// UpdateAttributeDisplayOrders rewrites registry display orders in the given
// sequence. Runs in one transaction; registry order stays below the
// materialized-default sentinel.
func (s *SchemaPGStore) UpdateAttributeDisplayOrders(ctx context.Context, tenantID string, orderedAttributeIDs []string) error {
	tx, err := s.begin(ctx, tenantID)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	for i, attributeID := range orderedAttributeIDs {
		tag, err := tx.Exec(ctx, `
UPDATE catalog.attribute_definitions
SET display_order = $3::int
WHERE tenant_uuid = $1::uuid
  AND id = $2::uuid
`, tenantID, attributeID, (i+1)*10)
		if err != nil {
			return fmt.Errorf("catalog: reorder attribute %s: %w", attributeID, err)
		}
		if tag.RowsAffected() == 0 {
			return ports.ErrAttributeNotFound
		}
	}
	return tx.Commit(ctx)
}

func (s *SchemaPGStore) CategoryBelongsToService(ctx context.Context, tenantID string, categoryID string, serviceID string) (bool, error) {
	return s.existsCheck(ctx, tenantID, `
SELECT EXISTS (
  SELECT 1
  FROM catalog.categories
  WHERE tenant_uuid = $1::uuid
    AND id = $2::uuid
    AND service_id = $3::uuid
)
`, categoryID, serviceID)
}

func (s *SchemaPGStore) SubcategoryBelongsToCategory(ctx context.Context, tenantID string, subcategoryID string, categoryID string) (bool, error) {
	return s.existsCheck(ctx, tenantID, `
SELECT EXISTS (
  SELECT 1
  FROM catalog.subcategories
  WHERE tenant_uuid = $1::uuid
    AND id = $2::uuid
    AND category_id = $3::uuid
)
`, subcategoryID, categoryID)
}

func (s *SchemaPGStore) existsCheck(ctx context.Context, tenantID string, query string, args ...any) (bool, error) {
	tx, err := s.begin(ctx, tenantID)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	queryArgs := append([]any{tenantID}, args...)
	var exists bool
	if err := tx.QueryRow(ctx, query, queryArgs...).Scan(&exists); err != nil {
		return false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return exists, nil
}

const levelConfigColumns = `
  c.id::text,
  c.level_kind,
  c.level_id::text,
  c.attribute_id::text,
  c.is_required,
  c.is_visible,
  c.is_editable,
  c.is_deletable,
  c.display_order,
  c.field_group,
  c.override_label,
  c.override_placeholder,
  c.override_help_text,
  c.inherit_from_service,
  c.inherit_from_category`

func scanLevelConfig(row interface{ Scan(dest ...any) error }) (types.LevelConfig, error) {
	var cfg types.LevelConfig
	var kind string
	if err := row.Scan(
		&cfg.ID,
		&kind,
		&cfg.LevelID,
		&cfg.AttributeID,
		&cfg.IsRequired,
		&cfg.IsVisible,
		&cfg.IsEditable,
		&cfg.IsDeletable,
		&cfg.DisplayOrder,
		&cfg.FieldGroup,
		&cfg.OverrideLabel,
		&cfg.OverridePlaceholder,
		&cfg.OverrideHelpText,
		&cfg.InheritFromService,
		&cfg.InheritFromCategory,
	); err != nil {
		return types.LevelConfig{}, err
	}
	cfg.LevelKind = types.HierarchyLevel(kind)
	return cfg, nil
}

func (s *SchemaPGStore) ListLevelConfigs(ctx context.Context, tenantID string, kind types.HierarchyLevel, levelID string) ([]types.BoundField, error) {
	tx, err := s.begin(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	rows, err := tx.Query(ctx, `
SELECT`+levelConfigColumns+`,
  a.id::text,
  a.name,
  a.label,
  a.data_type,
  a.input_type,
  COALESCE(a.placeholder, ''),
  COALESCE(a.help_text, ''),
  a.is_default_field,
  a.is_system_field,
  a.is_active,
  a.display_order
FROM catalog.level_configs c
JOIN catalog.attribute_definitions a
  ON a.tenant_uuid = c.tenant_uuid
 AND a.id = c.attribute_id
WHERE c.tenant_uuid = $1::uuid
  AND c.level_kind = $2::text
  AND c.level_id = $3::uuid
ORDER BY c.display_order ASC, a.name ASC
`, tenantID, string(kind), levelID)
	if err != nil {
		return nil, fmt.Errorf("catalog: list level configs %s/%s: %w", kind, levelID, err)
	}
	defer rows.Close()

	out := make([]types.BoundField, 0)
	for rows.Next() {
		var bf types.BoundField
		var kindCol string
		if err := rows.Scan(
			&bf.Config.ID,
			&kindCol,
			&bf.Config.LevelID,
			&bf.Config.AttributeID,
			&bf.Config.IsRequired,
			&bf.Config.IsVisible,
			&bf.Config.IsEditable,
			&bf.Config.IsDeletable,
			&bf.Config.DisplayOrder,
			&bf.Config.FieldGroup,
			&bf.Config.OverrideLabel,
			&bf.Config.OverridePlaceholder,
			&bf.Config.OverrideHelpText,
			&bf.Config.InheritFromService,
			&bf.Config.InheritFromCategory,
			&bf.Attribute.ID,
			&bf.Attribute.Name,
			&bf.Attribute.Label,
			&bf.Attribute.DataType,
			&bf.Attribute.InputType,
			&bf.Attribute.Placeholder,
			&bf.Attribute.HelpText,
			&bf.Attribute.IsDefaultField,
			&bf.Attribute.IsSystemField,
			&bf.Attribute.IsActive,
			&bf.Attribute.DisplayOrder,
		); err != nil {
			return nil, err
		}
		bf.Config.LevelKind = types.HierarchyLevel(kindCol)
		out = append(out, bf)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SchemaPGStore) GetLevelConfig(ctx context.Context, tenantID string, kind types.HierarchyLevel, levelID string, attributeID string) (types.LevelConfig, bool, error) {
	tx, err := s.begin(ctx, tenantID)
	if err != nil {
		return types.LevelConfig{}, false, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	cfg, err := scanLevelConfig(tx.QueryRow(ctx, `
SELECT`+levelConfigColumns+`
FROM catalog.level_configs c
WHERE c.tenant_uuid = $1::uuid
  AND c.level_kind = $2::text
  AND c.level_id = $3::uuid
  AND c.attribute_id = $4::uuid
LIMIT 1
`, tenantID, string(kind), levelID, attributeID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.LevelConfig{}, false, nil
		}
		return types.LevelConfig{}, false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return types.LevelConfig{}, false, err
	}
	return cfg, true, nil
}

func (s *SchemaPGStore) GetLevelConfigByID(ctx context.Context, tenantID string, configID string) (types.LevelConfig, error) {
	tx, err := s.begin(ctx, tenantID)
	if err != nil {
		return types.LevelConfig{}, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	cfg, err := scanLevelConfig(tx.QueryRow(ctx, `
SELECT`+levelConfigColumns+`
FROM catalog.level_configs c
WHERE c.tenant_uuid = $1::uuid
  AND c.id = $2::uuid
LIMIT 1
`, tenantID, configID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.LevelConfig{}, ports.ErrLevelConfigNotFound
		}
		return types.LevelConfig{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return types.LevelConfig{}, err
	}
	return cfg, nil
}

func (s *SchemaPGStore) InsertLevelConfig(ctx context.Context, tenantID string, cfg types.LevelConfig) (types.LevelConfig, error) {
	tx, err := s.begin(ctx, tenantID)
	if err != nil {
		return types.LevelConfig{}, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if cfg.ID == "" {
		cfg.ID = newRowID()
	}
	if _, err := tx.Exec(ctx, `
INSERT INTO catalog.level_configs (
  id, tenant_uuid, level_kind, level_id, attribute_id,
  is_required, is_visible, is_editable, is_deletable,
  display_order, field_group,
  override_label, override_placeholder, override_help_text,
  inherit_from_service, inherit_from_category
) VALUES (
  $1::uuid, $2::uuid, $3::text, $4::uuid, $5::uuid,
  $6::bool, $7::bool, $8::bool, $9::bool,
  $10::int, $11::text,
  $12::text, $13::text, $14::text,
  $15::bool, $16::bool
)
`, cfg.ID, tenantID, string(cfg.LevelKind), cfg.LevelID, cfg.AttributeID,
		cfg.IsRequired, cfg.IsVisible, cfg.IsEditable, cfg.IsDeletable,
		cfg.DisplayOrder, cfg.FieldGroup,
		cfg.OverrideLabel, cfg.OverridePlaceholder, cfg.OverrideHelpText,
		cfg.InheritFromService, cfg.InheritFromCategory); err != nil {
		if pgErrorCode(err) == pgCodeUniqueViolation {
			return types.LevelConfig{}, ports.ErrLevelConfigExists
		}
		return types.LevelConfig{}, fmt.Errorf("catalog: insert level config %s/%s attr %s: %w", cfg.LevelKind, cfg.LevelID, cfg.AttributeID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return types.LevelConfig{}, err
	}
	return cfg, nil
}

func (s *SchemaPGStore) UpdateLevelConfig(ctx context.Context, tenantID string, configID string, patch types.LevelConfigPatch) error {
	sets := make([]string, 0, 6)
	args := make([]any, 0, 8)
	args = append(args, tenantID, configID)
	argPos := 3

	addSet := func(column string, value any) {
		sets = append(sets, fmt.Sprintf("%s = $%d", column, argPos))
		args = append(args, value)
		argPos++
	}
	if patch.OverrideLabel != nil {
		addSet("override_label", *patch.OverrideLabel)
	}
	if patch.OverridePlaceholder != nil {
		addSet("override_placeholder", *patch.OverridePlaceholder)
	}
	if patch.OverrideHelpText != nil {
		addSet("override_help_text", *patch.OverrideHelpText)
	}
	if patch.FieldGroup != nil {
		addSet("field_group", *patch.FieldGroup)
	}
	if patch.IsRequired != nil {
		addSet("is_required", *patch.IsRequired)
	}
	if patch.IsVisible != nil {
		addSet("is_visible", *patch.IsVisible)
	}
	if len(sets) == 0 {
		return nil
	}

	tx, err := s.begin(ctx, tenantID)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	tag, err := tx.Exec(ctx, `
UPDATE catalog.level_configs
SET `+strings.Join(sets, ", ")+`
WHERE tenant_uuid = $1::uuid
  AND id = $2::uuid
`, args...)
	if err != nil {
		return fmt.Errorf("catalog: update level config %s: %w", configID, err)
	}
	if tag.RowsAffected() == 0 {
		return ports.ErrLevelConfigNotFound
	}
	return tx.Commit(ctx)
}

func (s *SchemaPGStore) UpdateDisplayOrders(ctx context.Context, tenantID string, updates []ports.DisplayOrderUpdate) error {
	tx, err := s.begin(ctx, tenantID)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	for _, update := range updates {
		tag, err := tx.Exec(ctx, `
UPDATE catalog.level_configs
SET display_order = $3::int
WHERE tenant_uuid = $1::uuid
  AND id = $2::uuid
`, tenantID, update.ConfigID, update.DisplayOrder)
		if err != nil {
			return fmt.Errorf("catalog: reorder config %s: %w", update.ConfigID, err)
		}
		if tag.RowsAffected() == 0 {
			return ports.ErrLevelConfigNotFound
		}
	}
	return tx.Commit(ctx)
}

func (s *SchemaPGStore) DeleteLevelConfigs(ctx context.Context, tenantID string, kind types.HierarchyLevel, levelID string, attributeIDs []string) (int, error) {
	tx, err := s.begin(ctx, tenantID)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	// is_deletable is re-checked here so a stale caller partition can never
	// remove a protected row.
	tag, err := tx.Exec(ctx, `
DELETE FROM catalog.level_configs
WHERE tenant_uuid = $1::uuid
  AND level_kind = $2::text
  AND level_id = $3::uuid
  AND attribute_id = ANY($4::uuid[])
  AND is_deletable = true
`, tenantID, string(kind), levelID, attributeIDs)
	if err != nil {
		return 0, fmt.Errorf("catalog: delete level configs %s/%s: %w", kind, levelID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// ResolveFormFields invokes the server-side resolution procedure. A database
// without the procedure installed degrades to the client-side merge.
func (s *SchemaPGStore) ResolveFormFields(ctx context.Context, tenantID string, rc types.ResolveContext) ([]types.ResolvedField, error) {
	tx, err := s.begin(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	var categoryID, subcategoryID *string
	if rc.CategoryID != "" {
		categoryID = &rc.CategoryID
	}
	if rc.SubcategoryID != "" {
		subcategoryID = &rc.SubcategoryID
	}

	rows, err := tx.Query(ctx, `
SELECT
  COALESCE(config_id::text, ''),
  attribute_id::text,
  name,
  label,
  data_type,
  input_type,
  COALESCE(placeholder, ''),
  COALESCE(help_text, ''),
  is_required,
  is_visible,
  is_editable,
  is_deletable,
  display_order,
  field_group,
  is_direct,
  COALESCE(inherited_from, '')
FROM catalog.resolve_form_fields($1::uuid, $2::uuid, $3::uuid, $4::uuid)
`, tenantID, rc.ServiceID, categoryID, subcategoryID)
	if err != nil {
		if pgErrorCode(err) == pgCodeUndefinedFunction {
			return nil, ports.ErrResolveProcUnavailable
		}
		return nil, fmt.Errorf("catalog: resolve form fields: %w", err)
	}
	defer rows.Close()

	out := make([]types.ResolvedField, 0)
	for rows.Next() {
		var rf types.ResolvedField
		var inheritedFrom string
		if err := rows.Scan(
			&rf.ConfigID,
			&rf.AttributeID,
			&rf.Name,
			&rf.Label,
			&rf.DataType,
			&rf.InputType,
			&rf.Placeholder,
			&rf.HelpText,
			&rf.IsRequired,
			&rf.IsVisible,
			&rf.IsEditable,
			&rf.IsDeletable,
			&rf.DisplayOrder,
			&rf.FieldGroup,
			&rf.IsDirect,
			&inheritedFrom,
		); err != nil {
			return nil, err
		}
		if inheritedFrom != "" {
			rf.InheritedFrom = types.HierarchyLevel(inheritedFrom)
		}
		out = append(out, rf)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return out, nil
}
