package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lindenshop/formschema/modules/catalog/domain/ports"
	"github.com/lindenshop/formschema/modules/catalog/domain/types"
	"github.com/lindenshop/formschema/modules/catalog/services"
	"github.com/lindenshop/formschema/pkg/httperr"
)

type TenantIDGetter func(ctx context.Context) (tenantID string, ok bool)

type SchemaController struct {
	TenantID  TenantIDGetter
	Resolver  services.ResolveService
	Mutations services.MutationService
	Registry  ports.SchemaStore
}

type addAttributesAPIRequest struct {
	LevelKind    string   `json:"level_kind"`
	LevelID      string   `json:"level_id"`
	AttributeIDs []string `json:"attribute_ids"`
}

type overrideAPIRequest struct {
	OverrideLabel       *string `json:"override_label"`
	OverridePlaceholder *string `json:"override_placeholder"`
	OverrideHelpText    *string `json:"override_help_text"`
	FieldGroup          *string `json:"field_group"`
	IsRequired          *bool   `json:"is_required"`
	IsVisible           *bool   `json:"is_visible"`
}

type toggleAPIRequest struct {
	LevelKind     string `json:"level_kind"`
	LevelID       string `json:"level_id"`
	AttributeID   string `json:"attribute_id"`
	AttributeName string `json:"attribute_name"`
	Flag          string `json:"flag"`
	Value         bool   `json:"value"`
}

type reorderAPIRequest struct {
	LevelKind        string   `json:"level_kind"`
	LevelID          string   `json:"level_id"`
	OrderedConfigIDs []string `json:"ordered_config_ids"`
}

type deleteAttributesAPIRequest struct {
	LevelKind    string   `json:"level_kind"`
	LevelID      string   `json:"level_id"`
	AttributeIDs []string `json:"attribute_ids"`
}

type attributeReorderAPIRequest struct {
	OrderedAttributeIDs []string `json:"ordered_attribute_ids"`
}

type attributeDeactivateAPIRequest struct {
	AttributeID string `json:"attribute_id"`
}

// HandleFormSchemaAPI serves GET /api/catalog/form-schema. The editor view
// returns every resolved field; view=preview filters to visible ones.
func (c SchemaController) HandleFormSchemaAPI(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := c.TenantID(r.Context())
	if !ok {
		writeError(w, r, http.StatusInternalServerError, "tenant_missing", "tenant missing")
		return
	}
	if r.Method != http.MethodGet {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	view := strings.TrimSpace(r.URL.Query().Get("view"))
	if view == "" {
		view = "editor"
	}
	if view != "editor" && view != "preview" {
		writeError(w, r, http.StatusBadRequest, "invalid_view", "view must be editor or preview")
		return
	}

	rc := types.ResolveContext{
		ServiceID:     strings.TrimSpace(r.URL.Query().Get("service_id")),
		CategoryID:    strings.TrimSpace(r.URL.Query().Get("category_id")),
		SubcategoryID: strings.TrimSpace(r.URL.Query().Get("subcategory_id")),
	}

	fields, err := c.Resolver.Resolve(r.Context(), tenantID, rc)
	if err != nil {
		writeServiceError(w, r, err, "resolve failed")
		return
	}
	if view == "preview" {
		fields = services.ProjectVisible(fields)
	}
	if fields == nil {
		fields = make([]types.ResolvedField, 0)
	}

	writeJSON(w, map[string]any{
		"tenant":         tenantID,
		"service_id":     rc.ServiceID,
		"category_id":    rc.CategoryID,
		"subcategory_id": rc.SubcategoryID,
		"view":           view,
		"fields":         fields,
	})
}

// HandleLevelConfigsAPI serves POST /api/catalog/level-configs (bulk add).
func (c SchemaController) HandleLevelConfigsAPI(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := c.TenantID(r.Context())
	if !ok {
		writeError(w, r, http.StatusInternalServerError, "tenant_missing", "tenant missing")
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	var req addAttributesAPIRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_json", "bad json")
		return
	}

	result, err := c.Mutations.AddAttributes(r.Context(), tenantID, types.HierarchyLevel(req.LevelKind), req.LevelID, req.AttributeIDs)
	if err != nil {
		writeServiceError(w, r, err, "add failed")
		return
	}
	writeJSON(w, map[string]any{
		"added":   result.Added,
		"skipped": result.Skipped,
		"failed":  result.Failed,
	})
}

// HandleLevelConfigAPI serves PATCH /api/catalog/level-configs/{id}.
func (c SchemaController) HandleLevelConfigAPI(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := c.TenantID(r.Context())
	if !ok {
		writeError(w, r, http.StatusInternalServerError, "tenant_missing", "tenant missing")
		return
	}
	if r.Method != http.MethodPatch {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	configID := strings.TrimSpace(r.PathValue("id"))
	if configID == "" {
		writeError(w, r, http.StatusBadRequest, "missing_config_id", "config id is required")
		return
	}

	var req overrideAPIRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_json", "bad json")
		return
	}

	patch := types.LevelConfigPatch{
		OverrideLabel:       req.OverrideLabel,
		OverridePlaceholder: req.OverridePlaceholder,
		OverrideHelpText:    req.OverrideHelpText,
		FieldGroup:          req.FieldGroup,
		IsRequired:          req.IsRequired,
		IsVisible:           req.IsVisible,
	}
	cfg, err := c.Mutations.UpdateOverride(r.Context(), tenantID, configID, patch)
	if err != nil {
		writeServiceError(w, r, err, "override failed")
		return
	}
	writeJSON(w, levelConfigView(cfg))
}

// HandleToggleAPI serves POST /api/catalog/level-configs/toggle.
func (c SchemaController) HandleToggleAPI(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := c.TenantID(r.Context())
	if !ok {
		writeError(w, r, http.StatusInternalServerError, "tenant_missing", "tenant missing")
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	var req toggleAPIRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_json", "bad json")
		return
	}
	flag := services.ToggleFlag(strings.TrimSpace(req.Flag))
	if flag != services.ToggleRequired && flag != services.ToggleVisible {
		writeError(w, r, http.StatusBadRequest, "invalid_flag", "flag must be required or visible")
		return
	}

	result, err := c.Mutations.Toggle(r.Context(), tenantID, services.ToggleRequest{
		LevelKind:     types.HierarchyLevel(req.LevelKind),
		LevelID:       req.LevelID,
		AttributeID:   req.AttributeID,
		AttributeName: req.AttributeName,
		Flag:          flag,
		Value:         req.Value,
	})
	if err != nil {
		writeServiceError(w, r, err, "toggle failed")
		return
	}
	writeJSON(w, map[string]any{
		"config_id":    result.ConfigID,
		"materialized": result.Materialized,
	})
}

// HandleReorderAPI serves POST /api/catalog/level-configs/reorder.
func (c SchemaController) HandleReorderAPI(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := c.TenantID(r.Context())
	if !ok {
		writeError(w, r, http.StatusInternalServerError, "tenant_missing", "tenant missing")
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	var req reorderAPIRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_json", "bad json")
		return
	}
	result, err := c.Mutations.Reorder(r.Context(), tenantID, types.HierarchyLevel(req.LevelKind), req.LevelID, req.OrderedConfigIDs)
	if err != nil {
		writeServiceError(w, r, err, "reorder failed")
		return
	}
	writeJSON(w, map[string]any{"updated": result.Updated})
}

// HandleDeleteAPI serves POST /api/catalog/level-configs/delete.
func (c SchemaController) HandleDeleteAPI(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := c.TenantID(r.Context())
	if !ok {
		writeError(w, r, http.StatusInternalServerError, "tenant_missing", "tenant missing")
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	var req deleteAttributesAPIRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_json", "bad json")
		return
	}
	result, err := c.Mutations.DeleteAttributes(r.Context(), tenantID, types.HierarchyLevel(req.LevelKind), req.LevelID, req.AttributeIDs)
	if err != nil {
		writeServiceError(w, r, err, "delete failed")
		return
	}
	writeJSON(w, map[string]any{
		"deleted":           result.Deleted,
		"skipped_protected": result.SkippedProtected,
		"missing":           result.Missing,
	})
}

// HandleAttributesAPI serves GET /api/catalog/attributes.
func (c SchemaController) HandleAttributesAPI(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := c.TenantID(r.Context())
	if !ok {
		writeError(w, r, http.StatusInternalServerError, "tenant_missing", "tenant missing")
		return
	}
	if r.Method != http.MethodGet {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	defs, err := c.Registry.ListAttributeDefinitions(r.Context(), tenantID)
	if err != nil {
		writeServiceError(w, r, err, "list failed")
		return
	}
	views := make([]map[string]any, 0, len(defs))
	for _, def := range defs {
		views = append(views, attributeView(def))
	}
	writeJSON(w, map[string]any{
		"tenant":     tenantID,
		"attributes": views,
	})
}

// HandleAttributeReorderAPI serves POST /api/catalog/attributes/reorder,
// rewriting the registry display order of default fields for the tenant.
func (c SchemaController) HandleAttributeReorderAPI(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := c.TenantID(r.Context())
	if !ok {
		writeError(w, r, http.StatusInternalServerError, "tenant_missing", "tenant missing")
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	var req attributeReorderAPIRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_json", "bad json")
		return
	}
	if err := c.Mutations.ReorderDefaultFields(r.Context(), tenantID, req.OrderedAttributeIDs); err != nil {
		writeServiceError(w, r, err, "reorder failed")
		return
	}
	writeJSON(w, map[string]any{"updated": len(req.OrderedAttributeIDs)})
}

// HandleAttributeDeactivateAPI serves POST /api/catalog/attributes/deactivate.
// System fields are rejected; existing level bindings are left in place.
func (c SchemaController) HandleAttributeDeactivateAPI(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := c.TenantID(r.Context())
	if !ok {
		writeError(w, r, http.StatusInternalServerError, "tenant_missing", "tenant missing")
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	var req attributeDeactivateAPIRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_json", "bad json")
		return
	}
	if err := c.Mutations.DeactivateAttribute(r.Context(), tenantID, req.AttributeID); err != nil {
		writeServiceError(w, r, err, "deactivate failed")
		return
	}
	writeJSON(w, map[string]any{"attribute_id": strings.TrimSpace(req.AttributeID), "is_active": false})
}

func levelConfigView(cfg types.LevelConfig) map[string]any {
	return map[string]any{
		"id":                   cfg.ID,
		"level_kind":           cfg.LevelKind,
		"level_id":             cfg.LevelID,
		"attribute_id":         cfg.AttributeID,
		"is_required":          cfg.IsRequired,
		"is_visible":           cfg.IsVisible,
		"is_editable":          cfg.IsEditable,
		"is_deletable":         cfg.IsDeletable,
		"display_order":        cfg.DisplayOrder,
		"field_group":          cfg.FieldGroup,
		"override_label":       cfg.OverrideLabel,
		"override_placeholder": cfg.OverridePlaceholder,
		"override_help_text":   cfg.OverrideHelpText,
	}
}

func attributeView(def types.AttributeDefinition) map[string]any {
	return map[string]any{
		"id":               def.ID,
		"name":             def.Name,
		"label":            def.Label,
		"data_type":        def.DataType,
		"input_type":       def.InputType,
		"placeholder":      def.Placeholder,
		"help_text":        def.HelpText,
		"is_default_field": def.IsDefaultField,
		"is_system_field":  def.IsSystemField,
		"is_active":        def.IsActive,
		"display_order":    def.DisplayOrder,
	}
}

type errorEnvelope struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	TraceID string            `json:"trace_id"`
	Meta    errorEnvelopeMeta `json:"meta"`
}

type errorEnvelopeMeta struct {
	Path   string `json:"path"`
	Method string `json:"method"`
}

func writeJSON(w http.ResponseWriter, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code string, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorEnvelope{
		Code:    code,
		Message: message,
		TraceID: traceIDFromRequest(r),
		Meta: errorEnvelopeMeta{
			Path:   r.URL.Path,
			Method: r.Method,
		},
	})
}

// writeServiceError maps service errors onto HTTP statuses. Typed errors
// carry a stable UPPER_SNAKE code in their message; anything else is an
// internal store failure.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	code := stableErrorCode(err)
	switch {
	case httperr.IsBadRequest(err) || isPgInvalidInput(err):
		writeError(w, r, http.StatusBadRequest, code, fallback)
	case httperr.IsPermissionDenied(err):
		writeError(w, r, http.StatusForbidden, code, fallback)
	case httperr.IsNotFound(err):
		writeError(w, r, http.StatusNotFound, code, fallback)
	case isStableCode(code):
		writeError(w, r, http.StatusUnprocessableEntity, code, fallback)
	default:
		writeError(w, r, http.StatusInternalServerError, "internal_error", fallback)
	}
}

func stableErrorCode(err error) string {
	if pgErr, ok := errors.AsType[*pgconn.PgError](err); ok && pgErr != nil {
		msg := strings.TrimSpace(pgErr.Message)
		if isStableCode(msg) {
			return msg
		}
	}
	msg := strings.TrimSpace(err.Error())
	if isStableCode(msg) {
		return msg
	}
	return "UNKNOWN"
}

func pgErrCode(err error) string {
	if pgErr, ok := errors.AsType[*pgconn.PgError](err); ok && pgErr != nil {
		return strings.TrimSpace(pgErr.Code)
	}
	return ""
}

func isPgInvalidInput(err error) bool {
	switch pgErrCode(err) {
	case "22P02", "22003", "22007", "22008":
		return true
	default:
		return false
	}
}

func isStableCode(code string) bool {
	if code == "" || code == "UNKNOWN" {
		return false
	}
	for i := 0; i < len(code); i++ {
		ch := code[i]
		if ch >= 'A' && ch <= 'Z' {
			continue
		}
		if ch >= '0' && ch <= '9' {
			continue
		}
		if ch == '_' {
			continue
		}
		return false
	}
	if code[0] < 'A' || code[0] > 'Z' {
		return false
	}
	return true
}

func traceIDFromRequest(r *http.Request) string {
	traceparent := strings.TrimSpace(r.Header.Get("traceparent"))
	if traceparent == "" {
		return ""
	}
	parts := strings.Split(traceparent, "-")
	if len(parts) != 4 {
		return ""
	}
	traceID := strings.ToLower(parts[1])
	if len(traceID) != 32 || traceID == "00000000000000000000000000000000" {
		return ""
	}
	for _, ch := range traceID {
		if (ch < '0' || ch > '9') && (ch < 'a' || ch > 'f') {
			return ""
		}
	}
	return traceID
}
