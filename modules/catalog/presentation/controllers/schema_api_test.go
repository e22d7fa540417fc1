package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lindenshop/formschema/modules/catalog/domain/types"
	"github.com/lindenshop/formschema/modules/catalog/services"
	"github.com/lindenshop/formschema/pkg/httperr"
)

func TestIsStableCode(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{in: "", want: false},
		{in: "UNKNOWN", want: false},
		{in: "FIELD_NOT_EDITABLE", want: true},
		{in: "A", want: true},
		{in: "1ABC", want: false},
		{in: "AbC", want: false},
		{in: "ABC-def", want: false},
		{in: "A BC", want: false},
	}
	for _, tc := range cases {
		if got := isStableCode(tc.in); got != tc.want {
			t.Fatalf("in=%q got=%v want=%v", tc.in, got, tc.want)
		}
	}
}

func TestTraceIDFromRequest(t *testing.T) {
	cases := []struct {
		traceparent string
		want        string
	}{
		{traceparent: "", want: ""},
		{traceparent: "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01", want: "4bf92f3577b34da6a3ce929d0e0e4736"},
		{traceparent: "00-00000000000000000000000000000000-00f067aa0ba902b7-01", want: ""},
		{traceparent: "not-a-traceparent", want: ""},
	}
	for _, tc := range cases {
		r := httptest.NewRequest(http.MethodGet, "/api/catalog/form-schema", nil)
		if tc.traceparent != "" {
			r.Header.Set("traceparent", tc.traceparent)
		}
		if got := traceIDFromRequest(r); got != tc.want {
			t.Fatalf("traceparent=%q got=%q want=%q", tc.traceparent, got, tc.want)
		}
	}
}

type resolverStub struct {
	resolveFn func(ctx context.Context, tenantID string, rc types.ResolveContext) ([]types.ResolvedField, error)
}

func (s resolverStub) Resolve(ctx context.Context, tenantID string, rc types.ResolveContext) ([]types.ResolvedField, error) {
	return s.resolveFn(ctx, tenantID, rc)
}

type mutationsStub struct {
	addFn             func(ctx context.Context, tenantID string, kind types.HierarchyLevel, levelID string, attributeIDs []string) (services.AddResult, error)
	updateOverrideFn  func(ctx context.Context, tenantID string, configID string, patch types.LevelConfigPatch) (types.LevelConfig, error)
	toggleFn          func(ctx context.Context, tenantID string, req services.ToggleRequest) (services.ToggleResult, error)
	deleteFn          func(ctx context.Context, tenantID string, kind types.HierarchyLevel, levelID string, attributeIDs []string) (services.DeleteResult, error)
	reorderFn         func(ctx context.Context, tenantID string, kind types.HierarchyLevel, levelID string, orderedConfigIDs []string) (services.ReorderResult, error)
	reorderDefaultsFn func(ctx context.Context, tenantID string, orderedAttributeIDs []string) error
	deactivateFn      func(ctx context.Context, tenantID string, attributeID string) error
}

func (s mutationsStub) AddAttributes(ctx context.Context, tenantID string, kind types.HierarchyLevel, levelID string, attributeIDs []string) (services.AddResult, error) {
	return s.addFn(ctx, tenantID, kind, levelID, attributeIDs)
}

func (s mutationsStub) UpdateOverride(ctx context.Context, tenantID string, configID string, patch types.LevelConfigPatch) (types.LevelConfig, error) {
	return s.updateOverrideFn(ctx, tenantID, configID, patch)
}

func (s mutationsStub) Toggle(ctx context.Context, tenantID string, req services.ToggleRequest) (services.ToggleResult, error) {
	return s.toggleFn(ctx, tenantID, req)
}

func (s mutationsStub) DeleteAttributes(ctx context.Context, tenantID string, kind types.HierarchyLevel, levelID string, attributeIDs []string) (services.DeleteResult, error) {
	return s.deleteFn(ctx, tenantID, kind, levelID, attributeIDs)
}

func (s mutationsStub) Reorder(ctx context.Context, tenantID string, kind types.HierarchyLevel, levelID string, orderedConfigIDs []string) (services.ReorderResult, error) {
	return s.reorderFn(ctx, tenantID, kind, levelID, orderedConfigIDs)
}

func (s mutationsStub) ReorderDefaultFields(ctx context.Context, tenantID string, orderedAttributeIDs []string) error {
	return s.reorderDefaultsFn(ctx, tenantID, orderedAttributeIDs)
}

func (s mutationsStub) DeactivateAttribute(ctx context.Context, tenantID string, attributeID string) error {
	return s.deactivateFn(ctx, tenantID, attributeID)
}

func fixedTenant(tenantID string) TenantIDGetter {
	return func(context.Context) (string, bool) { return tenantID, true }
}

func TestHandleFormSchemaAPI_PreviewFiltersHiddenFields(t *testing.T) {
	c := SchemaController{
		TenantID: fixedTenant("t1"),
		Resolver: resolverStub{resolveFn: func(_ context.Context, tenantID string, rc types.ResolveContext) ([]types.ResolvedField, error) {
			if tenantID != "t1" || rc.ServiceID != "svc-1" {
				t.Fatalf("unexpected call: tenant=%q rc=%+v", tenantID, rc)
			}
			return []types.ResolvedField{
				{Name: "product_name", IsVisible: true},
				{Name: "internal_notes", IsVisible: false},
			}, nil
		}},
	}

	r := httptest.NewRequest(http.MethodGet, "/api/catalog/form-schema?service_id=svc-1&view=preview", nil)
	w := httptest.NewRecorder()
	c.HandleFormSchemaAPI(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var body struct {
		View   string                `json:"view"`
		Fields []types.ResolvedField `json:"fields"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.View != "preview" {
		t.Fatalf("view=%q", body.View)
	}
	if len(body.Fields) != 1 || body.Fields[0].Name != "product_name" {
		t.Fatalf("fields=%+v", body.Fields)
	}
}

func TestHandleFormSchemaAPI_ValidationErrorMapsTo400(t *testing.T) {
	c := SchemaController{
		TenantID: fixedTenant("t1"),
		Resolver: resolverStub{resolveFn: func(context.Context, string, types.ResolveContext) ([]types.ResolvedField, error) {
			return nil, httperr.NewBadRequest("CONTEXT_SERVICE_REQUIRED")
		}},
	}

	r := httptest.NewRequest(http.MethodGet, "/api/catalog/form-schema", nil)
	w := httptest.NewRecorder()
	c.HandleFormSchemaAPI(w, r)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", w.Code)
	}
	var env errorEnvelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Code != "CONTEXT_SERVICE_REQUIRED" {
		t.Fatalf("code=%q", env.Code)
	}
	if env.Meta.Path != "/api/catalog/form-schema" || env.Meta.Method != http.MethodGet {
		t.Fatalf("meta=%+v", env.Meta)
	}
}

func TestHandleLevelConfigAPI_PermissionDeniedMapsTo403(t *testing.T) {
	c := SchemaController{
		TenantID: fixedTenant("t1"),
		Mutations: mutationsStub{updateOverrideFn: func(_ context.Context, _ string, configID string, _ types.LevelConfigPatch) (types.LevelConfig, error) {
			if configID != "cfg-9" {
				t.Fatalf("configID=%q", configID)
			}
			return types.LevelConfig{}, httperr.NewPermissionDenied("FIELD_NOT_EDITABLE")
		}},
	}

	r := httptest.NewRequest(http.MethodPatch, "/api/catalog/level-configs/cfg-9", strings.NewReader(`{"override_label":"X"}`))
	r.SetPathValue("id", "cfg-9")
	w := httptest.NewRecorder()
	c.HandleLevelConfigAPI(w, r)

	if w.Code != http.StatusForbidden {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var env errorEnvelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Code != "FIELD_NOT_EDITABLE" {
		t.Fatalf("code=%q", env.Code)
	}
}

func TestHandleToggleAPI_RejectsUnknownFlag(t *testing.T) {
	c := SchemaController{TenantID: fixedTenant("t1"), Mutations: mutationsStub{}}

	r := httptest.NewRequest(http.MethodPost, "/api/catalog/level-configs/toggle", strings.NewReader(`{"level_kind":"service","level_id":"svc-1","attribute_name":"warranty","flag":"hidden","value":true}`))
	w := httptest.NewRecorder()
	c.HandleToggleAPI(w, r)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestHandleToggleAPI_ReportsMaterialization(t *testing.T) {
	c := SchemaController{
		TenantID: fixedTenant("t1"),
		Mutations: mutationsStub{toggleFn: func(_ context.Context, _ string, req services.ToggleRequest) (services.ToggleResult, error) {
			if req.Flag != services.ToggleRequired || !req.Value || req.AttributeName != "warranty" {
				t.Fatalf("req=%+v", req)
			}
			return services.ToggleResult{ConfigID: "cfg-1", Materialized: true}, nil
		}},
	}

	r := httptest.NewRequest(http.MethodPost, "/api/catalog/level-configs/toggle", strings.NewReader(`{"level_kind":"category","level_id":"cat-1","attribute_name":"warranty","flag":"required","value":true}`))
	w := httptest.NewRecorder()
	c.HandleToggleAPI(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var body struct {
		ConfigID     string `json:"config_id"`
		Materialized bool   `json:"materialized"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.ConfigID != "cfg-1" || !body.Materialized {
		t.Fatalf("body=%+v", body)
	}
}

func TestHandleDeleteAPI_MethodNotAllowed(t *testing.T) {
	c := SchemaController{TenantID: fixedTenant("t1"), Mutations: mutationsStub{}}

	r := httptest.NewRequest(http.MethodGet, "/api/catalog/level-configs/delete", nil)
	w := httptest.NewRecorder()
	c.HandleDeleteAPI(w, r)

	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestHandleAttributeDeactivateAPI_SystemFieldMapsTo403(t *testing.T) {
	c := SchemaController{
		TenantID: fixedTenant("t1"),
		Mutations: mutationsStub{deactivateFn: func(_ context.Context, _ string, attributeID string) error {
			if attributeID != "attr-1" {
				t.Fatalf("attributeID=%q", attributeID)
			}
			return httperr.NewPermissionDenied("SYSTEM_FIELD_PROTECTED")
		}},
	}

	r := httptest.NewRequest(http.MethodPost, "/api/catalog/attributes/deactivate", strings.NewReader(`{"attribute_id":"attr-1"}`))
	w := httptest.NewRecorder()
	c.HandleAttributeDeactivateAPI(w, r)

	if w.Code != http.StatusForbidden {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var body errorEnvelope
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Code != "SYSTEM_FIELD_PROTECTED" {
		t.Fatalf("code=%q", body.Code)
	}
}

func TestHandleAttributeDeactivateAPI_ReportsInactive(t *testing.T) {
	c := SchemaController{
		TenantID:  fixedTenant("t1"),
		Mutations: mutationsStub{deactivateFn: func(context.Context, string, string) error { return nil }},
	}

	r := httptest.NewRequest(http.MethodPost, "/api/catalog/attributes/deactivate", strings.NewReader(`{"attribute_id":"attr-2"}`))
	w := httptest.NewRecorder()
	c.HandleAttributeDeactivateAPI(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var body struct {
		AttributeID string `json:"attribute_id"`
		IsActive    bool   `json:"is_active"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.AttributeID != "attr-2" || body.IsActive {
		t.Fatalf("body=%+v", body)
	}
}
