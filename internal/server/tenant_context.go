package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

type tenantCtxKey struct{}

type roleCtxKey struct{}

func withTenant(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantCtxKey{}, tenantID)
}

func currentTenant(ctx context.Context) (string, bool) {
	t, ok := ctx.Value(tenantCtxKey{}).(string)
	return t, ok && t != ""
}

func withRole(ctx context.Context, roleSlug string) context.Context {
	return context.WithValue(ctx, roleCtxKey{}, roleSlug)
}

func currentRole(ctx context.Context) (string, bool) {
	r, ok := ctx.Value(roleCtxKey{}).(string)
	return r, ok && r != ""
}

// withTenantHeader extracts the tenant and role an upstream gateway injects.
// Identity is terminated before this service; the headers are trusted.
func withTenantHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if path == "/health" || path == "/healthz" {
			next.ServeHTTP(w, r)
			return
		}

		tenantID := strings.TrimSpace(r.Header.Get("X-Tenant-ID"))
		if tenantID == "" {
			writeServerError(w, http.StatusBadRequest, "tenant_missing", "X-Tenant-ID header is required")
			return
		}
		ctx := withTenant(r.Context(), tenantID)
		if role := strings.TrimSpace(r.Header.Get("X-Role")); role != "" {
			ctx = withRole(ctx, role)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func writeServerError(w http.ResponseWriter, status int, code string, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"code":    code,
		"message": message,
	})
}
