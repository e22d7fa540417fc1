package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lindenshop/formschema/modules/catalog/domain/ports"
	"github.com/lindenshop/formschema/modules/catalog/infrastructure/persistence"
	"github.com/lindenshop/formschema/modules/catalog/presentation/controllers"
	"github.com/lindenshop/formschema/modules/catalog/services"
	"github.com/lindenshop/formschema/pkg/authz"
)

type HandlerOptions struct {
	SchemaStore ports.SchemaStore
	Authorizer  authorizer
}

func NewHandler() (http.Handler, error) {
	return NewHandlerWithOptions(HandlerOptions{})
}

func NewHandlerWithOptions(opts HandlerOptions) (http.Handler, error) {
	store := opts.SchemaStore
	if store == nil {
		pool, err := pgxpool.New(context.Background(), dbDSNFromEnv())
		if err != nil {
			return nil, err
		}
		store = persistence.NewSchemaPGStore(pool)
	}

	authorizer := opts.Authorizer
	if authorizer == nil {
		loaded, err := authz.NewAuthorizerFromEnv()
		if err != nil {
			return nil, err
		}
		authorizer = loaded
	}

	controller := controllers.SchemaController{
		TenantID:  currentTenant,
		Resolver:  services.NewResolveService(store),
		Mutations: services.NewMutationService(store),
		Registry:  store,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/api/catalog/form-schema", controller.HandleFormSchemaAPI)
	mux.HandleFunc("/api/catalog/attributes", controller.HandleAttributesAPI)
	mux.HandleFunc("/api/catalog/attributes/reorder", controller.HandleAttributeReorderAPI)
	mux.HandleFunc("/api/catalog/attributes/deactivate", controller.HandleAttributeDeactivateAPI)
	mux.HandleFunc("/api/catalog/level-configs", controller.HandleLevelConfigsAPI)
	mux.HandleFunc("/api/catalog/level-configs/toggle", controller.HandleToggleAPI)
	mux.HandleFunc("/api/catalog/level-configs/reorder", controller.HandleReorderAPI)
	mux.HandleFunc("/api/catalog/level-configs/delete", controller.HandleDeleteAPI)
	mux.HandleFunc("/api/catalog/level-configs/{id}", controller.HandleLevelConfigAPI)

	var h http.Handler = mux
	h = withAuthz(authorizer, h)
	h = withTenantHeader(h)
	return h, nil
}

func MustNewHandler() http.Handler {
	h, err := NewHandler()
	if err != nil {
		panic(errors.New("server: failed to build handler: " + err.Error()))
	}
	return h
}
